// Package s3store implements objstore.ObjectStore on top of the AWS S3 API.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/serverlessresearch/s3store/pkg/metrics"
	"github.com/serverlessresearch/s3store/pkg/objstore"
	"github.com/sirupsen/logrus"
)

const (
	// MinPartSize is the smallest part S3 accepts for any but the last part.
	MinPartSize = 5 * 1024 * 1024
	// DefaultPartSize is used unless WithPartSize says otherwise.
	DefaultPartSize = 10 * 1024 * 1024

	pathDelimiter = "/"
)

// Store is an S3 bucket seen through the objstore interface. It holds no
// mutable state and is safe for concurrent use.
type Store struct {
	client   Client
	bucket   string
	log      logrus.FieldLogger
	observer metrics.StorageObserver
	partSize int
	pageSize int64
}

var _ objstore.ObjectStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) {
		s.log = logger
	}
}

func WithObserver(observer metrics.StorageObserver) Option {
	return func(s *Store) {
		s.observer = observer
	}
}

// WithPartSize sets the multipart part size. Sizes below MinPartSize are
// raised to it.
func WithPartSize(size int) Option {
	return func(s *Store) {
		if size < MinPartSize {
			size = MinPartSize
		}
		s.partSize = size
	}
}

// WithListPageSize caps the keys requested per listing page. Zero leaves the
// choice to the service.
func WithListPageSize(n int64) Option {
	return func(s *Store) {
		s.pageSize = n
	}
}

func New(client Client, bucket string, opts ...Option) *Store {
	discard := logrus.New()
	discard.Out = ioutil.Discard

	s := &Store{
		client:   client,
		bucket:   bucket,
		log:      discard,
		observer: metrics.Nop,
		partSize: DefaultPartSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithFields(logrus.Fields{
		"module": "objstore.s3",
		"bucket": bucket,
	})
	return s
}

func (s *Store) Bucket() string {
	return s.bucket
}

func (s *Store) String() string {
	return fmt.Sprintf("%s(bucket=%s)", StoreName, s.bucket)
}

func (s *Store) observe(op string, start time.Time, n int64, err error) {
	s.observer.Observe(op, n, err, time.Since(start))
	if err == nil {
		return
	}
	entry := s.log.WithError(err).WithField("op", op)
	switch objstore.KindOf(err) {
	case objstore.KindNotFound, objstore.KindNotModified, objstore.KindPrecondition:
		entry.Debug("store operation rejected")
	default:
		entry.Warn("store operation failed")
	}
}

func (s *Store) Get(ctx context.Context, location objstore.Path, opts objstore.GetOptions) (res *objstore.GetResult, err error) {
	start := time.Now()
	defer func() {
		var n int64
		if res != nil {
			n = res.Range.Len()
		}
		s.observe("get", start, n, err)
	}()

	in, err := s.getInput(location, opts)
	if err != nil {
		return nil, err
	}
	s.log.WithField("location", location).Debug("get object")
	out, err := s.client.GetObjectWithContext(ctx, in)
	if err != nil {
		return nil, toStoreError(wrap(KindGet, err))
	}
	if out.Body == nil {
		return nil, toStoreError(missing("body"))
	}
	meta, served, err := getMeta(location, out)
	if err != nil {
		out.Body.Close()
		return nil, toStoreError(err)
	}
	return &objstore.GetResult{
		Payload: objstore.NewPayload(StoreName, out.Body),
		Meta:    meta,
		Range:   served,
	}, nil
}

func (s *Store) getInput(location objstore.Path, opts objstore.GetOptions) (*s3.GetObjectInput, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(location)),
	}
	if opts.IfMatch != "" {
		in.IfMatch = aws.String(opts.IfMatch)
	}
	if opts.IfNoneMatch != "" {
		in.IfNoneMatch = aws.String(opts.IfNoneMatch)
	}
	if !opts.IfModifiedSince.IsZero() {
		ms, err := toMillis(opts.IfModifiedSince)
		if err != nil {
			return nil, toStoreError(err)
		}
		in.IfModifiedSince = aws.Time(fromMillis(ms))
	}
	if !opts.IfUnmodifiedSince.IsZero() {
		ms, err := toMillis(opts.IfUnmodifiedSince)
		if err != nil {
			return nil, toStoreError(err)
		}
		in.IfUnmodifiedSince = aws.Time(fromMillis(ms))
	}
	if opts.Range != nil {
		header, err := rangeHeader(*opts.Range)
		if err != nil {
			return nil, &objstore.Error{Store: StoreName, Kind: objstore.KindInvalidArgument, Err: err}
		}
		in.Range = aws.String(header)
	}
	return in, nil
}

// getMeta normalizes a read response. The object size comes from the
// content-range total when the service reports one, since content-length only
// covers the served range.
func getMeta(location objstore.Path, out *s3.GetObjectOutput) (objstore.ObjectMeta, objstore.Range, error) {
	lastModified, err := normalizeTime(out.LastModified, "last-modified")
	if err != nil {
		return objstore.ObjectMeta{}, objstore.Range{}, err
	}
	length, err := normalizeSize(out.ContentLength, "content-length")
	if err != nil {
		return objstore.ObjectMeta{}, objstore.Range{}, err
	}
	if out.ContentRange == nil {
		return objstore.ObjectMeta{}, objstore.Range{}, missing("content-range")
	}
	served, total, err := parseContentRange(*out.ContentRange)
	if err != nil {
		return objstore.ObjectMeta{}, objstore.Range{}, err
	}
	if served.Len() != length {
		return objstore.ObjectMeta{}, objstore.Range{}, &Error{
			Kind:  KindConversion,
			Field: "content-length",
			Err:   fmt.Errorf("content length %d does not match served range %s", length, served),
		}
	}
	size := total
	if size < 0 {
		size = length
	}
	return objstore.ObjectMeta{
		Location:     location,
		LastModified: lastModified,
		Size:         size,
		ETag:         aws.StringValue(out.ETag),
	}, served, nil
}

func (s *Store) Head(ctx context.Context, location objstore.Path) (meta objstore.ObjectMeta, err error) {
	start := time.Now()
	defer func() { s.observe("head", start, 0, err) }()

	s.log.WithField("location", location).Debug("head object")
	out, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(location)),
	})
	if err != nil {
		return objstore.ObjectMeta{}, toStoreError(wrap(KindHead, err))
	}
	meta, err = objectMeta(location, out.LastModified, out.ContentLength, "content-length", out.ETag)
	if err != nil {
		return objstore.ObjectMeta{}, toStoreError(err)
	}
	return meta, nil
}

// objectMeta reports a missing size under sizeField, the name the response uses for it.
func objectMeta(location objstore.Path, lastModified *time.Time, size *int64, sizeField string, etag *string) (objstore.ObjectMeta, error) {
	ts, err := normalizeTime(lastModified, "last-modified")
	if err != nil {
		return objstore.ObjectMeta{}, err
	}
	n, err := normalizeSize(size, sizeField)
	if err != nil {
		return objstore.ObjectMeta{}, err
	}
	return objstore.ObjectMeta{
		Location:     location,
		LastModified: ts,
		Size:         n,
		ETag:         aws.StringValue(etag),
	}, nil
}

func (s *Store) Put(ctx context.Context, location objstore.Path, data []byte, opts objstore.PutOptions) (res objstore.PutResult, err error) {
	start := time.Now()
	defer func() { s.observe("put", start, int64(len(data)), err) }()

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(location)),
		Body:   bytes.NewReader(data),
	}
	if opts.Tags.Len() > 0 {
		in.Tagging = aws.String(opts.Tags.Encoded())
	}
	s.log.WithFields(logrus.Fields{"location": location, "size": len(data)}).Debug("put object")
	out, err := s.client.PutObjectWithContext(ctx, in)
	if err != nil {
		return objstore.PutResult{}, toStoreError(wrap(KindPut, err))
	}
	return objstore.PutResult{
		ETag:    aws.StringValue(out.ETag),
		Version: aws.StringValue(out.VersionId),
	}, nil
}

func (s *Store) Delete(ctx context.Context, location objstore.Path) (err error) {
	start := time.Now()
	defer func() { s.observe("delete", start, 0, err) }()

	s.log.WithField("location", location).Debug("delete object")
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(location)),
	})
	if err != nil {
		return toStoreError(wrap(KindDelete, err))
	}
	return nil
}

// Copy performs a server side copy within the bucket.
func (s *Store) Copy(ctx context.Context, from, to objstore.Path) (err error) {
	start := time.Now()
	defer func() { s.observe("copy", start, 0, err) }()

	s.log.WithFields(logrus.Fields{"from": from, "to": to}).Debug("copy object")
	_, err = s.client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(string(to)),
		CopySource: aws.String(s.bucket + "/" + string(from)),
	})
	if err != nil {
		return toStoreError(wrap(KindCopy, err))
	}
	return nil
}

// CopyIfNotExists is not offered by this backend.
func (s *Store) CopyIfNotExists(ctx context.Context, from, to objstore.Path) error {
	return &objstore.Error{
		Store: StoreName,
		Kind:  objstore.KindNotSupported,
		Err:   &Error{Kind: KindUnknown, Err: errors.New("conditional copy is not available")},
	}
}

// List returns a lazy iterator over every object under prefix. No request is
// sent before the first Next; continuation tokens are followed page by page.
func (s *Store) List(ctx context.Context, prefix objstore.Path) objstore.ObjectIterator {
	return &listIterator{store: s, ctx: ctx, prefix: string(prefix)}
}

// ListWithDelimiter groups keys one "/" level below prefix. A non-empty prefix
// is treated as a directory and gets a trailing "/".
func (s *Store) ListWithDelimiter(ctx context.Context, prefix objstore.Path) (objstore.ListResult, error) {
	p := string(prefix)
	if p != "" && !strings.HasSuffix(p, pathDelimiter) {
		p += pathDelimiter
	}

	var res objstore.ListResult
	var token *string
	for {
		out, err := s.listPage(ctx, p, pathDelimiter, token)
		if err != nil {
			return objstore.ListResult{}, err
		}
		for _, obj := range out.Contents {
			meta, err := listedMeta(obj)
			if err != nil {
				return objstore.ListResult{}, toStoreError(err)
			}
			res.Objects = append(res.Objects, meta)
		}
		for _, cp := range out.CommonPrefixes {
			if cp.Prefix == nil {
				return objstore.ListResult{}, toStoreError(missing("common-prefix"))
			}
			res.CommonPrefixes = append(res.CommonPrefixes, objstore.Path(*cp.Prefix))
		}
		token, err = nextToken(out)
		if err != nil {
			return objstore.ListResult{}, toStoreError(err)
		}
		if token == nil {
			return res, nil
		}
	}
}

func (s *Store) listPage(ctx context.Context, prefix, delimiter string, token *string) (out *s3.ListObjectsV2Output, err error) {
	start := time.Now()
	defer func() { s.observe("list", start, 0, err) }()

	in := &s3.ListObjectsV2Input{
		Bucket:            aws.String(s.bucket),
		ContinuationToken: token,
	}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}
	if delimiter != "" {
		in.Delimiter = aws.String(delimiter)
	}
	if s.pageSize > 0 {
		in.MaxKeys = aws.Int64(s.pageSize)
	}
	s.log.WithFields(logrus.Fields{"prefix": prefix, "delimiter": delimiter}).Debug("list objects")
	out, err = s.client.ListObjectsV2WithContext(ctx, in)
	if err != nil {
		return nil, toStoreError(wrap(KindList, err))
	}
	return out, nil
}

func nextToken(out *s3.ListObjectsV2Output) (*string, error) {
	if !aws.BoolValue(out.IsTruncated) {
		return nil, nil
	}
	if aws.StringValue(out.NextContinuationToken) == "" {
		return nil, missing("next-continuation-token")
	}
	return out.NextContinuationToken, nil
}

func listedMeta(obj *s3.Object) (objstore.ObjectMeta, error) {
	if obj.Key == nil {
		return objstore.ObjectMeta{}, missing("key")
	}
	return objectMeta(objstore.Path(*obj.Key), obj.LastModified, obj.Size, "size", obj.ETag)
}

type listIterator struct {
	store  *Store
	ctx    context.Context
	prefix string

	page    []*s3.Object
	token   *string
	started bool
	err     error
}

func (it *listIterator) Next() (objstore.ObjectMeta, error) {
	for {
		if len(it.page) > 0 {
			obj := it.page[0]
			it.page = it.page[1:]
			meta, err := listedMeta(obj)
			if err != nil {
				it.page = nil
				it.err = toStoreError(err)
				return objstore.ObjectMeta{}, it.err
			}
			return meta, nil
		}
		// a page fetched alongside a failure is handed out before the error
		if it.err != nil {
			return objstore.ObjectMeta{}, it.err
		}
		if it.started && it.token == nil {
			it.err = objstore.Done
			continue
		}
		it.fetch()
	}
}

func (it *listIterator) fetch() {
	out, err := it.store.listPage(it.ctx, it.prefix, "", it.token)
	it.started = true
	if err != nil {
		it.err = err
		return
	}
	it.page = out.Contents
	it.token, err = nextToken(out)
	if err != nil {
		it.err = toStoreError(err)
	}
}

// PutMultipart creates a multipart upload and returns a writer feeding it.
func (s *Store) PutMultipart(ctx context.Context, location objstore.Path) (id objstore.MultipartID, w *objstore.MultipartWriter, err error) {
	start := time.Now()
	defer func() { s.observe("create_multipart", start, 0, err) }()

	out, err := s.client.CreateMultipartUploadWithContext(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(location)),
	})
	if err != nil {
		return "", nil, toStoreError(wrap(KindCreateMultipart, err))
	}
	if aws.StringValue(out.UploadId) == "" {
		return "", nil, toStoreError(missing("upload-id"))
	}

	upload := &multipartUpload{
		store:    s,
		location: location,
		uploadID: *out.UploadId,
	}
	s.log.WithFields(logrus.Fields{"location": location, "upload_id": upload.uploadID}).Info("multipart upload started")
	return objstore.MultipartID(upload.uploadID), objstore.NewMultipartWriter(ctx, upload, s.partSize, objstore.MaxConcurrentParts), nil
}

// AbortMultipart discards an upload started by PutMultipart.
func (s *Store) AbortMultipart(ctx context.Context, location objstore.Path, id objstore.MultipartID) (err error) {
	start := time.Now()
	defer func() { s.observe("abort_multipart", start, 0, err) }()

	_, err = s.client.AbortMultipartUploadWithContext(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(string(location)),
		UploadId: aws.String(string(id)),
	})
	if err != nil {
		return toStoreError(wrap(KindAbortMultipart, err))
	}
	s.log.WithFields(logrus.Fields{"location": location, "upload_id": id}).Info("multipart upload aborted")
	return nil
}
