package s3store

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io/ioutil"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// fakeS3 is an in-memory bucket that evaluates conditions, ranges, listings
// and multipart uploads the way the service does. One difference: it sends
// Content-Range on unranged reads too, which S3 only does for ranged ones.
// Set unrangedWithoutContentRange to get the service's behaviour.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	clock   time.Time
	objects map[string]*fakeObject
	uploads map[string]*fakeUpload

	omitContentRange bool
	omitHeadLength   bool
	omitListToken    bool
	omitUploadID     bool
	omitPartETag     bool
	failPart         int64
	partDelay        time.Duration

	unrangedWithoutContentRange bool

	inflight    int32
	maxInflight int32

	getInputs      []*s3.GetObjectInput
	putInputs      []*s3.PutObjectInput
	copyInputs     []*s3.CopyObjectInput
	listInputs     []*s3.ListObjectsV2Input
	completeInputs []*s3.CompleteMultipartUploadInput
}

type fakeObject struct {
	data     []byte
	etag     string
	modified time.Time
	tagging  string
}

type fakeUpload struct {
	key   string
	parts map[int64][]byte
	etags map[int64]string
}

var _ Client = (*fakeS3)(nil)

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{
		bucket:  bucket,
		clock:   time.Date(2021, time.March, 4, 10, 30, 0, 123456789, time.UTC),
		objects: map[string]*fakeObject{},
		uploads: map[string]*fakeUpload{},
	}
}

func failure(code string, status int) error {
	return awserr.NewRequestFailure(awserr.New(code, code, nil), status, "fake-request")
}

func etagOf(data []byte) string {
	return fmt.Sprintf("\"%x\"", md5.Sum(data))
}

func (f *fakeS3) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeS3) checkBucket(bucket *string) error {
	if aws.StringValue(bucket) != f.bucket {
		return failure(s3.ErrCodeNoSuchBucket, http.StatusNotFound)
	}
	return nil
}

func (f *fakeS3) store(key string, data []byte, tagging string) *fakeObject {
	obj := &fakeObject{data: data, etag: etagOf(data), modified: f.tick(), tagging: tagging}
	f.objects[key] = obj
	return obj
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getInputs = append(f.getInputs, in)
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	obj, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, failure(s3.ErrCodeNoSuchKey, http.StatusNotFound)
	}
	if in.IfMatch != nil && *in.IfMatch != obj.etag {
		return nil, failure("PreconditionFailed", http.StatusPreconditionFailed)
	}
	if in.IfUnmodifiedSince != nil && obj.modified.After(*in.IfUnmodifiedSince) {
		return nil, failure("PreconditionFailed", http.StatusPreconditionFailed)
	}
	if in.IfNoneMatch != nil && *in.IfNoneMatch == obj.etag {
		return nil, failure("NotModified", http.StatusNotModified)
	}
	if in.IfModifiedSince != nil && !obj.modified.After(*in.IfModifiedSince) {
		return nil, failure("NotModified", http.StatusNotModified)
	}

	size := int64(len(obj.data))
	first, last := int64(0), size-1
	if in.Range != nil {
		if _, err := fmt.Sscanf(*in.Range, "bytes=%d-%d", &first, &last); err != nil {
			return nil, failure("InvalidArgument", http.StatusBadRequest)
		}
		if first >= size {
			return nil, failure("InvalidRange", http.StatusRequestedRangeNotSatisfiable)
		}
		if last >= size {
			last = size - 1
		}
	}
	out := &s3.GetObjectOutput{
		Body:          ioutil.NopCloser(bytes.NewReader(obj.data[first : last+1])),
		ContentLength: aws.Int64(last - first + 1),
		ETag:          aws.String(obj.etag),
		LastModified:  aws.Time(obj.modified),
	}
	if !f.omitContentRange && !(f.unrangedWithoutContentRange && in.Range == nil) {
		out.ContentRange = aws.String(fmt.Sprintf("bytes %d-%d/%d", first, last, size))
	}
	return out, nil
}

func (f *fakeS3) HeadObjectWithContext(ctx aws.Context, in *s3.HeadObjectInput, opts ...request.Option) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	obj, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, failure("NotFound", http.StatusNotFound)
	}
	out := &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		ETag:          aws.String(obj.etag),
		LastModified:  aws.Time(obj.modified),
	}
	if f.omitHeadLength {
		out.ContentLength = nil
	}
	return out, nil
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putInputs = append(f.putInputs, in)
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	data, err := ioutil.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	obj := f.store(aws.StringValue(in.Key), data, aws.StringValue(in.Tagging))
	return &s3.PutObjectOutput{ETag: aws.String(obj.etag)}, nil
}

func (f *fakeS3) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, opts ...request.Option) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	delete(f.objects, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) CopyObjectWithContext(ctx aws.Context, in *s3.CopyObjectInput, opts ...request.Option) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copyInputs = append(f.copyInputs, in)
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	source := strings.SplitN(aws.StringValue(in.CopySource), "/", 2)
	if len(source) != 2 {
		return nil, failure("InvalidArgument", http.StatusBadRequest)
	}
	if err := f.checkBucket(aws.String(source[0])); err != nil {
		return nil, err
	}
	src, ok := f.objects[source[1]]
	if !ok {
		return nil, failure(s3.ErrCodeNoSuchKey, http.StatusNotFound)
	}
	f.store(aws.StringValue(in.Key), src.data, src.tagging)
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2WithContext(ctx aws.Context, in *s3.ListObjectsV2Input, opts ...request.Option) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listInputs = append(f.listInputs, in)
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	prefix := aws.StringValue(in.Prefix)
	delimiter := aws.StringValue(in.Delimiter)

	// entries holds keys and common prefixes, the latter marked by a
	// trailing delimiter, in the lexical order the service returns them
	seen := map[string]bool{}
	var entries []string
	for key := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry := key
		if delimiter != "" {
			if i := strings.Index(key[len(prefix):], delimiter); i >= 0 {
				entry = key[:len(prefix)+i+len(delimiter)]
			}
		}
		if !seen[entry] {
			seen[entry] = true
			entries = append(entries, entry)
		}
	}
	sort.Strings(entries)

	start := 0
	if in.ContinuationToken != nil {
		n, err := strconv.Atoi(*in.ContinuationToken)
		if err != nil {
			return nil, failure("InvalidArgument", http.StatusBadRequest)
		}
		start = n
	}
	max := int(aws.Int64Value(in.MaxKeys))
	if max <= 0 {
		max = 1000
	}
	end := start + max
	if end > len(entries) {
		end = len(entries)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(entries))}
	for _, entry := range entries[start:end] {
		if _, ok := f.objects[entry]; !ok && delimiter != "" && strings.HasSuffix(entry, delimiter) {
			out.CommonPrefixes = append(out.CommonPrefixes, &s3.CommonPrefix{Prefix: aws.String(entry)})
			continue
		}
		obj := f.objects[entry]
		out.Contents = append(out.Contents, &s3.Object{
			Key:          aws.String(entry),
			Size:         aws.Int64(int64(len(obj.data))),
			ETag:         aws.String(obj.etag),
			LastModified: aws.Time(obj.modified),
		})
	}
	if end < len(entries) && !f.omitListToken {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeS3) CreateMultipartUploadWithContext(ctx aws.Context, in *s3.CreateMultipartUploadInput, opts ...request.Option) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	if f.omitUploadID {
		return &s3.CreateMultipartUploadOutput{}, nil
	}
	id := uuid.New().String()
	f.uploads[id] = &fakeUpload{
		key:   aws.StringValue(in.Key),
		parts: map[int64][]byte{},
		etags: map[int64]string{},
	}
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

func (f *fakeS3) UploadPartWithContext(ctx aws.Context, in *s3.UploadPartInput, opts ...request.Option) (*s3.UploadPartOutput, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		max := atomic.LoadInt32(&f.maxInflight)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxInflight, max, n) {
			break
		}
	}
	if f.partDelay > 0 {
		time.Sleep(f.partDelay)
	}

	data, err := ioutil.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	upload, ok := f.uploads[aws.StringValue(in.UploadId)]
	if !ok {
		return nil, failure(s3.ErrCodeNoSuchUpload, http.StatusNotFound)
	}
	number := aws.Int64Value(in.PartNumber)
	if number == f.failPart {
		return nil, failure("InternalError", http.StatusInternalServerError)
	}
	if aws.Int64Value(in.ContentLength) != int64(len(data)) {
		return nil, failure("IncompleteBody", http.StatusBadRequest)
	}
	upload.parts[number] = data
	upload.etags[number] = etagOf(data)
	if f.omitPartETag {
		return &s3.UploadPartOutput{}, nil
	}
	return &s3.UploadPartOutput{ETag: aws.String(upload.etags[number])}, nil
}

func (f *fakeS3) CompleteMultipartUploadWithContext(ctx aws.Context, in *s3.CompleteMultipartUploadInput, opts ...request.Option) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeInputs = append(f.completeInputs, in)
	id := aws.StringValue(in.UploadId)
	upload, ok := f.uploads[id]
	if !ok {
		return nil, failure(s3.ErrCodeNoSuchUpload, http.StatusNotFound)
	}
	var data []byte
	prev := int64(0)
	for _, p := range in.MultipartUpload.Parts {
		number := aws.Int64Value(p.PartNumber)
		if number <= prev {
			return nil, failure("InvalidPartOrder", http.StatusBadRequest)
		}
		if upload.etags[number] != aws.StringValue(p.ETag) {
			return nil, failure("InvalidPart", http.StatusBadRequest)
		}
		data = append(data, upload.parts[number]...)
		prev = number
	}
	delete(f.uploads, id)
	obj := f.store(upload.key, data, "")
	return &s3.CompleteMultipartUploadOutput{ETag: aws.String(obj.etag)}, nil
}

func (f *fakeS3) AbortMultipartUploadWithContext(ctx aws.Context, in *s3.AbortMultipartUploadInput, opts ...request.Option) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.StringValue(in.UploadId)
	if _, ok := f.uploads[id]; !ok {
		return nil, failure(s3.ErrCodeNoSuchUpload, http.StatusNotFound)
	}
	delete(f.uploads, id)
	return &s3.AbortMultipartUploadOutput{}, nil
}
