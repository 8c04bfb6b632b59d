package s3store

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/serverlessresearch/s3store/pkg/objstore"
	"github.com/sirupsen/logrus"
)

// multipartUpload drives one S3 multipart upload on behalf of an
// objstore.MultipartWriter.
type multipartUpload struct {
	store    *Store
	location objstore.Path
	uploadID string
}

var _ objstore.PartUploader = (*multipartUpload)(nil)

func (u *multipartUpload) PutPart(ctx context.Context, data []byte, partIdx int) (id objstore.PartID, err error) {
	start := time.Now()
	defer func() { u.store.observe("upload_part", start, int64(len(data)), err) }()

	number := partIdx + 1
	out, err := u.store.client.UploadPartWithContext(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(u.store.bucket),
		Key:           aws.String(string(u.location)),
		UploadId:      aws.String(u.uploadID),
		PartNumber:    aws.Int64(int64(number)),
		ContentLength: aws.Int64(int64(len(data))),
		Body:          bytes.NewReader(data),
	})
	if err != nil {
		return objstore.PartID{}, toStoreError(wrap(KindUploadPart, err))
	}
	if aws.StringValue(out.ETag) == "" {
		return objstore.PartID{}, toStoreError(missing("etag"))
	}
	u.store.log.WithFields(logrus.Fields{
		"upload_id": u.uploadID,
		"part":      number,
		"size":      len(data),
	}).Debug("uploaded part")
	return objstore.PartID{Number: number, ETag: *out.ETag}, nil
}

func (u *multipartUpload) Complete(ctx context.Context, parts []objstore.PartID) (err error) {
	start := time.Now()
	defer func() { u.store.observe("complete_multipart", start, 0, err) }()

	sorted := make([]objstore.PartID, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	completed := make([]*s3.CompletedPart, 0, len(sorted))
	for _, p := range sorted {
		completed = append(completed, &s3.CompletedPart{
			PartNumber: aws.Int64(int64(p.Number)),
			ETag:       aws.String(p.ETag),
		})
	}
	_, err = u.store.client.CompleteMultipartUploadWithContext(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(u.store.bucket),
		Key:             aws.String(string(u.location)),
		UploadId:        aws.String(u.uploadID),
		MultipartUpload: &s3.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return toStoreError(wrap(KindCompleteMultipart, err))
	}
	u.store.log.WithFields(logrus.Fields{
		"location":  u.location,
		"upload_id": u.uploadID,
		"parts":     len(completed),
	}).Info("multipart upload completed")
	return nil
}

func (u *multipartUpload) Abort(ctx context.Context) error {
	return u.store.AbortMultipart(ctx, u.location, objstore.MultipartID(u.uploadID))
}
