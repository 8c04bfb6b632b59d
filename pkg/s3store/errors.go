package s3store

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/serverlessresearch/s3store/pkg/objstore"
)

// StoreName tags every error this package returns.
const StoreName = "S3"

// Kind names the call site or local step that failed.
type Kind int

const (
	KindGet Kind = iota
	KindHead
	KindPut
	KindDelete
	KindCopy
	KindList
	KindCreateMultipart
	KindUploadPart
	KindCompleteMultipart
	KindAbortMultipart
	KindConversion
	KindParseInt
	KindUnknown
)

var kindMessages = map[Kind]string{
	KindGet:               "S3 get object error",
	KindHead:              "S3 head object error",
	KindPut:               "S3 put object error",
	KindDelete:            "S3 delete object error",
	KindCopy:              "S3 copy object error",
	KindList:              "S3 list objects error",
	KindCreateMultipart:   "S3 create multipart error",
	KindUploadPart:        "S3 uploadpart object error",
	KindCompleteMultipart: "S3 complete multipart error",
	KindAbortMultipart:    "S3 abort multipart error",
	KindConversion:        "S3 conversion error",
	KindParseInt:          "Parse int error",
	KindUnknown:           "unknown object store error",
}

func (k Kind) String() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a failure of one adapter step. Field names the response field for
// missing or malformed data.
type Error struct {
	Kind  Kind
	Field string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func missing(field string) *Error {
	return &Error{Kind: KindUnknown, Field: field, Err: errors.New("missing from response")}
}

// toStoreError lifts err into the generic error shape. The cause chain is
// kept as is; only the generic Kind is derived from it.
func toStoreError(err error) error {
	if err == nil {
		return nil
	}
	var se *objstore.Error
	if errors.As(err, &se) {
		return err
	}
	return &objstore.Error{Store: StoreName, Kind: classify(err), Err: err}
}

func classify(err error) objstore.Kind {
	var rf awserr.RequestFailure
	if errors.As(err, &rf) {
		switch rf.StatusCode() {
		case http.StatusNotFound:
			return objstore.KindNotFound
		case http.StatusNotModified:
			return objstore.KindNotModified
		case http.StatusPreconditionFailed:
			return objstore.KindPrecondition
		case http.StatusNotImplemented:
			return objstore.KindNotSupported
		}
	}
	var ae awserr.Error
	if errors.As(err, &ae) {
		switch ae.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchUpload, s3.ErrCodeNoSuchBucket, "NotFound":
			return objstore.KindNotFound
		case "NotModified":
			return objstore.KindNotModified
		case "PreconditionFailed":
			return objstore.KindPrecondition
		case "NotImplemented":
			return objstore.KindNotSupported
		}
	}
	return objstore.KindGeneric
}
