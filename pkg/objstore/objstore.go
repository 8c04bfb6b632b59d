package objstore

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"time"
)

// Path identifies one object within a store.
type Path string

func (p Path) String() string {
	return string(p)
}

// MultipartID is the opaque token issued by a backend for one multipart upload.
type MultipartID string

// ObjectMeta describes a stored object. It is only ever produced by a store.
type ObjectMeta struct {
	Location     Path
	LastModified time.Time
	Size         int64
	// ETag is empty when the backend did not report one.
	ETag    string
	Version string
}

// Range is the half-open byte interval [Start, End).
type Range struct {
	Start int64
	End   int64
}

// Valid reports whether the range is non-empty with a non-negative start.
func (r Range) Valid() bool {
	return r.Start >= 0 && r.Start < r.End
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() int64 {
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// GetOptions carries the optional preconditions of a read. Zero values are
// treated as unset.
type GetOptions struct {
	IfMatch           string
	IfNoneMatch       string
	IfModifiedSince   time.Time
	IfUnmodifiedSince time.Time
	Range             *Range
}

// GetResult is returned by a successful read. Payload must be consumed at most
// once and closed by the caller.
type GetResult struct {
	Payload io.ReadCloser
	Meta    ObjectMeta
	Range   Range
}

// Bytes reads the whole payload and closes it.
func (r *GetResult) Bytes() ([]byte, error) {
	defer r.Payload.Close()
	return ioutil.ReadAll(r.Payload)
}

// PutOptions carries the optional attributes of a single-shot write.
type PutOptions struct {
	Tags TagSet
}

// PutResult is returned by a successful single-shot write.
type PutResult struct {
	ETag    string
	Version string
}

// ListResult is the outcome of a delimited listing.
type ListResult struct {
	Objects        []ObjectMeta
	CommonPrefixes []Path
}

// ObjectIterator yields listed objects one at a time. Next returns Done once
// the listing is exhausted; any other error is terminal.
type ObjectIterator interface {
	Next() (ObjectMeta, error)
}

// ObjectStore is the contract every backend implements. All methods are safe
// for concurrent use and may block on network I/O.
type ObjectStore interface {
	// Get reads an object, honouring the preconditions and range in opts.
	Get(ctx context.Context, location Path, opts GetOptions) (*GetResult, error)

	// Head returns the metadata of an object without its content.
	Head(ctx context.Context, location Path) (ObjectMeta, error)

	// Put writes a complete object in one request.
	Put(ctx context.Context, location Path, data []byte, opts PutOptions) (PutResult, error)

	// Delete removes an object.
	Delete(ctx context.Context, location Path) error

	// Copy copies an object within the store, replacing any existing target.
	Copy(ctx context.Context, from, to Path) error

	// CopyIfNotExists copies an object only if the target does not exist.
	CopyIfNotExists(ctx context.Context, from, to Path) error

	// List lazily enumerates all objects whose key starts with prefix. An
	// empty prefix lists the whole store.
	List(ctx context.Context, prefix Path) ObjectIterator

	// ListWithDelimiter returns the objects directly under prefix together
	// with the common prefixes one level below it.
	ListWithDelimiter(ctx context.Context, prefix Path) (ListResult, error)

	// PutMultipart starts a multipart upload. The returned writer is bound to
	// ctx for its whole lifetime.
	PutMultipart(ctx context.Context, location Path) (MultipartID, *MultipartWriter, error)

	// AbortMultipart discards every part of a previously started upload.
	AbortMultipart(ctx context.Context, location Path, id MultipartID) error
}

// Collect drains an iterator.
func Collect(it ObjectIterator) ([]ObjectMeta, error) {
	var objects []ObjectMeta
	for {
		meta, err := it.Next()
		if err == Done {
			return objects, nil
		}
		if err != nil {
			return objects, err
		}
		objects = append(objects, meta)
	}
}
