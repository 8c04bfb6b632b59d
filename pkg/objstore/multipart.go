package objstore

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// MaxConcurrentParts bounds the part uploads a MultipartWriter keeps in flight.
const MaxConcurrentParts = 16

var (
	// ErrNoParts is returned when completing an upload nothing was written to.
	ErrNoParts = errors.New("multipart upload has no parts")
	// ErrUploadClosed is returned when using a writer after Close or Abort.
	ErrUploadClosed = errors.New("multipart upload already completed or aborted")
)

// PartID identifies one uploaded part. Number is 1-based.
type PartID struct {
	Number int
	ETag   string
}

// PartUploader performs the remote side of one multipart upload.
type PartUploader interface {
	// PutPart uploads data as the part with 0-based index partIdx.
	PutPart(ctx context.Context, data []byte, partIdx int) (PartID, error)
	// Complete assembles the object from parts, ordered by part number.
	Complete(ctx context.Context, parts []PartID) error
	// Abort discards every uploaded part.
	Abort(ctx context.Context) error
}

type uploadState int

const (
	stateCreated uploadState = iota
	stateUploading
	stateCompleted
	stateAborted
)

// MultipartWriter slices a byte stream into parts and uploads them through a
// PartUploader with bounded concurrency.
//
// A writer must be driven by a single goroutine. A part failure is returned by
// the next Write, Flush or Close; after that the caller is expected to Abort.
type MultipartWriter struct {
	parent      context.Context
	uploader    PartUploader
	partSize    int
	concurrency int

	group *errgroup.Group
	gctx  context.Context

	buf   []byte
	parts []*PartID
	state uploadState
	err   error
}

// NewMultipartWriter returns a writer cutting parts of partSize bytes and
// keeping at most concurrency of them in flight. Non-positive concurrency
// means MaxConcurrentParts; a non-positive partSize is raised to one byte.
func NewMultipartWriter(ctx context.Context, uploader PartUploader, partSize, concurrency int) *MultipartWriter {
	if partSize <= 0 {
		partSize = 1
	}
	if concurrency <= 0 || concurrency > MaxConcurrentParts {
		concurrency = MaxConcurrentParts
	}
	w := &MultipartWriter{
		parent:      ctx,
		uploader:    uploader,
		partSize:    partSize,
		concurrency: concurrency,
		buf:         make([]byte, 0, partSize),
	}
	w.resetGroup()
	return w
}

func (w *MultipartWriter) resetGroup() {
	w.group, w.gctx = errgroup.WithContext(w.parent)
	w.group.SetLimit(w.concurrency)
}

// Parts returns the number of parts dispatched so far.
func (w *MultipartWriter) Parts() int {
	return len(w.parts)
}

// Write buffers p, dispatching a part each time the buffer reaches the part
// size. It blocks while all upload slots are busy.
func (w *MultipartWriter) Write(p []byte) (int, error) {
	if err := w.check(); err != nil {
		return 0, err
	}
	n := 0
	for len(p) > 0 {
		take := w.partSize - len(w.buf)
		if take > len(p) {
			take = len(p)
		}
		w.buf = append(w.buf, p[:take]...)
		p = p[take:]
		n += take
		if len(w.buf) == w.partSize {
			if err := w.dispatch(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Flush waits for every in-flight part and reports the first failure.
// Buffered bytes short of a full part stay buffered.
func (w *MultipartWriter) Flush() error {
	if err := w.check(); err != nil {
		return err
	}
	return w.drain()
}

// Close uploads the buffered tail, waits for all parts and completes the
// upload. On error the upload is left open for the caller to Abort.
func (w *MultipartWriter) Close() error {
	if err := w.check(); err != nil {
		return err
	}
	if len(w.buf) > 0 {
		if err := w.dispatch(); err != nil {
			return err
		}
	}
	if err := w.drain(); err != nil {
		return err
	}
	if len(w.parts) == 0 {
		return ErrNoParts
	}
	parts := make([]PartID, len(w.parts))
	for i, p := range w.parts {
		parts[i] = *p
	}
	if err := w.uploader.Complete(w.parent, parts); err != nil {
		w.err = err
		return err
	}
	w.state = stateCompleted
	return nil
}

// Abort waits for in-flight parts to settle and discards the upload. The
// writer is unusable afterwards even if the remote call fails.
func (w *MultipartWriter) Abort() error {
	if w.state == stateCompleted || w.state == stateAborted {
		return ErrUploadClosed
	}
	_ = w.group.Wait()
	w.state = stateAborted
	w.buf = nil
	return w.uploader.Abort(w.parent)
}

func (w *MultipartWriter) check() error {
	if w.state == stateCompleted || w.state == stateAborted {
		return ErrUploadClosed
	}
	if w.err != nil {
		return w.err
	}
	if w.gctx.Err() != nil {
		return w.drain()
	}
	return nil
}

// drain waits for the current slots. The group context dies with Wait, so a
// fresh group is started for later parts.
func (w *MultipartWriter) drain() error {
	err := w.group.Wait()
	if err == nil {
		err = w.parent.Err()
	}
	if err != nil {
		w.err = err
		return err
	}
	w.resetGroup()
	return nil
}

func (w *MultipartWriter) dispatch() error {
	data := w.buf
	w.buf = make([]byte, 0, w.partSize)

	idx := len(w.parts)
	slot := &PartID{Number: idx + 1}
	w.parts = append(w.parts, slot)
	w.state = stateUploading

	ctx := w.gctx
	w.group.Go(func() error {
		id, err := w.uploader.PutPart(ctx, data, idx)
		if err != nil {
			return err
		}
		*slot = id
		return nil
	})
	if w.gctx.Err() != nil {
		return w.drain()
	}
	return nil
}
