package objstore

import (
	"errors"
	"io"
)

// ErrPayloadClosed is returned when reading a payload after Close.
var ErrPayloadClosed = errors.New("payload already closed")

// payload is a one-shot body stream. Transport failures are surfaced as
// *Error carrying the store name; io.EOF passes through untouched.
type payload struct {
	store  string
	body   io.ReadCloser
	closed bool
	err    error
}

// NewPayload wraps a backend response body for use as GetResult.Payload.
func NewPayload(store string, body io.ReadCloser) io.ReadCloser {
	return &payload{store: store, body: body}
}

func (p *payload) Read(b []byte) (int, error) {
	if p.closed {
		return 0, ErrPayloadClosed
	}
	if p.err != nil {
		return 0, p.err
	}
	n, err := p.body.Read(b)
	switch {
	case err == nil:
	case err == io.EOF:
		p.err = io.EOF
	default:
		p.err = &Error{Store: p.store, Kind: KindGeneric, Err: err}
		err = p.err
	}
	return n, err
}

func (p *payload) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.body.Close()
}
