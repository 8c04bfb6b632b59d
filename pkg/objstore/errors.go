package objstore

import (
	"errors"
	"fmt"
)

// Done is returned by ObjectIterator.Next when no objects remain.
var Done = errors.New("no more objects in iterator")

// Kind classifies a store failure independently of the backend.
type Kind int

const (
	KindGeneric Kind = iota
	KindNotFound
	KindNotModified
	KindPrecondition
	KindNotSupported
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindNotModified:
		return "not modified"
	case KindPrecondition:
		return "precondition failed"
	case KindNotSupported:
		return "operation not supported"
	case KindInvalidArgument:
		return "invalid argument"
	default:
		return "generic error"
	}
}

// Error is the single error shape returned by every store. Err is the
// backend failure, unchanged.
type Error struct {
	Store string
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Store, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Store, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or KindGeneric.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindGeneric
}

// IsNotFound reports whether err means the object or upload does not exist.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// IsNotModified reports whether err is an if-none-match or
// if-modified-since hit.
func IsNotModified(err error) bool {
	return err != nil && KindOf(err) == KindNotModified
}

// IsPrecondition reports whether err is a failed if-match or
// if-unmodified-since condition.
func IsPrecondition(err error) bool {
	return err != nil && KindOf(err) == KindPrecondition
}

// IsNotSupported reports whether the store cannot perform the operation.
func IsNotSupported(err error) bool {
	return err != nil && KindOf(err) == KindNotSupported
}
