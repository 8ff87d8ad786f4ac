package elasticsearch

import (
	"errors"
	"fmt"

	"github.com/nimburion/esbench/pkg/config"
	"github.com/nimburion/esbench/pkg/store"
	"github.com/nimburion/esbench/pkg/store/search"
	"github.com/nimburion/esbench/pkg/ycsb"
)

// ErrorKind classifies binding failures.
type ErrorKind int

const (
	// KindNotFound means the addressed document or index does not exist.
	KindNotFound ErrorKind = iota + 1
	// KindTransport covers I/O failures and unexpected engine responses.
	KindTransport
	// KindSerialization covers request encoding and response decoding failures.
	KindSerialization
	// KindConfiguration covers invalid settings and arguments.
	KindConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	case KindSerialization:
		return "serialization"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Status maps the kind onto the tri-state operation result.
func (k ErrorKind) Status() ycsb.Status {
	if k == KindNotFound {
		return ycsb.StatusNotFound
	}
	return ycsb.StatusError
}

// ErrNotInitialized is returned when an operation runs before Init succeeded.
var ErrNotInitialized = errors.New("elasticsearch binding is not initialized")

// Error is a classified binding failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or zero when err is not a binding error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(op string, kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// classify wraps err with the kind inferred from the sentinels it carries.
func classify(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, search.ErrNotFound):
		return newError(op, KindNotFound, err)
	case errors.Is(err, search.ErrSerialization):
		return newError(op, KindSerialization, err)
	case errors.Is(err, config.ErrPathHomeRequired),
		errors.Is(err, store.ErrInvalidEndpoint),
		errors.Is(err, ErrNotInitialized):
		return newError(op, KindConfiguration, err)
	default:
		return newError(op, KindTransport, err)
	}
}
