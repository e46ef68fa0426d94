// Package syncerrors defines the error taxonomy shared by the cache,
// pagination, and entity layers. Every error crossing a package boundary is
// classifiable into exactly one Kind so that callers can map failures to
// transport responses (and retry policy) without string matching.
package syncerrors

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// Kind classifies an error for the caller.
type Kind uint8

const (
	// KindUnknown is the zero Kind; errors without explicit classification.
	KindUnknown Kind = iota
	// KindNotFound: the addressed entity does not exist. Caches treat this
	// as a miss; HTTP layers map it to 404.
	KindNotFound
	// KindConflict: a uniqueness constraint on a secondary key would be
	// violated. The write was rejected with no partial mutation.
	KindConflict
	// KindValidation: the request was malformed (unknown sort field,
	// out-of-range limit). Rejected before touching store or cache.
	KindValidation
	// KindTransientStore: connection/timeout class failures from the
	// repository adapter. Eligible for caller-level retry with backoff;
	// never retried silently inside this library.
	KindTransientStore
	// KindChannelDelivery: best-effort push delivery failed. Never surfaced
	// to the write path; a write's success does not depend on delivery.
	KindChannelDelivery
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindTransientStore:
		return "transient_store"
	case KindChannelDelivery:
		return "channel_delivery"
	default:
		return "unknown"
	}
}

// Error carries a Kind alongside the underlying cause.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Kind() Kind    { return e.kind }

// New creates a classified error with the given message.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, err: errors.New(msg)}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, err: errors.Errorf(format, args...)}
}

// Wrap classifies an existing error and annotates it with msg. Returns nil
// if err is nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: errors.Wrap(err, msg)}
}

// Wrapf classifies an existing error and annotates it with a formatted
// message. Returns nil if err is nil.
func Wrapf(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: errors.Wrapf(err, format, args...)}
}

// KindOf walks the error chain and returns the first explicit Kind found,
// or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is classified KindNotFound.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is classified KindConflict.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsValidation reports whether err is classified KindValidation.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsTransientStore reports whether err is classified KindTransientStore.
func IsTransientStore(err error) bool { return KindOf(err) == KindTransientStore }
