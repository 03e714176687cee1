package upstream

import "github.com/pkg/errors"

// ErrorKind classifies every upstream failure into the four kinds named in
// spec.md §4.1 and §7. Dispatch on it is an exhaustive switch, never a
// string comparison.
type ErrorKind int

const (
	// KindTransient covers timeouts, 5xx responses, and DNS-class
	// failures. Retried per spec.md §4.1.
	KindTransient ErrorKind = iota
	// KindNotFound covers HTTP 404: a negative result, not an error.
	KindNotFound
	// KindMalformed covers a response body that fails to decode into its
	// expected shape.
	KindMalformed
	// KindUnauthorized covers HTTP 401/403.
	KindUnauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not-found"
	case KindMalformed:
		return "malformed"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Error wraps a classified upstream failure, keeping the offending
// endpoint around for logging.
type Error struct {
	Kind     ErrorKind
	Endpoint string
	cause    error
}

func (e *Error) Error() string {
	return e.Kind.String() + " calling " + e.Endpoint + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr.Kind == kind
	}
	return false
}

// IsNotFound reports whether err represents a negative result rather than
// a true error (spec.md §7: "does not count toward retries").
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsTransient reports whether err should be retried per spec.md §4.1.
func IsTransient(err error) bool {
	return IsKind(err, KindTransient)
}

func classify(kind ErrorKind, endpoint string, cause error) error {
	return &Error{Kind: kind, Endpoint: endpoint, cause: cause}
}
