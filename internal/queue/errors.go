package queue

import "fmt"

// Kind classifies a queue.Error so that callers (the HTTP frontend, in
// particular) can map it onto a status code without inspecting message text.
type Kind int

const (
	// Internal marks an error that does not fit NotFound or InvalidArguments;
	// it should surface as a 500 at the HTTP edge.
	Internal Kind = iota
	// NotFound means the requested account, queue or message does not exist,
	// or a scan produced zero rows after filtering.
	NotFound
	// InvalidArguments means a filter or attribute value failed validation
	// (an unknown detail level, a non-numeric limit/wait/ttl/hide, an
	// invalid account/queue/message name, ...).
	InvalidArguments
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InvalidArguments:
		return "invalid_arguments"
	default:
		return "internal"
	}
}

// Error is the error type every Engine method returns for expected failure
// conditions. It is comparable by Kind via errors.Is.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is a *Error with the same Kind, so that
// errors.Is(err, queue.ErrNotFound) style checks work against sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel values for use with errors.Is. Only Kind is compared, not Message.
var (
	ErrNotFound         = &Error{Kind: NotFound}
	ErrInvalidArguments = &Error{Kind: InvalidArguments}
)

// NewNotFound builds a NotFound error with a formatted message.
func NewNotFound(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidArguments builds an InvalidArguments error with a formatted message.
func NewInvalidArguments(format string, args ...any) *Error {
	return &Error{Kind: InvalidArguments, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind of err, defaulting to Internal for errors that are
// not *Error (e.g. a raw driver error bubbling out of the relational engine).
func KindOf(err error) Kind {
	var qe *Error
	if as(err, &qe) {
		return qe.Kind
	}
	return Internal
}

// as is a tiny indirection over errors.As kept local to avoid importing
// "errors" into every call site that only wants KindOf.
func as(err error, target **Error) bool {
	for err != nil {
		if qe, ok := err.(*Error); ok {
			*target = qe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
