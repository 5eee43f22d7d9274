package feed

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure of a fetch or mutation.
type ErrorKind string

const (
	// KindNotAuthenticated: an operation needed a signed-in identity and had none.
	KindNotAuthenticated ErrorKind = "NOT_AUTHENTICATED"
	// KindNetwork: the request never produced an HTTP response.
	KindNetwork ErrorKind = "NETWORK_FAILURE"
	// KindServer: the backend answered with a non-2xx status.
	KindServer ErrorKind = "SERVER_ERROR"
	// KindDataShape: the response body matched none of the tolerated shapes.
	KindDataShape ErrorKind = "DATA_SHAPE_ERROR"
	// KindValidation: a required input was empty or unknown.
	KindValidation ErrorKind = "VALIDATION_ERROR"
	// KindStorageUpload: the blob store rejected an upload.
	KindStorageUpload ErrorKind = "STORAGE_UPLOAD_ERROR"
)

// Error is the error type returned by fetches and mutations.
type Error struct {
	Kind ErrorKind

	// Op is the operation that failed (e.g. "fetch timeline", "toggle like").
	Op string

	// Status is the HTTP status for KindServer, zero otherwise.
	Status int

	// Message is the user-facing message, if any.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrNotAuthenticated = &Error{Kind: KindNotAuthenticated}
	ErrNetwork          = &Error{Kind: KindNetwork}
	ErrServer           = &Error{Kind: KindServer}
	ErrDataShape        = &Error{Kind: KindDataShape}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrStorageUpload    = &Error{Kind: KindStorageUpload}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if msg != "" && e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if msg == "" {
		msg = string(e.Kind)
	}

	switch {
	case e.Op != "" && e.Status != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	default:
		return msg
	}
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind. The sentinels above carry no
// operation, so errors.Is(err, ErrServer) matches any server error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// NotAuthenticated returns an error for an operation attempted without a
// signed-in identity.
func NotAuthenticated(op string) *Error {
	return &Error{Kind: KindNotAuthenticated, Op: op, Message: "not signed in"}
}

// NetworkFailure wraps a transport-level error.
func NetworkFailure(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// ServerError describes a non-2xx response.
func ServerError(op string, status int, message string) *Error {
	return &Error{Kind: KindServer, Op: op, Status: status, Message: message}
}

// DataShape wraps a decoding failure of a response body.
func DataShape(op string, err error) *Error {
	return &Error{Kind: KindDataShape, Op: op, Err: err}
}

// Validation describes rejected input.
func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// StorageUpload wraps a blob store failure.
func StorageUpload(op string, err error) *Error {
	return &Error{Kind: KindStorageUpload, Op: op, Err: err}
}

// withOp returns a copy of err's *Error (if any) relabelled with op.
// Errors of other types are wrapped as network failures.
func withOp(op string, err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		c := *fe
		c.Op = op
		return &c
	}
	return NetworkFailure(op, err)
}
