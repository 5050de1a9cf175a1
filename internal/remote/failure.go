package remote

import "errors"

// FailureKind classifies how a backend call went wrong. Every non-nil error
// returned by Client wraps a *Failure, so callers can branch on the kind
// instead of string-matching transport errors.
type FailureKind string

const (
	// KindServerRejected means the backend responded with a failure payload
	// or a non-2xx status. Message carries the server-supplied text.
	KindServerRejected FailureKind = "server_rejected"
	// KindUnreachable means no usable response arrived: dial failure,
	// timeout, or a dropped connection.
	KindUnreachable FailureKind = "unreachable"
	// KindMalformedResponse means a response arrived but could not be
	// decoded into the expected envelope shape.
	KindMalformedResponse FailureKind = "malformed_response"
)

// Failure is the uniform failure signal for all backend calls.
type Failure struct {
	Kind    FailureKind
	Message string
	Status  int   // HTTP status when one was received, 0 otherwise
	Err     error // underlying transport or decode error, may be nil
}

func (f *Failure) Error() string {
	if f.Message != "" {
		return string(f.Kind) + ": " + f.Message
	}
	if f.Err != nil {
		return string(f.Kind) + ": " + f.Err.Error()
	}
	return string(f.Kind)
}

func (f *Failure) Unwrap() error { return f.Err }

func serverRejected(status int, message string) *Failure {
	if message == "" {
		message = "backend rejected the request"
	}
	return &Failure{Kind: KindServerRejected, Status: status, Message: message}
}

func unreachable(err error) *Failure {
	return &Failure{Kind: KindUnreachable, Message: "backend not reachable", Err: err}
}

func malformed(status int, err error) *Failure {
	return &Failure{Kind: KindMalformedResponse, Status: status, Message: "unexpected response shape", Err: err}
}

// KindOf extracts the failure kind from an error chain. Returns the empty
// string for nil or foreign errors.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsUnreachable reports whether err stems from a backend that never
// answered. Used by the store to decide on the degraded fallback.
func IsUnreachable(err error) bool {
	return KindOf(err) == KindUnreachable
}
