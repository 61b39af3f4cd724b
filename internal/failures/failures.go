// File: internal/failures/failures.go
package failures

import (
	"errors"
	"fmt"

	"github.com/avasilev/shopbridge/api/schemas"
)

// Kind classifies why a scenario failed.
type Kind string

const (
	// KindContract is a server answer that breaks the API contract: an
	// unexpected status, a missing cookie or a missing JSON field.
	KindContract Kind = "contract"
	// KindAssertion is a UI state that does not match the expectation.
	KindAssertion Kind = "assertion"
	// KindAcquisition means a browser or session could not be started.
	KindAcquisition Kind = "acquisition"
	// KindUnknown covers errors that were never classified, such as a
	// transport error or a cancelled context.
	KindUnknown Kind = "unknown"
)

// Error is a classified failure carrying the evidence collected when it happened.
type Error struct {
	Kind        Kind
	Op          string
	Msg         string
	Err         error
	Attachments []schemas.Attachment
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op == "" {
		return fmt.Sprintf("%s failure: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s failure: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Attach adds evidence to the failure and returns it for chaining.
func (e *Error) Attach(a ...schemas.Attachment) *Error {
	e.Attachments = append(e.Attachments, a...)
	return e
}

// Contract builds a contract failure.
func Contract(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindContract, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Assertion builds an assertion failure.
func Assertion(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindAssertion, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Acquisition wraps an error raised while starting a browser or session.
func Acquisition(op string, err error) *Error {
	return &Error{Kind: KindAcquisition, Op: op, Msg: "could not acquire browser session", Err: err}
}

// Wrap classifies err under kind unless it is already a classified failure,
// in which case err is returned unchanged.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first classified failure in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// AttachmentsOf collects the attachments of every classified failure in err's chain.
func AttachmentsOf(err error) []schemas.Attachment {
	var out []schemas.Attachment
	for err != nil {
		if fe, ok := err.(*Error); ok {
			out = append(out, fe.Attachments...)
		}
		err = errors.Unwrap(err)
	}
	return out
}
