package store

import (
	"errors"
	"fmt"
)

var (
	// ErrDraftBusy indicates a draft was requested while another is still
	// open on the same cell.
	ErrDraftBusy = errors.New("store: draft already open")
	// ErrDraftClosed indicates an operation on a committed or discarded
	// draft.
	ErrDraftClosed = errors.New("store: draft closed")
)

// Reason classifies why a commit failed.
type Reason string

const (
	// ReasonInvalid means the draft value failed validation. Nothing was
	// persisted or pushed and the draft stays open for correction.
	ReasonInvalid Reason = "invalid"
	// ReasonRejected means the engine refused the new configuration. The
	// previous value was restored and re-pushed.
	ReasonRejected Reason = "rejected"
)

// CommitError reports a failed commit for one domain.
type CommitError struct {
	Domain string
	Reason Reason
	Detail string
	Err    error
}

func (e *CommitError) Error() string {
	if e == nil {
		return "<nil>"
	}
	detail := e.Detail
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	if detail == "" {
		return fmt.Sprintf("store: commit %s: %s", e.Domain, e.Reason)
	}
	return fmt.Sprintf("store: commit %s: %s: %s", e.Domain, e.Reason, detail)
}

func (e *CommitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsInvalid reports whether err is a commit validation failure.
func IsInvalid(err error) bool {
	var commitErr *CommitError
	return errors.As(err, &commitErr) && commitErr.Reason == ReasonInvalid
}

// IsRejected reports whether err is an engine rejection.
func IsRejected(err error) bool {
	var commitErr *CommitError
	return errors.As(err, &commitErr) && commitErr.Reason == ReasonRejected
}
