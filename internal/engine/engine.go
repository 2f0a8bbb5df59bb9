package engine

import (
	"context"
	"fmt"
)

// Status is the lifecycle state of one statement execution.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSubmitted Status = "SUBMITTED"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	// StatusTimeout is synthesized by the orchestrator when the poll
	// deadline expires; no backend reports it.
	StatusTimeout Status = "TIMEOUT"
)

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	default:
		return false
	}
}

// Statement is one rendered SQL statement ready for execution.
type Statement struct {
	Name string
	SQL  string
	DDL  bool
}

// Handle identifies an in-flight execution. Synchronous backends return a
// handle whose Status is already terminal; the orchestrator then skips the
// polling state entirely.
type Handle struct {
	ID     string
	Name   string
	DDL    bool
	Status Status
}

// Artifact is the persisted result of a terminal execution. RowCount is
// negative when the backend does not report one.
type Artifact struct {
	Location string
	RowCount int64
}

// Engine is the capability surface shared by the cloud and local backends.
type Engine interface {
	Submit(ctx context.Context, stmt Statement) (Handle, error)
	Poll(ctx context.Context, handle Handle) (Status, error)
	Fetch(ctx context.Context, handle Handle) (Artifact, error)
}

// ExecutionError reports an engine-side failure: the cloud engine reached
// FAILED or CANCELLED, or the local engine hit a parse/runtime error. It
// carries enough context to reproduce the statement.
type ExecutionError struct {
	Query      string
	Mode       string
	State      Status
	Diagnostic string
}

func (e *ExecutionError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("query %q %s (%s mode)", e.Query, e.State, e.Mode)
	}
	return fmt.Sprintf("query %q %s (%s mode): %s", e.Query, e.State, e.Mode, e.Diagnostic)
}
