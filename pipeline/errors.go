package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrKeyNotFound is returned when a context read names an absent key.
	ErrKeyNotFound = errors.New("context key not found")
	// ErrDuplicateKey is returned when a step writes a key owned by another step.
	ErrDuplicateKey = errors.New("context key already owned by another step")
	// ErrGroupInvalid is returned by group constructors for rejected shapes.
	ErrGroupInvalid = errors.New("invalid group construction")
	// ErrRunNotFound is returned by run stores when a run ID is unknown.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunVersionConflict is returned by run stores on optimistic save conflicts.
	ErrRunVersionConflict = errors.New("run version conflict")
	// ErrUnknownPendingApproval is returned when a decision targets no matching
	// outstanding approval, or attempts to flip one already resolved.
	ErrUnknownPendingApproval = errors.New("unknown pending approval")

	ErrRunNotResumable   = errors.New("run is not resumable")
	ErrRunNotCancellable = errors.New("run is not cancellable")

	ErrInvalidRunID              = errors.New("run id is invalid")
	ErrInvalidRunStateTransition = errors.New("invalid run status transition")
	ErrRunStateInvalid           = errors.New("run state is invalid")
	ErrEventInvalid              = errors.New("event is invalid")
	ErrEventPublish              = errors.New("event publish failed")
	ErrOutputContractViolation   = errors.New("pipeline output contract violation")

	ErrContextNil         = errors.New("context is nil")
	ErrCommandNil         = errors.New("command is nil")
	ErrCommandInvalid     = errors.New("command payload is invalid")
	ErrCommandUnsupported = errors.New("command kind is unsupported")

	ErrMissingIDGenerator = errors.New("id generator is required")
	ErrMissingRunStore    = errors.New("run store is required")
	ErrMissingPipeline    = errors.New("root pipeline unit is required")
)

// ExecutorErrorKind distinguishes retryable executor failures from final ones.
type ExecutorErrorKind string

const (
	ExecutorErrorTransient ExecutorErrorKind = "transient"
	ExecutorErrorPermanent ExecutorErrorKind = "permanent"
)

// ExecutorError classifies a delegated generation failure.
type ExecutorError struct {
	Kind ExecutorErrorKind
	Err  error
}

func (e *ExecutorError) Error() string {
	if e == nil {
		return "executor error"
	}
	if e.Err == nil {
		return fmt.Sprintf("executor error (%s)", e.Kind)
	}
	return fmt.Sprintf("executor error (%s): %s", e.Kind, e.Err.Error())
}

func (e *ExecutorError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TransientExecutorError wraps err as a retryable executor failure.
func TransientExecutorError(err error) *ExecutorError {
	return &ExecutorError{Kind: ExecutorErrorTransient, Err: err}
}

// PermanentExecutorError wraps err as a non-retryable executor failure.
func PermanentExecutorError(err error) *ExecutorError {
	return &ExecutorError{Kind: ExecutorErrorPermanent, Err: err}
}

// IsTransient reports whether err carries a transient executor classification.
func IsTransient(err error) bool {
	var executorErr *ExecutorError
	if !errors.As(err, &executorErr) {
		return false
	}
	return executorErr.Kind == ExecutorErrorTransient
}

// ToolError reports a tool capability failure, including argument contract
// violations.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	if e == nil {
		return "tool error"
	}
	if e.Err == nil {
		return fmt.Sprintf("tool %q failed", e.Tool)
	}
	return fmt.Sprintf("tool %q failed: %s", e.Tool, e.Err.Error())
}

func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StepError reports a step failure after its retry policy is exhausted. It
// aborts the enclosing group.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	if e == nil {
		return "step failed"
	}
	if e.Err == nil {
		return fmt.Sprintf("step %q failed", e.Step)
	}
	return fmt.Sprintf("step %q failed: %s", e.Step, e.Err.Error())
}

func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether starting a fresh run could succeed, i.e. the
// underlying cause was transient.
func (e *StepError) Retryable() bool {
	if e == nil {
		return false
	}
	return IsTransient(e.Err)
}

// GroupError aggregates child failures from one group execution. A parallel
// group carries one entry per failed child; a sequential group carries the
// single failure that aborted it.
type GroupError struct {
	Group    string
	Failures []error
}

func (e *GroupError) Error() string {
	if e == nil {
		return "group failed"
	}
	if len(e.Failures) == 0 {
		return fmt.Sprintf("group %q failed", e.Group)
	}
	messages := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		messages = append(messages, failure.Error())
	}
	return fmt.Sprintf(
		"group %q failed (%d): %s",
		e.Group,
		len(e.Failures),
		strings.Join(messages, "; "),
	)
}

func (e *GroupError) Unwrap() []error {
	if e == nil {
		return nil
	}
	return e.Failures
}
