package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ApprovalStatus tracks the lifecycle of one pending external decision.
type ApprovalStatus string

const (
	ApprovalStatusAwaiting ApprovalStatus = "awaiting"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// PendingApproval is the durable record of a suspension point: created when a
// suspendable step first executes, resolved exactly once by an external
// decision, and kept on the run afterwards so duplicate decisions can be
// recognized.
type PendingApproval struct {
	RunID      RunID          `json:"run_id"`
	StepName   string         `json:"step_name"`
	Payload    map[string]any `json:"payload,omitempty"`
	Status     ApprovalStatus `json:"status"`
	Reviewer   string         `json:"reviewer,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	ResolvedAt time.Time      `json:"resolved_at,omitzero"`
}

func (p *PendingApproval) Resolved() bool {
	return p != nil && p.Status != ApprovalStatusAwaiting
}

func (p *PendingApproval) Approved() bool {
	return p != nil && p.Status == ApprovalStatusApproved
}

// ClonePendingApproval returns a deep copy safe for in-memory stores.
func ClonePendingApproval(in *PendingApproval) *PendingApproval {
	if in == nil {
		return nil
	}
	out := *in
	if in.Payload != nil {
		out.Payload = cloneValue(in.Payload).(map[string]any)
	}
	return &out
}

// SuspendError signals that the run must halt at the current cursor awaiting
// an external decision. It is not a failure.
type SuspendError struct {
	Approval *PendingApproval
}

func (e *SuspendError) Error() string {
	if e == nil || e.Approval == nil {
		return "run suspended awaiting decision"
	}
	return fmt.Sprintf(
		"run %q suspended awaiting decision for step %q",
		e.Approval.RunID,
		e.Approval.StepName,
	)
}

// PayloadFunc computes the decision summary shown to the approver from the
// context as of the suspension point.
type PayloadFunc func(snapshot Snapshot) (map[string]any, error)

// SuspendableStepSpec declares a step that pauses the run for an external
// boolean decision before writing its output.
type SuspendableStepSpec struct {
	Name      string
	Reads     []string
	OutputKey string
	Payload   PayloadFunc
}

// SuspendableStep halts the run on first execution and commits its output
// once the recorded approval is resolved. Re-executing after the output is
// committed is a cached no-op, which makes duplicate resume calls harmless.
type SuspendableStep struct {
	name    string
	reads   []string
	output  string
	payload PayloadFunc
}

var _ Unit = (*SuspendableStep)(nil)

func NewSuspendableStep(spec SuspendableStepSpec) (*SuspendableStep, error) {
	if spec.Name == "" {
		return nil, errors.New("suspendable step name is required")
	}
	if spec.OutputKey == "" {
		return nil, fmt.Errorf("suspendable step %q: output key is required", spec.Name)
	}
	if spec.Payload == nil {
		return nil, fmt.Errorf("suspendable step %q: payload func is required", spec.Name)
	}
	reads := make([]string, len(spec.Reads))
	copy(reads, spec.Reads)
	return &SuspendableStep{
		name:    spec.Name,
		reads:   reads,
		output:  spec.OutputKey,
		payload: spec.Payload,
	}, nil
}

func (s *SuspendableStep) suspendable() {}

func (s *SuspendableStep) Name() string {
	return s.name
}

func (s *SuspendableStep) ReadKeys() []string {
	out := make([]string, len(s.reads))
	copy(out, s.reads)
	return out
}

func (s *SuspendableStep) OutputKeys() []string {
	return []string{s.output}
}

func (s *SuspendableStep) Execute(ctx context.Context, ec *ExecutionContext, scope *Scope) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if owner, ok := ec.Owner(s.output); ok {
		if owner != s.name {
			return &StepError{
				Step: s.name,
				Err:  fmt.Errorf("%w: key %q owned by %q", ErrDuplicateKey, s.output, owner),
			}
		}
		scope.Cursor++
		return nil
	}

	if pending := scope.Pending; pending != nil && pending.StepName == s.name && pending.Resolved() {
		output := map[string]any{
			"approved": pending.Approved(),
			"status":   string(pending.Status),
			"reviewer": pending.Reviewer,
		}
		if err := ec.Set(s.name, s.output, output); err != nil {
			return &StepError{Step: s.name, Err: err}
		}
		scope.Cursor++
		scope.publish(ctx, Event{
			RunID: scope.RunID,
			Unit:  s.name,
			Type:  EventTypeStepCompleted,
			Key:   s.output,
		})
		return nil
	}

	snapshot := ec.Snapshot()
	if _, err := resolveInputs(s.name, s.reads, snapshot); err != nil {
		return err
	}
	payload, err := s.payload(snapshot)
	if err != nil {
		return &StepError{Step: s.name, Err: err}
	}

	scope.Pending = &PendingApproval{
		RunID:     scope.RunID,
		StepName:  s.name,
		Payload:   payload,
		Status:    ApprovalStatusAwaiting,
		CreatedAt: scope.now(),
	}
	return &SuspendError{Approval: scope.Pending}
}
