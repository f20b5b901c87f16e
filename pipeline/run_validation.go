package pipeline

import (
	"errors"
	"fmt"
)

// ValidateRunState checks structural run-state invariants before persistence
// boundaries.
func ValidateRunState(state RunState) error {
	if state.ID == "" {
		return errors.Join(
			ErrRunStateInvalid,
			fmt.Errorf("%w: field=id reason=empty", ErrInvalidRunID),
		)
	}
	if state.Version < 0 {
		return fmt.Errorf(
			"%w: field=version reason=negative value=%d run_id=%q",
			ErrRunStateInvalid,
			state.Version,
			state.ID,
		)
	}
	if state.Cursor < 0 {
		return fmt.Errorf(
			"%w: field=cursor reason=negative value=%d run_id=%q",
			ErrRunStateInvalid,
			state.Cursor,
			state.ID,
		)
	}
	if !isKnownRunStatus(state.Status) {
		return fmt.Errorf(
			"%w: field=status reason=unknown value=%q run_id=%q",
			ErrRunStateInvalid,
			state.Status,
			state.ID,
		)
	}
	if state.Status == RunStatusSuspended {
		if state.Pending == nil {
			return fmt.Errorf(
				"%w: field=pending_approval reason=nil-while-suspended run_id=%q",
				ErrRunStateInvalid,
				state.ID,
			)
		}
		if state.Pending.Status != ApprovalStatusAwaiting {
			return fmt.Errorf(
				"%w: field=pending_approval.status reason=resolved-while-suspended value=%q run_id=%q",
				ErrRunStateInvalid,
				state.Pending.Status,
				state.ID,
			)
		}
	}
	if state.Pending != nil && state.Pending.RunID != state.ID {
		return fmt.Errorf(
			"%w: field=pending_approval.run_id reason=mismatch value=%q run_id=%q",
			ErrRunStateInvalid,
			state.Pending.RunID,
			state.ID,
		)
	}
	return nil
}

func isKnownRunStatus(status RunStatus) bool {
	switch status {
	case RunStatusPending,
		RunStatusRunning,
		RunStatusSuspended,
		RunStatusCancelled,
		RunStatusCompleted,
		RunStatusFailed:
		return true
	default:
		return false
	}
}
