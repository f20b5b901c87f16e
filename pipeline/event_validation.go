package pipeline

import "fmt"

// ValidateEvent checks event payload invariants before publish boundaries.
func ValidateEvent(event Event) error {
	if event.Type == "" {
		return fmt.Errorf("%w: field=type reason=empty", ErrEventInvalid)
	}
	if event.RunID == "" {
		return fmt.Errorf("%w: field=run_id reason=empty type=%s", ErrEventInvalid, event.Type)
	}

	switch event.Type {
	case EventTypeCommandApplied:
		if event.CommandKind == "" {
			return fmt.Errorf(
				"%w: field=command_kind reason=empty type=%s run_id=%q",
				ErrEventInvalid,
				event.Type,
				event.RunID,
			)
		}
	case EventTypeStepCompleted:
		if event.Unit == "" {
			return fmt.Errorf(
				"%w: field=unit reason=empty type=%s run_id=%q",
				ErrEventInvalid,
				event.Type,
				event.RunID,
			)
		}
		if event.Key == "" {
			return fmt.Errorf(
				"%w: field=key reason=empty type=%s run_id=%q unit=%q",
				ErrEventInvalid,
				event.Type,
				event.RunID,
				event.Unit,
			)
		}
	case EventTypeGroupCompleted, EventTypeRunSuspended, EventTypeDecisionRecorded:
		if event.Unit == "" {
			return fmt.Errorf(
				"%w: field=unit reason=empty type=%s run_id=%q",
				ErrEventInvalid,
				event.Type,
				event.RunID,
			)
		}
	}

	return nil
}
