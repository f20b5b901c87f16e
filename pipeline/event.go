package pipeline

// EventType is emitted by the runner and units for observability.
type EventType string

const (
	EventTypeRunStarted       EventType = "run_started"
	EventTypeStepCompleted    EventType = "step_completed"
	EventTypeGroupCompleted   EventType = "group_completed"
	EventTypeRunSuspended     EventType = "run_suspended"
	EventTypeDecisionRecorded EventType = "decision_recorded"
	EventTypeRunCompleted     EventType = "run_completed"
	EventTypeRunFailed        EventType = "run_failed"
	EventTypeRunCancelled     EventType = "run_cancelled"
	EventTypeRunCheckpoint    EventType = "run_checkpoint"
	EventTypeCommandApplied   EventType = "command_applied"
)

// Event is intentionally compact so adapters can map it to logs, metrics, or
// streams.
type Event struct {
	RunID       RunID       `json:"run_id"`
	Unit        string      `json:"unit,omitempty"`
	Type        EventType   `json:"type"`
	CommandKind CommandKind `json:"command_kind,omitempty"`
	Key         string      `json:"key,omitempty"`
	Description string      `json:"description,omitempty"`
}
