package pipeline

// RunID is the stable identifier for one pipeline execution.
type RunID string

// RunStatus captures coarse execution state for persistence and orchestration.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSuspended RunStatus = "suspended"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// seedOwner is the context owner recorded for initial input keys.
const seedOwner = "input"

// StartInput configures a fresh run. Seed values are written into the context
// before the first step executes.
type StartInput struct {
	RunID RunID
	Seed  map[string]any
}

// RunState is the durable state of one run: status, cursor, the shared
// context, and the approval record when one exists.
type RunState struct {
	ID      RunID             `json:"id"`
	Version int64             `json:"version"`
	Status  RunStatus         `json:"status"`
	Cursor  int               `json:"cursor"`
	Context *ExecutionContext `json:"context,omitempty"`
	Pending *PendingApproval  `json:"pending_approval,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// CloneRunState returns a deep copy safe for in-memory stores.
func CloneRunState(in RunState) RunState {
	out := in
	if in.Context != nil {
		out.Context = in.Context.Clone()
	}
	out.Pending = ClonePendingApproval(in.Pending)
	return out
}

// RunResult is returned by the runner API. State.Status is the variant tag:
// completed results carry the final context, suspended results carry the
// pending approval payload, failed results carry the error.
type RunResult struct {
	State RunState
}

func (r RunResult) Completed() bool {
	return r.State.Status == RunStatusCompleted
}

func (r RunResult) Suspended() bool {
	return r.State.Status == RunStatusSuspended
}

func (r RunResult) Failed() bool {
	return r.State.Status == RunStatusFailed
}
