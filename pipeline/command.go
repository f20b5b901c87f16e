package pipeline

// CommandKind identifies the command mutation route.
type CommandKind string

const (
	CommandKindStart    CommandKind = "start"
	CommandKindDecision CommandKind = "decision"
	CommandKindCancel   CommandKind = "cancel"
)

// Command is the typed runner mutation contract.
type Command interface {
	Kind() CommandKind
}

// StartCommand starts a new run.
type StartCommand struct {
	Input StartInput
}

func (StartCommand) Kind() CommandKind {
	return CommandKindStart
}

// DecisionCommand resolves a suspended run's pending approval and resumes it.
// It is the only resume entry point.
type DecisionCommand struct {
	RunID    RunID
	StepName string
	Approved bool
	Reviewer string
}

func (DecisionCommand) Kind() CommandKind {
	return CommandKindDecision
}

// CancelCommand cancels an existing non-terminal run.
type CancelCommand struct {
	RunID RunID
}

func (CancelCommand) Kind() CommandKind {
	return CommandKindCancel
}
