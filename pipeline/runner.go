package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Dependencies wires application services into the pipeline runner.
type Dependencies struct {
	IDGenerator IDGenerator
	RunStore    RunStore
	Pipeline    Unit
	EventSink   EventSink
	Now         func() time.Time
}

// Runner owns the run lifecycle: it seeds the context, executes the root
// unit, persists every status change, and is the sole resume entry point for
// suspended runs.
type Runner struct {
	idGen    IDGenerator
	store    RunStore
	pipeline Unit
	events   EventSink
	now      func() time.Time
}

func NewRunner(deps Dependencies) (*Runner, error) {
	if deps.IDGenerator == nil {
		return nil, fmt.Errorf("new runner: %w", ErrMissingIDGenerator)
	}
	if deps.RunStore == nil {
		return nil, fmt.Errorf("new runner: %w", ErrMissingRunStore)
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("new runner: %w", ErrMissingPipeline)
	}
	if deps.EventSink == nil {
		deps.EventSink = noopEventSink{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{
		idGen:    deps.IDGenerator,
		store:    deps.RunStore,
		pipeline: deps.Pipeline,
		events:   deps.EventSink,
		now:      deps.Now,
	}, nil
}

func publishEvent(ctx context.Context, sink EventSink, event Event) error {
	if err := sink.Publish(ctx, event); err != nil {
		return errors.Join(
			ErrEventPublish,
			fmt.Errorf(
				"type=%s run_id=%s unit=%s: %w",
				event.Type,
				event.RunID,
				event.Unit,
				err,
			),
		)
	}
	return nil
}

func sideEffectContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	if ctx.Err() != nil {
		return context.WithoutCancel(ctx)
	}
	return ctx
}

// validatePipelineOutput enforces the root unit's contract: executing a
// pipeline may only add context keys, never remove what earlier units wrote.
func validatePipelineOutput(priorKeys []string, ec *ExecutionContext) error {
	for _, key := range priorKeys {
		if _, ok := ec.Lookup(key); !ok {
			return fmt.Errorf(
				"%w: invariant=context_keys missing=%q",
				ErrOutputContractViolation,
				key,
			)
		}
	}
	return nil
}

// Dispatch executes a typed command against the run store.
func (r *Runner) Dispatch(ctx context.Context, cmd Command) (RunResult, error) {
	if ctx == nil {
		return RunResult{}, ErrContextNil
	}
	if isNilCommand(cmd) {
		return RunResult{}, ErrCommandNil
	}
	if reflect.ValueOf(cmd).Kind() == reflect.Pointer {
		return RunResult{}, fmt.Errorf("%w: kind=%s payload=%T", ErrCommandInvalid, cmd.Kind(), cmd)
	}

	switch command := cmd.(type) {
	case StartCommand:
		return r.dispatchStart(ctx, command)
	case DecisionCommand:
		return r.dispatchDecision(ctx, command)
	case CancelCommand:
		return r.dispatchCancel(ctx, command)
	default:
		switch kind := cmd.Kind(); kind {
		case CommandKindStart, CommandKindDecision, CommandKindCancel:
			return RunResult{}, fmt.Errorf("%w: kind=%s payload=%T", ErrCommandInvalid, kind, cmd)
		default:
			return RunResult{}, fmt.Errorf("%w: %s", ErrCommandUnsupported, kind)
		}
	}
}

func isNilCommand(cmd Command) bool {
	if cmd == nil {
		return true
	}

	value := reflect.ValueOf(cmd)
	return value.Kind() == reflect.Pointer && value.IsNil()
}

// Start begins a new run from seed input and executes until completion,
// suspension, or failure.
func (r *Runner) Start(ctx context.Context, input StartInput) (RunResult, error) {
	return r.Dispatch(ctx, StartCommand{Input: input})
}

// SubmitDecision resolves the pending approval identified by runID and
// stepName and resumes the run from its suspension point.
func (r *Runner) SubmitDecision(ctx context.Context, runID RunID, stepName string, approved bool) (RunResult, error) {
	return r.Dispatch(ctx, DecisionCommand{
		RunID:    runID,
		StepName: stepName,
		Approved: approved,
	})
}

// Resume resolves a run's sole outstanding approval without naming the step.
func (r *Runner) Resume(ctx context.Context, runID RunID, approved bool) (RunResult, error) {
	if ctx == nil {
		return RunResult{}, ErrContextNil
	}
	if runID == "" {
		return RunResult{}, fmt.Errorf("%w: command=%s", ErrInvalidRunID, CommandKindDecision)
	}
	state, err := r.store.Load(sideEffectContext(ctx), runID)
	if err != nil {
		return RunResult{}, err
	}
	if state.Pending == nil {
		return RunResult{State: state}, fmt.Errorf(
			"%w: run %q has no approval record",
			ErrUnknownPendingApproval,
			runID,
		)
	}
	return r.Dispatch(ctx, DecisionCommand{
		RunID:    runID,
		StepName: state.Pending.StepName,
		Approved: approved,
	})
}

// Cancel marks a non-terminal run as cancelled and persists the cancellation.
func (r *Runner) Cancel(ctx context.Context, runID RunID) (RunResult, error) {
	return r.Dispatch(ctx, CancelCommand{RunID: runID})
}

func (r *Runner) dispatchStart(ctx context.Context, cmd StartCommand) (RunResult, error) {
	input := cmd.Input
	runID := input.RunID
	if runID == "" {
		generated, err := r.idGen.NewRunID(ctx)
		if err != nil {
			return RunResult{}, err
		}
		runID = generated
		if runID == "" {
			return RunResult{}, fmt.Errorf("%w: command=%s", ErrInvalidRunID, CommandKindStart)
		}
	}

	state := RunState{
		ID:      runID,
		Context: NewExecutionContext(),
	}
	if err := TransitionRunStatus(&state, RunStatusPending); err != nil {
		return RunResult{}, err
	}
	seedKeys := make([]string, 0, len(input.Seed))
	for key := range input.Seed {
		seedKeys = append(seedKeys, key)
	}
	sort.Strings(seedKeys)
	for _, key := range seedKeys {
		if err := state.Context.Set(seedOwner, key, input.Seed[key]); err != nil {
			return RunResult{}, err
		}
	}

	sideEffectCtx := func() context.Context { return sideEffectContext(ctx) }

	if err := r.saveState(sideEffectCtx(), &state); err != nil {
		return RunResult{}, err
	}
	var eventErr error
	eventErr = errors.Join(eventErr, publishEvent(sideEffectCtx(), r.events, Event{
		RunID:       runID,
		Type:        EventTypeRunStarted,
		Description: "run persisted and ready for execution",
	}))

	result, runErr := r.executeRun(ctx, &state)
	eventErr = errors.Join(eventErr, publishEvent(sideEffectCtx(), r.events, Event{
		RunID:       runID,
		Type:        EventTypeCommandApplied,
		CommandKind: CommandKindStart,
		Description: "start command applied",
	}))
	return result, errors.Join(runErr, eventErr)
}

func (r *Runner) dispatchDecision(ctx context.Context, cmd DecisionCommand) (RunResult, error) {
	if cmd.RunID == "" {
		return RunResult{}, fmt.Errorf("%w: command=%s", ErrInvalidRunID, CommandKindDecision)
	}
	if cmd.StepName == "" {
		return RunResult{}, fmt.Errorf("%w: kind=%s reason=empty step name", ErrCommandInvalid, CommandKindDecision)
	}
	sideEffectCtx := func() context.Context { return sideEffectContext(ctx) }

	state, err := r.store.Load(sideEffectCtx(), cmd.RunID)
	if err != nil {
		return RunResult{}, err
	}

	pending := state.Pending
	if pending == nil || pending.StepName != cmd.StepName {
		return RunResult{State: state}, fmt.Errorf(
			"%w: run %q step %q",
			ErrUnknownPendingApproval,
			cmd.RunID,
			cmd.StepName,
		)
	}
	if pending.Resolved() {
		if pending.Approved() == cmd.Approved {
			// Duplicate of an identical decision is a no-op.
			return RunResult{State: state}, nil
		}
		return RunResult{State: state}, fmt.Errorf(
			"%w: run %q step %q already resolved as %s",
			ErrUnknownPendingApproval,
			cmd.RunID,
			cmd.StepName,
			pending.Status,
		)
	}
	if state.Status != RunStatusSuspended {
		return RunResult{State: state}, fmt.Errorf("%w: %s", ErrRunNotResumable, state.Status)
	}

	reviewer := cmd.Reviewer
	if reviewer == "" {
		reviewer = "human"
	}
	if cmd.Approved {
		pending.Status = ApprovalStatusApproved
	} else {
		pending.Status = ApprovalStatusRejected
	}
	pending.Reviewer = reviewer
	pending.ResolvedAt = r.now()
	if err := TransitionRunStatus(&state, RunStatusRunning); err != nil {
		return RunResult{State: state}, err
	}

	// The version check serializes concurrent decisions: exactly one save
	// wins, losers observe the winner's resolution.
	if err := r.saveState(sideEffectCtx(), &state); err != nil {
		if !errors.Is(err, ErrRunVersionConflict) {
			return RunResult{}, err
		}
		current, loadErr := r.store.Load(sideEffectCtx(), cmd.RunID)
		if loadErr != nil {
			return RunResult{}, errors.Join(err, loadErr)
		}
		if current.Pending.Resolved() && current.Pending.Approved() == cmd.Approved {
			return RunResult{State: current}, nil
		}
		return RunResult{State: current}, err
	}

	var eventErr error
	eventErr = errors.Join(eventErr, publishEvent(sideEffectCtx(), r.events, Event{
		RunID:       cmd.RunID,
		Unit:        cmd.StepName,
		Type:        EventTypeDecisionRecorded,
		Description: fmt.Sprintf("decision %s recorded by %s", pending.Status, reviewer),
	}))

	result, runErr := r.executeRun(ctx, &state)
	eventErr = errors.Join(eventErr, publishEvent(sideEffectCtx(), r.events, Event{
		RunID:       cmd.RunID,
		Type:        EventTypeCommandApplied,
		CommandKind: CommandKindDecision,
		Description: "decision command applied",
	}))
	return result, errors.Join(runErr, eventErr)
}

func (r *Runner) dispatchCancel(ctx context.Context, cmd CancelCommand) (RunResult, error) {
	runID := cmd.RunID
	if runID == "" {
		return RunResult{}, fmt.Errorf("%w: command=%s", ErrInvalidRunID, CommandKindCancel)
	}
	sideEffectCtx := func() context.Context { return sideEffectContext(ctx) }
	state, err := r.store.Load(sideEffectCtx(), runID)
	if err != nil {
		return RunResult{}, err
	}
	if isTerminalRunStatus(state.Status) {
		return RunResult{State: state}, fmt.Errorf("%w: %s", ErrRunNotCancellable, state.Status)
	}
	if err := TransitionRunStatus(&state, RunStatusCancelled); err != nil {
		return RunResult{State: state}, err
	}
	if err := r.saveState(sideEffectCtx(), &state); err != nil {
		return RunResult{}, err
	}
	var eventErr error
	eventErr = errors.Join(eventErr, publishEvent(sideEffectCtx(), r.events, Event{
		RunID:       runID,
		Type:        EventTypeRunCancelled,
		Description: "run cancelled",
	}))
	eventErr = errors.Join(eventErr, publishEvent(sideEffectCtx(), r.events, Event{
		RunID:       runID,
		Type:        EventTypeCommandApplied,
		CommandKind: CommandKindCancel,
		Description: "cancel command applied",
	}))
	return RunResult{State: state}, eventErr
}

// executeRun traverses the root unit from the run's current context and
// persists the resulting terminal or suspended state.
func (r *Runner) executeRun(ctx context.Context, state *RunState) (RunResult, error) {
	sideEffectCtx := func() context.Context { return sideEffectContext(ctx) }

	if err := TransitionRunStatus(state, RunStatusRunning); err != nil {
		return RunResult{State: *state}, err
	}

	priorKeys := state.Context.Keys()
	scope := &Scope{
		RunID:   state.ID,
		Events:  r.events,
		Pending: state.Pending,
		Now:     r.now,
	}
	runErr := r.pipeline.Execute(ctx, state.Context, scope)
	state.Cursor = scope.Cursor

	if contractErr := validatePipelineOutput(priorKeys, state.Context); contractErr != nil {
		if err := TransitionRunStatus(state, RunStatusFailed); err != nil {
			return RunResult{State: *state}, errors.Join(contractErr, err)
		}
		state.Error = contractErr.Error()
		if err := r.saveState(sideEffectCtx(), state); err != nil {
			return RunResult{}, errors.Join(contractErr, err)
		}
		eventErr := publishEvent(sideEffectCtx(), r.events, Event{
			RunID:       state.ID,
			Type:        EventTypeRunFailed,
			Description: contractErr.Error(),
		})
		return RunResult{State: *state}, errors.Join(contractErr, runErr, eventErr)
	}

	var suspend *SuspendError
	switch {
	case runErr == nil:
		if err := TransitionRunStatus(state, RunStatusCompleted); err != nil {
			return RunResult{State: *state}, err
		}
		if err := r.saveState(sideEffectCtx(), state); err != nil {
			return RunResult{}, err
		}
		eventErr := publishEvent(sideEffectCtx(), r.events, Event{
			RunID:       state.ID,
			Type:        EventTypeRunCompleted,
			Description: "pipeline completed",
		})
		eventErr = errors.Join(eventErr, publishEvent(sideEffectCtx(), r.events, Event{
			RunID:       state.ID,
			Type:        EventTypeRunCheckpoint,
			Description: "final state persisted",
		}))
		return RunResult{State: *state}, eventErr

	case errors.As(runErr, &suspend):
		state.Pending = suspend.Approval
		if err := TransitionRunStatus(state, RunStatusSuspended); err != nil {
			return RunResult{State: *state}, errors.Join(runErr, err)
		}
		if err := r.saveState(sideEffectCtx(), state); err != nil {
			return RunResult{}, err
		}
		eventErr := publishEvent(sideEffectCtx(), r.events, Event{
			RunID:       state.ID,
			Unit:        suspend.Approval.StepName,
			Type:        EventTypeRunSuspended,
			Description: "awaiting external decision",
		})
		return RunResult{State: *state}, eventErr

	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		if err := TransitionRunStatus(state, RunStatusCancelled); err != nil {
			return RunResult{State: *state}, errors.Join(runErr, err)
		}
		state.Error = runErr.Error()
		if err := r.saveState(sideEffectCtx(), state); err != nil {
			return RunResult{}, errors.Join(runErr, err)
		}
		eventErr := publishEvent(sideEffectCtx(), r.events, Event{
			RunID:       state.ID,
			Type:        EventTypeRunCancelled,
			Description: runErr.Error(),
		})
		return RunResult{State: *state}, errors.Join(runErr, eventErr)

	default:
		if err := TransitionRunStatus(state, RunStatusFailed); err != nil {
			return RunResult{State: *state}, errors.Join(runErr, err)
		}
		state.Error = runErr.Error()
		if err := r.saveState(sideEffectCtx(), state); err != nil {
			return RunResult{}, errors.Join(runErr, err)
		}
		eventErr := publishEvent(sideEffectCtx(), r.events, Event{
			RunID:       state.ID,
			Type:        EventTypeRunFailed,
			Description: failureDescription(runErr),
		})
		return RunResult{State: *state}, errors.Join(runErr, eventErr)
	}
}

// saveState persists state and mirrors the store's version bump locally.
func (r *Runner) saveState(ctx context.Context, state *RunState) error {
	if err := ValidateRunState(*state); err != nil {
		return err
	}
	if err := r.store.Save(ctx, *state); err != nil {
		return err
	}
	state.Version++
	return nil
}

func failureDescription(runErr error) string {
	var stepErr *StepError
	if errors.As(runErr, &stepErr) {
		return fmt.Sprintf(
			"step %q failed (retryable=%t): %s",
			stepErr.Step,
			stepErr.Retryable(),
			stepErr.Error(),
		)
	}
	return runErr.Error()
}
