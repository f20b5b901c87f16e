// Package campaign assembles the next-best-action marketing pipeline: three
// clusters of delegated steps that analyze a customer, validate and score
// candidate actions, plan execution, gate it behind a human decision, and
// record the outcome for future runs.
package campaign

import (
	"errors"
	"fmt"
	"time"

	"github.com/Gurpartap/pipeframe/pipeline"
	"github.com/Gurpartap/pipeframe/policy/retry"
)

// SeedCustomerDescription is the context key the discovery cluster consumes.
const SeedCustomerDescription = "customer_description"

// Context keys written by the pipeline, one per step.
const (
	KeyCustomerProfile  = "generated_customer_profile"
	KeyCustomerAnalysis = "customer_analysis"
	KeyHistoricalMatch  = "historical_match"
	KeyGeneratedActions = "generated_actions"
	KeyValidationResult = "validation_results"
	KeyScoredActions    = "scored_actions"
	KeyOptimalTiming    = "optimal_timing"
	KeyMarketingContent = "marketing_content"
	KeyApprovalStatus   = "approval_status"
	KeyTrackingResult   = "tracking_result"
)

// StepApproval is the suspension point: the run halts here until a reviewer
// decides.
const StepApproval = "approval"

// DefaultRetry matches the upstream generation service's guidance: a few
// attempts with exponential spacing, transient failures only.
var DefaultRetry = retry.Config{
	MaxAttempts:     3,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
}

// Deps are the external collaborators the pipeline binds to.
type Deps struct {
	Executor  pipeline.TaskExecutor
	Knowledge pipeline.KnowledgeStore
	Retry     retry.Config
}

// Build constructs the fixed pipeline shape: discovery (sequential, 4 steps),
// then validation (parallel, 2 steps), then execution (sequential, 4 steps
// with the approval gate third).
func Build(deps Deps) (*pipeline.SequentialGroup, error) {
	if deps.Executor == nil {
		return nil, errors.New("campaign: task executor is required")
	}
	if deps.Knowledge == nil {
		return nil, errors.New("campaign: knowledge store is required")
	}
	retryCfg := deps.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = DefaultRetry
	}
	executor := retry.WrapExecutor(deps.Executor, retryCfg)

	tools, err := newToolRegistry(deps.Knowledge)
	if err != nil {
		return nil, fmt.Errorf("campaign: %w", err)
	}

	step := func(name, output string, reads []string, toolNames ...string) (*pipeline.Step, error) {
		bound, err := tools.Tools(toolNames...)
		if err != nil {
			return nil, fmt.Errorf("campaign: step %q: %w", name, err)
		}
		return pipeline.NewStep(pipeline.StepSpec{
			Name:      name,
			Reads:     reads,
			OutputKey: output,
			Executor:  executor,
			Tools:     bound,
		})
	}

	proxy, err := step("proxy_customer", KeyCustomerProfile,
		[]string{SeedCustomerDescription})
	if err != nil {
		return nil, err
	}
	profiler, err := step("customer_profiler", KeyCustomerAnalysis,
		[]string{KeyCustomerProfile})
	if err != nil {
		return nil, err
	}
	pattern, err := step("pattern_matcher", KeyHistoricalMatch,
		[]string{KeyCustomerAnalysis},
		ToolQueryHistoricalPatterns)
	if err != nil {
		return nil, err
	}
	generator, err := step("action_generator", KeyGeneratedActions,
		[]string{KeyCustomerAnalysis, KeyHistoricalMatch})
	if err != nil {
		return nil, err
	}
	discovery, err := pipeline.NewSequentialGroup("discovery",
		proxy, profiler, pattern, generator)
	if err != nil {
		return nil, err
	}

	validator, err := step("validator", KeyValidationResult,
		[]string{KeyGeneratedActions},
		ToolCheckBusinessRules)
	if err != nil {
		return nil, err
	}
	scorer, err := step("scorer", KeyScoredActions,
		[]string{KeyGeneratedActions, KeyHistoricalMatch})
	if err != nil {
		return nil, err
	}
	validation, err := pipeline.NewParallelGroup("validation", validator, scorer)
	if err != nil {
		return nil, err
	}

	timing, err := step("timing", KeyOptimalTiming,
		[]string{KeyScoredActions, KeyValidationResult},
		ToolQueryHistoricalPatterns)
	if err != nil {
		return nil, err
	}
	content, err := step("content", KeyMarketingContent,
		[]string{KeyCustomerProfile, KeyScoredActions, KeyOptimalTiming})
	if err != nil {
		return nil, err
	}
	approval, err := pipeline.NewSuspendableStep(pipeline.SuspendableStepSpec{
		Name:      StepApproval,
		Reads:     []string{KeyMarketingContent, KeyScoredActions, KeyValidationResult},
		OutputKey: KeyApprovalStatus,
		Payload:   approvalPayload,
	})
	if err != nil {
		return nil, err
	}
	tracker, err := pipeline.NewStep(pipeline.StepSpec{
		Name:      "tracker",
		Reads:     []string{KeyApprovalStatus, KeyScoredActions, KeyCustomerProfile},
		OutputKey: KeyTrackingResult,
		Executor: &recordingExecutor{
			next:      executor,
			knowledge: deps.Knowledge,
		},
	})
	if err != nil {
		return nil, err
	}
	execution, err := pipeline.NewSequentialGroup("execution",
		timing, content, approval, tracker)
	if err != nil {
		return nil, err
	}

	return pipeline.NewSequentialGroup("next_best_action",
		discovery, validation, execution)
}
