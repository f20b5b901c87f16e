package executortest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Gurpartap/pipeframe/pipeline"
)

// Response configures one scripted result for a step.
type Response struct {
	Value any
	Err   error
}

// ScriptedExecutor is a deterministic task executor for engine tests and
// demos: each step name consumes its scripted responses in order.
type ScriptedExecutor struct {
	mu        sync.Mutex
	responses map[string][]Response
	calls     map[string]int
	inputs    map[string][]map[string]any
}

var _ pipeline.TaskExecutor = (*ScriptedExecutor)(nil)

func NewScriptedExecutor() *ScriptedExecutor {
	return &ScriptedExecutor{
		responses: map[string][]Response{},
		calls:     map[string]int{},
		inputs:    map[string][]map[string]any{},
	}
}

// Script appends responses for step. Each Run call for the step consumes one.
func (e *ScriptedExecutor) Script(step string, responses ...Response) *ScriptedExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responses[step] = append(e.responses[step], responses...)
	return e
}

func (e *ScriptedExecutor) Run(_ context.Context, task pipeline.Task) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls[task.Step]++
	e.inputs[task.Step] = append(e.inputs[task.Step], task.Inputs)

	queue := e.responses[task.Step]
	if len(queue) == 0 {
		return nil, fmt.Errorf("script exhausted for step %q (call %d)", task.Step, e.calls[task.Step])
	}
	current := queue[0]
	e.responses[task.Step] = queue[1:]
	if current.Err != nil {
		return nil, current.Err
	}
	return current.Value, nil
}

// Calls reports how many times step was executed.
func (e *ScriptedExecutor) Calls(step string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[step]
}

// Inputs returns the task inputs observed by each execution of step.
func (e *ScriptedExecutor) Inputs(step string) []map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]map[string]any, len(e.inputs[step]))
	copy(out, e.inputs[step])
	return out
}
