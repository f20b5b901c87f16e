package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// SequentialGroup runs its children strictly in order. Each child executes
// against the context after all earlier outputs are merged, and the first
// failure aborts the remainder.
type SequentialGroup struct {
	name     string
	children []Unit
}

var _ Unit = (*SequentialGroup)(nil)

func NewSequentialGroup(name string, children ...Unit) (*SequentialGroup, error) {
	if err := validateGroupShape(name, children); err != nil {
		return nil, err
	}
	if err := validateDisjointOutputs(name, children); err != nil {
		return nil, err
	}
	return &SequentialGroup{
		name:     name,
		children: cloneUnits(children),
	}, nil
}

func (g *SequentialGroup) Name() string {
	return g.name
}

func (g *SequentialGroup) Children() []Unit {
	return cloneUnits(g.children)
}

// ReadKeys are the child reads not satisfied by an earlier child in the group.
func (g *SequentialGroup) ReadKeys() []string {
	produced := map[string]struct{}{}
	var reads []string
	seen := map[string]struct{}{}
	for _, child := range g.children {
		for _, key := range child.ReadKeys() {
			if _, ok := produced[key]; ok {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			reads = append(reads, key)
		}
		for _, key := range child.OutputKeys() {
			produced[key] = struct{}{}
		}
	}
	return reads
}

func (g *SequentialGroup) OutputKeys() []string {
	var keys []string
	for _, child := range g.children {
		keys = append(keys, child.OutputKeys()...)
	}
	return keys
}

func (g *SequentialGroup) Execute(ctx context.Context, ec *ExecutionContext, scope *Scope) error {
	for _, child := range g.children {
		err := child.Execute(ctx, ec, scope)
		if err == nil {
			continue
		}
		// Suspension travels up the sequential spine untouched so the runner
		// can halt the run at exactly this point.
		var suspend *SuspendError
		if errors.As(err, &suspend) {
			return err
		}
		return &GroupError{Group: g.name, Failures: []error{err}}
	}
	scope.publish(ctx, Event{
		RunID: scope.RunID,
		Unit:  g.name,
		Type:  EventTypeGroupCompleted,
	})
	return nil
}

// ParallelGroup runs its children concurrently against one snapshot of the
// incoming context and merges their disjoint writes at group exit. The group
// waits for every child to reach a terminal state before returning, and a
// failed execution carries one failure per failed child.
type ParallelGroup struct {
	name     string
	children []Unit
}

var _ Unit = (*ParallelGroup)(nil)

func NewParallelGroup(name string, children ...Unit) (*ParallelGroup, error) {
	if err := validateGroupShape(name, children); err != nil {
		return nil, err
	}
	if err := validateDisjointOutputs(name, children); err != nil {
		return nil, err
	}
	if err := validateNoSiblingReads(name, children); err != nil {
		return nil, err
	}
	for _, child := range children {
		if containsSuspendable(child) {
			return nil, fmt.Errorf(
				"%w: group %q: suspendable unit %q cannot run in a parallel group",
				ErrGroupInvalid,
				name,
				child.Name(),
			)
		}
	}
	return &ParallelGroup{
		name:     name,
		children: cloneUnits(children),
	}, nil
}

func (g *ParallelGroup) Name() string {
	return g.name
}

func (g *ParallelGroup) Children() []Unit {
	return cloneUnits(g.children)
}

func (g *ParallelGroup) ReadKeys() []string {
	var reads []string
	seen := map[string]struct{}{}
	for _, child := range g.children {
		for _, key := range child.ReadKeys() {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			reads = append(reads, key)
		}
	}
	return reads
}

func (g *ParallelGroup) OutputKeys() []string {
	var keys []string
	for _, child := range g.children {
		keys = append(keys, child.OutputKeys()...)
	}
	return keys
}

func (g *ParallelGroup) Execute(ctx context.Context, ec *ExecutionContext, scope *Scope) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	baseline := map[string]struct{}{}
	for _, key := range ec.Keys() {
		baseline[key] = struct{}{}
	}

	clones := make([]*ExecutionContext, len(g.children))
	scopes := make([]*Scope, len(g.children))
	failures := make([]error, len(g.children))

	var wg sync.WaitGroup
	for i, child := range g.children {
		clones[i] = ec.Clone()
		scopes[i] = &Scope{
			RunID:  scope.RunID,
			Events: scope.Events,
			Now:    scope.Now,
		}
		wg.Add(1)
		go func(i int, child Unit) {
			defer wg.Done()
			failures[i] = child.Execute(ctx, clones[i], scopes[i])
		}(i, child)
	}
	// Siblings of a failed child run to completion: force-cancelling them
	// could leave half-applied tool side effects.
	wg.Wait()

	var collected []error
	for _, failure := range failures {
		if failure != nil {
			collected = append(collected, failure)
		}
	}
	if len(collected) > 0 {
		return &GroupError{Group: g.name, Failures: collected}
	}

	// Output keys are disjoint by construction, so the merge is a
	// non-conflicting union of each child's writes.
	for i, clone := range clones {
		for _, key := range clone.Keys() {
			if _, ok := baseline[key]; ok {
				continue
			}
			owner, _ := clone.Owner(key)
			value, err := clone.Get(key)
			if err != nil {
				return &GroupError{Group: g.name, Failures: []error{err}}
			}
			if err := ec.Set(owner, key, value); err != nil {
				return &GroupError{Group: g.name, Failures: []error{err}}
			}
		}
		scope.Cursor += scopes[i].Cursor
	}

	scope.publish(ctx, Event{
		RunID: scope.RunID,
		Unit:  g.name,
		Type:  EventTypeGroupCompleted,
	})
	return nil
}

func validateGroupShape(name string, children []Unit) error {
	if name == "" {
		return fmt.Errorf("%w: group name is required", ErrGroupInvalid)
	}
	if len(children) == 0 {
		return fmt.Errorf("%w: group %q has no children", ErrGroupInvalid, name)
	}
	names := map[string]struct{}{}
	for i, child := range children {
		if child == nil {
			return fmt.Errorf("%w: group %q child %d is nil", ErrGroupInvalid, name, i)
		}
		if _, ok := names[child.Name()]; ok {
			return fmt.Errorf(
				"%w: group %q has duplicate child name %q",
				ErrGroupInvalid,
				name,
				child.Name(),
			)
		}
		names[child.Name()] = struct{}{}
	}
	return nil
}

func validateDisjointOutputs(name string, children []Unit) error {
	owners := map[string]string{}
	for _, child := range children {
		for _, key := range child.OutputKeys() {
			if existing, ok := owners[key]; ok {
				return fmt.Errorf(
					"%w: group %q: output key %q written by both %q and %q",
					ErrGroupInvalid,
					name,
					key,
					existing,
					child.Name(),
				)
			}
			owners[key] = child.Name()
		}
	}
	return nil
}

func validateNoSiblingReads(name string, children []Unit) error {
	owners := map[string]string{}
	for _, child := range children {
		for _, key := range child.OutputKeys() {
			owners[key] = child.Name()
		}
	}
	for _, child := range children {
		for _, key := range child.ReadKeys() {
			owner, ok := owners[key]
			if ok && owner != child.Name() {
				return fmt.Errorf(
					"%w: group %q: %q reads key %q produced by sibling %q",
					ErrGroupInvalid,
					name,
					child.Name(),
					key,
					owner,
				)
			}
		}
	}
	return nil
}

// suspender marks units that can halt a run awaiting an external decision.
type suspender interface {
	suspendable()
}

func containsSuspendable(unit Unit) bool {
	if _, ok := unit.(suspender); ok {
		return true
	}
	type childLister interface {
		Children() []Unit
	}
	group, ok := unit.(childLister)
	if !ok {
		return false
	}
	for _, child := range group.Children() {
		if containsSuspendable(child) {
			return true
		}
	}
	return false
}

func cloneUnits(in []Unit) []Unit {
	out := make([]Unit, len(in))
	copy(out, in)
	return out
}
