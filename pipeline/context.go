package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ExecutionContext is the shared key/value state threaded through one run.
// Every key records the step that wrote it. A run has a single writer at a
// time; parallel children work on isolated clones and the owning group merges
// their writes at group exit, so no locking is needed here.
type ExecutionContext struct {
	values map[string]any
	owners map[string]string
}

func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		values: map[string]any{},
		owners: map[string]string{},
	}
}

// Get returns the value for key or an error wrapping ErrKeyNotFound.
func (c *ExecutionContext) Get(key string) (any, error) {
	value, ok := c.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return value, nil
}

// Lookup returns the value for key and whether it is present.
func (c *ExecutionContext) Lookup(key string) (any, bool) {
	value, ok := c.values[key]
	return value, ok
}

// Set records value under key on behalf of owner. A key already written by a
// different step is rejected with ErrDuplicateKey; a step overwriting its own
// key is allowed, which is how resumed steps recommit deterministically.
func (c *ExecutionContext) Set(owner, key string, value any) error {
	if owner == "" {
		return fmt.Errorf("%w: empty owner for key %q", ErrDuplicateKey, key)
	}
	if key == "" {
		return fmt.Errorf("%w: empty key from owner %q", ErrDuplicateKey, owner)
	}
	if existing, ok := c.owners[key]; ok && existing != owner {
		return fmt.Errorf(
			"%w: key %q owned by %q, writer %q",
			ErrDuplicateKey,
			key,
			existing,
			owner,
		)
	}
	c.values[key] = cloneValue(value)
	c.owners[key] = owner
	return nil
}

// Owner reports the step that wrote key.
func (c *ExecutionContext) Owner(key string) (string, bool) {
	owner, ok := c.owners[key]
	return owner, ok
}

// Keys returns all present keys in sorted order.
func (c *ExecutionContext) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for key := range c.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (c *ExecutionContext) Len() int {
	return len(c.values)
}

// Snapshot returns an immutable deep copy of the current values. Snapshots
// are what steps and parallel children read from, so in-flight writes of
// concurrent siblings are never observable.
func (c *ExecutionContext) Snapshot() Snapshot {
	values := make(map[string]any, len(c.values))
	for key, value := range c.values {
		values[key] = cloneValue(value)
	}
	return Snapshot{values: values}
}

// Clone returns a deep copy including key ownership.
func (c *ExecutionContext) Clone() *ExecutionContext {
	out := NewExecutionContext()
	for key, value := range c.values {
		out.values[key] = cloneValue(value)
	}
	for key, owner := range c.owners {
		out.owners[key] = owner
	}
	return out
}

type contextEnvelope struct {
	Values map[string]any    `json:"values"`
	Owners map[string]string `json:"owners"`
}

func (c *ExecutionContext) MarshalJSON() ([]byte, error) {
	return json.Marshal(contextEnvelope{
		Values: c.values,
		Owners: c.owners,
	})
}

func (c *ExecutionContext) UnmarshalJSON(data []byte) error {
	var envelope contextEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	c.values = envelope.Values
	c.owners = envelope.Owners
	if c.values == nil {
		c.values = map[string]any{}
	}
	if c.owners == nil {
		c.owners = map[string]string{}
	}
	return nil
}

// Snapshot is a read-only view of an ExecutionContext taken at a point in
// time.
type Snapshot struct {
	values map[string]any
}

func (s Snapshot) Get(key string) (any, error) {
	value, ok := s.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return value, nil
}

func (s Snapshot) Lookup(key string) (any, bool) {
	value, ok := s.values[key]
	return value, ok
}

func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s Snapshot) Len() int {
	return len(s.values)
}

// cloneValue deep-copies the JSON-like value shapes steps exchange. Scalar
// and unrecognized types are returned as-is.
func cloneValue(in any) any {
	switch value := in.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for key, item := range value {
			out[key] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i := range value {
			out[i] = cloneValue(value[i])
		}
		return out
	default:
		return in
	}
}
