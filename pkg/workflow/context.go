package workflow

import (
	"fmt"
	"sync"
)

// ProgressFunc receives live progress from long-running nodes. It may be
// invoked zero or more times during a run; its return value is ignored.
type ProgressFunc func(nodeID string, percent float64, completed, total int)

// Context is the mutable per-run state. It is created at the start of a
// run and discarded (or returned) at the end; it is never persisted as-is.
// Results and Variables are the only shared mutable state, so both are
// guarded for concurrent access from parallel branches.
type Context struct {
	// Definition is the workflow being executed
	Definition *Definition

	// Task is the optional caller-supplied task payload
	Task map[string]interface{}

	// OnProgress is the optional progress callback for this run
	OnProgress ProgressFunc

	mu *sync.RWMutex

	// branch namespaces this view's variable access; empty on the root
	// context
	branch string

	// results maps node ID -> result payload; each entry is write-once
	results map[string]map[string]interface{}

	// variables is the cross-node scratchpad; branch views namespace
	// their writes so parallel branches never clobber each other
	variables map[string]interface{}

	// parallelBranches maps splitter node ID -> the branch root IDs it
	// spawned, for merge lookup
	parallelBranches map[string][]string
}

// NewContext creates a run context for the given definition
func NewContext(def *Definition) *Context {
	return &Context{
		Definition:       def,
		mu:               &sync.RWMutex{},
		results:          make(map[string]map[string]interface{}),
		variables:        make(map[string]interface{}),
		parallelBranches: make(map[string][]string),
	}
}

// SetResult records a node's result payload. A node's entry is write-once;
// attempting to overwrite another node's recorded result is a programming
// error and is rejected.
func (c *Context) SetResult(nodeID string, result map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.results[nodeID]; exists {
		return fmt.Errorf("result for node %q already recorded", nodeID)
	}
	c.results[nodeID] = result
	return nil
}

// Result returns the recorded payload for nodeID
func (c *Context) Result(nodeID string) (map[string]interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result, ok := c.results[nodeID]
	return result, ok
}

// Results returns a copy of the full node ID -> payload map
func (c *Context) Results() map[string]map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]map[string]interface{}, len(c.results))
	for id, result := range c.results {
		out[id] = result
	}
	return out
}

// ForBranch returns a view of this context whose variable writes are
// namespaced by branchID and whose reads check that namespace before the
// shared scratchpad. Results, task and progress state stay shared with
// the root context.
func (c *Context) ForBranch(branchID string) *Context {
	if branchID == "" || branchID == c.branch {
		return c
	}
	view := *c
	view.branch = branchID
	return &view
}

// SetVariable stores a value in the scratchpad, under this view's branch
// namespace when there is one
func (c *Context) SetVariable(key string, value interface{}) {
	if c.branch != "" {
		key = c.branch + "." + key
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[key] = value
}

// SetBranchVariable stores a value under a key namespaced by the branch
// root that owns it.
func (c *Context) SetBranchVariable(branchID, key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[branchID+"."+key] = value
}

// Variable returns a value from the scratchpad. A branch view resolves
// the key in its own namespace first and falls back to the shared
// scratchpad.
func (c *Context) Variable(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.branch != "" {
		if value, ok := c.variables[c.branch+"."+key]; ok {
			return value, true
		}
	}
	value, ok := c.variables[key]
	return value, ok
}

// Variables returns a copy of the scratchpad
func (c *Context) Variables() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]interface{}, len(c.variables))
	for key, value := range c.variables {
		out[key] = value
	}
	return out
}

// SetParallelBranches records the first-level branch roots a splitter spawned
func (c *Context) SetParallelBranches(splitterID string, branchIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parallelBranches[splitterID] = branchIDs
}

// ParallelBranches returns the branch roots recorded for a splitter
func (c *Context) ParallelBranches(splitterID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parallelBranches[splitterID]
}

// Progress invokes the progress callback when one is registered
func (c *Context) Progress(nodeID string, percent float64, completed, total int) {
	if c.OnProgress != nil {
		c.OnProgress(nodeID, percent, completed, total)
	}
}
