// Package engine executes workflow graphs: it walks the node graph from
// its trigger nodes, dispatches each node by kind, fans parallel branches
// out and back in, and aggregates per-node results into a run result.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reelflow/reelflow/pkg/workflow"
)

// ActionRequest describes a single action invocation
type ActionRequest struct {
	// NodeID of the action node being executed
	NodeID string

	// ActionID names the concrete behavior to run
	ActionID string

	// ModelID optionally names the external model to invoke
	ModelID string

	// ModelProvider optionally names the provider hosting ModelID
	ModelProvider string

	// Config holds the node's parameters after expression evaluation
	Config map[string]interface{}
}

// Invoker executes actions against external providers. The engine treats
// it as an opaque async boundary: it may return a provider error, a
// timeout error, or a validation error.
type Invoker interface {
	Invoke(ctx context.Context, req ActionRequest, wctx *workflow.Context) (map[string]interface{}, error)
}

// ConfigEvaluator resolves expressions inside node config against the run
// state before dispatch
type ConfigEvaluator interface {
	EvaluateInObject(obj map[string]interface{}, scope map[string]interface{}) (map[string]interface{}, error)
}

// ResultTransformer runs a post-dispatch transform script over an action
// result
type ResultTransformer interface {
	Transform(script string, result map[string]interface{}) (map[string]interface{}, error)
}

// RunOptions carries optional per-run inputs
type RunOptions struct {
	// Task is the caller-supplied task payload
	Task map[string]interface{}

	// Variables seeds the run's variable scratchpad
	Variables map[string]interface{}

	// OnProgress receives live progress callbacks
	OnProgress workflow.ProgressFunc
}

// RunResult is the settled outcome of a run. Results recorded before a
// failure are always returned alongside the error for debuggability.
type RunResult struct {
	// Success indicates the whole graph completed without error
	Success bool `json:"success"`

	// Results maps node ID -> result payload
	Results map[string]map[string]interface{} `json:"results,omitempty"`

	// Summary aggregates the results by payload type
	Summary Summary `json:"summary"`

	// Error message if the run failed
	Error string `json:"error,omitempty"`
}

// Engine executes workflow definitions
type Engine struct {
	invoker     Invoker
	evaluator   ConfigEvaluator
	transformer ResultTransformer

	// randIntn is swappable so tests can pin the random splitter branch
	randIntn func(n int) int
}

// New creates an engine backed by the given action invoker
func New(invoker Invoker) *Engine {
	return &Engine{
		invoker:  invoker,
		randIntn: rand.Intn,
	}
}

// SetEvaluator installs an expression evaluator applied to node config
// before dispatch
func (e *Engine) SetEvaluator(evaluator ConfigEvaluator) {
	e.evaluator = evaluator
}

// SetTransformer installs a transformer applied to action results when a
// node config carries a "transform" script
func (e *Engine) SetTransformer(transformer ResultTransformer) {
	e.transformer = transformer
}

// Execute runs a workflow definition to completion. It returns once the
// whole graph has settled; the first node error aborts the run, and nodes
// already completed keep their recorded results.
func (e *Engine) Execute(ctx context.Context, def *workflow.Definition, opts RunOptions) (*RunResult, error) {
	graph, err := workflow.BuildGraph(def.Nodes, def.Edges)
	if err != nil {
		return &RunResult{Error: err.Error()}, fmt.Errorf("failed to build graph: %w", err)
	}
	if nodeID, found := graph.FindCycle(); found {
		cycleErr := &CycleError{NodeID: nodeID}
		return &RunResult{Error: cycleErr.Error()}, cycleErr
	}

	wctx := workflow.NewContext(def)
	wctx.Task = opts.Task
	wctx.OnProgress = opts.OnProgress
	for key, value := range opts.Variables {
		wctx.SetVariable(key, value)
	}

	state := &runState{
		engine: e,
		graph:  graph,
		wctx:   wctx,
		calls:  make(map[string]*nodeCall),
	}

	var runErr error
	for _, triggerID := range graph.TriggerIDs {
		if err := state.executeNode(ctx, triggerID, ""); err != nil {
			runErr = err
			break
		}
	}

	result := &RunResult{
		Success: runErr == nil,
		Results: wctx.Results(),
	}
	result.Summary = Summarize(result.Results)
	if runErr != nil {
		result.Error = runErr.Error()
		return result, runErr
	}
	return result, nil
}

// nodeCall tracks one node's execution so that concurrent requests for
// the same node share a single run. It settles in two stages: dispatched
// closes once the node's own work is done and its result recorded, done
// closes once its successor traversal has settled as well.
type nodeCall struct {
	dispatched  chan struct{}
	dispatchErr error

	done chan struct{}
	err  error
}

// runState is the per-run scheduler state
type runState struct {
	engine *Engine
	graph  *workflow.Graph
	wctx   *workflow.Context

	mu    sync.Mutex
	calls map[string]*nodeCall
}

// begin registers an execution for nodeID, returning the shared call
// record and whether this caller owns the execution
func (s *runState) begin(nodeID string) (*nodeCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if call, ok := s.calls[nodeID]; ok {
		return call, false
	}
	call := &nodeCall{
		dispatched: make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.calls[nodeID] = call
	return call, true
}

// executeNode runs a single node and then its successors. The graph is
// proven acyclic before the run starts, so a node already registered here
// is either settled, in which case its recorded outcome is returned, or
// owned by another caller that will finish it and propagate its error;
// re-requesting an in-flight node is a no-op rather than a duplicate
// execution. A node reachable via two paths therefore executes exactly
// once per run. branch names the splitter branch root this traversal runs
// under; it scopes the variable writes of everything downstream.
func (s *runState) executeNode(ctx context.Context, nodeID, branch string) error {
	node := s.graph.Node(nodeID)
	if node == nil {
		return &ValidationError{NodeID: nodeID, Reason: "unknown node id"}
	}

	call, owned := s.begin(nodeID)
	if !owned {
		select {
		case <-call.done:
			return call.err
		default:
			return nil
		}
	}
	return s.run(ctx, call, node, branch)
}

// run is the owning half of executeNode: dispatch, record the result,
// settle the dispatched stage, then walk the successors.
func (s *runState) run(ctx context.Context, call *nodeCall, node *workflow.Node, branch string) error {
	result, err := s.dispatch(ctx, node, branch)
	if err == nil && result != nil {
		err = s.wctx.SetResult(node.ID, result)
	}
	call.dispatchErr = err
	close(call.dispatched)

	// A splitter manages its own downstream fan-out; every other node
	// runs its declared successors sequentially, in edge order. A merge
	// ends the branch scope of whatever branch reached it first.
	if err == nil && node.Kind != workflow.KindSplitter {
		successorBranch := branch
		if node.Kind == workflow.KindMerge {
			successorBranch = ""
		}
		for _, successorID := range s.graph.Adjacency[node.ID] {
			if err = s.executeNode(ctx, successorID, successorBranch); err != nil {
				break
			}
		}
	}

	call.err = err
	close(call.done)
	return err
}

// awaitResult makes sure predID has a recorded outcome before a merge
// reads it: an unstarted predecessor is executed on the spot, an in-flight
// one is awaited up to the point its result lands. Splitter predecessors
// are the exception: a splitter's result settles only after its branch
// subtrees, which may include the awaiting merge itself, so an in-flight
// splitter is skipped instead of waited on.
func (s *runState) awaitResult(ctx context.Context, predID string) error {
	node := s.graph.Node(predID)
	if node == nil {
		return &ValidationError{NodeID: predID, Reason: "unknown node id"}
	}

	call, owned := s.begin(predID)
	if owned {
		return s.run(ctx, call, node, "")
	}
	if node.Kind == workflow.KindSplitter {
		select {
		case <-call.dispatched:
			return call.dispatchErr
		default:
			return nil
		}
	}
	<-call.dispatched
	return call.dispatchErr
}

// dispatch routes a node to the executor for its kind
func (s *runState) dispatch(ctx context.Context, node *workflow.Node, branch string) (map[string]interface{}, error) {
	switch node.Kind {
	case workflow.KindTrigger:
		return s.executeTrigger(node)
	case workflow.KindAction:
		return s.executeAction(ctx, node, branch)
	case workflow.KindSplitter:
		return s.executeSplitter(ctx, node)
	case workflow.KindMerge:
		return s.executeMerge(ctx, node)
	case workflow.KindBatch:
		return s.executeBatch(ctx, node)
	default:
		return nil, &ValidationError{NodeID: node.ID, Reason: fmt.Sprintf("unknown node kind %q", node.Kind)}
	}
}

// executeTrigger produces a trivial triggered payload. No external calls.
func (s *runState) executeTrigger(node *workflow.Node) (map[string]interface{}, error) {
	result := map[string]interface{}{
		"type":         workflow.ResultTypeTrigger,
		"trigger_id":   node.TriggerID,
		"triggered_at": time.Now().Format(time.RFC3339),
	}

	// Batch triggers pre-allocate IDs for the batches they set in motion
	if node.TriggerID == "batch" {
		count := 5
		if raw, ok := node.Config["count"]; ok {
			if n, ok := toInt(raw); ok && n > 0 {
				count = n
			}
		}
		batchIDs := make([]string, count)
		for i := range batchIDs {
			batchIDs[i] = uuid.New().String()
		}
		result["batch_ids"] = batchIDs
	}

	return result, nil
}

// executeAction resolves the node config and delegates to the invoker.
// The invoker sees a branch-scoped view of the run context, so variable
// writes from parallel branches land in their own namespaces instead of
// racing last-write-wins.
func (s *runState) executeAction(ctx context.Context, node *workflow.Node, branch string) (map[string]interface{}, error) {
	if node.ActionID == "" {
		return nil, &ValidationError{NodeID: node.ID, Reason: "action node has no action id"}
	}

	wctx := s.wctx.ForBranch(branch)

	config := node.Config
	if s.engine.evaluator != nil && len(config) > 0 {
		scope := map[string]interface{}{
			"variables": wctx.Variables(),
			"results":   wctx.Results(),
			"task":      wctx.Task,
		}
		evaluated, err := s.engine.evaluator.EvaluateInObject(config, scope)
		if err != nil {
			return nil, &ValidationError{NodeID: node.ID, Reason: fmt.Sprintf("config expression failed: %v", err)}
		}
		config = evaluated
	}

	wctx.Progress(node.ID, 0, 0, 1)

	result, err := s.engine.invoker.Invoke(ctx, ActionRequest{
		NodeID:        node.ID,
		ActionID:      node.ActionID,
		ModelID:       node.ModelID,
		ModelProvider: node.ModelProvider,
		Config:        config,
	}, wctx)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", node.ID, err)
	}

	if script, ok := config["transform"].(string); ok && script != "" && s.engine.transformer != nil {
		transformed, err := s.engine.transformer.Transform(script, result)
		if err != nil {
			return nil, fmt.Errorf("node %s: transform failed: %w", node.ID, err)
		}
		result = transformed
	}

	wctx.Progress(node.ID, 100, 1, 1)
	return result, nil
}

func toInt(raw interface{}) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
