package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelflow/reelflow/pkg/workflow"
)

// stubInvoker is a function-backed Invoker that records every request it
// receives
type stubInvoker struct {
	mu    sync.Mutex
	calls []ActionRequest
	fn    func(req ActionRequest) (map[string]interface{}, error)
	fnCtx func(req ActionRequest, wctx *workflow.Context) (map[string]interface{}, error)
}

func (s *stubInvoker) Invoke(ctx context.Context, req ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.fnCtx != nil {
		return s.fnCtx(req, wctx)
	}
	if s.fn != nil {
		return s.fn(req)
	}
	return map[string]interface{}{"type": "action", "action_id": req.ActionID}, nil
}

func (s *stubInvoker) callCount(actionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, call := range s.calls {
		if call.ActionID == actionID {
			count++
		}
	}
	return count
}

func TestExecuteLinearPipeline(t *testing.T) {
	invoker := &stubInvoker{}
	eng := New(invoker)

	def := &workflow.Definition{
		Name: "reel pipeline",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
			{ID: "script", Kind: workflow.KindAction, ActionID: "generate-script"},
			{ID: "image", Kind: workflow.KindAction, ActionID: "generate-image"},
			{ID: "video", Kind: workflow.KindAction, ActionID: "create-video"},
		},
		Edges: []workflow.Edge{
			{Source: "start", Target: "script"},
			{Source: "script", Target: "image"},
			{Source: "image", Target: "video"},
		},
	}

	result, err := eng.Execute(context.Background(), def, RunOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Empty(t, result.Error)

	require.Len(t, result.Results, 4)
	assert.Equal(t, workflow.ResultTypeTrigger, result.Results["start"]["type"])
	assert.Equal(t, "manual", result.Results["start"]["trigger_id"])
	assert.Equal(t, "create-video", result.Results["video"]["action_id"])

	assert.Equal(t, 4, result.Summary.Total)
	assert.Equal(t, 3, result.Summary.Counts["action"])
	assert.Equal(t, 1, result.Summary.Counts[workflow.ResultTypeTrigger])
	assert.Zero(t, result.Summary.Errors)

	// Actions run in edge order downstream of the trigger.
	require.Len(t, invoker.calls, 3)
	assert.Equal(t, "generate-script", invoker.calls[0].ActionID)
	assert.Equal(t, "generate-image", invoker.calls[1].ActionID)
	assert.Equal(t, "create-video", invoker.calls[2].ActionID)
}

func TestExecuteSharedNodeRunsOnce(t *testing.T) {
	invoker := &stubInvoker{}
	eng := New(invoker)

	// Diamond: both branches feed the same downstream node.
	def := &workflow.Definition{
		Name: "diamond",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
			{ID: "a", Kind: workflow.KindAction, ActionID: "branch-a"},
			{ID: "b", Kind: workflow.KindAction, ActionID: "branch-b"},
			{ID: "shared", Kind: workflow.KindAction, ActionID: "publish"},
		},
		Edges: []workflow.Edge{
			{Source: "start", Target: "a"},
			{Source: "start", Target: "b"},
			{Source: "a", Target: "shared"},
			{Source: "b", Target: "shared"},
		},
	}

	result, err := eng.Execute(context.Background(), def, RunOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 1, invoker.callCount("publish"))
}

func TestExecuteCycleFails(t *testing.T) {
	invoker := &stubInvoker{}
	eng := New(invoker)

	def := &workflow.Definition{
		Name: "looped",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
			{ID: "a", Kind: workflow.KindAction, ActionID: "step-a"},
			{ID: "b", Kind: workflow.KindAction, ActionID: "step-b"},
		},
		Edges: []workflow.Edge{
			{Source: "start", Target: "a"},
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
		},
	}

	result, err := eng.Execute(context.Background(), def, RunOptions{})
	require.Error(t, err)
	assert.True(t, IsCycle(err))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "cycle detected")

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, []string{"a", "b"}, cycleErr.NodeID)

	// The cycle is rejected before any node runs.
	assert.Empty(t, result.Results)
	assert.Empty(t, invoker.calls)
}

func TestExecuteMergeFanInWithoutSplitter(t *testing.T) {
	invoker := &stubInvoker{}
	eng := New(invoker)

	// Two edges into the merge from siblings that the trigger schedules
	// one after the other, so one predecessor is still unstarted when the
	// first branch reaches the merge.
	def := &workflow.Definition{
		Name: "plain fan-in",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
			{ID: "a", Kind: workflow.KindAction, ActionID: "step-a"},
			{ID: "c", Kind: workflow.KindAction, ActionID: "step-c"},
			{ID: "join", Kind: workflow.KindMerge, Config: map[string]interface{}{"strategy": "collect"}},
		},
		Edges: []workflow.Edge{
			{Source: "start", Target: "a"},
			{Source: "start", Target: "c"},
			{Source: "a", Target: "join"},
			{Source: "c", Target: "join"},
		},
	}

	result, err := eng.Execute(context.Background(), def, RunOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)

	joinResult := result.Results["join"]
	require.NotNil(t, joinResult)
	assert.Equal(t, 2, joinResult["count"])
	assert.Len(t, joinResult["collected"], 2)

	assert.Equal(t, 1, invoker.callCount("step-a"))
	assert.Equal(t, 1, invoker.callCount("step-c"))
}

func TestExecuteParallelBranchVariablesIsolated(t *testing.T) {
	// Writers store a variable, readers downstream in the same branch
	// report what they see. Each branch must read its own write no matter
	// how the branch goroutines interleave.
	invoker := &stubInvoker{
		fnCtx: func(req ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
			switch req.ActionID {
			case "write":
				wctx.SetVariable("tone", req.NodeID)
			case "read":
				if tone, ok := wctx.Variable("tone"); ok {
					return map[string]interface{}{"type": "action", "tone": tone}, nil
				}
			}
			return map[string]interface{}{"type": "action"}, nil
		},
	}
	eng := New(invoker)

	def := &workflow.Definition{
		Name: "branch scratchpads",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
			{ID: "split", Kind: workflow.KindSplitter},
			{ID: "a1", Kind: workflow.KindAction, ActionID: "write"},
			{ID: "a2", Kind: workflow.KindAction, ActionID: "read"},
			{ID: "b1", Kind: workflow.KindAction, ActionID: "write"},
			{ID: "b2", Kind: workflow.KindAction, ActionID: "read"},
		},
		Edges: []workflow.Edge{
			{Source: "start", Target: "split"},
			{Source: "split", Target: "a1"},
			{Source: "split", Target: "b1"},
			{Source: "a1", Target: "a2"},
			{Source: "b1", Target: "b2"},
		},
	}

	result, err := eng.Execute(context.Background(), def, RunOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, "a1", result.Results["a2"]["tone"])
	assert.Equal(t, "b1", result.Results["b2"]["tone"])
}

func TestExecuteSplitterParallel(t *testing.T) {
	invoker := &stubInvoker{}
	eng := New(invoker)

	nodes := []workflow.Node{
		{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
		{ID: "split", Kind: workflow.KindSplitter},
	}
	edges := []workflow.Edge{{Source: "start", Target: "split"}}
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("branch-%d", i)
		nodes = append(nodes, workflow.Node{ID: id, Kind: workflow.KindAction, ActionID: id})
		edges = append(edges, workflow.Edge{Source: "split", Target: id})
	}

	def := &workflow.Definition{Name: "fan-out", Nodes: nodes, Edges: edges}

	result, err := eng.Execute(context.Background(), def, RunOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)

	require.Len(t, invoker.calls, 4)
	splitResult := result.Results["split"]
	require.NotNil(t, splitResult)
	assert.Equal(t, workflow.ResultTypeSplitter, splitResult["type"])
	assert.Equal(t, 4, splitResult["branches"])
	assert.Len(t, splitResult["results"], 4)
}

func TestExecuteSplitterRandomPicksOneBranch(t *testing.T) {
	invoker := &stubInvoker{}
	eng := New(invoker)
	eng.randIntn = func(n int) int { return 1 }

	def := &workflow.Definition{
		Name: "random pick",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
			{ID: "split", Kind: workflow.KindSplitter, Config: map[string]interface{}{"strategy": "random"}},
			{ID: "left", Kind: workflow.KindAction, ActionID: "left"},
			{ID: "right", Kind: workflow.KindAction, ActionID: "right"},
		},
		Edges: []workflow.Edge{
			{Source: "start", Target: "split"},
			{Source: "split", Target: "left"},
			{Source: "split", Target: "right"},
		},
	}

	result, err := eng.Execute(context.Background(), def, RunOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, 0, invoker.callCount("left"))
	assert.Equal(t, 1, invoker.callCount("right"))
	assert.Equal(t, 1, result.Results["split"]["branches"])
}

func TestExecuteMergeAwaitsSlowBranch(t *testing.T) {
	invoker := &stubInvoker{
		fn: func(req ActionRequest) (map[string]interface{}, error) {
			if req.ActionID == "slow" {
				time.Sleep(50 * time.Millisecond)
			}
			return map[string]interface{}{"type": "action", "action_id": req.ActionID}, nil
		},
	}
	eng := New(invoker)

	def := &workflow.Definition{
		Name: "fan-in",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
			{ID: "split", Kind: workflow.KindSplitter},
			{ID: "fast", Kind: workflow.KindAction, ActionID: "fast"},
			{ID: "slow", Kind: workflow.KindAction, ActionID: "slow"},
			{ID: "join", Kind: workflow.KindMerge, Config: map[string]interface{}{"strategy": "collect"}},
		},
		Edges: []workflow.Edge{
			{Source: "start", Target: "split"},
			{Source: "split", Target: "fast"},
			{Source: "split", Target: "slow"},
			{Source: "fast", Target: "join"},
			{Source: "slow", Target: "join"},
		},
	}

	result, err := eng.Execute(context.Background(), def, RunOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)

	joinResult := result.Results["join"]
	require.NotNil(t, joinResult)
	assert.Equal(t, workflow.ResultTypeMerge, joinResult["type"])
	assert.Equal(t, 2, joinResult["count"])
	assert.Len(t, joinResult["collected"], 2)

	// Every branch ran exactly once despite the merge awaiting them.
	assert.Equal(t, 1, invoker.callCount("fast"))
	assert.Equal(t, 1, invoker.callCount("slow"))
}

func TestExecuteMergeFirstStrategy(t *testing.T) {
	invoker := &stubInvoker{}
	eng := New(invoker)

	def := &workflow.Definition{
		Name: "merge first",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
			{ID: "a", Kind: workflow.KindAction, ActionID: "a"},
			{ID: "join", Kind: workflow.KindMerge, Config: map[string]interface{}{"strategy": "first"}},
		},
		Edges: []workflow.Edge{
			{Source: "start", Target: "a"},
			{Source: "a", Target: "join"},
		},
	}

	result, err := eng.Execute(context.Background(), def, RunOptions{})
	require.NoError(t, err)

	joinResult := result.Results["join"]
	require.NotNil(t, joinResult)
	assert.Equal(t, "first", joinResult["strategy"])
	first, ok := joinResult["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "a", first["action_id"])
}

func TestExecuteActionWithoutActionID(t *testing.T) {
	eng := New(&stubInvoker{})

	def := &workflow.Definition{
		Name: "bad action",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
			{ID: "broken", Kind: workflow.KindAction},
		},
		Edges: []workflow.Edge{{Source: "start", Target: "broken"}},
	}

	result, err := eng.Execute(context.Background(), def, RunOptions{})
	require.Error(t, err)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "broken", validationErr.NodeID)
	assert.False(t, result.Success)
}

func TestExecuteInvokerFailureAbortsRun(t *testing.T) {
	providerErr := &ProviderError{Provider: "media", Err: errors.New("upstream 503")}
	invoker := &stubInvoker{
		fn: func(req ActionRequest) (map[string]interface{}, error) {
			if req.ActionID == "create-video" {
				return nil, providerErr
			}
			return map[string]interface{}{"type": "action"}, nil
		},
	}
	eng := New(invoker)

	def := &workflow.Definition{
		Name: "failing pipeline",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
			{ID: "script", Kind: workflow.KindAction, ActionID: "generate-script"},
			{ID: "video", Kind: workflow.KindAction, ActionID: "create-video"},
			{ID: "publish", Kind: workflow.KindAction, ActionID: "publish"},
		},
		Edges: []workflow.Edge{
			{Source: "start", Target: "script"},
			{Source: "script", Target: "video"},
			{Source: "video", Target: "publish"},
		},
	}

	result, err := eng.Execute(context.Background(), def, RunOptions{})
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, err.Error(), "node video")

	var pe *ProviderError
	assert.True(t, errors.As(err, &pe))

	// Downstream of the failure never ran; upstream results survive.
	assert.Equal(t, 0, invoker.callCount("publish"))
	assert.Contains(t, result.Results, "script")
	assert.NotContains(t, result.Results, "video")
}

func TestExecuteBatchTriggerAllocatesIDs(t *testing.T) {
	eng := New(&stubInvoker{})

	def := &workflow.Definition{
		Name: "batch trigger",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "batch", Config: map[string]interface{}{"count": 3}},
		},
	}

	result, err := eng.Execute(context.Background(), def, RunOptions{})
	require.NoError(t, err)

	batchIDs, ok := result.Results["start"]["batch_ids"].([]string)
	require.True(t, ok)
	assert.Len(t, batchIDs, 3)
}

func TestExecuteProgressCallback(t *testing.T) {
	eng := New(&stubInvoker{})

	var (
		mu      sync.Mutex
		updates []float64
	)
	opts := RunOptions{
		OnProgress: func(nodeID string, percent float64, completed, total int) {
			mu.Lock()
			updates = append(updates, percent)
			mu.Unlock()
		},
	}

	def := &workflow.Definition{
		Name: "progress",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
			{ID: "a", Kind: workflow.KindAction, ActionID: "a"},
		},
		Edges: []workflow.Edge{{Source: "start", Target: "a"}},
	}

	_, err := eng.Execute(context.Background(), def, opts)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 2)
	assert.Equal(t, float64(0), updates[0])
	assert.Equal(t, float64(100), updates[1])
}

// fakeEvaluator resolves a single well-known placeholder so the test can
// observe that node config passed through evaluation before dispatch.
type fakeEvaluator struct{}

func (fakeEvaluator) EvaluateInObject(obj map[string]interface{}, scope map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(obj))
	for key, value := range obj {
		if value == "${task.topic}" {
			task, _ := scope["task"].(map[string]interface{})
			out[key] = task["topic"]
			continue
		}
		out[key] = value
	}
	return out, nil
}

func TestExecuteEvaluatesConfigExpressions(t *testing.T) {
	invoker := &stubInvoker{}
	eng := New(invoker)
	eng.SetEvaluator(fakeEvaluator{})

	def := &workflow.Definition{
		Name: "expressions",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
			{ID: "script", Kind: workflow.KindAction, ActionID: "generate-script",
				Config: map[string]interface{}{"prompt": "${task.topic}"}},
		},
		Edges: []workflow.Edge{{Source: "start", Target: "script"}},
	}

	opts := RunOptions{Task: map[string]interface{}{"topic": "summer launch"}}
	_, err := eng.Execute(context.Background(), def, opts)
	require.NoError(t, err)

	require.Len(t, invoker.calls, 1)
	assert.Equal(t, "summer launch", invoker.calls[0].Config["prompt"])
}

type upperTransformer struct{}

func (upperTransformer) Transform(script string, result map[string]interface{}) (map[string]interface{}, error) {
	result["transformed"] = true
	return result, nil
}

func TestExecuteAppliesTransform(t *testing.T) {
	eng := New(&stubInvoker{})
	eng.SetTransformer(upperTransformer{})

	def := &workflow.Definition{
		Name: "transform",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
			{ID: "script", Kind: workflow.KindAction, ActionID: "generate-script",
				Config: map[string]interface{}{"transform": "result.transformed = true"}},
		},
		Edges: []workflow.Edge{{Source: "start", Target: "script"}},
	}

	result, err := eng.Execute(context.Background(), def, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, true, result.Results["script"]["transformed"])
}

func TestExecuteInvalidGraph(t *testing.T) {
	eng := New(&stubInvoker{})

	def := &workflow.Definition{
		Name: "bad graph",
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
		},
		Edges: []workflow.Edge{{Source: "start", Target: "missing"}},
	}

	result, err := eng.Execute(context.Background(), def, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build graph")
	assert.False(t, result.Success)
}

func TestSummarize(t *testing.T) {
	results := map[string]map[string]interface{}{
		"a": {"type": "action"},
		"b": {"type": "action", "error": "boom"},
		"c": {"type": "batch"},
		"d": {},
	}

	summary := Summarize(results)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Counts["action"])
	assert.Equal(t, 1, summary.Counts["batch"])
	assert.Equal(t, 1, summary.Counts["unknown"])
	assert.Equal(t, 1, summary.Errors)
}
