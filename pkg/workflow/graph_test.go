package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGraph(t *testing.T) {
	nodes := []Node{
		{ID: "start", Kind: KindTrigger},
		{ID: "script", Kind: KindAction, ActionID: "generate-script"},
		{ID: "image", Kind: KindAction, ActionID: "generate-image"},
		{ID: "isolated", Kind: KindAction, ActionID: "analyze-content"},
	}
	edges := []Edge{
		{Source: "start", Target: "script"},
		{Source: "script", Target: "image"},
	}

	graph, err := BuildGraph(nodes, edges)
	require.NoError(t, err)

	assert.Equal(t, []string{"start"}, graph.TriggerIDs)
	assert.Equal(t, []string{"script"}, graph.Adjacency["start"])
	assert.Equal(t, []string{"image"}, graph.Adjacency["script"])

	// Isolated nodes still get an adjacency entry
	successors, ok := graph.Adjacency["isolated"]
	assert.True(t, ok)
	assert.Empty(t, successors)

	assert.NotNil(t, graph.Node("script"))
	assert.Nil(t, graph.Node("missing"))
}

func TestBuildGraphDuplicateNodeID(t *testing.T) {
	nodes := []Node{
		{ID: "a", Kind: KindTrigger},
		{ID: "a", Kind: KindAction, ActionID: "generate-script"},
	}

	_, err := BuildGraph(nodes, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id")
}

func TestBuildGraphMissingNodeID(t *testing.T) {
	nodes := []Node{
		{Kind: KindTrigger},
	}

	_, err := BuildGraph(nodes, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no id")
}

func TestBuildGraphEdgeToUnknownNode(t *testing.T) {
	nodes := []Node{
		{ID: "start", Kind: KindTrigger},
	}

	_, err := BuildGraph(nodes, []Edge{{Source: "start", Target: "ghost"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-existent target")

	_, err = BuildGraph(nodes, []Edge{{Source: "ghost", Target: "start"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-existent source")
}

func TestFindCycle(t *testing.T) {
	nodes := []Node{
		{ID: "start", Kind: KindTrigger},
		{ID: "a", Kind: KindAction, ActionID: "generate-script"},
		{ID: "b", Kind: KindAction, ActionID: "generate-caption"},
	}
	edges := []Edge{
		{Source: "start", Target: "a"},
		{Source: "a", Target: "b"},
		{Source: "b", Target: "a"},
	}

	graph, err := BuildGraph(nodes, edges)
	require.NoError(t, err)

	nodeID, found := graph.FindCycle()
	assert.True(t, found)
	assert.Equal(t, "a", nodeID)
}

func TestFindCycleAcceptsFanIn(t *testing.T) {
	// A diamond has two paths into the same node but no back edge.
	nodes := []Node{
		{ID: "start", Kind: KindTrigger},
		{ID: "a", Kind: KindAction, ActionID: "generate-script"},
		{ID: "b", Kind: KindAction, ActionID: "generate-caption"},
		{ID: "merge", Kind: KindMerge},
	}
	edges := []Edge{
		{Source: "start", Target: "a"},
		{Source: "start", Target: "b"},
		{Source: "a", Target: "merge"},
		{Source: "b", Target: "merge"},
	}

	graph, err := BuildGraph(nodes, edges)
	require.NoError(t, err)

	_, found := graph.FindCycle()
	assert.False(t, found)
}

func TestPredecessorsPreserveEdgeOrder(t *testing.T) {
	nodes := []Node{
		{ID: "start", Kind: KindTrigger},
		{ID: "a", Kind: KindAction, ActionID: "generate-script"},
		{ID: "b", Kind: KindAction, ActionID: "generate-caption"},
		{ID: "c", Kind: KindAction, ActionID: "analyze-content"},
		{ID: "merge", Kind: KindMerge},
	}
	edges := []Edge{
		{Source: "start", Target: "a"},
		{Source: "start", Target: "b"},
		{Source: "start", Target: "c"},
		{Source: "b", Target: "merge"},
		{Source: "a", Target: "merge"},
		{Source: "c", Target: "merge"},
	}

	graph, err := BuildGraph(nodes, edges)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a", "c"}, graph.Predecessors("merge"))
	assert.Empty(t, graph.Predecessors("start"))
}
