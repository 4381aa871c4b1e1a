package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelflow/reelflow/pkg/workflow"
)

func testDefinition(name string) workflow.Definition {
	return workflow.Definition{
		Name: name,
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.KindTrigger, TriggerID: "manual"},
		},
	}
}

func TestMemoryProviderStores(t *testing.T) {
	provider := NewMemoryProvider()
	require.NoError(t, provider.Initialize())
	defer provider.Close()

	assert.NotNil(t, provider.GetWorkflowStore())
	assert.NotNil(t, provider.GetRunStore())
}

func TestMemoryWorkflowStoreCRUD(t *testing.T) {
	store := NewMemoryWorkflowStore()

	record := WorkflowRecord{
		ID:         "wf-1",
		Name:       "reel pipeline",
		Definition: testDefinition("reel pipeline"),
	}
	require.NoError(t, store.SaveWorkflow(record))

	got, err := store.GetWorkflow("wf-1")
	require.NoError(t, err)
	assert.Equal(t, "reel pipeline", got.Name)
	assert.Equal(t, 1, got.Version)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())

	require.NoError(t, store.DeleteWorkflow("wf-1"))
	_, err = store.GetWorkflow("wf-1")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestMemoryWorkflowStoreVersionIncrement(t *testing.T) {
	store := NewMemoryWorkflowStore()

	record := WorkflowRecord{ID: "wf-1", Name: "v1", Definition: testDefinition("v1")}
	require.NoError(t, store.SaveWorkflow(record))

	first, err := store.GetWorkflow("wf-1")
	require.NoError(t, err)

	record.Name = "v2"
	require.NoError(t, store.SaveWorkflow(record))

	second, err := store.GetWorkflow("wf-1")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, "v2", second.Name)

	// Creation time survives updates.
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestMemoryWorkflowStoreListSortedByName(t *testing.T) {
	store := NewMemoryWorkflowStore()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, store.SaveWorkflow(WorkflowRecord{ID: name, Name: name}))
	}

	records, err := store.ListWorkflows()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "alpha", records[0].Name)
	assert.Equal(t, "mid", records[1].Name)
	assert.Equal(t, "zeta", records[2].Name)
}

func TestMemoryWorkflowStoreDeleteMissing(t *testing.T) {
	store := NewMemoryWorkflowStore()
	assert.ErrorIs(t, store.DeleteWorkflow("ghost"), ErrWorkflowNotFound)
}

func TestMemoryRunStoreCRUD(t *testing.T) {
	store := NewMemoryRunStore()

	record := RunRecord{
		ID:         "run-1",
		WorkflowID: "wf-1",
		Status:     RunStatusRunning,
		Task:       "promo video",
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.SaveRun(record))

	got, err := store.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, got.Status)
	assert.Equal(t, "promo video", got.Task)

	// SaveRun overwrites: a run settles by being saved again.
	record.Status = RunStatusSucceeded
	record.CompletedAt = time.Now().UTC()
	require.NoError(t, store.SaveRun(record))

	got, err = store.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusSucceeded, got.Status)
	assert.False(t, got.CompletedAt.IsZero())

	require.NoError(t, store.DeleteRun("run-1"))
	_, err = store.GetRun("run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestMemoryRunStoreListFiltersAndSorts(t *testing.T) {
	store := NewMemoryRunStore()

	base := time.Now().UTC()
	runs := []RunRecord{
		{ID: "r1", WorkflowID: "wf-a", StartedAt: base.Add(-3 * time.Minute)},
		{ID: "r2", WorkflowID: "wf-b", StartedAt: base.Add(-2 * time.Minute)},
		{ID: "r3", WorkflowID: "wf-a", StartedAt: base.Add(-1 * time.Minute)},
	}
	for _, run := range runs {
		require.NoError(t, store.SaveRun(run))
	}

	all, err := store.ListRuns("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r3", all[0].ID)
	assert.Equal(t, "r1", all[2].ID)

	filtered, err := store.ListRuns("wf-a")
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "r3", filtered[0].ID)
	assert.Equal(t, "r1", filtered[1].ID)
}
