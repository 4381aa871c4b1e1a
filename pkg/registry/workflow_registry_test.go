package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelflow/reelflow/pkg/loader"
	"github.com/reelflow/reelflow/pkg/storage"
)

const pipelineYAML = `
name: reel pipeline
nodes:
  - id: start
    kind: trigger
    trigger_id: manual
  - id: script
    kind: action
    action_id: generate-script
edges:
  - source: start
    target: script
`

const updatedYAML = `
name: reel pipeline v2
nodes:
  - id: start
    kind: trigger
    trigger_id: manual
  - id: script
    kind: action
    action_id: generate-script
  - id: video
    kind: action
    action_id: create-video
edges:
  - source: start
    target: script
  - source: script
    target: video
`

func newTestRegistry() *WorkflowRegistryService {
	store := storage.NewMemoryWorkflowStore()
	return NewWorkflowRegistry(store, loader.NewLoader(nil))
}

func TestRegistryCreateAndGet(t *testing.T) {
	reg := newTestRegistry()

	id, err := reg.Create("", []byte(pipelineYAML))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	def, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, def.ID)
	assert.Equal(t, "reel pipeline", def.Name)
	require.Len(t, def.Nodes, 2)
}

func TestRegistryCreateWithExplicitName(t *testing.T) {
	reg := newTestRegistry()

	id, err := reg.Create("campaign builder", []byte(pipelineYAML))
	require.NoError(t, err)

	infos, err := reg.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, id, infos[0].ID)
	assert.Equal(t, "campaign builder", infos[0].Name)
	assert.Equal(t, 2, infos[0].NodeCount)
	assert.Equal(t, 1, infos[0].Version)
}

func TestRegistryCreateInvalidDefinition(t *testing.T) {
	reg := newTestRegistry()

	_, err := reg.Create("", []byte("nodes: []\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestRegistryGetNotFound(t *testing.T) {
	reg := newTestRegistry()

	_, err := reg.Get("ghost")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestRegistryUpdate(t *testing.T) {
	reg := newTestRegistry()

	id, err := reg.Create("", []byte(pipelineYAML))
	require.NoError(t, err)

	require.NoError(t, reg.Update(id, []byte(updatedYAML)))

	def, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "reel pipeline v2", def.Name)
	require.Len(t, def.Nodes, 3)

	infos, err := reg.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 2, infos[0].Version)
}

func TestRegistryUpdateNotFound(t *testing.T) {
	reg := newTestRegistry()
	assert.ErrorIs(t, reg.Update("ghost", []byte(pipelineYAML)), ErrWorkflowNotFound)
}

func TestRegistryUpdateInvalidDefinition(t *testing.T) {
	reg := newTestRegistry()

	id, err := reg.Create("", []byte(pipelineYAML))
	require.NoError(t, err)

	err = reg.Update(id, []byte("not: a: workflow"))
	require.Error(t, err)

	// The stored definition is untouched.
	def, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "reel pipeline", def.Name)
}

func TestRegistryDelete(t *testing.T) {
	reg := newTestRegistry()

	id, err := reg.Create("", []byte(pipelineYAML))
	require.NoError(t, err)

	require.NoError(t, reg.Delete(id))
	_, err = reg.Get(id)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	assert.ErrorIs(t, reg.Delete(id), ErrWorkflowNotFound)
}
