package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelflow/reelflow/pkg/engine"
	"github.com/reelflow/reelflow/pkg/workflow"
)

func newRunContext() *workflow.Context {
	return workflow.NewContext(&workflow.Definition{Name: "test"})
}

func TestRegistryRegisterAndInvoke(t *testing.T) {
	r := NewRegistry()
	r.Register("echo", func(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
		return map[string]interface{}{"echo": req.Config["value"]}, nil
	})

	assert.True(t, r.Has("echo"))
	assert.False(t, r.Has("missing"))
	assert.Contains(t, r.Handlers(), "echo")

	result, err := r.Invoke(context.Background(), engine.ActionRequest{
		NodeID:   "n1",
		ActionID: "echo",
		Config:   map[string]interface{}{"value": "hi"},
	}, newRunContext())
	require.NoError(t, err)
	assert.Equal(t, "hi", result["echo"])
}

func TestRegistryInvokeUnknownAction(t *testing.T) {
	r := NewRegistry()

	_, err := r.Invoke(context.Background(), engine.ActionRequest{
		NodeID:   "n1",
		ActionID: "teleport",
	}, newRunContext())
	require.Error(t, err)

	var validationErr *engine.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "n1", validationErr.NodeID)
	assert.Contains(t, validationErr.Reason, `unknown action "teleport"`)
}

func TestRegistryReplaceHandler(t *testing.T) {
	r := NewRegistry()
	r.Register("dup", func(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
		return map[string]interface{}{"version": 1}, nil
	})
	r.Register("dup", func(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
		return map[string]interface{}{"version": 2}, nil
	})

	result, err := r.Invoke(context.Background(), engine.ActionRequest{ActionID: "dup"}, newRunContext())
	require.NoError(t, err)
	assert.Equal(t, 2, result["version"])
}

func TestDefaultRegistryCatalog(t *testing.T) {
	r := NewDefaultRegistry(Providers{})

	for _, actionID := range []string{
		"generate-script", "generate-caption", "analyze-content",
		"generate-image", "create-video", "generate-audio",
		"scrape-profile", "scrape-trending",
		"send-email", "check-replies",
	} {
		assert.True(t, r.Has(actionID), "missing built-in action %s", actionID)
	}
}

func TestDefaultRegistryUnconfiguredProviders(t *testing.T) {
	r := NewDefaultRegistry(Providers{})
	wctx := newRunContext()

	tests := []struct {
		actionID string
		config   map[string]interface{}
		wantErr  string
	}{
		{"generate-script", map[string]interface{}{"prompt": "x"}, "no text client configured"},
		{"generate-image", map[string]interface{}{"prompt": "x"}, "no media provider configured"},
		{"scrape-profile", map[string]interface{}{"username": "x"}, "no social provider configured"},
		{"send-email", map[string]interface{}{"to": "a@b.c", "subject": "s"}, "no email provider configured"},
	}

	for _, tt := range tests {
		t.Run(tt.actionID, func(t *testing.T) {
			_, err := r.Invoke(context.Background(), engine.ActionRequest{
				NodeID:   "n1",
				ActionID: tt.actionID,
				Config:   tt.config,
			}, wctx)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
