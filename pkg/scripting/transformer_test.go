package scripting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformMutatesResult(t *testing.T) {
	transformer := NewResultTransformer()

	result := map[string]interface{}{
		"type":    "script",
		"caption": "big summer sale",
	}

	transformed, err := transformer.Transform(
		"result.caption = result.caption.toUpperCase(); result", result)
	require.NoError(t, err)
	assert.Equal(t, "BIG SUMMER SALE", transformed["caption"])
	assert.Equal(t, "script", transformed["type"])
}

func TestTransformBuildsNewObject(t *testing.T) {
	transformer := NewResultTransformer()

	result := map[string]interface{}{"url": "https://cdn.example.com/clip.mp4"}

	transformed, err := transformer.Transform(
		`({media_url: result.url, published: true})`, result)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/clip.mp4", transformed["media_url"])
	assert.Equal(t, true, transformed["published"])
}

func TestTransformScriptError(t *testing.T) {
	transformer := NewResultTransformer()

	_, err := transformer.Transform("result..broken", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transform script failed")
}

func TestTransformNonObjectResult(t *testing.T) {
	transformer := NewResultTransformer()

	_, err := transformer.Transform(`"just a string"`, map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must evaluate to an object")
}
