package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessTemplateSimpleSubstitution(t *testing.T) {
	variables := map[string]interface{}{
		"topic": "summer sale",
		"results": map[string]interface{}{
			"script": map[string]interface{}{"content": "Buy now!"},
		},
	}

	result, err := ProcessTemplate("Reel about {{topic}}: {{results.script.content}}", variables)
	require.NoError(t, err)
	assert.Equal(t, "Reel about summer sale: Buy now!", result)
}

func TestProcessTemplateArrayIndexing(t *testing.T) {
	variables := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"url": "https://cdn.example.com/1.mp4"},
			map[string]interface{}{"url": "https://cdn.example.com/2.mp4"},
		},
	}

	result, err := ProcessTemplate("First: {{items[0].url}}, second: {{items[1].url}}", variables)
	require.NoError(t, err)
	assert.Equal(t, "First: https://cdn.example.com/1.mp4, second: https://cdn.example.com/2.mp4", result)
}

func TestProcessTemplateMissingPathIsEmpty(t *testing.T) {
	result, err := ProcessTemplate("value: {{does.not.exist}}", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "value: ", result)
}

func TestProcessTemplateIndexOutOfRange(t *testing.T) {
	variables := map[string]interface{}{"items": []interface{}{"only"}}

	result, err := ProcessTemplate("{{items[5]}}", variables)
	require.NoError(t, err)
	assert.Equal(t, "", result)
}

func TestProcessTemplateFromJSON(t *testing.T) {
	variables := map[string]interface{}{
		"response": map[string]interface{}{
			"body": `{"caption": "New drop alert", "score": 9}`,
		},
	}

	result, err := ProcessTemplate("{{response.body | fromjson | .caption}}", variables)
	require.NoError(t, err)
	assert.Equal(t, "New drop alert", result)
}

func TestProcessTemplateFromJSONWithCodeFences(t *testing.T) {
	variables := map[string]interface{}{
		"llm_output": "```json\n{\"caption\": \"Fenced output\"}\n```",
	}

	result, err := ProcessTemplate("{{llm_output | fromjson | .caption}}", variables)
	require.NoError(t, err)
	assert.Equal(t, "Fenced output", result)
}

func TestProcessTemplateFromJSONNonString(t *testing.T) {
	variables := map[string]interface{}{"value": 42}

	_, err := ProcessTemplate("{{value | fromjson}}", variables)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fromjson requires string input")
}

func TestProcessTemplateFromJSONInvalid(t *testing.T) {
	variables := map[string]interface{}{"value": "{broken"}

	_, err := ProcessTemplate("{{value | fromjson}}", variables)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fromjson failed")
}

func TestProcessTemplatePropertyOfNonObject(t *testing.T) {
	variables := map[string]interface{}{"value": "plain"}

	_, err := ProcessTemplate("{{value | .field}}", variables)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access property")
}

func TestProcessTemplateUnknownFunction(t *testing.T) {
	variables := map[string]interface{}{"value": "x"}

	_, err := ProcessTemplate("{{value | shout}}", variables)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown template function")
}

func TestProcessTemplateNoPlaceholders(t *testing.T) {
	result, err := ProcessTemplate("static text", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "static text", result)
}
