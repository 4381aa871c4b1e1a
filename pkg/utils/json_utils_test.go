package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONPlain(t *testing.T) {
	var result map[string]interface{}
	err := ParseJSON(`{"title": "Reel script"}`, &result)
	require.NoError(t, err)
	assert.Equal(t, "Reel script", result["title"])
}

func TestParseJSONFenced(t *testing.T) {
	input := "```json\n{\"hook\": \"Did you know?\"}\n```"

	var result map[string]interface{}
	err := ParseJSON(input, &result)
	require.NoError(t, err)
	assert.Equal(t, "Did you know?", result["hook"])
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, StripCodeFences("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, StripCodeFences("```\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, StripCodeFences(`{"a": 1}`))
	assert.Equal(t, "plain text", StripCodeFences("  plain text  "))
}
