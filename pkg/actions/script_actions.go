package actions

import (
	"context"
	"fmt"

	"github.com/reelflow/reelflow/pkg/engine"
	"github.com/reelflow/reelflow/pkg/utils"
	"github.com/reelflow/reelflow/pkg/workflow"
)

// System prompts per script content type. Unknown types fall back to the
// "general" prompt rather than failing.
var scriptSystemPrompts = map[string]string{
	"general":      "You are a short-form video scriptwriter. Write tight, engaging scripts.",
	"bible_verse":  "You are a scriptwriter for reflective faith content. Build the script around the requested verse.",
	"motivational": "You are a scriptwriter for high-energy motivational content.",
	"educational":  "You are a scriptwriter for clear, factual explainer content.",
}

const defaultTextModel = "gpt-4o-mini"

// generateScript produces a video script from the node's prompt and
// content type
func (p Providers) generateScript(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
	client, err := p.textClient(req)
	if err != nil {
		return nil, err
	}

	prompt, _ := req.Config["prompt"].(string)
	contentType, _ := req.Config["type"].(string)
	if prompt == "" && contentType == "" {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "script generation requires a prompt or a content type"}
	}
	if prompt == "" {
		prompt = fmt.Sprintf("Write a short-form video script for %s content.", contentType)
	}

	system, ok := scriptSystemPrompts[contentType]
	if !ok {
		system = scriptSystemPrompts["general"]
	}

	resp, err := complete(ctx, client, req, system, prompt)
	if err != nil {
		return nil, err
	}

	// Later nodes pick the script up through the variable scratchpad
	wctx.SetVariable("last_script", resp.Content)
	wctx.SetVariable("last_prompt", prompt)

	return map[string]interface{}{
		"type":         workflow.ResultTypeScript,
		"content":      resp.Content,
		"prompt":       prompt,
		"content_type": contentType,
		"model":        resp.Model,
	}, nil
}

// generateCaption produces a social caption, optionally derived from an
// upstream script
func (p Providers) generateCaption(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
	client, err := p.textClient(req)
	if err != nil {
		return nil, err
	}

	prompt, _ := req.Config["prompt"].(string)
	if prompt == "" {
		if script, ok := wctx.Variable("last_script"); ok {
			prompt = fmt.Sprintf("Write a social caption with hashtags for this script:\n%v", script)
		}
	}
	if prompt == "" {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "caption generation requires a prompt or an upstream script"}
	}

	resp, err := complete(ctx, client, req, "You write concise social media captions with relevant hashtags.", prompt)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"type":    workflow.ResultTypeSocialPost,
		"caption": resp.Content,
		"prompt":  prompt,
		"model":   resp.Model,
	}, nil
}

// analyzeContent scores a piece of content and returns metrics
func (p Providers) analyzeContent(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
	client, err := p.textClient(req)
	if err != nil {
		return nil, err
	}

	content, _ := req.Config["content"].(string)
	if content == "" {
		if script, ok := wctx.Variable("last_script"); ok {
			content, _ = script.(string)
		}
	}
	if content == "" {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "analysis requires content or an upstream script"}
	}

	prompt := fmt.Sprintf("Analyze this content for hook strength, pacing, and clarity. Reply with a short assessment.\n\n%s", content)
	resp, err := complete(ctx, client, req, "You are a short-form content performance analyst.", prompt)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"type":     workflow.ResultTypeMetrics,
		"analysis": resp.Content,
		"model":    resp.Model,
	}, nil
}

// complete runs one completion with the request's model settings, mapping
// transport failures onto the engine's error taxonomy
func complete(ctx context.Context, client *utils.LLMClient, req engine.ActionRequest, system, prompt string) (*utils.CompletionResponse, error) {
	model := req.ModelID
	if model == "" {
		model = defaultTextModel
	}

	request := utils.CompletionRequest{
		Model: model,
		Messages: []utils.ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}
	if temperature, ok := req.Config["temperature"].(float64); ok {
		request.Temperature = temperature
	}
	if maxTokens, ok := req.Config["max_tokens"].(float64); ok {
		request.MaxTokens = int(maxTokens)
	}

	resp, err := client.Complete(ctx, request)
	if err != nil {
		if utils.IsTimeout(err) {
			return nil, &engine.TimeoutError{Provider: providerName(req), Budget: "30s"}
		}
		return nil, &engine.ProviderError{Provider: providerName(req), Err: err}
	}
	return resp, nil
}

func providerName(req engine.ActionRequest) string {
	if req.ModelProvider != "" {
		return req.ModelProvider
	}
	return string(utils.OpenAI)
}
