package actions

import (
	"context"

	"github.com/reelflow/reelflow/pkg/engine"
	"github.com/reelflow/reelflow/pkg/utils"
	"github.com/reelflow/reelflow/pkg/workflow"
)

const (
	defaultImageModel = "sd-xl"
	defaultVideoModel = "kling-1.5"
	defaultAudioModel = "eleven-v2"
)

// generateImage renders a still image for the node's prompt
func (p Providers) generateImage(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
	prompt := mediaPrompt(req, wctx)
	if prompt == "" {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "image generation requires a prompt"}
	}

	options := map[string]interface{}{}
	if style, ok := req.Config["style"].(string); ok && style != "" {
		options["style"] = style
	}
	if dimensions, ok := req.Config["dimensions"].(string); ok && dimensions != "" {
		options["dimensions"] = dimensions
	}

	resp, err := p.generate(ctx, req, utils.MediaRequest{
		Kind:    utils.MediaImage,
		Model:   modelOr(req, defaultImageModel),
		Prompt:  prompt,
		Options: options,
	})
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"type":   workflow.ResultTypeImage,
		"url":    resp.URL,
		"prompt": prompt,
		"model":  resp.Model,
	}
	if style, ok := options["style"]; ok {
		result["style"] = style
	}
	return result, nil
}

// createVideo renders a video clip. With config.use_context set, the clip
// is animated from the nearest upstream image result; a missing reference
// image is a validation error.
func (p Providers) createVideo(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
	prompt := mediaPrompt(req, wctx)
	if prompt == "" {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "video generation requires a prompt"}
	}

	options := map[string]interface{}{}

	sourceImage, _ := req.Config["source_image"].(string)
	useContext, _ := req.Config["use_context"].(bool)
	if sourceImage == "" && useContext {
		sourceImage = upstreamImageURL(wctx)
		if sourceImage == "" {
			return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "no reference image found for contextual generation"}
		}
	}
	if sourceImage != "" {
		options["source_image"] = sourceImage
	}

	resp, err := p.generate(ctx, req, utils.MediaRequest{
		Kind:    utils.MediaVideo,
		Model:   modelOr(req, defaultVideoModel),
		Prompt:  prompt,
		Options: options,
	})
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"type":   workflow.ResultTypeVideo,
		"url":    resp.URL,
		"prompt": prompt,
		"model":  resp.Model,
	}
	if sourceImage != "" {
		result["sourceImage"] = sourceImage
	}
	return result, nil
}

// generateAudio renders a voiceover or soundtrack
func (p Providers) generateAudio(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
	prompt := mediaPrompt(req, wctx)
	if prompt == "" {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "audio generation requires a prompt or an upstream script"}
	}

	options := map[string]interface{}{}
	if voice, ok := req.Config["voice"].(string); ok && voice != "" {
		options["voice"] = voice
	}

	resp, err := p.generate(ctx, req, utils.MediaRequest{
		Kind:    utils.MediaAudio,
		Model:   modelOr(req, defaultAudioModel),
		Prompt:  prompt,
		Options: options,
	})
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"type":   workflow.ResultTypeAudio,
		"url":    resp.URL,
		"prompt": prompt,
		"model":  resp.Model,
	}
	if voice, ok := options["voice"]; ok {
		result["voice"] = voice
	}
	return result, nil
}

// generate calls the media provider, mapping timeouts onto the engine's
// error taxonomy so the scheduler can tell a blown budget from a provider
// fault
func (p Providers) generate(ctx context.Context, req engine.ActionRequest, mediaReq utils.MediaRequest) (*utils.MediaResponse, error) {
	if p.Media == nil {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "no media provider configured"}
	}
	resp, err := p.Media.Generate(ctx, mediaReq)
	if err != nil {
		if utils.IsTimeout(err) {
			return nil, &engine.TimeoutError{Provider: "media", Budget: mediaReq.Kind.Budget().String()}
		}
		return nil, &engine.ProviderError{Provider: "media", Err: err}
	}
	return resp, nil
}

// mediaPrompt resolves the prompt for a media node: explicit config first,
// then the last generated script
func mediaPrompt(req engine.ActionRequest, wctx *workflow.Context) string {
	if prompt, ok := req.Config["prompt"].(string); ok && prompt != "" {
		return prompt
	}
	if script, ok := wctx.Variable("last_script"); ok {
		if s, ok := script.(string); ok {
			return s
		}
	}
	return ""
}

// upstreamImageURL finds an image result already recorded in this run
func upstreamImageURL(wctx *workflow.Context) string {
	for _, payload := range wctx.Results() {
		if payload["type"] == workflow.ResultTypeImage {
			if url, ok := payload["url"].(string); ok && url != "" {
				return url
			}
		}
	}
	return ""
}

func modelOr(req engine.ActionRequest, fallback string) string {
	if req.ModelID != "" {
		return req.ModelID
	}
	return fallback
}
