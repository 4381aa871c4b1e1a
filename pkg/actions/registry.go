// Package actions implements the action invoker: a registry mapping action
// IDs to handler functions, populated at startup, plus the built-in
// handlers for text, media, social-scraping, and email actions.
package actions

import (
	"context"
	"fmt"
	"sync"

	"github.com/reelflow/reelflow/pkg/engine"
	"github.com/reelflow/reelflow/pkg/utils"
	"github.com/reelflow/reelflow/pkg/workflow"
)

// Handler executes one action kind. Handlers read their parameters from
// the request config and may consult the run context for upstream results.
type Handler func(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error)

// Registry maps action IDs to handlers. It implements engine.Invoker, so
// external collaborators can register new action kinds without touching
// the scheduler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds or replaces the handler for an action ID
func (r *Registry) Register(actionID string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[actionID] = handler
}

// Handlers returns the registered action IDs
func (r *Registry) Handlers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	return ids
}

// Has reports whether an action ID is registered
func (r *Registry) Has(actionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[actionID]
	return ok
}

// Invoke dispatches a request to the handler registered for its action ID
func (r *Registry) Invoke(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
	r.mu.RLock()
	handler, ok := r.handlers[req.ActionID]
	r.mu.RUnlock()

	if !ok {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: fmt.Sprintf("unknown action %q", req.ActionID)}
	}
	return handler(ctx, req, wctx)
}

// Providers bundles the external clients the built-in handlers run
// against. Text clients are keyed by provider name; a missing provider is
// a dispatch-time validation error.
type Providers struct {
	// Text maps a model provider name to its client
	Text map[string]*utils.LLMClient

	// Media generates images, video, and audio
	Media *utils.MediaClient

	// Social scrapes the social platform API
	Social *SocialClient

	// Email delivers campaign emails and checks replies
	Email *utils.EmailClient

	// EmailFrom is the default sender address when a node does not set one
	EmailFrom string
}

// NewDefaultRegistry creates a registry with every built-in handler wired
// to the given providers
func NewDefaultRegistry(providers Providers) *Registry {
	r := NewRegistry()

	r.Register("generate-script", providers.generateScript)
	r.Register("generate-caption", providers.generateCaption)
	r.Register("analyze-content", providers.analyzeContent)

	r.Register("generate-image", providers.generateImage)
	r.Register("create-video", providers.createVideo)
	r.Register("generate-audio", providers.generateAudio)

	r.Register("scrape-profile", providers.scrapeProfile)
	r.Register("scrape-trending", providers.scrapeTrending)

	r.Register("send-email", providers.sendEmail)
	r.Register("check-replies", providers.checkReplies)

	return r
}

// textClient resolves the client for a request's model provider,
// defaulting to openai
func (p Providers) textClient(req engine.ActionRequest) (*utils.LLMClient, error) {
	provider := req.ModelProvider
	if provider == "" {
		provider = string(utils.OpenAI)
	}
	client, ok := p.Text[provider]
	if !ok || client == nil {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: fmt.Sprintf("no text client configured for provider %q", provider)}
	}
	return client, nil
}
