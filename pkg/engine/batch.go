package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/reelflow/reelflow/pkg/workflow"
)

// Variation axis values. Each axis collapses to a single default when its
// toggle is off, so the mixed-radix counter still advances cleanly.
var (
	batchTones   = []string{"energetic", "calm", "dramatic", "humorous", "inspirational"}
	batchStyles  = []string{"minimalist", "cinematic", "vibrant", "retro", "modern"}
	batchHooks   = []string{"question", "statistic", "story", "challenge", "quote"}
	batchLengths = []string{"15 seconds", "30 seconds", "60 seconds", "90 seconds"}
)

// adaptiveChunkSize is the group size for the adaptive batch strategy
const adaptiveChunkSize = 5

// ExpandBatch expands a batch node into its variation items. The expansion
// is a pure function of the node: the same node always produces the same
// items.
//
// Axes advance as a mixed-radix counter (tone fastest, then style, hook,
// length), so every combination is exercised roughly evenly before any
// repeats. Pipeline assignment is an independent round-robin over the
// node's templates.
func ExpandBatch(node *workflow.Node) []workflow.BatchItem {
	variations := node.Variations
	if variations <= 0 {
		variations = workflow.DefaultVariations
	}

	tones := []string{"default"}
	if node.VaryTone {
		tones = batchTones
	}
	styles := []string{"default"}
	if node.VaryStyle {
		styles = batchStyles
	}
	hooks := []string{"default"}
	if node.VaryHook {
		hooks = batchHooks
	}
	lengths := []string{"30 seconds"}
	if node.VaryLength {
		lengths = batchLengths
	}

	templates := node.Templates
	if len(templates) == 0 {
		templates = []string{"general"}
	}

	items := make([]workflow.BatchItem, variations)
	for i := 0; i < variations; i++ {
		tone := tones[i%len(tones)]
		style := styles[(i/len(tones))%len(styles)]
		hook := hooks[(i/(len(tones)*len(styles)))%len(hooks)]
		length := lengths[(i/(len(tones)*len(styles)*len(hooks)))%len(lengths)]
		pipeline := templates[i%len(templates)]

		items[i] = workflow.BatchItem{
			ID:           fmt.Sprintf("%s-variant-%d", node.ID, i+1),
			Variant:      i + 1,
			Prompt:       composePrompt(node.BasePrompt, pipeline, tone, style, hook, length),
			PipelineType: pipeline,
			Tone:         tone,
			Style:        style,
			Hook:         hook,
			Length:       length,
		}
	}
	return items
}

// composePrompt prefixes the base prompt with bracketed tags for every
// non-default axis value and a pipeline framing sentence
func composePrompt(basePrompt, pipeline, tone, style, hook, length string) string {
	var tags []string
	if tone != "default" {
		tags = append(tags, fmt.Sprintf("[Tone: %s]", tone))
	}
	if style != "default" {
		tags = append(tags, fmt.Sprintf("[Style: %s]", style))
	}
	if hook != "default" {
		tags = append(tags, fmt.Sprintf("[Hook: %s]", hook))
	}
	if length != "30 seconds" {
		tags = append(tags, fmt.Sprintf("[Length: %s]", length))
	}

	var b strings.Builder
	if len(tags) > 0 {
		b.WriteString(strings.Join(tags, " "))
		b.WriteString(" ")
	}
	b.WriteString(fmt.Sprintf("Create a %s piece. ", pipeline))
	b.WriteString(basePrompt)
	return b.String()
}

// executeBatch expands a batch node and runs its items under the node's
// strategy. A single item's failure never aborts the batch: the error is
// recorded on the item and execution continues.
func (s *runState) executeBatch(ctx context.Context, node *workflow.Node) (map[string]interface{}, error) {
	items := ExpandBatch(node)
	strategy := workflow.BatchStrategy(node.Strategy)
	if strategy == "" {
		strategy = workflow.BatchParallel
	}

	switch strategy {
	case workflow.BatchParallel:
		s.runItemsParallel(ctx, node, items)
	case workflow.BatchSequential:
		completed := 0
		for i := range items {
			s.runItem(ctx, node, &items[i])
			completed++
			s.reportBatchProgress(node.ID, completed, len(items))
		}
	case workflow.BatchAdaptive:
		// Fixed-size parallel chunks: latency of full fan-out without
		// bursting the provider with every item at once.
		completed := 0
		for start := 0; start < len(items); start += adaptiveChunkSize {
			end := start + adaptiveChunkSize
			if end > len(items) {
				end = len(items)
			}
			var wg sync.WaitGroup
			for i := start; i < end; i++ {
				wg.Add(1)
				go func(item *workflow.BatchItem) {
					defer wg.Done()
					s.runItem(ctx, node, item)
				}(&items[i])
			}
			wg.Wait()
			completed = end
			s.reportBatchProgress(node.ID, completed, len(items))
		}
	default:
		return nil, &ValidationError{NodeID: node.ID, Reason: fmt.Sprintf("unknown batch strategy %q", strategy)}
	}

	summary := workflow.BatchSummary{Total: len(items)}
	pipelines := make(map[string][]workflow.BatchItem)
	for _, item := range items {
		if item.Error != "" {
			summary.Failed++
		} else {
			summary.Successful++
		}
		pipelines[item.PipelineType] = append(pipelines[item.PipelineType], item)
	}

	return map[string]interface{}{
		"type":      workflow.ResultTypeBatch,
		"strategy":  string(strategy),
		"items":     items,
		"pipelines": pipelines,
		"summary":   summary,
	}, nil
}

// runItemsParallel launches every item at once and reports progress as
// completions land, in completion order
func (s *runState) runItemsParallel(ctx context.Context, node *workflow.Node, items []workflow.BatchItem) {
	var (
		mu        sync.Mutex
		completed int
	)
	group, groupCtx := errgroup.WithContext(ctx)
	for i := range items {
		item := &items[i]
		group.Go(func() error {
			s.runItem(groupCtx, node, item)
			mu.Lock()
			completed++
			done := completed
			mu.Unlock()
			s.reportBatchProgress(node.ID, done, len(items))
			return nil
		})
	}
	// Item failures are captured on the items themselves, so the group
	// never returns an error.
	_ = group.Wait()
}

// runItem invokes one variation through the action invoker, storing either
// the result or the error on the item
func (s *runState) runItem(ctx context.Context, node *workflow.Node, item *workflow.BatchItem) {
	config := make(map[string]interface{}, len(node.Config)+5)
	for key, value := range node.Config {
		config[key] = value
	}
	config["prompt"] = item.Prompt
	config["pipeline_type"] = item.PipelineType
	config["variant"] = item.Variant

	actionID := node.ActionID
	if actionID == "" {
		actionID = "generate-script"
	}

	result, err := s.engine.invoker.Invoke(ctx, ActionRequest{
		NodeID:        item.ID,
		ActionID:      actionID,
		ModelID:       node.ModelID,
		ModelProvider: node.ModelProvider,
		Config:        config,
	}, s.wctx)
	if err != nil {
		item.Error = err.Error()
		return
	}
	item.Result = result
}

func (s *runState) reportBatchProgress(nodeID string, completed, total int) {
	percent := float64(0)
	if total > 0 {
		percent = float64(completed) / float64(total) * 100
	}
	s.wctx.Progress(nodeID, percent, completed, total)
}
