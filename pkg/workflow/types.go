// Package workflow defines the data model consumed by the execution engine:
// node/edge definitions, the derived execution graph, and the per-run context.
package workflow

// NodeKind identifies the behavior class of a node
type NodeKind string

const (
	// KindTrigger is a root node that starts a run
	KindTrigger NodeKind = "trigger"

	// KindAction is a node that invokes an external generation/analysis provider
	KindAction NodeKind = "action"

	// KindSplitter fans execution out across its successors
	KindSplitter NodeKind = "splitter"

	// KindMerge fans parallel branches back in
	KindMerge NodeKind = "merge"

	// KindBatch expands into a set of parameterized variations
	KindBatch NodeKind = "batch"
)

// Valid reports whether the kind is one of the known node kinds
func (k NodeKind) Valid() bool {
	switch k {
	case KindTrigger, KindAction, KindSplitter, KindMerge, KindBatch:
		return true
	}
	return false
}

// SplitStrategy controls how a splitter dispatches its branches
type SplitStrategy string

const (
	// SplitParallel launches every branch concurrently
	SplitParallel SplitStrategy = "parallel"

	// SplitRandom executes a single branch chosen uniformly at random
	SplitRandom SplitStrategy = "random"

	// SplitConditional is accepted but routes like parallel; condition
	// expressions are not evaluated
	SplitConditional SplitStrategy = "conditional"
)

// Valid reports whether the strategy is one of the known split strategies
func (s SplitStrategy) Valid() bool {
	switch s {
	case SplitParallel, SplitRandom, SplitConditional:
		return true
	}
	return false
}

// MergeStrategy controls how a merge node combines its inputs
type MergeStrategy string

const (
	// MergeCollect gathers every predecessor result
	MergeCollect MergeStrategy = "collect"

	// MergeFirst returns the first collected result
	MergeFirst MergeStrategy = "first"

	// MergeBest is a placeholder; no scoring function is defined, so it
	// behaves like first
	MergeBest MergeStrategy = "best"
)

// Valid reports whether the strategy is one of the known merge strategies
func (s MergeStrategy) Valid() bool {
	switch s {
	case MergeCollect, MergeFirst, MergeBest:
		return true
	}
	return false
}

// BatchStrategy controls how batch items are executed
type BatchStrategy string

const (
	// BatchParallel runs every item concurrently
	BatchParallel BatchStrategy = "parallel"

	// BatchSequential runs one item at a time
	BatchSequential BatchStrategy = "sequential"

	// BatchAdaptive runs items in parallel chunks of five
	BatchAdaptive BatchStrategy = "adaptive"
)

// Valid reports whether the strategy is one of the known batch strategies
func (s BatchStrategy) Valid() bool {
	switch s {
	case BatchParallel, BatchSequential, BatchAdaptive:
		return true
	}
	return false
}

// DefaultVariations is the batch expansion count when none is configured
const DefaultVariations = 10

// Node is a unit of the execution graph. Which optional fields are
// meaningful is determined by Kind; the engine never reads
// kind-inappropriate fields.
type Node struct {
	// ID is the caller-assigned identifier, stable across a run
	ID string `json:"id" yaml:"id"`

	// Kind selects the executor for this node
	Kind NodeKind `json:"kind" yaml:"kind"`

	// ActionID names the concrete action to run (action nodes)
	ActionID string `json:"action_id,omitempty" yaml:"action_id,omitempty"`

	// TriggerID names the trigger behavior (trigger nodes)
	TriggerID string `json:"trigger_id,omitempty" yaml:"trigger_id,omitempty"`

	// FlowID names a target pipeline (splitter/merge nodes)
	FlowID string `json:"flow_id,omitempty" yaml:"flow_id,omitempty"`

	// Config holds per-node parameters; validity is enforced per-action
	// at dispatch time
	Config map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`

	// ModelID names which external model an action node should invoke
	ModelID string `json:"model_id,omitempty" yaml:"model_id,omitempty"`

	// ModelProvider names which provider hosts ModelID
	ModelProvider string `json:"model_provider,omitempty" yaml:"model_provider,omitempty"`

	// Batch-only attributes

	// Variations is the number of items a batch node expands into
	Variations int `json:"variations,omitempty" yaml:"variations,omitempty"`

	// Strategy selects the batch execution strategy
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// BasePrompt is the prompt every variation is derived from
	BasePrompt string `json:"base_prompt,omitempty" yaml:"base_prompt,omitempty"`

	// VaryTone toggles the tone axis
	VaryTone bool `json:"vary_tone,omitempty" yaml:"vary_tone,omitempty"`

	// VaryStyle toggles the style axis
	VaryStyle bool `json:"vary_style,omitempty" yaml:"vary_style,omitempty"`

	// VaryHook toggles the hook axis
	VaryHook bool `json:"vary_hook,omitempty" yaml:"vary_hook,omitempty"`

	// VaryLength toggles the length axis
	VaryLength bool `json:"vary_length,omitempty" yaml:"vary_length,omitempty"`

	// Templates lists the target pipeline tags variations are assigned to
	Templates []string `json:"templates,omitempty" yaml:"templates,omitempty"`
}

// Edge is a directed source -> target connection between two nodes
type Edge struct {
	// Source is the upstream node ID
	Source string `json:"source" yaml:"source"`

	// Target is the downstream node ID
	Target string `json:"target" yaml:"target"`

	// SourceHandle disambiguates which output port of the source this
	// edge leaves from
	SourceHandle string `json:"source_handle,omitempty" yaml:"source_handle,omitempty"`

	// TargetHandle disambiguates which input port of the target this
	// edge attaches to
	TargetHandle string `json:"target_handle,omitempty" yaml:"target_handle,omitempty"`
}

// Definition is a complete workflow as produced by the visual builder
type Definition struct {
	// ID of the workflow
	ID string `json:"id" yaml:"id"`

	// Name of the workflow
	Name string `json:"name" yaml:"name"`

	// Nodes in the graph
	Nodes []Node `json:"nodes" yaml:"nodes"`

	// Edges connecting the nodes
	Edges []Edge `json:"edges" yaml:"edges"`
}

// BatchItem is one expanded variation of a batch node
type BatchItem struct {
	// ID of the item
	ID string `json:"id"`

	// Variant is the 1-based index of the item
	Variant int `json:"variant"`

	// Prompt is the fully composed prompt for this variation
	Prompt string `json:"prompt"`

	// PipelineType is the template/category this item belongs to
	PipelineType string `json:"pipeline_type"`

	// Tone chosen for this variant
	Tone string `json:"tone"`

	// Style chosen for this variant
	Style string `json:"style"`

	// Hook chosen for this variant
	Hook string `json:"hook"`

	// Length chosen for this variant
	Length string `json:"length"`

	// Result of executing the item, if it succeeded
	Result map[string]interface{} `json:"result,omitempty"`

	// Error message if the item failed; a failed item never aborts its batch
	Error string `json:"error,omitempty"`
}

// BatchSummary describes the outcome of a batch execution
type BatchSummary struct {
	// Total number of items
	Total int `json:"total"`

	// Successful item count
	Successful int `json:"successful"`

	// Failed item count
	Failed int `json:"failed"`
}

// Result payload type discriminators. Payloads are open maps tagged with a
// "type" key; these constants cover the closed-ish set the aggregator
// understands.
const (
	ResultTypeImage      = "image"
	ResultTypeVideo      = "video"
	ResultTypeAudio      = "audio"
	ResultTypeScript     = "script"
	ResultTypeSocialPost = "social_post"
	ResultTypeMetrics    = "metrics"
	ResultTypeTrigger    = "trigger"
	ResultTypeSplitter   = "splitter"
	ResultTypeMerge      = "merge"
	ResultTypeBatch      = "batch"
)
