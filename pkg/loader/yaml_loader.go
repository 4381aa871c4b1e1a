// Package loader provides parsing and validation of workflow definitions
// from YAML or JSON documents.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/reelflow/reelflow/pkg/workflow"
)

// DefaultLoader is the standard implementation of the Loader interface.
type DefaultLoader struct {
	actions ActionCatalog
}

// NewLoader creates a loader. The catalog may be nil, in which case
// action identifiers are not checked against registered handlers.
func NewLoader(actions ActionCatalog) *DefaultLoader {
	return &DefaultLoader{actions: actions}
}

// Parse converts a YAML or JSON document into a workflow definition.
// The format is detected from the first non-space byte.
func (l *DefaultLoader) Parse(content []byte) (*workflow.Definition, error) {
	var def workflow.Definition

	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty workflow definition")
	}

	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &def); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &def); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := l.validateDefinition(&def); err != nil {
		return nil, err
	}

	return &def, nil
}

// Validate checks if a document conforms to the schema without
// returning the parsed definition.
func (l *DefaultLoader) Validate(content []byte) error {
	_, err := l.Parse(content)
	return err
}

// validateDefinition checks structural and referential integrity of a
// parsed definition.
func (l *DefaultLoader) validateDefinition(def *workflow.Definition) error {
	if def.Name == "" {
		return fmt.Errorf("workflow name is required")
	}

	if len(def.Nodes) == 0 {
		return fmt.Errorf("workflow must contain at least one node")
	}

	seen := make(map[string]bool, len(def.Nodes))
	triggers := 0

	for i := range def.Nodes {
		node := &def.Nodes[i]
		if node.ID == "" {
			return fmt.Errorf("node at index %d has no id", i)
		}
		if seen[node.ID] {
			return fmt.Errorf("duplicate node id %s", node.ID)
		}
		seen[node.ID] = true

		if !node.Kind.Valid() {
			return fmt.Errorf("node %s has unknown kind %q", node.ID, node.Kind)
		}

		switch node.Kind {
		case workflow.KindTrigger:
			triggers++
		case workflow.KindAction:
			if node.ActionID == "" {
				return fmt.Errorf("action node %s has no action_id", node.ID)
			}
			if l.actions != nil && !l.actions.Has(node.ActionID) {
				return fmt.Errorf("action node %s references unknown action %q", node.ID, node.ActionID)
			}
		case workflow.KindSplitter:
			if node.Strategy != "" && !workflow.SplitStrategy(node.Strategy).Valid() {
				return fmt.Errorf("splitter node %s has unknown strategy %q", node.ID, node.Strategy)
			}
		case workflow.KindMerge:
			if node.Strategy != "" && !workflow.MergeStrategy(node.Strategy).Valid() {
				return fmt.Errorf("merge node %s has unknown strategy %q", node.ID, node.Strategy)
			}
		case workflow.KindBatch:
			if node.Strategy != "" && !workflow.BatchStrategy(node.Strategy).Valid() {
				return fmt.Errorf("batch node %s has unknown strategy %q", node.ID, node.Strategy)
			}
			if node.Variations < 0 {
				return fmt.Errorf("batch node %s has negative variation count", node.ID)
			}
		}
	}

	if triggers == 0 {
		return fmt.Errorf("workflow must contain at least one trigger node")
	}

	for i, edge := range def.Edges {
		if edge.Source == "" || edge.Target == "" {
			return fmt.Errorf("edge at index %d is missing source or target", i)
		}
		if !seen[edge.Source] {
			return fmt.Errorf("edge %s -> %s references unknown source node", edge.Source, edge.Target)
		}
		if !seen[edge.Target] {
			return fmt.Errorf("edge %s -> %s references unknown target node", edge.Source, edge.Target)
		}
	}

	return nil
}
