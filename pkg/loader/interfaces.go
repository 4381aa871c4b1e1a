package loader

import (
	"github.com/reelflow/reelflow/pkg/workflow"
)

// Loader parses workflow definitions from YAML or JSON documents.
type Loader interface {
	// Parse converts a document into a workflow definition
	Parse(content []byte) (*workflow.Definition, error)

	// Validate checks if a document conforms to the schema
	Validate(content []byte) error
}

// ActionCatalog reports whether an action handler is registered.
// The loader uses it to reject definitions referencing unknown actions.
type ActionCatalog interface {
	Has(actionID string) bool
}
