package scripting

import (
	"fmt"

	"github.com/dop251/goja"
)

// ResultTransformer runs a transform snippet over an action result. The
// script sees the payload as `result` and must evaluate to an object,
// which becomes the node's recorded payload, e.g.
//
//	result.caption = result.caption.toUpperCase(); result
type ResultTransformer struct{}

// NewResultTransformer creates a new ResultTransformer
func NewResultTransformer() *ResultTransformer {
	return &ResultTransformer{}
}

// Transform executes the script against the result payload
func (t *ResultTransformer) Transform(script string, result map[string]interface{}) (map[string]interface{}, error) {
	vm := goja.New()
	if err := vm.Set("result", result); err != nil {
		return nil, fmt.Errorf("failed to bind result into scope: %w", err)
	}

	value, err := vm.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("transform script failed: %w", err)
	}

	exported := value.Export()
	transformed, ok := exported.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("transform script must evaluate to an object, got %T", exported)
	}
	return transformed, nil
}
