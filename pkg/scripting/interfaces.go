// Package scripting evaluates JavaScript expressions embedded in node
// config and runs post-dispatch transform snippets over action results.
package scripting

// ExpressionEvaluator evaluates ${...} expressions in node configuration
type ExpressionEvaluator interface {
	// Evaluate processes an expression string with the given scope
	Evaluate(expression string, scope map[string]any) (any, error)

	// EvaluateInObject processes all expressions in an object
	EvaluateInObject(obj map[string]any, scope map[string]any) (map[string]any, error)
}
