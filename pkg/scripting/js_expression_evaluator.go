package scripting

import (
	"fmt"
	"strings"

	"github.com/robertkrimen/otto"
)

// JSExpressionEvaluator evaluates ${...} expressions with a JavaScript
// engine. Each evaluation runs in a fresh VM so one node's scope never
// bleeds into another's.
type JSExpressionEvaluator struct{}

// NewJSExpressionEvaluator creates a new JSExpressionEvaluator
func NewJSExpressionEvaluator() *JSExpressionEvaluator {
	return &JSExpressionEvaluator{}
}

// Evaluate processes an expression string with the given scope. Strings
// that are not ${...} expressions pass through unchanged.
func (e *JSExpressionEvaluator) Evaluate(expression string, scope map[string]any) (any, error) {
	if !strings.HasPrefix(expression, "${") || !strings.HasSuffix(expression, "}") {
		return expression, nil
	}
	expr := expression[2 : len(expression)-1]

	vm := otto.New()
	for key, value := range scope {
		if err := vm.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to bind %q into scope: %w", key, err)
		}
	}

	result, err := vm.Run(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression '%s': %w", expr, err)
	}

	goValue, err := result.Export()
	if err != nil {
		return nil, fmt.Errorf("failed to convert result to Go value: %w", err)
	}
	return goValue, nil
}

// EvaluateInObject processes all expressions in an object, recursing into
// nested maps and slices
func (e *JSExpressionEvaluator) EvaluateInObject(obj map[string]any, scope map[string]any) (map[string]any, error) {
	result := make(map[string]any, len(obj))

	for key, value := range obj {
		evaluated, err := e.evaluateValue(value, scope)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		result[key] = evaluated
	}
	return result, nil
}

func (e *JSExpressionEvaluator) evaluateValue(value any, scope map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return e.Evaluate(v, scope)
	case map[string]any:
		return e.EvaluateInObject(v, scope)
	case []any:
		evaluated := make([]any, len(v))
		for i, item := range v {
			result, err := e.evaluateValue(item, scope)
			if err != nil {
				return nil, err
			}
			evaluated[i] = result
		}
		return evaluated, nil
	default:
		return value, nil
	}
}
