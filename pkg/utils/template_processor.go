package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	templateExpr = regexp.MustCompile(`{{([^}]+)}}`)
	indexExpr    = regexp.MustCompile(`^(.+)\[(\d+)\]$`)
)

// ProcessTemplate substitutes {{path}} placeholders in a template with
// values from the variable map. Paths use dot notation with optional array
// indexing, e.g. {{results.script.content}} or {{items[0].url}}, and may
// pipe through "fromjson" or a ".property" accessor:
//
//	{{response.body | fromjson | .caption}}
func ProcessTemplate(template string, variables map[string]interface{}) (string, error) {
	var firstErr error

	result := templateExpr.ReplaceAllStringFunc(template, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		parts := strings.Split(expr, "|")

		value := lookupPath(variables, strings.TrimSpace(parts[0]))

		for _, part := range parts[1:] {
			op := strings.TrimSpace(part)
			switch {
			case op == "fromjson":
				strValue, ok := value.(string)
				if !ok {
					if firstErr == nil {
						firstErr = fmt.Errorf("fromjson requires string input for %q", expr)
					}
					return match
				}
				var parsed interface{}
				if err := ParseJSON(strValue, &parsed); err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("fromjson failed for %q: %w", expr, err)
					}
					return match
				}
				value = parsed
			case strings.HasPrefix(op, "."):
				mapValue, ok := value.(map[string]interface{})
				if !ok {
					if firstErr == nil {
						firstErr = fmt.Errorf("cannot access property %s of non-object in %q", op, expr)
					}
					return match
				}
				value = mapValue[op[1:]]
			default:
				if firstErr == nil {
					firstErr = fmt.Errorf("unknown template function %q in %q", op, expr)
				}
				return match
			}
		}

		if value == nil {
			return ""
		}
		return fmt.Sprintf("%v", value)
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// lookupPath walks a dot path, with [n] array indexing, through nested
// maps and slices
func lookupPath(data map[string]interface{}, path string) interface{} {
	var current interface{} = data

	for _, part := range strings.Split(path, ".") {
		if m := indexExpr.FindStringSubmatch(part); m != nil {
			currentMap, ok := current.(map[string]interface{})
			if !ok {
				return nil
			}
			current = currentMap[m[1]]

			array, ok := current.([]interface{})
			if !ok {
				return nil
			}
			index, _ := strconv.Atoi(m[2])
			if index < 0 || index >= len(array) {
				return nil
			}
			current = array[index]
			continue
		}

		currentMap, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = currentMap[part]
	}

	return current
}
