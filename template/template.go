package template

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
)

// Regular expression to match {{expression}} patterns.
var celExprReg = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Expand expands template expressions in the format {{CEL expression}} with values from the store.
func Expand(template string, store map[string]any) (string, error) {
	env, err := createCELEnv(store)
	if err != nil {
		return "", fmt.Errorf("failed to create CEL environment: %w", err)
	}

	var expandErr error
	result := celExprReg.ReplaceAllStringFunc(template, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		out, err := eval(env, expr, store)
		if err != nil {
			expandErr = fmt.Errorf("template error for '{{%s}}': %w", expr, err)
			return match
		}
		return fmt.Sprintf("%v", out)
	})
	if expandErr != nil {
		return "", expandErr
	}
	return result, nil
}

// Match evaluates a CEL condition against the store. The expression must evaluate to a bool.
func Match(cond string, store map[string]any) (bool, error) {
	env, err := createCELEnv(store)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	out, err := eval(env, cond, store)
	if err != nil {
		return false, fmt.Errorf("condition error for '%s': %w", cond, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition '%s' evaluated to %T, want bool", cond, out)
	}
	return b, nil
}

// EnvironToMap returns the process environment as a map.
func EnvironToMap() map[string]string {
	m := map[string]string{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		m[k] = v
	}
	return m
}

func eval(env *cel.Env, expr string, store map[string]any) (any, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation error: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	out, _, err := prg.Eval(store)
	if err != nil {
		return nil, fmt.Errorf("evaluation error: %w", err)
	}
	return out.Value(), nil
}

// createCELEnv creates a CEL environment with all variables from the store.
func createCELEnv(store map[string]any) (*cel.Env, error) {
	var options []cel.EnvOption
	for key, value := range store {
		options = append(options, cel.Variable(key, inferCELType(value)))
	}
	return cel.NewEnv(options...)
}

// inferCELType infers the CEL type from a Go value.
func inferCELType(value any) *cel.Type {
	switch value.(type) {
	case string:
		return cel.StringType
	case int, int32, int64:
		return cel.IntType
	case float32, float64:
		return cel.DoubleType
	case bool:
		return cel.BoolType
	case map[string]any:
		return cel.MapType(cel.StringType, cel.AnyType)
	case map[string]string:
		return cel.MapType(cel.StringType, cel.StringType)
	case []any:
		return cel.ListType(cel.AnyType)
	case []string:
		return cel.ListType(cel.StringType)
	default:
		return cel.AnyType
	}
}
