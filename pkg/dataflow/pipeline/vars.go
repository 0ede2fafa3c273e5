package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
)

// ErrUndefinedVariable indicates a ${name} placeholder with no matching
// entry under vars.
var ErrUndefinedVariable = errors.New("undefined variable")

// placeholder matches ${name}; name is alphanumeric and underscore.
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// ExpandVars substitutes ${name} placeholders under the nodes key of c
// with values from its vars key. A string that is exactly one placeholder
// takes the variable's value and type, so "${seed}" can stand for an
// integer. Placeholders inside longer strings are formatted with %v.
// Only node definitions are expanded; c is not modified.
func ExpandVars(c config.Config) (config.Config, error) {
	raw, ok := c.Lookup("vars")
	if !ok {
		return c, nil
	}
	vars, err := c.Sub("vars")
	if err != nil {
		return c, fmt.Errorf("%w: vars is %T", config.ErrInvalidConfig, raw)
	}
	nodes, ok := c.Lookup("nodes")
	if !ok {
		return c, nil
	}
	expanded, err := expandValue(nodes, vars.Raw())
	if err != nil {
		return c, err
	}
	return c.With("nodes", expanded), nil
}

func expandValue(v any, vars map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return expandString(val, vars)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			e, err := expandValue(item, vars)
			if err != nil {
				return nil, err
			}
			out[k] = e
		}
		return out, nil
	case config.Config:
		return expandValue(val.Raw(), vars)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			e, err := expandValue(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			e, err := expandString(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	default:
		return v, nil
	}
}

func expandString(s string, vars map[string]any) (any, error) {
	if m := placeholder.FindStringSubmatch(s); m != nil && m[0] == s {
		val, ok := vars[m[1]]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUndefinedVariable, m[1])
		}
		return val, nil
	}

	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := vars[name]; ok {
			return fmt.Sprintf("%v", val)
		}
		missing = append(missing, name)
		return match
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUndefinedVariable, strings.Join(missing, ", "))
	}
	return out, nil
}
