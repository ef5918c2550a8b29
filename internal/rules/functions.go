package rules

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
)

// exprOptions are shared by every compiled rule. state and action are
// provided at run time, so undefined variables are allowed at compile time.
func exprOptions() []exprlang.Option {
	return []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.Function("push", push),
		exprlang.Function("assoc", assoc),
		exprlang.Function("dissoc", dissoc),
	}
}

// push(list, item) returns a copy of list with item appended.
func push(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("push: expected 2 arguments, got %d", len(params))
	}
	list, err := asList("push", params[0])
	if err != nil {
		return nil, err
	}
	out := make([]any, len(list), len(list)+1)
	copy(out, list)
	return append(out, params[1]), nil
}

// assoc(obj, key, value) returns a copy of obj with key set.
func assoc(params ...any) (any, error) {
	if len(params) != 3 {
		return nil, fmt.Errorf("assoc: expected 3 arguments, got %d", len(params))
	}
	obj, err := asObject("assoc", params[0])
	if err != nil {
		return nil, err
	}
	key, ok := params[1].(string)
	if !ok {
		return nil, fmt.Errorf("assoc: key must be a string, got %T", params[1])
	}
	out := make(map[string]any, len(obj)+1)
	for k, v := range obj {
		out[k] = v
	}
	out[key] = params[2]
	return out, nil
}

// dissoc(obj, key) returns a copy of obj without key.
func dissoc(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("dissoc: expected 2 arguments, got %d", len(params))
	}
	obj, err := asObject("dissoc", params[0])
	if err != nil {
		return nil, err
	}
	key, ok := params[1].(string)
	if !ok {
		return nil, fmt.Errorf("dissoc: key must be a string, got %T", params[1])
	}
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if k != key {
			out[k] = v
		}
	}
	return out, nil
}

func asList(fn string, v any) ([]any, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return list, nil
	default:
		return nil, fmt.Errorf("%s: expected a list, got %T", fn, v)
	}
}

func asObject(fn string, v any) (map[string]any, error) {
	switch obj := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return obj, nil
	default:
		return nil, fmt.Errorf("%s: expected an object, got %T", fn, v)
	}
}
