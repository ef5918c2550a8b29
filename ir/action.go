package ir

import "fmt"

// TypeKey is the discriminant every action must carry.
const TypeKey = "type"

// Action is a structural message describing a requested state change.
//
// An action is a plain mapping that MUST carry a defined "type" entry. The
// type may be any IRValue (IRNull included); conventionally it is an IRString.
// Actions are owned by the caller and passed through dispatch by reference:
// Dispatch hands back the very same map it received.
type Action map[string]IRValue

// NewAction builds an action with a string type and optional payload fields.
func NewAction(actionType string, fields ...IRPair) Action {
	a := make(Action, len(fields)+1)
	for _, f := range fields {
		a[f.Key] = f.Value
	}
	a[TypeKey] = IRString(actionType)
	return a
}

// Type returns the action's discriminant, or nil if the action has none.
func (a Action) Type() IRValue {
	if a == nil {
		return nil
	}
	return a[TypeKey]
}

// TypeName renders the discriminant for messages and journal columns.
// String types render bare; other types render as JSON.
func (a Action) TypeName() string {
	return TypeName(a.Type())
}

// TypeName renders an action type value as text.
func TypeName(t IRValue) string {
	switch v := t.(type) {
	case nil:
		return "<undefined>"
	case IRString:
		return string(v)
	default:
		data, err := MarshalIRValue(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// Object returns the action as an IRObject sharing the same storage.
func (a Action) Object() IRObject {
	return IRObject(a)
}

// SameAction reports whether a and b are the same action map.
func SameAction(a, b Action) bool {
	return sameMap(a, b)
}

// ActionFromValue converts a decoded value into an Action.
//
// Only objects qualify. Arrays, scalars, null and absent values are rejected,
// as are objects without a defined "type" entry. The returned action shares
// storage with v.
func ActionFromValue(v IRValue) (Action, error) {
	obj, ok := v.(IRObject)
	if !ok {
		return nil, fmt.Errorf("action must be an object, got %s", Kind(v))
	}
	if obj[TypeKey] == nil {
		return nil, fmt.Errorf("action is missing a %q field", TypeKey)
	}
	return Action(obj), nil
}

// ParseAction decodes a JSON object into an Action.
func ParseAction(data []byte) (Action, error) {
	v, err := ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parse action: %w", err)
	}
	return ActionFromValue(v)
}
