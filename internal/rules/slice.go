package rules

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/roach88/tally/ir"
)

// SliceSpec is one compiled slice: a name, an initial value and the rules
// that move it forward.
type SliceSpec struct {
	Name    string
	Initial ir.IRValue
	Rules   []Rule
}

// Rule maps one action type to an expression.
type Rule struct {
	ActionType string
	Expr       string

	program *exprvm.Program
}

// CompileSlice parses a CUE value into a SliceSpec.
//
// The value should be the slice struct itself, e.g.:
//
//	v := cuecontext.New().CompileString(`slice: count: { initial: 0 }`)
//	spec, err := CompileSlice(v.LookupPath(cue.ParsePath("slice.count")))
func CompileSlice(v cue.Value) (*SliceSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &SliceSpec{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}
	if spec.Name == "" {
		return nil, &CompileError{Field: "slice", Message: "slice name is required", Pos: v.Pos()}
	}

	initialVal := v.LookupPath(cue.ParsePath("initial"))
	if !initialVal.Exists() {
		return nil, &CompileError{
			Field:   "initial",
			Message: "initial is required",
			Pos:     v.Pos(),
		}
	}
	initial, err := cueToIR(initialVal)
	if err != nil {
		return nil, err
	}
	spec.Initial = initial

	onVal := v.LookupPath(cue.ParsePath("on"))
	if !onVal.Exists() {
		return spec, nil
	}

	iter, err := onVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	byType := make(map[string]Rule)
	for iter.Next() {
		actionType := iter.Label()
		src, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "on." + actionType,
				Message: "rule must be an expression string",
				Pos:     iter.Value().Pos(),
			}
		}
		rule, err := compileRule(actionType, src)
		if err != nil {
			return nil, &CompileError{
				Field:   "on." + actionType,
				Message: err.Error(),
				Pos:     iter.Value().Pos(),
			}
		}
		byType[actionType] = rule
	}
	for _, actionType := range ir.SortKeys(byType) {
		spec.Rules = append(spec.Rules, byType[actionType])
	}

	return spec, nil
}

func compileRule(actionType, src string) (Rule, error) {
	if strings.TrimSpace(src) == "" {
		return Rule{}, fmt.Errorf("expression must not be empty")
	}
	program, err := exprlang.Compile(src, exprOptions()...)
	if err != nil {
		return Rule{}, fmt.Errorf("compile expression: %w", err)
	}
	return Rule{ActionType: actionType, Expr: src, program: program}, nil
}

// Rule returns the rule for actionType.
func (s *SliceSpec) Rule(actionType string) (Rule, bool) {
	for _, r := range s.Rules {
		if r.ActionType == actionType {
			return r, true
		}
	}
	return Rule{}, false
}

// Object renders the slice as {initial, on} for hashing and output.
func (s *SliceSpec) Object() ir.IRObject {
	on := ir.IRObject{}
	for _, r := range s.Rules {
		on[r.ActionType] = ir.IRString(r.Expr)
	}
	return ir.IRObject{
		"initial": s.Initial,
		"on":      on,
	}
}
