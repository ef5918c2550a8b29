package rules

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/tally/ir"
)

// cueToIR converts a concrete CUE value into an IRValue.
// Floats are rejected: slice state is integral.
func cueToIR(v cue.Value) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "value",
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := cueToIR(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			field, err := cueToIR(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = field
		}
		return obj, nil
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}
