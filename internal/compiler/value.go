package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/treesync/internal/ir"
)

// compileValue converts a concrete CUE value to an attribute value.
// Floats are rejected: attribute values are integers only.
func compileValue(field string, v cue.Value) (ir.IRValue, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

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
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		return ir.IRInt(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.FloatKind:
		return nil, &CompileError{Field: field, Message: "float values are not supported, use int", Pos: v.Pos()}
	case cue.ListKind:
		items, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for i := 0; items.Next(); i++ {
			item, err := compileValue(fmt.Sprintf("%s[%d]", field, i), items.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, item)
		}
		return arr, nil
	case cue.StructKind:
		fields, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for fields.Next() {
			key := fields.Selector().Unquoted()
			item, err := compileValue(field+"."+key, fields.Value())
			if err != nil {
				return nil, err
			}
			obj[key] = item
		}
		return obj, nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func lookup(v cue.Value, field string) (cue.Value, bool) {
	f := v.LookupPath(cue.ParsePath(field))
	return f, f.Exists()
}

func requiredString(v cue.Value, field string) (string, error) {
	f, ok := lookup(v, field)
	if !ok {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	return stringValue(field, f)
}

func stringValue(field string, f cue.Value) (string, error) {
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "expected string", Pos: f.Pos()}
	}
	return s, nil
}

func intValue(field string, f cue.Value) (int64, error) {
	n, err := f.Int64()
	if err != nil {
		return 0, &CompileError{Field: field, Message: "expected int", Pos: f.Pos()}
	}
	return n, nil
}

func optionalInt(v cue.Value, field string, def int64) (int64, error) {
	f, ok := lookup(v, field)
	if !ok {
		return def, nil
	}
	return intValue(field, f)
}

func optionalString(v cue.Value, field string, def string) (string, error) {
	f, ok := lookup(v, field)
	if !ok {
		return def, nil
	}
	return stringValue(field, f)
}

func optionalBool(v cue.Value, field string) (bool, error) {
	f, ok := lookup(v, field)
	if !ok {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, &CompileError{Field: field, Message: "expected bool", Pos: f.Pos()}
	}
	return b, nil
}

func addressValue(field string, f cue.Value) (ir.Address, error) {
	s, err := stringValue(field, f)
	if err != nil {
		return ir.Address{}, err
	}
	addr, err := ir.ParseAddress(s)
	if err != nil {
		return ir.Address{}, &CompileError{Field: field, Message: err.Error(), Pos: f.Pos()}
	}
	return addr, nil
}

func requiredAddress(v cue.Value, field string) (ir.Address, error) {
	f, ok := lookup(v, field)
	if !ok {
		return ir.Address{}, &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	return addressValue(field, f)
}

func optionalValue(v cue.Value, field string) (ir.IRValue, error) {
	f, ok := lookup(v, field)
	if !ok {
		return nil, nil
	}
	val, err := compileValue(field, f)
	if err != nil {
		return nil, err
	}
	if ir.IsAbsent(val) {
		return nil, nil
	}
	return val, nil
}
