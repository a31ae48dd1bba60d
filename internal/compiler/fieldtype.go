package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// compileFieldType builds a field type from a #Type value:
//
//	{data: "uint32", min: 100000, max: 10000000, unit: "Hz"}
//	{data: "e_waveform", allowed: ["sine"]}
//	{data: "bool", converter: "signal"}
func compileFieldType(v cue.Value, path string) (schema.FieldType, error) {
	name, pos := str(v, "data")
	dt, err := ir.ParseDataType(name)
	if err != nil {
		return schema.FieldType{}, &CompileError{Field: path + ".data", Message: err.Error(), Pos: pos}
	}

	var opts []schema.FieldTypeOption
	if c := v.LookupPath(cue.ParsePath("converter")); c.Exists() {
		s, _ := c.String()
		kind, err := schema.ParseConverterKind(s)
		if err != nil {
			return schema.FieldType{}, &CompileError{Field: path + ".converter", Message: err.Error(), Pos: c.Pos()}
		}
		opts = append(opts, schema.WithConverter(kind))
	}

	unitName, unitPos := str(v, "unit")
	unit, err := schema.ParseSIUnit(unitName)
	if err != nil {
		return schema.FieldType{}, &CompileError{Field: path + ".unit", Message: err.Error(), Pos: unitPos}
	}
	scaleName, scalePos := str(v, "scale")
	scale, err := schema.ParseSIPrefix(scaleName)
	if err != nil {
		return schema.FieldType{}, &CompileError{Field: path + ".scale", Message: err.Error(), Pos: scalePos}
	}
	if unit != schema.UnitNone || scale != schema.PrefixNone {
		opts = append(opts, schema.WithUnit(unit, scale))
	}

	limits, err := compileLimits(dt, v, path)
	if err != nil {
		return schema.FieldType{}, err
	}
	if limits != nil {
		opts = append(opts, schema.WithLimits(limits))
	}

	ft, err := schema.NewFieldType(dt, opts...)
	if err != nil {
		return schema.FieldType{}, &CompileError{Field: path, Message: err.Error(), Pos: v.Pos()}
	}
	return ft, nil
}

// compileLimits returns the limits variant that fits dt, or nil when the
// type declares no bounds.
func compileLimits(dt ir.DataType, v cue.Value, path string) (schema.Limits, error) {
	switch {
	case dt == ir.TypeUint8:
		return boundLimits(v, path, uintBound[uint8](8))
	case dt == ir.TypeUint16:
		return boundLimits(v, path, uintBound[uint16](16))
	case dt == ir.TypeUint32:
		return boundLimits(v, path, uintBound[uint32](32))
	case dt == ir.TypeFloat:
		return boundLimits(v, path, floatBound)
	case dt == ir.TypeString:
		return boundLimits(v, path, stringBound)
	case dt.IsEnum():
		return boundLimits(v, path, enumBound(dt))
	case dt == ir.TypeVersion:
		return versionLimits(v, path)
	}
	for _, key := range []string{"min", "max", "allowed"} {
		if f := v.LookupPath(cue.ParsePath(key)); f.Exists() {
			return nil, &CompileError{Field: path + "." + key, Message: fmt.Sprintf("%s takes no limits", dt), Pos: f.Pos()}
		}
	}
	return nil, nil
}

func boundLimits[T schema.Bound](v cue.Value, path string, conv func(cue.Value) (T, error)) (schema.Limits, error) {
	var l schema.FieldLimits[T]
	err := eachBound(v, path, func(key string, bv cue.Value) error {
		x, err := conv(bv)
		if err != nil {
			return err
		}
		switch key {
		case "min":
			l.Min = &x
		case "max":
			l.Max = &x
		default:
			l.Allowed = append(l.Allowed, x)
		}
		return nil
	})
	if err != nil || (l.Min == nil && l.Max == nil && len(l.Allowed) == 0) {
		return nil, err
	}
	return l, nil
}

func versionLimits(v cue.Value, path string) (schema.Limits, error) {
	var l schema.VersionLimits
	err := eachBound(v, path, func(key string, bv cue.Value) error {
		s, err := bv.String()
		if err != nil {
			return err
		}
		ver, err := ir.ParseVersion(s)
		if err != nil {
			return err
		}
		switch key {
		case "min":
			l.Min = &ver
		case "max":
			l.Max = &ver
		default:
			l.Allowed = append(l.Allowed, ver)
		}
		return nil
	})
	if err != nil || (l.Min == nil && l.Max == nil && len(l.Allowed) == 0) {
		return nil, err
	}
	return l, nil
}

// eachBound calls fn with "min", "max" and then "allowed" for every allowed
// element present on v.
func eachBound(v cue.Value, path string, fn func(key string, bound cue.Value) error) error {
	for _, key := range []string{"min", "max"} {
		f := v.LookupPath(cue.ParsePath(key))
		if !f.Exists() {
			continue
		}
		if err := fn(key, f); err != nil {
			return &CompileError{Field: path + "." + key, Message: err.Error(), Pos: f.Pos()}
		}
	}
	return eachElem(v, "allowed", func(i int, f cue.Value) error {
		if err := fn("allowed", f); err != nil {
			return &CompileError{Field: fmt.Sprintf("%s.allowed[%d]", path, i), Message: err.Error(), Pos: f.Pos()}
		}
		return nil
	})
}

func uintBound[T uint8 | uint16 | uint32](bits int) func(cue.Value) (T, error) {
	return func(v cue.Value) (T, error) {
		n, err := v.Uint64()
		if err != nil {
			return 0, err
		}
		if n >= 1<<bits {
			return 0, fmt.Errorf("%d overflows uint%d", n, bits)
		}
		return T(n), nil
	}
}

func floatBound(v cue.Value) (float32, error) {
	f, err := v.Float64()
	return float32(f), err
}

func stringBound(v cue.Value) (string, error) {
	return v.String()
}

func enumBound(dt ir.DataType) func(cue.Value) (int32, error) {
	return func(v cue.Value) (int32, error) {
		if v.Kind() == cue.StringKind {
			s, _ := v.String()
			e, err := schema.ParseEnum(dt, s)
			return e.Member, err
		}
		n, err := v.Int64()
		if err != nil {
			return 0, err
		}
		e, err := ir.NewIREnum(dt, int32(n))
		return e.Member, err
	}
}
