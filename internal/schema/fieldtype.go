package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/usepat/SW-soniccontrol/internal/ir"
)

// FieldType describes the type of a command parameter or answer field: its
// data type, the converter the codec renders it with, an optional physical
// unit and optional limits. A FieldType is immutable once constructed.
type FieldType struct {
	dataType  ir.DataType
	converter ConverterKind
	unit      Unit
	limits    Limits
}

// FieldTypeOption configures NewFieldType.
type FieldTypeOption func(*FieldType)

// WithLimits attaches limits. The limits variant must fit the data type.
func WithLimits(l Limits) FieldTypeOption {
	return func(ft *FieldType) { ft.limits = l }
}

// WithUnit attaches a physical unit.
func WithUnit(u SIUnit, p SIPrefix) FieldTypeOption {
	return func(ft *FieldType) { ft.unit = Unit{Unit: u, Prefix: p} }
}

// WithConverter overrides the default converter.
func WithConverter(c ConverterKind) FieldTypeOption {
	return func(ft *FieldType) { ft.converter = c }
}

// NewFieldType builds a field type. It fails with ErrSchemaMismatch when the
// limits variant does not describe dt, when the limits contradict themselves,
// or when the converter cannot render dt.
func NewFieldType(dt ir.DataType, opts ...FieldTypeOption) (FieldType, error) {
	if !dt.Valid() {
		return FieldType{}, fmt.Errorf("%w: invalid data type %s", ErrSchemaMismatch, dt)
	}
	ft := FieldType{dataType: dt, converter: DefaultConverter(dt)}
	for _, opt := range opts {
		opt(&ft)
	}

	if ft.limits != nil {
		if !ft.limits.fits(dt) {
			return FieldType{}, fmt.Errorf("%w: limits %T do not describe %s", ErrSchemaMismatch, ft.limits, dt)
		}
		if err := ft.limits.wellFormed(); err != nil {
			return FieldType{}, fmt.Errorf("%w: %s limits: %v", ErrSchemaMismatch, dt, err)
		}
		ft.limits = ft.limits.clone()
	}
	if !converterFits(ft.converter, dt) {
		return FieldType{}, fmt.Errorf("%w: converter %s cannot render %s", ErrSchemaMismatch, ft.converter, dt)
	}
	if int(ft.unit.Unit) >= len(unitSymbols) || !ft.unit.Prefix.Valid() {
		return FieldType{}, fmt.Errorf("%w: invalid unit %d/%d", ErrSchemaMismatch, ft.unit.Unit, ft.unit.Prefix)
	}
	return ft, nil
}

func converterFits(c ConverterKind, dt ir.DataType) bool {
	switch c {
	case ConvPrimitive:
		return !dt.IsEnum() && dt != ir.TypeVersion && dt != ir.TypeTimestamp
	case ConvEnum:
		return dt.IsEnum()
	case ConvVersion:
		return dt == ir.TypeVersion
	case ConvTimestamp:
		return dt == ir.TypeTimestamp
	case ConvSignal, ConvActivation, ConvTermination, ConvBuildType:
		return dt == ir.TypeBool
	default:
		return false
	}
}

// MustFieldType is like NewFieldType but panics on error.
// Use only for static tables compiled into the binary.
func MustFieldType(dt ir.DataType, opts ...FieldTypeOption) FieldType {
	ft, err := NewFieldType(dt, opts...)
	if err != nil {
		panic(err)
	}
	return ft
}

// Typed constructors for static tables. The limits argument's element type
// is fixed by the signature, so a limits/type mismatch does not compile.
// They panic on contradictory bounds.

func Uint8Type(l FieldLimits[uint8], opts ...FieldTypeOption) FieldType {
	return MustFieldType(ir.TypeUint8, append(opts, limitsOpt(l))...)
}

func Uint16Type(l FieldLimits[uint16], opts ...FieldTypeOption) FieldType {
	return MustFieldType(ir.TypeUint16, append(opts, limitsOpt(l))...)
}

func Uint32Type(l FieldLimits[uint32], opts ...FieldTypeOption) FieldType {
	return MustFieldType(ir.TypeUint32, append(opts, limitsOpt(l))...)
}

func FloatType(l FieldLimits[float32], opts ...FieldTypeOption) FieldType {
	return MustFieldType(ir.TypeFloat, append(opts, limitsOpt(l))...)
}

func StringType(l FieldLimits[string], opts ...FieldTypeOption) FieldType {
	return MustFieldType(ir.TypeString, append(opts, limitsOpt(l))...)
}

func EnumType(dt ir.DataType, l FieldLimits[int32], opts ...FieldTypeOption) FieldType {
	return MustFieldType(dt, append(opts, limitsOpt(l))...)
}

func VersionType(l VersionLimits, opts ...FieldTypeOption) FieldType {
	if l.Min == nil && l.Max == nil && len(l.Allowed) == 0 {
		return MustFieldType(ir.TypeVersion, opts...)
	}
	return MustFieldType(ir.TypeVersion, append(opts, WithLimits(l))...)
}

func BoolType(opts ...FieldTypeOption) FieldType {
	return MustFieldType(ir.TypeBool, opts...)
}

func TimestampType(opts ...FieldTypeOption) FieldType {
	return MustFieldType(ir.TypeTimestamp, opts...)
}

// limitsOpt drops empty limits so unconstrained types carry none.
func limitsOpt[T Bound](l FieldLimits[T]) FieldTypeOption {
	if l.Min == nil && l.Max == nil && len(l.Allowed) == 0 {
		return func(*FieldType) {}
	}
	return WithLimits(l)
}

// DataType returns the declared data type.
func (ft FieldType) DataType() ir.DataType { return ft.dataType }

// Converter returns the converter kind.
func (ft FieldType) Converter() ConverterKind { return ft.converter }

// Unit returns the physical unit; Unit.Unit is UnitNone when absent.
func (ft FieldType) Unit() Unit { return ft.unit }

// Limits returns a copy of the limits, or nil.
func (ft FieldType) Limits() Limits {
	if ft.limits == nil {
		return nil
	}
	return ft.limits.clone()
}

// String renders the type, its limits and unit, e.g. "uint32 [100000, 10000000] Hz".
func (ft FieldType) String() string {
	parts := []string{ft.dataType.String()}
	if d := describeLimits(ft.limits); d != "" {
		parts = append(parts, d)
	}
	if u := ft.unit.String(); u != "" {
		parts = append(parts, u)
	}
	if ft.converter != DefaultConverter(ft.dataType) {
		parts = append(parts, "("+ft.converter.String()+")")
	}
	return strings.Join(parts, " ")
}

// Validate checks v against the field type: the variant must match the
// declared data type, enum members must exist, timestamps must be real
// calendar seconds, and limits must hold. It never panics; a wrong variant
// is reported as a ValidationError matching ErrSchemaMismatch.
func (ft FieldType) Validate(v ir.IRValue) error {
	if v == nil {
		return &ValidationError{Want: ft.dataType, Got: ir.TypeInvalid, Reason: "missing value", Mismatch: true}
	}
	if got := v.DataType(); got != ft.dataType {
		return &ValidationError{Want: ft.dataType, Got: got, Mismatch: true}
	}
	switch val := v.(type) {
	case ir.IREnum:
		if !isEnumMember(val) {
			return &ValidationError{Want: ft.dataType, Got: ft.dataType, Reason: fmt.Sprintf("%d is not a member of %s", val.Member, val.Type)}
		}
	case ir.IRTimestamp:
		if !ir.Timestamp(val).Valid() {
			return &ValidationError{Want: ft.dataType, Got: ft.dataType, Reason: fmt.Sprintf("%s is not a valid timestamp", ir.Timestamp(val))}
		}
	case ir.IRMessageRef:
		if len(val) > ir.MaxMessageLen {
			return &ValidationError{Want: ft.dataType, Got: ft.dataType, Reason: "message too long"}
		}
	}
	if ft.limits != nil {
		if err := ft.limits.check(v); err != nil {
			return &ValidationError{Want: ft.dataType, Got: ft.dataType, Reason: err.Error()}
		}
	}
	return nil
}

// Accepts reports whether Validate(v) succeeds.
func (ft FieldType) Accepts(v ir.IRValue) bool {
	return ft.Validate(v) == nil
}

// Coerce converts loosely typed input, as produced by YAML, CUE or a command
// line, into the variant the field type declares. It does not check limits;
// use Parse for conversion plus validation.
//
// Accepted inputs: an ir.IRValue (returned unchanged), Go integers and
// floats, numeric strings, enum member names, "v1.2.3" versions,
// "hh:mm:ss dd.mm.yyyy" timestamps and time.Time.
func (ft FieldType) Coerce(raw any) (ir.IRValue, error) {
	if v, ok := raw.(ir.IRValue); ok {
		return v, nil
	}
	fail := func(reason string) error {
		return &ValidationError{Want: ft.dataType, Got: ir.TypeInvalid, Reason: reason, Mismatch: true}
	}

	dt := ft.dataType
	switch {
	case dt == ir.TypeUint8 || dt == ir.TypeUint16 || dt == ir.TypeUint32:
		bits := map[ir.DataType]int{ir.TypeUint8: 8, ir.TypeUint16: 16, ir.TypeUint32: 32}[dt]
		u, err := toUint(raw, bits)
		if err != nil {
			return nil, fail(err.Error())
		}
		switch dt {
		case ir.TypeUint8:
			return ir.IRUint8(u), nil
		case ir.TypeUint16:
			return ir.IRUint16(u), nil
		default:
			return ir.IRUint32(u), nil
		}
	case dt == ir.TypeFloat:
		f, err := toFloat(raw)
		if err != nil {
			return nil, fail(err.Error())
		}
		return ir.IRFloat(f), nil
	case dt == ir.TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, fail(fmt.Sprintf("cannot use %T as string", raw))
		}
		return ir.IRString(s), nil
	case dt == ir.TypeBool:
		b, err := toBool(raw)
		if err != nil {
			return nil, fail(err.Error())
		}
		return ir.IRBool(b), nil
	case dt.IsEnum():
		switch x := raw.(type) {
		case string:
			e, err := ParseEnum(dt, x)
			if err != nil {
				return nil, fail(err.Error())
			}
			return e, nil
		default:
			n, err := toInt(x, 32)
			if err != nil {
				return nil, fail(err.Error())
			}
			return ir.IREnum{Type: dt, Member: int32(n)}, nil
		}
	case dt == ir.TypeVersion:
		switch x := raw.(type) {
		case ir.Version:
			return ir.IRVersion(x), nil
		case string:
			v, err := ir.ParseVersion(x)
			if err != nil {
				return nil, fail(err.Error())
			}
			return ir.IRVersion(v), nil
		}
		return nil, fail(fmt.Sprintf("cannot use %T as version", raw))
	case dt == ir.TypeTimestamp:
		switch x := raw.(type) {
		case ir.Timestamp:
			return ir.IRTimestamp(x), nil
		case time.Time:
			return ir.IRTimestamp(ir.TimestampFromTime(x)), nil
		case string:
			ts, err := ir.ParseTimestamp(x)
			if err != nil {
				return nil, fail(err.Error())
			}
			return ir.IRTimestamp(ts), nil
		}
		return nil, fail(fmt.Sprintf("cannot use %T as timestamp", raw))
	}
	return nil, fail("unsupported data type")
}

// Parse coerces raw and validates the result.
func (ft FieldType) Parse(raw any) (ir.IRValue, error) {
	v, err := ft.Coerce(raw)
	if err != nil {
		return nil, err
	}
	if err := ft.Validate(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Format renders v for humans: enum member names, and the unit symbol
// appended to numbers.
func (ft FieldType) Format(v ir.IRValue) string {
	if e, ok := v.(ir.IREnum); ok {
		if name, err := EnumName(e); err == nil {
			return name
		}
	}
	s := ir.FormatValue(v)
	if u := ft.unit.String(); u != "" {
		s += " " + u
	}
	return s
}

func toInt(raw any, bits int) (int64, error) {
	switch x := raw.(type) {
	case int:
		return checkIntRange(int64(x), bits)
	case int32:
		return checkIntRange(int64(x), bits)
	case int64:
		return checkIntRange(x, bits)
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d out of range", x)
		}
		return checkIntRange(int64(x), bits)
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		return checkIntRange(int64(x), bits)
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, bits)
	default:
		return 0, fmt.Errorf("cannot use %T as integer", raw)
	}
}

func checkIntRange(n int64, bits int) (int64, error) {
	lim := int64(1) << (bits - 1)
	if n < -lim || n >= lim {
		return 0, fmt.Errorf("%d out of range for %d-bit integer", n, bits)
	}
	return n, nil
}

func toUint(raw any, bits int) (uint64, error) {
	maxVal := uint64(1)<<bits - 1
	var u uint64
	switch x := raw.(type) {
	case int:
		if x < 0 {
			return 0, fmt.Errorf("%d is negative", x)
		}
		u = uint64(x)
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("%d is negative", x)
		}
		u = uint64(x)
	case uint64:
		u = x
	case float64:
		if x < 0 || x != math.Trunc(x) || x > float64(maxVal) {
			return 0, fmt.Errorf("%v is not a %d-bit unsigned integer", x, bits)
		}
		u = uint64(x)
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(x), 10, bits)
		if err != nil {
			return 0, err
		}
		u = n
	default:
		return 0, fmt.Errorf("cannot use %T as unsigned integer", raw)
	}
	if u > maxVal {
		return 0, fmt.Errorf("%d out of range for uint%d", u, bits)
	}
	return u, nil
}

func toFloat(raw any) (float32, error) {
	switch x := raw.(type) {
	case float64:
		return float32(x), nil
	case float32:
		return x, nil
	case int:
		return float32(x), nil
	case int64:
		return float32(x), nil
	case uint64:
		return float32(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 32)
		return float32(f), err
	default:
		return 0, fmt.Errorf("cannot use %T as float", raw)
	}
}

func toBool(raw any) (bool, error) {
	switch x := raw.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "on", "true", "1", "yes":
			return true, nil
		case "off", "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("%q is not a boolean", x)
	default:
		return false, fmt.Errorf("cannot use %T as bool", raw)
	}
}
