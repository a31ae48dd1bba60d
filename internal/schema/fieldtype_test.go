package schema

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usepat/SW-soniccontrol/internal/ir"
)

var (
	freqType = Uint32Type(Range[uint32](100000, 10000000), WithUnit(UnitHertz, PrefixNone))
	gainType = Uint8Type(Range[uint8](0, 150), WithUnit(UnitPercent, PrefixNone))
)

func TestNewFieldTypeRejectsMismatchedLimits(t *testing.T) {
	_, err := NewFieldType(ir.TypeUint16, WithLimits(Range[uint8](0, 1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = NewFieldType(ir.TypeString, WithLimits(VersionLimits{}))
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestNewFieldTypeRejectsContradictoryLimits(t *testing.T) {
	_, err := NewFieldType(ir.TypeUint8, WithLimits(Range[uint8](9, 1)))
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestNewFieldTypeConverter(t *testing.T) {
	ft, err := NewFieldType(ir.TypeWaveform)
	require.NoError(t, err)
	assert.Equal(t, ConvEnum, ft.Converter())

	_, err = NewFieldType(ir.TypeUint8, WithConverter(ConvSignal))
	assert.ErrorIs(t, err, ErrSchemaMismatch, "signal converter renders bools only")

	ft, err = NewFieldType(ir.TypeBool, WithConverter(ConvSignal))
	require.NoError(t, err)
	assert.Equal(t, ConvSignal, ft.Converter())
}

func TestNewFieldTypeInvalid(t *testing.T) {
	_, err := NewFieldType(ir.TypeInvalid)
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = NewFieldType(ir.TypeUint8, WithUnit(UnitHertz, SIPrefix(4)))
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestFieldTypeDoesNotAliasLimits(t *testing.T) {
	l := OneOf[uint8](1, 2)
	ft := MustFieldType(ir.TypeUint8, WithLimits(l))
	l.Allowed[0] = 7

	assert.True(t, ft.Accepts(ir.IRUint8(1)))
	assert.False(t, ft.Accepts(ir.IRUint8(7)))
}

func TestFieldTypeValidate(t *testing.T) {
	tests := []struct {
		name     string
		ft       FieldType
		value    ir.IRValue
		wantErr  error
		mismatch bool
	}{
		{"freq ok", freqType, ir.IRUint32(1000000), nil, false},
		{"freq low", freqType, ir.IRUint32(99999), ErrValidationFailed, false},
		{"freq high", freqType, ir.IRUint32(10000001), ErrValidationFailed, false},
		{"wrong variant", freqType, ir.IRUint16(1000), ErrSchemaMismatch, true},
		{"nil", freqType, nil, ErrSchemaMismatch, true},
		{"gain edge", gainType, ir.IRUint8(150), nil, false},
		{"enum member", EnumType(ir.TypeWaveform, FieldLimits[int32]{}), ir.IREnum{Type: ir.TypeWaveform, Member: 1}, nil, false},
		{"enum non-member", EnumType(ir.TypeWaveform, FieldLimits[int32]{}), ir.IREnum{Type: ir.TypeWaveform, Member: 9}, ErrValidationFailed, false},
		{"enum other type", EnumType(ir.TypeWaveform, FieldLimits[int32]{}), ir.IREnum{Type: ir.TypeProcedure, Member: 0}, ErrSchemaMismatch, true},
		{"bool", BoolType(), ir.IRBool(true), nil, false},
		{"message ref as string", StringType(FieldLimits[string]{}), ir.IRMessageRef("hello"), nil, false},
		{"timestamp", TimestampType(), ir.IRTimestamp{Year: 2024, Month: 2, Day: 29, Hour: 12}, nil, false},
		{"bad timestamp", TimestampType(), ir.IRTimestamp{Year: 2023, Month: 2, Day: 29}, ErrValidationFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ft.Validate(tt.value)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				assert.True(t, tt.ft.Accepts(tt.value))
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrValidationFailed)
			assert.Equal(t, tt.mismatch, IsSchemaMismatch(err))
			assert.False(t, tt.ft.Accepts(tt.value))
		})
	}
}

func TestFieldTypeValidateMessageTooLong(t *testing.T) {
	long := ir.IRMessageRef(strings.Repeat("x", ir.MaxMessageLen+1))
	err := StringType(FieldLimits[string]{}).Validate(long)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestVersionTypeLimits(t *testing.T) {
	lo := ir.V(1, 0, 0)
	ft := VersionType(VersionLimits{Min: &lo})

	assert.True(t, ft.Accepts(ir.IRVersion(ir.V(1, 2, 0))))
	assert.False(t, ft.Accepts(ir.IRVersion(ir.V(0, 9, 0))))
}

func TestFieldTypeCoerce(t *testing.T) {
	tests := []struct {
		name string
		ft   FieldType
		raw  any
		want ir.IRValue
	}{
		{"int to uint32", freqType, 1000000, ir.IRUint32(1000000)},
		{"float64 to uint32", freqType, float64(200000), ir.IRUint32(200000)},
		{"string to uint8", gainType, "42", ir.IRUint8(42)},
		{"float", FloatType(FieldLimits[float32]{}), 1.5, ir.IRFloat(1.5)},
		{"on", BoolType(), "on", ir.IRBool(true)},
		{"false", BoolType(), false, ir.IRBool(false)},
		{"enum name", EnumType(ir.TypeWaveform, FieldLimits[int32]{}), "Square", ir.IREnum{Type: ir.TypeWaveform, Member: 1}},
		{"enum int", EnumType(ir.TypeWaveform, FieldLimits[int32]{}), 0, ir.IREnum{Type: ir.TypeWaveform, Member: 0}},
		{"version", VersionType(VersionLimits{}), "v1.2.3", ir.IRVersion(ir.V(1, 2, 3))},
		{"timestamp string", TimestampType(), "13:14:15 01.02.2024", ir.IRTimestamp{Year: 2024, Month: 2, Day: 1, Hour: 13, Minute: 14, Second: 15}},
		{"time.Time", TimestampType(), time.Date(2024, 2, 1, 13, 14, 15, 0, time.UTC), ir.IRTimestamp{Year: 2024, Month: 2, Day: 1, Hour: 13, Minute: 14, Second: 15}},
		{"ir value passthrough", gainType, ir.IRUint8(3), ir.IRUint8(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ft.Coerce(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldTypeCoerceErrors(t *testing.T) {
	tests := []struct {
		name string
		ft   FieldType
		raw  any
	}{
		{"negative", gainType, -1},
		{"overflow", gainType, 256},
		{"fraction", gainType, 1.5},
		{"not a number", gainType, "x"},
		{"bool from int", BoolType(), 1},
		{"unknown member", EnumType(ir.TypeWaveform, FieldLimits[int32]{}), "triangle"},
		{"string from int", StringType(FieldLimits[string]{}), 7},
		{"bad version", VersionType(VersionLimits{}), "1.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.ft.Coerce(tt.raw)
			require.Error(t, err)
			assert.True(t, IsSchemaMismatch(err))
		})
	}
}

func TestFieldTypeParseChecksLimits(t *testing.T) {
	_, err := gainType.Parse(151)
	require.Error(t, err)
	assert.True(t, IsValidationFailed(err))
	assert.False(t, IsSchemaMismatch(err))

	v, err := gainType.Parse("100")
	require.NoError(t, err)
	assert.Equal(t, ir.IRUint8(100), v)
}

func TestFieldTypeFormat(t *testing.T) {
	assert.Equal(t, "1000000 Hz", freqType.Format(ir.IRUint32(1000000)))
	assert.Equal(t, "square", EnumType(ir.TypeWaveform, FieldLimits[int32]{}).Format(ir.IREnum{Type: ir.TypeWaveform, Member: 1}))
	temp := Uint32Type(FieldLimits[uint32]{}, WithUnit(UnitKelvin, PrefixMilli))
	assert.Equal(t, "293150 mK", temp.Format(ir.IRUint32(293150)))
}

func TestFieldTypeString(t *testing.T) {
	assert.Equal(t, "uint32 [100000, 10000000] Hz", freqType.String())
	assert.Equal(t, "bool (signal)", BoolType(WithConverter(ConvSignal)).String())
	assert.Equal(t, "e_waveform", EnumType(ir.TypeWaveform, FieldLimits[int32]{}).String())
}

func TestValidationErrorCarriesFieldName(t *testing.T) {
	p := ParamDef{Name: "frequency", Role: RoleSetter, Type: freqType}
	err := p.Validate(ir.IRUint32(1))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, ir.FieldName("frequency"), ve.Field)
	assert.Contains(t, err.Error(), `field "frequency"`)
}
