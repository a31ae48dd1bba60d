package correspondence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/protocols"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

func builtinDescriptor(t *testing.T, device schema.DeviceType, build schema.BuildType) *schema.ProtocolDescriptor {
	t.Helper()
	table, err := protocols.Table(schema.Key{Device: device, Version: ir.V(1, 0, 0), Build: build})
	require.NoError(t, err)
	d, err := schema.NewProtocolDescriptor(table)
	require.NoError(t, err)
	return d
}

var countDef = schema.CommandDef{
	Code:    500,
	Aliases: []string{"!count"},
	Params: []schema.ParamDef{
		{Name: "count", Role: schema.RoleSetter, Type: schema.Uint16Type(schema.Range[uint16](0, 100))},
	},
}

func TestGetArgValue(t *testing.T) {
	call, err := BuildCommandCall(countDef, ir.F("count", ir.IRUint16(42)))
	require.NoError(t, err)
	assert.Equal(t, ir.CommandCode(500), call.Code())

	n, err := GetArgValue[uint16](call, "count")
	require.NoError(t, err)
	assert.Equal(t, uint16(42), n)

	_, err = GetArgValue[bool](call, "count")
	assert.ErrorIs(t, err, ir.ErrTypeMismatch)

	_, err = GetArgValue[uint16](call, "missing")
	assert.ErrorIs(t, err, ir.ErrFieldNotFound)
}

func TestBuildCommandCallValidates(t *testing.T) {
	tests := []struct {
		name string
		args []ir.IRField
		want error
	}{
		{"missing", nil, ir.ErrFieldNotFound},
		{"out of range", []ir.IRField{ir.F("count", ir.IRUint16(101))}, schema.ErrValidationFailed},
		{"wrong type", []ir.IRField{ir.F("count", ir.IRUint32(1))}, schema.ErrValidationFailed},
		{"undeclared", []ir.IRField{ir.F("count", ir.IRUint16(1)), ir.F("extra", ir.IRBool(true))}, schema.ErrSchemaMismatch},
		{"duplicate", []ir.IRField{ir.F("count", ir.IRUint16(1)), ir.F("count", ir.IRUint16(2))}, ir.ErrDuplicateField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildCommandCall(countDef, tt.args...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewCallResolvesDescriptor(t *testing.T) {
	desc := builtinDescriptor(t, schema.DeviceMVPWorker, schema.BuildRelease)

	call, err := NewCall(desc, protocols.SetFreq, ir.F(protocols.FieldFrequency, ir.IRUint32(1000000)))
	require.NoError(t, err)
	freq, err := GetArgValue[uint32](call, protocols.FieldFrequency)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000000), freq)

	byAlias, err := NewCallByAlias(desc, "!freq", ir.F(protocols.FieldFrequency, ir.IRUint32(1000000)))
	require.NoError(t, err)
	assert.True(t, call.Args().Equal(byAlias.Args()))

	_, err = NewCall(desc, protocols.GetUIPT)
	assert.ErrorIs(t, err, schema.ErrCommandUnsupported)

	_, err = NewCall(desc, 4321)
	assert.ErrorIs(t, err, schema.ErrUnknownCommandCode)

	_, err = NewCallByAlias(desc, "?nope")
	assert.Error(t, err)
}

func TestAnswers(t *testing.T) {
	desc := builtinDescriptor(t, schema.DeviceMVPWorker, schema.BuildRelease)

	ans, err := NewAnswer(desc, protocols.GetGain, ir.F(protocols.FieldGain, ir.IRUint8(80)))
	require.NoError(t, err)
	assert.False(t, ans.IsError())
	gain, err := GetFieldValue[uint8](ans, protocols.FieldGain)
	require.NoError(t, err)
	assert.Equal(t, uint8(80), gain)
	require.NoError(t, CheckAnswer(desc, ans))

	_, err = NewAnswer(desc, protocols.GetGain, ir.F(protocols.FieldGain, ir.IRUint8(200)))
	assert.ErrorIs(t, err, schema.ErrValidationFailed)

	errAns, err := NewAnswer(desc, protocols.ErrTimeout, ir.F(protocols.FieldErrorMessage, ir.IRString("no reply")))
	require.NoError(t, err)
	assert.True(t, errAns.IsError())
	assert.Contains(t, errAns.String(), "error")

	call, err := NewCall(desc, protocols.GetGain)
	require.NoError(t, err)
	assert.True(t, ans.Answers(call))
	assert.True(t, errAns.Answers(call))

	temp, err := NewCall(desc, protocols.GetTemp)
	require.NoError(t, err)
	assert.False(t, ans.Answers(temp))
}

func TestCheckAnswerAgainstOtherDevice(t *testing.T) {
	worker := builtinDescriptor(t, schema.DeviceMVPWorker, schema.BuildRelease)
	descale := builtinDescriptor(t, schema.DeviceDescale, schema.BuildRelease)

	ans, err := NewAnswer(worker, protocols.GetGain, ir.F(protocols.FieldGain, ir.IRUint8(120)))
	require.NoError(t, err)
	assert.ErrorIs(t, CheckAnswer(descale, ans), schema.ErrValidationFailed)

	freq, err := NewAnswer(worker, protocols.GetFreq, ir.F(protocols.FieldFrequency, ir.IRUint32(200000)))
	require.NoError(t, err)
	assert.ErrorIs(t, CheckAnswer(descale, freq), schema.ErrUnknownCommandCode)
}

func TestParseCommand(t *testing.T) {
	desc := builtinDescriptor(t, schema.DeviceMVPWorker, schema.BuildRelease)

	tests := []struct {
		line string
		code ir.CommandCode
		args []ir.IRField
	}{
		{"?f", protocols.GetFreq, nil},
		{"!ON", protocols.SetOn, nil},
		{"!freq=1000000", protocols.SetFreq, []ir.IRField{ir.F(protocols.FieldFrequency, ir.IRUint32(1000000))}},
		{"  set_gain=50 ", protocols.SetGain, []ir.IRField{ir.F(protocols.FieldGain, ir.IRUint8(50))}},
		{"!atf2=200000", protocols.SetATF, []ir.IRField{
			ir.F(protocols.FieldIndex, ir.IRUint8(2)),
			ir.F(protocols.FieldATF, ir.IRUint32(200000)),
		}},
		{"!waveform=square", protocols.SetWaveform, []ir.IRField{
			ir.F(protocols.FieldWaveform, schema.MustEnum(ir.TypeWaveform, "square")),
		}},
		{"!log_level[global]=info", protocols.SetLogLevel, []ir.IRField{
			ir.F(protocols.FieldLogger, schema.MustEnum(ir.TypeLoggerName, "global")),
			ir.F(protocols.FieldLogLevel, schema.MustEnum(ir.TypeLogLevel, "INFO")),
		}},
		{"!datetime=12:30:00 24.12.2024", protocols.SetDatetime, []ir.IRField{
			ir.F(protocols.FieldTimestamp, ir.IRTimestamp{Year: 2024, Month: 12, Day: 24, Hour: 12, Minute: 30}),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			call, err := ParseCommand(desc, tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.code, call.Code())
			assert.True(t, ir.MustIRObject(ir.CommandArgsCapacity, tt.args...).Equal(call.Args()), call.String())
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	desc := builtinDescriptor(t, schema.DeviceMVPWorker, schema.BuildRelease)

	tests := []struct {
		line string
		want error
	}{
		{"", ErrSyntax},
		{"!freq=", ErrSyntax},
		{"42", ErrSyntax},
		{"?freq=5", schema.ErrSchemaMismatch},
		{"!freq3=100000", schema.ErrSchemaMismatch},
		{"!freq=fast", schema.ErrValidationFailed},
		{"!freq=5", schema.ErrValidationFailed},
		{"!atf9=200000", schema.ErrValidationFailed},
		{"!atf=200000", ir.ErrFieldNotFound},
		{"?uipt", schema.ErrUnknownCommandCode},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := ParseCommand(desc, tt.line)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFormatCommandRoundTrips(t *testing.T) {
	desc := builtinDescriptor(t, schema.DeviceMVPWorker, schema.BuildRelease)

	for _, line := range []string{"?f", "!f=1000000", "!atf2=200000", "!log_level[global]=INFO", "!waveform=square"} {
		call, err := ParseCommand(desc, line)
		require.NoError(t, err, line)
		def, err := desc.Command(call.Code())
		require.NoError(t, err)

		got, err := FormatCommand(def, call)
		require.NoError(t, err)
		assert.Equal(t, line, got)
	}

	call, err := ParseCommand(desc, "?f")
	require.NoError(t, err)
	gain, err := desc.Command(protocols.SetGain)
	require.NoError(t, err)
	_, err = FormatCommand(gain, call)
	assert.ErrorIs(t, err, schema.ErrSchemaMismatch)
}

func TestFormatCommandRejectsEmptyValue(t *testing.T) {
	def := schema.CommandDef{
		Code:    500,
		Aliases: []string{"!label"},
		Params: []schema.ParamDef{
			{Name: "label", Role: schema.RoleSetter, Type: schema.StringType(schema.FieldLimits[string]{})},
		},
	}
	call, err := BuildCommandCall(def, ir.F("label", ir.IRString("")))
	require.NoError(t, err)

	_, err = FormatCommand(def, call)
	assert.ErrorIs(t, err, ErrSyntax)

	call, err = BuildCommandCall(def, ir.F("label", ir.IRString("x")))
	require.NoError(t, err)
	line, err := FormatCommand(def, call)
	require.NoError(t, err)
	assert.Equal(t, "!label=x", line)
}
