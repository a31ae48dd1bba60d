package protocols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

func key(d schema.DeviceType, major uint8, b schema.BuildType) schema.Key {
	return schema.Key{Device: d, Version: ir.V(major, 0, 0), Build: b}
}

func TestBuiltinTablesAreValid(t *testing.T) {
	for _, k := range Keys() {
		t.Run(k.String(), func(t *testing.T) {
			table, err := Table(k)
			require.NoError(t, err)
			assert.Empty(t, schema.CheckTable(table))
		})
	}
	assert.Len(t, Builtin(), len(Keys()))
}

func TestReleaseBuildsHideDebugCommands(t *testing.T) {
	release := schema.MustProtocolDescriptor(mustTable(t, key(schema.DeviceMVPWorker, 1, schema.BuildRelease)))
	debug := schema.MustProtocolDescriptor(mustTable(t, key(schema.DeviceMVPWorker, 1, schema.BuildDebug)))

	_, err := release.Command(GetUIPT)
	assert.ErrorIs(t, err, schema.ErrCommandUnsupported)
	_, err = release.CommandByAlias("?irms")
	assert.ErrorIs(t, err, schema.ErrUnknownCommandCode, "aliases of debug commands are not exposed")

	cmd, err := debug.Command(GetUIPT)
	require.NoError(t, err)
	assert.Equal(t, []string{"?uipt"}, cmd.Aliases)
	assert.Empty(t, debug.Unsupported())
}

func TestVersionLayers(t *testing.T) {
	v1 := schema.MustProtocolDescriptor(mustTable(t, key(schema.DeviceDescale, 1, schema.BuildDebug)))
	v2 := schema.MustProtocolDescriptor(mustTable(t, key(schema.DeviceDescale, 2, schema.BuildDebug)))

	assert.False(t, v1.Supports(ClearErrors))
	assert.True(t, v2.Supports(ClearErrors))
	assert.True(t, v2.Supports(GetADC))
	assert.True(t, v2.Supports(SetSWF), "v2 keeps the v1 contracts")

	mvp := schema.MustProtocolDescriptor(mustTable(t, key(schema.DeviceMVPWorker, 2, schema.BuildDebug)))
	_, err := mvp.Command(GetADC)
	assert.ErrorIs(t, err, schema.ErrUnknownCommandCode)
}

func TestDeviceConstantsReachLimits(t *testing.T) {
	descale := schema.MustProtocolDescriptor(mustTable(t, key(schema.DeviceDescale, 1, schema.BuildRelease)))
	mvp := schema.MustProtocolDescriptor(mustTable(t, key(schema.DeviceMVPWorker, 1, schema.BuildRelease)))

	gainOf := func(d *schema.ProtocolDescriptor) schema.FieldType {
		cmd, err := d.Command(SetGain)
		require.NoError(t, err)
		p, ok := cmd.Param(FieldGain)
		require.True(t, ok)
		return p.Type
	}

	assert.False(t, gainOf(descale).Accepts(ir.IRUint8(120)))
	assert.True(t, gainOf(mvp).Accepts(ir.IRUint8(120)))
	assert.True(t, gainOf(descale).Accepts(ir.IRUint8(101)))
}

func TestErrorAnswersAreDeclared(t *testing.T) {
	d := schema.MustProtocolDescriptor(mustTable(t, key(schema.DeviceMVPWorker, 1, schema.BuildRelease)))
	for _, code := range errorCodes {
		ans, err := d.Answer(code)
		require.NoError(t, err, CodeName(code))
		assert.True(t, code.IsError())
		_, ok := ans.Field(FieldErrorMessage)
		assert.True(t, ok)
	}
	_, err := d.Answer(NotifyMessage)
	assert.NoError(t, err)
}

func TestUnknownDeviceSpeaksOnlyProtocol(t *testing.T) {
	d := schema.MustProtocolDescriptor(mustTable(t, key(schema.DeviceUnknown, 1, schema.BuildRelease)))
	require.Len(t, d.Commands(), 1)
	assert.Equal(t, GetProtocol, d.Commands()[0].Code)

	_, err := Table(key(schema.DeviceCrystal, 1, schema.BuildRelease))
	assert.Error(t, err)
	_, err = Table(key(schema.DeviceDescale, 3, schema.BuildRelease))
	assert.Error(t, err)
}

func TestCodeNames(t *testing.T) {
	assert.Equal(t, "SET_FREQ", CodeName(SetFreq))
	assert.Equal(t, "4242", CodeName(4242))

	code, err := ParseCode("GET_UPDATE")
	require.NoError(t, err)
	assert.Equal(t, GetUpdate, code)

	code, err = ParseCode("1020")
	require.NoError(t, err)
	assert.Equal(t, SetFreq, code)

	_, err = ParseCode("NOPE")
	assert.Error(t, err)
}

func mustTable(t *testing.T, k schema.Key) schema.ProtocolTable {
	t.Helper()
	table, err := Table(k)
	require.NoError(t, err)
	return table
}
