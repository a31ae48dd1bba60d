package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	// Verify all variants implement IRValue (compile-time check via assignment)
	var _ IRValue = IRUint8(1)
	var _ IRValue = IRUint16(1)
	var _ IRValue = IRUint32(1)
	var _ IRValue = IRFloat(1)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRString("s")
	var _ IRValue = IRMessageRef("s")
	var _ IRValue = IREnum{Type: TypeProcedure}
	var _ IRValue = IRVersion{}
	var _ IRValue = IRTimestamp{}
}

func TestIRValueDataType(t *testing.T) {
	tests := []struct {
		value IRValue
		want  DataType
	}{
		{IRUint8(1), TypeUint8},
		{IRUint16(1), TypeUint16},
		{IRUint32(1), TypeUint32},
		{IRFloat(1), TypeFloat},
		{IRBool(true), TypeBool},
		{IRString("s"), TypeString},
		{IRMessageRef("s"), TypeString},
		{IREnum{Type: TypeLogLevel, Member: 2}, TypeLogLevel},
		{IRVersion(V(1, 0, 0)), TypeVersion},
		{IRTimestamp{}, TypeTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.DataType())
		})
	}
}

func TestNewIREnum(t *testing.T) {
	e, err := NewIREnum(TypeWaveform, 1)
	require.NoError(t, err)
	assert.Equal(t, IREnum{Type: TypeWaveform, Member: 1}, e)

	_, err = NewIREnum(TypeUint8, 1)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestNewIRMessageRefBounds(t *testing.T) {
	buf := []byte(strings.Repeat("x", MaxMessageLen))
	m, err := NewIRMessageRef(buf)
	require.NoError(t, err)
	assert.Len(t, m, MaxMessageLen)

	_, err = NewIRMessageRef(append(buf, 'y'))
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestIRMessageRefBorrowsBuffer(t *testing.T) {
	buf := []byte("hello")
	m, err := NewIRMessageRef(buf)
	require.NoError(t, err)

	buf[0] = 'j'
	assert.Equal(t, "jello", m.String())
}

func TestAs(t *testing.T) {
	u, err := As[uint16](IRUint16(42))
	require.NoError(t, err)
	assert.Equal(t, uint16(42), u)

	s, err := As[string](IRMessageRef("ref"))
	require.NoError(t, err)
	assert.Equal(t, "ref", s)

	v, err := As[Version](IRVersion(V(2, 1, 0)))
	require.NoError(t, err)
	assert.Equal(t, V(2, 1, 0), v)

	e, err := As[IREnum](IREnum{Type: TypeProcedure, Member: 3})
	require.NoError(t, err)
	assert.Equal(t, int32(3), e.Member)

	_, err = As[bool](IRUint16(42))
	require.Error(t, err)
	assert.True(t, IsTypeMismatch(err))

	var tm *TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, "bool", tm.Want)
	assert.Equal(t, TypeUint16, tm.Got)

	// Widening is not implicit
	_, err = As[uint32](IRUint16(42))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = As[uint8](nil)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(IRUint8(1), IRUint8(1)))
	assert.False(t, Equal(IRUint8(1), IRUint16(1)))
	assert.True(t, Equal(IRMessageRef("a"), IRMessageRef("a")))
	assert.False(t, Equal(IRMessageRef("a"), IRString("a")))
	assert.False(t, Equal(IRString("a"), IRMessageRef("a")))
	assert.True(t, Equal(IRVersion(V(1, 0, 0)), IRVersion(V(1, 0, 0))))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "42", FormatValue(IRUint32(42)))
	assert.Equal(t, `"hi"`, FormatValue(IRString("hi")))
	assert.Equal(t, "e_waveform(1)", FormatValue(IREnum{Type: TypeWaveform, Member: 1}))
	assert.Equal(t, "v1.0.0", FormatValue(IRVersion(V(1, 0, 0))))
	assert.Equal(t, "1.5", FormatValue(IRFloat(1.5)))
	assert.Equal(t, "<nil>", FormatValue(nil))
}
