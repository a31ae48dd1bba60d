package ir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataTypeNames(t *testing.T) {
	for dt := TypeUint8; dt <= TypeTimestamp; dt++ {
		parsed, err := ParseDataType(dt.String())
		require.NoError(t, err, dt.String())
		assert.Equal(t, dt, parsed)
	}

	_, err := ParseDataType("invalid")
	assert.Error(t, err)
	_, err = ParseDataType("int64")
	assert.Error(t, err)

	assert.Equal(t, "DataType(200)", DataType(200).String())
	assert.False(t, DataType(200).Valid())
	assert.False(t, TypeInvalid.Valid())
}

func TestDataTypeIsEnum(t *testing.T) {
	enums := []DataType{TypeDeviceType, TypeCommChannel, TypeCommProtocol, TypeInputSource,
		TypeProcedure, TypeWaveform, TypeLogLevel, TypeLoggerName}
	for _, dt := range enums {
		assert.True(t, dt.IsEnum(), dt.String())
	}
	for _, dt := range []DataType{TypeUint8, TypeFloat, TypeString, TypeBool, TypeVersion, TypeTimestamp} {
		assert.False(t, dt.IsEnum(), dt.String())
	}
}

func TestDataTypeJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		T DataType `json:"t"`
	}{TypeWaveform})
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":"e_waveform"}`, string(data))

	var out struct {
		T DataType `json:"t"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"t":"uint16"}`), &out))
	assert.Equal(t, TypeUint16, out.T)
}

func TestCommandCodeIsError(t *testing.T) {
	assert.False(t, CommandCode(19999).IsError())
	assert.True(t, CommandCode(20000).IsError())
	assert.True(t, CommandCode(20008).IsError())
	assert.False(t, CommandCode(0).IsError())
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		a, b Version
		want int
	}{
		{V(1, 0, 0), V(1, 0, 0), 0},
		{V(1, 0, 0), V(2, 0, 0), -1},
		{V(2, 0, 0), V(1, 9, 9), 1},
		{V(1, 2, 0), V(1, 10, 0), -1},
		{V(1, 2, 3), V(1, 2, 4), -1},
		{V(1, 2, 5), V(1, 2, 4), 1},
	}

	for _, tt := range tests {
		t.Run(tt.a.String()+"_"+tt.b.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
		})
	}
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("v1.2.3")
	require.NoError(t, err)
	assert.Equal(t, V(1, 2, 3), v)
	assert.Equal(t, "v1.2.3", v.String())

	v, err = ParseVersion("2.0.0")
	require.NoError(t, err)
	assert.Equal(t, V(2, 0, 0), v)

	for _, bad := range []string{"", "1.2", "1.2.3.4", "v1.x.0", "1.256.0", "-1.0.0"} {
		_, err := ParseVersion(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("14:07:09 05.03.2024")
	require.NoError(t, err)
	assert.Equal(t, Timestamp{Year: 2024, Month: 3, Day: 5, Hour: 14, Minute: 7, Second: 9}, ts)
	assert.Equal(t, "14:07:09 05.03.2024", ts.String())

	ts, err = ParseTimestamp("1-2-3_4-5-2023")
	require.NoError(t, err)
	assert.Equal(t, Timestamp{Year: 2023, Month: 5, Day: 4, Hour: 1, Minute: 2, Second: 3}, ts)

	for _, bad := range []string{"", "14:07 05.03.2024", "24:00:00 01.01.2024", "12:00:00 30.02.2024", "12:00:00 01.13.2024"} {
		_, err := ParseTimestamp(bad)
		assert.Error(t, err, bad)
	}
}

func TestTimestampFromTime(t *testing.T) {
	tm := time.Date(2024, time.February, 29, 8, 30, 15, 999, time.UTC)
	ts := TimestampFromTime(tm)
	assert.Equal(t, Timestamp{Year: 2024, Month: 2, Day: 29, Hour: 8, Minute: 30, Second: 15}, ts)
	assert.True(t, ts.Valid())
	assert.Equal(t, tm.Truncate(time.Second), ts.Time())
}
