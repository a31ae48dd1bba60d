package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalScalars(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"uint8", IRUint8(255), "255"},
		{"uint16", IRUint16(42), "42"},
		{"uint32 max", IRUint32(4294967295), "4294967295"},
		{"bool true", IRBool(true), "true"},
		{"bool false", IRBool(false), "false"},
		{"enum", IREnum{Type: TypeWaveform, Member: 1}, "1"},
		{"version", IRVersion(V(1, 2, 3)), `"v1.2.3"`},
		{"timestamp", IRTimestamp{Year: 2024, Month: 3, Day: 5, Hour: 14, Minute: 7, Second: 9}, `"14:07:09 05.03.2024"`},
		{"message ref", IRMessageRef("ok"), `"ok"`},
		{"command code", CommandCode(1020), "1020"},
		{"empty array", []any{}, "[]"},
		{"empty map", map[string]any{}, "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalFloat(t *testing.T) {
	tests := []struct {
		in       float32
		expected string
	}{
		{0, "0"},
		{float32(math.Copysign(0, -1)), "0"},
		{0.1, "0.1"},
		{1.5, "1.5"},
		{-2.5, "-2.5"},
		{100, "100"},
		{1e-7, "1e-7"},
		{1e21, "1e+21"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result, err := MarshalCanonical(IRFloat(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	for _, f := range []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))} {
		_, err := MarshalCanonical(IRFloat(f))
		assert.Error(t, err)
	}
}

func TestMarshalCanonicalRejectsNullAndUnknown(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(3.14)
	assert.Error(t, err, "float64 is not a canonical input")

	_, err = MarshalCanonical(struct{}{})
	assert.Error(t, err)
}

func TestMarshalCanonicalObjectKeepsFieldOrder(t *testing.T) {
	obj := MustIRObject(CommandArgsCapacity,
		F("freq", IRUint32(100000)),
		F("on", IRBool(true)),
	)

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t,
		`[{"name":"freq","type":"uint32","value":100000},{"name":"on","type":"bool","value":true}]`,
		string(result))
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	result, err := MarshalCanonical(map[string]any{
		"zebra": int64(1),
		"alpha": int64(2),
		"beta":  int64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as surrogates D83D DE00, which sort before U+FFFD in
	// UTF-16 even though its UTF-8 bytes sort after.
	result, err := MarshalCanonical(map[string]any{
		"\uFFFD":     int64(1),
		"\U0001F600": int64(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uFFFD\":1}", string(result))
}

func TestMarshalCanonicalStrings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"quote and backslash", `say "hi" \o/`, `"say \"hi\" \\o/"`},
		{"control char", "a\nb", `"a\nb"`},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"paragraph separator literal", "a\u2029b", "\"a\u2029b\""},
		{"escaped backslash text kept", `\u2028`, `"\\u2028"`},
		{"combining mark kept", "e\u0301", "\"e\u0301\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(IRString(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestUnmarshalIRObjectRoundTrip(t *testing.T) {
	obj := MustIRObject(AnswerCapacity,
		F("freq", IRUint32(1000000)),
		F("gain", IRUint8(80)),
		F("swf", IRUint16(3)),
		F("urms", IRFloat(1.25)),
		F("on", IRBool(false)),
		F("message", IRString("ready")),
		F("waveform", IREnum{Type: TypeWaveform, Member: 1}),
		F("protocol_version", IRVersion(V(2, 0, 0))),
		F("timestamp", IRTimestamp{Year: 2025, Month: 12, Day: 31, Hour: 23, Minute: 59, Second: 58}),
	)

	data, err := MarshalCanonical(obj)
	require.NoError(t, err)

	back, err := UnmarshalIRObject(data, AnswerCapacity)
	require.NoError(t, err)
	assert.True(t, obj.Equal(back), "round trip changed the object: %v", back.Fields())
	assert.Equal(t, obj.Names(), back.Names())

	again, err := MarshalCanonical(back)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestMarshalCanonicalRejectsInvalidUTF8(t *testing.T) {
	_, err := MarshalCanonical(IRString("ok \xff"))
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = MarshalCanonical(map[string]any{"token": "tx-\xfe"})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestMarshalCanonicalRejectsDenormalizedKeys(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"e\u0301": true})
	assert.Error(t, err)
}

func TestUnmarshalIRObjectKeepsStringBytes(t *testing.T) {
	obj := MustIRObject(AnswerCapacity,
		F("decomposed", IRString("e\u0301")),
		F("error_message", IRString("ok \xff")),
		F("note", IRMessageRef("\xc3(")),
	)

	data, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"encoding":"base64"`)
	assert.Contains(t, string(data), "\"e\u0301\"")

	back, err := UnmarshalIRObject(data, AnswerCapacity)
	require.NoError(t, err)
	for name, want := range map[FieldName]IRString{
		"decomposed":    "e\u0301",
		"error_message": "ok \xff",
		"note":          "\xc3(",
	} {
		f, err := back.Field(name)
		require.NoError(t, err)
		assert.Equal(t, want, f.Value, name)
	}

	again, err := MarshalCanonical(back)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestUnmarshalIRObjectMessageRefBecomesString(t *testing.T) {
	obj := MustIRObject(AnswerCapacity, F("message", IRMessageRef("boot ok")))
	data, err := MarshalCanonical(obj)
	require.NoError(t, err)

	back, err := UnmarshalIRObject(data, AnswerCapacity)
	require.NoError(t, err)
	f, err := back.Field("message")
	require.NoError(t, err)
	assert.Equal(t, IRString("boot ok"), f.Value)
}

func TestUnmarshalIRObjectErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"unknown type", `[{"name":"x","type":"int64","value":1}]`},
		{"missing type", `[{"name":"x","value":1}]`},
		{"uint8 overflow", `[{"name":"x","type":"uint8","value":256}]`},
		{"negative uint", `[{"name":"x","type":"uint16","value":-1}]`},
		{"bool as string", `[{"name":"x","type":"bool","value":"true"}]`},
		{"bad version", `[{"name":"x","type":"version","value":"1.2"}]`},
		{"bad timestamp", `[{"name":"x","type":"timestamp","value":"25:00:00 01.01.2024"}]`},
		{"duplicate", `[{"name":"x","type":"bool","value":true},{"name":"x","type":"bool","value":false}]`},
		{"bad base64", `[{"name":"x","type":"string","value":"%%","encoding":"base64"}]`},
		{"unknown encoding", `[{"name":"x","type":"string","value":"a","encoding":"hex"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalIRObject([]byte(tt.data), AnswerCapacity)
			assert.Error(t, err)
		})
	}
}

func TestUnmarshalIRObjectCapacity(t *testing.T) {
	data := `[{"name":"a","type":"bool","value":true},{"name":"b","type":"bool","value":true}]`
	_, err := UnmarshalIRObject([]byte(data), 1)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}
