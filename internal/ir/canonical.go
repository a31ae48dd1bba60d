package ir

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for hashing and storage.
// CRITICAL: This is the ONLY serialization that should be used for
// content-addressed identity computation.
//
// Key differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. String values are written byte for byte; object keys must be NFC
//  4. Floats use the shortest float32 digits; NaN and Inf are rejected
//  5. No null (returns error)
//
// An IRObject encodes as an array of {"name","type","value"} entries in
// insertion order, so field order survives a round trip. A string value
// that is not valid UTF-8 is stored base64 encoded and its entry carries
// "encoding":"base64". Anywhere else invalid UTF-8 is an error.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalString(buf, val)
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case float32:
		b, err := formatCanonicalFloat(val)
		if err != nil {
			return err
		}
		buf.Write(b)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		return marshalCanonicalMap(buf, val)
	case IRObject:
		return marshalCanonical(buf, objectTree(val))
	case IRField:
		return marshalCanonical(buf, fieldTree(val))
	case IRValue:
		scalar, err := valueScalar(val)
		if err != nil {
			return err
		}
		return marshalCanonical(buf, scalar)
	case CommandCode:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case FieldName:
		return marshalCanonicalString(buf, string(val))
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func objectTree(obj IRObject) []any {
	out := make([]any, len(obj.fields))
	for i, f := range obj.fields {
		out[i] = fieldTree(f)
	}
	return out
}

func fieldTree(f IRField) map[string]any {
	tree := map[string]any{
		"name":  string(f.Name),
		"type":  f.Type().String(),
		"value": f.Value,
	}
	if raw, ok := rawString(f.Value); ok && !utf8.ValidString(raw) {
		tree["encoding"] = encodingBase64
		tree["value"] = base64.StdEncoding.EncodeToString([]byte(raw))
	}
	return tree
}

const encodingBase64 = "base64"

func rawString(v IRValue) (string, bool) {
	switch val := v.(type) {
	case IRString:
		return string(val), true
	case IRMessageRef:
		return string(val), true
	}
	return "", false
}

// valueScalar maps a value onto the JSON scalar that represents it.
func valueScalar(v IRValue) (any, error) {
	switch val := v.(type) {
	case IRUint8:
		return uint64(val), nil
	case IRUint16:
		return uint64(val), nil
	case IRUint32:
		return uint64(val), nil
	case IRFloat:
		return float32(val), nil
	case IRBool:
		return bool(val), nil
	case IRString:
		return string(val), nil
	case IRMessageRef:
		return string(val), nil
	case IREnum:
		return int64(val.Member), nil
	case IRVersion:
		return Version(val).String(), nil
	case IRTimestamp:
		return Timestamp(val).String(), nil
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}

func marshalCanonicalMap(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// CRITICAL: RFC 8785 UTF-16 code unit ordering
	slices.SortFunc(keys, compareKeysRFC8785)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if !norm.NFC.IsNormalString(k) {
			return fmt.Errorf("key %q is not NFC normalized", k)
		}
		if err := marshalCanonicalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := marshalCanonical(buf, m[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
// Go's default string comparison uses UTF-8 which produces a DIFFERENT order
// for characters outside the BMP.
func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// marshalCanonicalString writes s as a canonical JSON string, unchanged.
// Only control characters, backslash and quote are escaped. Invalid UTF-8
// is rejected since encoding/json would replace it with U+FFFD.
func marshalCanonicalString(buf *bytes.Buffer, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: string %q is not valid UTF-8", ErrInvalidValue, s)
	}
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false) // CRITICAL: <, >, & must NOT be escaped
	if err := enc.Encode(s); err != nil {
		return err
	}
	// json.Encoder adds a trailing newline
	out := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal characters, as RFC 8785 requires.
// Escaped backslashes are copied as pairs so \\u2028 text is preserved.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		if i+5 < len(data) && data[i+1] == 'u' && string(data[i+2:i+5]) == "202" && (data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, c)
		if i+1 < len(data) {
			out = append(out, data[i+1])
			i++
		}
	}
	return out
}

// formatCanonicalFloat renders f with the shortest digits that round-trip
// through float32, laid out like ECMAScript Number serialization.
func formatCanonicalFloat(f float32) ([]byte, error) {
	x := float64(f)
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil, fmt.Errorf("non-finite float %v is forbidden in canonical JSON", f)
	}
	if x == 0 {
		return []byte("0"), nil
	}
	if abs := math.Abs(x); abs >= 1e-6 && abs < 1e21 {
		return strconv.AppendFloat(nil, x, 'f', -1, 32), nil
	}
	b := strconv.AppendFloat(nil, x, 'e', -1, 32)
	mant, exp, _ := bytes.Cut(b, []byte("e"))
	sign, digits := exp[0], bytes.TrimLeft(exp[1:], "0")
	out := append(mant, 'e', sign)
	return append(out, digits...), nil
}

// MarshalJSON renders the object in its canonical encoding.
func (o IRObject) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(o)
}

// UnmarshalIRObject decodes the canonical encoding of an IRObject produced
// by MarshalCanonical, rebuilding it with the given capacity. IRMessageRef
// values come back as owned IRString values.
func UnmarshalIRObject(data []byte, capacity int) (IRObject, error) {
	var raw []struct {
		Name     FieldName       `json:"name"`
		Type     DataType        `json:"type"`
		Value    json.RawMessage `json:"value"`
		Encoding string          `json:"encoding"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return IRObject{}, fmt.Errorf("decode object: %w", err)
	}
	fields := make([]IRField, len(raw))
	for i, r := range raw {
		v, err := decodeValue(r.Type, r.Value, r.Encoding)
		if err != nil {
			return IRObject{}, fmt.Errorf("field %q: %w", r.Name, err)
		}
		fields[i] = F(r.Name, v)
	}
	return NewIRObject(capacity, fields...)
}

func decodeValue(dt DataType, raw json.RawMessage, encoding string) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	switch dt {
	case TypeUint8, TypeUint16, TypeUint32:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%s: want number, got %T", dt, v)
		}
		bits := map[DataType]int{TypeUint8: 8, TypeUint16: 16, TypeUint32: 32}[dt]
		u, err := strconv.ParseUint(n.String(), 10, bits)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dt, err)
		}
		switch dt {
		case TypeUint8:
			return IRUint8(u), nil
		case TypeUint16:
			return IRUint16(u), nil
		default:
			return IRUint32(u), nil
		}
	case TypeFloat:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("float: want number, got %T", v)
		}
		f, err := strconv.ParseFloat(n.String(), 32)
		if err != nil {
			return nil, fmt.Errorf("float: %w", err)
		}
		return IRFloat(f), nil
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("bool: want bool, got %T", v)
		}
		return IRBool(b), nil
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("string: want string, got %T", v)
		}
		switch encoding {
		case "":
			return IRString(s), nil
		case encodingBase64:
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("string: %w", err)
			}
			return IRString(b), nil
		default:
			return nil, fmt.Errorf("string: unknown encoding %q", encoding)
		}
	case TypeVersion:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("version: want string, got %T", v)
		}
		ver, err := ParseVersion(s)
		if err != nil {
			return nil, err
		}
		return IRVersion(ver), nil
	case TypeTimestamp:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("timestamp: want string, got %T", v)
		}
		ts, err := ParseTimestamp(s)
		if err != nil {
			return nil, err
		}
		return IRTimestamp(ts), nil
	default:
		if !dt.IsEnum() {
			return nil, fmt.Errorf("%w: data type %s", ErrInvalidValue, dt)
		}
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%s: want number, got %T", dt, v)
		}
		m, err := strconv.ParseInt(n.String(), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dt, err)
		}
		return IREnum{Type: dt, Member: int32(m)}, nil
	}
}
