package ir

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DataType identifies the kind of value a field carries.
type DataType uint8

// Data types known to the protocol. The zero value is invalid.
const (
	TypeInvalid DataType = iota
	TypeUint8
	TypeUint16
	TypeUint32
	TypeFloat
	TypeString
	TypeBool
	TypeDeviceType
	TypeCommChannel
	TypeCommProtocol
	TypeInputSource
	TypeProcedure
	TypeWaveform
	TypeLogLevel
	TypeLoggerName
	TypeVersion
	TypeTimestamp
)

var dataTypeNames = [...]string{
	TypeInvalid:      "invalid",
	TypeUint8:        "uint8",
	TypeUint16:       "uint16",
	TypeUint32:       "uint32",
	TypeFloat:        "float",
	TypeString:       "string",
	TypeBool:         "bool",
	TypeDeviceType:   "e_device_type",
	TypeCommChannel:  "e_communication_channel",
	TypeCommProtocol: "e_communication_protocol",
	TypeInputSource:  "e_input_source",
	TypeProcedure:    "e_procedure",
	TypeWaveform:     "e_waveform",
	TypeLogLevel:     "e_log_level",
	TypeLoggerName:   "e_logger_name",
	TypeVersion:      "version",
	TypeTimestamp:    "timestamp",
}

// String returns the lower-case protocol name of the data type.
func (t DataType) String() string {
	if int(t) < len(dataTypeNames) {
		return dataTypeNames[t]
	}
	return fmt.Sprintf("DataType(%d)", uint8(t))
}

// Valid reports whether t is one of the declared data types.
func (t DataType) Valid() bool {
	return t > TypeInvalid && int(t) < len(dataTypeNames)
}

// IsEnum reports whether t is one of the enumeration types.
func (t DataType) IsEnum() bool {
	return t >= TypeDeviceType && t <= TypeLoggerName
}

// ParseDataType returns the data type with the given protocol name.
func ParseDataType(s string) (DataType, error) {
	for i, name := range dataTypeNames {
		if i > 0 && name == s {
			return DataType(i), nil
		}
	}
	return TypeInvalid, fmt.Errorf("unknown data type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t DataType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid data type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DataType) UnmarshalText(b []byte) error {
	dt, err := ParseDataType(string(b))
	if err != nil {
		return err
	}
	*t = dt
	return nil
}

// FieldName names a command parameter or an answer field.
type FieldName string

// CommandCode identifies a command or an answer on the wire.
type CommandCode uint16

// ErrorCodeBase is the first code reserved for error answers.
const ErrorCodeBase CommandCode = 20000

// IsError reports whether c lies in the error code range.
func (c CommandCode) IsError() bool {
	return c >= ErrorCodeBase
}

// Version is a firmware or protocol version triple.
type Version struct {
	Major uint8 `json:"major"`
	Minor uint8 `json:"minor"`
	Patch uint8 `json:"patch"`
}

// V is shorthand for constructing a Version.
func V(major, minor, patch uint8) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// Compare returns -1, 0 or +1 ordering versions lexicographically by
// major, minor, patch.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpUint8(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpUint8(v.Minor, o.Minor)
	default:
		return cmpUint8(v.Patch, o.Patch)
	}
}

func cmpUint8(a, b uint8) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// String formats the version as "v1.2.3".
func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion parses "1.2.3" or "v1.2.3".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(s), "v"), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q: want major.minor.patch", s)
	}
	var nums [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		nums[i] = uint8(n)
	}
	return V(nums[0], nums[1], nums[2]), nil
}

// Timestamp is a device wall-clock reading with second resolution.
type Timestamp struct {
	Year   uint16 `json:"year"`
	Month  uint8  `json:"month"`
	Day    uint8  `json:"day"`
	Hour   uint8  `json:"hour"`
	Minute uint8  `json:"minute"`
	Second uint8  `json:"second"`
}

var timestampPattern = regexp.MustCompile(`^(\d{1,2})[:._\-](\d{1,2})[:._\-](\d{1,2})[._\- ](\d{1,2})[._\-](\d{1,2})[._\-](\d{4})$`)

// String formats the timestamp as "hh:mm:ss dd.mm.yyyy", the device's native form.
func (ts Timestamp) String() string {
	return fmt.Sprintf("%02d:%02d:%02d %02d.%02d.%04d", ts.Hour, ts.Minute, ts.Second, ts.Day, ts.Month, ts.Year)
}

// Time converts the timestamp to a UTC time.Time.
func (ts Timestamp) Time() time.Time {
	return time.Date(int(ts.Year), time.Month(ts.Month), int(ts.Day), int(ts.Hour), int(ts.Minute), int(ts.Second), 0, time.UTC)
}

// Valid reports whether the timestamp names a real calendar second.
func (ts Timestamp) Valid() bool {
	t := ts.Time()
	return t.Year() == int(ts.Year) && t.Month() == time.Month(ts.Month) && t.Day() == int(ts.Day) &&
		t.Hour() == int(ts.Hour) && t.Minute() == int(ts.Minute) && t.Second() == int(ts.Second)
}

// TimestampFromTime truncates t to seconds in UTC.
func TimestampFromTime(t time.Time) Timestamp {
	t = t.UTC()
	return Timestamp{
		Year:   uint16(t.Year()),
		Month:  uint8(t.Month()),
		Day:    uint8(t.Day()),
		Hour:   uint8(t.Hour()),
		Minute: uint8(t.Minute()),
		Second: uint8(t.Second()),
	}
}

// ParseTimestamp parses "hh:mm:ss dd.mm.yyyy". The separators ':', '.', '_'
// and '-' are accepted between components, as devices emit all of them.
func ParseTimestamp(s string) (Timestamp, error) {
	m := timestampPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
	}
	var n [6]int
	for i := range n {
		n[i], _ = strconv.Atoi(m[i+1])
	}
	ts := Timestamp{
		Hour:   uint8(n[0]),
		Minute: uint8(n[1]),
		Second: uint8(n[2]),
		Day:    uint8(n[3]),
		Month:  uint8(n[4]),
		Year:   uint16(n[5]),
	}
	if !ts.Valid() {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: out of range", s)
	}
	return ts, nil
}
