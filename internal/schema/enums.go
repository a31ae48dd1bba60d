package schema

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/usepat/SW-soniccontrol/internal/ir"
)

// enumMembers lists the members of every protocol enumeration. A member's
// wire value is its index in the list.
var enumMembers = map[ir.DataType][]string{
	ir.TypeDeviceType:   {"unknown", "descale", "mvp_worker", "crystal", "configurator"},
	ir.TypeCommChannel:  {"usb", "rs485", "rs232"},
	ir.TypeCommProtocol: {"sonic", "modbus"},
	ir.TypeInputSource:  {"external", "analog", "relay", "digital"},
	ir.TypeProcedure:    {"none", "auto", "tune", "scan", "wipe", "ramp", "duty_cycle"},
	ir.TypeWaveform:     {"sine", "square"},
	ir.TypeLogLevel:     {"DEBUG", "INFO", "WARN", "ERROR", "DISABLED", "DEBUG_EXTENSIVE"},
	ir.TypeLoggerName:   {"appLogger", "transducerLogger", "hwfcLogger", "procedureLogger", "global"},
}

// EnumMembers returns the member names of an enumeration in wire order,
// or nil if dt is not an enum type.
func EnumMembers(dt ir.DataType) []string {
	return slices.Clone(enumMembers[dt])
}

// EnumName returns the member name of e.
func EnumName(e ir.IREnum) (string, error) {
	members, ok := enumMembers[e.Type]
	if !ok {
		return "", fmt.Errorf("%s is not an enum type", e.Type)
	}
	if e.Member < 0 || int(e.Member) >= len(members) {
		return "", fmt.Errorf("%s has no member %d", e.Type, e.Member)
	}
	return members[e.Member], nil
}

// ParseEnum resolves a member name (case-insensitive) or its decimal wire
// value to an enum value of type dt.
func ParseEnum(dt ir.DataType, s string) (ir.IREnum, error) {
	members, ok := enumMembers[dt]
	if !ok {
		return ir.IREnum{}, fmt.Errorf("%s is not an enum type", dt)
	}
	for i, m := range members {
		if strings.EqualFold(m, s) {
			return ir.IREnum{Type: dt, Member: int32(i)}, nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 32); err == nil && n >= 0 && int(n) < len(members) {
		return ir.IREnum{Type: dt, Member: int32(n)}, nil
	}
	return ir.IREnum{}, fmt.Errorf("%q is not a member of %s (want one of %s)", s, dt, strings.Join(members, ", "))
}

// MustEnum is like ParseEnum but panics on error. Use only for static tables.
func MustEnum(dt ir.DataType, name string) ir.IREnum {
	e, err := ParseEnum(dt, name)
	if err != nil {
		panic(err)
	}
	return e
}

func isEnumMember(e ir.IREnum) bool {
	members := enumMembers[e.Type]
	return e.Member >= 0 && int(e.Member) < len(members)
}

// DeviceType identifies the kind of sonic device a protocol applies to.
type DeviceType int32

// Device types, in wire order.
const (
	DeviceUnknown DeviceType = iota
	DeviceDescale
	DeviceMVPWorker
	DeviceCrystal
	DeviceConfigurator
)

// String returns the protocol name of the device type.
func (d DeviceType) String() string {
	name, err := EnumName(d.IR())
	if err != nil {
		return fmt.Sprintf("DeviceType(%d)", int32(d))
	}
	return name
}

// IR returns the device type as an enum value.
func (d DeviceType) IR() ir.IREnum {
	return ir.IREnum{Type: ir.TypeDeviceType, Member: int32(d)}
}

// ParseDeviceType parses a device type name such as "mvp_worker".
func ParseDeviceType(s string) (DeviceType, error) {
	e, err := ParseEnum(ir.TypeDeviceType, s)
	if err != nil {
		return DeviceUnknown, err
	}
	return DeviceType(e.Member), nil
}

// BuildType distinguishes release firmware from debug firmware. Debug builds
// expose additional commands.
type BuildType uint8

const (
	BuildRelease BuildType = iota
	BuildDebug
)

// String returns "release" or "debug".
func (b BuildType) String() string {
	switch b {
	case BuildRelease:
		return "release"
	case BuildDebug:
		return "debug"
	default:
		return fmt.Sprintf("BuildType(%d)", uint8(b))
	}
}

// ParseBuildType parses "release" or "debug", case-insensitively.
func ParseBuildType(s string) (BuildType, error) {
	switch strings.ToLower(s) {
	case "release":
		return BuildRelease, nil
	case "debug":
		return BuildDebug, nil
	default:
		return BuildRelease, fmt.Errorf("unknown build type %q", s)
	}
}

// ParamRole tells the codec how a parameter is placed on the wire.
type ParamRole uint8

const (
	// RoleSetter is the value being written by a setter command.
	RoleSetter ParamRole = iota
	// RoleIndex selects the addressed element, such as a transducer slot.
	RoleIndex
)

func (r ParamRole) String() string {
	switch r {
	case RoleSetter:
		return "setter"
	case RoleIndex:
		return "index"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Valid reports whether r is a declared role.
func (r ParamRole) Valid() bool { return r == RoleSetter || r == RoleIndex }

// ParseParamRole parses "setter" or "index".
func ParseParamRole(s string) (ParamRole, error) {
	switch strings.ToLower(s) {
	case "setter":
		return RoleSetter, nil
	case "index":
		return RoleIndex, nil
	default:
		return RoleSetter, fmt.Errorf("unknown param role %q", s)
	}
}

// ConverterKind names the codec-side converter a field is rendered with.
type ConverterKind uint8

const (
	ConvPrimitive ConverterKind = iota
	ConvEnum
	ConvSignal
	ConvVersion
	ConvBuildType
	ConvTermination
	ConvTimestamp
	ConvActivation
)

var converterNames = [...]string{"primitive", "enum", "signal", "version", "build_type", "termination", "timestamp", "activation"}

func (c ConverterKind) String() string {
	if int(c) < len(converterNames) {
		return converterNames[c]
	}
	return fmt.Sprintf("ConverterKind(%d)", uint8(c))
}

// ParseConverterKind parses a converter name such as "signal".
func ParseConverterKind(s string) (ConverterKind, error) {
	if i := slices.Index(converterNames[:], strings.ToLower(s)); i >= 0 {
		return ConverterKind(i), nil
	}
	return ConvPrimitive, fmt.Errorf("unknown converter %q", s)
}

// DefaultConverter returns the converter used for dt when none is given.
func DefaultConverter(dt ir.DataType) ConverterKind {
	switch {
	case dt.IsEnum():
		return ConvEnum
	case dt == ir.TypeVersion:
		return ConvVersion
	case dt == ir.TypeTimestamp:
		return ConvTimestamp
	default:
		return ConvPrimitive
	}
}
