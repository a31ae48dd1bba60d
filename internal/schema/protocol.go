package schema

import (
	"fmt"
	"strings"

	"github.com/usepat/SW-soniccontrol/internal/ir"
)

// Key identifies a protocol descriptor.
type Key struct {
	Device  DeviceType
	Version ir.Version
	Build   BuildType
}

// String renders the key as "device/version/build", e.g. "mvp_worker/v1.0.0/release".
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Device, k.Version, k.Build)
}

// Compare orders keys by device, then version, then build.
func (k Key) Compare(o Key) int {
	if k.Device != o.Device {
		if k.Device < o.Device {
			return -1
		}
		return 1
	}
	if c := k.Version.Compare(o.Version); c != 0 {
		return c
	}
	if k.Build != o.Build {
		if k.Build < o.Build {
			return -1
		}
		return 1
	}
	return 0
}

// ParseKey parses the form produced by Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("invalid protocol key %q: want device/version/build", s)
	}
	dev, err := ParseDeviceType(parts[0])
	if err != nil {
		return Key{}, err
	}
	ver, err := ir.ParseVersion(parts[1])
	if err != nil {
		return Key{}, err
	}
	build, err := ParseBuildType(parts[2])
	if err != nil {
		return Key{}, err
	}
	return Key{Device: dev, Version: ver, Build: build}, nil
}

// ProtocolTable is the materialized, plain-data form of one protocol: the
// shape that generated tables and CUE files are decoded into.
type ProtocolTable struct {
	Version ir.Version
	Device  DeviceType
	Build   BuildType
	Options string

	// Commands are the commands this version supports, in declaration order.
	Commands []CommandDef

	// Unsupported lists codes known from other versions that this version
	// explicitly does not support.
	Unsupported []ir.CommandCode

	Answers []AnswerDef
}

// Key returns the table's identity.
func (t ProtocolTable) Key() Key {
	return Key{Device: t.Device, Version: t.Version, Build: t.Build}
}

// ProtocolDescriptor is the immutable, checked form of a protocol table.
// Commands are keyed by code; a nil entry marks a command this version does
// not support. All accessors return copies, so a descriptor can be shared
// across goroutines without locking.
type ProtocolDescriptor struct {
	key     Key
	options string

	commands     map[ir.CommandCode]*CommandDef
	commandOrder []ir.CommandCode
	aliases      map[string]ir.CommandCode

	answers     map[ir.CommandCode]AnswerDef
	answerOrder []ir.CommandCode
}

// NewProtocolDescriptor checks t and builds a descriptor from a deep copy of
// it. All issues are reported at once in a TableError.
func NewProtocolDescriptor(t ProtocolTable) (*ProtocolDescriptor, error) {
	if issues := CheckTable(t); len(issues) > 0 {
		return nil, &TableError{Protocol: t.Key().String(), Issues: issues}
	}

	d := &ProtocolDescriptor{
		key:      t.Key(),
		options:  t.Options,
		commands: make(map[ir.CommandCode]*CommandDef, len(t.Commands)+len(t.Unsupported)),
		aliases:  make(map[string]ir.CommandCode),
		answers:  make(map[ir.CommandCode]AnswerDef, len(t.Answers)),
	}
	for _, c := range t.Commands {
		cp := c.clone()
		d.commands[c.Code] = &cp
		d.commandOrder = append(d.commandOrder, c.Code)
		for _, a := range c.Aliases {
			d.aliases[a] = c.Code
		}
	}
	for _, code := range t.Unsupported {
		d.commands[code] = nil
		d.commandOrder = append(d.commandOrder, code)
	}
	for _, a := range t.Answers {
		d.answers[a.Code] = a.clone()
		d.answerOrder = append(d.answerOrder, a.Code)
	}
	return d, nil
}

// MustProtocolDescriptor is like NewProtocolDescriptor but panics on error.
// Use only for static tables compiled into the binary.
func MustProtocolDescriptor(t ProtocolTable) *ProtocolDescriptor {
	d, err := NewProtocolDescriptor(t)
	if err != nil {
		panic(err)
	}
	return d
}

// Key returns the descriptor's identity.
func (d *ProtocolDescriptor) Key() Key { return d.key }

// Version returns the protocol version.
func (d *ProtocolDescriptor) Version() ir.Version { return d.key.Version }

// Device returns the device type.
func (d *ProtocolDescriptor) Device() DeviceType { return d.key.Device }

// Build returns the build type.
func (d *ProtocolDescriptor) Build() BuildType { return d.key.Build }

// IsRelease reports whether the descriptor describes a release build.
func (d *ProtocolDescriptor) IsRelease() bool { return d.key.Build == BuildRelease }

// Options returns the free-form options string.
func (d *ProtocolDescriptor) Options() string { return d.options }

// Command returns the definition for code. It fails with an
// UnknownCodeError when the code is absent and an UnsupportedCommandError
// when this version lists it as unsupported.
func (d *ProtocolDescriptor) Command(code ir.CommandCode) (CommandDef, error) {
	def, ok := d.commands[code]
	if !ok {
		return CommandDef{}, &UnknownCodeError{Code: code, Protocol: d.key.String()}
	}
	if def == nil {
		return CommandDef{}, &UnsupportedCommandError{Code: code, Protocol: d.key.String()}
	}
	return def.clone(), nil
}

// Supports reports whether code is a supported command.
func (d *ProtocolDescriptor) Supports(code ir.CommandCode) bool {
	return d.commands[code] != nil
}

// CommandByAlias resolves a text alias such as "?freq" to its command.
func (d *ProtocolDescriptor) CommandByAlias(alias string) (CommandDef, error) {
	code, ok := d.aliases[alias]
	if !ok {
		return CommandDef{}, &UnknownAliasError{Alias: alias, Protocol: d.key.String()}
	}
	return d.Command(code)
}

// Commands returns the supported commands in declaration order.
func (d *ProtocolDescriptor) Commands() []CommandDef {
	out := make([]CommandDef, 0, len(d.commandOrder))
	for _, code := range d.commandOrder {
		if def := d.commands[code]; def != nil {
			out = append(out, def.clone())
		}
	}
	return out
}

// Unsupported returns the codes this version marks as unsupported.
func (d *ProtocolDescriptor) Unsupported() []ir.CommandCode {
	var out []ir.CommandCode
	for _, code := range d.commandOrder {
		if d.commands[code] == nil {
			out = append(out, code)
		}
	}
	return out
}

// Answer returns the answer definition carrying code.
func (d *ProtocolDescriptor) Answer(code ir.CommandCode) (AnswerDef, error) {
	a, ok := d.answers[code]
	if !ok {
		return AnswerDef{}, &UnknownCodeError{Code: code, Protocol: d.key.String(), Answer: true}
	}
	return a.clone(), nil
}

// Answers returns all answer definitions in declaration order.
func (d *ProtocolDescriptor) Answers() []AnswerDef {
	out := make([]AnswerDef, len(d.answerOrder))
	for i, code := range d.answerOrder {
		out[i] = d.answers[code].clone()
	}
	return out
}

// Table returns a deep copy of the descriptor in table form.
func (d *ProtocolDescriptor) Table() ProtocolTable {
	return ProtocolTable{
		Version:     d.key.Version,
		Device:      d.key.Device,
		Build:       d.key.Build,
		Options:     d.options,
		Commands:    d.Commands(),
		Unsupported: d.Unsupported(),
		Answers:     d.Answers(),
	}
}
