// Package correspondence pairs command and answer codes with their IR
// objects: the values exchanged with a device in one transaction.
package correspondence

import (
	"fmt"

	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// CommandCall is a command code with its validated arguments.
type CommandCall struct {
	code ir.CommandCode
	args ir.IRObject
}

// BuildCommandCall assembles a call for def and validates every argument
// against the command's parameters before returning it.
func BuildCommandCall(def schema.CommandDef, args ...ir.IRField) (CommandCall, error) {
	obj, err := ir.NewIRObject(ir.CommandArgsCapacity, args...)
	if err != nil {
		return CommandCall{}, fmt.Errorf("command %d: %w", def.Code, err)
	}
	if err := def.CheckArgs(obj); err != nil {
		return CommandCall{}, err
	}
	return CommandCall{code: def.Code, args: obj}, nil
}

// NewCall resolves code in desc and builds a validated call.
func NewCall(desc *schema.ProtocolDescriptor, code ir.CommandCode, args ...ir.IRField) (CommandCall, error) {
	def, err := desc.Command(code)
	if err != nil {
		return CommandCall{}, err
	}
	return BuildCommandCall(def, args...)
}

// NewCallByAlias resolves a command alias such as "!freq" in desc and builds
// a validated call.
func NewCallByAlias(desc *schema.ProtocolDescriptor, alias string, args ...ir.IRField) (CommandCall, error) {
	def, err := desc.CommandByAlias(alias)
	if err != nil {
		return CommandCall{}, err
	}
	return BuildCommandCall(def, args...)
}

// Code returns the command code.
func (c CommandCall) Code() ir.CommandCode { return c.code }

// Args returns the arguments. The object is immutable, so the copy is cheap.
func (c CommandCall) Args() ir.IRObject { return c.args }

func (c CommandCall) String() string {
	return fmt.Sprintf("call %d %s", c.code, objectString(c.args))
}

// GetArgValue returns the native value of argument name.
func GetArgValue[T ir.Native](c CommandCall, name ir.FieldName) (T, error) {
	return ir.ValueAs[T](c.args, name)
}
