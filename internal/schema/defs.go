package schema

import (
	"errors"
	"fmt"
	"slices"

	"github.com/usepat/SW-soniccontrol/internal/ir"
)

// ParamDef describes one argument slot of a command.
type ParamDef struct {
	Name ir.FieldName
	Role ParamRole
	Type FieldType
}

// Validate checks v against the parameter's type and names the parameter
// in any returned error.
func (p ParamDef) Validate(v ir.IRValue) error {
	if err := p.Type.Validate(v); err != nil {
		return withField(err, p.Name)
	}
	return nil
}

// CommandDef describes a command: its code, the text aliases it is known by
// and its parameters.
type CommandDef struct {
	Code    ir.CommandCode
	Aliases []string
	Params  []ParamDef
}

// Param returns the parameter named name.
func (c CommandDef) Param(name ir.FieldName) (ParamDef, bool) {
	for _, p := range c.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamDef{}, false
}

// Name returns the first alias, or the decimal code when there is none.
func (c CommandDef) Name() string {
	if len(c.Aliases) > 0 {
		return c.Aliases[0]
	}
	return fmt.Sprintf("%d", c.Code)
}

// CheckArgs reports every way args deviates from the command's parameters:
// missing parameters, undeclared arguments and invalid values. The result
// wraps ir.ErrFieldNotFound, ErrSchemaMismatch or ErrValidationFailed.
func (c CommandDef) CheckArgs(args ir.IRObject) error {
	var errs []error
	for _, p := range c.Params {
		f, ok := args.Lookup(p.Name)
		if !ok {
			errs = append(errs, fmt.Errorf("missing parameter: %w", &ir.FieldNotFoundError{Name: p.Name}))
			continue
		}
		if err := p.Validate(f.Value); err != nil {
			errs = append(errs, err)
		}
	}
	for _, name := range args.Names() {
		if _, ok := c.Param(name); !ok {
			errs = append(errs, fmt.Errorf("%w: undeclared argument %q", ErrSchemaMismatch, name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("command %d (%s): %w", c.Code, c.Name(), errors.Join(errs...))
	}
	return nil
}

func (c CommandDef) clone() CommandDef {
	return CommandDef{Code: c.Code, Aliases: slices.Clone(c.Aliases), Params: slices.Clone(c.Params)}
}

// AnswerFieldDef describes one field of an answer. Prefix and Postfix are
// wire decorations applied by the codec.
type AnswerFieldDef struct {
	Name    ir.FieldName
	Type    FieldType
	Prefix  string
	Postfix string
}

// Validate checks v against the field's type and names the field in any
// returned error.
func (f AnswerFieldDef) Validate(v ir.IRValue) error {
	if err := f.Type.Validate(v); err != nil {
		return withField(err, f.Name)
	}
	return nil
}

// AnswerDef describes the answer carrying a given code.
type AnswerDef struct {
	Code   ir.CommandCode
	Fields []AnswerFieldDef
}

// Field returns the answer field named name.
func (a AnswerDef) Field(name ir.FieldName) (AnswerFieldDef, bool) {
	for _, f := range a.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return AnswerFieldDef{}, false
}

// CheckFields reports every way fields deviates from the answer definition.
// See CommandDef.CheckArgs.
func (a AnswerDef) CheckFields(fields ir.IRObject) error {
	var errs []error
	for _, fd := range a.Fields {
		f, ok := fields.Lookup(fd.Name)
		if !ok {
			errs = append(errs, fmt.Errorf("missing answer field: %w", &ir.FieldNotFoundError{Name: fd.Name}))
			continue
		}
		if err := fd.Validate(f.Value); err != nil {
			errs = append(errs, err)
		}
	}
	for _, name := range fields.Names() {
		if _, ok := a.Field(name); !ok {
			errs = append(errs, fmt.Errorf("%w: undeclared answer field %q", ErrSchemaMismatch, name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("answer %d: %w", a.Code, errors.Join(errs...))
	}
	return nil
}

func (a AnswerDef) clone() AnswerDef {
	return AnswerDef{Code: a.Code, Fields: slices.Clone(a.Fields)}
}
