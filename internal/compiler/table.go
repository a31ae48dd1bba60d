package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

//go:embed table.cue
var tableSchema string

// CompileTable decodes one materialized protocol table from a CUE value.
// The value is unified with the #Table definition first, so unknown fields
// and malformed codes fail with a CUE position. Semantic table checks are
// left to schema.NewProtocolDescriptor.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	table, err := CompileTable(v.LookupPath(cue.ParsePath(`protocol."descale/v1.0.0/release"`)))
func CompileTable(v cue.Value) (schema.ProtocolTable, error) {
	if err := v.Err(); err != nil {
		return schema.ProtocolTable{}, formatCUEError(err)
	}

	def := v.Context().CompileString(tableSchema).LookupPath(cue.ParsePath("#Table"))
	if err := def.Err(); err != nil {
		return schema.ProtocolTable{}, fmt.Errorf("table schema: %w", err)
	}
	v = def.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return schema.ProtocolTable{}, formatCUEError(err)
	}

	var t schema.ProtocolTable
	var err error

	s, pos := str(v, "device")
	if t.Device, err = schema.ParseDeviceType(s); err != nil {
		return t, &CompileError{Field: "device", Message: err.Error(), Pos: pos}
	}
	s, pos = str(v, "version")
	if t.Version, err = ir.ParseVersion(s); err != nil {
		return t, &CompileError{Field: "version", Message: err.Error(), Pos: pos}
	}
	s, pos = str(v, "build")
	if t.Build, err = schema.ParseBuildType(s); err != nil {
		return t, &CompileError{Field: "build", Message: err.Error(), Pos: pos}
	}
	t.Options, _ = str(v, "options")

	err = eachElem(v, "commands", func(i int, cv cue.Value) error {
		cmd, err := compileCommand(cv, fmt.Sprintf("commands[%d]", i))
		if err != nil {
			return err
		}
		t.Commands = append(t.Commands, cmd)
		return nil
	})
	if err != nil {
		return t, err
	}

	err = eachElem(v, "unsupported", func(i int, cv cue.Value) error {
		code, err := compileCode(cv)
		if err != nil {
			return err
		}
		t.Unsupported = append(t.Unsupported, code)
		return nil
	})
	if err != nil {
		return t, err
	}

	err = eachElem(v, "answers", func(i int, av cue.Value) error {
		ans, err := compileAnswer(av, fmt.Sprintf("answers[%d]", i))
		if err != nil {
			return err
		}
		t.Answers = append(t.Answers, ans)
		return nil
	})
	return t, err
}

func compileCommand(v cue.Value, path string) (schema.CommandDef, error) {
	code, err := compileCode(v.LookupPath(cue.ParsePath("code")))
	if err != nil {
		return schema.CommandDef{}, err
	}
	cmd := schema.CommandDef{Code: code}

	err = eachElem(v, "aliases", func(_ int, av cue.Value) error {
		alias, err := av.String()
		if err != nil {
			return formatCUEError(err)
		}
		cmd.Aliases = append(cmd.Aliases, alias)
		return nil
	})
	if err != nil {
		return cmd, err
	}

	err = eachElem(v, "params", func(i int, pv cue.Value) error {
		ppath := fmt.Sprintf("%s.params[%d]", path, i)
		name, _ := str(pv, "name")
		roleName, pos := str(pv, "role")
		role, err := schema.ParseParamRole(roleName)
		if err != nil {
			return &CompileError{Field: ppath + ".role", Message: err.Error(), Pos: pos}
		}
		ft, err := compileFieldType(pv.LookupPath(cue.ParsePath("type")), ppath+".type")
		if err != nil {
			return err
		}
		cmd.Params = append(cmd.Params, schema.ParamDef{Name: ir.FieldName(name), Role: role, Type: ft})
		return nil
	})
	return cmd, err
}

func compileAnswer(v cue.Value, path string) (schema.AnswerDef, error) {
	code, err := compileCode(v.LookupPath(cue.ParsePath("code")))
	if err != nil {
		return schema.AnswerDef{}, err
	}
	ans := schema.AnswerDef{Code: code}

	err = eachElem(v, "fields", func(i int, fv cue.Value) error {
		fpath := fmt.Sprintf("%s.fields[%d]", path, i)
		name, _ := str(fv, "name")
		ft, err := compileFieldType(fv.LookupPath(cue.ParsePath("type")), fpath+".type")
		if err != nil {
			return err
		}
		prefix, _ := str(fv, "prefix")
		postfix, _ := str(fv, "postfix")
		ans.Fields = append(ans.Fields, schema.AnswerFieldDef{
			Name:    ir.FieldName(name),
			Type:    ft,
			Prefix:  prefix,
			Postfix: postfix,
		})
		return nil
	})
	return ans, err
}

func compileCode(v cue.Value) (ir.CommandCode, error) {
	n, err := v.Uint64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return ir.CommandCode(n), nil
}

// str returns the string at path. The table has been validated as concrete,
// so a missing optional string reads as "".
func str(v cue.Value, path string) (string, token.Pos) {
	f := v.LookupPath(cue.ParsePath(path))
	s, _ := f.String()
	return s, f.Pos()
}

// eachElem calls fn for every element of the list at path. A missing list
// is empty.
func eachElem(v cue.Value, path string, fn func(i int, elem cue.Value) error) error {
	list := v.LookupPath(cue.ParsePath(path))
	if !list.Exists() {
		return nil
	}
	iter, err := list.List()
	if err != nil {
		return formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		if err := fn(i, iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
