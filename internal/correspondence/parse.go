package correspondence

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// ErrSyntax is returned when a command line does not have the
// alias[index][=value] shape.
var ErrSyntax = errors.New("malformed command line")

// commandLine matches "?freq", "!atf2=100000", "!log_level[global]=INFO"
// and bare names such as "set_frequency=1000".
var commandLine = regexp.MustCompile(`^([!?\-=][_a-zA-Z]*|[_a-zA-Z]+)(\d+|\[[^\]]+\])?(?:=(.+))?$`)

// ParseCommand turns a typed command line into a validated call. The index
// part fills the command's index parameter and the value after '=' fills its
// setter parameter. Values are converted with each parameter's field type,
// so enum members may be given by name.
func ParseCommand(desc *schema.ProtocolDescriptor, line string) (CommandCall, error) {
	line = strings.TrimSpace(line)
	m := commandLine.FindStringSubmatch(line)
	if m == nil {
		return CommandCall{}, fmt.Errorf("%w: %q", ErrSyntax, line)
	}
	alias, index, value := m[1], strings.Trim(m[2], "[]"), m[3]

	def, err := desc.CommandByAlias(alias)
	if err != nil {
		return CommandCall{}, err
	}

	var args []ir.IRField
	parts := []struct {
		raw  string
		role schema.ParamRole
	}{{index, schema.RoleIndex}, {value, schema.RoleSetter}}
	for _, part := range parts {
		if part.raw == "" {
			continue
		}
		p, ok := paramWithRole(def, part.role)
		if !ok {
			return CommandCall{}, fmt.Errorf("command %s: %w: takes no %s argument", def.Name(), schema.ErrSchemaMismatch, part.role)
		}
		v, err := p.Type.Coerce(part.raw)
		if err != nil {
			return CommandCall{}, fmt.Errorf("command %s: parameter %q: %w", def.Name(), p.Name, err)
		}
		args = append(args, ir.F(p.Name, v))
	}
	return BuildCommandCall(def, args...)
}

// FormatCommand renders call as a command line ParseCommand accepts, using
// the command's first alias.
func FormatCommand(def schema.CommandDef, call CommandCall) (string, error) {
	if len(def.Aliases) == 0 {
		return "", fmt.Errorf("command %d has no alias", def.Code)
	}
	if def.Code != call.Code() {
		return "", fmt.Errorf("%w: call %d formatted with command %d", schema.ErrSchemaMismatch, call.Code(), def.Code)
	}

	var b strings.Builder
	b.WriteString(def.Aliases[0])
	if p, ok := paramWithRole(def, schema.RoleIndex); ok {
		f, err := call.Args().Field(p.Name)
		if err != nil {
			return "", err
		}
		s := lineValue(f.Value)
		if s == "" {
			return "", fmt.Errorf("%w: empty index %q", ErrSyntax, p.Name)
		}
		if _, isEnum := f.Value.(ir.IREnum); isEnum {
			s = "[" + s + "]"
		}
		b.WriteString(s)
	}
	if p, ok := paramWithRole(def, schema.RoleSetter); ok {
		f, err := call.Args().Field(p.Name)
		if err != nil {
			return "", err
		}
		s := lineValue(f.Value)
		if s == "" {
			return "", fmt.Errorf("%w: empty value for %q", ErrSyntax, p.Name)
		}
		b.WriteByte('=')
		b.WriteString(s)
	}
	return b.String(), nil
}

func paramWithRole(def schema.CommandDef, role schema.ParamRole) (schema.ParamDef, bool) {
	for _, p := range def.Params {
		if p.Role == role {
			return p, true
		}
	}
	return schema.ParamDef{}, false
}

func lineValue(v ir.IRValue) string {
	switch x := v.(type) {
	case ir.IRString:
		return string(x)
	case ir.IRMessageRef:
		return string(x)
	case ir.IRFloat:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case ir.IREnum:
		if name, err := schema.EnumName(x); err == nil {
			return name
		}
	}
	return ir.FormatValue(v)
}
