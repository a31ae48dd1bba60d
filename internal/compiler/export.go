package compiler

import (
	"fmt"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"

	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// The *Doc types mirror table.cue for encoding.

type typeDoc struct {
	Data      string `json:"data"`
	Converter string `json:"converter,omitempty"`
	Unit      string `json:"unit,omitempty"`
	Scale     string `json:"scale,omitempty"`
	Min       any    `json:"min,omitempty"`
	Max       any    `json:"max,omitempty"`
	Allowed   []any  `json:"allowed,omitempty"`
}

type paramDoc struct {
	Name string  `json:"name"`
	Role string  `json:"role"`
	Type typeDoc `json:"type"`
}

type commandDoc struct {
	Code    int        `json:"code"`
	Aliases []string   `json:"aliases,omitempty"`
	Params  []paramDoc `json:"params,omitempty"`
}

type fieldDoc struct {
	Name    string  `json:"name"`
	Type    typeDoc `json:"type"`
	Prefix  string  `json:"prefix,omitempty"`
	Postfix string  `json:"postfix,omitempty"`
}

type answerDoc struct {
	Code   int        `json:"code"`
	Fields []fieldDoc `json:"fields,omitempty"`
}

type tableDoc struct {
	Device      string       `json:"device"`
	Version     string       `json:"version"`
	Build       string       `json:"build"`
	Options     string       `json:"options,omitempty"`
	Commands    []commandDoc `json:"commands,omitempty"`
	Unsupported []int        `json:"unsupported,omitempty"`
	Answers     []answerDoc  `json:"answers,omitempty"`
}

// ExportTables renders tables as a CUE file of package pkg that LoadDir and
// CompileSource read back into equal tables. Each table is labelled with
// its key, e.g. "descale/v1.0.0/release".
func ExportTables(pkg string, tables ...schema.ProtocolTable) ([]byte, error) {
	docs := make(map[string]tableDoc, len(tables))
	for _, t := range tables {
		label := t.Key().String()
		if _, dup := docs[label]; dup {
			return nil, fmt.Errorf("duplicate table %s", label)
		}
		docs[label] = exportTable(t)
	}

	v := cuecontext.New().Encode(map[string]any{"protocol": docs})
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("encoding tables: %w", err)
	}
	lit, ok := v.Syntax().(*ast.StructLit)
	if !ok {
		return nil, fmt.Errorf("encoding tables: unexpected syntax %T", v.Syntax())
	}

	file := &ast.File{}
	if pkg != "" {
		file.Decls = append(file.Decls, &ast.Package{Name: ast.NewIdent(pkg)})
	}
	file.Decls = append(file.Decls, lit.Elts...)
	return format.Node(file)
}

func exportTable(t schema.ProtocolTable) tableDoc {
	doc := tableDoc{
		Device:  t.Device.String(),
		Version: t.Version.String(),
		Build:   t.Build.String(),
		Options: t.Options,
	}
	for _, c := range t.Commands {
		cd := commandDoc{Code: int(c.Code), Aliases: c.Aliases}
		for _, p := range c.Params {
			cd.Params = append(cd.Params, paramDoc{Name: string(p.Name), Role: p.Role.String(), Type: exportType(p.Type)})
		}
		doc.Commands = append(doc.Commands, cd)
	}
	for _, code := range t.Unsupported {
		doc.Unsupported = append(doc.Unsupported, int(code))
	}
	for _, a := range t.Answers {
		ad := answerDoc{Code: int(a.Code)}
		for _, f := range a.Fields {
			ad.Fields = append(ad.Fields, fieldDoc{
				Name:    string(f.Name),
				Type:    exportType(f.Type),
				Prefix:  f.Prefix,
				Postfix: f.Postfix,
			})
		}
		doc.Answers = append(doc.Answers, ad)
	}
	return doc
}

func exportType(ft schema.FieldType) typeDoc {
	doc := typeDoc{Data: ft.DataType().String()}
	if c := ft.Converter(); c != schema.DefaultConverter(ft.DataType()) {
		doc.Converter = c.String()
	}
	if u := ft.Unit(); u.Unit != schema.UnitNone || u.Prefix != schema.PrefixNone {
		doc.Unit = u.Unit.String()
		doc.Scale = u.Prefix.String()
	}

	switch l := ft.Limits().(type) {
	case schema.FieldLimits[uint8]:
		doc.Min, doc.Max, doc.Allowed = exportBounds(l, func(x uint8) any { return int(x) })
	case schema.FieldLimits[uint16]:
		doc.Min, doc.Max, doc.Allowed = exportBounds(l, func(x uint16) any { return int(x) })
	case schema.FieldLimits[uint32]:
		doc.Min, doc.Max, doc.Allowed = exportBounds(l, func(x uint32) any { return int64(x) })
	case schema.FieldLimits[float32]:
		doc.Min, doc.Max, doc.Allowed = exportBounds(l, func(x float32) any { return float64(x) })
	case schema.FieldLimits[string]:
		doc.Min, doc.Max, doc.Allowed = exportBounds(l, func(x string) any { return x })
	case schema.FieldLimits[int32]:
		dt := ft.DataType()
		doc.Min, doc.Max, doc.Allowed = exportBounds(l, func(x int32) any {
			if name, err := schema.EnumName(ir.IREnum{Type: dt, Member: x}); err == nil {
				return name
			}
			return int(x)
		})
	case schema.VersionLimits:
		if l.Min != nil {
			doc.Min = l.Min.String()
		}
		if l.Max != nil {
			doc.Max = l.Max.String()
		}
		for _, v := range l.Allowed {
			doc.Allowed = append(doc.Allowed, v.String())
		}
	}
	return doc
}

func exportBounds[T schema.Bound](l schema.FieldLimits[T], conv func(T) any) (lo, hi any, allowed []any) {
	if l.Min != nil {
		lo = conv(*l.Min)
	}
	if l.Max != nil {
		hi = conv(*l.Max)
	}
	for _, a := range l.Allowed {
		allowed = append(allowed, conv(a))
	}
	return lo, hi, allowed
}
