package correspondence

import (
	"fmt"
	"strings"

	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// Answer is an answer code with its validated result fields.
type Answer struct {
	code   ir.CommandCode
	fields ir.IRObject
}

// BuildAnswer assembles an answer for def and validates every field before
// returning it. Codecs call it after decoding a device reply.
func BuildAnswer(def schema.AnswerDef, fields ...ir.IRField) (Answer, error) {
	obj, err := ir.NewIRObject(ir.AnswerCapacity, fields...)
	if err != nil {
		return Answer{}, fmt.Errorf("answer %d: %w", def.Code, err)
	}
	if err := def.CheckFields(obj); err != nil {
		return Answer{}, err
	}
	return Answer{code: def.Code, fields: obj}, nil
}

// NewAnswer resolves the answer definition for code in desc and builds a
// validated answer.
func NewAnswer(desc *schema.ProtocolDescriptor, code ir.CommandCode, fields ...ir.IRField) (Answer, error) {
	def, err := desc.Answer(code)
	if err != nil {
		return Answer{}, err
	}
	return BuildAnswer(def, fields...)
}

// CheckAnswer re-validates an answer against the definition desc holds for
// its code. Codecs use it when the descriptor changed between decoding and
// use, such as after a protocol switch.
func CheckAnswer(desc *schema.ProtocolDescriptor, a Answer) error {
	def, err := desc.Answer(a.code)
	if err != nil {
		return err
	}
	return def.CheckFields(a.fields)
}

// Code returns the answer code.
func (a Answer) Code() ir.CommandCode { return a.code }

// Fields returns the result fields.
func (a Answer) Fields() ir.IRObject { return a.fields }

// IsError reports whether the answer carries an error code.
func (a Answer) IsError() bool { return a.code.IsError() }

// Answers reports whether a is the reply to call. Error answers reply to any
// call.
func (a Answer) Answers(call CommandCall) bool {
	return a.IsError() || a.code == call.code
}

func (a Answer) String() string {
	kind := "answer"
	if a.IsError() {
		kind = "error"
	}
	return fmt.Sprintf("%s %d %s", kind, a.code, objectString(a.fields))
}

// GetFieldValue returns the native value of field name.
func GetFieldValue[T ir.Native](a Answer, name ir.FieldName) (T, error) {
	return ir.ValueAs[T](a.fields, name)
}

func objectString(o ir.IRObject) string {
	parts := make([]string, 0, o.Len())
	for _, f := range o.Fields() {
		parts = append(parts, f.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
