package schema

import (
	"fmt"

	"github.com/usepat/SW-soniccontrol/internal/ir"
)

// Table check issue codes (E100-E199)
const (
	// Descriptor identity (E100-E101)
	IssueInvalidDevice = "E100" // device type is not a declared member
	IssueInvalidBuild  = "E101" // build type is neither release nor debug

	// Commands (E110-E119)
	IssueDuplicateCommand  = "E110" // command code declared twice
	IssueUnsupportedClash  = "E111" // code both supported and unsupported, or listed unsupported twice
	IssueDuplicateAlias    = "E112" // alias used by two commands
	IssueEmptyAlias        = "E113" // empty alias string
	IssueDuplicateParam    = "E114" // parameter name repeated within a command
	IssueTooManyParams     = "E115" // more parameters than a command call can hold
	IssueDuplicateRole     = "E116" // more than one setter or index parameter
	IssueErrorRangeCommand = "E117" // command code in the error answer range
	IssueMissingAnswer     = "E118" // supported command without an answer definition
	IssueInvalidParamType  = "E119" // parameter has no valid field type

	// Answers (E120-E129)
	IssueDuplicateAnswer      = "E120" // answer code declared twice
	IssueDuplicateAnswerField = "E121" // field name repeated within an answer
	IssueTooManyAnswerFields  = "E122" // more fields than an answer can hold
	IssueInvalidFieldType     = "E123" // answer field has no valid field type

	IssueInvalidParamRole = "E124" // parameter role is neither setter nor index
)

// CheckTable validates a protocol table and returns every issue found
// (it does not fail fast). An empty result means the table can be turned
// into a ProtocolDescriptor.
func CheckTable(t ProtocolTable) []TableIssue {
	var issues []TableIssue
	add := func(code, field, format string, args ...any) {
		issues = append(issues, TableIssue{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	if _, err := EnumName(t.Device.IR()); err != nil {
		add(IssueInvalidDevice, "device", "%v", err)
	}
	if t.Build != BuildRelease && t.Build != BuildDebug {
		add(IssueInvalidBuild, "build", "invalid build type %d", t.Build)
	}

	answerCodes := make(map[ir.CommandCode]bool, len(t.Answers))
	for _, a := range t.Answers {
		answerCodes[a.Code] = true
	}

	commandCodes := make(map[ir.CommandCode]int)
	aliases := make(map[string]ir.CommandCode)
	for i, c := range t.Commands {
		path := fmt.Sprintf("commands[%d]", i)

		if prev, dup := commandCodes[c.Code]; dup {
			add(IssueDuplicateCommand, path+".code", "command code %d already declared at commands[%d]", c.Code, prev)
		} else {
			commandCodes[c.Code] = i
		}
		if c.Code.IsError() {
			add(IssueErrorRangeCommand, path+".code", "command code %d is in the error range (>= %d)", c.Code, ir.ErrorCodeBase)
		}
		if !answerCodes[c.Code] {
			add(IssueMissingAnswer, path+".code", "command %d has no answer definition", c.Code)
		}

		for j, a := range c.Aliases {
			apath := fmt.Sprintf("%s.aliases[%d]", path, j)
			if a == "" {
				add(IssueEmptyAlias, apath, "alias must be non-empty")
				continue
			}
			if owner, dup := aliases[a]; dup {
				add(IssueDuplicateAlias, apath, "alias %q already used by command %d", a, owner)
				continue
			}
			aliases[a] = c.Code
		}

		if len(c.Params) > ir.CommandArgsCapacity {
			add(IssueTooManyParams, path+".params", "%d parameters exceed capacity %d", len(c.Params), ir.CommandArgsCapacity)
		}
		params := make(map[ir.FieldName]bool)
		roles := make(map[ParamRole]bool)
		for j, p := range c.Params {
			ppath := fmt.Sprintf("%s.params[%d]", path, j)
			if params[p.Name] {
				add(IssueDuplicateParam, ppath+".name", "duplicate parameter %q", p.Name)
			}
			params[p.Name] = true
			switch {
			case !p.Role.Valid():
				add(IssueInvalidParamRole, ppath+".role", "parameter %q has invalid role %d", p.Name, uint8(p.Role))
			case roles[p.Role]:
				add(IssueDuplicateRole, ppath+".role", "second %s parameter", p.Role)
			}
			roles[p.Role] = true
			if !p.Type.DataType().Valid() {
				add(IssueInvalidParamType, ppath+".type", "parameter %q has no field type", p.Name)
			}
		}
	}

	unsupported := make(map[ir.CommandCode]bool)
	for i, code := range t.Unsupported {
		path := fmt.Sprintf("unsupported[%d]", i)
		if _, ok := commandCodes[code]; ok {
			add(IssueUnsupportedClash, path, "code %d is also declared as a supported command", code)
		}
		if unsupported[code] {
			add(IssueUnsupportedClash, path, "code %d listed as unsupported twice", code)
		}
		unsupported[code] = true
	}

	seenAnswers := make(map[ir.CommandCode]int)
	for i, a := range t.Answers {
		path := fmt.Sprintf("answers[%d]", i)
		if prev, dup := seenAnswers[a.Code]; dup {
			add(IssueDuplicateAnswer, path+".code", "answer code %d already declared at answers[%d]", a.Code, prev)
		} else {
			seenAnswers[a.Code] = i
		}
		if len(a.Fields) > ir.AnswerCapacity {
			add(IssueTooManyAnswerFields, path+".fields", "%d fields exceed capacity %d", len(a.Fields), ir.AnswerCapacity)
		}
		names := make(map[ir.FieldName]bool)
		for j, f := range a.Fields {
			fpath := fmt.Sprintf("%s.fields[%d]", path, j)
			if names[f.Name] {
				add(IssueDuplicateAnswerField, fpath+".name", "duplicate answer field %q", f.Name)
			}
			names[f.Name] = true
			if !f.Type.DataType().Valid() {
				add(IssueInvalidFieldType, fpath+".type", "answer field %q has no field type", f.Name)
			}
		}
	}

	return issues
}
