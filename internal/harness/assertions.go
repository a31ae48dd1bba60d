package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/protocols"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		obj := event.Args
		if event.Type == EventAnswer {
			obj = event.Fields
		}
		fmt.Fprintf(&buf, "  [%d] %s %s %s\n", i+1, event.Type, event.Command, formatObject(obj))
	}
	return buf.String()
}

func formatObject(obj *ir.IRObject) string {
	if obj == nil {
		return "{}"
	}
	parts := make([]string, 0, obj.Len())
	for name, v := range obj.All() {
		parts = append(parts, fmt.Sprintf("%s: %s", name, ir.FormatValue(v)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions. desc supplies the
// parameter types used to compare expected argument values.
func EvaluateAssertions(result *Result, assertions []Assertion, desc *schema.ProtocolDescriptor) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a, desc)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertErrorCount:
			err = assertErrorCount(result.Trace, a)
		case AssertPendingCount:
			err = assertPendingCount(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertTraceContains checks that a call with the command and matching args
// (subset match) exists.
func assertTraceContains(trace []TraceEvent, a Assertion, desc *schema.ProtocolDescriptor) error {
	code, err := protocols.ParseCode(a.Command)
	if err != nil {
		return err
	}
	def, err := desc.Command(code)
	if err != nil {
		return err
	}
	for _, event := range trace {
		if event.Type == EventCall && event.Code == code && matchArgs(*event.Args, a.Args, def) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("call %s with args %v", a.Command, a.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that commands were first called in the given
// order. Intervening calls are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[ir.CommandCode]int)
	codes := make([]ir.CommandCode, len(a.Commands))
	for i, name := range a.Commands {
		code, err := protocols.ParseCode(name)
		if err != nil {
			return err
		}
		codes[i] = code
	}

	for i, event := range trace {
		if event.Type == EventCall && positions[event.Code] == 0 {
			positions[event.Code] = i + 1 // 1-indexed for readability
		}
	}

	for i, code := range codes {
		if positions[code] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all commands present: %v", a.Commands),
				Actual:   fmt.Sprintf("missing command: %s", a.Commands[i]),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(codes); i++ {
		prev, curr := codes[i-1], codes[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("commands in order: %v", a.Commands),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					a.Commands[i-1], positions[prev], a.Commands[i], positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the command was called exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	code, err := protocols.ParseCode(a.Command)
	if err != nil {
		return err
	}
	count := 0
	for _, event := range trace {
		if event.Type == EventCall && event.Code == code {
			count++
		}
	}
	return expectCount(AssertTraceCount, fmt.Sprintf("%s calls", a.Command), a.Count, count, trace)
}

func assertErrorCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventAnswer && event.Code.IsError() {
			count++
		}
	}
	return expectCount(AssertErrorCount, "error answers", a.Count, count, trace)
}

func assertPendingCount(trace []TraceEvent, a Assertion) error {
	calls, answers := 0, 0
	for _, event := range trace {
		switch event.Type {
		case EventCall:
			calls++
		case EventAnswer:
			answers++
		}
	}
	return expectCount(AssertPendingCount, "unanswered calls", a.Count, calls-answers, trace)
}

func expectCount(kind, what string, want, got int, trace []TraceEvent) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d %s", want, what),
		Actual:   fmt.Sprintf("%d %s", got, what),
		Trace:    trace,
	}
}

// matchArgs checks that actual contains every expected argument. Expected
// values are converted with the parameter types of def before comparison.
// Extra arguments in actual are ignored.
func matchArgs(actual ir.IRObject, expected map[string]any, def schema.CommandDef) bool {
	for _, name := range slices.Sorted(maps.Keys(expected)) {
		p, ok := def.Param(ir.FieldName(name))
		if !ok {
			return false
		}
		want, err := p.Type.Coerce(expected[name])
		if err != nil {
			return false
		}
		got, ok := actual.Lookup(p.Name)
		if !ok || !ir.Equal(got.Value, want) {
			return false
		}
	}
	return true
}
