package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/usepat/SW-soniccontrol/internal/ir"
)

// snapshot renders the parts of a result that golden files pin down: the
// protocol, the token and every journaled event with its IR payload. Step
// outcomes are left out; rejected steps never reach the journal.
func snapshot(name string, r *Result) map[string]any {
	trace := make([]any, len(r.Trace))
	for i, e := range r.Trace {
		trace[i] = eventMap(e)
	}
	return map[string]any{
		"scenario_name": name,
		"protocol":      r.Protocol,
		"token":         r.Token,
		"trace":         trace,
	}
}

func eventMap(e TraceEvent) map[string]any {
	m := map[string]any{
		"type":    e.Type,
		"seq":     e.Seq,
		"code":    e.Code,
		"command": e.Command,
	}
	if e.Args != nil {
		m["args"] = *e.Args
	}
	if e.Fields != nil {
		m["fields"] = *e.Fields
	}
	return m
}

// RunWithGolden runs scenario and compares its trace with
// testdata/golden/<scenario name>.golden. Pass -update to the test binary
// to rewrite the file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace with the golden file
// for name. The snapshot is canonical JSON, so identical runs produce
// identical bytes.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := ir.MarshalCanonical(snapshot(name, result))
	if err != nil {
		return err
	}
	goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	).Assert(t, name, data)
	return nil
}
