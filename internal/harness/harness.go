package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/usepat/SW-soniccontrol/internal/compiler"
	"github.com/usepat/SW-soniccontrol/internal/correspondence"
	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/protocols"
	"github.com/usepat/SW-soniccontrol/internal/registry"
	"github.com/usepat/SW-soniccontrol/internal/schema"
	"github.com/usepat/SW-soniccontrol/internal/session"
	"github.com/usepat/SW-soniccontrol/internal/store"
	"github.com/usepat/SW-soniccontrol/internal/testutil"
)

// Option configures a run.
type Option func(*Harness)

// WithLogger sets the logger. Runs are silent by default; nil keeps them
// silent.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithRegistry resolves scenario protocols in reg instead of the built-in
// registry. A scenario's own tables directory still takes precedence.
func WithRegistry(reg *registry.Registry) Option {
	return func(h *Harness) { h.registry = reg }
}

// Harness executes one scenario against one descriptor.
type Harness struct {
	registry *registry.Registry
	desc     *schema.ProtocolDescriptor
	tx       *session.Transaction
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal with a deterministic clock
// and a fixed transaction token.
//
// Execution flow:
//  1. Resolve the protocol descriptor
//  2. Parse each step's command line and answer against it
//  3. Journal the exchange, or check the expected rejection
//  4. Replay the trace and evaluate assertions
//
// An error is returned only when the scenario cannot be executed at all.
// Failed expectations are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := h.resolve(scenario); err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	sess, err := session.New(ctx, st, h.desc,
		session.WithClock(testutil.NewDeterministicClock()),
		session.WithTokenGenerator(testutil.NewFixedTokenGenerator(scenario.Token)),
		session.WithLogger(h.logger),
	)
	if err != nil {
		return nil, err
	}
	h.tx = sess.Begin()

	result := NewResult(h.desc.Key().String(), h.tx.Token())
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("steps[%d] %q: %w", i, step.Send, err)
		}
	}

	events, err := st.ReplayTrace(ctx, h.tx.Token())
	if err != nil {
		return nil, fmt.Errorf("failed to replay trace: %w", err)
	}
	result.Trace = traceEvents(events)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, h.desc) {
		result.AddError(msg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"protocol", result.Protocol,
		"pass", result.Pass,
		"events", len(result.Trace),
	)
	return result, nil
}

// resolve picks the registry and the scenario's descriptor.
func (h *Harness) resolve(scenario *Scenario) error {
	switch {
	case scenario.Tables != "":
		loaded, errs := compiler.LoadDir(scenario.Tables, compiler.LoadModeCollectAll)
		if len(errs) > 0 {
			return fmt.Errorf("failed to load tables: %w", errs[0])
		}
		tables := make([]schema.ProtocolTable, len(loaded.Tables))
		for i, lt := range loaded.Tables {
			tables[i] = lt.Table
		}
		reg, err := registry.FromTables(tables, registry.WithLogger(h.logger))
		if err != nil {
			return err
		}
		h.registry = reg
	case h.registry == nil:
		reg, err := registry.Default()
		if err != nil {
			return err
		}
		h.registry = reg
	}

	if scenario.Protocol != "" {
		key, err := schema.ParseKey(scenario.Protocol)
		if err != nil {
			return err
		}
		desc, err := h.registry.LookupBuild(key.Device, key.Version, key.Build)
		if err != nil {
			return err
		}
		h.desc = desc
		return nil
	}

	device, err := schema.ParseDeviceType(scenario.Device)
	if err != nil {
		return err
	}
	version, err := ir.ParseVersion(scenario.Version)
	if err != nil {
		return err
	}
	policy, err := registry.ParsePolicy(scenario.Policy)
	if err != nil {
		return err
	}
	desc, err := h.registry.LookupWith(policy, device, version)
	if err != nil {
		return err
	}
	h.desc = desc
	return nil
}

// executeStep runs one step. Rejections are checked against the step's
// expectation; only failures unrelated to the protocol are returned.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	h.logger.Debug("executing step", "index", i, "send", step.Send)

	outcome := OutcomeJournaled
	call, err := correspondence.ParseCommand(h.desc, step.Send)
	if err == nil {
		if step.Answer == nil {
			outcome = OutcomePending
			_, err = h.tx.Send(ctx, call)
		} else {
			var answer correspondence.Answer
			answer, err = h.buildAnswer(call, step.Answer)
			if err == nil {
				_, _, err = h.tx.Exchange(ctx, call, answer)
			}
		}
	}

	sr := StepResult{Send: step.Send, Outcome: outcome}
	if err != nil {
		kind := RejectKind(err)
		if kind == "" {
			return err
		}
		sr.Outcome, sr.Reject, sr.Error = OutcomeRejected, kind, err.Error()
	}
	result.Steps = append(result.Steps, sr)

	switch {
	case step.Reject == "" && sr.Reject != "":
		result.AddError(fmt.Sprintf("steps[%d] %q: unexpected rejection: %s", i, step.Send, sr.Error))
	case step.Reject != "" && sr.Reject == "":
		result.AddError(fmt.Sprintf("steps[%d] %q: expected %s rejection, was %s", i, step.Send, step.Reject, sr.Outcome))
	case step.Reject != sr.Reject:
		result.AddError(fmt.Sprintf("steps[%d] %q: rejected as %s, want %s: %s", i, step.Send, sr.Reject, step.Reject, sr.Error))
	}
	return nil
}

// buildAnswer converts an answer spec into a validated answer. Field values
// are converted with the types the answer definition declares.
func (h *Harness) buildAnswer(call correspondence.CommandCall, spec *AnswerSpec) (correspondence.Answer, error) {
	code := call.Code()
	switch {
	case spec.Error != "":
		c, err := protocols.ParseCode(spec.Error)
		if err != nil {
			return correspondence.Answer{}, err
		}
		if !c.IsError() {
			return correspondence.Answer{}, fmt.Errorf("%s is not an error code", spec.Error)
		}
		code = c
	case spec.Code != "":
		c, err := protocols.ParseCode(spec.Code)
		if err != nil {
			return correspondence.Answer{}, err
		}
		code = c
	}

	def, err := h.desc.Answer(code)
	if err != nil {
		return correspondence.Answer{}, err
	}

	var fields []ir.IRField
	for _, fd := range def.Fields {
		raw, ok := spec.Fields[string(fd.Name)]
		if !ok {
			continue
		}
		v, err := fd.Type.Coerce(raw)
		if err != nil {
			return correspondence.Answer{}, fmt.Errorf("answer field %q: %w", fd.Name, err)
		}
		fields = append(fields, ir.F(fd.Name, v))
	}
	for _, name := range slices.Sorted(maps.Keys(spec.Fields)) {
		if _, ok := def.Field(ir.FieldName(name)); !ok {
			return correspondence.Answer{}, fmt.Errorf("%w: undeclared answer field %q", schema.ErrSchemaMismatch, name)
		}
	}
	return correspondence.BuildAnswer(def, fields...)
}

func traceEvents(events []store.TraceEvent) []TraceEvent {
	out := make([]TraceEvent, len(events))
	for i, e := range events {
		switch e.Type {
		case store.EventCall:
			args := e.Call.Args
			out[i] = TraceEvent{Type: EventCall, Seq: e.Seq, Code: e.Call.Code, Command: protocols.CodeName(e.Call.Code), Args: &args}
		case store.EventAnswer:
			fields := e.Answer.Fields
			out[i] = TraceEvent{Type: EventAnswer, Seq: e.Seq, Code: e.Answer.Code, Command: protocols.CodeName(e.Answer.Code), Fields: &fields}
		}
	}
	return out
}
