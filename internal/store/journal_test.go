package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/usepat/SW-soniccontrol/internal/correspondence"
	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/protocols"
	"github.com/usepat/SW-soniccontrol/internal/registry"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

var workerKey = schema.Key{Device: schema.DeviceMVPWorker, Version: ir.V(1, 0, 0), Build: schema.BuildRelease}

func workerDescriptor(t *testing.T) *schema.ProtocolDescriptor {
	t.Helper()
	table, err := protocols.Table(workerKey)
	if err != nil {
		t.Fatalf("Table() failed: %v", err)
	}
	return schema.MustProtocolDescriptor(table)
}

// exchange builds a journaled GET_FREQ call answered with freq.
func exchange(t *testing.T, token string, seq int64, freq uint32) (CallRecord, AnswerRecord) {
	t.Helper()
	desc := workerDescriptor(t)
	call, err := correspondence.NewCall(desc, protocols.GetFreq)
	if err != nil {
		t.Fatalf("NewCall() failed: %v", err)
	}
	answer, err := correspondence.NewAnswer(desc, protocols.GetFreq, ir.F(protocols.FieldFrequency, ir.IRUint32(freq)))
	if err != nil {
		t.Fatalf("NewAnswer() failed: %v", err)
	}
	callRec, err := NewCallRecord(token, workerKey, call, seq)
	if err != nil {
		t.Fatalf("NewCallRecord() failed: %v", err)
	}
	answerRec, err := NewAnswerRecord(callRec.ID, answer, seq+1)
	if err != nil {
		t.Fatalf("NewAnswerRecord() failed: %v", err)
	}
	return callRec, answerRec
}

func TestNewCallRecord_ContentAddressed(t *testing.T) {
	a, _ := exchange(t, "tx-1", 1, 100000)
	b, _ := exchange(t, "tx-1", 1, 100000)
	c, _ := exchange(t, "tx-1", 3, 100000)

	if a.ID != b.ID {
		t.Errorf("identical content gave ids %s and %s", a.ID, b.ID)
	}
	if a.ID == c.ID {
		t.Error("different seq gave the same id")
	}
	if a.Protocol != "mvp_worker/v1.0.0/release" {
		t.Errorf("Protocol = %q", a.Protocol)
	}
}

func TestWriteExchange_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	call, answer := exchange(t, "tx-1", 1, 1000000)
	if err := s.WriteExchange(ctx, call, answer); err != nil {
		t.Fatalf("WriteExchange() failed: %v", err)
	}

	gotCall, err := s.ReadCall(ctx, call.ID)
	if err != nil {
		t.Fatalf("ReadCall() failed: %v", err)
	}
	if gotCall.Code != protocols.GetFreq || gotCall.Token != "tx-1" || gotCall.Seq != 1 {
		t.Errorf("ReadCall() = %+v", gotCall)
	}
	if !gotCall.Args.Equal(call.Args) {
		t.Errorf("Args = %v, want %v", gotCall.Args, call.Args)
	}

	gotAnswer, err := s.ReadAnswer(ctx, answer.ID)
	if err != nil {
		t.Fatalf("ReadAnswer() failed: %v", err)
	}
	freq, err := ir.ValueAs[uint32](gotAnswer.Fields, protocols.FieldFrequency)
	if err != nil {
		t.Fatalf("ValueAs() failed: %v", err)
	}
	if freq != 1000000 {
		t.Errorf("freq = %d, want 1000000", freq)
	}
	if gotAnswer.CallID != call.ID {
		t.Errorf("CallID = %s, want %s", gotAnswer.CallID, call.ID)
	}
}

func TestWriteExchange_RejectsForeignAnswer(t *testing.T) {
	s := createTestStore(t)
	call, _ := exchange(t, "tx-1", 1, 100000)
	_, other := exchange(t, "tx-2", 5, 100000)

	if err := s.WriteExchange(context.Background(), call, other); err == nil {
		t.Error("WriteExchange() with unrelated answer should fail")
	}
}

func TestWrite_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	call, answer := exchange(t, "tx-1", 1, 100000)
	for i := 0; i < 2; i++ {
		if err := s.WriteCall(ctx, call); err != nil {
			t.Fatalf("WriteCall() #%d failed: %v", i, err)
		}
		if err := s.WriteAnswer(ctx, answer); err != nil {
			t.Fatalf("WriteAnswer() #%d failed: %v", i, err)
		}
	}

	trace, err := s.ReadTrace(ctx, "tx-1")
	if err != nil {
		t.Fatalf("ReadTrace() failed: %v", err)
	}
	if len(trace.Calls) != 1 || len(trace.Answers) != 1 {
		t.Errorf("trace has %d calls and %d answers, want 1 and 1", len(trace.Calls), len(trace.Answers))
	}
}

func TestWriteAnswer_RequiresCall(t *testing.T) {
	s := createTestStore(t)
	_, answer := exchange(t, "tx-1", 1, 100000)

	if err := s.WriteAnswer(context.Background(), answer); err == nil {
		t.Error("WriteAnswer() without a journaled call should fail")
	}
}

func TestWriteAnswer_SecondAnswerRejected(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	call, first := exchange(t, "tx-1", 1, 200000)
	if err := s.WriteExchange(ctx, call, first); err != nil {
		t.Fatalf("WriteExchange() failed: %v", err)
	}
	_, second := exchange(t, "tx-1", 1, 300000)
	if second.CallID != call.ID || second.ID == first.ID {
		t.Fatalf("second answer should reply to the same call with a new id")
	}

	err := s.WriteAnswer(ctx, second)
	if !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("WriteAnswer() error = %v, want ErrAlreadyAnswered", err)
	}

	got, ok := mustTrace(t, s, "tx-1").AnswerFor(call.ID)
	if !ok || got.ID != first.ID {
		t.Errorf("AnswerFor() = %s, %v, want %s", got.ID, ok, first.ID)
	}
}

func mustTrace(t *testing.T, s *Store, token string) Trace {
	t.Helper()
	trace, err := s.ReadTrace(context.Background(), token)
	if err != nil {
		t.Fatalf("ReadTrace() failed: %v", err)
	}
	return trace
}

func TestRead_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.ReadCall(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadCall() error = %v, want sql.ErrNoRows", err)
	}
	if _, err := s.ReadAnswer(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadAnswer() error = %v, want sql.ErrNoRows", err)
	}
}

func TestReadTrace_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	trace, err := s.ReadTrace(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ReadTrace() failed: %v", err)
	}
	if trace.Calls == nil || trace.Answers == nil {
		t.Error("empty trace should have empty, non-nil slices")
	}
	if trace.LastSeq() != 0 {
		t.Errorf("LastSeq() = %d, want 0", trace.LastSeq())
	}
}

func TestReadTrace_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Written out of order on purpose.
	for _, seq := range []int64{5, 1, 3} {
		call, answer := exchange(t, "tx-1", seq, 100000+uint32(seq))
		if err := s.WriteExchange(ctx, call, answer); err != nil {
			t.Fatalf("WriteExchange() failed: %v", err)
		}
	}
	call, answer := exchange(t, "tx-other", 2, 100000)
	if err := s.WriteExchange(ctx, call, answer); err != nil {
		t.Fatalf("WriteExchange() failed: %v", err)
	}

	trace, err := s.ReadTrace(ctx, "tx-1")
	if err != nil {
		t.Fatalf("ReadTrace() failed: %v", err)
	}
	if len(trace.Calls) != 3 {
		t.Fatalf("len(Calls) = %d, want 3", len(trace.Calls))
	}
	for i, want := range []int64{1, 3, 5} {
		if trace.Calls[i].Seq != want {
			t.Errorf("Calls[%d].Seq = %d, want %d", i, trace.Calls[i].Seq, want)
		}
	}
	if trace.LastSeq() != 6 {
		t.Errorf("LastSeq() = %d, want 6", trace.LastSeq())
	}
	if _, ok := trace.AnswerFor(trace.Calls[1].ID); !ok {
		t.Error("AnswerFor() did not find the answer of the second call")
	}

	tokens, err := s.Tokens(ctx)
	if err != nil {
		t.Fatalf("Tokens() failed: %v", err)
	}
	if len(tokens) != 2 || tokens[0] != "tx-1" || tokens[1] != "tx-other" {
		t.Errorf("Tokens() = %v, want [tx-1 tx-other]", tokens)
	}

	last, err := s.GetLastSeq(ctx)
	if err != nil {
		t.Fatalf("GetLastSeq() failed: %v", err)
	}
	if last != 6 {
		t.Errorf("GetLastSeq() = %d, want 6", last)
	}
}

func TestReadErrors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	desc := workerDescriptor(t)

	ok, okAnswer := exchange(t, "tx-1", 1, 100000)
	if err := s.WriteExchange(ctx, ok, okAnswer); err != nil {
		t.Fatalf("WriteExchange() failed: %v", err)
	}

	call, err := correspondence.NewCall(desc, protocols.SetGain, ir.F(protocols.FieldGain, ir.IRUint8(50)))
	if err != nil {
		t.Fatalf("NewCall() failed: %v", err)
	}
	failed, err := correspondence.NewAnswer(desc, protocols.ErrInvalidValue, ir.F(protocols.FieldErrorMessage, ir.IRString("gain out of range")))
	if err != nil {
		t.Fatalf("NewAnswer() failed: %v", err)
	}
	callRec, _ := NewCallRecord("tx-1", workerKey, call, 3)
	answerRec, _ := NewAnswerRecord(callRec.ID, failed, 4)
	if err := s.WriteExchange(ctx, callRec, answerRec); err != nil {
		t.Fatalf("WriteExchange() failed: %v", err)
	}

	errs, err := s.ReadErrors(ctx, "tx-1")
	if err != nil {
		t.Fatalf("ReadErrors() failed: %v", err)
	}
	if len(errs) != 1 || errs[0].Code != protocols.ErrInvalidValue || !errs[0].IsError() {
		t.Errorf("ReadErrors() = %+v", errs)
	}
}

func TestGetTraceState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	call, answer := exchange(t, "tx-1", 1, 100000)
	if err := s.WriteExchange(ctx, call, answer); err != nil {
		t.Fatalf("WriteExchange() failed: %v", err)
	}
	pending, _ := exchange(t, "tx-1", 3, 100000)
	if err := s.WriteCall(ctx, pending); err != nil {
		t.Fatalf("WriteCall() failed: %v", err)
	}

	state, err := s.GetTraceState(ctx, "tx-1")
	if err != nil {
		t.Fatalf("GetTraceState() failed: %v", err)
	}
	if state.IsComplete || state.PendingCount != 1 || state.LastSeq != 3 {
		t.Errorf("state = complete %v, pending %d, last %d", state.IsComplete, state.PendingCount, state.LastSeq)
	}

	calls, err := s.GetPendingCalls(ctx, "tx-1")
	if err != nil {
		t.Fatalf("GetPendingCalls() failed: %v", err)
	}
	if len(calls) != 1 || calls[0].ID != pending.ID {
		t.Errorf("GetPendingCalls() = %+v", calls)
	}

	incomplete, err := s.FindIncompleteTraces(ctx)
	if err != nil {
		t.Fatalf("FindIncompleteTraces() failed: %v", err)
	}
	if len(incomplete) != 1 || incomplete[0].Token != "tx-1" {
		t.Errorf("FindIncompleteTraces() = %+v", incomplete)
	}
}

func TestGetTraceState_Empty(t *testing.T) {
	s := createTestStore(t)

	state, err := s.GetTraceState(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetTraceState() failed: %v", err)
	}
	if state.IsComplete {
		t.Error("empty trace should not be complete")
	}
}

func TestReplayTrace_Interleaves(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, seq := range []int64{3, 1} {
		call, answer := exchange(t, "tx-1", seq, 100000)
		if err := s.WriteExchange(ctx, call, answer); err != nil {
			t.Fatalf("WriteExchange() failed: %v", err)
		}
	}

	events, err := s.ReplayTrace(ctx, "tx-1")
	if err != nil {
		t.Fatalf("ReplayTrace() failed: %v", err)
	}
	want := []struct {
		typ TraceEventType
		seq int64
	}{
		{EventCall, 1}, {EventAnswer, 2}, {EventCall, 3}, {EventAnswer, 4},
	}
	if len(events) != len(want) {
		t.Fatalf("len(events) = %d, want %d", len(events), len(want))
	}
	for i, w := range want {
		if events[i].Type != w.typ || events[i].Seq != w.seq {
			t.Errorf("events[%d] = %s@%d, want %s@%d", i, events[i].Type, events[i].Seq, w.typ, w.seq)
		}
	}
	if events[1].Answer.CallID != events[0].ID {
		t.Error("answer does not follow its call")
	}
}

func TestVerifyTrace(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default() failed: %v", err)
	}

	call, answer := exchange(t, "tx-1", 1, 100000)
	if err := s.WriteExchange(ctx, call, answer); err != nil {
		t.Fatalf("WriteExchange() failed: %v", err)
	}

	issues, err := s.VerifyTrace(ctx, "tx-1", reg)
	if err != nil {
		t.Fatalf("VerifyTrace() failed: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("intact trace reported issues: %v", issues)
	}

	// Rewrite the answer behind the journal's back.
	tampered := `[{"name":"freq","type":"uint32","value":200000}]`
	if _, err := s.db.Exec("UPDATE answers SET fields = ? WHERE id = ?", tampered, answer.ID); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	issues, err = s.VerifyTrace(ctx, "tx-1", reg)
	if err != nil {
		t.Fatalf("VerifyTrace() failed: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("len(issues) = %d, want 1: %v", len(issues), issues)
	}
	if !errors.Is(issues[0], ErrIntegrity) {
		t.Errorf("issue %v does not match ErrIntegrity", issues[0])
	}
	var ie *IntegrityError
	if !errors.As(issues[0], &ie) || ie.RecordID != answer.ID {
		t.Errorf("issue does not name answer %s: %v", answer.ID, issues[0])
	}
}

func TestVerifyTrace_StringsKeepTheirBytes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	desc := workerDescriptor(t)
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default() failed: %v", err)
	}

	answers := []struct {
		code  ir.CommandCode
		field ir.FieldName
		value ir.IRString
	}{
		{protocols.GetTransducerID, protocols.FieldTransducerID, "e\u0301"},
		{protocols.ErrInternalDevice, protocols.FieldErrorMessage, "ok \xff"},
	}
	seq := int64(1)
	for _, a := range answers {
		callCode := a.code
		if a.code.IsError() {
			callCode = protocols.GetFreq
		}
		call, err := correspondence.NewCall(desc, callCode)
		if err != nil {
			t.Fatalf("NewCall() failed: %v", err)
		}
		answer, err := correspondence.NewAnswer(desc, a.code, ir.F(a.field, a.value))
		if err != nil {
			t.Fatalf("NewAnswer() failed: %v", err)
		}
		callRec, err := NewCallRecord("tx-1", workerKey, call, seq)
		if err != nil {
			t.Fatalf("NewCallRecord() failed: %v", err)
		}
		answerRec, err := NewAnswerRecord(callRec.ID, answer, seq+1)
		if err != nil {
			t.Fatalf("NewAnswerRecord() failed: %v", err)
		}
		if err := s.WriteExchange(ctx, callRec, answerRec); err != nil {
			t.Fatalf("WriteExchange() failed: %v", err)
		}
		seq += 2
	}

	trace, err := s.ReadTrace(ctx, "tx-1")
	if err != nil {
		t.Fatalf("ReadTrace() failed: %v", err)
	}
	if len(trace.Answers) != len(answers) {
		t.Fatalf("len(Answers) = %d, want %d", len(trace.Answers), len(answers))
	}
	for i, a := range answers {
		f, err := trace.Answers[i].Fields.Field(a.field)
		if err != nil {
			t.Fatalf("Field(%s) failed: %v", a.field, err)
		}
		if f.Value != a.value {
			t.Errorf("%s = %q, want %q", a.field, f.Value, a.value)
		}
	}

	issues, err := s.VerifyTrace(ctx, "tx-1", reg)
	if err != nil {
		t.Fatalf("VerifyTrace() failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("untampered trace reported issues: %v", issues)
	}
}

func TestVerifyTrace_UnknownProtocol(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	call, answer := exchange(t, "tx-1", 1, 100000)
	if err := s.WriteExchange(ctx, call, answer); err != nil {
		t.Fatalf("WriteExchange() failed: %v", err)
	}

	// A registry that only knows the descale tables.
	table, err := protocols.Table(schema.Key{Device: schema.DeviceDescale, Version: ir.V(1, 0, 0), Build: schema.BuildRelease})
	if err != nil {
		t.Fatalf("Table() failed: %v", err)
	}
	reg, err := registry.FromTables([]schema.ProtocolTable{table})
	if err != nil {
		t.Fatalf("FromTables() failed: %v", err)
	}

	issues, err := s.VerifyTrace(ctx, "tx-1", reg)
	if err != nil {
		t.Fatalf("VerifyTrace() failed: %v", err)
	}
	if len(issues) != 1 || !errors.Is(issues[0], registry.ErrProtocolNotFound) {
		t.Errorf("issues = %v, want one protocol-not-found", issues)
	}
}
