package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/usepat/SW-soniccontrol/internal/correspondence"
	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// TraceState summarizes a transaction for recovery and inspection.
type TraceState struct {
	Trace
	LastSeq      int64
	PendingCount int  // Calls without answers
	ErrorCount   int  // Answers carrying an error code
	IsComplete   bool // True if every call has an answer and at least one call exists
}

// GetTraceState reads the trace for token and analyses its completeness.
func (s *Store) GetTraceState(ctx context.Context, token string) (TraceState, error) {
	trace, err := s.ReadTrace(ctx, token)
	if err != nil {
		return TraceState{}, fmt.Errorf("get trace state: %w", err)
	}

	state := TraceState{Trace: trace, LastSeq: trace.LastSeq()}
	answered := make(map[string]bool, len(trace.Answers))
	for _, a := range trace.Answers {
		answered[a.CallID] = true
		if a.IsError() {
			state.ErrorCount++
		}
	}
	for _, c := range trace.Calls {
		if !answered[c.ID] {
			state.PendingCount++
		}
	}
	state.IsComplete = state.PendingCount == 0 && len(trace.Calls) > 0
	return state, nil
}

// FindIncompleteTraces returns the state of every transaction with at least
// one unanswered call, ordered by token.
func (s *Store) FindIncompleteTraces(ctx context.Context) ([]TraceState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.token
		FROM calls c
		LEFT JOIN answers a ON c.id = a.call_id
		WHERE a.id IS NULL
		ORDER BY c.token COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("find incomplete traces: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}

	states := []TraceState{}
	for _, token := range tokens {
		state, err := s.GetTraceState(ctx, token)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// GetPendingCalls returns the calls of token that have no answer.
// Results ordered by seq ASC, id ASC.
func (s *Store) GetPendingCalls(ctx context.Context, token string) ([]CallRecord, error) {
	calls, err := s.queryCalls(ctx, `
		SELECT c.id, c.token, c.protocol, c.code, c.args, c.seq
		FROM calls c
		LEFT JOIN answers a ON c.id = a.call_id
		WHERE c.token = ? AND a.id IS NULL
		ORDER BY c.seq ASC, c.id COLLATE BINARY ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("get pending calls: %w", err)
	}
	return calls, nil
}

// GetLastSeq returns the highest seq number used in the journal.
// Used to resume the logical clock after reopening.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var last int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			(SELECT COALESCE(MAX(seq), 0) FROM calls),
			(SELECT COALESCE(MAX(seq), 0) FROM answers)
		)
	`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return last, nil
}

// TraceEvent is one record of a trace in replay order.
type TraceEvent struct {
	Type   TraceEventType `json:"type"`
	Seq    int64          `json:"seq"`
	ID     string         `json:"id"`
	Call   *CallRecord    `json:"call,omitempty"`
	Answer *AnswerRecord  `json:"answer,omitempty"`
}

// TraceEventType distinguishes calls from answers.
type TraceEventType int

const (
	EventCall TraceEventType = iota
	EventAnswer
)

// String returns the event type as a string.
func (t TraceEventType) String() string {
	switch t {
	case EventCall:
		return "call"
	case EventAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// MarshalText renders the event type by name.
func (t TraceEventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ReplayTrace returns the records of token merged into one stream ordered by
// seq, with calls before answers at equal seq and ties broken by id.
func (s *Store) ReplayTrace(ctx context.Context, token string) ([]TraceEvent, error) {
	trace, err := s.ReadTrace(ctx, token)
	if err != nil {
		return nil, err
	}

	events := make([]TraceEvent, 0, len(trace.Calls)+len(trace.Answers))
	for i := range trace.Calls {
		c := &trace.Calls[i]
		events = append(events, TraceEvent{Type: EventCall, Seq: c.Seq, ID: c.ID, Call: c})
	}
	for i := range trace.Answers {
		a := &trace.Answers[i]
		events = append(events, TraceEvent{Type: EventAnswer, Seq: a.Seq, ID: a.ID, Answer: a})
	}
	slices.SortFunc(events, compareEvents)
	return events, nil
}

func compareEvents(a, b TraceEvent) int {
	if a.Seq != b.Seq {
		return cmpInt64(a.Seq, b.Seq)
	}
	if a.Type != b.Type {
		return int(a.Type) - int(b.Type)
	}
	return strings.Compare(a.ID, b.ID)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Resolver finds the descriptor a journaled record was validated against.
// *registry.Registry satisfies it.
type Resolver interface {
	LookupBuild(device schema.DeviceType, version ir.Version, build schema.BuildType) (*schema.ProtocolDescriptor, error)
}

// ErrIntegrity reports a journaled record whose content no longer matches
// its id or its protocol.
var ErrIntegrity = errors.New("journal integrity")

// IntegrityError describes one record that failed verification.
type IntegrityError struct {
	RecordID string
	Err      error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("record %s: %v", e.RecordID, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// Is matches ErrIntegrity.
func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// VerifyTrace recomputes every record id of token and revalidates each call
// and answer against the descriptor named by the call's protocol key. All
// failures are collected; a nil result means the trace is intact.
func (s *Store) VerifyTrace(ctx context.Context, token string, resolver Resolver) ([]error, error) {
	trace, err := s.ReadTrace(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("verify trace: %w", err)
	}

	var issues []error
	report := func(id string, err error) {
		issues = append(issues, &IntegrityError{RecordID: id, Err: err})
	}

	calls := make(map[string]CallRecord, len(trace.Calls))
	descs := make(map[string]*schema.ProtocolDescriptor)
	for _, c := range trace.Calls {
		calls[c.ID] = c
		if id, err := ir.CallID(c.Token, c.Protocol, c.Code, c.Args, c.Seq); err != nil {
			report(c.ID, err)
			continue
		} else if id != c.ID {
			report(c.ID, fmt.Errorf("content hashes to %s", id))
			continue
		}

		desc, err := resolveProtocol(resolver, descs, c.Protocol)
		if err != nil {
			report(c.ID, err)
			continue
		}
		if _, err := correspondence.NewCall(desc, c.Code, c.Args.Fields()...); err != nil {
			report(c.ID, err)
		}
	}

	for _, a := range trace.Answers {
		if id, err := ir.AnswerID(a.CallID, a.Code, a.Fields, a.Seq); err != nil {
			report(a.ID, err)
			continue
		} else if id != a.ID {
			report(a.ID, fmt.Errorf("content hashes to %s", id))
			continue
		}

		call := calls[a.CallID]
		if a.Seq <= call.Seq {
			report(a.ID, fmt.Errorf("seq %d does not follow call seq %d", a.Seq, call.Seq))
		}
		if !a.IsError() && a.Code != call.Code {
			report(a.ID, fmt.Errorf("answer code %d does not match call code %d", a.Code, call.Code))
		}
		desc, ok := descs[call.Protocol]
		if !ok {
			// Protocol failure already reported on the call.
			continue
		}
		if _, err := correspondence.NewAnswer(desc, a.Code, a.Fields.Fields()...); err != nil {
			report(a.ID, err)
		}
	}
	return issues, nil
}

func resolveProtocol(resolver Resolver, cache map[string]*schema.ProtocolDescriptor, key string) (*schema.ProtocolDescriptor, error) {
	if desc, ok := cache[key]; ok {
		return desc, nil
	}
	k, err := schema.ParseKey(key)
	if err != nil {
		return nil, err
	}
	desc, err := resolver.LookupBuild(k.Device, k.Version, k.Build)
	if err != nil {
		return nil, err
	}
	cache[key] = desc
	return desc, nil
}
