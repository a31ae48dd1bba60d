// Package session journals the command calls issued to one connected device
// and the answers it returns.
//
// A Session is bound to the protocol descriptor resolved for the device.
// Every call and answer is revalidated against that descriptor before it is
// written, stamped with a sequence number from the session clock and grouped
// under the token of its Transaction.
//
// Sequence numbers never come from wall time. A session opened on an
// existing journal resumes numbering after the highest seq already stored.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/usepat/SW-soniccontrol/internal/correspondence"
	"github.com/usepat/SW-soniccontrol/internal/schema"
	"github.com/usepat/SW-soniccontrol/internal/store"
)

// DefaultMaxCalls bounds the number of calls one transaction may issue.
const DefaultMaxCalls = 1000

// Session journals transactions against one protocol descriptor.
// It is safe for concurrent use; each Transaction is not.
type Session struct {
	store    *store.Store
	desc     *schema.ProtocolDescriptor
	clock    Sequencer
	tokens   TokenGenerator
	maxCalls int
	logger   *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the clock resumed from the journal.
func WithClock(c Sequencer) Option {
	return func(s *Session) { s.clock = c }
}

// WithTokenGenerator replaces the UUIDv7 token generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Session) { s.tokens = g }
}

// WithMaxCalls sets the per-transaction call quota.
func WithMaxCalls(n int) Option {
	return func(s *Session) { s.maxCalls = n }
}

// WithLogger sets the logger. Sessions are silent by default; a nil logger
// keeps them silent.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New opens a session on st for the device described by desc.
func New(ctx context.Context, st *store.Store, desc *schema.ProtocolDescriptor, opts ...Option) (*Session, error) {
	s := &Session{
		store:    st,
		desc:     desc,
		tokens:   UUIDv7Generator{},
		maxCalls: DefaultMaxCalls,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.clock == nil {
		last, err := st.GetLastSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("open session: %w", err)
		}
		s.clock = NewClockAt(last)
	}

	s.logger.Debug("session opened",
		"protocol", desc.Key(),
		"seq", s.clock.Current(),
	)
	return s, nil
}

// Descriptor returns the protocol the session validates against.
func (s *Session) Descriptor() *schema.ProtocolDescriptor { return s.desc }

// Begin starts a transaction under a fresh token.
func (s *Session) Begin() *Transaction {
	return s.BeginWithToken(s.tokens.Generate())
}

// BeginWithToken starts a transaction under a caller-chosen token, for
// example to resume one found by store.FindIncompleteTraces. Calls and
// answers already journaled under token count against the quota and
// cannot be answered again.
func (s *Session) BeginWithToken(token string) *Transaction {
	return &Transaction{session: s, token: token, answered: make(map[string]bool)}
}

// Transaction groups the calls of one logical device interaction.
type Transaction struct {
	session  *Session
	token    string
	mu       sync.Mutex
	loaded   bool
	calls    int
	answered map[string]bool
}

// load seeds the call count and answered set from the journal the first
// time the transaction is used.
func (t *Transaction) load(ctx context.Context) error {
	if t.loaded {
		return nil
	}
	trace, err := t.session.store.ReadTrace(ctx, t.token)
	if err != nil {
		return fmt.Errorf("resume transaction %s: %w", t.token, err)
	}
	t.calls = len(trace.Calls)
	for _, a := range trace.Answers {
		t.answered[a.CallID] = true
	}
	t.loaded = true
	if t.calls > 0 {
		t.session.logger.Debug("transaction resumed",
			"token", t.token,
			"calls", t.calls,
			"answers", len(trace.Answers),
		)
	}
	return nil
}

// Token returns the transaction token.
func (t *Transaction) Token() string { return t.token }

// Send journals call without an answer. The returned record is passed to
// Receive once the device replies.
func (t *Transaction) Send(ctx context.Context, call correspondence.CommandCall) (store.CallRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.load(ctx); err != nil {
		return store.CallRecord{}, err
	}
	rec, err := t.stampCall(call)
	if err != nil {
		return store.CallRecord{}, err
	}
	if err := t.session.store.WriteCall(ctx, rec); err != nil {
		return store.CallRecord{}, err
	}
	t.calls++
	t.session.logger.Info("call written",
		"id", rec.ID,
		"code", rec.Code,
		"token", t.token,
		"seq", rec.Seq,
	)
	return rec, nil
}

// Receive journals answer as the reply to call.
func (t *Transaction) Receive(ctx context.Context, call store.CallRecord, answer correspondence.Answer) (store.AnswerRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.load(ctx); err != nil {
		return store.AnswerRecord{}, err
	}
	rec, err := t.stampAnswer(call, answer)
	if err != nil {
		return store.AnswerRecord{}, err
	}
	if err := t.session.store.WriteAnswer(ctx, rec); err != nil {
		if errors.Is(err, store.ErrAlreadyAnswered) {
			t.answered[call.ID] = true
			return store.AnswerRecord{}, t.alreadyAnswered(call.ID)
		}
		return store.AnswerRecord{}, err
	}
	t.answered[call.ID] = true
	t.logAnswer(rec)
	return rec, nil
}

// Exchange journals a call and its answer atomically.
func (t *Transaction) Exchange(ctx context.Context, call correspondence.CommandCall, answer correspondence.Answer) (store.CallRecord, store.AnswerRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.load(ctx); err != nil {
		return store.CallRecord{}, store.AnswerRecord{}, err
	}
	callRec, err := t.stampCall(call)
	if err != nil {
		return store.CallRecord{}, store.AnswerRecord{}, err
	}
	answerRec, err := t.stampAnswer(callRec, answer)
	if err != nil {
		return store.CallRecord{}, store.AnswerRecord{}, err
	}
	if err := t.session.store.WriteExchange(ctx, callRec, answerRec); err != nil {
		return store.CallRecord{}, store.AnswerRecord{}, err
	}
	t.calls++
	t.answered[callRec.ID] = true
	t.session.logger.Info("call written",
		"id", callRec.ID,
		"code", callRec.Code,
		"token", t.token,
		"seq", callRec.Seq,
	)
	t.logAnswer(answerRec)
	return callRec, answerRec, nil
}

func (t *Transaction) stampCall(call correspondence.CommandCall) (store.CallRecord, error) {
	s := t.session
	if t.calls >= s.maxCalls {
		return store.CallRecord{}, &Error{
			Code:    ErrCodeQuotaExceeded,
			Message: fmt.Sprintf("transaction exceeded %d calls", s.maxCalls),
			Token:   t.token,
		}
	}
	// Revalidate: the call may have been built against another descriptor.
	if _, err := correspondence.NewCall(s.desc, call.Code(), call.Args().Fields()...); err != nil {
		return store.CallRecord{}, err
	}
	return store.NewCallRecord(t.token, s.desc.Key(), call, s.clock.Next())
}

func (t *Transaction) stampAnswer(call store.CallRecord, answer correspondence.Answer) (store.AnswerRecord, error) {
	s := t.session
	if call.Token != t.token {
		return store.AnswerRecord{}, &Error{
			Code:    ErrCodeMismatchedAnswer,
			Message: fmt.Sprintf("call %s belongs to transaction %s", call.ID, call.Token),
			Token:   t.token,
		}
	}
	if t.answered[call.ID] {
		return store.AnswerRecord{}, t.alreadyAnswered(call.ID)
	}
	if !answer.IsError() && answer.Code() != call.Code {
		return store.AnswerRecord{}, &Error{
			Code:    ErrCodeMismatchedAnswer,
			Message: fmt.Sprintf("answer %d does not reply to call %d", answer.Code(), call.Code),
			Token:   t.token,
		}
	}
	if err := correspondence.CheckAnswer(s.desc, answer); err != nil {
		return store.AnswerRecord{}, err
	}
	return store.NewAnswerRecord(call.ID, answer, s.clock.Next())
}

func (t *Transaction) alreadyAnswered(callID string) *Error {
	return &Error{
		Code:    ErrCodeAnswered,
		Message: fmt.Sprintf("call %s already answered", callID),
		Token:   t.token,
	}
}

func (t *Transaction) logAnswer(rec store.AnswerRecord) {
	level := slog.LevelInfo
	if rec.IsError() {
		level = slog.LevelWarn
	}
	t.session.logger.Log(context.Background(), level, "answer written",
		"id", rec.ID,
		"call_id", rec.CallID,
		"code", rec.Code,
		"token", t.token,
		"seq", rec.Seq,
	)
}
