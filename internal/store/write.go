package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/usepat/SW-soniccontrol/internal/correspondence"
	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// CallRecord is a journaled command call.
type CallRecord struct {
	ID       string         `json:"id"`
	Token    string         `json:"token"`
	Protocol string         `json:"protocol"`
	Code     ir.CommandCode `json:"code"`
	Args     ir.IRObject    `json:"args"`
	Seq      int64          `json:"seq"`
}

// AnswerRecord is a journaled answer, linked to the call it replies to.
type AnswerRecord struct {
	ID     string         `json:"id"`
	CallID string         `json:"call_id"`
	Code   ir.CommandCode `json:"code"`
	Fields ir.IRObject    `json:"fields"`
	Seq    int64          `json:"seq"`
}

// ErrAlreadyAnswered is returned when a call already has a different answer
// in the journal.
var ErrAlreadyAnswered = errors.New("call already answered")

// IsError reports whether the answer carries an error code.
func (a AnswerRecord) IsError() bool { return a.Code.IsError() }

// NewCallRecord stamps call with its transaction token, protocol key and
// sequence number and computes its content-addressed id.
func NewCallRecord(token string, key schema.Key, call correspondence.CommandCall, seq int64) (CallRecord, error) {
	rec := CallRecord{
		Token:    token,
		Protocol: key.String(),
		Code:     call.Code(),
		Args:     call.Args(),
		Seq:      seq,
	}
	id, err := ir.CallID(rec.Token, rec.Protocol, rec.Code, rec.Args, rec.Seq)
	if err != nil {
		return CallRecord{}, err
	}
	rec.ID = id
	return rec, nil
}

// NewAnswerRecord links answer to the call with id callID and computes its
// content-addressed id.
func NewAnswerRecord(callID string, answer correspondence.Answer, seq int64) (AnswerRecord, error) {
	rec := AnswerRecord{
		CallID: callID,
		Code:   answer.Code(),
		Fields: answer.Fields(),
		Seq:    seq,
	}
	id, err := ir.AnswerID(rec.CallID, rec.Code, rec.Fields, rec.Seq)
	if err != nil {
		return AnswerRecord{}, err
	}
	rec.ID = id
	return rec, nil
}

// WriteCall inserts a call record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteCall(ctx context.Context, rec CallRecord) error {
	if err := writeCall(ctx, s.db, rec); err != nil {
		return fmt.Errorf("write call: %w", err)
	}
	return nil
}

// WriteAnswer inserts an answer record. The call it references must already
// be journaled (foreign key constraint). Rewriting the same record is a no-op;
// a different answer for an answered call fails with ErrAlreadyAnswered.
func (s *Store) WriteAnswer(ctx context.Context, rec AnswerRecord) error {
	if err := writeAnswer(ctx, s.db, rec); err != nil {
		return fmt.Errorf("write answer: %w", err)
	}
	return nil
}

// WriteExchange journals a call and its answer in one transaction.
func (s *Store) WriteExchange(ctx context.Context, call CallRecord, answer AnswerRecord) error {
	if answer.CallID != call.ID {
		return fmt.Errorf("write exchange: answer %s references call %s, not %s", answer.ID, answer.CallID, call.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write exchange: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := writeCall(ctx, tx, call); err != nil {
		return fmt.Errorf("write exchange: %w", err)
	}
	if err := writeAnswer(ctx, tx, answer); err != nil {
		return fmt.Errorf("write exchange: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write exchange: commit: %w", err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func writeCall(ctx context.Context, db execer, rec CallRecord) error {
	args, err := ir.MarshalCanonical(rec.Args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO calls (id, token, protocol, code, args, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.Token, rec.Protocol, int64(rec.Code), string(args), rec.Seq)
	return err
}

func writeAnswer(ctx context.Context, db execer, rec AnswerRecord) error {
	fields, err := ir.MarshalCanonical(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO answers (id, call_id, code, fields, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, rec.ID, rec.CallID, int64(rec.Code), string(fields), rec.Seq)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var existing string
	err = db.QueryRowContext(ctx, `SELECT id FROM answers WHERE call_id = ?`, rec.CallID).Scan(&existing)
	if err != nil {
		return fmt.Errorf("look up answer for call %s: %w", rec.CallID, err)
	}
	if existing != rec.ID {
		return fmt.Errorf("%w: call %s has answer %s", ErrAlreadyAnswered, rec.CallID, existing)
	}
	return nil
}
