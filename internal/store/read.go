package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/usepat/SW-soniccontrol/internal/ir"
)

// Trace is every record journaled under one transaction token.
type Trace struct {
	Token   string         `json:"token"`
	Calls   []CallRecord   `json:"calls"`
	Answers []AnswerRecord `json:"answers"`
}

// LastSeq returns the highest sequence number in the trace, or 0.
func (t Trace) LastSeq() int64 {
	var last int64
	for _, c := range t.Calls {
		last = max(last, c.Seq)
	}
	for _, a := range t.Answers {
		last = max(last, a.Seq)
	}
	return last
}

// AnswerFor returns the answer journaled for the call with id callID.
func (t Trace) AnswerFor(callID string) (AnswerRecord, bool) {
	for _, a := range t.Answers {
		if a.CallID == callID {
			return a, true
		}
	}
	return AnswerRecord{}, false
}

// ReadTrace returns all calls and answers for a token.
// Results are ordered by seq ASC, id ASC COLLATE BINARY.
// Returns empty slices (not nil) if no records exist for the token.
func (s *Store) ReadTrace(ctx context.Context, token string) (Trace, error) {
	calls, err := s.queryCalls(ctx, `
		SELECT id, token, protocol, code, args, seq
		FROM calls
		WHERE token = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, token)
	if err != nil {
		return Trace{}, err
	}

	answers, err := s.queryAnswers(ctx, `
		SELECT a.id, a.call_id, a.code, a.fields, a.seq
		FROM answers a
		JOIN calls c ON a.call_id = c.id
		WHERE c.token = ?
		ORDER BY a.seq ASC, a.id COLLATE BINARY ASC
	`, token)
	if err != nil {
		return Trace{}, err
	}

	return Trace{Token: token, Calls: calls, Answers: answers}, nil
}

// ReadErrors returns every error answer for a token, in order.
func (s *Store) ReadErrors(ctx context.Context, token string) ([]AnswerRecord, error) {
	return s.queryAnswers(ctx, `
		SELECT a.id, a.call_id, a.code, a.fields, a.seq
		FROM answers a
		JOIN calls c ON a.call_id = c.id
		WHERE c.token = ? AND a.code >= ?
		ORDER BY a.seq ASC, a.id COLLATE BINARY ASC
	`, token, int64(ir.ErrorCodeBase))
}

// ReadCall retrieves a single call by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadCall(ctx context.Context, id string) (CallRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, token, protocol, code, args, seq
		FROM calls
		WHERE id = ?
	`, id)
	return scanCall(row)
}

// ReadAnswer retrieves a single answer by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadAnswer(ctx context.Context, id string) (AnswerRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, call_id, code, fields, seq
		FROM answers
		WHERE id = ?
	`, id)
	return scanAnswer(row)
}

// Tokens lists every transaction token in order of its first call.
func (s *Store) Tokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token
		FROM calls
		GROUP BY token
		ORDER BY MIN(seq) ASC, token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	tokens := []string{}
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
	return tokens, nil
}

func (s *Store) queryCalls(ctx context.Context, query string, args ...any) ([]CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := []CallRecord{}
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

func (s *Store) queryAnswers(ctx context.Context, query string, args ...any) ([]AnswerRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	answers := []AnswerRecord{}
	for rows.Next() {
		rec, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return answers, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCall(row scanner) (CallRecord, error) {
	var rec CallRecord
	var code int64
	var args string
	if err := row.Scan(&rec.ID, &rec.Token, &rec.Protocol, &code, &args, &rec.Seq); err != nil {
		if err == sql.ErrNoRows {
			return CallRecord{}, err
		}
		return CallRecord{}, fmt.Errorf("scan call: %w", err)
	}
	obj, err := ir.UnmarshalIRObject([]byte(args), ir.CommandArgsCapacity)
	if err != nil {
		return CallRecord{}, fmt.Errorf("call %s: %w", rec.ID, err)
	}
	rec.Code = ir.CommandCode(code)
	rec.Args = obj
	return rec, nil
}

func scanAnswer(row scanner) (AnswerRecord, error) {
	var rec AnswerRecord
	var code int64
	var fields string
	if err := row.Scan(&rec.ID, &rec.CallID, &code, &fields, &rec.Seq); err != nil {
		if err == sql.ErrNoRows {
			return AnswerRecord{}, err
		}
		return AnswerRecord{}, fmt.Errorf("scan answer: %w", err)
	}
	obj, err := ir.UnmarshalIRObject([]byte(fields), ir.AnswerCapacity)
	if err != nil {
		return AnswerRecord{}, fmt.Errorf("answer %s: %w", rec.ID, err)
	}
	rec.Code = ir.CommandCode(code)
	rec.Fields = obj
	return rec, nil
}
