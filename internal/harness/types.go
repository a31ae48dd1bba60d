package harness

import (
	"github.com/usepat/SW-soniccontrol/internal/ir"
)

// Trace event types.
const (
	EventCall   = "call"
	EventAnswer = "answer"
)

// TraceEvent is one journaled record in replay order.
type TraceEvent struct {
	Type    string         `json:"type"` // "call" or "answer"
	Seq     int64          `json:"seq"`
	Code    ir.CommandCode `json:"code"`
	Command string         `json:"command"`
	Args    *ir.IRObject   `json:"args,omitempty"`
	Fields  *ir.IRObject   `json:"fields,omitempty"`
}

// Step outcomes.
const (
	OutcomeJournaled = "journaled"
	OutcomePending   = "pending"
	OutcomeRejected  = "rejected"
)

// StepResult records what happened to one scenario step.
type StepResult struct {
	Send    string `json:"send"`
	Outcome string `json:"outcome"`
	Reject  string `json:"reject,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every assertion held.
	Pass bool `json:"pass"`

	// Protocol is the key of the descriptor the scenario ran against.
	Protocol string `json:"protocol"`

	// Token is the transaction token all records share.
	Token string `json:"token"`

	// Steps has one entry per scenario step.
	Steps []StepResult `json:"steps"`

	// Trace holds the journaled calls and answers in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult(protocol, token string) *Result {
	return &Result{
		Pass:     true,
		Protocol: protocol,
		Token:    token,
		Steps:    []StepResult{},
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
