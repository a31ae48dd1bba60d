package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/protocols"
	"github.com/usepat/SW-soniccontrol/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Token    string
	Command  string // optional - filter to one command code or name
}

// TraceEvent represents a single event in the trace timeline.
type TraceEvent struct {
	Seq     int64        `json:"seq"`
	Type    string       `json:"type"` // "call" or "answer"
	ID      string       `json:"id"`
	CallID  string       `json:"call_id,omitempty"`
	Code    uint16       `json:"code"`
	Command string       `json:"command"`
	Args    *ir.IRObject `json:"args,omitempty"`
	Fields  *ir.IRObject `json:"fields,omitempty"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int  `json:"total_events"`
	Calls       int  `json:"calls"`
	Answers     int  `json:"answers"`
	Pending     int  `json:"pending"`
	Errors      int  `json:"errors"`
	IsComplete  bool `json:"is_complete"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Token    string       `json:"token"`
	Protocol string       `json:"protocol,omitempty"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TokenSummary is one row of the transaction listing.
type TokenSummary struct {
	Token      string `json:"token"`
	Protocol   string `json:"protocol"`
	Calls      int    `json:"calls"`
	Pending    int    `json:"pending"`
	Errors     int    `json:"errors"`
	IsComplete bool   `json:"is_complete"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled transactions",
		Long: `Show the command calls and answers journaled for a transaction.

Without --token, lists every transaction in the journal with its call,
pending and error counts.

Examples:
  sonicproto trace --db ./journal.db
  sonicproto trace --db ./journal.db --token bench-1
  sonicproto trace --db ./journal.db --token bench-1 --command SET_FREQ --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Token, "token", "", "transaction token to show")
	cmd.Flags().StringVar(&opts.Command, "command", "", "filter to one command (name or code)")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openJournal(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, "failed to open database", err)
	}
	defer st.Close()

	if opts.Token == "" {
		return listTokens(ctx, st, f)
	}

	var filter *ir.CommandCode
	if opts.Command != "" {
		code, err := protocols.ParseCode(opts.Command)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid --command", err)
		}
		filter = &code
	}

	state, err := st.GetTraceState(ctx, opts.Token)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, "failed to get trace state", err)
	}
	events, err := st.ReplayTrace(ctx, opts.Token)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, "failed to replay trace", err)
	}

	result := TraceResult{
		Token:    opts.Token,
		Timeline: buildTimeline(events, filter),
		Stats: TraceStats{
			Calls:      len(state.Calls),
			Answers:    len(state.Answers),
			Pending:    state.PendingCount,
			Errors:     state.ErrorCount,
			IsComplete: state.IsComplete,
		},
	}
	result.Stats.TotalEvents = len(result.Timeline)
	if len(state.Calls) > 0 {
		result.Protocol = state.Calls[0].Protocol
	}

	if f.IsJSON() {
		return f.Success(result)
	}
	outputTraceText(f, result)
	return nil
}

// openJournal opens an existing journal. store.Open would create a missing
// database, which is never what an inspection command wants.
func openJournal(path string) (*store.Store, error) {
	if err := requireFile(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}

func listTokens(ctx context.Context, st *store.Store, f *OutputFormatter) error {
	tokens, err := st.Tokens(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, "failed to list transactions", err)
	}

	rows := make([]TokenSummary, 0, len(tokens))
	for _, token := range tokens {
		state, err := st.GetTraceState(ctx, token)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeJournal, "failed to get trace state", err)
		}
		row := TokenSummary{
			Token:      token,
			Calls:      len(state.Calls),
			Pending:    state.PendingCount,
			Errors:     state.ErrorCount,
			IsComplete: state.IsComplete,
		}
		if len(state.Calls) > 0 {
			row.Protocol = state.Calls[0].Protocol
		}
		rows = append(rows, row)
	}

	if f.IsJSON() {
		return f.Success(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(f.Writer, "No transactions found.")
		return nil
	}
	for _, r := range rows {
		status := "complete"
		if !r.IsComplete {
			status = fmt.Sprintf("%d pending", r.Pending)
		}
		fmt.Fprintf(f.Writer, "%s  %s  %d call(s), %d error(s), %s\n", r.Token, r.Protocol, r.Calls, r.Errors, status)
	}
	return nil
}

// buildTimeline converts store events to trace timeline events.
// When filter is set, only calls with that code and their answers are kept.
func buildTimeline(events []store.TraceEvent, filter *ir.CommandCode) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(events))
	matched := make(map[string]bool)

	for _, event := range events {
		switch event.Type {
		case store.EventCall:
			c := event.Call
			if filter != nil && c.Code != *filter {
				continue
			}
			matched[c.ID] = true
			args := c.Args
			timeline = append(timeline, TraceEvent{
				Seq:     event.Seq,
				Type:    event.Type.String(),
				ID:      c.ID,
				Code:    uint16(c.Code),
				Command: protocols.CodeName(c.Code),
				Args:    &args,
			})
		case store.EventAnswer:
			a := event.Answer
			if filter != nil && !matched[a.CallID] {
				continue
			}
			fields := a.Fields
			timeline = append(timeline, TraceEvent{
				Seq:     event.Seq,
				Type:    event.Type.String(),
				ID:      a.ID,
				CallID:  a.CallID,
				Code:    uint16(a.Code),
				Command: protocols.CodeName(a.Code),
				Fields:  &fields,
			})
		}
	}
	return timeline
}

func outputTraceText(f *OutputFormatter, result TraceResult) {
	w := f.Writer
	fmt.Fprintf(w, "Transaction: %s\n", result.Token)
	if result.Protocol != "" {
		fmt.Fprintf(w, "Protocol: %s\n", result.Protocol)
	}
	fmt.Fprintln(w)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No events found.")
	}
	for _, e := range result.Timeline {
		obj, arrow := e.Args, "->"
		if e.Type == store.EventAnswer.String() {
			obj, arrow = e.Fields, "<-"
		}
		fmt.Fprintf(w, "[%d] %s %s %s\n", e.Seq, arrow, e.Command, formatArgs(*obj))
		if f.Verbose {
			fmt.Fprintf(w, "      id %s\n", e.ID)
		}
	}

	s := result.Stats
	fmt.Fprintf(w, "\n%d call(s), %d answer(s), %d pending, %d error(s)\n", s.Calls, s.Answers, s.Pending, s.Errors)
}
