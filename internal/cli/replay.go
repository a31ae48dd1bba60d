package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/usepat/SW-soniccontrol/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Token    string // optional - specific transaction only
}

// ReplayTraceResult holds the replay result for a single transaction.
type ReplayTraceResult struct {
	Token      string   `json:"token"`
	Calls      int      `json:"calls"`
	Answers    int      `json:"answers"`
	Pending    int      `json:"pending"`
	IsComplete bool     `json:"is_complete"`
	Intact     bool     `json:"intact"`
	Issues     []string `json:"issues,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Traces      []ReplayTraceResult `json:"traces"`
	TotalTraces int                 `json:"total_traces"`
	AllIntact   bool                `json:"all_intact"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify every record",
		Long: `Replay journaled transactions and verify them.

Every record id is recomputed from its content, every call and answer is
revalidated against the protocol descriptor it was journaled under, and
answers must follow their calls. Use --tables when the journal was written
against tables that are not built in.

Exit codes:
  0 - All transactions intact
  1 - Integrity verification failed
  2 - Command error (database not found, etc.)

Examples:
  sonicproto replay --db ./journal.db
  sonicproto replay --db ./journal.db --token bench-1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Token, "token", "", "replay specific transaction only")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	reg, err := withRegistry(opts.RootOptions, f, newLogger(opts.RootOptions, cmd))
	if err != nil {
		return err
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, "failed to open database", err)
	}
	defer st.Close()

	tokens := []string{opts.Token}
	if opts.Token == "" {
		if tokens, err = st.Tokens(ctx); err != nil {
			return f.Fail(ExitCommandError, ErrCodeJournal, "failed to list transactions", err)
		}
	}

	result := ReplayResult{Traces: make([]ReplayTraceResult, 0, len(tokens)), AllIntact: true}
	for _, token := range tokens {
		f.VerboseLog("Replaying transaction: %s", token)
		tr, err := replayOne(ctx, st, reg, token)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeJournal, fmt.Sprintf("failed to replay %s", token), err)
		}
		result.AllIntact = result.AllIntact && tr.Intact
		result.Traces = append(result.Traces, tr)
	}
	result.TotalTraces = len(result.Traces)

	if f.IsJSON() {
		if !result.AllIntact {
			if err := f.Failure(ErrCodeIntegrity, "journal integrity verification failed", result); err != nil {
				return err
			}
		} else if err := f.Success(result); err != nil {
			return err
		}
	} else {
		outputReplayText(f, result)
	}

	if !result.AllIntact {
		return NewExitError(ExitFailure, "journal integrity verification failed")
	}
	return nil
}

func replayOne(ctx context.Context, st *store.Store, resolver store.Resolver, token string) (ReplayTraceResult, error) {
	state, err := st.GetTraceState(ctx, token)
	if err != nil {
		return ReplayTraceResult{}, err
	}
	issues, err := st.VerifyTrace(ctx, token, resolver)
	if err != nil {
		return ReplayTraceResult{}, err
	}

	tr := ReplayTraceResult{
		Token:      token,
		Calls:      len(state.Calls),
		Answers:    len(state.Answers),
		Pending:    state.PendingCount,
		IsComplete: state.IsComplete,
		Intact:     len(issues) == 0,
	}
	for _, is := range issues {
		tr.Issues = append(tr.Issues, is.Error())
	}
	return tr, nil
}

func outputReplayText(f *OutputFormatter, result ReplayResult) {
	w := f.Writer
	if result.TotalTraces == 0 {
		fmt.Fprintln(w, "No transactions found.")
		return
	}
	for _, tr := range result.Traces {
		mark := "✓"
		if !tr.Intact {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s: %d call(s), %d answer(s), %d pending\n", mark, tr.Token, tr.Calls, tr.Answers, tr.Pending)
		for _, is := range tr.Issues {
			fmt.Fprintf(w, "  %s\n", is)
		}
	}
	if result.AllIntact {
		fmt.Fprintf(w, "\nAll %d transaction(s) intact\n", result.TotalTraces)
	} else {
		fmt.Fprintln(w, "\nJournal integrity verification failed")
	}
}
