package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/usepat/SW-soniccontrol/internal/correspondence"
	"github.com/usepat/SW-soniccontrol/internal/harness"
	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/protocols"
	"github.com/usepat/SW-soniccontrol/internal/session"
	"github.com/usepat/SW-soniccontrol/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Database string // journal accepted calls here when set
	Token    string // transaction token; generated when empty
}

// LineResult is the outcome of checking one command line.
type LineResult struct {
	Line    string       `json:"line"`
	OK      bool         `json:"ok"`
	Code    uint16       `json:"code,omitempty"`
	Command string       `json:"command,omitempty"`
	Args    *ir.IRObject `json:"args,omitempty"`
	Reject  string       `json:"reject,omitempty"`
	Error   string       `json:"error,omitempty"`
	ID      string       `json:"id,omitempty"`
	Seq     int64        `json:"seq,omitempty"`
}

// CheckResult holds the results for all lines.
type CheckResult struct {
	Protocol string       `json:"protocol"`
	Token    string       `json:"token,omitempty"`
	Lines    []LineResult `json:"lines"`
	Rejected int          `json:"rejected"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <device/vX.Y.Z/build> <command-line>...",
		Short: "Parse command lines against a protocol",
		Long: `Parse typed command lines such as "!f=1000000" or "?log_level[global]"
against a protocol descriptor and print the resulting command calls.

With --db, every accepted call is journaled as a pending call of one
transaction.

Exit codes:
  0 - All lines accepted
  1 - One or more lines rejected
  2 - Command error (unknown protocol, journal error, etc.)

Examples:
  sonicproto check mvp_worker/v1.0.0/release '!f=1000000' '?g'
  sonicproto check descale/v2.0.0/debug '?swf' --db ./journal.db --token bench-1`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal accepted calls to this SQLite database")
	cmd.Flags().StringVar(&opts.Token, "token", "", "transaction token for journaled calls (default: generated UUIDv7)")

	return cmd
}

func runCheck(ctx context.Context, opts *CheckOptions, key string, lines []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	_, desc, err := withDescriptor(opts.RootOptions, f, logger, key)
	if err != nil {
		return err
	}

	var tx *session.Transaction
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeJournal, "failed to open database", err)
		}
		defer st.Close()
		sess, err := session.New(ctx, st, desc, session.WithLogger(logger))
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeJournal, "failed to start session", err)
		}
		if opts.Token != "" {
			tx = sess.BeginWithToken(opts.Token)
		} else {
			tx = sess.Begin()
		}
	}

	result := CheckResult{Protocol: desc.Key().String(), Lines: make([]LineResult, 0, len(lines))}
	if tx != nil {
		result.Token = tx.Token()
	}

	for _, line := range lines {
		lr := LineResult{Line: line}
		call, err := correspondence.ParseCommand(desc, line)
		if err == nil && tx != nil {
			var rec store.CallRecord
			rec, err = tx.Send(ctx, call)
			lr.ID, lr.Seq = rec.ID, rec.Seq
		}
		if err != nil {
			kind := harness.RejectKind(err)
			if kind == "" {
				return f.Fail(ExitCommandError, ErrCodeJournal, fmt.Sprintf("failed to journal %q", line), err)
			}
			lr.Reject, lr.Error = kind, err.Error()
			result.Rejected++
		} else {
			args := call.Args()
			lr.OK, lr.Code, lr.Command, lr.Args = true, uint16(call.Code()), protocols.CodeName(call.Code()), &args
		}
		result.Lines = append(result.Lines, lr)
	}

	if f.IsJSON() {
		if result.Rejected > 0 {
			if err := f.Failure(ErrCodeRejected, fmt.Sprintf("%d line(s) rejected", result.Rejected), result); err != nil {
				return err
			}
		} else if err := f.Success(result); err != nil {
			return err
		}
	} else {
		outputCheckText(f, result)
	}

	if result.Rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d line(s) rejected", result.Rejected))
	}
	return nil
}

func outputCheckText(f *OutputFormatter, result CheckResult) {
	w := f.Writer
	if result.Token != "" {
		fmt.Fprintf(w, "token %s\n", result.Token)
	}
	for _, lr := range result.Lines {
		if !lr.OK {
			fmt.Fprintf(w, "✗ %s\n  %s: %s\n", lr.Line, lr.Reject, lr.Error)
			continue
		}
		fmt.Fprintf(w, "✓ %s -> %s(%d) %s\n", lr.Line, lr.Command, lr.Code, formatArgs(*lr.Args))
		if lr.ID != "" {
			fmt.Fprintf(w, "  seq %d id %s\n", lr.Seq, lr.ID)
		}
	}
}

func formatArgs(obj ir.IRObject) string {
	parts := make([]string, 0, obj.Len())
	for name, v := range obj.All() {
		parts = append(parts, fmt.Sprintf("%s: %s", name, ir.FormatValue(v)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
