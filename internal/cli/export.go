package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/usepat/SW-soniccontrol/internal/compiler"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output  string // output file; stdout when empty
	Package string // CUE package name
}

// ExportResult is the JSON output of the export command.
type ExportResult struct {
	Output string   `json:"output"`
	Tables []string `json:"tables"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export [device/vX.Y.Z/build...]",
		Short: "Export protocol tables as CUE",
		Long: `Export materialized protocol tables as a CUE file that --tables and
validate read back unchanged. Without arguments every table in the registry
is exported.

Examples:
  sonicproto export -o tables/builtin.cue
  sonicproto export descale/v2.0.0/release --package devices`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&opts.Package, "package", "tables", "CUE package name")

	return cmd
}

func runExport(opts *ExportOptions, keys []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	reg, err := withRegistry(opts.RootOptions, f, newLogger(opts.RootOptions, cmd))
	if err != nil {
		return err
	}

	descs := reg.Descriptors()
	if len(keys) > 0 {
		descs = make([]*schema.ProtocolDescriptor, 0, len(keys))
		for _, key := range keys {
			d, err := lookupKey(reg, key)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeProtocolNotFound, fmt.Sprintf("no protocol %q", key), err)
			}
			descs = append(descs, d)
		}
	}

	tables := make([]schema.ProtocolTable, len(descs))
	labels := make([]string, len(descs))
	for i, d := range descs {
		tables[i] = d.Table()
		labels[i] = d.Key().String()
	}
	src, err := compiler.ExportTables(opts.Package, tables...)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to export tables", err)
	}

	if opts.Output == "" {
		_, err := cmd.OutOrStdout().Write(src)
		return err
	}
	if err := os.WriteFile(opts.Output, src, 0o644); err != nil {
		return f.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("failed to write %s", opts.Output), err)
	}
	f.VerboseLog("Wrote %d table(s) to %s", len(tables), opts.Output)
	if f.IsJSON() {
		return f.Success(ExportResult{Output: opts.Output, Tables: labels})
	}
	fmt.Fprintf(f.Writer, "✓ Exported %d table(s) to %s\n", len(tables), opts.Output)
	return nil
}
