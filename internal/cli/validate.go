package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/usepat/SW-soniccontrol/internal/compiler"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// ValidationIssue is one problem found in a tables directory.
type ValidationIssue struct {
	Table   string `json:"table,omitempty"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Tables int               `json:"tables"`
	Files  int               `json:"files"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// IssueLabelMismatch reports a table whose CUE label differs from its key.
const IssueLabelMismatch = "E102"

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <tables-dir>",
		Short: "Validate a directory of CUE protocol tables",
		Long: `Validate CUE protocol tables without loading them into a registry.

Every table is compiled and checked, and all issues are reported together:
duplicate codes and aliases, commands without answers, parameters without a
valid type, and labels that do not match the table's key.

Exit codes:
  0 - All tables valid
  1 - One or more issues found
  2 - Command error (directory not found, CUE does not build, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	result, issues, err := ValidateTablesDir(dir)
	if err != nil {
		return f.Fail(ExitCommandError, loadErrorCode(err), fmt.Sprintf("failed to load %s", dir), err)
	}
	f.VerboseLog("Found %d CUE file(s) and %d table(s) in %s", result.Files, result.Tables, dir)

	if len(issues) == 0 {
		if f.IsJSON() {
			return f.Success(result)
		}
		fmt.Fprintf(f.Writer, "✓ %d table(s) valid\n", result.Tables)
		return nil
	}

	if f.IsJSON() {
		if err := f.Failure(issues[0].Code, issues[0].Message, result); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(f.Writer, "✗ Validation failed")
		fmt.Fprintln(f.Writer)
		for _, is := range issues {
			if is.Table != "" {
				fmt.Fprintf(f.Writer, "%s\n", is.Table)
			}
			if is.Field != "" {
				fmt.Fprintf(f.Writer, "  %s %s: %s\n\n", is.Code, is.Field, is.Message)
			} else {
				fmt.Fprintf(f.Writer, "  %s: %s\n\n", is.Code, is.Message)
			}
		}
	}
	// Validation failures = exit code 1 (check failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
}

// ValidateTablesDir compiles and checks every table in dir. The error is
// set only when the directory cannot be loaded at all.
func ValidateTablesDir(dir string) (ValidationResult, []ValidationIssue, error) {
	loaded, errs := compiler.LoadDir(dir, compiler.LoadModeCollectAll)
	if loaded == nil {
		return ValidationResult{}, nil, errors.Join(errs...)
	}

	var issues []ValidationIssue
	for _, err := range errs {
		issue := ValidationIssue{Code: ErrCodeGeneric, Message: err.Error()}
		var le *compiler.LoadError
		if errors.As(err, &le) {
			issue = ValidationIssue{Table: le.Table, Code: le.Code, Message: le.Message}
		}
		issues = append(issues, issue)
	}

	seen := make(map[schema.Key]string)
	for _, lt := range loaded.Tables {
		key := lt.Table.Key()
		if key.String() != lt.Label {
			issues = append(issues, ValidationIssue{
				Table:   lt.Label,
				Code:    IssueLabelMismatch,
				Message: fmt.Sprintf("label does not match table key %s", key),
			})
		}
		if prev, dup := seen[key]; dup {
			issues = append(issues, ValidationIssue{
				Table:   lt.Label,
				Code:    IssueLabelMismatch,
				Message: fmt.Sprintf("key %s already declared by %s", key, prev),
			})
		}
		seen[key] = lt.Label
		for _, is := range schema.CheckTable(lt.Table) {
			issues = append(issues, ValidationIssue{Table: lt.Label, Code: is.Code, Field: is.Field, Message: is.Message})
		}
	}

	result := ValidationResult{
		Valid:  len(issues) == 0,
		Tables: len(loaded.Tables),
		Files:  loaded.FileCount,
		Issues: issues,
	}
	return result, issues, nil
}
