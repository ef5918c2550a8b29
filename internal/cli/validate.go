package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/engine"
	"github.com/roach88/tally/internal/rules"
)

// ValidationIssue is one problem found in a specs directory.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Slices []string          `json:"slices,omitempty"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [specs-dir]",
		Short: "Validate slice specs",
		Long: `Validate CUE slice specs without writing any output.

Every slice is compiled, all errors are collected, and the combined reducer
is initialized once to catch slices that cannot produce an initial state.

Exit codes:
  0 - All specs valid
  1 - One or more specs are invalid
  2 - Command error (directory not found, no CUE files, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, rootOpts.specsDir(args), cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	result, loadErrors := rules.Load(specsDir, rules.LoadModeCollectAll)
	if result == nil {
		code, message := loadErrorInfo(loadErrors[0])
		return formatter.Fail(ExitCommandError, code, message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, specsDir)

	var issues []ValidationIssue
	for _, err := range loadErrors {
		issues = append(issues, issueFromError(err))
	}

	if len(issues) == 0 {
		if _, err := engine.New(rules.Combine(result.Slices), engine.WithLogger(opts.logger())); err != nil {
			issues = append(issues, ValidationIssue{Code: rules.ErrCodeGeneric, Message: err.Error()})
		}
	}

	names := make([]string, len(result.Slices))
	for i, s := range result.Slices {
		names[i] = s.Name
		formatter.VerboseLog("Validated slice: %s (%d rule(s))", s.Name, len(s.Rules))
	}

	if len(issues) > 0 {
		return outputValidationErrors(formatter, ValidationResult{Valid: false, Slices: names, Errors: issues})
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Slices: names})
	}
	fmt.Fprintf(formatter.Writer, "✓ All specs valid (%d slice(s))\n", len(names))
	return nil
}

// loadErrorInfo extracts a code and message from a loader error.
func loadErrorInfo(err error) (string, string) {
	var loadErr *rules.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return rules.ErrCodeGeneric, err.Error()
}

func issueFromError(err error) ValidationIssue {
	var loadErr *rules.LoadError
	if !errors.As(err, &loadErr) {
		return ValidationIssue{Code: rules.ErrCodeGeneric, Message: err.Error()}
	}
	issue := ValidationIssue{Code: loadErr.Code, Message: loadErr.Message}
	if loadErr.Pos.IsValid() {
		issue.File = loadErr.Pos.Filename()
		issue.Line = loadErr.Pos.Line()
	}
	return issue
}

// outputValidationErrors outputs every issue and returns a failure exit.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))

	if formatter.JSON() {
		first := result.Errors[0]
		if err := formatter.Respond(result, &CLIError{Code: first.Code, Message: first.Message}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range result.Errors {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.File, issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}
	return exitErr
}
