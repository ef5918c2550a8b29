package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/rules"
	"github.com/roach88/tally/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationSummary describes a successful compile.
type CompilationSummary struct {
	Slices   int    `json:"slices"`
	Rules    int    `json:"rules"`
	SpecHash string `json:"spec_hash"`
	Output   string `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [specs-dir]",
		Short: "Compile slice specs to canonical JSON",
		Long: `Compile CUE slice specs to a canonical JSON document.

The document holds every slice's initial value and rule expressions, keyed
by slice name, together with the spec hash that sessions are stamped with.
Without --output the document is written to stdout.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, rootOpts.specsDir(args), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	result, loadErrors := rules.Load(specsDir, rules.LoadModeCollectAll)
	if result == nil {
		code, message := loadErrorInfo(loadErrors[0])
		return formatter.Fail(ExitCommandError, code, message, nil)
	}
	if len(loadErrors) > 0 {
		issues := make([]ValidationIssue, len(loadErrors))
		for i, err := range loadErrors {
			issues[i] = issueFromError(err)
		}
		return outputValidationErrors(formatter, ValidationResult{Valid: false, Errors: issues})
	}

	formatter.VerboseLog("Compiled %d slice(s) from %d file(s)", len(result.Slices), result.FileCount)

	specHash, err := rules.SpecHash(result.Slices)
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to hash specs", err)
	}
	document := ir.IRObject{
		"slices":    rules.Document(result.Slices),
		"spec_hash": ir.IRString(specHash),
	}
	data, err := ir.MarshalCanonical(document)
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to encode specs", err)
	}

	summary := CompilationSummary{Slices: len(result.Slices), SpecHash: specHash, Output: opts.Output}
	for _, s := range result.Slices {
		summary.Rules += len(s.Rules)
	}

	if opts.Output == "" {
		if formatter.JSON() {
			return formatter.Success(document)
		}
		fmt.Fprintln(formatter.Writer, string(data))
		return nil
	}

	if err := os.WriteFile(opts.Output, append(data, '\n'), 0o644); err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeWriteFailed, "failed to write output", err)
	}

	if formatter.JSON() {
		return formatter.Success(summary)
	}
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d slice(s), %d rule(s) to %s\n", summary.Slices, summary.Rules, opts.Output)
	fmt.Fprintf(formatter.Writer, "  spec hash: %s\n", specHash)
	return nil
}
