package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tensorgen/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Graphs []string                   `json:"graphs"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate graph specs without generating code",
		Long: `Validate CUE graph specs without generating code.

Checks that every graph compiles and is structurally sound: names and ops
are present, kinds and ranks are valid, and no two distinct names map to
the same identifier. Dataflow (reading a value nothing produces) is only
checked by compile.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadGraphs(specsDir, LoadModeCollectAll)

	// Directory-level failures are command errors
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseLoadError(loadErrors[0])
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	result := ValidationResult{Graphs: []string{}}

	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			field := "load"
			if loadErr.Graph != "" {
				field = compiler.GraphsField + "." + loadErr.Graph
			}
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   field,
				Message: loadErr.Message,
				Code:    loadErr.Code,
			})
		}
	}

	for _, g := range loadResult.Graphs {
		formatter.VerboseLog("Validating graph: %s", g.Name)
		result.Graphs = append(result.Graphs, g.Name)

		for _, verr := range compiler.Validate(g) {
			verr.Field = fmt.Sprintf("%s.%s.%s", compiler.GraphsField, g.Name, verr.Field)
			result.Errors = append(result.Errors, verr)
		}
	}

	result.Valid = len(result.Errors) == 0
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ All specs valid (%d graph(s))\n", len(result.Graphs))
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := make([]CLIError, len(result.Errors))
	for i, e := range result.Errors {
		errs[i] = CLIError{Code: e.Code, Message: fmt.Sprintf("%s: %s", e.Field, e.Message)}
	}
	if err := formatter.Errors("Validation failed", errs); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// parseLoadError extracts error code and message from an error.
func parseLoadError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}
