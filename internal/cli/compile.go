package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/roach88/tensorgen/internal/blobs"
	"github.com/roach88/tensorgen/internal/codegen"
	"github.com/roach88/tensorgen/internal/compiler"
	"github.com/roach88/tensorgen/internal/ir"
	"github.com/roach88/tensorgen/internal/scope"
	"github.com/roach88/tensorgen/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Graph    string // only generate this graph
	Output   string // output path or gs:// URL
	Database string // trace store path
	Function string // generated function name
}

// GraphOutput is the per-graph payload of a compile run.
type GraphOutput struct {
	Graph     string        `json:"graph"`
	RunID     string        `json:"run_id"`
	GraphHash string        `json:"graph_hash"`
	Stats     codegen.Stats `json:"stats"`
	Source    string        `json:"source,omitempty"`
}

// CompilationResult holds everything a compile run produced.
type CompilationResult struct {
	Graphs   []GraphOutput `json:"graphs"`
	Failures []CLIError    `json:"failures,omitempty"`
	Output   string        `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Generate forward functions from CUE graph specs",
		Long: `Generate a forward function for each graph in a CUE spec directory.

Without --output the generated source is written to stdout. --output takes
a local path or a gs://bucket/object URL. With --db (or ` + DatabaseEnv + `)
each run and its duplicate/move decisions are recorded in the trace store.`,
		Example: `  tensorgen compile ./specs
  tensorgen compile ./specs --graph MLP -o model.rs
  tensorgen compile ./specs -o gs://models/mlp/forward.rs --db trace.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Graph, "graph", "", "only generate the named graph")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path or gs:// URL")
	cmd.Flags().StringVar(&opts.Database, "db", defaultDatabase(), "trace store path (default $"+DatabaseEnv+")")
	cmd.Flags().StringVar(&opts.Function, "function", "forward", "name of the generated function")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := klog.FromContext(ctx)
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadGraphs(specsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseLoadError(loadErrors[0])
		return outputCompileError(formatter, ExitCommandError, code, message)
	}
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	graphs := loadResult.Graphs
	if opts.Graph != "" {
		g, ok := compiler.FindGraph(graphs, opts.Graph)
		if !ok {
			return outputCompileError(formatter, ExitCommandError, ErrCodeNoSuchGraph,
				fmt.Sprintf("graph %q not found in %s", opts.Graph, specsDir))
		}
		graphs = []*ir.Graph{g}
	}

	var st *store.Store
	if opts.Database != "" {
		var err error
		st, err = store.Open(opts.Database)
		if err != nil {
			return outputCompileError(formatter, ExitCommandError, ErrCodeDatabase, fmt.Sprintf("opening trace store: %v", err))
		}
		defer st.Close()
	}

	ids := codegen.UUIDv7Generator{}
	result := CompilationResult{Graphs: []GraphOutput{}, Output: opts.Output}
	var sources []string

	// A failing graph is recorded and reported; the remaining graphs still
	// compile.
	for _, g := range graphs {
		formatter.VerboseLog("Generating graph: %s", g.Name)
		runID := ids.Generate()

		if verrs := compiler.Validate(g); len(verrs) > 0 {
			failures := validationFailures(g, verrs)
			result.Failures = append(result.Failures, failures...)
			if err := recordRun(ctx, st, runID, g, nil, failures); err != nil {
				return outputCompileError(formatter, ExitCommandError, ErrCodeDatabase, err.Error())
			}
			log.V(1).Info("graph failed validation", "graph", g.Name, "run", runID, "errors", len(verrs))
			continue
		}

		gen, genErr := codegen.Generate(ctx, g, codegen.Options{
			FunctionName: opts.Function,
			IDs:          codegen.NewFixedGenerator(runID),
		})
		if genErr != nil {
			failure := generationFailure(genErr)
			result.Failures = append(result.Failures, failure)
			if err := recordRun(ctx, st, runID, g, nil, []CLIError{failure}); err != nil {
				return outputCompileError(formatter, ExitCommandError, ErrCodeDatabase, err.Error())
			}
			log.V(1).Info("graph failed generation", "graph", g.Name, "run", runID, "code", failure.Code)
			continue
		}

		if err := recordRun(ctx, st, runID, g, gen, nil); err != nil {
			return outputCompileError(formatter, ExitCommandError, ErrCodeDatabase, err.Error())
		}

		out := GraphOutput{
			Graph:     gen.Graph,
			RunID:     gen.RunID,
			GraphHash: gen.GraphHash,
			Stats:     gen.Stats,
		}
		if opts.Output == "" {
			out.Source = gen.Source
		}
		result.Graphs = append(result.Graphs, out)
		sources = append(sources, gen.Source)
	}

	combined := strings.Join(sources, "\n")

	if opts.Output != "" && len(sources) > 0 {
		sink, err := blobs.OpenSink(ctx, opts.Output)
		if err != nil {
			return outputCompileError(formatter, ExitCommandError, ErrCodeWriteFailed, err.Error())
		}
		if _, err := sink.Write(ctx, strings.NewReader(combined)); err != nil {
			return outputCompileError(formatter, ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing %s: %v", sink, err))
		}
	}

	if len(result.Failures) > 0 {
		return outputCompileFailures(formatter, result, combined)
	}
	return outputCompileSuccess(formatter, result, combined)
}

// validationFailures converts a graph's validation errors into CLI errors
// with fully qualified field paths.
func validationFailures(g *ir.Graph, verrs []compiler.ValidationError) []CLIError {
	failures := make([]CLIError, len(verrs))
	for i, verr := range verrs {
		failures[i] = CLIError{
			Code:    verr.Code,
			Message: fmt.Sprintf("%s.%s.%s: %s", compiler.GraphsField, g.Name, verr.Field, verr.Message),
		}
	}
	return failures
}

// generationFailure converts a generation error into a CLI error. The ledger
// code is carried in Code only, not repeated in Message.
func generationFailure(err error) CLIError {
	code := string(scope.Code(err))
	if code == "" {
		return CLIError{Code: ErrCodeGeneric, Message: err.Error()}
	}

	message := err.Error()
	var genErr *codegen.GenerateError
	var scopeErr *scope.Error
	if errors.As(err, &genErr) && errors.As(err, &scopeErr) {
		message = fmt.Sprintf("graph %s: node %s: %s", genErr.Graph, genErr.Node, scopeErr.Detail())
	}
	return CLIError{Code: code, Message: message}
}

// recordRun stores the outcome of one graph. A nil store records nothing.
func recordRun(ctx context.Context, st *store.Store, runID string, g *ir.Graph, gen *codegen.Result, failures []CLIError) error {
	if st == nil {
		return nil
	}

	run := store.Run{
		ID:     runID,
		Graph:  g.Name,
		Status: store.StatusOK,
	}

	var trace []codegen.TraceEntry
	if len(failures) > 0 {
		hash, err := ir.GraphHash(g)
		if err != nil {
			return fmt.Errorf("hashing graph %s: %w", g.Name, err)
		}
		messages := make([]string, len(failures))
		for i, f := range failures {
			messages[i] = f.Message
		}
		run.GraphHash = hash
		run.Status = store.StatusFailed
		run.ErrorCode = failures[0].Code
		run.ErrorMessage = strings.Join(messages, "; ")
	} else {
		run.GraphHash = gen.GraphHash
		run.Stats = gen.Stats
		trace = gen.Trace
	}

	if _, err := st.WriteRun(ctx, run, trace); err != nil {
		return fmt.Errorf("recording run %s: %w", runID, err)
	}
	return nil
}

// outputCompileSuccess prints the generated source, or a summary when the
// source went to --output.
func outputCompileSuccess(formatter *OutputFormatter, result CompilationResult, source string) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	for _, g := range result.Graphs {
		formatter.VerboseLog("  %s: %d node(s), %d use(s), %d duplicate(s), %d move(s), run %s",
			g.Graph, g.Stats.Nodes, g.Stats.Uses, g.Stats.Duplicates, g.Stats.Moves, g.RunID)
	}

	if result.Output == "" {
		fmt.Fprint(formatter.Writer, source)
		return nil
	}

	fmt.Fprintf(formatter.Writer, "✓ Generated %d graph(s)\n", len(result.Graphs))
	for _, g := range result.Graphs {
		fmt.Fprintf(formatter.Writer, "  %s: %d duplicate(s), %d move(s)\n", g.Graph, g.Stats.Duplicates, g.Stats.Moves)
	}
	fmt.Fprintf(formatter.Writer, "Wrote source to %s\n", result.Output)
	return nil
}

// outputCompileFailures reports the graphs that failed after emitting the
// ones that compiled. Failures are exit code 1.
func outputCompileFailures(formatter *OutputFormatter, result CompilationResult, source string) error {
	err := NewExitError(ExitFailure, fmt.Sprintf("%d graph error(s), %d graph(s) generated", len(result.Failures), len(result.Graphs)))

	if formatter.IsJSON() {
		if encErr := formatter.encode(CLIResponse{Status: "error", Data: result, Error: &result.Failures[0]}); encErr != nil {
			return encErr
		}
		return err
	}

	diag := *formatter
	if len(result.Graphs) > 0 {
		if encErr := outputCompileSuccess(formatter, result, source); encErr != nil {
			return encErr
		}
		// Keep stdout to generated source only.
		if result.Output == "" {
			diag.Writer = formatter.GetErrWriter()
		}
	}
	if encErr := diag.Errors("Compilation failed", result.Failures); encErr != nil {
		return encErr
	}
	return err
}

// outputCompileError outputs a single error and returns it with an exit code.
func outputCompileError(formatter *OutputFormatter, exitCode int, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileErrors outputs graph compile errors. These are command-level
// errors (exit code 2).
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		code, message := parseLoadError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			if loadErr.Graph != "" {
				message = fmt.Sprintf("graph %s: %s", loadErr.Graph, message)
			}
			if loadErr.Pos.IsValid() {
				message = fmt.Sprintf("%s:%d:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), message)
			}
		}
		cliErrors[i] = CLIError{Code: code, Message: message}
	}

	if err := formatter.Errors("Compilation failed", cliErrors); err != nil {
		return err
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}
