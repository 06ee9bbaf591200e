package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tensorgen/internal/codegen"
	"github.com/roach88/tensorgen/internal/scope"
	"github.com/roach88/tensorgen/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // defaults to the latest run
	Graph    string // restrict run selection to a graph
	Value    string // optional - filter to one value
	List     bool   // list runs instead of decisions
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run       store.Run            `json:"run"`
	Decisions []codegen.TraceEntry `json:"decisions"`
	Stats     TraceStats           `json:"stats"`
}

// TraceStats summarizes the shown decisions.
type TraceStats struct {
	Decisions  int `json:"decisions"`
	Duplicates int `json:"duplicates"`
	Moves      int `json:"moves"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded duplicate/move decisions",
		Long: `Show the decisions recorded by compile --db.

Without --run the latest run (optionally of --graph) is shown. --value
restricts the output to one value; raw names such as fc1/out are accepted.`,
		Example: `  tensorgen trace --db trace.db
  tensorgen trace --db trace.db --graph MLP --value fc1/out
  tensorgen trace --db trace.db --list`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", defaultDatabase(), "trace store path (default $"+DatabaseEnv+")")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID (default: latest run)")
	cmd.Flags().StringVar(&opts.Graph, "graph", "", "restrict to runs of this graph")
	cmd.Flags().StringVar(&opts.Value, "value", "", "only show decisions about this value")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list runs instead of decisions")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Database == "" {
		_ = formatter.Error(ErrCodeDatabase, "no trace store given: use --db or set "+DatabaseEnv, nil)
		return NewExitError(ExitCommandError, "--db is required")
	}
	// Opening would create an empty store; a missing file is a user error.
	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("trace store not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "trace store not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace store", err)
	}
	defer st.Close()

	if opts.List {
		runs, err := st.ReadRuns(ctx, opts.Graph)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
		if formatter.IsJSON() {
			return formatter.Success(runs)
		}
		return outputRunList(formatter.Writer, runs)
	}

	var run store.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx, opts.Graph)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		msg := "no runs recorded"
		if opts.RunID != "" {
			msg = fmt.Sprintf("run not found: %s", opts.RunID)
		} else if opts.Graph != "" {
			msg = fmt.Sprintf("no runs recorded for graph %s", opts.Graph)
		}
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitFailure, msg)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	value := ""
	if opts.Value != "" {
		value = scope.Sanitize(opts.Value)
	}
	decisions, err := st.ReadDecisions(ctx, run.ID, value)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read decisions", err)
	}

	result := TraceResult{
		Run:       run,
		Decisions: decisions,
		Stats:     summarize(decisions),
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

func summarize(decisions []codegen.TraceEntry) TraceStats {
	stats := TraceStats{Decisions: len(decisions)}
	for _, d := range decisions {
		if d.Decision == scope.Move.String() {
			stats.Moves++
		} else {
			stats.Duplicates++
		}
	}
	return stats
}

func outputRunList(w io.Writer, runs []store.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		line := fmt.Sprintf("  [%d] %s %s %s", r.Seq, r.ID, r.Graph, r.Status)
		if r.Status == store.StatusFailed {
			line += " " + r.ErrorCode
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	run := result.Run

	fmt.Fprintf(w, "Trace for run: %s\n", run.ID)
	fmt.Fprintf(w, "Graph: %s (%s)\n", run.Graph, truncateHash(run.GraphHash))
	fmt.Fprintf(w, "Status: %s\n", runStatus(run))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Decisions ===")
	if len(result.Decisions) == 0 {
		fmt.Fprintln(w, "  (no decisions)")
	}
	for _, d := range result.Decisions {
		fmt.Fprintf(w, "  [%d] @%d %-9s %s <- %s\n", d.Seq, d.Position, d.Decision, d.Node, d.Value)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Decisions:  %d\n", result.Stats.Decisions)
	fmt.Fprintf(w, "  Duplicates: %d\n", result.Stats.Duplicates)
	fmt.Fprintf(w, "  Moves:      %d\n", result.Stats.Moves)
	if verbose {
		fmt.Fprintf(w, "  Unused:     %d\n", run.Stats.Unused)
		fmt.Fprintf(w, "  Generator:  %s (IR %s)\n", run.GeneratorVersion, run.IRVersion)
	}

	return nil
}

// truncateHash shortens a hex digest for display.
func truncateHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}

func runStatus(run store.Run) string {
	if run.Status == store.StatusFailed {
		return fmt.Sprintf("failed [%s] %s", run.ErrorCode, run.ErrorMessage)
	}
	return "ok"
}
