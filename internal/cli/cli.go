package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lakerun/lakerun/internal/runner"
	"github.com/lakerun/lakerun/internal/sqlstore"
)

type Options struct {
	Runner *runner.Runner
	Stdout io.Writer
	Stderr io.Writer
}

// Run dispatches one command against a configured runner and returns the
// process exit code: 0 on success, 1 on execution failure, 2 on usage
// errors (including unknown query names).
func Run(ctx context.Context, args []string, opts Options) int {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	if opts.Runner == nil {
		_, _ = fmt.Fprintln(stderr, "runner is not configured")
		return 1
	}

	fs := flag.NewFlagSet("lakerun", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	command := strings.TrimSpace(fs.Arg(0))
	switch command {
	case "ddl-run":
		results, err := opts.Runner.RunDDL(ctx)
		return report(stdout, stderr, results, err)
	case "run":
		if fs.NArg() < 2 {
			_, _ = fmt.Fprintln(stderr, "run requires a query name")
			writeUsage(stderr)
			return 2
		}
		result, err := opts.Runner.RunOne(ctx, fs.Arg(1))
		if errors.Is(err, sqlstore.ErrNotFound) {
			_, _ = fmt.Fprintf(stderr, "%v\n", err)
			return 2
		}
		return report(stdout, stderr, []runner.Result{result}, err)
	case "run-all":
		results, err := opts.Runner.RunAll(ctx)
		return report(stdout, stderr, results, err)
	case "repair-partitions":
		results, err := opts.Runner.RepairPartitions(ctx)
		return report(stdout, stderr, results, err)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

type resultView struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Location string `json:"location,omitempty"`
	RowCount int64  `json:"row_count"`
	Duration string `json:"duration"`
}

func report(stdout, stderr io.Writer, results []runner.Result, err error) int {
	views := make([]resultView, 0, len(results))
	for _, result := range results {
		views = append(views, resultView{
			Name:     result.Name,
			Status:   string(result.Status),
			Location: result.Location,
			RowCount: result.RowCount,
			Duration: result.Duration.Round(time.Millisecond).String(),
		})
	}
	encoded, marshalErr := json.MarshalIndent(views, "", "  ")
	if marshalErr == nil && len(views) > 0 {
		_, _ = fmt.Fprintln(stdout, string(encoded))
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	return 0
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: lakerun [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  ddl-run             run every DDL statement, then repair partitions")
	_, _ = fmt.Fprintln(w, "  run <name>          run one named query")
	_, _ = fmt.Fprintln(w, "  run-all             run every query, stopping at the first failure")
	_, _ = fmt.Fprintln(w, "  repair-partitions   re-run partition repair for partitioned tables")
}
