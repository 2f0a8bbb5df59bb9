package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/lakerun/lakerun/internal/engine"
	"github.com/lakerun/lakerun/internal/evidence"
	"github.com/lakerun/lakerun/internal/render"
	"github.com/lakerun/lakerun/internal/sqlstore"
)

// ErrTimeout matches any TimeoutError via errors.Is.
var ErrTimeout = errors.New("poll deadline exceeded")

// TimeoutError reports that a submitted statement never reached a terminal
// state within the poll deadline. The execution may still finish on the
// backend; the runner only stops waiting.
type TimeoutError struct {
	Query      string
	Waited     time.Duration
	LastStatus engine.Status
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("query %q did not reach a terminal state within %s (last status %s)", e.Query, e.Waited, e.LastStatus)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// HistorySink persists run records beyond the evidence directory. Recording
// is best effort; a sink failure never fails the run.
type HistorySink interface {
	RecordRun(ctx context.Context, rec evidence.ManifestRecord) (int64, error)
}

type Config struct {
	Mode           string
	PollInterval   time.Duration
	MaxWait        time.Duration
	DDLSettleDelay time.Duration
}

// Result is the outcome of one executed statement.
type Result struct {
	Name     string
	Status   engine.Status
	Location string
	RowCount int64
	Duration time.Duration
}

// Runner renders SQL definitions and drives them through the backend's
// submit/poll/fetch lifecycle. Every terminal outcome, including timeouts,
// is appended to the evidence manifest.
type Runner struct {
	Engine   engine.Engine
	Store    *sqlstore.Store
	Vars     render.Variables
	Evidence *evidence.Store
	History  HistorySink
	Logger   *slog.Logger

	cfg   Config
	clock func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(eng engine.Engine, store *sqlstore.Store, vars render.Variables, ev *evidence.Store, cfg Config) (*Runner, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if store == nil {
		return nil, fmt.Errorf("sql store is required")
	}
	if ev == nil {
		return nil, fmt.Errorf("evidence store is required")
	}
	if cfg.Mode != "cloud" && cfg.Mode != "local" {
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 2 * time.Minute
	}
	return &Runner{
		Engine:   eng,
		Store:    store,
		Vars:     vars,
		Evidence: ev,
		cfg:      cfg,
		clock:    time.Now,
		sleep:    sleepContext,
	}, nil
}

// RunOne executes a single named definition from either group.
func (r *Runner) RunOne(ctx context.Context, name string) (Result, error) {
	def, err := r.Store.Get(name)
	if err != nil {
		return Result{}, err
	}
	return r.execute(ctx, def)
}

// RunAll executes every query definition in name order and stops at the
// first failure, returning the results accumulated so far.
func (r *Runner) RunAll(ctx context.Context) ([]Result, error) {
	return r.runGroup(ctx, r.Store.List(sqlstore.KindQuery))
}

// RunDDL executes every DDL definition in name order, waits for the catalog
// to settle, then repairs partitioned tables. The repair step only runs when
// every DDL statement succeeded.
func (r *Runner) RunDDL(ctx context.Context) ([]Result, error) {
	results, err := r.runGroup(ctx, r.Store.List(sqlstore.KindDDL))
	if err != nil {
		return results, err
	}
	if len(results) > 0 && r.cfg.DDLSettleDelay > 0 {
		if err := r.sleep(ctx, r.cfg.DDLSettleDelay); err != nil {
			return results, err
		}
	}
	repairs, err := r.RepairPartitions(ctx)
	results = append(results, repairs...)
	return results, err
}

// RepairPartitions issues one MSCK REPAIR TABLE per partitioned table found
// in the DDL group. The statement is idempotent, so re-running after new
// partitions land is safe. Local mode has no partition catalog to repair.
func (r *Runner) RepairPartitions(ctx context.Context) ([]Result, error) {
	if r.cfg.Mode == "local" {
		return nil, nil
	}

	results := make([]Result, 0)
	for _, def := range r.Store.List(sqlstore.KindDDL) {
		rendered, err := render.Render(def.SQL, r.Vars)
		if err != nil {
			return results, fmt.Errorf("render %q: %w", def.Name, err)
		}
		table, ok := partitionedTable(rendered)
		if !ok {
			continue
		}
		result, err := r.execute(ctx, sqlstore.Definition{
			Name: "repair-" + def.Name,
			SQL:  "MSCK REPAIR TABLE " + table,
			Kind: sqlstore.KindDDL,
		})
		results = append(results, result)
		if err != nil {
			partitionRepairsTotal.WithLabelValues("error").Inc()
			return results, err
		}
		partitionRepairsTotal.WithLabelValues("ok").Inc()
	}
	return results, nil
}

func (r *Runner) runGroup(ctx context.Context, defs []sqlstore.Definition) ([]Result, error) {
	results := make([]Result, 0, len(defs))
	for _, def := range defs {
		result, err := r.execute(ctx, def)
		results = append(results, result)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (r *Runner) execute(ctx context.Context, def sqlstore.Definition) (Result, error) {
	rendered, err := render.Render(def.SQL, r.Vars)
	if err != nil {
		return Result{Name: def.Name}, fmt.Errorf("render %q: %w", def.Name, err)
	}

	stmt := engine.Statement{
		Name: def.Name,
		SQL:  rendered,
		DDL:  def.Kind == sqlstore.KindDDL,
	}
	started := r.clock()

	handle, err := r.Engine.Submit(ctx, stmt)
	if err != nil {
		var execErr *engine.ExecutionError
		if errors.As(err, &execErr) {
			result := Result{Name: def.Name, Status: execErr.State, RowCount: -1, Duration: r.clock().Sub(started)}
			r.finish(ctx, result, started, execErr.Diagnostic)
			return result, err
		}
		return Result{Name: def.Name}, fmt.Errorf("submit %q: %w", def.Name, err)
	}

	status := handle.Status
	if !status.Terminal() {
		status, err = r.waitTerminal(ctx, handle, started)
		if err != nil {
			var execErr *engine.ExecutionError
			var timeoutErr *TimeoutError
			switch {
			case errors.As(err, &execErr):
				result := Result{Name: def.Name, Status: execErr.State, RowCount: -1, Duration: r.clock().Sub(started)}
				r.finish(ctx, result, started, execErr.Diagnostic)
				return result, err
			case errors.As(err, &timeoutErr):
				timeoutsTotal.Inc()
				result := Result{Name: def.Name, Status: engine.StatusTimeout, RowCount: -1, Duration: r.clock().Sub(started)}
				r.finish(ctx, result, started, err.Error())
				return result, err
			default:
				return Result{Name: def.Name}, err
			}
		}
	}

	artifact, err := r.Engine.Fetch(ctx, handle)
	if err != nil {
		result := Result{Name: def.Name, Status: status, RowCount: -1, Duration: r.clock().Sub(started)}
		r.finish(ctx, result, started, fmt.Sprintf("fetch result: %v", err))
		return result, fmt.Errorf("fetch result for %q: %w", def.Name, err)
	}

	result := Result{
		Name:     def.Name,
		Status:   status,
		Location: artifact.Location,
		RowCount: artifact.RowCount,
		Duration: r.clock().Sub(started),
	}
	r.finish(ctx, result, started, "")
	return result, nil
}

// waitTerminal polls until the execution reaches a terminal state or the
// deadline expires. FAILED and CANCELLED surface as ExecutionError from the
// backend; the deadline surfaces as TimeoutError.
func (r *Runner) waitTerminal(ctx context.Context, handle engine.Handle, started time.Time) (engine.Status, error) {
	deadline := started.Add(r.cfg.MaxWait)
	last := handle.Status

	for {
		pollCyclesTotal.Inc()
		status, err := r.Engine.Poll(ctx, handle)
		if err != nil {
			var execErr *engine.ExecutionError
			if errors.As(err, &execErr) {
				return status, err
			}
			return last, fmt.Errorf("poll %q: %w", handle.Name, err)
		}
		last = status
		if status.Terminal() {
			return status, nil
		}
		if !r.clock().Before(deadline) {
			return last, &TimeoutError{Query: handle.Name, Waited: r.cfg.MaxWait, LastStatus: last}
		}
		if err := r.sleep(ctx, r.cfg.PollInterval); err != nil {
			return last, err
		}
	}
}

func (r *Runner) finish(ctx context.Context, result Result, started time.Time, diagnostic string) {
	statementsTotal.WithLabelValues(r.cfg.Mode, string(result.Status)).Inc()
	statementDurationSeconds.WithLabelValues(r.cfg.Mode).Observe(result.Duration.Seconds())

	rec := evidence.ManifestRecord{
		QueryName:      result.Name,
		Mode:           r.cfg.Mode,
		Status:         string(result.Status),
		ResultLocation: result.Location,
		RowCount:       result.RowCount,
		Diagnostic:     diagnostic,
		StartedAt:      started.UTC(),
		EndedAt:        r.clock().UTC(),
	}
	if err := r.Evidence.AppendManifest(rec); err != nil && r.Logger != nil {
		r.Logger.ErrorContext(ctx, "append manifest record", slog.String("query", result.Name), slog.Any("error", err))
	}
	if r.History != nil {
		if _, err := r.History.RecordRun(ctx, rec); err != nil && r.Logger != nil {
			r.Logger.WarnContext(ctx, "record run history", slog.String("query", result.Name), slog.Any("error", err))
		}
	}
	if r.Logger != nil {
		r.Logger.InfoContext(ctx, "statement finished",
			slog.String("query", result.Name),
			slog.String("status", string(result.Status)),
			slog.Int64("rows", result.RowCount),
			slog.Duration("duration", result.Duration),
		)
	}
}

var partitionedTablePattern = regexp.MustCompile(`(?is)CREATE\s+EXTERNAL\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + "([\\w.\"`]+)" + `[\s(].*PARTITIONED\s+BY`)

// partitionedTable extracts the table name from external table DDL that
// declares partitions.
func partitionedTable(ddl string) (string, bool) {
	match := partitionedTablePattern.FindStringSubmatch(ddl)
	if match == nil {
		return "", false
	}
	table := strings.Trim(match[1], "`\"")
	if table == "" {
		return "", false
	}
	return table, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
