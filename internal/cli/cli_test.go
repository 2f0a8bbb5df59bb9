package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/lakerun/lakerun/internal/engine"
	"github.com/lakerun/lakerun/internal/evidence"
	"github.com/lakerun/lakerun/internal/render"
	"github.com/lakerun/lakerun/internal/runner"
	"github.com/lakerun/lakerun/internal/sqlstore"
)

func TestRunOneCommandPrintsResult(t *testing.T) {
	opts, stdout, _ := newTestOptions(t, &syncEngine{})

	code := Run(context.Background(), []string{"run", "CasesPerYear"}, opts)
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), `"status": "SUCCEEDED"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
	if !strings.Contains(stdout.String(), `"name": "CasesPerYear"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunUnknownQueryExitsUsage(t *testing.T) {
	opts, _, stderr := newTestOptions(t, &syncEngine{})

	code := Run(context.Background(), []string{"run", "NoSuchQuery"}, opts)
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "NoSuchQuery") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunAllFailureExitsOne(t *testing.T) {
	opts, stdout, stderr := newTestOptions(t, &syncEngine{failName: "BrokenQuery"})

	code := Run(context.Background(), []string{"run-all"}, opts)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stdout.String(), `"FAILED"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "BrokenQuery") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestUnknownCommandPrintsUsage(t *testing.T) {
	opts, _, stderr := newTestOptions(t, &syncEngine{})

	code := Run(context.Background(), []string{"frobnicate"}, opts)
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "usage: lakerun") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestMissingCommandPrintsUsage(t *testing.T) {
	opts, _, stderr := newTestOptions(t, &syncEngine{})

	if code := Run(context.Background(), nil, opts); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "commands:") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func newTestOptions(t *testing.T, eng engine.Engine) (Options, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	fsys := fstest.MapFS{
		"ddl/create_covid_cases.sql": &fstest.MapFile{Data: []byte(`CREATE EXTERNAL TABLE <DATABASE>.covid_cases (region string)`)},
		"queries/BrokenQuery.sql":    &fstest.MapFile{Data: []byte(`SELECT FROM WHERE`)},
		"queries/CasesPerYear.sql":   &fstest.MapFile{Data: []byte(`SELECT year FROM <DATABASE>.covid_cases`)},
	}
	store, err := sqlstore.Load(fsys)
	if err != nil {
		t.Fatalf("sqlstore.Load() error = %v", err)
	}
	ev, err := evidence.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("evidence.NewStore() error = %v", err)
	}
	r, err := runner.New(eng, store, render.Variables{
		Database:       "covid_analytics",
		OutputLocation: "s3://results/",
	}, ev, runner.Config{
		Mode:         "local",
		PollInterval: time.Millisecond,
		MaxWait:      time.Second,
	})
	if err != nil {
		t.Fatalf("runner.New() error = %v", err)
	}

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return Options{Runner: r, Stdout: stdout, Stderr: stderr}, stdout, stderr
}

// syncEngine completes every statement at submit time, mirroring the
// embedded backend.
type syncEngine struct {
	failName string
	sequence int
}

func (s *syncEngine) Submit(_ context.Context, stmt engine.Statement) (engine.Handle, error) {
	if stmt.Name == s.failName {
		return engine.Handle{}, &engine.ExecutionError{
			Query:      stmt.Name,
			Mode:       "local",
			State:      engine.StatusFailed,
			Diagnostic: "Parser Error",
		}
	}
	s.sequence++
	return engine.Handle{
		ID:     "local-" + stmt.Name,
		Name:   stmt.Name,
		DDL:    stmt.DDL,
		Status: engine.StatusSucceeded,
	}, nil
}

func (s *syncEngine) Poll(_ context.Context, handle engine.Handle) (engine.Status, error) {
	return handle.Status, nil
}

func (s *syncEngine) Fetch(_ context.Context, handle engine.Handle) (engine.Artifact, error) {
	return engine.Artifact{Location: "evidence/duckdb/" + handle.Name + ".json", RowCount: 3}, nil
}
