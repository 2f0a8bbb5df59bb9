package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("lakerun", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.Mode != ModeLocal {
		t.Fatalf("Mode = %q, want %q", cfg.Mode, ModeLocal)
	}
	if cfg.Lake.Database != "healthlake" {
		t.Fatalf("Lake.Database = %q", cfg.Lake.Database)
	}
	if cfg.Lake.WorkGroup != "primary" {
		t.Fatalf("Lake.WorkGroup = %q", cfg.Lake.WorkGroup)
	}
	if cfg.Runner.PollInterval != 2*time.Second {
		t.Fatalf("Runner.PollInterval = %s", cfg.Runner.PollInterval)
	}
	if cfg.Runner.MaxWait != 2*time.Minute {
		t.Fatalf("Runner.MaxWait = %s", cfg.Runner.MaxWait)
	}
	if cfg.Runner.DDLSettleDelay != 3*time.Second {
		t.Fatalf("Runner.DDLSettleDelay = %s", cfg.Runner.DDLSettleDelay)
	}
	if cfg.Local.ParquetGlob != "year=*/*.parquet" {
		t.Fatalf("Local.ParquetGlob = %q", cfg.Local.ParquetGlob)
	}
	if cfg.ObjectStore.Endpoint != "localhost:9000" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.History.DSN != "" {
		t.Fatalf("History.DSN = %q, want empty", cfg.History.DSN)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"LAKERUN_PROFILE": "prod"})
	cfg, err := Load("lakerun", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Mode != ModeCloud {
		t.Fatalf("Mode = %q, want %q", cfg.Mode, ModeCloud)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.LogJSON {
		t.Fatal("LogJSON should default to true in prod")
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"LAKERUN_PROFILE":             "test",
		"LAKERUN_MODE":                "cloud",
		"LAKERUN_SERVICE_NAME":        "lakerun-batch",
		"LAKERUN_DATABASE":            "project03_db",
		"LAKERUN_OUTPUT_LOCATION":     "s3://evidence-bucket/athena-results/",
		"LAKERUN_WORKGROUP":           "analytics",
		"LAKERUN_ACCOUNT_ID":          "123456789012",
		"LAKERUN_REGION":              "us-east-1",
		"LAKERUN_RAW_BUCKET":          "raw-bucket",
		"LAKERUN_CLEAN_BUCKET":        "clean-bucket",
		"LAKERUN_PACKAGING_BUCKET":    "pkg-bucket",
		"LAKERUN_SQL_DIR":             "/opt/sql",
		"LAKERUN_EVIDENCE_DIR":        "/var/evidence",
		"LAKERUN_POLL_INTERVAL":       "500ms",
		"LAKERUN_MAX_WAIT":            "90s",
		"LAKERUN_DDL_SETTLE_DELAY":    "1s",
		"LAKERUN_DATA_DIR":            "/data/clean",
		"LAKERUN_PARQUET_GLOB":        "**/*.parquet",
		"LAKERUN_HISTORY_DSN":         "postgres://example",
		"LAKERUN_OBJECTSTORE_BUCKET":  "lakerun-prod",
		"LAKERUN_OBJECTSTORE_USE_SSL": "true",
		"LAKERUN_LOG_LEVEL":           "error",
	})
	cfg, err := Load("lakerun", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Mode != ModeCloud {
		t.Fatalf("Mode = %q", cfg.Mode)
	}
	if cfg.Service.Name != "lakerun-batch" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.Lake.Database != "project03_db" {
		t.Fatalf("Lake.Database = %q", cfg.Lake.Database)
	}
	if cfg.Lake.OutputLocation != "s3://evidence-bucket/athena-results/" {
		t.Fatalf("Lake.OutputLocation = %q", cfg.Lake.OutputLocation)
	}
	if cfg.Lake.WorkGroup != "analytics" {
		t.Fatalf("Lake.WorkGroup = %q", cfg.Lake.WorkGroup)
	}
	if cfg.Lake.CleanBucket != "clean-bucket" {
		t.Fatalf("Lake.CleanBucket = %q", cfg.Lake.CleanBucket)
	}
	if cfg.Runner.SQLDir != "/opt/sql" {
		t.Fatalf("Runner.SQLDir = %q", cfg.Runner.SQLDir)
	}
	if cfg.Runner.PollInterval != 500*time.Millisecond {
		t.Fatalf("Runner.PollInterval = %s", cfg.Runner.PollInterval)
	}
	if cfg.Runner.MaxWait != 90*time.Second {
		t.Fatalf("Runner.MaxWait = %s", cfg.Runner.MaxWait)
	}
	if cfg.Local.ParquetGlob != "**/*.parquet" {
		t.Fatalf("Local.ParquetGlob = %q", cfg.Local.ParquetGlob)
	}
	if cfg.History.DSN != "postgres://example" {
		t.Fatalf("History.DSN = %q", cfg.History.DSN)
	}
	if cfg.ObjectStore.Bucket != "lakerun-prod" {
		t.Fatalf("ObjectStore.Bucket = %q", cfg.ObjectStore.Bucket)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"LAKERUN_PROFILE": "oops"},
		{"LAKERUN_MODE": "hybrid"},
		{"LAKERUN_POLL_INTERVAL": "NaN"},
		{"LAKERUN_POLL_INTERVAL": "-2s"},
		{"LAKERUN_MAX_WAIT": "0s"},
		{"LAKERUN_HISTORY_MAX_OPEN_CONNS": "oops"},
		{"LAKERUN_OBJECTSTORE_USE_SSL": "not-bool"},
		{"LAKERUN_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("lakerun", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
