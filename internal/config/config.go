package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

// Mode selects the query backend. It is resolved once at load time and
// passed into the runner constructor; nothing downstream reads the
// environment again.
type Mode string

const (
	ModeCloud Mode = "cloud"
	ModeLocal Mode = "local"
)

type Config struct {
	Profile       Profile
	Mode          Mode
	Service       ServiceConfig
	Lake          LakeConfig
	Runner        RunnerConfig
	Local         LocalConfig
	ObjectStore   ObjectStoreConfig
	History       HistoryConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

// LakeConfig carries the identifiers substituted into SQL templates and
// the cloud execution context.
type LakeConfig struct {
	Database        string
	OutputLocation  string
	WorkGroup       string
	AccountID       string
	Region          string
	ProjectName     string
	RawBucket       string
	CleanBucket     string
	PackagingBucket string
}

type RunnerConfig struct {
	SQLDir         string
	EvidenceDir    string
	PollInterval   time.Duration
	MaxWait        time.Duration
	DDLSettleDelay time.Duration
}

// LocalConfig points the embedded engine at hive-partitioned parquet
// datasets on the local filesystem.
type LocalConfig struct {
	DataDir     string
	ParquetGlob string
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type HistoryConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("LAKERUN_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid LAKERUN_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if raw, ok := lookup("LAKERUN_MODE"); ok {
		cfg.Mode = Mode(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidMode(cfg.Mode) {
		return Config{}, fmt.Errorf("invalid LAKERUN_MODE: %q", cfg.Mode)
	}

	if err := applyString(lookup, "LAKERUN_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_DATABASE", &cfg.Lake.Database); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_OUTPUT_LOCATION", &cfg.Lake.OutputLocation); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_WORKGROUP", &cfg.Lake.WorkGroup); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_ACCOUNT_ID", &cfg.Lake.AccountID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_REGION", &cfg.Lake.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_PROJECT_NAME", &cfg.Lake.ProjectName); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_RAW_BUCKET", &cfg.Lake.RawBucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_CLEAN_BUCKET", &cfg.Lake.CleanBucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_PACKAGING_BUCKET", &cfg.Lake.PackagingBucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_SQL_DIR", &cfg.Runner.SQLDir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_EVIDENCE_DIR", &cfg.Runner.EvidenceDir); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "LAKERUN_POLL_INTERVAL", &cfg.Runner.PollInterval); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "LAKERUN_MAX_WAIT", &cfg.Runner.MaxWait); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "LAKERUN_DDL_SETTLE_DELAY", &cfg.Runner.DDLSettleDelay); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_DATA_DIR", &cfg.Local.DataDir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_PARQUET_GLOB", &cfg.Local.ParquetGlob); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "LAKERUN_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "LAKERUN_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "LAKERUN_HISTORY_DSN", &cfg.History.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "LAKERUN_HISTORY_MAX_OPEN_CONNS", &cfg.History.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "LAKERUN_HISTORY_MAX_IDLE_CONNS", &cfg.History.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "LAKERUN_HISTORY_CONN_MAX_IDLE_TIME", &cfg.History.ConnMaxIdleTime); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "LAKERUN_HISTORY_CONN_MAX_LIFETIME", &cfg.History.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "LAKERUN_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "LAKERUN_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.Runner.PollInterval <= 0 {
		return Config{}, fmt.Errorf("poll interval must be positive")
	}
	if cfg.Runner.MaxWait <= 0 {
		return Config{}, fmt.Errorf("max wait must be positive")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Mode:    ModeLocal,
		Service: ServiceConfig{Name: "lakerun"},
		Lake: LakeConfig{
			Database:    "healthlake",
			WorkGroup:   "primary",
			Region:      "eu-west-1",
			ProjectName: "public-health-datalake",
		},
		Runner: RunnerConfig{
			SQLDir:         "sql",
			EvidenceDir:    "evidence",
			PollInterval:   2 * time.Second,
			MaxWait:        2 * time.Minute,
			DDLSettleDelay: 3 * time.Second,
		},
		Local: LocalConfig{
			DataDir:     "data/clean",
			ParquetGlob: "year=*/*.parquet",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "eu-west-1",
			Bucket:           "lakerun",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		History: HistoryConfig{
			DSN:             "",
			MaxOpenConns:    5,
			MaxIdleConns:    5,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  false,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Runner.PollInterval = 10 * time.Millisecond
		cfg.Runner.MaxWait = time.Second
		cfg.Runner.DDLSettleDelay = 0
	case ProfileProd:
		cfg.Mode = ModeCloud
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Observability.LogJSON = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func isValidMode(mode Mode) bool {
	switch mode {
	case ModeCloud, ModeLocal:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
