package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsathena "github.com/aws/aws-sdk-go-v2/service/athena"

	"github.com/lakerun/lakerun/internal/cli"
	"github.com/lakerun/lakerun/internal/config"
	"github.com/lakerun/lakerun/internal/engine"
	athenaengine "github.com/lakerun/lakerun/internal/engine/athena"
	duckdbengine "github.com/lakerun/lakerun/internal/engine/duckdb"
	"github.com/lakerun/lakerun/internal/evidence"
	"github.com/lakerun/lakerun/internal/history"
	"github.com/lakerun/lakerun/internal/observability"
	"github.com/lakerun/lakerun/internal/render"
	"github.com/lakerun/lakerun/internal/runner"
	"github.com/lakerun/lakerun/internal/sqlstore"
	s3store "github.com/lakerun/lakerun/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("lakerun")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlstore.LoadDir(cfg.Runner.SQLDir)
	if err != nil {
		logger.Error("failed to load sql templates", slog.Any("error", err))
		os.Exit(1)
	}

	ev, err := evidence.NewStore(cfg.Runner.EvidenceDir)
	if err != nil {
		logger.Error("failed to open evidence store", slog.Any("error", err))
		os.Exit(1)
	}

	eng, err := buildEngine(ctx, cfg, ev, logger)
	if err != nil {
		logger.Error("failed to build query engine", slog.Any("error", err))
		os.Exit(1)
	}

	vars := render.Variables{
		AccountID:       cfg.Lake.AccountID,
		Region:          cfg.Lake.Region,
		PackagingBucket: cfg.Lake.PackagingBucket,
		RawBucket:       cfg.Lake.RawBucket,
		CleanBucket:     cfg.Lake.CleanBucket,
		OutputLocation:  cfg.Lake.OutputLocation,
		Database:        cfg.Lake.Database,
		ProjectName:     cfg.Lake.ProjectName,
	}

	r, err := runner.New(eng, store, vars, ev, runner.Config{
		Mode:           string(cfg.Mode),
		PollInterval:   cfg.Runner.PollInterval,
		MaxWait:        cfg.Runner.MaxWait,
		DDLSettleDelay: cfg.Runner.DDLSettleDelay,
	})
	if err != nil {
		logger.Error("failed to build runner", slog.Any("error", err))
		os.Exit(1)
	}
	r.Logger = logger

	if cfg.History.DSN != "" {
		db, err := history.Open(ctx, history.DBConfig{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.History.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		repo := history.NewRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure history schema", slog.Any("error", err))
			os.Exit(1)
		}
		r.History = repo
	}

	os.Exit(cli.Run(ctx, os.Args[1:], cli.Options{
		Runner: r,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}))
}

func buildEngine(ctx context.Context, cfg config.Config, ev *evidence.Store, logger *slog.Logger) (engine.Engine, error) {
	if cfg.Mode == config.ModeLocal {
		return duckdbengine.NewEngine(duckdbengine.Config{
			Database:    cfg.Lake.Database,
			DataDir:     cfg.Local.DataDir,
			ParquetGlob: cfg.Local.ParquetGlob,
		}, ev, logger)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Lake.Region))
	if err != nil {
		return nil, err
	}
	client := awsathena.NewFromConfig(awsCfg)

	objectStore, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		return nil, err
	}

	return athenaengine.New(client, athenaengine.Config{
		Database:       cfg.Lake.Database,
		WorkGroup:      cfg.Lake.WorkGroup,
		OutputLocation: cfg.Lake.OutputLocation,
	}, objectStore, cfg.ObjectStore.Bucket, ev, logger)
}
