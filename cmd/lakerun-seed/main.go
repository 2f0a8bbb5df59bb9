package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lakerun/lakerun/internal/config"
	"github.com/lakerun/lakerun/internal/observability"
	"github.com/lakerun/lakerun/internal/seed"
	s3store "github.com/lakerun/lakerun/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("lakerun-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stderr)

	fs := flag.NewFlagSet("lakerun-seed", flag.ExitOnError)
	seedValue := fs.Int64("seed", 1, "random seed for deterministic data")
	rowsPerYear := fs.Int("rows-per-year", 365, "rows generated per dataset per year")
	upload := fs.Bool("upload", false, "upload partitions to the object store instead of writing locally")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen := seed.NewGenerator(seed.Config{
		Seed:        *seedValue,
		RowsPerYear: *rowsPerYear,
	})

	if *upload {
		store, err := s3store.New(ctx, s3store.Config{
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
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		keys, err := seed.Upload(ctx, store, gen)
		if err != nil {
			logger.Error("failed to upload seed data", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("seed data uploaded", slog.Int("partitions", len(keys)), slog.String("bucket", cfg.ObjectStore.Bucket))
		return
	}

	paths, err := seed.WriteLocal(cfg.Local.DataDir, gen)
	if err != nil {
		logger.Error("failed to write seed data", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("seed data written", slog.Int("partitions", len(paths)), slog.String("data_dir", cfg.Local.DataDir))
}
