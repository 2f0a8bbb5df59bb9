package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/lakerun/lakerun/internal/storage"
)

const (
	DatasetCases        = "covid_cases"
	DatasetVaccinations = "vaccinations"
)

type partition struct {
	key  string
	data []byte
}

// WriteLocal materializes every dataset partition under dataDir using the
// same hive layout the object store uses, and returns the written paths.
func WriteLocal(dataDir string, gen *Generator) ([]string, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}

	partitions, err := buildPartitions(gen)
	if err != nil {
		return nil, err
	}

	written := make([]string, 0, len(partitions))
	for _, part := range partitions {
		target := filepath.Join(dataDir, filepath.FromSlash(part.key))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return written, fmt.Errorf("create partition directory: %w", err)
		}
		if err := os.WriteFile(target, part.data, 0o644); err != nil {
			return written, fmt.Errorf("write partition file %q: %w", target, err)
		}
		written = append(written, target)
	}
	return written, nil
}

// Upload pushes every dataset partition into the object store, keyed the
// way the external table DDL expects.
func Upload(ctx context.Context, store storage.ObjectStore, gen *Generator) ([]string, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}

	partitions, err := buildPartitions(gen)
	if err != nil {
		return nil, err
	}

	uploaded := make([]string, 0, len(partitions))
	for _, part := range partitions {
		if _, err := store.Put(ctx, part.key, bytes.NewReader(part.data), int64(len(part.data)), storage.PutOptions{
			ContentType: "application/octet-stream",
		}); err != nil {
			return uploaded, fmt.Errorf("upload partition %q: %w", part.key, err)
		}
		uploaded = append(uploaded, part.key)
	}
	return uploaded, nil
}

func buildPartitions(gen *Generator) ([]partition, error) {
	partitions := make([]partition, 0, 2*len(gen.Years()))
	for _, year := range gen.Years() {
		caseData, err := encodeParquet(gen.CaseRows(year))
		if err != nil {
			return nil, fmt.Errorf("encode %s year %d: %w", DatasetCases, year, err)
		}
		vaccinationData, err := encodeParquet(gen.VaccinationRows(year))
		if err != nil {
			return nil, fmt.Errorf("encode %s year %d: %w", DatasetVaccinations, year, err)
		}

		caseKey, err := storage.DatasetFilePath(DatasetCases, year, 0)
		if err != nil {
			return nil, err
		}
		vaccinationKey, err := storage.DatasetFilePath(DatasetVaccinations, year, 0)
		if err != nil {
			return nil, err
		}
		partitions = append(partitions,
			partition{key: caseKey, data: caseData},
			partition{key: vaccinationKey, data: vaccinationData},
		)
	}
	return partitions, nil
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("rows are required")
	}
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
