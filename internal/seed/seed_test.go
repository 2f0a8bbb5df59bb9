package seed

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/lakerun/lakerun/internal/storage"
)

func TestGeneratorIsDeterministic(t *testing.T) {
	first := NewGenerator(Config{Seed: 42, Years: []int{2024}, RowsPerYear: 10})
	second := NewGenerator(Config{Seed: 42, Years: []int{2024}, RowsPerYear: 10})

	a := first.CaseRows(2024)
	b := second.CaseRows(2024)
	if len(a) != 10 || len(b) != 10 {
		t.Fatalf("rows = %d/%d", len(a), len(b))
	}
	for i := range a {
		if a[i].Region != b[i].Region || a[i].Cases != b[i].Cases {
			t.Fatalf("row %d diverged: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestCaseRowsStayWithinYear(t *testing.T) {
	gen := NewGenerator(Config{Seed: 1, Years: []int{2023}, RowsPerYear: 400})
	for _, row := range gen.CaseRows(2023) {
		if !strings.HasPrefix(row.Date, "2023-") {
			t.Fatalf("date %q outside year", row.Date)
		}
		if row.Deaths > row.Cases {
			t.Fatalf("deaths %d exceed cases %d", row.Deaths, row.Cases)
		}
	}
}

func TestWriteLocalProducesHiveLayout(t *testing.T) {
	dataDir := t.TempDir()
	gen := NewGenerator(Config{Seed: 7, Years: []int{2024, 2025}, RowsPerYear: 5})

	written, err := WriteLocal(dataDir, gen)
	if err != nil {
		t.Fatalf("WriteLocal() error = %v", err)
	}
	if len(written) != 4 {
		t.Fatalf("written = %d, want 4", len(written))
	}

	expected := filepath.Join(dataDir, "covid_cases", "year=2024", "data-00000.parquet")
	if _, err := os.Stat(expected); err != nil {
		t.Fatalf("Stat(%q) error = %v", expected, err)
	}

	raw, err := os.ReadFile(expected)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	rows, err := parquet.Read[CaseRow](bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("parquet.Read() error = %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("rows = %d, want 5", len(rows))
	}
}

func TestUploadKeysMatchTableLayout(t *testing.T) {
	store := &captureStore{objects: map[string]int64{}}
	gen := NewGenerator(Config{Seed: 7, Years: []int{2024}, RowsPerYear: 5})

	uploaded, err := Upload(context.Background(), store, gen)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(uploaded) != 2 {
		t.Fatalf("uploaded = %d, want 2", len(uploaded))
	}
	if _, ok := store.objects["covid_cases/year=2024/data-00000.parquet"]; !ok {
		t.Fatalf("objects = %v", store.objects)
	}
	if _, ok := store.objects["vaccinations/year=2024/data-00000.parquet"]; !ok {
		t.Fatalf("objects = %v", store.objects)
	}
}

type captureStore struct {
	objects map[string]int64
}

func (c *captureStore) Put(_ context.Context, key string, body io.Reader, size int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	raw, _ := io.ReadAll(body)
	c.objects[key] = int64(len(raw))
	return storage.ObjectInfo{Key: key, Size: size}, nil
}

func (c *captureStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}

func (c *captureStore) Stat(context.Context, string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, storage.ErrObjectNotFound
}

func (c *captureStore) Delete(context.Context, string) error {
	return nil
}
