package evidence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const manifestFileName = "manifest.jsonl"

var fileComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ManifestRecord is one append-only audit entry: what ran, when, and with
// what outcome. Records are never mutated after write.
type ManifestRecord struct {
	QueryName      string    `json:"query_name"`
	Mode           string    `json:"mode"`
	Status         string    `json:"status"`
	ResultLocation string    `json:"result_location,omitempty"`
	RowCount       int64     `json:"row_count"`
	Diagnostic     string    `json:"diagnostic,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
}

// Store owns the evidence directory: one result artifact per executed
// statement plus the run manifest. The directory is append-only by
// convention; the store only ever creates new files and appends.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("evidence directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// WriteJSON persists tabular records as an indented JSON artifact under
// <dir>/<group>/<name>.json and returns the artifact path.
func (s *Store) WriteJSON(group, name string, records any) (string, error) {
	target, err := s.artifactPath(group, name+".json")
	if err != nil {
		return "", err
	}
	encoded, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal artifact %q: %w", name, err)
	}
	if err := os.WriteFile(target, append(encoded, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write artifact %q: %w", target, err)
	}
	return target, nil
}

// WriteStream copies a result object (e.g. a CSV downloaded from the cloud
// engine's output location) into the evidence directory.
func (s *Store) WriteStream(group, fileName string, body io.Reader) (string, error) {
	target, err := s.artifactPath(group, fileName)
	if err != nil {
		return "", err
	}
	file, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create artifact %q: %w", target, err)
	}
	defer func() { _ = file.Close() }()

	if _, err := io.Copy(file, body); err != nil {
		return "", fmt.Errorf("write artifact %q: %w", target, err)
	}
	return target, nil
}

// AppendManifest appends one record to <dir>/manifest.jsonl.
func (s *Store) AppendManifest(rec ManifestRecord) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal manifest record: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(s.dir, manifestFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("append manifest record: %w", err)
	}
	return nil
}

// ReadManifest returns all recorded entries in append order.
func (s *Store) ReadManifest() ([]ManifestRecord, error) {
	file, err := os.Open(filepath.Join(s.dir, manifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = file.Close() }()

	var records []ManifestRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec ManifestRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("decode manifest line: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return records, nil
}

func (s *Store) artifactPath(group, fileName string) (string, error) {
	if !fileComponentPattern.MatchString(group) {
		return "", fmt.Errorf("invalid artifact group: %q", group)
	}
	if !fileComponentPattern.MatchString(fileName) {
		return "", fmt.Errorf("invalid artifact file name: %q", fileName)
	}
	groupDir := filepath.Join(s.dir, group)
	if err := os.MkdirAll(groupDir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact group %q: %w", group, err)
	}
	return filepath.Join(groupDir, fileName), nil
}
