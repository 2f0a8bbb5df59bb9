package sqlstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

// ErrNotFound is returned by Get when no template matches the name.
var ErrNotFound = errors.New("sql definition not found")

type Kind string

const (
	KindDDL   Kind = "ddl"
	KindQuery Kind = "query"
)

// Definition is one named SQL statement loaded from the template tree.
// Definitions are immutable after load.
type Definition struct {
	Name string
	SQL  string
	Kind Kind
}

// Store holds all SQL definitions from a template directory tree with two
// groups: ddl/*.sql and queries/*.sql. One file = one statement; the
// logical name is the file stem.
type Store struct {
	byName map[string]Definition
	ddl    []Definition
	query  []Definition
}

func LoadDir(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("sql directory is required")
	}
	return Load(os.DirFS(dir))
}

func Load(fsys fs.FS) (*Store, error) {
	if fsys == nil {
		return nil, fmt.Errorf("template filesystem is required")
	}

	store := &Store{byName: make(map[string]Definition)}

	ddl, err := loadGroup(fsys, "ddl", KindDDL)
	if err != nil {
		return nil, err
	}
	queries, err := loadGroup(fsys, "queries", KindQuery)
	if err != nil {
		return nil, err
	}

	for _, def := range append(append([]Definition{}, ddl...), queries...) {
		if existing, ok := store.byName[def.Name]; ok {
			return nil, fmt.Errorf("duplicate sql definition %q (in %s and %s)", def.Name, existing.Kind, def.Kind)
		}
		store.byName[def.Name] = def
	}
	store.ddl = ddl
	store.query = queries
	return store, nil
}

// Get returns the definition for a logical name, regardless of group.
func (s *Store) Get(name string) (Definition, error) {
	def, ok := s.byName[strings.TrimSpace(name)]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return def, nil
}

// List returns the definitions of one group, ordered lexicographically by
// name so batch runs are deterministic.
func (s *Store) List(kind Kind) []Definition {
	var source []Definition
	switch kind {
	case KindDDL:
		source = s.ddl
	case KindQuery:
		source = s.query
	}
	out := make([]Definition, len(source))
	copy(out, source)
	return out
}

func loadGroup(fsys fs.FS, group string, kind Kind) ([]Definition, error) {
	entries, err := fs.ReadDir(fsys, group)
	if err != nil {
		return nil, fmt.Errorf("read sql group %q: %w", group, err)
	}

	defs := make([]Definition, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(group, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read sql file %q: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".sql")
		sqlText := strings.TrimSpace(string(raw))
		if sqlText == "" {
			return nil, fmt.Errorf("sql file %q is empty", entry.Name())
		}
		defs = append(defs, Definition{Name: name, SQL: sqlText, Kind: kind})
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}
