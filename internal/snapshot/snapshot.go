// Package snapshot persists spawner records in a single YAML file. It is
// the default store for single-node setups; internal/db provides the
// PostgreSQL alternative.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/spawnkeep/internal/spawn"
)

// FileStore implements spawn.Store over one YAML document keyed by
// "world,x,y,z". Writes go through a temp file and rename, and the first
// replace of an existing snapshot keeps a .bak copy of it.
type FileStore struct {
	path string

	mu       sync.Mutex
	backedUp bool
}

// Compile-time check.
var _ spawn.Store = (*FileStore)(nil)

// NewFileStore creates a store writing to path. The file does not have to
// exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// recordDoc is the modern per-key value. The legacy format stored the
// entry string directly at the key and is still accepted on load.
type recordDoc struct {
	Data        string        `yaml:"data"`
	Visible     bool          `yaml:"visible"`
	DisplayMode int           `yaml:"display_mode"`
	Properties  propertiesDoc `yaml:"properties"`
}

type propertiesDoc struct {
	Group           string  `yaml:"group,omitempty"`
	DisplayName     string  `yaml:"display_name,omitempty"`
	TimeWindow      string  `yaml:"time_window,omitempty"`
	Weather         string  `yaml:"weather,omitempty"`
	RadiusX         float64 `yaml:"radius_x,omitempty"`
	RadiusY         float64 `yaml:"radius_y,omitempty"`
	RadiusZ         float64 `yaml:"radius_z,omitempty"`
	Capacity        int     `yaml:"capacity,omitempty"`
	DetectionRadius float64 `yaml:"detection_radius,omitempty"`
}

func toDoc(rec spawn.Record) recordDoc {
	return recordDoc{
		Data:        rec.Data,
		Visible:     rec.Visible,
		DisplayMode: rec.DisplayMode,
		Properties: propertiesDoc{
			Group:           rec.Properties.Group,
			DisplayName:     rec.Properties.DisplayName,
			TimeWindow:      rec.Properties.TimeWindow,
			Weather:         rec.Properties.Weather,
			RadiusX:         rec.Properties.RadiusX,
			RadiusY:         rec.Properties.RadiusY,
			RadiusZ:         rec.Properties.RadiusZ,
			Capacity:        rec.Properties.Capacity,
			DetectionRadius: rec.Properties.DetectionRadius,
		},
	}
}

func fromDoc(key string, doc recordDoc) spawn.Record {
	return spawn.Record{
		Key:         key,
		Data:        doc.Data,
		Visible:     doc.Visible,
		DisplayMode: doc.DisplayMode,
		Properties: spawn.RecordProperties{
			Group:           doc.Properties.Group,
			DisplayName:     doc.Properties.DisplayName,
			TimeWindow:      doc.Properties.TimeWindow,
			Weather:         doc.Properties.Weather,
			RadiusX:         doc.Properties.RadiusX,
			RadiusY:         doc.Properties.RadiusY,
			RadiusZ:         doc.Properties.RadiusZ,
			Capacity:        doc.Properties.Capacity,
			DetectionRadius: doc.Properties.DetectionRadius,
		},
	}
}

// LoadAll reads the snapshot file and returns its records sorted by key.
// A missing file is an empty snapshot. Values that decode as plain strings
// are legacy records: the string is the entry data, everything else takes
// defaults. Keys whose value fits neither shape are skipped with a warning.
func (s *FileStore) LoadAll(_ context.Context) ([]spawn.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	recs := make([]spawn.Record, 0, len(doc))
	for key, node := range doc {
		switch node.Kind {
		case yaml.ScalarNode:
			var data string
			if err := node.Decode(&data); err != nil {
				slog.Warn("skipping snapshot key", "key", key, "error", err)
				continue
			}
			recs = append(recs, spawn.Record{Key: key, Data: data, Visible: true})
		case yaml.MappingNode:
			var rd recordDoc
			if err := node.Decode(&rd); err != nil {
				slog.Warn("skipping snapshot key", "key", key, "error", err)
				continue
			}
			recs = append(recs, fromDoc(key, rd))
		default:
			slog.Warn("skipping snapshot key", "key", key, "kind", node.Kind)
		}
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].Key < recs[j].Key })
	return recs, nil
}

// Save upserts a single record, rewriting the whole file.
func (s *FileStore) Save(_ context.Context, rec spawn.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}

	var node yaml.Node
	if err := node.Encode(toDoc(rec)); err != nil {
		return fmt.Errorf("encoding record %q: %w", rec.Key, err)
	}
	doc[rec.Key] = node

	return s.write(doc)
}

// SaveAll replaces the full snapshot with the given records.
func (s *FileStore) SaveAll(_ context.Context, recs []spawn.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := make(map[string]yaml.Node, len(recs))
	for _, rec := range recs {
		var node yaml.Node
		if err := node.Encode(toDoc(rec)); err != nil {
			return fmt.Errorf("encoding record %q: %w", rec.Key, err)
		}
		doc[rec.Key] = node
	}

	return s.write(doc)
}

// Delete removes the record for key. Missing keys and a missing file are
// not errors.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)

	return s.write(doc)
}

// read parses the snapshot file into its raw keyed nodes. Callers hold mu.
func (s *FileStore) read() (map[string]yaml.Node, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]yaml.Node{}, nil
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", s.path, err)
	}

	doc := map[string]yaml.Node{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", s.path, err)
	}
	return doc, nil
}

// write marshals doc and swaps it in atomically. The previous file is kept
// once as path.bak before its first replacement. Callers hold mu.
func (s *FileStore) write(doc map[string]yaml.Node) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating snapshot dir %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot temp %s: %w", tmp, err)
	}

	if !s.backedUp {
		if _, err := os.Stat(s.path); err == nil {
			if err := os.Rename(s.path, s.path+".bak"); err != nil {
				return fmt.Errorf("backing up snapshot %s: %w", s.path, err)
			}
		}
		s.backedUp = true
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing snapshot %s: %w", s.path, err)
	}
	return nil
}
