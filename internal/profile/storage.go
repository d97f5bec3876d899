package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	rolesDir      = "roles"
	candidatesDir = "candidates"
)

// Storage persists profiles as JSON files under a data directory. This is
// deliberately plain file storage: the demo pipeline has no database and
// the files double as a human-readable audit of what intake produced.
type Storage struct {
	dir string
}

func NewStorage(dir string) (*Storage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("data directory is required")
	}

	for _, sub := range []string{rolesDir, candidatesDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", sub, err)
		}
	}

	return &Storage{dir: dir}, nil
}

func (s *Storage) SaveRole(r *Role) error {
	return s.save(filepath.Join(s.dir, rolesDir, r.ID+".json"), r)
}

func (s *Storage) SaveCandidate(c *Candidate) error {
	return s.save(filepath.Join(s.dir, candidatesDir, c.ID+".json"), c)
}

func (s *Storage) LoadRole(id string) (*Role, error) {
	var r Role
	if err := s.load(filepath.Join(s.dir, rolesDir, id+".json"), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadCandidates returns all stored candidates ordered by id.
func (s *Storage) LoadCandidates() (*Candidates, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, candidatesDir))
	if err != nil {
		return nil, fmt.Errorf("read candidates directory: %w", err)
	}

	set := &Candidates{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var c Candidate
		if err := s.load(filepath.Join(s.dir, candidatesDir, entry.Name()), &c); err != nil {
			return nil, err
		}
		set.Items = append(set.Items, &c)
	}

	sort.Slice(set.Items, func(i, j int) bool { return set.Items[i].ID < set.Items[j].ID })

	return set, nil
}

func (s *Storage) save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}

	return nil
}

func (s *Storage) load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse profile %s: %w", filepath.Base(path), err)
	}

	return nil
}
