// Package cache persists the artifacts discovered during a crawl run so
// later runs can reuse them: the category taxonomy snapshot, the
// subcategory mapping and the resolved selector descriptors. Every file is
// read if present (otherwise treated as empty) and rewritten wholesale.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"catalog-crawler/internal/types"
)

const (
	taxonomyFile      = "taxonomy.json"
	subcategoriesFile = "subcategories.json"
	selectorsFile     = "selectors.json"
)

// TaxonomyEntry is the cached form of a discovered category. Position is
// the category's index in discovery order.
type TaxonomyEntry struct {
	URL      string `json:"url,omitempty"`
	Img      string `json:"img,omitempty"`
	Position int    `json:"position"`
}

// Store keeps the cache files in one directory
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates a store rooted at dir, creating the directory if needed
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the cache directory
func (s *Store) Dir() string {
	return s.dir
}

// Taxonomy returns the last taxonomy snapshot
func (s *Store) Taxonomy() (map[string]TaxonomyEntry, error) {
	out := make(map[string]TaxonomyEntry)
	if err := s.read(taxonomyFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveTaxonomy overwrites the taxonomy snapshot with nodes
func (s *Store) SaveTaxonomy(nodes []types.CategoryNode) error {
	snapshot := make(map[string]TaxonomyEntry, len(nodes))
	for i, n := range nodes {
		if _, ok := snapshot[n.Name]; ok {
			continue
		}
		snapshot[n.Name] = TaxonomyEntry{URL: n.URL, Img: n.ImageRef, Position: i}
	}
	return s.write(taxonomyFile, snapshot)
}

// Subcategories returns the cached subcategory mapping
func (s *Store) Subcategories() (types.SubcategoryMapping, error) {
	out := make(types.SubcategoryMapping)
	if err := s.read(subcategoriesFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveSubcategories records the subcategories of one category and rewrites
// the mapping file
func (s *Store) SaveSubcategories(category string, links []types.SubcategoryLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mapping := make(types.SubcategoryMapping)
	if err := s.readLocked(subcategoriesFile, &mapping); err != nil {
		return err
	}
	if links == nil {
		links = []types.SubcategoryLink{}
	}
	mapping[category] = links
	return s.writeLocked(subcategoriesFile, mapping)
}

// Selectors returns the cached selector descriptors
func (s *Store) Selectors() (map[string]types.ExtractionRuleDescriptor, error) {
	out := make(map[string]types.ExtractionRuleDescriptor)
	if err := s.read(selectorsFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveSelectors overwrites the selector descriptor cache
func (s *Store) SaveSelectors(descriptors map[string]types.ExtractionRuleDescriptor) error {
	return s.write(selectorsFile, descriptors)
}

func (s *Store) read(name string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(name, v)
}

func (s *Store) readLocked(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

func (s *Store) write(name string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(name, v)
}

// writeLocked replaces the file atomically via a temp file in the same directory
func (s *Store) writeLocked(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
