package feeds

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source names the component a feed section draws from.
type Source string

const (
	SourcePopular      Source = "popular"
	SourceTrending     Source = "trending"
	SourcePersonalized Source = "personalized"
)

// ValidSource reports whether s is a known section source.
func ValidSource(s Source) bool {
	switch s {
	case SourcePopular, SourceTrending, SourcePersonalized:
		return true
	}
	return false
}

const defaultSectionLimit = 10

// Section defines one independently computed, independently paginated
// homepage feed. Sections are loaded at startup from YAML files and
// fingerprinted for change detection. No hot reload.
type Section struct {
	Name        string `yaml:"name"`
	Source      Source `yaml:"source"`
	Limit       int    `yaml:"limit"`
	Position    int    `yaml:"position"`
	Fingerprint string // SHA-256 of the raw YAML file; computed at load time
}

// rawSection is the on-disk YAML shape. Limit and position are optional.
type rawSection struct {
	Name     string `yaml:"name"`
	Source   string `yaml:"source"`
	Limit    int    `yaml:"limit"`
	Position int    `yaml:"position"`
}

// DefaultLayout is the built-in section layout used when no definition
// files are configured: trending, personalized, popular.
func DefaultLayout() []Section {
	return []Section{
		{Name: "trending", Source: SourceTrending, Limit: defaultSectionLimit, Position: 0},
		{Name: "personalized", Source: SourcePersonalized, Limit: defaultSectionLimit, Position: 1},
		{Name: "popular", Source: SourcePopular, Limit: defaultSectionLimit, Position: 2},
	}
}

// Repository provides the feed section layout.
type Repository interface {
	// Get returns the section with the given name, or an error if not found.
	Get(name string) (*Section, error)

	// Sections returns all sections ordered by position.
	Sections() []Section
}

// FileSystemRepository loads feed sections from *.yaml files in a
// directory. Each file contains exactly one section at the top level.
// A missing directory is valid and yields the default layout.
type FileSystemRepository struct {
	dir      string
	sections map[string]Section // keyed by Name
}

// NewFileSystemRepository creates a repository and eagerly loads all
// section files from dir. Returns an error if any file is malformed.
func NewFileSystemRepository(dir string) (*FileSystemRepository, error) {
	repo := &FileSystemRepository{
		dir:      dir,
		sections: make(map[string]Section),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	if len(repo.sections) == 0 {
		for _, s := range DefaultLayout() {
			repo.sections[s.Name] = s
		}
	}
	return repo, nil
}

func (r *FileSystemRepository) load() error {
	if r.dir == "" {
		return nil
	}

	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil // no section directory; the default layout applies
	}
	if err != nil {
		return fmt.Errorf("feed section dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("feed section path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading feed section dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading section file %s: %w", path, err)
		}

		var raw rawSection
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing section file %s: %w", path, err)
		}
		if raw.Name == "" {
			continue // skip empty / comment-only files
		}

		if !ValidSource(Source(raw.Source)) {
			return fmt.Errorf("section %q: unsupported source %q", raw.Name, raw.Source)
		}
		if raw.Limit < 0 {
			return fmt.Errorf("section %q: limit must be >= 0", raw.Name)
		}
		if raw.Limit == 0 {
			raw.Limit = defaultSectionLimit
		}

		if _, exists := r.sections[raw.Name]; exists {
			return fmt.Errorf("section %q: duplicate section name (check multiple YAML files)", raw.Name)
		}

		r.sections[raw.Name] = Section{
			Name:        raw.Name,
			Source:      Source(raw.Source),
			Limit:       raw.Limit,
			Position:    raw.Position,
			Fingerprint: fmt.Sprintf("%x", sha256.Sum256(data)),
		}
	}
	return nil
}

// Get returns the section with the given name, or an error if not found.
func (r *FileSystemRepository) Get(name string) (*Section, error) {
	s, ok := r.sections[name]
	if !ok {
		return nil, fmt.Errorf("feed section %q not found", name)
	}
	return &s, nil
}

// Sections returns all sections ordered by position, then name.
func (r *FileSystemRepository) Sections() []Section {
	out := make([]Section, 0, len(r.sections))
	for _, s := range r.sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Name < out[j].Name
	})
	return out
}
