// Package catalog discovers the patterns in a content directory and keeps
// them current while the directory changes.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/areumknits/patternview"
)

// Directories never scanned for catalog entries.
var skipDirs = []string{"node_modules", "vendor", "dist", "build", "testdata"}

// Catalog is the set of patterns found under one directory, keyed by slug.
// It is safe for concurrent use.
type Catalog struct {
	dir string
	log *zap.Logger

	mu       sync.RWMutex
	patterns map[string]*patternview.Pattern
	files    map[string]string // relative file path -> slug
}

// New returns an empty catalog rooted at dir.
func New(dir string, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		dir:      dir,
		log:      logger.Named("catalog"),
		patterns: make(map[string]*patternview.Pattern),
		files:    make(map[string]string),
	}
}

// Dir is the catalog's root directory.
func (c *Catalog) Dir() string { return c.dir }

// Discover scans the directory and replaces the catalog's contents. Entries
// that fail to parse are skipped; their errors are returned together after
// every readable entry has been loaded.
func (c *Catalog) Discover() error {
	patterns := make(map[string]*patternview.Pattern)
	files := make(map[string]string)
	var errs error

	walkErr := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != c.dir && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || slices.Contains(skipDirs, name)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isEntry(path) {
			return nil
		}

		rel, err := filepath.Rel(c.dir, path)
		if err != nil {
			return err
		}
		p, err := patternview.ParseFile(path)
		if err != nil {
			errs = multierr.Append(errs, err)
			return nil
		}
		if other, dup := patterns[p.Slug]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: slug %q already used by %s", rel, p.Slug, other.SourceFile))
			return nil
		}
		patterns[p.Slug] = p
		files[rel] = p.Slug
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("scan catalog %s: %w", c.dir, walkErr)
	}

	c.mu.Lock()
	c.patterns, c.files = patterns, files
	c.mu.Unlock()

	c.log.Info("catalog discovered", zap.String("dir", c.dir), zap.Int("patterns", len(patterns)))
	return errs
}

// Reload re-reads one entry, given relative to the catalog directory. A
// file that no longer exists is dropped and (nil, nil) is returned.
func (c *Catalog) Reload(rel string) (*patternview.Pattern, error) {
	path := filepath.Join(c.dir, rel)
	p, err := patternview.ParseFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Remove(rel)
			return nil, nil
		}
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.files[rel]; ok && old != p.Slug {
		delete(c.patterns, old)
	}
	if other, dup := c.patterns[p.Slug]; dup && other.SourceFile != p.SourceFile {
		return nil, fmt.Errorf("%s: slug %q already used by %s", rel, p.Slug, other.SourceFile)
	}
	c.patterns[p.Slug] = p
	c.files[rel] = p.Slug
	return p, nil
}

// Remove drops the entry read from rel, returning its slug.
func (c *Catalog) Remove(rel string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slug, ok := c.files[rel]
	if !ok {
		return "", false
	}
	delete(c.files, rel)
	delete(c.patterns, slug)
	return slug, true
}

// Get returns the pattern with the given slug.
func (c *Catalog) Get(slug string) (*patternview.Pattern, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.patterns[slug]
	return p, ok
}

// Patterns returns every pattern ordered by title, then slug.
func (c *Catalog) Patterns() []*patternview.Pattern {
	c.mu.RLock()
	out := make([]*patternview.Pattern, 0, len(c.patterns))
	for _, p := range c.patterns {
		out = append(out, p)
	}
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b *patternview.Pattern) int {
		if n := strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); n != 0 {
			return n
		}
		return strings.Compare(a.Slug, b.Slug)
	})
	return out
}

// Len is the number of patterns.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.patterns)
}

func isEntry(path string) bool {
	return filepath.Ext(path) == ".md" && !strings.HasPrefix(filepath.Base(path), "_")
}
