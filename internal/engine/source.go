package engine

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Unit is one item of source data to protect, addressed by its path
// relative to the source root.
type Unit struct {
	Path string
	Size int64
}

// Source enumerates and opens the data being backed up. The platform's
// document store is the production implementation; tests substitute their
// own.
type Source interface {
	Enumerate(ctx context.Context) ([]Unit, error)
	Open(ctx context.Context, unit Unit) (io.ReadCloser, error)
}

// DirSource walks a directory tree on the local filesystem.
type DirSource struct {
	Root string
}

func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root}
}

func (s *DirSource) Enumerate(ctx context.Context) ([]Unit, error) {
	var units []Unit
	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		units = append(units, Unit{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate source %s: %w", s.Root, err)
	}
	return units, nil
}

func (s *DirSource) Open(_ context.Context, unit Unit) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Root, filepath.FromSlash(unit.Path)))
	if err != nil {
		return nil, fmt.Errorf("failed to open source unit %s: %w", unit.Path, err)
	}
	return f, nil
}

// Excluded reports whether a unit path matches any of the exclusion
// patterns. A pattern excludes by glob match or by path prefix, so
// "drafts/*.tmp" and "archive/" both work.
func Excluded(unitPath string, patterns []string) bool {
	for _, pattern := range patterns {
		pattern = strings.TrimSuffix(pattern, "/")
		if pattern == "" {
			continue
		}
		if ok, err := path.Match(pattern, unitPath); err == nil && ok {
			return true
		}
		if unitPath == pattern || strings.HasPrefix(unitPath, pattern+"/") {
			return true
		}
	}
	return false
}

// ValidatePatterns rejects exclusion patterns that glob matching cannot
// parse, so malformed settings are caught at the write boundary instead of
// mid-run.
func ValidatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("empty exclusion pattern")
		}
		if _, err := path.Match(strings.TrimSuffix(pattern, "/"), "probe"); err != nil {
			return fmt.Errorf("invalid exclusion pattern %q: %w", pattern, err)
		}
	}
	return nil
}
