// Package scan enumerates recovery folders and the files beneath them.
package scan

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultPrefix is the folder-name prefix PhotoRec gives its output folders.
const DefaultPrefix = "recup_dir"

// ErrNoRecoveryFolders is returned when a root holds no folder matching the
// configured prefix. Runs must abort before touching anything.
var ErrNoRecoveryFolders = errors.New("no recovery folders found")

// FileRecord is an immutable snapshot of one regular file taken at scan time.
type FileRecord struct {
	Path      string // absolute path, identity
	Name      string
	SizeBytes int64
	Extension string // lower-cased, with leading dot; empty when absent
	Category  Category
	Folder    string // recovery folder the file was found under
	Seq       int    // position in scan order
}

// ListRecoveryDirs returns the immediate subdirectories of root whose names
// start with prefix, sorted by name. Names in exclude are skipped. A root
// that cannot be listed yields no folders.
func ListRecoveryDirs(root, prefix string, exclude []string) []string {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	skip := toSet(exclude)
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || skip[name] {
			continue
		}
		// Stat through symlinks: a linked recovery folder still counts.
		info, err := os.Stat(filepath.Join(root, name))
		if err != nil || !info.IsDir() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	dirs := make([]string, len(names))
	for i, name := range names {
		dirs[i] = filepath.Join(root, name)
	}
	return dirs
}

// Scanner walks recovery folders and yields FileRecords in a repeatable order.
type Scanner struct {
	// Exclude holds directory names pruned wherever they appear.
	Exclude []string
	Logger  zerolog.Logger
}

// Walk calls fn for every regular file beneath dirs, folder by folder, in
// lexical order. Entries that cannot be listed or stat'ed are skipped.
func (s *Scanner) Walk(ctx context.Context, dirs []string, fn func(FileRecord) error) error {
	skip := toSet(s.Exclude)
	seq := 0

	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			s.Logger.Debug().Err(err).Str("dir", dir).Msg("skipping folder")
			continue
		}

		// WalkDir does not descend into a symlinked root, so walk its target
		// and report paths under the folder as it was named.
		target, err := filepath.EvalSymlinks(abs)
		if err != nil {
			s.Logger.Debug().Err(err).Str("dir", dir).Msg("skipping folder")
			continue
		}

		err = filepath.WalkDir(target, func(walked string, d fs.DirEntry, err error) error {
			path := abs
			if walked != target {
				rel, relErr := filepath.Rel(target, walked)
				if relErr != nil {
					return relErr
				}
				path = filepath.Join(abs, rel)
			}

			if err != nil {
				s.Logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable entry")
				if d != nil && d.IsDir() && path != abs {
					return filepath.SkipDir
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			if d.IsDir() {
				if path != abs && skip[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				s.Logger.Debug().Err(err).Str("path", path).Msg("skipping file")
				return nil
			}

			name := d.Name()
			ext := strings.ToLower(filepath.Ext(name))
			rec := FileRecord{
				Path:      path,
				Name:      name,
				SizeBytes: info.Size(),
				Extension: ext,
				Category:  Classify(ext),
				Folder:    abs,
				Seq:       seq,
			}
			seq++
			return fn(rec)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Scan collects every record beneath dirs.
func (s *Scanner) Scan(ctx context.Context, dirs []string) ([]FileRecord, error) {
	var records []FileRecord
	err := s.Walk(ctx, dirs, func(rec FileRecord) error {
		records = append(records, rec)
		return nil
	})
	return records, err
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
