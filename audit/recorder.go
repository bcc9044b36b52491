// Package audit records every keep / delete / error decision to a CSV trail
// and applies deletions.
package audit

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/luinbytes/recovery-dedup/scan"
	"github.com/luinbytes/recovery-dedup/storage"
)

const reasonDeleteFailed = "delete_failed_"

// Options configure a Recorder.
type Options struct {
	// DryRun records decisions without touching the filesystem.
	DryRun bool
	// Remover is required unless DryRun is set.
	Remover storage.Remover
	Logger  zerolog.Logger
}

// Recorder is the single writer of an audit trail and its counters.
// It is not safe for concurrent use.
type Recorder struct {
	opts   Options
	out    io.Closer
	csv    *csv.Writer
	total  PurgeStats
	byDir  map[string]*PurgeStats
	dirSeq []string
}

// Create opens a new report at path and writes the header. The file must
// not exist yet.
func Create(path string, opts Options) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	r, err := NewRecorder(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.out = f
	return r, nil
}

// NewRecorder writes the header to w and returns a Recorder appending to it.
func NewRecorder(w io.Writer, opts Options) (*Recorder, error) {
	if !opts.DryRun && opts.Remover == nil {
		return nil, errors.New("audit: a real run needs a remover")
	}
	r := &Recorder{
		opts:  opts,
		csv:   csv.NewWriter(w),
		byDir: make(map[string]*PurgeStats),
	}
	if err := r.write(header); err != nil {
		return nil, err
	}
	return r, nil
}

// DryRun reports whether the recorder leaves files untouched.
func (r *Recorder) DryRun() bool { return r.opts.DryRun }

// Scanned counts a file seen by the scanner.
func (r *Recorder) Scanned(rec scan.FileRecord) {
	r.total.Scanned++
	r.folder(rec).Scanned++
}

// Keep records a survivor.
func (r *Recorder) Keep(rec scan.FileRecord, reason string) error {
	if err := r.append(rec, ActionKeep, reason); err != nil {
		return err
	}
	for _, s := range []*PurgeStats{&r.total, r.folder(rec)} {
		s.Kept++
		s.KeptBytes += rec.SizeBytes
	}
	return nil
}

// Error records a file that could not be examined or removed. It is never
// deleted.
func (r *Recorder) Error(rec scan.FileRecord, reason string) error {
	if err := r.append(rec, ActionError, reason); err != nil {
		return err
	}
	r.total.Errors++
	r.folder(rec).Errors++
	return nil
}

// Delete removes rec, unless this is a dry run, and records the outcome. A
// failed removal is recorded as an error row and the file stays on disk.
// Only a cancelled context or a failing report write is returned.
func (r *Recorder) Delete(ctx context.Context, rec scan.FileRecord, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !r.opts.DryRun {
		if err := r.opts.Remover.DeleteFile(ctx, rec.Path); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.opts.Logger.Warn().Err(err).Str("path", rec.Path).Msg("delete failed, file kept")
			return r.Error(rec, reasonDeleteFailed+reason)
		}
	}

	if err := r.append(rec, ActionDelete, reason); err != nil {
		return err
	}
	for _, s := range []*PurgeStats{&r.total, r.folder(rec)} {
		s.Deleted++
		s.DeletedBytes += rec.SizeBytes
	}
	return nil
}

// Summary returns a copy of the counters.
func (r *Recorder) Summary() Summary {
	s := Summary{Total: r.total, Folders: make([]FolderStats, 0, len(r.dirSeq))}
	for _, dir := range r.dirSeq {
		s.Folders = append(s.Folders, FolderStats{Folder: dir, PurgeStats: *r.byDir[dir]})
	}
	return s
}

// Close flushes and, when the Recorder owns the file, closes it.
func (r *Recorder) Close() error {
	r.csv.Flush()
	err := r.csv.Error()
	if r.out != nil {
		if cerr := r.out.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (r *Recorder) append(rec scan.FileRecord, action Action, reason string) error {
	row := Record{
		Action:    action,
		DryRun:    r.opts.DryRun,
		Reason:    reason,
		Extension: rec.Extension,
		SizeBytes: rec.SizeBytes,
		Path:      rec.Path,
	}
	r.opts.Logger.Debug().
		Str("action", string(action)).
		Str("reason", reason).
		Str("path", rec.Path).
		Msg("decision")
	return r.write(row.row())
}

// write flushes every row so an interrupted run leaves a usable trail.
func (r *Recorder) write(row []string) error {
	if err := r.csv.Write(row); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	r.csv.Flush()
	if err := r.csv.Error(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (r *Recorder) folder(rec scan.FileRecord) *PurgeStats {
	s, ok := r.byDir[rec.Folder]
	if !ok {
		s = &PurgeStats{}
		r.byDir[rec.Folder] = s
		r.dirSeq = append(r.dirSeq, rec.Folder)
	}
	return s
}
