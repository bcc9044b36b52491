package audit

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultDirname is the folder under the root that receives audit files.
const DefaultDirname = "_reports"

const timestampLayout = "20060102_150405"

var header = []string{"action", "dry_run", "reason", "extension", "size_bytes", "path"}

// Action is the decision recorded for a file.
type Action string

const (
	ActionKeep   Action = "keep"
	ActionDelete Action = "delete"
	ActionError  Action = "error"
)

// Record is one row of the audit trail.
type Record struct {
	Action    Action
	DryRun    bool
	Reason    string
	Extension string
	SizeBytes int64
	Path      string
}

func (r Record) row() []string {
	return []string{
		string(r.Action),
		strconv.FormatBool(r.DryRun),
		r.Reason,
		r.Extension,
		strconv.FormatInt(r.SizeBytes, 10),
		r.Path,
	}
}

// NewReportPath creates <root>/<dirname> if needed and returns the path of a
// fresh report file named after kind and now. A numeric suffix is added when
// a run in the same second already claimed the name.
func NewReportPath(root, dirname, kind string, now time.Time) (string, error) {
	if dirname == "" {
		dirname = DefaultDirname
	}
	dir := filepath.Join(root, dirname)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}
	base := fmt.Sprintf("%s_%s", kind, now.Format(timestampLayout))
	path := filepath.Join(dir, base+".csv")
	for n := 2; ; n++ {
		_, err := os.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.csv", base, n))
	}
}

// ReadReport parses an audit file written by a Recorder.
func ReadReport(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	first, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty report", path)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i, col := range header {
		if first[i] != col {
			return nil, fmt.Errorf("%s: unexpected header %q", path, first)
		}
	}

	var records []Record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		dryRun, err := strconv.ParseBool(row[1])
		if err != nil {
			return nil, fmt.Errorf("%s: bad dry_run %q: %w", path, row[1], err)
		}
		size, err := strconv.ParseInt(row[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad size_bytes %q: %w", path, row[4], err)
		}
		records = append(records, Record{
			Action:    Action(row[0]),
			DryRun:    dryRun,
			Reason:    row[2],
			Extension: row[3],
			SizeBytes: size,
			Path:      row[5],
		})
	}
	return records, nil
}
