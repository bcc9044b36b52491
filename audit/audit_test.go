package audit

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luinbytes/recovery-dedup/scan"
	"github.com/luinbytes/recovery-dedup/storage"
)

type failingRemover struct{ err error }

func (f failingRemover) DeleteFile(context.Context, string) error { return f.err }

// fixture lays out two recovery folders and returns their records.
func fixture(t *testing.T) (string, []scan.FileRecord) {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"recup_dir.1/a.jpg": "aaaa",
		"recup_dir.1/b.jpg": "aaaa",
		"recup_dir.2/c.jpg": "aaaa",
		"recup_dir.2/d.pdf": "dd",
	}
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	s := &scan.Scanner{Logger: zerolog.Nop()}
	records, err := s.Scan(context.Background(), scan.ListRecoveryDirs(root, scan.DefaultPrefix, nil))
	require.NoError(t, err)
	require.Len(t, records, 4)
	return root, records
}

// play feeds the same decisions to a recorder: keep a, delete b and c.
func play(t *testing.T, r *Recorder, records []scan.FileRecord) {
	t.Helper()
	ctx := context.Background()
	for _, rec := range records {
		r.Scanned(rec)
	}
	require.NoError(t, r.Keep(records[0], "original_hash_abc"))
	require.NoError(t, r.Delete(ctx, records[1], "duplicate_of_abc"))
	require.NoError(t, r.Delete(ctx, records[2], "duplicate_of_abc"))
}

func TestRecorderWritesHeaderAndFlushesEachRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deduplicate_20240101_000000.csv")
	r, err := Create(path, Options{DryRun: true, Logger: zerolog.Nop()})
	require.NoError(t, err)

	rec := scan.FileRecord{Path: "/r/recup_dir.1/x.png", Extension: ".png", SizeBytes: 42}
	require.NoError(t, r.Keep(rec, "kept_largest_of_group"))

	// Readable before Close.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "action,dry_run,reason,extension,size_bytes,path", lines[0])
	assert.Equal(t, "keep,true,kept_largest_of_group,.png,42,/r/recup_dir.1/x.png", lines[1])

	require.NoError(t, r.Close())

	_, err = Create(path, Options{DryRun: true})
	assert.Error(t, err, "an existing report is never overwritten")
}

func TestRecorderDryRunMatchesRealRun(t *testing.T) {
	root, records := fixture(t)
	reports := t.TempDir()

	dryPath := filepath.Join(reports, "dry.csv")
	dry, err := Create(dryPath, Options{DryRun: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	play(t, dry, records)
	require.NoError(t, dry.Close())

	for _, rec := range records {
		assert.FileExists(t, rec.Path, "dry run must not touch the filesystem")
	}

	provider, err := storage.NewLocalProvider(scan.ListRecoveryDirs(root, scan.DefaultPrefix, nil)...)
	require.NoError(t, err)
	realPath := filepath.Join(reports, "real.csv")
	live, err := Create(realPath, Options{Remover: provider, Logger: zerolog.Nop()})
	require.NoError(t, err)
	play(t, live, records)
	require.NoError(t, live.Close())

	assert.FileExists(t, records[0].Path)
	assert.NoFileExists(t, records[1].Path)
	assert.NoFileExists(t, records[2].Path)
	assert.FileExists(t, records[3].Path)

	assert.Equal(t, dry.Summary(), live.Summary())

	dryRows, err := ReadReport(dryPath)
	require.NoError(t, err)
	realRows, err := ReadReport(realPath)
	require.NoError(t, err)
	require.Len(t, dryRows, 3)
	assert.True(t, dryRows[0].DryRun)
	assert.False(t, realRows[0].DryRun)
	assert.Empty(t, Compare(dryRows, realRows))
}

func TestRecorderSummary(t *testing.T) {
	_, records := fixture(t)
	r, err := NewRecorder(&bytes.Buffer{}, Options{DryRun: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	play(t, r, records)
	require.NoError(t, r.Error(records[3], "unreadable_file"))

	s := r.Summary()
	assert.Equal(t, PurgeStats{Scanned: 4, Deleted: 2, Kept: 1, Errors: 1, DeletedBytes: 8, KeptBytes: 4}, s.Total)
	require.Len(t, s.Folders, 2)
	assert.Equal(t, records[0].Folder, s.Folders[0].Folder)
	assert.Equal(t, PurgeStats{Scanned: 2, Deleted: 1, Kept: 1, DeletedBytes: 4, KeptBytes: 4}, s.Folders[0].PurgeStats)
	assert.Equal(t, PurgeStats{Scanned: 2, Deleted: 1, Errors: 1, DeletedBytes: 4}, s.Folders[1].PurgeStats)

	var sum PurgeStats
	for _, f := range s.Folders {
		sum.Add(f.PurgeStats)
	}
	assert.Equal(t, s.Total, sum)
}

func TestRecorderDeleteFailureBecomesErrorRow(t *testing.T) {
	_, records := fixture(t)
	var buf bytes.Buffer
	r, err := NewRecorder(&buf, Options{
		Remover: failingRemover{err: errors.New("permission denied")},
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, r.Delete(context.Background(), records[1], "duplicate_of_abc"))
	require.NoError(t, r.Close())

	assert.FileExists(t, records[1].Path)
	assert.Contains(t, buf.String(), "error,false,delete_failed_duplicate_of_abc,.jpg,4,")
	s := r.Summary()
	assert.Equal(t, 1, s.Total.Errors)
	assert.Zero(t, s.Total.Deleted)
	assert.Zero(t, s.Total.DeletedBytes)
}

func TestRecorderRefusesOutsideRecoveryFolders(t *testing.T) {
	_, records := fixture(t)
	provider, err := storage.NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	var buf bytes.Buffer
	r, err := NewRecorder(&buf, Options{Remover: provider, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, r.Delete(context.Background(), records[2], "similar_to_kept_3"))

	assert.FileExists(t, records[2].Path)
	assert.Contains(t, buf.String(), "delete_failed_similar_to_kept_3")
}

func TestRecorderDeleteCancelled(t *testing.T) {
	_, records := fixture(t)
	provider, err := storage.NewLocalProvider(filepath.Dir(records[0].Path))
	require.NoError(t, err)

	var buf bytes.Buffer
	r, err := NewRecorder(&buf, Options{Remover: provider, Logger: zerolog.Nop()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = r.Delete(ctx, records[1], "duplicate_of_abc")
	assert.ErrorIs(t, err, context.Canceled)
	assert.FileExists(t, records[1].Path)
	assert.Equal(t, PurgeStats{}, r.Summary().Total)
	assert.NotContains(t, buf.String(), "duplicate_of_abc")
}

func TestNewRecorderNeedsRemover(t *testing.T) {
	_, err := NewRecorder(&bytes.Buffer{}, Options{})
	assert.Error(t, err)
}

func TestNewReportPath(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

	path, err := NewReportPath(root, "", "purge_similar_images", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "_reports", "purge_similar_images_20240309_140507.csv"), path)
	assert.DirExists(t, filepath.Join(root, "_reports"))

	require.NoError(t, os.WriteFile(path, nil, 0644))
	again, err := NewReportPath(root, "", "purge_similar_images", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "_reports", "purge_similar_images_20240309_140507_2.csv"), again)

	path, err = NewReportPath(root, "audit", "deduplicate", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "audit", "deduplicate_20240309_140507.csv"), path)
}

func TestReadReport(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.csv")
	require.NoError(t, os.WriteFile(good, []byte(
		"action,dry_run,reason,extension,size_bytes,path\n"+
			"delete,True,duplicate_of_0123456789ab,.jpg,10,\"/r/recup_dir.1/a,b.jpg\"\n"), 0644))
	rows, err := ReadReport(good)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Record{
		Action:    ActionDelete,
		DryRun:    true,
		Reason:    "duplicate_of_0123456789ab",
		Extension: ".jpg",
		SizeBytes: 10,
		Path:      "/r/recup_dir.1/a,b.jpg",
	}, rows[0])

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("a,b,c,d,e,f\n"), 0644))
	_, err = ReadReport(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = ReadReport(empty)
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	dry := []Record{
		{Action: ActionKeep, DryRun: true, Reason: "kept_largest_of_group", Path: "/a"},
		{Action: ActionDelete, DryRun: true, Reason: "similar_to_kept_2", Path: "/b"},
		{Action: ActionDelete, DryRun: true, Reason: "similar_to_kept_4", Path: "/c"},
	}
	actual := []Record{
		{Action: ActionKeep, Reason: "kept_largest_of_group", Path: "/a"},
		{Action: ActionError, Reason: "delete_failed_similar_to_kept_2", Path: "/b"},
		{Action: ActionDelete, Reason: "similar_to_kept_1", Path: "/d"},
	}

	diffs := Compare(dry, actual)
	require.Len(t, diffs, 3)
	assert.Equal(t, "/b", diffs[0].Path)
	assert.Equal(t, "/b: dry-run delete/similar_to_kept_2, real error/delete_failed_similar_to_kept_2", diffs[0].String())
	assert.Equal(t, "/c", diffs[1].Path)
	assert.Nil(t, diffs[1].Real)
	assert.Equal(t, "/d", diffs[2].Path)
	assert.Nil(t, diffs[2].Dry)
}
