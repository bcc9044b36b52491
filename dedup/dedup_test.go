package dedup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luinbytes/recovery-dedup/scan"
	"github.com/luinbytes/recovery-dedup/storage"
)

// countingOpener records every path opened for hashing.
type countingOpener struct {
	storage.Opener
	mu     sync.Mutex
	opened map[string]int
	fail   map[string]bool
}

func newCountingOpener(t *testing.T) *countingOpener {
	p, err := storage.NewLocalProvider(t.TempDir())
	require.NoError(t, err)
	return &countingOpener{Opener: p, opened: map[string]int{}, fail: map[string]bool{}}
}

func (o *countingOpener) OpenFile(ctx context.Context, path string) (storage.Reader, error) {
	o.mu.Lock()
	o.opened[path]++
	fail := o.fail[path]
	o.mu.Unlock()
	if fail {
		return nil, errors.New("input/output error")
	}
	return o.Opener.OpenFile(ctx, path)
}

func scanTree(t *testing.T, root string) []scan.FileRecord {
	t.Helper()
	s := &scan.Scanner{Logger: zerolog.Nop()}
	records, err := s.Scan(context.Background(), scan.ListRecoveryDirs(root, scan.DefaultPrefix, nil))
	require.NoError(t, err)
	return records
}

func put(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	// Larger than one chunk so the streaming loop runs more than once.
	content := bytes.Repeat([]byte("Hello, World!"), chunkSize/4)
	put(t, path, content)

	p, err := storage.NewLocalProvider(dir)
	require.NoError(t, err)

	got, err := HashFile(context.Background(), p, path)
	require.NoError(t, err)
	assert.Equal(t, ContentHash(sha256.Sum256(content)), got)
	assert.Len(t, got.String(), 64)
	assert.Equal(t, got.String()[:12], got.Prefix(12))
	assert.Equal(t, got.String(), got.Prefix(100))

	_, err = HashFile(context.Background(), p, filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

// a.jpg and b.jpg are identical, c.jpg has a unique size.
func TestDetectExampleScenario(t *testing.T) {
	root := t.TempDir()
	dup := bytes.Repeat([]byte{0xAB}, 10000)
	put(t, filepath.Join(root, "recup_dir.1", "a.jpg"), dup)
	put(t, filepath.Join(root, "recup_dir.1", "b.jpg"), dup)
	put(t, filepath.Join(root, "recup_dir.1", "c.jpg"), bytes.Repeat([]byte{0x01}, 9000))

	opener := newCountingOpener(t)
	d := &Detector{Opener: opener, Workers: 2, Logger: zerolog.Nop()}
	res, err := d.Detect(context.Background(), scanTree(t, root))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 2, res.Hashed)
	require.Len(t, res.Groups, 1)

	g := res.Groups[0]
	assert.Equal(t, "a.jpg", g.Survivor().Name)
	require.Len(t, g.Duplicates(), 1)
	assert.Equal(t, "b.jpg", g.Duplicates()[0].Name)

	h := sha256.Sum256(dup)
	prefix := ContentHash(h).String()[:12]
	assert.Equal(t, "original_hash_"+prefix, g.KeepReason())
	assert.Equal(t, "duplicate_of_"+prefix, g.DeleteReason())

	assert.Zero(t, opener.opened[filepath.Join(root, "recup_dir.1", "c.jpg")], "unique size must never be hashed")
}

func TestDetectOnlyHashesSizeCollisions(t *testing.T) {
	root := t.TempDir()
	for i, size := range []int{1, 2, 3, 4, 5} {
		put(t, filepath.Join(root, "recup_dir.1", string(rune('a'+i))+".bin"), make([]byte, size))
	}
	// Same size, different content.
	put(t, filepath.Join(root, "recup_dir.2", "x.bin"), []byte("xxxxxx"))
	put(t, filepath.Join(root, "recup_dir.2", "y.bin"), []byte("yyyyyy"))

	opener := newCountingOpener(t)
	d := &Detector{Opener: opener, Logger: zerolog.Nop()}
	res, err := d.Detect(context.Background(), scanTree(t, root))
	require.NoError(t, err)

	assert.Empty(t, res.Groups)
	assert.Equal(t, 2, res.Hashed)
	assert.Len(t, opener.opened, 2)
	for path := range opener.opened {
		assert.True(t, strings.HasSuffix(path, "x.bin") || strings.HasSuffix(path, "y.bin"), path)
	}
}

func TestDetectKeepsExactlyOnePerHash(t *testing.T) {
	root := t.TempDir()
	one := []byte("same content one")
	two := []byte("same content two")
	put(t, filepath.Join(root, "recup_dir.1", "f1"), one)
	put(t, filepath.Join(root, "recup_dir.1", "f2"), two)
	put(t, filepath.Join(root, "recup_dir.2", "f3"), one)
	put(t, filepath.Join(root, "recup_dir.2", "f4"), two)
	put(t, filepath.Join(root, "recup_dir.3", "f5"), one)
	put(t, filepath.Join(root, "recup_dir.3", "f6"), []byte("unique content!!"))

	d := &Detector{Opener: newCountingOpener(t), Workers: 4, Logger: zerolog.Nop()}
	res, err := d.Detect(context.Background(), scanTree(t, root))
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)

	// Groups follow the scan order of their survivors.
	assert.Equal(t, "f1", res.Groups[0].Survivor().Name)
	assert.Len(t, res.Groups[0].Files, 3)
	assert.Equal(t, "f3", res.Groups[0].Files[1].Name)
	assert.Equal(t, "f5", res.Groups[0].Files[2].Name)

	assert.Equal(t, "f2", res.Groups[1].Survivor().Name)
	assert.Len(t, res.Groups[1].Duplicates(), 1)

	for _, g := range res.Groups {
		for _, f := range g.Files {
			assert.NotEqual(t, "f6", f.Name)
		}
	}
}

func TestDetectHashFailureExcludesFile(t *testing.T) {
	root := t.TempDir()
	content := []byte("identical")
	put(t, filepath.Join(root, "recup_dir.1", "a"), content)
	put(t, filepath.Join(root, "recup_dir.1", "b"), content)

	opener := newCountingOpener(t)
	opener.fail[filepath.Join(root, "recup_dir.1", "a")] = true

	d := &Detector{Opener: opener, Logger: zerolog.Nop()}
	res, err := d.Detect(context.Background(), scanTree(t, root))
	require.NoError(t, err)

	assert.Empty(t, res.Groups, "the only copy left cannot be a duplicate of itself")
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "a", res.Failures[0].File.Name)
	assert.Equal(t, 1, res.Hashed)
}

func TestDetectCancelled(t *testing.T) {
	root := t.TempDir()
	put(t, filepath.Join(root, "recup_dir.1", "a"), []byte("1"))
	put(t, filepath.Join(root, "recup_dir.1", "b"), []byte("1"))
	records := scanTree(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &Detector{Opener: newCountingOpener(t), Logger: zerolog.Nop()}
	_, err := d.Detect(ctx, records)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectReportsProgress(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"a", "b", "c"} {
		put(t, filepath.Join(root, "recup_dir.1", n), []byte("zz"))
	}

	var mu sync.Mutex
	var calls []int
	d := &Detector{
		Opener: newCountingOpener(t),
		Logger: zerolog.Nop(),
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 3, total)
			calls = append(calls, done)
		},
	}
	_, err := d.Detect(context.Background(), scanTree(t, root))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestBucketBySize(t *testing.T) {
	records := []scan.FileRecord{
		{Path: "/r/1", SizeBytes: 100, Seq: 0},
		{Path: "/r/2", SizeBytes: 100, Seq: 1},
		{Path: "/r/3", SizeBytes: 200, Seq: 2},
		{Path: "/r/4", SizeBytes: 100, Seq: 3},
	}

	buckets := BucketBySize(records)
	assert.Len(t, buckets, 2)
	assert.Len(t, buckets[100], 3)
	assert.Len(t, buckets[200], 1)

	cands := Candidates(records)
	require.Len(t, cands, 3)
	assert.Equal(t, []int{0, 1, 3}, []int{cands[0].Seq, cands[1].Seq, cands[2].Seq})
}

func BenchmarkHashFile(b *testing.B) {
	dir := b.TempDir()
	path := filepath.Join(dir, "test.bin")
	if err := os.WriteFile(path, make([]byte, 1024*1024), 0644); err != nil {
		b.Fatalf("Failed to create test file: %v", err)
	}
	p, _ := storage.NewLocalProvider(dir)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = HashFile(context.Background(), p, path)
	}
}
