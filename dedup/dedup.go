// Package dedup finds byte-identical files among scanned records.
//
// Hashing is only paid for files that share their size with at least one
// other file: a file with a unique size cannot have a duplicate.
package dedup

import (
	"context"
	"runtime"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/luinbytes/recovery-dedup/scan"
	"github.com/luinbytes/recovery-dedup/storage"
)

// HashPrefixLen is the number of hex characters of a hash used in reasons.
const HashPrefixLen = 12

// Group is a set of at least two byte-identical files. Files are in scan
// order; the first one is the survivor.
type Group struct {
	Hash  ContentHash
	Files []scan.FileRecord
}

// Survivor returns the file that is kept.
func (g Group) Survivor() scan.FileRecord {
	return g.Files[0]
}

// Duplicates returns the files marked for deletion.
func (g Group) Duplicates() []scan.FileRecord {
	return g.Files[1:]
}

// KeepReason is the audit reason for the survivor.
func (g Group) KeepReason() string {
	return "original_hash_" + g.Hash.Prefix(HashPrefixLen)
}

// DeleteReason is the audit reason for every duplicate.
func (g Group) DeleteReason() string {
	return "duplicate_of_" + g.Hash.Prefix(HashPrefixLen)
}

// Failure is a file that could not be hashed and was left out of grouping.
type Failure struct {
	File scan.FileRecord
	Err  error
}

// Result is the outcome of one detection pass.
type Result struct {
	Groups     []Group
	Failures   []Failure
	Total      int // records considered
	Candidates int // records in a size bucket of two or more
	Hashed     int
}

// Detector runs the exact-duplicate pass.
type Detector struct {
	Opener  storage.Opener
	Workers int
	Logger  zerolog.Logger

	// Progress, when set, is called after each hashed file.
	Progress func(done, total int)
}

// BucketBySize groups records by size.
func BucketBySize(records []scan.FileRecord) map[int64][]scan.FileRecord {
	buckets := make(map[int64][]scan.FileRecord)
	for _, r := range records {
		buckets[r.SizeBytes] = append(buckets[r.SizeBytes], r)
	}
	return buckets
}

// Candidates returns, in scan order, every record whose size is shared with
// another record.
func Candidates(records []scan.FileRecord) []scan.FileRecord {
	var out []scan.FileRecord
	for _, bucket := range BucketBySize(records) {
		if len(bucket) > 1 {
			out = append(out, bucket...)
		}
	}
	sortBySeq(out)
	return out
}

// Detect buckets records by size, hashes the colliding ones and groups them
// by content hash.
func (d *Detector) Detect(ctx context.Context, records []scan.FileRecord) (Result, error) {
	res := Result{Total: len(records)}

	candidates := Candidates(records)
	res.Candidates = len(candidates)
	d.Logger.Info().
		Int("files", res.Total).
		Int("candidates", res.Candidates).
		Msg("size buckets built")

	hashes, errs, err := d.hashAll(ctx, candidates)
	if err != nil {
		return res, err
	}

	// Files are only ever compared inside their size bucket.
	type key struct {
		size int64
		hash ContentHash
	}
	byHash := make(map[key][]scan.FileRecord)
	for i, rec := range candidates {
		if errs[i] != nil {
			res.Failures = append(res.Failures, Failure{File: rec, Err: errs[i]})
			continue
		}
		res.Hashed++
		k := key{size: rec.SizeBytes, hash: hashes[i]}
		byHash[k] = append(byHash[k], rec)
	}

	for k, files := range byHash {
		if len(files) < 2 {
			continue
		}
		sortBySeq(files)
		res.Groups = append(res.Groups, Group{Hash: k.hash, Files: files})
	}
	sort.Slice(res.Groups, func(i, j int) bool {
		return res.Groups[i].Files[0].Seq < res.Groups[j].Files[0].Seq
	})

	d.Logger.Info().
		Int("hashed", res.Hashed).
		Int("failures", len(res.Failures)).
		Int("groups", len(res.Groups)).
		Msg("hash groups built")
	return res, nil
}

// hashAll hashes every candidate on a bounded pool. Results are stored by
// index so the caller sees them in scan order once every worker is done.
func (d *Detector) hashAll(ctx context.Context, files []scan.FileRecord) ([]ContentHash, []error, error) {
	hashes := make([]ContentHash, len(files))
	errs := make([]error, len(files))
	done := make(chan struct{}, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers())

	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for n := 1; n <= len(files); n++ {
			if _, ok := <-done; !ok {
				return
			}
			if d.Progress != nil {
				d.Progress(n, len(files))
			}
		}
	}()

	for i := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hashes[i], errs[i] = HashFile(gctx, d.Opener, files[i].Path)
			if errs[i] != nil {
				d.Logger.Debug().Err(errs[i]).Str("path", files[i].Path).Msg("hash failed")
			}
			done <- struct{}{}
			return nil
		})
	}

	err := g.Wait()
	close(done)
	<-progressDone
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return hashes, errs, nil
}

func (d *Detector) workers() int {
	if d.Workers > 0 {
		return d.Workers
	}
	return runtime.NumCPU()
}

func sortBySeq(files []scan.FileRecord) {
	sort.SliceStable(files, func(i, j int) bool { return files[i].Seq < files[j].Seq })
}
