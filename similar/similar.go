// Package similar clusters visually near-identical images.
//
// Images are first bucketed by identical fingerprint, which is linear. Only
// the images left alone in their bucket go through the all-pairs fuzzy pass,
// and that pass is skipped entirely above a configurable size.
package similar

import (
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/luinbytes/recovery-dedup/perceptual"
	"github.com/luinbytes/recovery-dedup/scan"
)

// Defaults match the recovery workflow: 10 bits tolerates messaging-app
// recompression, 5000 singletons is ~12.5M comparisons.
const (
	DefaultMaxDistance = 10
	DefaultFuzzyCap    = 5000
)

// Reason codes.
const (
	ReasonKeptLargest  = "kept_largest_of_group"
	ReasonFuzzySkipped = "fuzzy_skipped_over_cap"
	reasonSimilarTo    = "similar_to_kept_"
)

// Image is a fingerprinted file.
type Image struct {
	File        scan.FileRecord
	Fingerprint perceptual.Fingerprint
}

// Member is a group member with its distance to the survivor.
type Member struct {
	Image
	Distance int
}

// DeleteReason is the audit reason for a non-surviving member.
func (m Member) DeleteReason() string {
	return reasonSimilarTo + strconv.Itoa(m.Distance)
}

// Group is a connected set of similar images with one survivor.
type Group struct {
	Survivor Member
	Others   []Member
}

// Options tune the clusterer.
type Options struct {
	MaxDistance int
	FuzzyCap    int
	Logger      zerolog.Logger
}

// Result is the outcome of one clustering run.
type Result struct {
	Groups []Group

	// Skipped holds the singletons left out because the fuzzy cap tripped.
	Skipped []Image

	ExactGroups int
	Singletons  int
	Comparisons int
}

// Cluster groups images whose fingerprints are identical or transitively
// within opts.MaxDistance of each other.
func Cluster(images []Image, opts Options) Result {
	var res Result

	sorted := make([]Image, len(images))
	copy(sorted, images)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].File.Seq < sorted[j].File.Seq })

	// Tier 1: identical fingerprints.
	buckets := make(map[perceptual.Fingerprint][]Image)
	var order []perceptual.Fingerprint
	for _, img := range sorted {
		if _, ok := buckets[img.Fingerprint]; !ok {
			order = append(order, img.Fingerprint)
		}
		buckets[img.Fingerprint] = append(buckets[img.Fingerprint], img)
	}

	var singletons []Image
	for _, fp := range order {
		b := buckets[fp]
		if len(b) == 1 {
			singletons = append(singletons, b[0])
			continue
		}
		res.Groups = append(res.Groups, decide(b))
		res.ExactGroups++
	}
	res.Singletons = len(singletons)

	// Tier 2: capped fuzzy pass over singletons.
	switch {
	case len(singletons) > opts.FuzzyCap:
		opts.Logger.Warn().
			Int("singletons", len(singletons)).
			Int("fuzzy_cap", opts.FuzzyCap).
			Msg("fuzzy pass skipped: too many singletons, raise the cap to compare them")
		res.Skipped = singletons
	case len(singletons) > 1:
		ds := newDisjointSet(len(singletons))
		for i := 0; i < len(singletons); i++ {
			for j := i + 1; j < len(singletons); j++ {
				res.Comparisons++
				if perceptual.Distance(singletons[i].Fingerprint, singletons[j].Fingerprint) <= opts.MaxDistance {
					ds.union(i, j)
				}
			}
		}
		for _, comp := range ds.components() {
			if len(comp) < 2 {
				continue
			}
			members := make([]Image, len(comp))
			for k, idx := range comp {
				members[k] = singletons[idx]
			}
			res.Groups = append(res.Groups, decide(members))
		}
	}

	sort.SliceStable(res.Groups, func(i, j int) bool {
		return firstSeq(res.Groups[i]) < firstSeq(res.Groups[j])
	})

	opts.Logger.Info().
		Int("images", len(images)).
		Int("exact_groups", res.ExactGroups).
		Int("singletons", res.Singletons).
		Int("comparisons", res.Comparisons).
		Int("groups", len(res.Groups)).
		Msg("clustering complete")
	return res
}

// decide picks the largest member as survivor. members must be in scan
// order, so equal sizes keep the earliest file.
func decide(members []Image) Group {
	best := 0
	for i, m := range members {
		if m.File.SizeBytes > members[best].File.SizeBytes {
			best = i
		}
	}

	survivor := members[best]
	g := Group{Survivor: Member{Image: survivor}}
	for i, m := range members {
		if i == best {
			continue
		}
		g.Others = append(g.Others, Member{
			Image:    m,
			Distance: perceptual.Distance(m.Fingerprint, survivor.Fingerprint),
		})
	}
	return g
}

func firstSeq(g Group) int {
	seq := g.Survivor.File.Seq
	for _, m := range g.Others {
		if m.File.Seq < seq {
			seq = m.File.Seq
		}
	}
	return seq
}
