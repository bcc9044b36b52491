package audit

import (
	"fmt"
	"sort"
)

// Diff is a path whose decision differs between two reports. A nil side
// means the path is missing from that report.
type Diff struct {
	Path string
	Dry  *Record
	Real *Record
}

func (d Diff) String() string {
	describe := func(r *Record) string {
		if r == nil {
			return "absent"
		}
		return fmt.Sprintf("%s/%s", r.Action, r.Reason)
	}
	return fmt.Sprintf("%s: dry-run %s, real %s", d.Path, describe(d.Dry), describe(d.Real))
}

// Compare reports every path where the dry-run and real reports disagree on
// action, reason or size. The dry_run column is ignored. An empty result
// means the dry run predicted the real run exactly.
func Compare(dry, actual []Record) []Diff {
	index := func(rs []Record) map[string]*Record {
		m := make(map[string]*Record, len(rs))
		for i := range rs {
			m[rs[i].Path] = &rs[i]
		}
		return m
	}
	d, r := index(dry), index(actual)

	paths := make(map[string]struct{}, len(d)+len(r))
	for p := range d {
		paths[p] = struct{}{}
	}
	for p := range r {
		paths[p] = struct{}{}
	}

	var diffs []Diff
	for p := range paths {
		a, b := d[p], r[p]
		if a != nil && b != nil && sameDecision(*a, *b) {
			continue
		}
		diffs = append(diffs, Diff{Path: p, Dry: a, Real: b})
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Path < diffs[j].Path })
	return diffs
}

func sameDecision(a, b Record) bool {
	return a.Action == b.Action &&
		a.Reason == b.Reason &&
		a.Extension == b.Extension &&
		a.SizeBytes == b.SizeBytes
}
