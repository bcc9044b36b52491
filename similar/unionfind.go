package similar

// disjointSet is a union-find over indices 0..n-1 with union by rank and
// path compression.
type disjointSet struct {
	parent []int
	rank   []uint8
}

func newDisjointSet(n int) *disjointSet {
	ds := &disjointSet{parent: make([]int, n), rank: make([]uint8, n)}
	for i := range ds.parent {
		ds.parent[i] = i
	}
	return ds
}

func (ds *disjointSet) find(x int) int {
	for ds.parent[x] != x {
		ds.parent[x] = ds.parent[ds.parent[x]]
		x = ds.parent[x]
	}
	return x
}

func (ds *disjointSet) union(a, b int) {
	ra, rb := ds.find(a), ds.find(b)
	if ra == rb {
		return
	}
	switch {
	case ds.rank[ra] < ds.rank[rb]:
		ds.parent[ra] = rb
	case ds.rank[ra] > ds.rank[rb]:
		ds.parent[rb] = ra
	default:
		ds.parent[rb] = ra
		ds.rank[ra]++
	}
}

// components returns the member indices of every set, each in ascending
// index order, ordered by their smallest index.
func (ds *disjointSet) components() [][]int {
	byRoot := make(map[int]int)
	var out [][]int
	for i := range ds.parent {
		r := ds.find(i)
		pos, ok := byRoot[r]
		if !ok {
			pos = len(out)
			byRoot[r] = pos
			out = append(out, nil)
		}
		out[pos] = append(out[pos], i)
	}
	return out
}
