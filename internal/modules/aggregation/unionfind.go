package aggregation

// unionFind tracks connected components over a fixed node set. Members per
// root are kept materialized so the merge guard can inspect cross pairs.
type unionFind struct {
	parent  map[int64]int64
	members map[int64][]int64
}

func newUnionFind(ids []int64) *unionFind {
	uf := &unionFind{
		parent:  make(map[int64]int64, len(ids)),
		members: make(map[int64][]int64, len(ids)),
	}
	for _, id := range ids {
		uf.parent[id] = id
		uf.members[id] = []int64{id}
	}
	return uf
}

func (uf *unionFind) find(id int64) int64 {
	root := id
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[id] != root {
		uf.parent[id], id = root, uf.parent[id]
	}
	return root
}

// union merges the components of a and b unless blocked returns true for any
// cross pair. Reports whether the merge happened.
func (uf *unionFind) union(a, b int64, blocked func(x, y int64) bool) bool {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return true
	}
	if blocked != nil {
		for _, x := range uf.members[ra] {
			for _, y := range uf.members[rb] {
				if blocked(x, y) {
					return false
				}
			}
		}
	}
	// Attach the larger root id under the smaller for stable roots.
	if rb < ra {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.members[ra] = append(uf.members[ra], uf.members[rb]...)
	delete(uf.members, rb)
	return true
}

// components returns root -> member ids. Callers sort as needed.
func (uf *unionFind) components() map[int64][]int64 {
	return uf.members
}
