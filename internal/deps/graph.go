package deps

import "github.com/HendryAvila/agencyops/internal/store"

// graph is the dependency arena of one project: task IDs are mapped to
// dense indexes and blockedBy[i] lists the indexes blocking task i.
type graph struct {
	ids       []string
	index     map[string]int
	blockedBy [][]int
}

func newGraph(ids []string, edges []store.Edge) *graph {
	g := &graph{
		ids:       ids,
		index:     make(map[string]int, len(ids)),
		blockedBy: make([][]int, len(ids)),
	}
	for i, id := range ids {
		g.index[id] = i
	}
	for _, e := range edges {
		blocker, ok1 := g.index[e.BlockerID]
		blocked, ok2 := g.index[e.BlockedID]
		if !ok1 || !ok2 {
			continue
		}
		g.blockedBy[blocked] = append(g.blockedBy[blocked], blocker)
	}
	return g
}

// dependsOn reports whether from transitively waits on target, following
// blocked_by edges. The returned path runs from -> ... -> target.
func (g *graph) dependsOn(from, target string) ([]string, bool) {
	src, ok1 := g.index[from]
	dst, ok2 := g.index[target]
	if !ok1 || !ok2 {
		return nil, false
	}

	visited := make([]bool, len(g.ids))
	parent := make([]int, len(g.ids))
	for i := range parent {
		parent[i] = -1
	}

	stack := []int{src}
	visited[src] = true
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if u == dst {
			return g.path(parent, dst), true
		}
		for _, v := range g.blockedBy[u] {
			if !visited[v] {
				visited[v] = true
				parent[v] = u
				stack = append(stack, v)
			}
		}
	}
	return nil, false
}

func (g *graph) path(parent []int, end int) []string {
	var rev []string
	for cur := end; cur != -1; cur = parent[cur] {
		rev = append(rev, g.ids[cur])
	}
	out := make([]string, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}
