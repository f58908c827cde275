package normalize

import (
	"sort"
	"strings"

	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/rules"
)

// breakCycles reports every fragment that can reach itself through use
// rules and empties its body, so evaluation of the rest stays finite
func (n *normalizer) breakCycles(fragments map[string][]rules.Rule) {
	graph := make(map[string][]string, len(fragments))
	for name, body := range fragments {
		graph[name] = uses(body)
	}

	names := make([]string, 0, len(fragments))
	for name := range fragments {
		names = append(names, name)
	}
	sort.Strings(names)

	var cyclic []string
	for _, name := range names {
		cycle := findCycle(graph, name)
		if cycle == nil {
			continue
		}
		cyclic = append(cyclic, name)
		n.fail(diagnostics.ErrFragmentCycle, rules.FragmentPath(name),
			"fragment %q introduces a cycle (%s)", name, strings.Join(cycle, " -> "))
	}
	for _, name := range cyclic {
		fragments[name] = []rules.Rule{}
	}
}

// uses lists the distinct fragments referenced anywhere in body, sorted
func uses(body []rules.Rule) []string {
	seen := map[string]bool{}
	rules.Walk(body, "", func(_ string, r rules.Rule) {
		if u, ok := r.(*rules.UseRule); ok {
			seen[u.Use] = true
		}
	})
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// findCycle returns start -> ... -> start when start reaches itself
func findCycle(graph map[string][]string, start string) []string {
	visited := map[string]bool{}
	var path []string

	var visit func(node string) bool
	visit = func(node string) bool {
		path = append(path, node)
		for _, next := range graph[node] {
			if next == start {
				path = append(path, start)
				return true
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			if visit(next) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}

	visited[start] = true
	if visit(start) {
		return path
	}
	return nil
}
