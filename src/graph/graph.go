package graph

import (
	"sort"

	"github.com/meshworks/tattle/src/journal"
)

// Edge is a directed mention edge with its occurrence count.
type Edge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Weight int    `json:"weight"`
}

// Graph is the directed multigraph derived from a journal snapshot. Nodes are
// every agent that ever sent a message or was ever mentioned; edge weights
// count mention occurrences. A Graph is a pure derivation: building it twice
// from the same snapshot yields identical node sets and edge multisets.
type Graph struct {
	nodes     map[string]struct{}
	adjacency map[string]map[string]int
}

// Build derives a Graph from a journal snapshot, iterating events in log
// order. Each mention event contributes one edge per distinct mentioned
// agent, except self-mentions, which are dropped silently. Direct and
// broadcast events contribute no edges but their senders still join the node
// set.
func Build(events []*journal.Event) *Graph {
	g := &Graph{
		nodes:     map[string]struct{}{},
		adjacency: map[string]map[string]int{},
	}

	for _, ev := range events {
		g.nodes[ev.From] = struct{}{}

		if ev.Kind != journal.Mention {
			continue
		}

		// Mentions are deduplicated at event construction; dedup again here
		// so a hand-built event cannot double an edge.
		seen := map[string]struct{}{}
		for _, m := range ev.Mentions {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}

			g.nodes[m] = struct{}{}

			if m == ev.From {
				continue
			}

			row, ok := g.adjacency[ev.From]
			if !ok {
				row = map[string]int{}
				g.adjacency[ev.From] = row
			}
			row[m]++
		}
	}

	return g
}

// Nodes returns the node set in sorted order.
func (g *Graph) Nodes() []string {
	res := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		res = append(res, n)
	}
	sort.Strings(res)
	return res
}

// Edges returns the weighted edges sorted by (from, to).
func (g *Graph) Edges() []Edge {
	res := []Edge{}
	for from, row := range g.adjacency {
		for to, w := range row {
			res = append(res, Edge{From: from, To: to, Weight: w})
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].From != res[j].From {
			return res[i].From < res[j].From
		}
		return res[i].To < res[j].To
	})
	return res
}

// Weight returns the number of from->to mention edges.
func (g *Graph) Weight(from, to string) int {
	return g.adjacency[from][to]
}

// EdgeCount returns the total edge weight of the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, row := range g.adjacency {
		for _, w := range row {
			count += w
		}
	}
	return count
}

// Matrix returns the weighted adjacency matrix, with rows as senders and
// columns as mentioned agents, together with the node-to-index mapping. Nodes
// are indexed in sorted order so the matrix is deterministic.
func (g *Graph) Matrix() ([][]float64, map[string]int) {
	nodes := g.Nodes()
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	matrix := make([][]float64, len(nodes))
	for i := range matrix {
		matrix[i] = make([]float64, len(nodes))
	}

	for from, row := range g.adjacency {
		i := index[from]
		for to, w := range row {
			matrix[i][index[to]] = float64(w)
		}
	}

	return matrix, index
}

// MutualReferences returns the pairs of agents that mention each other
// (a->b and b->a both present). Observation only; mutual references carry no
// extra weight in centrality.
func (g *Graph) MutualReferences() [][2]string {
	res := [][2]string{}
	for _, a := range g.Nodes() {
		for b := range g.adjacency[a] {
			if a < b && g.adjacency[b][a] > 0 {
				res = append(res, [2]string{a, b})
			}
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i][0] != res[j][0] {
			return res[i][0] < res[j][0]
		}
		return res[i][1] < res[j][1]
	})
	return res
}

// Components returns the connected components of the undirected projection of
// the graph, each component sorted, components ordered by their first member.
func (g *Graph) Components() [][]string {
	undirected := map[string]map[string]struct{}{}
	link := func(a, b string) {
		row, ok := undirected[a]
		if !ok {
			row = map[string]struct{}{}
			undirected[a] = row
		}
		row[b] = struct{}{}
	}
	for from, row := range g.adjacency {
		for to := range row {
			link(from, to)
			link(to, from)
		}
	}

	visited := map[string]struct{}{}
	res := [][]string{}

	for _, start := range g.Nodes() {
		if _, ok := visited[start]; ok {
			continue
		}

		component := []string{}
		stack := []string{start}
		visited[start] = struct{}{}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, n)
			for neighbor := range undirected[n] {
				if _, ok := visited[neighbor]; !ok {
					visited[neighbor] = struct{}{}
					stack = append(stack, neighbor)
				}
			}
		}

		sort.Strings(component)
		res = append(res, component)
	}

	return res
}

// LargestComponentRatio returns the size of the largest connected component
// relative to the node count. 1 means every agent is connected; 1/n means
// they are all isolated.
func (g *Graph) LargestComponentRatio() float64 {
	if len(g.nodes) == 0 {
		return 0
	}

	largest := 0
	for _, c := range g.Components() {
		if len(c) > largest {
			largest = len(c)
		}
	}

	return float64(largest) / float64(len(g.nodes))
}
