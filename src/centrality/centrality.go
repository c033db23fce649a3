// Package centrality computes eigenvector centrality scores from a mention
// graph using power iteration. The parameters are fixed: convergence
// tolerance 1e-6, at most 1000 iterations, scores rescaled so the maximum is
// 1. The computation is deterministic; the same graph always produces
// bit-identical scores.
package centrality

import (
	"math"

	"github.com/meshworks/tattle/src/graph"
)

const (
	// Tolerance is the Euclidean distance between successive iterates below
	// which the iteration is considered converged.
	Tolerance = 1e-6

	// MaxIterations caps the power iteration. Hitting the cap is not an
	// error; it is reported through the converged flag.
	MaxIterations = 1000
)

// PowerIteration computes the dominant eigenvector of the transpose of the
// given adjacency matrix. The transpose convention makes a node's score
// driven by the scores of the agents that mention it, not by the agents it
// mentions.
//
// The vector starts uniform at 1/n and is renormalized by its Euclidean norm
// after every multiplication. If the product ever has zero norm, the
// iteration stops and keeps the last normalized vector; with at least one
// edge the first product is always nonzero, so a graph with edges never
// degenerates to all-zero. The returned flag is false when the iteration cap
// was reached before meeting the tolerance.
func PowerIteration(matrix [][]float64) ([]float64, bool) {
	n := len(matrix)
	if n == 0 {
		return []float64{}, true
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0 / float64(n)
	}

	converged := false
	for iter := 0; iter < MaxIterations; iter++ {
		next := make([]float64, n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				// transposed product: incoming edges drive the score
				next[i] += matrix[j][i] * scores[j]
			}
		}

		norm := 0.0
		for _, s := range next {
			norm += s * s
		}
		norm = math.Sqrt(norm)

		if norm == 0 {
			// every remaining walk has died out; the last normalized vector
			// is the answer
			converged = true
			break
		}

		for i := range next {
			next[i] /= norm
		}

		dist := 0.0
		for i := range next {
			d := next[i] - scores[i]
			dist += d * d
		}
		dist = math.Sqrt(dist)

		scores = next

		if dist < Tolerance {
			converged = true
			break
		}
	}

	rescale(scores)

	return scores, converged
}

// rescale divides by the max component so that max equals 1, skipping the
// all-zero vector.
func rescale(scores []float64) {
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	if max == 0 {
		return
	}
	for i := range scores {
		scores[i] /= max
	}
}

// Scores computes the centrality score of every node in the graph, mapped by
// agent id, along with the convergence flag. A graph with no edges yields a
// score of 0 for every node.
func Scores(g *graph.Graph) (map[string]float64, bool) {
	if g.EdgeCount() == 0 {
		res := make(map[string]float64, len(g.Nodes()))
		for _, n := range g.Nodes() {
			res[n] = 0
		}
		return res, true
	}

	matrix, index := g.Matrix()
	scores, converged := PowerIteration(matrix)

	res := make(map[string]float64, len(index))
	for node, i := range index {
		res[node] = scores[i]
	}

	return res, converged
}
