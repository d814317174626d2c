// Package centrality computes PageRank, betweenness and degree measures
// over the aggregated transfer network.
package centrality

import (
	"sort"

	"github.com/opensource-finance/talon/internal/domain"
)

// Options tunes the PageRank power iteration. Zero values fall back to
// the standard damping 0.85, tolerance 1e-6 and 100 iterations.
type Options struct {
	Damping float64
	Tol     float64
	MaxIter int
}

func (o Options) withDefaults() Options {
	if o.Damping <= 0 || o.Damping >= 1 {
		o.Damping = 0.85
	}
	if o.Tol <= 0 {
		o.Tol = 1e-6
	}
	if o.MaxIter <= 0 {
		o.MaxIter = 100
	}
	return o
}

// successors returns sorted out-neighbor lists so float accumulation
// order is fixed and repeated runs agree bit for bit.
func successors(net *domain.TransferNetworkView) map[string][]string {
	succ := make(map[string][]string, len(net.Nodes))
	for _, v := range net.Nodes {
		out := net.Out[v]
		if len(out) == 0 {
			continue
		}
		nbs := make([]string, 0, len(out))
		for w := range out {
			nbs = append(nbs, w)
		}
		sort.Strings(nbs)
		succ[v] = nbs
	}
	return succ
}

// PageRank runs the damped power iteration over the transfer network,
// treating every distinct sender-receiver pair as one unweighted edge.
// Dangling mass redistributes uniformly, so accounts without transfers
// converge to the uniform baseline. Iteration stops once the total
// absolute change drops below n*tol.
func PageRank(net *domain.TransferNetworkView, opts Options) map[string]float64 {
	opts = opts.withDefaults()
	n := len(net.Nodes)
	rank := make(map[string]float64, n)
	if n == 0 {
		return rank
	}

	succ := successors(net)
	for _, v := range net.Nodes {
		rank[v] = 1 / float64(n)
	}

	d := opts.Damping
	for i := 0; i < opts.MaxIter; i++ {
		last := rank
		rank = make(map[string]float64, n)

		danglesum := 0.0
		for _, v := range net.Nodes {
			if len(succ[v]) == 0 {
				danglesum += last[v]
			}
		}
		danglesum *= d

		base := (1-d)/float64(n) + danglesum/float64(n)
		for _, v := range net.Nodes {
			rank[v] = base
		}
		for _, v := range net.Nodes {
			if len(succ[v]) == 0 {
				continue
			}
			share := d * last[v] / float64(len(succ[v]))
			for _, w := range succ[v] {
				rank[w] += share
			}
		}

		err := 0.0
		for _, v := range net.Nodes {
			diff := rank[v] - last[v]
			if diff < 0 {
				diff = -diff
			}
			err += diff
		}
		if err < float64(n)*opts.Tol {
			break
		}
	}
	return rank
}

// Betweenness computes Brandes betweenness centrality over the directed
// transfer network, normalized by 1/((n-1)(n-2)) once more than two
// nodes exist. Accounts off every shortest path score zero.
func Betweenness(net *domain.TransferNetworkView) map[string]float64 {
	n := len(net.Nodes)
	cb := make(map[string]float64, n)
	for _, v := range net.Nodes {
		cb[v] = 0
	}
	if n == 0 {
		return cb
	}

	succ := successors(net)
	for _, s := range net.Nodes {
		stack := make([]string, 0, n)
		pred := make(map[string][]string, n)
		sigma := map[string]float64{s: 1}
		dist := map[string]int{s: 0}
		queue := []string{s}

		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range succ[v] {
				if _, seen := dist[w]; !seen {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					pred[w] = append(pred[w], v)
				}
			}
		}

		delta := make(map[string]float64, len(stack))
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range pred[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				cb[w] += delta[w]
			}
		}
	}

	if n > 2 {
		scale := 1 / (float64(n-1) * float64(n-2))
		for v := range cb {
			cb[v] *= scale
		}
	}
	return cb
}

// Records assembles one centrality record per account, sorted by id.
// Degrees count distinct counterparties per direction.
func Records(net *domain.TransferNetworkView, pagerank, betweenness map[string]float64) []domain.CentralityRecord {
	records := make([]domain.CentralityRecord, 0, len(net.Nodes))
	for _, v := range net.Nodes {
		in := len(net.In[v])
		out := len(net.Out[v])
		records = append(records, domain.CentralityRecord{
			AccountID:   v,
			PageRank:    pagerank[v],
			Betweenness: betweenness[v],
			Degree:      in + out,
			InDegree:    in,
			OutDegree:   out,
		})
	}
	return records
}
