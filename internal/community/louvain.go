// Package community partitions the account projection into communities
// with greedy modularity maximization (the Louvain method).
package community

import (
	"math/rand"
	"sort"

	"github.com/opensource-finance/talon/internal/domain"
)

// Detect runs Louvain over an undirected weighted adjacency and returns
// the community id per node. The adjacency must be symmetric; every node
// needs its own entry, isolated nodes with an empty one. Labels are
// compacted to 0..k-1 in order of first appearance over the sorted node
// ids, so a fixed seed always yields the identical partition. A graph
// with no edges degenerates to one community per node.
func Detect(adj map[string]map[string]float64, seed int64) map[string]int {
	ids := make([]string, 0, len(adj))
	for id := range adj {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return map[string]int{}
	}

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	// Self-loops live apart from the neighbor maps so degrees can count
	// them twice. They only appear once levels aggregate.
	weights := make([]map[int]float64, len(ids))
	loops := make([]float64, len(ids))
	for i, id := range ids {
		weights[i] = make(map[int]float64, len(adj[id]))
		for nb, w := range adj[id] {
			j, ok := index[nb]
			if !ok {
				continue
			}
			if j == i {
				loops[i] += w
				continue
			}
			weights[i][j] = w
		}
	}

	rng := rand.New(rand.NewSource(seed))
	assignment := make([]int, len(ids))
	for i := range assignment {
		assignment[i] = i
	}

	for {
		moved, comm := oneLevel(weights, loops, rng)
		for i := range assignment {
			assignment[i] = comm[assignment[i]]
		}
		if !moved {
			break
		}
		communities := 0
		for _, c := range comm {
			if c+1 > communities {
				communities = c + 1
			}
		}
		if communities == len(weights) {
			break
		}
		weights, loops = aggregate(weights, loops, comm, communities)
	}

	relabel := make(map[int]int)
	out := make(map[string]int, len(ids))
	for i, id := range ids {
		c := assignment[i]
		if _, ok := relabel[c]; !ok {
			relabel[c] = len(relabel)
		}
		out[id] = relabel[c]
	}
	return out
}

// oneLevel runs the local moving phase until no node improves modularity,
// then returns whether anything moved and the compacted per-node labels.
func oneLevel(weights []map[int]float64, loops []float64, rng *rand.Rand) (bool, []int) {
	n := len(weights)
	deg := make([]float64, n)
	m2 := 0.0
	for i := range weights {
		for _, w := range weights[i] {
			deg[i] += w
		}
		deg[i] += 2 * loops[i]
		m2 += deg[i]
	}

	comm := make([]int, n)
	for i := range comm {
		comm[i] = i
	}
	if m2 == 0 {
		return false, comm
	}

	tot := append([]float64(nil), deg...)
	order := rng.Perm(n)
	movedEver := false
	for {
		moved := false
		for _, i := range order {
			old := comm[i]
			neigh := make(map[int]float64, len(weights[i]))
			for j, w := range weights[i] {
				neigh[comm[j]] += w
			}

			tot[old] -= deg[i]
			best := old
			bestGain := neigh[old] - tot[old]*deg[i]/m2

			cands := make([]int, 0, len(neigh))
			for c := range neigh {
				cands = append(cands, c)
			}
			sort.Ints(cands)
			for _, c := range cands {
				if c == old {
					continue
				}
				if gain := neigh[c] - tot[c]*deg[i]/m2; gain > bestGain {
					best, bestGain = c, gain
				}
			}

			tot[best] += deg[i]
			if best != old {
				comm[i] = best
				moved = true
				movedEver = true
			}
		}
		if !moved {
			break
		}
	}

	relabel := make(map[int]int)
	out := make([]int, n)
	for i, c := range comm {
		if _, ok := relabel[c]; !ok {
			relabel[c] = len(relabel)
		}
		out[i] = relabel[c]
	}
	return movedEver, out
}

// aggregate collapses each community into one node. Internal edge weight
// folds into the supernode's self-loop; the symmetric map lists each
// internal edge twice, hence the halving.
func aggregate(weights []map[int]float64, loops []float64, comm []int, communities int) ([]map[int]float64, []float64) {
	newWeights := make([]map[int]float64, communities)
	newLoops := make([]float64, communities)
	for i := range newWeights {
		newWeights[i] = make(map[int]float64)
	}
	for i, nbs := range weights {
		ci := comm[i]
		newLoops[ci] += loops[i]
		for j, w := range nbs {
			if cj := comm[j]; cj == ci {
				newLoops[ci] += w / 2
			} else {
				newWeights[ci][cj] += w
			}
		}
	}
	return newWeights, newLoops
}

// Stats rolls the partition up into per-community size, fraud count and
// fraud ratio, ordered by community id with member lists sorted.
func Stats(partition map[string]int, accounts map[string]domain.Account) []domain.CommunityStat {
	byID := make(map[int]*domain.CommunityStat)
	for accountID, c := range partition {
		st, ok := byID[c]
		if !ok {
			st = &domain.CommunityStat{CommunityID: c}
			byID[c] = st
		}
		st.Size++
		st.AccountIDs = append(st.AccountIDs, accountID)
		if accounts[accountID].IsFraud {
			st.FraudCount++
		}
	}

	out := make([]domain.CommunityStat, 0, len(byID))
	for _, st := range byID {
		sort.Strings(st.AccountIDs)
		st.FraudRatio = float64(st.FraudCount) / float64(st.Size)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CommunityID < out[j].CommunityID })
	return out
}
