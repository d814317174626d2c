package centrality

import (
	"math"
	"reflect"
	"sort"
	"testing"

	"github.com/opensource-finance/talon/internal/domain"
)

func network(nodes []string, edges [][2]string) *domain.TransferNetworkView {
	net := &domain.TransferNetworkView{
		Nodes: append([]string(nil), nodes...),
		Out:   make(map[string]map[string]domain.TransferStats),
		In:    make(map[string]map[string]domain.TransferStats),
	}
	sort.Strings(net.Nodes)
	for _, n := range net.Nodes {
		net.Out[n] = map[string]domain.TransferStats{}
		net.In[n] = map[string]domain.TransferStats{}
	}
	for _, e := range edges {
		st := domain.TransferStats{TotalAmount: 100, TransferCount: 1}
		net.Out[e[0]][e[1]] = st
		net.In[e[1]][e[0]] = st
	}
	return net
}

func TestPageRank(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		if got := PageRank(network(nil, nil), Options{}); len(got) != 0 {
			t.Fatalf("got %v, want empty", got)
		}
	})

	t.Run("IsolatedNodesGetUniformBaseline", func(t *testing.T) {
		got := PageRank(network([]string{"A", "B", "C"}, nil), Options{})
		for n, r := range got {
			if math.Abs(r-1.0/3.0) > 1e-9 {
				t.Errorf("rank[%s] = %f, want 1/3", n, r)
			}
		}
	})

	t.Run("SumsToOne", func(t *testing.T) {
		net := network([]string{"A", "B", "C", "D", "E"}, [][2]string{
			{"A", "B"}, {"B", "C"}, {"C", "A"}, {"A", "D"},
		})
		got := PageRank(net, Options{})
		sum := 0.0
		for _, r := range got {
			sum += r
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Errorf("ranks sum to %f, want 1", sum)
		}
	})

	t.Run("SinkCollectsRank", func(t *testing.T) {
		net := network([]string{"A", "B", "C", "D"}, [][2]string{
			{"A", "D"}, {"B", "D"}, {"C", "D"},
		})
		got := PageRank(net, Options{})
		for _, n := range []string{"A", "B", "C"} {
			if got["D"] <= got[n] {
				t.Errorf("rank[D]=%f not above rank[%s]=%f", got["D"], n, got[n])
			}
		}
		if math.Abs(got["A"]-got["B"]) > 1e-9 || math.Abs(got["B"]-got["C"]) > 1e-9 {
			t.Errorf("symmetric sources diverge: %v", got)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		net := network([]string{"A", "B", "C", "D", "E"}, [][2]string{
			{"A", "B"}, {"B", "C"}, {"C", "D"}, {"D", "A"}, {"A", "E"}, {"E", "B"},
		})
		first := PageRank(net, Options{})
		if got := PageRank(net, Options{}); !reflect.DeepEqual(got, first) {
			t.Errorf("repeated runs diverge: %v vs %v", got, first)
		}
	})
}

func TestBetweenness(t *testing.T) {
	t.Run("Chain", func(t *testing.T) {
		net := network([]string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}})
		got := Betweenness(net)
		// Only A>C routes through B; normalization is 1/((3-1)(3-2)).
		if math.Abs(got["B"]-0.5) > 1e-9 {
			t.Errorf("betweenness[B] = %f, want 0.5", got["B"])
		}
		if got["A"] != 0 || got["C"] != 0 {
			t.Errorf("endpoints should score zero: %v", got)
		}
	})

	t.Run("DirectionMatters", func(t *testing.T) {
		// No path reaches C>A, so reversing the chain zeroes B.
		net := network([]string{"A", "B", "C"}, [][2]string{{"B", "A"}, {"C", "B"}})
		got := Betweenness(net)
		if math.Abs(got["B"]-0.5) > 1e-9 {
			t.Errorf("betweenness[B] = %f, want 0.5", got["B"])
		}
	})

	t.Run("ShortcutSkipsMiddle", func(t *testing.T) {
		net := network([]string{"A", "B", "C"}, [][2]string{
			{"A", "B"}, {"B", "C"}, {"A", "C"},
		})
		got := Betweenness(net)
		if got["B"] != 0 {
			t.Errorf("betweenness[B] = %f, want 0 with direct A>C edge", got["B"])
		}
	})

	t.Run("SplitShortestPaths", func(t *testing.T) {
		// Two equal-length A>D routes; B and C each carry half.
		net := network([]string{"A", "B", "C", "D"}, [][2]string{
			{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"},
		})
		got := Betweenness(net)
		want := 0.5 / (3.0 * 2.0)
		if math.Abs(got["B"]-want) > 1e-9 || math.Abs(got["C"]-want) > 1e-9 {
			t.Errorf("got B=%f C=%f, want %f", got["B"], got["C"], want)
		}
	})

	t.Run("TwoNodesNoNormalization", func(t *testing.T) {
		net := network([]string{"A", "B"}, [][2]string{{"A", "B"}})
		got := Betweenness(net)
		if got["A"] != 0 || got["B"] != 0 {
			t.Errorf("got %v, want zeros", got)
		}
	})

	t.Run("IsolatedIncluded", func(t *testing.T) {
		net := network([]string{"A", "B", "C", "Z"}, [][2]string{{"A", "B"}, {"B", "C"}})
		got := Betweenness(net)
		if v, ok := got["Z"]; !ok || v != 0 {
			t.Errorf("isolated node record = %f, %v", v, ok)
		}
	})
}

func TestRecords(t *testing.T) {
	net := network([]string{"A", "B", "C", "Z"}, [][2]string{
		{"A", "B"}, {"A", "C"}, {"B", "A"},
	})
	pr := PageRank(net, Options{})
	bt := Betweenness(net)
	records := Records(net, pr, bt)

	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}
	byID := map[string]domain.CentralityRecord{}
	ids := []string{}
	for _, r := range records {
		byID[r.AccountID] = r
		ids = append(ids, r.AccountID)
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("records not sorted: %v", ids)
	}
	a := byID["A"]
	if a.OutDegree != 2 || a.InDegree != 1 || a.Degree != 3 {
		t.Errorf("A degrees = %+v", a)
	}
	z := byID["Z"]
	if z.Degree != 0 || z.Betweenness != 0 || z.PageRank <= 0 {
		t.Errorf("isolated record = %+v", z)
	}
}
