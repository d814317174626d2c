package graphstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dominikbraun/graph"
	"github.com/google/uuid"

	"github.com/opensource-finance/talon/internal/domain"
)

type pair struct {
	from, to string
}

// MemoryStore holds both graph views entirely in process. Build replaces
// everything; reads serve immutable snapshots taken at the end of Build.
type MemoryStore struct {
	mu sync.RWMutex

	rel graph.Graph[string, string]
	net graph.Graph[string, string]

	accounts       map[string]domain.Account
	devices        map[string]domain.Device
	accountList    []string
	accountDevices map[string][]string

	relAdj     map[string]map[string]graph.Edge[string]
	succ       map[string][]string
	projection map[string]map[string]float64
	netView    *domain.TransferNetworkView

	stats   domain.GraphStatistics
	buildID string
}

// NewMemoryStore creates an empty in-memory graph store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Build constructs both graph views from the dataset. Node ids must be
// unique across accounts and devices; links and transfers referencing
// unknown nodes abort the build with ErrUnknownReference. Only completed
// transfers become edges, and self-transfers stay out of both views.
func (s *MemoryStore) Build(ctx context.Context, ds *domain.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel := graph.New(graph.StringHash)
	net := graph.New(graph.StringHash, graph.Directed(), graph.Weighted())

	accounts := make(map[string]domain.Account, len(ds.Accounts))
	for _, a := range ds.Accounts {
		if err := rel.AddVertex(a.ID, graph.VertexAttribute("kind", "account")); err != nil {
			return fmt.Errorf("%w: duplicate account id %s", domain.ErrInvalidInput, a.ID)
		}
		if err := net.AddVertex(a.ID); err != nil {
			return fmt.Errorf("%w: duplicate account id %s", domain.ErrInvalidInput, a.ID)
		}
		accounts[a.ID] = a
	}

	devices := make(map[string]domain.Device, len(ds.Devices))
	for _, d := range ds.Devices {
		if err := rel.AddVertex(d.ID, graph.VertexAttribute("kind", "device")); err != nil {
			return fmt.Errorf("%w: duplicate or colliding device id %s", domain.ErrInvalidInput, d.ID)
		}
		devices[d.ID] = d
	}

	accountDevices := make(map[string][]string)
	for _, l := range ds.Links {
		if _, ok := accounts[l.AccountID]; !ok {
			return fmt.Errorf("%w: link references unknown account %s", domain.ErrUnknownReference, l.AccountID)
		}
		if _, ok := devices[l.DeviceID]; !ok {
			return fmt.Errorf("%w: link references unknown device %s", domain.ErrUnknownReference, l.DeviceID)
		}
		err := rel.AddEdge(l.AccountID, l.DeviceID, graph.EdgeAttribute("kind", string(domain.EdgeUsesDevice)))
		if errors.Is(err, graph.ErrEdgeAlreadyExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("add link %s-%s: %w", l.AccountID, l.DeviceID, err)
		}
		accountDevices[l.AccountID] = append(accountDevices[l.AccountID], l.DeviceID)
	}

	agg := make(map[pair]domain.TransferStats)
	for _, t := range ds.Transfers {
		if _, ok := accounts[t.SenderID]; !ok {
			return fmt.Errorf("%w: transfer %s references unknown sender %s", domain.ErrUnknownReference, t.ID, t.SenderID)
		}
		if _, ok := accounts[t.ReceiverID]; !ok {
			return fmt.Errorf("%w: transfer %s references unknown receiver %s", domain.ErrUnknownReference, t.ID, t.ReceiverID)
		}
		if !t.Completed() || t.SenderID == t.ReceiverID {
			continue
		}

		err := rel.AddEdge(t.SenderID, t.ReceiverID, graph.EdgeAttribute("kind", string(domain.EdgeTransfer)))
		if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return fmt.Errorf("add transfer edge %s-%s: %w", t.SenderID, t.ReceiverID, err)
		}

		key := pair{t.SenderID, t.ReceiverID}
		st := agg[key]
		st.TotalAmount += t.Amount
		st.TransferCount++
		agg[key] = st
	}

	for key, st := range agg {
		if err := net.AddEdge(key.from, key.to, graph.EdgeWeight(st.TransferCount), graph.EdgeData(st)); err != nil {
			return fmt.Errorf("add network edge %s-%s: %w", key.from, key.to, err)
		}
	}

	relAdj, err := rel.AdjacencyMap()
	if err != nil {
		return fmt.Errorf("adjacency map: %w", err)
	}

	accountList := make([]string, 0, len(accounts))
	for id := range accounts {
		accountList = append(accountList, id)
	}
	sort.Strings(accountList)

	out := make(map[string]map[string]domain.TransferStats, len(accounts))
	in := make(map[string]map[string]domain.TransferStats, len(accounts))
	projection := make(map[string]map[string]float64, len(accounts))
	succ := make(map[string][]string, len(accounts))
	for _, id := range accountList {
		out[id] = make(map[string]domain.TransferStats)
		in[id] = make(map[string]domain.TransferStats)
		projection[id] = make(map[string]float64)
	}
	for key, st := range agg {
		out[key.from][key.to] = st
		in[key.to][key.from] = st
	}
	for _, id := range accountList {
		for nb := range out[id] {
			succ[id] = append(succ[id], nb)
		}
		sort.Strings(succ[id])

		for nb, edge := range relAdj[id] {
			if edge.Properties.Attributes["kind"] == string(domain.EdgeTransfer) {
				projection[id][nb] = 1
			}
		}
	}

	order, err := rel.Order()
	if err != nil {
		return fmt.Errorf("graph order: %w", err)
	}
	size, err := rel.Size()
	if err != nil {
		return fmt.Errorf("graph size: %w", err)
	}
	netSize, err := net.Size()
	if err != nil {
		return fmt.Errorf("network size: %w", err)
	}

	degreeSum := 0
	for _, nbs := range relAdj {
		degreeSum += len(nbs)
	}
	avgDegree := 0.0
	if order > 0 {
		avgDegree = float64(degreeSum) / float64(order)
	}

	for _, l := range accountDevices {
		sort.Strings(l)
	}

	s.rel, s.net = rel, net
	s.accounts, s.devices = accounts, devices
	s.accountList = accountList
	s.accountDevices = accountDevices
	s.relAdj = relAdj
	s.succ = succ
	s.projection = projection
	s.netView = &domain.TransferNetworkView{Nodes: accountList, Out: out, In: in}
	s.stats = domain.GraphStatistics{
		Accounts:        len(accounts),
		Devices:         len(devices),
		Nodes:           order,
		RelationalEdges: size,
		TransferEdges:   netSize,
		AvgDegree:       avgDegree,
		Components:      countComponents(relAdj),
	}
	s.buildID = uuid.NewString()
	return nil
}

// Neighborhood returns the induced relational subgraph within depth hops
// of the account, expanding breadth-first. Depth 0 is the account alone.
func (s *MemoryStore) Neighborhood(accountID string, depth int) (*domain.Subgraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if depth < 0 {
		return nil, fmt.Errorf("%w: depth must be >= 0, got %d", domain.ErrInvalidInput, depth)
	}
	if _, ok := s.accounts[accountID]; !ok {
		return nil, fmt.Errorf("%w: account %s", domain.ErrNotFound, accountID)
	}

	nodes := map[string]bool{accountID: true}
	frontier := []string{accountID}
	for i := 0; i < depth && len(frontier) > 0; i++ {
		var next []string
		for _, n := range frontier {
			for nb := range s.relAdj[n] {
				if !nodes[nb] {
					nodes[nb] = true
					next = append(next, nb)
				}
			}
		}
		frontier = next
	}

	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	sub := &domain.Subgraph{Root: accountID, Depth: depth}
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			sub.Accounts = append(sub.Accounts, a)
		} else if d, ok := s.devices[id]; ok {
			sub.Devices = append(sub.Devices, d)
		}

		nbs := make([]string, 0, len(s.relAdj[id]))
		for nb := range s.relAdj[id] {
			nbs = append(nbs, nb)
		}
		sort.Strings(nbs)
		for _, nb := range nbs {
			if id >= nb || !nodes[nb] {
				continue
			}
			from, to := id, nb
			// Keep uses_device edges account-first.
			if _, isDevice := s.devices[from]; isDevice {
				from, to = to, from
			}
			sub.Edges = append(sub.Edges, domain.RelationalEdge{
				From: from,
				To:   to,
				Kind: domain.EdgeKind(s.relAdj[id][nb].Properties.Attributes["kind"]),
			})
		}
	}
	return sub, nil
}

// SharedDevices lists every device linked to two or more accounts,
// ordered by device id with member ids sorted.
func (s *MemoryStore) SharedDevices() []domain.SharedDeviceGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deviceIDs := make([]string, 0, len(s.devices))
	for id := range s.devices {
		deviceIDs = append(deviceIDs, id)
	}
	sort.Strings(deviceIDs)

	var groups []domain.SharedDeviceGroup
	for _, id := range deviceIDs {
		if len(s.relAdj[id]) < 2 {
			continue
		}
		members := make([]string, 0, len(s.relAdj[id]))
		for nb := range s.relAdj[id] {
			members = append(members, nb)
		}
		sort.Strings(members)
		groups = append(groups, domain.SharedDeviceGroup{DeviceID: id, AccountIDs: members})
	}
	return groups
}

// TransferPaths enumerates all simple directed paths from source to
// target using at most maxHops edges. Unknown endpoints, source equal to
// target, or no path all yield an empty result.
func (s *MemoryStore) TransferPaths(source, target string, maxHops int) [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if maxHops < 1 || source == target {
		return nil
	}
	if _, ok := s.accounts[source]; !ok {
		return nil
	}
	if _, ok := s.accounts[target]; !ok {
		return nil
	}

	var paths [][]string
	path := []string{source}
	visited := map[string]bool{source: true}

	var walk func(node string, hopsLeft int)
	walk = func(node string, hopsLeft int) {
		if hopsLeft == 0 {
			return
		}
		for _, nb := range s.succ[node] {
			if nb == target {
				found := make([]string, len(path)+1)
				copy(found, path)
				found[len(path)] = nb
				paths = append(paths, found)
				continue
			}
			if visited[nb] {
				continue
			}
			visited[nb] = true
			path = append(path, nb)
			walk(nb, hopsLeft-1)
			path = path[:len(path)-1]
			delete(visited, nb)
		}
	}
	walk(source, maxHops)
	return paths
}

// Statistics summarizes the current build.
func (s *MemoryStore) Statistics() domain.GraphStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Accounts returns every account node sorted by id.
func (s *MemoryStore) Accounts() []domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]domain.Account, 0, len(s.accountList))
	for _, id := range s.accountList {
		accounts = append(accounts, s.accounts[id])
	}
	return accounts
}

// Account looks up one account node.
func (s *MemoryStore) Account(id string) (domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

// Device looks up one device node.
func (s *MemoryStore) Device(id string) (domain.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	return d, ok
}

// AccountDevices returns the device ids linked to an account, sorted.
func (s *MemoryStore) AccountDevices(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountDevices[id]
}

// AccountProjection returns the undirected account-to-account adjacency
// of the relational view. Every account has an entry; edges carry
// weight 1.
func (s *MemoryStore) AccountProjection() map[string]map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projection
}

// TransferNetwork returns the directed aggregated transfer view.
func (s *MemoryStore) TransferNetwork() *domain.TransferNetworkView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.netView == nil {
		return &domain.TransferNetworkView{
			Out: map[string]map[string]domain.TransferStats{},
			In:  map[string]map[string]domain.TransferStats{},
		}
	}
	return s.netView
}

// BuildID identifies the current build.
func (s *MemoryStore) BuildID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buildID
}

// Ping always succeeds for the in-memory backend.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close releases nothing for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

func countComponents(adj map[string]map[string]graph.Edge[string]) int {
	seen := make(map[string]bool, len(adj))
	count := 0
	for id := range adj {
		if seen[id] {
			continue
		}
		count++
		seen[id] = true
		queue := []string{id}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for nb := range adj[cur] {
				if !seen[nb] {
					seen[nb] = true
					queue = append(queue, nb)
				}
			}
		}
	}
	return count
}
