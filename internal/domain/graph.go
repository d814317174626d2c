package domain

import (
	"context"
)

// EdgeKind labels relational graph edges.
type EdgeKind string

const (
	// EdgeUsesDevice links an account to a device it uses.
	EdgeUsesDevice EdgeKind = "uses_device"

	// EdgeTransfer links two accounts with at least one completed
	// transfer between them (direction collapsed).
	EdgeTransfer EdgeKind = "transfer"
)

// GraphStore builds and owns the two graph views of one dataset: the
// undirected relational graph (accounts, devices, transfer edges) and the
// directed weighted transfer network (accounts only, one edge per ordered
// pair with aggregated totals). Supports an in-memory backend and a
// Neo4j-backed backend; algorithmic components depend only on this
// interface.
//
// Build has clear-then-rebuild semantics: every call fully replaces the
// previous graphs. After Build returns, the store is read-only for the
// rest of the pass; the snapshot accessors hand out views that callers
// must not mutate.
type GraphStore interface {
	// Build constructs both views from the dataset. Returns
	// ErrUnknownReference for dangling link/transfer endpoints and
	// ErrBackendUnavailable when the external store is unreachable.
	Build(ctx context.Context, ds *Dataset) error

	// Neighborhood returns the induced relational subgraph reachable
	// within depth hops of the account. Depth 0 is the account alone.
	// Returns ErrNotFound for unknown accounts.
	Neighborhood(accountID string, depth int) (*Subgraph, error)

	// SharedDevices lists every device linked to at least two
	// accounts, with the linked account ids sorted.
	SharedDevices() []SharedDeviceGroup

	// TransferPaths enumerates all simple directed paths from source
	// to target with at most maxHops edges. Unknown endpoints or no
	// such path yield an empty slice, not an error.
	TransferPaths(source, target string, maxHops int) [][]string

	// Statistics summarizes both views of the current build.
	Statistics() GraphStatistics

	// Accounts returns every account node, sorted by id.
	Accounts() []Account

	// Account looks up one account node.
	Account(id string) (Account, bool)

	// Device looks up one device node.
	Device(id string) (Device, bool)

	// AccountDevices returns the device ids linked to an account.
	AccountDevices(id string) []string

	// AccountProjection returns the undirected account-to-account
	// adjacency of the relational view (direct account edges only,
	// weight 1 per collapsed edge). Community detection runs on this.
	AccountProjection() map[string]map[string]float64

	// TransferNetwork returns the directed aggregated transfer view.
	TransferNetwork() *TransferNetworkView

	// BuildID identifies the current build; changes on every
	// successful Build.
	BuildID() string

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// TransferStats aggregates all completed transfers for one ordered
// account pair.
type TransferStats struct {
	TotalAmount   float64 `json:"total_amount"`
	TransferCount int     `json:"transfer_count"`
}

// TransferNetworkView is a read-only snapshot of the directed transfer
// network: every account appears in Nodes even when isolated; Out and In
// carry the aggregated adjacency in both directions.
type TransferNetworkView struct {
	Nodes []string                            `json:"nodes"`
	Out   map[string]map[string]TransferStats `json:"out"`
	In    map[string]map[string]TransferStats `json:"in"`
}

// EdgeCount returns the number of aggregated directed edges.
func (v *TransferNetworkView) EdgeCount() int {
	n := 0
	for _, succ := range v.Out {
		n += len(succ)
	}
	return n
}

// RelationalEdge is one edge of an induced subgraph.
type RelationalEdge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// Subgraph is the induced relational neighborhood around one account.
type Subgraph struct {
	Root     string           `json:"root"`
	Depth    int              `json:"depth"`
	Accounts []Account        `json:"accounts"`
	Devices  []Device         `json:"devices"`
	Edges    []RelationalEdge `json:"edges"`
}

// SharedDeviceGroup is one device together with the accounts linked to
// it. Only produced for devices with at least two linked accounts.
type SharedDeviceGroup struct {
	DeviceID   string   `json:"device_id"`
	AccountIDs []string `json:"account_ids"`
}

// GraphStatistics summarizes a built graph.
type GraphStatistics struct {
	Accounts        int     `json:"accounts"`
	Devices         int     `json:"devices"`
	Nodes           int     `json:"nodes"`
	RelationalEdges int     `json:"relational_edges"`
	TransferEdges   int     `json:"transfer_edges"`
	AvgDegree       float64 `json:"avg_degree"`
	Components      int     `json:"components"`
}
