package query

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/risk"
)

const (
	defaultDepth   = 1
	defaultMaxHops = 3
	defaultLimit   = 10

	maxPaths         = 5
	maxSharedDevices = 10
	maxDistribution  = 5
	maxClusters      = 5
)

// Engine answers queries against one analysis snapshot. It is immutable
// once constructed; the analysis service swaps in a fresh engine after
// every pass.
type Engine struct {
	store  domain.GraphStore
	report *domain.Report

	riskByID     map[string]domain.RiskRecord
	sharedCount  map[string]int
	sentCount    map[string]int
	recvCount    map[string]int
	totalCount   map[string]int
	communitySet map[int][]string
}

// NewEngine indexes the report and raw dataset for point lookups.
func NewEngine(store domain.GraphStore, ds *domain.Dataset, rep *domain.Report) *Engine {
	e := &Engine{
		store:        store,
		report:       rep,
		riskByID:     make(map[string]domain.RiskRecord, len(rep.Risk)),
		sharedCount:  make(map[string]int),
		sentCount:    make(map[string]int),
		recvCount:    make(map[string]int),
		totalCount:   make(map[string]int),
		communitySet: make(map[int][]string),
	}
	for _, rec := range rep.Risk {
		e.riskByID[rec.AccountID] = rec
	}
	for _, rec := range rep.SharedDevices {
		for _, id := range rec.AccountIDs {
			e.sharedCount[id]++
		}
	}
	for _, t := range ds.Transfers {
		e.sentCount[t.SenderID]++
		e.recvCount[t.ReceiverID]++
		e.totalCount[t.SenderID]++
		if t.ReceiverID != t.SenderID {
			e.totalCount[t.ReceiverID]++
		}
	}
	for id, c := range rep.Communities {
		e.communitySet[c] = append(e.communitySet[c], id)
	}
	for _, members := range e.communitySet {
		sort.Strings(members)
	}
	return e
}

// Query dispatches one request. Failures come back as structured error
// results, never as panics or transport errors.
func (e *Engine) Query(req Request) Result {
	res := Result{Type: req.Type}
	switch req.Type {
	case TypeProfile:
		res.Profile, res.Error = e.profile(req)
	case TypeConnections:
		res.Connections, res.Error = e.connections(req)
	case TypeRisk:
		res.Risk, res.Error = e.risk(req)
	case TypeSharedDevices:
		res.SharedDevices = e.sharedDevices()
	case TypeTransferPath:
		res.TransferPath = e.transferPath(req)
	case TypeCommunity:
		res.Community, res.Error = e.community(req)
	case TypePatterns:
		res.Patterns = e.patterns(req)
	default:
		res.Error = fmt.Sprintf("unknown query type: %s", req.Type)
	}
	return res
}

func (e *Engine) profile(req Request) (*ProfileAnswer, string) {
	a, ok := e.store.Account(req.AccountID)
	if !ok {
		return nil, fmt.Sprintf("account %s not found", req.AccountID)
	}
	return &ProfileAnswer{
		AccountID:         a.ID,
		IsFraud:           a.IsFraud,
		AgeDays:           a.AgeDays,
		Verification:      a.Verification,
		ConnectedAccounts: len(e.store.AccountProjection()[a.ID]),
		Devices:           e.store.AccountDevices(a.ID),
		TotalTransfers:    e.totalCount[a.ID],
		SentTransfers:     e.sentCount[a.ID],
		ReceivedTransfers: e.recvCount[a.ID],
	}, ""
}

func (e *Engine) connections(req Request) (*ConnectionsAnswer, string) {
	depth := req.Depth
	if depth == 0 {
		depth = defaultDepth
	}
	sub, err := e.store.Neighborhood(req.AccountID, depth)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Sprintf("account %s not found", req.AccountID)
		}
		return nil, err.Error()
	}

	fraudsters := 0
	nodes := make([]string, 0, len(sub.Accounts)+len(sub.Devices))
	for _, a := range sub.Accounts {
		nodes = append(nodes, a.ID)
		if a.IsFraud && a.ID != req.AccountID {
			fraudsters++
		}
	}
	for _, d := range sub.Devices {
		nodes = append(nodes, d.ID)
	}

	connected := len(sub.Accounts) - 1
	denom := connected
	if denom < 1 {
		denom = 1
	}
	return &ConnectionsAnswer{
		AccountID:         req.AccountID,
		Depth:             depth,
		ConnectedAccounts: connected,
		Devices:           len(sub.Devices),
		FraudstersNearby:  fraudsters,
		FraudExposureRate: float64(fraudsters) / float64(denom),
		Nodes:             nodes,
	}, ""
}

func (e *Engine) risk(req Request) (*RiskAnswer, string) {
	rec, ok := e.riskByID[req.AccountID]
	if !ok {
		return nil, fmt.Sprintf("no risk data for account %s", req.AccountID)
	}

	level := "LOW"
	switch {
	case rec.Score > 0.5:
		level = "HIGH"
	case rec.Score > 0.3:
		level = "MEDIUM"
	}

	var factors []string
	for _, f := range []struct {
		value  float64
		reason string
	}{
		{rec.PageRank, "high pagerank centrality in the transfer network"},
		{rec.Betweenness, "high betweenness, key intermediary between accounts"},
		{rec.DeviceRisk, "shares devices with fraud-labeled accounts"},
		{rec.AgeRisk, "recently created account"},
		{rec.AmountRisk, "high average outgoing amount"},
		{rec.VolumeRisk, "high outgoing transfer volume"},
	} {
		if f.value > 0.5 {
			factors = append(factors, f.reason)
		}
	}

	return &RiskAnswer{
		Record:            rec,
		RiskLevel:         level,
		SharedDeviceCount: e.sharedCount[req.AccountID],
		RiskFactors:       factors,
	}, ""
}

func (e *Engine) sharedDevices() *SharedDevicesAnswer {
	all := e.report.SharedDevices
	var highRisk []domain.SharedDeviceRecord
	for _, rec := range all {
		if rec.FraudRatio > 0.5 {
			highRisk = append(highRisk, rec)
		}
	}
	top := all
	if len(top) > maxSharedDevices {
		top = top[:maxSharedDevices]
	}
	return &SharedDevicesAnswer{
		Total:    len(all),
		HighRisk: highRisk,
		Devices:  top,
	}
}

func (e *Engine) transferPath(req Request) *TransferPathAnswer {
	maxHops := req.MaxHops
	if maxHops == 0 {
		maxHops = defaultMaxHops
	}
	paths := e.store.TransferPaths(req.Source, req.Target, maxHops)

	ans := &TransferPathAnswer{
		Source:     req.Source,
		Target:     req.Target,
		PathsFound: len(paths),
	}
	if len(paths) == 0 {
		return ans
	}
	shortest := len(paths[0]) - 1
	for _, p := range paths[1:] {
		if len(p)-1 < shortest {
			shortest = len(p) - 1
		}
	}
	ans.ShortestHops = &shortest
	if len(paths) > maxPaths {
		paths = paths[:maxPaths]
	}
	ans.Paths = paths
	return ans
}

func (e *Engine) community(req Request) (*CommunityAnswer, string) {
	if len(e.report.Communities) == 0 {
		return nil, "no communities detected"
	}

	if req.AccountID != "" {
		c, ok := e.report.Communities[req.AccountID]
		if !ok {
			return nil, fmt.Sprintf("account %s not in any community", req.AccountID)
		}
		members := e.communitySet[c]
		fraud := 0
		for _, id := range members {
			if a, ok := e.store.Account(id); ok && a.IsFraud {
				fraud++
			}
		}
		return &CommunityAnswer{Membership: &CommunityMembership{
			AccountID:   req.AccountID,
			CommunityID: c,
			Size:        len(members),
			Members:     members,
			FraudCount:  fraud,
			FraudRate:   float64(fraud) / float64(len(members)),
		}}, ""
	}

	type sized struct {
		id, size int
	}
	sizes := make([]sized, 0, len(e.communitySet))
	total, largest := 0, 0
	for id, members := range e.communitySet {
		sizes = append(sizes, sized{id, len(members)})
		total += len(members)
		if len(members) > largest {
			largest = len(members)
		}
	}
	sort.Slice(sizes, func(i, j int) bool {
		if sizes[i].size != sizes[j].size {
			return sizes[i].size > sizes[j].size
		}
		return sizes[i].id < sizes[j].id
	})

	dist := make(map[string]int)
	for i, s := range sizes {
		if i == maxDistribution {
			break
		}
		dist[strconv.Itoa(s.id)] = s.size
	}
	return &CommunityAnswer{Overview: &CommunityOverview{
		TotalCommunities: len(sizes),
		AvgSize:          float64(total) / float64(len(sizes)),
		LargestSize:      largest,
		Distribution:     dist,
	}}, ""
}

func (e *Engine) patterns(req Request) *PatternsAnswer {
	threshold := req.Threshold
	if threshold == 0 {
		threshold = e.report.Threshold
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var high []PatternAccount
	for _, rec := range e.report.Risk {
		if rec.Score <= threshold {
			continue
		}
		high = append(high, PatternAccount{
			AccountID: rec.AccountID,
			RiskScore: rec.Score,
			IsFraud:   rec.IsFraud,
		})
		if len(high) == limit {
			break
		}
	}

	var clusters []domain.SharedDeviceRecord
	for _, rec := range e.report.SharedDevices {
		if rec.AccountCount > 2 {
			clusters = append(clusters, rec)
			if len(clusters) == maxClusters {
				break
			}
		}
	}

	return &PatternsAnswer{
		Threshold:      threshold,
		HighRisk:       high,
		DeviceClusters: clusters,
		Evaluation:     risk.Evaluate(e.report.Risk, threshold),
	}
}
