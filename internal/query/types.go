// Package query answers structured point questions about the analyzed
// graph: one closed set of typed variants over the latest report.
package query

import (
	"github.com/opensource-finance/talon/internal/domain"
)

// Type selects a query variant.
type Type string

// The closed variant set.
const (
	TypeProfile       Type = "profile"
	TypeConnections   Type = "connections"
	TypeRisk          Type = "risk"
	TypeSharedDevices Type = "shared_devices"
	TypeTransferPath  Type = "transfer_path"
	TypeCommunity     Type = "community"
	TypePatterns      Type = "suspicious_patterns"
)

// Request selects one variant with its parameters. AccountID serves
// profile, connections and risk, and optionally community; Source and
// Target serve transfer_path. Zero-valued knobs take the defaults:
// depth 1, 3 hops, limit 10, the report's threshold.
type Request struct {
	Type      Type    `json:"type"`
	AccountID string  `json:"account_id,omitempty"`
	Source    string  `json:"source,omitempty"`
	Target    string  `json:"target,omitempty"`
	Depth     int     `json:"depth,omitempty"`
	MaxHops   int     `json:"max_hops,omitempty"`
	Limit     int     `json:"limit,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// Result is the tagged union of answers. Either Error or exactly one
// variant pointer is set; the Type field always echoes the request.
type Result struct {
	Type          Type                 `json:"type"`
	Error         string               `json:"error,omitempty"`
	Profile       *ProfileAnswer       `json:"profile,omitempty"`
	Connections   *ConnectionsAnswer   `json:"connections,omitempty"`
	Risk          *RiskAnswer          `json:"risk,omitempty"`
	SharedDevices *SharedDevicesAnswer `json:"shared_devices,omitempty"`
	TransferPath  *TransferPathAnswer  `json:"transfer_path,omitempty"`
	Community     *CommunityAnswer     `json:"community,omitempty"`
	Patterns      *PatternsAnswer      `json:"suspicious_patterns,omitempty"`
}

// ProfileAnswer summarizes one account: graph neighbors, linked devices
// and raw transfer activity in both directions.
type ProfileAnswer struct {
	AccountID         string   `json:"account_id"`
	IsFraud           bool     `json:"is_fraud_label"`
	AgeDays           int      `json:"account_age_days"`
	Verification      string   `json:"verification_level"`
	ConnectedAccounts int      `json:"connected_accounts"`
	Devices           []string `json:"devices"`
	TotalTransfers    int      `json:"total_transfers"`
	SentTransfers     int      `json:"sent_transfers"`
	ReceivedTransfers int      `json:"received_transfers"`
}

// ConnectionsAnswer describes the account's neighborhood within the
// requested depth.
type ConnectionsAnswer struct {
	AccountID         string   `json:"account_id"`
	Depth             int      `json:"depth"`
	ConnectedAccounts int      `json:"connected_accounts"`
	Devices           int      `json:"devices"`
	FraudstersNearby  int      `json:"fraudsters_in_network"`
	FraudExposureRate float64  `json:"fraud_exposure_rate"`
	Nodes             []string `json:"nodes"`
}

// RiskAnswer carries the account's scored record plus derived context.
type RiskAnswer struct {
	Record            domain.RiskRecord `json:"record"`
	RiskLevel         string            `json:"risk_level"`
	SharedDeviceCount int               `json:"shared_device_count"`
	RiskFactors       []string          `json:"risk_factors"`
}

// SharedDevicesAnswer lists shared devices, the ratio-sorted top slice
// and every device above the 0.5 ratio.
type SharedDevicesAnswer struct {
	Total    int                         `json:"total_shared_devices"`
	HighRisk []domain.SharedDeviceRecord `json:"high_risk_devices"`
	Devices  []domain.SharedDeviceRecord `json:"shared_devices"`
}

// TransferPathAnswer enumerates directed paths between two accounts.
// ShortestHops is nil when no path exists.
type TransferPathAnswer struct {
	Source       string     `json:"source"`
	Target       string     `json:"target"`
	PathsFound   int        `json:"paths_found"`
	Paths        [][]string `json:"paths"`
	ShortestHops *int       `json:"shortest_path_length,omitempty"`
}

// CommunityMembership answers a community query scoped to one account.
type CommunityMembership struct {
	AccountID   string   `json:"account_id"`
	CommunityID int      `json:"community_id"`
	Size        int      `json:"community_size"`
	Members     []string `json:"members"`
	FraudCount  int      `json:"fraudsters_in_community"`
	FraudRate   float64  `json:"fraud_rate"`
}

// CommunityOverview answers a community query with no account scope.
type CommunityOverview struct {
	TotalCommunities int            `json:"total_communities"`
	AvgSize          float64        `json:"avg_community_size"`
	LargestSize      int            `json:"largest_community_size"`
	Distribution     map[string]int `json:"community_distribution"`
}

// CommunityAnswer holds exactly one of the two community shapes.
type CommunityAnswer struct {
	Membership *CommunityMembership `json:"membership,omitempty"`
	Overview   *CommunityOverview   `json:"overview,omitempty"`
}

// PatternAccount is one row of the suspicious-pattern shortlist.
type PatternAccount struct {
	AccountID string  `json:"account_id"`
	RiskScore float64 `json:"risk_score"`
	IsFraud   bool    `json:"is_fraud_label"`
}

// PatternsAnswer surfaces the accounts and device clusters above the
// probe threshold together with detection accuracy against the labels.
type PatternsAnswer struct {
	Threshold      float64                     `json:"threshold"`
	HighRisk       []PatternAccount            `json:"high_risk_accounts"`
	DeviceClusters []domain.SharedDeviceRecord `json:"shared_device_clusters"`
	Evaluation     domain.Evaluation           `json:"detection_accuracy"`
}
