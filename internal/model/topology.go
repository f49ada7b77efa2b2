package model

import "time"

// MutationKind identifies the topology change applied during a disruption check
type MutationKind string

const (
	// MutationAdd installs one new physical node
	MutationAdd MutationKind = "add"
	// MutationRemove removes one existing physical node
	MutationRemove MutationKind = "remove"
)

// Mutation describes a single-node topology change.
// Node is set for MutationAdd, Address for MutationRemove.
type Mutation struct {
	Kind    MutationKind
	Node    *PhysicalNode
	Address string
}

// AddNodeMutation builds a mutation that installs node
func AddNodeMutation(node *PhysicalNode) Mutation {
	return Mutation{Kind: MutationAdd, Node: node}
}

// RemoveNodeMutation builds a mutation that removes the node at address
func RemoveNodeMutation(address string) Mutation {
	return Mutation{Kind: MutationRemove, Address: address}
}

// Target returns the address the mutation acts on
func (m Mutation) Target() string {
	if m.Kind == MutationAdd && m.Node != nil {
		return m.Node.Address
	}
	return m.Address
}

// Classification buckets a disruption ratio
type Classification string

const (
	// ClassificationNominal means ratio <= 8%
	ClassificationNominal Classification = "nominal"
	// ClassificationElevated means 8% < ratio <= 15%
	ClassificationElevated Classification = "elevated"
	// ClassificationUnclassified covers 15% < ratio < 20%, which no band claims
	ClassificationUnclassified Classification = "unclassified"
	// ClassificationSevere means ratio >= 20%
	ClassificationSevere Classification = "severe"
)

// Disruption thresholds, as fractions of the replayed key count
const (
	NominalThreshold  = 0.08
	ElevatedThreshold = 0.15
	SevereThreshold   = 0.20
)

// Classify maps a ratio onto its band
func Classify(ratio float64) Classification {
	switch {
	case ratio <= NominalThreshold:
		return ClassificationNominal
	case ratio <= ElevatedThreshold:
		return ClassificationElevated
	case ratio >= SevereThreshold:
		return ClassificationSevere
	default:
		return ClassificationUnclassified
	}
}

// DisruptionReport is the outcome of one disruption measurement
type DisruptionReport struct {
	Mutation       MutationKind   `json:"mutation"`
	Target         string         `json:"target"`
	KeyCount       int            `json:"key_count"`
	Changes        uint64         `json:"changes"`
	Ratio          float64        `json:"ratio"`
	Classification Classification `json:"classification"`
	Duration       time.Duration  `json:"duration"`
	After          RingSummary    `json:"after"`
}
