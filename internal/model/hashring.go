package model

import (
	"fmt"
	"sync/atomic"
)

// PhysicalNode represents a backend machine placed on the ring
type PhysicalNode struct {
	Desc     string
	Address  string
	Replicas int

	hits          atomic.Uint64
	validReplicas atomic.Int64
}

// NewPhysicalNode configures a physical node. It does not touch any ring.
func NewPhysicalNode(desc, address string, replicas int) *PhysicalNode {
	return &PhysicalNode{
		Desc:     desc,
		Address:  address,
		Replicas: replicas,
	}
}

// Clone copies identity and configuration. Counters start at zero.
func (n *PhysicalNode) Clone() *PhysicalNode {
	return NewPhysicalNode(n.Desc, n.Address, n.Replicas)
}

// Hits returns the number of lookups resolved to this node
func (n *PhysicalNode) Hits() uint64 {
	return n.hits.Load()
}

// ValidReplicas returns the number of virtual nodes currently indexed for this node
func (n *PhysicalNode) ValidReplicas() int {
	return int(n.validReplicas.Load())
}

// RecordHit increments the hit counter
func (n *PhysicalNode) RecordHit() {
	n.hits.Add(1)
}

// AddValidReplicas adjusts the valid replica counter by delta
func (n *PhysicalNode) AddValidReplicas(delta int) {
	n.validReplicas.Add(int64(delta))
}

// ResetCounters zeroes hits and valid replicas
func (n *PhysicalNode) ResetCounters() {
	n.hits.Store(0)
	n.validReplicas.Store(0)
}

// ReplicaName returns the identifier hashed to place replica i of the node
func (n *PhysicalNode) ReplicaName(i int) string {
	return ReplicaName(n.Address, i)
}

// String implements fmt.Stringer
func (n *PhysicalNode) String() string {
	return fmt.Sprintf("%s(%s)", n.Desc, n.Address)
}

// ReplicaName formats the identifier of replica i for a node address.
// Format: <address>_<i>
func ReplicaName(address string, i int) string {
	return fmt.Sprintf("%s_%d", address, i)
}

// VirtualNode represents one replica position on the ring.
// NodeAddress is a handle into the ring's registry, not an owning reference.
type VirtualNode struct {
	Key         uint32
	Index       int
	Desc        string
	NodeAddress string
}

// NodeStats is the per-node line of a ring summary
type NodeStats struct {
	Desc         string  `json:"desc"`
	Address      string  `json:"address"`
	Replicas     int     `json:"replicas"`
	VirtualNodes int     `json:"virtual_nodes"`
	Hits         uint64  `json:"hits"`
	HitRatio     float64 `json:"hit_ratio"`
}

// RingSummary is a point-in-time read of ring statistics
type RingSummary struct {
	RingID            string      `json:"ring_id"`
	TotalNodes        int         `json:"total_nodes"`
	TotalVirtualNodes int         `json:"total_virtual_nodes"`
	TotalLookups      uint64      `json:"total_lookups"`
	Nodes             []NodeStats `json:"nodes"`
}
