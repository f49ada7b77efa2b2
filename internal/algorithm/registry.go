package algorithm

import (
	rerrors "github.com/devrev/chashring/internal/errors"
	"github.com/devrev/chashring/internal/model"
)

// nodeRegistry keeps physical nodes in insertion order, keyed by address.
// Callers must hold the owning ring's lock.
type nodeRegistry struct {
	order  []*model.PhysicalNode
	byAddr map[string]*model.PhysicalNode
}

func newNodeRegistry() *nodeRegistry {
	return &nodeRegistry{
		order:  make([]*model.PhysicalNode, 0),
		byAddr: make(map[string]*model.PhysicalNode),
	}
}

// add appends node and resets its counters
func (r *nodeRegistry) add(node *model.PhysicalNode) error {
	if _, exists := r.byAddr[node.Address]; exists {
		return rerrors.NodeAlreadyExists(node.Address)
	}

	node.ResetCounters()
	r.order = append(r.order, node)
	r.byAddr[node.Address] = node
	return nil
}

// remove drops the node at address, preserving the order of the rest
func (r *nodeRegistry) remove(address string) (*model.PhysicalNode, bool) {
	node, exists := r.byAddr[address]
	if !exists {
		return nil, false
	}

	delete(r.byAddr, address)
	for i, n := range r.order {
		if n == node {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return node, true
}

func (r *nodeRegistry) get(address string) (*model.PhysicalNode, bool) {
	node, ok := r.byAddr[address]
	return node, ok
}

func (r *nodeRegistry) nodes() []*model.PhysicalNode {
	return r.order
}

func (r *nodeRegistry) len() int {
	return len(r.order)
}

// totalVirtualNodes sums valid replica counts across all nodes
func (r *nodeRegistry) totalVirtualNodes() int {
	total := 0
	for _, n := range r.order {
		total += n.ValidReplicas()
	}
	return total
}
