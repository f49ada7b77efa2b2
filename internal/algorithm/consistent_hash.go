package algorithm

import (
	"sync"
	"sync/atomic"

	rerrors "github.com/devrev/chashring/internal/errors"
	"github.com/devrev/chashring/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ring implements consistent hashing with virtual nodes.
//
// One RWMutex guards both the virtual node index and the physical node
// registry: Install and Remove take it exclusively, lookups and reads share
// it. Hit and lookup counters are atomic so shared readers can bump them.
type Ring struct {
	id       string
	hashFunc HashFunc
	index    *VNodeIndex
	registry *nodeRegistry

	// cached extremes of the index, nil iff the index is empty
	minVN *model.VirtualNode
	maxVN *model.VirtualNode

	totalLookups atomic.Uint64
	mu           sync.RWMutex
	logger       *zap.Logger
}

// Option configures a Ring
type Option func(*Ring)

// WithHashFunc overrides the default md5 fold
func WithHashFunc(fn HashFunc) Option {
	return func(r *Ring) {
		if fn != nil {
			r.hashFunc = fn
		}
	}
}

// InstallResult reports how many replicas of a node made it onto the ring
type InstallResult struct {
	Installed  int
	Collisions int
}

// NewRing creates an empty ring
func NewRing(logger *zap.Logger, opts ...Option) *Ring {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Ring{
		id:       uuid.NewString(),
		hashFunc: MD5Hash,
		index:    NewVNodeIndex(),
		registry: newNodeRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logger.With(zap.String("ring_id", r.id))

	return r
}

// ID returns the ring's instance identifier
func (r *Ring) ID() string {
	return r.id
}

// Hash computes the ring position of key
func (r *Ring) Hash(key []byte) uint32 {
	return r.hashFunc(key)
}

// Install registers node and places its replicas on the ring.
// A node whose address is already registered is left alone and
// ErrAlreadyExists is returned. Replicas whose position is already taken are
// skipped and counted as collisions.
func (r *Ring) Install(node *model.PhysicalNode) (InstallResult, error) {
	var result InstallResult

	if node == nil {
		return result, rerrors.InvalidArgument("physical node is nil", nil)
	}
	if node.Address == "" {
		return result, rerrors.InvalidArgument("physical node address is empty", nil).
			WithDetail("desc", node.Desc)
	}
	if node.Replicas < 0 {
		return result, rerrors.InvalidArgument("replica count must not be negative", nil).
			WithDetail("address", node.Address).
			WithDetail("replicas", node.Replicas)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.registry.add(node); err != nil {
		r.logger.Warn("Physical node already installed",
			zap.String("desc", node.Desc),
			zap.String("address", node.Address))
		return result, err
	}

	for i := 0; i < node.Replicas; i++ {
		name := node.ReplicaName(i)
		key := r.hashFunc([]byte(name))

		if existing, found := r.index.FindExact(key); found {
			collision := rerrors.HashCollision(name, key, existing.Desc)
			r.logger.Warn("Skipping colliding virtual node",
				zap.String("replica", name),
				zap.Uint32("hash", key),
				zap.String("owner", existing.NodeAddress),
				zap.Error(collision))
			result.Collisions++
			continue
		}

		vn := model.VirtualNode{
			Key:         key,
			Index:       i,
			Desc:        name,
			NodeAddress: node.Address,
		}
		if !r.index.Insert(vn) {
			result.Collisions++
			continue
		}

		node.AddValidReplicas(1)
		result.Installed++
		r.trackExtremes(vn)
	}

	r.logger.Debug("Installed physical node",
		zap.String("desc", node.Desc),
		zap.String("address", node.Address),
		zap.Int("replicas", node.Replicas),
		zap.Int("installed", result.Installed),
		zap.Int("collisions", result.Collisions))

	return result, nil
}

// Remove erases every virtual node of the node at address, drops it from the
// registry and hands it back to the caller.
func (r *Ring) Remove(address string) (*model.PhysicalNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, exists := r.registry.get(address)
	if !exists {
		return nil, rerrors.NodeNotFound(address)
	}

	erased := 0
	for i := 0; i < node.Replicas; i++ {
		key := r.hashFunc([]byte(node.ReplicaName(i)))

		vn, found := r.index.FindExact(key)
		// a collided replica resolves to another node's entry; leave it
		if !found || vn.NodeAddress != address {
			continue
		}
		r.index.Erase(key)
		node.AddValidReplicas(-1)
		erased++
	}

	r.registry.remove(address)
	r.recomputeExtremes()

	r.logger.Debug("Removed physical node",
		zap.String("desc", node.Desc),
		zap.String("address", address),
		zap.Int("erased", erased))

	return node, nil
}

// Clone builds an independent ring with the same topology and hash function.
// Nodes are deep-copied with fresh counters and installed in registry order.
func (r *Ring) Clone() *Ring {
	r.mu.RLock()
	nodes := make([]*model.PhysicalNode, 0, r.registry.len())
	for _, n := range r.registry.nodes() {
		nodes = append(nodes, n.Clone())
	}
	r.mu.RUnlock()

	clone := NewRing(r.logger, WithHashFunc(r.hashFunc))
	for _, n := range nodes {
		if _, err := clone.Install(n); err != nil {
			clone.logger.Error("Failed to install node into clone",
				zap.String("address", n.Address),
				zap.Error(err))
		}
	}

	clone.logger.Debug("Cloned ring",
		zap.String("source_ring_id", r.id),
		zap.Int("nodes", len(nodes)))

	return clone
}

// Lookup returns the physical node owning key and records the hit
func (r *Ring) Lookup(key []byte) (*model.PhysicalNode, error) {
	return r.LookupHash(r.hashFunc(key))
}

// LookupHash is Lookup for an already hashed key
func (r *Ring) LookupHash(hv uint32) (*model.PhysicalNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, err := r.locate(hv)
	if err != nil {
		return nil, err
	}

	r.totalLookups.Add(1)
	node.RecordHit()
	return node, nil
}

// Locate resolves the owner of hv without touching hit statistics
func (r *Ring) Locate(hv uint32) (*model.PhysicalNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.locate(hv)
}

func (r *Ring) locate(hv uint32) (*model.PhysicalNode, error) {
	vn, ok := r.index.FindRing(hv)
	if !ok {
		return nil, rerrors.EmptyRing(hv)
	}

	node, ok := r.registry.get(vn.NodeAddress)
	if !ok {
		return nil, rerrors.InternalError("virtual node references an unregistered physical node", nil).
			WithDetail("vnode", vn.Desc).
			WithDetail("address", vn.NodeAddress)
	}
	return node, nil
}

// TotalVirtualNodes sums valid replica counts across registered nodes
func (r *Ring) TotalVirtualNodes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.registry.totalVirtualNodes()
}

// NodeCount returns the number of physical nodes
func (r *Ring) NodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.registry.len()
}

// TotalLookups returns the number of counted lookups
func (r *Ring) TotalLookups() uint64 {
	return r.totalLookups.Load()
}

// Node returns the registered node at address
func (r *Ring) Node(address string) (*model.PhysicalNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.registry.get(address)
}

// Nodes returns the registered nodes in installation order
func (r *Ring) Nodes() []*model.PhysicalNode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]*model.PhysicalNode, len(r.registry.nodes()))
	copy(nodes, r.registry.nodes())
	return nodes
}

// Min returns the virtual node with the smallest key
func (r *Ring) Min() (model.VirtualNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.minVN == nil {
		return model.VirtualNode{}, false
	}
	return *r.minVN, true
}

// Max returns the virtual node with the largest key
func (r *Ring) Max() (model.VirtualNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.maxVN == nil {
		return model.VirtualNode{}, false
	}
	return *r.maxVN, true
}

// Summary reads per-node statistics without mutating the ring
func (r *Ring) Summary() model.RingSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := r.totalLookups.Load()
	summary := model.RingSummary{
		RingID:            r.id,
		TotalNodes:        r.registry.len(),
		TotalVirtualNodes: r.registry.totalVirtualNodes(),
		TotalLookups:      total,
		Nodes:             make([]model.NodeStats, 0, r.registry.len()),
	}

	for _, n := range r.registry.nodes() {
		stats := model.NodeStats{
			Desc:         n.Desc,
			Address:      n.Address,
			Replicas:     n.Replicas,
			VirtualNodes: n.ValidReplicas(),
			Hits:         n.Hits(),
		}
		if total > 0 {
			stats.HitRatio = float64(stats.Hits) / float64(total)
		}
		summary.Nodes = append(summary.Nodes, stats)
	}

	return summary
}

// VirtualNodes returns the indexed virtual nodes in key order. With grouped
// set, entries are grouped by physical node in installation order, each group
// still in key order.
func (r *Ring) VirtualNodes(grouped bool) []model.VirtualNode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]model.VirtualNode, 0, r.index.Len())
	r.index.Ascend(func(vn model.VirtualNode) bool {
		all = append(all, vn)
		return true
	})
	if !grouped {
		return all
	}

	byNode := make(map[string][]model.VirtualNode, r.registry.len())
	for _, vn := range all {
		byNode[vn.NodeAddress] = append(byNode[vn.NodeAddress], vn)
	}

	out := make([]model.VirtualNode, 0, len(all))
	for _, n := range r.registry.nodes() {
		out = append(out, byNode[n.Address]...)
	}
	return out
}

// trackExtremes widens the cached min/max to include vn. Caller holds mu.
func (r *Ring) trackExtremes(vn model.VirtualNode) {
	if r.minVN == nil || vn.Key < r.minVN.Key {
		v := vn
		r.minVN = &v
	}
	if r.maxVN == nil || vn.Key > r.maxVN.Key {
		v := vn
		r.maxVN = &v
	}
}

// recomputeExtremes rebuilds the cached min/max from the replica keys of
// every remaining node. Caller holds mu.
func (r *Ring) recomputeExtremes() {
	r.minVN = nil
	r.maxVN = nil

	for _, n := range r.registry.nodes() {
		for i := 0; i < n.Replicas; i++ {
			key := r.hashFunc([]byte(n.ReplicaName(i)))
			if vn, found := r.index.FindExact(key); found {
				r.trackExtremes(vn)
			}
		}
	}
}
