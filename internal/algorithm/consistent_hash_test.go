package algorithm

import (
	"fmt"
	"math"
	"sync"
	"testing"

	rerrors "github.com/devrev/chashring/internal/errors"
	"github.com/devrev/chashring/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRing(t *testing.T, nodes int, replicas int) *Ring {
	t.Helper()

	ring := NewRing(zap.NewNop())
	for i := 0; i < nodes; i++ {
		node := model.NewPhysicalNode(fmt.Sprintf("Machine_%d", i), fmt.Sprintf("10.0.%d.%d", i/256, i%256), replicas)
		_, err := ring.Install(node)
		require.NoError(t, err)
	}
	return ring
}

// tableHash hashes through a fixed table so tests can place keys exactly
func tableHash(table map[string]uint32) HashFunc {
	return func(data []byte) uint32 {
		if v, ok := table[string(data)]; ok {
			return v
		}
		return MD5Hash(data)
	}
}

func TestRing_InstallCountsReplicas(t *testing.T) {
	ring := NewRing(zap.NewNop())
	node := model.NewPhysicalNode("Machine_0", "127.0.0.1", 160)

	result, err := ring.Install(node)
	require.NoError(t, err)

	assert.Equal(t, 160, result.Installed+result.Collisions)
	assert.Equal(t, result.Installed, node.ValidReplicas())
	assert.Equal(t, node.ValidReplicas(), ring.TotalVirtualNodes())
	assert.Equal(t, 1, ring.NodeCount())
}

func TestRing_InstallValidation(t *testing.T) {
	ring := NewRing(zap.NewNop())

	_, err := ring.Install(nil)
	assert.ErrorIs(t, err, rerrors.ErrInvalidArgument)

	_, err = ring.Install(model.NewPhysicalNode("no-address", "", 10))
	assert.ErrorIs(t, err, rerrors.ErrInvalidArgument)

	_, err = ring.Install(model.NewPhysicalNode("negative", "10.0.0.1", -1))
	assert.ErrorIs(t, err, rerrors.ErrInvalidArgument)

	assert.Equal(t, 0, ring.NodeCount())
}

func TestRing_DuplicateInstallIsNoop(t *testing.T) {
	ring := newTestRing(t, 3, 64)
	before := ring.TotalVirtualNodes()

	for i := 0; i < 100; i++ {
		_, err := ring.Lookup([]byte(fmt.Sprintf("key-%d", i)))
		require.NoError(t, err)
	}
	hitsBefore := make(map[string]uint64)
	for _, n := range ring.Nodes() {
		hitsBefore[n.Address] = n.Hits()
	}

	result, err := ring.Install(model.NewPhysicalNode("Impostor", "10.0.0.1", 64))
	require.Error(t, err)
	assert.ErrorIs(t, err, rerrors.ErrAlreadyExists)
	assert.Equal(t, InstallResult{}, result)

	assert.Equal(t, before, ring.TotalVirtualNodes())
	assert.Equal(t, 3, ring.NodeCount())
	for _, n := range ring.Nodes() {
		assert.Equal(t, hitsBefore[n.Address], n.Hits(), "hits of %s changed", n.Address)
	}
}

func TestRing_RemoveInvertsInstall(t *testing.T) {
	ring := NewRing(zap.NewNop())
	node := model.NewPhysicalNode("Machine_0", "127.0.0.1", 160)
	_, err := ring.Install(node)
	require.NoError(t, err)

	removed, err := ring.Remove("127.0.0.1")
	require.NoError(t, err)
	assert.Same(t, node, removed)

	assert.Equal(t, 0, ring.TotalVirtualNodes())
	assert.Equal(t, 0, ring.NodeCount())
	assert.Equal(t, 0, removed.ValidReplicas())
	assert.Empty(t, ring.VirtualNodes(false))

	_, ok := ring.Min()
	assert.False(t, ok)
	_, ok = ring.Max()
	assert.False(t, ok)
}

func TestRing_RemoveUnknown(t *testing.T) {
	ring := newTestRing(t, 2, 16)

	_, err := ring.Remove("192.168.0.1")
	require.Error(t, err)
	assert.ErrorIs(t, err, rerrors.ErrNotFound)
	assert.Equal(t, rerrors.ErrCodeNotFound, rerrors.GetCode(err))
	assert.Equal(t, 2, ring.NodeCount())
}

func TestRing_LookupEmptyRing(t *testing.T) {
	ring := NewRing(zap.NewNop())

	node, err := ring.Lookup([]byte("any-key"))
	assert.Nil(t, node)
	assert.ErrorIs(t, err, rerrors.ErrEmptyRing)
	assert.ErrorIs(t, err, rerrors.ErrNotFound)
	assert.Equal(t, uint64(0), ring.TotalLookups())
}

func TestRing_LookupDeterminism(t *testing.T) {
	ring := newTestRing(t, 5, 64)

	for i := 0; i < 200; i++ {
		key := []byte(fmt.Sprintf("user:%d", i))
		first, err := ring.Lookup(key)
		require.NoError(t, err)
		second, err := ring.Lookup(key)
		require.NoError(t, err)
		assert.Same(t, first, second, "key %s", key)
	}
	assert.Equal(t, uint64(400), ring.TotalLookups())
}

func TestRing_LookupCoverage(t *testing.T) {
	ring := newTestRing(t, 4, 64)
	_, err := ring.Remove("10.0.0.2")
	require.NoError(t, err)

	registered := make(map[*model.PhysicalNode]bool)
	for _, n := range ring.Nodes() {
		registered[n] = true
	}

	for i := 0; i < 1000; i++ {
		node, err := ring.Lookup([]byte(fmt.Sprintf("key-%d", i)))
		require.NoError(t, err)
		assert.True(t, registered[node], "lookup returned unregistered node %s", node)
	}
}

func TestRing_Wraparound(t *testing.T) {
	ring := NewRing(zap.NewNop(), WithHashFunc(tableHash(map[string]uint32{
		"a_0":      100,
		"a_1":      300,
		"b_0":      200,
		"k-low":    50,
		"k-exact":  200,
		"k-middle": 250,
		"k-wrap":   400,
	})))
	_, err := ring.Install(model.NewPhysicalNode("A", "a", 2))
	require.NoError(t, err)
	_, err = ring.Install(model.NewPhysicalNode("B", "b", 1))
	require.NoError(t, err)

	tests := []struct {
		key  string
		want string
	}{
		{key: "k-low", want: "a"},
		{key: "k-exact", want: "b"},
		{key: "k-middle", want: "a"},
		{key: "k-wrap", want: "a"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			node, err := ring.Lookup([]byte(tt.key))
			require.NoError(t, err)
			assert.Equal(t, tt.want, node.Address)
		})
	}

	minVN, ok := ring.Min()
	require.True(t, ok)
	assert.Equal(t, uint32(100), minVN.Key)
	maxVN, ok := ring.Max()
	require.True(t, ok)
	assert.Equal(t, uint32(300), maxVN.Key)
}

func TestRing_WraparoundPastMaximum(t *testing.T) {
	ring := newTestRing(t, 10, 32)

	minVN, ok := ring.Min()
	require.True(t, ok)
	maxVN, ok := ring.Max()
	require.True(t, ok)
	if maxVN.Key == math.MaxUint32 {
		t.Skip("maximum virtual node sits at the top of the ring")
	}

	owner, err := ring.LookupHash(maxVN.Key + 1)
	require.NoError(t, err)
	assert.Equal(t, minVN.NodeAddress, owner.Address)

	owner, err = ring.LookupHash(maxVN.Key)
	require.NoError(t, err)
	assert.Equal(t, maxVN.NodeAddress, owner.Address)
}

func TestRing_CollisionSkipsReplica(t *testing.T) {
	// every replica name ending in the same digit lands on the same key
	lastByte := func(data []byte) uint32 { return uint32(data[len(data)-1]) }
	ring := NewRing(zap.NewNop(), WithHashFunc(lastByte))

	a := model.NewPhysicalNode("A", "a", 3)
	result, err := ring.Install(a)
	require.NoError(t, err)
	assert.Equal(t, InstallResult{Installed: 3}, result)

	b := model.NewPhysicalNode("B", "b", 4)
	result, err = ring.Install(b)
	require.NoError(t, err)
	assert.Equal(t, InstallResult{Installed: 1, Collisions: 3}, result)

	assert.Equal(t, 3, a.ValidReplicas())
	assert.Equal(t, 1, b.ValidReplicas())
	assert.Equal(t, 4, ring.TotalVirtualNodes())

	vn, ok := ring.Min()
	require.True(t, ok)
	assert.Equal(t, "a", vn.NodeAddress, "first installed replica keeps the slot")

	// removing B must leave A's virtual nodes in place
	_, err = ring.Remove("b")
	require.NoError(t, err)
	assert.Equal(t, 3, a.ValidReplicas())
	assert.Equal(t, 3, ring.TotalVirtualNodes())
	assert.Len(t, ring.VirtualNodes(false), 3)
}

func TestRing_ExtremesTrackIndex(t *testing.T) {
	ring := newTestRing(t, 6, 40)

	check := func() {
		t.Helper()
		all := ring.VirtualNodes(false)
		require.NotEmpty(t, all)

		minVN, ok := ring.Min()
		require.True(t, ok)
		maxVN, ok := ring.Max()
		require.True(t, ok)
		assert.Equal(t, all[0], minVN)
		assert.Equal(t, all[len(all)-1], maxVN)
	}

	check()
	minVN, _ := ring.Min()
	_, err := ring.Remove(minVN.NodeAddress)
	require.NoError(t, err)
	check()

	maxVN, _ := ring.Max()
	_, err = ring.Remove(maxVN.NodeAddress)
	require.NoError(t, err)
	check()
}

func TestRing_CloneIndependence(t *testing.T) {
	ring := newTestRing(t, 5, 64)
	for i := 0; i < 50; i++ {
		_, err := ring.Lookup([]byte(fmt.Sprintf("key-%d", i)))
		require.NoError(t, err)
	}

	owners := make(map[string]string)
	for i := 0; i < 500; i++ {
		key := fmt.Sprintf("probe-%d", i)
		node, err := ring.Locate(ring.Hash([]byte(key)))
		require.NoError(t, err)
		owners[key] = node.Address
	}
	vnodes := ring.TotalVirtualNodes()

	clone := ring.Clone()
	assert.NotEqual(t, ring.ID(), clone.ID())
	assert.Equal(t, vnodes, clone.TotalVirtualNodes())
	assert.Equal(t, uint64(0), clone.TotalLookups())
	for _, n := range clone.Nodes() {
		assert.Equal(t, uint64(0), n.Hits())
		orig, ok := ring.Node(n.Address)
		require.True(t, ok)
		assert.NotSame(t, orig, n)
	}

	_, err := clone.Remove("10.0.0.0")
	require.NoError(t, err)
	_, err = clone.Install(model.NewPhysicalNode("Extra", "10.9.9.9", 64))
	require.NoError(t, err)

	assert.Equal(t, vnodes, ring.TotalVirtualNodes())
	assert.Equal(t, 5, ring.NodeCount())
	for key, addr := range owners {
		node, err := ring.Locate(ring.Hash([]byte(key)))
		require.NoError(t, err)
		assert.Equal(t, addr, node.Address, "owner of %s changed", key)
	}
}

func TestRing_CloneKeepsHashFunc(t *testing.T) {
	ring := NewRing(zap.NewNop(), WithHashFunc(XXHash))
	_, err := ring.Install(model.NewPhysicalNode("A", "10.0.0.1", 8))
	require.NoError(t, err)

	clone := ring.Clone()
	assert.Equal(t, ring.VirtualNodes(false), clone.VirtualNodes(false))
}

func TestRing_Summary(t *testing.T) {
	ring := newTestRing(t, 3, 32)
	for i := 0; i < 300; i++ {
		_, err := ring.Lookup([]byte(fmt.Sprintf("key-%d", i)))
		require.NoError(t, err)
	}

	summary := ring.Summary()
	assert.Equal(t, ring.ID(), summary.RingID)
	assert.Equal(t, 3, summary.TotalNodes)
	assert.Equal(t, ring.TotalVirtualNodes(), summary.TotalVirtualNodes)
	assert.Equal(t, uint64(300), summary.TotalLookups)
	require.Len(t, summary.Nodes, 3)

	var hits uint64
	var ratio float64
	for i, n := range summary.Nodes {
		assert.Equal(t, fmt.Sprintf("Machine_%d", i), n.Desc, "summary keeps installation order")
		hits += n.Hits
		ratio += n.HitRatio
	}
	assert.Equal(t, uint64(300), hits)
	assert.InDelta(t, 1.0, ratio, 1e-9)

	// reading the summary does not count as a lookup
	assert.Equal(t, uint64(300), ring.Summary().TotalLookups)
}

func TestRing_VirtualNodesGrouped(t *testing.T) {
	ring := newTestRing(t, 3, 16)

	flat := ring.VirtualNodes(false)
	grouped := ring.VirtualNodes(true)
	require.Len(t, grouped, len(flat))

	for i := 1; i < len(flat); i++ {
		assert.Less(t, flat[i-1].Key, flat[i].Key)
	}

	order := []string{"10.0.0.0", "10.0.0.1", "10.0.0.2"}
	pos := 0
	for _, addr := range order {
		var prev uint32
		for j := 0; pos < len(grouped) && grouped[pos].NodeAddress == addr; pos, j = pos+1, j+1 {
			if j > 0 {
				assert.Less(t, prev, grouped[pos].Key)
			}
			prev = grouped[pos].Key
		}
	}
	assert.Equal(t, len(grouped), pos, "groups must follow installation order")
}

func TestRing_ConcurrentLookupsAndTopologyChanges(t *testing.T) {
	ring := newTestRing(t, 4, 64)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				node, err := ring.Lookup([]byte(fmt.Sprintf("w%d-%d", w, i)))
				if !assert.NoError(t, err) || !assert.NotNil(t, node) {
					return
				}
			}
		}(w)
	}

	for i := 0; i < 50; i++ {
		addr := fmt.Sprintf("172.16.0.%d", i)
		_, err := ring.Install(model.NewPhysicalNode("Churn", addr, 32))
		require.NoError(t, err)
		_, err = ring.Remove(addr)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, 4, ring.NodeCount())
}
