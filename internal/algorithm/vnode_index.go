package algorithm

import (
	"github.com/devrev/chashring/internal/model"
	"github.com/google/btree"
)

const vnodeIndexDegree = 32

// VNodeIndex is an ordered map from ring position to virtual node.
// It is not safe for concurrent use; Ring serializes access.
type VNodeIndex struct {
	tree *btree.BTreeG[model.VirtualNode]
}

func vnodeLess(a, b model.VirtualNode) bool {
	return a.Key < b.Key
}

// NewVNodeIndex creates an empty index
func NewVNodeIndex() *VNodeIndex {
	return &VNodeIndex{
		tree: btree.NewG[model.VirtualNode](vnodeIndexDegree, vnodeLess),
	}
}

// Insert adds vn if its key is free. It returns false on a collision and
// leaves the existing entry untouched.
func (idx *VNodeIndex) Insert(vn model.VirtualNode) bool {
	if idx.tree.Has(vn) {
		return false
	}
	idx.tree.ReplaceOrInsert(vn)
	return true
}

// FindExact returns the entry stored at key
func (idx *VNodeIndex) FindExact(key uint32) (model.VirtualNode, bool) {
	return idx.tree.Get(model.VirtualNode{Key: key})
}

// FindRing returns the entry with the smallest key >= key, wrapping to the
// smallest key overall. It returns false only when the index is empty.
func (idx *VNodeIndex) FindRing(key uint32) (model.VirtualNode, bool) {
	var (
		found model.VirtualNode
		ok    bool
	)
	idx.tree.AscendGreaterOrEqual(model.VirtualNode{Key: key}, func(vn model.VirtualNode) bool {
		found, ok = vn, true
		return false
	})
	if ok {
		return found, true
	}
	return idx.tree.Min()
}

// Erase removes the entry at key
func (idx *VNodeIndex) Erase(key uint32) bool {
	_, ok := idx.tree.Delete(model.VirtualNode{Key: key})
	return ok
}

// Min returns the entry with the smallest key
func (idx *VNodeIndex) Min() (model.VirtualNode, bool) {
	return idx.tree.Min()
}

// Max returns the entry with the largest key
func (idx *VNodeIndex) Max() (model.VirtualNode, bool) {
	return idx.tree.Max()
}

// Len returns the number of indexed virtual nodes
func (idx *VNodeIndex) Len() int {
	return idx.tree.Len()
}

// Ascend calls fn for every entry in key order until fn returns false
func (idx *VNodeIndex) Ascend(fn func(vn model.VirtualNode) bool) {
	idx.tree.Ascend(fn)
}
