package store

import (
	"math"
	"slices"
	"sort"

	"github.com/google/btree"
)

// IndexEntry locates a record in the data file
type IndexEntry struct {
	Key    string
	Offset int64
}

// IndexKind selects implementation of the in-memory index
type IndexKind int

const (
	// IndexSorted is a sorted slice. Insert is O(n).
	IndexSorted IndexKind = iota
	// IndexBTree is a B-tree. Insert is O(log n).
	IndexBTree
)

func (k IndexKind) String() string {
	switch k {
	case IndexSorted:
		return "sorted"
	case IndexBTree:
		return "btree"
	}
	return "unknown"
}

// ParseIndexKind parses the name returned by IndexKind.String()
func ParseIndexKind(s string) (IndexKind, bool) {
	switch s {
	case "", "sorted":
		return IndexSorted, true
	case "btree":
		return IndexBTree, true
	}
	return IndexSorted, false
}

// index is ordered by key. Among entries with equal keys, the most
// recently inserted comes first.
type index interface {
	insert(e IndexEntry)
	// find returns the leftmost entry with key
	find(key string) (IndexEntry, bool)
	len() int
	entries() []IndexEntry
}

func newIndex(kind IndexKind) index {
	if kind == IndexBTree {
		return newBTreeIndex()
	}
	return &sortedIndex{}
}

type sortedIndex struct {
	a []IndexEntry
}

// position of the first entry with key >= key
func (idx *sortedIndex) lowerBound(key string) int {
	return sort.Search(len(idx.a), func(i int) bool {
		return idx.a[i].Key >= key
	})
}

func (idx *sortedIndex) insert(e IndexEntry) {
	i := idx.lowerBound(e.Key)
	idx.a = slices.Insert(idx.a, i, e)
}

func (idx *sortedIndex) find(key string) (IndexEntry, bool) {
	i := idx.lowerBound(key)
	if i < len(idx.a) && idx.a[i].Key == key {
		return idx.a[i], true
	}
	return IndexEntry{}, false
}

func (idx *sortedIndex) len() int {
	return len(idx.a)
}

func (idx *sortedIndex) entries() []IndexEntry {
	return slices.Clone(idx.a)
}

type btreeItem struct {
	IndexEntry
	// insertion sequence, breaks ties between equal keys
	seq uint64
}

func btreeItemLess(a, b btreeItem) bool {
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	return a.seq > b.seq
}

type btreeIndex struct {
	tree *btree.BTreeG[btreeItem]
	seq  uint64
}

func newBTreeIndex() *btreeIndex {
	return &btreeIndex{
		tree: btree.NewG(32, btreeItemLess),
	}
}

func (idx *btreeIndex) insert(e IndexEntry) {
	idx.seq++
	idx.tree.ReplaceOrInsert(btreeItem{IndexEntry: e, seq: idx.seq})
}

func (idx *btreeIndex) find(key string) (IndexEntry, bool) {
	// sorts before every item with the same key
	pivot := btreeItem{IndexEntry: IndexEntry{Key: key}, seq: math.MaxUint64}
	var res IndexEntry
	found := false
	idx.tree.AscendGreaterOrEqual(pivot, func(it btreeItem) bool {
		if it.Key == key {
			res = it.IndexEntry
			found = true
		}
		return false
	})
	return res, found
}

func (idx *btreeIndex) len() int {
	return idx.tree.Len()
}

func (idx *btreeIndex) entries() []IndexEntry {
	res := make([]IndexEntry, 0, idx.tree.Len())
	idx.tree.Ascend(func(it btreeItem) bool {
		res = append(res, it.IndexEntry)
		return true
	})
	return res
}
