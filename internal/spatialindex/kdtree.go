// Package spatialindex implements a static k-d tree over WGS84 points for
// nearest-station queries. An Index is immutable once built; rebuild it when
// the underlying station list changes.
package spatialindex

import (
	"container/heap"
	"sort"

	"github.com/sells-group/station-planner/internal/geomath"
)

// Item is one indexed point.
type Item struct {
	ID    string
	Point geomath.GeoPoint
}

// Neighbor is a query result. Index is the item's position in the slice the
// Index was built from.
type Neighbor struct {
	Item           Item    `json:"item"`
	Index          int     `json:"index"`
	DistanceMeters float64 `json:"distance_meters"`
}

type node struct {
	idx         int
	axis        geomath.Axis
	split       float64
	left, right *node
}

// Index is a k-d tree keyed on (lat, lng), lat at even depths.
type Index struct {
	items []Item
	root  *node
}

// New builds an index over items. The slice is copied.
func New(items []Item) *Index {
	ix := &Index{items: append([]Item(nil), items...)}
	order := make([]int, len(ix.items))
	for i := range order {
		order[i] = i
	}
	ix.root = ix.build(order, 0)
	return ix
}

func (ix *Index) build(order []int, depth int) *node {
	if len(order) == 0 {
		return nil
	}
	axis := geomath.AxisLat
	if depth%2 == 1 {
		axis = geomath.AxisLng
	}
	sort.Slice(order, func(a, b int) bool {
		va, vb := axis.Value(ix.items[order[a]].Point), axis.Value(ix.items[order[b]].Point)
		if va != vb {
			return va < vb
		}
		return order[a] < order[b]
	})

	mid := len(order) / 2
	n := &node{
		idx:   order[mid],
		axis:  axis,
		split: axis.Value(ix.items[order[mid]].Point),
	}
	// Children get their own copies so sorting one subtree never reorders the other.
	n.left = ix.build(append([]int(nil), order[:mid]...), depth+1)
	n.right = ix.build(append([]int(nil), order[mid+1:]...), depth+1)
	return n
}

// Len returns the number of indexed items.
func (ix *Index) Len() int { return len(ix.items) }

// Items returns a copy of the indexed items in input order.
func (ix *Index) Items() []Item { return append([]Item(nil), ix.items...) }

// KNearest returns the min(k, Len()) items closest to target by haversine
// distance, ascending. Equal distances keep input order.
func (ix *Index) KNearest(target geomath.GeoPoint, k int) []Neighbor {
	if k <= 0 || ix.root == nil {
		return []Neighbor{}
	}
	if k > len(ix.items) {
		k = len(ix.items)
	}
	h := &maxHeap{}
	ix.search(ix.root, target, k, h)

	out := make([]Neighbor, len(*h))
	copy(out, *h)
	sortNeighbors(out)
	return out
}

// Nearest returns the single closest item. ok is false on an empty index.
func (ix *Index) Nearest(target geomath.GeoPoint) (Neighbor, bool) {
	res := ix.KNearest(target, 1)
	if len(res) == 0 {
		return Neighbor{}, false
	}
	return res[0], true
}

// WithinRadius returns every item within radiusMeters of target, ascending by
// distance with input-order ties.
func (ix *Index) WithinRadius(target geomath.GeoPoint, radiusMeters float64) []Neighbor {
	out := []Neighbor{}
	if ix.root == nil || !(radiusMeters >= 0) {
		return out
	}
	ix.collect(ix.root, target, radiusMeters, &out)
	sortNeighbors(out)
	return out
}

func (ix *Index) search(n *node, target geomath.GeoPoint, k int, h *maxHeap) {
	if n == nil {
		return
	}
	cand := ix.neighbor(n.idx, target)
	switch {
	case h.Len() < k:
		heap.Push(h, cand)
	case less(cand, (*h)[0]):
		(*h)[0] = cand
		heap.Fix(h, 0)
	}

	near, far := n.left, n.right
	if n.axis.Value(target) > n.split {
		near, far = n.right, n.left
	}
	ix.search(near, target, k, h)

	if h.Len() < k || (*h)[0].DistanceMeters >= geomath.AxisDistanceMeters(target, n.axis, n.split) {
		ix.search(far, target, k, h)
	}
}

func (ix *Index) collect(n *node, target geomath.GeoPoint, radius float64, out *[]Neighbor) {
	if n == nil {
		return
	}
	if cand := ix.neighbor(n.idx, target); cand.DistanceMeters <= radius {
		*out = append(*out, cand)
	}
	near, far := n.left, n.right
	if n.axis.Value(target) > n.split {
		near, far = n.right, n.left
	}
	ix.collect(near, target, radius, out)
	if geomath.AxisDistanceMeters(target, n.axis, n.split) <= radius {
		ix.collect(far, target, radius, out)
	}
}

func (ix *Index) neighbor(idx int, target geomath.GeoPoint) Neighbor {
	it := ix.items[idx]
	return Neighbor{
		Item:           it,
		Index:          idx,
		DistanceMeters: geomath.HaversineMeters(target, it.Point),
	}
}

// less orders neighbors by distance, then input position.
func less(a, b Neighbor) bool {
	if a.DistanceMeters != b.DistanceMeters {
		return a.DistanceMeters < b.DistanceMeters
	}
	return a.Index < b.Index
}

func sortNeighbors(ns []Neighbor) {
	sort.Slice(ns, func(i, j int) bool { return less(ns[i], ns[j]) })
}

// maxHeap keeps the current worst candidate at the root.
type maxHeap []Neighbor

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return less(h[j], h[i]) }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
