package vector

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/viant/vec/search"

	"github.com/hyperjump/kotae/internal/models"
)

// pruneEps absorbs float32 rounding in triangle-inequality pruning.
const pruneEps = 1e-4

// scoreSlack absorbs float32 rounding in cosine scores when a score bound
// is turned into a distance bound.
const scoreSlack = 1e-5

// VPTreeIndex is a vantage-point tree over unit-normalized copies of the
// vectors. On the unit sphere Euclidean distance is monotone in cosine
// similarity, so pruning with the triangle inequality stays exact.
type VPTreeIndex struct {
	dimensions int
	tree       atomic.Pointer[vpTree]
	buildMu    sync.Mutex
}

type vpTree struct {
	*snapshot
	units [][]float32 // normalized copies, nil for zero vectors
	zero  []int       // entries with zero magnitude; cosine 0 to any query
	root  *vpNode
}

type vpNode struct {
	idx   int
	thr   float32
	left  *vpNode // distance to vantage <= thr
	right *vpNode // distance to vantage >= thr
}

// NewVPTreeIndex creates a VP-tree index with the given dimension.
func NewVPTreeIndex(dimensions int) (*VPTreeIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &VPTreeIndex{dimensions: dimensions}, nil
}

// Build constructs the tree once.
func (v *VPTreeIndex) Build(entries []models.IndexEntry) error {
	v.buildMu.Lock()
	defer v.buildMu.Unlock()
	if v.tree.Load() != nil {
		return ErrAlreadyBuilt
	}
	s, err := newSnapshot(entries, v.dimensions)
	if err != nil {
		return err
	}
	t := &vpTree{snapshot: s, units: make([][]float32, len(s.vectors))}
	var idxs []int
	for i, vec := range s.vectors {
		if s.mags[i] == 0 {
			t.zero = append(t.zero, i)
			continue
		}
		t.units[i] = unit(vec, s.mags[i])
		idxs = append(idxs, i)
	}
	t.root = t.build(idxs)
	v.tree.Store(t)
	return nil
}

func unit(v []float32, m float32) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / m
	}
	return out
}

func (t *vpTree) dist(a, b []float32) float32 {
	return search.Float32s(a).EuclideanDistance(b)
}

// build picks the last index as vantage point and splits the rest at the median distance.
func (t *vpTree) build(idxs []int) *vpNode {
	if len(idxs) == 0 {
		return nil
	}
	vp := idxs[len(idxs)-1]
	rest := idxs[:len(idxs)-1]
	n := &vpNode{idx: vp}
	if len(rest) == 0 {
		return n
	}
	type ranked struct {
		idx  int
		dist float32
	}
	order := make([]ranked, len(rest))
	for i, j := range rest {
		order[i] = ranked{idx: j, dist: t.dist(t.units[vp], t.units[j])}
	}
	sort.Slice(order, func(a, b int) bool {
		if order[a].dist != order[b].dist {
			return order[a].dist < order[b].dist
		}
		return order[a].idx < order[b].idx
	})
	mid := len(order) / 2
	n.thr = order[mid].dist
	sorted := make([]int, len(order))
	for i, r := range order {
		sorted[i] = r.idx
	}
	n.left = t.build(sorted[:mid+1])
	n.right = t.build(sorted[mid+1:])
	return n
}

// candidate is ranked like a FlatIndex hit: score descending, then chunk ID.
type candidate struct {
	idx   int
	score float64
	id    int
}

// worse reports whether a ranks below b.
func (a candidate) worse(b candidate) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.id > b.id
}

// candHeap keeps the worst candidate at the top.
type candHeap []candidate

func (h candHeap) Len() int           { return len(h) }
func (h candHeap) Less(i, j int) bool { return h[i].worse(h[j]) }
func (h candHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *candHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// Search walks the tree keeping the best k candidates by cosine score.
// Euclidean distance on the unit sphere is used only to prune subtrees.
func (v *VPTreeIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := checkQuery(query, v.dimensions); err != nil {
		return nil, err
	}
	t := v.tree.Load()
	if k <= 0 || t == nil || len(t.chunks) == 0 {
		return []Hit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qm := magnitude(query)
	var hits []Hit
	if qm == 0 {
		// Every score is 0; order falls back to chunk ID.
		hits = make([]Hit, len(t.chunks))
		for i := range t.chunks {
			hits[i] = Hit{Chunk: t.chunks[i]}
		}
	} else {
		hits = t.nearest(unit(query, qm), query, qm, k)
	}
	sortHits(hits)
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k:k], nil
}

// radius bounds the unit-sphere distance of any entry that could score at least s.
func radius(s float64) float32 {
	return float32(math.Sqrt(math.Max(0, 2-2*(s-scoreSlack)))) + pruneEps
}

func (t *vpTree) nearest(q, raw []float32, qm float32, want int) []Hit {
	h := make(candHeap, 0, want+1)
	tau := float32(math.Inf(1))
	offer := func(c candidate) {
		if h.Len() < want {
			heap.Push(&h, c)
		} else if h[0].worse(c) {
			h[0] = c
			heap.Fix(&h, 0)
		}
		if h.Len() == want {
			tau = radius(h[0].score)
		}
	}
	// Zero vectors score 0 against any query and are not in the tree.
	for _, i := range t.zero {
		offer(candidate{idx: i, id: t.chunks[i].ID})
	}

	var walk func(n *vpNode)
	walk = func(n *vpNode) {
		if n == nil {
			return
		}
		offer(candidate{
			idx:   n.idx,
			score: cosine(raw, t.vectors[n.idx], qm, t.mags[n.idx]),
			id:    t.chunks[n.idx].ID,
		})
		d := t.dist(q, t.units[n.idx])
		if d <= n.thr {
			if d-tau <= n.thr {
				walk(n.left)
			}
			if d+tau >= n.thr {
				walk(n.right)
			}
		} else {
			if d+tau >= n.thr {
				walk(n.right)
			}
			if d-tau <= n.thr {
				walk(n.left)
			}
		}
	}
	walk(t.root)

	hits := make([]Hit, len(h))
	for i, c := range h {
		hits[i] = Hit{Chunk: t.chunks[c.idx], Score: c.score}
	}
	return hits
}

// Size returns the number of indexed entries.
func (v *VPTreeIndex) Size() int {
	if t := v.tree.Load(); t != nil {
		return len(t.chunks)
	}
	return 0
}

// Dimensions returns the vector dimension.
func (v *VPTreeIndex) Dimensions() int { return v.dimensions }

// Type returns "vptree".
func (v *VPTreeIndex) Type() string { return string(IndexTypeVPTree) }
