package ann

import (
	"container/heap"
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/kirillkom/clipindex/internal/core/domain"
)

const (
	defaultM              = 16
	defaultEfConstruction = 200
	defaultEfSearch       = 64
)

type hnswNode struct {
	id     string
	vector []float32
	// neighbors[level] holds node indices; level 0 allows 2*M edges.
	neighbors [][]int
}

// HNSW is a hierarchical navigable small world graph over cosine distance.
// It trades recall for query speed; ranking semantics (cosine similarity,
// descending) match the brute-force index.
type HNSW struct {
	mu             sync.RWMutex
	m              int
	efConstruction int
	efSearch       int
	levelMult      float64
	rng            *rand.Rand

	nodes    []hnswNode
	byID     map[string]int
	entry    int
	maxLevel int
}

func NewHNSW() *HNSW {
	return &HNSW{
		m:              defaultM,
		efConstruction: defaultEfConstruction,
		efSearch:       defaultEfSearch,
		levelMult:      1.0 / math.Log(float64(defaultM)),
		rng:            rand.New(rand.NewSource(1)),
		byID:           make(map[string]int),
		entry:          -1,
	}
}

func hnswDistance(a, b []float32) float64 {
	return 1 - Cosine(a, b)
}

func (h *HNSW) Upsert(_ context.Context, entryID string, vector []float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if idx, ok := h.byID[entryID]; ok {
		// In-place vector swap; stale edges self-heal on later inserts.
		h.nodes[idx].vector = vector
		return nil
	}

	level := h.randomLevel()
	node := hnswNode{id: entryID, vector: vector, neighbors: make([][]int, level+1)}
	idx := len(h.nodes)
	h.nodes = append(h.nodes, node)
	h.byID[entryID] = idx

	if h.entry < 0 {
		h.entry = idx
		h.maxLevel = level
		return nil
	}

	curr := h.entry
	for l := h.maxLevel; l > level; l-- {
		curr = h.greedyClosest(vector, curr, l)
	}

	top := level
	if top > h.maxLevel {
		top = h.maxLevel
	}
	for l := top; l >= 0; l-- {
		candidates := h.searchLayer(vector, curr, h.efConstruction, l)
		maxConn := h.m
		if l == 0 {
			maxConn = 2 * h.m
		}
		neighbors := h.selectNeighbors(candidates, maxConn)
		h.nodes[idx].neighbors[l] = neighbors
		for _, n := range neighbors {
			h.nodes[n].neighbors[l] = append(h.nodes[n].neighbors[l], idx)
			if len(h.nodes[n].neighbors[l]) > maxConn {
				h.pruneNeighbors(n, l, maxConn)
			}
		}
		if len(candidates) > 0 {
			curr = candidates[0].idx
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entry = idx
	}
	return nil
}

func (h *HNSW) Search(_ context.Context, query []float32, k int) ([]domain.VectorHit, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.entry < 0 || k <= 0 {
		return nil, nil
	}

	curr := h.entry
	for l := h.maxLevel; l > 0; l-- {
		curr = h.greedyClosest(query, curr, l)
	}

	ef := h.efSearch
	if ef < k {
		ef = k
	}
	candidates := h.searchLayer(query, curr, ef, 0)

	hits := make([]domain.VectorHit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, domain.VectorHit{EntryID: h.nodes[c.idx].id, Score: 1 - c.dist})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (h *HNSW) Clear(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes = nil
	h.byID = make(map[string]int)
	h.entry = -1
	h.maxLevel = 0
	return nil
}

func (h *HNSW) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

func (h *HNSW) randomLevel() int {
	return int(-math.Log(h.rng.Float64()+1e-12) * h.levelMult)
}

// greedyClosest walks a single layer toward the query until no neighbor
// improves the distance.
func (h *HNSW) greedyClosest(query []float32, start, level int) int {
	curr := start
	currDist := hnswDistance(query, h.nodes[curr].vector)
	for {
		improved := false
		for _, n := range h.neighborsAt(curr, level) {
			if d := hnswDistance(query, h.nodes[n].vector); d < currDist {
				curr, currDist = n, d
				improved = true
			}
		}
		if !improved {
			return curr
		}
	}
}

type scored struct {
	idx  int
	dist float64
}

type minQueue []scored

func (q minQueue) Len() int           { return len(q) }
func (q minQueue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q minQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *minQueue) Push(x any)        { *q = append(*q, x.(scored)) }
func (q *minQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

type maxQueue []scored

func (q maxQueue) Len() int           { return len(q) }
func (q maxQueue) Less(i, j int) bool { return q[i].dist > q[j].dist }
func (q maxQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *maxQueue) Push(x any)        { *q = append(*q, x.(scored)) }
func (q *maxQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// searchLayer is the beam search over one layer; the result is sorted by
// ascending distance.
func (h *HNSW) searchLayer(query []float32, start, ef, level int) []scored {
	startDist := hnswDistance(query, h.nodes[start].vector)
	visited := map[int]struct{}{start: {}}

	candidates := &minQueue{{idx: start, dist: startDist}}
	results := &maxQueue{{idx: start, dist: startDist}}
	heap.Init(candidates)
	heap.Init(results)

	for candidates.Len() > 0 {
		closest := heap.Pop(candidates).(scored)
		worst := (*results)[0]
		if closest.dist > worst.dist && results.Len() >= ef {
			break
		}
		for _, n := range h.neighborsAt(closest.idx, level) {
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}
			d := hnswDistance(query, h.nodes[n].vector)
			if results.Len() < ef || d < (*results)[0].dist {
				heap.Push(candidates, scored{idx: n, dist: d})
				heap.Push(results, scored{idx: n, dist: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]scored, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(scored)
	}
	return out
}

// selectNeighbors keeps the closest maxConn candidates.
func (h *HNSW) selectNeighbors(candidates []scored, maxConn int) []int {
	out := make([]int, 0, maxConn)
	for _, c := range candidates {
		out = append(out, c.idx)
		if len(out) == maxConn {
			break
		}
	}
	return out
}

func (h *HNSW) pruneNeighbors(idx, level, maxConn int) {
	node := &h.nodes[idx]
	list := node.neighbors[level]
	sort.SliceStable(list, func(i, j int) bool {
		return hnswDistance(node.vector, h.nodes[list[i]].vector) < hnswDistance(node.vector, h.nodes[list[j]].vector)
	})
	node.neighbors[level] = list[:maxConn]
}

func (h *HNSW) neighborsAt(idx, level int) []int {
	node := h.nodes[idx]
	if level >= len(node.neighbors) {
		return nil
	}
	return node.neighbors[level]
}
