package particle

import "gonum.org/v1/gonum/spatial/r3"

// ContactHistory is the persisted force of one contact, in global axes.
type ContactHistory struct {
	Elastic      r3.Vec
	ElasticExtra r3.Vec
}

// WallHistory is the persisted force of one boundary contact.
type WallHistory struct {
	Elastic r3.Vec
	Total   r3.Vec
}

// History is aligned slot by slot with the neighbour, wall and point lists
// of its particle. It also keeps the initial-indentation baselines, keyed by
// neighbour or wall id; a baseline is dropped when its id leaves the list.
type History struct {
	Neighbours []ContactHistory
	Walls      []WallHistory
	Points     []WallHistory

	neighbourIDs []int
	wallIDs      []int

	neighbourBaseline map[int]float64
	wallBaseline      map[int]float64
}

func (h *History) init() {
	h.neighbourBaseline = make(map[int]float64)
	h.wallBaseline = make(map[int]float64)
}

func (h *History) rebuildNeighbours(ids []int) {
	if h.neighbourBaseline == nil {
		h.init()
	}
	next := make([]ContactHistory, len(ids))
	for i, id := range ids {
		if id == NoNeighbour {
			continue
		}
		for j, old := range h.neighbourIDs {
			if old == id {
				next[i] = h.Neighbours[j]
				break
			}
		}
	}
	h.Neighbours = next
	h.neighbourIDs = append(h.neighbourIDs[:0], ids...)
	evict(h.neighbourBaseline, ids)
}

func (h *History) rebuildWalls(ids []int) {
	if h.wallBaseline == nil {
		h.init()
	}
	next := make([]WallHistory, len(ids))
	for i, id := range ids {
		for j, old := range h.wallIDs {
			if old == id {
				next[i] = h.Walls[j]
				break
			}
		}
	}
	h.Walls = next
	h.wallIDs = append(h.wallIDs[:0], ids...)
	evict(h.wallBaseline, ids)
}

func (h *History) resizePoints(n int) {
	if n <= len(h.Points) {
		h.Points = h.Points[:n]
		return
	}
	h.Points = append(h.Points, make([]WallHistory, n-len(h.Points))...)
}

func evict(baselines map[int]float64, ids []int) {
	for id := range baselines {
		keep := false
		for _, cur := range ids {
			if cur == id {
				keep = true
				break
			}
		}
		if !keep {
			delete(baselines, id)
		}
	}
}

// NeighbourBaseline returns the initial indentation recorded for id.
func (h *History) NeighbourBaseline(id int) (float64, bool) {
	v, ok := h.neighbourBaseline[id]
	return v, ok
}

func (h *History) SetNeighbourBaseline(id int, v float64) {
	if h.neighbourBaseline == nil {
		h.init()
	}
	h.neighbourBaseline[id] = v
}

func (h *History) WallBaseline(id int) (float64, bool) {
	v, ok := h.wallBaseline[id]
	return v, ok
}

func (h *History) SetWallBaseline(id int, v float64) {
	if h.wallBaseline == nil {
		h.init()
	}
	h.wallBaseline[id] = v
}

// Baselines returns the number of recorded neighbour and wall baselines.
func (h *History) Baselines() (neighbours, walls int) {
	return len(h.neighbourBaseline), len(h.wallBaseline)
}
