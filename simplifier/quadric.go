package simplifier

import (
	"container/heap"
	"errors"
	"math"
)

// ErrDegenerate reports an index list that is not a triangle list.
var ErrDegenerate = errors.New("simplifier: index count is not a multiple of 3")

// quadric is a symmetric 4x4 error quadric stored as its 10 unique
// coefficients.
type quadric struct {
	a, b, c, d    float64 // plane terms
	ab, ac, ad    float64
	bc, bd, cd    float64
}

func (q *quadric) addPlane(a, b, c, d float64) {
	q.a += a * a
	q.ab += a * b
	q.ac += a * c
	q.ad += a * d
	q.b += b * b
	q.bc += b * c
	q.bd += b * d
	q.c += c * c
	q.cd += c * d
	q.d += d * d
}

func (q *quadric) add(o *quadric) {
	q.a += o.a
	q.b += o.b
	q.c += o.c
	q.d += o.d
	q.ab += o.ab
	q.ac += o.ac
	q.ad += o.ad
	q.bc += o.bc
	q.bd += o.bd
	q.cd += o.cd
}

// eval computes v^T Q v for v = (x, y, z, 1).
func (q *quadric) eval(x, y, z float64) float64 {
	return q.a*x*x + 2*q.ab*x*y + 2*q.ac*x*z + 2*q.ad*x +
		q.b*y*y + 2*q.bc*y*z + 2*q.bd*y +
		q.c*z*z + 2*q.cd*z +
		q.d
}

// collapse is a half-edge collapse candidate: remove src, move its
// triangles to dst.
type collapse struct {
	src, dst uint32
	cost     float64
	stamp    uint64 // invalidation counter at push time
}

type collapseHeap []collapse

func (h collapseHeap) Len() int { return len(h) }
func (h collapseHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	if h[i].src != h[j].src {
		return h[i].src < h[j].src
	}
	return h[i].dst < h[j].dst
}
func (h collapseHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *collapseHeap) Push(x any)        { *h = append(*h, x.(collapse)) }
func (h *collapseHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Simplify reduces the triangle list by iterative half-edge collapse
// with quadric error. Error is measured in a normalized space where the
// mesh's largest bounding-box extent is 1, so errorThreshold compares
// across meshes of any scale. Locked vertices and border vertices are
// never removed. UV distortion, when UVs are given, adds to the collapse
// cost with weight 1 per channel.
func (s *CPU) Simplify(indices []uint32, positions []float32, uvs []float32, vertexLock []bool,
	targetIndexCount int, errorThreshold float32) ([]uint32, float32, error) {
	if len(indices)%3 != 0 {
		return nil, 0, ErrDegenerate
	}
	vertexCount := len(positions) / 3
	if len(indices) <= targetIndexCount || len(indices) == 0 {
		return append([]uint32(nil), indices...), 0, nil
	}

	// Normalize positions so the threshold is scale independent.
	pos := normalizePositions(positions)

	tris := make([]tri, len(indices)/3)
	for t := range tris {
		tris[t] = tri{v: [3]uint32{indices[t*3], indices[t*3+1], indices[t*3+2]}, alive: true}
	}

	adjacency := make([][]int32, vertexCount)
	for t := range tris {
		for k := 0; k < 3; k++ {
			adjacency[tris[t].v[k]] = append(adjacency[tris[t].v[k]], int32(t))
		}
	}

	// Border detection: an edge used by exactly one triangle locks both
	// of its endpoints.
	edgeUse := make(map[uint64]int, len(indices))
	edgeKey := func(a, b uint32) uint64 {
		if a > b {
			a, b = b, a
		}
		return uint64(a)<<32 | uint64(b)
	}
	for t := range tris {
		for k := 0; k < 3; k++ {
			edgeUse[edgeKey(tris[t].v[k], tris[t].v[(k+1)%3])]++
		}
	}
	border := make([]bool, vertexCount)
	for t := range tris {
		for k := 0; k < 3; k++ {
			a, b := tris[t].v[k], tris[t].v[(k+1)%3]
			if edgeUse[edgeKey(a, b)] == 1 {
				border[a] = true
				border[b] = true
			}
		}
	}

	locked := func(v uint32) bool {
		if border[v] {
			return true
		}
		return vertexLock != nil && int(v) < len(vertexLock) && vertexLock[v]
	}

	// Per-vertex quadrics from incident triangle planes.
	quadrics := make([]quadric, vertexCount)
	for t := range tris {
		a, b, c := tris[t].v[0], tris[t].v[1], tris[t].v[2]
		pa, pb, pc := vec3(pos, a), vec3(pos, b), vec3(pos, c)
		nx, ny, nz := planeNormal(pa, pb, pc)
		if nx == 0 && ny == 0 && nz == 0 {
			continue
		}
		d := -(nx*pa[0] + ny*pa[1] + nz*pa[2])
		for k := 0; k < 3; k++ {
			quadrics[tris[t].v[k]].addPlane(nx, ny, nz, d)
		}
	}

	alive := make([]bool, vertexCount)
	for _, idx := range indices {
		alive[idx] = true
	}
	version := make([]uint64, vertexCount)

	uvCost := func(a, b uint32) float64 {
		if uvs == nil || int(a)*2+1 >= len(uvs) || int(b)*2+1 >= len(uvs) {
			return 0
		}
		du := float64(uvs[a*2] - uvs[b*2])
		dv := float64(uvs[a*2+1] - uvs[b*2+1])
		return du*du + dv*dv
	}

	collapseCost := func(src, dst uint32) float64 {
		q := quadrics[src]
		q.add(&quadrics[dst])
		p := vec3(pos, dst)
		cost := q.eval(p[0], p[1], p[2])
		if cost < 0 {
			cost = 0 // numeric noise around a flat neighborhood
		}
		return cost + uvCost(src, dst)
	}

	h := &collapseHeap{}
	pushEdges := func(v uint32) {
		if !alive[v] || locked(v) {
			return
		}
		for _, t := range adjacency[v] {
			if !tris[t].alive {
				continue
			}
			for k := 0; k < 3; k++ {
				u := tris[t].v[k]
				if u == v || !alive[u] {
					continue
				}
				heap.Push(h, collapse{src: v, dst: u, cost: collapseCost(v, u),
					stamp: version[v] + version[u]})
			}
		}
	}
	for v := uint32(0); v < uint32(vertexCount); v++ {
		pushEdges(v)
	}

	liveIndexCount := len(indices)
	threshold := float64(errorThreshold)
	var achieved float64

	for liveIndexCount > targetIndexCount && h.Len() > 0 {
		c := heap.Pop(h).(collapse)
		if c.stamp != version[c.src]+version[c.dst] {
			continue // stale entry
		}
		if !alive[c.src] || !alive[c.dst] || locked(c.src) {
			continue
		}
		if c.cost > threshold {
			break
		}
		if flipsTriangle(pos, tris, adjacency[c.src], c.src, c.dst) {
			version[c.src]++
			continue
		}

		// Collapse src into dst.
		quadrics[c.dst].add(&quadrics[c.src])
		alive[c.src] = false
		if c.cost > achieved {
			achieved = c.cost
		}

		for _, t := range adjacency[c.src] {
			if !tris[t].alive {
				continue
			}
			tr := &tris[t]
			degenerate := false
			for k := 0; k < 3; k++ {
				if tr.v[k] == c.src {
					tr.v[k] = c.dst
				}
			}
			if tr.v[0] == tr.v[1] || tr.v[1] == tr.v[2] || tr.v[0] == tr.v[2] {
				degenerate = true
			}
			if degenerate {
				tr.alive = false
				liveIndexCount -= 3
			} else {
				adjacency[c.dst] = append(adjacency[c.dst], t)
			}
		}

		version[c.src]++
		version[c.dst]++
		pushEdges(c.dst)
	}

	out := make([]uint32, 0, liveIndexCount)
	for t := range tris {
		if tris[t].alive {
			out = append(out, tris[t].v[0], tris[t].v[1], tris[t].v[2])
		}
	}
	return out, float32(achieved), nil
}

func vec3(pos []float64, v uint32) [3]float64 {
	return [3]float64{pos[v*3], pos[v*3+1], pos[v*3+2]}
}

func normalizePositions(positions []float32) []float64 {
	out := make([]float64, len(positions))
	var maxExtent float64
	for axis := 0; axis < 3; axis++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for v := 0; v*3+axis < len(positions); v++ {
			p := float64(positions[v*3+axis])
			if p < lo {
				lo = p
			}
			if p > hi {
				hi = p
			}
		}
		if hi-lo > maxExtent {
			maxExtent = hi - lo
		}
	}
	if maxExtent == 0 {
		maxExtent = 1
	}
	for i, p := range positions {
		out[i] = float64(p) / maxExtent
	}
	return out
}

func planeNormal(a, b, c [3]float64) (float64, float64, float64) {
	ux, uy, uz := b[0]-a[0], b[1]-a[1], b[2]-a[2]
	vx, vy, vz := c[0]-a[0], c[1]-a[1], c[2]-a[2]
	nx := uy*vz - uz*vy
	ny := uz*vx - ux*vz
	nz := ux*vy - uy*vx
	l := math.Sqrt(nx*nx + ny*ny + nz*nz)
	if l == 0 {
		return 0, 0, 0
	}
	return nx / l, ny / l, nz / l
}

type tri struct {
	v     [3]uint32
	alive bool
}

// flipsTriangle rejects a collapse that would invert the winding of any
// surviving triangle around src.
func flipsTriangle(pos []float64, tris []tri, incident []int32, src, dst uint32) bool {
	for _, t := range incident {
		if !tris[t].alive {
			continue
		}
		v := tris[t].v
		contains := false
		for k := 0; k < 3; k++ {
			if v[k] == dst {
				contains = true
			}
		}
		if contains {
			continue // this triangle degenerates and is removed instead
		}
		var before, after [3][3]float64
		for k := 0; k < 3; k++ {
			before[k] = vec3(pos, v[k])
			if v[k] == src {
				after[k] = vec3(pos, dst)
			} else {
				after[k] = before[k]
			}
		}
		bx, by, bz := planeNormal(before[0], before[1], before[2])
		ax, ay, az := planeNormal(after[0], after[1], after[2])
		if bx*ax+by*ay+bz*az < 0 {
			return true
		}
	}
	return false
}
