package fill

import "math"

// refiner splits triangles along the grid lines x = k*step and y = k*step
// so that no triangle spans more than one grid cell on either axis. Split
// vertices are cached per (edge, axis, k), so triangles sharing an edge share
// the inserted Steiner points.
type refiner struct {
	vertices []float64
	step     float64
	cache    map[splitKey]uint32
}

type splitKey struct {
	a, b uint32
	axis int
	k    int64
}

// Refine splits every triangle whose axis aligned span crosses a multiple of
// step. vertices is a flat xy array and grows with the inserted points.
func Refine(vertices []float64, indices []uint32, step float64) ([]float64, []uint32) {
	if step <= 0 || math.IsInf(step, 0) || len(indices) < 3 {
		return vertices, indices
	}
	r := &refiner{vertices: vertices, step: step, cache: make(map[splitKey]uint32)}
	for axis := 0; axis < 2; axis++ {
		indices = r.refineAxis(indices, axis)
	}
	return r.vertices, indices
}

func (r *refiner) refineAxis(indices []uint32, axis int) []uint32 {
	out := make([]uint32, 0, len(indices))
	var stack [][3]uint32
	for i := 0; i+2 < len(indices); i += 3 {
		stack = append(stack[:0], [3]uint32{indices[i], indices[i+1], indices[i+2]})
		for len(stack) > 0 {
			t := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			k, ok := r.gridLine(t, axis)
			if !ok {
				out = append(out, t[0], t[1], t[2])
				continue
			}
			stack = append(stack, r.split(t, axis, k)...)
		}
	}
	return out
}

func (r *refiner) coord(i uint32, axis int) float64 {
	return r.vertices[int(i)*2+axis]
}

// gridLine finds the lowest grid line strictly inside the triangle's span
func (r *refiner) gridLine(t [3]uint32, axis int) (int64, bool) {
	lo := math.Min(r.coord(t[0], axis), math.Min(r.coord(t[1], axis), r.coord(t[2], axis)))
	hi := math.Max(r.coord(t[0], axis), math.Max(r.coord(t[1], axis), r.coord(t[2], axis)))
	k := int64(math.Floor(lo/r.step)) + 1
	if float64(k)*r.step <= lo {
		k++
	}
	return k, float64(k)*r.step < hi
}

// split cuts t along grid line k. At least one vertex lies below and one
// above the line. Winding of the input triangle is preserved.
func (r *refiner) split(t [3]uint32, axis int, k int64) [][3]uint32 {
	g := float64(k) * r.step
	var below, above, on []uint32
	for _, i := range t {
		switch v := r.coord(i, axis); {
		case v < g:
			below = append(below, i)
		case v > g:
			above = append(above, i)
		default:
			on = append(on, i)
		}
	}

	var res [][3]uint32
	if len(on) == 1 {
		m := r.cut(below[0], above[0], axis, k)
		res = [][3]uint32{{on[0], below[0], m}, {on[0], m, above[0]}}
	} else {
		lone, pair := below, above
		if len(lone) != 1 {
			lone, pair = above, below
		}
		mp := r.cut(lone[0], pair[0], axis, k)
		mq := r.cut(lone[0], pair[1], axis, k)
		res = [][3]uint32{
			{lone[0], mp, mq},
			{mp, pair[0], pair[1]},
			{mp, pair[1], mq},
		}
	}

	orient := r.area(t)
	for i := range res {
		if (r.area(res[i]) < 0) != (orient < 0) {
			res[i][1], res[i][2] = res[i][2], res[i][1]
		}
	}
	return res
}

// cut returns the vertex where edge (a, b) crosses grid line k
func (r *refiner) cut(a, b uint32, axis int, k int64) uint32 {
	key := splitKey{a: a, b: b, axis: axis, k: k}
	if a > b {
		key.a, key.b = b, a
	}
	if i, ok := r.cache[key]; ok {
		return i
	}
	g := float64(k) * r.step
	// interpolate from the lower index so both directions agree
	p, q := key.a, key.b
	pv, qv := r.coord(p, axis), r.coord(q, axis)
	t := (g - pv) / (qv - pv)
	other := 1 - axis
	po, qo := r.coord(p, other), r.coord(q, other)

	var x, y float64
	if axis == 0 {
		x, y = g, po+(qo-po)*t
	} else {
		x, y = po+(qo-po)*t, g
	}
	i := uint32(len(r.vertices) / 2)
	r.vertices = append(r.vertices, x, y)
	r.cache[key] = i
	return i
}

func (r *refiner) area(t [3]uint32) float64 {
	ax, ay := r.vertices[t[0]*2], r.vertices[t[0]*2+1]
	bx, by := r.vertices[t[1]*2], r.vertices[t[1]*2+1]
	cx, cy := r.vertices[t[2]*2], r.vertices[t[2]*2+1]
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}
