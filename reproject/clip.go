package reproject

import "github.com/paulmach/orb"

const (
	axisX = 0
	axisY = 1
)

//Bound 裁剪范围 [-buffer, extent+buffer]
func (c Clipper) Bound(extent float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{-c.Buffer, -c.Buffer},
		Max: orb.Point{extent + c.Buffer, extent + c.Buffer},
	}
}

func (c Clipper) inside(ls orb.LineString, extent float64) bool {
	b := c.Bound(extent)
	lb := ls.Bound()
	return b.Contains(lb.Min) && b.Contains(lb.Max)
}

//ClipLine 裁剪折线, 穿出边界的部分会拆成多段, 少于2个点的段丢弃
func (c Clipper) ClipLine(ls orb.LineString, extent float64) orb.MultiLineString {
	if len(ls) < 2 {
		return nil
	}
	if c.inside(ls, extent) {
		return orb.MultiLineString{ls}
	}
	k1, k2 := -c.Buffer, extent+c.Buffer

	var vertical, res []orb.LineString
	vertical = clipAxis(ls, vertical, k1, k2, axisY, false)
	for _, v := range vertical {
		res = clipAxis(v, res, k1, k2, axisX, false)
	}

	out := make(orb.MultiLineString, 0, len(res))
	for _, l := range res {
		if len(l) >= 2 {
			out = append(out, l)
		}
	}
	return out
}

//ClipRing 裁剪多边形环, 结果重新闭合, 不足3个不同的点返回nil
func (c Clipper) ClipRing(r orb.Ring, extent float64) orb.Ring {
	if !hasThreePoints(orb.LineString(r)) {
		return nil
	}
	if c.inside(orb.LineString(r), extent) {
		return r
	}
	k1, k2 := -c.Buffer, extent+c.Buffer

	vertical := clipAxis(orb.LineString(r), nil, k1, k2, axisY, true)
	if len(vertical) == 0 {
		return nil
	}
	res := clipAxis(vertical[0], nil, k1, k2, axisX, true)
	if len(res) == 0 {
		return nil
	}
	return orb.Ring(res[0])
}

// clipAxis walks consecutive vertex pairs against [k1, k2] on one axis
func clipAxis(line orb.LineString, out []orb.LineString, k1, k2 float64, axis int, polygon bool) []orb.LineString {
	if len(line) == 0 {
		return out
	}
	slice := make(orb.LineString, 0, len(line))
	last := len(line) - 1

	for i := 0; i < last; i++ {
		pa, pb := line[i], line[i+1]
		a, b := pa[axis], pb[axis]
		exited := false

		if a < k1 {
			// ---|-->  |
			if b > k1 {
				slice = append(slice, intersect(pa, pb, k1, axis))
			}
		} else if a > k2 {
			// |  <--|---
			if b < k2 {
				slice = append(slice, intersect(pa, pb, k2, axis))
			}
		} else {
			slice = append(slice, pa)
		}
		if b < k1 && a >= k1 {
			// <--|---  |
			slice = append(slice, intersect(pa, pb, k1, axis))
			exited = true
		}
		if b > k2 && a <= k2 {
			// |  ---|-->
			slice = append(slice, intersect(pa, pb, k2, axis))
			exited = true
		}

		if !polygon && exited {
			out = append(out, slice)
			slice = make(orb.LineString, 0, len(line)-i)
		}
	}

	if v := line[last][axis]; v >= k1 && v <= k2 {
		slice = append(slice, line[last])
	}

	if polygon {
		if !hasThreePoints(slice) {
			return out
		}
		if !slice[len(slice)-1].Equal(slice[0]) {
			slice = append(slice, slice[0])
		}
	}
	if len(slice) > 0 {
		out = append(out, slice)
	}
	return out
}

func intersect(a, b orb.Point, k float64, axis int) orb.Point {
	if axis == axisX {
		t := (k - a[0]) / (b[0] - a[0])
		return orb.Point{k, a[1] + (b[1]-a[1])*t}
	}
	t := (k - a[1]) / (b[1] - a[1])
	return orb.Point{a[0] + (b[0]-a[0])*t, k}
}

// hasThreePoints reports whether a ring has at least 3 distinct points
func hasThreePoints(ls orb.LineString) bool {
	var seen [3]orb.Point
	n := 0
next:
	for _, p := range ls {
		for _, q := range seen[:n] {
			if q.Equal(p) {
				continue next
			}
		}
		seen[n] = p
		n++
		if n == len(seen) {
			return true
		}
	}
	return false
}
