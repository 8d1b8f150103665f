// Package line expands line geometry into prev/curr/next vertex triples so a
// GPU stage can rebuild stroke width, joins and caps.
package line

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	log "github.com/sirupsen/logrus"

	"tilepipe/feature"
)

//Line 展开后的三组顶点, 长度一致
type Line struct {
	Prev        []orb.Point
	Curr        []orb.Point
	Next        []orb.Point
	LengthSoFar []float64
}

//Len 顶点三元组数量
func (l Line) Len() int {
	return len(l.Curr)
}

func (l *Line) push(prev, curr, next orb.Point) {
	l.Prev = append(l.Prev, prev)
	l.Curr = append(l.Curr, curr)
	l.Next = append(l.Next, next)
}

//Subdivide 在坐标差超过maxDistance的线段上反复插入中点, 返回新的折线
func Subdivide(ls orb.LineString, maxDistance float64) orb.LineString {
	if maxDistance <= 0 || len(ls) < 2 {
		return ls
	}
	out := make(orb.LineString, 0, len(ls))
	out = append(out, ls[0])
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		dx, dy := b[0]-a[0], b[1]-a[1]
		n := 1
		for math.Abs(dx)/float64(n) > maxDistance || math.Abs(dy)/float64(n) > maxDistance {
			n *= 2
		}
		for j := 1; j < n; j++ {
			t := float64(j) / float64(n)
			out = append(out, orb.Point{a[0] + dx*t, a[1] + dy*t})
		}
		out = append(out, b)
	}
	return out
}

//Expand 展开折线. 首尾相同的环追加一段回到起点的连接段,
//非butt线帽在两端各补一个端点三元组, dashed 时同时生成累计长度
func Expand(points orb.LineString, cap feature.Cap, maxDistance float64, dashed bool) Line {
	var l Line
	if len(points) < 2 {
		return l
	}
	closed := points[0].Equal(points[len(points)-1])
	points = Subdivide(points, maxDistance)
	n := len(points)

	l.Prev = make([]orb.Point, 0, n+3)
	l.Curr = make([]orb.Point, 0, n+3)
	l.Next = make([]orb.Point, 0, n+3)
	if dashed {
		l.LengthSoFar = make([]float64, 1, n+3)
	}

	l.Prev = append(l.Prev, points[0])
	l.Curr = append(l.Curr, points[0])
	length := 0.0
	last := points[0]
	for _, p := range points[1:] {
		if p.Equal(last) {
			continue
		}
		l.Next = append(l.Next, p)
		l.Curr = append(l.Curr, p)
		l.Prev = append(l.Prev, last)
		if dashed {
			length += planar.Distance(last, p)
			l.LengthSoFar = append(l.LengthSoFar, length)
		}
		last = p
	}
	if len(l.Curr) < 2 {
		return Line{}
	}
	l.Next = append(l.Next, points[n-1])

	if closed {
		l.push(points[n-2], points[n-1], points[1])
		if dashed {
			length += planar.Distance(points[n-1], points[1])
			l.LengthSoFar = append(l.LengthSoFar, length)
		}
	}

	if cap != feature.CapButt {
		start := [3]orb.Point{l.Next[0], l.Curr[0], l.Prev[0]}
		e := len(l.Curr) - 1
		end := [3]orb.Point{l.Next[e], l.Curr[e], l.Prev[e]}
		l.Prev = append([]orb.Point{start[0]}, l.Prev...)
		l.Curr = append([]orb.Point{start[1]}, l.Curr...)
		l.Next = append([]orb.Point{start[2]}, l.Next...)
		l.push(end[0], end[1], end[2])
		if dashed {
			l.LengthSoFar = append(l.LengthSoFar, 0, length)
		}
	}
	return l
}

//Lines 把几何拆成需要描边的折线, 多边形取所有环
func Lines(g orb.Geometry) []orb.LineString {
	switch g := g.(type) {
	case orb.LineString:
		return []orb.LineString{g}
	case orb.MultiLineString:
		return g
	case orb.Ring:
		return []orb.LineString{orb.LineString(g)}
	case orb.Polygon:
		res := make([]orb.LineString, 0, len(g))
		for _, r := range g {
			res = append(res, orb.LineString(r))
		}
		return res
	case orb.MultiPolygon:
		var res []orb.LineString
		for _, p := range g {
			for _, r := range p {
				res = append(res, orb.LineString(r))
			}
		}
		return res
	case nil:
	default:
		log.Debugf("line: %T geometry can not be stroked", g)
	}
	return nil
}

//Build 生成线要素顶点, 每个三元组6个int16 (prev.xy, curr.xy, next.xy)
//division > 1 时长线段按 extent/division 细分
func Build(f *feature.Feature, g orb.Geometry, division int, dashed bool) bool {
	m := feature.Multiplier(f.Extent)
	maxDistance := 0.0
	if division > 1 {
		maxDistance = f.Extent / float64(division)
	}
	for _, ls := range Lines(g) {
		l := Expand(ls, f.Cap, maxDistance, dashed)
		for i := range l.Curr {
			f.Vertices = feature.AppendPoint(f.Vertices, l.Prev[i], m)
			f.Vertices = feature.AppendPoint(f.Vertices, l.Curr[i], m)
			f.Vertices = feature.AppendPoint(f.Vertices, l.Next[i], m)
		}
		for _, v := range l.LengthSoFar {
			f.LengthSoFar = append(f.LengthSoFar, float32(v))
		}
	}
	return len(f.Vertices) > 0
}
