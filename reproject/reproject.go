// Package reproject rescales ancestor tile geometry into a descendant tile's
// coordinate space and clips it to the descendant's buffered extent.
package reproject

import (
	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"

	"tilepipe/feature"
)

//DefaultBuffer 裁剪缓冲, extent 单位
const DefaultBuffer = 80

//Transform 祖先空间到子瓦片空间的变换 p' = (p - shift) * scale
type Transform struct {
	Scale  float64
	XShift float64
	YShift float64
}

//Identity 是否为恒等变换
func (t Transform) Identity() bool {
	return t.Scale == 1 && t.XShift == 0 && t.YShift == 0
}

//Apply 变换一个点
func (t Transform) Apply(p orb.Point) orb.Point {
	return orb.Point{(p[0] - t.XShift) * t.Scale, (p[1] - t.YShift) * t.Scale}
}

//Invert 逆变换, 回到祖先空间
func (t Transform) Invert(p orb.Point) orb.Point {
	return orb.Point{p[0]/t.Scale + t.XShift, p[1]/t.Scale + t.YShift}
}

//Shift 计算子瓦片相对ancestorZoom级祖先的缩放和偏移
func Shift(c feature.Coord, ancestorZoom uint32, extent float64) Transform {
	zoom := c.Zoom()
	if ancestorZoom >= zoom {
		return Transform{Scale: 1}
	}
	t := Transform{Scale: float64(uint64(1) << (zoom - ancestorZoom))}
	i, j := c.X, c.Y
	for zoom > ancestorZoom {
		div := float64(uint64(1) << (zoom - ancestorZoom))
		if i%2 != 0 {
			t.XShift += extent / div
		}
		if j%2 != 0 {
			t.YShift += extent / div
		}
		i >>= 1
		j >>= 1
		zoom--
	}
	return t
}

//Clipper 带缓冲的裁剪器
type Clipper struct {
	Buffer float64
}

//DefaultClipper 默认80单位缓冲
var DefaultClipper = Clipper{Buffer: DefaultBuffer}

//ScaleShiftClip 任务带祖先引用时把几何变换到当前瓦片并裁剪, 否则原样返回
func (c Clipper) ScaleShiftClip(g orb.Geometry, extent float64, job feature.Job) orb.Geometry {
	if job.Parent == nil || g == nil {
		return g
	}
	t := Shift(job.Coord, job.Parent.Zoom, extent)
	return c.Reproject(g, extent, t)
}

//Reproject 变换并裁剪, 返回新的几何, 全部被裁掉时返回nil
func (c Clipper) Reproject(g orb.Geometry, extent float64, t Transform) orb.Geometry {
	switch g := g.(type) {
	case orb.Point:
		res := c.points(orb.MultiPoint{g}, extent, t)
		if len(res) == 0 {
			return nil
		}
		return res[0]
	case orb.MultiPoint:
		if res := c.points(g, extent, t); len(res) > 0 {
			return res
		}
	case orb.LineString:
		if res := c.ClipLine(transformLine(g, t), extent); len(res) > 0 {
			return res
		}
	case orb.MultiLineString:
		var res orb.MultiLineString
		for _, ls := range g {
			res = append(res, c.ClipLine(transformLine(ls, t), extent)...)
		}
		if len(res) > 0 {
			return res
		}
	case orb.Ring:
		if res := c.polygon(orb.Polygon{g}, extent, t); len(res) > 0 {
			return res
		}
	case orb.Polygon:
		if res := c.polygon(g, extent, t); len(res) > 0 {
			return res
		}
	case orb.MultiPolygon:
		var res orb.MultiPolygon
		for _, p := range g {
			if poly := c.polygon(p, extent, t); len(poly) > 0 {
				res = append(res, poly)
			}
		}
		if len(res) > 0 {
			return res
		}
	default:
		log.Debugf("reproject: unsupported geometry %T dropped", g)
	}
	return nil
}

//points 点不需要插值, 超出 [0, extent] 直接丢弃
func (c Clipper) points(mp orb.MultiPoint, extent float64, t Transform) orb.MultiPoint {
	res := make(orb.MultiPoint, 0, len(mp))
	for _, p := range mp {
		p = t.Apply(p)
		if p[0] < 0 || p[0] > extent || p[1] < 0 || p[1] > extent {
			continue
		}
		res = append(res, p)
	}
	return res
}

func (c Clipper) polygon(p orb.Polygon, extent float64, t Transform) orb.Polygon {
	res := make(orb.Polygon, 0, len(p))
	for i, r := range p {
		clipped := c.ClipRing(orb.Ring(transformLine(orb.LineString(r), t)), extent)
		if clipped == nil {
			if i == 0 {
				// holes without their outer ring mean nothing
				return nil
			}
			continue
		}
		res = append(res, clipped)
	}
	return res
}

func transformLine(ls orb.LineString, t Transform) orb.LineString {
	res := make(orb.LineString, len(ls))
	for i, p := range ls {
		res[i] = t.Apply(p)
	}
	return res
}
