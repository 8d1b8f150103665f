// Package fill triangulates polygon geometry into quantized vertex and
// triangle index arrays.
package fill

import (
	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"

	"tilepipe/feature"
)

//Flatten 把多边形的外环和洞展开成一个顶点数组, holes 为每个洞的起始顶点序号
//闭合环的重复末点会被去掉, 少于3个点的环跳过, 外环无效时返回空
func Flatten(poly orb.Polygon) ([]float64, []int) {
	n := 0
	for _, r := range poly {
		n += len(r)
	}
	data := make([]float64, 0, n*2)
	var holes []int
	for i, r := range poly {
		if len(r) > 1 && r[0].Equal(r[len(r)-1]) {
			r = r[:len(r)-1]
		}
		if len(r) < 3 {
			if i == 0 {
				return nil, nil
			}
			continue
		}
		if i > 0 {
			holes = append(holes, len(data)/2)
		}
		for _, p := range r {
			data = append(data, p[0], p[1])
		}
	}
	return data, holes
}

//Tessellate 三角化单个多边形, division > 1 时按 extent/division 网格细分
func Tessellate(poly orb.Polygon, extent float64, division int) ([]float64, []uint32) {
	data, holes := Flatten(poly)
	if len(data) < 6 {
		return nil, nil
	}
	indices := Earcut(data, holes)
	if len(indices) == 0 {
		return nil, nil
	}
	if division > 1 {
		data, indices = Refine(data, indices, extent/float64(division))
	}
	return data, indices
}

//Build 生成要素的顶点和索引, 没有有效三角形时返回false
//要素带有预先三角化的数据时跳过耳切, 只做细分
func Build(f *feature.Feature, g orb.Geometry, division int) bool {
	m := feature.Multiplier(f.Extent)

	if len(f.Precomputed) > 0 && len(f.Flat) > 0 {
		data := append([]float64(nil), f.Flat...)
		indices := append([]uint32(nil), f.Precomputed...)
		if division > 1 {
			data, indices = Refine(data, indices, f.Extent/float64(division))
		}
		appendMesh(f, data, indices, m)
		return len(f.Indices) > 0
	}

	var polys []orb.Polygon
	switch g := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{g}
	case orb.MultiPolygon:
		polys = g
	case orb.Ring:
		polys = []orb.Polygon{{g}}
	case nil:
		return false
	default:
		log.Debugf("fill: feature %d has %T geometry, skipped", f.ID, g)
		return false
	}

	for _, poly := range polys {
		data, indices := Tessellate(poly, f.Extent, division)
		appendMesh(f, data, indices, m)
	}
	return len(f.Indices) > 0
}

func appendMesh(f *feature.Feature, data []float64, indices []uint32, m float64) {
	if len(indices) == 0 {
		return
	}
	offset := uint32(len(f.Vertices) / 2)
	for _, v := range data {
		f.Vertices = append(f.Vertices, feature.Quantize(v, m))
	}
	for _, i := range indices {
		f.Indices = append(f.Indices, i+offset)
	}
}

//Invert 反向填充图层在瓦片内没有要素时, 用整块瓦片代替
func Invert(f *feature.Feature) {
	f.Vertices = append(f.Vertices[:0], 0, 0, feature.FixedPointScale, 0, feature.FixedPointScale, feature.FixedPointScale, 0, feature.FixedPointScale)
	f.Indices = append(f.Indices[:0], 0, 2, 1, 2, 0, 3)
}
