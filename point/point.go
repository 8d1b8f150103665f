// Package point copies point geometry into device space, with an optional
// per point weight for heatmap layers.
package point

import (
	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"

	"tilepipe/feature"
)

//Points 统一为多点
func Points(g orb.Geometry) orb.MultiPoint {
	switch g := g.(type) {
	case orb.Point:
		return orb.MultiPoint{g}
	case orb.MultiPoint:
		return g
	case nil:
	default:
		log.Debugf("point: %T geometry is not a point", g)
	}
	return nil
}

//Build 写入点要素顶点, 每点2个int16, weight 不为空时(热力图)每点追加一个权重
func Build(f *feature.Feature, g orb.Geometry, weight *float32) bool {
	pts := Points(g)
	if len(pts) == 0 {
		return false
	}
	m := feature.Multiplier(f.Extent)
	if cap(f.Vertices)-len(f.Vertices) < len(pts)*2 {
		grown := make([]int16, len(f.Vertices), len(f.Vertices)+len(pts)*2)
		copy(grown, f.Vertices)
		f.Vertices = grown
	}
	for _, p := range pts {
		f.Vertices = feature.AppendPoint(f.Vertices, p, m)
		if weight != nil {
			f.Weights = append(f.Weights, *weight)
		}
	}
	return true
}

//HeatmapCode 热力图编码由当前级别和下一级别的编码拼接, 供着色器插值
func HeatmapCode(lo, hi []float32) []float32 {
	code := make([]float32, 0, len(lo)+len(hi))
	code = append(code, lo...)
	return append(code, hi...)
}
