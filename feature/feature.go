package feature

import (
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/exp/constraints"
)

const (
	//FixedPointScale 瓦片在设备空间的定点范围
	FixedPointScale = 8192
	//DefaultExtent 默认瓦片范围
	DefaultExtent = 4096
)

//GeometryType 几何类型, 与解码器标签一致
type GeometryType uint8

// decoder type tags
const (
	TypeUnknown      GeometryType = 0
	TypePoint        GeometryType = 1
	TypeLine         GeometryType = 2
	TypePolygon      GeometryType = 3
	TypeMultiPolygon GeometryType = 4
)

func (t GeometryType) String() string {
	switch t {
	case TypePoint:
		return "point"
	case TypeLine:
		return "line"
	case TypePolygon:
		return "polygon"
	case TypeMultiPolygon:
		return "multipolygon"
	}
	return "unknown"
}

//TypeOf 根据orb几何推断类型标签
func TypeOf(g orb.Geometry) GeometryType {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return TypePoint
	case orb.LineString, orb.MultiLineString:
		return TypeLine
	case orb.Ring, orb.Polygon:
		return TypePolygon
	case orb.MultiPolygon:
		return TypeMultiPolygon
	}
	return TypeUnknown
}

//Kind 输出缓冲的几何类别
type Kind uint8

// output kinds
const (
	KindFill Kind = iota
	KindLine
	KindPoint
	KindHeatmap
)

var kindNames = [...]string{"fill", "line", "point", "heatmap"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

//ParseKind 解析图层类型
func ParseKind(s string) (Kind, bool) {
	for i, n := range kindNames {
		if strings.EqualFold(s, n) {
			return Kind(i), true
		}
	}
	return 0, false
}

//Cap 线帽
type Cap uint8

// line caps
const (
	CapButt Cap = iota
	CapSquare
	CapRound
)

//ParseCap 解析线帽, 未知值按butt处理
func ParseCap(s string) Cap {
	switch strings.ToLower(s) {
	case "square":
		return CapSquare
	case "round":
		return CapRound
	}
	return CapButt
}

//Code GPU端的线帽编码
func (c Cap) Code() float32 {
	return float32(c)
}

//Feature 解码后的要素及其输出
type Feature struct {
	ID         uint32
	LayerIndex int
	Type       GeometryType
	Extent     float64
	Geometry   orb.Geometry
	Properties geojson.Properties
	//Code 样式编码
	Code []float32

	//Flat/Precomputed 数据源已经三角化过的顶点和索引
	Flat        []float64
	Precomputed []uint32

	Vertices    []int16
	Indices     []uint32
	Weights     []float32
	LengthSoFar []float32
	Cap         Cap
}

//Empty 没有任何输出
func (f *Feature) Empty() bool {
	return len(f.Vertices) == 0
}

//Multiplier 设备空间缩放系数
func Multiplier(extent float64) float64 {
	if extent <= 0 {
		extent = DefaultExtent
	}
	return FixedPointScale / extent
}

//Round 四舍五入到整数 (0.5 向上)
func Round[I constraints.Signed, F constraints.Float](v F) I {
	return I(math.Floor(float64(v) + 0.5))
}

//Quantize 按系数缩放并取整为int16, 超出范围的值截断到int16边界
func Quantize[F constraints.Float](v F, multiplier float64) int16 {
	return Round[int16](max(math.MinInt16, min(math.MaxInt16, float64(v)*multiplier)))
}

//AppendPoint 追加一个量化后的点
func AppendPoint(dst []int16, p orb.Point, multiplier float64) []int16 {
	return append(dst, Quantize(p[0], multiplier), Quantize(p[1], multiplier))
}

//IDToRGB id 转为拾取用的rgb
func IDToRGB(id uint32) [3]uint8 {
	return [3]uint8{uint8(id), uint8(id >> 8), uint8(id >> 16)}
}
