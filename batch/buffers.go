package batch

import (
	"errors"

	"honnef.co/go/safeish"

	"tilepipe/feature"
)

//ErrGuide 批次描述数据不完整
var ErrGuide = errors.New("batch: truncated guide")

//Buffers 一个(瓦片, 数据源, 几何类别)的输出缓冲
//Guide 每个批次为 [layer, count, offset, size, codes...], 线批次前面多一个线帽编码
type Buffers struct {
	Kind        feature.Kind
	Vertices    []int16
	Indices     []uint32
	Guide       []float32
	IDs         []uint8
	Weights     []float32
	LengthSoFar []float32
	CodeTypes   []uint8
	//Count 所有批次count之和
	Count int

	batches int
}

//Descriptor 解码后的批次描述
type Descriptor struct {
	Cap    float32
	Layer  int
	Count  int
	Offset int
	Codes  []float32
}

//Len 批次数量
func (b *Buffers) Len() int {
	return b.batches
}

//Batches 解码 Guide
func (b *Buffers) Batches() ([]Descriptor, error) {
	return DecodeGuide(b.Kind, b.Guide)
}

//DecodeGuide 解析批次描述数组
func DecodeGuide(kind feature.Kind, guide []float32) ([]Descriptor, error) {
	head := 4
	if kind == feature.KindLine {
		head = 5
	}
	var res []Descriptor
	for i := 0; i < len(guide); {
		if len(guide)-i < head {
			return res, ErrGuide
		}
		var d Descriptor
		if kind == feature.KindLine {
			d.Cap = guide[i]
			i++
		}
		d.Layer = int(guide[i])
		d.Count = int(guide[i+1])
		d.Offset = int(guide[i+2])
		size := int(guide[i+3])
		i += 4
		if size < 0 || len(guide)-i < size {
			return res, ErrGuide
		}
		d.Codes = guide[i : i+size : i+size]
		i += size
		res = append(res, d)
	}
	return res, nil
}

//VertexBytes 顶点缓冲的字节视图, 与 Vertices 共享内存
func (b *Buffers) VertexBytes() []byte {
	return view(b.Vertices)
}

//IndexBytes 索引缓冲的字节视图
func (b *Buffers) IndexBytes() []byte {
	return view(b.Indices)
}

//GuideBytes 批次描述的字节视图
func (b *Buffers) GuideBytes() []byte {
	return view(b.Guide)
}

//WeightBytes 热力图权重的字节视图
func (b *Buffers) WeightBytes() []byte {
	return view(b.Weights)
}

//LengthBytes 虚线累计长度的字节视图
func (b *Buffers) LengthBytes() []byte {
	return view(b.LengthSoFar)
}

//Size 所有缓冲的字节数
func (b *Buffers) Size() int {
	return len(b.Vertices)*2 + len(b.Indices)*4 + len(b.Guide)*4 +
		len(b.IDs) + len(b.Weights)*4 + len(b.LengthSoFar)*4 + len(b.CodeTypes)
}

func view[S ~[]E, E any](s S) []byte {
	if len(s) == 0 {
		return nil
	}
	return safeish.SliceCast[[]byte](s)
}
