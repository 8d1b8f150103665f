// Package batch sorts processed features and packs them into flat buffers
// grouped into as few draw batches as possible.
package batch

import (
	"fmt"
	"slices"
	"strings"

	"tilepipe/feature"
)

const (
	//MaxBatchCodeSize 单个批次样式编码表的默认长度
	MaxBatchCodeSize = 64
	//MaxCodeTableSize 编码表长度上限, CodeTypes 以 uint8 记录偏移
	MaxCodeTableSize = 256
)

//CodeStrategy 样式编码的组织方式
type CodeStrategy uint8

const (
	//BatchTable 批次内共享编码表, 每个顶点记录自身编码在表中的偏移
	BatchTable CodeStrategy = iota
	//FeatureCode 每个批次只有一个编码, 编码变化即开新批次
	FeatureCode
)

func (s CodeStrategy) String() string {
	if s == FeatureCode {
		return "feature"
	}
	return "table"
}

//ParseStrategy 解析编码策略
func ParseStrategy(s string) (CodeStrategy, error) {
	switch strings.ToLower(s) {
	case "", "table", "batch":
		return BatchTable, nil
	case "feature", "vertex", "pervertex":
		return FeatureCode, nil
	}
	return BatchTable, fmt.Errorf("unknown code strategy %q", s)
}

//Encoder 批次编码器, 零值使用 MaxBatchCodeSize 和 BatchTable
//MaxCodeSize 超过 MaxCodeTableSize 时按 MaxCodeTableSize 处理
type Encoder struct {
	MaxCodeSize int
	Strategy    CodeStrategy
}

//Validate 检查编码表长度
func (e Encoder) Validate() error {
	if e.MaxCodeSize > MaxCodeTableSize {
		return fmt.Errorf("max code size %d exceeds %d", e.MaxCodeSize, MaxCodeTableSize)
	}
	return nil
}

func (e *Encoder) maxCodeSize() int {
	if e == nil || e.MaxCodeSize <= 0 {
		return MaxBatchCodeSize
	}
	return min(e.MaxCodeSize, MaxCodeTableSize)
}

func (e *Encoder) strategy() CodeStrategy {
	if e == nil {
		return BatchTable
	}
	return e.Strategy
}

//Sort 按图层, 编码逐个比较, 编码短的在前 稳定排序
func Sort(features []*feature.Feature) {
	slices.SortStableFunc(features, func(a, b *feature.Feature) int {
		if a.LayerIndex != b.LayerIndex {
			return a.LayerIndex - b.LayerIndex
		}
		return slices.Compare(a.Code, b.Code)
	})
}

// units returns how many draw units a feature contributes
func units(kind feature.Kind, f *feature.Feature) int {
	switch kind {
	case feature.KindFill:
		return len(f.Indices)
	case feature.KindLine:
		return len(f.Vertices) / 6
	}
	return len(f.Vertices) / 2
}

type batchState struct {
	layer  int
	cap    feature.Cap
	codes  []float32
	index  map[string]int
	offset int
	count  int
	sealed bool
}

func (s *batchState) reset(offset int) {
	s.codes = nil
	clear(s.index)
	s.offset = offset
	s.count = 0
	s.sealed = false
}

func codeKey(code []float32) string {
	return string(view(code))
}

//Encode 排序并打包同一几何类别的要素, 没有输出时返回nil
func (e *Encoder) Encode(kind feature.Kind, features []*feature.Feature) *Buffers {
	fs := make([]*feature.Feature, 0, len(features))
	var nv, ni, nl, nw int
	for _, f := range features {
		if f == nil || f.Empty() || units(kind, f) == 0 {
			continue
		}
		fs = append(fs, f)
		nv += len(f.Vertices)
		ni += len(f.Indices)
		nl += len(f.LengthSoFar)
		nw += len(f.Weights)
	}
	if len(fs) == 0 {
		return nil
	}
	Sort(fs)

	b := &Buffers{Kind: kind, Vertices: make([]int16, 0, nv)}
	switch kind {
	case feature.KindFill:
		b.Indices = make([]uint32, 0, ni)
	case feature.KindLine:
		b.LengthSoFar = make([]float32, 0, nl)
	case feature.KindHeatmap:
		b.Weights = make([]float32, 0, nw)
	}

	limit := e.maxCodeSize()
	strategy := e.strategy()
	cur := batchState{layer: fs[0].LayerIndex, cap: fs[0].Cap, index: make(map[string]int)}
	total := 0

	for _, f := range fs {
		key := codeKey(f.Code)
		pos, seen := cur.index[key]
		if cur.count > 0 {
			split := cur.sealed || f.LayerIndex != cur.layer ||
				(kind == feature.KindLine && f.Cap != cur.cap)
			if !split && !seen {
				switch strategy {
				case FeatureCode:
					split = true
				default:
					// offsets must stay below limit to fit a uint8
					split = len(cur.codes) >= limit || len(cur.codes)+len(f.Code) > limit
				}
			}
			if split {
				b.flush(&cur)
				cur.reset(total)
				seen = false
			}
		}
		if !seen {
			pos = len(cur.codes)
			cur.codes = append(cur.codes, f.Code...)
			cur.index[key] = pos
		}
		cur.layer, cur.cap = f.LayerIndex, f.Cap
		// a code larger than the table gets a batch of its own
		if len(f.Code) > limit {
			cur.sealed = true
		}

		n := b.add(f, strategy, pos)
		cur.count += n
		total += n
	}
	if cur.count > 0 {
		b.flush(&cur)
	}
	b.Count = total
	return b
}

func (b *Buffers) flush(s *batchState) {
	if b.Kind == feature.KindLine {
		b.Guide = append(b.Guide, s.cap.Code())
	}
	b.Guide = append(b.Guide, float32(s.layer), float32(s.count), float32(s.offset), float32(len(s.codes)))
	b.Guide = append(b.Guide, s.codes...)
	b.batches++
}

// add copies one feature into the shared arrays and returns its unit count
func (b *Buffers) add(f *feature.Feature, strategy CodeStrategy, pos int) int {
	vertexOffset := uint32(len(b.Vertices) / 2)
	b.Vertices = append(b.Vertices, f.Vertices...)

	var n, perUnit int
	switch b.Kind {
	case feature.KindFill:
		for _, i := range f.Indices {
			b.Indices = append(b.Indices, i+vertexOffset)
		}
		n, perUnit = len(f.Indices), 2
	case feature.KindLine:
		b.LengthSoFar = append(b.LengthSoFar, f.LengthSoFar...)
		n, perUnit = len(f.Vertices)/6, 6
	case feature.KindHeatmap:
		b.Weights = append(b.Weights, f.Weights...)
		n, perUnit = len(f.Vertices)/2, 2
	default:
		n, perUnit = len(f.Vertices)/2, 2
	}

	// ids and code offsets follow the vertex layout, one entry per vertex unit
	vunits := len(f.Vertices) / perUnit
	if b.Kind != feature.KindHeatmap {
		rgb := feature.IDToRGB(f.ID)
		for i := 0; i < vunits; i++ {
			b.IDs = append(b.IDs, rgb[0], rgb[1], rgb[2])
		}
	}
	if strategy == BatchTable {
		for i := 0; i < vunits; i++ {
			b.CodeTypes = append(b.CodeTypes, uint8(pos))
		}
	}
	return n
}
