// Package process runs one tile job inside a processing unit: it adapts the
// decoded tile, evaluates styles, builds per kind geometry and encodes the
// batches.
package process

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"

	"tilepipe/batch"
	"tilepipe/feature"
	"tilepipe/fill"
	"tilepipe/line"
	"tilepipe/point"
	"tilepipe/reproject"
	"tilepipe/style"
)

//ErrPanic 任务执行中发生panic
var ErrPanic = errors.New("process: job panicked")

//Options 处理单元参数
type Options struct {
	//Unit 单元序号, Units 单元总数, 用于生成不冲突的要素id
	Unit    int
	Units   int
	Clipper reproject.Clipper
	Encoder batch.Encoder
}

//Result 任务结果, Err 不为空时 Sets 为空
type Result struct {
	Job         feature.Job
	Err         error
	Sets        map[feature.Kind]*batch.Buffers
	Interactive *Interactive
	//LayerCounts 每个图层输出的要素数
	LayerCounts map[int]int
}

//Empty 没有任何输出
func (r *Result) Empty() bool {
	return len(r.Sets) == 0
}

//Processor 处理单元, 不在协程间共享
type Processor struct {
	layers   []*style.Layer
	bySource map[string][]*style.Layer
	ids      *feature.IDGen
	clipper  reproject.Clipper
	encoder  batch.Encoder
}

//NewProcessor 由图层定义在单元内重建样式函数
func NewProcessor(defs []style.Definition, opts Options) (*Processor, error) {
	layers, err := style.Build(defs)
	if err != nil {
		return nil, fmt.Errorf("build layers: %w", err)
	}
	if opts.Units < 1 {
		opts.Units = 1
	}
	if opts.Clipper.Buffer == 0 {
		opts.Clipper = reproject.DefaultClipper
	}
	p := &Processor{
		layers:   layers,
		bySource: make(map[string][]*style.Layer),
		ids:      feature.NewIDGen(opts.Unit, opts.Units),
		clipper:  opts.Clipper,
		encoder:  opts.Encoder,
	}
	for _, l := range layers {
		p.bySource[l.Source] = append(p.bySource[l.Source], l)
	}
	return p, nil
}

//Layers 解析后的图层
func (p *Processor) Layers() []*style.Layer {
	return p.layers
}

//Process 执行一个瓦片任务, 单个要素的异常不会中断任务, panic 会转成 ErrPanic
func (p *Processor) Process(job feature.Job, tile Tile) (res *Result) {
	res = &Result{
		Job:         job,
		Sets:        make(map[feature.Kind]*batch.Buffers),
		LayerCounts: make(map[int]int),
	}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("process job %d (%s %s) panic ~ %v\n%s", job.ID, job.Coord, job.Source, r, debug.Stack())
			res.Err = fmt.Errorf("%w: %v", ErrPanic, r)
			res.Sets = nil
			res.Interactive = nil
		}
	}()

	zoom := float64(job.Coord.Zoom())
	features := make(map[feature.Kind][]*feature.Feature)
	for _, l := range p.bySource[job.Source] {
		if !job.Parent.Has(l.Index) || !l.InZoom(zoom) {
			continue
		}
		count := 0
		if tile != nil {
			if layer, ok := tile.Layer(l.SourceLayer); ok {
				extent := layer.Extent()
				for i := 0; i < layer.Len(); i++ {
					raw, ok := layer.Feature(i)
					if !ok {
						continue
					}
					f := p.build(job, l, raw, extent, zoom)
					if f == nil {
						continue
					}
					features[l.Kind] = append(features[l.Kind], f)
					count++
					if l.Interactive && l.Kind != feature.KindHeatmap {
						if res.Interactive == nil {
							res.Interactive = &Interactive{}
						}
						if err := res.Interactive.add(f.ID, f.Properties, l); err != nil {
							log.Debugf("interactive feature %d of %s ~ %s", f.ID, l.Name, err)
						}
					}
				}
			}
		}
		if count == 0 && l.Invert {
			f := &feature.Feature{ID: p.ids.Next(), LayerIndex: l.Index, Code: l.Eval(nil, zoom)}
			fill.Invert(f)
			features[feature.KindFill] = append(features[feature.KindFill], f)
			count++
		}
		res.LayerCounts[l.Index] = count
	}

	for kind, fs := range features {
		if b := p.encoder.Encode(kind, fs); b != nil {
			res.Sets[kind] = b
		}
	}
	return res
}

func (p *Processor) build(job feature.Job, l *style.Layer, raw RawFeature, extent, zoom float64) (f *feature.Feature) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("layer %s: dropped feature of job %d (%s) ~ %v", l.Name, job.ID, job.Coord, r)
			f = nil
		}
	}()
	typ := raw.Type()
	if typ == feature.TypeUnknown || typ > feature.TypeMultiPolygon {
		log.Debugf("layer %s: dropped feature with type %d", l.Name, typ)
		return nil
	}
	if !accepts(l, typ) {
		return nil
	}
	props := raw.Properties()
	if !l.Accept(props) {
		return nil
	}

	f = &feature.Feature{LayerIndex: l.Index, Type: typ, Extent: extent, Properties: props}
	var g orb.Geometry
	if fl, ok := raw.(Flattener); ok && l.Kind == feature.KindFill && job.Parent == nil {
		f.Flat, f.Precomputed, ok = fl.LoadFlat()
		if !ok {
			f.Flat, f.Precomputed = nil, nil
		}
	}
	if len(f.Precomputed) == 0 {
		g = p.clipper.ScaleShiftClip(raw.LoadGeometry(), extent, job)
		if g == nil {
			return nil
		}
	}
	f.Geometry = g

	div := job.Div()
	var ok bool
	switch l.Kind {
	case feature.KindFill:
		ok = fill.Build(f, g, div)
	case feature.KindLine:
		f.Cap = l.Cap(props, zoom)
		ok = line.Build(f, g, div, l.Dashed)
	case feature.KindPoint:
		ok = point.Build(f, g, nil)
	case feature.KindHeatmap:
		w := l.Weight(props, zoom)
		ok = point.Build(f, g, &w)
	}
	if !ok {
		return nil
	}

	f.Code = l.Eval(props, zoom)
	if l.Kind == feature.KindHeatmap {
		f.Code = point.HeatmapCode(f.Code, l.Eval(props, zoom+1))
	} else {
		f.ID = p.featureID(raw)
	}
	return f
}

// featureID keeps the source id when it fits the id space, otherwise draws a new one
func (p *Processor) featureID(raw RawFeature) uint32 {
	if id, ok := raw.ID(); ok && id > 0 && id < feature.IDMaxSize {
		return uint32(id)
	}
	return p.ids.Next()
}

// accepts reports whether a layer kind can draw a geometry type
func accepts(l *style.Layer, typ feature.GeometryType) bool {
	switch l.Kind {
	case feature.KindFill:
		return typ == feature.TypePolygon || typ == feature.TypeMultiPolygon
	case feature.KindLine:
		if typ == feature.TypePoint {
			return false
		}
		return !(l.OnlyLines && typ != feature.TypeLine)
	}
	return typ == feature.TypePoint
}
