// Package style turns plain layer definitions into the filter and style code
// callables a processing unit evaluates per feature.
package style

import (
	"fmt"

	"github.com/paulmach/orb/geojson"

	"tilepipe/feature"
)

//Definition 图层定义, 只包含可序列化的数据, 可由viper直接解析
type Definition struct {
	Name        string     `mapstructure:"name"`
	Source      string     `mapstructure:"source"`
	Layer       string     `mapstructure:"layer"`
	Type        string     `mapstructure:"type"`
	MinZoom     float64    `mapstructure:"minzoom"`
	MaxZoom     float64    `mapstructure:"maxzoom"`
	Filter      *FilterDef `mapstructure:"filter"`
	Code        []CodeDef  `mapstructure:"code"`
	Cap         string     `mapstructure:"cap"`
	CapKey      string     `mapstructure:"capkey"`
	Weight      *CodeDef   `mapstructure:"weight"`
	Invert      bool       `mapstructure:"invert"`
	Interactive bool       `mapstructure:"interactive"`
	OnlyLines   bool       `mapstructure:"onlylines"`
	Dashed      bool       `mapstructure:"dashed"`
}

//CapFunc 线帽
type CapFunc func(props geojson.Properties, zoom float64) feature.Cap

//WeightFunc 热力图权重
type WeightFunc func(props geojson.Properties, zoom float64) float32

//Layer 解析后的图层
type Layer struct {
	Index       int
	Name        string
	Source      string
	SourceLayer string
	Kind        feature.Kind
	MinZoom     float64
	MaxZoom     float64
	Filter      Filter
	Code        []CodeFunc
	Cap         CapFunc
	Weight      WeightFunc
	Invert      bool
	Interactive bool
	OnlyLines   bool
	Dashed      bool
}

//Build 解析图层定义, index 为图层在样式中的序号
func (d *Definition) Build(index int) (*Layer, error) {
	kind, ok := feature.ParseKind(d.Type)
	if !ok {
		return nil, fmt.Errorf("layer %q: unknown type %q", d.Name, d.Type)
	}
	l := &Layer{
		Index:       index,
		Name:        d.Name,
		Source:      d.Source,
		SourceLayer: d.Layer,
		Kind:        kind,
		MinZoom:     d.MinZoom,
		MaxZoom:     d.MaxZoom,
		Invert:      d.Invert && kind == feature.KindFill,
		Interactive: d.Interactive,
		OnlyLines:   d.OnlyLines,
		Dashed:      d.Dashed,
	}
	if l.SourceLayer == "" {
		l.SourceLayer = d.Name
	}
	if l.MaxZoom <= 0 {
		l.MaxZoom = 30
	}
	if l.MinZoom > l.MaxZoom {
		return nil, fmt.Errorf("layer %q: minzoom %v above maxzoom %v", d.Name, l.MinZoom, l.MaxZoom)
	}

	var err error
	if l.Filter, err = d.Filter.Build(); err != nil {
		return nil, fmt.Errorf("layer %q: %w", d.Name, err)
	}
	for i, c := range d.Code {
		fn, err := c.Build()
		if err != nil {
			return nil, fmt.Errorf("layer %q code %d: %w", d.Name, i, err)
		}
		l.Code = append(l.Code, fn)
	}

	defaultCap := feature.ParseCap(d.Cap)
	capKey := d.CapKey
	l.Cap = func(props geojson.Properties, _ float64) feature.Cap {
		if capKey != "" {
			if s, ok := props[capKey].(string); ok {
				return feature.ParseCap(s)
			}
		}
		return defaultCap
	}

	if kind == feature.KindHeatmap {
		l.Weight = func(geojson.Properties, float64) float32 { return 1 }
		if d.Weight != nil {
			fn, err := d.Weight.Build()
			if err != nil {
				return nil, fmt.Errorf("layer %q weight: %w", d.Name, err)
			}
			l.Weight = func(props geojson.Properties, zoom float64) float32 {
				if v := fn(nil, props, zoom); len(v) > 0 {
					return v[0]
				}
				return 1
			}
		}
	}
	return l, nil
}

//Build 按顺序解析全部图层
func Build(defs []Definition) ([]*Layer, error) {
	layers := make([]*Layer, 0, len(defs))
	for i := range defs {
		l, err := defs[i].Build(i)
		if err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}
	return layers, nil
}

//InZoom 缩放级别是否在图层范围内
func (l *Layer) InZoom(zoom float64) bool {
	return zoom >= l.MinZoom && zoom <= l.MaxZoom
}

//Accept 过滤
func (l *Layer) Accept(props geojson.Properties) bool {
	return l.Filter == nil || l.Filter(props)
}

//Eval 依次执行编码函数
func (l *Layer) Eval(props geojson.Properties, zoom float64) []float32 {
	var code []float32
	for _, fn := range l.Code {
		code = fn(code, props, zoom)
	}
	return code
}
