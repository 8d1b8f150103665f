package process

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"

	"tilepipe/feature"
)

//Tile 解码后的瓦片
type Tile interface {
	Layer(name string) (Layer, bool)
}

//Layer 瓦片中的一个数据层
type Layer interface {
	Name() string
	Extent() float64
	Len() int
	Feature(i int) (RawFeature, bool)
}

//RawFeature 未处理的要素
type RawFeature interface {
	Type() feature.GeometryType
	LoadGeometry() orb.Geometry
	Properties() geojson.Properties
	ID() (uint64, bool)
}

//Flattener 数据源已经三角化过的面要素可以实现此接口, 跳过耳切
type Flattener interface {
	LoadFlat() (vertices []float64, indices []uint32, ok bool)
}

//MVTTile mvt 瓦片
type MVTTile struct {
	layers map[string]*mvtLayer
}

//DecodeMVT 解码 mvt 数据
func DecodeMVT(data []byte, gzipped bool) (*MVTTile, error) {
	var (
		layers mvt.Layers
		err    error
	)
	if gzipped {
		layers, err = mvt.UnmarshalGzipped(data)
	} else {
		layers, err = mvt.Unmarshal(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decode mvt: %w", err)
	}
	return NewMVTTile(layers), nil
}

//NewMVTTile 包装已解码的 mvt 图层
func NewMVTTile(layers mvt.Layers) *MVTTile {
	t := &MVTTile{layers: make(map[string]*mvtLayer, len(layers))}
	for _, l := range layers {
		t.layers[l.Name] = &mvtLayer{l}
	}
	return t
}

//Layer 按名称取图层
func (t *MVTTile) Layer(name string) (Layer, bool) {
	l, ok := t.layers[name]
	if !ok {
		return nil, false
	}
	return l, true
}

//Names 所有图层名称
func (t *MVTTile) Names() []string {
	names := make([]string, 0, len(t.layers))
	for n := range t.layers {
		names = append(names, n)
	}
	return names
}

type mvtLayer struct {
	*mvt.Layer
}

func (l *mvtLayer) Name() string { return l.Layer.Name }

func (l *mvtLayer) Extent() float64 {
	if l.Layer.Extent == 0 {
		return feature.DefaultExtent
	}
	return float64(l.Layer.Extent)
}

func (l *mvtLayer) Len() int { return len(l.Features) }

func (l *mvtLayer) Feature(i int) (RawFeature, bool) {
	if i < 0 || i >= len(l.Features) || l.Features[i] == nil {
		return nil, false
	}
	return mvtFeature{l.Features[i]}, true
}

type mvtFeature struct {
	*geojson.Feature
}

func (f mvtFeature) Type() feature.GeometryType {
	t := feature.TypeOf(f.Geometry)
	if t == feature.TypeUnknown {
		log.Debugf("mvt: unexpected %T geometry", f.Geometry)
	}
	return t
}

func (f mvtFeature) LoadGeometry() orb.Geometry { return f.Geometry }

func (f mvtFeature) Properties() geojson.Properties { return f.Feature.Properties }

func (f mvtFeature) ID() (uint64, bool) {
	switch id := f.Feature.ID.(type) {
	case float64:
		return uint64(id), true
	case uint64:
		return id, true
	case int64:
		return uint64(id), true
	case int:
		return uint64(id), true
	}
	return 0, false
}
