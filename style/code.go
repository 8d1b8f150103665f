package style

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb/geojson"
)

//CodeFunc 向样式编码追加数值并返回
type CodeFunc func(code []float32, props geojson.Properties, zoom float64) []float32

//Stop 缩放级别插值节点
type Stop struct {
	Zoom  float64   `mapstructure:"zoom"`
	Value []float32 `mapstructure:"value"`
}

//CodeDef 编码函数定义, 优先级 Stops > Cases > Key > Value
type CodeDef struct {
	Value    []float32            `mapstructure:"value"`
	Key      string               `mapstructure:"key"`
	Cases    map[string][]float32 `mapstructure:"cases"`
	Fallback []float32            `mapstructure:"fallback"`
	Stops    []Stop               `mapstructure:"stops"`
}

//Build 生成编码函数
func (d CodeDef) Build() (CodeFunc, error) {
	switch {
	case len(d.Stops) > 0:
		return Zoom(d.Stops...)
	case len(d.Cases) > 0:
		if d.Key == "" {
			return nil, fmt.Errorf("code: cases without key")
		}
		return Match(d.Key, d.Cases, d.Fallback), nil
	case d.Key != "":
		var fallback float32
		if len(d.Fallback) > 0 {
			fallback = d.Fallback[0]
		}
		return Prop(d.Key, fallback), nil
	case len(d.Value) > 0:
		return Const(d.Value...), nil
	}
	return nil, fmt.Errorf("code: empty definition")
}

//Const 固定值
func Const(values ...float32) CodeFunc {
	return func(code []float32, _ geojson.Properties, _ float64) []float32 {
		return append(code, values...)
	}
}

//Prop 取数值属性, 缺失或非数值时用 fallback
func Prop(key string, fallback float32) CodeFunc {
	return func(code []float32, props geojson.Properties, _ float64) []float32 {
		if v, ok := toFloat(props[key]); ok {
			return append(code, float32(v))
		}
		return append(code, fallback)
	}
}

//Match 按属性值选择编码
func Match(key string, cases map[string][]float32, fallback []float32) CodeFunc {
	return func(code []float32, props geojson.Properties, _ float64) []float32 {
		if v, ok := props[key]; ok && v != nil {
			if c, ok := cases[fmt.Sprint(v)]; ok {
				return append(code, c...)
			}
		}
		return append(code, fallback...)
	}
}

//Zoom 按缩放级别在节点之间线性插值, 所有节点的值长度必须一致
func Zoom(stops ...Stop) (CodeFunc, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("code: no stops")
	}
	ss := make([]Stop, len(stops))
	copy(ss, stops)
	sort.SliceStable(ss, func(i, j int) bool { return ss[i].Zoom < ss[j].Zoom })
	n := len(ss[0].Value)
	for _, s := range ss {
		if len(s.Value) != n {
			return nil, fmt.Errorf("code: stop at zoom %v has %d values, want %d", s.Zoom, len(s.Value), n)
		}
	}
	return func(code []float32, _ geojson.Properties, zoom float64) []float32 {
		if zoom <= ss[0].Zoom {
			return append(code, ss[0].Value...)
		}
		last := ss[len(ss)-1]
		if zoom >= last.Zoom {
			return append(code, last.Value...)
		}
		i := sort.Search(len(ss), func(i int) bool { return ss[i].Zoom > zoom })
		lo, hi := ss[i-1], ss[i]
		t := float32((zoom - lo.Zoom) / (hi.Zoom - lo.Zoom))
		for k := range lo.Value {
			code = append(code, lo.Value[k]+(hi.Value[k]-lo.Value[k])*t)
		}
		return code
	}, nil
}
