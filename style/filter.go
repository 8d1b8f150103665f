package style

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
)

//Filter 要素过滤
type Filter func(props geojson.Properties) bool

//FilterDef 过滤条件, And/Or 非空时忽略 Key/Op/Value
type FilterDef struct {
	Key   string      `mapstructure:"key"`
	Op    string      `mapstructure:"comparator"`
	Value interface{} `mapstructure:"value"`
	And   []FilterDef `mapstructure:"and"`
	Or    []FilterDef `mapstructure:"or"`
}

func all(props geojson.Properties) bool { return true }

//Build 生成过滤函数, nil 表示全部通过
func (d *FilterDef) Build() (Filter, error) {
	if d == nil {
		return all, nil
	}
	switch {
	case len(d.And) > 0:
		fs, err := buildFilters(d.And)
		if err != nil {
			return nil, err
		}
		return func(props geojson.Properties) bool {
			for _, f := range fs {
				if !f(props) {
					return false
				}
			}
			return true
		}, nil
	case len(d.Or) > 0:
		fs, err := buildFilters(d.Or)
		if err != nil {
			return nil, err
		}
		return func(props geojson.Properties) bool {
			for _, f := range fs {
				if f(props) {
					return true
				}
			}
			return false
		}, nil
	}
	return Compare(d.Key, d.Op, d.Value)
}

func buildFilters(defs []FilterDef) ([]Filter, error) {
	fs := make([]Filter, 0, len(defs))
	for i := range defs {
		f, err := defs[i].Build()
		if err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	return fs, nil
}

//Compare 单个比较条件, 支持 == != > >= < <= has !has
//has 判断属性值是否在 value 列表中
func Compare(key, op string, value interface{}) (Filter, error) {
	if key == "" {
		return nil, fmt.Errorf("filter: empty key")
	}
	switch op {
	case "==", "":
		return func(p geojson.Properties) bool { return equal(p[key], value) }, nil
	case "!=":
		return func(p geojson.Properties) bool { return !equal(p[key], value) }, nil
	case ">", ">=", "<", "<=":
		want, ok := toFloat(value)
		if !ok {
			return nil, fmt.Errorf("filter: %s %s needs a number, got %v", key, op, value)
		}
		return func(p geojson.Properties) bool {
			v, ok := toFloat(p[key])
			if !ok {
				return false
			}
			switch op {
			case ">":
				return v > want
			case ">=":
				return v >= want
			case "<":
				return v < want
			}
			return v <= want
		}, nil
	case "has":
		return In(key, list(value)...), nil
	case "!has":
		in := In(key, list(value)...)
		return func(p geojson.Properties) bool { return !in(p) }, nil
	}
	return nil, fmt.Errorf("filter: unknown comparator %q", op)
}

//Equals 属性等于给定值
func Equals(key string, value interface{}) Filter {
	return func(p geojson.Properties) bool { return equal(p[key], value) }
}

//In 属性值属于给定集合
func In(key string, values ...interface{}) Filter {
	return func(p geojson.Properties) bool {
		v, ok := p[key]
		if !ok {
			return false
		}
		for _, w := range values {
			if equal(v, w) {
				return true
			}
		}
		return false
	}
}

//Exists 属性存在
func Exists(key string) Filter {
	return func(p geojson.Properties) bool {
		_, ok := p[key]
		return ok
	}
}

func list(v interface{}) []interface{} {
	switch v := v.(type) {
	case []interface{}:
		return v
	case []string:
		res := make([]interface{}, len(v))
		for i := range v {
			res[i] = v[i]
		}
		return res
	case []float64:
		res := make([]interface{}, len(v))
		for i := range v {
			res[i] = v[i]
		}
		return res
	case nil:
		return nil
	}
	return []interface{}{v}
}

// equal compares numbers by value and everything else by its printed form
func equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	fa, oka := toFloat(a)
	fb, okb := toFloat(b)
	if oka && okb {
		return fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
