package process

import (
	"encoding/json"

	"github.com/paulmach/orb/geojson"
	"honnef.co/go/safeish"

	"tilepipe/style"
)

//Interactive 可交互要素的属性
//Guide 每个要素三个值 (id, start, end), 指向 Data 中的一段 json
type Interactive struct {
	Guide []uint32
	Data  []byte
}

//Len 要素数量
func (in *Interactive) Len() int {
	if in == nil {
		return 0
	}
	return len(in.Guide) / 3
}

//GuideBytes Guide 的字节视图
func (in *Interactive) GuideBytes() []byte {
	if in.Len() == 0 {
		return nil
	}
	return safeish.SliceCast[[]byte](in.Guide)
}

func (in *Interactive) add(id uint32, props geojson.Properties, l *style.Layer) error {
	obj := make(map[string]interface{}, len(props)+4)
	for k, v := range props {
		obj[k] = v
	}
	obj["__id"] = id
	obj["__name"] = l.Name
	obj["__source"] = l.Source
	obj["__layer"] = l.SourceLayer
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	start := uint32(len(in.Data))
	in.Data = append(in.Data, data...)
	in.Guide = append(in.Guide, id, start, uint32(len(in.Data)))
	return nil
}

//Lookup 按id取属性
func (in *Interactive) Lookup(id uint32) (map[string]interface{}, bool) {
	if in == nil {
		return nil, false
	}
	for i := 0; i+2 < len(in.Guide); i += 3 {
		if in.Guide[i] != id {
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal(in.Data[in.Guide[i+1]:in.Guide[i+2]], &obj); err != nil {
			return nil, false
		}
		return obj, true
	}
	return nil, false
}
