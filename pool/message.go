package pool

import (
	"tilepipe/batch"
	"tilepipe/feature"
	"tilepipe/process"
)

//State 任务状态
type State uint8

// job states
const (
	Queued State = iota
	Dispatched
	Processing
	Completed
	Superseded
	Failed
)

var stateNames = [...]string{"queued", "dispatched", "processing", "completed", "superseded", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

//Active 已派发且尚未结束
func (s State) Active() bool {
	return s == Queued || s == Dispatched || s == Processing
}

//Message 处理单元交回的结果, 转交后生产者不再持有其中的缓冲
type Message struct {
	MapID      string
	JobID      uint64
	TileID     uint64
	Coord      feature.Coord
	Source     string
	Generation uint64
	Status     State
	Err        error

	Sets        map[feature.Kind]*batch.Buffers
	Interactive *process.Interactive
	LayerCounts map[int]int
}

//Kinds 结果中包含的几何类别
func (m *Message) Kinds() []feature.Kind {
	var kinds []feature.Kind
	for k := feature.KindFill; k <= feature.KindHeatmap; k++ {
		if _, ok := m.Sets[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
