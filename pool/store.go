package pool

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"tilepipe/batch"
	"tilepipe/feature"
	"tilepipe/process"
)

type tileSource struct {
	tile   uint64
	source string
}

type storeKey struct {
	tileSource
	kind feature.Kind
}

//Stored 渲染端持有的一组缓冲
type Stored struct {
	Generation uint64
	Buffers    *batch.Buffers
}

//TileStore 渲染端的瓦片缓冲表
//同一 (瓦片, 数据源) 只保留最新一代, 重复或过期的消息不会改变状态
type TileStore struct {
	mu          sync.RWMutex
	gens        map[tileSource]uint64
	sets        map[storeKey]Stored
	interactive map[tileSource]*process.Interactive
}

//NewTileStore 创建缓冲表
func NewTileStore() *TileStore {
	return &TileStore{
		gens:        make(map[tileSource]uint64),
		sets:        make(map[storeKey]Stored),
		interactive: make(map[tileSource]*process.Interactive),
	}
}

//Apply 应用一条结果消息, 返回状态是否改变
func (s *TileStore) Apply(msg Message) bool {
	if msg.Status != Completed {
		return false
	}
	ts := tileSource{tile: msg.TileID, source: msg.Source}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen, ok := s.gens[ts]; ok && gen >= msg.Generation {
		log.Debugf("store: ignore %s %s generation %d, have %d", msg.Coord, msg.Source, msg.Generation, gen)
		return false
	}
	s.drop(ts)
	s.gens[ts] = msg.Generation
	for kind, b := range msg.Sets {
		s.sets[storeKey{ts, kind}] = Stored{Generation: msg.Generation, Buffers: b}
	}
	if msg.Interactive != nil {
		s.interactive[ts] = msg.Interactive
	}
	return true
}

// drop must be called with mu held
func (s *TileStore) drop(ts tileSource) {
	for k := feature.KindFill; k <= feature.KindHeatmap; k++ {
		delete(s.sets, storeKey{ts, k})
	}
	delete(s.interactive, ts)
}

//Get 取瓦片某类几何的缓冲
func (s *TileStore) Get(coord feature.Coord, source string, kind feature.Kind) (Stored, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sets[storeKey{tileSource{coord.ID(), source}, kind}]
	return st, ok
}

//Interactive 取瓦片的可交互属性
func (s *TileStore) Interactive(coord feature.Coord, source string) *process.Interactive {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interactive[tileSource{coord.ID(), source}]
}

//Remove 卸载瓦片的全部缓冲, 代数记录一并清除
func (s *TileStore) Remove(coord feature.Coord) int {
	id := coord.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for ts := range s.gens {
		if ts.tile != id {
			continue
		}
		s.drop(ts)
		delete(s.gens, ts)
		n++
	}
	return n
}

//Len 缓冲组数量
func (s *TileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sets)
}
