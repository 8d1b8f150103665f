package feature

import (
	"fmt"
	"time"

	"github.com/paulmach/orb/maptile"
)

//FaceFlat 平面投影的面编号, 0~5 为 S2 立方体面
const FaceFlat uint8 = 6

//Coord 瓦片坐标, face + z/x/y
type Coord struct {
	Face uint8
	maptile.Tile
}

//NewCoord 创建瓦片坐标
func NewCoord(face uint8, z, x, y uint32) Coord {
	return Coord{Face: face, Tile: maptile.New(x, y, maptile.Zoom(z))}
}

//Zoom 级别
func (c Coord) Zoom() uint32 {
	return uint32(c.Tile.Z)
}

//Parent 上一级瓦片, 0级返回自身
func (c Coord) Parent() Coord {
	if c.Tile.Z == 0 {
		return c
	}
	return Coord{Face: c.Face, Tile: c.Tile.Parent()}
}

//Ancestor 指定级别的祖先瓦片
func (c Coord) Ancestor(z uint32) Coord {
	for uint32(c.Tile.Z) > z {
		c = c.Parent()
	}
	return c
}

//Children 下一级的四个瓦片
func (c Coord) Children() [4]Coord {
	var res [4]Coord
	for i, t := range c.Tile.Children() {
		res[i] = Coord{Face: c.Face, Tile: t}
	}
	return res
}

func (c Coord) String() string {
	if c.Face == FaceFlat {
		return fmt.Sprintf("%d/%d/%d", c.Tile.Z, c.Tile.X, c.Tile.Y)
	}
	return fmt.Sprintf("%d:%d/%d/%d", c.Face, c.Tile.Z, c.Tile.X, c.Tile.Y)
}

//ID 瓦片编号 ((2^z*y + x)*32 + z), 高3位为面编号
func (c Coord) ID() uint64 {
	z := uint64(c.Tile.Z)
	return uint64(c.Face)<<61 | ((uint64(1)<<z)*uint64(c.Tile.Y)+uint64(c.Tile.X))*32 + z
}

//CoordFromID 由瓦片编号还原坐标
func CoordFromID(id uint64) Coord {
	face := uint8(id >> 61)
	id &= 1<<61 - 1
	z := id % 32
	id /= 32
	x := id % (1 << z)
	y := id / (1 << z)
	return NewCoord(face, uint32(z), uint32(x), uint32(y))
}

//AncestorRef 借用祖先瓦片数据时的引用
type AncestorRef struct {
	Zoom         uint32
	LayerIndexes []int
}

//Has 是否包含该图层
func (a *AncestorRef) Has(layerIndex int) bool {
	if a == nil {
		return true
	}
	for _, i := range a.LayerIndexes {
		if i == layerIndex {
			return true
		}
	}
	return false
}

//JobKey 同一瓦片同一数据源只保留一个在途任务
type JobKey struct {
	Coord  Coord
	Source string
}

//Job 瓦片处理任务
type Job struct {
	ID         uint64
	Coord      Coord
	Source     string
	Division   int
	Generation uint64
	Time       time.Time
	Parent     *AncestorRef
}

//Key 任务键
func (j Job) Key() JobKey {
	return JobKey{Coord: j.Coord, Source: j.Source}
}

//Div division, 不合法时按1处理
func (j Job) Div() int {
	if j.Division < 1 {
		return 1
	}
	return j.Division
}
