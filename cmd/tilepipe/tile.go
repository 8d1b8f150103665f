package main

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paulmach/orb/maptile"

	"tilepipe/feature"
	"tilepipe/pool"
	"tilepipe/process"
)

//ZoomMax 最大级别
const ZoomMax = 22

var gzipMagic = []byte{0x1f, 0x8b}

func flipY(t maptile.Tile) uint32 {
	return uint32(1)<<t.Z - 1 - t.Y
}

//Source MBTiles 矢量瓦片数据源, tile_row 按 tms 存储
type Source struct {
	db *sql.DB
}

//OpenSource 只读打开 mbtiles
func OpenSource(file string) (*Source, error) {
	db, err := sql.Open("sqlite3", "file:"+file+"?mode=ro")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open mbtiles %s: %w", file, err)
	}
	return &Source{db: db}, nil
}

//Close 关闭连接
func (s *Source) Close() error {
	return s.db.Close()
}

//Has 是否存在该瓦片
func (s *Source) Has(t maptile.Tile) (bool, error) {
	var one int
	err := s.db.QueryRow("select 1 from tiles where zoom_level = ? and tile_column = ? and tile_row = ? limit 1;", t.Z, t.X, flipY(t)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

//Read 读取瓦片数据, 不存在时返回 pool.ErrNoData
func (s *Source) Read(t maptile.Tile) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow("select tile_data from tiles where zoom_level = ? and tile_column = ? and tile_row = ?;", t.Z, t.X, flipY(t)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pool.ErrNoData
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, pool.ErrNoData
	}
	return data, nil
}

//Ancestor 在 levels 级之内向上查找存在的祖先瓦片
func (s *Source) Ancestor(c feature.Coord, levels int) (feature.Coord, bool, error) {
	z := c.Zoom()
	for i := 1; i <= levels && uint32(i) <= z; i++ {
		a := c.Ancestor(z - uint32(i))
		ok, err := s.Has(a.Tile)
		if err != nil {
			return feature.Coord{}, false, err
		}
		if ok {
			return a, true, nil
		}
	}
	return feature.Coord{}, false, nil
}

//Load 按任务加载瓦片, 带祖先引用时读取祖先瓦片
func (s *Source) Load(job feature.Job) (process.Tile, error) {
	t := job.Coord.Tile
	if job.Parent != nil {
		t = job.Coord.Ancestor(job.Parent.Zoom).Tile
	}
	data, err := s.Read(t)
	if err != nil {
		return nil, err
	}
	return process.DecodeMVT(data, bytes.HasPrefix(data, gzipMagic))
}
