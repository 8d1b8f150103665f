package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"

	"tilepipe/pool"
)

func optimizeConnection(db *sql.DB) error {
	_, err := db.Exec("PRAGMA synchronous=0")
	if err != nil {
		return err
	}
	_, err = db.Exec("PRAGMA locking_mode=EXCLUSIVE")
	if err != nil {
		return err
	}
	_, err = db.Exec("PRAGMA journal_mode=DELETE")
	if err != nil {
		return err
	}
	return nil
}

func optimizeDatabase(db *sql.DB) error {
	_, err := db.Exec("ANALYZE;")
	if err != nil {
		return err
	}

	_, err = db.Exec("VACUUM;")
	if err != nil {
		return err
	}

	return nil
}

//saveMessage 每个几何类别一行
func saveMessage(db *sql.DB, msg pool.Message) (int, error) {
	t := msg.Coord.Tile
	n := 0
	for _, kind := range msg.Kinds() {
		b := msg.Sets[kind]
		_, err := db.Exec(`insert or replace into buffers (zoom_level, tile_column, tile_row, source, kind, generation, count,
			vertices, indices, guide, ids, weights, lengths, codetypes) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			t.Z, t.X, flipY(t), msg.Source, kind.String(), msg.Generation, b.Count,
			b.VertexBytes(), b.IndexBytes(), b.GuideBytes(), b.IDs, b.WeightBytes(), b.LengthBytes(), b.CodeTypes)
		if err != nil {
			return n, fmt.Errorf("save %s %s buffers: %w", msg.Coord, kind, err)
		}
		n++
	}
	if msg.Interactive.Len() > 0 {
		_, err := db.Exec("insert or replace into interactive (zoom_level, tile_column, tile_row, source, guide, data) values (?, ?, ?, ?, ?, ?);",
			t.Z, t.X, flipY(t), msg.Source, msg.Interactive.GuideBytes(), msg.Interactive.Data)
		if err != nil {
			return n, fmt.Errorf("save %s interactive: %w", msg.Coord, err)
		}
	}
	return n, nil
}

func loadCollection(path string) (orb.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read file: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("unable to unmarshal feature collection: %w", err)
	}

	var collection orb.Collection
	for _, f := range fc.Features {
		collection = append(collection, f.Geometry)
	}

	return collection, nil
}

//coverTiles 覆盖区域的瓦片, bound 非空时先裁剪区域
func coverTiles(area orb.Collection, bound orb.Bound, z maptile.Zoom) (maptile.Set, error) {
	if !bound.IsZero() {
		area = clip.Collection(bound, area)
	}
	if len(area) == 0 {
		return maptile.Set{}, nil
	}
	set, err := tilecover.Collection(area, z)
	if err != nil {
		return nil, err
	}
	for t := range set {
		if !t.Valid() {
			delete(set, t)
		}
	}
	return set, nil
}

func getZoomCount(area orb.Collection, bound orb.Bound, minz, maxz int) (map[int]int64, error) {
	info := make(map[int]int64)
	for z := minz; z <= maxz; z++ {
		set, err := coverTiles(area, bound, maptile.Zoom(z))
		if err != nil {
			return nil, err
		}
		info[z] = int64(len(set))
	}
	return info, nil
}
