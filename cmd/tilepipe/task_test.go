package main

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilepipe/batch"
	"tilepipe/feature"
	"tilepipe/pool"
	"tilepipe/style"
)

func waterData(t *testing.T, gzipped bool) []byte {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Polygon{{{0, 0}, {4096, 0}, {4096, 4096}, {0, 4096}, {0, 0}}})
	f.Properties["class"] = "ocean"
	fc.Append(f)
	layers := mvt.NewLayers(map[string]*geojson.FeatureCollection{"water": fc})
	var (
		data []byte
		err  error
	)
	if gzipped {
		data, err = mvt.MarshalGzipped(layers)
	} else {
		data, err = mvt.Marshal(layers)
	}
	require.NoError(t, err)
	return data
}

func writeMBTiles(t *testing.T, tiles map[maptile.Tile][]byte) string {
	file := filepath.Join(t.TempDir(), "input.mbtiles")
	db, err := sql.Open("sqlite3", file)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("create table tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob);")
	require.NoError(t, err)
	for tile, data := range tiles {
		_, err = db.Exec("insert into tiles (zoom_level, tile_column, tile_row, tile_data) values (?, ?, ?, ?);", tile.Z, tile.X, flipY(tile), data)
		require.NoError(t, err)
	}
	return file
}

func TestFlipY(t *testing.T) {
	assert.Equal(t, uint32(0), flipY(maptile.New(0, 0, 0)))
	assert.Equal(t, uint32(3), flipY(maptile.New(1, 0, 2)))
	assert.Equal(t, uint32(0), flipY(maptile.New(1, 3, 2)))
}

func TestSource(t *testing.T) {
	root := maptile.New(0, 0, 0)
	src, err := OpenSource(writeMBTiles(t, map[maptile.Tile][]byte{root: waterData(t, true)}))
	require.NoError(t, err)
	defer src.Close()

	ok, err := src.Has(root)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = src.Has(maptile.New(1, 1, 1))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = src.Read(maptile.New(0, 0, 1))
	assert.ErrorIs(t, err, pool.ErrNoData)

	c := feature.NewCoord(feature.FaceFlat, 2, 3, 1)
	_, ok, err = src.Ancestor(c, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	a, ok, err := src.Ancestor(c, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(0), a.Zoom())

	tile, err := src.Load(feature.Job{Coord: c, Parent: &feature.AncestorRef{Zoom: 0}})
	require.NoError(t, err)
	l, ok := tile.Layer("water")
	require.True(t, ok)
	assert.Equal(t, 1, l.Len())

	_, err = src.Load(feature.Job{Coord: c})
	assert.ErrorIs(t, err, pool.ErrNoData)
}

func TestCoverTiles(t *testing.T) {
	set, err := coverTiles(orb.Collection{worldBound}, orb.Bound{}, 1)
	require.NoError(t, err)
	assert.Len(t, set, 4)

	// only the eastern hemisphere
	east := orb.Bound{Min: orb.Point{10, -10}, Max: orb.Point{20, 10}}
	set, err = coverTiles(orb.Collection{worldBound}, east, 1)
	require.NoError(t, err)
	assert.Len(t, set, 2)

	counts, err := getZoomCount(orb.Collection{worldBound}, orb.Bound{}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, map[int]int64{0: 1, 1: 4, 2: 16}, counts)
}

func TestLoadConfig(t *testing.T) {
	defer viper.Reset()
	viper.Set("task.name", "demo")
	viper.Set("pipeline.strategy", "feature")
	viper.Set("input.bound", []float64{1, 2, 3, 4})
	viper.Set("output.file", filepath.Join(t.TempDir(), "out.sqlite"))
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, batch.FeatureCode, cfg.Encoder.Strategy)
	assert.Equal(t, orb.Bound{Min: orb.Point{1, 2}, Max: orb.Point{3, 4}}, cfg.Bound)

	viper.Set("pipeline.maxcodesize", 1024)
	_, err = loadConfig()
	assert.Error(t, err)
	viper.Set("pipeline.maxcodesize", 256)
	_, err = loadConfig()
	require.NoError(t, err)

	viper.Set("input.bound", []float64{1, 2})
	_, err = loadConfig()
	assert.Error(t, err)

	viper.Set("pipeline.strategy", "mystery")
	_, err = loadConfig()
	assert.Error(t, err)
}

func TestTaskRun(t *testing.T) {
	input := writeMBTiles(t, map[maptile.Tile][]byte{maptile.New(0, 0, 0): waterData(t, false)})
	out := filepath.Join(t.TempDir(), "out.sqlite")
	defs := []style.Definition{
		{Name: "water", Source: "base", Type: "fill", Interactive: true, Code: []style.CodeDef{{Value: []float32{0, 0, 1}}}},
	}
	cfg := Config{
		Name: "test", Source: "base", Min: 0, Max: 2, Division: 2, Ancestors: 1,
		SavePipe: 4, Input: input, File: out, Units: 2, Queue: 8, Buffer: 80,
	}
	task, err := NewTask(cfg, defs)
	require.NoError(t, err)
	assert.Equal(t, int64(21), task.Total)
	assert.Equal(t, []int{0}, task.indexes)

	require.NoError(t, task.Run(context.Background()))
	assert.Equal(t, int64(5), task.submitted)
	assert.Equal(t, int64(4), task.ancestors)
	// zoom 2 is further than one level from the only stored tile
	assert.Equal(t, int64(16), task.missing)
	assert.Equal(t, int64(5), task.saved)
	assert.Zero(t, task.failed)

	db, err := sql.Open("sqlite3", out)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow("select count(*) from buffers where kind = 'fill';").Scan(&n))
	assert.Equal(t, 5, n)
	require.NoError(t, db.QueryRow("select count(*) from interactive;").Scan(&n))
	assert.Equal(t, 5, n)

	var guide []byte
	require.NoError(t, db.QueryRow("select guide from buffers where zoom_level = 1 and tile_column = 1 and tile_row = 0;").Scan(&guide))
	assert.NotEmpty(t, guide)

	var maxzoom string
	require.NoError(t, db.QueryRow("select value from metadata where name = 'maxzoom';").Scan(&maxzoom))
	assert.Equal(t, "2", maxzoom)

	_, err = NewTask(Config{Min: 3, Max: 1}, defs)
	assert.Error(t, err)
}
