package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/teris-io/shortid"
	"golang.org/x/sync/errgroup"
	pb "gopkg.in/cheggaaa/pb.v1"

	"tilepipe/batch"
	"tilepipe/feature"
	"tilepipe/pool"
	"tilepipe/reproject"
	"tilepipe/style"
)

//BufferVersion 输出库版本号
const BufferVersion = "1.0"

// worldBound covers every web mercator tile, the right edge maps past the last column
var worldBound = orb.Bound{Min: orb.Point{-180, -85.0511}, Max: orb.Point{180, 85.0511}}

//Config 任务配置
type Config struct {
	Name      string
	Source    string
	Min       int
	Max       int
	Division  int
	Ancestors int
	SavePipe  int
	Input     string
	Area      string
	Bound     orb.Bound
	File      string
	Units     int
	Queue     int
	Buffer    float64
	Encoder   batch.Encoder
}

func loadConfig() (Config, error) {
	strategy, err := batch.ParseStrategy(viper.GetString("pipeline.strategy"))
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Name:      viper.GetString("task.name"),
		Source:    viper.GetString("task.source"),
		Min:       viper.GetInt("task.min"),
		Max:       viper.GetInt("task.max"),
		Division:  viper.GetInt("task.division"),
		Ancestors: viper.GetInt("task.ancestors"),
		SavePipe:  viper.GetInt("task.savepipe"),
		Input:     viper.GetString("input.mbtiles"),
		Area:      viper.GetString("input.geojson"),
		File:      viper.GetString("output.file"),
		Units:     viper.GetInt("pool.units"),
		Queue:     viper.GetInt("pool.queue"),
		Buffer:    viper.GetFloat64("pipeline.buffer"),
		Encoder:   batch.Encoder{MaxCodeSize: viper.GetInt("pipeline.maxcodesize"), Strategy: strategy},
	}
	if err := cfg.Encoder.Validate(); err != nil {
		return Config{}, fmt.Errorf("pipeline.maxcodesize配置错误: %w", err)
	}
	var b []float64
	if err := viper.UnmarshalKey("input.bound", &b); err != nil {
		return Config{}, fmt.Errorf("input.bound配置错误: %w", err)
	}
	switch len(b) {
	case 0:
	case 4:
		cfg.Bound = orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}
	default:
		return Config{}, fmt.Errorf("input.bound needs 4 values, got %d", len(b))
	}
	if cfg.File == "" {
		outdir := viper.GetString("output.directory")
		os.MkdirAll(outdir, os.ModePerm)
		cfg.File = filepath.Join(outdir, cfg.Name+".buffers.sqlite")
	}
	return cfg, nil
}

//Task 烘焙任务
type Task struct {
	ID      string
	Name    string
	File    string
	Min     int
	Max     int
	Area    orb.Collection
	Total   int64
	Counts  map[int]int64
	Bar     *pb.ProgressBar
	cfg     Config
	defs    []style.Definition
	indexes []int
	source  *Source
	db      *sql.DB

	submitted, ancestors, missing int64
	saved, failed                 int64
}

//NewTask 创建任务
func NewTask(cfg Config, defs []style.Definition) (*Task, error) {
	if cfg.Min < 0 || cfg.Max > ZoomMax || cfg.Min > cfg.Max {
		return nil, fmt.Errorf("invalid zoom range [%d, %d]", cfg.Min, cfg.Max)
	}
	layers, err := style.Build(defs)
	if err != nil {
		return nil, err
	}
	id, _ := shortid.Generate()
	task := &Task{
		ID:   id,
		Name: cfg.Name,
		File: cfg.File,
		Min:  cfg.Min,
		Max:  cfg.Max,
		cfg:  cfg,
		defs: defs,
	}
	for _, l := range layers {
		if l.Source == cfg.Source {
			task.indexes = append(task.indexes, l.Index)
		}
	}
	if len(task.indexes) == 0 {
		log.Warnf("no layer reads source %s", cfg.Source)
	}

	if cfg.Area != "" {
		task.Area, err = loadCollection(cfg.Area)
		if err != nil {
			return nil, err
		}
	} else {
		task.Area = orb.Collection{worldBound}
	}
	task.Counts, err = getZoomCount(task.Area, cfg.Bound, cfg.Min, cfg.Max)
	if err != nil {
		return nil, err
	}
	for z := cfg.Min; z <= cfg.Max; z++ {
		log.Infof("zoom %d, %d tiles", z, task.Counts[z])
		task.Total += task.Counts[z]
	}
	return task, nil
}

//Bound 范围
func (task *Task) Bound() orb.Bound {
	if !task.cfg.Bound.IsZero() {
		return task.cfg.Bound
	}
	bound := orb.Bound{}
	for i, g := range task.Area {
		if i == 0 {
			bound = g.Bound()
			continue
		}
		bound = bound.Union(g.Bound())
	}
	return bound
}

//MetaItems 输出
func (task *Task) MetaItems() map[string]string {
	b := task.Bound()
	c := b.Center()
	return map[string]string{
		"id":       task.ID,
		"name":     task.Name,
		"source":   task.cfg.Source,
		"format":   "buffers",
		"strategy": task.cfg.Encoder.Strategy.String(),
		"division": strconv.Itoa(task.cfg.Division),
		"version":  BufferVersion,
		"bounds":   fmt.Sprintf(`%f,%f,%f,%f`, b.Left(), b.Bottom(), b.Right(), b.Top()),
		"center":   fmt.Sprintf(`%f,%f,%d`, c.X(), c.Y(), (task.Min+task.Max)/2),
		"minzoom":  strconv.Itoa(task.Min),
		"maxzoom":  strconv.Itoa(task.Max),
	}
}

//SetupTables 初始化输出库
func (task *Task) SetupTables() error {
	os.Remove(task.File)
	db, err := sql.Open("sqlite3", task.File)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)

	err = optimizeConnection(db)
	if err != nil {
		return err
	}

	_, err = db.Exec(`create table if not exists buffers (zoom_level integer, tile_column integer, tile_row integer,
		source text, kind text, generation integer, count integer,
		vertices blob, indices blob, guide blob, ids blob, weights blob, lengths blob, codetypes blob);`)
	if err != nil {
		return err
	}

	_, err = db.Exec("create table if not exists interactive (zoom_level integer, tile_column integer, tile_row integer, source text, guide blob, data blob);")
	if err != nil {
		return err
	}

	_, err = db.Exec("create table if not exists metadata (name text, value text);")
	if err != nil {
		return err
	}

	_, err = db.Exec("create unique index name on metadata (name);")
	if err != nil {
		return err
	}

	_, err = db.Exec("create unique index buffer_index on buffers (zoom_level, tile_column, tile_row, source, kind);")
	if err != nil {
		return err
	}

	_, err = db.Exec("create unique index interactive_index on interactive (zoom_level, tile_column, tile_row, source);")
	if err != nil {
		return err
	}

	for name, value := range task.MetaItems() {
		_, err := db.Exec("insert into metadata (name, value) values (?, ?)", name, value)
		if err != nil {
			return err
		}
	}

	task.db = db
	return nil
}

//job 生成瓦片任务, 缺失的瓦片借用祖先数据
func (task *Task) job(t maptile.Tile) (feature.Job, bool, error) {
	job := feature.Job{
		Coord:    feature.NewCoord(feature.FaceFlat, uint32(t.Z), t.X, t.Y),
		Source:   task.cfg.Source,
		Division: task.cfg.Division,
	}
	ok, err := task.source.Has(t)
	if err != nil || ok {
		return job, ok, err
	}
	a, ok, err := task.source.Ancestor(job.Coord, task.cfg.Ancestors)
	if err != nil || !ok {
		return job, false, err
	}
	job.Parent = &feature.AncestorRef{Zoom: a.Zoom(), LayerIndexes: task.indexes}
	atomic.AddInt64(&task.ancestors, 1)
	return job, true, nil
}

//submitZoom 提交一个级别的全部瓦片
func (task *Task) submitZoom(ctx context.Context, c *pool.Coordinator, z int) error {
	tiles, err := coverTiles(task.Area, task.cfg.Bound, maptile.Zoom(z))
	if err != nil {
		return err
	}
	bar := pb.New64(int64(len(tiles))).Prefix(fmt.Sprintf("Zoom %d : ", z)).Postfix("\n")
	bar.Start()
	for t := range tiles {
		select {
		case <-ctx.Done():
			log.Infof("task %s got canceled.", task.ID)
			return ctx.Err()
		default:
		}
		bar.Increment()
		job, ok, err := task.job(t)
		if err != nil {
			return fmt.Errorf("lookup %v: %w", t, err)
		}
		if !ok {
			atomic.AddInt64(&task.missing, 1)
			task.Bar.Increment()
			continue
		}
		if _, _, err := c.Submit(job); err != nil {
			return err
		}
		atomic.AddInt64(&task.submitted, 1)
	}
	bar.FinishPrint(fmt.Sprintf("task %s zoom %d submitted ~", task.ID, z))
	return nil
}

//savePipe 保存结果
func (task *Task) savePipe(msgs <-chan pool.Message) {
	for msg := range msgs {
		task.Bar.Increment()
		if msg.Status == pool.Failed {
			atomic.AddInt64(&task.failed, 1)
			log.Errorf("bake %s tile error ~ %s", msg.Coord, msg.Err)
			continue
		}
		n, err := saveMessage(task.db, msg)
		if err != nil {
			log.Errorf("save %s tile to buffers db error ~ %s", msg.Coord, err)
			continue
		}
		atomic.AddInt64(&task.saved, int64(n))
	}
}

//Run 开启烘焙任务
func (task *Task) Run(ctx context.Context) error {
	src, err := OpenSource(task.cfg.Input)
	if err != nil {
		return err
	}
	defer src.Close()
	task.source = src

	if err := task.SetupTables(); err != nil {
		return fmt.Errorf("setup %s: %w", task.File, err)
	}
	defer task.db.Close()

	c, err := pool.New(pool.Options{
		Units:     task.cfg.Units,
		QueueSize: task.cfg.Queue,
		Layers:    task.defs,
		Loader:    src.Load,
		Clipper:   reproject.Clipper{Buffer: task.cfg.Buffer},
		Encoder:   task.cfg.Encoder,
	})
	if err != nil {
		return err
	}
	log.Infof("task %s: %d tiles, %d units, coordinator %s", task.ID, task.Total, c.Units(), c.ID)

	task.Bar = pb.New64(task.Total).Prefix("Task : ")
	task.Bar.Start()

	pipe := make(chan pool.Message, task.cfg.SavePipe)
	var g errgroup.Group
	g.Go(func() error {
		defer c.Close()
		for z := task.Min; z <= task.Max; z++ {
			if err := task.submitZoom(ctx, c, z); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		defer close(pipe)
		for msg := range c.Deliveries() {
			pipe <- msg
		}
		return nil
	})
	g.Go(func() error {
		task.savePipe(pipe)
		return nil
	})
	err = g.Wait()

	stats := c.Stats()
	task.Bar.FinishPrint(fmt.Sprintf("task %s finished ~", task.ID))
	log.Infof("submitted %d (ancestors %d), missing %d, completed %d, failed %d, discarded %d, saved %d buffer sets",
		task.submitted, task.ancestors, task.missing, stats.Completed, stats.Failed, stats.Discarded, task.saved)
	if err != nil {
		return err
	}
	return optimizeDatabase(task.db)
}
