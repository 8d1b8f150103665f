// Package pool owns a fixed set of processing units and relays their results
// to the render side, dropping results that were superseded in flight.
package pool

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"

	"tilepipe/batch"
	"tilepipe/feature"
	"tilepipe/process"
	"tilepipe/reproject"
	"tilepipe/style"
)

var (
	//ErrClosed 协调器已关闭
	ErrClosed = errors.New("pool: coordinator closed")
	//ErrNoData 数据源没有该瓦片
	ErrNoData = errors.New("pool: no tile data")
)

//Loader 加载任务对应的瓦片数据
type Loader func(job feature.Job) (process.Tile, error)

//Options 协调器参数
type Options struct {
	//Units 处理单元数, 默认 runtime.NumCPU()
	Units int
	//QueueSize 每个单元的任务队列和结果通道长度
	QueueSize int
	Layers    []style.Definition
	Loader    Loader
	Clipper   reproject.Clipper
	Encoder   batch.Encoder
}

//Stats 运行统计
type Stats struct {
	Submitted  int64
	Duplicates int64
	Superseded int64
	Completed  int64
	Failed     int64
	Discarded  int64
	InFlight   int
}

type work struct {
	job  feature.Job
	tile process.Tile
}

type result struct {
	unit int
	job  feature.Job
	res  *process.Result
}

type entry struct {
	job   feature.Job
	state State
	unit  int
}

type unit struct {
	index int
	inbox chan work
	load  int
	proc  *process.Processor
}

//Coordinator 任务协调器, 每个地图实例一个
type Coordinator struct {
	ID string

	loader     Loader
	units      []*unit
	results    chan result
	deliveries chan Message

	mu      sync.Mutex
	jobs    map[feature.JobKey]*entry
	gens    map[feature.JobKey]uint64
	nextID  uint64
	closed  bool
	stats   Stats
	sending sync.WaitGroup
	running sync.WaitGroup
	relayed chan struct{}
}

//New 创建协调器并启动处理单元
func New(opts Options) (*Coordinator, error) {
	if opts.Units < 1 {
		opts.Units = runtime.NumCPU()
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 64
	}
	id, err := shortid.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate coordinator id: %w", err)
	}
	c := &Coordinator{
		ID:         id,
		loader:     opts.Loader,
		units:      make([]*unit, opts.Units),
		results:    make(chan result, opts.QueueSize),
		deliveries: make(chan Message, opts.QueueSize),
		jobs:       make(map[feature.JobKey]*entry),
		gens:       make(map[feature.JobKey]uint64),
		relayed:    make(chan struct{}),
	}
	for i := range c.units {
		proc, err := process.NewProcessor(opts.Layers, process.Options{
			Unit:    i,
			Units:   opts.Units,
			Clipper: opts.Clipper,
			Encoder: opts.Encoder,
		})
		if err != nil {
			return nil, err
		}
		c.units[i] = &unit{index: i, inbox: make(chan work, opts.QueueSize), proc: proc}
	}
	for _, u := range c.units {
		c.running.Add(1)
		go c.run(u)
	}
	go c.relay()
	log.Debugf("coordinator %s started with %d units", c.ID, len(c.units))
	return c, nil
}

//Units 处理单元数
func (c *Coordinator) Units() int {
	return len(c.units)
}

//Deliveries 渲染端读取结果, 必须持续读取直到关闭
func (c *Coordinator) Deliveries() <-chan Message {
	return c.deliveries
}

//Submit 提交任务, 数据由 Loader 加载
//返回的 bool 为 false 表示已有同一瓦片同代或更新的任务在途, 本次被忽略
func (c *Coordinator) Submit(job feature.Job) (uint64, bool, error) {
	return c.submit(work{job: job})
}

//SubmitTile 提交任务并附带已解码的瓦片
func (c *Coordinator) SubmitTile(job feature.Job, tile process.Tile) (uint64, bool, error) {
	return c.submit(work{job: job, tile: tile})
}

func (c *Coordinator) submit(w work) (uint64, bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, false, ErrClosed
	}
	key := w.job.Key()
	if e, ok := c.jobs[key]; ok && e.state.Active() {
		// generation 0 means "whatever is current", an in-flight job already is
		if w.job.Generation == 0 || e.job.Generation >= w.job.Generation {
			c.stats.Duplicates++
			c.mu.Unlock()
			return e.job.ID, false, nil
		}
		e.state = Superseded
		c.stats.Superseded++
		log.Debugf("job %d %s %s superseded by generation %d", e.job.ID, key.Coord, key.Source, w.job.Generation)
	}
	if w.job.Generation == 0 {
		w.job.Generation = c.gens[key] + 1
	}
	if w.job.Generation > c.gens[key] {
		c.gens[key] = w.job.Generation
	}
	c.nextID++
	w.job.ID = c.nextID
	if w.job.Time.IsZero() {
		w.job.Time = time.Now()
	}
	e := &entry{job: w.job, state: Queued}
	c.jobs[key] = e

	u := c.leastLoaded()
	u.load++
	e.unit = u.index
	e.state = Dispatched
	c.stats.Submitted++
	c.sending.Add(1)
	c.mu.Unlock()

	u.inbox <- w
	c.sending.Done()
	return w.job.ID, true, nil
}

// leastLoaded must be called with mu held
func (c *Coordinator) leastLoaded() *unit {
	best := c.units[0]
	for _, u := range c.units[1:] {
		if u.load < best.load {
			best = u
		}
	}
	return best
}

// current reports whether the job is still the tracked generation for its key
func (c *Coordinator) current(job feature.Job) (*entry, bool) {
	e, ok := c.jobs[job.Key()]
	if !ok || e.job.ID != job.ID || e.state == Superseded {
		return e, false
	}
	return e, true
}

func (c *Coordinator) run(u *unit) {
	defer c.running.Done()
	for w := range u.inbox {
		c.mu.Lock()
		e, ok := c.current(w.job)
		if ok {
			e.state = Processing
		}
		c.mu.Unlock()
		if !ok {
			// superseded before it started, nothing to deliver
			c.results <- result{unit: u.index, job: w.job}
			continue
		}

		res := c.execute(u, w)
		c.results <- result{unit: u.index, job: w.job, res: res}
	}
}

func (c *Coordinator) execute(u *unit, w work) *process.Result {
	tile := w.tile
	if tile == nil && c.loader != nil {
		var err error
		tile, err = c.loader(w.job)
		if err != nil && !errors.Is(err, ErrNoData) {
			return &process.Result{Job: w.job, Err: fmt.Errorf("load %s %s: %w", w.job.Coord, w.job.Source, err)}
		}
	}
	return u.proc.Process(w.job, tile)
}

func (c *Coordinator) relay() {
	defer close(c.relayed)
	for r := range c.results {
		c.mu.Lock()
		c.units[r.unit].load--
		job := r.job
		e, ok := c.current(job)
		if !ok || r.res == nil {
			c.forget(e, job)
			c.stats.Discarded++
			c.mu.Unlock()
			log.Debugf("discard stale result of job %d %s %s generation %d", job.ID, job.Coord, job.Source, job.Generation)
			continue
		}
		msg := Message{
			MapID:       c.ID,
			JobID:       job.ID,
			TileID:      job.Coord.ID(),
			Coord:       job.Coord,
			Source:      job.Source,
			Generation:  job.Generation,
			Status:      Completed,
			Sets:        r.res.Sets,
			Interactive: r.res.Interactive,
			LayerCounts: r.res.LayerCounts,
		}
		if r.res.Err != nil {
			msg.Status = Failed
			msg.Err = r.res.Err
			c.stats.Failed++
			log.Errorf("job %d %s %s failed ~ %s", job.ID, job.Coord, job.Source, r.res.Err)
		} else {
			c.stats.Completed++
		}
		e.state = msg.Status
		delete(c.jobs, job.Key())
		c.mu.Unlock()

		c.deliveries <- msg
	}
}

// forget drops a superseded entry once its own result is back, must be called with mu held
func (c *Coordinator) forget(e *entry, job feature.Job) {
	if e != nil && e.job.ID == job.ID && e.state == Superseded {
		delete(c.jobs, job.Key())
	}
}

//Leave 瓦片离开视野, 在途任务全部作废, 返回作废数量
func (c *Coordinator) Leave(coord feature.Coord) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.jobs {
		if key.Coord == coord && e.state.Active() {
			e.state = Superseded
			n++
		}
	}
	c.stats.Superseded += int64(n)
	return n
}

//State 查询任务状态, 已交付的任务不再跟踪
func (c *Coordinator) State(key feature.JobKey) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.jobs[key]
	if !ok {
		return 0, false
	}
	return e.state, true
}

//Stats 统计快照
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	for _, e := range c.jobs {
		if e.state.Active() {
			s.InFlight++
		}
	}
	return s
}

//Close 停止接收任务, 处理完队列中的任务后关闭 Deliveries
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	c.mu.Unlock()

	c.sending.Wait()
	for _, u := range c.units {
		close(u.inbox)
	}
	c.running.Wait()
	close(c.results)
	<-c.relayed
	close(c.deliveries)
	log.Debugf("coordinator %s closed", c.ID)
	return nil
}
