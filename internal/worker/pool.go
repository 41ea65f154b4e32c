// Package worker runs extraction jobs on a bounded, elastic pool so that
// slow work (OCR in particular) never executes on a request goroutine.
package worker

import (
	"errors"
	"sync"
	"time"
)

// Job is one unit of background work.
type Job struct {
	MaterialID int64
	Run        func()

	stop bool // shutdown sentinel delivered to a single worker
}

// ErrQueueFull is returned by Submit when the job queue is saturated.
var ErrQueueFull = errors.New("worker queue full")

const defaultWorkerIdle = 30 * time.Second

// Pool accepts jobs on a bounded queue and dispatches them to an elastic
// set of workers sized between min and max.
type Pool struct {
	channels *jobChannelPool
	jobQueue chan Job
}

// NewPool builds and starts a pool. Workers above minWorkers are retired
// after idleTimeout without work.
func NewPool(minWorkers, maxWorkers, queueSize int, idleTimeout time.Duration) *Pool {
	if minWorkers < 1 {
		minWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	channels := newJobChannelPool(minWorkers, maxWorkers, idleTimeout)

	p := &Pool{
		channels: channels,
		jobQueue: make(chan Job, queueSize),
	}

	// Warm up the minimum worker set.
	for i := 0; i < minWorkers; i++ {
		p.channels.spawnWorker()
	}

	go p.run()
	return p
}

// Submit enqueues a job without blocking; a saturated queue is reported as
// ErrQueueFull so the caller can shed load.
func (p *Pool) Submit(job Job) error {
	if job.Run == nil {
		return errors.New("job requires a Run func")
	}
	select {
	case p.jobQueue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) run() {
	for job := range p.jobQueue {
		ch := p.channels.acquire()
		debugLog("[worker] assign material %d job", job.MaterialID)
		ch <- job
	}
}

type workerMeta struct {
	ch        chan Job
	lastUsed  time.Time
	enqueued  bool // is in the idle queue
	discarded bool // is targeted as delete
}

type jobChannelPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	idle     []*workerMeta
	metadata map[chan Job]*workerMeta
	min      int
	max      int
	running  int
	expiry   time.Duration
}

func newJobChannelPool(minWorkers, maxWorkers int, idle time.Duration) *jobChannelPool {
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	p := &jobChannelPool{
		metadata: make(map[chan Job]*workerMeta),
		min:      minWorkers,
		max:      maxWorkers,
		expiry:   idle,
	}
	p.cond = sync.NewCond(&p.mu)
	go p.purgeStaleWorkers()
	return p
}

// spawnWorker adds a new idle worker if capacity allows.
func (p *jobChannelPool) spawnWorker() {
	p.mu.Lock()
	if p.running >= p.max {
		p.mu.Unlock()
		return
	}
	ch := make(chan Job)
	meta := &workerMeta{ch: ch, lastUsed: time.Now(), enqueued: true}
	p.metadata[ch] = meta
	p.idle = append(p.idle, meta)
	p.running++
	p.mu.Unlock()
	go p.workerLoop(ch)
}

func (p *jobChannelPool) workerLoop(ch chan Job) {
	for job := range ch {
		if job.stop {
			return
		}
		job.Run()
		p.release(ch)
	}
}

// acquire returns an idle worker channel, spawning one when under max and
// waiting otherwise.
func (p *jobChannelPool) acquire() chan Job {
	for {
		p.mu.Lock()
		if meta := p.popIdleLocked(); meta != nil {
			p.mu.Unlock()
			return meta.ch
		}
		if p.running < p.max {
			ch := make(chan Job)
			p.metadata[ch] = &workerMeta{ch: ch, lastUsed: time.Now()}
			p.running++
			p.mu.Unlock()
			go p.workerLoop(ch)
			return ch
		}
		p.cond.Wait()
		p.mu.Unlock()
	}
}

// release returns an idle worker to the pool.
func (p *jobChannelPool) release(ch chan Job) {
	p.mu.Lock()
	meta, ok := p.metadata[ch]
	if !ok || meta.discarded || meta.enqueued {
		p.mu.Unlock()
		return
	}
	meta.enqueued = true
	meta.lastUsed = time.Now()
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
	p.cond.Signal()
}

func (p *jobChannelPool) popIdleLocked() *workerMeta {
	for len(p.idle) > 0 {
		meta := p.idle[0]
		p.idle = p.idle[1:]
		if meta.discarded {
			continue
		}
		meta.enqueued = false
		return meta
	}
	return nil
}

// purgeStaleWorkers retires idle workers above the minimum on every expiry tick.
func (p *jobChannelPool) purgeStaleWorkers() {
	ticker := time.NewTicker(p.expiry)
	defer ticker.Stop()
	for {
		<-ticker.C
		p.shutdownExpired()
	}
}

func (p *jobChannelPool) shutdownExpired() {
	var stale []*workerMeta
	now := time.Now()

	p.mu.Lock()
	if len(p.idle) == 0 || p.running <= p.min {
		p.mu.Unlock()
		return
	}
	remaining := p.idle[:0]
	for _, meta := range p.idle {
		if meta.discarded {
			continue
		}
		if now.Sub(meta.lastUsed) >= p.expiry && p.running > p.min {
			meta.discarded = true
			meta.enqueued = false
			delete(p.metadata, meta.ch)
			p.running--
			stale = append(stale, meta)
			continue
		}
		remaining = append(remaining, meta)
	}
	p.idle = remaining
	p.mu.Unlock()
	p.cond.Broadcast()

	for _, meta := range stale {
		meta.ch <- Job{stop: true}
	}
}
