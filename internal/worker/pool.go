package worker

import (
	"context"
	"sort"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type indexedJob struct {
	index int
	job   Job
}

// Pool manages a pool of workers that execute jobs concurrently. Results are
// collected internally, so Submit never waits on a reader.
type Pool struct {
	workers    int
	jobQueue   chan indexedJob
	collector  *ResultCollector
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	mu         sync.Mutex
	next       int
	closed     bool
}

// NewPool creates a new worker pool with the specified number of workers.
// Cancelling ctx stops the pool.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan indexedJob, workers*2),
		collector:  NewResultCollector(),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case ij, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.collector.add(ij.index, ij.job.Execute(p.ctx))
		}
	}
}

// Submit submits a job to the pool. It blocks while the queue is full and
// drops the job once the pool is stopped or waited on.
func (p *Pool) Submit(job Job) {
	// The lock is held across the send so Wait cannot close the queue under us.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	select {
	case <-p.ctx.Done():
	case p.jobQueue <- indexedJob{index: p.next, job: job}:
		p.next++
	}
}

// Wait waits for all submitted jobs and returns their results in submission
// order. Jobs dropped by a stopped pool have no result.
func (p *Pool) Wait() []Result {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobQueue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.cancelFunc()
	return p.collector.Results()
}

// Run starts the pool, executes jobs and waits for them
func (p *Pool) Run(jobs []Job) []Result {
	p.Start()
	for _, job := range jobs {
		p.Submit(job)
	}
	return p.Wait()
}

// ResultCollector gathers results from concurrent workers
type ResultCollector struct {
	results []indexedResult
	mu      sync.Mutex
}

type indexedResult struct {
	index  int
	result Result
}

// NewResultCollector creates a new result collector
func NewResultCollector() *ResultCollector {
	return &ResultCollector{}
}

func (c *ResultCollector) add(index int, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, indexedResult{index: index, result: result})
}

// Results returns all collected results ordered by index
func (c *ResultCollector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	sorted := make([]indexedResult, len(c.results))
	copy(sorted, c.results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].index < sorted[j].index })

	out := make([]Result, len(sorted))
	for i, r := range sorted {
		out[i] = r.result
	}
	return out
}
