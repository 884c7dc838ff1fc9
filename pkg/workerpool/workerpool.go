// Package workerpool implements a bounded goroutine pool so that
// background work (online model retraining) never blocks an ingress RPC
// handler while it drains at its own pace.
package workerpool

import (
	"sync"

	"github.com/cuemby/fabric/pkg/log"
)

// Job is a unit of work submitted to a Pool.
type Job func()

// Pool runs submitted Jobs across a fixed number of worker goroutines.
type Pool struct {
	jobs    chan Job
	wg      sync.WaitGroup
	stopped chan struct{}
}

// New starts a Pool with the given worker count and submission queue
// depth.
func New(workers, queueDepth int) *Pool {
	p := &Pool{
		jobs:    make(chan Job, queueDepth),
		stopped: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.safeRun(job)
		case <-p.stopped:
			for {
				select {
				case job := <-p.jobs:
					p.safeRun(job)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) safeRun(job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.WithComponent("workerpool").Error().Interface("panic", r).Msg("job panicked")
		}
	}()
	job()
}

// Submit enqueues job for execution. Submit blocks if the queue is full;
// callers that must never block should check a bounded queue's Offer
// result themselves before calling Submit.
func (p *Pool) Submit(job Job) {
	select {
	case p.jobs <- job:
	case <-p.stopped:
	}
}

// TrySubmit enqueues job without blocking, returning false if the queue
// is full or the pool is stopped.
func (p *Pool) TrySubmit(job Job) bool {
	select {
	case <-p.stopped:
		return false
	default:
	}
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop signals every worker to exit and waits for in-flight jobs, and
// jobs already queued at that moment, to finish.
func (p *Pool) Stop() {
	close(p.stopped)
	p.wg.Wait()
}
