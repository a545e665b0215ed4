// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package parallel splits per-row pixel work across a fixed set of
// goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Pool is a fixed set of worker goroutines with one queue each. An idle
// worker steals from the other queues before blocking on its own.
//
// Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup

	// mu is held shared while Bands hands work to the workers and
	// exclusively by Close, so workers never exit under a pending band.
	mu      sync.RWMutex
	running bool
}

// New starts a pool. If workers is 0 or negative, GOMAXPROCS is used.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	depth := max(workers*4, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), depth)
	}
	p.running = true

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			fn()
			continue
		default:
		}

		if fn := p.steal(id); fn != nil {
			fn()
			continue
		}
		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			fn()
		}
	}
}

func drain(q chan func()) {
	for {
		select {
		case fn := <-q:
			fn()
		default:
			return
		}
	}
}

func (p *Pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case fn := <-p.queues[i]:
			return fn
		default:
		}
	}
	return nil
}

// Bands splits [0, n) into contiguous ranges of at least minRows rows,
// at most one per worker, and calls fn for each range. It returns when
// every call has finished. A closed pool runs fn on the caller's
// goroutine.
func (p *Pool) Bands(n, minRows int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	count := min(p.workers, max(n/max(minRows, 1), 1))
	if count == 1 {
		fn(0, n)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		fn(0, n)
		return
	}

	var wg sync.WaitGroup
	wg.Add(count)
	for i := range count {
		lo, hi := i*n/count, (i+1)*n/count
		p.queues[i] <- func() {
			defer wg.Done()
			fn(lo, hi)
		}
	}
	wg.Wait()
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.workers }

// Close stops the workers after the queued work has run. Calling Close
// again is a no-op.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
}
