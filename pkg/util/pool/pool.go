// Copyright 2024 The vireo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pool

import (
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned when submitting a task to a stopped pool.
var ErrStopped = errors.New("pool: stopped")

const defaultKeepAlive = time.Minute

// handOffRetryInterval bounds how long a saturated Submit stays parked on
// the task channel before re-checking whether every idle worker timed out
// underneath it.
const handOffRetryInterval = time.Millisecond * 100

// Config contains worker pool configuration parameters.
type Config struct {
	// Core is the number of workers kept alive even when idle.
	Core int `fig:"core" default:"0"`

	// Max is the maximum number of concurrent workers.
	// Zero means no limit.
	Max int `fig:"max" default:"0"`

	// KeepAlive is the time an idle non-core worker waits for
	// a task before exiting.
	KeepAlive time.Duration `fig:"keep_alive" default:"1m"`
}

// Pool represents a worker pool with direct task hand-off.
// Submit prefers an idle worker, spawns a new one while below
// the max worker count, and otherwise blocks until a worker
// becomes available.
type Pool struct {
	cfg Config

	mu      sync.Mutex
	workers int
	stopped bool

	tasks chan func()
	wg    sync.WaitGroup
}

// NewPool returns an initialized worker pool.
func NewPool(cfg Config) *Pool {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	return &Pool{
		cfg:   cfg,
		tasks: make(chan func()),
	}
}

// Submit dispatches task to a pool worker, blocking when all
// workers are busy and the pool is at its max size.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.wg.Add(1)
	if p.trySubmit(task) {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	// the pool was at max size with every worker busy; park on the
	// channel, re-checking periodically since an idle worker may time
	// out and exit between the size check above and the hand-off
	tm := time.NewTimer(handOffRetryInterval)
	defer tm.Stop()

	for {
		select {
		case p.tasks <- task:
			return nil

		case <-tm.C:
			p.mu.Lock()
			if p.stopped {
				p.mu.Unlock()
				p.wg.Done()
				return ErrStopped
			}
			if p.trySubmit(task) {
				p.mu.Unlock()
				return nil
			}
			p.mu.Unlock()
			tm.Reset(handOffRetryInterval)
		}
	}
}

// trySubmit hands task to an idle worker or spawns a new one while below
// the max worker count. p.mu must be held.
func (p *Pool) trySubmit(task func()) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		break
	}
	if p.cfg.Max <= 0 || p.workers < p.cfg.Max {
		p.workers++
		core := p.workers <= p.cfg.Core
		go p.runWorker(task, core)
		return true
	}
	return false
}

// Drain waits until all submitted tasks have completed.
func (p *Pool) Drain() {
	p.wg.Wait()
}

// Stop rejects further submissions, waits for in-flight tasks to
// complete and releases all remaining workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	// once Wait returns no Submit holds a pending hand-off, so closing
	// the channel only ever races with worker receives
	p.wg.Wait()
	close(p.tasks)
}

func (p *Pool) runWorker(task func(), core bool) {
	p.runTask(task)

	if core {
		for t := range p.tasks {
			p.runTask(t)
		}
		return
	}
	tm := time.NewTimer(p.cfg.KeepAlive)
	defer tm.Stop()

	for {
		select {
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			p.runTask(t)

			if !tm.Stop() {
				<-tm.C
			}
			tm.Reset(p.cfg.KeepAlive)

		case <-tm.C:
			p.mu.Lock()
			p.workers--
			p.mu.Unlock()
			return
		}
	}
}

func (p *Pool) runTask(task func()) {
	defer p.wg.Done()
	task()
}
