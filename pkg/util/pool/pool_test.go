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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_Submit(t *testing.T) {
	// given
	p := NewPool(Config{Max: 4})

	// when
	var cnt int32
	for i := 0; i < 64; i++ {
		err := p.Submit(func() {
			atomic.AddInt32(&cnt, 1)
		})
		require.NoError(t, err)
	}
	p.Drain()

	// then
	require.Equal(t, int32(64), atomic.LoadInt32(&cnt))
}

func TestPool_MaxWorkers(t *testing.T) {
	// given
	p := NewPool(Config{Max: 2})

	var running int32
	var maxRunning int32
	var mu sync.Mutex

	// when
	for i := 0; i < 16; i++ {
		_ = p.Submit(func() {
			cur := atomic.AddInt32(&running, 1)

			mu.Lock()
			if cur > maxRunning {
				maxRunning = cur
			}
			mu.Unlock()

			time.Sleep(time.Millisecond * 5)
			atomic.AddInt32(&running, -1)
		})
	}
	p.Drain()

	// then
	mu.Lock()
	defer mu.Unlock()
	require.LessOrEqual(t, maxRunning, int32(2))
}

func TestPool_OrderedHandOff(t *testing.T) {
	// given
	p := NewPool(Config{Max: 1})

	// when
	var seq []int
	var mu sync.Mutex
	for i := 0; i < 8; i++ {
		i := i
		_ = p.Submit(func() {
			mu.Lock()
			seq = append(seq, i)
			mu.Unlock()
		})
	}
	p.Drain()

	// then
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, seq)
}

func TestPool_SaturatedSubmitSurvivesWorkerTimeout(t *testing.T) {
	// given: a single worker pool whose idle worker expires almost
	// immediately, so submissions keep racing against worker teardown
	p := NewPool(Config{Max: 1, KeepAlive: time.Millisecond})

	// when / then: every task must eventually run even when the size
	// check and the hand-off straddle a worker exit
	for i := 0; i < 100; i++ {
		done := make(chan struct{})
		require.NoError(t, p.Submit(func() { close(done) }))

		select {
		case <-done:
		case <-time.After(time.Second * 5):
			require.FailNow(t, "submitted task was never picked up")
		}
		time.Sleep(time.Millisecond) // let the worker idle out
	}
	p.Stop()
}

func TestPool_Stop(t *testing.T) {
	// given
	p := NewPool(Config{Max: 2})

	// when
	p.Stop()
	err := p.Submit(func() {})

	// then
	require.ErrorIs(t, err, ErrStopped)
}
