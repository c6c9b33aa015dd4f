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

package locker

import (
	"context"
	"sync"
)

// NewMemoryLocker returns a process local Locker implementation, suitable
// for single node deployments and tests.
func NewMemoryLocker() Locker {
	return &memoryLocker{
		mus: make(map[string]*refMutex),
	}
}

type memoryLocker struct {
	mu  sync.Mutex
	mus map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

type memoryLock struct {
	l      *memoryLocker
	lockID string
	rm     *refMutex
}

func (l *memoryLocker) AcquireLock(_ context.Context, lockID string) (Lock, error) {
	l.mu.Lock()
	rm := l.mus[lockID]
	if rm == nil {
		rm = &refMutex{}
		l.mus[lockID] = rm
	}
	rm.refs++
	l.mu.Unlock()

	rm.mu.Lock()
	return &memoryLock{l: l, lockID: lockID, rm: rm}, nil
}

func (l *memoryLocker) Start(_ context.Context) error { return nil }
func (l *memoryLocker) Stop(_ context.Context) error  { return nil }

func (lk *memoryLock) Release(_ context.Context) error {
	lk.l.mu.Lock()
	lk.rm.refs--
	if lk.rm.refs == 0 {
		delete(lk.l.mus, lk.lockID)
	}
	lk.l.mu.Unlock()

	lk.rm.mu.Unlock()
	return nil
}
