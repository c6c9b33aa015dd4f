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

import "context"

// Lock defines a previously acquired lock type.
type Lock interface {
	// Release releases the lock.
	Release(ctx context.Context) error
}

// Locker defines a distributed locker interface.
// The first caller to acquire a given lock id holds it exclusively across
// every cluster node until released.
type Locker interface {
	// AcquireLock acquires and returns a lock associated to a given id.
	AcquireLock(ctx context.Context, lockID string) (Lock, error)

	// Start starts Locker component.
	Start(ctx context.Context) error

	// Stop stops Locker component.
	Stop(ctx context.Context) error
}
