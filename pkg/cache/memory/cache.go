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

package memorycache

import (
	"context"
	"sync"
)

// Type is memory cache store type identifier.
const Type = "memory"

// Cache is a process local cache store implementation, suitable for single
// node deployments and tests.
type Cache struct {
	mu  sync.RWMutex
	nss map[string]map[string][]byte
}

// New returns a new initialized memory Cache instance.
func New() *Cache {
	return &Cache{
		nss: make(map[string]map[string][]byte),
	}
}

// Type satisfies Cache interface.
func (c *Cache) Type() string { return Type }

// Get satisfies Cache interface.
func (c *Cache) Get(_ context.Context, ns, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	val, ok := c.nss[ns][key]
	if !ok {
		return nil, nil
	}
	b := make([]byte, len(val))
	copy(b, val)
	return b, nil
}

// Put satisfies Cache interface.
func (c *Cache) Put(_ context.Context, ns, key string, val []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.nss[ns]
	if keys == nil {
		keys = make(map[string][]byte)
		c.nss[ns] = keys
	}
	b := make([]byte, len(val))
	copy(b, val)
	keys[key] = b
	return nil
}

// Del satisfies Cache interface.
func (c *Cache) Del(_ context.Context, ns string, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.nss[ns], k)
	}
	return nil
}

// DelNS satisfies Cache interface.
func (c *Cache) DelNS(_ context.Context, ns string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.nss, ns)
	return nil
}

// HasKey satisfies Cache interface.
func (c *Cache) HasKey(_ context.Context, ns, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.nss[ns][key]
	return ok, nil
}

// Start satisfies Cache interface.
func (c *Cache) Start(_ context.Context) error { return nil }

// Stop satisfies Cache interface.
func (c *Cache) Stop(_ context.Context) error { return nil }
