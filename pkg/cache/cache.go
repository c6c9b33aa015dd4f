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

package cache

import (
	"context"
	"fmt"

	kitlog "github.com/go-kit/log"
	memorycache "github.com/vireo-im/vireo/pkg/cache/memory"
	rediscache "github.com/vireo-im/vireo/pkg/cache/redis"
)

// Cache defines cache store interface.
type Cache interface {
	// Type identifies underlying cache store type.
	Type() string

	// Get retrieves k value from the cache store.
	// If not present nil will be returned.
	Get(ctx context.Context, ns, key string) ([]byte, error)

	// Put stores a value into the cache store.
	// A stored value is eventually visible to every cluster node.
	Put(ctx context.Context, ns, key string, val []byte) error

	// Del removes keys values from the cache store.
	Del(ctx context.Context, ns string, keys ...string) error

	// DelNS removes all keys contained under a given namespace from the cache store.
	DelNS(ctx context.Context, ns string) error

	// HasKey tells whether k is present in the cache store.
	HasKey(ctx context.Context, ns, key string) (bool, error)

	// Start starts Cache component.
	Start(ctx context.Context) error

	// Stop stops Cache component.
	Stop(ctx context.Context) error
}

// Config contains cache store configuration.
type Config struct {
	Type  string            `fig:"type" default:"memory"`
	Redis rediscache.Config `fig:"redis"`
}

// New returns a new initialized Cache instance.
func New(cfg Config, logger kitlog.Logger) (Cache, error) {
	switch cfg.Type {
	case rediscache.Type:
		return rediscache.New(cfg.Redis, logger), nil

	case memorycache.Type:
		return memorycache.New(), nil

	default:
		return nil, fmt.Errorf("unrecognized cache store type: %s", cfg.Type)
	}
}
