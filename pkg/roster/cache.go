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

package roster

import (
	"context"
	"fmt"

	"github.com/vireo-im/vireo/pkg/cache"
	"github.com/vireo-im/vireo/pkg/model"
	rostermodel "github.com/vireo-im/vireo/pkg/model/roster"
)

const (
	rosterItemsKey   = "items"
	rosterVersionKey = "ver"
)

func rosterItemsNS(username string) string {
	return fmt.Sprintf("ros:items:%s", username)
}

// rosterCache replicates materialized rosters across cluster nodes.
// Publishing is both the propagation mechanism and the self-healing path
// for stale in-process references; eviction forces a rebuild on next load.
type rosterCache struct {
	store cache.Cache
}

func (c *rosterCache) publish(ctx context.Context, username string, items []*rostermodel.Item, ver int) error {
	ns := rosterItemsNS(username)
	if err := c.putVal(ctx, ns, rosterItemsKey, &rostermodel.Items{Items: items}); err != nil {
		return err
	}
	return c.putVal(ctx, ns, rosterVersionKey, &rostermodel.Version{Version: ver})
}

func (c *rosterCache) fetch(ctx context.Context, username string) ([]*rostermodel.Item, int, bool, error) {
	ns := rosterItemsNS(username)

	var items rostermodel.Items
	ok, err := c.fetchVal(ctx, ns, rosterItemsKey, &items)
	if err != nil || !ok {
		return nil, 0, false, err
	}
	var ver rostermodel.Version
	if _, err := c.fetchVal(ctx, ns, rosterVersionKey, &ver); err != nil {
		return nil, 0, false, err
	}
	return items.Items, ver.Version, true, nil
}

func (c *rosterCache) evict(ctx context.Context, username string) error {
	return c.store.DelNS(ctx, rosterItemsNS(username))
}

func (c *rosterCache) putVal(ctx context.Context, ns, key string, v model.Codec) error {
	b, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	return c.store.Put(ctx, ns, key, b)
}

func (c *rosterCache) fetchVal(ctx context.Context, ns, key string, v model.Codec) (bool, error) {
	b, err := c.store.Get(ctx, ns, key)
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	if err := v.UnmarshalBinary(b); err != nil {
		return false, err
	}
	return true, nil
}
