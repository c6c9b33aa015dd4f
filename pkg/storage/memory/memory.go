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

package memoryrepository

import (
	"context"
	"sync"

	groupmodel "github.com/vireo-im/vireo/pkg/model/group"
	rostermodel "github.com/vireo-im/vireo/pkg/model/roster"
	usermodel "github.com/vireo-im/vireo/pkg/model/user"
)

// Repository is an in-memory Repository implementation, suitable for
// single node deployments and tests.
type Repository struct {
	mu      sync.RWMutex
	nextID  int64
	items   map[string]map[string]*rostermodel.Item
	vers    map[string]int
	groups  map[string]*groupmodel.Group
	users   map[string]*usermodel.User
}

// New returns a new initialized memory Repository instance.
func New() *Repository {
	return &Repository{
		items:  make(map[string]map[string]*rostermodel.Item),
		vers:   make(map[string]int),
		groups: make(map[string]*groupmodel.Group),
		users:  make(map[string]*usermodel.User),
	}
}

// TouchRosterVersion satisfies repository.Roster interface.
func (r *Repository) TouchRosterVersion(_ context.Context, username string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vers[username]++
	return r.vers[username], nil
}

// FetchRosterVersion satisfies repository.Roster interface.
func (r *Repository) FetchRosterVersion(_ context.Context, username string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.vers[username], nil
}

// UpsertRosterItem satisfies repository.Roster interface.
func (r *Repository) UpsertRosterItem(_ context.Context, ri *rostermodel.Item) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.items[ri.Username]
	if items == nil {
		items = make(map[string]*rostermodel.Item)
		r.items[ri.Username] = items
	}
	cp := *ri
	if prev := items[ri.JID]; prev != nil && prev.ID != 0 {
		cp.ID = prev.ID
	} else {
		r.nextID++
		cp.ID = r.nextID
	}
	items[ri.JID] = &cp
	return cp.ID, nil
}

// DeleteRosterItem satisfies repository.Roster interface.
func (r *Repository) DeleteRosterItem(_ context.Context, username, jid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items[username], jid)
	return nil
}

// DeleteRosterItems satisfies repository.Roster interface.
func (r *Repository) DeleteRosterItems(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, username)
	delete(r.vers, username)
	return nil
}

// FetchRosterItems satisfies repository.Roster interface.
func (r *Repository) FetchRosterItems(_ context.Context, username string) ([]*rostermodel.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ris []*rostermodel.Item
	for _, ri := range r.items[username] {
		cp := *ri
		ris = append(ris, &cp)
	}
	return ris, nil
}

// FetchRosterItem satisfies repository.Roster interface.
func (r *Repository) FetchRosterItem(_ context.Context, username, jid string) (*rostermodel.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ri := r.items[username][jid]
	if ri == nil {
		return nil, nil
	}
	cp := *ri
	return &cp, nil
}

// FetchRosterUsernames satisfies repository.Roster interface.
func (r *Repository) FetchRosterUsernames(_ context.Context, jid string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var usernames []string
	for username, items := range r.items {
		if _, ok := items[jid]; ok {
			usernames = append(usernames, username)
		}
	}
	return usernames, nil
}

// FetchGroup satisfies repository.Group interface.
func (r *Repository) FetchGroup(_ context.Context, name string) (*groupmodel.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g := r.groups[name]
	if g == nil {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

// FetchGroups satisfies repository.Group interface.
func (r *Repository) FetchGroups(_ context.Context) ([]*groupmodel.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var gs []*groupmodel.Group
	for _, g := range r.groups {
		cp := *g
		gs = append(gs, &cp)
	}
	return gs, nil
}

// UpsertGroup stores a group snapshot into the directory.
func (r *Repository) UpsertGroup(_ context.Context, g *groupmodel.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *g
	r.groups[g.Name] = &cp
	return nil
}

// DeleteGroup removes a group snapshot from the directory.
func (r *Repository) DeleteGroup(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.groups, name)
	return nil
}

// FetchUser satisfies repository.User interface.
func (r *Repository) FetchUser(_ context.Context, username string) (*usermodel.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	usr := r.users[username]
	if usr == nil {
		return nil, nil
	}
	cp := *usr
	return &cp, nil
}

// UserExists satisfies repository.User interface.
func (r *Repository) UserExists(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[username]
	return ok, nil
}

// FetchUsernames satisfies repository.User interface.
func (r *Repository) FetchUsernames(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var usernames []string
	for username := range r.users {
		usernames = append(usernames, username)
	}
	return usernames, nil
}

// UpsertUser stores an account snapshot into the directory.
func (r *Repository) UpsertUser(_ context.Context, usr *usermodel.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *usr
	r.users[usr.Username] = &cp
	return nil
}

// DeleteUser removes an account snapshot from the directory.
func (r *Repository) DeleteUser(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.users, username)
	return nil
}

// Start satisfies repository.Repository interface.
func (r *Repository) Start(_ context.Context) error { return nil }

// Stop satisfies repository.Repository interface.
func (r *Repository) Stop(_ context.Context) error { return nil }
