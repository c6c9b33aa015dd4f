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
	"strings"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"

	"github.com/vireo-im/vireo/pkg/cache"
	"github.com/vireo-im/vireo/pkg/cluster/locker"
	"github.com/vireo-im/vireo/pkg/hook"
	groupmodel "github.com/vireo-im/vireo/pkg/model/group"
	rostermodel "github.com/vireo-im/vireo/pkg/model/roster"
	"github.com/vireo-im/vireo/pkg/router"
	"github.com/vireo-im/vireo/pkg/storage/repository"
	"github.com/vireo-im/vireo/pkg/util/pool"
	xmpputil "github.com/vireo-im/vireo/pkg/util/xmpp"
)

// Manager orchestrates the shared group visibility engine: it owns the per
// account roster cache, subscribes to group and account lifecycle hooks,
// computes affected user sets and schedules asynchronous recomputation when
// a group wide policy edit would otherwise block the event source.
type Manager struct {
	cfg    Config
	rep    repository.Repository
	cache  *rosterCache
	locker locker.Locker
	disp   *Dispatcher
	pool   *pool.Pool
	router router.Router
	hooks  *hook.Hooks
	logger kitlog.Logger

	sync *cacheSyncListener

	mu      sync.RWMutex
	rosters map[string]*Roster
}

// NewManager returns a new initialized roster manager.
func NewManager(
	cfg Config,
	rep repository.Repository,
	store cache.Cache,
	lkr locker.Locker,
	rt router.Router,
	hooks *hook.Hooks,
	logger kitlog.Logger,
) *Manager {
	m := &Manager{
		cfg:     cfg,
		rep:     rep,
		cache:   &rosterCache{store: store},
		locker:  lkr,
		disp:    NewDispatcher(logger),
		pool:    pool.NewPool(cfg.Pool),
		router:  rt,
		hooks:   hooks,
		logger:  logger,
		rosters: make(map[string]*Roster),
	}
	m.sync = &cacheSyncListener{m: m}
	return m
}

// Dispatcher returns the manager roster event dispatcher, on which external
// listeners register.
func (m *Manager) Dispatcher() *Dispatcher {
	return m.disp
}

// Start registers lifecycle hook handlers and the internal cache refresh
// listener.
func (m *Manager) Start(_ context.Context) error {
	m.disp.AddListener(m.sync)

	m.hooks.AddHook(hook.GroupMemberAdded, m.onGroupUserAdded, hook.DefaultPriority)
	m.hooks.AddHook(hook.GroupAdminAdded, m.onGroupUserAdded, hook.DefaultPriority)
	m.hooks.AddHook(hook.GroupMemberRemoved, m.onGroupUserRemoved, hook.DefaultPriority)
	m.hooks.AddHook(hook.GroupAdminRemoved, m.onGroupUserRemoved, hook.DefaultPriority)
	m.hooks.AddHook(hook.GroupPropertyChanged, m.onGroupPropertyChanged, hook.DefaultPriority)
	m.hooks.AddHook(hook.GroupDeleting, m.onGroupDeleting, hook.DefaultPriority)
	m.hooks.AddHook(hook.UserCreated, m.onUserCreated, hook.DefaultPriority)
	m.hooks.AddHook(hook.UserDeleting, m.onUserDeleting, hook.DefaultPriority)

	level.Info(m.logger).Log("msg", "started roster manager")
	return nil
}

// Stop unregisters hook handlers and drains all in-flight fan-out work.
func (m *Manager) Stop(_ context.Context) error {
	m.hooks.RemoveHook(hook.GroupMemberAdded, m.onGroupUserAdded)
	m.hooks.RemoveHook(hook.GroupAdminAdded, m.onGroupUserAdded)
	m.hooks.RemoveHook(hook.GroupMemberRemoved, m.onGroupUserRemoved)
	m.hooks.RemoveHook(hook.GroupAdminRemoved, m.onGroupUserRemoved)
	m.hooks.RemoveHook(hook.GroupPropertyChanged, m.onGroupPropertyChanged)
	m.hooks.RemoveHook(hook.GroupDeleting, m.onGroupDeleting)
	m.hooks.RemoveHook(hook.UserCreated, m.onUserCreated)
	m.hooks.RemoveHook(hook.UserDeleting, m.onUserDeleting)

	m.pool.Stop()
	m.disp.RemoveListener(m.sync)

	level.Info(m.logger).Log("msg", "stopped roster manager")
	return nil
}

// GetRoster returns the roster associated to an account, materializing it on
// first access. Concurrent calls on a cold account block on a per account
// lock so the load happens exactly once.
func (m *Manager) GetRoster(ctx context.Context, username string) (*Roster, error) {
	if ros := m.cachedRoster(username); ros != nil {
		return ros, nil
	}
	exists, err := m.rep.UserExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, username)
	}
	lock, err := m.locker.AcquireLock(ctx, rosterLockID(username))
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	// lock winner may have already materialized it
	if ros := m.cachedRoster(username); ros != nil {
		return ros, nil
	}
	items, ver, ok, err := m.cache.fetch(ctx, username)
	if err != nil {
		return nil, err
	}
	if !ok {
		items, err = m.loadRoster(ctx, username)
		if err != nil {
			return nil, err
		}
		if m.cfg.Versioning {
			ver, err = m.rep.FetchRosterVersion(ctx, username)
			if err != nil {
				return nil, err
			}
		}
	}
	ros := newRoster(username, items, ver, m.rep, m.disp, m.cfg.Versioning, m.logger)

	m.mu.Lock()
	m.rosters[username] = ros
	m.mu.Unlock()

	m.disp.RosterLoaded(ctx, ros)

	level.Info(m.logger).Log("msg", "materialized roster", "username", username, "items", ros.Len())
	return ros, nil
}

// DeleteRoster evicts an account roster from the in-process map and the
// distributed cache. The roster is reloadable: eviction is a capacity or
// consistency decision, not a data deletion.
func (m *Manager) DeleteRoster(ctx context.Context, username string) error {
	m.mu.Lock()
	delete(m.rosters, username)
	m.mu.Unlock()

	return m.cache.evict(ctx, username)
}

// IsGroupVisible tells whether a group roster projection is visible to a
// given account under the group visibility policy.
func (m *Manager) IsGroupVisible(ctx context.Context, g *groupmodel.Group, username string) bool {
	switch g.Policy {
	case groupmodel.SharedEverybody:
		return true
	case groupmodel.SharedUsersOfGroups:
		if g.IsUser(username) {
			return true
		}
		for _, name := range g.SharedWith {
			h, err := m.rep.FetchGroup(ctx, name)
			if err != nil || h == nil {
				// unresolvable allow list entries are silently excluded
				continue
			}
			if h.IsUser(username) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// HasMutualVisibility tells whether two accounts, reachable only through
// group membership, are entitled to see each other: some pair of their
// groups must grant visibility in both directions.
func (m *Manager) HasMutualVisibility(ctx context.Context, userA, userB string) (bool, error) {
	groups, err := m.rep.FetchGroups(ctx)
	if err != nil {
		return false, err
	}
	// allow lists may name plain groups, so membership is collected over
	// every group; only shared groups can grant visibility themselves
	var sharedA, sharedB []*groupmodel.Group
	var groupsA, groupsB []*groupmodel.Group
	for _, g := range groups {
		inA, inB := g.IsUser(userA), g.IsUser(userB)
		if inA {
			groupsA = append(groupsA, g)
		}
		if inB {
			groupsB = append(groupsB, g)
		}
		if !g.IsShared() {
			continue
		}
		if inA {
			sharedA = append(sharedA, g)
		}
		if inB {
			sharedB = append(sharedB, g)
		}
	}
	for _, ga := range sharedA {
		for _, gb := range sharedB {
			if mutuallyVisible(ga, gb, groupsA, groupsB) {
				return true, nil
			}
		}
	}
	return false, nil
}

// mutuallyVisible evaluates one (group of A, group of B) pair. Allow lists
// may name the peer group directly or any other group the peer user belongs
// to.
func mutuallyVisible(ga, gb *groupmodel.Group, groupsA, groupsB []*groupmodel.Group) bool {
	if ga.Name == gb.Name {
		return true
	}
	everybodyA := ga.Policy == groupmodel.SharedEverybody
	everybodyB := gb.Policy == groupmodel.SharedEverybody
	switch {
	case everybodyA && everybodyB:
		return true
	case everybodyA:
		return allowsAnyOf(gb, groupsA)
	case everybodyB:
		return allowsAnyOf(ga, groupsB)
	default:
		return allowsAnyOf(ga, groupsB) && allowsAnyOf(gb, groupsA)
	}
}

func allowsAnyOf(g *groupmodel.Group, others []*groupmodel.Group) bool {
	for _, other := range others {
		if g.AllowsGroup(other.Name) {
			return true
		}
	}
	return false
}

// affectedUsers computes AU(G): the set of accounts whose roster must be
// revisited after a change on g. The everybody policy is the one path that
// enumerates the full account directory.
func (m *Manager) affectedUsers(ctx context.Context, g *groupmodel.Group) ([]string, error) {
	switch g.Policy {
	case groupmodel.SharedEverybody:
		all, err := m.rep.FetchUsernames(ctx)
		if err != nil {
			return nil, err
		}
		return dedupUsernames(g.Usernames(), all), nil

	case groupmodel.SharedUsersOfGroups:
		res := g.Usernames()
		for _, name := range g.SharedWith {
			h, err := m.rep.FetchGroup(ctx, name)
			if err != nil || h == nil {
				continue
			}
			res = dedupUsernames(res, h.Usernames())
		}
		return res, nil

	default:
		return nil, nil
	}
}

// loadRoster materializes an account roster combining its persistent rows
// with the shared group projection.
func (m *Manager) loadRoster(ctx context.Context, username string) ([]*rostermodel.Item, error) {
	stored, err := m.rep.FetchRosterItems(ctx, username)
	if err != nil {
		return nil, err
	}
	byJID := make(map[string]*rostermodel.Item, len(stored))
	for _, ri := range stored {
		byJID[ri.JID] = cloneItem(ri)
	}
	if err := m.projectSharedItems(ctx, username, byJID); err != nil {
		return nil, err
	}
	items := make([]*rostermodel.Item, 0, len(byJID))
	for _, ri := range byJID {
		items = append(items, ri)
	}
	return items, nil
}

// projectSharedItems merges the shared group derived contacts of an account
// into byJID. Forward entries carry a visible group label and to or both
// subscription; reverse only entries justify a from subscription through an
// invisible label.
func (m *Manager) projectSharedItems(ctx context.Context, username string, byJID map[string]*rostermodel.Item) error {
	groups, err := m.rep.FetchGroups(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if !g.IsShared() || !m.IsGroupVisible(ctx, g, username) {
			continue
		}
		for _, v := range g.Usernames() {
			if v == username {
				continue
			}
			mutual, err := m.HasMutualVisibility(ctx, username, v)
			if err != nil {
				return err
			}
			sub := rostermodel.To
			if mutual {
				sub = rostermodel.Both
			}
			m.mergeSharedItem(ctx, byJID, username, v, g.SharedDisplayName(), true, sub)
		}
	}
	// reverse direction: accounts entitled to see this user through a group
	// this user belongs to, without being visible back
	for _, g := range groups {
		if !g.IsShared() || !g.IsUser(username) {
			continue
		}
		affected, err := m.affectedUsers(ctx, g)
		if err != nil {
			return err
		}
		for _, v := range affected {
			if v == username {
				continue
			}
			if _, ok := byJID[m.jidFor(v)]; ok {
				continue
			}
			m.mergeSharedItem(ctx, byJID, username, v, g.SharedDisplayName(), false, rostermodel.From)
		}
	}
	return nil
}

func (m *Manager) mergeSharedItem(ctx context.Context, byJID map[string]*rostermodel.Item, username, contact, label string, visible bool, subscription string) {
	cJID := m.jidFor(contact)
	ri := byJID[cJID]
	if ri == nil {
		ri = &rostermodel.Item{
			Username:     username,
			JID:          cJID,
			Subscription: subscription,
		}
		byJID[cJID] = ri
	}
	if visible {
		ri.AddSharedGroup(label)
	} else {
		ri.AddInvisibleSharedGroup(label)
	}
	mergeSubscription(ri, subscription)

	if len(ri.Name) == 0 && (ri.Subscription == rostermodel.To || ri.Subscription == rostermodel.Both) {
		if usr, err := m.rep.FetchUser(ctx, contact); err == nil && usr != nil {
			ri.Name = usr.Name
		}
	}
}

func (m *Manager) cachedRoster(username string) *Roster {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rosters[username]
}

func (m *Manager) jidFor(username string) string {
	if strings.Contains(username, "@") {
		return username
	}
	return username + "@" + m.cfg.Domain
}

func (m *Manager) isLocal(username string) bool {
	if !strings.Contains(username, "@") {
		return true
	}
	j, err := jid.NewWithString(username, true)
	if err != nil {
		return false
	}
	return j.Domain() == m.cfg.Domain
}

func rosterLockID(username string) string {
	return fmt.Sprintf("ros:lock:%s", username)
}

func dedupUsernames(sets ...[]string) []string {
	seen := make(map[string]struct{})
	var res []string
	for _, set := range sets {
		for _, u := range set {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			res = append(res, u)
		}
	}
	return res
}

// routeSubscription emits an outbound presence subscription request towards
// a remote endpoint. Delivery is best effort and never awaited.
func (m *Manager) routeSubscription(ctx context.Context, fromUser, toAddress, presenceType string) {
	fromJID, err := jid.NewWithString(m.jidFor(fromUser), true)
	if err != nil {
		return
	}
	toJID, err := jid.NewWithString(toAddress, true)
	if err != nil {
		return
	}
	pr := xmpputil.MakePresence(fromJID, toJID, presenceType, nil)
	if err := m.router.Route(ctx, pr); err != nil {
		level.Warn(m.logger).Log("msg", "failed to route subscription request", "from", fromJID, "to", toJID, "err", err)
	}
}

// cacheSyncListener republishes a roster into the distributed cache after
// every mutation, which is both how other cluster nodes observe the change
// and how stale in-process references self-heal.
type cacheSyncListener struct {
	NopEventListener
	m *Manager
}

func (l *cacheSyncListener) RosterLoaded(ctx context.Context, ros *Roster) {
	l.publish(ctx, ros)
}

func (l *cacheSyncListener) ContactAdded(ctx context.Context, ros *Roster, _ *rostermodel.Item) {
	l.publish(ctx, ros)
}

func (l *cacheSyncListener) ContactUpdated(ctx context.Context, ros *Roster, _ *rostermodel.Item) {
	l.publish(ctx, ros)
}

func (l *cacheSyncListener) ContactDeleted(ctx context.Context, ros *Roster, _ *rostermodel.Item) {
	l.publish(ctx, ros)
}

func (l *cacheSyncListener) publish(ctx context.Context, ros *Roster) {
	if err := l.m.cache.publish(ctx, ros.Username(), ros.Items(), ros.Version()); err != nil {
		level.Warn(l.m.logger).Log("msg", "failed to publish roster", "username", ros.Username(), "err", err)
	}
}

// stravaganza presence types routed on remote fan-out.
const (
	subscribeType   = stravaganza.SubscribeType
	unsubscribeType = stravaganza.UnsubscribeType
)
