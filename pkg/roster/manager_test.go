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
	"sync"
	"sync/atomic"
	"testing"

	kitlog "github.com/go-kit/log"
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/stretchr/testify/require"

	memorycache "github.com/vireo-im/vireo/pkg/cache/memory"
	"github.com/vireo-im/vireo/pkg/cluster/locker"
	"github.com/vireo-im/vireo/pkg/hook"
	groupmodel "github.com/vireo-im/vireo/pkg/model/group"
	rostermodel "github.com/vireo-im/vireo/pkg/model/roster"
	usermodel "github.com/vireo-im/vireo/pkg/model/user"
	memoryrepository "github.com/vireo-im/vireo/pkg/storage/memory"
	"github.com/vireo-im/vireo/pkg/util/pool"
)

type countingRep struct {
	*memoryrepository.Repository
	rosterLoads int32
}

func (r *countingRep) FetchRosterItems(ctx context.Context, username string) ([]*rostermodel.Item, error) {
	atomic.AddInt32(&r.rosterLoads, 1)
	return r.Repository.FetchRosterItems(ctx, username)
}

type routerMock struct {
	RouteFunc func(ctx context.Context, stanza stravaganza.Stanza) error

	mu     sync.Mutex
	routed []stravaganza.Stanza
}

func (m *routerMock) Route(ctx context.Context, stanza stravaganza.Stanza) error {
	m.mu.Lock()
	m.routed = append(m.routed, stanza)
	m.mu.Unlock()
	if m.RouteFunc != nil {
		return m.RouteFunc(ctx, stanza)
	}
	return nil
}

func (m *routerMock) Start(_ context.Context) error { return nil }
func (m *routerMock) Stop(_ context.Context) error  { return nil }

func (m *routerMock) RoutedStanzas() []stravaganza.Stanza {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]stravaganza.Stanza(nil), m.routed...)
}

type testEnv struct {
	m     *Manager
	rep   *countingRep
	hooks *hook.Hooks
	rt    *routerMock
}

func testManager(t *testing.T) *testEnv {
	t.Helper()

	rep := &countingRep{Repository: memoryrepository.New()}
	hooks := hook.NewHooks()
	rt := &routerMock{}

	m := NewManager(
		Config{Enabled: true, Versioning: true, Domain: "vireo.im", Pool: pool.Config{Max: 4}},
		rep,
		memorycache.New(),
		locker.NewMemoryLocker(),
		rt,
		hooks,
		kitlog.NewNopLogger(),
	)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	return &testEnv{m: m, rep: rep, hooks: hooks, rt: rt}
}

func (e *testEnv) addUser(t *testing.T, username, name string) {
	t.Helper()
	require.NoError(t, e.rep.UpsertUser(context.Background(), &usermodel.User{Username: username, Name: name}))
}

func (e *testEnv) addGroup(t *testing.T, g *groupmodel.Group) {
	t.Helper()
	require.NoError(t, e.rep.UpsertGroup(context.Background(), g))
}

func (e *testEnv) runHook(t *testing.T, hookName string, inf interface{}) {
	t.Helper()
	_, err := e.hooks.Run(context.Background(), hookName, &hook.ExecutionContext{Info: inf})
	require.NoError(t, err)
}

func TestManager_SingleLoaderGetRoster(t *testing.T) {
	// given
	env := testManager(t)
	env.addUser(t, "ortuman", "Miguel")

	// when
	const concurrency = 16

	rosters := make([]*Roster, concurrency)
	errs := make([]error, concurrency)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rosters[i], errs[i] = env.m.GetRoster(context.Background(), "ortuman")
		}(i)
	}
	wg.Wait()

	// then
	require.Equal(t, int32(1), atomic.LoadInt32(&env.rep.rosterLoads))
	for i := 0; i < concurrency; i++ {
		require.NoError(t, errs[i])
		require.Same(t, rosters[0], rosters[i])
	}
}

func TestManager_GetRosterAccountNotFound(t *testing.T) {
	// given
	env := testManager(t)

	// when
	_, err := env.m.GetRoster(context.Background(), "nobody")

	// then
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestManager_EverybodyVisibility(t *testing.T) {
	// given
	env := testManager(t)
	env.addUser(t, "ortuman", "Miguel")
	env.addUser(t, "noelia", "Noelia")

	g := &groupmodel.Group{
		Name:    "staff",
		Members: []string{"noelia"},
		Policy:  groupmodel.SharedEverybody,
	}
	env.addGroup(t, g)

	// then
	require.True(t, env.m.IsGroupVisible(context.Background(), g, "ortuman"))

	ros, err := env.m.GetRoster(context.Background(), "ortuman")
	require.NoError(t, err)
	require.NotNil(t, ros.Item("noelia@vireo.im"))

	// an account created after the policy was set is covered too
	env.addUser(t, "shakespeare", "William")
	env.runHook(t, hook.UserCreated, &hook.UserEventInfo{Username: "shakespeare"})

	require.True(t, env.m.IsGroupVisible(context.Background(), g, "shakespeare"))

	sros, err := env.m.GetRoster(context.Background(), "shakespeare")
	require.NoError(t, err)
	require.NotNil(t, sros.Item("noelia@vireo.im"))
}

func TestManager_UsersOfGroupsSymmetry(t *testing.T) {
	// given
	env := testManager(t)
	env.addUser(t, "alice", "Alice")
	env.addUser(t, "bob", "Bob")

	env.addGroup(t, &groupmodel.Group{
		Name:       "Eng",
		Members:    []string{"alice"},
		Policy:     groupmodel.SharedUsersOfGroups,
		SharedWith: []string{"Sales"},
	})
	env.addGroup(t, &groupmodel.Group{
		Name:       "Sales",
		Members:    []string{"bob"},
		Policy:     groupmodel.SharedUsersOfGroups,
		SharedWith: []string{"Eng"},
	})

	// then
	mutual, err := env.m.HasMutualVisibility(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.True(t, mutual)

	mutual, err = env.m.HasMutualVisibility(context.Background(), "bob", "alice")
	require.NoError(t, err)
	require.True(t, mutual)

	aros, err := env.m.GetRoster(context.Background(), "alice")
	require.NoError(t, err)

	bobItem := aros.Item("bob@vireo.im")
	require.NotNil(t, bobItem)
	require.Equal(t, rostermodel.Both, bobItem.Subscription)

	bros, err := env.m.GetRoster(context.Background(), "bob")
	require.NoError(t, err)
	require.NotNil(t, bros.Item("alice@vireo.im"))
}

func TestManager_MutualVisibilityPlainIntermediate(t *testing.T) {
	// given: two shared groups whose allow lists both name a plain group
	// the two users belong to
	env := testManager(t)
	env.addUser(t, "alice", "Alice")
	env.addUser(t, "bob", "Bob")

	env.addGroup(t, &groupmodel.Group{Name: "staff", Members: []string{"alice", "bob"}})

	eng := &groupmodel.Group{
		Name:       "Eng",
		Members:    []string{"alice"},
		Policy:     groupmodel.SharedUsersOfGroups,
		SharedWith: []string{"staff"},
	}
	sales := &groupmodel.Group{
		Name:       "Sales",
		Members:    []string{"bob"},
		Policy:     groupmodel.SharedUsersOfGroups,
		SharedWith: []string{"staff"},
	}
	env.addGroup(t, eng)
	env.addGroup(t, sales)

	// then: visibility holds in both directions, so mutuality must too
	require.True(t, env.m.IsGroupVisible(context.Background(), eng, "bob"))
	require.True(t, env.m.IsGroupVisible(context.Background(), sales, "alice"))

	mutual, err := env.m.HasMutualVisibility(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.True(t, mutual)

	aros, err := env.m.GetRoster(context.Background(), "alice")
	require.NoError(t, err)

	bobItem := aros.Item("bob@vireo.im")
	require.NotNil(t, bobItem)
	require.Equal(t, rostermodel.Both, bobItem.Subscription)

	bros, err := env.m.GetRoster(context.Background(), "bob")
	require.NoError(t, err)

	aliceItem := bros.Item("alice@vireo.im")
	require.NotNil(t, aliceItem)
	require.Equal(t, rostermodel.Both, aliceItem.Subscription)
}

func TestManager_ClusterCacheReplication(t *testing.T) {
	// given: two nodes sharing the distributed cache and storage
	rep := &countingRep{Repository: memoryrepository.New()}
	store := memorycache.New()
	cfg := Config{Enabled: true, Versioning: true, Domain: "vireo.im", Pool: pool.Config{Max: 4}}

	m1 := NewManager(cfg, rep, store, locker.NewMemoryLocker(), &routerMock{}, hook.NewHooks(), kitlog.NewNopLogger())
	require.NoError(t, m1.Start(context.Background()))
	t.Cleanup(func() { _ = m1.Stop(context.Background()) })

	m2 := NewManager(cfg, rep, store, locker.NewMemoryLocker(), &routerMock{}, hook.NewHooks(), kitlog.NewNopLogger())
	require.NoError(t, m2.Start(context.Background()))
	t.Cleanup(func() { _ = m2.Stop(context.Background()) })

	require.NoError(t, rep.UpsertUser(context.Background(), &usermodel.User{Username: "ortuman", Name: "Miguel"}))

	ros, err := m1.GetRoster(context.Background(), "ortuman")
	require.NoError(t, err)

	err = ros.UpsertContact(context.Background(), &rostermodel.Item{
		JID:          "noelia@vireo.im",
		Subscription: rostermodel.Both,
	})
	require.NoError(t, err)
	require.Equal(t, 1, ros.Version())

	// when: the other node materializes the same account
	ros2, err := m2.GetRoster(context.Background(), "ortuman")
	require.NoError(t, err)

	// then: items and version come from the replicated cache entry
	require.Equal(t, int32(1), atomic.LoadInt32(&rep.rosterLoads))
	require.NotNil(t, ros2.Item("noelia@vireo.im"))
	require.Equal(t, 1, ros2.Version())
}

func TestManager_EngSalesEndToEnd(t *testing.T) {
	// given
	env := testManager(t)
	env.addUser(t, "alice", "Alice")
	env.addUser(t, "bob", "Bob")
	env.addUser(t, "carol", "Carol")

	env.addGroup(t, &groupmodel.Group{
		Name:       "Eng",
		Members:    []string{"alice"},
		Policy:     groupmodel.SharedUsersOfGroups,
		SharedWith: []string{"Sales"},
	})
	env.addGroup(t, &groupmodel.Group{
		Name:       "Sales",
		Members:    []string{"bob"},
		Policy:     groupmodel.SharedUsersOfGroups,
		SharedWith: []string{"Eng"},
	})

	aros, err := env.m.GetRoster(context.Background(), "alice")
	require.NoError(t, err)

	// alice keeps a personal contact too
	err = aros.UpsertContact(context.Background(), &rostermodel.Item{
		JID:          "carol@vireo.im",
		Subscription: rostermodel.Both,
		Groups:       []string{"Friends"},
	})
	require.NoError(t, err)

	bobItem := aros.Item("bob@vireo.im")
	require.NotNil(t, bobItem)
	require.Equal(t, rostermodel.Both, bobItem.Subscription)
	require.Equal(t, []string{"Sales"}, bobItem.SharedGroups)

	// when bob leaves Sales
	env.addGroup(t, &groupmodel.Group{
		Name:       "Sales",
		Members:    []string{},
		Policy:     groupmodel.SharedUsersOfGroups,
		SharedWith: []string{"Eng"},
	})
	env.runHook(t, hook.GroupMemberRemoved, &hook.GroupEventInfo{GroupName: "Sales", Username: "bob"})

	// then
	require.Nil(t, aros.Item("bob@vireo.im"))
	require.NotNil(t, aros.Item("carol@vireo.im")) // personal contacts untouched
}

func TestManager_RemoveThenAddOrdering(t *testing.T) {
	// given
	env := testManager(t)
	env.addUser(t, "g1", "G1")
	env.addUser(t, "hMember", "H member")
	env.addUser(t, "kMember", "K member")

	env.addGroup(t, &groupmodel.Group{
		Name:       "G",
		Members:    []string{"g1"},
		Policy:     groupmodel.SharedUsersOfGroups,
		SharedWith: []string{"H"},
	})
	env.addGroup(t, &groupmodel.Group{Name: "H", Members: []string{"hMember"}})
	env.addGroup(t, &groupmodel.Group{Name: "K", Members: []string{"kMember"}})

	hros, err := env.m.GetRoster(context.Background(), "hMember")
	require.NoError(t, err)
	require.NotNil(t, hros.Item("g1@vireo.im"))

	kros, err := env.m.GetRoster(context.Background(), "kMember")
	require.NoError(t, err)

	// record fan-out event ordering
	type rosterEvent struct {
		username string
		kind     string
	}
	var mu sync.Mutex
	var events []rosterEvent

	recorder := &recordingListener{fn: func(username, kind string) {
		mu.Lock()
		events = append(events, rosterEvent{username: username, kind: kind})
		mu.Unlock()
	}}
	env.m.Dispatcher().AddListener(recorder)

	// when the allow list flips from H to K
	env.addGroup(t, &groupmodel.Group{
		Name:       "G",
		Members:    []string{"g1"},
		Policy:     groupmodel.SharedUsersOfGroups,
		SharedWith: []string{"K"},
	})
	env.runHook(t, hook.GroupPropertyChanged, &hook.GroupEventInfo{
		GroupName: "G",
		Property:  hook.GroupSharedWithProperty,
		PrevValue: []string{"H"},
	})
	env.m.pool.Drain()

	// then
	require.Nil(t, hros.Item("g1@vireo.im"))
	require.NotNil(t, kros.Item("g1@vireo.im"))

	mu.Lock()
	defer mu.Unlock()

	removeIdx, addIdx := -1, -1
	for i, ev := range events {
		if ev.username == "hMember" && ev.kind == "deleted" && removeIdx < 0 {
			removeIdx = i
		}
		if ev.username == "kMember" && ev.kind == "added" && addIdx < 0 {
			addIdx = i
		}
	}
	require.GreaterOrEqual(t, removeIdx, 0)
	require.GreaterOrEqual(t, addIdx, 0)
	require.Less(t, removeIdx, addIdx) // strict remove-then-add
}

func TestManager_CascadingAccountDelete(t *testing.T) {
	// given
	env := testManager(t)
	env.addUser(t, "alice", "Alice")
	env.addUser(t, "bob", "Bob")
	env.addUser(t, "carol", "Carol")

	aros, err := env.m.GetRoster(context.Background(), "alice")
	require.NoError(t, err)
	err = aros.UpsertContact(context.Background(), &rostermodel.Item{
		JID:          "carol@vireo.im",
		Subscription: rostermodel.Both,
	})
	require.NoError(t, err)

	// bob's roster references carol on storage only: not materialized here
	_, err = env.rep.UpsertRosterItem(context.Background(), &rostermodel.Item{
		Username:     "bob",
		JID:          "carol@vireo.im",
		Subscription: rostermodel.Both,
	})
	require.NoError(t, err)

	// when
	env.runHook(t, hook.UserDeleting, &hook.UserEventInfo{Username: "carol"})

	// then
	require.Nil(t, aros.Item("carol@vireo.im"))

	stored, err := env.rep.FetchRosterItem(context.Background(), "alice", "carol@vireo.im")
	require.NoError(t, err)
	require.Nil(t, stored)

	stored, err = env.rep.FetchRosterItem(context.Background(), "bob", "carol@vireo.im")
	require.NoError(t, err)
	require.Nil(t, stored)

	items, err := env.rep.FetchRosterItems(context.Background(), "carol")
	require.NoError(t, err)
	require.Len(t, items, 0)
}

func TestManager_RemoteEndpointSubscription(t *testing.T) {
	// given
	env := testManager(t)
	env.addUser(t, "ortuman", "Miguel")

	env.addGroup(t, &groupmodel.Group{
		Name:    "federated",
		Members: []string{"ortuman"},
		Policy:  groupmodel.SharedUsersOfGroups,
	})

	_, err := env.m.GetRoster(context.Background(), "ortuman")
	require.NoError(t, err)

	// when a remote address joins the shared group
	env.addGroup(t, &groupmodel.Group{
		Name:    "federated",
		Members: []string{"ortuman", "noelia@jabber.org"},
		Policy:  groupmodel.SharedUsersOfGroups,
	})
	env.runHook(t, hook.GroupMemberAdded, &hook.GroupEventInfo{GroupName: "federated", Username: "noelia@jabber.org"})

	// then
	routed := env.rt.RoutedStanzas()
	require.Len(t, routed, 1)
	require.Equal(t, "ortuman@vireo.im", routed[0].Attribute(stravaganza.From))
	require.Equal(t, "noelia@jabber.org", routed[0].Attribute(stravaganza.To))
	require.Equal(t, stravaganza.SubscribeType, routed[0].Attribute(stravaganza.Type))
}

func TestManager_GroupRenamePush(t *testing.T) {
	// given
	env := testManager(t)
	env.addUser(t, "alice", "Alice")
	env.addUser(t, "bob", "Bob")

	env.addGroup(t, &groupmodel.Group{
		Name:        "staff",
		DisplayName: "Staff",
		Members:     []string{"alice", "bob"},
		Policy:      groupmodel.SharedEverybody,
	})

	aros, err := env.m.GetRoster(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"Staff"}, aros.Item("bob@vireo.im").SharedGroups)

	// when
	env.addGroup(t, &groupmodel.Group{
		Name:        "staff",
		DisplayName: "Staff Team",
		Members:     []string{"alice", "bob"},
		Policy:      groupmodel.SharedEverybody,
	})
	env.runHook(t, hook.GroupPropertyChanged, &hook.GroupEventInfo{
		GroupName: "staff",
		Property:  hook.GroupDisplayNameProperty,
		PrevValue: "Staff",
	})

	// then
	require.Equal(t, []string{"Staff Team"}, aros.Item("bob@vireo.im").SharedGroups)
}

func TestManager_GroupDeleting(t *testing.T) {
	// given
	env := testManager(t)
	env.addUser(t, "alice", "Alice")
	env.addUser(t, "bob", "Bob")

	env.addGroup(t, &groupmodel.Group{
		Name:    "staff",
		Members: []string{"alice", "bob"},
		Policy:  groupmodel.SharedEverybody,
	})

	aros, err := env.m.GetRoster(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, aros.Item("bob@vireo.im"))

	// when
	env.runHook(t, hook.GroupDeleting, &hook.GroupEventInfo{GroupName: "staff"})

	// then
	require.Nil(t, aros.Item("bob@vireo.im"))
}

type recordingListener struct {
	NopEventListener
	fn func(username, kind string)
}

func (l *recordingListener) ContactAdded(_ context.Context, ros *Roster, _ *rostermodel.Item) {
	l.fn(ros.Username(), "added")
}

func (l *recordingListener) ContactUpdated(_ context.Context, ros *Roster, _ *rostermodel.Item) {
	l.fn(ros.Username(), "updated")
}

func (l *recordingListener) ContactDeleted(_ context.Context, ros *Roster, _ *rostermodel.Item) {
	l.fn(ros.Username(), "deleted")
}
