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
	"testing"

	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/require"

	rostermodel "github.com/vireo-im/vireo/pkg/model/roster"
	usermodel "github.com/vireo-im/vireo/pkg/model/user"
	memoryrepository "github.com/vireo-im/vireo/pkg/storage/memory"
)

func testRoster(t *testing.T, username string, versioning bool) (*Roster, *memoryrepository.Repository, *Dispatcher) {
	t.Helper()
	rep := memoryrepository.New()
	disp := NewDispatcher(kitlog.NewNopLogger())
	return newRoster(username, nil, 0, rep, disp, versioning, kitlog.NewNopLogger()), rep, disp
}

func TestRoster_UpsertContact(t *testing.T) {
	// given
	ros, rep, _ := testRoster(t, "ortuman", true)

	// when
	err := ros.UpsertContact(context.Background(), &rostermodel.Item{
		JID:          "noelia@vireo.im",
		Subscription: rostermodel.Both,
		Groups:       []string{"Buddies"},
	})

	// then
	require.NoError(t, err)

	ri := ros.Item("noelia@vireo.im")
	require.NotNil(t, ri)
	require.False(t, ri.IsTransient())
	require.Equal(t, 1, ros.Version())

	stored, err := rep.FetchRosterItem(context.Background(), "ortuman", "noelia@vireo.im")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestRoster_UpsertContactVetoed(t *testing.T) {
	// given
	ros, rep, disp := testRoster(t, "ortuman", false)
	disp.AddListener(&testListener{vote: false})

	// when
	err := ros.UpsertContact(context.Background(), &rostermodel.Item{
		JID:          "noelia@vireo.im",
		Subscription: rostermodel.None,
	})

	// then
	require.NoError(t, err)

	ri := ros.Item("noelia@vireo.im")
	require.NotNil(t, ri)
	require.True(t, ri.IsTransient()) // vetoed contacts are never stored

	stored, err := rep.FetchRosterItem(context.Background(), "ortuman", "noelia@vireo.im")
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestRoster_NicknameAutoFill(t *testing.T) {
	// given
	ros, rep, _ := testRoster(t, "ortuman", false)

	err := rep.UpsertUser(context.Background(), &usermodel.User{Username: "noelia", Name: "Noelia"})
	require.NoError(t, err)

	// when
	err = ros.UpsertContact(context.Background(), &rostermodel.Item{
		JID:          "noelia@vireo.im",
		Subscription: rostermodel.To,
	})

	// then
	require.NoError(t, err)
	require.Equal(t, "Noelia", ros.Item("noelia@vireo.im").Name)
}

func TestRoster_SharedGroupRemovalGuard(t *testing.T) {
	// given
	ros, _, _ := testRoster(t, "ortuman", false)

	err := ros.addSharedContact(context.Background(), "noelia@vireo.im", "Team", true, rostermodel.Both)
	require.NoError(t, err)

	err = ros.SetContactGroups(context.Background(), "noelia@vireo.im", []string{"Team"})
	require.NoError(t, err)

	// when
	err = ros.SetContactGroups(context.Background(), "noelia@vireo.im", nil)

	// then
	require.ErrorIs(t, err, rostermodel.ErrSharedGroupViolation)

	// when shared relationship ends the label can be dropped
	err = ros.removeSharedContact(context.Background(), "noelia@vireo.im", "Team")
	require.NoError(t, err)

	err = ros.SetContactGroups(context.Background(), "noelia@vireo.im", nil)
	require.NoError(t, err)
}

func TestRoster_DeleteOnlySharedContact(t *testing.T) {
	// given
	ros, _, _ := testRoster(t, "ortuman", false)

	err := ros.addSharedContact(context.Background(), "noelia@vireo.im", "Team", true, rostermodel.Both)
	require.NoError(t, err)

	// when
	err = ros.DeleteContact(context.Background(), "noelia@vireo.im")

	// then
	require.ErrorIs(t, err, rostermodel.ErrSharedGroupViolation)

	// teardown mode overrides the guard
	err = ros.deleteContact(context.Background(), "noelia@vireo.im", true)
	require.NoError(t, err)
	require.Nil(t, ros.Item("noelia@vireo.im"))
}

func TestRoster_RemoveSharedContactKeepsPersonal(t *testing.T) {
	// given
	ros, _, _ := testRoster(t, "ortuman", false)

	err := ros.UpsertContact(context.Background(), &rostermodel.Item{
		JID:          "noelia@vireo.im",
		Subscription: rostermodel.Both,
		Groups:       []string{"Buddies"},
	})
	require.NoError(t, err)

	err = ros.addSharedContact(context.Background(), "noelia@vireo.im", "Team", true, rostermodel.Both)
	require.NoError(t, err)

	// when
	err = ros.removeSharedContact(context.Background(), "noelia@vireo.im", "Team")

	// then
	require.NoError(t, err)

	ri := ros.Item("noelia@vireo.im")
	require.NotNil(t, ri)
	require.False(t, ri.IsShared())
	require.Equal(t, []string{"Buddies"}, ri.Groups)
}

func TestRoster_Clear(t *testing.T) {
	// given
	ros, rep, _ := testRoster(t, "ortuman", false)

	err := ros.UpsertContact(context.Background(), &rostermodel.Item{
		JID:          "noelia@vireo.im",
		Subscription: rostermodel.Both,
	})
	require.NoError(t, err)

	err = ros.addSharedContact(context.Background(), "shakespeare@vireo.im", "Team", true, rostermodel.Both)
	require.NoError(t, err)

	// when
	err = ros.clear(context.Background())

	// then
	require.NoError(t, err)
	require.Equal(t, 0, ros.Len())

	items, err := rep.FetchRosterItems(context.Background(), "ortuman")
	require.NoError(t, err)
	require.Len(t, items, 0)
}
