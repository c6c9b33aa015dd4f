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

package rostermodel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestItem_AskStateOverride(t *testing.T) {
	// given
	ri := &Item{
		Username:     "ortuman",
		JID:          "noelia@vireo.im",
		Subscription: None,
		Ask:          AskSubscribe,
	}

	// when
	ri.AddSharedGroup("Engineering")

	// then
	require.Equal(t, AskNone, ri.AskState())

	ri.RemoveSharedGroup("Engineering")
	require.Equal(t, AskSubscribe, ri.AskState())
}

func TestItem_NicknameAutoFill(t *testing.T) {
	ri := &Item{Username: "ortuman", JID: "noelia@vireo.im", Subscription: None}

	ri.UpdateSubscription(From, "Noelia")
	require.Empty(t, ri.Name) // from grants no visibility

	ri.UpdateSubscription(Both, "Noelia")
	require.Equal(t, "Noelia", ri.Name)

	ri.UpdateSubscription(To, "Ms. Noelia")
	require.Equal(t, "Noelia", ri.Name) // never overwritten
}

func TestItem_SetGroupsSharedViolation(t *testing.T) {
	// given
	ri := &Item{
		Username: "ortuman",
		JID:      "noelia@vireo.im",
		Groups:   []string{"Team", "Friends"},
	}
	ri.AddSharedGroup("Team")

	// when
	err := ri.SetGroups([]string{"Friends"})

	// then
	require.ErrorIs(t, err, ErrSharedGroupViolation)
	require.Equal(t, []string{"Team", "Friends"}, ri.Groups)

	// shared relationship ends
	ri.RemoveSharedGroup("Team")
	require.NoError(t, ri.SetGroups([]string{"Friends"}))
	require.Equal(t, []string{"Friends"}, ri.Groups)
}

func TestItem_SharedGroupRefs(t *testing.T) {
	ri := &Item{Username: "ortuman", JID: "noelia@vireo.im"}

	ri.AddInvisibleSharedGroup("Sales")
	require.True(t, ri.InSharedGroup("Sales"))
	require.True(t, ri.IsOnlyShared())

	// promoting to a visible ref drops the invisible one
	ri.AddSharedGroup("Sales")
	require.Equal(t, []string{"Sales"}, ri.SharedGroups)
	require.Empty(t, ri.InvisibleSharedGroups)

	ri.RenameSharedGroup("Sales", "EMEA Sales")
	require.True(t, ri.InSharedGroup("EMEA Sales"))
	require.False(t, ri.InSharedGroup("Sales"))

	ri.RemoveSharedGroup("EMEA Sales")
	require.False(t, ri.IsShared())
}

func TestItem_Codec(t *testing.T) {
	// given
	ri := &Item{
		ID:           23,
		Username:     "ortuman",
		JID:          "noelia@vireo.im",
		Name:         "Noelia",
		Subscription: Both,
		Groups:       []string{"Friends"},
		SharedGroups: []string{"Engineering"},
		Ver:          7,
	}

	// when
	b, err := ri.MarshalBinary()
	require.NoError(t, err)

	var ri2 Item
	require.NoError(t, ri2.UnmarshalBinary(b))

	// then
	require.Equal(t, *ri, ri2)
}
