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
)

type testListener struct {
	NopEventListener

	vote      bool
	panics    bool
	addedCnt  int
	votedCnt  int
	deleteCnt int
}

func (l *testListener) AddingContact(_ context.Context, _ *Roster, _ *rostermodel.Item, proposedPersistent bool) bool {
	l.votedCnt++
	if l.panics {
		panic("listener failure")
	}
	return l.vote
}

func (l *testListener) ContactAdded(_ context.Context, _ *Roster, _ *rostermodel.Item) {
	l.addedCnt++
}

func (l *testListener) ContactDeleted(_ context.Context, _ *Roster, _ *rostermodel.Item) {
	if l.panics {
		panic("listener failure")
	}
	l.deleteCnt++
}

func TestDispatcher_VetoPropagation(t *testing.T) {
	// given
	d := NewDispatcher(kitlog.NewNopLogger())

	approving := &testListener{vote: true}
	vetoing := &testListener{vote: false}

	d.AddListener(approving)
	d.AddListener(vetoing)

	// when
	persist := d.AddingContact(context.Background(), nil, &rostermodel.Item{}, true)

	// then
	require.False(t, persist)
	require.Equal(t, 1, approving.votedCnt)
	require.Equal(t, 1, vetoing.votedCnt)
}

func TestDispatcher_ZeroListenersPassThrough(t *testing.T) {
	// given
	d := NewDispatcher(kitlog.NewNopLogger())

	// when
	persistTrue := d.AddingContact(context.Background(), nil, &rostermodel.Item{}, true)
	persistFalse := d.AddingContact(context.Background(), nil, &rostermodel.Item{}, false)

	// then
	require.True(t, persistTrue)
	require.False(t, persistFalse)
}

func TestDispatcher_PanickingListenerCountsAsTrue(t *testing.T) {
	// given
	d := NewDispatcher(kitlog.NewNopLogger())

	panicking := &testListener{panics: true}
	approving := &testListener{vote: true}

	d.AddListener(panicking)
	d.AddListener(approving)

	// when
	persist := d.AddingContact(context.Background(), nil, &rostermodel.Item{}, true)

	// then
	require.True(t, persist)
	require.Equal(t, 1, approving.votedCnt) // dispatch continued past the panic
}

func TestDispatcher_PanickingListenerDoesNotAbortDispatch(t *testing.T) {
	// given
	d := NewDispatcher(kitlog.NewNopLogger())

	panicking := &testListener{panics: true}
	observing := &testListener{}

	d.AddListener(panicking)
	d.AddListener(observing)

	// when
	d.ContactDeleted(context.Background(), nil, &rostermodel.Item{})

	// then
	require.Equal(t, 1, observing.deleteCnt)
}

func TestDispatcher_RemoveListener(t *testing.T) {
	// given
	d := NewDispatcher(kitlog.NewNopLogger())

	l := &testListener{}
	d.AddListener(l)

	// when
	d.RemoveListener(l)
	d.ContactAdded(context.Background(), nil, &rostermodel.Item{})

	// then
	require.Equal(t, 0, l.addedCnt)
}
