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

package repository

import (
	"context"

	rostermodel "github.com/vireo-im/vireo/pkg/model/roster"
)

// Roster defines roster rows persistence provider interface.
type Roster interface {
	// TouchRosterVersion increments and returns a user roster version.
	TouchRosterVersion(ctx context.Context, username string) (int, error)

	// FetchRosterVersion retrieves a user roster version from storage.
	FetchRosterVersion(ctx context.Context, username string) (int, error)

	// UpsertRosterItem inserts a new roster item entity into storage, or
	// updates it if it was previously inserted, returning its persistent
	// identifier.
	UpsertRosterItem(ctx context.Context, ri *rostermodel.Item) (int64, error)

	// DeleteRosterItem deletes a roster item entity from storage.
	DeleteRosterItem(ctx context.Context, username, jid string) error

	// DeleteRosterItems deletes all roster items associated to a user from storage.
	DeleteRosterItems(ctx context.Context, username string) error

	// FetchRosterItems retrieves all roster items associated to a user from storage.
	FetchRosterItems(ctx context.Context, username string) ([]*rostermodel.Item, error)

	// FetchRosterItem retrieves a roster item entity from storage.
	FetchRosterItem(ctx context.Context, username, jid string) (*rostermodel.Item, error)

	// FetchRosterUsernames retrieves the usernames of every account whose
	// roster references a given peer address. This is the reverse index used
	// for cascading deletes: no full account scan is ever required.
	FetchRosterUsernames(ctx context.Context, jid string) ([]string, error)
}
