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
	"sort"
	"strings"
	"sync"

	kitlog "github.com/go-kit/log"

	rostermodel "github.com/vireo-im/vireo/pkg/model/roster"
	"github.com/vireo-im/vireo/pkg/storage/repository"
)

// Roster is a per account contact list aggregate. It is the sole owner of
// its item map: every mutation goes through one of its methods, persists
// through the storage provider when applicable and fires dispatcher
// notifications once the internal lock has been released.
type Roster struct {
	username   string
	rep        repository.Repository
	disp       *Dispatcher
	versioning bool
	logger     kitlog.Logger

	mu      sync.Mutex
	items   map[string]*rostermodel.Item
	version int
}

func newRoster(
	username string,
	items []*rostermodel.Item,
	version int,
	rep repository.Repository,
	disp *Dispatcher,
	versioning bool,
	logger kitlog.Logger,
) *Roster {
	r := &Roster{
		username:   username,
		rep:        rep,
		disp:       disp,
		versioning: versioning,
		logger:     logger,
		items:      make(map[string]*rostermodel.Item, len(items)),
		version:    version,
	}
	for _, ri := range items {
		r.items[ri.JID] = ri
	}
	return r
}

// Username returns the roster owner account name.
func (r *Roster) Username() string {
	return r.username
}

// Version returns the roster version value.
func (r *Roster) Version() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Items returns a copy of all roster items sorted by peer address.
func (r *Roster) Items() []*rostermodel.Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]*rostermodel.Item, 0, len(r.items))
	for _, ri := range r.items {
		items = append(items, cloneItem(ri))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].JID < items[j].JID })
	return items
}

// Item returns a copy of the item associated to a peer address, or nil when
// the address is not present in the roster.
func (r *Roster) Item(contactJID string) *rostermodel.Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	ri := r.items[contactJID]
	if ri == nil {
		return nil
	}
	return cloneItem(ri)
}

// Len returns the number of roster items.
func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// UpsertContact adds or updates a personally added contact. New contacts are
// submitted to the AddingContact veto before being persisted: a vetoed
// contact is retained as transient only.
func (r *Roster) UpsertContact(ctx context.Context, ri *rostermodel.Item) error {
	ri = cloneItem(ri)
	ri.Username = r.username

	r.mu.Lock()
	prev := r.items[ri.JID]
	isNew := prev == nil
	if !isNew {
		ri.ID = prev.ID
		ri.SharedGroups = append([]string(nil), prev.SharedGroups...)
		ri.InvisibleSharedGroups = append([]string(nil), prev.InvisibleSharedGroups...)
	}
	r.fillNickname(ctx, ri)

	// a previously transient shared artifact being personally added is
	// stored for the first time too
	firstStore := isNew || prev.IsTransient()
	r.mu.Unlock()

	persist := true
	if firstStore {
		persist = r.disp.AddingContact(ctx, r, cloneItem(ri), true)
	}
	if persist {
		if err := r.persistItem(ctx, ri); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.items[ri.JID] = ri
	r.mu.Unlock()

	if isNew {
		r.disp.ContactAdded(ctx, r, cloneItem(ri))
	} else {
		r.disp.ContactUpdated(ctx, r, cloneItem(ri))
	}
	return nil
}

// SetContactGroups replaces the personal group labels of a contact.
// Dropping a label backed by a live shared group fails with
// rostermodel.ErrSharedGroupViolation.
func (r *Roster) SetContactGroups(ctx context.Context, contactJID string, groups []string) error {
	r.mu.Lock()
	ri := r.items[contactJID]
	if ri == nil {
		r.mu.Unlock()
		return ErrContactNotFound
	}
	upd := cloneItem(ri)
	if err := upd.SetGroups(groups); err != nil {
		r.mu.Unlock()
		return err
	}
	persist := !upd.IsTransient()
	r.mu.Unlock()

	if persist {
		if err := r.persistItem(ctx, upd); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.items[contactJID] = upd
	r.mu.Unlock()

	r.disp.ContactUpdated(ctx, r, cloneItem(upd))
	return nil
}

// DeleteContact removes a contact from the roster. Items that exist solely
// because of shared group membership cannot be removed this way.
func (r *Roster) DeleteContact(ctx context.Context, contactJID string) error {
	return r.deleteContact(ctx, contactJID, false)
}

func (r *Roster) deleteContact(ctx context.Context, contactJID string, force bool) error {
	r.mu.Lock()
	ri := r.items[contactJID]
	if ri == nil {
		r.mu.Unlock()
		return nil
	}
	if !force && ri.IsOnlyShared() {
		r.mu.Unlock()
		return rostermodel.ErrSharedGroupViolation
	}
	delete(r.items, contactJID)
	persistent := !ri.IsTransient()
	r.mu.Unlock()

	if persistent {
		if err := r.rep.DeleteRosterItem(ctx, r.username, contactJID); err != nil {
			return err
		}
		if err := r.touchVersion(ctx); err != nil {
			return err
		}
	}
	r.disp.ContactDeleted(ctx, r, cloneItem(ri))
	return nil
}

// addSharedContact projects a shared group relationship into the roster.
// Shared derived items are transient: they are never submitted to storage,
// only replicated through the cache.
func (r *Roster) addSharedContact(ctx context.Context, contactJID, groupLabel string, visible bool, subscription string) error {
	r.mu.Lock()
	ri := r.items[contactJID]
	isNew := ri == nil
	if isNew {
		ri = &rostermodel.Item{
			Username:     r.username,
			JID:          contactJID,
			Subscription: subscription,
		}
	}
	if visible {
		ri.AddSharedGroup(groupLabel)
	} else {
		ri.AddInvisibleSharedGroup(groupLabel)
	}
	mergeSubscription(ri, subscription)
	r.fillNickname(ctx, ri)

	r.items[contactJID] = ri
	persist := !ri.IsTransient()
	upd := cloneItem(ri)
	r.mu.Unlock()

	if isNew {
		// keep the veto contract uniform: a transient proposal never persists
		r.disp.AddingContact(ctx, r, cloneItem(upd), false)
	}
	if persist {
		if err := r.persistItem(ctx, upd); err != nil {
			return err
		}
		r.mu.Lock()
		r.items[contactJID] = upd
		r.mu.Unlock()
	}
	if isNew {
		r.disp.ContactAdded(ctx, r, cloneItem(upd))
	} else {
		r.disp.ContactUpdated(ctx, r, cloneItem(upd))
	}
	return nil
}

// removeSharedContact drops a shared group relationship from the roster.
// An item that remains neither shared nor personally added is deleted.
func (r *Roster) removeSharedContact(ctx context.Context, contactJID, groupLabel string) error {
	r.mu.Lock()
	ri := r.items[contactJID]
	if ri == nil {
		r.mu.Unlock()
		return nil
	}
	ri.RemoveSharedGroup(groupLabel)

	if !ri.IsShared() && len(ri.Groups) == 0 && ri.IsTransient() {
		delete(r.items, contactJID)
		r.mu.Unlock()

		r.disp.ContactDeleted(ctx, r, cloneItem(ri))
		return nil
	}
	persist := !ri.IsTransient()
	upd := cloneItem(ri)
	r.mu.Unlock()

	if persist {
		if err := r.persistItem(ctx, upd); err != nil {
			return err
		}
		r.mu.Lock()
		r.items[contactJID] = upd
		r.mu.Unlock()
	}
	r.disp.ContactUpdated(ctx, r, cloneItem(upd))
	return nil
}

// renameSharedGroup relabels a shared group across all roster items.
func (r *Roster) renameSharedGroup(ctx context.Context, oldLabel, newLabel string) {
	r.mu.Lock()
	var updated []*rostermodel.Item
	for _, ri := range r.items {
		if !ri.InSharedGroup(oldLabel) {
			continue
		}
		ri.RenameSharedGroup(oldLabel, newLabel)
		updated = append(updated, cloneItem(ri))
	}
	r.mu.Unlock()

	for _, ri := range updated {
		r.disp.ContactUpdated(ctx, r, ri)
	}
}

// clear removes every roster item, shared group checks disabled, and drops
// all persistent rows in one sweep. Used on account teardown only.
func (r *Roster) clear(ctx context.Context) error {
	r.mu.Lock()
	removed := make([]*rostermodel.Item, 0, len(r.items))
	for _, ri := range r.items {
		removed = append(removed, ri)
	}
	r.items = make(map[string]*rostermodel.Item)
	r.mu.Unlock()

	if err := r.rep.DeleteRosterItems(ctx, r.username); err != nil {
		return err
	}
	for _, ri := range removed {
		r.disp.ContactDeleted(ctx, r, cloneItem(ri))
	}
	return nil
}

func (r *Roster) persistItem(ctx context.Context, ri *rostermodel.Item) error {
	if r.versioning {
		ver, err := r.rep.TouchRosterVersion(ctx, r.username)
		if err != nil {
			return err
		}
		ri.Ver = ver

		r.mu.Lock()
		r.version = ver
		r.mu.Unlock()
	}
	id, err := r.rep.UpsertRosterItem(ctx, ri)
	if err != nil {
		return err
	}
	ri.ID = id
	return nil
}

func (r *Roster) touchVersion(ctx context.Context) error {
	if !r.versioning {
		return nil
	}
	ver, err := r.rep.TouchRosterVersion(ctx, r.username)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.version = ver
	r.mu.Unlock()
	return nil
}

// fillNickname auto populates the contact display label from the peer
// account visible name the first time subscription reaches to or both.
// Must be invoked with the roster lock held.
func (r *Roster) fillNickname(ctx context.Context, ri *rostermodel.Item) {
	if len(ri.Name) > 0 {
		return
	}
	if ri.Subscription != rostermodel.To && ri.Subscription != rostermodel.Both {
		return
	}
	node := ri.JID
	if i := strings.Index(node, "@"); i >= 0 {
		node = node[:i]
	}
	usr, err := r.rep.FetchUser(ctx, node)
	if err != nil || usr == nil {
		return
	}
	ri.Name = usr.Name
}

// mergeSubscription widens the item subscription with a shared derived
// direction, never narrowing an existing grant.
func mergeSubscription(ri *rostermodel.Item, subscription string) {
	switch ri.Subscription {
	case rostermodel.Both:
		return
	case subscription, "":
		ri.Subscription = subscription
	case rostermodel.To:
		if subscription == rostermodel.From || subscription == rostermodel.Both {
			ri.Subscription = rostermodel.Both
		}
	case rostermodel.From:
		if subscription == rostermodel.To || subscription == rostermodel.Both {
			ri.Subscription = rostermodel.Both
		}
	default:
		ri.Subscription = subscription
	}
}

func cloneItem(ri *rostermodel.Item) *rostermodel.Item {
	cp := *ri
	cp.Groups = append([]string(nil), ri.Groups...)
	cp.SharedGroups = append([]string(nil), ri.SharedGroups...)
	cp.InvisibleSharedGroups = append([]string(nil), ri.InvisibleSharedGroups...)
	return &cp
}
