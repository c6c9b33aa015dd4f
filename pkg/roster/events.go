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
	"errors"

	"github.com/go-kit/log/level"

	"github.com/vireo-im/vireo/pkg/hook"
	groupmodel "github.com/vireo-im/vireo/pkg/model/group"
	rostermodel "github.com/vireo-im/vireo/pkg/model/roster"
)

func (m *Manager) onGroupUserAdded(ctx context.Context, execCtx *hook.ExecutionContext) error {
	inf := execCtx.Info.(*hook.GroupEventInfo)

	g, err := m.rep.FetchGroup(ctx, inf.GroupName)
	if err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	if g.IsShared() {
		m.groupUserAdded(ctx, g, inf.Username)
		return nil
	}
	// joining a plain group may grant visibility of every shared group that
	// names it in its allow list
	groups, err := m.rep.FetchGroups(ctx)
	if err != nil {
		return err
	}
	for _, h := range groups {
		if h.Policy != groupmodel.SharedUsersOfGroups || !h.AllowsGroup(g.Name) {
			continue
		}
		for _, v := range h.Usernames() {
			if v == inf.Username {
				continue
			}
			m.pairAdd(ctx, h, inf.Username, v)
		}
	}
	return nil
}

func (m *Manager) onGroupUserRemoved(ctx context.Context, execCtx *hook.ExecutionContext) error {
	inf := execCtx.Info.(*hook.GroupEventInfo)

	g, err := m.rep.FetchGroup(ctx, inf.GroupName)
	if err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	if g.IsUser(inf.Username) {
		// retained under the other role
		return nil
	}
	if g.IsShared() {
		m.groupUserDeleted(ctx, g, inf.Username)
		return nil
	}
	groups, err := m.rep.FetchGroups(ctx)
	if err != nil {
		return err
	}
	for _, h := range groups {
		if h.Policy != groupmodel.SharedUsersOfGroups || !h.AllowsGroup(g.Name) {
			continue
		}
		if m.IsGroupVisible(ctx, h, inf.Username) {
			// still entitled through another group
			continue
		}
		for _, v := range h.Usernames() {
			if v == inf.Username {
				continue
			}
			m.pairRemove(ctx, h, inf.Username, v)
		}
	}
	return nil
}

func (m *Manager) onGroupPropertyChanged(ctx context.Context, execCtx *hook.ExecutionContext) error {
	inf := execCtx.Info.(*hook.GroupEventInfo)

	g, err := m.rep.FetchGroup(ctx, inf.GroupName)
	if err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	switch inf.Property {
	case hook.GroupPolicyProperty:
		oldPolicy, _ := inf.PrevValue.(string)
		oldG := *g
		oldG.Policy = oldPolicy
		return m.submitRebuild(&oldG, g)

	case hook.GroupSharedWithProperty:
		oldList, _ := inf.PrevValue.([]string)
		oldG := *g
		oldG.SharedWith = oldList
		return m.submitRebuild(&oldG, g)

	case hook.GroupDisplayNameProperty:
		oldName, _ := inf.PrevValue.(string)
		m.groupRenamed(ctx, g, oldName)
		return nil
	}
	return nil
}

func (m *Manager) onGroupDeleting(ctx context.Context, execCtx *hook.ExecutionContext) error {
	inf := execCtx.Info.(*hook.GroupEventInfo)

	g, err := m.rep.FetchGroup(ctx, inf.GroupName)
	if err != nil {
		return err
	}
	if g == nil || !g.IsShared() {
		return nil
	}
	for _, v := range g.Usernames() {
		m.groupUserDeleted(ctx, g, v)
	}
	return nil
}

func (m *Manager) onUserCreated(ctx context.Context, execCtx *hook.ExecutionContext) error {
	inf := execCtx.Info.(*hook.UserEventInfo)

	groups, err := m.rep.FetchGroups(ctx)
	if err != nil {
		return err
	}
	// members of every everybody group become visible to the new account;
	// its own roster is populated lazily on first access
	for _, g := range groups {
		if g.Policy != groupmodel.SharedEverybody {
			continue
		}
		label := g.SharedDisplayName()
		for _, v := range g.Usernames() {
			if v == inf.Username {
				continue
			}
			if vros := m.cachedRoster(v); vros != nil {
				if err := vros.addSharedContact(ctx, m.jidFor(inf.Username), label, false, rostermodel.From); err != nil {
					level.Warn(m.logger).Log("msg", "failed to update roster", "username", v, "err", err)
				}
			} else {
				_ = m.cache.evict(ctx, v)
			}
		}
	}
	return nil
}

func (m *Manager) onUserDeleting(ctx context.Context, execCtx *hook.ExecutionContext) error {
	inf := execCtx.Info.(*hook.UserEventInfo)
	username := inf.Username

	groups, err := m.rep.FetchGroups(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if g.Policy != groupmodel.SharedEverybody {
			continue
		}
		label := g.SharedDisplayName()
		for _, v := range g.Usernames() {
			if v == username {
				continue
			}
			if vros := m.cachedRoster(v); vros != nil {
				if err := vros.removeSharedContact(ctx, m.jidFor(username), label); err != nil {
					level.Warn(m.logger).Log("msg", "failed to update roster", "username", v, "err", err)
				}
			} else {
				_ = m.cache.evict(ctx, v)
			}
		}
	}
	// tear down the account own roster, shared group checks disabled
	ros, err := m.GetRoster(ctx, username)
	switch {
	case err == nil:
		if err := ros.clear(ctx); err != nil {
			level.Warn(m.logger).Log("msg", "failed to clear roster", "username", username, "err", err)
		}
	case errors.Is(err, ErrAccountNotFound):
		break
	default:
		return err
	}
	if err := m.DeleteRoster(ctx, username); err != nil {
		level.Warn(m.logger).Log("msg", "failed to evict roster", "username", username, "err", err)
	}
	// strip the deleted address out of every referencing roster using the
	// reverse index only: no full account scan
	cJID := m.jidFor(username)
	refs, err := m.rep.FetchRosterUsernames(ctx, cJID)
	if err != nil {
		return err
	}
	for _, a := range refs {
		if aros := m.cachedRoster(a); aros != nil {
			if err := aros.deleteContact(ctx, cJID, true); err != nil {
				level.Warn(m.logger).Log("msg", "failed to delete roster item", "username", a, "jid", cJID, "err", err)
			}
			continue
		}
		if err := m.rep.DeleteRosterItem(ctx, a, cJID); err != nil {
			level.Warn(m.logger).Log("msg", "failed to delete roster item", "username", a, "jid", cJID, "err", err)
			continue
		}
		_ = m.cache.evict(ctx, a)
	}
	return nil
}

// groupUserAdded fans a new shared group member out to every account
// entitled to see the group.
func (m *Manager) groupUserAdded(ctx context.Context, g *groupmodel.Group, username string) {
	affected, err := m.affectedUsers(ctx, g)
	if err != nil {
		level.Warn(m.logger).Log("msg", "failed to compute affected users", "group", g.Name, "err", err)
		return
	}
	for _, u := range affected {
		if u == username {
			continue
		}
		m.pairAdd(ctx, g, u, username)
		if g.IsUser(u) {
			// the new member sees its fellow members right away
			m.pairAdd(ctx, g, username, u)
		}
	}
}

// groupUserDeleted symmetrically drops a member association from every
// account that saw it through g.
func (m *Manager) groupUserDeleted(ctx context.Context, g *groupmodel.Group, username string) {
	affected, err := m.affectedUsers(ctx, g)
	if err != nil {
		level.Warn(m.logger).Log("msg", "failed to compute affected users", "group", g.Name, "err", err)
		return
	}
	for _, u := range affected {
		if u == username {
			continue
		}
		m.pairRemove(ctx, g, u, username)
	}
}

// groupRenamed pushes a shared group relabel to every affected cached
// roster. Membership does not change.
func (m *Manager) groupRenamed(ctx context.Context, g *groupmodel.Group, oldName string) {
	if !g.IsShared() {
		return
	}
	oldG := *g
	oldG.DisplayName = oldName
	oldLabel := oldG.SharedDisplayName()
	newLabel := g.SharedDisplayName()
	if oldLabel == newLabel {
		return
	}
	affected, err := m.affectedUsers(ctx, g)
	if err != nil {
		level.Warn(m.logger).Log("msg", "failed to compute affected users", "group", g.Name, "err", err)
		return
	}
	for _, u := range affected {
		if !m.isLocal(u) {
			continue
		}
		if ros := m.cachedRoster(u); ros != nil {
			ros.renameSharedGroup(ctx, oldLabel, newLabel)
		} else {
			_ = m.cache.evict(ctx, u)
		}
	}
}

// submitRebuild offloads a group visibility recomputation so a policy edit
// that may touch every account never blocks the thread that delivered the
// triggering event.
func (m *Manager) submitRebuild(oldG, newG *groupmodel.Group) error {
	return m.pool.Submit(func() {
		m.rebuildGroupVisibility(context.Background(), oldG, newG)
	})
}

// rebuildGroupVisibility removes every stale association computed under the
// old group definition, then re-adds associations under the new one. The
// remove phase strictly precedes the add phase.
func (m *Manager) rebuildGroupVisibility(ctx context.Context, oldG, newG *groupmodel.Group) {
	if oldG.IsShared() {
		affected, err := m.affectedUsers(ctx, oldG)
		if err != nil {
			level.Warn(m.logger).Log("msg", "failed to compute affected users", "group", oldG.Name, "err", err)
			return
		}
		for _, u := range affected {
			for _, v := range oldG.Usernames() {
				if v == u {
					continue
				}
				m.pairRemove(ctx, oldG, u, v)
			}
		}
	}
	if !newG.IsShared() {
		return
	}
	affected, err := m.affectedUsers(ctx, newG)
	if err != nil {
		level.Warn(m.logger).Log("msg", "failed to compute affected users", "group", newG.Name, "err", err)
		return
	}
	for _, u := range affected {
		for _, v := range newG.Usernames() {
			if v == u {
				continue
			}
			m.pairAdd(ctx, newG, u, v)
		}
	}
}

// pairAdd makes target visible to viewer through g: viewer's roster gains a
// labeled shared item, and target's roster, when already materialized,
// symmetrically gains the reverse association. Failures are contained per
// account.
func (m *Manager) pairAdd(ctx context.Context, g *groupmodel.Group, viewer, target string) {
	label := g.SharedDisplayName()

	if !m.isLocal(target) {
		if m.isLocal(viewer) {
			m.routeSubscription(ctx, viewer, target, subscribeType)
		}
		return
	}
	if !m.isLocal(viewer) {
		return
	}
	mutual, err := m.HasMutualVisibility(ctx, viewer, target)
	if err != nil {
		level.Warn(m.logger).Log("msg", "failed to compute mutual visibility", "viewer", viewer, "target", target, "err", err)
		return
	}
	sub := rostermodel.To
	if mutual {
		sub = rostermodel.Both
	}
	ros, err := m.GetRoster(ctx, viewer)
	if err != nil {
		level.Warn(m.logger).Log("msg", "skipping roster update", "username", viewer, "err", err)
		return
	}
	if err := ros.addSharedContact(ctx, m.jidFor(target), label, true, sub); err != nil {
		level.Warn(m.logger).Log("msg", "failed to update roster", "username", viewer, "err", err)
		return
	}
	if tros := m.cachedRoster(target); tros != nil {
		var terr error
		if mutual {
			terr = tros.addSharedContact(ctx, m.jidFor(viewer), label, true, rostermodel.Both)
		} else {
			terr = tros.addSharedContact(ctx, m.jidFor(viewer), label, false, rostermodel.From)
		}
		if terr != nil {
			level.Warn(m.logger).Log("msg", "failed to update roster", "username", target, "err", terr)
		}
	} else {
		_ = m.cache.evict(ctx, target)
	}
}

// pairRemove drops the g association between two accounts on both sides.
// Rosters not materialized on this node are evicted from the distributed
// cache so the next load rebuilds them.
func (m *Manager) pairRemove(ctx context.Context, g *groupmodel.Group, a, b string) {
	label := g.SharedDisplayName()

	if !m.isLocal(b) {
		if m.isLocal(a) {
			m.routeSubscription(ctx, a, b, unsubscribeType)
		}
		return
	}
	if !m.isLocal(a) {
		m.routeSubscription(ctx, b, a, unsubscribeType)
		return
	}
	if ros := m.cachedRoster(a); ros != nil {
		if err := ros.removeSharedContact(ctx, m.jidFor(b), label); err != nil {
			level.Warn(m.logger).Log("msg", "failed to update roster", "username", a, "err", err)
		}
	} else {
		_ = m.cache.evict(ctx, a)
	}
	if ros := m.cachedRoster(b); ros != nil {
		if err := ros.removeSharedContact(ctx, m.jidFor(a), label); err != nil {
			level.Warn(m.logger).Log("msg", "failed to update roster", "username", b, "err", err)
		}
	} else {
		_ = m.cache.evict(ctx, b)
	}
}
