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

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	rostermodel "github.com/vireo-im/vireo/pkg/model/roster"
)

// EventListener observes roster lifecycle notifications.
type EventListener interface {
	// RosterLoaded is invoked once, right after a roster is first
	// materialized.
	RosterLoaded(ctx context.Context, ros *Roster)

	// AddingContact is invoked before a new contact is stored.
	// proposedPersistent carries the persistence decision made so far; the
	// effective decision is the logical AND over every listener return
	// value, so any single false vetoes persistence.
	AddingContact(ctx context.Context, ros *Roster, ri *rostermodel.Item, proposedPersistent bool) bool

	// ContactAdded is invoked after a new contact is added to a roster.
	ContactAdded(ctx context.Context, ros *Roster, ri *rostermodel.Item)

	// ContactUpdated is invoked after a roster contact is updated.
	ContactUpdated(ctx context.Context, ros *Roster, ri *rostermodel.Item)

	// ContactDeleted is invoked after a contact is removed from a roster.
	ContactDeleted(ctx context.Context, ros *Roster, ri *rostermodel.Item)
}

// NopEventListener provides a no-op EventListener base suitable for
// embedding, so listeners implement only the notifications they care about.
type NopEventListener struct{}

// RosterLoaded satisfies EventListener interface.
func (NopEventListener) RosterLoaded(_ context.Context, _ *Roster) {}

// AddingContact satisfies EventListener interface passing the proposed
// decision through unchanged.
func (NopEventListener) AddingContact(_ context.Context, _ *Roster, _ *rostermodel.Item, proposedPersistent bool) bool {
	return proposedPersistent
}

// ContactAdded satisfies EventListener interface.
func (NopEventListener) ContactAdded(_ context.Context, _ *Roster, _ *rostermodel.Item) {}

// ContactUpdated satisfies EventListener interface.
func (NopEventListener) ContactUpdated(_ context.Context, _ *Roster, _ *rostermodel.Item) {}

// ContactDeleted satisfies EventListener interface.
func (NopEventListener) ContactDeleted(_ context.Context, _ *Roster, _ *rostermodel.Item) {}

// Dispatcher is a process wide roster event listener registry.
// A listener that panics during dispatch is recovered and logged; the
// remaining listeners still run, and a panicking AddingContact listener
// never vetoes.
type Dispatcher struct {
	logger kitlog.Logger

	mu        sync.RWMutex
	listeners []EventListener
}

// NewDispatcher returns a new initialized roster event dispatcher.
func NewDispatcher(logger kitlog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// AddListener registers a listener on the dispatcher.
func (d *Dispatcher) AddListener(l EventListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// RemoveListener unregisters a previously registered listener.
func (d *Dispatcher) RemoveListener(l EventListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, registered := range d.listeners {
		if registered != l {
			continue
		}
		d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
		return
	}
}

// RosterLoaded notifies listeners that ros was first materialized.
func (d *Dispatcher) RosterLoaded(ctx context.Context, ros *Roster) {
	for _, l := range d.snapshot() {
		d.notify(func() { l.RosterLoaded(ctx, ros) })
	}
}

// AddingContact collects every listener vote on persisting a new contact,
// reducing them with logical AND over the proposed decision.
func (d *Dispatcher) AddingContact(ctx context.Context, ros *Roster, ri *rostermodel.Item, proposedPersistent bool) bool {
	persist := proposedPersistent
	for _, l := range d.snapshot() {
		vote := true
		d.notify(func() { vote = l.AddingContact(ctx, ros, ri, proposedPersistent) })
		persist = persist && vote
	}
	return persist
}

// ContactAdded notifies listeners that ri was added to ros.
func (d *Dispatcher) ContactAdded(ctx context.Context, ros *Roster, ri *rostermodel.Item) {
	for _, l := range d.snapshot() {
		d.notify(func() { l.ContactAdded(ctx, ros, ri) })
	}
}

// ContactUpdated notifies listeners that ri was updated on ros.
func (d *Dispatcher) ContactUpdated(ctx context.Context, ros *Roster, ri *rostermodel.Item) {
	for _, l := range d.snapshot() {
		d.notify(func() { l.ContactUpdated(ctx, ros, ri) })
	}
}

// ContactDeleted notifies listeners that ri was removed from ros.
func (d *Dispatcher) ContactDeleted(ctx context.Context, ros *Roster, ri *rostermodel.Item) {
	for _, l := range d.snapshot() {
		d.notify(func() { l.ContactDeleted(ctx, ros, ri) })
	}
}

func (d *Dispatcher) snapshot() []EventListener {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ls := make([]EventListener, len(d.listeners))
	copy(ls, d.listeners)
	return ls
}

func (d *Dispatcher) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			level.Error(d.logger).Log("msg", "roster listener panicked", "panic", r)
		}
	}()
	fn()
}
