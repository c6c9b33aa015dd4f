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
	"bytes"
	"encoding/gob"
	"errors"

	"github.com/jackal-xmpp/stravaganza/v2/jid"
)

// roster item subscription values
const (
	None   = "none"
	From   = "from"
	To     = "to"
	Both   = "both"
	Remove = "remove"
)

// roster item ask and recv state values
const (
	AskNone        = "none"
	AskSubscribe   = "subscribe"
	AskUnsubscribe = "unsubscribe"
)

// ErrSharedGroupViolation is returned when trying to drop a personal group
// label that is backed by a live shared group relationship.
var ErrSharedGroupViolation = errors.New("rostermodel: cannot remove contact from shared group")

// Item represents a roster item entity: one directed relationship between an
// owning account and one peer address.
type Item struct {
	// ID is the persistent storage identifier. A zero value identifies a
	// transient item derived from shared group membership only.
	ID int64

	// Username is the item owner account name.
	Username string

	// JID is the peer bare JID. It may lack a local part when the peer is a
	// server or component address.
	JID string

	// Name is the display label the owner chose for the peer.
	Name string

	// Subscription is the presence visibility contract between owner and peer.
	Subscription string

	// Ask holds an outstanding subscription request sent to the peer with no
	// confirmation yet. Use AskState to read it: shared derived items never
	// expose a pending ask.
	Ask string

	// Recv holds an inbound request from the peer not yet surfaced to the owner.
	Recv string

	// Ver is the roster version the item was last touched at.
	Ver int

	// Groups contains the ordered personal group labels.
	Groups []string

	// SharedGroups contains the shared group names that caused this item to
	// exist without being a personally added contact.
	SharedGroups []string

	// InvisibleSharedGroups contains shared group names that justify a
	// from-only subscription internally but are never shown as labels.
	InvisibleSharedGroups []string
}

// ContactJID parses and returns the item peer JID.
func (ri *Item) ContactJID() *jid.JID {
	j, _ := jid.NewWithString(ri.JID, true)
	return j
}

// IsShared tells whether the item is derived from at least one shared group.
func (ri *Item) IsShared() bool {
	return len(ri.SharedGroups) > 0 || len(ri.InvisibleSharedGroups) > 0
}

// IsOnlyShared tells whether the item exists solely because of shared group
// membership, with no personal group label attached.
func (ri *Item) IsOnlyShared() bool {
	return ri.IsShared() && len(ri.Groups) == 0
}

// IsTransient tells whether the item was never backed by storage.
func (ri *Item) IsTransient() bool {
	return ri.ID == 0
}

// AskState returns the effective ask state. While the item is shared derived
// it always reads AskNone: shared groups never carry a pending ask.
func (ri *Item) AskState() string {
	if ri.IsShared() {
		return AskNone
	}
	if len(ri.Ask) == 0 {
		return AskNone
	}
	return ri.Ask
}

// RecvState returns the inbound request state.
func (ri *Item) RecvState() string {
	if len(ri.Recv) == 0 {
		return AskNone
	}
	return ri.Recv
}

// UpdateSubscription sets the item subscription state, auto filling the
// nickname from the peer visible name upon the first transition to a state
// that grants the owner presence visibility.
func (ri *Item) UpdateSubscription(subscription, peerName string) {
	ri.Subscription = subscription
	if len(ri.Name) > 0 {
		return
	}
	switch subscription {
	case To, Both:
		ri.Name = peerName
	}
}

// SetGroups replaces the item personal group labels. Dropping a label that is
// simultaneously backed by a live shared group relationship is rejected with
// ErrSharedGroupViolation.
func (ri *Item) SetGroups(groups []string) error {
	for _, group := range ri.Groups {
		if !containsString(ri.SharedGroups, group) {
			continue
		}
		if !containsString(groups, group) {
			return ErrSharedGroupViolation
		}
	}
	ri.Groups = groups
	return nil
}

// InGroup tells whether the item carries a given personal group label.
func (ri *Item) InGroup(group string) bool {
	return containsString(ri.Groups, group)
}

// InSharedGroup tells whether the item is derived from a given shared group,
// either visibly or invisibly.
func (ri *Item) InSharedGroup(group string) bool {
	return containsString(ri.SharedGroups, group) || containsString(ri.InvisibleSharedGroups, group)
}

// AddSharedGroup attaches a shared group reference to the item.
func (ri *Item) AddSharedGroup(group string) {
	ri.InvisibleSharedGroups = removeString(ri.InvisibleSharedGroups, group)
	if !containsString(ri.SharedGroups, group) {
		ri.SharedGroups = append(ri.SharedGroups, group)
	}
}

// AddInvisibleSharedGroup attaches a shared group reference that must not be
// surfaced as a group label.
func (ri *Item) AddInvisibleSharedGroup(group string) {
	if containsString(ri.SharedGroups, group) {
		return
	}
	if !containsString(ri.InvisibleSharedGroups, group) {
		ri.InvisibleSharedGroups = append(ri.InvisibleSharedGroups, group)
	}
}

// RemoveSharedGroup detaches a shared group reference from the item.
func (ri *Item) RemoveSharedGroup(group string) {
	ri.SharedGroups = removeString(ri.SharedGroups, group)
	ri.InvisibleSharedGroups = removeString(ri.InvisibleSharedGroups, group)
}

// RenameSharedGroup replaces a shared group reference name keeping its
// visibility.
func (ri *Item) RenameSharedGroup(oldName, newName string) {
	if containsString(ri.SharedGroups, oldName) {
		ri.SharedGroups = removeString(ri.SharedGroups, oldName)
		ri.AddSharedGroup(newName)
	}
	if containsString(ri.InvisibleSharedGroups, oldName) {
		ri.InvisibleSharedGroups = removeString(ri.InvisibleSharedGroups, oldName)
		ri.AddInvisibleSharedGroup(newName)
	}
}

// itemGob strips Item's codec methods so gob encodes the raw fields instead
// of recursing back into MarshalBinary/UnmarshalBinary.
type itemGob Item

// MarshalBinary satisfies model.Codec interface.
func (ri *Item) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(buf).Encode((*itemGob)(ri)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary satisfies model.Codec interface.
func (ri *Item) UnmarshalBinary(b []byte) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode((*itemGob)(ri))
}

// Items represents a roster items set.
type Items struct {
	Items []*Item
}

// itemsGob strips Items' codec methods so gob encodes the raw fields instead
// of recursing back into MarshalBinary/UnmarshalBinary.
type itemsGob Items

// MarshalBinary satisfies model.Codec interface.
func (is *Items) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(buf).Encode((*itemsGob)(is)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary satisfies model.Codec interface.
func (is *Items) UnmarshalBinary(b []byte) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode((*itemsGob)(is))
}

func containsString(ss []string, s string) bool {
	for _, s0 := range ss {
		if s0 == s {
			return true
		}
	}
	return false
}

func removeString(ss []string, s string) []string {
	for i, s0 := range ss {
		if s0 == s {
			return append(ss[:i], ss[i+1:]...)
		}
	}
	return ss
}
