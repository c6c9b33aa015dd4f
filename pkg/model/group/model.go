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

package groupmodel

import (
	"bytes"
	"encoding/gob"
)

// group shared visibility policy values
const (
	// SharedNobody hides group membership from every roster.
	SharedNobody = "nobody"

	// SharedUsersOfGroups projects group membership into the rosters of the
	// group own members plus the members of every allowed group.
	SharedUsersOfGroups = "usersOfGroups"

	// SharedEverybody projects group membership into every registered
	// account roster.
	SharedEverybody = "everybody"
)

// Group represents a read-only group directory snapshot.
type Group struct {
	// Name is the unique group identifier.
	Name string

	// DisplayName is the label shown as the shared roster group.
	DisplayName string

	// Members contains the member account usernames.
	Members []string

	// Admins contains the admin account usernames.
	Admins []string

	// Policy is the group shared visibility policy.
	Policy string

	// SharedWith contains the group names allowed to see this group when
	// Policy is SharedUsersOfGroups.
	SharedWith []string
}

// IsShared tells whether group membership is projected into rosters at all.
func (g *Group) IsShared() bool {
	return g.Policy == SharedUsersOfGroups || g.Policy == SharedEverybody
}

// IsUser tells whether a given username is a group member or admin.
func (g *Group) IsUser(username string) bool {
	for _, m := range g.Members {
		if m == username {
			return true
		}
	}
	for _, a := range g.Admins {
		if a == username {
			return true
		}
	}
	return false
}

// Usernames returns the deduplicated union of group members and admins.
func (g *Group) Usernames() []string {
	seen := make(map[string]struct{}, len(g.Members)+len(g.Admins))
	var res []string
	for _, u := range g.Members {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		res = append(res, u)
	}
	for _, u := range g.Admins {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		res = append(res, u)
	}
	return res
}

// SharedDisplayName returns the label under which the group appears in
// rosters.
func (g *Group) SharedDisplayName() string {
	if len(g.DisplayName) > 0 {
		return g.DisplayName
	}
	return g.Name
}

// AllowsGroup tells whether a given group name appears in the allow list.
func (g *Group) AllowsGroup(name string) bool {
	for _, n := range g.SharedWith {
		if n == name {
			return true
		}
	}
	return false
}

// groupGob strips Group's codec methods so gob encodes the raw fields instead
// of recursing back into MarshalBinary/UnmarshalBinary.
type groupGob Group

// MarshalBinary satisfies model.Codec interface.
func (g *Group) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(buf).Encode((*groupGob)(g)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary satisfies model.Codec interface.
func (g *Group) UnmarshalBinary(b []byte) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode((*groupGob)(g))
}
