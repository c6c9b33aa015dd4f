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

package hook

const (
	// GroupCreated hook runs whenever a new group is created.
	GroupCreated = "group.created"

	// GroupMemberAdded hook runs whenever a member is added to a group.
	GroupMemberAdded = "group.member.added"

	// GroupMemberRemoved hook runs whenever a member is removed from a group.
	GroupMemberRemoved = "group.member.removed"

	// GroupAdminAdded hook runs whenever an admin is added to a group.
	GroupAdminAdded = "group.admin.added"

	// GroupAdminRemoved hook runs whenever an admin is removed from a group.
	GroupAdminRemoved = "group.admin.removed"

	// GroupPropertyChanged hook runs whenever a group property is modified.
	GroupPropertyChanged = "group.property.changed"

	// GroupDeleting hook runs right before a group is deleted.
	GroupDeleting = "group.deleting"
)

// group property keys carried by GroupPropertyChanged events.
const (
	// GroupPolicyProperty identifies a shared visibility policy change.
	GroupPolicyProperty = "sharedPolicy"

	// GroupSharedWithProperty identifies an allow list change.
	GroupSharedWithProperty = "sharedWith"

	// GroupDisplayNameProperty identifies a display name change.
	GroupDisplayNameProperty = "displayName"
)

// GroupEventInfo contains all information associated to a group event.
type GroupEventInfo struct {
	// GroupName is the name of the group associated to this event.
	GroupName string

	// Username is the member or admin account associated to this event.
	Username string

	// Property is the modified property key on a GroupPropertyChanged event.
	Property string

	// PrevValue holds the previous property value on a GroupPropertyChanged
	// event: the old policy string for GroupPolicyProperty, the old allow
	// list ([]string) for GroupSharedWithProperty, the old label for
	// GroupDisplayNameProperty.
	PrevValue interface{}
}
