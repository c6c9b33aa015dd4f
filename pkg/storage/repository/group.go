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

	groupmodel "github.com/vireo-im/vireo/pkg/model/group"
)

// Group defines group directory provider interface.
// The roster subsystem consumes groups as read-only snapshots; group
// lifecycle changes arrive through the hook feed.
type Group interface {
	// FetchGroup retrieves a group snapshot from the directory.
	// If the group does not exist nil is returned.
	FetchGroup(ctx context.Context, name string) (*groupmodel.Group, error)

	// FetchGroups retrieves all group snapshots from the directory.
	FetchGroups(ctx context.Context) ([]*groupmodel.Group, error)
}
