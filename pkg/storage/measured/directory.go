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

package measuredrepository

import (
	"context"
	"time"

	groupmodel "github.com/vireo-im/vireo/pkg/model/group"
	usermodel "github.com/vireo-im/vireo/pkg/model/user"
	"github.com/vireo-im/vireo/pkg/storage/repository"
)

type measuredGroupRep struct {
	rep repository.Group
}

func (m *measuredGroupRep) FetchGroup(ctx context.Context, name string) (*groupmodel.Group, error) {
	t0 := time.Now()
	g, err := m.rep.FetchGroup(ctx, name)
	reportOpMetric(fetchOp, time.Since(t0).Seconds(), err == nil)
	return g, err
}

func (m *measuredGroupRep) FetchGroups(ctx context.Context) ([]*groupmodel.Group, error) {
	t0 := time.Now()
	gs, err := m.rep.FetchGroups(ctx)
	reportOpMetric(fetchOp, time.Since(t0).Seconds(), err == nil)
	return gs, err
}

type measuredUserRep struct {
	rep repository.User
}

func (m *measuredUserRep) FetchUser(ctx context.Context, username string) (*usermodel.User, error) {
	t0 := time.Now()
	usr, err := m.rep.FetchUser(ctx, username)
	reportOpMetric(fetchOp, time.Since(t0).Seconds(), err == nil)
	return usr, err
}

func (m *measuredUserRep) UserExists(ctx context.Context, username string) (bool, error) {
	t0 := time.Now()
	ok, err := m.rep.UserExists(ctx, username)
	reportOpMetric(fetchOp, time.Since(t0).Seconds(), err == nil)
	return ok, err
}

func (m *measuredUserRep) FetchUsernames(ctx context.Context) ([]string, error) {
	t0 := time.Now()
	usernames, err := m.rep.FetchUsernames(ctx)
	reportOpMetric(fetchOp, time.Since(t0).Seconds(), err == nil)
	return usernames, err
}
