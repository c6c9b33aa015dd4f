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

package pgsqlrepository

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	groupmodel "github.com/vireo-im/vireo/pkg/model/group"
)

const (
	groupsTableName     = "groups"
	groupUsersTableName = "group_users"
)

type pgSQLGroupRep struct {
	conn conn
}

func (r *pgSQLGroupRep) FetchGroup(ctx context.Context, name string) (*groupmodel.Group, error) {
	q := sq.Select("name", "display_name", "policy", "shared_with").
		From(groupsTableName).
		Where(sq.Eq{"name": name})

	var g groupmodel.Group
	err := q.RunWith(r.conn).QueryRowContext(ctx).Scan(
		&g.Name,
		&g.DisplayName,
		&g.Policy,
		pq.Array(&g.SharedWith),
	)
	switch {
	case err == nil:
		break
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	default:
		return nil, err
	}
	if err := r.fetchGroupUsers(ctx, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *pgSQLGroupRep) FetchGroups(ctx context.Context) ([]*groupmodel.Group, error) {
	q := sq.Select("name", "display_name", "policy", "shared_with").
		From(groupsTableName).
		OrderBy("name")

	rows, err := q.RunWith(r.conn).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var gs []*groupmodel.Group
	for rows.Next() {
		var g groupmodel.Group
		if err := rows.Scan(&g.Name, &g.DisplayName, &g.Policy, pq.Array(&g.SharedWith)); err != nil {
			return nil, err
		}
		gs = append(gs, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, g := range gs {
		if err := r.fetchGroupUsers(ctx, g); err != nil {
			return nil, err
		}
	}
	return gs, nil
}

func (r *pgSQLGroupRep) fetchGroupUsers(ctx context.Context, g *groupmodel.Group) error {
	q := sq.Select("username", "admin").
		From(groupUsersTableName).
		Where(sq.Eq{"group_name": g.Name}).
		OrderBy("username")

	rows, err := q.RunWith(r.conn).QueryContext(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var username string
		var admin bool
		if err := rows.Scan(&username, &admin); err != nil {
			return err
		}
		if admin {
			g.Admins = append(g.Admins, username)
		} else {
			g.Members = append(g.Members, username)
		}
	}
	return rows.Err()
}
