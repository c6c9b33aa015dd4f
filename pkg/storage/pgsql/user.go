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
	usermodel "github.com/vireo-im/vireo/pkg/model/user"
)

const usersTableName = "users"

type pgSQLUserRep struct {
	conn conn
}

func (r *pgSQLUserRep) FetchUser(ctx context.Context, username string) (*usermodel.User, error) {
	q := sq.Select("username", "name").
		From(usersTableName).
		Where(sq.Eq{"username": username})

	var usr usermodel.User
	err := q.RunWith(r.conn).QueryRowContext(ctx).Scan(&usr.Username, &usr.Name)
	switch {
	case err == nil:
		return &usr, nil
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	default:
		return nil, err
	}
}

func (r *pgSQLUserRep) UserExists(ctx context.Context, username string) (bool, error) {
	q := sq.Select("COUNT(*)").
		From(usersTableName).
		Where(sq.Eq{"username": username})

	var count int
	if err := q.RunWith(r.conn).QueryRowContext(ctx).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *pgSQLUserRep) FetchUsernames(ctx context.Context) ([]string, error) {
	q := sq.Select("username").
		From(usersTableName).
		OrderBy("username")

	rows, err := q.RunWith(r.conn).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, err
		}
		usernames = append(usernames, username)
	}
	return usernames, rows.Err()
}
