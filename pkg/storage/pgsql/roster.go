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
	rostermodel "github.com/vireo-im/vireo/pkg/model/roster"
)

const (
	rosterVersionsTableName = "roster_versions"
	rosterItemsTableName    = "roster_items"
)

var rosterItemColumns = []string{
	"id",
	"username",
	"jid",
	"name",
	"subscription",
	"ask",
	"recv",
	"groups",
	"shared_groups",
	"invisible_shared_groups",
	"ver",
}

type pgSQLRosterRep struct {
	conn conn
}

func (r *pgSQLRosterRep) TouchRosterVersion(ctx context.Context, username string) (int, error) {
	q := sq.Insert(rosterVersionsTableName).
		Columns("username").
		Values(username).
		Suffix("ON CONFLICT (username) DO UPDATE SET ver = roster_versions.ver + 1 RETURNING ver")

	var ver int
	err := q.RunWith(r.conn).QueryRowContext(ctx).Scan(&ver)
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (r *pgSQLRosterRep) FetchRosterVersion(ctx context.Context, username string) (int, error) {
	q := sq.Select("ver").
		From(rosterVersionsTableName).
		Where(sq.Eq{"username": username})

	var ver int
	err := q.RunWith(r.conn).QueryRowContext(ctx).Scan(&ver)
	switch {
	case err == nil:
		return ver, nil
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	default:
		return 0, err
	}
}

func (r *pgSQLRosterRep) UpsertRosterItem(ctx context.Context, ri *rostermodel.Item) (int64, error) {
	cols := []string{
		"username",
		"jid",
		"name",
		"subscription",
		"ask",
		"recv",
		"groups",
		"shared_groups",
		"invisible_shared_groups",
		"ver",
	}
	vals := []interface{}{
		ri.Username,
		ri.JID,
		ri.Name,
		ri.Subscription,
		ri.Ask,
		ri.Recv,
		pq.Array(ri.Groups),
		pq.Array(ri.SharedGroups),
		pq.Array(ri.InvisibleSharedGroups),
		ri.Ver,
	}
	q := sq.Insert(rosterItemsTableName).
		Columns(cols...).
		Values(vals...).
		Suffix("ON CONFLICT (username, jid) DO UPDATE SET name = $3, subscription = $4, ask = $5, recv = $6, groups = $7, shared_groups = $8, invisible_shared_groups = $9, ver = $10 RETURNING id")

	var id int64
	if err := q.RunWith(r.conn).QueryRowContext(ctx).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *pgSQLRosterRep) DeleteRosterItem(ctx context.Context, username, jid string) error {
	_, err := sq.Delete(rosterItemsTableName).
		Where(sq.And{sq.Eq{"username": username}, sq.Eq{"jid": jid}}).
		RunWith(r.conn).
		ExecContext(ctx)
	return err
}

func (r *pgSQLRosterRep) DeleteRosterItems(ctx context.Context, username string) error {
	_, err := sq.Delete(rosterItemsTableName).
		Where(sq.Eq{"username": username}).
		RunWith(r.conn).
		ExecContext(ctx)
	return err
}

func (r *pgSQLRosterRep) FetchRosterItems(ctx context.Context, username string) ([]*rostermodel.Item, error) {
	q := sq.Select(rosterItemColumns...).
		From(rosterItemsTableName).
		Where(sq.Eq{"username": username}).
		OrderBy("created_at DESC")

	rows, err := q.RunWith(r.conn).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanRosterItems(rows)
}

func (r *pgSQLRosterRep) FetchRosterItem(ctx context.Context, username, jid string) (*rostermodel.Item, error) {
	q := sq.Select(rosterItemColumns...).
		From(rosterItemsTableName).
		Where(sq.And{sq.Eq{"username": username}, sq.Eq{"jid": jid}})

	ri, err := scanRosterItem(q.RunWith(r.conn).QueryRowContext(ctx))
	switch {
	case err == nil:
		return ri, nil
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	default:
		return nil, err
	}
}

func (r *pgSQLRosterRep) FetchRosterUsernames(ctx context.Context, jid string) ([]string, error) {
	q := sq.Select("username").
		From(rosterItemsTableName).
		Where(sq.Eq{"jid": jid})

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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRosterItem(scanner rowScanner) (*rostermodel.Item, error) {
	var ri rostermodel.Item
	err := scanner.Scan(
		&ri.ID,
		&ri.Username,
		&ri.JID,
		&ri.Name,
		&ri.Subscription,
		&ri.Ask,
		&ri.Recv,
		pq.Array(&ri.Groups),
		pq.Array(&ri.SharedGroups),
		pq.Array(&ri.InvisibleSharedGroups),
		&ri.Ver,
	)
	if err != nil {
		return nil, err
	}
	return &ri, nil
}

func scanRosterItems(rows *sql.Rows) ([]*rostermodel.Item, error) {
	var ris []*rostermodel.Item
	for rows.Next() {
		ri, err := scanRosterItem(rows)
		if err != nil {
			return nil, err
		}
		ris = append(ris, ri)
	}
	return ris, rows.Err()
}
