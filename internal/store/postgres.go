// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/hyperperms/hyperperms/internal/model"
)

// DB is the pgx surface the postgres store needs. Satisfied by
// *pgxpool.Pool in production and pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements UserRepository and GroupRepository on PostgreSQL.
// Node lists and name lists live in JSONB columns; the relational surface is
// deliberately narrow since resolution happens in memory, not in SQL.
type PostgresStore struct {
	db   DB
	pool *pgxpool.Pool // nil when constructed from an injected DB
}

// NewPostgresStore connects a pool to dsn and pings it with exponential
// backoff, so a store starting alongside its database comes up cleanly.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").Wrap(err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(100*time.Millisecond))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	}); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").Wrap(err)
	}

	return &PostgresStore{db: pool, pool: pool}, nil
}

// NewPostgresStoreWithDB wraps an existing pgx-compatible connection. Used
// by tests with pgxmock.
func NewPostgresStoreWithDB(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close releases the connection pool, if this store owns one.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// GetGroup implements GroupRepository.
func (s *PostgresStore) GetGroup(ctx context.Context, name string) (*model.Group, error) {
	name = model.NormalizeGroupName(name)
	row := s.db.QueryRow(ctx, `
		SELECT name, weight, parents, nodes
		FROM groups
		WHERE name = $1
	`, name)

	group, err := scanGroup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("GROUP_NOT_FOUND").With("name", name).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("GROUP_GET_FAILED").With("name", name).Wrap(err)
	}
	return group, nil
}

// UpsertGroup implements GroupRepository.
func (s *PostgresStore) UpsertGroup(ctx context.Context, group *model.Group) error {
	if group == nil || model.NormalizeGroupName(group.Name) == "" {
		return oops.Code("INVALID_GROUP").Errorf("group must be non-nil with a non-empty name")
	}

	parents, nodes, err := encodeGroupColumns(group)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO groups (name, weight, parents, nodes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET weight = EXCLUDED.weight,
		    parents = EXCLUDED.parents,
		    nodes = EXCLUDED.nodes
	`, model.NormalizeGroupName(group.Name), group.Weight, parents, nodes)
	if err != nil {
		return oops.Code("GROUP_UPSERT_FAILED").With("name", group.Name).Wrap(err)
	}
	return nil
}

// DeleteGroup implements GroupRepository.
func (s *PostgresStore) DeleteGroup(ctx context.Context, name string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM groups WHERE name = $1`, model.NormalizeGroupName(name))
	if err != nil {
		return oops.Code("GROUP_DELETE_FAILED").With("name", name).Wrap(err)
	}
	return nil
}

// ListGroups implements GroupRepository and the registry's GroupSource.
func (s *PostgresStore) ListGroups(ctx context.Context) ([]*model.Group, error) {
	rows, err := s.db.Query(ctx, `
		SELECT name, weight, parents, nodes
		FROM groups
		ORDER BY name
	`)
	if err != nil {
		return nil, oops.Code("GROUP_LIST_FAILED").Wrap(err)
	}
	defer rows.Close()

	var groups []*model.Group
	for rows.Next() {
		group, scanErr := scanGroup(rows)
		if scanErr != nil {
			return nil, oops.Code("GROUP_LIST_FAILED").Wrap(scanErr)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("GROUP_LIST_FAILED").Wrap(err)
	}
	return groups, nil
}

// GetUser implements UserRepository.
func (s *PostgresStore) GetUser(ctx context.Context, id ulid.ULID) (*model.User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, username, primary_group, inherited_groups, nodes
		FROM users
		WHERE id = $1
	`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return user, nil
}

// GetUserByName implements UserRepository.
func (s *PostgresStore) GetUserByName(ctx context.Context, username string) (*model.User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, username, primary_group, inherited_groups, nodes
		FROM users
		WHERE lower(username) = lower($1)
	`, username)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("username", username).Wrap(err)
	}
	return user, nil
}

// UpsertUser implements UserRepository.
func (s *PostgresStore) UpsertUser(ctx context.Context, user *model.User) error {
	if user == nil {
		return oops.Code("INVALID_USER").Errorf("user must not be nil")
	}

	inherited, nodes, err := encodeUserColumns(user)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO users (id, username, primary_group, inherited_groups, nodes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    primary_group = EXCLUDED.primary_group,
		    inherited_groups = EXCLUDED.inherited_groups,
		    nodes = EXCLUDED.nodes
	`, user.ID.String(), user.Username, model.NormalizeGroupName(user.PrimaryGroup), inherited, nodes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("DUPLICATE_USERNAME").With("username", user.Username).Wrap(err)
		}
		return oops.Code("USER_UPSERT_FAILED").With("id", user.ID.String()).Wrap(err)
	}
	return nil
}

// DeleteUser implements UserRepository.
func (s *PostgresStore) DeleteUser(ctx context.Context, id ulid.ULID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	return nil
}

// ListUsers implements UserRepository.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, username, primary_group, inherited_groups, nodes
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").Wrap(err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, oops.Code("USER_LIST_FAILED").Wrap(scanErr)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").Wrap(err)
	}
	return users, nil
}

func encodeGroupColumns(group *model.Group) (parents, nodes []byte, err error) {
	parents, err = json.Marshal(group.Parents)
	if err != nil {
		return nil, nil, oops.Code("GROUP_ENCODE_FAILED").With("name", group.Name).Wrap(err)
	}
	nodes, err = json.Marshal(EncodeNodes(group.Nodes))
	if err != nil {
		return nil, nil, oops.Code("GROUP_ENCODE_FAILED").With("name", group.Name).Wrap(err)
	}
	return parents, nodes, nil
}

func encodeUserColumns(user *model.User) (inherited, nodes []byte, err error) {
	inherited, err = json.Marshal(user.InheritedGroups)
	if err != nil {
		return nil, nil, oops.Code("USER_ENCODE_FAILED").With("id", user.ID.String()).Wrap(err)
	}
	nodes, err = json.Marshal(EncodeNodes(user.Nodes))
	if err != nil {
		return nil, nil, oops.Code("USER_ENCODE_FAILED").With("id", user.ID.String()).Wrap(err)
	}
	return inherited, nodes, nil
}

func scanGroup(row pgx.Row) (*model.Group, error) {
	var (
		name       string
		weight     int
		parentsRaw []byte
		nodesRaw   []byte
	)
	if err := row.Scan(&name, &weight, &parentsRaw, &nodesRaw); err != nil {
		return nil, err
	}

	var parents []string
	if len(parentsRaw) > 0 {
		if err := json.Unmarshal(parentsRaw, &parents); err != nil {
			return nil, oops.Code("GROUP_DECODE_FAILED").With("name", name).Wrap(err)
		}
	}
	nodes, err := decodeNodeColumn(nodesRaw)
	if err != nil {
		return nil, oops.With("group", name).Wrap(err)
	}
	return &model.Group{Name: name, Weight: weight, Parents: parents, Nodes: nodes}, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		idRaw        string
		username     string
		primaryGroup string
		inheritedRaw []byte
		nodesRaw     []byte
	)
	if err := row.Scan(&idRaw, &username, &primaryGroup, &inheritedRaw, &nodesRaw); err != nil {
		return nil, err
	}

	id, err := ulid.Parse(idRaw)
	if err != nil {
		return nil, oops.Code("USER_DECODE_FAILED").With("id", idRaw).Wrap(err)
	}
	var inherited []string
	if len(inheritedRaw) > 0 {
		if err := json.Unmarshal(inheritedRaw, &inherited); err != nil {
			return nil, oops.Code("USER_DECODE_FAILED").With("id", idRaw).Wrap(err)
		}
	}
	nodes, err := decodeNodeColumn(nodesRaw)
	if err != nil {
		return nil, oops.With("user", idRaw).Wrap(err)
	}
	return &model.User{
		ID:              id,
		Username:        username,
		PrimaryGroup:    primaryGroup,
		InheritedGroups: inherited,
		Nodes:           nodes,
	}, nil
}

func decodeNodeColumn(raw []byte) ([]model.Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var records []NodeRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, oops.Code("NODE_DECODE_FAILED").Wrap(err)
	}
	return DecodeNodes(records)
}
