// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

// Package store persists users and groups. The resolver core never touches
// this package; it reads already-loaded entities through the group registry.
package store

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"

	"github.com/hyperperms/hyperperms/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// UserRepository manages user persistence.
type UserRepository interface {
	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id ulid.ULID) (*model.User, error)

	// GetUserByName retrieves a user by username (case-insensitive).
	GetUserByName(ctx context.Context, username string) (*model.User, error)

	// UpsertUser creates or replaces a user.
	UpsertUser(ctx context.Context, user *model.User) error

	// DeleteUser removes a user by ID. Deleting an absent user is not an error.
	DeleteUser(ctx context.Context, id ulid.ULID) error

	// ListUsers returns every stored user.
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// GroupRepository manages group persistence. ListGroups doubles as the
// registry's GroupSource.
type GroupRepository interface {
	// GetGroup retrieves a group by name (case-insensitive).
	GetGroup(ctx context.Context, name string) (*model.Group, error)

	// UpsertGroup creates or replaces a group.
	UpsertGroup(ctx context.Context, group *model.Group) error

	// DeleteGroup removes a group by name. Deleting an absent group is not an error.
	DeleteGroup(ctx context.Context, name string) error

	// ListGroups returns every stored group.
	ListGroups(ctx context.Context) ([]*model.Group, error)
}
