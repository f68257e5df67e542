// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package main

import (
	"context"

	"github.com/samber/oops"

	"github.com/hyperperms/hyperperms/internal/logging"
	"github.com/hyperperms/hyperperms/internal/registry"
	"github.com/hyperperms/hyperperms/internal/resolver"
	"github.com/hyperperms/hyperperms/internal/store"
)

// environment wires a command's collaborators from configuration: the
// backing store, the loaded group registry, alias and permission tables,
// and a resolver over all of them.
type environment struct {
	users    store.UserRepository
	groups   *registry.GroupRegistry
	aliases  *registry.Aliases
	perms    *registry.Permissions
	resolver *resolver.Resolver
	cleanup  func()
}

// storeFactory builds the repositories for a backend. Tests swap this out
// to avoid touching postgres.
type storeFactory func(ctx context.Context, cfg *Config) (store.UserRepository, store.GroupRepository, func(), error)

func openStore(ctx context.Context, cfg *Config) (store.UserRepository, store.GroupRepository, func(), error) {
	switch cfg.Storage.Backend {
	case "yaml":
		s, err := store.NewYAMLStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() {}, nil
	case "postgres":
		s, err := store.NewPostgresStore(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, s.Close, nil
	default:
		return nil, nil, nil, oops.Code("CONFIG_INVALID").Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildEnvironment loads groups from storage and assembles a resolver. The
// caller must invoke cleanup when done.
func buildEnvironment(ctx context.Context, cfg *Config, open storeFactory) (*environment, error) {
	logging.SetDefault("hyperperms", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))

	if open == nil {
		open = openStore
	}
	users, groupRepo, cleanup, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	groups := registry.NewGroupRegistry(groupRepo)
	if err := groups.Reload(ctx); err != nil {
		cleanup()
		return nil, err
	}

	aliases := registry.NewAliases()
	for native, alias := range cfg.Aliases {
		if err := aliases.Register(native, alias); err != nil {
			cleanup()
			return nil, err
		}
	}

	perms := registry.NewPermissions()
	perms.Register(cfg.Permissions...)

	res, err := resolver.New(resolver.Config{
		GroupLoader: groups.Loader(),
		Aliases:     aliases,
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	return &environment{
		users:    users,
		groups:   groups,
		aliases:  aliases,
		perms:    perms,
		resolver: res,
		cleanup:  cleanup,
	}, nil
}
