// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega" //nolint:revive // gomega convention
	"github.com/samber/oops"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hyperperms/hyperperms/internal/contexts"
	"github.com/hyperperms/hyperperms/internal/model"
	"github.com/hyperperms/hyperperms/internal/store"
)

// setupPostgresContainer starts a PostgreSQL container, migrates the schema
// and returns a connected store.
func setupPostgresContainer() (*store.PostgresStore, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("hyperperms_test"),
		postgres.WithUsername("hyperperms"),
		postgres.WithPassword("hyperperms"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, nil, err
	}
	if err := migrator.Close(); err != nil {
		return nil, nil, err
	}

	pgStore, err := store.NewPostgresStore(ctx, connStr)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		pgStore.Close()
		_ = container.Terminate(ctx)
	}

	return pgStore, cleanup, nil
}

var _ = Describe("PostgresStore", func() {
	var pgStore *store.PostgresStore
	var cleanup func()

	BeforeEach(func() {
		var err error
		pgStore, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("groups", func() {
		It("round-trips a group with contexts and expiry", func() {
			ctx := context.Background()
			expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
			group := &model.Group{
				Name:    "admin",
				Weight:  100,
				Parents: []string{"default"},
				Nodes: []model.Node{
					model.MustNode("server.admin", true),
					model.MustNode("-chat.spam", true,
						model.WithContexts(contexts.MustOf(contexts.Pair{Key: "server", Value: "hub"})),
						model.WithExpiry(expiry)),
				},
			}
			Expect(pgStore.UpsertGroup(ctx, group)).To(Succeed())

			got, err := pgStore.GetGroup(ctx, "ADMIN")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("admin"))
			Expect(got.Weight).To(Equal(100))
			Expect(got.Parents).To(Equal([]string{"default"}))
			Expect(got.Nodes).To(HaveLen(2))
			value, ok := got.Nodes[1].Contexts().Value("server")
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal("hub"))
		})

		It("upsert replaces an existing group", func() {
			ctx := context.Background()
			Expect(pgStore.UpsertGroup(ctx, &model.Group{Name: "mod", Weight: 10})).To(Succeed())
			Expect(pgStore.UpsertGroup(ctx, &model.Group{Name: "mod", Weight: 20})).To(Succeed())

			got, err := pgStore.GetGroup(ctx, "mod")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Weight).To(Equal(20))

			groups, err := pgStore.ListGroups(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(groups).To(HaveLen(1))
		})

		It("returns ErrNotFound for missing groups", func() {
			_, err := pgStore.GetGroup(context.Background(), "ghost")
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("users", func() {
		It("round-trips a user and finds it case-insensitively by name", func() {
			ctx := context.Background()
			id := ulid.Make()
			user := &model.User{
				ID:              id,
				Username:        "Alice",
				PrimaryGroup:    "admin",
				InheritedGroups: []string{"builders"},
				Nodes:           []model.Node{model.MustNode("world.edit", true)},
			}
			Expect(pgStore.UpsertUser(ctx, user)).To(Succeed())

			byID, err := pgStore.GetUser(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(byID.Username).To(Equal("Alice"))
			Expect(byID.PrimaryGroup).To(Equal("admin"))

			byName, err := pgStore.GetUserByName(ctx, "ALICE")
			Expect(err).NotTo(HaveOccurred())
			Expect(byName.ID).To(Equal(id))
		})

		It("rejects a second user with the same name in different case", func() {
			ctx := context.Background()
			Expect(pgStore.UpsertUser(ctx, &model.User{ID: ulid.Make(), Username: "bob"})).To(Succeed())

			err := pgStore.UpsertUser(ctx, &model.User{ID: ulid.Make(), Username: "BOB"})
			Expect(err).To(HaveOccurred())
			oopsErr, ok := oops.AsOops(err)
			Expect(ok).To(BeTrue())
			Expect(oopsErr.Code()).To(Equal("DUPLICATE_USERNAME"))
		})

		It("deletes users idempotently", func() {
			ctx := context.Background()
			id := ulid.Make()
			Expect(pgStore.UpsertUser(ctx, &model.User{ID: id, Username: "carol"})).To(Succeed())
			Expect(pgStore.DeleteUser(ctx, id)).To(Succeed())
			Expect(pgStore.DeleteUser(ctx, id)).To(Succeed())

			_, err := pgStore.GetUser(ctx, id)
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})
})
