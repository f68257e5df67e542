// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperperms/hyperperms/internal/contexts"
	"github.com/hyperperms/hyperperms/internal/model"
	"github.com/hyperperms/hyperperms/internal/store"
)

// writeFixtureStore seeds a YAML store with a small group graph and one
// user, returning the store path.
func writeFixtureStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "perms.yaml")
	s, err := store.NewYAMLStore(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.UpsertGroup(ctx, &model.Group{
		Name:   "default",
		Weight: 0,
		Nodes: []model.Node{
			model.MustNode("chat.*", true),
			model.MustNode("-chat.spam", true),
		},
	}))
	require.NoError(t, s.UpsertGroup(ctx, &model.Group{
		Name:    "admin",
		Weight:  100,
		Parents: []string{"default"},
		Nodes: []model.Node{
			model.MustNode("server.*", true),
			model.MustNode("world.edit", true,
				model.WithContexts(contexts.MustOf(contexts.Pair{Key: "world", Value: "nether"}))),
		},
	}))
	require.NoError(t, s.UpsertUser(ctx, &model.User{
		ID:           ulid.MustParse("01ARZ3NDEKTSV4RRFFQ69G5FAV"),
		Username:     "alice",
		PrimaryGroup: "admin",
	}))
	return path
}

// execute runs the CLI with args and returns the combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCheckCmd_Grant(t *testing.T) {
	path := writeFixtureStore(t)

	out, err := execute(t, "check", "alice", "server.stop", "--storage.path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "true")
}

func TestCheckCmd_Negation(t *testing.T) {
	path := writeFixtureStore(t)

	out, err := execute(t, "check", "alice", "chat.spam", "--storage.path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "false")
}

func TestCheckCmd_Undefined(t *testing.T) {
	path := writeFixtureStore(t)

	out, err := execute(t, "check", "alice", "economy.pay", "--storage.path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "undefined")
}

func TestCheckCmd_ContextFlag(t *testing.T) {
	path := writeFixtureStore(t)

	out, err := execute(t, "check", "alice", "world.edit", "--storage.path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "undefined", "context-gated node must not apply globally")

	out, err = execute(t, "check", "alice", "world.edit",
		"--storage.path", path, "--context", "world=nether")
	require.NoError(t, err)
	assert.Contains(t, out, "true")
}

func TestCheckCmd_Trace(t *testing.T) {
	path := writeFixtureStore(t)

	out, err := execute(t, "check", "alice", "server.stop", "--storage.path", path, "--trace")
	require.NoError(t, err)
	assert.Contains(t, out, `matched "server.*"`)
	assert.Contains(t, out, "source group:admin")
}

func TestCheckCmd_Expand(t *testing.T) {
	storePath := writeFixtureStore(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
storage:
  path: `+storePath+`
permissions:
  - chat.send
  - chat.spam
  - server.stop
  - economy.pay
`), 0o600))

	out, err := execute(t, "check", "alice", "chat.send", "--config", configPath, "--expand")
	require.NoError(t, err)
	assert.Contains(t, out, "effective permissions:")
	assert.Contains(t, out, "chat.send")
	assert.Contains(t, out, "server.stop")
	assert.NotContains(t, out, "economy.pay")
}

func TestCheckCmd_UnknownUser(t *testing.T) {
	path := writeFixtureStore(t)

	_, err := execute(t, "check", "nobody", "chat.send", "--storage.path", path)
	require.Error(t, err)
}

func TestCheckCmd_BadContextPair(t *testing.T) {
	path := writeFixtureStore(t)

	_, err := execute(t, "check", "alice", "chat.send",
		"--storage.path", path, "--context", "world-nether")
	require.Error(t, err)
}

func TestParseContextPairs(t *testing.T) {
	cs, err := parseContextPairs(nil)
	require.NoError(t, err)
	assert.True(t, cs.IsEmpty())

	cs, err = parseContextPairs([]string{"World=Nether", "gamemode=creative"})
	require.NoError(t, err)
	assert.True(t, cs.Contains("world", "nether"))
	assert.True(t, cs.Contains("gamemode", "creative"))

	_, err = parseContextPairs([]string{"missing-delimiter"})
	require.Error(t, err)
}
