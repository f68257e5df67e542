// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package store

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err, "should read embedded migrations directory")

	fileNames := make(map[string]bool)
	for _, entry := range entries {
		fileNames[entry.Name()] = true
	}
	assert.True(t, fileNames["000001_init.up.sql"], "initial up migration must be embedded")
	assert.True(t, fileNames["000001_init.down.sql"], "initial down migration must be embedded")

	// Every up migration needs a matching down migration, and all files
	// must follow the NNNNNN_name.(up|down).sql pattern golang-migrate expects.
	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for _, entry := range entries {
		name := entry.Name()
		assert.True(t, pattern.MatchString(name),
			"file %s should match pattern NNNNNN_name.(up|down).sql", name)
		if m := regexp.MustCompile(`^(.*)\.up\.sql$`).FindStringSubmatch(name); m != nil {
			assert.True(t, fileNames[m[1]+".down.sql"], "missing down migration for %s", name)
		}
	}
}
