// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/hyperperms/hyperperms/internal/model"
)

// yamlFile is the on-disk layout of a YAMLStore database.
type yamlFile struct {
	Groups []yamlGroup `yaml:"groups,omitempty"`
	Users  []yamlUser  `yaml:"users,omitempty"`
}

type yamlGroup struct {
	Name    string       `yaml:"name"`
	Weight  int          `yaml:"weight,omitempty"`
	Parents []string     `yaml:"parents,omitempty"`
	Nodes   []NodeRecord `yaml:"nodes,omitempty"`
}

type yamlUser struct {
	ID              string       `yaml:"id"`
	Username        string       `yaml:"username,omitempty"`
	PrimaryGroup    string       `yaml:"primary-group,omitempty"`
	InheritedGroups []string     `yaml:"inherited-groups,omitempty"`
	Nodes           []NodeRecord `yaml:"nodes,omitempty"`
}

// YAMLStore implements UserRepository and GroupRepository over a single YAML
// file, for CLI use and deployments that do not want a database. The whole
// file is held in memory; every mutation rewrites it.
//
// Thread-safety: guarded by mu; safe for concurrent use within one process.
// Two processes writing the same file will lose updates to each other.
type YAMLStore struct {
	path string

	mu     sync.RWMutex
	groups map[string]*model.Group // normalized name -> group
	users  map[ulid.ULID]*model.User
}

// NewYAMLStore opens the store at path, loading it if the file exists. A
// missing file is an empty store; the file is created on first save.
func NewYAMLStore(path string) (*YAMLStore, error) {
	s := &YAMLStore{
		path:   path,
		groups: make(map[string]*model.Group),
		users:  make(map[ulid.ULID]*model.User),
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, oops.Code("YAML_STORE_READ_FAILED").With("path", path).Wrap(err)
	}

	var file yamlFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, oops.Code("YAML_STORE_PARSE_FAILED").With("path", path).Wrap(err)
	}

	for _, yg := range file.Groups {
		name := model.NormalizeGroupName(yg.Name)
		if name == "" {
			return nil, oops.Code("YAML_STORE_PARSE_FAILED").With("path", path).
				Errorf("group with empty name")
		}
		if _, dup := s.groups[name]; dup {
			return nil, oops.Code("DUPLICATE_GROUP").With("name", name).
				Errorf("group name %q is not case-insensitively unique", yg.Name)
		}
		nodes, err := DecodeNodes(yg.Nodes)
		if err != nil {
			return nil, oops.With("group", name).Wrap(err)
		}
		s.groups[name] = &model.Group{
			Name:    name,
			Weight:  yg.Weight,
			Parents: yg.Parents,
			Nodes:   nodes,
		}
	}

	for _, yu := range file.Users {
		id, err := ulid.Parse(yu.ID)
		if err != nil {
			return nil, oops.Code("YAML_STORE_PARSE_FAILED").With("id", yu.ID).
				Errorf("invalid user id: %v", err)
		}
		nodes, err := DecodeNodes(yu.Nodes)
		if err != nil {
			return nil, oops.With("user", yu.ID).Wrap(err)
		}
		s.users[id] = &model.User{
			ID:              id,
			Username:        yu.Username,
			PrimaryGroup:    yu.PrimaryGroup,
			InheritedGroups: yu.InheritedGroups,
			Nodes:           nodes,
		}
	}

	return s, nil
}

// save rewrites the backing file. Callers hold mu.
func (s *YAMLStore) save() error {
	file := yamlFile{}
	for _, g := range s.groups {
		file.Groups = append(file.Groups, yamlGroup{
			Name:    g.Name,
			Weight:  g.Weight,
			Parents: g.Parents,
			Nodes:   EncodeNodes(g.Nodes),
		})
	}
	for _, u := range s.users {
		file.Users = append(file.Users, yamlUser{
			ID:              u.ID.String(),
			Username:        u.Username,
			PrimaryGroup:    u.PrimaryGroup,
			InheritedGroups: u.InheritedGroups,
			Nodes:           EncodeNodes(u.Nodes),
		})
	}

	raw, err := yaml.Marshal(file)
	if err != nil {
		return oops.Code("YAML_STORE_ENCODE_FAILED").Wrap(err)
	}

	// Write-then-rename so a crash mid-write cannot truncate the database.
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return oops.Code("YAML_STORE_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return oops.Code("YAML_STORE_WRITE_FAILED").With("path", tmp).Wrap(err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return oops.Code("YAML_STORE_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	return nil
}

// GetGroup implements GroupRepository.
func (s *YAMLStore) GetGroup(_ context.Context, name string) (*model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[model.NormalizeGroupName(name)]
	if !ok {
		return nil, oops.Code("GROUP_NOT_FOUND").With("name", name).Wrap(ErrNotFound)
	}
	return g, nil
}

// UpsertGroup implements GroupRepository.
func (s *YAMLStore) UpsertGroup(_ context.Context, group *model.Group) error {
	if group == nil || model.NormalizeGroupName(group.Name) == "" {
		return oops.Code("INVALID_GROUP").Errorf("group must be non-nil with a non-empty name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[model.NormalizeGroupName(group.Name)] = group
	return s.save()
}

// DeleteGroup implements GroupRepository.
func (s *YAMLStore) DeleteGroup(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, model.NormalizeGroupName(name))
	return s.save()
}

// ListGroups implements GroupRepository.
func (s *YAMLStore) ListGroups(_ context.Context) ([]*model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	return out, nil
}

// GetUser implements UserRepository.
func (s *YAMLStore) GetUser(_ context.Context, id ulid.ULID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(ErrNotFound)
	}
	return u, nil
}

// GetUserByName implements UserRepository.
func (s *YAMLStore) GetUserByName(_ context.Context, username string) (*model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.ToLower(u.Username) == username {
			return u, nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(ErrNotFound)
}

// UpsertUser implements UserRepository.
func (s *YAMLStore) UpsertUser(_ context.Context, user *model.User) error {
	if user == nil {
		return oops.Code("INVALID_USER").Errorf("user must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return s.save()
}

// DeleteUser implements UserRepository.
func (s *YAMLStore) DeleteUser(_ context.Context, id ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return s.save()
}

// ListUsers implements UserRepository.
func (s *YAMLStore) ListUsers(_ context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}
