// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package store

import (
	"time"

	"github.com/samber/oops"

	"github.com/hyperperms/hyperperms/internal/contexts"
	"github.com/hyperperms/hyperperms/internal/model"
)

// NodeRecord is the serialized form of a permission node, shared by the YAML
// store and the JSONB columns of the postgres store.
type NodeRecord struct {
	Permission string          `yaml:"permission" json:"permission"`
	Value      bool            `yaml:"value" json:"value"`
	Contexts   []ContextRecord `yaml:"contexts,omitempty" json:"contexts,omitempty"`
	Expiry     *time.Time      `yaml:"expiry,omitempty" json:"expiry,omitempty"`
}

// ContextRecord is one serialized context pair. A list rather than a map so
// multi-valued keys (world=a plus world=b) survive the round trip.
type ContextRecord struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

// EncodeNodes converts model nodes to their serialized records.
func EncodeNodes(nodes []model.Node) []NodeRecord {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]NodeRecord, 0, len(nodes))
	for _, n := range nodes {
		rec := NodeRecord{
			Permission: n.Permission(),
			Value:      n.Value(),
		}
		for _, p := range n.Contexts().Pairs() {
			rec.Contexts = append(rec.Contexts, ContextRecord{Key: p.Key, Value: p.Value})
		}
		if expiry := n.Expiry(); !expiry.IsZero() {
			t := expiry
			rec.Expiry = &t
		}
		out = append(out, rec)
	}
	return out
}

// DecodeNodes converts serialized records back to model nodes. Declaration
// order is preserved; resolution depends on it.
func DecodeNodes(records []NodeRecord) ([]model.Node, error) {
	if len(records) == 0 {
		return nil, nil
	}
	out := make([]model.Node, 0, len(records))
	for i, rec := range records {
		var opts []model.NodeOption
		if len(rec.Contexts) > 0 {
			builder := contexts.NewBuilder()
			for _, c := range rec.Contexts {
				builder.Add(c.Key, c.Value)
			}
			cs, err := builder.Build()
			if err != nil {
				return nil, oops.
					Code("INVALID_NODE_RECORD").
					With("index", i).
					With("permission", rec.Permission).
					Wrap(err)
			}
			opts = append(opts, model.WithContexts(cs))
		}
		if rec.Expiry != nil {
			opts = append(opts, model.WithExpiry(*rec.Expiry))
		}
		node, err := model.NewNode(rec.Permission, rec.Value, opts...)
		if err != nil {
			return nil, oops.
				Code("INVALID_NODE_RECORD").
				With("index", i).
				With("permission", rec.Permission).
				Wrap(err)
		}
		out = append(out, node)
	}
	return out, nil
}
