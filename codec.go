package cluster

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/cluster/schema"
)

// Tree serializes the whole graph into its portable tree form: scalar
// fields at the top level, the identity under the entity's identity
// column when persisted, and one ordered list of child trees per
// relation (recursively). The tree is independent of any store;
// materialized collections are read through the given context.
func (r *Record) Tree(ctx context.Context) (map[string]any, error) {
	out := make(map[string]any, len(r.values)+len(r.entity.Relations())+1)
	for _, fd := range r.entity.Fields() {
		if v, ok := r.values[fd.Name]; ok {
			out[fd.Name] = treeValue(v)
		}
	}
	if r.Persisted() {
		out[r.entity.IDColumn()] = r.id
	}
	for _, rd := range r.entity.Relations() {
		c, err := r.relation(rd.Name)
		if err != nil {
			return nil, err
		}
		items, err := c.All(ctx)
		if err != nil {
			return nil, err
		}
		children := make([]any, len(items))
		for i, item := range items {
			child, err := item.Tree(ctx)
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		out[rd.Name] = children
	}
	return out, nil
}

// FromTree reconstructs a record graph from its portable tree form.
// Every child is rebuilt in memory; children carrying an identity are
// treated as referring to potentially existing persisted rows, so a
// later save reconciles rather than duplicates them.
func FromTree(e *schema.Entity, tree map[string]any) (*Record, error) {
	r, err := New(e)
	if err != nil {
		return nil, err
	}
	if raw, ok := tree[e.IDColumn()]; ok && raw != nil {
		r.id = treeIdentity(raw)
	}
	for _, fd := range e.Fields() {
		raw, ok := tree[fd.Name]
		if !ok || raw == nil {
			continue
		}
		if err := r.Set(fd.Name, raw); err != nil {
			return nil, err
		}
	}
	for _, rd := range e.Relations() {
		raw, ok := tree[rd.Name]
		if !ok || raw == nil {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("cluster: relation %q: expected a list, got %T", rd.Name, raw)
		}
		child, _ := e.ChildOf(rd.Name)
		children := make([]*Record, 0, len(list))
		for i, el := range list {
			m, ok := el.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("cluster: relation %q, element %d: expected a mapping, got %T", rd.Name, i, el)
			}
			cr, err := FromTree(child, m)
			if err != nil {
				return nil, err
			}
			children = append(children, cr)
		}
		c, err := r.relation(rd.Name)
		if err != nil {
			return nil, err
		}
		if err := c.setLocal(children); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// EncodeJSON serializes the whole graph as JSON.
func (r *Record) EncodeJSON(ctx context.Context) ([]byte, error) {
	tree, err := r.Tree(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// DecodeJSON reconstructs a record graph from its JSON form.
func DecodeJSON(e *schema.Entity, data []byte) (*Record, error) {
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("cluster: decode %s: %w", e.Name(), err)
	}
	return FromTree(e, tree)
}

// EncodeMsgpack serializes the whole graph in its binary transport
// form.
func (r *Record) EncodeMsgpack(ctx context.Context) ([]byte, error) {
	tree, err := r.Tree(ctx)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(tree)
}

// DecodeMsgpack reconstructs a record graph from its binary transport
// form.
func DecodeMsgpack(e *schema.Entity, data []byte) (*Record, error) {
	var tree map[string]any
	if err := msgpack.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("cluster: decode %s: %w", e.Name(), err)
	}
	return FromTree(e, tree)
}

// treeValue converts a canonical value to its portable form. Times stay
// time.Time (both transports have a native encoding); UUIDs travel in
// canonical string form.
func treeValue(v any) any {
	if id, ok := v.(uuid.UUID); ok {
		return id.String()
	}
	return v
}

// treeIdentity normalizes a decoded identity value. JSON carries
// integral identities as float64.
func treeIdentity(v any) any {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return int64(n)
		}
	case int:
		return int64(n)
	case int64, string:
		return n
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case uint32:
		return int64(n)
	case uint16:
		return int64(n)
	case uint8:
		return int64(n)
	case uint:
		return int64(n)
	}
	return v
}
