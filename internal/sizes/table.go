// Package sizes holds a pattern's per-size value table and resolves
// size-dynamic lookups against it.
//
// Tables keep authoring order: the order sizes appear in the catalog entry is
// the order of the size selector, and the first size is the reset default.
package sizes

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Field is one named value of a size record.
type Field struct {
	Key   string
	Value string
}

// Record is the ordered set of values for a single size.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord builds a record from fields, keeping their order.
func NewRecord(fields ...Field) Record {
	r := Record{values: make(map[string]string, len(fields))}
	for _, f := range fields {
		r.set(f.Key, f.Value)
	}
	return r
}

func (r *Record) set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r Record) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the field names in authoring order.
func (r Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Table maps size keys to records.
type Table struct {
	order []string
	rows  map[string]Record
}

// Add appends a size. Adding an existing size replaces its record in place.
func (t *Table) Add(size string, fields ...Field) {
	if t.rows == nil {
		t.rows = make(map[string]Record)
	}
	if _, exists := t.rows[size]; !exists {
		t.order = append(t.order, size)
	}
	t.rows[size] = NewRecord(fields...)
}

// Keys returns the size keys in canonical order.
func (t Table) Keys() []string {
	return append([]string(nil), t.order...)
}

// Len returns the number of sizes.
func (t Table) Len() int { return len(t.order) }

// Has reports whether size is a key of the table.
func (t Table) Has(size string) bool {
	_, ok := t.rows[size]
	return ok
}

// First returns the first size in canonical order.
func (t Table) First() (string, bool) {
	if len(t.order) == 0 {
		return "", false
	}
	return t.order[0], true
}

// Record returns the record for size.
func (t Table) Record(size string) (Record, bool) {
	r, ok := t.rows[size]
	return r, ok
}

// DisplayName is the size's "name" field, falling back to the key.
func (t Table) DisplayName(size string) string {
	if v, ok := Resolve(t, size, "name"); ok && v != "" {
		return v
	}
	return size
}

// Abbr is the size's "abbr" field, falling back to the key.
func (t Table) Abbr(size string) string {
	if v, ok := Resolve(t, size, "abbr"); ok && v != "" {
		return v
	}
	return size
}

// Resolve looks up key for size. A false result means the caller should use
// the literal text embedded in the marker.
func Resolve(t Table, size, key string) (string, bool) {
	r, ok := t.rows[size]
	if !ok {
		return "", false
	}
	return r.Get(key)
}

// UnmarshalYAML decodes a mapping of size key to field mapping, keeping the
// order of both levels.
func (t *Table) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: sizes must be a mapping of size key to values", node.Line)
	}
	*t = Table{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		sizeNode, fieldsNode := node.Content[i], node.Content[i+1]
		var r Record
		if err := r.UnmarshalYAML(fieldsNode); err != nil {
			return fmt.Errorf("size %q: %w", sizeNode.Value, err)
		}
		if t.rows == nil {
			t.rows = make(map[string]Record)
		}
		if _, dup := t.rows[sizeNode.Value]; dup {
			return fmt.Errorf("line %d: duplicate size %q", sizeNode.Line, sizeNode.Value)
		}
		t.order = append(t.order, sizeNode.Value)
		t.rows[sizeNode.Value] = r
	}
	return nil
}

// UnmarshalYAML decodes a flat mapping of scalar values.
func (r *Record) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of field to value", node.Line)
	}
	*r = Record{values: make(map[string]string, len(node.Content)/2)}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: field %q must be a number or text", v.Line, k.Value)
		}
		r.set(k.Value, v.Value)
	}
	return nil
}

// MarshalJSON emits the table with an explicit order list, since JSON
// objects do not preserve key order once parsed.
func (t Table) MarshalJSON() ([]byte, error) {
	values := make(map[string]map[string]string, len(t.rows))
	for size, r := range t.rows {
		values[size] = r.values
	}
	return json.Marshal(struct {
		Order  []string                     `json:"order"`
		Values map[string]map[string]string `json:"values"`
	}{Order: t.Keys(), Values: values})
}
