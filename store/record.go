// Package store implements tabula's session container and the
// serialization/materialization engine that flattens the linked container
// graph (tables, records, region references) to a self-describing binary
// container and reconstructs it.
package store

import (
	"fmt"

	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/table"
)

// Record is an opaque attribute bag for domain metadata (device, subject,
// electrode, imaging-plane descriptors). The core stores and retrieves
// records by name and lets rows and other records reference them; records
// have no algorithmic behavior.
//
// A record can OWN child records (nested bags, serialized inline under the
// parent's path) and can LINK to records owned elsewhere (lookup-only edges,
// serialized as path references). Ownership edges must stay acyclic; the
// writer rejects cycles before persisting anything.
type Record struct {
	name string

	fields     map[string]table.Value
	fieldOrder []string

	children   map[string]*Record
	childOrder []string

	links     map[string]*Record
	linkOrder []string
}

// NewRecord creates an empty record with the given name.
// The name must be unique within the collection the record is registered to.
func NewRecord(name string) *Record {
	return &Record{
		name:     name,
		fields:   make(map[string]table.Value),
		children: make(map[string]*Record),
		links:    make(map[string]*Record),
	}
}

// Name returns the record name.
func (r *Record) Name() string { return r.name }

// Set sets an attribute field, replacing any previous value under the key.
func (r *Record) Set(key string, v table.Value) {
	if _, exists := r.fields[key]; !exists {
		r.fieldOrder = append(r.fieldOrder, key)
	}
	r.fields[key] = v
}

// Get returns the attribute field under key.
func (r *Record) Get(key string) (table.Value, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// Fields returns the attribute keys in insertion order.
func (r *Record) Fields() []string {
	return append([]string(nil), r.fieldOrder...)
}

// SetChild attaches a child record under an edge name. The edge is an
// ownership edge: the child serializes inline under this record unless it is
// already owned elsewhere, in which case the edge degrades to a reference.
func (r *Record) SetChild(edge string, child *Record) error {
	if child == nil {
		return fmt.Errorf("child record for edge %q must not be nil", edge)
	}
	if _, exists := r.children[edge]; exists {
		return fmt.Errorf("child edge %q: %w", edge, errs.ErrDuplicateRecord)
	}

	r.children[edge] = child
	r.childOrder = append(r.childOrder, edge)

	return nil
}

// Child returns the child record under the edge name.
func (r *Record) Child(edge string) (*Record, bool) {
	c, ok := r.children[edge]
	return c, ok
}

// Children returns the child edge names in insertion order.
func (r *Record) Children() []string {
	return append([]string(nil), r.childOrder...)
}

// SetLink attaches a lookup-only reference to a record owned elsewhere.
// Links never transfer ownership and therefore cannot create ownership cycles.
func (r *Record) SetLink(edge string, target *Record) error {
	if target == nil {
		return fmt.Errorf("link target for edge %q must not be nil", edge)
	}
	if _, exists := r.links[edge]; exists {
		return fmt.Errorf("link edge %q: %w", edge, errs.ErrDuplicateRecord)
	}

	r.links[edge] = target
	r.linkOrder = append(r.linkOrder, edge)

	return nil
}

// Link returns the linked record under the edge name.
func (r *Record) Link(edge string) (*Record, bool) {
	l, ok := r.links[edge]
	return l, ok
}

// Links returns the link edge names in insertion order.
func (r *Record) Links() []string {
	return append([]string(nil), r.linkOrder...)
}
