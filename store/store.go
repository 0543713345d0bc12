package store

import (
	"fmt"
	"strings"

	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/table"
)

// Store is the top-level session container: it registers dynamic record
// tables and named record collections, and resolves cross-container
// references by name.
//
// A record is owned by whichever collection first registered it; rows and
// other records referencing it are lookup-only. One in-memory store is built
// or read at a time by one logical actor.
type Store struct {
	tables     map[string]*table.Table
	tableOrder []string

	collections map[string]*collection
	collOrder   []string

	// owners maps each registered record to its owning container path.
	// Child records get their owner assigned by the writer's ownership pass.
	owners map[*Record]string
}

type collection struct {
	name    string
	records map[string]*Record
	order   []string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tables:      make(map[string]*table.Table),
		collections: make(map[string]*collection),
		owners:      make(map[*Record]string),
	}
}

// AddTable registers a table under its name.
//
// Fails with errs.ErrDuplicateTable if a table with that name exists.
func (s *Store) AddTable(t *table.Table) error {
	if t == nil {
		return fmt.Errorf("table must not be nil")
	}
	if _, exists := s.tables[t.Name()]; exists {
		return fmt.Errorf("table %q: %w", t.Name(), errs.ErrDuplicateTable)
	}

	s.tables[t.Name()] = t
	s.tableOrder = append(s.tableOrder, t.Name())

	return nil
}

// GetTable returns the table registered under name.
//
// Fails with errs.ErrTableNotFound if absent.
func (s *Store) GetTable(name string) (*table.Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, errs.ErrTableNotFound)
	}

	return t, nil
}

// Tables returns the registered table names in registration order.
func (s *Store) Tables() []string {
	return append([]string(nil), s.tableOrder...)
}

// AddRecord registers a record into a named collection, creating the
// collection on first use. The first registration establishes ownership.
//
// Fails with errs.ErrDuplicateRecord if the collection already holds a
// record with that name, or if the record pointer is already registered
// anywhere (sharing happens through links and row references, not through
// double registration).
func (s *Store) AddRecord(collectionName string, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("record must not be nil")
	}
	if collectionName == "" {
		return fmt.Errorf("collection name must not be empty")
	}
	if _, registered := s.owners[rec]; registered {
		return fmt.Errorf("record %q already owned: %w", rec.Name(), errs.ErrDuplicateRecord)
	}

	coll, ok := s.collections[collectionName]
	if !ok {
		coll = &collection{
			name:    collectionName,
			records: make(map[string]*Record),
		}
		s.collections[collectionName] = coll
		s.collOrder = append(s.collOrder, collectionName)
	}

	if _, exists := coll.records[rec.Name()]; exists {
		return fmt.Errorf("record %q in collection %q: %w", rec.Name(), collectionName, errs.ErrDuplicateRecord)
	}

	coll.records[rec.Name()] = rec
	coll.order = append(coll.order, rec.Name())
	s.owners[rec] = recordPath(collectionName, rec.Name())

	return nil
}

// GetRecord returns the record registered under name in a collection.
//
// Fails with errs.ErrRecordNotFound if the collection or record is absent.
func (s *Store) GetRecord(collectionName, name string) (*Record, error) {
	coll, ok := s.collections[collectionName]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", collectionName, errs.ErrRecordNotFound)
	}
	rec, ok := coll.records[name]
	if !ok {
		return nil, fmt.Errorf("record %q in collection %q: %w", name, collectionName, errs.ErrRecordNotFound)
	}

	return rec, nil
}

// Collections returns the collection names in creation order.
func (s *Store) Collections() []string {
	return append([]string(nil), s.collOrder...)
}

// Records returns the record names of a collection in registration order.
func (s *Store) Records(collectionName string) []string {
	coll, ok := s.collections[collectionName]
	if !ok {
		return nil
	}

	return append([]string(nil), coll.order...)
}

// FindRecord resolves a "collection/name" reference, the form stored by
// table.RecordRef values.
func (s *Store) FindRecord(ref string) (*Record, error) {
	collName, name, ok := strings.Cut(ref, "/")
	if !ok {
		return nil, fmt.Errorf("record reference %q is not collection/name: %w", ref, errs.ErrRecordNotFound)
	}

	return s.GetRecord(collName, name)
}

// ResolveRegion resolves a region reference against the store's tables.
func (s *Store) ResolveRegion(ref table.RegionRef) ([]table.Row, error) {
	t, err := s.GetTable(ref.TargetName())
	if err != nil {
		return nil, err
	}

	return ref.Resolve(t)
}

// tablePath returns the container path of a table.
func tablePath(name string) string {
	return "/tables/" + name
}

// recordPath returns the container path of a top-level record.
func recordPath(collectionName, name string) string {
	return "/records/" + collectionName + "/" + name
}
