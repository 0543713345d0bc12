package store

import (
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"github.com/arloliu/tabula/compress"
	"github.com/arloliu/tabula/encoding"
	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/format"
	"github.com/arloliu/tabula/internal/hash"
	"github.com/arloliu/tabula/internal/options"
	"github.com/arloliu/tabula/internal/pool"
	"github.com/arloliu/tabula/section"
	"github.com/arloliu/tabula/table"
)

// castagnoli is the CRC32-C table used for the container checksum.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// writeConfig collects the settings applied by WriteOption values.
type writeConfig struct {
	bigEndian   bool
	compression format.CompressionType
	createdAt   time.Time
}

// WriteOption is a functional option for Encode and Write.
type WriteOption = options.Option[*writeConfig]

// WithLittleEndian writes the container in little-endian byte order (the default).
func WithLittleEndian() WriteOption {
	return options.NoError(func(c *writeConfig) {
		c.bigEndian = false
	})
}

// WithBigEndian writes the container in big-endian byte order.
func WithBigEndian() WriteOption {
	return options.NoError(func(c *writeConfig) {
		c.bigEndian = true
	})
}

// WithCompression sets the section compression codec.
// The default is Zstd.
func WithCompression(compression format.CompressionType) WriteOption {
	return options.New(func(c *writeConfig) error {
		if !format.IsValidCompression(compression) {
			return fmt.Errorf("invalid compression type %d", compression)
		}
		c.compression = compression

		return nil
	})
}

// WithCreatedAt overrides the container creation timestamp.
func WithCreatedAt(t time.Time) WriteOption {
	return options.NoError(func(c *writeConfig) {
		c.createdAt = t
	})
}

func newWriteConfig(opts ...WriteOption) (*writeConfig, error) {
	cfg := &writeConfig{
		compression: format.CompressionZstd,
		createdAt:   time.Now(),
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Encode flattens the store into a self-describing binary container.
//
// The graph is validated before any byte is assembled: an ownership cycle
// through record child edges fails with errs.ErrCyclicGraph, an empty store
// with errs.ErrEmptyStore, and container paths whose hashes collide with
// errs.ErrHashCollision. A failed encode produces no output.
func Encode(st *Store, opts ...WriteOption) ([]byte, error) {
	cfg, err := newWriteConfig(opts...)
	if err != nil {
		return nil, err
	}

	if len(st.tableOrder) == 0 && len(st.collOrder) == 0 {
		return nil, errs.ErrEmptyStore
	}

	owners, err := assignOwners(st)
	if err != nil {
		return nil, err
	}

	flag := section.NewStoreFlag()
	if cfg.bigEndian {
		flag.WithBigEndian()
	}
	engine := flag.GetEndianEngine()

	codec, err := compress.GetCodec(cfg.compression)
	if err != nil {
		return nil, err
	}

	type pendingSection struct {
		path     string
		payload  []byte
		rowCount uint32
		kind     uint8
	}
	var sections []pendingSection

	// Region references address tables by name hash; reject colliding names
	// up front so every reference resolves unambiguously.
	tableHashes := make(map[uint64]string, len(st.tableOrder))
	for _, name := range st.tableOrder {
		h := hash.ID(name)
		if prev, exists := tableHashes[h]; exists {
			return nil, fmt.Errorf("table names %q and %q share hash %x: %w", prev, name, h, errs.ErrHashCollision)
		}
		tableHashes[h] = name
	}

	for _, name := range st.tableOrder {
		t := st.tables[name]
		if err := validateRegionTargets(st, t); err != nil {
			return nil, err
		}
		raw, err := encodeTable(t, engine)
		if err != nil {
			return nil, err
		}
		payload, err := codec.Compress(raw)
		if err != nil {
			return nil, fmt.Errorf("compressing table %q: %w", name, err)
		}
		sections = append(sections, pendingSection{
			path:     tablePath(name),
			payload:  payload,
			rowCount: uint32(t.RowCount()), //nolint:gosec
			kind:     section.DirKindTable,
		})
	}

	for _, collName := range st.collOrder {
		coll := st.collections[collName]
		for _, recName := range coll.order {
			rec := coll.records[recName]
			path := recordPath(collName, recName)
			raw, err := encodeRecord(rec, path, owners, engine)
			if err != nil {
				return nil, err
			}
			payload, err := codec.Compress(raw)
			if err != nil {
				return nil, fmt.Errorf("compressing record %q: %w", path, err)
			}
			sections = append(sections, pendingSection{
				path:     path,
				payload:  payload,
				rowCount: uint32(len(rec.fieldOrder)), //nolint:gosec
				kind:     section.DirKindRecord,
			})
		}
	}

	pathHashes := make(map[uint64]string, len(sections))
	for _, sec := range sections {
		h := hash.ID(sec.path)
		if prev, exists := pathHashes[h]; exists {
			return nil, fmt.Errorf("container paths %q and %q share hash %x: %w", prev, sec.path, h, errs.ErrHashCollision)
		}
		pathHashes[h] = sec.path
	}

	// Layout: header | directory | sections | names payload.
	dirSize := section.DirEntrySize * len(sections)
	offset := section.HeaderSize + dirSize

	dir := make([]byte, 0, dirSize)
	body := pool.GetContainerBuffer()
	defer pool.PutContainerBuffer(body)
	for _, sec := range sections {
		entry := section.DirEntry{
			NameHash:    hash.ID(sec.path),
			Offset:      uint32(offset),           //nolint:gosec
			Size:        uint32(len(sec.payload)), //nolint:gosec
			RowCount:    sec.rowCount,
			Kind:        sec.kind,
			Compression: uint8(cfg.compression),
		}
		dir = entry.AppendTo(dir, engine)
		body.MustWrite(sec.payload)
		offset += len(sec.payload)
	}

	nameEnc := encoding.NewVarStringEncoder()
	defer nameEnc.Finish()
	for _, sec := range sections {
		if err := nameEnc.Write(sec.path); err != nil {
			return nil, err
		}
	}

	recordCount := 0
	for _, collName := range st.collOrder {
		recordCount += len(st.collections[collName].order)
	}

	header := section.NewStoreHeader(cfg.createdAt)
	header.Flag = flag
	header.TableCount = uint32(len(st.tableOrder)) //nolint:gosec
	header.RecordCount = uint32(recordCount)       //nolint:gosec
	header.NamesOffset = uint32(offset)            //nolint:gosec

	out := make([]byte, 0, offset+nameEnc.Size())
	out = append(out, header.Bytes()...)
	out = append(out, dir...)
	out = append(out, body.Bytes()...)
	out = append(out, nameEnc.Bytes()...)

	// The checksum covers every byte after the header.
	checksum := crc32.Checksum(out[section.HeaderSize:], castagnoli)
	engine.PutUint32(out[28:32], checksum)

	return out, nil
}

// Write encodes the store and writes it to path atomically: the container is
// staged in a temporary file and renamed into place, so a failed write never
// leaves a partial container behind.
func Write(st *Store, path string, opts ...WriteOption) error {
	data, err := Encode(st, opts...)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing container %q: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing container %q: %w", path, err)
	}

	return nil
}

// validateRegionTargets checks that every region reference in the table
// points at a registered table. References are serialized as target-name
// hashes, so an unregistered target would encode fine and only fail on
// decode; rejecting it here keeps written containers readable.
func validateRegionTargets(st *Store, t *table.Table) error {
	for _, cs := range t.Schema() {
		if cs.Kind != format.KindRegion {
			continue
		}
		refs, _, err := t.RegionColumn(cs.Name)
		if err != nil {
			return err
		}
		for i, ref := range refs {
			if _, ok := st.tables[ref.TargetName()]; !ok {
				return fmt.Errorf("table %q column %q ref %d targets unregistered table %q: %w",
					t.Name(), cs.Name, i, ref.TargetName(), errs.ErrUnresolvedReference)
			}
		}
	}

	return nil
}

// assignOwners completes the ownership map for the write: top-level records
// keep their registration path, every unowned child gets owned by the first
// parent edge reaching it, and any child edge closing back onto the current
// ownership walk fails with errs.ErrCyclicGraph.
//
// The store's own ownership map is not modified.
func assignOwners(st *Store) (map[*Record]string, error) {
	owners := make(map[*Record]string, len(st.owners))
	for rec, path := range st.owners {
		owners[rec] = path
	}

	onStack := make(map[*Record]bool)

	var walk func(rec *Record, path string) error
	walk = func(rec *Record, path string) error {
		onStack[rec] = true
		defer delete(onStack, rec)

		for _, edge := range rec.childOrder {
			child := rec.children[edge]
			if onStack[child] {
				return fmt.Errorf("record %q child %q closes an ownership cycle: %w",
					rec.name, edge, errs.ErrCyclicGraph)
			}
			if _, owned := owners[child]; owned {
				// Owned elsewhere; the edge serializes as a reference.
				continue
			}
			childPath := path + "/" + edge
			owners[child] = childPath
			if err := walk(child, childPath); err != nil {
				return err
			}
		}

		return nil
	}

	for _, collName := range st.collOrder {
		coll := st.collections[collName]
		for _, recName := range coll.order {
			rec := coll.records[recName]
			if err := walk(rec, recordPath(collName, recName)); err != nil {
				return nil, err
			}
		}
	}

	return owners, nil
}
