package store

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/tabula/encoding"
	"github.com/arloliu/tabula/endian"
	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/internal/hash"
)

// Child edge encodings inside a record section. An ownership edge whose child
// is owned by this record serializes the child inline; an edge to a record
// owned elsewhere degrades to a path-hash reference, so a shared record is
// written exactly once.
const (
	childInline uint8 = 0x1
	childByRef  uint8 = 0x2
)

// Record section layout, before compression:
//
//	varstring name
//	uvarint fieldCount × (varstring key | tagged value)
//	uvarint childCount × (varstring edge | kind byte | inline payload or path hash)
//	uvarint linkCount  × (varstring edge | path hash)

// encodeRecord flattens a record into its section payload. path is the
// record's own container path; owners must hold the owning path of every
// record reachable through child and link edges.
func encodeRecord(rec *Record, path string, owners map[*Record]string, engine endian.EndianEngine) ([]byte, error) {
	buf := appendString(nil, rec.name)

	buf = binary.AppendUvarint(buf, uint64(len(rec.fieldOrder)))
	for _, key := range rec.fieldOrder {
		buf = appendString(buf, key)
		buf = appendValue(buf, rec.fields[key], engine)
	}

	buf = binary.AppendUvarint(buf, uint64(len(rec.childOrder)))
	for _, edge := range rec.childOrder {
		child := rec.children[edge]
		ownerPath, owned := owners[child]
		if !owned {
			return nil, fmt.Errorf("child %q of record %q has no owner: %w", edge, path, errs.ErrUnresolvedReference)
		}

		buf = appendString(buf, edge)
		if ownerPath == path+"/"+edge {
			nested, err := encodeRecord(child, ownerPath, owners, engine)
			if err != nil {
				return nil, err
			}
			buf = append(buf, childInline)
			buf = binary.AppendUvarint(buf, uint64(len(nested)))
			buf = append(buf, nested...)
		} else {
			buf = append(buf, childByRef)
			buf = engine.AppendUint64(buf, hash.ID(ownerPath))
		}
	}

	buf = binary.AppendUvarint(buf, uint64(len(rec.linkOrder)))
	for _, edge := range rec.linkOrder {
		target := rec.links[edge]
		ownerPath, owned := owners[target]
		if !owned {
			return nil, fmt.Errorf("link %q of record %q targets an unregistered record: %w",
				edge, path, errs.ErrUnresolvedReference)
		}
		buf = appendString(buf, edge)
		buf = engine.AppendUint64(buf, hash.ID(ownerPath))
	}

	return buf, nil
}

// pendingEdge is a record edge whose target is identified only by a path
// hash; the reader resolves all pending edges once every record section has
// been decoded.
type pendingEdge struct {
	rec     *Record
	edge    string
	hash    uint64
	isChild bool
}

// recordRegistry accumulates decoded records by path hash and the edges
// awaiting resolution.
type recordRegistry struct {
	byHash  map[uint64]*Record
	paths   map[uint64]string
	pending []pendingEdge
}

func newRecordRegistry() *recordRegistry {
	return &recordRegistry{
		byHash: make(map[uint64]*Record),
		paths:  make(map[uint64]string),
	}
}

// register adds a decoded record under its container path.
func (rr *recordRegistry) register(path string, rec *Record) error {
	h := hash.ID(path)
	if prev, exists := rr.paths[h]; exists {
		return fmt.Errorf("record paths %q and %q share hash %x: %w", prev, path, h, errs.ErrHashCollision)
	}
	rr.byHash[h] = rec
	rr.paths[h] = path

	return nil
}

// resolve wires every pending child and link edge to its decoded target.
func (rr *recordRegistry) resolve() error {
	for _, p := range rr.pending {
		target, ok := rr.byHash[p.hash]
		if !ok {
			return fmt.Errorf("edge %q of record %q references path hash %x: %w",
				p.edge, p.rec.name, p.hash, errs.ErrUnresolvedReference)
		}
		if p.isChild {
			p.rec.children[p.edge] = target
		} else {
			p.rec.links[p.edge] = target
		}
	}
	rr.pending = nil

	return nil
}

// decodeRecord materializes a record from its section payload. Inline
// children are decoded recursively and registered under their nested paths;
// referenced edges are queued on the registry for a later resolve pass.
func decodeRecord(data []byte, path string, engine endian.EndianEngine, rr *recordRegistry) (*Record, error) {
	name, offset, err := encoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("record %q name: %w", path, err)
	}

	rec := NewRecord(name)
	if err := rr.register(path, rec); err != nil {
		return nil, err
	}

	fieldCount, n, err := decodeUvarint(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("record %q field count: %w", path, err)
	}
	offset += n
	for i := uint64(0); i < fieldCount; i++ {
		key, n, err := encoding.DecodeString(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("record %q field %d key: %w", path, i, err)
		}
		offset += n
		v, n, err := decodeValue(data[offset:], engine)
		if err != nil {
			return nil, fmt.Errorf("record %q field %q: %w", path, key, err)
		}
		offset += n
		rec.Set(key, v)
	}

	childCount, n, err := decodeUvarint(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("record %q child count: %w", path, err)
	}
	offset += n
	for i := uint64(0); i < childCount; i++ {
		edge, n, err := encoding.DecodeString(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("record %q child %d edge: %w", path, i, err)
		}
		offset += n

		if offset >= len(data) {
			return nil, fmt.Errorf("record %q child %q: truncated kind: %w", path, edge, errs.ErrCorrupted)
		}
		kind := data[offset]
		offset++

		switch kind {
		case childInline:
			size, n, err := decodeUvarint(data[offset:])
			if err != nil {
				return nil, fmt.Errorf("record %q child %q size: %w", path, edge, err)
			}
			offset += n
			end := offset + int(size)
			if end > len(data) {
				return nil, fmt.Errorf("record %q child %q: truncated payload: %w", path, edge, errs.ErrCorrupted)
			}
			child, err := decodeRecord(data[offset:end], path+"/"+edge, engine, rr)
			if err != nil {
				return nil, err
			}
			offset = end
			if err := rec.SetChild(edge, child); err != nil {
				return nil, err
			}
		case childByRef:
			if offset+8 > len(data) {
				return nil, fmt.Errorf("record %q child %q: truncated reference: %w", path, edge, errs.ErrCorrupted)
			}
			rr.pending = append(rr.pending, pendingEdge{
				rec:     rec,
				edge:    edge,
				hash:    engine.Uint64(data[offset : offset+8]),
				isChild: true,
			})
			// Reserve the edge slot; resolve() fills it.
			rec.children[edge] = nil
			rec.childOrder = append(rec.childOrder, edge)
			offset += 8
		default:
			return nil, fmt.Errorf("record %q child %q: unknown edge kind %d: %w", path, edge, kind, errs.ErrCorrupted)
		}
	}

	linkCount, n, err := decodeUvarint(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("record %q link count: %w", path, err)
	}
	offset += n
	for i := uint64(0); i < linkCount; i++ {
		edge, n, err := encoding.DecodeString(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("record %q link %d edge: %w", path, i, err)
		}
		offset += n
		if offset+8 > len(data) {
			return nil, fmt.Errorf("record %q link %q: truncated reference: %w", path, edge, errs.ErrCorrupted)
		}
		rr.pending = append(rr.pending, pendingEdge{
			rec:  rec,
			edge: edge,
			hash: engine.Uint64(data[offset : offset+8]),
		})
		rec.links[edge] = nil
		rec.linkOrder = append(rec.linkOrder, edge)
		offset += 8
	}

	return rec, nil
}
