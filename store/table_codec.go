package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/arloliu/tabula/encoding"
	"github.com/arloliu/tabula/endian"
	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/format"
	"github.com/arloliu/tabula/internal/hash"
	"github.com/arloliu/tabula/section"
	"github.com/arloliu/tabula/table"
)

// Table section layout, before compression:
//
//	TableHeader (16 B)
//	ColumnEntry × ColumnCount (32 B each, offsets relative to section start)
//	uvarint metaLen  | column meta payload (names, units, scales, defaults)
//	uvarint rowLen   | row-id payload (delta-varint)
//	column payloads (main, then aux) at the entry offsets

// encodeTable flattens a table into its section payload.
func encodeTable(t *table.Table, engine endian.EndianEngine) ([]byte, error) {
	schema := t.Schema()

	meta := make([]byte, 0, 64*len(schema))
	for _, cs := range schema {
		meta = appendString(meta, cs.Name)
		meta = appendString(meta, cs.Unit)
		if cs.HasScale {
			meta = engine.AppendUint64(meta, math.Float64bits(cs.Scale))
		}
		if cs.HasDefault {
			meta = appendValue(meta, cs.Default, engine)
		}
		if cs.HasDefaultSeq {
			meta = binary.AppendUvarint(meta, uint64(len(cs.DefaultSeq)))
			for _, v := range cs.DefaultSeq {
				meta = appendValue(meta, v, engine)
			}
		}
	}

	rowEnc := encoding.NewOffsetEncoder()
	defer rowEnc.Finish()
	if err := rowEnc.WriteSlice(t.RowIDs()); err != nil {
		return nil, fmt.Errorf("encoding row ids of table %q: %w", t.Name(), err)
	}
	rowPayload := rowEnc.Bytes()

	type colPayload struct {
		main []byte
		aux  []byte
	}
	payloads := make([]colPayload, 0, len(schema))
	entries := make([]section.ColumnEntry, 0, len(schema))

	for _, cs := range schema {
		entry := section.ColumnEntry{
			NameHash: hash.ID(cs.Name),
			DType:    uint8(cs.DType),
			Kind:     uint8(cs.Kind),
		}
		if cs.Unit != "" {
			entry.Flags |= section.ColFlagHasUnit
		}
		if cs.HasScale {
			entry.Flags |= section.ColFlagHasScale
		}
		if cs.HasDefault || cs.HasDefaultSeq {
			entry.Flags |= section.ColFlagHasDefault
		}
		if cs.Optional {
			entry.Flags |= section.ColFlagOptional
		}

		var p colPayload
		var err error
		switch cs.Kind {
		case format.KindPlain:
			col, cerr := t.PlainColumn(cs.Name)
			if cerr != nil {
				return nil, cerr
			}
			p.main, err = encodeColumnValues(col.DType(), col.Bits(), col.Texts(), engine)
		case format.KindRagged:
			col, cerr := t.RaggedColumn(cs.Name)
			if cerr != nil {
				return nil, cerr
			}
			flat := col.Flat()
			p.main, err = encodeColumnValues(flat.DType(), flat.Bits(), flat.Texts(), engine)
			if err == nil {
				p.aux, err = encodeBounds(col.Bounds())
			}
		case format.KindRegion:
			refs, bounds, cerr := t.RegionColumn(cs.Name)
			if cerr != nil {
				return nil, cerr
			}
			p.main = make([]byte, 0, 16*len(refs))
			for _, ref := range refs {
				p.main = appendRegionRef(p.main, ref, engine)
			}
			p.aux, err = encodeBounds(bounds)
		}
		if err != nil {
			return nil, fmt.Errorf("encoding column %q of table %q: %w", cs.Name, t.Name(), err)
		}

		payloads = append(payloads, p)
		entries = append(entries, entry)
	}

	// Assign payload offsets relative to the section start.
	prefixLen := section.TableHeaderSize + section.ColumnEntrySize*len(entries)
	cursor := prefixLen
	cursor += uvarintLen(uint64(len(meta))) + len(meta)
	cursor += uvarintLen(uint64(len(rowPayload))) + len(rowPayload)
	for i := range entries {
		entries[i].Offset = uint32(cursor)              //nolint:gosec
		entries[i].Size = uint32(len(payloads[i].main)) //nolint:gosec
		cursor += len(payloads[i].main)
		if payloads[i].aux != nil {
			entries[i].AuxOffset = uint32(cursor)             //nolint:gosec
			entries[i].AuxSize = uint32(len(payloads[i].aux)) //nolint:gosec
			cursor += len(payloads[i].aux)
		}
	}

	th := section.TableHeader{
		ColumnCount: uint16(len(entries)), //nolint:gosec
		RowCount:    uint32(t.RowCount()), //nolint:gosec
		NextRowID:   t.NextRowID(),
	}

	out := make([]byte, 0, cursor)
	out = th.AppendTo(out, engine)
	for i := range entries {
		out = entries[i].AppendTo(out, engine)
	}
	out = binary.AppendUvarint(out, uint64(len(meta)))
	out = append(out, meta...)
	out = binary.AppendUvarint(out, uint64(len(rowPayload)))
	out = append(out, rowPayload...)
	for i := range payloads {
		out = append(out, payloads[i].main...)
		out = append(out, payloads[i].aux...)
	}

	return out, nil
}

// decodeTable materializes a table from its decompressed section payload.
// tableNames maps table-name hashes to names for region-reference targets.
func decodeTable(name string, data []byte, engine endian.EndianEngine, tableNames map[uint64]string) (*table.Table, error) {
	if len(data) < section.TableHeaderSize {
		return nil, fmt.Errorf("table %q: truncated section: %w", name, errs.ErrCorrupted)
	}

	var th section.TableHeader
	if err := th.Parse(data[:section.TableHeaderSize], engine); err != nil {
		return nil, fmt.Errorf("table %q: %w", name, err)
	}

	colCount := int(th.ColumnCount)
	rowCount := int(th.RowCount)

	cursor := section.TableHeaderSize
	entries := make([]section.ColumnEntry, colCount)
	for i := 0; i < colCount; i++ {
		if cursor+section.ColumnEntrySize > len(data) {
			return nil, fmt.Errorf("table %q: truncated column entries: %w", name, errs.ErrCorrupted)
		}
		if err := entries[i].Parse(data[cursor:cursor+section.ColumnEntrySize], engine); err != nil {
			return nil, fmt.Errorf("table %q column %d: %w", name, i, err)
		}
		cursor += section.ColumnEntrySize
	}

	metaLen, n, err := decodeUvarint(data[cursor:])
	if err != nil {
		return nil, fmt.Errorf("table %q meta length: %w", name, err)
	}
	cursor += n
	if cursor+int(metaLen) > len(data) {
		return nil, fmt.Errorf("table %q: truncated meta payload: %w", name, errs.ErrCorrupted)
	}
	meta := data[cursor : cursor+int(metaLen)]
	cursor += int(metaLen)

	rowLen, n, err := decodeUvarint(data[cursor:])
	if err != nil {
		return nil, fmt.Errorf("table %q row-id length: %w", name, err)
	}
	cursor += n
	if cursor+int(rowLen) > len(data) {
		return nil, fmt.Errorf("table %q: truncated row-id payload: %w", name, errs.ErrCorrupted)
	}
	rowPayload := data[cursor : cursor+int(rowLen)]

	metas, err := decodeColumnMetas(meta, entries, engine)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", name, err)
	}

	t, err := table.NewTable(name)
	if err != nil {
		return nil, err
	}

	type colData struct {
		kind   format.ColumnKind
		values []table.Value
		bounds []int
		refs   []table.RegionRef
	}
	cols := make([]colData, colCount)

	for i, entry := range entries {
		cm := metas[i]
		if hash.ID(cm.name) != entry.NameHash {
			return nil, fmt.Errorf("table %q: column name %q does not match entry hash: %w",
				name, cm.name, errs.ErrCorrupted)
		}

		main, err := slicePayload(data, entry.Offset, entry.Size)
		if err != nil {
			return nil, fmt.Errorf("table %q column %q: %w", name, cm.name, err)
		}

		dtype := format.DType(entry.DType)
		kind := format.ColumnKind(entry.Kind)
		cols[i].kind = kind

		opts := columnOptions(cm, entry)
		switch kind {
		case format.KindPlain:
			if err := t.AddColumn(cm.name, dtype, opts...); err != nil {
				return nil, err
			}
			cols[i].values, err = decodeColumnValues(main, dtype, rowCount, engine)
			if err != nil {
				return nil, fmt.Errorf("table %q column %q: %w", name, cm.name, err)
			}
		case format.KindRagged:
			if err := t.AddRaggedColumn(cm.name, dtype, opts...); err != nil {
				return nil, err
			}
			aux, err := slicePayload(data, entry.AuxOffset, entry.AuxSize)
			if err != nil {
				return nil, fmt.Errorf("table %q column %q: %w", name, cm.name, err)
			}
			cols[i].bounds, err = decodeBounds(aux, rowCount)
			if err != nil {
				return nil, fmt.Errorf("table %q column %q: %w", name, cm.name, err)
			}
			flatLen := cols[i].bounds[len(cols[i].bounds)-1]
			cols[i].values, err = decodeColumnValues(main, dtype, flatLen, engine)
			if err != nil {
				return nil, fmt.Errorf("table %q column %q: %w", name, cm.name, err)
			}
		case format.KindRegion:
			if err := t.AddRegionColumn(cm.name, opts...); err != nil {
				return nil, err
			}
			aux, err := slicePayload(data, entry.AuxOffset, entry.AuxSize)
			if err != nil {
				return nil, fmt.Errorf("table %q column %q: %w", name, cm.name, err)
			}
			cols[i].bounds, err = decodeBounds(aux, rowCount)
			if err != nil {
				return nil, fmt.Errorf("table %q column %q: %w", name, cm.name, err)
			}
			refCount := cols[i].bounds[len(cols[i].bounds)-1]
			offset := 0
			cols[i].refs = make([]table.RegionRef, 0, refCount)
			for r := 0; r < refCount; r++ {
				ref, n, err := decodeRegionRef(main[offset:], engine, tableNames)
				if err != nil {
					return nil, fmt.Errorf("table %q column %q ref %d: %w", name, cm.name, r, err)
				}
				cols[i].refs = append(cols[i].refs, ref)
				offset += n
			}
		}
	}

	// Assemble rows through AppendRow so every append-time invariant applies
	// to persisted data as well.
	for pos := 0; pos < rowCount; pos++ {
		cells := make(table.RowCells, colCount)
		for i := range entries {
			cm := metas[i]
			switch cols[i].kind {
			case format.KindPlain:
				cells[cm.name] = table.V(cols[i].values[pos])
			case format.KindRagged:
				start, end := cols[i].bounds[pos], cols[i].bounds[pos+1]
				cells[cm.name] = table.Seq(cols[i].values[start:end]...)
			case format.KindRegion:
				start, end := cols[i].bounds[pos], cols[i].bounds[pos+1]
				cells[cm.name] = table.Regions(cols[i].refs[start:end]...)
			}
		}
		if _, err := t.AppendRow(cells); err != nil {
			return nil, fmt.Errorf("table %q row %d: %w", name, pos, err)
		}
	}

	ids, _, err := encoding.DecodeOffsets(rowPayload, rowCount)
	if err != nil {
		return nil, fmt.Errorf("table %q row ids: %w", name, err)
	}
	if err := t.RestoreRowIDs(ids, th.NextRowID); err != nil {
		return nil, err
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// columnMeta is the decoded per-column metadata.
type columnMeta struct {
	name      string
	unit      string
	scale     float64
	hasScale  bool
	def       table.Value
	hasDef    bool
	defSeq    []table.Value
	hasDefSeq bool
}

// decodeColumnMetas decodes the sequential column meta payload, guided by
// the entry flags.
func decodeColumnMetas(meta []byte, entries []section.ColumnEntry, engine endian.EndianEngine) ([]columnMeta, error) {
	out := make([]columnMeta, len(entries))
	offset := 0
	for i, entry := range entries {
		name, n, err := encoding.DecodeString(meta[offset:])
		if err != nil {
			return nil, err
		}
		offset += n

		unit, n, err := encoding.DecodeString(meta[offset:])
		if err != nil {
			return nil, err
		}
		offset += n

		cm := columnMeta{name: name, unit: unit}
		if entry.HasScale() {
			if offset+8 > len(meta) {
				return nil, fmt.Errorf("truncated scale for column %q: %w", name, errs.ErrCorrupted)
			}
			cm.scale = math.Float64frombits(engine.Uint64(meta[offset : offset+8]))
			cm.hasScale = true
			offset += 8
		}
		if entry.HasDefault() {
			if format.ColumnKind(entry.Kind) == format.KindRagged {
				count, n, err := decodeUvarint(meta[offset:])
				if err != nil {
					return nil, err
				}
				offset += n
				cm.defSeq = make([]table.Value, 0, count)
				for j := uint64(0); j < count; j++ {
					v, n, err := decodeValue(meta[offset:], engine)
					if err != nil {
						return nil, err
					}
					cm.defSeq = append(cm.defSeq, v)
					offset += n
				}
				cm.hasDefSeq = true
			} else {
				v, n, err := decodeValue(meta[offset:], engine)
				if err != nil {
					return nil, err
				}
				cm.def = v
				cm.hasDef = true
				offset += n
			}
		}
		out[i] = cm
	}

	return out, nil
}

// columnOptions converts decoded meta back into column options.
func columnOptions(cm columnMeta, entry section.ColumnEntry) []table.ColumnOption {
	var opts []table.ColumnOption
	if cm.unit != "" {
		opts = append(opts, table.WithUnit(cm.unit))
	}
	if cm.hasScale {
		opts = append(opts, table.WithScale(cm.scale))
	}
	if cm.hasDef {
		opts = append(opts, table.WithDefault(cm.def))
	}
	if cm.hasDefSeq {
		opts = append(opts, table.WithDefaultSeq(cm.defSeq...))
	}
	if entry.Optional() {
		opts = append(opts, table.WithOptional())
	}

	return opts
}

// encodeColumnValues encodes a column's backing storage.
func encodeColumnValues(dtype format.DType, bits []uint64, texts []string, engine endian.EndianEngine) ([]byte, error) {
	switch dtype {
	case format.DTypeInt, format.DTypeUint, format.DTypeFloat:
		enc := encoding.NewWordRawEncoder[uint64](engine)
		defer enc.Finish()
		enc.WriteSlice(bits)

		return append([]byte(nil), enc.Bytes()...), nil
	case format.DTypeBool:
		out := make([]byte, len(bits))
		for i, b := range bits {
			out[i] = byte(b)
		}

		return out, nil
	case format.DTypeString, format.DTypeRecord:
		enc := encoding.NewVarStringEncoder()
		defer enc.Finish()
		if err := enc.WriteSlice(texts); err != nil {
			return nil, err
		}

		return append([]byte(nil), enc.Bytes()...), nil
	default:
		return nil, fmt.Errorf("unknown dtype %d", dtype)
	}
}

// decodeColumnValues decodes count values of a column payload.
func decodeColumnValues(data []byte, dtype format.DType, count int, engine endian.EndianEngine) ([]table.Value, error) {
	out := make([]table.Value, 0, count)
	switch dtype {
	case format.DTypeInt, format.DTypeUint, format.DTypeFloat:
		if len(data) < count*8 {
			return nil, fmt.Errorf("payload %d bytes for %d values: %w", len(data), count, errs.ErrCorrupted)
		}
		dec := encoding.NewWordRawDecoder[uint64](engine)
		for bits := range dec.All(data, count) {
			out = append(out, table.FromBits(dtype, bits))
		}
	case format.DTypeBool:
		if len(data) < count {
			return nil, fmt.Errorf("payload %d bytes for %d bools: %w", len(data), count, errs.ErrCorrupted)
		}
		for i := 0; i < count; i++ {
			if data[i] > 1 {
				return nil, fmt.Errorf("bool byte %d at %d: %w", data[i], i, errs.ErrCorrupted)
			}
			out = append(out, table.FromBits(dtype, uint64(data[i])))
		}
	case format.DTypeString, format.DTypeRecord:
		strs, _, err := encoding.DecodeStrings(data, count)
		if err != nil {
			return nil, err
		}
		for _, s := range strs {
			out = append(out, table.FromText(dtype, s))
		}
	default:
		return nil, fmt.Errorf("unknown dtype %d: %w", dtype, errs.ErrCorrupted)
	}

	if len(out) != count {
		return nil, fmt.Errorf("decoded %d of %d values: %w", len(out), count, errs.ErrCorrupted)
	}

	return out, nil
}

// encodeBounds encodes ragged row bounds as delta varints.
func encodeBounds(bounds []int) ([]byte, error) {
	enc := encoding.NewOffsetEncoder()
	defer enc.Finish()
	for _, b := range bounds {
		if b < 0 {
			return nil, fmt.Errorf("negative bound %d: %w", b, errs.ErrCorrupted)
		}
		if err := enc.Write(uint64(b)); err != nil {
			return nil, err
		}
	}

	return append([]byte(nil), enc.Bytes()...), nil
}

// decodeBounds decodes rowCount+1 bounds and checks the structural
// invariants: starts at 0, non-decreasing (guaranteed by the codec).
func decodeBounds(data []byte, rowCount int) ([]int, error) {
	raw, _, err := encoding.DecodeOffsets(data, rowCount+1)
	if err != nil {
		return nil, err
	}
	if raw[0] != 0 {
		return nil, fmt.Errorf("bounds start at %d, not 0: %w", raw[0], errs.ErrCorrupted)
	}

	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = int(v) //nolint:gosec
	}

	return out, nil
}

// appendRegionRef appends one serialized region reference.
func appendRegionRef(buf []byte, ref table.RegionRef, engine endian.EndianEngine) []byte {
	buf = engine.AppendUint64(buf, hash.ID(ref.TargetName()))
	buf = append(buf, uint8(ref.Kind()))
	switch ref.Kind() {
	case table.SelRange:
		start, end := ref.Range()
		buf = binary.AppendUvarint(buf, uint64(start))
		buf = binary.AppendUvarint(buf, uint64(end))
	case table.SelRowList:
		ids := ref.RowIDs()
		buf = binary.AppendUvarint(buf, uint64(len(ids)))
		for _, id := range ids {
			buf = binary.AppendUvarint(buf, id)
		}
	}
	buf = binary.AppendUvarint(buf, uint64(ref.TargetRows()))

	return buf
}

// decodeRegionRef decodes one region reference, resolving the target-name
// hash through tableNames.
func decodeRegionRef(data []byte, engine endian.EndianEngine, tableNames map[uint64]string) (table.RegionRef, int, error) {
	if len(data) < 9 {
		return table.RegionRef{}, 0, fmt.Errorf("truncated region reference: %w", errs.ErrCorrupted)
	}

	targetHash := engine.Uint64(data[0:8])
	targetName, ok := tableNames[targetHash]
	if !ok {
		return table.RegionRef{}, 0, fmt.Errorf("region target hash %x: %w", targetHash, errs.ErrUnresolvedReference)
	}

	kind := table.SelectorKind(data[8])
	offset := 9

	switch kind {
	case table.SelRange:
		start, n, err := decodeUvarint(data[offset:])
		if err != nil {
			return table.RegionRef{}, 0, err
		}
		offset += n
		end, n, err := decodeUvarint(data[offset:])
		if err != nil {
			return table.RegionRef{}, 0, err
		}
		offset += n
		targetRows, n, err := decodeUvarint(data[offset:])
		if err != nil {
			return table.RegionRef{}, 0, err
		}
		offset += n
		if start > end {
			return table.RegionRef{}, 0, fmt.Errorf("region range [%d, %d): %w", start, end, errs.ErrCorrupted)
		}

		return table.RestoreRef(targetName, kind, int(start), int(end), nil, int(targetRows)), offset, nil //nolint:gosec
	case table.SelRowList:
		count, n, err := decodeUvarint(data[offset:])
		if err != nil {
			return table.RegionRef{}, 0, err
		}
		offset += n
		ids := make([]uint64, 0, count)
		for i := uint64(0); i < count; i++ {
			id, n, err := decodeUvarint(data[offset:])
			if err != nil {
				return table.RegionRef{}, 0, err
			}
			ids = append(ids, id)
			offset += n
		}
		targetRows, n, err := decodeUvarint(data[offset:])
		if err != nil {
			return table.RegionRef{}, 0, err
		}
		offset += n

		return table.RestoreRef(targetName, kind, 0, 0, ids, int(targetRows)), offset, nil //nolint:gosec
	default:
		return table.RegionRef{}, 0, fmt.Errorf("selector kind %d: %w", kind, errs.ErrIncompatibleSelector)
	}
}

// slicePayload bounds-checks a payload slice inside a section.
func slicePayload(data []byte, offset, size uint32) ([]byte, error) {
	end := int(offset) + int(size)
	if int(offset) > len(data) || end > len(data) {
		return nil, fmt.Errorf("payload [%d, %d) beyond section of %d bytes: %w", offset, end, len(data), errs.ErrCorrupted)
	}

	return data[offset:end], nil
}

// uvarintLen returns the encoded length of a uvarint.
func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}

	return n
}
