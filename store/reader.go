package store

import (
	"fmt"
	"hash/crc32"
	"os"
	"strings"
	"time"

	"github.com/arloliu/tabula/compress"
	"github.com/arloliu/tabula/encoding"
	"github.com/arloliu/tabula/endian"
	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/format"
	"github.com/arloliu/tabula/internal/hash"
	"github.com/arloliu/tabula/section"
	"github.com/arloliu/tabula/table"
)

// Read reads and fully decodes a container file.
func Read(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading container %q: %w", path, err)
	}

	return Decode(data)
}

// Decode materializes a store from container bytes.
//
// The header magic, schema version and CRC32-C checksum are verified before
// any section is decoded; tables are rebuilt through their append path, so
// every structural invariant holds on the decoded store as well.
func Decode(data []byte) (*Store, error) {
	header, engine, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	if crc32.Checksum(data[section.HeaderSize:], castagnoli) != header.Checksum {
		return nil, errs.ErrChecksumMismatch
	}

	entries, err := parseDirectory(data, header, engine)
	if err != nil {
		return nil, err
	}

	names, err := parseNames(data, header, len(entries))
	if err != nil {
		return nil, err
	}

	tableNames := make(map[uint64]string)
	for _, entry := range entries {
		if entry.Kind != section.DirKindTable {
			continue
		}
		path, ok := names[entry.NameHash]
		if !ok {
			return nil, fmt.Errorf("directory entry %x has no names payload entry: %w", entry.NameHash, errs.ErrCorrupted)
		}
		name, ok := strings.CutPrefix(path, "/tables/")
		if !ok {
			return nil, fmt.Errorf("table section path %q: %w", path, errs.ErrCorrupted)
		}
		tableNames[hash.ID(name)] = name
	}

	st := New()
	rr := newRecordRegistry()

	for _, entry := range entries {
		path := names[entry.NameHash]
		payload, err := sectionPayload(data, entry, path)
		if err != nil {
			return nil, err
		}

		switch entry.Kind {
		case section.DirKindTable:
			name := strings.TrimPrefix(path, "/tables/")
			t, err := decodeTable(name, payload, engine, tableNames)
			if err != nil {
				return nil, err
			}
			if t.RowCount() != int(entry.RowCount) {
				return nil, fmt.Errorf("table %q has %d rows, directory says %d: %w",
					name, t.RowCount(), entry.RowCount, errs.ErrCorrupted)
			}
			if err := st.AddTable(t); err != nil {
				return nil, err
			}
		case section.DirKindRecord:
			collName, recName, err := splitRecordPath(path)
			if err != nil {
				return nil, err
			}
			rec, err := decodeRecord(payload, path, engine, rr)
			if err != nil {
				return nil, err
			}
			if rec.Name() != recName {
				return nil, fmt.Errorf("record at %q is named %q: %w", path, rec.Name(), errs.ErrCorrupted)
			}
			if err := st.AddRecord(collName, rec); err != nil {
				return nil, err
			}
		}
	}

	if err := rr.resolve(); err != nil {
		return nil, err
	}

	// Nested records keep their decoded paths as owners so a re-encode
	// reproduces the same inline/reference split.
	for h, rec := range rr.byHash {
		st.owners[rec] = rr.paths[h]
	}

	return st, nil
}

// ReadTable decodes a single table from a container file without
// materializing the rest of the store.
//
// Only the header, directory and names payload are read eagerly; the table
// section is read at its directory offset. The container checksum is not
// verified on partial reads.
func ReadTable(path string, name string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening container %q: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("container %q: %w", path, err)
	}

	headerBuf := make([]byte, section.HeaderSize)
	if _, err := f.ReadAt(headerBuf, 0); err != nil {
		return nil, fmt.Errorf("container %q header: %w", path, err)
	}
	header, engine, err := parseHeader(headerBuf)
	if err != nil {
		return nil, err
	}

	entryCount := int(header.TableCount) + int(header.RecordCount)
	dirBuf := make([]byte, section.DirEntrySize*entryCount)
	if _, err := f.ReadAt(dirBuf, int64(header.DirOffset)); err != nil {
		return nil, fmt.Errorf("container %q directory: %w", path, err)
	}

	namesBuf := make([]byte, info.Size()-int64(header.NamesOffset))
	if _, err := f.ReadAt(namesBuf, int64(header.NamesOffset)); err != nil {
		return nil, fmt.Errorf("container %q names payload: %w", path, err)
	}
	paths, _, err := encoding.DecodeStrings(namesBuf, entryCount)
	if err != nil {
		return nil, fmt.Errorf("container %q names payload: %w", path, err)
	}

	tableNames := make(map[uint64]string)
	for _, p := range paths {
		if tn, ok := strings.CutPrefix(p, "/tables/"); ok {
			tableNames[hash.ID(tn)] = tn
		}
	}

	want := hash.ID(tablePath(name))
	for i := 0; i < entryCount; i++ {
		var entry section.DirEntry
		if err := entry.Parse(dirBuf[i*section.DirEntrySize:(i+1)*section.DirEntrySize], engine); err != nil {
			return nil, err
		}
		if entry.Kind != section.DirKindTable || entry.NameHash != want {
			continue
		}

		raw := make([]byte, entry.Size)
		if _, err := f.ReadAt(raw, int64(entry.Offset)); err != nil {
			return nil, fmt.Errorf("table %q section: %w", name, err)
		}
		codec, err := compress.GetCodec(format.CompressionType(entry.Compression))
		if err != nil {
			return nil, err
		}
		payload, err := codec.Decompress(raw)
		if err != nil {
			return nil, fmt.Errorf("decompressing table %q: %w", name, err)
		}

		return decodeTable(name, payload, engine, tableNames)
	}

	return nil, fmt.Errorf("table %q: %w", name, errs.ErrTableNotFound)
}

// SectionInfo describes one directory entry for inspection.
type SectionInfo struct {
	Path        string
	Kind        string
	Offset      uint32
	Size        uint32
	RowCount    uint32
	Compression format.CompressionType
}

// ContainerInfo summarizes a container for inspection without decoding any
// section payload.
type ContainerInfo struct {
	CreatedAt     time.Time
	SchemaVersion uint8
	LittleEndian  bool
	TableCount    uint32
	RecordCount   uint32
	Sections      []SectionInfo
}

// Inspect reads a container's header, directory and names payload and returns
// a structural summary. Section payloads are not decoded.
func Inspect(path string) (*ContainerInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading container %q: %w", path, err)
	}

	header, engine, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	if crc32.Checksum(data[section.HeaderSize:], castagnoli) != header.Checksum {
		return nil, errs.ErrChecksumMismatch
	}

	entries, err := parseDirectory(data, header, engine)
	if err != nil {
		return nil, err
	}
	names, err := parseNames(data, header, len(entries))
	if err != nil {
		return nil, err
	}

	info := &ContainerInfo{
		CreatedAt:     header.CreatedAtTime(),
		SchemaVersion: header.Flag.Version,
		LittleEndian:  header.Flag.IsLittleEndian(),
		TableCount:    header.TableCount,
		RecordCount:   header.RecordCount,
	}
	for _, entry := range entries {
		kind := "table"
		if entry.Kind == section.DirKindRecord {
			kind = "record"
		}
		info.Sections = append(info.Sections, SectionInfo{
			Path:        names[entry.NameHash],
			Kind:        kind,
			Offset:      entry.Offset,
			Size:        entry.Size,
			RowCount:    entry.RowCount,
			Compression: format.CompressionType(entry.Compression),
		})
	}

	return info, nil
}

// parseHeader parses and validates the store header, returning the declared
// endian engine.
func parseHeader(data []byte) (section.StoreHeader, endian.EndianEngine, error) {
	header, err := section.ParseStoreHeader(data)
	if err != nil {
		return section.StoreHeader{}, nil, err
	}

	return header, header.Flag.GetEndianEngine(), nil
}

// parseDirectory parses all directory entries declared by the header.
func parseDirectory(data []byte, header section.StoreHeader, engine endian.EndianEngine) ([]section.DirEntry, error) {
	count := int(header.TableCount) + int(header.RecordCount)
	end := int(header.DirOffset) + count*section.DirEntrySize
	if end > len(data) {
		return nil, fmt.Errorf("directory of %d entries beyond container of %d bytes: %w",
			count, len(data), errs.ErrCorrupted)
	}

	entries := make([]section.DirEntry, count)
	for i := 0; i < count; i++ {
		offset := int(header.DirOffset) + i*section.DirEntrySize
		if err := entries[i].Parse(data[offset:offset+section.DirEntrySize], engine); err != nil {
			return nil, err
		}
	}

	return entries, nil
}

// parseNames decodes the names payload and verifies each path against its
// hash, guarding partial and full reads against silent collisions.
func parseNames(data []byte, header section.StoreHeader, count int) (map[uint64]string, error) {
	if !header.Flag.HasNamesPayload() {
		return nil, fmt.Errorf("container has no names payload: %w", errs.ErrCorrupted)
	}
	if int(header.NamesOffset) > len(data) {
		return nil, fmt.Errorf("names payload at %d beyond container of %d bytes: %w",
			header.NamesOffset, len(data), errs.ErrCorrupted)
	}

	paths, _, err := encoding.DecodeStrings(data[header.NamesOffset:], count)
	if err != nil {
		return nil, fmt.Errorf("names payload: %w", err)
	}

	names := make(map[uint64]string, count)
	for _, p := range paths {
		names[hash.ID(p)] = p
	}

	return names, nil
}

// sectionPayload extracts and decompresses one section payload.
func sectionPayload(data []byte, entry section.DirEntry, path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("directory entry %x has no names payload entry: %w", entry.NameHash, errs.ErrCorrupted)
	}

	end := int(entry.Offset) + int(entry.Size)
	if int(entry.Offset) < section.HeaderSize || end > len(data) {
		return nil, fmt.Errorf("section %q at [%d, %d) beyond container of %d bytes: %w",
			path, entry.Offset, end, len(data), errs.ErrCorrupted)
	}

	codec, err := compress.GetCodec(format.CompressionType(entry.Compression))
	if err != nil {
		return nil, err
	}
	payload, err := codec.Decompress(data[entry.Offset:end])
	if err != nil {
		return nil, fmt.Errorf("decompressing section %q: %w", path, err)
	}

	return payload, nil
}

// splitRecordPath splits "/records/<collection>/<name>" into its parts.
func splitRecordPath(path string) (collection string, name string, err error) {
	rest, ok := strings.CutPrefix(path, "/records/")
	if !ok {
		return "", "", fmt.Errorf("record section path %q: %w", path, errs.ErrCorrupted)
	}
	collection, name, ok = strings.Cut(rest, "/")
	if !ok || collection == "" || name == "" {
		return "", "", fmt.Errorf("record section path %q: %w", path, errs.ErrCorrupted)
	}

	return collection, name, nil
}
