// Package statsfile reads and writes the persisted line-stats container.
//
// The container is a small binary envelope: an 8-byte magic string, a
// big-endian uint16 schema version, and a zstd-compressed msgpack payload
// holding the tick unit and every line entry in first-seen order. Identical
// snapshots encode to identical bytes.
package statsfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Erotemic/line-profiler/linestats"
)

// Schema version. Increment when the payload layout changes.
const schemaVersion uint16 = 1

var magic = [8]byte{'g', 'o', '-', 'l', 'p', 'r', 'o', 'f'}

// ErrFormat reports a corrupt or version-mismatched stats file. Decoding a
// bad payload never mutates any store.
var ErrFormat = errors.New("statsfile: invalid or incompatible stats file")

type payload struct {
	TickUnit float64
	Entries  []entry
}

type entry struct {
	SourceUnit string
	Line       int
	Routine    string
	Hits       uint64
	TotalTicks uint64
}

// Write encodes sn into w.
func Write(w io.Writer, sn *linestats.Snapshot) error {
	p := payload{
		TickUnit: sn.TickUnit,
		Entries:  make([]entry, 0, len(sn.Keys)),
	}

	for _, key := range sn.Keys {
		stat := sn.Stats[key]
		p.Entries = append(p.Entries, entry{
			SourceUnit: key.SourceUnit,
			Line:       key.Line,
			Routine:    key.Routine,
			Hits:       stat.Hits,
			TotalTicks: stat.TotalTicks,
		})
	}

	body, err := msgpack.Marshal(p)
	if err != nil {
		return fmt.Errorf("statsfile: encoding payload: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return fmt.Errorf("statsfile: creating compressor: %w", err)
	}
	compressed := enc.EncodeAll(body, nil)

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}

	if err := binary.Write(w, binary.BigEndian, schemaVersion); err != nil {
		return err
	}

	_, err = w.Write(compressed)

	return err
}

// Read decodes a container from r into a fresh store. The input is fully
// validated before the store is built.
func Read(r io.Reader) (*linestats.Store, error) {
	var header [10]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrFormat)
	}

	if !bytes.Equal(header[:8], magic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}

	version := binary.BigEndian.Uint16(header[8:])
	if version != schemaVersion {
		return nil, fmt.Errorf("%w: schema version %d, want %d",
			ErrFormat, version, schemaVersion)
	}

	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("statsfile: creating decompressor: %w", err)
	}
	defer dec.Close()

	body, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt body", ErrFormat)
	}

	var p payload
	if err := msgpack.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: corrupt payload", ErrFormat)
	}

	if p.TickUnit <= 0 {
		return nil, fmt.Errorf("%w: non-positive tick unit", ErrFormat)
	}

	store := linestats.NewStore(p.TickUnit)
	sn := &linestats.Snapshot{
		TickUnit: p.TickUnit,
		Keys:     make([]linestats.LineKey, 0, len(p.Entries)),
		Stats:    make(map[linestats.LineKey]linestats.LineStat, len(p.Entries)),
	}

	for _, e := range p.Entries {
		key := linestats.LineKey{
			SourceUnit: e.SourceUnit,
			Line:       e.Line,
			Routine:    e.Routine,
		}
		sn.Keys = append(sn.Keys, key)
		sn.Stats[key] = linestats.LineStat{Hits: e.Hits, TotalTicks: e.TotalTicks}
	}

	store.Merge(sn)

	return store, nil
}

// Dump writes sn to the file at path, replacing any existing file.
func Dump(path string, sn *linestats.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Write(f, sn); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// Load reads a stats file written by Dump.
func Load(path string) (*linestats.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f)
}
