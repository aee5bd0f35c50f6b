package graph

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/agentic-research/tessera/internal/schema"
)

// Binary snapshot layout, all integers big-endian:
//
//	typedefs:  (u16 len, len bytes of declaration text)*  then u16 0
//	tiles:     (u64 id, u64 source, u64 target,
//	            u64 name_len, name bytes,
//	            u32 data_len, packed field data)*  until EOF
//
// Type definitions cover exactly the components used by at least one
// tile, de-duplicated and sorted; tiles are sorted by id. The same
// logical state always produces the same bytes.

var ErrBadSnapshot = errors.New("malformed snapshot")

// Save serializes every live tile and the component types they use.
func (e *Engine) Save() []byte {
	tiles := e.All()

	used := make(map[string]bool)
	for _, t := range tiles {
		used[t.Component] = true
	}
	defs := make([]string, 0, len(used))
	for name := range used {
		ct, err := e.types.Get(name)
		if err != nil {
			// A live tile always has a registered component.
			panic(fmt.Sprintf("graph: tile references unregistered component %q", name))
		}
		defs = append(defs, ct.Canonical())
	}
	sort.Strings(defs)

	var buf []byte
	for _, def := range defs {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(def)))
		buf = append(buf, def...)
	}
	buf = binary.BigEndian.AppendUint16(buf, 0)

	for _, t := range tiles {
		ct, err := e.types.Get(t.Component)
		if err != nil {
			panic(fmt.Sprintf("graph: tile references unregistered component %q", t.Component))
		}
		buf = binary.BigEndian.AppendUint64(buf, t.ID)
		buf = binary.BigEndian.AppendUint64(buf, t.Source)
		buf = binary.BigEndian.AppendUint64(buf, t.Target)
		buf = binary.BigEndian.AppendUint64(buf, uint64(len(t.Component)))
		buf = append(buf, t.Component...)
		data := schema.EncodeFields(ct, t.Fields)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
		buf = append(buf, data...)
	}
	return buf
}

type snapReader struct {
	data []byte
	off  int
}

func (r *snapReader) remaining() int { return len(r.data) - r.off }

func (r *snapReader) bytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("%w: truncated at offset %d, need %d more bytes", ErrBadSnapshot, r.off, n-r.remaining())
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *snapReader) u16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *snapReader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *snapReader) u64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Load merges a snapshot into the engine. Every loaded id is shifted by
// the engine's current counter value, so loading into a non-empty engine
// grafts the snapshot alongside existing tiles; loading into a fresh
// engine reproduces the saved ids. Type definitions for names already
// registered are ignored. On error the merge aborts in place: tiles
// decoded before the failure remain.
func (e *Engine) Load(data []byte) error {
	offset := e.counter.Load()
	r := &snapReader{data: data}

	for {
		n, err := r.u16()
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		def, err := r.bytes(int(n))
		if err != nil {
			return err
		}
		if err := e.RegisterTypes(string(def)); err != nil {
			return fmt.Errorf("%w: type definition %q: %v", ErrBadSnapshot, def, err)
		}
	}

	var maxID EntityId
	for r.remaining() > 0 {
		id, err := r.u64()
		if err != nil {
			return err
		}
		source, err := r.u64()
		if err != nil {
			return err
		}
		target, err := r.u64()
		if err != nil {
			return err
		}
		nameLen, err := r.u64()
		if err != nil {
			return err
		}
		name, err := r.bytes(int(nameLen))
		if err != nil {
			return err
		}
		dataLen, err := r.u32()
		if err != nil {
			return err
		}
		payload, err := r.bytes(int(dataLen))
		if err != nil {
			return err
		}

		ct, err := e.types.Get(string(name))
		if err != nil {
			return fmt.Errorf("%w: tile %d: %v", ErrBadSnapshot, id, err)
		}
		fields, err := schema.DecodeFields(ct, payload)
		if err != nil {
			return fmt.Errorf("%w: tile %d: %v", ErrBadSnapshot, id, err)
		}

		t := &Tile{
			ID:        id + offset,
			Source:    source + offset,
			Target:    target + offset,
			Component: string(name),
			Fields:    fields,
		}
		e.insert(t)
		if t.ID > maxID {
			maxID = t.ID
		}
	}

	// Move the counter past the loaded range so fresh allocations do not
	// have to skip over every grafted id one by one.
	for {
		cur := e.counter.Load()
		if cur >= maxID || e.counter.CompareAndSwap(cur, maxID) {
			return nil
		}
	}
}
