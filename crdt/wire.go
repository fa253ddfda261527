package crdt

import (
	"sort"

	"github.com/cespare/xxhash"
	"github.com/learn-decentralized-systems/toyqueue"
	"github.com/learn-decentralized-systems/toytlv"
)

// Update blob grammar, ToyTLV records all the way down:
//
//	blob   = Y roots... H
//	Y      = header: C (clock) O (origin source id)
//	R      = root: K (key) value
//	value  = N | B | I | F | S | M | L
//	M      = T (identity stamp) entries...
//	entry  = E: K (key) T (stamp) (X | value)
//	L      = T (identity stamp) elems...
//	elem   = E: P (Z digit pairs...) G (identity) T (stamp) (X | value)
//	H      = xxhash of everything before it
//
// X marks a tombstone. The blob is a full-state snapshot: applying it to
// any doc merges, applying it twice is a no-op.

// Export encodes the doc's full state as an update blob.
func (d *Doc) Export() []byte {
	recs := toyqueue.Records{
		toytlv.Record('Y',
			toytlv.Record('C', ZipUint64(d.now)),
			toytlv.Record('O', ZipUint64(d.src)),
		),
	}
	for _, key := range d.rootKeys() {
		recs = append(recs, toytlv.Record('R',
			toytlv.Record('K', []byte(key)),
			encValue(d.roots[key]),
		))
	}
	payload := toytlv.Concat(recs...)
	sum := xxhash.Sum64(payload)
	return append(payload, toytlv.Record('H', ZipUint64(sum))...)
}

// Apply merges an update blob into the doc.
func (d *Doc) Apply(update []byte) error {
	tmp, err := decode(update)
	if err != nil {
		return err
	}
	d.merge(tmp)
	return nil
}

// ApplyAll merges a sequence of update blobs, in order. The merge is
// commutative so the order does not affect the final state.
func (d *Doc) ApplyAll(updates toyqueue.Records) error {
	for _, u := range updates {
		if err := d.Apply(u); err != nil {
			return err
		}
	}
	return nil
}

func (d *Doc) rootKeys() (keys []string) {
	for k := range d.roots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return
}

func encValue(v any) []byte {
	switch c := v.(type) {
	case nil:
		return toytlv.Record('N')
	case bool:
		b := byte(0)
		if c {
			b = 1
		}
		return toytlv.Record('B', []byte{b})
	case int64:
		return toytlv.Record('I', ZipInt64(c))
	case float64:
		return toytlv.Record('F', ZipFloat64(c))
	case string:
		return toytlv.Record('S', []byte(c))
	case *Map:
		return encMap(c)
	case *List:
		return encList(c)
	}
	// the conversion layer never hands the doc anything else
	panic("crdt: unsupported value type")
}

func encMap(m *Map) []byte {
	body := toyqueue.Records{toytlv.Record('T', m.id.zip())}
	for _, k := range m.entKeys() {
		e := m.ents[k]
		rec := toyqueue.Records{
			toytlv.Record('K', []byte(k)),
			toytlv.Record('T', e.at.zip()),
		}
		if e.dead {
			rec = append(rec, toytlv.Record('X'))
		} else {
			rec = append(rec, encValue(e.val))
		}
		body = append(body, toytlv.Record('E', toytlv.Concat(rec...)))
	}
	return toytlv.Record('M', toytlv.Concat(body...))
}

func (m *Map) entKeys() (keys []string) {
	for k := range m.ents {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return
}

func encList(l *List) []byte {
	body := toyqueue.Records{toytlv.Record('T', l.id.zip())}
	for _, e := range l.els {
		var pos []byte
		for _, dig := range e.pos {
			pos = append(pos, toytlv.Record('Z', ZipUint64Pair(dig.D, dig.Src))...)
		}
		rec := toyqueue.Records{
			toytlv.Record('P', pos),
			toytlv.Record('G', e.id.zip()),
			toytlv.Record('T', e.at.zip()),
		}
		if e.dead {
			rec = append(rec, toytlv.Record('X'))
		} else {
			rec = append(rec, encValue(e.val))
		}
		body = append(body, toytlv.Record('E', toytlv.Concat(rec...)))
	}
	return toytlv.Record('L', toytlv.Concat(body...))
}

// decode parses an update blob into a throwaway doc.
func decode(update []byte) (*Doc, error) {
	payload, sum, err := splitTrailer(update)
	if err != nil {
		return nil, err
	}
	if xxhash.Sum64(payload) != sum {
		return nil, ErrChecksum
	}
	d := &Doc{roots: make(map[string]*Map)}
	head, rest := toytlv.Take('Y', payload)
	if head == nil {
		return nil, ErrBadUpdate
	}
	clock, head := toytlv.Take('C', head)
	if clock == nil {
		return nil, ErrBadUpdate
	}
	d.now = UnzipUint64(clock)
	origin, _ := toytlv.Take('O', head)
	if origin == nil {
		return nil, ErrBadUpdate
	}
	d.src = UnzipUint64(origin)
	for len(rest) > 0 {
		var root []byte
		root, rest = toytlv.Take('R', rest)
		if root == nil {
			return nil, ErrBadUpdate
		}
		key, root := toytlv.Take('K', root)
		if key == nil {
			return nil, ErrBadUpdate
		}
		v, _, err := decValue(d, root)
		if err != nil {
			return nil, err
		}
		m, ok := v.(*Map)
		if !ok {
			return nil, ErrBadUpdate
		}
		d.roots[string(key)] = m
	}
	return d, nil
}

// splitTrailer locates the final H record and returns the bytes before it
// plus the checksum it carries.
func splitTrailer(update []byte) (payload []byte, sum uint64, err error) {
	off := 0
	for off < len(update) {
		lit, hlen, blen := toytlv.ProbeHeader(update[off:])
		if lit == 0 || lit == '-' || off+hlen+blen > len(update) {
			return nil, 0, ErrBadUpdate
		}
		if lit == 'H' && off+hlen+blen == len(update) {
			return update[:off], UnzipUint64(update[off+hlen : off+hlen+blen]), nil
		}
		off += hlen + blen
	}
	return nil, 0, ErrBadUpdate
}

func decValue(d *Doc, data []byte) (v any, rest []byte, err error) {
	lit, _, _ := toytlv.ProbeHeader(data)
	body, rest := toytlv.Take(lit, data)
	if body == nil && lit != 'N' {
		return nil, nil, ErrBadUpdate
	}
	switch lit {
	case 'N':
		return nil, rest, nil
	case 'B':
		return len(body) == 1 && body[0] == 1, rest, nil
	case 'I':
		return UnzipInt64(body), rest, nil
	case 'F':
		return UnzipFloat64(body), rest, nil
	case 'S':
		return string(body), rest, nil
	case 'M':
		m, err := decMap(d, body)
		return m, rest, err
	case 'L':
		l, err := decList(d, body)
		return l, rest, err
	}
	return nil, nil, ErrBadUpdate
}

func decMap(d *Doc, body []byte) (*Map, error) {
	id, body := toytlv.Take('T', body)
	if id == nil {
		return nil, ErrBadUpdate
	}
	m := &Map{doc: d, id: unzipStamp(id), ents: make(map[string]*mapEntry)}
	for len(body) > 0 {
		var ent []byte
		ent, body = toytlv.Take('E', body)
		if ent == nil {
			return nil, ErrBadUpdate
		}
		key, ent := toytlv.Take('K', ent)
		if key == nil {
			return nil, ErrBadUpdate
		}
		at, ent := toytlv.Take('T', ent)
		if at == nil {
			return nil, ErrBadUpdate
		}
		e := &mapEntry{at: unzipStamp(at)}
		if lit, _, _ := toytlv.ProbeHeader(ent); lit == 'X' {
			e.dead = true
		} else {
			v, _, err := decValue(d, ent)
			if err != nil {
				return nil, err
			}
			e.val = v
		}
		m.ents[string(key)] = e
	}
	return m, nil
}

func decList(d *Doc, body []byte) (*List, error) {
	id, body := toytlv.Take('T', body)
	if id == nil {
		return nil, ErrBadUpdate
	}
	l := &List{doc: d, id: unzipStamp(id)}
	for len(body) > 0 {
		var ent []byte
		ent, body = toytlv.Take('E', body)
		if ent == nil {
			return nil, ErrBadUpdate
		}
		pos, ent := toytlv.Take('P', ent)
		if pos == nil {
			return nil, ErrBadUpdate
		}
		e := &elem{}
		for len(pos) > 0 {
			var dig []byte
			dig, pos = toytlv.Take('Z', pos)
			if dig == nil {
				return nil, ErrBadUpdate
			}
			dv, src := UnzipUint64Pair(dig)
			e.pos = append(e.pos, PosDig{D: dv, Src: src})
		}
		eid, ent := toytlv.Take('G', ent)
		if eid == nil {
			return nil, ErrBadUpdate
		}
		e.id = unzipStamp(eid)
		at, ent := toytlv.Take('T', ent)
		if at == nil {
			return nil, ErrBadUpdate
		}
		e.at = unzipStamp(at)
		if lit, _, _ := toytlv.ProbeHeader(ent); lit == 'X' {
			e.dead = true
		} else {
			v, _, err := decValue(d, ent)
			if err != nil {
				return nil, err
			}
			e.val = v
		}
		l.els = append(l.els, e)
	}
	return l, nil
}
