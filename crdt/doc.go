// Package crdt is a state-based conflict-free replicated document: a set of
// named root maps holding maps, lists and scalars. Every write is stamped
// with a lamport clock reading; replicas exchange full-state update blobs
// and merge them element-wise, last-write-wins. Applying any set of blobs
// in any order converges to the same state.
//
// Scalar values are nil, bool, int64, float64 or string. Containers are
// *Map and *List; both belong to exactly one Doc.
package crdt

import "errors"

var (
	ErrBadUpdate     = errors.New("crdt: bad update blob")
	ErrChecksum      = errors.New("crdt: update blob checksum mismatch")
	ErrNoTransaction = errors.New("crdt: no open transaction")
)

type Doc struct {
	src   uint64
	now   uint64
	roots map[string]*Map
	txn   int
}

func New() *Doc {
	return &Doc{
		src:   NewSource(),
		roots: make(map[string]*Map),
	}
}

func (d *Doc) Source() uint64 {
	return d.src
}

// tick mints a fresh stamp; every write consumes one.
func (d *Doc) tick() Stamp {
	d.now++
	return Stamp{Time: d.now, Src: d.src}
}

// observe advances the clock past a remote stamp.
func (d *Doc) observe(t uint64) {
	if t > d.now {
		d.now = t
	}
}

// Root returns the named root map, creating it if absent. Root maps carry
// the zero identity stamp so the same root on two replicas is always the
// same container and merges recursively.
func (d *Doc) Root(key string) *Map {
	m, ok := d.roots[key]
	if !ok {
		m = &Map{doc: d, ents: make(map[string]*mapEntry)}
		d.roots[key] = m
	}
	return m
}

// SetRoot overwrites the named root with the given map value, key by key.
// Keys absent from the new value are tombstoned. This is a full-state
// write, not a granular edit: merged against concurrent granular edits it
// wins or loses per field, by stamp.
func (d *Doc) SetRoot(key string, v *Map) {
	root := d.Root(key)
	for k := range root.ents {
		if _, keep := v.ents[k]; !keep {
			root.Delete(k)
		}
	}
	for _, k := range v.Keys() {
		val, _ := v.Get(k)
		root.Set(k, val)
	}
}

// Begin opens a write transaction. Transactions only scope writes, they
// cannot fail halfway: the doc is a single in-memory resource and a batch
// of writes becomes externally visible only when the state is exported.
func (d *Doc) Begin() {
	d.txn++
}

func (d *Doc) Commit() error {
	if d.txn == 0 {
		return ErrNoTransaction
	}
	d.txn--
	return nil
}

func (d *Doc) InTransaction() bool {
	return d.txn > 0
}

// merge folds another doc's state into this one. The other doc is
// consumed: its containers are cloned, not shared.
func (d *Doc) merge(o *Doc) {
	d.observe(o.now)
	for key, om := range o.roots {
		d.Root(key).merge(om)
	}
}
