package crdt

import "sort"

type mapEntry struct {
	val  any
	at   Stamp
	dead bool
}

// Map is a last-write-wins key-value container. Deleted keys leave a
// tombstone so the delete survives merges.
type Map struct {
	doc  *Doc
	id   Stamp
	ents map[string]*mapEntry
}

// NewMap mints an empty map owned by this doc. The creation stamp is the
// map's identity: replicas that got the map through a blob hold the same
// identity and merge its contents recursively, while an independently
// created replacement is a different container and merges atomically.
func (d *Doc) NewMap() *Map {
	return &Map{doc: d, id: d.tick(), ents: make(map[string]*mapEntry)}
}

func (m *Map) Doc() *Doc {
	return m.doc
}

func (m *Map) Set(key string, v any) {
	m.ents[key] = &mapEntry{val: adopt(m.doc, v), at: m.doc.tick()}
}

func (m *Map) Delete(key string) {
	m.ents[key] = &mapEntry{at: m.doc.tick(), dead: true}
}

func (m *Map) Get(key string) (v any, ok bool) {
	e, ok := m.ents[key]
	if !ok || e.dead {
		return nil, false
	}
	return e.val, true
}

func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *Map) Len() (n int) {
	for _, e := range m.ents {
		if !e.dead {
			n++
		}
	}
	return
}

// Keys returns the live keys, sorted.
func (m *Map) Keys() (keys []string) {
	for k, e := range m.ents {
		if !e.dead {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return
}

// Plain converts the map to a plain Go value, recursively.
func (m *Map) Plain() map[string]any {
	ret := make(map[string]any, len(m.ents))
	for k, e := range m.ents {
		if !e.dead {
			ret[k] = plain(e.val)
		}
	}
	return ret
}

func (m *Map) cloneInto(d *Doc) *Map {
	ret := &Map{doc: d, id: m.id, ents: make(map[string]*mapEntry, len(m.ents))}
	for k, e := range m.ents {
		ret.ents[k] = &mapEntry{val: adopt(d, e.val), at: e.at, dead: e.dead}
	}
	return ret
}

// merge folds another replica's version of this map into m. Per entry:
// the same container on both sides merges recursively, otherwise the
// higher stamp wins outright.
func (m *Map) merge(o *Map) {
	for k, oe := range o.ents {
		mine, ok := m.ents[k]
		if !ok {
			m.ents[k] = &mapEntry{val: adopt(m.doc, oe.val), at: oe.at, dead: oe.dead}
			continue
		}
		mergeEntry(m.doc, mine, oe)
	}
}

func mergeEntry(d *Doc, mine, other *mapEntry) {
	if sameContainer(mine.val, other.val) {
		switch c := mine.val.(type) {
		case *Map:
			c.merge(other.val.(*Map))
		case *List:
			c.merge(other.val.(*List))
		}
		if mine.at.Less(other.at) {
			mine.at = other.at
			mine.dead = other.dead
		}
		return
	}
	if mine.at.Less(other.at) {
		mine.val = adopt(d, other.val)
		mine.at = other.at
		mine.dead = other.dead
	}
}
