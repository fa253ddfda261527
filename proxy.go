package mutantic

import (
	"sort"

	"github.com/crunchr/mutantic/crdt"
)

// StateMap and StateList wrap the in-memory shadow of the document inside
// an open mutation transaction. Every mutator has a dual effect: it
// updates the shadow, so later reads in the same transaction see the
// edit, and issues the same edit against the live document node at the
// corresponding path. The tree is built eagerly at transaction entry;
// scalars stay unwrapped, an overwrite of a scalar goes through the
// parent container's Set.

type StateMap struct {
	node   *crdt.Map
	shadow map[string]any
	kids   map[string]any
}

func wrapMap(node *crdt.Map, shadow map[string]any) *StateMap {
	m := &StateMap{node: node, shadow: shadow, kids: make(map[string]any, len(shadow))}
	for k, v := range shadow {
		nv, _ := node.Get(k)
		m.kids[k] = wrapChild(nv, v)
	}
	return m
}

// wrapChild pairs a shadow value with its document node. A shadow
// container without a matching node (a model default the document never
// stored) stays a plain value: there is nothing to write through to.
func wrapChild(nodeVal, shadowVal any) any {
	switch sv := shadowVal.(type) {
	case map[string]any:
		if nm, ok := nodeVal.(*crdt.Map); ok {
			return wrapMap(nm, sv)
		}
	case []any:
		if nl, ok := nodeVal.(*crdt.List); ok {
			return wrapList(nl, sv)
		}
	}
	return shadowVal
}

// Get returns the wrapped child for containers, the raw value for
// scalars, nil for a missing key.
func (m *StateMap) Get(key string) any {
	return m.kids[key]
}

func (m *StateMap) Has(key string) bool {
	_, ok := m.shadow[key]
	return ok
}

func (m *StateMap) Len() int {
	return len(m.shadow)
}

func (m *StateMap) Keys() []string {
	keys := make([]string, 0, len(m.shadow))
	for k := range m.shadow {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *StateMap) Set(key string, v any) error {
	dv, err := toDocValue(m.node.Doc(), v)
	if err != nil {
		return err
	}
	m.node.Set(key, dv)
	pv := plainOf(dv)
	m.shadow[key] = pv
	nv, _ := m.node.Get(key)
	m.kids[key] = wrapChild(nv, pv)
	return nil
}

func (m *StateMap) Delete(key string) {
	m.node.Delete(key)
	delete(m.shadow, key)
	delete(m.kids, key)
}

// Map returns the wrapped child map, nil if the key holds anything else.
func (m *StateMap) Map(key string) *StateMap {
	c, _ := m.kids[key].(*StateMap)
	return c
}

// List returns the wrapped child list, nil if the key holds anything else.
func (m *StateMap) List(key string) *StateList {
	c, _ := m.kids[key].(*StateList)
	return c
}

func (m *StateMap) String(key string) string {
	s, _ := m.shadow[key].(string)
	return s
}

func (m *StateMap) Int(key string) int64 {
	switch v := m.shadow[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}

func (m *StateMap) Float(key string) float64 {
	switch v := m.shadow[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func (m *StateMap) Bool(key string) bool {
	b, _ := m.shadow[key].(bool)
	return b
}

// Plain returns the current value of the subtree as plain maps, slices
// and scalars. Derived from the wrapped children, not the raw shadow: a
// nested list reallocates its shadow slice on insert and delete, so the
// slice header held here can go stale mid-transaction.
func (m *StateMap) Plain() map[string]any {
	ret := make(map[string]any, len(m.kids))
	for k, kid := range m.kids {
		ret[k] = plainKid(kid)
	}
	return ret
}

func plainKid(kid any) any {
	switch c := kid.(type) {
	case *StateMap:
		return c.Plain()
	case *StateList:
		return c.Plain()
	}
	return kid
}

type StateList struct {
	node   *crdt.List
	shadow []any
	kids   []any
}

func wrapList(node *crdt.List, shadow []any) *StateList {
	l := &StateList{node: node, shadow: shadow, kids: make([]any, len(shadow))}
	for i, v := range shadow {
		nv, _ := node.GetAt(i)
		l.kids[i] = wrapChild(nv, v)
	}
	return l
}

// norm resolves the negative-index convention: -1 is the last element.
// limit is the first invalid index, Len() for reads and Len()+1 for
// inserts.
func (l *StateList) norm(i, limit int) (int, error) {
	if i < 0 {
		i += len(l.shadow)
	}
	if i < 0 || i >= limit {
		return 0, ErrIndex
	}
	return i, nil
}

func (l *StateList) Len() int {
	return len(l.shadow)
}

func (l *StateList) Get(i int) (any, error) {
	i, err := l.norm(i, len(l.shadow))
	if err != nil {
		return nil, err
	}
	return l.kids[i], nil
}

// Map returns the wrapped element map, nil if the index is out of range
// or the element holds anything else.
func (l *StateList) Map(i int) *StateMap {
	v, err := l.Get(i)
	if err != nil {
		return nil
	}
	c, _ := v.(*StateMap)
	return c
}

// List returns the wrapped element list, nil if the index is out of range
// or the element holds anything else.
func (l *StateList) List(i int) *StateList {
	v, err := l.Get(i)
	if err != nil {
		return nil
	}
	c, _ := v.(*StateList)
	return c
}

func (l *StateList) Append(v any) error {
	dv, err := toDocValue(l.node.Doc(), v)
	if err != nil {
		return err
	}
	if err := l.node.InsertAt(len(l.shadow), dv); err != nil {
		return err
	}
	pv := plainOf(dv)
	l.shadow = append(l.shadow, pv)
	nv, _ := l.node.GetAt(len(l.shadow) - 1)
	l.kids = append(l.kids, wrapChild(nv, pv))
	return nil
}

func (l *StateList) Extend(items []any) error {
	for _, v := range items {
		if err := l.Append(v); err != nil {
			return err
		}
	}
	return nil
}

func (l *StateList) Insert(i int, v any) error {
	i, err := l.norm(i, len(l.shadow)+1)
	if err != nil {
		return err
	}
	dv, err := toDocValue(l.node.Doc(), v)
	if err != nil {
		return err
	}
	if err := l.node.InsertAt(i, dv); err != nil {
		return err
	}
	pv := plainOf(dv)
	l.shadow = append(l.shadow, nil)
	copy(l.shadow[i+1:], l.shadow[i:])
	l.shadow[i] = pv
	nv, _ := l.node.GetAt(i)
	l.kids = append(l.kids, nil)
	copy(l.kids[i+1:], l.kids[i:])
	l.kids[i] = wrapChild(nv, pv)
	return nil
}

func (l *StateList) Set(i int, v any) error {
	i, err := l.norm(i, len(l.shadow))
	if err != nil {
		return err
	}
	dv, err := toDocValue(l.node.Doc(), v)
	if err != nil {
		return err
	}
	if err := l.node.SetAt(i, dv); err != nil {
		return err
	}
	pv := plainOf(dv)
	l.shadow[i] = pv
	nv, _ := l.node.GetAt(i)
	l.kids[i] = wrapChild(nv, pv)
	return nil
}

// Pop removes and returns the element at i; -1 pops the last one.
func (l *StateList) Pop(i int) (any, error) {
	i, err := l.norm(i, len(l.shadow))
	if err != nil {
		return nil, err
	}
	ret := l.kids[i]
	if err := l.node.DeleteAt(i); err != nil {
		return nil, err
	}
	l.shadow = append(l.shadow[:i], l.shadow[i+1:]...)
	l.kids = append(l.kids[:i], l.kids[i+1:]...)
	return ret, nil
}

func (l *StateList) Delete(i int) error {
	i, err := l.norm(i, len(l.shadow))
	if err != nil {
		return err
	}
	if err := l.node.DeleteAt(i); err != nil {
		return err
	}
	l.shadow = append(l.shadow[:i], l.shadow[i+1:]...)
	l.kids = append(l.kids[:i], l.kids[i+1:]...)
	return nil
}

func (l *StateList) Clear() {
	l.node.Clear()
	l.shadow = l.shadow[:0]
	l.kids = l.kids[:0]
}

// Plain returns the current value of the subtree as plain maps, slices
// and scalars.
func (l *StateList) Plain() []any {
	ret := make([]any, len(l.kids))
	for i, kid := range l.kids {
		ret[i] = plainKid(kid)
	}
	return ret
}
