package crdt

import (
	"errors"
	"sort"
)

var ErrRange = errors.New("crdt: list index out of range")

// PosDig is one digit of a list position: a value plus the source that
// minted it, so two replicas never mint an identical position.
type PosDig struct {
	D   uint64
	Src uint64
}

// Pos is a Logoot-style position identifier: a digit vector ordered
// lexicographically. Positions are dense (a new one fits between any two)
// and never change once minted, which is what lets concurrent inserts
// merge without index shifting.
type Pos []PosDig

func (p Pos) Less(o Pos) bool {
	for i := 0; i < len(p) && i < len(o); i++ {
		if p[i] != o[i] {
			if p[i].D != o[i].D {
				return p[i].D < o[i].D
			}
			return p[i].Src < o[i].Src
		}
	}
	return len(p) < len(o)
}

// posStride keeps appended digits spaced out so appends stay shallow.
const posStride = uint64(1) << 32

const maxDigit = ^uint64(0)

// posBetween mints a position strictly between left and right; nil left
// means the virtual start, nil right the virtual end.
func posBetween(left, right Pos, src uint64) (p Pos) {
	bounded := true // right still constrains this depth
	for depth := 0; ; depth++ {
		lp := PosDig{}
		if depth < len(left) {
			lp = left[depth]
		}
		rd := maxDigit
		if bounded {
			if depth < len(right) {
				rd = right[depth].D
			} else if right != nil {
				rd = maxDigit
			}
		}
		if rd > lp.D+1 {
			step := (rd - lp.D) / 2
			if step > posStride {
				step = posStride
			}
			return append(p, PosDig{D: lp.D + step, Src: src})
		}
		p = append(p, lp)
		if bounded && (depth >= len(right) || right[depth] != lp) {
			bounded = false
		}
	}
}

type elem struct {
	pos  Pos
	id   Stamp // creation identity, unique
	val  any
	at   Stamp // last set
	dead bool
}

// List is a sequence container. Elements keep their position identifiers
// forever; deletion tombstones them. Element values are last-write-wins.
type List struct {
	doc *Doc
	id  Stamp
	els []*elem
}

func (d *Doc) NewList() *List {
	return &List{doc: d, id: d.tick()}
}

func (l *List) Doc() *Doc {
	return l.doc
}

// Len counts live elements.
func (l *List) Len() (n int) {
	for _, e := range l.els {
		if !e.dead {
			n++
		}
	}
	return
}

// abs resolves a visible index to an absolute one, skipping tombstones.
func (l *List) abs(i int) int {
	n := 0
	for a, e := range l.els {
		if e.dead {
			continue
		}
		if n == i {
			return a
		}
		n++
	}
	return -1
}

func (l *List) GetAt(i int) (v any, err error) {
	a := l.abs(i)
	if i < 0 || a < 0 {
		return nil, ErrRange
	}
	return l.els[a].val, nil
}

// InsertAt inserts before the visible index i; i == Len() appends. The new
// position is minted between the absolute neighbours of the insertion
// point, tombstones included, so it sorts correctly against elements this
// replica has not seen yet.
func (l *List) InsertAt(i int, v any) error {
	if i < 0 || i > l.Len() {
		return ErrRange
	}
	var left, right Pos
	ra := len(l.els)
	if i < l.Len() {
		ra = l.abs(i)
		right = l.els[ra].pos
	}
	if ra > 0 {
		left = l.els[ra-1].pos
	}
	at := l.doc.tick()
	e := &elem{
		pos: posBetween(left, right, l.doc.src),
		id:  at,
		val: adopt(l.doc, v),
		at:  at,
	}
	l.els = append(l.els, nil)
	copy(l.els[ra+1:], l.els[ra:])
	l.els[ra] = e
	return nil
}

func (l *List) SetAt(i int, v any) error {
	a := l.abs(i)
	if i < 0 || a < 0 {
		return ErrRange
	}
	e := l.els[a]
	e.val = adopt(l.doc, v)
	e.at = l.doc.tick()
	return nil
}

func (l *List) DeleteAt(i int) error {
	a := l.abs(i)
	if i < 0 || a < 0 {
		return ErrRange
	}
	e := l.els[a]
	e.dead = true
	e.val = nil
	e.at = l.doc.tick()
	return nil
}

// Clear tombstones every live element.
func (l *List) Clear() {
	for _, e := range l.els {
		if !e.dead {
			e.dead = true
			e.val = nil
			e.at = l.doc.tick()
		}
	}
}

// Plain converts the list to a plain Go value, recursively.
func (l *List) Plain() []any {
	ret := make([]any, 0, len(l.els))
	for _, e := range l.els {
		if !e.dead {
			ret = append(ret, plain(e.val))
		}
	}
	return ret
}

func (l *List) cloneInto(d *Doc) *List {
	ret := &List{doc: d, id: l.id, els: make([]*elem, len(l.els))}
	for i, e := range l.els {
		ret.els[i] = &elem{pos: e.pos, id: e.id, val: adopt(d, e.val), at: e.at, dead: e.dead}
	}
	return ret
}

// merge folds another replica's version of this list into l: union of
// elements by identity, value LWW per element, tombstones win.
func (l *List) merge(o *List) {
	byID := make(map[Stamp]*elem, len(l.els))
	for _, e := range l.els {
		byID[e.id] = e
	}
	for _, oe := range o.els {
		mine, ok := byID[oe.id]
		if !ok {
			l.els = append(l.els, &elem{
				pos: oe.pos, id: oe.id,
				val: adopt(l.doc, oe.val), at: oe.at, dead: oe.dead,
			})
			continue
		}
		if sameContainer(mine.val, oe.val) {
			switch c := mine.val.(type) {
			case *Map:
				c.merge(oe.val.(*Map))
			case *List:
				c.merge(oe.val.(*List))
			}
			if mine.at.Less(oe.at) {
				mine.at = oe.at
			}
		} else if mine.at.Less(oe.at) {
			mine.val = adopt(l.doc, oe.val)
			mine.at = oe.at
		}
		if oe.dead && !mine.dead {
			mine.dead = true
			mine.val = nil
		}
	}
	sort.SliceStable(l.els, func(i, j int) bool {
		a, b := l.els[i], l.els[j]
		if a.pos.Less(b.pos) {
			return true
		}
		if b.pos.Less(a.pos) {
			return false
		}
		return a.id.Less(b.id)
	})
}
