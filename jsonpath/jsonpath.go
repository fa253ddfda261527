// Package jsonpath is a query-path mutation facade over an open mutation
// transaction. Paths look like `$.posts[0].comments` with `[*]` and `.*`
// wildcards; every match is edited through the proxy tree, so the edits
// land in the replicated document as granular operations.
package jsonpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/crunchr/mutantic"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrBadPath       = errors.New("jsonpath: malformed path expression")
	ErrNoMatch       = errors.New("jsonpath: no matches for the given path")
	ErrUnsupportedOp = errors.New("jsonpath: operation not supported at the matched location")
)

type segKind byte

const (
	segField segKind = iota
	segIndex
	segWildField
	segWildIndex
)

type segment struct {
	kind segKind
	name string
	idx  int
}

// compiled paths are cached; path strings tend to repeat heavily.
var cache, _ = lru.New[string, []segment](512)

func compile(path string) ([]segment, error) {
	if segs, ok := cache.Get(path); ok {
		return segs, nil
	}
	segs, err := parse(path)
	if err != nil {
		return nil, err
	}
	cache.Add(path, segs)
	return segs, nil
}

func parse(path string) (segs []segment, err error) {
	if len(path) == 0 || path[0] != '$' {
		return nil, fmt.Errorf("%w: %q", ErrBadPath, path)
	}
	rest := path[1:]
	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			if strings.HasPrefix(rest, "*") {
				segs = append(segs, segment{kind: segWildField})
				rest = rest[1:]
				continue
			}
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			if end == 0 {
				return nil, fmt.Errorf("%w: %q", ErrBadPath, path)
			}
			segs = append(segs, segment{kind: segField, name: rest[:end]})
			rest = rest[end:]
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: %q", ErrBadPath, path)
			}
			inner := rest[1:end]
			if inner == "*" {
				segs = append(segs, segment{kind: segWildIndex})
			} else {
				idx, aerr := strconv.Atoi(inner)
				if aerr != nil {
					return nil, fmt.Errorf("%w: %q", ErrBadPath, path)
				}
				segs = append(segs, segment{kind: segIndex, idx: idx})
			}
			rest = rest[end+1:]
		default:
			return nil, fmt.Errorf("%w: %q", ErrBadPath, path)
		}
	}
	return segs, nil
}

// step resolves one segment against one node; wildcards fan out.
func step(node any, s segment) (out []any) {
	switch s.kind {
	case segField:
		if m, ok := node.(*mutantic.StateMap); ok && m.Has(s.name) {
			out = append(out, m.Get(s.name))
		}
	case segIndex:
		if l, ok := node.(*mutantic.StateList); ok {
			if v, err := l.Get(s.idx); err == nil {
				out = append(out, v)
			}
		}
	case segWildField:
		if m, ok := node.(*mutantic.StateMap); ok {
			for _, k := range m.Keys() {
				out = append(out, m.Get(k))
			}
		}
	case segWildIndex:
		if l, ok := node.(*mutantic.StateList); ok {
			for i := 0; i < l.Len(); i++ {
				v, _ := l.Get(i)
				out = append(out, v)
			}
		}
	}
	return
}

func resolve(root any, segs []segment) []any {
	nodes := []any{root}
	for _, s := range segs {
		var next []any
		for _, n := range nodes {
			next = append(next, step(n, s)...)
		}
		nodes = next
		if len(nodes) == 0 {
			break
		}
	}
	return nodes
}

// Mutator applies path-query edits to an open transaction's proxy root.
type Mutator struct {
	state *mutantic.StateMap
}

func NewMutator(state *mutantic.StateMap) *Mutator {
	return &Mutator{state: state}
}

// Set overwrites every location the path matches.
func (mu *Mutator) Set(path string, value any) error {
	return mu.edit(path, func(parent any, s segment) error {
		switch p := parent.(type) {
		case *mutantic.StateMap:
			return p.Set(s.name, value)
		case *mutantic.StateList:
			return p.Set(s.idx, value)
		}
		return nil
	})
}

// Delete removes every location the path matches.
func (mu *Mutator) Delete(path string) error {
	return mu.edit(path, func(parent any, s segment) error {
		switch p := parent.(type) {
		case *mutantic.StateMap:
			p.Delete(s.name)
			return nil
		case *mutantic.StateList:
			return p.Delete(s.idx)
		}
		return nil
	})
}

// edit resolves the path's parent, then applies fn once per concrete
// (parent, final segment) match. Wildcard finals expand to the current
// keys or indexes.
func (mu *Mutator) edit(path string, fn func(parent any, s segment) error) error {
	segs, err := compile(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("%w: the root has no parent: %q", ErrUnsupportedOp, path)
	}
	parents := resolve(mu.state, segs[:len(segs)-1])
	last := segs[len(segs)-1]
	matched := 0
	for _, parent := range parents {
		for _, s := range expandFinal(parent, last) {
			matched++
			if err := fn(parent, s); err != nil {
				return err
			}
		}
	}
	if matched == 0 {
		return fmt.Errorf("%w: %q", ErrNoMatch, path)
	}
	return nil
}

// expandFinal lists the concrete final segments the last path segment
// matches on this parent, empty if none.
func expandFinal(parent any, s segment) (out []segment) {
	switch s.kind {
	case segField:
		if m, ok := parent.(*mutantic.StateMap); ok && m.Has(s.name) {
			out = append(out, s)
		}
	case segIndex:
		if l, ok := parent.(*mutantic.StateList); ok {
			if _, err := l.Get(s.idx); err == nil {
				out = append(out, s)
			}
		}
	case segWildField:
		if m, ok := parent.(*mutantic.StateMap); ok {
			for _, k := range m.Keys() {
				out = append(out, segment{kind: segField, name: k})
			}
		}
	case segWildIndex:
		if l, ok := parent.(*mutantic.StateList); ok {
			for i := 0; i < l.Len(); i++ {
				out = append(out, segment{kind: segIndex, idx: i})
			}
		}
	}
	return
}

// Append appends to every list the path matches; a non-list match fails
// with ErrUnsupportedOp.
func (mu *Mutator) Append(path string, value any) error {
	return mu.each(path, func(l *mutantic.StateList) error {
		return l.Append(value)
	})
}

// Insert inserts at the index in every list the path matches.
func (mu *Mutator) Insert(path string, index int, value any) error {
	return mu.each(path, func(l *mutantic.StateList) error {
		return l.Insert(index, value)
	})
}

// Pop removes the element at the index (default convention: -1 for the
// last) from every list the path matches.
func (mu *Mutator) Pop(path string, index int) error {
	return mu.each(path, func(l *mutantic.StateList) error {
		_, err := l.Pop(index)
		return err
	})
}

func (mu *Mutator) each(path string, fn func(l *mutantic.StateList) error) error {
	segs, err := compile(path)
	if err != nil {
		return err
	}
	nodes := resolve(mu.state, segs)
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %q", ErrNoMatch, path)
	}
	for _, n := range nodes {
		l, ok := n.(*mutantic.StateList)
		if !ok {
			return fmt.Errorf("%w: %q needs a sequence", ErrUnsupportedOp, path)
		}
		if err := fn(l); err != nil {
			return err
		}
	}
	return nil
}
