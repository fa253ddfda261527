package crdt

// adopt binds a value to doc d. Containers already owned by d pass
// through; containers owned by another doc (or a decoded blob) are cloned
// with their identity stamps intact.
func adopt(d *Doc, v any) any {
	switch c := v.(type) {
	case *Map:
		if c.doc == d {
			return c
		}
		return c.cloneInto(d)
	case *List:
		if c.doc == d {
			return c
		}
		return c.cloneInto(d)
	default:
		return v
	}
}

// plain converts a value to its plain Go form, recursively.
func plain(v any) any {
	switch c := v.(type) {
	case *Map:
		return c.Plain()
	case *List:
		return c.Plain()
	default:
		return v
	}
}

// sameContainer reports whether two values are containers of the same
// kind with the same identity stamp, i.e. the same container as seen from
// two replicas.
func sameContainer(a, b any) bool {
	switch am := a.(type) {
	case *Map:
		bm, ok := b.(*Map)
		return ok && am.id == bm.id
	case *List:
		bl, ok := b.(*List)
		return ok && am.id == bl.id
	}
	return false
}
