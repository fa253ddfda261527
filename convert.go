package mutantic

import (
	"sort"

	"github.com/crunchr/mutantic/crdt"
)

// toDocValue converts a model instance, nested map, slice or scalar into
// the doc's container types, recursively. Map keys are converted in
// sorted order so the write stamps of a seeded document are reproducible.
func toDocValue(d *crdt.Doc, x any) (any, error) {
	switch v := x.(type) {
	case nil:
		return nil, nil
	case bool, string, int64, float64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case map[string]any:
		m := d.NewMap()
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			dv, err := toDocValue(d, v[k])
			if err != nil {
				return nil, err
			}
			m.Set(k, dv)
		}
		return m, nil
	case []any:
		l := d.NewList()
		for i, item := range v {
			dv, err := toDocValue(d, item)
			if err != nil {
				return nil, err
			}
			if err := l.InsertAt(i, dv); err != nil {
				return nil, err
			}
		}
		return l, nil
	default:
		// model instances, typed maps and typed slices reduce to their
		// plain nested form first
		pv, err := dumpValue(v)
		if err != nil {
			return nil, err
		}
		return toDocValue(d, pv)
	}
}

// plainOf converts a stored doc value back to its plain Go form.
func plainOf(v any) any {
	switch c := v.(type) {
	case *crdt.Map:
		return c.Plain()
	case *crdt.List:
		return c.Plain()
	default:
		return v
	}
}
