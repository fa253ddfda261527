// Package migrate walks a document across an ordered chain of model
// versions. Each version declares a one-step transform to the next and
// previous schema; the registry chains them in either direction inside a
// single mutation transaction, so a concurrent merge can never observe a
// half-migrated intermediate state.
package migrate

import (
	"reflect"

	"github.com/crunchr/mutantic"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var ErrNotRegistered = errors.New("migrate: model version not registered")

// SchemaVersionKey is the model field every versioned model must carry;
// the engine moves it by one per migration step.
const SchemaVersionKey = "schema_version"

// Versioned is a model version: the model struct itself, carrying its
// one-step transforms. Up and Down get the same proxy root twice, as the
// state to read and the state to write, and mutate it in place.
type Versioned interface {
	Up(prev, next *mutantic.StateMap) error
	Down(prev, next *mutantic.StateMap) error
}

// Registry is an ordered sequence of model versions, ascending by schema
// version. Order is the caller's responsibility; the registry does not
// validate it. Lookup is by type identity: registering two structurally
// identical types makes them two distinct versions.
type Registry struct {
	versions []Versioned
	index    *xsync.MapOf[reflect.Type, int]
}

func NewRegistry(versions ...Versioned) *Registry {
	r := &Registry{
		versions: versions,
		index:    xsync.NewMapOf[reflect.Type, int](),
	}
	for i, v := range versions {
		r.index.Store(reflect.TypeOf(v), i)
	}
	return r
}

// Migrate replays the version chain between the wrapper's bound type and
// the target version, in one transaction on the source wrapper, and
// returns a new wrapper, built from the source's exported blob, bound to
// the target type. The source wrapper keeps its own binding and is left
// committed at the migrated state.
func (r *Registry) Migrate(w *mutantic.Wrapper, to Versioned) (*mutantic.Wrapper, error) {
	from, ok := r.index.Load(w.ModelType())
	if !ok {
		return nil, errors.Wrapf(ErrNotRegistered, "source %s", w.ModelType())
	}
	target := reflect.TypeOf(to)
	dest, ok := r.index.Load(target)
	if !ok {
		return nil, errors.Wrapf(ErrNotRegistered, "target %s", target)
	}

	var steps []Versioned
	var dir int64
	switch {
	case from < dest:
		steps = r.versions[from+1 : dest+1]
		dir = 1
	case from > dest:
		for i := from; i > dest; i-- {
			steps = append(steps, r.versions[i])
		}
		dir = -1
	}

	err := w.Mutate(func(state *mutantic.StateMap) error {
		for _, v := range steps {
			var herr error
			if dir > 0 {
				herr = v.Up(state, state)
			} else {
				herr = v.Down(state, state)
			}
			if herr != nil {
				return herr
			}
			if err := state.Set(SchemaVersionKey, state.Int(SchemaVersionKey)+dir); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return mutantic.New(target, mutantic.Options{Update: w.Update()})
}
