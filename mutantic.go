// Package mutantic maps a strongly-typed, versioned data model onto a
// conflict-free replicated document. The model stays an ordinary Go
// struct; the persisted form is a crdt.Doc whose update blobs merge
// deterministically across replicas. Edits made through a mutation
// transaction translate into granular document operations, so concurrent
// edits on different fields or elements both survive a merge.
package mutantic

import (
	"fmt"
	"reflect"

	"github.com/crunchr/mutantic/crdt"
	"github.com/learn-decentralized-systems/toyqueue"
)

// RootKey is the reserved top-level key holding the document's root map.
const RootKey = "__root__"

// Options selects exactly one construction mode for a Wrapper:
//
//   - Update: apply a single update blob to a fresh document
//   - Updates: apply a sequence of blobs, merged in the given order
//   - State: seed the document from a model instance; a full-state write
//     that can clobber concurrent granular edits by other replicas
type Options struct {
	Update  []byte
	Updates toyqueue.Records
	State   any
}

// Wrapper owns one replicated document plus the model type its content
// validates against. Each wrapper owns an independent document; wrappers
// never share documents.
type Wrapper struct {
	doc   *crdt.Doc
	model reflect.Type
}

// New creates a wrapper bound to the given model type. Supplying more
// than one of Options.Update, Options.Updates, Options.State fails with
// ErrConflictingOptions before the document is touched.
func New(model reflect.Type, opts Options) (*Wrapper, error) {
	given := 0
	if opts.Update != nil {
		given++
	}
	if len(opts.Updates) > 0 {
		given++
	}
	if opts.State != nil {
		given++
	}
	if given > 1 {
		return nil, ErrConflictingOptions
	}
	w := &Wrapper{doc: crdt.New(), model: model}
	switch {
	case opts.Update != nil:
		if err := w.doc.Apply(opts.Update); err != nil {
			return nil, err
		}
	case len(opts.Updates) > 0:
		if err := w.doc.ApplyAll(opts.Updates); err != nil {
			return nil, err
		}
	case opts.State != nil:
		if err := w.seed(opts.State); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// TypeOf returns the reflect type of the model type parameter.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// NewOf is New with the model type taken from the type parameter.
func NewOf[T any](opts Options) (*Wrapper, error) {
	return New(TypeOf[T](), opts)
}

func (w *Wrapper) seed(state any) error {
	pv, err := dumpValue(state)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields, ok := pv.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: state must reduce to a mapping", ErrValidation)
	}
	dv, err := toDocValue(w.doc, fields)
	if err != nil {
		return err
	}
	w.doc.SetRoot(RootKey, dv.(*crdt.Map))
	return nil
}

// Update exports the document's current full state as a binary blob,
// suitable for merging into another wrapper via Options.Updates.
func (w *Wrapper) Update() []byte {
	return w.doc.Export()
}

// ModelType returns the bound model type.
func (w *Wrapper) ModelType() reflect.Type {
	return w.model
}

// SetModelType rebinds the wrapper to another model type. Revalidation
// happens lazily, at the next Snapshot or Mutate.
func (w *Wrapper) SetModelType(model reflect.Type) {
	w.model = model
}

// Snapshot reads the document's root, validates it against the bound
// model type and returns the typed instance. A fresh deep read each call.
func (w *Wrapper) Snapshot() (any, error) {
	return validateAs(w.doc.Root(RootKey).Plain(), w.model)
}

// SnapshotOf is Snapshot with a typed result; T must be the bound type.
func SnapshotOf[T any](w *Wrapper) (ret T, err error) {
	v, err := w.Snapshot()
	if err != nil {
		return
	}
	ret, ok := v.(T)
	if !ok {
		err = fmt.Errorf("%w: snapshot is %T, not %T", ErrValidation, v, ret)
	}
	return
}

// Mutate runs fn inside a mutation transaction. On entry the current
// root is validated against the bound type and wrapped into a proxy
// tree; every mutation fn makes on it lands both in the shadow and in
// the document. The transaction is committed on every exit path; an
// error from fn or from the commit propagates to the caller.
func (w *Wrapper) Mutate(fn func(state *StateMap) error) (err error) {
	root := w.doc.Root(RootKey)
	inst, err := validateAs(root.Plain(), w.model)
	if err != nil {
		return err
	}
	pv, err := dumpValue(inst)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	shadow, ok := pv.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: state must reduce to a mapping", ErrValidation)
	}
	state := wrapMap(root, shadow)
	w.doc.Begin()
	defer func() {
		cerr := w.doc.Commit()
		if err == nil {
			err = cerr
		}
	}()
	return fn(state)
}
