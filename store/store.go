// Package store persists document update blobs in a pebble database.
// Saving a document merges its blob into whatever is already stored, via
// a CRDT merge operator, so replicas can save into the same store in any
// order without losing edits.
package store

import (
	"io"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/crunchr/mutantic"
	"github.com/crunchr/mutantic/crdt"
	"github.com/crunchr/mutantic/utils"
	"github.com/learn-decentralized-systems/toyqueue"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("store: no such document")
var ErrClosed = errors.New("store: already closed")

type Options struct {
	Path   string
	Logger utils.Logger
}

func (o *Options) SetDefaults() {
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelInfo)
	}
}

type Store struct {
	db  *pebble.DB
	log utils.Logger

	saves  atomic.Uint64
	loads  atomic.Uint64
	merges atomic.Uint64
}

// DocKey is the pebble key for a document id: lit 'D', then the id.
func DocKey(id string) []byte {
	return append([]byte{'D'}, id...)
}

func Open(opts Options) (*Store, error) {
	opts.SetDefaults()
	s := &Store{log: opts.Logger}
	po := pebble.Options{
		Merger: &pebble.Merger{
			Name:  "mutantic.crdt",
			Merge: s.merger,
		},
	}
	db, err := pebble.Open(opts.Path, &po)
	if err != nil {
		return nil, errors.Wrap(err, "store: open failed")
	}
	s.db = db
	s.log.Debug("store open", "path", opts.Path)
	return s, nil
}

func (s *Store) merger(key, value []byte) (pebble.ValueMerger, error) {
	target := make([]byte, len(value))
	copy(target, value)
	return &mergeAdaptor{store: s, vals: toyqueue.Records{target}}, nil
}

// mergeAdaptor folds stored blobs into one on pebble merges and
// compactions. Blob merge is commutative, so the accumulation order only
// matters for keeping the adaptor honest about pebble's contract.
type mergeAdaptor struct {
	store *Store
	vals  toyqueue.Records
}

func (a *mergeAdaptor) MergeNewer(value []byte) error {
	target := make([]byte, len(value))
	copy(target, value)
	a.vals = append(a.vals, target)
	return nil
}

func (a *mergeAdaptor) MergeOlder(value []byte) error {
	target := make([]byte, len(value))
	copy(target, value)
	a.vals = append(a.vals, target)
	return nil
}

func (a *mergeAdaptor) Finish(includesBase bool) ([]byte, io.Closer, error) {
	doc := crdt.New()
	if err := doc.ApplyAll(a.vals); err != nil {
		a.store.log.Error("blob merge failed", "error", err)
		return nil, nil, err
	}
	a.store.merges.Add(1)
	return doc.Export(), nil, nil
}

// Save merges the wrapper's current state into the stored document.
func (s *Store) Save(id string, w *mutantic.Wrapper) error {
	if s.db == nil {
		return ErrClosed
	}
	if err := s.db.Merge(DocKey(id), w.Update(), pebble.Sync); err != nil {
		return errors.Wrapf(err, "store: save %s failed", id)
	}
	s.saves.Add(1)
	s.log.Debug("store save", "id", id)
	return nil
}

// Load reconstructs a wrapper, bound to the given model type, from the
// stored document.
func (s *Store) Load(id string, model reflect.Type) (*mutantic.Wrapper, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	v, closer, err := s.db.Get(DocKey(id))
	if err == pebble.ErrNotFound {
		return nil, errors.Wrapf(ErrNotFound, "%s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "store: load %s failed", id)
	}
	blob := make([]byte, len(v))
	copy(blob, v)
	_ = closer.Close()
	s.loads.Add(1)
	return mutantic.New(model, mutantic.Options{Update: blob})
}

// LoadOf is Load with the model type taken from the type parameter.
func LoadOf[T any](s *Store, id string) (*mutantic.Wrapper, error) {
	return s.Load(id, reflect.TypeOf((*T)(nil)).Elem())
}

func (s *Store) Close() error {
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}
