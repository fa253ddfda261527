package mutantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Checklist struct {
	Name  string `json:"name" validate:"required"`
	Items []any  `json:"items"`
}

func checklist(items ...any) Checklist {
	if items == nil {
		items = []any{}
	}
	return Checklist{Name: "list", Items: items}
}

func TestSequenceProxyFidelity(t *testing.T) {
	doc, err := NewOf[Checklist](Options{State: checklist()})
	require.NoError(t, err)

	var closing []any
	err = doc.Mutate(func(state *StateMap) error {
		items := state.List("items")
		require.NoError(t, items.Append("b"))
		require.NoError(t, items.Insert(0, "a"))
		require.NoError(t, items.Extend([]any{"c", "d", "e"}))
		require.NoError(t, items.Set(2, "C"))
		popped, err := items.Pop(-1)
		require.NoError(t, err)
		assert.Equal(t, "e", popped)
		require.NoError(t, items.Delete(1))
		closing = append([]any{}, items.Plain()...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "C", "d"}, closing)

	// the shadow at transaction close must equal what a reconstructed
	// replica reads from the exported blob
	replica, err := NewOf[Checklist](Options{Update: doc.Update()})
	require.NoError(t, err)
	snap, err := SnapshotOf[Checklist](replica)
	require.NoError(t, err)
	assert.Equal(t, closing, snap.Items)
}

func TestSequenceNegativeIndexes(t *testing.T) {
	doc, err := NewOf[Checklist](Options{State: checklist("a", "b", "c")})
	require.NoError(t, err)

	err = doc.Mutate(func(state *StateMap) error {
		items := state.List("items")
		last, err := items.Get(-1)
		require.NoError(t, err)
		assert.Equal(t, "c", last)
		require.NoError(t, items.Set(-2, "B"))
		popped, err := items.Pop(-3)
		require.NoError(t, err)
		assert.Equal(t, "a", popped)
		return nil
	})
	require.NoError(t, err)

	snap, err := SnapshotOf[Checklist](doc)
	require.NoError(t, err)
	assert.Equal(t, []any{"B", "c"}, snap.Items)
}

func TestSequenceOutOfRange(t *testing.T) {
	doc, err := NewOf[Checklist](Options{State: checklist("a", "b")})
	require.NoError(t, err)

	err = doc.Mutate(func(state *StateMap) error {
		items := state.List("items")
		assert.ErrorIs(t, items.Set(2, "x"), ErrIndex)
		assert.ErrorIs(t, items.Set(-3, "x"), ErrIndex)
		assert.ErrorIs(t, items.Delete(2), ErrIndex)
		assert.ErrorIs(t, items.Insert(3, "x"), ErrIndex)
		_, err := items.Pop(5)
		assert.ErrorIs(t, err, ErrIndex)
		// failed operations leave the sequence unchanged
		assert.Equal(t, []any{"a", "b"}, items.Plain())
		return nil
	})
	require.NoError(t, err)

	snap, err := SnapshotOf[Checklist](doc)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, snap.Items)
}

func TestSequenceClear(t *testing.T) {
	doc, err := NewOf[Checklist](Options{State: checklist("a", "b", "c")})
	require.NoError(t, err)

	err = doc.Mutate(func(state *StateMap) error {
		state.List("items").Clear()
		return nil
	})
	require.NoError(t, err)

	snap, err := SnapshotOf[Checklist](doc)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 0)
}

func TestParentSeesNestedListEdits(t *testing.T) {
	doc, err := NewOf[Checklist](Options{State: checklist("a", "b", "c")})
	require.NoError(t, err)

	err = doc.Mutate(func(state *StateMap) error {
		items := state.List("items")
		require.NoError(t, items.Delete(0))
		// reads through the parent observe the shrink at once
		assert.Equal(t, []any{"b", "c"}, state.Plain()["items"])
		require.NoError(t, items.Append("d"))
		assert.Equal(t, []any{"b", "c", "d"}, state.Plain()["items"])
		return nil
	})
	require.NoError(t, err)

	snap, err := SnapshotOf[Checklist](doc)
	require.NoError(t, err)
	assert.Equal(t, []any{"b", "c", "d"}, snap.Items)
}

func TestSequenceElementAccessors(t *testing.T) {
	type Board struct {
		Name string  `json:"name" validate:"required"`
		Rows [][]any `json:"rows"`
	}
	doc, err := NewOf[Board](Options{State: Board{
		Name: "grid",
		Rows: [][]any{{"x", "y"}},
	}})
	require.NoError(t, err)

	err = doc.Mutate(func(state *StateMap) error {
		rows := state.List("rows")
		row := rows.List(0)
		require.NotNil(t, row)
		require.NoError(t, row.Append("z"))
		// wrong-kind and out-of-range lookups come back nil
		assert.Nil(t, rows.Map(0))
		assert.Nil(t, rows.List(5))
		return nil
	})
	require.NoError(t, err)

	snap, err := SnapshotOf[Board](doc)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"x", "y", "z"}}, snap.Rows)
}

func TestMapProxyDelete(t *testing.T) {
	type Pair struct {
		Left  string `json:"left"`
		Right string `json:"right,omitempty"`
	}
	doc, err := NewOf[Pair](Options{State: Pair{Left: "l", Right: "r"}})
	require.NoError(t, err)

	err = doc.Mutate(func(state *StateMap) error {
		assert.True(t, state.Has("right"))
		state.Delete("right")
		assert.False(t, state.Has("right"))
		return nil
	})
	require.NoError(t, err)

	snap, err := SnapshotOf[Pair](doc)
	require.NoError(t, err)
	assert.Equal(t, "", snap.Right)
}

func TestScalarTypedGetters(t *testing.T) {
	type Mixed struct {
		S string  `json:"s"`
		I int64   `json:"i"`
		F float64 `json:"f"`
		B bool    `json:"b"`
	}
	doc, err := NewOf[Mixed](Options{State: Mixed{S: "str", I: 42, F: 2.5, B: true}})
	require.NoError(t, err)

	err = doc.Mutate(func(state *StateMap) error {
		assert.Equal(t, "str", state.String("s"))
		assert.Equal(t, int64(42), state.Int("i"))
		assert.Equal(t, 2.5, state.Float("f"))
		assert.True(t, state.Bool("b"))
		return state.Set("i", state.Int("i")+1)
	})
	require.NoError(t, err)

	snap, err := SnapshotOf[Mixed](doc)
	require.NoError(t, err)
	assert.Equal(t, int64(43), snap.I)
}
