package migrate

import (
	"testing"

	"github.com/crunchr/mutantic"
	"github.com/learn-decentralized-systems/toyqueue"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A five-version model chain. V1 drops a legacy field going to V2, V3
// through V5 each add a field of a different scalar kind.

type ModelV1 struct {
	SchemaVersion int64  `json:"schema_version"`
	SomeField     string `json:"some_field"`
	Field         string `json:"field"`
}

func (ModelV1) Up(prev, next *mutantic.StateMap) error {
	return errors.New("no version below v1")
}

func (ModelV1) Down(prev, next *mutantic.StateMap) error {
	return errors.New("no version below v1")
}

type ModelV2 struct {
	SchemaVersion int64  `json:"schema_version"`
	SomeField     string `json:"some_field"`
}

func (ModelV2) Up(prev, next *mutantic.StateMap) error {
	next.Delete("field")
	return nil
}

func (ModelV2) Down(prev, next *mutantic.StateMap) error {
	return next.Set("field", "default")
}

type ModelV3 struct {
	SchemaVersion int64   `json:"schema_version"`
	SomeField     string  `json:"some_field"`
	SomeNewField  float64 `json:"some_new_field"`
}

func (ModelV3) Up(prev, next *mutantic.StateMap) error {
	return next.Set("some_new_field", 42.0)
}

func (ModelV3) Down(prev, next *mutantic.StateMap) error {
	next.Delete("some_new_field")
	return nil
}

type ModelV4 struct {
	SchemaVersion   int64   `json:"schema_version"`
	SomeField       string  `json:"some_field"`
	SomeNewField    float64 `json:"some_new_field"`
	AnotherNewField bool    `json:"another_new_field"`
}

func (ModelV4) Up(prev, next *mutantic.StateMap) error {
	return next.Set("another_new_field", true)
}

func (ModelV4) Down(prev, next *mutantic.StateMap) error {
	next.Delete("another_new_field")
	return nil
}

type ModelV5 struct {
	SchemaVersion   int64   `json:"schema_version"`
	SomeField       string  `json:"some_field"`
	SomeNewField    float64 `json:"some_new_field"`
	AnotherNewField bool    `json:"another_new_field"`
	YetAnotherField int64   `json:"yet_another_field"`
}

func (ModelV5) Up(prev, next *mutantic.StateMap) error {
	return next.Set("yet_another_field", int64(100))
}

func (ModelV5) Down(prev, next *mutantic.StateMap) error {
	next.Delete("yet_another_field")
	return nil
}

func testRegistry() *Registry {
	return NewRegistry(ModelV1{}, ModelV2{}, ModelV3{}, ModelV4{}, ModelV5{})
}

func TestMigrateV1ToV3(t *testing.T) {
	doc, err := mutantic.NewOf[ModelV1](mutantic.Options{State: ModelV1{
		SchemaVersion: 1, SomeField: "some value", Field: "value",
	}})
	require.NoError(t, err)

	migrated, err := testRegistry().Migrate(doc, ModelV3{})
	require.NoError(t, err)

	snap, err := mutantic.SnapshotOf[ModelV3](migrated)
	require.NoError(t, err)
	assert.Equal(t, ModelV3{
		SchemaVersion: 3, SomeField: "some value", SomeNewField: 42.0,
	}, snap)
}

func TestMigrateV3ToV1(t *testing.T) {
	doc, err := mutantic.NewOf[ModelV3](mutantic.Options{State: ModelV3{
		SchemaVersion: 3, SomeField: "some value", SomeNewField: 42.0,
	}})
	require.NoError(t, err)

	migrated, err := testRegistry().Migrate(doc, ModelV1{})
	require.NoError(t, err)

	snap, err := mutantic.SnapshotOf[ModelV1](migrated)
	require.NoError(t, err)
	assert.Equal(t, ModelV1{
		SchemaVersion: 1, SomeField: "some value", Field: "default",
	}, snap)
}

func TestMigrateV2ToV4(t *testing.T) {
	doc, err := mutantic.NewOf[ModelV2](mutantic.Options{State: ModelV2{
		SchemaVersion: 2, SomeField: "some value",
	}})
	require.NoError(t, err)

	migrated, err := testRegistry().Migrate(doc, ModelV4{})
	require.NoError(t, err)

	snap, err := mutantic.SnapshotOf[ModelV4](migrated)
	require.NoError(t, err)
	assert.Equal(t, ModelV4{
		SchemaVersion: 4, SomeField: "some value",
		SomeNewField: 42.0, AnotherNewField: true,
	}, snap)
}

func TestMigrateV4ToV2(t *testing.T) {
	doc, err := mutantic.NewOf[ModelV4](mutantic.Options{State: ModelV4{
		SchemaVersion: 4, SomeField: "some value",
		SomeNewField: 42.0, AnotherNewField: true,
	}})
	require.NoError(t, err)

	migrated, err := testRegistry().Migrate(doc, ModelV2{})
	require.NoError(t, err)

	snap, err := mutantic.SnapshotOf[ModelV2](migrated)
	require.NoError(t, err)
	assert.Equal(t, ModelV2{SchemaVersion: 2, SomeField: "some value"}, snap)
}

func TestMigrateV3ToV5(t *testing.T) {
	doc, err := mutantic.NewOf[ModelV3](mutantic.Options{State: ModelV3{
		SchemaVersion: 3, SomeField: "some value", SomeNewField: 42.0,
	}})
	require.NoError(t, err)

	migrated, err := testRegistry().Migrate(doc, ModelV5{})
	require.NoError(t, err)

	snap, err := mutantic.SnapshotOf[ModelV5](migrated)
	require.NoError(t, err)
	assert.Equal(t, ModelV5{
		SchemaVersion: 5, SomeField: "some value",
		SomeNewField: 42.0, AnotherNewField: true, YetAnotherField: 100,
	}, snap)
}

func TestMigrateV5ToV3(t *testing.T) {
	doc, err := mutantic.NewOf[ModelV5](mutantic.Options{State: ModelV5{
		SchemaVersion: 5, SomeField: "some value",
		SomeNewField: 42.0, AnotherNewField: true, YetAnotherField: 100,
	}})
	require.NoError(t, err)

	migrated, err := testRegistry().Migrate(doc, ModelV3{})
	require.NoError(t, err)

	snap, err := mutantic.SnapshotOf[ModelV3](migrated)
	require.NoError(t, err)
	assert.Equal(t, ModelV3{
		SchemaVersion: 3, SomeField: "some value", SomeNewField: 42.0,
	}, snap)
}

func TestMigrateSameVersion(t *testing.T) {
	doc, err := mutantic.NewOf[ModelV3](mutantic.Options{State: ModelV3{
		SchemaVersion: 3, SomeField: "some value", SomeNewField: 42.0,
	}})
	require.NoError(t, err)

	migrated, err := testRegistry().Migrate(doc, ModelV3{})
	require.NoError(t, err)

	snap, err := mutantic.SnapshotOf[ModelV3](migrated)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.SchemaVersion)
}

type Unregistered struct {
	SchemaVersion int64 `json:"schema_version"`
}

func (Unregistered) Up(prev, next *mutantic.StateMap) error   { return nil }
func (Unregistered) Down(prev, next *mutantic.StateMap) error { return nil }

func TestMigrateUnregistered(t *testing.T) {
	reg := testRegistry()

	doc, err := mutantic.NewOf[ModelV1](mutantic.Options{State: ModelV1{
		SchemaVersion: 1, SomeField: "some value", Field: "value",
	}})
	require.NoError(t, err)
	_, err = reg.Migrate(doc, Unregistered{})
	assert.ErrorIs(t, err, ErrNotRegistered)

	stray, err := mutantic.NewOf[Unregistered](mutantic.Options{State: Unregistered{SchemaVersion: 9}})
	require.NoError(t, err)
	_, err = reg.Migrate(stray, ModelV5{})
	assert.ErrorIs(t, err, ErrNotRegistered)
}

// An edit made against an old schema version merges cleanly into the
// migrated document: the migration only touches the fields it moves, so
// the concurrent write survives.
func TestConcurrentEditDuringMigration(t *testing.T) {
	doc, err := mutantic.NewOf[ModelV1](mutantic.Options{State: ModelV1{
		SchemaVersion: 1, SomeField: "some value", Field: "value",
	}})
	require.NoError(t, err)
	base := doc.Update()

	editor, err := mutantic.NewOf[ModelV1](mutantic.Options{Update: base})
	require.NoError(t, err)
	err = editor.Mutate(func(state *mutantic.StateMap) error {
		return state.Set("some_field", "earth")
	})
	require.NoError(t, err)

	migrated, err := testRegistry().Migrate(doc, ModelV5{})
	require.NoError(t, err)

	final, err := mutantic.NewOf[ModelV5](mutantic.Options{
		Updates: toyqueue.Records{migrated.Update(), editor.Update()},
	})
	require.NoError(t, err)
	snap, err := mutantic.SnapshotOf[ModelV5](final)
	require.NoError(t, err)
	assert.Equal(t, ModelV5{
		SchemaVersion: 5, SomeField: "earth",
		SomeNewField: 42.0, AnotherNewField: true, YetAnotherField: 100,
	}, snap)
}
