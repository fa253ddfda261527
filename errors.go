package mutantic

import "errors"

var (
	// ErrConflictingOptions: more than one of Options.Update, Options.Updates,
	// Options.State was supplied.
	ErrConflictingOptions = errors.New("mutantic: only one of Update, Updates or State may be given")

	// ErrValidation: the document content does not validate against the
	// wrapper's model type.
	ErrValidation = errors.New("mutantic: state does not validate against the model")

	// ErrIndex: a sequence index outside [-len, len).
	ErrIndex = errors.New("mutantic: sequence index out of range")
)
