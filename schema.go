package mutantic

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// The validation capability: a plain nested value checks against a model
// type and comes back as a typed instance, a typed instance dumps back to
// its plain nested form. Shape and type mismatches surface as
// ErrValidation; field-level rules come from `validate` struct tags.

var checker = validator.New(validator.WithRequiredStructEnabled())

// validateAs validates a plain value against the model type and returns
// a typed instance of it.
func validateAs(plain any, model reflect.Type) (any, error) {
	buf, err := json.Marshal(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	ptr := reflect.New(model)
	if err := json.Unmarshal(buf, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if model.Kind() == reflect.Struct {
		if err := checker.Struct(ptr.Interface()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return ptr.Elem().Interface(), nil
}

// dumpValue reduces a typed instance to its plain nested form: maps,
// slices and JSON scalars only.
func dumpValue(x any) (any, error) {
	buf, err := json.Marshal(x)
	if err != nil {
		return nil, err
	}
	var plain any
	if err := json.Unmarshal(buf, &plain); err != nil {
		return nil, err
	}
	return plain, nil
}
