package ecs

import (
	"reflect"

	"github.com/astraweave-go/astraweave/core"
)

// Resources holds at most one value per type, inserted by setup code and
// mutated by systems. Cleared wholesale when the World (and therefore the
// Resources it owns) is dropped.
type Resources struct {
	values map[reflect.Type]interface{}
}

// NewResources creates an empty resource registry.
func NewResources() *Resources {
	return &Resources{values: make(map[reflect.Type]interface{})}
}

// InsertResource sets the resource of type T, overwriting any existing value.
func InsertResource[T any](r *Resources, value T) {
	r.values[reflect.TypeOf(value)] = value
}

// GetResource returns the resource of type T and whether it was present.
func GetResource[T any](r *Resources) (T, bool) {
	var zero T
	t := reflect.TypeOf(zero)
	v, ok := r.values[t]
	if !ok {
		return zero, false
	}
	cast, ok := v.(T)
	return cast, ok
}

// MustGetResource returns the resource of type T, wrapping
// core.ErrResourceNotFound when absent: the "recoverable MissingResource
// error surfaced to the caller" the registry contract requires.
func MustGetResource[T any](r *Resources) (T, error) {
	v, ok := GetResource[T](r)
	if !ok {
		var zero T
		return zero, core.NewFrameworkError("ecs.GetResource", "resource", core.ErrResourceNotFound)
	}
	return v, nil
}

// TakeResource removes and returns the resource of type T.
func TakeResource[T any](r *Resources) (T, bool) {
	v, ok := GetResource[T](r)
	if ok {
		delete(r.values, reflect.TypeOf(v))
	}
	return v, ok
}
