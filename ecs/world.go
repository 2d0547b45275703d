package ecs

import (
	"reflect"

	"github.com/astraweave-go/astraweave/core"
)

// World owns the entity index and every archetype. It is exclusively
// mutated by the tick thread (§5 of the design notes: "entity store...
// exclusively owned by the tick thread"); foreign goroutines must only
// interact with it by producing events the scheduler drains next tick.
type World struct {
	index *entityIndex

	archetypesBySig map[string]*archetype
	archetypesByID  []*archetype // index == archetypeID, ascending creation order
	emptyArchetype  *archetype

	logger core.Logger
}

// WorldOption configures a new World.
type WorldOption func(*World)

// WithLogger attaches a Logger; falls back to core.NoOpLogger when omitted.
func WithLogger(l core.Logger) WorldOption {
	return func(w *World) { w.logger = l }
}

// NewWorld creates an empty World with its zero-component archetype
// pre-registered (archetype ID 0), so a freshly spawned entity always has
// somewhere to live.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		index:           newEntityIndex(),
		archetypesBySig: make(map[string]*archetype),
		logger:          &core.NoOpLogger{},
	}
	w.emptyArchetype = w.archetypeFor(nil)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *World) archetypeFor(sig []reflect.Type) *archetype {
	key := signatureKey(sig)
	if a, ok := w.archetypesBySig[key]; ok {
		return a
	}
	a := newArchetype(archetypeID(len(w.archetypesByID)), sig)
	w.archetypesBySig[key] = a
	w.archetypesByID = append(w.archetypesByID, a)
	return a
}

// Spawn creates a new entity in the empty archetype.
func (w *World) Spawn() Entity {
	e := w.index.alloc()
	row := w.emptyArchetype.appendEmptyRow(e)
	w.index.setLocation(e, w.emptyArchetype.id, row)
	return e
}

// appendEmptyRow appends an entity with no component values and returns its row.
func (a *archetype) appendEmptyRow(e Entity) int {
	a.entities = append(a.entities, e)
	return len(a.entities) - 1
}

// Despawn removes an entity: its columns are dropped via swap-remove and
// its slot generation is bumped so stale handles subsequently fail every
// lookup. Despawning a dead or unknown entity is a no-op, matching the
// store's "never fail hard on lookups" failure model.
func (w *World) Despawn(e Entity) {
	aid, row, ok := w.index.locate(e)
	if !ok {
		return
	}
	a := w.archetypesByID[aid]
	a.removeRow(row, w.index)
	w.index.free(e)
}

// removeRow swap-removes row from a, fixing up the index entry for
// whichever entity was moved into that row's place (if any).
func (a *archetype) removeRow(row int, idx *entityIndex) {
	last := len(a.entities) - 1
	movedEntity := a.entities[last]
	a.entities[row] = a.entities[last]
	a.entities = a.entities[:last]
	for _, col := range a.columns {
		col.swapRemove(row)
	}
	if row != last {
		idx.setLocation(movedEntity, a.id, row)
	}
}

// Alive reports whether e currently resolves to a live entity.
func (w *World) Alive(e Entity) bool {
	return w.index.alive(e)
}

// Insert sets entity e's T component, moving it to the destination
// archetype (current signature ∪ {T}) by appending if T is not already
// present. If T is already present, the value is overwritten in place
// without any archetype move.
func Insert[T any](w *World, e Entity, value T) {
	t := reflect.TypeOf(value)
	aid, row, ok := w.index.locate(e)
	if !ok {
		return
	}
	src := w.archetypesByID[aid]
	if src.has(t) {
		src.columns[t].values[row] = value
		return
	}
	dstSig := withType(src.signature, t)
	dst := w.archetypeFor(dstSig)
	newRow := moveEntity(w, src, dst, row, e)
	dst.columns[t].values[newRow] = value
}

// Remove deletes entity e's T component, moving it to the destination
// archetype (current signature ∖ {T}) by appending. A no-op if T was not
// present.
func Remove[T any](w *World, e Entity) {
	var zero T
	t := reflect.TypeOf(zero)
	aid, row, ok := w.index.locate(e)
	if !ok {
		return
	}
	src := w.archetypesByID[aid]
	if !src.has(t) {
		return
	}
	dstSig := withoutType(src.signature, t)
	dst := w.archetypeFor(dstSig)
	moveEntity(w, src, dst, row, e)
}

// moveEntity appends e (and every component value it carries, except ones
// not present in dst) to dst, then swap-removes it from src. Returns the
// row in dst. Relative order of the other entities in dst is preserved
// and e itself is appended to the end of dst, per the "move by append"
// invariant; in src, the last entity is moved into e's old row.
func moveEntity(w *World, src, dst *archetype, row int, e Entity) int {
	for t, col := range src.columns {
		if dstCol, ok := dst.columns[t]; ok {
			dstCol.values = append(dstCol.values, col.values[row])
		}
	}
	for t, dstCol := range dst.columns {
		if _, ok := src.columns[t]; !ok {
			var zero interface{}
			dstCol.values = append(dstCol.values, zero)
		}
	}
	dst.entities = append(dst.entities, e)
	newRow := len(dst.entities) - 1
	src.removeRow(row, w.index)
	w.index.setLocation(e, dst.id, newRow)
	return newRow
}

// Get returns entity e's T component and whether it was present.
func Get[T any](w *World, e Entity) (T, bool) {
	var zero T
	t := reflect.TypeOf(zero)
	aid, row, ok := w.index.locate(e)
	if !ok {
		return zero, false
	}
	a := w.archetypesByID[aid]
	col, ok := a.columns[t]
	if !ok {
		return zero, false
	}
	v, ok := col.values[row].(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// GetMutFunc applies fn to entity e's T component in place, returning
// whether it was present. Go lacks a general mutable-reference-into-slice
// primitive across an interface{} column, so mutation is expressed as a
// read-modify-write closure rather than a pointer return.
func GetMutFunc[T any](w *World, e Entity, fn func(*T)) bool {
	t := reflect.TypeOf(*new(T))
	aid, row, ok := w.index.locate(e)
	if !ok {
		return false
	}
	a := w.archetypesByID[aid]
	col, ok := a.columns[t]
	if !ok {
		return false
	}
	v, ok := col.values[row].(T)
	if !ok {
		return false
	}
	fn(&v)
	col.values[row] = v
	return true
}

// Query1 iterates every archetype whose signature is a superset of {T},
// in ascending archetype-ID order, yielding (Entity, T) pairs in
// within-archetype insertion order. The callback returning false stops
// iteration early.
func Query1[T any](w *World, fn func(Entity, T) bool) {
	t := reflect.TypeOf(*new(T))
	for _, a := range w.archetypesByID {
		col, ok := a.columns[t]
		if !ok {
			continue
		}
		for row, e := range a.entities {
			v, ok := col.values[row].(T)
			if !ok {
				continue
			}
			if !fn(e, v) {
				return
			}
		}
	}
}

// Query2 is Query1 generalized to two component types.
func Query2[T1, T2 any](w *World, fn func(Entity, T1, T2) bool) {
	t1 := reflect.TypeOf(*new(T1))
	t2 := reflect.TypeOf(*new(T2))
	for _, a := range w.archetypesByID {
		col1, ok1 := a.columns[t1]
		col2, ok2 := a.columns[t2]
		if !ok1 || !ok2 {
			continue
		}
		for row, e := range a.entities {
			v1, ok := col1.values[row].(T1)
			if !ok {
				continue
			}
			v2, ok := col2.values[row].(T2)
			if !ok {
				continue
			}
			if !fn(e, v1, v2) {
				return
			}
		}
	}
}

// EntityCount returns the total number of live entities across all archetypes.
func (w *World) EntityCount() int {
	n := 0
	for _, a := range w.archetypesByID {
		n += len(a.entities)
	}
	return n
}
