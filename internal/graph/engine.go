package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/agentic-research/tessera/internal/schema"
	"github.com/agentic-research/tessera/internal/sparse"
)

var (
	ErrTileNotFound = errors.New("tile not found")
	ErrDuplicateID  = errors.New("tile id already in use")
	ErrUnknownField = errors.New("field not declared by component")
	ErrFieldType    = errors.New("value datatype does not match field")
)

// pool is one per-kind id set with its own lock.
type pool struct {
	mu  sync.Mutex
	set *sparse.Set
}

func newPool() *pool { return &pool{set: sparse.New()} }

func (p *pool) add(id EntityId) {
	p.mu.Lock()
	p.set.Add(id)
	p.mu.Unlock()
}

func (p *pool) remove(id EntityId) {
	p.mu.Lock()
	p.set.Remove(id)
	p.mu.Unlock()
}

func (p *pool) member(id EntityId) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set.Member(id)
}

func (p *pool) elements() []EntityId {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set.Elements()
}

func (p *pool) clear() {
	p.mu.Lock()
	p.set.Clear()
	p.mu.Unlock()
}

// Engine is the tile store. Each substructure carries its own lock, so
// individual operations are atomic but compound operations are not;
// concurrent writers interleave at tile granularity.
type Engine struct {
	counter atomic.Uint64

	mu    sync.RWMutex
	tiles map[EntityId]*Tile

	objects     *pool
	arrows      *pool
	descriptors *pool
	extensions  *pool

	// depMu guards dependents: subject id -> ids of relation tiles that
	// reference it, in insertion order. An arrow appears under both of its
	// endpoints (once, if they coincide).
	depMu      sync.Mutex
	dependents map[EntityId][]EntityId

	types *schema.Registry
}

// New returns an empty engine with the built-in "void" component
// registered.
func New() *Engine {
	e := &Engine{
		tiles:       make(map[EntityId]*Tile),
		objects:     newPool(),
		arrows:      newPool(),
		descriptors: newPool(),
		extensions:  newPool(),
		dependents:  make(map[EntityId][]EntityId),
		types:       schema.NewRegistry(),
	}
	if _, err := e.types.AddTypes("void: void;"); err != nil {
		panic(fmt.Sprintf("graph: registering builtin void type: %v", err))
	}
	return e
}

// Types exposes the engine's component type registry.
func (e *Engine) Types() *schema.Registry { return e.types }

// RegisterTypes parses and registers component declarations.
func (e *Engine) RegisterTypes(src string) error {
	_, err := e.types.AddTypes(src)
	return err
}

// nextID issues a fresh id, skipping past any id already occupied by a
// specifically placed tile.
func (e *Engine) nextID() EntityId {
	for {
		id := e.counter.Add(1)
		e.mu.RLock()
		_, taken := e.tiles[id]
		e.mu.RUnlock()
		if !taken {
			return id
		}
	}
}

// validateFields checks values against the component's declared fields
// and fills in defaults for any field not supplied.
func validateFields(ct *schema.ComponentType, values map[string]schema.Value) (map[string]schema.Value, error) {
	for name := range values {
		if _, ok := ct.Field(name); !ok {
			return nil, fmt.Errorf("%w: %q on component %q", ErrUnknownField, name, ct.Name)
		}
	}
	full := make(map[string]schema.Value, len(ct.Fields))
	for _, f := range ct.Fields {
		v, ok := values[f.Name]
		if !ok {
			full[f.Name] = schema.ZeroValue(f.Datatype)
			continue
		}
		if !v.Matches(f.Datatype) {
			return nil, fmt.Errorf("%w: field %q of %q wants %s", ErrFieldType, f.Name, ct.Name, f.Datatype)
		}
		full[f.Name] = v
	}
	return full, nil
}

func (e *Engine) poolFor(k Kind) *pool {
	switch k {
	case KindObject:
		return e.objects
	case KindArrow:
		return e.arrows
	case KindDescriptor:
		return e.descriptors
	default:
		return e.extensions
	}
}

// insert registers a fully formed tile in the id registry, its kind
// pool, and the adjacency index.
func (e *Engine) insert(t *Tile) {
	e.mu.Lock()
	e.tiles[t.ID] = t
	e.mu.Unlock()

	e.poolFor(t.Kind()).add(t.ID)

	switch t.Kind() {
	case KindArrow:
		e.addDependent(t.Source, t.ID)
		if t.Target != t.Source {
			e.addDependent(t.Target, t.ID)
		}
	case KindDescriptor:
		e.addDependent(t.Target, t.ID)
	case KindExtension:
		e.addDependent(t.Source, t.ID)
	}
}

func (e *Engine) addDependent(subject, id EntityId) {
	e.depMu.Lock()
	e.dependents[subject] = append(e.dependents[subject], id)
	e.depMu.Unlock()
}

func (e *Engine) removeDependent(subject, id EntityId) {
	e.depMu.Lock()
	defer e.depMu.Unlock()
	deps := e.dependents[subject]
	kept := deps[:0]
	for _, d := range deps {
		if d != id {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		delete(e.dependents, subject)
	} else {
		e.dependents[subject] = kept
	}
}

// newTile validates, allocates, and inserts in one step.
func (e *Engine) newTile(source, target EntityId, component string, values map[string]schema.Value, fix func(id EntityId) (EntityId, EntityId)) (*Tile, error) {
	ct, err := e.types.Get(component)
	if err != nil {
		return nil, err
	}
	full, err := validateFields(ct, values)
	if err != nil {
		return nil, err
	}
	id := e.nextID()
	if fix != nil {
		source, target = fix(id)
	}
	t := &Tile{ID: id, Source: source, Target: target, Component: component, Fields: full}
	e.insert(t)
	return t, nil
}

// NewObject creates a standalone object tile.
func (e *Engine) NewObject(component string, values map[string]schema.Value) (*Tile, error) {
	return e.newTile(0, 0, component, values, func(id EntityId) (EntityId, EntityId) {
		return id, id
	})
}

// NewSpecificObject places an object at a caller-chosen id with default
// field values. The id counter is not advanced; later allocations skip
// occupied ids.
func (e *Engine) NewSpecificObject(id EntityId, component string) (*Tile, error) {
	ct, err := e.types.Get(component)
	if err != nil {
		return nil, err
	}
	full, err := validateFields(ct, nil)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if _, taken := e.tiles[id]; taken {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	t := &Tile{ID: id, Source: id, Target: id, Component: component, Fields: full}
	e.tiles[id] = t
	e.mu.Unlock()

	e.objects.add(id)
	return t, nil
}

// NewArrow creates a directed edge from source to target. When the
// endpoints coincide the result is a self-loop indexed once under the
// shared endpoint. Endpoint existence is not checked; creating an arrow
// concurrently with a delete of its endpoint can leave a dangling edge.
func (e *Engine) NewArrow(source, target EntityId, component string, values map[string]schema.Value) (*Tile, error) {
	return e.newTile(source, target, component, values, nil)
}

// NewLoop creates a self-looping arrow on endpoint.
func (e *Engine) NewLoop(endpoint EntityId, component string, values map[string]schema.Value) (*Tile, error) {
	return e.newTile(endpoint, endpoint, component, values, nil)
}

// NewDescriptor attaches a property tile to subject: id == source, target
// is the subject.
func (e *Engine) NewDescriptor(subject EntityId, component string, values map[string]schema.Value) (*Tile, error) {
	return e.newTile(0, subject, component, values, func(id EntityId) (EntityId, EntityId) {
		return id, subject
	})
}

// NewExtension attaches a property tile to subject: id == target, source
// is the subject.
func (e *Engine) NewExtension(subject EntityId, component string, values map[string]schema.Value) (*Tile, error) {
	return e.newTile(subject, 0, component, values, func(id EntityId) (EntityId, EntityId) {
		return subject, id
	})
}

// Get returns the tile at id.
func (e *Engine) Get(id EntityId) (*Tile, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tiles[id]
	return t, ok
}

// IsValid reports whether id names a live tile.
func (e *Engine) IsValid(id EntityId) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.tiles[id]
	return ok
}

// Len returns the number of live tiles.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.tiles)
}

// All returns every live tile in ascending id order.
func (e *Engine) All() []*Tile {
	e.mu.RLock()
	out := make([]*Tile, 0, len(e.tiles))
	for _, t := range e.tiles {
		out = append(out, t)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Objects returns the ids of all object tiles.
func (e *Engine) Objects() []EntityId { return e.objects.elements() }

// Arrows returns the ids of all arrow tiles (loops included).
func (e *Engine) Arrows() []EntityId { return e.arrows.elements() }

// Descriptors returns the ids of all descriptor tiles.
func (e *Engine) Descriptors() []EntityId { return e.descriptors.elements() }

// Extensions returns the ids of all extension tiles.
func (e *Engine) Extensions() []EntityId { return e.extensions.elements() }

// DependentIDs returns, in insertion order, the ids of relation tiles
// that reference id. The slice is a copy.
func (e *Engine) DependentIDs(id EntityId) []EntityId {
	e.depMu.Lock()
	defer e.depMu.Unlock()
	deps := e.dependents[id]
	out := make([]EntityId, len(deps))
	copy(out, deps)
	return out
}

// Dependents resolves DependentIDs to live tiles.
func (e *Engine) Dependents(id EntityId) []*Tile {
	ids := e.DependentIDs(id)
	out := make([]*Tile, 0, len(ids))
	for _, d := range ids {
		if t, ok := e.Get(d); ok {
			out = append(out, t)
		}
	}
	return out
}

// Delete removes the tile at id after recursively deleting every tile
// that depends on it. Deleting an absent id is a no-op, though any
// lingering dependents recorded under it are still processed first.
func (e *Engine) Delete(id EntityId) {
	for _, dep := range e.DependentIDs(id) {
		if dep != id {
			e.Delete(dep)
		}
	}

	t, ok := e.Get(id)
	if !ok {
		return
	}

	switch t.Kind() {
	case KindArrow:
		e.removeDependent(t.Source, id)
		if t.Target != t.Source {
			e.removeDependent(t.Target, id)
		}
	case KindDescriptor:
		e.removeDependent(t.Target, id)
	case KindExtension:
		e.removeDependent(t.Source, id)
	}

	e.poolFor(t.Kind()).remove(id)

	e.mu.Lock()
	delete(e.tiles, id)
	e.mu.Unlock()

	e.depMu.Lock()
	delete(e.dependents, id)
	e.depMu.Unlock()
}

// SetField updates one field on a live tile, enforcing the declared
// datatype.
func (e *Engine) SetField(id EntityId, field string, v schema.Value) error {
	t, ok := e.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrTileNotFound, id)
	}
	ct, err := e.types.Get(t.Component)
	if err != nil {
		return err
	}
	f, ok := ct.Field(field)
	if !ok {
		return fmt.Errorf("%w: %q on component %q", ErrUnknownField, field, ct.Name)
	}
	if !v.Matches(f.Datatype) {
		return fmt.Errorf("%w: field %q of %q wants %s", ErrFieldType, field, ct.Name, f.Datatype)
	}
	e.mu.Lock()
	t.Fields[field] = v
	e.mu.Unlock()
	return nil
}

// GetField reads one field from a live tile.
func (e *Engine) GetField(id EntityId, field string) (schema.Value, error) {
	t, ok := e.Get(id)
	if !ok {
		return schema.Value{}, fmt.Errorf("%w: %d", ErrTileNotFound, id)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := t.Fields[field]
	if !ok {
		return schema.Value{}, fmt.Errorf("%w: %q on component %q", ErrUnknownField, field, t.Component)
	}
	return v, nil
}

// GetComponent returns the tile carrying the named component for t:
// t itself if its component matches, otherwise the first descriptor or
// extension of t with that component, in attachment order.
func (e *Engine) GetComponent(t *Tile, component string) (*Tile, bool) {
	if t.Component == component {
		return t, true
	}
	for _, dep := range e.Dependents(t.ID) {
		if dep.Component != component {
			continue
		}
		if dep.IsDescriptor() || dep.IsExtension() {
			return dep, true
		}
	}
	return nil, false
}

// AddComponent attaches component data to t as a descriptor tile.
func (e *Engine) AddComponent(t *Tile, component string, values map[string]schema.Value) (*Tile, error) {
	return e.NewDescriptor(t.ID, component, values)
}

// RemoveComponent deletes the first descriptor or extension of t
// carrying the named component. Returns false if none exists.
func (e *Engine) RemoveComponent(t *Tile, component string) bool {
	for _, dep := range e.Dependents(t.ID) {
		if dep.Component == component && (dep.IsDescriptor() || dep.IsExtension()) {
			e.Delete(dep.ID)
			return true
		}
	}
	return false
}

// Clear resets the engine to its initial state: no tiles, the id counter
// back to zero, and a fresh type registry holding only "void".
func (e *Engine) Clear() {
	e.mu.Lock()
	e.tiles = make(map[EntityId]*Tile)
	e.mu.Unlock()

	e.objects.clear()
	e.arrows.clear()
	e.descriptors.clear()
	e.extensions.clear()

	e.depMu.Lock()
	e.dependents = make(map[EntityId][]EntityId)
	e.depMu.Unlock()

	e.types = schema.NewRegistry()
	if _, err := e.types.AddTypes("void: void;"); err != nil {
		panic(fmt.Sprintf("graph: registering builtin void type: %v", err))
	}
	e.counter.Store(0)
}
