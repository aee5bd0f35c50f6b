package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrComponentNotFound = errors.New("component type not found")

// Registry holds flattened, immutable component types. Lookups by name
// are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*ComponentType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*ComponentType)}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

// Get returns the flattened component type for name.
func (r *Registry) Get(name string) (*ComponentType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ct, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrComponentNotFound, name)
	}
	return ct, nil
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddTypes parses src and registers every declaration it contains, in
// order. A declaration may reference types registered earlier, including
// earlier declarations in the same batch. On any parse or resolution
// error nothing is registered. Re-declaring an already registered name
// is a no-op, even if the shape differs.
func (r *Registry) AddTypes(src string) ([]*ComponentType, error) {
	decls, err := Parse(src)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Flatten the whole batch against registered types plus earlier batch
	// members before touching the registry, so an error registers nothing.
	staged := make(map[string]*ComponentType)
	resolve := func(name string) (*ComponentType, bool) {
		if ct, ok := staged[name]; ok {
			return ct, true
		}
		ct, ok := r.types[name]
		return ct, ok
	}

	out := make([]*ComponentType, 0, len(decls))
	for _, decl := range decls {
		flat, err := flatten(decl, resolve)
		if err != nil {
			return nil, err
		}
		if _, exists := resolve(decl.Name); !exists {
			staged[decl.Name] = flat
		}
		out = append(out, flat)
	}

	for name, ct := range staged {
		r.types[name] = ct
	}
	return out, nil
}

// flatten rewrites component references into primitives. An alias of
// another component copies that component's shape under the new name. A
// field referencing an alias takes the alias's primitive; a field
// referencing a product or sum expands into dotted sub-fields.
func flatten(decl *ComponentType, resolve func(string) (*ComponentType, bool)) (*ComponentType, error) {
	if decl.Kind == Alias {
		dt := decl.Fields[0].Datatype
		if dt.Kind != KindComp {
			return &ComponentType{Name: decl.Name, Kind: Alias, Fields: []Field{{Name: SelfField, Datatype: dt}}}, nil
		}
		target, ok := resolve(dt.Comp)
		if !ok {
			return nil, fmt.Errorf("%w: %q (referenced by alias %q)", ErrComponentNotFound, dt.Comp, decl.Name)
		}
		fields := make([]Field, len(target.Fields))
		copy(fields, target.Fields)
		return &ComponentType{Name: decl.Name, Kind: target.Kind, Fields: fields}, nil
	}

	var fields []Field
	for _, f := range decl.Fields {
		if f.Datatype.Kind != KindComp {
			fields = append(fields, f)
			continue
		}
		target, ok := resolve(f.Datatype.Comp)
		if !ok {
			return nil, fmt.Errorf("%w: %q (referenced by field %q of %q)", ErrComponentNotFound, f.Datatype.Comp, f.Name, decl.Name)
		}
		switch target.Kind {
		case Alias:
			fields = append(fields, Field{Name: f.Name, Datatype: target.Fields[0].Datatype})
		case Product, Sum:
			for _, sub := range target.Fields {
				fields = append(fields, Field{Name: f.Name + "." + sub.Name, Datatype: sub.Datatype})
			}
		}
	}
	return &ComponentType{Name: decl.Name, Kind: decl.Kind, Fields: fields}, nil
}
