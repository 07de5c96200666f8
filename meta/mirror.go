package meta

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// FieldMirror: platform reflection handle for a field
// ---------------------------------------------------------------------------

// FieldMirror is the reflection-layer handle for a field. It carries the
// field's declared annotations and supports annotation introspection.
// Mirrors are identity-stable: for a given field the cache in Field.Mirror
// always hands back the same *FieldMirror, which keeps the annotation
// objects it returns ==-stable for callers.
type FieldMirror struct {
	class    *ClassType
	name     string
	declared []*Annotation
}

// NewFieldMirror creates a mirror. Bridges call this; compiler code obtains
// mirrors through Field.Mirror instead.
func NewFieldMirror(class *ClassType, name string, declared []*Annotation) *FieldMirror {
	return &FieldMirror{class: class, name: name, declared: declared}
}

// Name returns the mirrored field's name.
func (m *FieldMirror) Name() string {
	return m.name
}

// DeclaringClass returns the class declaring the mirrored field.
func (m *FieldMirror) DeclaringClass() *ClassType {
	return m.class
}

// Annotations returns all annotations visible on the field. Fields do not
// inherit annotations, so this is the declared set.
func (m *FieldMirror) Annotations() []*Annotation {
	return m.declared
}

// DeclaredAnnotations returns the annotations declared directly on the
// field. Callers must not mutate the returned slice.
func (m *FieldMirror) DeclaredAnnotations() []*Annotation {
	return m.declared
}

// Annotation returns the annotation of the given type, or nil.
func (m *FieldMirror) Annotation(typeName string) *Annotation {
	for _, a := range m.declared {
		if a.Type == typeName {
			return a
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// ReflectionBridge: mirror construction
// ---------------------------------------------------------------------------

// ReflectionBridge constructs reflection mirrors from the host platform.
// The mirror cache guarantees AsReflectionField is invoked at most once per
// (holder, field) pair for the lifetime of the process.
type ReflectionBridge interface {
	AsReflectionField(holder *ClassType, index int) (*FieldMirror, error)
}

// registryBridge is the built-in in-process bridge. It serves mirrors from
// the annotation registry populated by Universe.BindFieldAnnotations;
// snapshot restoration and tests run on it.
type registryBridge struct {
	mu          sync.RWMutex
	annotations map[*ClassType]map[int][]*Annotation
}

func newRegistryBridge() *registryBridge {
	return &registryBridge{annotations: make(map[*ClassType]map[int][]*Annotation)}
}

func (b *registryBridge) bind(c *ClassType, index int, annotations []*Annotation) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.annotations[c] == nil {
		b.annotations[c] = make(map[int][]*Annotation)
	}
	b.annotations[c][index] = annotations
}

// AsReflectionField implements ReflectionBridge.
func (b *registryBridge) AsReflectionField(holder *ClassType, index int) (*FieldMirror, error) {
	if holder.FieldAt(index) == nil {
		return nil, fmt.Errorf("meta: class %s has no field at index %d", holder.Name(), index)
	}
	b.mu.RLock()
	declared := b.annotations[holder][index]
	b.mu.RUnlock()
	return NewFieldMirror(holder, holder.FieldName(index), declared), nil
}

// ---------------------------------------------------------------------------
// Mirror cache
// ---------------------------------------------------------------------------

// Mirror returns the reflection mirror for this field, constructing it
// through the universe's bridge on first request. The holder's critical
// section covers the lazy cache allocation, the lookup, and the insert, so
// N concurrent callers observe exactly one mirror and the bridge runs at
// most once per field. The lock is released on every path, including
// bridge failure.
//
// Contention here is limited to annotation and reflection access; ordinary
// compilation never takes this lock.
func (f *Field) Mirror() (*FieldMirror, error) {
	h := f.holder
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.mirrorCache == nil {
		h.mirrorCache = make(map[fieldKey]*FieldMirror)
	}
	key := fieldKey{offset: f.offset, static: f.IsStatic()}
	if m, ok := h.mirrorCache[key]; ok {
		return m, nil
	}
	m, err := h.universe.bridge.AsReflectionField(h, int(f.index))
	if err != nil {
		return nil, fmt.Errorf("meta: mirror for %s.%s: %w", h.Name(), f.Name(), err)
	}
	h.mirrorCache[key] = m
	return m, nil
}
