package meta

import (
	"fmt"
	"sync/atomic"

	"github.com/chazu/vulcan/vmconfig"
)

// ---------------------------------------------------------------------------
// Field: descriptor for a single field of a managed class
// ---------------------------------------------------------------------------

// Field describes one field of a managed class: its byte offset, raw
// modifier bits, position in the holder's field table, and lazily resolved
// declared type. One descriptor is created per field when the class's field
// table is built; it lives as long as the holder and is shared by every
// compiler thread touching the class.
//
// Field equality is deliberately coarse: two descriptors are equal iff they
// have the same offset, the same static-ness, and the same holder. The
// declared name and type do not participate. This lets descriptors obtained
// through different resolution paths correlate; do not "fix" it to compare
// names.
type Field struct {
	holder *ClassType

	// typ holds the declared type, either unresolved or resolved.
	// Resolution upgrades it in place under an accepted benign race: any
	// number of threads may resolve concurrently, each computing an
	// equivalent result, and the compare-and-swap below tolerates lost
	// updates (the loser's value is the same class, or a future caller
	// simply re-resolves). Do not add a lock here; holder-level locking on
	// every type read would serialize the compiler's resolution hot path.
	typ atomic.Pointer[TypeRef]

	offset int32
	index  int16

	// rawModifiers holds all modifier bits as stored by the VM, including
	// internal-only bits not exposed through Modifiers.
	rawModifiers uint32
}

// DeclaringClass returns the class that declares this field.
func (f *Field) DeclaringClass() *ClassType {
	return f.holder
}

// Name returns the field's name, looked up in the holder's field table.
func (f *Field) Name() string {
	return f.holder.FieldName(int(f.index))
}

// Offset returns the field's byte offset within the instance (or static
// storage for static fields). Fixed at construction.
func (f *Field) Offset() int32 {
	return f.offset
}

// Index returns the field's position in the holder's field table.
func (f *Field) Index() int {
	return int(f.index)
}

// ---------------------------------------------------------------------------
// Modifiers
// ---------------------------------------------------------------------------

// RawModifiers returns all modifier bits, including internal-only ones.
func (f *Field) RawModifiers() uint32 {
	return f.rawModifiers
}

// Modifiers returns the modifier bits masked down to the publicly defined
// field modifier set. Internal bits are queried through the dedicated
// predicates instead.
func (f *Field) Modifiers() uint32 {
	return f.rawModifiers & f.config().FieldModifiers
}

// IsStatic returns true for static fields.
func (f *Field) IsStatic() bool {
	return f.rawModifiers&f.config().AccStatic != 0
}

// IsInternal returns true for VM-internal fields. Internal fields never
// carry annotations.
func (f *Field) IsInternal() bool {
	return f.rawModifiers&f.config().AccInternal != 0
}

// IsSynthetic returns true for compiler-synthesized fields.
func (f *Field) IsSynthetic() bool {
	return f.rawModifiers&f.config().AccSynthetic != 0
}

// IsStable returns true for fields marked stable, i.e. fields whose value
// the compiler may constant-fold once observed non-default.
func (f *Field) IsStable() bool {
	return f.rawModifiers&f.config().AccStable != 0
}

func (f *Field) config() *vmconfig.Config {
	return f.holder.universe.config
}

// ---------------------------------------------------------------------------
// Declared type resolution
// ---------------------------------------------------------------------------

// Type returns the field's declared type. If the reference is still
// unresolved, resolution is attempted through the holder; on success the
// descriptor is upgraded in place and the resolved class is returned. On
// failure the unresolved reference is returned unchanged and a later call
// retries. Resolution failure is never fatal.
//
// Once a call has observed a resolved type, every subsequent call returns
// that same value.
func (f *Field) Type() TypeRef {
	// Load the cell once so the check and the CAS race against the same
	// snapshot.
	cell := f.typ.Load()
	current := *cell
	if current.IsResolved() {
		return current
	}
	resolved := f.holder.ResolveType(current)
	if resolved == nil {
		return current
	}
	var upgraded TypeRef = resolved
	// Lost races leave an equivalent resolved value in place.
	f.typ.CompareAndSwap(cell, &upgraded)
	return resolved
}

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

// Equal reports the coarse field identity: same offset, same static-ness,
// same holder. See the type comment for why name and declared type are
// excluded.
func (f *Field) Equal(other *Field) bool {
	if f == other {
		return true
	}
	if other == nil {
		return false
	}
	if f.offset != other.offset || f.IsStatic() != other.IsStatic() {
		return false
	}
	return f.holder == other.holder
}

// Hash returns the descriptor's hash: holder hash XOR offset. Descriptors
// that are Equal always share a hash.
func (f *Field) Hash() uint32 {
	return f.holder.Hash() ^ uint32(f.offset)
}

// String implements the Stringer interface.
func (f *Field) String() string {
	return fmt.Sprintf("Field<%s.%s %s:%d>", f.holder.Name(), f.Name(), f.Type().TypeName(), f.offset)
}

// ---------------------------------------------------------------------------
// Instance membership
// ---------------------------------------------------------------------------

// Object is the minimal view of a managed instance this layer needs: the
// ability to report its runtime class.
type Object interface {
	RuntimeClass() *ClassType
}

// IsInObject returns true iff this field physically exists in the given
// instance: the field is non-static and its declaring class is assignable
// from the instance's runtime class. Static fields are never in any
// instance.
func (f *Field) IsInObject(obj Object) bool {
	if f.IsStatic() {
		return false
	}
	if obj == nil {
		return false
	}
	return f.holder.IsAssignableFrom(obj.RuntimeClass())
}

// Instance is a trivial Object implementation carrying only a runtime
// class. Handy for wiring code and tests that have no real heap object.
type Instance struct {
	class *ClassType
}

// NewInstance creates an instance handle of the given class.
func NewInstance(class *ClassType) *Instance {
	return &Instance{class: class}
}

// RuntimeClass implements Object.
func (i *Instance) RuntimeClass() *ClassType {
	return i.class
}

// ---------------------------------------------------------------------------
// Annotation presence probe
// ---------------------------------------------------------------------------

// HasAnnotations reports whether the field has any annotations, without
// materializing a reflection mirror. Internal fields never carry
// annotations, so they answer false before touching metadata memory.
//
// For all other fields this walks the VM's metadata structures through the
// universe's MemoryView: class record -> annotations blob -> per-field
// annotation table -> entry for this field's table index. The field has
// annotations iff the final pointer is non-null. A null at any level (for
// example a class compiled without annotations at all) short-circuits to
// false.
func (f *Field) HasAnnotations() bool {
	if f.IsInternal() {
		return false
	}
	cfg := f.holder.universe.config
	mem := f.holder.universe.mem

	blob := mem.ReadPointer(f.holder.metaspace + uintptr(cfg.ClassAnnotationsOffset))
	if blob == 0 {
		return false
	}
	table := mem.ReadPointer(blob + uintptr(cfg.FieldAnnotationsOffset))
	if table == 0 {
		return false
	}
	entry := mem.ReadPointer(table + uintptr(cfg.FieldAnnotationsBaseOffset) + uintptr(cfg.PointerSize)*uintptr(f.index))
	return entry != 0
}

// Annotations returns the field's annotations, or nil when it has none.
// The probe above gates the reflection mirror so annotation-free fields
// never construct one.
func (f *Field) Annotations() []*Annotation {
	if !f.HasAnnotations() {
		return nil
	}
	m, err := f.Mirror()
	if err != nil {
		return nil
	}
	return m.Annotations()
}

// DeclaredAnnotations returns the annotations declared directly on the
// field, or nil when it has none.
func (f *Field) DeclaredAnnotations() []*Annotation {
	if !f.HasAnnotations() {
		return nil
	}
	m, err := f.Mirror()
	if err != nil {
		return nil
	}
	return m.DeclaredAnnotations()
}

// Annotation returns the field's annotation of the given type, or nil.
func (f *Field) Annotation(typeName string) *Annotation {
	if !f.HasAnnotations() {
		return nil
	}
	m, err := f.Mirror()
	if err != nil {
		return nil
	}
	return m.Annotation(typeName)
}
