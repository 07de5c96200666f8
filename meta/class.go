package meta

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/chazu/vulcan/vmconfig"
)

// ---------------------------------------------------------------------------
// ClassType: holder metadata for a managed class
// ---------------------------------------------------------------------------

// ClassType is the metadata view of a loaded managed class. It owns the
// class's field table and the reflection mirror cache for those fields.
// A ClassType is shared by every descriptor and compiler thread working on
// the class; the field table is append-only during class construction and
// frozen afterwards.
//
// ClassType implements TypeRef (a class is a resolved reference to itself).
type ClassType struct {
	name       string
	superclass *ClassType
	universe   *Universe

	// metaspace is the base address of this class's record in the VM's
	// metadata memory. Zero when no metadata is mapped; the annotation
	// probe then reads null at every level.
	metaspace uintptr

	// fields and fieldNames are parallel: the name of fields[i] lives in
	// fieldNames[i]. Descriptors look their name up here by index instead
	// of caching it locally.
	fields     []*Field
	fieldNames []string

	// mirrorCache maps field identity to the platform reflection mirror.
	// Lazily allocated; both the allocation check and the lookup happen
	// under mu so there is no double-checked-locking window.
	mu          sync.Mutex
	mirrorCache map[fieldKey]*FieldMirror
}

// fieldKey is the cache key for reflection mirrors. It mirrors the coarse
// field identity: offset and static-ness, with the holder implied by which
// cache the key lives in.
type fieldKey struct {
	offset int32
	static bool
}

// Name returns the fully qualified class name.
func (c *ClassType) Name() string {
	return c.name
}

// TypeName implements TypeRef.
func (c *ClassType) TypeName() string {
	return c.name
}

// IsResolved implements TypeRef; a ClassType is always resolved.
func (c *ClassType) IsResolved() bool {
	return true
}

// Superclass returns the direct superclass, or nil for a root class.
func (c *ClassType) Superclass() *ClassType {
	return c.superclass
}

// Universe returns the universe this class was loaded into.
func (c *ClassType) Universe() *Universe {
	return c.universe
}

// Metaspace returns the base address of the class's VM metadata record.
func (c *ClassType) Metaspace() uintptr {
	return c.metaspace
}

// SetMetaspace binds the class to its VM metadata record. Called once when
// the class record is mapped; the annotation probe walks from this address.
func (c *ClassType) SetMetaspace(addr uintptr) {
	c.metaspace = addr
}

// Hash returns a stable hash of the class identity, derived from the name
// so it survives snapshot round trips.
func (c *ClassType) Hash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(c.name))
	return h.Sum32()
}

// String implements the Stringer interface.
func (c *ClassType) String() string {
	return c.name
}

// ---------------------------------------------------------------------------
// Field table
// ---------------------------------------------------------------------------

// AddField appends a field to the class's field table and returns its
// descriptor. Fields must be added in field-table order during class
// construction; the table must not change once descriptors have been
// handed out to the compiler.
func (c *ClassType) AddField(name string, typ TypeRef, offset int32, modifiers uint32) *Field {
	f := &Field{
		holder:       c,
		offset:       offset,
		index:        int16(len(c.fields)),
		rawModifiers: modifiers,
	}
	f.typ.Store(&typ)
	c.fields = append(c.fields, f)
	c.fieldNames = append(c.fieldNames, name)
	return f
}

// Fields returns the class's field table in declaration order.
func (c *ClassType) Fields() []*Field {
	return c.fields
}

// FieldCount returns the number of fields in the table.
func (c *ClassType) FieldCount() int {
	return len(c.fields)
}

// FieldAt returns the descriptor at the given field-table index, or nil if
// the index is out of range.
func (c *ClassType) FieldAt(index int) *Field {
	if index < 0 || index >= len(c.fields) {
		return nil
	}
	return c.fields[index]
}

// FieldName returns the name of the field at the given table index.
// Descriptors delegate here rather than caching the name locally.
func (c *ClassType) FieldName(index int) string {
	if index < 0 || index >= len(c.fieldNames) {
		return ""
	}
	return c.fieldNames[index]
}

// ---------------------------------------------------------------------------
// Type relations
// ---------------------------------------------------------------------------

// IsAssignableFrom returns true if a value of class other can be stored in
// a slot of this class's type, i.e. other is this class or a subclass.
func (c *ClassType) IsAssignableFrom(other *ClassType) bool {
	for current := other; current != nil; current = current.superclass {
		if current == c {
			return true
		}
	}
	return false
}

// ResolveType attempts to resolve ref against this class's universe.
// Returns nil when the type is not loaded; that is not an error, the caller
// keeps the unresolved reference and may retry later.
func (c *ClassType) ResolveType(ref TypeRef) *ClassType {
	if resolved, ok := ref.(*ClassType); ok {
		return resolved
	}
	return c.universe.Lookup(ref.TypeName())
}

// ---------------------------------------------------------------------------
// Universe: class registry and collaborator wiring
// ---------------------------------------------------------------------------

// Universe is the registry of loaded classes together with the external
// collaborators the metadata layer consumes: the VM configuration, the
// metadata memory view, and the reflection bridge. The configuration is an
// explicit handle, never a process global, so tests can run with synthetic
// layouts.
type Universe struct {
	config *vmconfig.Config
	mem    MemoryView
	bridge ReflectionBridge

	mu      sync.RWMutex
	classes map[string]*ClassType
}

// NewUniverse creates an empty universe using the given configuration.
// The universe starts with a SparseMemory metadata view and the built-in
// registry bridge; callers embedding this layer in a live VM replace both
// with SetMemory and SetBridge before loading classes.
func NewUniverse(config *vmconfig.Config) *Universe {
	u := &Universe{
		config:  config,
		mem:     NewSparseMemory(),
		classes: make(map[string]*ClassType),
	}
	u.bridge = newRegistryBridge()
	return u
}

// Config returns the VM configuration handle.
func (u *Universe) Config() *vmconfig.Config {
	return u.config
}

// Memory returns the metadata memory view.
func (u *Universe) Memory() MemoryView {
	return u.mem
}

// SetMemory replaces the metadata memory view. Must be called before any
// classes are registered.
func (u *Universe) SetMemory(mem MemoryView) {
	u.mem = mem
}

// SetBridge replaces the reflection bridge. Must be called before any
// mirrors are requested.
func (u *Universe) SetBridge(bridge ReflectionBridge) {
	u.bridge = bridge
}

// NewClass creates a class in this universe and registers it by name.
// Returns the previously registered class unchanged if the name is taken.
func (u *Universe) NewClass(name string, superclass *ClassType) *ClassType {
	u.mu.Lock()
	defer u.mu.Unlock()

	if existing, ok := u.classes[name]; ok {
		return existing
	}
	c := &ClassType{
		name:       name,
		superclass: superclass,
		universe:   u,
	}
	u.classes[name] = c
	return c
}

// Lookup finds a loaded class by name, or nil.
func (u *Universe) Lookup(name string) *ClassType {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.classes[name]
}

// MustClass returns the named class or panics. For wiring code that loads
// classes it just registered.
func (u *Universe) MustClass(name string) *ClassType {
	c := u.Lookup(name)
	if c == nil {
		panic(fmt.Sprintf("meta: class %s not loaded", name))
	}
	return c
}

// Classes returns all loaded classes sorted by name.
func (u *Universe) Classes() []*ClassType {
	u.mu.RLock()
	defer u.mu.RUnlock()

	result := make([]*ClassType, 0, len(u.classes))
	for _, c := range u.classes {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].name < result[j].name })
	return result
}

// Len returns the number of loaded classes.
func (u *Universe) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.classes)
}

// ---------------------------------------------------------------------------
// Annotation binding
// ---------------------------------------------------------------------------

// BindFieldAnnotations attaches declared annotations to the field at the
// given table index. The annotations are registered with the built-in
// bridge and, when the universe owns a SparseMemory view, the three-level
// annotation pointer chain (class record -> annotations blob -> per-field
// table -> entry) is materialized so the presence probe finds them.
//
// Universes wired to a live VM carry the pointer chain in real metadata
// memory; for those this call only feeds the registry bridge.
func (u *Universe) BindFieldAnnotations(c *ClassType, index int, annotations []*Annotation) {
	if len(annotations) == 0 || c.FieldAt(index) == nil {
		return
	}

	if rb, ok := u.bridge.(*registryBridge); ok {
		rb.bind(c, index, annotations)
	}

	mem, ok := u.mem.(*SparseMemory)
	if !ok {
		return
	}
	cfg := u.config
	ptrSize := uintptr(cfg.PointerSize)

	if c.metaspace == 0 {
		c.metaspace = mem.Alloc(int(cfg.ClassAnnotationsOffset) + cfg.PointerSize)
	}
	blob := mem.ReadPointer(c.metaspace + uintptr(cfg.ClassAnnotationsOffset))
	if blob == 0 {
		blob = mem.Alloc(int(cfg.FieldAnnotationsOffset) + cfg.PointerSize)
		mem.WritePointer(c.metaspace+uintptr(cfg.ClassAnnotationsOffset), blob)
	}
	table := mem.ReadPointer(blob + uintptr(cfg.FieldAnnotationsOffset))
	if table == 0 {
		table = mem.Alloc(int(cfg.FieldAnnotationsBaseOffset) + cfg.PointerSize*c.FieldCount())
		mem.WritePointer(blob+uintptr(cfg.FieldAnnotationsOffset), table)
	}
	slot := table + uintptr(cfg.FieldAnnotationsBaseOffset) + ptrSize*uintptr(index)
	if mem.ReadPointer(slot) == 0 {
		mem.WritePointer(slot, mem.Alloc(cfg.PointerSize))
	}
}
