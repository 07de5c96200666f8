package meta

// ---------------------------------------------------------------------------
// TypeRef: resolved or unresolved reference to a managed type
// ---------------------------------------------------------------------------

// TypeRef names a managed type. A reference is either resolved (backed by a
// *ClassType in some universe) or unresolved (a bare name for a type the
// universe has not loaded yet). An unresolved reference is a legitimate
// transient value, not an error: callers hold on to it and retry resolution
// later.
type TypeRef interface {
	// TypeName returns the fully qualified name of the referenced type.
	TypeName() string

	// IsResolved returns true if this reference is backed by a loaded class.
	IsResolved() bool
}

// UnresolvedType is a placeholder reference to a type that has not been
// located by the universe. Immutable.
type UnresolvedType struct {
	name string
}

// Unresolved creates an unresolved reference to the named type.
func Unresolved(name string) *UnresolvedType {
	return &UnresolvedType{name: name}
}

// TypeName returns the name this reference was created with.
func (u *UnresolvedType) TypeName() string {
	return u.name
}

// IsResolved always returns false.
func (u *UnresolvedType) IsResolved() bool {
	return false
}

// String implements the Stringer interface.
func (u *UnresolvedType) String() string {
	return "<unresolved " + u.name + ">"
}
