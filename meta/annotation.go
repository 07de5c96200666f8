package meta

// ---------------------------------------------------------------------------
// Annotation: introspected annotation value
// ---------------------------------------------------------------------------

// Annotation is a single annotation attached to a field, as surfaced by the
// reflection layer. Instances are identity-stable: repeated annotation
// queries against the same field return the same *Annotation pointers, so
// callers may compare them with ==.
type Annotation struct {
	// Type is the fully qualified name of the annotation type.
	Type string

	// Elements holds the annotation's element values keyed by element name.
	Elements map[string]string
}

// Element returns the named element value, or "" if absent.
func (a *Annotation) Element(name string) string {
	if a == nil {
		return ""
	}
	return a.Elements[name]
}

// String implements the Stringer interface.
func (a *Annotation) String() string {
	return "@" + a.Type
}
