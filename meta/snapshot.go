package meta

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/chazu/vulcan/vmconfig"
)

// ---------------------------------------------------------------------------
// Snapshot: serialized class metadata
// ---------------------------------------------------------------------------

// SnapshotVersion is the current snapshot format version.
const SnapshotVersion = 1

// Snapshot is a serializable picture of a universe's class metadata: every
// class with its field table, modifier bits, offsets, and declared
// annotations. Snapshots back the offline inspection tooling and the
// persisted-code layout checks.
type Snapshot struct {
	ID      string        `cbor:"id"`
	Version int           `cbor:"version"`
	Classes []ClassRecord `cbor:"classes"`
}

// ClassRecord is one class in a snapshot.
type ClassRecord struct {
	Name       string        `cbor:"name"`
	Superclass string        `cbor:"superclass,omitempty"`
	Fields     []FieldRecord `cbor:"fields"`
}

// FieldRecord is one field-table entry in a snapshot, in table order.
type FieldRecord struct {
	Name        string             `cbor:"name"`
	Type        string             `cbor:"type"`
	Offset      int32              `cbor:"offset"`
	Modifiers   uint32             `cbor:"modifiers"`
	Annotations []AnnotationRecord `cbor:"annotations,omitempty"`
}

// AnnotationRecord is a serialized annotation.
type AnnotationRecord struct {
	Type     string            `cbor:"type"`
	Elements map[string]string `cbor:"elements,omitempty"`
}

// cborEncMode uses canonical encoding so identical universes produce
// byte-identical snapshots.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("meta: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalSnapshot serializes a Snapshot to CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("meta: unmarshal snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("meta: unsupported snapshot version %d", s.Version)
	}
	return &s, nil
}

// ---------------------------------------------------------------------------
// Building and restoring
// ---------------------------------------------------------------------------

// BuildSnapshot captures the given universe. Classes are recorded in name
// order and fields in table order, so two equal universes snapshot
// identically apart from the ID.
func BuildSnapshot(u *Universe) *Snapshot {
	s := &Snapshot{
		ID:      uuid.NewString(),
		Version: SnapshotVersion,
	}
	for _, c := range u.Classes() {
		rec := ClassRecord{Name: c.Name()}
		if c.Superclass() != nil {
			rec.Superclass = c.Superclass().Name()
		}
		for i, f := range c.Fields() {
			fr := FieldRecord{
				Name:      c.FieldName(i),
				Type:      f.Type().TypeName(),
				Offset:    f.Offset(),
				Modifiers: f.RawModifiers(),
			}
			for _, a := range f.DeclaredAnnotations() {
				fr.Annotations = append(fr.Annotations, AnnotationRecord{
					Type:     a.Type,
					Elements: a.Elements,
				})
			}
			rec.Fields = append(rec.Fields, fr)
		}
		s.Classes = append(s.Classes, rec)
	}
	return s
}

// Restore rebuilds a universe from the snapshot under the given
// configuration. Superclasses are linked, field types are left as
// references into the restored universe (unresolved when the snapshot
// never contained the named class), and annotation pointer chains are
// materialized into the universe's metadata memory so the presence probe
// works over restored classes.
func (s *Snapshot) Restore(config *vmconfig.Config) (*Universe, error) {
	u := NewUniverse(config)

	// First pass: register every class so superclass and field-type
	// references resolve regardless of record order.
	for _, rec := range s.Classes {
		u.NewClass(rec.Name, nil)
	}
	for _, rec := range s.Classes {
		c := u.Lookup(rec.Name)
		if rec.Superclass != "" {
			super := u.Lookup(rec.Superclass)
			if super == nil {
				return nil, fmt.Errorf("meta: snapshot class %s names missing superclass %s", rec.Name, rec.Superclass)
			}
			c.superclass = super
		}
		for i, fr := range rec.Fields {
			var typ TypeRef
			if resolved := u.Lookup(fr.Type); resolved != nil {
				typ = resolved
			} else {
				typ = Unresolved(fr.Type)
			}
			c.AddField(fr.Name, typ, fr.Offset, fr.Modifiers)
			if len(fr.Annotations) > 0 {
				annotations := make([]*Annotation, len(fr.Annotations))
				for j, ar := range fr.Annotations {
					annotations[j] = &Annotation{Type: ar.Type, Elements: ar.Elements}
				}
				u.BindFieldAnnotations(c, i, annotations)
			}
		}
	}
	return u, nil
}
