package meta

import (
	"testing"

	"github.com/chazu/vulcan/vmconfig"
)

func newTestUniverse() *Universe {
	return NewUniverse(vmconfig.Default())
}

// ---------------------------------------------------------------------------
// Universe registry tests
// ---------------------------------------------------------------------------

func TestNewClassRegisters(t *testing.T) {
	u := newTestUniverse()
	c := u.NewClass("app.Widget", nil)
	if c == nil {
		t.Fatal("NewClass returned nil")
	}
	if u.Lookup("app.Widget") != c {
		t.Error("Lookup should return the registered class")
	}
	if u.Lookup("app.Missing") != nil {
		t.Error("Lookup of unknown class should return nil")
	}
	if u.Len() != 1 {
		t.Errorf("Len() = %d, want 1", u.Len())
	}
}

func TestNewClassDuplicateName(t *testing.T) {
	u := newTestUniverse()
	a := u.NewClass("app.Widget", nil)
	b := u.NewClass("app.Widget", nil)
	if a != b {
		t.Error("registering a taken name should return the existing class")
	}
}

func TestClassesSorted(t *testing.T) {
	u := newTestUniverse()
	u.NewClass("b.Second", nil)
	u.NewClass("a.First", nil)
	u.NewClass("c.Third", nil)

	classes := u.Classes()
	if len(classes) != 3 {
		t.Fatalf("Classes() len = %d, want 3", len(classes))
	}
	for i, want := range []string{"a.First", "b.Second", "c.Third"} {
		if classes[i].Name() != want {
			t.Errorf("Classes()[%d] = %s, want %s", i, classes[i].Name(), want)
		}
	}
}

// ---------------------------------------------------------------------------
// Field table tests
// ---------------------------------------------------------------------------

func TestAddFieldTableOrder(t *testing.T) {
	u := newTestUniverse()
	c := u.NewClass("app.Point", nil)
	x := c.AddField("x", Unresolved("builtin.Int"), 8, vmconfig.AccPrivate)
	y := c.AddField("y", Unresolved("builtin.Int"), 16, vmconfig.AccPrivate)

	if c.FieldCount() != 2 {
		t.Fatalf("FieldCount() = %d, want 2", c.FieldCount())
	}
	if c.FieldAt(0) != x || c.FieldAt(1) != y {
		t.Error("FieldAt should return fields in declaration order")
	}
	if c.FieldAt(2) != nil || c.FieldAt(-1) != nil {
		t.Error("FieldAt out of range should return nil")
	}
	if c.FieldName(0) != "x" || c.FieldName(1) != "y" {
		t.Error("FieldName should return declared names")
	}
	if c.FieldName(99) != "" {
		t.Error("FieldName out of range should return empty string")
	}
	if x.Index() != 0 || y.Index() != 1 {
		t.Error("descriptor indices should match table positions")
	}
}

// ---------------------------------------------------------------------------
// Assignability tests
// ---------------------------------------------------------------------------

func TestIsAssignableFrom(t *testing.T) {
	u := newTestUniverse()
	object := u.NewClass("core.Object", nil)
	shape := u.NewClass("app.Shape", object)
	circle := u.NewClass("app.Circle", shape)
	other := u.NewClass("app.Other", object)

	if !object.IsAssignableFrom(circle) {
		t.Error("Object should be assignable from Circle")
	}
	if !shape.IsAssignableFrom(shape) {
		t.Error("a class is assignable from itself")
	}
	if shape.IsAssignableFrom(object) {
		t.Error("Shape should not be assignable from Object")
	}
	if shape.IsAssignableFrom(other) {
		t.Error("Shape should not be assignable from a sibling")
	}
}

// ---------------------------------------------------------------------------
// Resolution tests
// ---------------------------------------------------------------------------

func TestResolveType(t *testing.T) {
	u := newTestUniverse()
	c := u.NewClass("app.Holder", nil)
	widget := u.NewClass("app.Widget", nil)

	if got := c.ResolveType(Unresolved("app.Widget")); got != widget {
		t.Errorf("ResolveType = %v, want app.Widget", got)
	}
	if got := c.ResolveType(Unresolved("app.Missing")); got != nil {
		t.Errorf("ResolveType of missing class = %v, want nil", got)
	}
	// A resolved reference resolves to itself.
	if got := c.ResolveType(widget); got != widget {
		t.Errorf("ResolveType of resolved ref = %v, want identity", got)
	}
}

func TestClassHashStable(t *testing.T) {
	u1 := newTestUniverse()
	u2 := newTestUniverse()
	a := u1.NewClass("app.Widget", nil)
	b := u2.NewClass("app.Widget", nil)
	if a.Hash() != b.Hash() {
		t.Error("class hash should depend only on the name")
	}
	c := u1.NewClass("app.Other", nil)
	if a.Hash() == c.Hash() {
		t.Error("different names should hash differently")
	}
}
