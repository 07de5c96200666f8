package meta

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/chazu/vulcan/vmconfig"
)

// ---------------------------------------------------------------------------
// Annotation presence probe
// ---------------------------------------------------------------------------

func TestHasAnnotations(t *testing.T) {
	u := newTestUniverse()
	c := u.NewClass("app.Widget", nil)
	plain := c.AddField("plain", Unresolved("builtin.Int"), 8, vmconfig.AccPrivate)
	tagged := c.AddField("tagged", Unresolved("builtin.Int"), 16, vmconfig.AccPrivate)

	u.BindFieldAnnotations(c, 1, []*Annotation{{Type: "app.Deprecated"}})

	if plain.HasAnnotations() {
		t.Error("unannotated field should probe false")
	}
	if !tagged.HasAnnotations() {
		t.Error("annotated field should probe true")
	}
}

func TestHasAnnotationsNoMetadata(t *testing.T) {
	u := newTestUniverse()
	c := u.NewClass("app.Widget", nil)
	f := c.AddField("x", Unresolved("builtin.Int"), 8, vmconfig.AccPrivate)

	// No metadata mapped at all: every level of the walk reads null.
	if f.HasAnnotations() {
		t.Error("field of a class with no metadata should probe false")
	}
}

// Internal fields answer false before the walk runs, even when annotation
// metadata for their index exists.
func TestHasAnnotationsInternalShortCircuit(t *testing.T) {
	u := newTestUniverse()
	c := u.NewClass("app.Widget", nil)
	f := c.AddField("vmstate", Unresolved("core.Object"), 8, vmconfig.AccFieldInternal)

	u.BindFieldAnnotations(c, 0, []*Annotation{{Type: "app.Deprecated"}})

	if f.HasAnnotations() {
		t.Error("internal field must report no annotations regardless of metadata")
	}
	if f.Annotations() != nil {
		t.Error("internal field must return no annotations")
	}
	if f.Annotation("app.Deprecated") != nil {
		t.Error("internal field must return nil for single-annotation lookup")
	}
}

// ---------------------------------------------------------------------------
// Annotation retrieval
// ---------------------------------------------------------------------------

func TestAnnotationRetrieval(t *testing.T) {
	u := newTestUniverse()
	c := u.NewClass("app.Widget", nil)
	f := c.AddField("handle", Unresolved("core.Object"), 8, vmconfig.AccPrivate)

	u.BindFieldAnnotations(c, 0, []*Annotation{
		{Type: "app.Deprecated", Elements: map[string]string{"since": "2.1"}},
		{Type: "app.Inject"},
	})

	anns := f.Annotations()
	if len(anns) != 2 {
		t.Fatalf("Annotations() len = %d, want 2", len(anns))
	}
	if got := f.Annotation("app.Deprecated"); got == nil || got.Element("since") != "2.1" {
		t.Errorf("Annotation(app.Deprecated) = %v", got)
	}
	if f.Annotation("app.Missing") != nil {
		t.Error("unknown annotation type should return nil")
	}
	if len(f.DeclaredAnnotations()) != 2 {
		t.Error("DeclaredAnnotations() should match the declared set")
	}
}

// Annotation objects must stay ==-stable across repeated queries.
func TestAnnotationIdentityStable(t *testing.T) {
	u := newTestUniverse()
	c := u.NewClass("app.Widget", nil)
	f := c.AddField("handle", Unresolved("core.Object"), 8, vmconfig.AccPrivate)
	u.BindFieldAnnotations(c, 0, []*Annotation{{Type: "app.Inject"}})

	first := f.Annotation("app.Inject")
	for i := 0; i < 5; i++ {
		if f.Annotation("app.Inject") != first {
			t.Fatal("repeated lookups must return the identical annotation object")
		}
	}
}

// ---------------------------------------------------------------------------
// Mirror cache
// ---------------------------------------------------------------------------

// countingBridge wraps a bridge and counts constructions.
type countingBridge struct {
	inner ReflectionBridge
	calls int64
}

func (b *countingBridge) AsReflectionField(holder *ClassType, index int) (*FieldMirror, error) {
	atomic.AddInt64(&b.calls, 1)
	return b.inner.AsReflectionField(holder, index)
}

func TestMirrorCached(t *testing.T) {
	u := newTestUniverse()
	bridge := &countingBridge{inner: newRegistryBridge()}
	u.SetBridge(bridge)

	c := u.NewClass("app.Widget", nil)
	f := c.AddField("x", Unresolved("builtin.Int"), 8, vmconfig.AccPrivate)

	first, err := f.Mirror()
	if err != nil {
		t.Fatalf("Mirror() error: %v", err)
	}
	second, err := f.Mirror()
	if err != nil {
		t.Fatalf("Mirror() error: %v", err)
	}
	if first != second {
		t.Error("Mirror() must return the identical handle")
	}
	if n := atomic.LoadInt64(&bridge.calls); n != 1 {
		t.Errorf("bridge invoked %d times, want 1", n)
	}
	if first.Name() != "x" || first.DeclaringClass() != c {
		t.Error("mirror should describe the field")
	}
}

func TestMirrorConcurrent(t *testing.T) {
	u := newTestUniverse()
	bridge := &countingBridge{inner: newRegistryBridge()}
	u.SetBridge(bridge)

	c := u.NewClass("app.Widget", nil)
	f := c.AddField("x", Unresolved("builtin.Int"), 8, vmconfig.AccPrivate)

	const workers = 50
	var wg sync.WaitGroup
	mirrors := make([]*FieldMirror, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			m, err := f.Mirror()
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			mirrors[i] = m
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if mirrors[i] != mirrors[0] {
			t.Fatal("all concurrent callers must observe the same mirror instance")
		}
	}
	if n := atomic.LoadInt64(&bridge.calls); n != 1 {
		t.Errorf("bridge invoked %d times under contention, want exactly 1", n)
	}
}

// Descriptors that are Equal share one cache entry: the mirror resolved
// through one is returned for the other.
func TestMirrorSharedByEqualDescriptors(t *testing.T) {
	u := newTestUniverse()
	c := u.NewClass("app.Widget", nil)
	a := c.AddField("first", Unresolved("builtin.Int"), 8, vmconfig.AccPrivate)
	b := c.AddField("second", Unresolved("builtin.Float"), 8, vmconfig.AccPublic)

	ma, err := a.Mirror()
	if err != nil {
		t.Fatal(err)
	}
	mb, err := b.Mirror()
	if err != nil {
		t.Fatal(err)
	}
	if ma != mb {
		t.Error("equal descriptors share a mirror cache entry")
	}
}

// failingBridge always errors; the cache must stay usable afterwards.
type failingBridge struct {
	fail int32
	next ReflectionBridge
}

func (b *failingBridge) AsReflectionField(holder *ClassType, index int) (*FieldMirror, error) {
	if atomic.LoadInt32(&b.fail) != 0 {
		return nil, errors.New("bridge unavailable")
	}
	return b.next.AsReflectionField(holder, index)
}

func TestMirrorBridgeFailureReleasesLock(t *testing.T) {
	u := newTestUniverse()
	bridge := &failingBridge{fail: 1, next: newRegistryBridge()}
	u.SetBridge(bridge)

	c := u.NewClass("app.Widget", nil)
	f := c.AddField("x", Unresolved("builtin.Int"), 8, vmconfig.AccPrivate)

	if _, err := f.Mirror(); err == nil {
		t.Fatal("expected bridge error")
	}

	// The holder lock was released and nothing was cached; a later call
	// succeeds and constructs the mirror.
	atomic.StoreInt32(&bridge.fail, 0)
	m, err := f.Mirror()
	if err != nil {
		t.Fatalf("Mirror() after recovery: %v", err)
	}
	if m == nil {
		t.Fatal("Mirror() returned nil handle")
	}
}
