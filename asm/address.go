// Package asm holds the operand representations used when emitting native
// instructions for the register-window target.
package asm

import (
	"fmt"

	"github.com/chazu/vulcan/arch"
)

// ---------------------------------------------------------------------------
// Address: memory operand
// ---------------------------------------------------------------------------

// Address is an immutable memory operand: a base register plus either a
// signed displacement or an index register, never both. Instances are
// created per operand during code emission and discarded afterwards; they
// are safe to share between goroutines without synchronization.
type Address struct {
	base         arch.Register
	index        arch.Register
	displacement int32
}

// NewAddress creates an address with the given base register and
// displacement. The index register is absent.
func NewAddress(base arch.Register, displacement int32) Address {
	return Address{base: base, index: arch.None, displacement: displacement}
}

// NewIndexedAddress creates an address with the given base and index
// registers. The displacement is zero.
func NewIndexedAddress(base, index arch.Register) Address {
	return Address{base: base, index: index}
}

// Base returns the base register, or arch.None if absent.
func (a Address) Base() arch.Register {
	return a.base
}

// Index returns the index register, or arch.None if absent.
func (a Address) Index() arch.Register {
	return a.index
}

// HasIndex returns true if this address has an index register.
func (a Address) HasIndex() bool {
	return a.index.Exists()
}

// Displacement returns the operand's effective displacement. When the base
// register is the stack or frame pointer, the register-window stack bias is
// added here so that callers can compute offsets relative to the logical
// frame and stay ignorant of the ABI bias.
//
// Panics if the address has an index register: an indexed address has no
// displacement, and asking for one is a bug in the emitter.
func (a Address) Displacement() int32 {
	if a.HasIndex() {
		panic("asm: address has index register")
	}
	if arch.IsFrameRelative(a.base) {
		return a.displacement + arch.StackBias
	}
	return a.displacement
}

// String renders the operand in the canonical bracketed form used by the
// disassembly and debug tooling, e.g. "[sp - 8]" or "[fp + r3]". The exact
// formatting is a golden-output contract; keep it byte-stable.
func (a Address) String() string {
	s := "["
	sep := ""
	if a.base.Exists() {
		s += a.base.Name
		sep = " + "
	}
	if a.index.Exists() {
		s += sep + a.index.Name
	} else {
		if a.displacement < 0 {
			s += fmt.Sprintf(" - %d", -a.displacement)
		} else if a.displacement > 0 {
			s += fmt.Sprintf("%s%d", sep, a.displacement)
		}
	}
	return s + "]"
}
