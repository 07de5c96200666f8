// Package arch describes the JIT backend's target architecture: the
// register file and the ABI constants the code emitter depends on.
package arch

// StackBias is the register-window stack bias: the fixed offset between
// the logical stack/frame pointer and the lowest addressable byte of the
// register save area. Memory operands based on SP or FP must add this bias
// exactly once when the effective displacement is materialized.
const StackBias = 2047

// PointerSize is the width in bytes of a native pointer on the target.
const PointerSize = 8

// WordSize is the width in bytes of a general-purpose register.
const WordSize = 8
