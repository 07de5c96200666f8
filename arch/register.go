package arch

// ---------------------------------------------------------------------------
// Register: target register model
// ---------------------------------------------------------------------------

// Register identifies a single machine register. Registers are plain value
// types compared with ==; two Register values describe the same register
// iff their fields are equal.
//
// The absent register is represented by the zero-ish sentinel None rather
// than a nil pointer, so "no register" checks are explicit predicate calls
// instead of nil comparisons scattered through call sites.
type Register struct {
	Num  int8
	Name string
}

// None is the absent-register sentinel. Address operands use it for the
// missing base or index component.
var None = Register{Num: -1, Name: "none"}

// Exists returns true if r names a real register (i.e. r is not None).
func (r Register) Exists() bool {
	return r.Num >= 0
}

// String returns the register's assembly name.
func (r Register) String() string {
	return r.Name
}

// ---------------------------------------------------------------------------
// Register file
// ---------------------------------------------------------------------------

// General-purpose registers. r24..r31 are reserved for the runtime: the
// zero register, stack and frame pointers, and scratch registers claimed
// by the calling convention.
var (
	R0  = Register{0, "r0"}
	R1  = Register{1, "r1"}
	R2  = Register{2, "r2"}
	R3  = Register{3, "r3"}
	R4  = Register{4, "r4"}
	R5  = Register{5, "r5"}
	R6  = Register{6, "r6"}
	R7  = Register{7, "r7"}
	R8  = Register{8, "r8"}
	R9  = Register{9, "r9"}
	R10 = Register{10, "r10"}
	R11 = Register{11, "r11"}
	R12 = Register{12, "r12"}
	R13 = Register{13, "r13"}
	R14 = Register{14, "r14"}
	R15 = Register{15, "r15"}
	R16 = Register{16, "r16"}
	R17 = Register{17, "r17"}
	R18 = Register{18, "r18"}
	R19 = Register{19, "r19"}
	R20 = Register{20, "r20"}
	R21 = Register{21, "r21"}
	R22 = Register{22, "r22"}
	R23 = Register{23, "r23"}

	// G0 always reads as zero.
	G0 = Register{24, "g0"}

	// SP and FP address the current register window's stack and frame.
	// Displacements relative to either must be corrected by StackBias.
	SP = Register{28, "sp"}
	FP = Register{30, "fp"}
)

// AllocatableRegisters lists the general-purpose registers available to the
// register allocator, in allocation order.
var AllocatableRegisters = []Register{
	R0, R1, R2, R3, R4, R5, R6, R7,
	R8, R9, R10, R11, R12, R13, R14, R15,
	R16, R17, R18, R19, R20, R21, R22, R23,
}

// IsFrameRelative returns true if r is the stack or frame pointer.
func IsFrameRelative(r Register) bool {
	return r == SP || r == FP
}
