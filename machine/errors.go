package machine

import "github.com/pkg/errors"

// ErrHalted is returned by Run when the main program reaches
// HALT outside of any interrupt handler: normal termination, per spec §7.
var ErrHalted = errors.New("machine halted")

// ErrTicksLimitReached is returned when the driver's configured ticks_limit
// is hit. Per spec §5/§7 this is an observational cap, not a program
// failure; callers should treat it as a warning rather than aborting with
// a nonzero exit status.
var ErrTicksLimitReached = errors.New("ticks limit reached")

// ErrDivideByZero is returned by the ALU decode step for DIV/MOD when the
// divisor is zero. Spec §9 leaves this behavior unspecified; this
// implementation's choice (halt with a reported error rather than panic)
// is pinned in SPEC_FULL.md §11.4.
var ErrDivideByZero = errors.New("division or modulo by zero")

// ErrIPNotInstruction is a host-side consistency check: the invariant that
// IP always addresses an Instruction cell (spec §3) was violated, which
// means either a malformed image or a data-path bug.
var ErrIPNotInstruction = errors.New("instruction pointer does not address an instruction cell")

// ErrStackBounds reports operand/return stack over- or under-flow; spec
// treats it as undefined behavior but this implementation reports it
// instead of reading or writing out of bounds.
var ErrStackBounds = errors.New("operand or return stack out of bounds")

// ErrUnknownOpcode is returned when an instruction's opcode has no
// registered decoder table entry; should be unreachable given isa.Opcode
// validation at image-load time.
var ErrUnknownOpcode = errors.New("opcode has no decoder entry")
