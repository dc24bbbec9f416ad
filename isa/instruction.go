package isa

import "fmt"

// Term is a diagnostic breadcrumb pointing back at the source token an
// instruction was lowered from.
type Term struct {
	LineNumber   int    `json:"line_number"`
	LinePosition int    `json:"line_position"`
	Name         string `json:"name"`
}

func (t Term) String() string {
	if t.LineNumber < 0 {
		return "<generated>"
	}
	return fmt.Sprintf("%d:%d: %q", t.LineNumber, t.LinePosition, t.Name)
}

// Instruction is one compiled instruction record. Arg is nil when the
// opcode takes no argument. The address of an instruction is its own Index;
// instructions are never reordered after assembly, only patched in place.
type Instruction struct {
	Index int     `json:"index"`
	Op    Opcode  `json:"opcode"`
	Arg   *int64  `json:"arg"`
	Term  Term    `json:"term"`
}

// NewInstruction builds an instruction with no argument.
func NewInstruction(index int, op Opcode, term Term) Instruction {
	return Instruction{Index: index, Op: op, Term: term}
}

// NewInstructionArg builds an instruction carrying the given argument.
func NewInstructionArg(index int, op Opcode, arg int64, term Term) Instruction {
	return Instruction{Index: index, Op: op, Arg: &arg, Term: term}
}

// ArgOr returns the instruction's argument, or def if it has none.
func (i Instruction) ArgOr(def int64) int64 {
	if i.Arg == nil {
		return def
	}
	return *i.Arg
}

func (i Instruction) String() string {
	if i.Arg == nil {
		return string(i.Op)
	}
	return fmt.Sprintf("%s %d", i.Op, *i.Arg)
}
