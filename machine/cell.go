// Package machine implements the cycle-accurate interpreter for compiled
// forthchan programs: the tagged memory cell, the data path (registers +
// memory), the table-driven micro-step decoder, and the tick-by-tick
// driver loop with its port/interrupt model.
package machine

import (
	"fmt"

	"github.com/GreatMimperator/forthchan/isa"
)

// CellKind distinguishes the two shapes a memory cell can hold.
type CellKind uint8

const (
	CellNumber CellKind = iota
	CellInstr
)

// Cell is the machine's tagged memory unit: either a signed number or an
// instruction record. Opcodes are always fetched from Instr cells and never
// reinterpreted as arithmetic data, so the two are never unioned behind a
// bare integer.
type Cell struct {
	Kind  CellKind
	Num   int64
	Instr isa.Instruction
}

// NumberCell builds a data cell.
func NumberCell(n int64) Cell { return Cell{Kind: CellNumber, Num: n} }

// InstrCell builds an instruction cell.
func InstrCell(i isa.Instruction) Cell { return Cell{Kind: CellInstr, Instr: i} }

// AsNumber returns the cell's numeric value and whether it was a number.
func (c Cell) AsNumber() (int64, bool) {
	if c.Kind != CellNumber {
		return 0, false
	}
	return c.Num, true
}

func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return fmt.Sprintf("%d", c.Num)
	case CellInstr:
		return c.Instr.String()
	default:
		return "?"
	}
}
