package machine

import "github.com/pkg/errors"

// Registers holds the processor's scalar state. TOP/NEXT mirror the top two
// operand-stack cells; ISN is the 1-based micro-step counter within the
// currently executing instruction.
type Registers struct {
	IP     int64
	ODShp  int64
	PRAShp int64
	Top    int64
	Next   int64
	ISN    int
}

// tickSnapshot is the per-tick copy of source registers that every latch in
// a tick reads from, guaranteeing "read-old, write-new" semantics
// regardless of the order destination latches are applied in (spec §4.2).
type tickSnapshot struct {
	ip, odShp, praShp, top, next int64
}

func (dp *DataPath) snapshot() tickSnapshot {
	return tickSnapshot{
		ip:     dp.Regs.IP,
		odShp:  dp.Regs.ODShp,
		praShp: dp.Regs.PRAShp,
		top:    dp.Regs.Top,
		next:   dp.Regs.Next,
	}
}

// DataPath is the processor's memory and registers, plus the I/O ports
// bound to it. Per spec §9, ports are bound to the data path rather than
// kept as independent module-level state.
type DataPath struct {
	Mem   []Cell
	Regs  Registers
	Ports []InterruptablePort

	// OperandBase/ReturnBase record the boot-time bases of the operand stack
	// and the return stack; nothing in the package reads them.
	OperandBase int64
	ReturnBase  int64

	// VarDataStart is the base address of the variable-data region (V in
	// spec §3); READ_VARDATA/WRITE_VARDATA and SUM_TOP_WITH_VDSP address
	// relative to it.
	VarDataStart int64

	// InterruptTableStart is the base address of the handler table (2N
	// entries, write-PC then read-PC per port).
	InterruptTableStart int64
}

func (dp *DataPath) cellAt(addr int64) (Cell, error) {
	if addr < 0 || addr >= int64(len(dp.Mem)) {
		return Cell{}, errors.Wrapf(ErrStackBounds, "address %d out of [0,%d)", addr, len(dp.Mem))
	}
	return dp.Mem[addr], nil
}

func (dp *DataPath) readNumber(addr int64) (int64, error) {
	c, err := dp.cellAt(addr)
	if err != nil {
		return 0, err
	}
	n, ok := c.AsNumber()
	if !ok {
		return 0, errors.Errorf("address %d does not hold a number cell", addr)
	}
	return n, nil
}

func (dp *DataPath) writeNumber(addr int64, v int64) error {
	if addr < 0 || addr >= int64(len(dp.Mem)) {
		return errors.Wrapf(ErrStackBounds, "address %d out of [0,%d)", addr, len(dp.Mem))
	}
	dp.Mem[addr] = NumberCell(v)
	return nil
}

func (dp *DataPath) currentInstruction() (Cell, error) {
	c, err := dp.cellAt(dp.Regs.IP)
	if err != nil {
		return Cell{}, err
	}
	if c.Kind != CellInstr {
		return Cell{}, errors.Wrapf(ErrIPNotInstruction, "ip=%d holds %v", dp.Regs.IP, c)
	}
	return c, nil
}
