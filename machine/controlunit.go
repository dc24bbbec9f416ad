package machine

import (
	"github.com/GreatMimperator/forthchan/isa"
	"github.com/pkg/errors"
)

// ControlUnit decodes and executes ticks against a DataPath, tracking the
// interrupt-in-progress flag and the running tick count. Port scheduling
// and output draining live one layer up, in Machine.
type ControlUnit struct {
	DP               *DataPath
	IsInInterruption bool
	Ticks            int
}

func NewControlUnit(dp *DataPath) *ControlUnit {
	return &ControlUnit{DP: dp}
}

func (cu *ControlUnit) currentInstruction() (isa.Instruction, error) {
	c, err := cu.DP.currentInstruction()
	if err != nil {
		return isa.Instruction{}, err
	}
	return c.Instr, nil
}

// NextTick executes one tick of the currently addressed instruction and
// reports whether that tick completed the instruction (spec §4). On HALT
// outside any interrupt handler it returns ErrHalted; HALT inside a
// handler instead restores the saved (ISN, IP) pair and resumes the
// interrupted program.
func (cu *ControlUnit) NextTick() (bool, error) {
	instr, err := cu.currentInstruction()
	if err != nil {
		return false, err
	}
	snap := cu.DP.snapshot()
	cu.Ticks++

	if instr.Op == isa.HALT {
		if !cu.IsInInterruption {
			return false, ErrHalted
		}
		isn, err := cu.DP.readNumber(cu.DP.Regs.PRAShp)
		if err != nil {
			return false, errors.Wrap(err, "restoring isn on interrupt exit")
		}
		cu.DP.Regs.PRAShp++
		ip, err := cu.DP.readNumber(cu.DP.Regs.PRAShp)
		if err != nil {
			return false, errors.Wrap(err, "restoring ip on interrupt exit")
		}
		cu.DP.Regs.PRAShp++
		cu.DP.Regs.ISN = int(isn)
		cu.DP.Regs.IP = ip
		cu.IsInInterruption = false
		return true, nil
	}

	steps, ok := decodeTable[instr.Op]
	if !ok {
		return false, errors.Wrapf(ErrUnknownOpcode, "%s", instr.Op)
	}
	isn := cu.DP.Regs.ISN
	if isn < 1 || isn > len(steps) {
		return false, errors.Errorf("isn %d out of range for opcode %s (%d ticks)", isn, instr.Op, len(steps))
	}
	if err := steps[isn-1](cu.DP, instr, snap); err != nil {
		return false, errors.Wrapf(err, "executing %s tick %d", instr.Op, isn)
	}

	isLast := isn == len(steps)
	if isLast {
		cu.DP.Regs.ISN = 1
	} else {
		cu.DP.Regs.ISN++
	}
	return isLast, nil
}

// StepInPortInterruption dispatches into the compiled handler for a port,
// saving the interrupted (IP, ISN) on the return stack in two ticks, the
// way the reference control unit's step_in_port_interruption does.
func (cu *ControlUnit) StepInPortInterruption(portNumber int, isWrite bool) error {
	tableIndex := cu.DP.InterruptTableStart + 2*int64(portNumber)
	if !isWrite {
		tableIndex++
	}
	handlerPC, err := cu.DP.readNumber(tableIndex)
	if err != nil {
		return errors.Wrapf(err, "reading handler PC for port %d", portNumber)
	}

	cu.DP.Regs.PRAShp--
	if err := cu.DP.writeNumber(cu.DP.Regs.PRAShp, cu.DP.Regs.IP); err != nil {
		return err
	}
	cu.DP.Regs.IP = handlerPC

	cu.DP.Regs.PRAShp--
	if err := cu.DP.writeNumber(cu.DP.Regs.PRAShp, int64(cu.DP.Regs.ISN)); err != nil {
		return err
	}
	cu.DP.Regs.ISN = 1
	return nil
}
