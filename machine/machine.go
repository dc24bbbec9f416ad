package machine

import (
	"github.com/GreatMimperator/forthchan/internal/trace"
	"github.com/GreatMimperator/forthchan/isa"
	"github.com/pkg/errors"
)

// PortProgram is one port's pair of compiled interrupt handlers.
type PortProgram struct {
	WriteHandler []isa.Instruction
	ReadHandler  []isa.Instruction
}

// BootConfig parameterizes the fixed memory partition built at boot
// (spec §3): handler table, handler code, variable data, program code,
// then the operand and return stacks filling the remainder.
type BootConfig struct {
	MemSize    int
	VarMemSize int
	Ports      []PortProgram
	Program    []isa.Instruction
}

// Machine layers port scheduling, output draining, and the driver loop
// on top of a ControlUnit.
type Machine struct {
	CU     *ControlUnit
	Log    *trace.Logger
	Output func(ch rune)
}

func writeCode(mem []Cell, start int64, code []isa.Instruction) int64 {
	for i, instr := range code {
		mem[start+int64(i)] = InstrCell(instr)
	}
	return start + int64(len(code))
}

// Boot lays out memory and returns a Machine with IP parked at the start
// of the main program, ready for Run.
func Boot(cfg BootConfig, log *trace.Logger) (*Machine, error) {
	if cfg.MemSize <= 0 {
		return nil, errors.New("mem size must be positive")
	}
	if len(cfg.Ports) == 0 {
		return nil, errors.New("at least one port is required")
	}
	mem := make([]Cell, cfg.MemSize)

	tableBegin := int64(0)
	tableSize := int64(2 * len(cfg.Ports))
	table := make([]int64, tableSize)
	ports := make([]InterruptablePort, len(cfg.Ports))

	pc := tableSize
	for i, p := range cfg.Ports {
		writeStart := pc
		pc = writeCode(mem, pc, p.WriteHandler)
		readStart := pc
		pc = writeCode(mem, pc, p.ReadHandler)
		table[2*i] = writeStart
		table[2*i+1] = readStart
		ports[i] = InterruptablePort{WriteHandlerPC: int(writeStart), ReadHandlerPC: int(readStart)}
	}
	for i, v := range table {
		mem[tableBegin+int64(i)] = NumberCell(v)
	}

	varDataStart := pc
	programStart := varDataStart + int64(cfg.VarMemSize)
	if int(programStart)+len(cfg.Program) > cfg.MemSize {
		return nil, errors.Errorf("program (%d cells) does not fit after handler code and variable data (starts at %d, memory is %d cells)",
			len(cfg.Program), programStart, cfg.MemSize)
	}
	// One spare number cell sits between the program's HALT and the operand
	// stack base: a pop at depth 1 refreshes NEXT from two cells below the
	// head, which must be a number cell rather than an instruction.
	odStackStart := writeCode(mem, programStart, cfg.Program) + 1

	dp := &DataPath{
		Mem:                 mem,
		Ports:               ports,
		VarDataStart:        varDataStart,
		InterruptTableStart: tableBegin,
		OperandBase:         odStackStart,
		ReturnBase:          int64(cfg.MemSize) - 1,
	}
	dp.Regs.IP = programStart
	dp.Regs.ODShp = odStackStart
	dp.Regs.PRAShp = int64(cfg.MemSize) - 1
	dp.Regs.ISN = 1

	if log != nil {
		log.Debugf("machine", "boot: table=%d code=%d vardata=%d program=%d odstack=%d",
			tableBegin, tableSize, varDataStart, programStart, odStackStart)
	}

	return &Machine{CU: NewControlUnit(dp), Log: log}, nil
}

// RunResult summarizes how a Run call ended.
type RunResult struct {
	Ticks        int
	LimitReached bool
}

// Run drives the machine tick by tick, dispatching a write interrupt for
// each scheduled device byte and a read interrupt whenever the program
// fills the main port, until HALT outside an interrupt or ticksLimit is
// reached. It returns ErrHalted or ErrTicksLimitReached to distinguish
// the two, both reported via RunResult rather than treated as success.
func (m *Machine) Run(schedule map[int]rune, ticksLimit int) (RunResult, error) {
	cu := m.CU
	for cu.Ticks < ticksLimit {
		if ch, ok := schedule[cu.Ticks]; ok {
			if !cu.IsInInterruption {
				cu.IsInInterruption = true
				cu.DP.Ports[MainPort].Data = int64(ch)
				cu.DP.Ports[MainPort].FilledWithDevice = true
				if err := cu.StepInPortInterruption(MainPort, true); err != nil {
					return RunResult{Ticks: cu.Ticks}, err
				}
				cu.Ticks += 2
				if m.Log != nil {
					m.Log.Debugf("machine", "write interrupt: %q", ch)
				}
				continue
			}
			if m.Log != nil {
				m.Log.Warnf("machine", "write of %q ignored, port already in interruption", ch)
			}
		}

		opBefore := ""
		if instr, err := cu.currentInstruction(); err == nil {
			opBefore = string(instr.Op)
		}
		if _, err := cu.NextTick(); err != nil {
			if errors.Is(err, ErrHalted) {
				return RunResult{Ticks: cu.Ticks}, ErrHalted
			}
			return RunResult{Ticks: cu.Ticks}, err
		}
		if m.Log != nil {
			m.Log.Tickf(cu.DP.Regs.ISN, cu.DP.Regs.IP, cu.DP.Regs.ODShp, cu.DP.Regs.PRAShp,
				cu.DP.Regs.Top, cu.DP.Regs.Next, opBefore)
		}

		if cu.DP.Ports[MainPort].FilledWithCPU {
			if m.Output != nil {
				m.Output(rune(cu.DP.Ports[MainPort].Data))
			}
			cu.DP.Ports[MainPort].FilledWithCPU = false
			cu.IsInInterruption = true
			if err := cu.StepInPortInterruption(MainPort, false); err != nil {
				return RunResult{Ticks: cu.Ticks}, err
			}
			cu.Ticks++
			if m.Log != nil {
				m.Log.Debugf("machine", "read interrupt")
			}
			continue
		}
	}
	if m.Log != nil {
		m.Log.Warnf("machine", "ticks limit %d reached", ticksLimit)
	}
	return RunResult{Ticks: cu.Ticks, LimitReached: true}, ErrTicksLimitReached
}
