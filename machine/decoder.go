package machine

import (
	"github.com/GreatMimperator/forthchan/isa"
	"github.com/pkg/errors"
)

// microStep performs one tick's worth of register and memory transfer for an
// opcode. It reads only snap, the snapshot taken at the start of the tick,
// so that every latch within one tick observes the same pre-tick values
// regardless of call order, matching the reference control unit's
// simultaneous-latch semantics.
type microStep func(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error

// decodeTable maps each opcode to its ordered ticks; entry i is the
// behavior for ISN i+1. HALT has no entry: its behavior depends on
// interrupt state the control unit tracks, not the data path alone.
var decodeTable map[isa.Opcode][]microStep

func init() {
	decodeTable = map[isa.Opcode][]microStep{}
	for _, op := range []isa.Opcode{isa.SUM, isa.DIFF, isa.DIV, isa.MUL, isa.MOD,
		isa.EQ, isa.NEQ, isa.LESS, isa.GR, isa.LE, isa.GE} {
		decodeTable[op] = []microStep{aluTick1, aluTick2}
	}
	decodeTable[isa.SHIFT_BACK] = []microStep{shiftBack}
	decodeTable[isa.SHIFT_BACK_RET] = []microStep{shiftBackRet}
	decodeTable[isa.PUT] = []microStep{putTick1, putTick2}
	decodeTable[isa.PUT_ABSOLUTE] = []microStep{putTick1, putTick2}
	decodeTable[isa.PICK] = []microStep{pickTick1, pickTick2}
	decodeTable[isa.PICK_ABSOLUTE] = []microStep{pickTick1, pickTick2}
	decodeTable[isa.SWAP] = []microStep{swapTick1, swapTick2}
	decodeTable[isa.PUSH_TO_RET] = []microStep{pushToRet}
	decodeTable[isa.POP_TO_RET] = []microStep{popToRetTick1, popToRetTick2}
	decodeTable[isa.PUSH_TO_OD] = []microStep{pushPopOdTick1, pushPopOdTick2, pushPopOdTick3}
	decodeTable[isa.POP_TO_OD] = []microStep{pushPopOdTick1, pushPopOdTick2, pushPopOdTick3}
	decodeTable[isa.NUMBER] = []microStep{numberTick}
	decodeTable[isa.JMP] = []microStep{jmpTick}
	decodeTable[isa.EXEC_IF] = []microStep{execIfCondJmpTick}
	decodeTable[isa.EXEC_COND_JMP] = []microStep{execIfCondJmpTick}
	decodeTable[isa.EXEC_COND_JMP_RET] = []microStep{execCondJmpRetTick}
	decodeTable[isa.DUP_RET] = []microStep{dupRetTick1, dupRetTick2, dupRetTick3}
	decodeTable[isa.DUP] = []microStep{dupTick}
	decodeTable[isa.DUDUP] = []microStep{dudupTick1, dudupTick2}
	decodeTable[isa.INCREMENT_RET] = []microStep{incDecRetTick1, incDecRetTick2, incDecRetTick3}
	decodeTable[isa.DECREMENT_RET] = []microStep{incDecRetTick1, incDecRetTick2, incDecRetTick3}
	decodeTable[isa.JMP_POP_PRA_SHP] = []microStep{jmpPopPraShpTick1, jmpPopPraShpTick2}
	decodeTable[isa.PUSH_INC_INC_IP_TO_PRA_SHP] = []microStep{pushIncIncIPToPraShp}
	decodeTable[isa.EQ_NOT_CONSUMING_RET] = []microStep{eqNotConsumingRetTick1, eqNotConsumingRetTick2, eqNotConsumingRetTick3}
	decodeTable[isa.READ_VARDATA] = []microStep{readVardataTick1, readVardataTick2}
	decodeTable[isa.WRITE_VARDATA] = []microStep{writeVardataTick1, writeVardataTick2}
	decodeTable[isa.READ_VARDATA_USER_LINK] = []microStep{readVardataUserLinkTick}
	decodeTable[isa.WRITE_VARDATA_USER_LINK] = []microStep{writeVardataUserLinkTick1, writeVardataUserLinkTick2}
	decodeTable[isa.SUM_TOP_WITH_VDSP] = []microStep{sumTopWithVdspTick1, sumTopWithVdspTick2}
	decodeTable[isa.READ_PORT] = []microStep{readPortTick}
	decodeTable[isa.WRITE_PORT] = []microStep{writePortTick}
	decodeTable[isa.HAS_PORT_FILLED_WITH_CPU] = []microStep{hasPortFilledTick}
	decodeTable[isa.HAS_PORT_FILLED_WITH_DEVICE] = []microStep{hasPortFilledTick}
}

// floorDivMod implements Forth-style floor division/modulo (as opposed to
// Go's truncating / and %), matching the reference interpreter's use of
// Python's // and % operators.
func floorDivMod(a, b int64) (q, r int64) {
	q = a / b
	r = a % b
	if r != 0 && (r < 0) != (b < 0) {
		q--
		r += b
	}
	return q, r
}

func aluResult(op isa.Opcode, next, top int64) (int64, error) {
	switch op {
	case isa.SUM:
		return next + top, nil
	case isa.DIFF:
		return next - top, nil
	case isa.MUL:
		return next * top, nil
	case isa.DIV:
		if top == 0 {
			return 0, ErrDivideByZero
		}
		q, _ := floorDivMod(next, top)
		return q, nil
	case isa.MOD:
		if top == 0 {
			return 0, ErrDivideByZero
		}
		_, r := floorDivMod(next, top)
		return r, nil
	case isa.EQ:
		return boolCell(next == top), nil
	case isa.NEQ:
		return boolCell(next != top), nil
	case isa.LESS:
		return boolCell(next < top), nil
	case isa.GR:
		return boolCell(next > top), nil
	case isa.LE:
		return boolCell(next <= top), nil
	case isa.GE:
		return boolCell(next >= top), nil
	default:
		return 0, errors.Errorf("opcode %s has no ALU operation", op)
	}
}

// boolCell renders a predicate in Forth-style inverted truth: 0 is true,
// -1 is false.
func boolCell(ok bool) int64 {
	if ok {
		return 0
	}
	return -1
}

func aluTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	result, err := aluResult(instr.Op, snap.next, snap.top)
	if err != nil {
		return err
	}
	next, err := dp.readNumber(snap.odShp - 2)
	if err != nil {
		return err
	}
	dp.Regs.Top = result
	dp.Regs.Next = next
	dp.Regs.ODShp = snap.odShp - 1
	return nil
}

func aluTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(snap.odShp, snap.top); err != nil {
		return err
	}
	dp.Regs.IP = snap.ip + 1
	return nil
}

func shiftBack(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	next, err := dp.readNumber(snap.odShp - 1)
	if err != nil {
		return err
	}
	dp.Regs.Top = snap.next
	dp.Regs.Next = next
	dp.Regs.ODShp = snap.odShp - 1
	dp.Regs.IP = snap.ip + 1
	return nil
}

func shiftBackRet(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	dp.Regs.PRAShp = snap.praShp + 1
	dp.Regs.IP = snap.ip + 1
	return nil
}

func putTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	addr := snap.odShp - snap.top - 2
	if instr.Op == isa.PUT_ABSOLUTE {
		addr = snap.top
	}
	if err := dp.writeNumber(addr, snap.next); err != nil {
		return err
	}
	dp.Regs.ODShp = snap.odShp - 2
	return nil
}

func putTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	top, err := dp.readNumber(snap.odShp)
	if err != nil {
		return err
	}
	next, err := dp.readNumber(snap.odShp - 1)
	if err != nil {
		return err
	}
	dp.Regs.Top = top
	dp.Regs.Next = next
	dp.Regs.IP = snap.ip + 1
	return nil
}

func pickTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	addr := snap.odShp - snap.top - 1
	if instr.Op == isa.PICK_ABSOLUTE {
		addr = snap.top
	}
	top, err := dp.readNumber(addr)
	if err != nil {
		return err
	}
	dp.Regs.Top = top
	return nil
}

func pickTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(snap.odShp, snap.top); err != nil {
		return err
	}
	dp.Regs.IP = snap.ip + 1
	return nil
}

func swapTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(snap.odShp-1, snap.top); err != nil {
		return err
	}
	dp.Regs.Next = snap.top
	dp.Regs.Top = snap.next
	return nil
}

func swapTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(snap.odShp, snap.top); err != nil {
		return err
	}
	dp.Regs.IP = snap.ip + 1
	return nil
}

func pushToRet(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(snap.praShp-1, snap.top); err != nil {
		return err
	}
	dp.Regs.PRAShp = snap.praShp - 1
	dp.Regs.IP = snap.ip + 1
	return nil
}

func popToRetTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(snap.praShp-1, snap.top); err != nil {
		return err
	}
	dp.Regs.PRAShp = snap.praShp - 1
	dp.Regs.Top = snap.next
	dp.Regs.ODShp = snap.odShp - 1
	return nil
}

func popToRetTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	next, err := dp.readNumber(snap.odShp - 1)
	if err != nil {
		return err
	}
	dp.Regs.Next = next
	dp.Regs.IP = snap.ip + 1
	return nil
}

func pushPopOdTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	top, err := dp.readNumber(snap.praShp)
	if err != nil {
		return err
	}
	dp.Regs.Top = top
	dp.Regs.ODShp = snap.odShp + 1
	if instr.Op == isa.POP_TO_OD {
		dp.Regs.PRAShp = snap.praShp + 1
	}
	return nil
}

func pushPopOdTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	return dp.writeNumber(snap.odShp, snap.top)
}

func pushPopOdTick3(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	next, err := dp.readNumber(snap.odShp - 1)
	if err != nil {
		return err
	}
	dp.Regs.Next = next
	dp.Regs.IP = snap.ip + 1
	return nil
}

func numberTick(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	arg := instr.ArgOr(0)
	if err := dp.writeNumber(snap.odShp+1, arg); err != nil {
		return err
	}
	dp.Regs.Next = snap.top
	dp.Regs.Top = arg
	dp.Regs.ODShp = snap.odShp + 1
	dp.Regs.IP = snap.ip + 1
	return nil
}

func jmpTick(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	dp.Regs.IP = snap.ip + instr.ArgOr(0)
	return nil
}

func execIfCondJmpTick(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	next, err := dp.readNumber(snap.odShp - 2)
	if err != nil {
		return err
	}
	topConvSig := int64(0)
	if snap.top == 0 {
		topConvSig = 1
	}
	switch instr.Op {
	case isa.EXEC_IF:
		dp.Regs.IP = snap.ip + 1 + topConvSig
	case isa.EXEC_COND_JMP:
		if topConvSig == 1 {
			dp.Regs.IP = snap.ip + 1
		} else {
			dp.Regs.IP = snap.ip + 1 + instr.ArgOr(0)
		}
	}
	dp.Regs.Next = next
	dp.Regs.Top = snap.next
	dp.Regs.ODShp = snap.odShp - 1
	return nil
}

func execCondJmpRetTick(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	praTop, err := dp.readNumber(snap.praShp)
	if err != nil {
		return err
	}
	if praTop == 0 {
		dp.Regs.IP = snap.ip + 1
	} else {
		dp.Regs.IP = snap.ip + 1 + instr.ArgOr(0)
	}
	dp.Regs.PRAShp = snap.praShp + 1
	return nil
}

func dupRetTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	top, err := dp.readNumber(snap.praShp)
	if err != nil {
		return err
	}
	dp.Regs.Top = top
	return nil
}

func dupRetTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(snap.praShp+1, snap.top); err != nil {
		return err
	}
	dp.Regs.PRAShp = snap.praShp + 1
	return nil
}

func dupRetTick3(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	top, err := dp.readNumber(snap.odShp)
	if err != nil {
		return err
	}
	dp.Regs.Top = top
	dp.Regs.IP = snap.ip + 1
	return nil
}

func dupTick(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(snap.odShp+1, snap.top); err != nil {
		return err
	}
	dp.Regs.Next = snap.top
	dp.Regs.ODShp = snap.odShp + 1
	dp.Regs.IP = snap.ip + 1
	return nil
}

func dudupTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(snap.odShp+1, snap.next); err != nil {
		return err
	}
	dp.Regs.ODShp = snap.odShp + 1
	return nil
}

func dudupTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(snap.odShp+1, snap.top); err != nil {
		return err
	}
	dp.Regs.ODShp = snap.odShp + 1
	dp.Regs.IP = snap.ip + 1
	return nil
}

func incDecRetTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	top, err := dp.readNumber(snap.praShp)
	if err != nil {
		return err
	}
	dp.Regs.Top = top
	return nil
}

func incDecRetTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	v := snap.top + 1
	if instr.Op == isa.DECREMENT_RET {
		v = snap.top - 1
	}
	return dp.writeNumber(snap.praShp, v)
}

func incDecRetTick3(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	top, err := dp.readNumber(snap.odShp)
	if err != nil {
		return err
	}
	dp.Regs.Top = top
	dp.Regs.IP = snap.ip + 1
	return nil
}

func jmpPopPraShpTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	top, err := dp.readNumber(snap.praShp)
	if err != nil {
		return err
	}
	dp.Regs.Top = top
	dp.Regs.PRAShp = snap.praShp + 1
	return nil
}

func jmpPopPraShpTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	top, err := dp.readNumber(snap.odShp)
	if err != nil {
		return err
	}
	dp.Regs.IP = snap.top
	dp.Regs.Top = top
	return nil
}

func pushIncIncIPToPraShp(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(snap.praShp-1, snap.ip+2); err != nil {
		return err
	}
	dp.Regs.PRAShp = snap.praShp - 1
	dp.Regs.IP = snap.ip + 1
	return nil
}

func eqNotConsumingRetTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	a, err := dp.readNumber(snap.praShp + 1)
	if err != nil {
		return err
	}
	b, err := dp.readNumber(snap.praShp)
	if err != nil {
		return err
	}
	dp.Regs.Top = boolCell(a == b)
	dp.Regs.PRAShp = snap.praShp - 1
	return nil
}

func eqNotConsumingRetTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	return dp.writeNumber(snap.praShp, snap.top)
}

func eqNotConsumingRetTick3(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	top, err := dp.readNumber(snap.odShp)
	if err != nil {
		return err
	}
	dp.Regs.Top = top
	dp.Regs.IP = snap.ip + 1
	return nil
}

func readVardataTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	top, err := dp.readNumber(dp.VarDataStart + instr.ArgOr(0))
	if err != nil {
		return err
	}
	dp.Regs.Next = snap.top
	dp.Regs.Top = top
	return nil
}

func readVardataTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(snap.odShp+1, snap.top); err != nil {
		return err
	}
	dp.Regs.ODShp = snap.odShp + 1
	dp.Regs.IP = snap.ip + 1
	return nil
}

func writeVardataTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(dp.VarDataStart+instr.ArgOr(0), snap.top); err != nil {
		return err
	}
	dp.Regs.Top = snap.next
	return nil
}

func writeVardataTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	next, err := dp.readNumber(snap.odShp - 2)
	if err != nil {
		return err
	}
	dp.Regs.Next = next
	dp.Regs.ODShp = snap.odShp - 1
	dp.Regs.IP = snap.ip + 1
	return nil
}

// readVardataUserLinkTick dereferences TOP as an absolute address, the way
// PICK_ABSOLUTE does. The reference interpreter's latch_top switch has no
// case for this opcode and silently leaves TOP unchanged; this is a gap in
// that implementation rather than intended behavior (see DESIGN.md).
func readVardataUserLinkTick(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	top, err := dp.readNumber(snap.top)
	if err != nil {
		return err
	}
	dp.Regs.Top = top
	dp.Regs.IP = snap.ip + 1
	return nil
}

func writeVardataUserLinkTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(snap.odShp-1, snap.next); err != nil {
		return err
	}
	dp.Regs.ODShp = snap.odShp - 2
	return nil
}

// writeVardataUserLinkTick2 has the same PICK_ABSOLUTE-style dereference
// fix as readVardataUserLinkTick applied to its TOP latch.
func writeVardataUserLinkTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	top, err := dp.readNumber(snap.top)
	if err != nil {
		return err
	}
	next, err := dp.readNumber(snap.odShp - 1)
	if err != nil {
		return err
	}
	dp.Regs.Top = top
	dp.Regs.Next = next
	dp.Regs.IP = snap.ip + 1
	return nil
}

func sumTopWithVdspTick1(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	dp.Regs.Top = dp.VarDataStart + snap.top
	return nil
}

func sumTopWithVdspTick2(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	if err := dp.writeNumber(snap.odShp, snap.top); err != nil {
		return err
	}
	dp.Regs.IP = snap.ip + 1
	return nil
}

func readPortTick(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	port := instr.ArgOr(0)
	if port < 0 || int(port) >= len(dp.Ports) {
		return errors.Errorf("port %d out of range", port)
	}
	val := dp.Ports[port].Data
	if err := dp.writeNumber(snap.odShp+1, val); err != nil {
		return err
	}
	dp.Regs.Next = snap.top
	dp.Regs.Top = val
	dp.Ports[port].FilledWithDevice = false
	dp.Regs.ODShp = snap.odShp + 1
	dp.Regs.IP = snap.ip + 1
	return nil
}

func writePortTick(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	port := instr.ArgOr(0)
	if port < 0 || int(port) >= len(dp.Ports) {
		return errors.Errorf("port %d out of range", port)
	}
	next, err := dp.readNumber(snap.odShp - 2)
	if err != nil {
		return err
	}
	dp.Ports[port].Data = snap.top
	dp.Regs.Top = snap.next
	dp.Regs.Next = next
	dp.Ports[port].FilledWithCPU = true
	dp.Regs.ODShp = snap.odShp - 1
	dp.Regs.IP = snap.ip + 1
	return nil
}

// hasPortFilledTick mirrors the pushed flag into memory using the same
// flag it pushes onto TOP; the reference implementation's memory-mirror
// branch for HAS_PORT_FILLED_WITH_DEVICE checks filled_with_cpu instead of
// filled_with_device, a copy/paste slip fixed here (see DESIGN.md).
func hasPortFilledTick(dp *DataPath, instr isa.Instruction, snap tickSnapshot) error {
	port := instr.ArgOr(0)
	if port < 0 || int(port) >= len(dp.Ports) {
		return errors.Errorf("port %d out of range", port)
	}
	var val int64
	switch instr.Op {
	case isa.HAS_PORT_FILLED_WITH_CPU:
		val = boolCell(dp.Ports[port].FilledWithCPU)
	case isa.HAS_PORT_FILLED_WITH_DEVICE:
		val = boolCell(dp.Ports[port].FilledWithDevice)
	}
	if err := dp.writeNumber(snap.odShp+1, val); err != nil {
		return err
	}
	dp.Regs.Next = snap.top
	dp.Regs.Top = val
	dp.Regs.ODShp = snap.odShp + 1
	dp.Regs.IP = snap.ip + 1
	return nil
}
