// Package compiler lowers forthchan source text into a linear sequence of
// isa.Instruction records for the stack machine in package machine.
package compiler

import (
	"strconv"
	"strings"

	"github.com/GreatMimperator/forthchan/isa"
)

type varSlot struct {
	pc   int
	size int64
}

type lowerState struct {
	code           []isa.Instruction
	wordDefPC      map[string]int
	wordJmpPCs     map[string][]int
	varsPCs        map[string][]varSlot
	varOrder       []string
	jmpPoints      []int
	leavesPoints   [][]int
	lastWordDefJmp *int
	pc             int
}

func newLowerState() *lowerState {
	return &lowerState{
		wordDefPC:  map[string]int{},
		wordJmpPCs: map[string][]int{},
		varsPCs:    map[string][]varSlot{},
	}
}

func (s *lowerState) emit(op isa.Opcode, term isa.Term) int {
	idx := s.pc
	s.code = append(s.code, isa.NewInstruction(idx, op, term))
	s.pc++
	return idx
}

func (s *lowerState) emitArg(op isa.Opcode, arg int64, term isa.Term) int {
	idx := s.pc
	s.code = append(s.code, isa.NewInstructionArg(idx, op, arg, term))
	s.pc++
	return idx
}

func (s *lowerState) patch(pc int, arg int64) {
	s.code[pc].Arg = &arg
}

// Result is the output of Translate: the compiled program plus the size of
// the variable-data region the program expects to be allocated at boot.
type Result struct {
	Code        []isa.Instruction
	VarDataSize int64
}

// Translate runs the full tokenize -> validate -> desugar -> lower pipeline
// over forthchan source lines and returns the compiled program, terminated
// with a trailing HALT, and the variable-data region size it was compiled
// against (spec §3's K).
func Translate(lines []string) (Result, error) {
	terms, err := linesToTerms(lines)
	if err != nil {
		return Result{}, err
	}
	if err := checkStructure(terms); err != nil {
		return Result{}, err
	}
	terms = desugarStrings(terms)

	s := newLowerState()
	for _, term := range terms {
		if err := s.appendTerm(term); err != nil {
			return Result{}, err
		}
	}

	for word, pcs := range s.wordJmpPCs {
		defPC, ok := s.wordDefPC[word]
		if !ok {
			return Result{}, errStructural(0, 0, "call to undefined word \""+word+"\"")
		}
		for _, pc := range pcs {
			s.patch(pc, int64(defPC-pc))
		}
	}

	var offset int64
	for _, name := range s.varOrder {
		slots := s.varsPCs[name]
		var maxSize int64 = 1
		for _, sl := range slots {
			if sl.size > maxSize {
				maxSize = sl.size
			}
		}
		for _, sl := range slots {
			if sl.pc >= 0 {
				s.patch(sl.pc, offset)
			}
		}
		offset += maxSize
	}

	s.emit(isa.HALT, isa.Term{LineNumber: -1, LinePosition: -1})
	return Result{Code: s.code, VarDataSize: offset}, nil
}

func (s *lowerState) appendTerm(term isa.Term) error {
	name := term.Name
	switch {
	case isCorrectNumber(name):
		v, _ := strconv.ParseInt(name, 10, 64)
		s.emitArg(isa.NUMBER, v, term)
		return nil
	case isSignWord(name) || isComparatorWord(name):
		return s.appendSignOrComparator(term)
	case isUserWord(name):
		return s.appendWord(term)
	case isSystemVariableOperation(name) || isVariableOperation(name):
		return s.appendVarOp(term)
	case isCorrectWordDefTerm(name):
		return s.appendWordDef(term)
	default:
		return errUnknownToken(term.LineNumber, term.LinePosition, name)
	}
}

func (s *lowerState) appendSignOrComparator(term isa.Term) error {
	var op isa.Opcode
	switch term.Name {
	case "+":
		op = isa.SUM
	case "-":
		op = isa.DIFF
	case "*":
		op = isa.MUL
	case "/":
		op = isa.DIV
	case "=":
		op = isa.EQ
	case ">":
		op = isa.GR
	case ">=":
		op = isa.GE
	case "<":
		op = isa.LESS
	case "<=":
		op = isa.LE
	case "<>":
		op = isa.NEQ
	default:
		return errUnknownToken(term.LineNumber, term.LinePosition, term.Name)
	}
	s.emit(op, term)
	return nil
}

func (s *lowerState) appendWordDef(term isa.Term) error {
	if term.Name == ";" {
		s.emit(isa.JMP_POP_PRA_SHP, term)
		if s.lastWordDefJmp == nil {
			return errStructural(term.LineNumber, term.LinePosition, `";" without a matching open word definition`)
		}
		s.patch(*s.lastWordDefJmp, int64(s.pc-*s.lastWordDefJmp))
		return nil
	}
	jmpPC := s.pc
	s.emit(isa.JMP, term)
	s.lastWordDefJmp = &jmpPC
	word := term.Name[1:]
	s.wordDefPC[word] = s.pc
	return nil
}

func (s *lowerState) appendVarOp(term isa.Term) error {
	parts := strings.Split(term.Name, "-")
	if len(parts) == 1 {
		name := term.Name[:len(term.Name)-1]
		suffix := term.Name[len(term.Name)-1]
		switch suffix {
		case '!', '?':
			op := isa.READ_VARDATA
			if suffix == '!' {
				op = isa.WRITE_VARDATA
			}
			pc := s.pc
			s.emit(op, term)
			s.recordVarUse(name, pc, 1)
		case '&':
			pc := s.pc
			s.emit(isa.NUMBER, term)
			s.recordVarUse(name, pc, 1)
			s.emit(isa.SUM_TOP_WITH_VDSP, term)
		default:
			return errUnknownToken(term.LineNumber, term.LinePosition, term.Name)
		}
		return nil
	}
	name := parts[0]
	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return errUnknownToken(term.LineNumber, term.LinePosition, term.Name)
	}
	s.recordVarDecl(name, size)
	return nil
}

func (s *lowerState) recordVarUse(name string, pc int, size int64) {
	if _, ok := s.varsPCs[name]; !ok {
		s.varOrder = append(s.varOrder, name)
	}
	s.varsPCs[name] = append(s.varsPCs[name], varSlot{pc: pc, size: size})
}

func (s *lowerState) recordVarDecl(name string, size int64) {
	if _, ok := s.varsPCs[name]; !ok {
		s.varOrder = append(s.varOrder, name)
	}
	s.varsPCs[name] = append(s.varsPCs[name], varSlot{pc: -1, size: size})
}

func (s *lowerState) appendWord(term isa.Term) error {
	if ok, err := s.appendBuiltinCommon(term); ok || err != nil {
		return err
	}
	if ok, err := s.appendPortCommand(term); ok || err != nil {
		return err
	}
	if ok, err := s.appendJmpCommand(term); ok || err != nil {
		return err
	}
	// Plain identifier: a call to a (possibly forward-declared) word.
	s.emit(isa.PUSH_INC_INC_IP_TO_PRA_SHP, term)
	jmpPC := s.pc
	s.wordJmpPCs[term.Name] = append(s.wordJmpPCs[term.Name], jmpPC)
	s.emit(isa.JMP, term)
	return nil
}

func (s *lowerState) appendBuiltinCommon(term isa.Term) (bool, error) {
	var op isa.Opcode
	switch term.Name {
	case "mod":
		op = isa.MOD
	case "put":
		op = isa.PUT
	case "put_absolute":
		op = isa.PUT_ABSOLUTE
	case "pick":
		op = isa.PICK
	case "pick_absolute":
		op = isa.PICK_ABSOLUTE
	case "sum_top_with_vdsp":
		op = isa.SUM_TOP_WITH_VDSP
	case "swap":
		op = isa.SWAP
	case "drop":
		op = isa.SHIFT_BACK
	case "dup":
		op = isa.DUP
	case "dudup":
		op = isa.DUDUP
	default:
		return false, nil
	}
	s.emit(op, term)
	return true, nil
}

func (s *lowerState) appendPortCommand(term isa.Term) (bool, error) {
	const mainPort = 0
	switch term.Name {
	case "cant_emit":
		s.emitArg(isa.HAS_PORT_FILLED_WITH_CPU, mainPort, term)
	case "has_input":
		s.emitArg(isa.HAS_PORT_FILLED_WITH_DEVICE, mainPort, term)
	case "key":
		s.emitArg(isa.READ_PORT, mainPort, term)
	case "emit":
		s.emitArg(isa.WRITE_PORT, mainPort, term)
	case "cr":
		s.emitArg(isa.NUMBER, 13, term)
		s.emitArg(isa.WRITE_PORT, mainPort, term)
	default:
		return false, nil
	}
	return true, nil
}

func (s *lowerState) appendJmpCommand(term isa.Term) (bool, error) {
	if ok, err := s.appendOpeningBlock(term); ok || err != nil {
		return ok, err
	}
	if ok, err := s.appendMiddleBlock(term); ok || err != nil {
		return ok, err
	}
	return s.appendClosingBlock(term)
}

func (s *lowerState) appendOpeningBlock(term isa.Term) (bool, error) {
	switch term.Name {
	case "do":
		s.emitDoInit(term)
		s.jmpPoints = append(s.jmpPoints, s.pc)
		s.leavesPoints = append(s.leavesPoints, nil)
	case "doi":
		s.emitDoInit(term)
		s.jmpPoints = append(s.jmpPoints, s.pc)
		s.emit(isa.PUSH_TO_OD, term)
		s.leavesPoints = append(s.leavesPoints, nil)
	case "begin":
		s.jmpPoints = append(s.jmpPoints, s.pc)
		s.leavesPoints = append(s.leavesPoints, nil)
	case "if":
		s.emit(isa.EXEC_IF, term)
		s.jmpPoints = append(s.jmpPoints, s.pc)
		s.emit(isa.JMP, term)
	default:
		return false, nil
	}
	return true, nil
}

// emitDoInit moves `start limit` from the operand stack to the return
// stack: the limit goes first, so the start ends on top as the counter.
func (s *lowerState) emitDoInit(term isa.Term) {
	s.emit(isa.POP_TO_RET, term)
	s.emit(isa.POP_TO_RET, term)
}

func (s *lowerState) appendMiddleBlock(term isa.Term) (bool, error) {
	switch term.Name {
	case "else":
		if len(s.jmpPoints) == 0 {
			return true, errStructural(term.LineNumber, term.LinePosition, `"else" without a matching open "if"`)
		}
		ifFalseJmpPC := s.popJmpPoint()
		s.jmpPoints = append(s.jmpPoints, s.pc)
		s.emit(isa.JMP, term)
		s.patch(ifFalseJmpPC, int64(s.pc-ifFalseJmpPC))
	case "leave":
		if len(s.leavesPoints) == 0 {
			return true, errStructural(term.LineNumber, term.LinePosition, `"leave" outside any loop`)
		}
		s.leavesPoints[len(s.leavesPoints)-1] = append(s.leavesPoints[len(s.leavesPoints)-1], s.pc)
		s.emit(isa.JMP, term)
	default:
		return false, nil
	}
	return true, nil
}

func (s *lowerState) appendClosingBlock(term isa.Term) (bool, error) {
	switch term.Name {
	case "then":
		ifTrueJmpPC := s.popJmpPoint()
		s.patch(ifTrueJmpPC, int64(s.pc-ifTrueJmpPC))
	case "until":
		s.emitArg(isa.NUMBER, 0, term)
		s.emit(isa.NEQ, term)
		beginJmpPC := s.popJmpPoint()
		s.emitArg(isa.EXEC_COND_JMP, int64(beginJmpPC-s.pc-1), term)
		s.patchLeaves(0)
	case "mloop", "loop":
		doJmpPC := s.popJmpPoint()
		s.emitLoopTail(term.Name == "loop", doJmpPC, term)
		s.patchLeaves(2)
	default:
		return false, nil
	}
	return true, nil
}

func (s *lowerState) emitLoopTail(isInc bool, jmpTo int, term isa.Term) {
	if isInc {
		s.emit(isa.INCREMENT_RET, term)
	} else {
		s.emit(isa.DECREMENT_RET, term)
	}
	s.emit(isa.EQ_NOT_CONSUMING_RET, term)
	s.emitArg(isa.EXEC_COND_JMP_RET, int64(jmpTo-s.pc-1), term)
	s.emit(isa.SHIFT_BACK_RET, term)
	s.emit(isa.SHIFT_BACK_RET, term)
}

func (s *lowerState) popJmpPoint() int {
	n := len(s.jmpPoints)
	pc := s.jmpPoints[n-1]
	s.jmpPoints = s.jmpPoints[:n-1]
	return pc
}

// patchLeaves patches every pending `leave` of the innermost loop to target
// the current pc, minus extraDiscard to additionally account for bounds
// cells a counted loop still needs to discard from the return stack.
func (s *lowerState) patchLeaves(extraDiscard int) {
	n := len(s.leavesPoints)
	leaves := s.leavesPoints[n-1]
	s.leavesPoints = s.leavesPoints[:n-1]
	for _, leavePC := range leaves {
		s.patch(leavePC, int64(s.pc-leavePC-extraDiscard))
	}
}
