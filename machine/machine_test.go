package machine

import (
	"testing"

	"github.com/GreatMimperator/forthchan/compiler"
	"github.com/GreatMimperator/forthchan/internal/trace"
	"github.com/GreatMimperator/forthchan/isa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func haltOnly() []isa.Instruction {
	return []isa.Instruction{isa.NewInstruction(0, isa.HALT, isa.Term{LineNumber: -1, LinePosition: -1})}
}

func bootWithProgram(t *testing.T, program []isa.Instruction) *Machine {
	t.Helper()
	m, err := Boot(BootConfig{
		MemSize:    200,
		VarMemSize: 20,
		Ports:      []PortProgram{{WriteHandler: haltOnly(), ReadHandler: haltOnly()}},
		Program:    program,
	}, trace.New(nil, false))
	require.NoError(t, err)
	return m
}

func mustCompile(t *testing.T, source string) []isa.Instruction {
	t.Helper()
	result, err := compiler.Translate([]string{source})
	require.NoError(t, err)
	return result.Code
}

func TestArithmeticAdditionEndToEnd(t *testing.T) {
	m := bootWithProgram(t, mustCompile(t, "3 4 +"))
	_, err := m.Run(nil, 1000)
	require.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, int64(7), m.CU.DP.Regs.Top)
}

func TestArithmeticFamily(t *testing.T) {
	cases := []struct {
		source string
		want   int64
	}{
		{"10 3 -", 7},
		{"6 7 *", 42},
		{"17 5 /", 3},
		{"17 5 mod", 2},
		{"-7 2 /", -4}, // floor division, not truncation
		{"-7 2 mod", 1}, // floor modulo takes the divisor's sign
		{"3 3 =", 0},
		{"3 4 =", -1},
		{"3 4 <>", 0},
		{"3 4 <", 0},
		{"4 3 >", 0},
		{"3 3 >=", 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.source, func(t *testing.T) {
			m := bootWithProgram(t, mustCompile(t, tc.source))
			_, err := m.Run(nil, 1000)
			require.ErrorIs(t, err, ErrHalted)
			assert.Equal(t, tc.want, m.CU.DP.Regs.Top)
		})
	}
}

func TestFloorDivMod(t *testing.T) {
	q, r := floorDivMod(-7, 2)
	assert.Equal(t, int64(-4), q)
	assert.Equal(t, int64(1), r)

	q, r = floorDivMod(7, 2)
	assert.Equal(t, int64(3), q)
	assert.Equal(t, int64(1), r)

	q, r = floorDivMod(-7, -2)
	assert.Equal(t, int64(3), q)
	assert.Equal(t, int64(-1), r)
}

func TestDivideByZeroHalts(t *testing.T) {
	term := isa.Term{LineNumber: 1, LinePosition: 1, Name: "div"}
	program := []isa.Instruction{
		isa.NewInstructionArg(0, isa.NUMBER, 5, term),
		isa.NewInstructionArg(1, isa.NUMBER, 0, term),
		isa.NewInstruction(2, isa.DIV, term),
		isa.NewInstruction(3, isa.HALT, isa.Term{LineNumber: -1, LinePosition: -1}),
	}
	m := bootWithProgram(t, program)
	_, err := m.Run(nil, 1000)
	require.ErrorIs(t, err, ErrDivideByZero)
}

func TestSwapExchangesTopAndNext(t *testing.T) {
	term := isa.Term{LineNumber: 1, LinePosition: 1, Name: "t"}
	program := []isa.Instruction{
		isa.NewInstructionArg(0, isa.NUMBER, 1, term),
		isa.NewInstructionArg(1, isa.NUMBER, 2, term),
		isa.NewInstruction(2, isa.SWAP, term),
		isa.NewInstruction(3, isa.HALT, isa.Term{LineNumber: -1, LinePosition: -1}),
	}
	m := bootWithProgram(t, program)
	_, err := m.Run(nil, 1000)
	require.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, int64(1), m.CU.DP.Regs.Top)
	assert.Equal(t, int64(2), m.CU.DP.Regs.Next)
}

func TestPutAbsoluteSetsTopAndNext(t *testing.T) {
	// Stack: 55 (sentinel, stays below), 77 (value to store), 4 (address).
	// After PUT_ABSOLUTE, spec.md's T2 formula is TOP<-mem[OD_SHP],
	// NEXT<-mem[OD_SHP-1]: TOP becomes the sentinel 55 and NEXT becomes the
	// untouched cell below it (0). Reading NEXT from TOP-1 instead (the
	// bug this guards against) would dereference global address 3, which
	// under this fixed boot layout lands on the read-handler's HALT
	// instruction cell and fails with a "not a number cell" error instead
	// of completing.
	term := isa.Term{LineNumber: 1, LinePosition: 1, Name: "t"}
	program := []isa.Instruction{
		isa.NewInstructionArg(0, isa.NUMBER, 55, term),
		isa.NewInstructionArg(1, isa.NUMBER, 77, term),
		isa.NewInstructionArg(2, isa.NUMBER, 4, term),
		isa.NewInstruction(3, isa.PUT_ABSOLUTE, term),
		isa.NewInstruction(4, isa.HALT, isa.Term{LineNumber: -1, LinePosition: -1}),
	}
	m := bootWithProgram(t, program)
	_, err := m.Run(nil, 1000)
	require.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, int64(55), m.CU.DP.Regs.Top)
	assert.Equal(t, int64(0), m.CU.DP.Regs.Next)
	stored, ok := m.CU.DP.Mem[4].AsNumber()
	require.True(t, ok)
	assert.Equal(t, int64(77), stored)
}

func TestPutAbsoluteThenPickAbsoluteRoundTrips(t *testing.T) {
	term := isa.Term{LineNumber: 1, LinePosition: 1, Name: "t"}
	program := []isa.Instruction{
		isa.NewInstructionArg(0, isa.NUMBER, 55, term),
		isa.NewInstructionArg(1, isa.NUMBER, 77, term),
		isa.NewInstructionArg(2, isa.NUMBER, 4, term),
		isa.NewInstruction(3, isa.PUT_ABSOLUTE, term),
		isa.NewInstructionArg(4, isa.NUMBER, 4, term),
		isa.NewInstruction(5, isa.PICK_ABSOLUTE, term),
		isa.NewInstruction(6, isa.HALT, isa.Term{LineNumber: -1, LinePosition: -1}),
	}
	m := bootWithProgram(t, program)
	_, err := m.Run(nil, 1000)
	require.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, int64(77), m.CU.DP.Regs.Top)
	assert.Equal(t, int64(55), m.CU.DP.Regs.Next)
}

func TestWritePortDispatchesOutput(t *testing.T) {
	m := bootWithProgram(t, mustCompile(t, "3 4 + emit"))
	var got []rune
	m.Output = func(ch rune) { got = append(got, ch) }
	_, err := m.Run(nil, 1000)
	require.ErrorIs(t, err, ErrHalted)
	require.Len(t, got, 1)
	assert.Equal(t, rune(7), got[0])
}

func TestVariableReadWrite(t *testing.T) {
	m := bootWithProgram(t, mustCompile(t, "x-1 5 x! x? x? +"))
	_, err := m.Run(nil, 1000)
	require.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, int64(10), m.CU.DP.Regs.Top)
}

func TestWordCallReturn(t *testing.T) {
	m := bootWithProgram(t, mustCompile(t, ":double dup + ; 21 double"))
	_, err := m.Run(nil, 1000)
	require.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, int64(42), m.CU.DP.Regs.Top)
}

func TestInputScheduleDispatchesWriteInterrupt(t *testing.T) {
	m := bootWithProgram(t, mustCompile(t, "key drop"))
	_, err := m.Run(map[int]rune{0: 'A'}, 1000)
	require.ErrorIs(t, err, ErrHalted)
}

func runAndCollectOutput(t *testing.T, source string) string {
	t.Helper()
	m := bootWithProgram(t, mustCompile(t, source))
	var got []rune
	m.Output = func(ch rune) { got = append(got, ch) }
	_, err := m.Run(nil, 10000)
	require.ErrorIs(t, err, ErrHalted)
	return string(got)
}

func TestHelloPortScenario(t *testing.T) {
	assert.Equal(t, "Hi", runAndCollectOutput(t, "72 emit 105 emit"))
}

func TestCountedLoopWithIndexScenario(t *testing.T) {
	assert.Equal(t, "0123456789", runAndCollectOutput(t, "48 58 doi emit loop"))
}

func TestConditionalScenario(t *testing.T) {
	assert.Equal(t, "Y", runAndCollectOutput(t, "5 3 > if 89 emit else 78 emit then"))
}

func TestConditionalScenarioFalseBranch(t *testing.T) {
	assert.Equal(t, "N", runAndCollectOutput(t, "3 5 > if 89 emit else 78 emit then"))
}

func TestWordCallReturnScenario(t *testing.T) {
	assert.Equal(t, string(rune(42)), runAndCollectOutput(t, ":dbl dup + ; 21 dbl emit"))
}

func TestBeginUntilScenario(t *testing.T) {
	// until continues looping while the fed flag is true (0) and exits once
	// it is false (-1), so the continuation test is "counter <> 0", not
	// "counter = 0" — counts down from 5 to 1, printing a digit each pass,
	// and exits once the post-decrement counter reaches 0.
	assert.Equal(t, "54321", runAndCollectOutput(t, "5 begin dup 48 + emit 1 - dup 0 <> until drop"))
}

func TestStringLiteralEndToEnd(t *testing.T) {
	assert.Equal(t, "Hi", runAndCollectOutput(t, `"Hi"`))
}

func TestLeaveExitsLoopEarly(t *testing.T) {
	// emit consumes the top of stack, so the index must be duplicated
	// before printing it if the loop body also wants to compare it.
	assert.Equal(t, "0123", runAndCollectOutput(t, "48 58 doi dup emit 51 = if leave then loop"))
}
