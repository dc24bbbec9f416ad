package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	term := Term{LineNumber: 1, LinePosition: 2, Name: "+"}
	code := []Instruction{
		NewInstructionArg(0, NUMBER, 3, term),
		NewInstructionArg(1, NUMBER, 4, term),
		NewInstruction(2, SUM, term),
		NewInstruction(3, HALT, Term{LineNumber: -1, LinePosition: -1}),
	}

	text, err := EncodeProgram(code)
	require.NoError(t, err)

	decoded, err := DecodeProgram(text)
	require.NoError(t, err)
	require.Len(t, decoded, len(code))
	for i := range code {
		assert.Equal(t, code[i].Index, decoded[i].Index)
		assert.Equal(t, code[i].Op, decoded[i].Op)
		assert.Equal(t, code[i].ArgOr(-999), decoded[i].ArgOr(-999))
	}
}

func TestDecodeProgramAcceptsLegacyArrayTerm(t *testing.T) {
	text := `[{"index":0,"opcode":"halt","arg":null,"term":[5,1,"halt"]}]`
	decoded, err := DecodeProgram(text)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, 5, decoded[0].Term.LineNumber)
	assert.Equal(t, "halt", decoded[0].Term.Name)
}

func TestDecodeProgramRejectsUnknownOpcode(t *testing.T) {
	text := `[{"index":0,"opcode":"not_a_real_opcode","arg":null,"term":{"line_number":1,"line_position":1,"name":"x"}}]`
	_, err := DecodeProgram(text)
	require.Error(t, err)
}

func TestOpcodeTakesArg(t *testing.T) {
	assert.True(t, NUMBER.TakesArg())
	assert.True(t, WRITE_PORT.TakesArg())
	assert.False(t, DUP.TakesArg())
	assert.False(t, HALT.TakesArg())
}
