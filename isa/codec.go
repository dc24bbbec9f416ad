package isa

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// wireInstruction mirrors Instruction's field layout for JSON purposes; kept
// separate so Instruction itself stays free of encoding concerns.
type wireInstruction struct {
	Index int    `json:"index"`
	Op    Opcode `json:"opcode"`
	Arg   *int64 `json:"arg"`
	Term  Term   `json:"term"`
}

// UnmarshalJSON accepts both the current object form {"line_number":...}
// and the older three-element array form [line, pos, name], per the wire
// format's tolerant-reader requirement.
func (t *Term) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var arr [3]json.RawMessage
		if err := json.Unmarshal(data, &arr); err != nil {
			return errors.Wrap(err, "decode legacy array-form term")
		}
		if err := json.Unmarshal(arr[0], &t.LineNumber); err != nil {
			return errors.Wrap(err, "decode term line_number")
		}
		if err := json.Unmarshal(arr[1], &t.LinePosition); err != nil {
			return errors.Wrap(err, "decode term line_position")
		}
		if err := json.Unmarshal(arr[2], &t.Name); err != nil {
			return errors.Wrap(err, "decode term name")
		}
		return nil
	}
	type alias Term
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return errors.Wrap(err, "decode term")
	}
	*t = Term(a)
	return nil
}

// EncodeProgram renders code using the canonical wire format: a JSON array
// literal with elements joined by ",\n ". Each element is encoding/json's
// compact output, so there are no spaces after ':' or ',' and characters
// such as '<' and '>' in term names are written as JSON \u escape sequences.
func EncodeProgram(code []Instruction) (string, error) {
	parts := make([]string, len(code))
	for i, instr := range code {
		w := wireInstruction{Index: instr.Index, Op: instr.Op, Arg: instr.Arg, Term: instr.Term}
		b, err := json.Marshal(w)
		if err != nil {
			return "", errors.Wrapf(err, "encode instruction %d", instr.Index)
		}
		parts[i] = string(b)
	}
	return "[" + strings.Join(parts, ",\n ") + "]", nil
}

// DecodeProgram parses the canonical wire format (or anything else valid
// JSON-array-of-objects-or-tolerant-arrays) into a program.
func DecodeProgram(text string) ([]Instruction, error) {
	var wire []wireInstruction
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return nil, errors.Wrap(err, "decode program image")
	}
	code := make([]Instruction, len(wire))
	for i, w := range wire {
		if !w.Op.Valid() {
			return nil, errors.Errorf("instruction %d: unknown opcode %q", w.Index, w.Op)
		}
		code[i] = Instruction{Index: w.Index, Op: w.Op, Arg: w.Arg, Term: w.Term}
	}
	return code, nil
}
