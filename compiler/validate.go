package compiler

import "github.com/GreatMimperator/forthchan/isa"

type blockKind int

const (
	blockFor blockKind = iota
	blockWhile
	blockIf
)

type openBlock struct {
	kind    blockKind
	hadElse bool
}

// checkStructure walks the term stream tracking nested for/while/if blocks
// and word-definition state, rejecting malformed control-flow nesting
// before any lowering is attempted.
func checkStructure(terms []isa.Term) error {
	var blocks []openBlock
	inWordDef := false

	for _, term := range terms {
		if !isUserWord(term.Name) && !isCorrectWordDefTerm(term.Name) {
			continue
		}

		switch {
		case isForCycleBegin(term.Name):
			blocks = append(blocks, openBlock{kind: blockFor})
		case isWhileCycleBegin(term.Name):
			blocks = append(blocks, openBlock{kind: blockWhile})
		case term.Name == "if":
			blocks = append(blocks, openBlock{kind: blockIf})
		case term.Name == "else":
			if len(blocks) == 0 || blocks[len(blocks)-1].kind != blockIf || blocks[len(blocks)-1].hadElse {
				return errStructural(term.LineNumber, term.LinePosition, `"else" without a matching open "if"`)
			}
			blocks[len(blocks)-1].hadElse = true
		case term.Name == "leave":
			insideLoop := false
			for _, b := range blocks {
				if b.kind == blockFor || b.kind == blockWhile {
					insideLoop = true
					break
				}
			}
			if !insideLoop {
				return errStructural(term.LineNumber, term.LinePosition, `"leave" outside any loop`)
			}
		case isForCycleEnd(term.Name):
			if len(blocks) == 0 || blocks[len(blocks)-1].kind != blockFor {
				return errStructural(term.LineNumber, term.LinePosition, "unmatched loop close")
			}
			blocks = blocks[:len(blocks)-1]
		case isWhileCycleEnd(term.Name):
			if len(blocks) == 0 || blocks[len(blocks)-1].kind != blockWhile {
				return errStructural(term.LineNumber, term.LinePosition, "unmatched \"until\"")
			}
			blocks = blocks[:len(blocks)-1]
		case term.Name == "then":
			if len(blocks) == 0 || blocks[len(blocks)-1].kind != blockIf {
				return errStructural(term.LineNumber, term.LinePosition, "unmatched \"then\"")
			}
			blocks = blocks[:len(blocks)-1]
		case term.Name[0] == ':':
			if len(blocks) != 0 || inWordDef {
				return errStructural(term.LineNumber, term.LinePosition, "nested or misplaced word definition")
			}
			inWordDef = true
		case term.Name == ";":
			if len(blocks) != 0 || !inWordDef {
				return errStructural(term.LineNumber, term.LinePosition, `";" without a matching open word definition`)
			}
			inWordDef = false
		}
	}

	if len(blocks) != 0 || inWordDef {
		return errStructural(0, 0, "unterminated block or word definition at end of source")
	}
	return nil
}
