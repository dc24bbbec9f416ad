package compiler

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/GreatMimperator/forthchan/isa"
)

// int56Min/int56Max bound the signed-literal range the source language
// promises (§6.2); the machine's cells carry a full int64, but literals
// written in source are only guaranteed round-trip exact within 56 bits.
const (
	int56Max = 1<<55 - 1
	int56Min = -(1 << 55)
)

var (
	identifierRe = regexp.MustCompile(`^[A-Za-z][A-Za-z\-\\_]*$`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

func isInt56(v int64) bool {
	return v >= int56Min && v <= int56Max
}

func isCorrectNumber(s string) bool {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return false
	}
	return isInt56(v)
}

func isSignWord(s string) bool {
	return len(s) == 1 && strings.ContainsRune("+-/*", rune(s[0]))
}

func isComparatorWord(s string) bool {
	switch s {
	case "<>", "=", ">", ">=", "<", "<=":
		return true
	default:
		return false
	}
}

func isUserWord(s string) bool {
	return identifierRe.MatchString(s)
}

func isCompilerWord(s string) bool {
	return len(s) > 1 && s[0] == '_' && isUserWord(s[1:])
}

func isStringImmPrinting(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

func isVariableOperation(s string) bool {
	parts := strings.Split(s, "-")
	switch len(parts) {
	case 1:
		if len(s) == 0 {
			return false
		}
		base := s[:len(s)-1]
		suffix := s[len(s)-1]
		return (isCompilerWord(base) || isUserWord(base)) && strings.ContainsRune("!?&", rune(suffix))
	case 2:
		return (isUserWord(parts[0]) || isCompilerWord(parts[0])) && isCorrectNumber(parts[1])
	default:
		return false
	}
}

func isSystemVariableOperation(s string) bool {
	if len(s) == 0 || s[0] != '_' {
		return false
	}
	return isVariableOperation(s[1:])
}

func isCommentMark(s string) bool {
	return s == `\`
}

func isCorrectWordDefTerm(s string) bool {
	if strings.HasPrefix(s, ":") {
		return isUserWord(s[1:])
	}
	return s == ";"
}

func isForCycleBegin(s string) bool { return s == "do" || s == "doi" }
func isForCycleEnd(s string) bool   { return s == "loop" || s == "mloop" }
func isWhileCycleBegin(s string) bool { return s == "begin" }
func isWhileCycleEnd(s string) bool   { return s == "until" }

// linesToTerms tokenizes source text into a flat term stream. It performs no
// structural validation; see validate.go for that pass.
func linesToTerms(lines []string) ([]isa.Term, error) {
	var terms []isa.Term
	for i, line := range lines {
		lineNum := i + 1
		line = strings.TrimRight(line, "\r\n \t")
		parts := strings.Split(line, `"`)
		if len(parts)%2 != 1 {
			return nil, errUnterminatedString(lineNum)
		}
		pos := 0
		for partIdx, part := range parts {
			if partIdx%2 == 1 {
				pos++
				terms = append(terms, isa.Term{LineNumber: lineNum, LinePosition: pos, Name: `"` + part + `"`})
				continue
			}
			if strings.TrimSpace(part) == "" {
				continue
			}
			var stop bool
			var err error
			pos, terms, stop, err = appendPlainTerms(pos, part, lineNum, terms)
			if err != nil {
				return nil, err
			}
			if stop {
				break
			}
		}
	}
	return terms, nil
}

func appendPlainTerms(pos int, part string, lineNum int, terms []isa.Term) (int, []isa.Term, bool, error) {
	for _, tok := range whitespaceRe.Split(strings.TrimSpace(part), -1) {
		if tok == "" {
			continue
		}
		pos++
		switch {
		case isCommentMark(tok):
			return pos, terms, true, nil
		case isCorrectNumber(tok), isSignWord(tok), isComparatorWord(tok), isUserWord(tok),
			isSystemVariableOperation(tok), isVariableOperation(tok),
			isCorrectWordDefTerm(tok), isStringImmPrinting(tok):
			terms = append(terms, isa.Term{LineNumber: lineNum, LinePosition: pos, Name: tok})
		default:
			return pos, terms, false, errUnknownToken(lineNum, pos, tok)
		}
	}
	return pos, terms, false, nil
}
