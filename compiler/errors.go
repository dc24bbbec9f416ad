package compiler

import "github.com/pkg/errors"

func errUnterminatedString(lineNum int) error {
	return errors.Errorf("%d: unterminated string literal (odd number of double quotes)", lineNum)
}

func errUnknownToken(lineNum, pos int, tok string) error {
	return errors.Errorf("%d:%d: unrecognized token shape %q", lineNum, pos, tok)
}

func errStructural(lineNum, pos int, msg string) error {
	return errors.Errorf("%d:%d: %s", lineNum, pos, msg)
}
