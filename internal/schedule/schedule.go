// Package schedule parses the input-schedule files consumed by the machine
// binary: one "TICK_INDEX CHAR" pair per line, mirroring the reference
// interpreter's plain-text token-input format (spec §6.4).
package schedule

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Entry is one scheduled device write: at tick Index, Char is deposited
// into the main port.
type Entry struct {
	Index int
	Char  rune
}

// Parse reads a schedule file. On a duplicate tick index, the
// first-occurring entry wins and later ones for that tick are dropped,
// matching the reference's dict-keyed trimming of duplicate tokens.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	seen := map[int]bool{}
	var entries []Entry
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.Errorf("schedule line %d: expected \"TICK CHAR\", got %q", lineNum, line)
		}
		tick, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "schedule line %d: bad tick index", lineNum)
		}
		chars := []rune(fields[1])
		if len(chars) != 1 {
			return nil, errors.Errorf("schedule line %d: expected a single character, got %q", lineNum, fields[1])
		}
		if seen[tick] {
			continue
		}
		seen[tick] = true
		entries = append(entries, Entry{Index: tick, Char: chars[0]})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading schedule")
	}
	return entries, nil
}

// ByTick indexes entries for O(1) lookup during the driver loop.
func ByTick(entries []Entry) map[int]rune {
	m := make(map[int]rune, len(entries))
	for _, e := range entries {
		m[e.Index] = e.Char
	}
	return m
}
