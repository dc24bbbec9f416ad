// Command translator lowers forthchan source into a compiled instruction
// image, per spec §6.3: `translator <source> <target>`.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/GreatMimperator/forthchan/compiler"
	"github.com/GreatMimperator/forthchan/internal/trace"
	"github.com/GreatMimperator/forthchan/isa"
	"github.com/pkg/errors"
)

var (
	traceFlag = flag.Bool("trace", false, "emit per-term compile diagnostics to stderr")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: translator <source> <target>")
		os.Exit(1)
	}
	if err := run(args[0], args[1]); err != nil {
		fmt.Fprintln(os.Stderr, "translator:", err)
		os.Exit(1)
	}
}

func run(sourcePath, targetPath string) error {
	log := trace.New(os.Stderr, *traceFlag)

	lines, err := readLines(sourcePath)
	if err != nil {
		return errors.Wrapf(err, "reading %s", sourcePath)
	}
	log.Debugf("translator", "read %d source lines from %s", len(lines), sourcePath)

	result, err := compiler.Translate(lines)
	if err != nil {
		return errors.Wrapf(err, "compiling %s", sourcePath)
	}
	log.Debugf("translator", "compiled %d instructions, %d cells of variable data", len(result.Code), result.VarDataSize)

	text, err := isa.EncodeProgram(result.Code)
	if err != nil {
		return errors.Wrap(err, "encoding program image")
	}
	if err := os.WriteFile(targetPath, []byte(text), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", targetPath)
	}
	log.Debugf("translator", "wrote image to %s", targetPath)
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
