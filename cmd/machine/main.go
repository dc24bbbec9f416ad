// Command machine runs a compiled forthchan image against a scheduled
// stream of device input, per spec §6.3:
// `machine <code> <input-schedule> <write-handler₀> <read-handler₀> [...]`.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/GreatMimperator/forthchan/internal/schedule"
	"github.com/GreatMimperator/forthchan/internal/trace"
	"github.com/GreatMimperator/forthchan/isa"
	"github.com/GreatMimperator/forthchan/machine"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMemSize    = 1000
	defaultVarMemSize = 100
	defaultTicksLimit = 1_000_000
)

var (
	traceFlag      = flag.Bool("trace", false, "emit a per-tick register trace to stderr")
	ticksLimitFlag = flag.Int("ticks-limit", defaultTicksLimit, "maximum ticks to run before stopping")
	memFlag        = flag.Int("mem", defaultMemSize, "data memory size in cells")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) < 4 || (len(args)-2)%2 != 0 {
		fmt.Fprintln(os.Stderr, "usage: machine <code> <input-schedule> <write-handler0> <read-handler0> [<write-handlerN> <read-handlerN>]...")
		os.Exit(1)
	}
	if err := run(args[0], args[1], args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "machine:", err)
		os.Exit(1)
	}
}

func run(codePath, schedulePath string, handlerPaths []string) error {
	log := trace.New(os.Stderr, *traceFlag)

	program, err := loadImage(codePath)
	if err != nil {
		return errors.Wrapf(err, "loading program %s", codePath)
	}

	ports, err := loadPortsConcurrently(handlerPaths)
	if err != nil {
		return err
	}

	f, err := os.Open(schedulePath)
	if err != nil {
		return errors.Wrapf(err, "opening schedule %s", schedulePath)
	}
	defer f.Close()
	entries, err := schedule.Parse(f)
	if err != nil {
		return errors.Wrapf(err, "parsing schedule %s", schedulePath)
	}
	byTick := schedule.ByTick(entries)
	log.Debugf("machine", "scheduled %d device writes", len(entries))

	m, err := machine.Boot(machine.BootConfig{
		MemSize:    *memFlag,
		VarMemSize: defaultVarMemSize,
		Ports:      ports,
		Program:    program,
	}, log)
	if err != nil {
		return errors.Wrap(err, "booting machine")
	}
	m.Output = func(ch rune) {
		if ch == 13 {
			fmt.Println()
		} else {
			fmt.Print(string(ch))
		}
	}

	result, err := m.Run(byTick, *ticksLimitFlag)
	if err != nil && !errors.Is(err, machine.ErrTicksLimitReached) {
		return errors.Wrapf(err, "after %d ticks", result.Ticks)
	}
	log.Debugf("machine", "ticks: %d", result.Ticks)
	return nil
}

func loadImage(path string) ([]isa.Instruction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return isa.DecodeProgram(string(data))
}

// loadPortsConcurrently decodes each port's write/read handler images in
// parallel: these are independent files with no shared state, and doing
// so off the single-threaded tick loop costs nothing (spec §11.3).
func loadPortsConcurrently(handlerPaths []string) ([]machine.PortProgram, error) {
	n := len(handlerPaths) / 2
	ports := make([]machine.PortProgram, n)

	g := new(errgroup.Group)
	g.SetLimit(max(1, runtime.NumCPU()))
	for i := 0; i < n; i++ {
		i := i
		writePath := handlerPaths[2*i]
		readPath := handlerPaths[2*i+1]
		g.Go(func() error {
			writeCode, err := loadImage(writePath)
			if err != nil {
				return errors.Wrapf(err, "loading write handler %s", writePath)
			}
			readCode, err := loadImage(readPath)
			if err != nil {
				return errors.Wrapf(err, "loading read handler %s", readPath)
			}
			ports[i] = machine.PortProgram{WriteHandler: writeCode, ReadHandler: readCode}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ports, nil
}
