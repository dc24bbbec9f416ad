package machine

// Port models one memory-mapped I/O port's data-exchange flags. At most one
// of FilledWithDevice/FilledWithCPU is set at a time under well-behaved
// software (spec §3); the machine never re-raises an interrupt for a port
// already being serviced.
type Port struct {
	FilledWithDevice bool
	FilledWithCPU    bool
	Data             int64
}

// InterruptablePort pairs a Port with the two compiled handler programs
// that service it: WriteHandlerPC runs when a device deposits a byte that
// the CPU should be interrupted to consume; ReadHandlerPC runs after the CPU
// writes (WRITE_PORT) and the outside world has taken the datum.
type InterruptablePort struct {
	Port
	WriteHandlerPC int
	ReadHandlerPC  int
}

// MainPort is the index of the console port referenced by the compiler's
// emit/key/cr/cant_emit/has_input vocabulary.
const MainPort = 0
