package vm

import (
	"github.com/holiman/uint256"

	"github.com/nethervm/nethervm/core/types"
)

// Inspector observes EVM execution. Hooks are invoked synchronously
// from the interpreter loop; implementations must not mutate the
// contract, stack or memory they are handed.
//
// CaptureStart/CaptureEnd bracket the outermost frame only;
// CaptureEnter/CaptureExit bracket every nested frame. CaptureState
// fires before each opcode and CaptureStateEnd after it, with the
// opcode's output and error. CaptureFault fires once for the opcode
// that halts a frame with a non-revert error.
type Inspector interface {
	CaptureStart(evm *EVM, from, to types.Address, create bool, input []byte, gas uint64, value *uint256.Int)
	CaptureEnd(output []byte, gasUsed uint64, err error)
	CaptureEnter(op OpCode, from, to types.Address, input []byte, gas uint64, value *uint256.Int)
	CaptureExit(output []byte, gasRemaining uint64, err error)
	CaptureState(pc uint64, op OpCode, gas, cost uint64, contract *Contract, memory *Memory, stack *Stack, depth int)
	CaptureStateEnd(pc uint64, op OpCode, ret []byte, err error)
	CaptureFault(pc uint64, op OpCode, gas, cost uint64, depth int, err error)
	CaptureLog(log *types.Log)
	CaptureSelfDestruct(addr, beneficiary types.Address, balance *uint256.Int)
}

// NoopInspector implements Inspector with empty hooks. Embed it to
// implement only the hooks a tracer cares about.
type NoopInspector struct{}

func (NoopInspector) CaptureStart(evm *EVM, from, to types.Address, create bool, input []byte, gas uint64, value *uint256.Int) {
}
func (NoopInspector) CaptureEnd(output []byte, gasUsed uint64, err error) {}
func (NoopInspector) CaptureEnter(op OpCode, from, to types.Address, input []byte, gas uint64, value *uint256.Int) {
}
func (NoopInspector) CaptureExit(output []byte, gasRemaining uint64, err error) {}
func (NoopInspector) CaptureState(pc uint64, op OpCode, gas, cost uint64, contract *Contract, memory *Memory, stack *Stack, depth int) {
}
func (NoopInspector) CaptureStateEnd(pc uint64, op OpCode, ret []byte, err error)        {}
func (NoopInspector) CaptureFault(pc uint64, op OpCode, gas, cost uint64, depth int, err error) {}
func (NoopInspector) CaptureLog(log *types.Log)                                          {}
func (NoopInspector) CaptureSelfDestruct(addr, beneficiary types.Address, balance *uint256.Int) {}

// StructLog is a single step recorded by StructLogger.
type StructLog struct {
	Pc      uint64
	Op      OpCode
	Gas     uint64
	GasCost uint64
	Depth   int
	Stack   []uint256.Int
	Memory  []byte
	Err     error
}

// StructLoggerConfig controls which optional data StructLogger copies
// at each step. Memory capture is off by default since it can be large.
type StructLoggerConfig struct {
	EnableMemory bool
	Limit        int // max number of steps to record, 0 = unbounded
}

// StructLogger collects step-by-step execution traces.
type StructLogger struct {
	NoopInspector

	config  StructLoggerConfig
	logs    []StructLog
	output  []byte
	err     error
	gasUsed uint64
}

// NewStructLogger returns a StructLogger with the given config.
func NewStructLogger(config StructLoggerConfig) *StructLogger {
	return &StructLogger{config: config}
}

// CaptureStart resets per-execution state so the logger can be reused.
func (l *StructLogger) CaptureStart(evm *EVM, from, to types.Address, create bool, input []byte, gas uint64, value *uint256.Int) {
	l.logs = l.logs[:0]
	l.output = nil
	l.err = nil
	l.gasUsed = 0
}

// CaptureState records one opcode step.
func (l *StructLogger) CaptureState(pc uint64, op OpCode, gas, cost uint64, contract *Contract, memory *Memory, stack *Stack, depth int) {
	if l.config.Limit > 0 && len(l.logs) >= l.config.Limit {
		return
	}
	entry := StructLog{
		Pc:      pc,
		Op:      op,
		Gas:     gas,
		GasCost: cost,
		Depth:   depth,
	}
	data := stack.Data()
	entry.Stack = make([]uint256.Int, len(data))
	copy(entry.Stack, data)
	if l.config.EnableMemory {
		entry.Memory = make([]byte, memory.Len())
		copy(entry.Memory, memory.Data())
	}
	l.logs = append(l.logs, entry)
}

// CaptureFault annotates the most recent step with the halting error.
func (l *StructLogger) CaptureFault(pc uint64, op OpCode, gas, cost uint64, depth int, err error) {
	if len(l.logs) > 0 {
		l.logs[len(l.logs)-1].Err = err
	}
}

// CaptureEnd records the result of the outermost frame.
func (l *StructLogger) CaptureEnd(output []byte, gasUsed uint64, err error) {
	l.output = output
	l.gasUsed = gasUsed
	l.err = err
}

// StructLogs returns the recorded steps.
func (l *StructLogger) StructLogs() []StructLog { return l.logs }

// Output returns the return data from the traced execution.
func (l *StructLogger) Output() []byte { return l.output }

// GasUsed returns the total gas consumed by the traced execution.
func (l *StructLogger) GasUsed() uint64 { return l.gasUsed }

// Error returns the error from the traced execution, if any.
func (l *StructLogger) Error() error { return l.err }
