package vm

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/nethervm/nethervm/core/state"
	"github.com/nethervm/nethervm/core/types"
)

func TestStructLoggerCapturesSteps(t *testing.T) {
	statedb := state.New(state.NewMapReader())
	logger := NewStructLogger(StructLoggerConfig{})
	evm := NewEVM(testBlockContext(), testTxContext(), statedb, Config{Fork: Cancun, ChainID: 1, Inspector: logger})

	addr := types.HexToAddress("0x9999999999999999999999999999999999999999")
	statedb.CreateAccount(addr)
	statedb.SetCode(addr, []byte{
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x02,
		byte(ADD),
		byte(STOP),
	})

	_, _, err := evm.Call(testCaller, addr, nil, 100000, new(uint256.Int))
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}

	logs := logger.StructLogs()
	if len(logs) != 4 {
		t.Fatalf("step count = %d, want 4", len(logs))
	}
	wantOps := []OpCode{PUSH1, PUSH1, ADD, STOP}
	for i, want := range wantOps {
		if logs[i].Op != want {
			t.Errorf("step %d op = %v, want %v", i, logs[i].Op, want)
		}
	}
	// The ADD step sees both operands on the stack.
	if len(logs[2].Stack) != 2 {
		t.Errorf("ADD stack depth = %d, want 2", len(logs[2].Stack))
	}
	if logs[0].GasCost != 3 {
		t.Errorf("PUSH1 cost = %d, want 3", logs[0].GasCost)
	}
	if logger.GasUsed() != 9 {
		t.Errorf("gas used = %d, want 9", logger.GasUsed())
	}
	if logger.Error() != nil {
		t.Errorf("logged error = %v", logger.Error())
	}
}

func TestStructLoggerFaultAnnotation(t *testing.T) {
	statedb := state.New(state.NewMapReader())
	logger := NewStructLogger(StructLoggerConfig{})
	evm := NewEVM(testBlockContext(), testTxContext(), statedb, Config{Fork: Cancun, ChainID: 1, Inspector: logger})

	addr := types.HexToAddress("0x9999999999999999999999999999999999999999")
	statedb.CreateAccount(addr)
	statedb.SetCode(addr, []byte{byte(ADD)})

	_, _, err := evm.Call(testCaller, addr, nil, 100000, new(uint256.Int))
	if err == nil {
		t.Fatal("expected stack underflow")
	}
	if logger.Error() == nil {
		t.Error("CaptureEnd must record the failure")
	}
}

func TestStructLoggerStepLimit(t *testing.T) {
	statedb := state.New(state.NewMapReader())
	logger := NewStructLogger(StructLoggerConfig{Limit: 2})
	evm := NewEVM(testBlockContext(), testTxContext(), statedb, Config{Fork: Cancun, ChainID: 1, Inspector: logger})

	addr := types.HexToAddress("0x9999999999999999999999999999999999999999")
	statedb.CreateAccount(addr)
	statedb.SetCode(addr, []byte{
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x02,
		byte(ADD),
		byte(STOP),
	})
	if _, _, err := evm.Call(testCaller, addr, nil, 100000, new(uint256.Int)); err != nil {
		t.Fatal(err)
	}
	if got := len(logger.StructLogs()); got != 2 {
		t.Errorf("step count = %d, want limit 2", got)
	}
}
