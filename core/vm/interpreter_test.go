package vm

import (
	"bytes"
	"errors"
	"testing"
)

func TestRunPushAddStop(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	contract := newTestContract([]byte{
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x01,
		byte(ADD),
		byte(STOP),
	}, 100000)

	ret, err := evm.Run(contract, nil, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if ret != nil {
		t.Fatalf("expected nil return from STOP, got %x", ret)
	}
	// PUSH1+PUSH1+ADD = 3+3+3.
	if used := uint64(100000) - contract.Gas; used != 9 {
		t.Errorf("gas used = %d, want 9", used)
	}
}

func TestRunOutOfGas(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	// PUSH1 costs 3; offering 2 fails before the byte is pushed.
	contract := newTestContract([]byte{byte(PUSH1), 0x01}, 2)

	_, err := evm.Run(contract, nil, false)
	if !errors.Is(err, ErrOutOfGas) {
		t.Fatalf("err = %v, want ErrOutOfGas", err)
	}
}

func TestRunMstoreReturn(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	contract := newTestContract([]byte{
		byte(PUSH1), 0x42,
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}, 100000)

	ret, err := evm.Run(contract, nil, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(ret) != 32 {
		t.Fatalf("return length = %d, want 32", len(ret))
	}
	if ret[31] != 0x42 {
		t.Errorf("ret[31] = %#x, want 0x42", ret[31])
	}
}

func TestRunImplicitStop(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	// Running past the end of code halts like STOP.
	contract := newTestContract([]byte{byte(PUSH1), 0x01}, 100000)

	ret, err := evm.Run(contract, nil, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if ret != nil {
		t.Fatalf("expected nil return, got %x", ret)
	}
}

func TestRunInvalidOpcode(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	contract := newTestContract([]byte{0xf9}, 100000)

	_, err := evm.Run(contract, nil, false)
	if !errors.Is(err, ErrInvalidOpCode) {
		t.Fatalf("err = %v, want ErrInvalidOpCode", err)
	}
}

func TestRunStackUnderflow(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	contract := newTestContract([]byte{byte(ADD)}, 100000)

	_, err := evm.Run(contract, nil, false)
	if !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("err = %v, want ErrStackUnderflow", err)
	}
}

func TestRunStackOverflow(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	// JUMPDEST, PUSH1 1, PUSH1 0, JUMP pushes forever.
	contract := newTestContract([]byte{
		byte(JUMPDEST),
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x00,
		byte(JUMP),
	}, 10_000_000)

	_, err := evm.Run(contract, nil, false)
	if !errors.Is(err, ErrStackOverflow) {
		t.Fatalf("err = %v, want ErrStackOverflow", err)
	}
}

func TestRunJumpToInvalidDest(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	// Byte 4 is a JUMPDEST value sitting inside the PUSH2 immediate.
	contract := newTestContract([]byte{
		byte(PUSH1), 0x04,
		byte(JUMP),
		byte(PUSH2), byte(JUMPDEST), 0x00,
	}, 100000)

	_, err := evm.Run(contract, nil, false)
	if !errors.Is(err, ErrInvalidJump) {
		t.Fatalf("err = %v, want ErrInvalidJump", err)
	}
}

func TestRunJumpiTakenAndFallthrough(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	// JUMPI over a REVERT to a JUMPDEST that returns 1.
	contract := newTestContract([]byte{
		byte(PUSH1), 0x01, // condition
		byte(PUSH1), 0x08, // dest
		byte(JUMPI),
		byte(PUSH1), 0x00,
		byte(STOP),
		byte(JUMPDEST), // 8
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x00,
		byte(MSTORE8),
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}, 100000)

	ret, err := evm.Run(contract, nil, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !bytes.Equal(ret, []byte{0x01}) {
		t.Fatalf("ret = %x, want 01", ret)
	}

	// Zero condition falls through to STOP.
	contract2 := newTestContract([]byte{
		byte(PUSH1), 0x00,
		byte(PUSH1), 0x08,
		byte(JUMPI),
		byte(STOP),
		byte(PUSH1), 0x00, // never reached
		byte(JUMPDEST),
	}, 100000)
	ret, err = evm.Run(contract2, nil, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if ret != nil {
		t.Fatalf("ret = %x, want nil", ret)
	}
}

func TestRunRevertCarriesOutput(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	contract := newTestContract([]byte{
		byte(PUSH1), 0xaa,
		byte(PUSH1), 0x00,
		byte(MSTORE8),
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x00,
		byte(REVERT),
	}, 100000)

	ret, err := evm.Run(contract, nil, false)
	if !errors.Is(err, ErrExecutionReverted) {
		t.Fatalf("err = %v, want ErrExecutionReverted", err)
	}
	if !bytes.Equal(ret, []byte{0xaa}) {
		t.Fatalf("revert output = %x, want aa", ret)
	}
	if contract.Gas == 0 {
		t.Error("revert should leave unconsumed gas")
	}
}

func TestRunPush0ForkGating(t *testing.T) {
	code := []byte{byte(PUSH0), byte(STOP)}

	evm, _ := newTestEVM(Shanghai)
	if _, err := evm.Run(newTestContract(code, 100000), nil, false); err != nil {
		t.Fatalf("PUSH0 on shanghai: %v", err)
	}

	evm, _ = newTestEVM(London)
	_, err := evm.Run(newTestContract(code, 100000), nil, false)
	if !errors.Is(err, ErrInvalidOpCode) {
		t.Fatalf("PUSH0 on london: err = %v, want ErrInvalidOpCode", err)
	}
}

func TestRunWriteProtection(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	contract := newTestContract([]byte{
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x00,
		byte(SSTORE),
	}, 100000)

	_, err := evm.Run(contract, nil, true)
	if !errors.Is(err, ErrWriteProtection) {
		t.Fatalf("err = %v, want ErrWriteProtection", err)
	}
}

func TestRunMemoryExpansionGas(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	// MSTORE at offset 0 grows memory to one word: 3 gas expansion.
	contract := newTestContract([]byte{
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(STOP),
	}, 100000)

	if _, err := evm.Run(contract, nil, false); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	// 3 (PUSH) + 3 (PUSH) + 3 (MSTORE) + 3 (one word of memory).
	if used := uint64(100000) - contract.Gas; used != 12 {
		t.Errorf("gas used = %d, want 12", used)
	}
}

func TestRunTransientStorage(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	// TSTORE(0, 0x42) then TLOAD(0) and return it.
	contract := newTestContract([]byte{
		byte(PUSH1), 0x42,
		byte(PUSH1), 0x00,
		byte(TSTORE),
		byte(PUSH1), 0x00,
		byte(TLOAD),
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}, 100000)

	ret, err := evm.Run(contract, nil, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if ret[31] != 0x42 {
		t.Errorf("TLOAD result = %#x, want 0x42", ret[31])
	}
}

func TestRunMcopy(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	// Store 0x11 at byte 31, copy word 0 to word 1, return word 1.
	contract := newTestContract([]byte{
		byte(PUSH1), 0x11,
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20, // length
		byte(PUSH1), 0x00, // src
		byte(PUSH1), 0x20, // dst
		byte(MCOPY),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x20,
		byte(RETURN),
	}, 100000)

	ret, err := evm.Run(contract, nil, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if ret[31] != 0x11 {
		t.Errorf("copied byte = %#x, want 0x11", ret[31])
	}
}
