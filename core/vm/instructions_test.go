package vm

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/nethervm/nethervm/core/state"
	"github.com/nethervm/nethervm/core/types"
)

// runReturnTop executes code that is expected to leave one value on the
// stack, appending the MSTORE/RETURN epilogue to read it back.
func runReturnTop(t *testing.T, fork Fork, code []byte) *uint256.Int {
	t.Helper()
	evm, _ := newTestEVM(fork)
	full := append(append([]byte{}, code...),
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	)
	ret, err := evm.Run(newTestContract(full, 1_000_000), nil, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	return new(uint256.Int).SetBytes(ret)
}

func push(vals ...byte) []byte {
	var code []byte
	for _, v := range vals {
		code = append(code, byte(PUSH1), v)
	}
	return code
}

func TestArithmeticOps(t *testing.T) {
	cases := []struct {
		name string
		code []byte
		want uint64
	}{
		{"add", append(push(1, 2), byte(ADD)), 3},
		{"mul", append(push(3, 4), byte(MUL)), 12},
		{"sub", append(push(2, 5), byte(SUB)), 3}, // 5 - 2
		{"div", append(push(3, 10), byte(DIV)), 3},
		{"div by zero", append(push(0, 10), byte(DIV)), 0},
		{"mod", append(push(3, 10), byte(MOD)), 1},
		{"mod by zero", append(push(0, 10), byte(MOD)), 0},
		{"addmod", append(push(8, 5, 5), byte(ADDMOD)), 2}, // (5+5)%8
		{"mulmod", append(push(8, 5, 5), byte(MULMOD)), 1}, // (5*5)%8
		{"exp", append(push(4, 3), byte(EXP)), 81},         // 3^4
		{"lt true", append(push(2, 1), byte(LT)), 1},       // 1 < 2
		{"lt false", append(push(1, 2), byte(LT)), 0},
		{"gt true", append(push(1, 2), byte(GT)), 1}, // 2 > 1
		{"eq", append(push(7, 7), byte(EQ)), 1},
		{"iszero zero", append(push(0), byte(ISZERO)), 1},
		{"iszero nonzero", append(push(9), byte(ISZERO)), 0},
		{"and", append(push(0x0c, 0x0a), byte(AND)), 0x08},
		{"or", append(push(0x0c, 0x0a), byte(OR)), 0x0e},
		{"xor", append(push(0x0c, 0x0a), byte(XOR)), 0x06},
		{"shl", append(push(1, 4), byte(SHL)), 16},  // 1 << 4
		{"shr", append(push(16, 2), byte(SHR)), 4},  // 16 >> 2
		{"byte", append(push(0xff, 31), byte(BYTE)), 0xff},
	}
	for _, tc := range cases {
		got := runReturnTop(t, Cancun, tc.code)
		if got.Uint64() != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, got.Uint64(), tc.want)
		}
	}
}

func TestSignedOps(t *testing.T) {
	minusOne := new(uint256.Int).SetAllOne()

	// -1 / 2 via SDIV: PUSH 2, then NOT 0 for -1, SDIV -> 0.
	got := runReturnTop(t, Cancun, []byte{
		byte(PUSH1), 0x02,
		byte(PUSH1), 0x00, byte(NOT), // -1
		byte(SDIV),
	})
	if !got.IsZero() {
		t.Errorf("sdiv(-1, 2) = %v, want 0", got)
	}

	// SLT: -1 < 1.
	got = runReturnTop(t, Cancun, []byte{
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x00, byte(NOT),
		byte(SLT),
	})
	if got.Uint64() != 1 {
		t.Errorf("slt(-1, 1) = %v, want 1", got)
	}

	// SAR of -1 stays -1.
	got = runReturnTop(t, Cancun, []byte{
		byte(PUSH1), 0x00, byte(NOT),
		byte(PUSH1), 0x01,
		byte(SAR),
	})
	if !got.Eq(minusOne) {
		t.Errorf("sar(-1, 1) = %v, want -1", got)
	}

	// SIGNEXTEND byte 0 of 0xff gives -1.
	got = runReturnTop(t, Cancun, []byte{
		byte(PUSH1), 0xff,
		byte(PUSH1), 0x00,
		byte(SIGNEXTEND),
	})
	if !got.Eq(minusOne) {
		t.Errorf("signextend(0, 0xff) = %v, want -1", got)
	}
}

func TestKeccak256Op(t *testing.T) {
	// Hash of empty input.
	got := runReturnTop(t, Cancun, append(push(0, 0), byte(KECCAK256)))
	if types.BytesToHash(got.Bytes()) != types.EmptyCodeHash {
		t.Errorf("keccak256(empty) = %x", got.Bytes())
	}
}

func TestEnvironmentOps(t *testing.T) {
	cases := []struct {
		name string
		code []byte
		want uint64
	}{
		{"number", []byte{byte(NUMBER)}, 1000},
		{"timestamp", []byte{byte(TIMESTAMP)}, 1700000000},
		{"gaslimit", []byte{byte(GASLIMIT)}, 30_000_000},
		{"chainid", []byte{byte(CHAINID)}, 1},
		{"basefee", []byte{byte(BASEFEE)}, 7},
		{"blobbasefee", []byte{byte(BLOBBASEFEE)}, 1},
		{"callvalue", []byte{byte(CALLVALUE)}, 0},
		{"calldatasize", []byte{byte(CALLDATASIZE)}, 0},
		{"returndatasize", []byte{byte(RETURNDATASIZE)}, 0},
		{"msize", []byte{byte(MSIZE)}, 0},
		{"pc", []byte{byte(PC)}, 0},
	}
	for _, tc := range cases {
		got := runReturnTop(t, Cancun, tc.code)
		if got.Uint64() != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, got.Uint64(), tc.want)
		}
	}
}

func TestBlockhashWindow(t *testing.T) {
	// In range: block 999 at head 1000.
	want := testBlockContext().GetHash(999)
	res := runReturnTop(t, Cancun, []byte{byte(PUSH2), 0x03, 0xe7, byte(BLOCKHASH)})
	if types.BytesToHash(res.Bytes()) != want {
		t.Errorf("blockhash(999) = %x, want %x", res.Bytes(), want)
	}

	// Out of 256-block window.
	res = runReturnTop(t, Cancun, append(push(0x01), byte(BLOCKHASH)))
	if !res.IsZero() {
		t.Errorf("blockhash out of window = %v, want 0", res)
	}

	// Future block.
	res = runReturnTop(t, Cancun, []byte{byte(PUSH2), 0x07, 0xd0, byte(BLOCKHASH)})
	if !res.IsZero() {
		t.Errorf("blockhash future = %v, want 0", res)
	}
}

func TestGasPrice(t *testing.T) {
	got := runReturnTop(t, Cancun, []byte{byte(GASPRICE)})
	if got.Uint64() != 1 {
		t.Errorf("gasprice = %d, want 1", got.Uint64())
	}

	// A zero-value TxContext reads as price zero, same as the other
	// optional context fields.
	evm := NewEVM(testBlockContext(), TxContext{}, state.New(state.NewMapReader()), Config{Fork: Cancun, ChainID: 1})
	ret, err := evm.Run(newTestContract([]byte{
		byte(GASPRICE),
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}, 100000), nil, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !new(uint256.Int).SetBytes(ret).IsZero() {
		t.Errorf("gasprice with unset context = %x, want 0", ret)
	}
}

func TestCalldataOps(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	code := []byte{
		byte(PUSH1), 0x00,
		byte(CALLDATALOAD),
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}
	input := make([]byte, 4)
	input[0] = 0xde
	ret, err := evm.Run(newTestContract(code, 100000), input, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	// CALLDATALOAD zero-pads past the end of calldata.
	if ret[0] != 0xde {
		t.Errorf("ret[0] = %#x, want 0xde", ret[0])
	}
	for i := 4; i < 32; i++ {
		if ret[i] != 0 {
			t.Fatalf("ret[%d] = %#x, want 0", i, ret[i])
		}
	}
}

func TestSloadSstore(t *testing.T) {
	evm, statedb := newTestEVM(Cancun)
	code := []byte{
		byte(PUSH1), 0x2a,
		byte(PUSH1), 0x01,
		byte(SSTORE),
		byte(PUSH1), 0x01,
		byte(SLOAD),
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}
	contract := newTestContract(code, 1_000_000)
	ret, err := evm.Run(contract, nil, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if ret[31] != 0x2a {
		t.Errorf("sload = %#x, want 0x2a", ret[31])
	}
	var key types.Hash
	key[31] = 0x01
	if got := statedb.GetState(contract.Address, key); got[31] != 0x2a {
		t.Errorf("state = %x", got)
	}
}

func TestLogOps(t *testing.T) {
	evm, statedb := newTestEVM(Cancun)
	// LOG1 pops offset, size, then the topic.
	code := []byte{
		byte(PUSH1), 0x7f,
		byte(PUSH1), 0x00,
		byte(MSTORE8),
		byte(PUSH1), 0xbb, // topic
		byte(PUSH1), 0x01, // size
		byte(PUSH1), 0x00, // offset
		byte(LOG1),
		byte(STOP),
	}
	contract := newTestContract(code, 100000)
	if _, err := evm.Run(contract, nil, false); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	logs := statedb.Logs()
	if len(logs) != 1 {
		t.Fatalf("log count = %d, want 1", len(logs))
	}
	log := logs[0]
	if log.Address != contract.Address {
		t.Errorf("log address = %v", log.Address)
	}
	if len(log.Topics) != 1 || log.Topics[0][31] != 0xbb {
		t.Errorf("log topics = %v", log.Topics)
	}
	if len(log.Data) != 1 || log.Data[0] != 0x7f {
		t.Errorf("log data = %x", log.Data)
	}
	if log.BlockNumber != 1000 {
		t.Errorf("log block = %d", log.BlockNumber)
	}
}

func TestSelfBalanceAndBalance(t *testing.T) {
	evm, statedb := newTestEVM(Cancun)
	contract := newTestContract([]byte{
		byte(SELFBALANCE),
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}, 100000)
	statedb.AddBalance(contract.Address, uint256.NewInt(12345))

	ret, err := evm.Run(contract, nil, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := new(uint256.Int).SetBytes(ret); got.Uint64() != 12345 {
		t.Errorf("selfbalance = %d, want 12345", got.Uint64())
	}
}

func TestPrevRandaoVsDifficulty(t *testing.T) {
	// Pre-Merge 0x44 reads the difficulty.
	got := runReturnTop(t, London, []byte{byte(PREVRANDAO)})
	if got.Uint64() != 131072 {
		t.Errorf("difficulty = %d, want 131072", got.Uint64())
	}

	// Post-merge the same opcode reads the randao mix.
	evm, _ := newTestEVM(Merge)
	evm.Context.Random = types.HexToHash("0x0000000000000000000000000000000000000000000000000000000000000042")
	ret, err := evm.Run(newTestContract([]byte{
		byte(PREVRANDAO),
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}, 100000), nil, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if ret[31] != 0x42 {
		t.Errorf("prevrandao = %x", ret)
	}
}

func TestBlobHash(t *testing.T) {
	evm, _ := newTestEVM(Cancun)
	blob := types.HexToHash("0x0100000000000000000000000000000000000000000000000000000000000abc")
	evm.TxContext.BlobHashes = []types.Hash{blob}

	code := []byte{
		byte(PUSH1), 0x00,
		byte(BLOBHASH),
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}
	ret, err := evm.Run(newTestContract(code, 100000), nil, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if types.BytesToHash(ret) != blob {
		t.Errorf("blobhash(0) = %x, want %x", ret, blob)
	}

	// Out-of-range index yields zero.
	code[1] = 0x05
	ret, err = evm.Run(newTestContract(code, 100000), nil, false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !types.BytesToHash(ret).IsZero() {
		t.Errorf("blobhash(5) = %x, want zero", ret)
	}
}
