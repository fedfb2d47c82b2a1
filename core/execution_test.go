package core

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nethervm/nethervm/core/state"
	"github.com/nethervm/nethervm/core/types"
	"github.com/nethervm/nethervm/core/vm"
)

var (
	sender   = types.HexToAddress("0x1000000000000000000000000000000000000001")
	receiver = types.HexToAddress("0x2000000000000000000000000000000000000002")
)

func testBlockContext() vm.BlockContext {
	return vm.BlockContext{
		GetHash:     func(n uint64) types.Hash { return types.Hash{} },
		Coinbase:    types.HexToAddress("0xc0ffee00000000000000000000000000c0ffee00"),
		BlockNumber: 100,
		Time:        1700000000,
		GasLimit:    30_000_000,
		Difficulty:  uint256.NewInt(1),
		BaseFee:     uint256.NewInt(7),
		BlobBaseFee: uint256.NewInt(1),
	}
}

func testTxContext() vm.TxContext {
	return vm.TxContext{Origin: sender, GasPrice: uint256.NewInt(1)}
}

func newStateWithCode(code []byte) *state.StateDB {
	reader := state.NewMapReader()
	if code != nil {
		reader.SetCode(receiver, code)
	}
	return state.New(reader)
}

func execute(t *testing.T, statedb *state.StateDB, msg Message, fork vm.Fork) *ExecutionResult {
	t.Helper()
	res, err := Execute(msg, testBlockContext(), testTxContext(), statedb, fork, nil)
	require.NoError(t, err)
	return res
}

func TestExecuteSimpleAdd(t *testing.T) {
	statedb := newStateWithCode([]byte{
		byte(vm.PUSH1), 0x01,
		byte(vm.PUSH1), 0x01,
		byte(vm.ADD),
		byte(vm.STOP),
	})

	res := execute(t, statedb, Message{From: sender, To: &receiver, Gas: 100000}, vm.Cancun)
	assert.Equal(t, Success, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, uint64(9), res.GasUsed)
	assert.Nil(t, res.Output)
}

func TestExecuteOutOfGasConsumesLimit(t *testing.T) {
	statedb := newStateWithCode([]byte{byte(vm.PUSH1), 0x01})

	res := execute(t, statedb, Message{From: sender, To: &receiver, Gas: 2}, vm.Cancun)
	assert.Equal(t, Halt, res.Status)
	assert.ErrorIs(t, res.Err, vm.ErrOutOfGas)
	assert.Equal(t, uint64(2), res.GasUsed)
	assert.Zero(t, res.GasRefunded)
}

func TestExecuteRevertReturnsGasAndOutput(t *testing.T) {
	statedb := newStateWithCode([]byte{
		byte(vm.PUSH1), 0xee,
		byte(vm.PUSH1), 0x00,
		byte(vm.MSTORE8),
		byte(vm.PUSH1), 0x01,
		byte(vm.PUSH1), 0x00,
		byte(vm.REVERT),
	})

	res := execute(t, statedb, Message{From: sender, To: &receiver, Gas: 100000}, vm.Cancun)
	assert.Equal(t, Revert, res.Status)
	assert.True(t, res.Reverted())
	assert.ErrorIs(t, res.Err, vm.ErrExecutionReverted)
	assert.Equal(t, []byte{0xee}, res.Output)
	assert.Less(t, res.GasUsed, uint64(100000))
	assert.Empty(t, res.Logs)
}

func TestExecuteCreate(t *testing.T) {
	statedb := state.New(state.NewMapReader())

	// Deploy a single STOP byte.
	initCode := []byte{
		byte(vm.PUSH1), 0x00,
		byte(vm.PUSH1), 0x00,
		byte(vm.MSTORE8),
		byte(vm.PUSH1), 0x01,
		byte(vm.PUSH1), 0x00,
		byte(vm.RETURN),
	}
	res := execute(t, statedb, Message{From: sender, Data: initCode, Gas: 1_000_000}, vm.Cancun)
	require.Equal(t, Success, res.Status)
	assert.False(t, res.ContractAddress.IsZero())
	assert.Equal(t, []byte{0x00}, statedb.GetCode(res.ContractAddress))
	assert.Equal(t, uint64(1), statedb.GetNonce(res.ContractAddress))
}

func TestExecuteValueTransfer(t *testing.T) {
	reader := state.NewMapReader()
	reader.SetAccount(sender, 0, uint256.NewInt(1000))
	statedb := state.New(reader)

	res := execute(t, statedb, Message{
		From:  sender,
		To:    &receiver,
		Value: uint256.NewInt(400),
		Gas:   100000,
	}, vm.Cancun)
	require.Equal(t, Success, res.Status)
	assert.Equal(t, uint64(400), statedb.GetBalance(receiver).Uint64())
	assert.Equal(t, uint64(600), statedb.GetBalance(sender).Uint64())
}

func TestExecuteInsufficientBalanceHalts(t *testing.T) {
	statedb := state.New(state.NewMapReader())

	res := execute(t, statedb, Message{
		From:  sender,
		To:    &receiver,
		Value: uint256.NewInt(1),
		Gas:   100000,
	}, vm.Cancun)
	assert.Equal(t, Halt, res.Status)
	assert.ErrorIs(t, res.Err, vm.ErrInsufficientBalance)
}

func TestExecuteStaticBlocksWrites(t *testing.T) {
	statedb := newStateWithCode([]byte{
		byte(vm.PUSH1), 0x01,
		byte(vm.PUSH1), 0x00,
		byte(vm.SSTORE),
	})

	res := execute(t, statedb, Message{From: sender, To: &receiver, Gas: 100000, Static: true}, vm.Cancun)
	assert.Equal(t, Halt, res.Status)
	assert.ErrorIs(t, res.Err, vm.ErrWriteProtection)
}

func TestExecuteRefundCapLondon(t *testing.T) {
	// Slot 1 starts non-zero; clearing it earns the EIP-3529 refund,
	// capped at gasUsed/5.
	reader := state.NewMapReader()
	reader.SetCode(receiver, []byte{
		byte(vm.PUSH1), 0x00,
		byte(vm.PUSH1), 0x01,
		byte(vm.SSTORE),
		byte(vm.STOP),
	})
	reader.SetStorage(receiver, types.BytesToHash([]byte{0x01}), types.BytesToHash([]byte{0x07}))
	statedb := state.New(reader)

	res := execute(t, statedb, Message{From: sender, To: &receiver, Gas: 100000}, vm.London)
	require.Equal(t, Success, res.Status)

	gross := res.GasUsed + res.GasRefunded
	assert.Equal(t, gross/5, res.GasRefunded, "refund must hit the quotient cap")
	assert.Less(t, res.GasRefunded, uint64(4800), "capped below the full clear refund")
}

func TestExecuteRefundCapPreLondon(t *testing.T) {
	reader := state.NewMapReader()
	reader.SetCode(receiver, []byte{
		byte(vm.PUSH1), 0x00,
		byte(vm.PUSH1), 0x01,
		byte(vm.SSTORE),
		byte(vm.STOP),
	})
	reader.SetStorage(receiver, types.BytesToHash([]byte{0x01}), types.BytesToHash([]byte{0x07}))
	statedb := state.New(reader)

	res := execute(t, statedb, Message{From: sender, To: &receiver, Gas: 100000}, vm.Berlin)
	require.Equal(t, Success, res.Status)

	gross := res.GasUsed + res.GasRefunded
	assert.Equal(t, gross/2, res.GasRefunded, "pre-london quotient is 2")
}

func TestExecuteLogsOnlyOnSuccess(t *testing.T) {
	logThenStop := []byte{
		byte(vm.PUSH1), 0x00,
		byte(vm.PUSH1), 0x00,
		byte(vm.LOG0),
		byte(vm.STOP),
	}
	statedb := newStateWithCode(logThenStop)
	res := execute(t, statedb, Message{From: sender, To: &receiver, Gas: 100000}, vm.Cancun)
	require.Equal(t, Success, res.Status)
	assert.Len(t, res.Logs, 1)

	logThenRevert := []byte{
		byte(vm.PUSH1), 0x00,
		byte(vm.PUSH1), 0x00,
		byte(vm.LOG0),
		byte(vm.PUSH1), 0x00,
		byte(vm.PUSH1), 0x00,
		byte(vm.REVERT),
	}
	statedb = newStateWithCode(logThenRevert)
	res = execute(t, statedb, Message{From: sender, To: &receiver, Gas: 100000}, vm.Cancun)
	assert.Equal(t, Revert, res.Status)
	assert.Empty(t, res.Logs)
}

func TestExecutePrewarmAccessList(t *testing.T) {
	// A warm SLOAD of a listed slot costs 100 instead of 2100.
	reader := state.NewMapReader()
	reader.SetCode(receiver, []byte{
		byte(vm.PUSH1), 0x01,
		byte(vm.SLOAD),
		byte(vm.POP),
		byte(vm.STOP),
	})
	slot := types.BytesToHash([]byte{0x01})

	cold := execute(t, state.New(reader), Message{From: sender, To: &receiver, Gas: 100000}, vm.Berlin)
	require.Equal(t, Success, cold.Status)

	warm := execute(t, state.New(reader), Message{
		From: sender,
		To:   &receiver,
		Gas:  100000,
		AccessList: []AccessTuple{
			{Address: receiver, StorageKeys: []types.Hash{slot}},
		},
	}, vm.Berlin)
	require.Equal(t, Success, warm.Status)

	assert.Equal(t, uint64(2000), cold.GasUsed-warm.GasUsed)
}

func TestExecuteFatalReaderError(t *testing.T) {
	backendErr := errors.New("disk failure")
	statedb := state.New(brokenReader{err: backendErr})

	_, err := Execute(Message{From: sender, To: &receiver, Gas: 100000},
		testBlockContext(), testTxContext(), statedb, vm.Cancun, nil)
	assert.ErrorIs(t, err, backendErr)
}

func TestExecuteGasConservation(t *testing.T) {
	// Nested call: total gas used by the parent covers the child.
	inner := types.HexToAddress("0x3000000000000000000000000000000000000003")
	reader := state.NewMapReader()
	reader.SetCode(inner, []byte{
		byte(vm.PUSH1), 0x01,
		byte(vm.PUSH1), 0x01,
		byte(vm.ADD),
		byte(vm.STOP),
	})
	reader.SetCode(receiver, []byte{
		byte(vm.PUSH1), 0x00,
		byte(vm.PUSH1), 0x00,
		byte(vm.PUSH1), 0x00,
		byte(vm.PUSH1), 0x00,
		byte(vm.PUSH1), 0x00,
		byte(vm.PUSH20), 0x30, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03,
		byte(vm.PUSH2), 0xff, 0xff,
		byte(vm.CALL),
		byte(vm.STOP),
	})
	statedb := state.New(reader)

	res := execute(t, statedb, Message{From: sender, To: &receiver, Gas: 100000}, vm.Cancun)
	require.Equal(t, Success, res.Status)
	assert.Greater(t, res.GasUsed, uint64(0))
	assert.LessOrEqual(t, res.GasUsed, uint64(100000))
}

// TestExecuteStateUpdatePersists replays the committed update into a
// fresh reader and checks the storage write is visible to a new StateDB
// built over it.
func TestExecuteStateUpdatePersists(t *testing.T) {
	store := []byte{
		byte(vm.PUSH1), 0x2a,
		byte(vm.PUSH1), 0x01,
		byte(vm.SSTORE),
		byte(vm.STOP),
	}
	statedb := newStateWithCode(store)

	res := execute(t, statedb, Message{From: sender, To: &receiver, Gas: 100000}, vm.Cancun)
	require.Equal(t, Success, res.Status)
	require.NotNil(t, res.StateUpdate)

	slot := types.BytesToHash([]byte{0x01})
	require.Contains(t, res.StateUpdate.Accounts, receiver)
	assert.Equal(t, types.BytesToHash([]byte{0x2a}), res.StateUpdate.Accounts[receiver].Storage[slot])

	reader := state.NewMapReader()
	for addr, acct := range res.StateUpdate.Accounts {
		reader.SetAccount(addr, acct.Nonce, acct.Balance)
		if acct.Code != nil {
			reader.SetCode(addr, acct.Code)
		}
		for key, val := range acct.Storage {
			reader.SetStorage(addr, key, val)
		}
	}
	rebuilt := state.New(reader)
	assert.Equal(t, types.BytesToHash([]byte{0x2a}), rebuilt.GetState(receiver, slot))
}

func TestExecuteDeterministic(t *testing.T) {
	code := []byte{
		byte(vm.PUSH1), 0x2a,
		byte(vm.PUSH1), 0x01,
		byte(vm.SSTORE),
		byte(vm.PUSH1), 0x2a,
		byte(vm.PUSH1), 0x00,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 0x20,
		byte(vm.PUSH1), 0x00,
		byte(vm.RETURN),
	}
	run := func() *ExecutionResult {
		reader := state.NewMapReader()
		reader.SetAccount(sender, 0, uint256.NewInt(1000))
		reader.SetCode(receiver, code)
		return execute(t, state.New(reader), Message{
			From:  sender,
			To:    &receiver,
			Value: uint256.NewInt(5),
			Gas:   100000,
		}, vm.Cancun)
	}

	r1 := run()
	r2 := run()
	require.Equal(t, Success, r1.Status)
	assert.Equal(t, r1.GasUsed, r2.GasUsed)
	assert.Equal(t, r1.GasRefunded, r2.GasRefunded)
	assert.Equal(t, r1.Output, r2.Output)
	assert.Equal(t, r1.StateUpdate.Root, r2.StateUpdate.Root)
	assert.Equal(t, r1.StateUpdate.Accounts, r2.StateUpdate.Accounts)
	assert.Equal(t, r1.StateUpdate.Destroyed, r2.StateUpdate.Destroyed)
}

type brokenReader struct{ err error }

func (r brokenReader) Account(types.Address) (*types.Account, error) { return nil, r.err }
func (r brokenReader) Code(types.Address, types.Hash) ([]byte, error) {
	return nil, r.err
}
func (r brokenReader) Storage(types.Address, types.Hash) (types.Hash, error) {
	return types.Hash{}, r.err
}
