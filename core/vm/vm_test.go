package vm

import (
	"github.com/holiman/uint256"

	"github.com/nethervm/nethervm/core/state"
	"github.com/nethervm/nethervm/core/types"
)

func testBlockContext() BlockContext {
	return BlockContext{
		GetHash: func(n uint64) types.Hash {
			var h types.Hash
			h[31] = byte(n)
			return h
		},
		Coinbase:    types.HexToAddress("0xc0ffee00000000000000000000000000c0ffee00"),
		BlockNumber: 1000,
		Time:        1700000000,
		GasLimit:    30_000_000,
		Difficulty:  uint256.NewInt(131072),
		BaseFee:     uint256.NewInt(7),
		BlobBaseFee: uint256.NewInt(1),
	}
}

func testTxContext() TxContext {
	return TxContext{
		Origin:   types.HexToAddress("0x0102030405060708090a0b0c0d0e0f1011121314"),
		GasPrice: uint256.NewInt(1),
	}
}

// newTestEVM builds an EVM over a fresh in-memory state at the given fork.
func newTestEVM(fork Fork) (*EVM, *state.StateDB) {
	statedb := state.New(state.NewMapReader())
	evm := NewEVM(testBlockContext(), testTxContext(), statedb, Config{Fork: fork, ChainID: 1})
	return evm, statedb
}

// newTestContract wires a contract with code and gas for direct Run calls.
func newTestContract(code []byte, gas uint64) *Contract {
	contract := NewContract(types.Address{}, types.HexToAddress("0xdeadbeef00000000000000000000000000000000"), new(uint256.Int), gas)
	contract.SetCallCode(&contract.Address, types.Hash{}, code)
	return contract
}
