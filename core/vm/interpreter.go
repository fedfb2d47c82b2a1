package vm

import (
	"github.com/holiman/uint256"

	"github.com/nethervm/nethervm/core/types"
)

// GetHashFunc returns the hash of the block with the given number.
type GetHashFunc func(uint64) types.Hash

// BlockContext provides the EVM with block-level information. It is
// constant across a transaction.
type BlockContext struct {
	GetHash     GetHashFunc
	Coinbase    types.Address
	BlockNumber uint64
	Time        uint64
	GasLimit    uint64
	Difficulty  *uint256.Int
	Random      types.Hash // PREVRANDAO after the merge
	BaseFee     *uint256.Int
	BlobBaseFee *uint256.Int
}

// TxContext provides the EVM with transaction-level information.
type TxContext struct {
	Origin     types.Address
	GasPrice   *uint256.Int
	BlobHashes []types.Hash
}

// StateDB is the world state surface the interpreter runs against.
// core/state.StateDB implements it; tests may substitute their own.
type StateDB interface {
	CreateAccount(types.Address)
	CreateContract(types.Address)

	GetBalance(types.Address) *uint256.Int
	AddBalance(types.Address, *uint256.Int)
	SubBalance(types.Address, *uint256.Int)
	GetNonce(types.Address) uint64
	SetNonce(types.Address, uint64)
	GetCode(types.Address) []byte
	SetCode(types.Address, []byte)
	GetCodeHash(types.Address) types.Hash
	GetCodeSize(types.Address) int

	GetState(types.Address, types.Hash) types.Hash
	SetState(types.Address, types.Hash, types.Hash)
	GetCommittedState(types.Address, types.Hash) types.Hash

	GetTransientState(types.Address, types.Hash) types.Hash
	SetTransientState(addr types.Address, key, value types.Hash)

	SelfDestruct(types.Address)
	Selfdestruct6780(types.Address)
	HasSelfDestructed(types.Address) bool

	Exist(types.Address) bool
	Empty(types.Address) bool

	AddRefund(uint64)
	SubRefund(uint64)
	GetRefund() uint64

	AddAddressToAccessList(types.Address)
	AddSlotToAccessList(types.Address, types.Hash)
	AddressInAccessList(types.Address) bool
	SlotInAccessList(types.Address, types.Hash) (addressOk bool, slotOk bool)

	Snapshot() int
	RevertToSnapshot(int)

	AddLog(*types.Log)
}

// Config holds EVM configuration options.
type Config struct {
	Fork      Fork
	ChainID   uint64
	Inspector Inspector
}

// EVM executes bytecode against a state database, one call frame at a
// time. It is not safe for concurrent use.
type EVM struct {
	Context   BlockContext
	TxContext TxContext
	StateDB   StateDB
	Config    Config

	rules       Rules
	jumpTable   JumpTable
	precompiles map[types.Address]PrecompiledContract

	depth       int
	readOnly    bool
	returnData  []byte
	callGasTemp uint64 // gas resolved for the pending sub-call
}

// NewEVM creates an EVM for one transaction worth of execution.
func NewEVM(blockCtx BlockContext, txCtx TxContext, statedb StateDB, config Config) *EVM {
	return &EVM{
		Context:     blockCtx,
		TxContext:   txCtx,
		StateDB:     statedb,
		Config:      config,
		rules:       RulesFor(config.Fork),
		jumpTable:   SelectJumpTable(config.Fork),
		precompiles: PrecompilesFor(config.Fork),
	}
}

// Rules returns the flattened fork rules the EVM runs under.
func (evm *EVM) Rules() Rules { return evm.rules }

// Depth returns the current call depth.
func (evm *EVM) Depth() int { return evm.depth }

// precompile returns the precompiled contract at addr, if any.
func (evm *EVM) precompile(addr types.Address) (PrecompiledContract, bool) {
	p, ok := evm.precompiles[addr]
	return p, ok
}

// Run executes the frame's bytecode until a halting instruction, an
// error, or the program counter runs past the end of code (an implicit
// STOP). Gas is drawn from contract.Gas.
func (evm *EVM) Run(contract *Contract, input []byte, readOnly bool) ([]byte, error) {
	evm.depth++
	defer func() { evm.depth-- }()

	if readOnly && !evm.readOnly {
		evm.readOnly = true
		defer func() { evm.readOnly = false }()
	}
	evm.returnData = nil
	contract.Input = input

	var (
		pc        uint64
		stack     = NewStack()
		mem       = NewMemory()
		inspector = evm.Config.Inspector
	)

	for {
		op := contract.GetOp(pc)
		operation := evm.jumpTable[op]
		if operation == nil {
			return nil, ErrInvalidOpCode
		}

		sLen := stack.Len()
		if sLen < operation.minStack {
			return nil, ErrStackUnderflow
		}
		if sLen > operation.maxStack {
			return nil, ErrStackOverflow
		}
		if evm.readOnly && operation.writes {
			return nil, ErrWriteProtection
		}

		gasBefore := contract.Gas
		cost := operation.constantGas
		if !contract.UseGas(cost) {
			return nil, ErrOutOfGas
		}

		var memorySize uint64
		if operation.memorySize != nil {
			memSize, overflow := operation.memorySize(stack)
			if overflow {
				return nil, ErrGasUintOverflow
			}
			if memorySize, overflow = safeMul(toWordSize(memSize), 32); overflow {
				return nil, ErrGasUintOverflow
			}
			expansionCost, err := memoryGasCost(mem, memorySize)
			if err != nil {
				return nil, err
			}
			cost += expansionCost
			if !contract.UseGas(expansionCost) {
				return nil, ErrOutOfGas
			}
		}
		if operation.dynamicGas != nil {
			dynamicCost, err := operation.dynamicGas(evm, contract, stack, mem, memorySize)
			if err != nil {
				return nil, err
			}
			cost += dynamicCost
			if !contract.UseGas(dynamicCost) {
				return nil, ErrOutOfGas
			}
		}
		if memorySize > 0 {
			mem.Resize(memorySize)
		}

		if inspector != nil {
			inspector.CaptureState(pc, op, gasBefore, cost, contract, mem, stack, evm.depth)
		}

		ret, err := operation.execute(&pc, evm, contract, mem, stack)

		if inspector != nil {
			inspector.CaptureStateEnd(pc, op, ret, err)
		}
		if err != nil {
			if inspector != nil && !IsRevert(err) {
				inspector.CaptureFault(pc, op, contract.Gas, cost, evm.depth, err)
			}
			if IsRevert(err) {
				return ret, err
			}
			return nil, err
		}
		if operation.halts {
			return ret, nil
		}
		if !operation.jumps {
			pc++
		}
	}
}
