package vm

// dynamicGasFunc computes the variable gas portion of an operation.
type dynamicGasFunc func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error)

// memorySizeFunc returns the highest memory byte an operation touches.
// The bool return reports overflow, treated as out of gas by the caller.
type memorySizeFunc func(stack *Stack) (uint64, bool)

// operation holds the execution metadata for one opcode.
type operation struct {
	execute     executionFunc
	constantGas uint64
	dynamicGas  dynamicGasFunc
	minStack    int // items required on the stack
	maxStack    int // highest stack length at which the op still fits
	memorySize  memorySizeFunc
	halts       bool // op ends the frame (STOP, RETURN, REVERT, SELFDESTRUCT)
	jumps       bool // op sets the program counter itself
	writes      bool // op mutates state, rejected in static context
}

// JumpTable maps every opcode to its operation. Unassigned slots are
// invalid opcodes.
type JumpTable [256]*operation

func memSizeOffLen(stack *Stack, offBack, lenBack int) (uint64, bool) {
	length, overflow := stack.Back(lenBack).Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	if length == 0 {
		return 0, false
	}
	offset, overflow := stack.Back(offBack).Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	end := offset + length
	return end, end < offset
}

func memoryKeccak256(stack *Stack) (uint64, bool)      { return memSizeOffLen(stack, 0, 1) }
func memoryCalldataCopy(stack *Stack) (uint64, bool)   { return memSizeOffLen(stack, 0, 2) }
func memoryCodeCopy(stack *Stack) (uint64, bool)       { return memSizeOffLen(stack, 0, 2) }
func memoryExtcodeCopy(stack *Stack) (uint64, bool)    { return memSizeOffLen(stack, 1, 3) }
func memoryReturndataCopy(stack *Stack) (uint64, bool) { return memSizeOffLen(stack, 0, 2) }
func memoryLog(stack *Stack) (uint64, bool)            { return memSizeOffLen(stack, 0, 1) }
func memoryReturn(stack *Stack) (uint64, bool)         { return memSizeOffLen(stack, 0, 1) }
func memoryRevert(stack *Stack) (uint64, bool)         { return memSizeOffLen(stack, 0, 1) }
func memoryCreate(stack *Stack) (uint64, bool)         { return memSizeOffLen(stack, 1, 2) }
func memoryCreate2(stack *Stack) (uint64, bool)        { return memSizeOffLen(stack, 1, 2) }

func memoryMload(stack *Stack) (uint64, bool) {
	offset, overflow := stack.Back(0).Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	end := offset + 32
	return end, end < offset
}

func memoryMstore(stack *Stack) (uint64, bool) { return memoryMload(stack) }

func memoryMstore8(stack *Stack) (uint64, bool) {
	offset, overflow := stack.Back(0).Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	end := offset + 1
	return end, end < offset
}

// memoryCall covers both the argument and return regions.
func memoryCall(stack *Stack) (uint64, bool) {
	args, overflow := memSizeOffLen(stack, 3, 4)
	if overflow {
		return 0, true
	}
	ret, overflow := memSizeOffLen(stack, 5, 6)
	if overflow {
		return 0, true
	}
	return max(args, ret), false
}

// memoryDelegateCall is memoryCall without the value operand.
func memoryDelegateCall(stack *Stack) (uint64, bool) {
	args, overflow := memSizeOffLen(stack, 2, 3)
	if overflow {
		return 0, true
	}
	ret, overflow := memSizeOffLen(stack, 4, 5)
	if overflow {
		return 0, true
	}
	return max(args, ret), false
}

func memoryStaticCall(stack *Stack) (uint64, bool) { return memoryDelegateCall(stack) }

func memoryMcopy(stack *Stack) (uint64, bool) {
	length, overflow := stack.Back(2).Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	if length == 0 {
		return 0, false
	}
	dst, overflow := stack.Back(0).Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	src, overflow := stack.Back(1).Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	end := max(dst, src) + length
	return end, end < length
}

// NewFrontierJumpTable returns the genesis rule set.
func NewFrontierJumpTable() JumpTable {
	var tbl JumpTable

	tbl[STOP] = &operation{execute: opStop, constantGas: 0, minStack: 0, maxStack: 1024, halts: true}
	tbl[ADD] = &operation{execute: opAdd, constantGas: GasFastestStep, minStack: 2, maxStack: 1024}
	tbl[MUL] = &operation{execute: opMul, constantGas: GasFastStep, minStack: 2, maxStack: 1024}
	tbl[SUB] = &operation{execute: opSub, constantGas: GasFastestStep, minStack: 2, maxStack: 1024}
	tbl[DIV] = &operation{execute: opDiv, constantGas: GasFastStep, minStack: 2, maxStack: 1024}
	tbl[SDIV] = &operation{execute: opSdiv, constantGas: GasFastStep, minStack: 2, maxStack: 1024}
	tbl[MOD] = &operation{execute: opMod, constantGas: GasFastStep, minStack: 2, maxStack: 1024}
	tbl[SMOD] = &operation{execute: opSmod, constantGas: GasFastStep, minStack: 2, maxStack: 1024}
	tbl[ADDMOD] = &operation{execute: opAddmod, constantGas: GasMidStep, minStack: 3, maxStack: 1024}
	tbl[MULMOD] = &operation{execute: opMulmod, constantGas: GasMidStep, minStack: 3, maxStack: 1024}
	tbl[EXP] = &operation{execute: opExp, constantGas: GasSlowStep, dynamicGas: makeGasExp(GasExpByteFrontier), minStack: 2, maxStack: 1024}
	tbl[SIGNEXTEND] = &operation{execute: opSignExtend, constantGas: GasFastStep, minStack: 2, maxStack: 1024}

	tbl[LT] = &operation{execute: opLt, constantGas: GasFastestStep, minStack: 2, maxStack: 1024}
	tbl[GT] = &operation{execute: opGt, constantGas: GasFastestStep, minStack: 2, maxStack: 1024}
	tbl[SLT] = &operation{execute: opSlt, constantGas: GasFastestStep, minStack: 2, maxStack: 1024}
	tbl[SGT] = &operation{execute: opSgt, constantGas: GasFastestStep, minStack: 2, maxStack: 1024}
	tbl[EQ] = &operation{execute: opEq, constantGas: GasFastestStep, minStack: 2, maxStack: 1024}
	tbl[ISZERO] = &operation{execute: opIsZero, constantGas: GasFastestStep, minStack: 1, maxStack: 1024}
	tbl[AND] = &operation{execute: opAnd, constantGas: GasFastestStep, minStack: 2, maxStack: 1024}
	tbl[OR] = &operation{execute: opOr, constantGas: GasFastestStep, minStack: 2, maxStack: 1024}
	tbl[XOR] = &operation{execute: opXor, constantGas: GasFastestStep, minStack: 2, maxStack: 1024}
	tbl[NOT] = &operation{execute: opNot, constantGas: GasFastestStep, minStack: 1, maxStack: 1024}
	tbl[BYTE] = &operation{execute: opByte, constantGas: GasFastestStep, minStack: 2, maxStack: 1024}

	tbl[KECCAK256] = &operation{execute: opKeccak256, constantGas: GasKeccak256, dynamicGas: gasKeccak256, minStack: 2, maxStack: 1024, memorySize: memoryKeccak256}

	tbl[ADDRESS] = &operation{execute: opAddress, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[BALANCE] = &operation{execute: opBalance, constantGas: GasBalanceFrontier, minStack: 1, maxStack: 1024}
	tbl[ORIGIN] = &operation{execute: opOrigin, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[CALLER] = &operation{execute: opCaller, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[CALLVALUE] = &operation{execute: opCallValue, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[CALLDATALOAD] = &operation{execute: opCalldataLoad, constantGas: GasFastestStep, minStack: 1, maxStack: 1024}
	tbl[CALLDATASIZE] = &operation{execute: opCalldataSize, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[CALLDATACOPY] = &operation{execute: opCalldataCopy, constantGas: GasFastestStep, dynamicGas: gasCopy, minStack: 3, maxStack: 1024, memorySize: memoryCalldataCopy}
	tbl[CODESIZE] = &operation{execute: opCodeSize, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[CODECOPY] = &operation{execute: opCodeCopy, constantGas: GasFastestStep, dynamicGas: gasCopy, minStack: 3, maxStack: 1024, memorySize: memoryCodeCopy}
	tbl[GASPRICE] = &operation{execute: opGasPrice, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[EXTCODESIZE] = &operation{execute: opExtcodesize, constantGas: GasExtCodeSizeFrontier, minStack: 1, maxStack: 1024}
	tbl[EXTCODECOPY] = &operation{execute: opExtcodecopy, constantGas: GasExtCodeCopyFrontier, dynamicGas: gasExtCodeCopy, minStack: 4, maxStack: 1024, memorySize: memoryExtcodeCopy}

	tbl[BLOCKHASH] = &operation{execute: opBlockhash, constantGas: GasExtStep, minStack: 1, maxStack: 1024}
	tbl[COINBASE] = &operation{execute: opCoinbase, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[TIMESTAMP] = &operation{execute: opTimestamp, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[NUMBER] = &operation{execute: opNumber, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[PREVRANDAO] = &operation{execute: opDifficulty, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[GASLIMIT] = &operation{execute: opGasLimit, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}

	tbl[POP] = &operation{execute: opPop, constantGas: GasQuickStep, minStack: 1, maxStack: 1024}
	tbl[MLOAD] = &operation{execute: opMload, constantGas: GasFastestStep, minStack: 1, maxStack: 1024, memorySize: memoryMload}
	tbl[MSTORE] = &operation{execute: opMstore, constantGas: GasFastestStep, minStack: 2, maxStack: 1024, memorySize: memoryMstore}
	tbl[MSTORE8] = &operation{execute: opMstore8, constantGas: GasFastestStep, minStack: 2, maxStack: 1024, memorySize: memoryMstore8}
	tbl[SLOAD] = &operation{execute: opSload, constantGas: GasSloadFrontier, minStack: 1, maxStack: 1024}
	tbl[SSTORE] = &operation{execute: opSstore, constantGas: 0, dynamicGas: gasSStoreLegacy, minStack: 2, maxStack: 1024, writes: true}
	tbl[JUMP] = &operation{execute: opJump, constantGas: GasMidStep, minStack: 1, maxStack: 1024, jumps: true}
	tbl[JUMPI] = &operation{execute: opJumpi, constantGas: GasSlowStep, minStack: 2, maxStack: 1024, jumps: true}
	tbl[PC] = &operation{execute: opPc, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[MSIZE] = &operation{execute: opMsize, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[GAS] = &operation{execute: opGas, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[JUMPDEST] = &operation{execute: opJumpdest, constantGas: GasJumpDest, minStack: 0, maxStack: 1024}

	for i := 1; i <= 32; i++ {
		tbl[PUSH1+OpCode(i-1)] = &operation{
			execute:     makePush(uint64(i)),
			constantGas: GasFastestStep,
			minStack:    0,
			maxStack:    1023,
		}
	}
	for i := 1; i <= 16; i++ {
		tbl[DUP1+OpCode(i-1)] = &operation{
			execute:     makeDup(i),
			constantGas: GasFastestStep,
			minStack:    i,
			maxStack:    1023,
		}
	}
	for i := 1; i <= 16; i++ {
		tbl[SWAP1+OpCode(i-1)] = &operation{
			execute:     makeSwap(i),
			constantGas: GasFastestStep,
			minStack:    i + 1,
			maxStack:    1024,
		}
	}
	for i := 0; i <= 4; i++ {
		tbl[LOG0+OpCode(i)] = &operation{
			execute:     makeLog(i),
			constantGas: GasLog,
			dynamicGas:  makeGasLog(uint64(i)),
			minStack:    2 + i,
			maxStack:    1024,
			memorySize:  memoryLog,
			writes:      true,
		}
	}

	tbl[CREATE] = &operation{execute: opCreate, constantGas: GasCreate, minStack: 3, maxStack: 1024, memorySize: memoryCreate, writes: true}
	tbl[CALL] = &operation{execute: opCall, constantGas: GasCallFrontier, dynamicGas: gasCall, minStack: 7, maxStack: 1024, memorySize: memoryCall}
	tbl[CALLCODE] = &operation{execute: opCallCode, constantGas: GasCallFrontier, dynamicGas: gasCallCode, minStack: 7, maxStack: 1024, memorySize: memoryCall}
	tbl[RETURN] = &operation{execute: opReturn, constantGas: 0, minStack: 2, maxStack: 1024, memorySize: memoryReturn, halts: true}
	tbl[SELFDESTRUCT] = &operation{execute: opSelfdestruct, constantGas: GasSelfdestruct, dynamicGas: gasSelfdestruct, minStack: 1, maxStack: 1024, halts: true, writes: true}

	return tbl
}

// NewHomesteadJumpTable adds DELEGATECALL.
func NewHomesteadJumpTable() JumpTable {
	tbl := NewFrontierJumpTable()
	tbl[DELEGATECALL] = &operation{execute: opDelegateCall, constantGas: GasCallFrontier, dynamicGas: gasDelegateCall, minStack: 6, maxStack: 1024, memorySize: memoryDelegateCall}
	return tbl
}

// NewTangerineWhistleJumpTable applies the EIP-150 state access repricing.
func NewTangerineWhistleJumpTable() JumpTable {
	tbl := NewHomesteadJumpTable()
	tbl[BALANCE].constantGas = GasBalanceEIP150
	tbl[SLOAD].constantGas = GasSloadEIP150
	tbl[EXTCODESIZE].constantGas = GasExtCodeSizeEIP150
	tbl[EXTCODECOPY].constantGas = GasExtCodeCopyEIP150
	tbl[CALL].constantGas = GasCallEIP150
	tbl[CALLCODE].constantGas = GasCallEIP150
	tbl[DELEGATECALL].constantGas = GasCallEIP150
	return tbl
}

// NewSpuriousDragonJumpTable applies the EIP-160 EXP repricing.
func NewSpuriousDragonJumpTable() JumpTable {
	tbl := NewTangerineWhistleJumpTable()
	tbl[EXP].dynamicGas = makeGasExp(GasExpByteEIP160)
	return tbl
}

// NewByzantiumJumpTable adds REVERT, STATICCALL and return data access.
func NewByzantiumJumpTable() JumpTable {
	tbl := NewSpuriousDragonJumpTable()
	tbl[REVERT] = &operation{execute: opRevert, constantGas: 0, minStack: 2, maxStack: 1024, memorySize: memoryRevert, halts: true}
	tbl[RETURNDATASIZE] = &operation{execute: opReturndataSize, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[RETURNDATACOPY] = &operation{execute: opReturndataCopy, constantGas: GasFastestStep, dynamicGas: gasCopy, minStack: 3, maxStack: 1024, memorySize: memoryReturndataCopy}
	tbl[STATICCALL] = &operation{execute: opStaticCall, constantGas: GasCallEIP150, dynamicGas: gasStaticCall, minStack: 6, maxStack: 1024, memorySize: memoryStaticCall}
	return tbl
}

// NewConstantinopleJumpTable adds the shift opcodes, EXTCODEHASH and
// CREATE2.
func NewConstantinopleJumpTable() JumpTable {
	tbl := NewByzantiumJumpTable()
	tbl[SHL] = &operation{execute: opSHL, constantGas: GasFastestStep, minStack: 2, maxStack: 1024}
	tbl[SHR] = &operation{execute: opSHR, constantGas: GasFastestStep, minStack: 2, maxStack: 1024}
	tbl[SAR] = &operation{execute: opSAR, constantGas: GasFastestStep, minStack: 2, maxStack: 1024}
	tbl[EXTCODEHASH] = &operation{execute: opExtcodehash, constantGas: GasExtCodeHashEIP1052, minStack: 1, maxStack: 1024}
	tbl[CREATE2] = &operation{execute: opCreate2, constantGas: GasCreate, dynamicGas: gasCreate2, minStack: 4, maxStack: 1024, memorySize: memoryCreate2, writes: true}
	return tbl
}

// NewPetersburgJumpTable is Constantinople without EIP-1283.
func NewPetersburgJumpTable() JumpTable {
	return NewConstantinopleJumpTable()
}

// NewIstanbulJumpTable applies the EIP-1884 repricings, EIP-2200 net
// metered SSTORE, CHAINID and SELFBALANCE.
func NewIstanbulJumpTable() JumpTable {
	tbl := NewPetersburgJumpTable()
	tbl[CHAINID] = &operation{execute: opChainID, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[SELFBALANCE] = &operation{execute: opSelfBalance, constantGas: GasSelfBalance, minStack: 0, maxStack: 1023}
	tbl[BALANCE].constantGas = GasBalanceEIP1884
	tbl[SLOAD].constantGas = GasSloadEIP2200
	tbl[EXTCODEHASH].constantGas = GasExtCodeHashEIP1884
	tbl[SSTORE] = &operation{execute: opSstore, constantGas: 0, dynamicGas: gasSStoreEIP2200, minStack: 2, maxStack: 1024, writes: true}
	return tbl
}

// NewBerlinJumpTable applies EIP-2929 warm and cold access accounting.
func NewBerlinJumpTable() JumpTable {
	tbl := NewIstanbulJumpTable()
	tbl[SLOAD] = &operation{execute: opSload, constantGas: 0, dynamicGas: gasSLoadEIP2929, minStack: 1, maxStack: 1024}
	tbl[BALANCE] = &operation{execute: opBalance, constantGas: WarmStorageReadCostEIP2929, dynamicGas: gasEIP2929AccountCheck, minStack: 1, maxStack: 1024}
	tbl[EXTCODESIZE] = &operation{execute: opExtcodesize, constantGas: WarmStorageReadCostEIP2929, dynamicGas: gasEIP2929AccountCheck, minStack: 1, maxStack: 1024}
	tbl[EXTCODEHASH] = &operation{execute: opExtcodehash, constantGas: WarmStorageReadCostEIP2929, dynamicGas: gasEIP2929AccountCheck, minStack: 1, maxStack: 1024}
	tbl[EXTCODECOPY] = &operation{execute: opExtcodecopy, constantGas: WarmStorageReadCostEIP2929, dynamicGas: gasExtCodeCopyEIP2929, minStack: 4, maxStack: 1024, memorySize: memoryExtcodeCopy}
	tbl[CALL] = &operation{execute: opCall, constantGas: WarmStorageReadCostEIP2929, dynamicGas: makeCallVariantGasEIP2929(gasCall), minStack: 7, maxStack: 1024, memorySize: memoryCall}
	tbl[CALLCODE] = &operation{execute: opCallCode, constantGas: WarmStorageReadCostEIP2929, dynamicGas: makeCallVariantGasEIP2929(gasCallCode), minStack: 7, maxStack: 1024, memorySize: memoryCall}
	tbl[DELEGATECALL] = &operation{execute: opDelegateCall, constantGas: WarmStorageReadCostEIP2929, dynamicGas: makeCallVariantGasEIP2929(gasDelegateCall), minStack: 6, maxStack: 1024, memorySize: memoryDelegateCall}
	tbl[STATICCALL] = &operation{execute: opStaticCall, constantGas: WarmStorageReadCostEIP2929, dynamicGas: makeCallVariantGasEIP2929(gasStaticCall), minStack: 6, maxStack: 1024, memorySize: memoryStaticCall}
	tbl[SSTORE] = &operation{execute: opSstore, constantGas: 0, dynamicGas: makeGasSStoreFunc(SstoreClearsScheduleRefundEIP2200), minStack: 2, maxStack: 1024, writes: true}
	tbl[SELFDESTRUCT] = &operation{execute: opSelfdestruct, constantGas: 0, dynamicGas: gasSelfdestructEIP2929, minStack: 1, maxStack: 1024, halts: true, writes: true}
	return tbl
}

// NewLondonJumpTable adds BASEFEE and the EIP-3529 refund reductions.
func NewLondonJumpTable() JumpTable {
	tbl := NewBerlinJumpTable()
	tbl[BASEFEE] = &operation{execute: opBaseFee, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[SSTORE].dynamicGas = makeGasSStoreFunc(SstoreClearsScheduleRefundEIP3529)
	return tbl
}

// NewMergeJumpTable swaps DIFFICULTY for PREVRANDAO (EIP-4399).
func NewMergeJumpTable() JumpTable {
	tbl := NewLondonJumpTable()
	tbl[PREVRANDAO] = &operation{execute: opPrevRandao, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	return tbl
}

// NewShanghaiJumpTable adds PUSH0.
func NewShanghaiJumpTable() JumpTable {
	tbl := NewMergeJumpTable()
	tbl[PUSH0] = &operation{execute: opPush0, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[CREATE].dynamicGas = gasCreateEIP3860
	tbl[CREATE2].dynamicGas = gasCreate2EIP3860
	return tbl
}

// NewCancunJumpTable adds transient storage, MCOPY and the blob opcodes.
func NewCancunJumpTable() JumpTable {
	tbl := NewShanghaiJumpTable()
	tbl[TLOAD] = &operation{execute: opTload, constantGas: GasTload, minStack: 1, maxStack: 1024}
	tbl[TSTORE] = &operation{execute: opTstore, constantGas: GasTstore, minStack: 2, maxStack: 1024, writes: true}
	tbl[MCOPY] = &operation{execute: opMcopy, constantGas: GasFastestStep, dynamicGas: gasMcopy, minStack: 3, maxStack: 1024, memorySize: memoryMcopy}
	tbl[BLOBHASH] = &operation{execute: opBlobHash, constantGas: GasBlobHash, minStack: 1, maxStack: 1024}
	tbl[BLOBBASEFEE] = &operation{execute: opBlobBaseFee, constantGas: GasBlobBaseFee, minStack: 0, maxStack: 1023}
	return tbl
}

// SelectJumpTable returns the jump table for a fork.
func SelectJumpTable(fork Fork) JumpTable {
	switch {
	case fork.AtLeast(Cancun):
		return NewCancunJumpTable()
	case fork.AtLeast(Shanghai):
		return NewShanghaiJumpTable()
	case fork.AtLeast(Merge):
		return NewMergeJumpTable()
	case fork.AtLeast(London):
		return NewLondonJumpTable()
	case fork.AtLeast(Berlin):
		return NewBerlinJumpTable()
	case fork.AtLeast(Istanbul):
		return NewIstanbulJumpTable()
	case fork.AtLeast(Petersburg):
		return NewPetersburgJumpTable()
	case fork.AtLeast(Constantinople):
		return NewConstantinopleJumpTable()
	case fork.AtLeast(Byzantium):
		return NewByzantiumJumpTable()
	case fork.AtLeast(SpuriousDragon):
		return NewSpuriousDragonJumpTable()
	case fork.AtLeast(TangerineWhistle):
		return NewTangerineWhistleJumpTable()
	case fork.AtLeast(Homestead):
		return NewHomesteadJumpTable()
	default:
		return NewFrontierJumpTable()
	}
}
