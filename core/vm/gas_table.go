package vm

import (
	"github.com/holiman/uint256"

	"github.com/nethervm/nethervm/core/types"
)

// maxMemorySize bounds addressable memory so that the quadratic cost
// term cannot overflow a uint64.
const maxMemorySize = 0x1FFFFFFFE0

// toWordSize rounds size up to 32-byte words.
func toWordSize(size uint64) uint64 {
	if size > ^uint64(0)-31 {
		return ^uint64(0)/32 + 1
	}
	return (size + 31) / 32
}

func safeAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}

func safeMul(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	prod := a * b
	return prod, prod/a != b
}

// memoryGasCost charges for expanding memory to newMemSize bytes:
// 3*words + words*words/512, billed incrementally against the highest
// size already paid for.
func memoryGasCost(mem *Memory, newMemSize uint64) (uint64, error) {
	if newMemSize == 0 {
		return 0, nil
	}
	if newMemSize > maxMemorySize {
		return 0, ErrGasUintOverflow
	}
	newMemSizeWords := toWordSize(newMemSize)
	newMemSize = newMemSizeWords * 32

	if newMemSize > uint64(mem.Len()) {
		linCoef := newMemSizeWords * GasMemory
		quadCoef := newMemSizeWords * newMemSizeWords / MemoryGasQuadDivisor
		newTotalFee := linCoef + quadCoef
		fee := newTotalFee - mem.lastGasCost
		mem.lastGasCost = newTotalFee
		return fee, nil
	}
	return 0, nil
}

// makeGasExp returns the EXP dynamic gas function for the given
// per-exponent-byte price (10 at Frontier, 50 after EIP-160).
func makeGasExp(byteGas uint64) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		expByteLen := uint64((stack.Back(1).BitLen() + 7) / 8)
		gas, overflow := safeMul(expByteLen, byteGas)
		if overflow {
			return 0, ErrGasUintOverflow
		}
		return gas, nil
	}
}

// gasCopy charges per word copied for CALLDATACOPY, CODECOPY and
// RETURNDATACOPY (length is the third stack item).
func gasCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	words, overflow := stack.Back(2).Uint64WithOverflow()
	if overflow {
		return 0, ErrGasUintOverflow
	}
	gas, overflow := safeMul(toWordSize(words), GasCopy)
	if overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

// gasExtCodeCopy is gasCopy for EXTCODECOPY, where length sits one
// item deeper because of the address operand.
func gasExtCodeCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	words, overflow := stack.Back(3).Uint64WithOverflow()
	if overflow {
		return 0, ErrGasUintOverflow
	}
	gas, overflow := safeMul(toWordSize(words), GasCopy)
	if overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

func gasKeccak256(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	words, overflow := stack.Back(1).Uint64WithOverflow()
	if overflow {
		return 0, ErrGasUintOverflow
	}
	gas, overflow := safeMul(toWordSize(words), GasKeccak256Word)
	if overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

// gasMcopy charges per word for the MCOPY length (third stack item).
func gasMcopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return gasCopy(evm, contract, stack, mem, memorySize)
}

func makeGasLog(n uint64) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		requestedSize, overflow := stack.Back(1).Uint64WithOverflow()
		if overflow {
			return 0, ErrGasUintOverflow
		}
		gas := n * GasLogTopic
		byteCost, overflow := safeMul(requestedSize, GasLogData)
		if overflow {
			return 0, ErrGasUintOverflow
		}
		gas, overflow = safeAdd(gas, byteCost)
		if overflow {
			return 0, ErrGasUintOverflow
		}
		return gas, nil
	}
}

// gasSStoreLegacy is the original SSTORE schedule: 20000 to set a zero
// slot, 5000 otherwise, with a 15000 refund for clearing.
func gasSStoreLegacy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var (
		y, x    = stack.Back(1), stack.Back(0)
		current = evm.StateDB.GetState(contract.Address, types.Hash(x.Bytes32()))
	)
	value := types.Hash(y.Bytes32())
	switch {
	case current.IsZero() && !value.IsZero():
		return GasSstoreSet, nil
	case !current.IsZero() && value.IsZero():
		evm.StateDB.AddRefund(RefundSstoreClear)
		return GasSstoreClear, nil
	default:
		return GasSstoreReset, nil
	}
}

// gasSStoreEIP2200 implements net gas metering (Istanbul). The gas
// sentry rejects stores when less than the call stipend remains, so a
// value-bearing CALL cannot sneak a write in on stipend gas.
func gasSStoreEIP2200(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	if contract.Gas <= SstoreSentryGasEIP2200 {
		return 0, ErrOutOfGas
	}
	var (
		y, x    = stack.Back(1), stack.Back(0)
		slot    = types.Hash(x.Bytes32())
		current = evm.StateDB.GetState(contract.Address, slot)
	)
	value := types.Hash(y.Bytes32())

	if current == value {
		return GasSloadEIP2200, nil
	}
	original := evm.StateDB.GetCommittedState(contract.Address, slot)
	if original == current {
		if original.IsZero() {
			return SstoreSetGasEIP2200, nil
		}
		if value.IsZero() {
			evm.StateDB.AddRefund(SstoreClearsScheduleRefundEIP2200)
		}
		return SstoreResetGasEIP2200, nil
	}
	if !original.IsZero() {
		if current.IsZero() {
			evm.StateDB.SubRefund(SstoreClearsScheduleRefundEIP2200)
		} else if value.IsZero() {
			evm.StateDB.AddRefund(SstoreClearsScheduleRefundEIP2200)
		}
	}
	if original == value {
		if original.IsZero() {
			evm.StateDB.AddRefund(SstoreSetGasEIP2200 - GasSloadEIP2200)
		} else {
			evm.StateDB.AddRefund(SstoreResetGasEIP2200 - GasSloadEIP2200)
		}
	}
	return GasSloadEIP2200, nil
}

// makeGasSStoreFunc builds the Berlin-and-later SSTORE gas function:
// EIP-2200 net metering with EIP-2929 cold slot surcharges. The
// clearing refund parameter selects between the Berlin (EIP-2200) and
// London (EIP-3529) refund amounts.
func makeGasSStoreFunc(clearingRefund uint64) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		if contract.Gas <= SstoreSentryGasEIP2200 {
			return 0, ErrOutOfGas
		}
		var (
			y, x    = stack.Back(1), stack.Back(0)
			slot    = types.Hash(x.Bytes32())
			current = evm.StateDB.GetState(contract.Address, slot)
			cost    = uint64(0)
		)
		if _, slotWarm := evm.StateDB.SlotInAccessList(contract.Address, slot); !slotWarm {
			cost = ColdSloadCostEIP2929
			evm.StateDB.AddSlotToAccessList(contract.Address, slot)
		}
		value := types.Hash(y.Bytes32())

		if current == value {
			return cost + WarmStorageReadCostEIP2929, nil
		}
		original := evm.StateDB.GetCommittedState(contract.Address, slot)
		if original == current {
			if original.IsZero() {
				return cost + SstoreSetGasEIP2200, nil
			}
			if value.IsZero() {
				evm.StateDB.AddRefund(clearingRefund)
			}
			return cost + (SstoreResetGasEIP2200 - ColdSloadCostEIP2929), nil
		}
		if !original.IsZero() {
			if current.IsZero() {
				evm.StateDB.SubRefund(clearingRefund)
			} else if value.IsZero() {
				evm.StateDB.AddRefund(clearingRefund)
			}
		}
		if original == value {
			if original.IsZero() {
				evm.StateDB.AddRefund(SstoreSetGasEIP2200 - WarmStorageReadCostEIP2929)
			} else {
				evm.StateDB.AddRefund((SstoreResetGasEIP2200 - ColdSloadCostEIP2929) - WarmStorageReadCostEIP2929)
			}
		}
		return cost + WarmStorageReadCostEIP2929, nil
	}
}

// gasSLoadEIP2929 charges the cold or warm slot cost, warming the slot
// on first touch.
func gasSLoadEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	loc := stack.Peek()
	slot := types.Hash(loc.Bytes32())
	if _, slotWarm := evm.StateDB.SlotInAccessList(contract.Address, slot); !slotWarm {
		evm.StateDB.AddSlotToAccessList(contract.Address, slot)
		return ColdSloadCostEIP2929, nil
	}
	return WarmStorageReadCostEIP2929, nil
}

// gasEIP2929AccountCheck is the dynamic cost of BALANCE, EXTCODESIZE
// and EXTCODEHASH under EIP-2929: the table charges the warm cost as
// constant gas and this adds the cold surcharge on first touch.
func gasEIP2929AccountCheck(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	address := types.Address(stack.Peek().Bytes20())
	if !evm.StateDB.AddressInAccessList(address) {
		evm.StateDB.AddAddressToAccessList(address)
		return ColdAccountAccessCostEIP2929 - WarmStorageReadCostEIP2929, nil
	}
	return 0, nil
}

func gasExtCodeCopyEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := gasExtCodeCopy(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	address := types.Address(stack.Peek().Bytes20())
	if !evm.StateDB.AddressInAccessList(address) {
		evm.StateDB.AddAddressToAccessList(address)
		return gas + ColdAccountAccessCostEIP2929 - WarmStorageReadCostEIP2929, nil
	}
	return gas, nil
}

// callGas resolves the gas to forward to a sub-call. After EIP-150 the
// caller retains 1/64th of its remaining gas; the requested amount is
// honored only up to the forwardable maximum. Before EIP-150 the
// requested amount is taken literally and must fit in a uint64.
func callGas(isEip150 bool, availableGas, base uint64, requested *uint256.Int) (uint64, error) {
	if isEip150 {
		if availableGas < base {
			return 0, ErrOutOfGas
		}
		availableGas -= base
		gas := availableGas - availableGas/CallGasFraction
		if !requested.IsUint64() || gas < requested.Uint64() {
			return gas, nil
		}
	}
	if !requested.IsUint64() {
		return 0, ErrGasUintOverflow
	}
	return requested.Uint64(), nil
}

// gasCall covers value transfer and new-account surcharges, then
// resolves the forwarded gas into evm.callGasTemp. The forwarded gas is
// included in the returned cost and handed back to the callee by opCall.
func gasCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var (
		gas            uint64
		transfersValue = !stack.Back(2).IsZero()
		address        = types.Address(stack.Back(1).Bytes20())
	)
	if transfersValue {
		// EIP-158 narrowed the new-account charge to calls that
		// actually bring an empty account to life.
		if evm.rules.IsSpuriousDragon {
			if evm.StateDB.Empty(address) {
				gas += GasCallNewAccount
			}
		} else if !evm.StateDB.Exist(address) {
			gas += GasCallNewAccount
		}
		gas += GasCallValueTransfer
	}
	forwarded, err := callGas(evm.rules.IsTangerineWhistle, contract.Gas, gas, stack.Back(0))
	if err != nil {
		return 0, err
	}
	evm.callGasTemp = forwarded
	total, overflow := safeAdd(gas, forwarded)
	if overflow {
		return 0, ErrGasUintOverflow
	}
	return total, nil
}

func gasCallCode(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var gas uint64
	if !stack.Back(2).IsZero() {
		gas += GasCallValueTransfer
	}
	forwarded, err := callGas(evm.rules.IsTangerineWhistle, contract.Gas, gas, stack.Back(0))
	if err != nil {
		return 0, err
	}
	evm.callGasTemp = forwarded
	total, overflow := safeAdd(gas, forwarded)
	if overflow {
		return 0, ErrGasUintOverflow
	}
	return total, nil
}

func gasDelegateCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	forwarded, err := callGas(evm.rules.IsTangerineWhistle, contract.Gas, 0, stack.Back(0))
	if err != nil {
		return 0, err
	}
	evm.callGasTemp = forwarded
	return forwarded, nil
}

func gasStaticCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	forwarded, err := callGas(true, contract.Gas, 0, stack.Back(0))
	if err != nil {
		return 0, err
	}
	evm.callGasTemp = forwarded
	return forwarded, nil
}

// makeCallVariantGasEIP2929 wraps a call gas function with the EIP-2929
// cold account surcharge. The surcharge is deducted before the wrapped
// calculator runs so the 63/64 split sees the reduced remainder, then
// restored and folded into the returned total.
func makeCallVariantGasEIP2929(oldCalculator dynamicGasFunc) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		addr := types.Address(stack.Back(1).Bytes20())
		var coldCost uint64
		if !evm.StateDB.AddressInAccessList(addr) {
			evm.StateDB.AddAddressToAccessList(addr)
			coldCost = ColdAccountAccessCostEIP2929 - WarmStorageReadCostEIP2929
		}
		if coldCost > 0 {
			if !contract.UseGas(coldCost) {
				return 0, ErrOutOfGas
			}
		}
		gas, err := oldCalculator(evm, contract, stack, mem, memorySize)
		contract.RefundGas(coldCost)
		if err != nil {
			return 0, err
		}
		total, overflow := safeAdd(gas, coldCost)
		if overflow {
			return 0, ErrGasUintOverflow
		}
		return total, nil
	}
}

// gasCreateEIP3860 charges the per-word initcode cost (Shanghai).
func gasCreateEIP3860(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size, overflow := stack.Back(2).Uint64WithOverflow()
	if overflow || size > MaxInitCodeSize {
		return 0, ErrGasUintOverflow
	}
	return InitCodeWordGas * toWordSize(size), nil
}

// gasCreate2 charges the hashing cost of the init code.
func gasCreate2(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size, overflow := stack.Back(2).Uint64WithOverflow()
	if overflow {
		return 0, ErrGasUintOverflow
	}
	gas, overflow := safeMul(toWordSize(size), GasKeccak256Word)
	if overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

func gasCreate2EIP3860(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size, overflow := stack.Back(2).Uint64WithOverflow()
	if overflow || size > MaxInitCodeSize {
		return 0, ErrGasUintOverflow
	}
	return (InitCodeWordGas + GasKeccak256Word) * toWordSize(size), nil
}

// gasSelfdestruct covers the EIP-150/EIP-158 schedule and the
// pre-London refund.
func gasSelfdestruct(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var gas uint64
	if evm.rules.IsTangerineWhistle {
		gas = GasSelfdestructEIP150
		address := types.Address(stack.Back(0).Bytes20())
		if evm.rules.IsSpuriousDragon {
			if evm.StateDB.Empty(address) && !evm.StateDB.GetBalance(contract.Address).IsZero() {
				gas += GasSelfdestructNewAccount
			}
		} else if !evm.StateDB.Exist(address) {
			gas += GasSelfdestructNewAccount
		}
	}
	if !evm.StateDB.HasSelfDestructed(contract.Address) {
		evm.StateDB.AddRefund(RefundSelfdestruct)
	}
	return gas, nil
}

func gasSelfdestructEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var gas uint64
	address := types.Address(stack.Back(0).Bytes20())
	if !evm.StateDB.AddressInAccessList(address) {
		evm.StateDB.AddAddressToAccessList(address)
		gas = ColdAccountAccessCostEIP2929
	}
	gas += GasSelfdestructEIP150
	if evm.StateDB.Empty(address) && !evm.StateDB.GetBalance(contract.Address).IsZero() {
		gas += GasSelfdestructNewAccount
	}
	// EIP-3529 removed the selfdestruct refund.
	if !evm.rules.IsLondon && !evm.StateDB.HasSelfDestructed(contract.Address) {
		evm.StateDB.AddRefund(RefundSelfdestruct)
	}
	return gas, nil
}
