package vm

// Gas cost constants. Per-fork differences (EIP-150, EIP-2929, EIP-2200,
// EIP-3529) are selected by the jump table constructors and gas table
// functions, not here.
const (
	GasQuickStep   uint64 = 2  // ADDRESS, ORIGIN, PC, etc.
	GasFastestStep uint64 = 3  // ADD, SUB, PUSH, DUP, etc.
	GasFastStep    uint64 = 5  // MUL, DIV, MOD, etc.
	GasMidStep     uint64 = 8  // ADDMOD, MULMOD, JUMP
	GasSlowStep    uint64 = 10 // EXP base, JUMPI
	GasExtStep     uint64 = 20 // BLOCKHASH

	GasJumpDest uint64 = 1

	GasKeccak256     uint64 = 30
	GasKeccak256Word uint64 = 6

	GasMemory            uint64 = 3 // per word of memory expansion
	MemoryGasQuadDivisor uint64 = 512
	GasCopy              uint64 = 3 // per word copied

	GasLog      uint64 = 375
	GasLogTopic uint64 = 375
	GasLogData  uint64 = 8 // per byte of log data

	// SLOAD repricings before EIP-2929.
	GasSloadFrontier uint64 = 50
	GasSloadEIP150   uint64 = 200
	GasSloadEIP2200  uint64 = 800

	// SSTORE, legacy schedule.
	GasSstoreSet      uint64 = 20000
	GasSstoreReset    uint64 = 5000
	GasSstoreClear    uint64 = 5000
	RefundSstoreClear uint64 = 15000

	// SSTORE, EIP-2200 net metering.
	SstoreSentryGasEIP2200            uint64 = 2300
	SstoreSetGasEIP2200               uint64 = 20000
	SstoreResetGasEIP2200             uint64 = 5000
	SstoreClearsScheduleRefundEIP2200 uint64 = 15000
	SstoreClearsScheduleRefundEIP3529 uint64 = SstoreResetGasEIP2200 - ColdSloadCostEIP2929 + AccessListStorageKeyGas

	// EIP-2929 access costs.
	ColdAccountAccessCostEIP2929 uint64 = 2600
	ColdSloadCostEIP2929         uint64 = 2100
	WarmStorageReadCostEIP2929   uint64 = 100
	AccessListStorageKeyGas      uint64 = 1900

	// Account access before EIP-2929.
	GasBalanceFrontier     uint64 = 20
	GasBalanceEIP150       uint64 = 400
	GasBalanceEIP1884      uint64 = 700
	GasExtCodeSizeFrontier uint64 = 20
	GasExtCodeSizeEIP150   uint64 = 700
	GasExtCodeHashEIP1052  uint64 = 400
	GasExtCodeHashEIP1884  uint64 = 700
	GasExtCodeCopyFrontier uint64 = 20
	GasExtCodeCopyEIP150   uint64 = 700
	GasSelfBalance         uint64 = 5

	// CALL family.
	GasCallFrontier      uint64 = 40
	GasCallEIP150        uint64 = 700
	GasCallValueTransfer uint64 = 9000
	GasCallNewAccount    uint64 = 25000
	GasCallStipend       uint64 = 2300
	CallGasFraction      uint64 = 64 // EIP-150: retain 1/64th of remaining gas

	GasCreate            uint64 = 32000
	GasCreateDataPerByte uint64 = 200 // code deposit
	GasExpByteFrontier   uint64 = 10
	GasExpByteEIP160     uint64 = 50

	GasSelfdestruct           uint64 = 0
	GasSelfdestructEIP150     uint64 = 5000
	GasSelfdestructNewAccount uint64 = 25000
	RefundSelfdestruct        uint64 = 24000

	GasTload       uint64 = 100 // EIP-1153
	GasTstore      uint64 = 100 // EIP-1153
	GasBlobHash    uint64 = 3   // EIP-4844
	GasBlobBaseFee uint64 = 2   // EIP-7516

	InitCodeWordGas uint64 = 2 // EIP-3860, per word of initcode

	// Size limits.
	MaxCodeSize     uint64 = 24576           // EIP-170
	MaxInitCodeSize uint64 = 2 * MaxCodeSize // EIP-3860

	// Refund caps: refund is limited to gasUsed / quotient.
	RefundQuotient        uint64 = 2
	RefundQuotientEIP3529 uint64 = 5

	StackLimit   int = 1024
	MaxCallDepth int = 1024
)
