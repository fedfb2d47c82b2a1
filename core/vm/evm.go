package vm

import (
	"github.com/holiman/uint256"

	"github.com/nethervm/nethervm/core/types"
	"github.com/nethervm/nethervm/crypto"
)

// createAddress computes the CREATE address:
// keccak256(rlp([sender, nonce]))[12:].
func createAddress(caller types.Address, nonce uint64) types.Address {
	addrEnc := encodeRLPBytes(caller[:])
	nonceEnc := encodeRLPUint(nonce)
	payload := append(addrEnc, nonceEnc...)
	hash := crypto.Keccak256(wrapRLPList(payload))
	return types.BytesToAddress(hash[12:])
}

// create2Address computes the CREATE2 address:
// keccak256(0xff ++ sender ++ salt ++ keccak256(initCode))[12:].
func create2Address(caller types.Address, salt *uint256.Int, initCodeHash []byte) types.Address {
	saltBytes := salt.Bytes32()
	data := make([]byte, 0, 85)
	data = append(data, 0xff)
	data = append(data, caller[:]...)
	data = append(data, saltBytes[:]...)
	data = append(data, initCodeHash...)
	hash := crypto.Keccak256(data)
	return types.BytesToAddress(hash[12:])
}

func encodeRLPBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	if len(b) < 56 {
		return append([]byte{byte(0x80 + len(b))}, b...)
	}
	lenBytes := uintToMinBytes(uint64(len(b)))
	header := append([]byte{byte(0xb7 + len(lenBytes))}, lenBytes...)
	return append(header, b...)
}

func encodeRLPUint(v uint64) []byte {
	if v == 0 {
		return []byte{0x80}
	}
	if v < 128 {
		return []byte{byte(v)}
	}
	b := uintToMinBytes(v)
	return append([]byte{byte(0x80 + len(b))}, b...)
}

func wrapRLPList(payload []byte) []byte {
	if len(payload) < 56 {
		return append([]byte{byte(0xc0 + len(payload))}, payload...)
	}
	lenBytes := uintToMinBytes(uint64(len(payload)))
	header := append([]byte{byte(0xf7 + len(lenBytes))}, lenBytes...)
	return append(header, payload...)
}

// uintToMinBytes encodes v big-endian with no leading zeros.
func uintToMinBytes(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var buf [8]byte
	n := 0
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
		if buf[i] != 0 || n > 0 {
			n = 8 - i
		}
	}
	return buf[8-n:]
}

func (evm *EVM) transfer(from, to types.Address, value *uint256.Int) {
	if value.IsZero() {
		return
	}
	evm.StateDB.SubBalance(from, value)
	evm.StateDB.AddBalance(to, value)
}

func (evm *EVM) canTransfer(from types.Address, value *uint256.Int) bool {
	return value.IsZero() || !evm.StateDB.GetBalance(from).Lt(value)
}

// runPrecompile executes a precompiled contract against its gas budget.
func runPrecompile(p PrecompiledContract, input []byte, gas uint64) ([]byte, uint64, error) {
	gasCost := p.RequiredGas(input)
	if gas < gasCost {
		return nil, 0, ErrOutOfGas
	}
	gas -= gasCost
	output, err := p.Run(input)
	if err != nil {
		return nil, 0, err
	}
	return output, gas, nil
}

// Call executes a message call to addr. On revert the remaining gas and
// the revert output are returned; on any other error the gas is
// forfeited. State changes made by the callee are journal-reverted in
// both cases.
func (evm *EVM) Call(caller, addr types.Address, input []byte, gas uint64, value *uint256.Int) ([]byte, uint64, error) {
	if evm.depth > MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}
	if !evm.canTransfer(caller, value) {
		return nil, gas, ErrInsufficientBalance
	}
	startGas := gas
	if inspector := evm.Config.Inspector; inspector != nil {
		if evm.depth == 0 {
			inspector.CaptureStart(evm, caller, addr, false, input, gas, value)
		} else {
			inspector.CaptureEnter(CALL, caller, addr, input, gas, value)
		}
	}

	snapshot := evm.StateDB.Snapshot()
	p, isPrecompile := evm.precompile(addr)

	if !evm.StateDB.Exist(addr) {
		// EIP-158: a plain value-less call must not materialize an
		// empty account.
		if !isPrecompile && evm.rules.IsSpuriousDragon && value.IsZero() {
			// calling a non-existent account, no-op
		} else {
			evm.StateDB.CreateAccount(addr)
		}
	}
	evm.transfer(caller, addr, value)

	var (
		ret []byte
		err error
	)
	if isPrecompile {
		ret, gas, err = runPrecompile(p, input, gas)
	} else if code := evm.StateDB.GetCode(addr); len(code) > 0 {
		contract := NewContract(caller, addr, value, gas)
		contract.SetCallCode(&addr, evm.StateDB.GetCodeHash(addr), code)
		ret, err = evm.Run(contract, input, false)
		gas = contract.Gas
	}

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !IsRevert(err) {
			gas = 0
		}
	}
	if inspector := evm.Config.Inspector; inspector != nil {
		if evm.depth == 0 {
			inspector.CaptureEnd(ret, startGas-gas, err)
		} else {
			inspector.CaptureExit(ret, gas, err)
		}
	}
	return ret, gas, err
}

// CallCode runs addr's code against the caller's own storage and
// balance. The value is checked but stays with the caller.
func (evm *EVM) CallCode(caller, addr types.Address, input []byte, gas uint64, value *uint256.Int) ([]byte, uint64, error) {
	if evm.depth > MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}
	if !evm.canTransfer(caller, value) {
		return nil, gas, ErrInsufficientBalance
	}
	if inspector := evm.Config.Inspector; inspector != nil {
		inspector.CaptureEnter(CALLCODE, caller, addr, input, gas, value)
	}

	snapshot := evm.StateDB.Snapshot()

	var (
		ret []byte
		err error
	)
	if p, isPrecompile := evm.precompile(addr); isPrecompile {
		ret, gas, err = runPrecompile(p, input, gas)
	} else if code := evm.StateDB.GetCode(addr); len(code) > 0 {
		contract := NewContract(caller, caller, value, gas)
		contract.SetCallCode(&addr, evm.StateDB.GetCodeHash(addr), code)
		ret, err = evm.Run(contract, input, false)
		gas = contract.Gas
	}

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !IsRevert(err) {
			gas = 0
		}
	}
	if inspector := evm.Config.Inspector; inspector != nil {
		inspector.CaptureExit(ret, gas, err)
	}
	return ret, gas, err
}

// DelegateCall runs addr's code in the parent frame's full context:
// the parent's storage, caller and value all carry through.
func (evm *EVM) DelegateCall(parent *Contract, addr types.Address, input []byte, gas uint64) ([]byte, uint64, error) {
	if evm.depth > MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}
	if inspector := evm.Config.Inspector; inspector != nil {
		inspector.CaptureEnter(DELEGATECALL, parent.Address, addr, input, gas, parent.Value)
	}

	snapshot := evm.StateDB.Snapshot()

	var (
		ret []byte
		err error
	)
	if p, isPrecompile := evm.precompile(addr); isPrecompile {
		ret, gas, err = runPrecompile(p, input, gas)
	} else if code := evm.StateDB.GetCode(addr); len(code) > 0 {
		contract := NewContract(parent.CallerAddress, parent.Address, parent.Value, gas)
		contract.Code = code
		contract.CodeHash = evm.StateDB.GetCodeHash(addr)
		ret, err = evm.Run(contract, input, false)
		gas = contract.Gas
	}

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !IsRevert(err) {
			gas = 0
		}
	}
	if inspector := evm.Config.Inspector; inspector != nil {
		inspector.CaptureExit(ret, gas, err)
	}
	return ret, gas, err
}

// StaticCall executes a read-only call. Any state-mutating opcode in
// the callee (or deeper) fails with ErrWriteProtection.
func (evm *EVM) StaticCall(caller, addr types.Address, input []byte, gas uint64) ([]byte, uint64, error) {
	if evm.depth > MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}
	if inspector := evm.Config.Inspector; inspector != nil {
		inspector.CaptureEnter(STATICCALL, caller, addr, input, gas, new(uint256.Int))
	}

	snapshot := evm.StateDB.Snapshot()

	var (
		ret []byte
		err error
	)
	if p, isPrecompile := evm.precompile(addr); isPrecompile {
		ret, gas, err = runPrecompile(p, input, gas)
	} else if code := evm.StateDB.GetCode(addr); len(code) > 0 {
		contract := NewContract(caller, addr, new(uint256.Int), gas)
		contract.SetCallCode(&addr, evm.StateDB.GetCodeHash(addr), code)
		ret, err = evm.Run(contract, input, true)
		gas = contract.Gas
	}

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !IsRevert(err) {
			gas = 0
		}
	}
	if inspector := evm.Config.Inspector; inspector != nil {
		inspector.CaptureExit(ret, gas, err)
	}
	return ret, gas, err
}

// Create deploys a contract at keccak(rlp(caller, nonce))[12:].
func (evm *EVM) Create(caller types.Address, code []byte, gas uint64, value *uint256.Int) ([]byte, types.Address, uint64, error) {
	contractAddr := createAddress(caller, evm.StateDB.GetNonce(caller))
	return evm.create(caller, code, gas, value, contractAddr, CREATE)
}

// Create2 deploys a contract at the salt-derived address, so the
// resulting address depends only on caller, salt and init code.
func (evm *EVM) Create2(caller types.Address, code []byte, gas uint64, endowment, salt *uint256.Int) ([]byte, types.Address, uint64, error) {
	contractAddr := create2Address(caller, salt, crypto.Keccak256(code))
	return evm.create(caller, code, gas, endowment, contractAddr, CREATE2)
}

func (evm *EVM) create(caller types.Address, code []byte, gas uint64, value *uint256.Int, address types.Address, typ OpCode) ([]byte, types.Address, uint64, error) {
	if evm.depth > MaxCallDepth {
		return nil, types.Address{}, gas, ErrMaxCallDepthExceeded
	}
	if evm.rules.IsShanghai && uint64(len(code)) > MaxInitCodeSize {
		return nil, types.Address{}, gas, ErrMaxInitCodeSizeExceeded
	}
	if !evm.canTransfer(caller, value) {
		return nil, types.Address{}, gas, ErrInsufficientBalance
	}

	nonce := evm.StateDB.GetNonce(caller)
	if nonce+1 < nonce {
		return nil, types.Address{}, gas, ErrNonceUintOverflow
	}
	evm.StateDB.SetNonce(caller, nonce+1)

	// The created address is warm even if the deployment collides.
	if evm.rules.IsBerlin {
		evm.StateDB.AddAddressToAccessList(address)
	}

	// Collision: anything already live at the target address aborts the
	// deployment and forfeits all gas.
	if evm.StateDB.GetNonce(address) != 0 ||
		(evm.StateDB.GetCodeSize(address) != 0) {
		return nil, types.Address{}, 0, ErrContractAddressCollision
	}

	if inspector := evm.Config.Inspector; inspector != nil {
		if evm.depth == 0 {
			inspector.CaptureStart(evm, caller, address, true, code, gas, value)
		} else {
			inspector.CaptureEnter(typ, caller, address, code, gas, value)
		}
	}

	snapshot := evm.StateDB.Snapshot()
	evm.StateDB.CreateAccount(address)
	evm.StateDB.CreateContract(address)
	if evm.rules.IsSpuriousDragon {
		evm.StateDB.SetNonce(address, 1)
	}
	evm.transfer(caller, address, value)

	contract := NewContract(caller, address, value, gas)
	contract.Code = code
	contract.CodeHash = crypto.Keccak256Hash(code)

	ret, err := evm.Run(contract, nil, false)

	if err == nil {
		err = evm.finishCreate(contract, address, ret)
	}
	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !IsRevert(err) {
			contract.UseGas(contract.Gas)
		}
	}
	if inspector := evm.Config.Inspector; inspector != nil {
		if evm.depth == 0 {
			inspector.CaptureEnd(ret, gas-contract.Gas, err)
		} else {
			inspector.CaptureExit(ret, contract.Gas, err)
		}
	}
	return ret, address, contract.Gas, err
}

// finishCreate validates the returned runtime code and charges the
// code deposit. Before Homestead a failed deposit leaves the account
// with empty code instead of failing the create.
func (evm *EVM) finishCreate(contract *Contract, address types.Address, ret []byte) error {
	if evm.rules.IsLondon && len(ret) > 0 && ret[0] == 0xEF {
		return ErrInvalidCode
	}
	if evm.rules.IsSpuriousDragon && uint64(len(ret)) > MaxCodeSize {
		return ErrMaxCodeSizeExceeded
	}
	depositGas := uint64(len(ret)) * GasCreateDataPerByte
	if !contract.UseGas(depositGas) {
		if evm.rules.IsHomestead {
			return ErrCodeStoreOutOfGas
		}
		return nil
	}
	evm.StateDB.SetCode(address, ret)
	return nil
}
