package vm

import (
	"github.com/holiman/uint256"

	"github.com/nethervm/nethervm/core/types"
)

// bitvec marks which byte offsets of a code blob are opcode positions
// rather than PUSH immediate data. One bit per code byte.
type bitvec []byte

func (bits bitvec) set(pos uint64) {
	bits[pos/8] |= 1 << (pos % 8)
}

func (bits bitvec) isSet(pos uint64) bool {
	return bits[pos/8]&(1<<(pos%8)) != 0
}

// codeBitmap scans code once and returns the opcode-position bitmap.
// Immediate bytes of PUSH instructions are left unset.
func codeBitmap(code []byte) bitvec {
	bits := make(bitvec, len(code)/8+1)
	for pc := uint64(0); pc < uint64(len(code)); {
		op := OpCode(code[pc])
		bits.set(pc)
		pc++
		if op.IsPush() {
			pc += uint64(op - PUSH1 + 1)
		}
	}
	return bits
}

// Contract holds the per-frame execution context: the code being run,
// its gas allowance, and the caller/value pair observed by opcodes.
type Contract struct {
	CallerAddress types.Address
	Address       types.Address
	Code          []byte
	CodeHash      types.Hash
	Input         []byte
	Gas           uint64
	Value         *uint256.Int

	analysis bitvec // lazily built JUMPDEST bitmap
}

// NewContract creates a contract frame for execution.
func NewContract(caller, addr types.Address, value *uint256.Int, gas uint64) *Contract {
	if value == nil {
		value = new(uint256.Int)
	}
	return &Contract{
		CallerAddress: caller,
		Address:       addr,
		Value:         value,
		Gas:           gas,
	}
}

// GetOp returns the opcode at position n, or STOP past the end.
func (c *Contract) GetOp(n uint64) OpCode {
	if n < uint64(len(c.Code)) {
		return OpCode(c.Code[n])
	}
	return STOP
}

// UseGas deducts gas from the frame allowance. It returns false,
// leaving the allowance untouched, if not enough remains.
func (c *Contract) UseGas(gas uint64) bool {
	if c.Gas < gas {
		return false
	}
	c.Gas -= gas
	return true
}

// RefundGas returns unspent gas to the frame, used when a sub-call
// hands back its remainder.
func (c *Contract) RefundGas(gas uint64) {
	c.Gas += gas
}

// SetCallCode attaches code to the frame for a CALL-type execution.
func (c *Contract) SetCallCode(addr *types.Address, hash types.Hash, code []byte) {
	c.Code = code
	c.CodeHash = hash
	c.analysis = nil
	if addr != nil {
		c.Address = *addr
	}
}

// validJumpdest reports whether dest is a JUMPDEST opcode position,
// rejecting destinations inside PUSH immediates.
func (c *Contract) validJumpdest(dest *uint256.Int) bool {
	udest, overflow := dest.Uint64WithOverflow()
	if overflow || udest >= uint64(len(c.Code)) {
		return false
	}
	if OpCode(c.Code[udest]) != JUMPDEST {
		return false
	}
	if c.analysis == nil {
		c.analysis = codeBitmap(c.Code)
	}
	return c.analysis.isSet(udest)
}
