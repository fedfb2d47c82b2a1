package vm

import "errors"

var (
	ErrOutOfGas                 = errors.New("out of gas")
	ErrGasUintOverflow          = errors.New("gas uint64 overflow")
	ErrStackOverflow            = errors.New("stack overflow")
	ErrStackUnderflow           = errors.New("stack underflow")
	ErrInvalidJump              = errors.New("invalid jump destination")
	ErrWriteProtection          = errors.New("write protection")
	ErrExecutionReverted        = errors.New("execution reverted")
	ErrMaxCallDepthExceeded     = errors.New("max call depth exceeded")
	ErrInvalidOpCode            = errors.New("invalid opcode")
	ErrReturnDataOutOfBounds    = errors.New("return data out of bounds")
	ErrInsufficientBalance      = errors.New("insufficient balance for transfer")
	ErrContractAddressCollision = errors.New("contract address collision")
	ErrMaxCodeSizeExceeded      = errors.New("max code size exceeded")
	ErrMaxInitCodeSizeExceeded  = errors.New("max initcode size exceeded")
	ErrInvalidCode              = errors.New("invalid code: must not begin with 0xef")
	ErrNonceUintOverflow        = errors.New("nonce uint64 overflow")
	ErrCodeStoreOutOfGas        = errors.New("contract creation code storage out of gas")
)

// IsRevert reports whether err is a REVERT halt, which preserves unused
// gas and the returned output. Every other execution error forfeits both.
func IsRevert(err error) bool {
	return errors.Is(err, ErrExecutionReverted)
}
