package vm

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	goethkzg "github.com/crate-crypto/go-eth-kzg"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/blake2b"
	"github.com/ethereum/go-ethereum/crypto/bn256"
	"golang.org/x/crypto/ripemd160"

	"github.com/nethervm/nethervm/core/types"
	"github.com/nethervm/nethervm/crypto"
)

// PrecompiledContract is a contract implemented in native code rather
// than bytecode. Gas is charged up front from RequiredGas; a Run error
// consumes the entire gas budget of the call.
type PrecompiledContract interface {
	RequiredGas(input []byte) uint64
	Run(input []byte) ([]byte, error)
}

// PrecompiledContractsHomestead is the genesis precompile set.
var PrecompiledContractsHomestead = map[types.Address]PrecompiledContract{
	types.BytesToAddress([]byte{1}): &ecrecover{},
	types.BytesToAddress([]byte{2}): &sha256hash{},
	types.BytesToAddress([]byte{3}): &ripemd160hash{},
	types.BytesToAddress([]byte{4}): &dataCopy{},
}

// PrecompiledContractsByzantium adds modexp and the bn256 curve ops.
var PrecompiledContractsByzantium = map[types.Address]PrecompiledContract{
	types.BytesToAddress([]byte{1}): &ecrecover{},
	types.BytesToAddress([]byte{2}): &sha256hash{},
	types.BytesToAddress([]byte{3}): &ripemd160hash{},
	types.BytesToAddress([]byte{4}): &dataCopy{},
	types.BytesToAddress([]byte{5}): &bigModExp{},
	types.BytesToAddress([]byte{6}): &bn256Add{gas: 500},
	types.BytesToAddress([]byte{7}): &bn256ScalarMul{gas: 40000},
	types.BytesToAddress([]byte{8}): &bn256Pairing{baseGas: 100000, pairGas: 80000},
}

// PrecompiledContractsIstanbul reprices bn256 (EIP-1108) and adds
// blake2F (EIP-152).
var PrecompiledContractsIstanbul = map[types.Address]PrecompiledContract{
	types.BytesToAddress([]byte{1}): &ecrecover{},
	types.BytesToAddress([]byte{2}): &sha256hash{},
	types.BytesToAddress([]byte{3}): &ripemd160hash{},
	types.BytesToAddress([]byte{4}): &dataCopy{},
	types.BytesToAddress([]byte{5}): &bigModExp{},
	types.BytesToAddress([]byte{6}): &bn256Add{gas: 150},
	types.BytesToAddress([]byte{7}): &bn256ScalarMul{gas: 6000},
	types.BytesToAddress([]byte{8}): &bn256Pairing{baseGas: 45000, pairGas: 34000},
	types.BytesToAddress([]byte{9}): &blake2F{},
}

// PrecompiledContractsBerlin switches modexp to the EIP-2565 pricing.
var PrecompiledContractsBerlin = map[types.Address]PrecompiledContract{
	types.BytesToAddress([]byte{1}): &ecrecover{},
	types.BytesToAddress([]byte{2}): &sha256hash{},
	types.BytesToAddress([]byte{3}): &ripemd160hash{},
	types.BytesToAddress([]byte{4}): &dataCopy{},
	types.BytesToAddress([]byte{5}): &bigModExp{eip2565: true},
	types.BytesToAddress([]byte{6}): &bn256Add{gas: 150},
	types.BytesToAddress([]byte{7}): &bn256ScalarMul{gas: 6000},
	types.BytesToAddress([]byte{8}): &bn256Pairing{baseGas: 45000, pairGas: 34000},
	types.BytesToAddress([]byte{9}): &blake2F{},
}

// PrecompiledContractsCancun adds the EIP-4844 point evaluation
// precompile.
var PrecompiledContractsCancun = map[types.Address]PrecompiledContract{
	types.BytesToAddress([]byte{1}):    &ecrecover{},
	types.BytesToAddress([]byte{2}):    &sha256hash{},
	types.BytesToAddress([]byte{3}):    &ripemd160hash{},
	types.BytesToAddress([]byte{4}):    &dataCopy{},
	types.BytesToAddress([]byte{5}):    &bigModExp{eip2565: true},
	types.BytesToAddress([]byte{6}):    &bn256Add{gas: 150},
	types.BytesToAddress([]byte{7}):    &bn256ScalarMul{gas: 6000},
	types.BytesToAddress([]byte{8}):    &bn256Pairing{baseGas: 45000, pairGas: 34000},
	types.BytesToAddress([]byte{9}):    &blake2F{},
	types.BytesToAddress([]byte{0x0a}): &kzgPointEvaluation{},
}

// PrecompilesFor returns the precompile set active at the given fork.
func PrecompilesFor(fork Fork) map[types.Address]PrecompiledContract {
	switch {
	case fork.AtLeast(Cancun):
		return PrecompiledContractsCancun
	case fork.AtLeast(Berlin):
		return PrecompiledContractsBerlin
	case fork.AtLeast(Istanbul):
		return PrecompiledContractsIstanbul
	case fork.AtLeast(Byzantium):
		return PrecompiledContractsByzantium
	default:
		return PrecompiledContractsHomestead
	}
}

// ActivePrecompiles lists the precompile addresses for a fork, used to
// pre-warm the access list.
func ActivePrecompiles(fork Fork) []types.Address {
	set := PrecompilesFor(fork)
	addrs := make([]types.Address, 0, len(set))
	for addr := range set {
		addrs = append(addrs, addr)
	}
	return addrs
}

// ecrecover (0x01) recovers the signer address of a 65-byte secp256k1
// signature. Bad signatures return empty output, not an error.
type ecrecover struct{}

func (c *ecrecover) RequiredGas(input []byte) uint64 { return 3000 }

func (c *ecrecover) Run(input []byte) ([]byte, error) {
	const inputLen = 128
	input = getData(input, 0, inputLen)

	r := new(big.Int).SetBytes(input[64:96])
	s := new(big.Int).SetBytes(input[96:128])
	v := new(big.Int).SetBytes(input[32:64])

	if v.BitLen() > 8 {
		return nil, nil
	}
	vByte := byte(v.Uint64())
	if vByte != 27 && vByte != 28 {
		return nil, nil
	}
	if !gethcrypto.ValidateSignatureValues(vByte-27, r, s, false) {
		return nil, nil
	}

	sig := make([]byte, 65)
	copy(sig[32-len(r.Bytes()):32], r.Bytes())
	copy(sig[64-len(s.Bytes()):64], s.Bytes())
	sig[64] = vByte - 27

	pub, err := gethcrypto.Ecrecover(input[:32], sig)
	if err != nil {
		return nil, nil
	}
	addr := crypto.Keccak256(pub[1:])

	out := make([]byte, 32)
	copy(out[12:], addr[12:])
	return out, nil
}

// sha256hash (0x02).
type sha256hash struct{}

func (c *sha256hash) RequiredGas(input []byte) uint64 {
	return uint64(len(input)+31)/32*12 + 60
}

func (c *sha256hash) Run(input []byte) ([]byte, error) {
	h := sha256.Sum256(input)
	return h[:], nil
}

// ripemd160hash (0x03). The 20-byte digest is left-padded to 32 bytes.
type ripemd160hash struct{}

func (c *ripemd160hash) RequiredGas(input []byte) uint64 {
	return uint64(len(input)+31)/32*120 + 600
}

func (c *ripemd160hash) Run(input []byte) ([]byte, error) {
	h := ripemd160.New()
	h.Write(input)
	out := make([]byte, 32)
	copy(out[12:], h.Sum(nil))
	return out, nil
}

// dataCopy (0x04) echoes its input.
type dataCopy struct{}

func (c *dataCopy) RequiredGas(input []byte) uint64 {
	return uint64(len(input)+31)/32*3 + 15
}

func (c *dataCopy) Run(input []byte) ([]byte, error) {
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}

// bigModExp (0x05) computes base^exp mod modulus over arbitrary-width
// operands (EIP-198, repriced by EIP-2565).
type bigModExp struct {
	eip2565 bool
}

var (
	big1      = big.NewInt(1)
	big3      = big.NewInt(3)
	big7      = big.NewInt(7)
	big8      = big.NewInt(8)
	big16     = big.NewInt(16)
	big20     = big.NewInt(20)
	big32     = big.NewInt(32)
	big64     = big.NewInt(64)
	big96     = big.NewInt(96)
	big480    = big.NewInt(480)
	big1024   = big.NewInt(1024)
	big3072   = big.NewInt(3072)
	big199680 = big.NewInt(199680)
)

func (c *bigModExp) RequiredGas(input []byte) uint64 {
	var (
		baseLen = new(big.Int).SetBytes(getData(input, 0, 32))
		expLen  = new(big.Int).SetBytes(getData(input, 32, 32))
		modLen  = new(big.Int).SetBytes(getData(input, 64, 32))
	)
	if len(input) > 96 {
		input = input[96:]
	} else {
		input = input[:0]
	}
	// Retrieve the head 32 bytes of exp for the adjusted exponent length.
	var expHead *big.Int
	if big.NewInt(int64(len(input))).Cmp(baseLen) <= 0 {
		expHead = new(big.Int)
	} else {
		if expLen.Cmp(big32) > 0 {
			expHead = new(big.Int).SetBytes(getData(input, baseLen.Uint64(), 32))
		} else {
			expHead = new(big.Int).SetBytes(getData(input, baseLen.Uint64(), expLen.Uint64()))
		}
	}
	msb := 0
	if bitlen := expHead.BitLen(); bitlen > 0 {
		msb = bitlen - 1
	}
	adjExpLen := new(big.Int)
	if expLen.Cmp(big32) > 0 {
		adjExpLen.Sub(expLen, big32)
		adjExpLen.Mul(big8, adjExpLen)
	}
	adjExpLen.Add(adjExpLen, big.NewInt(int64(msb)))

	gas := new(big.Int).Set(maxBigInt(modLen, baseLen))
	if c.eip2565 {
		// ceil(x/8)^2
		gas.Add(gas, big7)
		gas.Div(gas, big8)
		gas.Mul(gas, gas)

		gas.Mul(gas, maxBigInt(adjExpLen, big1))
		gas.Div(gas, big3)
		if gas.BitLen() > 64 {
			return ^uint64(0)
		}
		if gas.Uint64() < 200 {
			return 200
		}
		return gas.Uint64()
	}
	switch {
	case gas.Cmp(big64) <= 0:
		gas.Mul(gas, gas)
	case gas.Cmp(big1024) <= 0:
		gas = new(big.Int).Add(
			new(big.Int).Div(new(big.Int).Mul(gas, gas), big.NewInt(4)),
			new(big.Int).Sub(new(big.Int).Mul(big96, gas), big3072),
		)
	default:
		gas = new(big.Int).Add(
			new(big.Int).Div(new(big.Int).Mul(gas, gas), big16),
			new(big.Int).Sub(new(big.Int).Mul(big480, gas), big199680),
		)
	}
	gas.Mul(gas, maxBigInt(adjExpLen, big1))
	gas.Div(gas, big20)
	if gas.BitLen() > 64 {
		return ^uint64(0)
	}
	return gas.Uint64()
}

func maxBigInt(x, y *big.Int) *big.Int {
	if x.Cmp(y) > 0 {
		return x
	}
	return y
}

func (c *bigModExp) Run(input []byte) ([]byte, error) {
	var (
		baseLen = new(big.Int).SetBytes(getData(input, 0, 32)).Uint64()
		expLen  = new(big.Int).SetBytes(getData(input, 32, 32)).Uint64()
		modLen  = new(big.Int).SetBytes(getData(input, 64, 32)).Uint64()
	)
	if len(input) > 96 {
		input = input[96:]
	} else {
		input = input[:0]
	}
	if baseLen == 0 && modLen == 0 {
		return []byte{}, nil
	}
	var (
		base = new(big.Int).SetBytes(getData(input, 0, baseLen))
		exp  = new(big.Int).SetBytes(getData(input, baseLen, expLen))
		mod  = new(big.Int).SetBytes(getData(input, baseLen+expLen, modLen))
	)
	out := make([]byte, modLen)
	if mod.Sign() == 0 {
		// x mod 0 is zero
		return out, nil
	}
	base.Exp(base, exp, mod)
	return base.FillBytes(out), nil
}

func newCurvePointG1(blob []byte) (*bn256.G1, error) {
	p := new(bn256.G1)
	if _, err := p.Unmarshal(blob); err != nil {
		return nil, err
	}
	return p, nil
}

func newCurvePointG2(blob []byte) (*bn256.G2, error) {
	p := new(bn256.G2)
	if _, err := p.Unmarshal(blob); err != nil {
		return nil, err
	}
	return p, nil
}

// bn256Add (0x06) adds two alt_bn128 curve points (EIP-196).
type bn256Add struct {
	gas uint64
}

func (c *bn256Add) RequiredGas(input []byte) uint64 { return c.gas }

func (c *bn256Add) Run(input []byte) ([]byte, error) {
	x, err := newCurvePointG1(getData(input, 0, 64))
	if err != nil {
		return nil, err
	}
	y, err := newCurvePointG1(getData(input, 64, 64))
	if err != nil {
		return nil, err
	}
	res := new(bn256.G1)
	res.Add(x, y)
	return res.Marshal(), nil
}

// bn256ScalarMul (0x07) multiplies an alt_bn128 point by a scalar.
type bn256ScalarMul struct {
	gas uint64
}

func (c *bn256ScalarMul) RequiredGas(input []byte) uint64 { return c.gas }

func (c *bn256ScalarMul) Run(input []byte) ([]byte, error) {
	p, err := newCurvePointG1(getData(input, 0, 64))
	if err != nil {
		return nil, err
	}
	res := new(bn256.G1)
	res.ScalarMult(p, new(big.Int).SetBytes(getData(input, 64, 32)))
	return res.Marshal(), nil
}

// bn256Pairing (0x08) checks an alt_bn128 pairing equation (EIP-197).
type bn256Pairing struct {
	baseGas uint64
	pairGas uint64
}

var (
	true32Byte  = []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	false32Byte = make([]byte, 32)

	errBadPairingInput = errors.New("bad elliptic curve pairing size")
)

func (c *bn256Pairing) RequiredGas(input []byte) uint64 {
	return c.baseGas + uint64(len(input)/192)*c.pairGas
}

func (c *bn256Pairing) Run(input []byte) ([]byte, error) {
	if len(input)%192 > 0 {
		return nil, errBadPairingInput
	}
	var (
		cs []*bn256.G1
		ts []*bn256.G2
	)
	for i := 0; i < len(input); i += 192 {
		c, err := newCurvePointG1(input[i : i+64])
		if err != nil {
			return nil, err
		}
		t, err := newCurvePointG2(input[i+64 : i+192])
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
		ts = append(ts, t)
	}
	if bn256.PairingCheck(cs, ts) {
		return true32Byte, nil
	}
	return false32Byte, nil
}

// blake2F (0x09) exposes the BLAKE2b compression function (EIP-152).
type blake2F struct{}

const blake2FInputLength = 213

var (
	errBlake2FInvalidInputLength = errors.New("invalid input length")
	errBlake2FInvalidFinalFlag   = errors.New("invalid final flag")
)

func (c *blake2F) RequiredGas(input []byte) uint64 {
	if len(input) != blake2FInputLength {
		return 0
	}
	return uint64(binary.BigEndian.Uint32(input[0:4]))
}

func (c *blake2F) Run(input []byte) ([]byte, error) {
	if len(input) != blake2FInputLength {
		return nil, errBlake2FInvalidInputLength
	}
	if input[212] != 0 && input[212] != 1 {
		return nil, errBlake2FInvalidFinalFlag
	}
	var (
		rounds = binary.BigEndian.Uint32(input[0:4])
		final  = input[212] == 1

		h [8]uint64
		m [16]uint64
		t [2]uint64
	)
	for i := 0; i < 8; i++ {
		offset := 4 + i*8
		h[i] = binary.LittleEndian.Uint64(input[offset : offset+8])
	}
	for i := 0; i < 16; i++ {
		offset := 68 + i*8
		m[i] = binary.LittleEndian.Uint64(input[offset : offset+8])
	}
	t[0] = binary.LittleEndian.Uint64(input[196:204])
	t[1] = binary.LittleEndian.Uint64(input[204:212])

	blake2b.F(&h, m, t, final, rounds)

	output := make([]byte, 64)
	for i := 0; i < 8; i++ {
		offset := i * 8
		binary.LittleEndian.PutUint64(output[offset:offset+8], h[i])
	}
	return output, nil
}

// kzgPointEvaluation (0x0a) verifies a KZG opening proof against a
// versioned blob commitment hash (EIP-4844).
type kzgPointEvaluation struct{}

const (
	blobVerifyInputLength    = 192
	blobCommitmentVersionKZG = 0x01
)

var (
	kzgCtxOnce sync.Once
	kzgCtx     *goethkzg.Context
	kzgCtxErr  error

	errBlobVerifyInvalidInputLength = errors.New("invalid input length")
	errBlobVerifyMismatchedVersion  = errors.New("mismatched versioned hash")
	errBlobVerifyKZGProof           = errors.New("error verifying kzg proof")

	// scalars per blob and the BLS modulus, fixed by the protocol
	kzgPrecompileReturnValue = [64]byte{
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x10, 0,
		0x73, 0xed, 0xa7, 0x53, 0x29, 0x9d, 0x7d, 0x48, 0x33, 0x39, 0xd8, 0x08, 0x09, 0xa1, 0xd8, 0x05,
		0x53, 0xbd, 0xa4, 0x02, 0xff, 0xfe, 0x5b, 0xfe, 0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x01,
	}
)

func kzgContext() (*goethkzg.Context, error) {
	kzgCtxOnce.Do(func() {
		kzgCtx, kzgCtxErr = goethkzg.NewContext4096Secure()
	})
	return kzgCtx, kzgCtxErr
}

// kzgToVersionedHash implements kzg_to_versioned_hash from EIP-4844.
func kzgToVersionedHash(commitment [48]byte) types.Hash {
	h := sha256.Sum256(commitment[:])
	h[0] = blobCommitmentVersionKZG
	return types.Hash(h)
}

func (c *kzgPointEvaluation) RequiredGas(input []byte) uint64 { return 50000 }

func (c *kzgPointEvaluation) Run(input []byte) ([]byte, error) {
	if len(input) != blobVerifyInputLength {
		return nil, errBlobVerifyInvalidInputLength
	}
	var versionedHash types.Hash
	copy(versionedHash[:], input[:32])

	var (
		z [32]byte
		y [32]byte
	)
	copy(z[:], input[32:64])
	copy(y[:], input[64:96])

	var commitment [48]byte
	copy(commitment[:], input[96:144])
	if kzgToVersionedHash(commitment) != versionedHash {
		return nil, errBlobVerifyMismatchedVersion
	}

	var proof [48]byte
	copy(proof[:], input[144:192])

	ctx, err := kzgContext()
	if err != nil {
		return nil, err
	}
	if err := ctx.VerifyKZGProof(goethkzg.KZGCommitment(commitment), goethkzg.Scalar(z), goethkzg.Scalar(y), goethkzg.KZGProof(proof)); err != nil {
		return nil, errBlobVerifyKZGProof
	}
	return kzgPrecompileReturnValue[:], nil
}
