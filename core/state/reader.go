package state

import (
	"github.com/holiman/uint256"

	"github.com/nethervm/nethervm/core/types"
	"github.com/nethervm/nethervm/crypto"
)

// MapReader is an in-memory Reader backed by plain maps. It is the
// backend for tests and for running the interpreter without a node.
type MapReader struct {
	accounts map[types.Address]types.Account
	codes    map[types.Hash][]byte
	storage  map[types.Address]map[types.Hash]types.Hash
}

// NewMapReader returns an empty MapReader.
func NewMapReader() *MapReader {
	return &MapReader{
		accounts: make(map[types.Address]types.Account),
		codes:    make(map[types.Hash][]byte),
		storage:  make(map[types.Address]map[types.Hash]types.Hash),
	}
}

// SetAccount puts an account with the given nonce and balance.
func (r *MapReader) SetAccount(addr types.Address, nonce uint64, balance *uint256.Int) {
	account, ok := r.accounts[addr]
	if !ok {
		account = types.NewAccount()
	}
	account.Nonce = nonce
	account.Balance = new(uint256.Int).Set(balance)
	r.accounts[addr] = account
}

// SetCode puts code for an account, creating the account if needed.
func (r *MapReader) SetCode(addr types.Address, code []byte) {
	account, ok := r.accounts[addr]
	if !ok {
		account = types.NewAccount()
	}
	hash := crypto.Keccak256Hash(code)
	account.CodeHash = hash.Bytes()
	r.accounts[addr] = account
	r.codes[hash] = append([]byte(nil), code...)
}

// SetStorage puts a storage slot value, creating the account if needed.
func (r *MapReader) SetStorage(addr types.Address, key, value types.Hash) {
	if _, ok := r.accounts[addr]; !ok {
		r.accounts[addr] = types.NewAccount()
	}
	if _, ok := r.storage[addr]; !ok {
		r.storage[addr] = make(map[types.Hash]types.Hash)
	}
	r.storage[addr][key] = value
}

func (r *MapReader) Account(addr types.Address) (*types.Account, error) {
	account, ok := r.accounts[addr]
	if !ok {
		return nil, nil
	}
	cpy := account.Copy()
	return &cpy, nil
}

func (r *MapReader) Code(addr types.Address, codeHash types.Hash) ([]byte, error) {
	return r.codes[codeHash], nil
}

func (r *MapReader) Storage(addr types.Address, key types.Hash) (types.Hash, error) {
	slots, ok := r.storage[addr]
	if !ok {
		return types.Hash{}, nil
	}
	return slots[key], nil
}

var _ Reader = (*MapReader)(nil)
