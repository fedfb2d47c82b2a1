// Package state implements the journaled account state the interpreter
// executes against. All mutations pass through a journal so any prefix
// of a transaction can be rolled back to a snapshot; reads fall through
// to a backing Reader and are cached.
package state

import (
	"bytes"
	"sort"

	"github.com/holiman/uint256"

	"github.com/nethervm/nethervm/core/types"
	"github.com/nethervm/nethervm/crypto"
)

// Reader is the read-only backing store a StateDB loads accounts from.
// A nil account with a nil error means the account does not exist.
type Reader interface {
	Account(addr types.Address) (*types.Account, error)
	Code(addr types.Address, codeHash types.Hash) ([]byte, error)
	Storage(addr types.Address, key types.Hash) (types.Hash, error)
}

// stateObject is an account loaded into the StateDB, with its dirty and
// committed storage caches.
type stateObject struct {
	account          types.Account
	code             []byte
	codeLoaded       bool
	codeDirty        bool
	dirtyStorage     map[types.Hash]types.Hash
	committedStorage map[types.Hash]types.Hash
	selfDestructed   bool
}

func newStateObject(account types.Account) *stateObject {
	return &stateObject{
		account:          account,
		dirtyStorage:     make(map[types.Hash]types.Hash),
		committedStorage: make(map[types.Hash]types.Hash),
	}
}

func (obj *stateObject) empty() bool {
	return obj.account.Nonce == 0 &&
		obj.account.Balance.IsZero() &&
		types.BytesToHash(obj.account.CodeHash) == types.EmptyCodeHash
}

// StateDB is a journaled, in-memory overlay over a Reader. It implements
// the interpreter's state interface; every mutation is revertible until
// Finalise is called.
//
// Reader failures are sticky: the first error is recorded and every
// subsequent read of the failed entry behaves as if the entry were
// absent. Callers check Error() after execution to distinguish a clean
// run from one on top of a broken backend.
type StateDB struct {
	reader Reader
	dbErr  error

	stateObjects     map[types.Address]*stateObject
	destructed       map[types.Address]struct{} // populated by Finalise
	createdContracts map[types.Address]struct{} // contracts created in this tx
	touched          map[types.Address]struct{}
	mutated          map[types.Address]struct{} // accounts the next Commit exports

	journal          *journal
	logs             []*types.Log
	refund           uint64
	accessList       *accessList
	transientStorage map[types.Address]map[types.Hash]types.Hash
}

// New creates a StateDB over the given reader.
func New(reader Reader) *StateDB {
	return &StateDB{
		reader:           reader,
		stateObjects:     make(map[types.Address]*stateObject),
		destructed:       make(map[types.Address]struct{}),
		createdContracts: make(map[types.Address]struct{}),
		touched:          make(map[types.Address]struct{}),
		mutated:          make(map[types.Address]struct{}),
		journal:          newJournal(),
		accessList:       newAccessList(),
		transientStorage: make(map[types.Address]map[types.Hash]types.Hash),
	}
}

// markMutated flags addr for export by the next Commit. The flag is not
// journaled: a reverted change exports its unchanged values, which is
// harmless to persist.
func (s *StateDB) markMutated(addr types.Address) {
	s.mutated[addr] = struct{}{}
}

// setError records the first backend failure.
func (s *StateDB) setError(err error) {
	if s.dbErr == nil {
		s.dbErr = err
	}
}

// Error returns the first backend failure observed, if any. A non-nil
// result means the execution outcome is unreliable and must be
// discarded.
func (s *StateDB) Error() error {
	return s.dbErr
}

// getStateObject returns the account at addr, loading it from the
// reader on first touch. Returns nil for non-existent accounts.
func (s *StateDB) getStateObject(addr types.Address) *stateObject {
	if obj, ok := s.stateObjects[addr]; ok {
		return obj
	}
	if _, gone := s.destructed[addr]; gone {
		// Finalised out of existence; do not resurrect from the reader.
		return nil
	}
	account, err := s.reader.Account(addr)
	if err != nil {
		s.setError(err)
		return nil
	}
	if account == nil {
		return nil
	}
	obj := newStateObject(account.Copy())
	s.stateObjects[addr] = obj
	return obj
}

func (s *StateDB) getOrNewStateObject(addr types.Address) *stateObject {
	if obj := s.getStateObject(addr); obj != nil {
		return obj
	}
	s.journal.append(createAccountChange{addr: addr})
	obj := newStateObject(types.NewAccount())
	s.stateObjects[addr] = obj
	s.markMutated(addr)
	return obj
}

// CreateAccount makes addr exist. An already existing account keeps its
// balance but loses nonce, code and storage visibility.
func (s *StateDB) CreateAccount(addr types.Address) {
	prev := s.getStateObject(addr)
	s.journal.append(createAccountChange{addr: addr, prev: prev})
	delete(s.destructed, addr)
	obj := newStateObject(types.NewAccount())
	if prev != nil {
		obj.account.Balance = new(uint256.Int).Set(prev.account.Balance)
	}
	s.stateObjects[addr] = obj
	s.markMutated(addr)
}

// CreateContract marks addr as a contract created in the current
// transaction, which makes it eligible for EIP-6780 selfdestruct.
func (s *StateDB) CreateContract(addr types.Address) {
	if _, ok := s.createdContracts[addr]; !ok {
		s.journal.append(createContractChange{addr: addr})
		s.createdContracts[addr] = struct{}{}
	}
}

// --- Balance and nonce ---

func (s *StateDB) GetBalance(addr types.Address) *uint256.Int {
	if obj := s.getStateObject(addr); obj != nil {
		return new(uint256.Int).Set(obj.account.Balance)
	}
	return new(uint256.Int)
}

func (s *StateDB) AddBalance(addr types.Address, amount *uint256.Int) {
	obj := s.getOrNewStateObject(addr)
	s.touch(addr)
	if amount.IsZero() {
		return
	}
	s.journal.append(balanceChange{addr: addr, prev: *obj.account.Balance})
	obj.account.Balance = new(uint256.Int).Add(obj.account.Balance, amount)
	s.markMutated(addr)
}

func (s *StateDB) SubBalance(addr types.Address, amount *uint256.Int) {
	obj := s.getOrNewStateObject(addr)
	s.touch(addr)
	if amount.IsZero() {
		return
	}
	s.journal.append(balanceChange{addr: addr, prev: *obj.account.Balance})
	obj.account.Balance = new(uint256.Int).Sub(obj.account.Balance, amount)
	s.markMutated(addr)
}

func (s *StateDB) GetNonce(addr types.Address) uint64 {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.account.Nonce
	}
	return 0
}

func (s *StateDB) SetNonce(addr types.Address, nonce uint64) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(nonceChange{addr: addr, prev: obj.account.Nonce})
	obj.account.Nonce = nonce
	s.markMutated(addr)
}

// touch records addr as touched so an empty account can be swept at
// the end of the transaction (EIP-161).
func (s *StateDB) touch(addr types.Address) {
	if _, ok := s.touched[addr]; !ok {
		s.journal.append(touchChange{addr: addr})
		s.touched[addr] = struct{}{}
	}
}

// --- Code ---

func (s *StateDB) GetCode(addr types.Address) []byte {
	obj := s.getStateObject(addr)
	if obj == nil {
		return nil
	}
	if !obj.codeLoaded {
		hash := types.BytesToHash(obj.account.CodeHash)
		if hash != types.EmptyCodeHash {
			code, err := s.reader.Code(addr, hash)
			if err != nil {
				s.setError(err)
				return nil
			}
			obj.code = code
		}
		obj.codeLoaded = true
	}
	return obj.code
}

func (s *StateDB) SetCode(addr types.Address, code []byte) {
	obj := s.getOrNewStateObject(addr)
	prevCode := s.GetCode(addr)
	prevHash := append([]byte(nil), obj.account.CodeHash...)
	s.journal.append(codeChange{addr: addr, prevCode: prevCode, prevHash: prevHash})
	obj.code = code
	obj.codeLoaded = true
	obj.codeDirty = true
	obj.account.CodeHash = crypto.Keccak256(code)
	s.markMutated(addr)
}

func (s *StateDB) GetCodeHash(addr types.Address) types.Hash {
	if obj := s.getStateObject(addr); obj != nil {
		return types.BytesToHash(obj.account.CodeHash)
	}
	return types.Hash{}
}

func (s *StateDB) GetCodeSize(addr types.Address) int {
	return len(s.GetCode(addr))
}

// --- Storage ---

func (s *StateDB) GetState(addr types.Address, key types.Hash) types.Hash {
	obj := s.getStateObject(addr)
	if obj == nil {
		return types.Hash{}
	}
	if val, ok := obj.dirtyStorage[key]; ok {
		return val
	}
	return s.GetCommittedState(addr, key)
}

func (s *StateDB) SetState(addr types.Address, key, value types.Hash) {
	obj := s.getOrNewStateObject(addr)
	prev, prevExists := obj.dirtyStorage[key]
	s.journal.append(storageChange{addr: addr, key: key, prev: prev, prevExists: prevExists})
	obj.dirtyStorage[key] = value
	s.markMutated(addr)
}

// GetCommittedState returns the slot value as of the start of the
// transaction, ignoring dirty writes.
func (s *StateDB) GetCommittedState(addr types.Address, key types.Hash) types.Hash {
	obj := s.getStateObject(addr)
	if obj == nil {
		return types.Hash{}
	}
	if val, ok := obj.committedStorage[key]; ok {
		return val
	}
	val, err := s.reader.Storage(addr, key)
	if err != nil {
		s.setError(err)
		return types.Hash{}
	}
	obj.committedStorage[key] = val
	return val
}

// --- Transient storage (EIP-1153) ---

func (s *StateDB) GetTransientState(addr types.Address, key types.Hash) types.Hash {
	if slots, ok := s.transientStorage[addr]; ok {
		return slots[key]
	}
	return types.Hash{}
}

func (s *StateDB) SetTransientState(addr types.Address, key, value types.Hash) {
	prev := s.GetTransientState(addr, key)
	if prev == value {
		return
	}
	s.journal.append(transientStorageChange{addr: addr, key: key, prev: prev})
	if _, ok := s.transientStorage[addr]; !ok {
		s.transientStorage[addr] = make(map[types.Hash]types.Hash)
	}
	s.transientStorage[addr][key] = value
}

// --- Self-destruct ---

func (s *StateDB) SelfDestruct(addr types.Address) {
	obj := s.getStateObject(addr)
	if obj == nil {
		return
	}
	s.journal.append(selfDestructChange{
		addr:           addr,
		prevDestructed: obj.selfDestructed,
		prevBalance:    *obj.account.Balance,
	})
	obj.selfDestructed = true
	obj.account.Balance = new(uint256.Int)
	s.markMutated(addr)
}

// Selfdestruct6780 applies EIP-6780 semantics: the account is removed
// only if it was created in the same transaction. The balance transfer
// already happened at the instruction level either way.
func (s *StateDB) Selfdestruct6780(addr types.Address) {
	if _, ok := s.createdContracts[addr]; ok {
		s.SelfDestruct(addr)
	}
}

func (s *StateDB) HasSelfDestructed(addr types.Address) bool {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.selfDestructed
	}
	return false
}

// --- Existence ---

func (s *StateDB) Exist(addr types.Address) bool {
	return s.getStateObject(addr) != nil
}

func (s *StateDB) Empty(addr types.Address) bool {
	obj := s.getStateObject(addr)
	return obj == nil || obj.empty()
}

// --- Refund counter ---

func (s *StateDB) AddRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	s.refund += gas
}

func (s *StateDB) SubRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	if gas > s.refund {
		panic("refund counter below zero")
	}
	s.refund -= gas
}

func (s *StateDB) GetRefund() uint64 {
	return s.refund
}

// --- Access list (EIP-2929) ---

func (s *StateDB) AddAddressToAccessList(addr types.Address) {
	if !s.accessList.AddAddress(addr) {
		s.journal.append(accessListAddAccountChange{addr: addr})
	}
}

func (s *StateDB) AddSlotToAccessList(addr types.Address, slot types.Hash) {
	addrPresent, slotPresent := s.accessList.AddSlot(addr, slot)
	if !addrPresent {
		s.journal.append(accessListAddAccountChange{addr: addr})
	}
	if !slotPresent {
		s.journal.append(accessListAddSlotChange{addr: addr, slot: slot})
	}
}

func (s *StateDB) AddressInAccessList(addr types.Address) bool {
	return s.accessList.ContainsAddress(addr)
}

func (s *StateDB) SlotInAccessList(addr types.Address, slot types.Hash) (addressOk bool, slotOk bool) {
	return s.accessList.ContainsSlot(addr, slot)
}

// --- Snapshot and revert ---

func (s *StateDB) Snapshot() int {
	return s.journal.snapshot()
}

func (s *StateDB) RevertToSnapshot(id int) {
	s.journal.revertToSnapshot(id, s)
}

// --- Logs ---

func (s *StateDB) AddLog(log *types.Log) {
	s.journal.append(logChange{prevLen: len(s.logs)})
	log.Index = uint(len(s.logs))
	s.logs = append(s.logs, log)
}

func (s *StateDB) Logs() []*types.Log {
	return s.logs
}

// --- Transaction boundary ---

// Finalise ends the current transaction: self-destructed accounts and,
// if deleteEmptyObjects is set, touched-but-empty accounts are removed,
// and all per-transaction scratch state (journal, refund, transient
// storage, access list) is cleared. Changes are no longer revertible
// after this.
func (s *StateDB) Finalise(deleteEmptyObjects bool) {
	for addr, obj := range s.stateObjects {
		if obj.selfDestructed {
			delete(s.stateObjects, addr)
			s.destructed[addr] = struct{}{}
			continue
		}
		if deleteEmptyObjects {
			if _, touched := s.touched[addr]; touched && obj.empty() {
				delete(s.stateObjects, addr)
				s.destructed[addr] = struct{}{}
			}
		}
	}
	s.journal.reset()
	s.refund = 0
	s.touched = make(map[types.Address]struct{})
	s.createdContracts = make(map[types.Address]struct{})
	s.accessList = newAccessList()
	s.transientStorage = make(map[types.Address]map[types.Hash]types.Hash)
}

// Commit finalises the pending transaction, flushes dirty storage into
// the committed caches and returns the StateUpdate listing every
// account modified since the previous Commit, for the caller to persist
// behind its Reader.
func (s *StateDB) Commit(deleteEmptyObjects bool) (*StateUpdate, error) {
	if s.dbErr != nil {
		return nil, s.dbErr
	}
	wasGone := make(map[types.Address]struct{}, len(s.destructed))
	for addr := range s.destructed {
		wasGone[addr] = struct{}{}
	}
	s.Finalise(deleteEmptyObjects)

	update := &StateUpdate{Accounts: make(map[types.Address]*AccountUpdate)}
	for addr := range s.destructed {
		if _, ok := wasGone[addr]; !ok {
			update.Destroyed = append(update.Destroyed, addr)
		}
	}
	sort.Slice(update.Destroyed, func(i, j int) bool {
		return bytes.Compare(update.Destroyed[i][:], update.Destroyed[j][:]) < 0
	})

	addrs := make([]types.Address, 0, len(s.stateObjects))
	for addr, obj := range s.stateObjects {
		if _, dirty := s.mutated[addr]; dirty {
			acct := &AccountUpdate{
				Nonce:    obj.account.Nonce,
				Balance:  new(uint256.Int).Set(obj.account.Balance),
				CodeHash: types.BytesToHash(obj.account.CodeHash),
			}
			if obj.codeDirty {
				acct.Code = obj.code
			}
			if len(obj.dirtyStorage) > 0 {
				acct.Storage = make(map[types.Hash]types.Hash, len(obj.dirtyStorage))
				for key, val := range obj.dirtyStorage {
					acct.Storage[key] = val
				}
			}
			update.Accounts[addr] = acct
		}
		for key, val := range obj.dirtyStorage {
			if val == (types.Hash{}) {
				delete(obj.committedStorage, key)
			} else {
				obj.committedStorage[key] = val
			}
		}
		obj.dirtyStorage = make(map[types.Hash]types.Hash)
		obj.codeDirty = false
		addrs = append(addrs, addr)
	}
	s.mutated = make(map[types.Address]struct{})

	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
	// Digest over the committed accounts. Deterministic for a given
	// state but not a trie root.
	preimage := make([]byte, 0, 256)
	for _, addr := range addrs {
		obj := s.stateObjects[addr]
		preimage = append(preimage, addr[:]...)
		preimage = append(preimage, obj.account.CodeHash...)
		preimage = append(preimage, obj.account.Balance.Bytes()...)
	}
	if len(preimage) == 0 {
		update.Root = types.EmptyRootHash
	} else {
		update.Root = crypto.Keccak256Hash(preimage)
	}
	return update, nil
}
