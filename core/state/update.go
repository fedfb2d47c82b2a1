package state

import (
	"github.com/holiman/uint256"

	"github.com/nethervm/nethervm/core/types"
)

// AccountUpdate is the committed end state of one modified account.
type AccountUpdate struct {
	Nonce    uint64
	Balance  *uint256.Int
	CodeHash types.Hash
	Code     []byte                    // set only when the code changed
	Storage  map[types.Hash]types.Hash // modified slots; a zero value clears the slot
}

// StateUpdate collects everything a Commit changed since the previous
// one, for the caller to persist behind its Reader. Root is a
// deterministic digest over the committed accounts, not a trie root.
type StateUpdate struct {
	Root      types.Hash
	Accounts  map[types.Address]*AccountUpdate
	Destroyed []types.Address
}
