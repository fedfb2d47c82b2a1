// Package core drives top-level message execution: it builds an EVM for
// a fork, runs the root call or create frame, settles gas and refunds,
// and classifies the outcome.
package core

import (
	"github.com/holiman/uint256"

	"github.com/nethervm/nethervm/core/state"
	"github.com/nethervm/nethervm/core/types"
	"github.com/nethervm/nethervm/core/vm"
)

// AccessTuple is one entry of an EIP-2930 access list.
type AccessTuple struct {
	Address     types.Address
	StorageKeys []types.Hash
}

// Message is a top-level execution request. A nil To deploys Data as
// init code; Static runs the call with state writes forbidden.
type Message struct {
	From       types.Address
	To         *types.Address
	Value      *uint256.Int
	Data       []byte
	Gas        uint64
	Static     bool
	AccessList []AccessTuple
}

// Execute runs msg against statedb under the given fork and returns the
// classified result. Gas used is the limit minus the leftover, reduced
// by the capped refund. The surviving state changes are committed and
// returned in the result's StateUpdate for the caller to persist.
//
// A non-nil error return means the backing state reader failed and the
// result is unusable; VM-level failures come back inside the
// ExecutionResult instead.
func Execute(msg Message, blockCtx vm.BlockContext, txCtx vm.TxContext, statedb *state.StateDB, fork vm.Fork, inspector vm.Inspector) (*ExecutionResult, error) {
	config := vm.Config{Fork: fork, ChainID: DefaultChainID, Inspector: inspector}
	evm := vm.NewEVM(blockCtx, txCtx, statedb, config)
	rules := evm.Rules()

	prewarm(msg, blockCtx, statedb, rules)

	value := msg.Value
	if value == nil {
		value = new(uint256.Int)
	}

	var (
		ret             []byte
		leftover        uint64
		err             error
		contractAddress types.Address
	)
	switch {
	case msg.To == nil:
		ret, contractAddress, leftover, err = evm.Create(msg.From, msg.Data, msg.Gas, value)
	case msg.Static:
		ret, leftover, err = evm.StaticCall(msg.From, *msg.To, msg.Data, msg.Gas)
	default:
		ret, leftover, err = evm.Call(msg.From, *msg.To, msg.Data, msg.Gas, value)
	}

	if dbErr := statedb.Error(); dbErr != nil {
		return nil, dbErr
	}

	gasUsed := msg.Gas - leftover
	refund := statedb.GetRefund()
	if maxRefund := gasUsed / rules.RefundQuotient(); refund > maxRefund {
		refund = maxRefund
	}
	gasUsed -= refund

	result := &ExecutionResult{
		Status:      statusOf(err),
		Output:      ret,
		GasUsed:     gasUsed,
		GasRefunded: refund,
		Err:         err,
	}
	if result.Status == Success {
		result.Logs = statedb.Logs()
		if msg.To == nil {
			result.ContractAddress = contractAddress
		}
	}

	update, commitErr := statedb.Commit(rules.IsSpuriousDragon)
	if commitErr != nil {
		return nil, commitErr
	}
	result.StateUpdate = update
	return result, nil
}

// DefaultChainID is the chain identity reported by CHAINID when the
// caller does not configure one.
const DefaultChainID uint64 = 1

// prewarm seeds the access list before execution per EIP-2929: the
// sender, the destination, every active precompile and the message's
// own access list start warm. From Shanghai the coinbase is warm too
// (EIP-3651).
func prewarm(msg Message, blockCtx vm.BlockContext, statedb *state.StateDB, rules vm.Rules) {
	if !rules.IsBerlin {
		return
	}
	statedb.AddAddressToAccessList(msg.From)
	if msg.To != nil {
		statedb.AddAddressToAccessList(*msg.To)
	}
	for _, addr := range vm.ActivePrecompiles(rules.Fork) {
		statedb.AddAddressToAccessList(addr)
	}
	for _, tuple := range msg.AccessList {
		statedb.AddAddressToAccessList(tuple.Address)
		for _, key := range tuple.StorageKeys {
			statedb.AddSlotToAccessList(tuple.Address, key)
		}
	}
	if rules.IsShanghai {
		statedb.AddAddressToAccessList(blockCtx.Coinbase)
	}
}

var _ vm.StateDB = (*state.StateDB)(nil)
