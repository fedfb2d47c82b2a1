package core

import (
	"github.com/nethervm/nethervm/core/state"
	"github.com/nethervm/nethervm/core/types"
	"github.com/nethervm/nethervm/core/vm"
)

// Status classifies the outcome of a top-level execution.
type Status int

const (
	// Success: execution ran to completion and its state changes stand.
	Success Status = iota
	// Revert: execution reverted deliberately; state changes are rolled
	// back but remaining gas is returned and output carries the revert
	// reason.
	Revert
	// Halt: execution failed with an unrecoverable VM error; state
	// changes are rolled back and all gas is consumed.
	Halt
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Revert:
		return "revert"
	case Halt:
		return "halt"
	default:
		return "unknown"
	}
}

// ExecutionResult is the outcome of Execute. Err is nil exactly when
// Status is Success.
type ExecutionResult struct {
	Status      Status
	Output      []byte
	GasUsed     uint64
	GasRefunded uint64
	Logs        []*types.Log

	// ContractAddress is the address of the deployed contract for a
	// successful create message, zero otherwise.
	ContractAddress types.Address

	// StateUpdate lists the committed account mutations for the caller
	// to persist. Failed executions carry an update too; their reverted
	// frames contribute nothing to it.
	StateUpdate *state.StateUpdate

	Err error
}

// Failed reports whether the execution did not succeed.
func (r *ExecutionResult) Failed() bool { return r.Status != Success }

// Reverted reports whether the execution reverted deliberately.
func (r *ExecutionResult) Reverted() bool { return r.Status == Revert }

func statusOf(err error) Status {
	switch {
	case err == nil:
		return Success
	case vm.IsRevert(err):
		return Revert
	default:
		return Halt
	}
}
