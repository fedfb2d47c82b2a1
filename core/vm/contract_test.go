package vm

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/nethervm/nethervm/core/types"
)

func TestContractUseRefundGas(t *testing.T) {
	c := NewContract(types.Address{}, types.Address{}, nil, 100)
	if !c.UseGas(40) {
		t.Fatal("UseGas(40) failed with 100 available")
	}
	if c.Gas != 60 {
		t.Fatalf("gas = %d, want 60", c.Gas)
	}
	if c.UseGas(61) {
		t.Fatal("UseGas(61) succeeded with 60 available")
	}
	if c.Gas != 60 {
		t.Fatalf("failed UseGas must not deduct, gas = %d", c.Gas)
	}
	c.RefundGas(15)
	if c.Gas != 75 {
		t.Fatalf("gas after refund = %d, want 75", c.Gas)
	}
}

func TestContractGetOpPastEnd(t *testing.T) {
	c := NewContract(types.Address{}, types.Address{}, nil, 0)
	c.Code = []byte{byte(ADD)}
	if op := c.GetOp(0); op != ADD {
		t.Errorf("GetOp(0) = %v", op)
	}
	if op := c.GetOp(5); op != STOP {
		t.Errorf("GetOp past end = %v, want STOP", op)
	}
}

func TestValidJumpdest(t *testing.T) {
	c := NewContract(types.Address{}, types.Address{}, nil, 0)
	// JUMPDEST, PUSH2 <0x5b 0x5b>, JUMPDEST
	c.Code = []byte{byte(JUMPDEST), byte(PUSH2), 0x5b, 0x5b, byte(JUMPDEST)}

	cases := []struct {
		dest  uint64
		valid bool
	}{
		{0, true},  // real JUMPDEST
		{1, false}, // PUSH2 opcode
		{2, false}, // JUMPDEST byte inside push data
		{3, false},
		{4, true}, // real JUMPDEST after push data
		{5, false},
		{1 << 32, false},
	}
	for _, tc := range cases {
		dest := uint256.NewInt(tc.dest)
		if got := c.validJumpdest(dest); got != tc.valid {
			t.Errorf("validJumpdest(%d) = %v, want %v", tc.dest, got, tc.valid)
		}
	}
}

func TestContractNilValue(t *testing.T) {
	c := NewContract(types.Address{}, types.Address{}, nil, 0)
	if c.Value == nil || !c.Value.IsZero() {
		t.Fatal("nil value must normalize to zero")
	}
}
