package vm

import "fmt"

// Fork identifies a protocol revision. Forks are ordered: every fork
// includes the behavior of all earlier forks plus its own changes.
type Fork int

const (
	Frontier Fork = iota
	Homestead
	TangerineWhistle // EIP-150 gas repricing and 63/64 call forwarding
	SpuriousDragon   // EIP-158/161/170
	Byzantium
	Constantinople
	Petersburg
	Istanbul
	Berlin
	London
	Merge
	Shanghai
	Cancun
)

var forkNames = [...]string{
	Frontier:         "Frontier",
	Homestead:        "Homestead",
	TangerineWhistle: "TangerineWhistle",
	SpuriousDragon:   "SpuriousDragon",
	Byzantium:        "Byzantium",
	Constantinople:   "Constantinople",
	Petersburg:       "Petersburg",
	Istanbul:         "Istanbul",
	Berlin:           "Berlin",
	London:           "London",
	Merge:            "Merge",
	Shanghai:         "Shanghai",
	Cancun:           "Cancun",
}

func (f Fork) String() string {
	if f >= Frontier && int(f) < len(forkNames) {
		return forkNames[f]
	}
	return fmt.Sprintf("fork %d", int(f))
}

// AtLeast reports whether f includes the rules introduced at other.
func (f Fork) AtLeast(other Fork) bool { return f >= other }

// Rules is the flattened rule set for a fork, consulted by the gas
// tables and the frame manager instead of repeated fork comparisons.
type Rules struct {
	Fork Fork

	IsHomestead        bool
	IsTangerineWhistle bool // EIP-150
	IsSpuriousDragon   bool // EIP-158/170
	IsByzantium        bool
	IsConstantinople   bool
	IsPetersburg       bool
	IsIstanbul         bool
	IsBerlin           bool // EIP-2929 access lists
	IsLondon           bool // EIP-3529/3541
	IsMerge            bool
	IsShanghai         bool // EIP-3855/3860
	IsCancun           bool // EIP-1153/4844/5656/6780
}

// RulesFor returns the flattened rule set for the given fork.
func RulesFor(f Fork) Rules {
	return Rules{
		Fork:               f,
		IsHomestead:        f.AtLeast(Homestead),
		IsTangerineWhistle: f.AtLeast(TangerineWhistle),
		IsSpuriousDragon:   f.AtLeast(SpuriousDragon),
		IsByzantium:        f.AtLeast(Byzantium),
		IsConstantinople:   f.AtLeast(Constantinople),
		IsPetersburg:       f.AtLeast(Petersburg),
		IsIstanbul:         f.AtLeast(Istanbul),
		IsBerlin:           f.AtLeast(Berlin),
		IsLondon:           f.AtLeast(London),
		IsMerge:            f.AtLeast(Merge),
		IsShanghai:         f.AtLeast(Shanghai),
		IsCancun:           f.AtLeast(Cancun),
	}
}

// RefundQuotient returns the divisor applied to gas used when capping
// the refund counter. EIP-3529 lowered the cap from 1/2 to 1/5.
func (r Rules) RefundQuotient() uint64 {
	if r.IsLondon {
		return RefundQuotientEIP3529
	}
	return RefundQuotient
}

// MaxCodeSize returns the deployed code size limit, or 0 if unlimited.
func (r Rules) MaxCodeSize() uint64 {
	if r.IsSpuriousDragon {
		return MaxCodeSize
	}
	return 0
}
