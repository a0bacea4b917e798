package orchestrator

import "github.com/KyungtackKim/hantas-torque-link/wire"

// blockRange is one tile of an address range produced by splitBlocks.
type blockRange struct {
	Address wire.Address
	Count   int
}

// splitBlocks tiles [addr, addr+count) into ceil(count/split) blocks of at
// most split registers each, addresses monotonically increasing, per
// spec.md §4.5's splitting rule and §8 invariant 8.
func splitBlocks(addr wire.Address, count, split int) []blockRange {
	if count <= 0 {
		return nil
	}
	if split <= 0 || split > count {
		split = count
	}
	blocks := (count + split - 1) / split
	out := make([]blockRange, 0, blocks)
	remaining := count
	cur := addr
	for i := 0; i < blocks; i++ {
		n := split
		if remaining < split {
			n = remaining
		}
		out = append(out, blockRange{Address: cur, Count: n})
		cur += wire.Address(n)
		remaining -= n
	}
	return out
}
