package cellstore

import (
	"fmt"
)

// DefaultMaxValueSize bounds a single stored value unless overridden by
// Options.MaxValueSize.
const DefaultMaxValueSize = 16 * 1024

// CostModel prices host operations. Reads and writes pay a base cost per
// round-trip plus a per-byte cost for the bytes moved.
type CostModel struct {
	ReadBase  uint64
	WriteBase uint64
	ClearBase uint64
	PerByte   uint64
}

var DefaultCostModel = CostModel{
	ReadBase:  200,
	WriteBase: 2000,
	ClearBase: 500,
	PerByte:   1,
}

type meter struct {
	costs  CostModel
	budget uint64 // 0 means unlimited
	used   uint64
}

func (m *meter) charge(op string, key Key, base uint64, n int) error {
	cost := base + uint64(n)*m.costs.PerByte
	if m.budget != 0 && m.used+cost > m.budget {
		return hostErr(op, key, fmt.Errorf("%w: used %d + %d > %d", ErrBudgetExhausted, m.used, cost, m.budget))
	}
	m.used += cost
	return nil
}
