package contract

import "math/big"

// Estimate: 数值后端的计算结果。
type Estimate struct {
	Value   float64
	Backend string
	// LowConfidence: 输入超出后端的安全精度范围（PrecisionWarning）。
	LowConfidence bool
}

// Numeric: 计算 c = (P/S - 1)·ln(P)·ln(ln(P)) 的数值后端。
// 约束：
//  1. ln(ln(P)) <= 0 时返回 ErrUndefinedIndex；
//  2. 无法表示输入时返回 ErrPrecisionLoss；
//  3. 不修改入参。
type Numeric interface {
	Name() string
	Constant(p, s *big.Int) (Estimate, error)
}
