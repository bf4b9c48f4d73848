package fixed

import (
	"fmt"
	"math"
	"math/big"

	"primelayer/pkg/contract"
)

// SafeBits: float64 可精确表示的整数位宽。
const SafeBits = 53

// Backend: 双精度后端。P 超过 2^53 时结果标记为低置信；超出 float64 范围返回 ErrPrecisionLoss。
type Backend struct{}

// New 创建双精度后端。
func New() *Backend { return &Backend{} }

var _ contract.Numeric = (*Backend)(nil)

func (b *Backend) Name() string { return "float64" }

// Constant 计算 c = (P/S - 1)·ln(P)·ln(ln(P))。
func (b *Backend) Constant(p, s *big.Int) (contract.Estimate, error) {
	if err := checkArgs(p, s); err != nil {
		return contract.Estimate{}, err
	}
	pf, _ := new(big.Float).SetInt(p).Float64()
	sf, _ := new(big.Float).SetInt(s).Float64()
	vf, _ := new(big.Float).SetInt(new(big.Int).Sub(p, s)).Float64()
	if math.IsInf(pf, 0) {
		return contract.Estimate{}, fmt.Errorf("%w: P has %d bits", contract.ErrPrecisionLoss, p.BitLen())
	}
	c, err := constant(pf, vf, sf)
	if err != nil {
		return contract.Estimate{}, err
	}
	return contract.Estimate{Value: c, Backend: b.Name(), LowConfidence: p.BitLen() > SafeBits}, nil
}

// Constant64 为记录级快速路径（P 来自筛选区间，必在安全范围内）。
func Constant64(p, s int64) (float64, error) {
	if s <= 0 || s > p {
		return 0, fmt.Errorf("%w: sum %d outside (0,%d]", contract.ErrInvalidInput, s, p)
	}
	return constant(float64(p), float64(p-s), float64(s))
}

// constant 以 V/S 代替 P/S-1，避免相减抵消。
func constant(p, v, s float64) (float64, error) {
	lp := math.Log(p)
	if lp <= 1 {
		return 0, fmt.Errorf("%w: ln(ln(%g)) <= 0", contract.ErrUndefinedIndex, p)
	}
	return v / s * lp * math.Log(lp), nil
}

func checkArgs(p, s *big.Int) error {
	if p == nil || s == nil || s.Sign() <= 0 || s.Cmp(p) > 0 {
		return fmt.Errorf("%w: sum must be in (0,P]", contract.ErrInvalidInput)
	}
	return nil
}
