package arbitrary

import (
	"fmt"
	"math/big"

	"github.com/ALTree/bigfloat"

	"primelayer/pkg/contract"
)

// Options: 任意精度后端选项。
type Options struct {
	// Prec: 最低浮点尾数位数。<=0 采用默认 256；实际取 max(Prec, bitlen(P)+128)。
	Prec uint `json:"prec"`
}

// Backend: math/big + bigfloat.Log 的任意精度后端。
// P、V、S 以大整数精确相减后再舍入到 Prec 位，对数在同一精度下计算。
type Backend struct {
	prec uint
}

// New 创建任意精度后端。
func New(opts *Options) *Backend {
	prec := uint(256)
	if opts != nil && opts.Prec > 0 {
		prec = opts.Prec
	}
	return &Backend{prec: prec}
}

var _ contract.Numeric = (*Backend)(nil)

func (b *Backend) Name() string { return "bigfloat" }

// Constant 计算 c = (P/S - 1)·ln(P)·ln(ln(P))。
func (b *Backend) Constant(p, s *big.Int) (contract.Estimate, error) {
	if p == nil || s == nil || s.Sign() <= 0 || s.Cmp(p) > 0 {
		return contract.Estimate{}, fmt.Errorf("%w: sum must be in (0,P]", contract.ErrInvalidInput)
	}
	prec := b.prec
	if need := uint(p.BitLen()) + 128; need > prec {
		prec = need
	}
	float := func() *big.Float { return new(big.Float).SetPrec(prec) }
	v := new(big.Int).Sub(p, s)
	pf := float().SetInt(p)
	ratio := float().Quo(float().SetInt(v), float().SetInt(s))

	lp := bigfloat.Log(pf)
	if lp.Cmp(big.NewFloat(1)) <= 0 {
		return contract.Estimate{}, fmt.Errorf("%w: ln(ln(%s)) <= 0", contract.ErrUndefinedIndex, p.String())
	}
	llp := bigfloat.Log(lp)

	c := float().Mul(ratio, lp)
	c.Mul(c, llp)
	out, _ := c.Float64()
	return contract.Estimate{Value: out, Backend: b.Name()}, nil
}
