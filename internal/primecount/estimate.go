package primecount

import (
	"fmt"
	"math/big"

	"github.com/ALTree/bigfloat"

	"primelayer/pkg/contract"
)

// EstimatePrec: 估计函数内部的最低 big.Float 精度（位）；
// 实际精度另加上 x 的二进制位数，保证整数部分精确。
const EstimatePrec uint = 256

func precFor(x *big.Float) uint {
	e := x.MantExp(nil)
	if e < 0 {
		e = 0
	}
	return EstimatePrec + uint(e)
}

// LiEstimate 以渐近级数 li(x) ~ x/L * Σ k!/L^k 估计对数积分（L = ln x）。
// 级数发散，取到最小项为止截断；要求 x > e。
func LiEstimate(x *big.Float) (*big.Float, error) {
	if x.Sign() <= 0 {
		return nil, fmt.Errorf("%w: li of non-positive value", contract.ErrInvalidInput)
	}
	prec := precFor(x)
	xv := new(big.Float).SetPrec(prec).Set(x)
	l := bigfloat.Log(xv)
	if l.Cmp(big.NewFloat(1)) <= 0 {
		return nil, fmt.Errorf("%w: li series needs ln x > 1", contract.ErrUndefinedIndex)
	}
	sum := new(big.Float).SetPrec(prec).SetInt64(1)
	term := new(big.Float).SetPrec(prec).SetInt64(1)
	prev := new(big.Float).SetPrec(prec).Set(term)
	kf := new(big.Float).SetPrec(prec)
	for k := int64(1); ; k++ {
		// term_k = term_{k-1} * k / L
		kf.SetInt64(k)
		term.Mul(term, kf)
		term.Quo(term, l)
		if term.Cmp(prev) >= 0 {
			break
		}
		sum.Add(sum, term)
		prev.Set(term)
	}
	out := new(big.Float).SetPrec(prec).Quo(xv, l)
	return out.Mul(out, sum), nil
}

// PiEstimate 估计 π(x) ≈ li(x) - li(sqrt x)/2。
func PiEstimate(x *big.Float) (*big.Float, error) {
	lx, err := LiEstimate(x)
	if err != nil {
		return nil, err
	}
	prec := precFor(x)
	root := new(big.Float).SetPrec(prec).Sqrt(new(big.Float).SetPrec(prec).Set(x))
	lr, err := LiEstimate(root)
	if err != nil {
		return nil, err
	}
	lr.Quo(lr, big.NewFloat(2))
	return lx.Sub(lx, lr), nil
}

// PiEstimateInt 为 PiEstimate 的整数版本，结果四舍五入。
func PiEstimateInt(x *big.Int) (*big.Int, error) {
	f, err := PiEstimate(new(big.Float).SetPrec(EstimatePrec + uint(x.BitLen())).SetInt(x))
	if err != nil {
		return nil, err
	}
	return round(f), nil
}

// NthCompositeEstimate 估计第 j 个合数：解 f(x) = x - (j+1) - π̃(x) = 0。
// π̃'(x) ≈ 1/ln x，采用牛顿迭代，通常数步即收敛到 0.5 以内。
func NthCompositeEstimate(j *big.Int) (*big.Int, error) {
	if j.Sign() <= 0 {
		return nil, fmt.Errorf("%w: composite index %s", contract.ErrUndefinedIndex, j)
	}
	prec := EstimatePrec + uint(j.BitLen()) + 8
	base := new(big.Float).SetPrec(prec).SetInt(j)
	base.Add(base, big.NewFloat(1))
	x := new(big.Float).SetPrec(prec).Set(base)
	// 起点过小会使 ln x <= 1，先抬到可估计范围
	if x.Cmp(big.NewFloat(16)) < 0 {
		x.SetInt64(16)
	}
	one := big.NewFloat(1)
	half := big.NewFloat(0.5)
	for iter := 0; iter < 64; iter++ {
		pi, err := PiEstimate(x)
		if err != nil {
			return nil, err
		}
		f := new(big.Float).SetPrec(prec).Sub(x, base)
		f.Sub(f, pi)
		// 导数 1 - 1/ln x
		d := new(big.Float).SetPrec(prec).Quo(one, bigfloat.Log(x))
		d.Sub(one, d)
		step := f.Quo(f, d)
		x = new(big.Float).SetPrec(prec).Sub(x, step)
		if step.Abs(step).Cmp(half) < 0 {
			return round(x), nil
		}
	}
	return nil, fmt.Errorf("%w: composite estimate did not converge for j=%s", contract.ErrInvariantViolation, j)
}

func round(f *big.Float) *big.Int {
	r := new(big.Float).SetPrec(f.Prec()).Add(f, big.NewFloat(0.5))
	out, _ := r.Int(nil)
	return out
}
