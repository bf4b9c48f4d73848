// Package constant 计算经验常数 c = (P/S - 1)·ln(P)·ln(ln(P)) 及其与 2+√2 的偏差。
//
// 数量级 10^m 上的 V 依序取自三条推导链（按 10^m 与上限比较，P 可略超上限）：
//   - layer：10^m 不超过 SieveLimit，直接筛出至 P 的全部素数并运行层构造规则；
//   - counted：10^m 不超过 ExactLimit，以精确 π(P) 得到索引 k，V 为第 k-3 个合数；
//   - asymptotic：更大量级以对数积分估计 k 与 V，标记低置信。
//
// 数值计算交给 contract.Numeric；无定义点与精度不足点计入跳过数而非失败。
package constant

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"

	"primelayer/internal/primecount"
	"primelayer/pkg/contract"
	"primelayer/plugins/numeric/fixed"
)

// 默认值。
const (
	DefaultSieveLimit int64 = 20_000_000
	DefaultExactLimit int64 = 10_000_000_000
	DefaultMinPrime   int64 = 1000
)

// DefaultMagnitudes: 默认收敛采样的数量级。
var DefaultMagnitudes = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 20, 50, 100, 200, 500, 1000}

// DefaultSampleKs: 样例分解的索引。
var DefaultSampleKs = []int{4, 10, 100, 1000, 5000, 10000}

// Settings 常数分析参数；零值字段采用默认。
type Settings struct {
	SieveLimit int64
	ExactLimit int64
	MinPrime   int64
}

// WithDefaults 返回零值字段替换为默认值后的设置。
func (s Settings) WithDefaults() Settings {
	if s.SieveLimit <= 0 {
		s.SieveLimit = DefaultSieveLimit
	}
	if s.ExactLimit <= 0 {
		s.ExactLimit = DefaultExactLimit
	}
	if s.ExactLimit > primecount.MaxExact {
		s.ExactLimit = primecount.MaxExact
	}
	if s.MinPrime <= 0 {
		s.MinPrime = DefaultMinPrime
	}
	return s
}

// Analyzer 为无状态分析器；组件均为同步实现。
type Analyzer struct {
	gen  contract.Generator
	rule contract.VoidRule
	num  contract.Numeric
	set  Settings
}

// New 创建分析器。
func New(gen contract.Generator, rule contract.VoidRule, num contract.Numeric, set Settings) *Analyzer {
	return &Analyzer{gen: gen, rule: rule, num: num, set: set.WithDefaults()}
}

// Result 为一组数量级的分析结果。
type Result struct {
	Points []contract.ConvergencePoint
	// Skipped: ln(ln(P)) <= 0 或索引无定义；PrecisionSkipped: 数值后端无法表示。
	Skipped          int
	PrecisionSkipped int
}

// Magnitudes 对去重升序后的数量级逐一计算收敛点。
func (a *Analyzer) Magnitudes(ctx context.Context, ms []int) (Result, error) {
	ms = normalize(ms)
	if len(ms) > 0 && ms[0] < 0 {
		return Result{}, fmt.Errorf("%w: negative magnitude %d", contract.ErrInvalidInput, ms[0])
	}
	// 先求各数量级的 P，再一次性筛出 layer 链需要的最大区间
	primes := make([]*big.Int, len(ms))
	var layerMax int64
	for i, m := range ms {
		p, err := primecount.NextPrime(ctx, primecount.Pow10(m))
		if err != nil {
			return Result{}, err
		}
		primes[i] = p
		if a.chain(m, p) == contract.DerivationLayer && p.Int64() > layerMax {
			layerMax = p.Int64()
		}
	}
	var lt *layerLookup
	if layerMax > 0 {
		var err error
		if lt, err = a.buildLookup(ctx, layerMax); err != nil {
			return Result{}, err
		}
	}

	var res Result
	for i, m := range ms {
		pt, err := a.point(ctx, m, primes[i], lt)
		switch {
		case err == nil:
			res.Points = append(res.Points, pt)
		case errors.Is(err, contract.ErrUndefinedIndex):
			res.Skipped++
		case errors.Is(err, contract.ErrPrecisionLoss):
			res.PrecisionSkipped++
		default:
			return Result{}, fmt.Errorf("magnitude %d: %w", m, err)
		}
	}
	return res, nil
}

// Point 计算单个数量级；无定义时返回 ErrUndefinedIndex。
func (a *Analyzer) Point(ctx context.Context, m int) (contract.ConvergencePoint, error) {
	res, err := a.Magnitudes(ctx, []int{m})
	if err != nil {
		return contract.ConvergencePoint{}, err
	}
	if len(res.Points) == 0 {
		if res.PrecisionSkipped > 0 {
			return contract.ConvergencePoint{}, fmt.Errorf("%w: magnitude %d", contract.ErrPrecisionLoss, m)
		}
		return contract.ConvergencePoint{}, fmt.Errorf("%w: magnitude %d", contract.ErrUndefinedIndex, m)
	}
	return res.Points[0], nil
}

// chain 按 10^m 与各上限的关系选择推导链。
func (a *Analyzer) chain(m int, p *big.Int) contract.Derivation {
	base := primecount.Pow10(m)
	if !base.IsInt64() || !p.IsInt64() {
		return contract.DerivationAsymptotic
	}
	switch {
	case base.Int64() <= a.set.SieveLimit:
		return contract.DerivationLayer
	case base.Int64() <= a.set.ExactLimit && p.Int64() <= primecount.MaxExact:
		return contract.DerivationCounted
	}
	return contract.DerivationAsymptotic
}

func (a *Analyzer) point(ctx context.Context, m int, p *big.Int, lt *layerLookup) (contract.ConvergencePoint, error) {
	var (
		k, v *big.Int
		der  contract.Derivation
	)
	switch a.chain(m, p) {
	case contract.DerivationLayer:
		kk, vv, err := lt.find(p.Int64())
		if err != nil {
			return contract.ConvergencePoint{}, err
		}
		k, v, der = big.NewInt(int64(kk)), big.NewInt(vv), contract.DerivationLayer
	case contract.DerivationCounted:
		kk, err := primecount.Pi(ctx, p.Int64())
		if err != nil {
			return contract.ConvergencePoint{}, err
		}
		if kk-3 < 1 {
			return contract.ConvergencePoint{}, fmt.Errorf("%w: k=%d has no composite partner", contract.ErrUndefinedIndex, kk)
		}
		vv, err := primecount.NthComposite(ctx, kk-3)
		if err != nil {
			return contract.ConvergencePoint{}, err
		}
		k, v, der = big.NewInt(kk), big.NewInt(vv), contract.DerivationCounted
	default:
		kk, err := primecount.PiEstimateInt(p)
		if err != nil {
			return contract.ConvergencePoint{}, err
		}
		j := new(big.Int).Sub(kk, big.NewInt(3))
		vv, err := primecount.NthCompositeEstimate(j)
		if err != nil {
			return contract.ConvergencePoint{}, err
		}
		k, v, der = kk, vv, contract.DerivationAsymptotic
	}
	s := new(big.Int).Sub(p, v)
	if s.Sign() <= 0 {
		return contract.ConvergencePoint{}, fmt.Errorf("%w: magnitude %d void %s >= prime", contract.ErrInvariantViolation, m, v)
	}
	est, err := a.num.Constant(p, s)
	if err != nil {
		return contract.ConvergencePoint{}, err
	}
	abs := math.Abs(est.Value - contract.Target)
	return contract.ConvergencePoint{
		Magnitude:     m,
		K:             k,
		P:             p,
		V:             v,
		S:             s,
		C:             est.Value,
		AbsError:      abs,
		RelError:      100 * abs / contract.Target,
		Derivation:    der,
		Backend:       est.Backend,
		LowConfidence: est.LowConfidence || der == contract.DerivationAsymptotic,
	}, nil
}

// layerLookup 为 layer 链筛出的素数与 Void。
type layerLookup struct {
	limit  int64
	primes []int64
	voids  []int64
}

func (a *Analyzer) buildLookup(ctx context.Context, limit int64) (*layerLookup, error) {
	seq, err := a.gen.Generate(ctx, contract.GenerateRequest{Bound: limit})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	voids, err := a.rule.Voids(ctx, seq.Primes)
	if err != nil {
		return nil, fmt.Errorf("voids: %w", err)
	}
	return &layerLookup{limit: limit, primes: seq.Primes, voids: voids}, nil
}

// find 返回素数 p 的索引 k 与 Void。
func (l *layerLookup) find(p int64) (int, int64, error) {
	i := sort.Search(len(l.primes), func(i int) bool { return l.primes[i] >= p })
	if i == len(l.primes) || l.primes[i] != p {
		return 0, 0, fmt.Errorf("%w: %d not in sieved primes", contract.ErrInvariantViolation, p)
	}
	return i + 1, l.voids[i], nil
}

// Stats 计算 P > minPrime 的全体记录上的常数均值与总体标准差。
// 无样本时返回零值统计（Samples=0）。
func Stats(recs []contract.LayerRecord, minPrime int64) contract.ConstantStats {
	st := contract.ConstantStats{MinPrime: minPrime}
	var cs []float64
	for _, r := range recs {
		if r.P <= minPrime || r.S <= 0 {
			continue
		}
		c, err := fixed.Constant64(r.P, r.S)
		if err != nil {
			continue
		}
		cs = append(cs, c)
	}
	if len(cs) == 0 {
		return st
	}
	mean, sd := meanStd(cs)
	st.Samples = len(cs)
	st.Mean = mean
	st.StdDev = sd
	st.AbsError = math.Abs(mean - contract.Target)
	st.RelError = 100 * st.AbsError / contract.Target
	return st
}

// Windows 按采样窗口聚合记录：AvgPrime 取窗口内全部记录，
// 常数仅取 P > 10 的记录；窗口内无可用常数时不输出该窗口。
func Windows(ctx context.Context, sampler contract.Sampler, recs []contract.LayerRecord) ([]contract.WindowStat, error) {
	ws, err := sampler.Windows(ctx, len(recs))
	if err != nil {
		return nil, err
	}
	var out []contract.WindowStat
	for _, w := range ws {
		if w.From < 1 || w.To > len(recs) || w.From > w.To {
			return nil, fmt.Errorf("%w: window [%d,%d] outside [1,%d]", contract.ErrInvariantViolation, w.From, w.To, len(recs))
		}
		var psum float64
		var cs []float64
		for _, r := range recs[w.From-1 : w.To] {
			psum += float64(r.P)
			if r.P <= 10 || r.S <= 0 {
				continue
			}
			if c, err := fixed.Constant64(r.P, r.S); err == nil {
				cs = append(cs, c)
			}
		}
		if len(cs) == 0 {
			continue
		}
		mean, _ := meanStd(cs)
		out = append(out, contract.WindowStat{
			Top:      w.Top,
			From:     w.From,
			To:       w.To,
			Count:    w.To - w.From + 1,
			AvgPrime: psum / float64(w.To-w.From+1),
			Constant: mean,
			RelError: 100 * math.Abs(mean-contract.Target) / contract.Target,
		})
	}
	return out, nil
}

// Samples 挑选给定索引处的记录（越界索引忽略）。
func Samples(recs []contract.LayerRecord, ks []int) []contract.LayerRecord {
	var out []contract.LayerRecord
	for _, k := range normalize(ks) {
		if k >= 1 && k <= len(recs) {
			out = append(out, recs[k-1])
		}
	}
	return out
}

func meanStd(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

// normalize 去重并升序。
func normalize(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	uniq := out[:0]
	for i, v := range out {
		if i == 0 || v != out[i-1] {
			uniq = append(uniq, v)
		}
	}
	return uniq
}
