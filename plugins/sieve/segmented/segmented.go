package segmented

import (
	"context"
	"errors"
	"fmt"
	"math"

	"primelayer/pkg/contract"
)

// Options 为分段筛的可选配置（最小必要）。
type Options struct {
	// SegmentSize: 每段整数个数。<=0 采用默认 1<<16。
	SegmentSize int `json:"segment_size"`
	// Growth: 区间不足时的扩展倍率。<=1 采用默认 1.5。
	Growth float64 `json:"growth"`
}

// Sieve 实现分段埃氏筛；无内部状态，可复用。
type Sieve struct {
	segSize int
	growth  float64
}

// New 创建分段筛。
func New(opts *Options) *Sieve {
	seg := 1 << 16
	growth := 1.5
	if opts != nil {
		if opts.SegmentSize > 0 {
			seg = opts.SegmentSize
		}
		if opts.Growth > 1 {
			growth = opts.Growth
		}
	}
	return &Sieve{segSize: seg, growth: growth}
}

var _ contract.Generator = (*Sieve)(nil)

// EstimateBound 依据素数定理估计前 n 个素数所需的上界。
func EstimateBound(n int) int64 {
	if n <= 0 {
		return 0
	}
	if n < 6 {
		return 15
	}
	fn := float64(n)
	return int64(fn * (math.Log(fn) + math.Log(math.Log(fn)) + 2))
}

// Generate 按 Count 或 Bound 生成序列。
// Count 模式：先按估计上界筛选，不足时扩展区间继续筛新增段（不重算已筛部分）。
func (s *Sieve) Generate(ctx context.Context, req contract.GenerateRequest) (contract.Sequences, error) {
	if req.Count < 0 || req.Bound < 0 {
		return contract.Sequences{}, fmt.Errorf("%w: negative request %+v", contract.ErrInvalidInput, req)
	}
	if req.Count > 0 && req.Bound > 0 {
		return contract.Sequences{}, fmt.Errorf("%w: count and bound are exclusive", contract.ErrInvalidInput)
	}
	if req.Count == 0 && req.Bound == 0 {
		return contract.Sequences{}, nil
	}
	if req.Bound > 0 {
		acc := newAccumulator(0, 0)
		if err := s.sieveRange(ctx, acc, req.Bound); err != nil {
			return contract.Sequences{}, err
		}
		return acc.result(req.Bound), nil
	}

	acc := newAccumulator(req.Count, req.Count)
	limit := EstimateBound(req.Count)
	for {
		err := s.sieveRange(ctx, acc, limit)
		if err == nil {
			return acc.result(acc.last), nil
		}
		if !errors.Is(err, contract.ErrInsufficientRange) {
			return contract.Sequences{}, err
		}
		// 区间不足：扩展上界，仅继续筛新增部分
		next := int64(float64(limit) * s.growth)
		if next <= limit {
			next = limit + 1
		}
		limit = next
	}
}

// accumulator 跨扩展累积筛选结果。
type accumulator struct {
	wantPrimes     int // 0 表示不限
	wantComposites int // 0 表示不限
	primes         []int64
	composites     []int64
	next           int64 // 下一个待筛整数
	last           int64 // 已覆盖上界
	base           []int64
	baseLimit      int64
}

func newAccumulator(wantPrimes, wantComposites int) *accumulator {
	a := &accumulator{wantPrimes: wantPrimes, wantComposites: wantComposites, next: 2, last: 1}
	if wantPrimes > 0 {
		a.primes = make([]int64, 0, wantPrimes)
	}
	if wantComposites > 0 {
		a.composites = make([]int64, 0, wantComposites)
	}
	return a
}

func (a *accumulator) donePrimes() bool {
	return a.wantPrimes > 0 && len(a.primes) >= a.wantPrimes
}

func (a *accumulator) doneComposites() bool {
	return a.wantComposites > 0 && len(a.composites) >= a.wantComposites
}

func (a *accumulator) result(limit int64) contract.Sequences {
	return contract.Sequences{Primes: a.primes, Composites: a.composites, Limit: limit}
}

// sieveRange 将 acc 推进到 limit。Count 模式下素数凑齐即停止；
// 到达 limit 仍不足时返回 ErrInsufficientRange。
func (s *Sieve) sieveRange(ctx context.Context, acc *accumulator, limit int64) error {
	if acc.next <= limit {
		acc.ensureBase(limit)
	}
	mark := make([]bool, s.segSize)
	for lo := acc.next; lo <= limit; lo += int64(s.segSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := lo + int64(s.segSize) - 1
		if hi > limit {
			hi = limit
		}
		seg := mark[:hi-lo+1]
		for i := range seg {
			seg[i] = false
		}
		for _, p := range acc.base {
			if p*p > hi {
				break
			}
			start := p * p
			if start < lo {
				start = (lo + p - 1) / p * p
			}
			for m := start; m <= hi; m += p {
				seg[m-lo] = true
			}
		}
		for i, composite := range seg {
			n := lo + int64(i)
			if n < 2 {
				continue
			}
			if composite {
				if n >= 4 && !acc.doneComposites() {
					acc.composites = append(acc.composites, n)
				}
				continue
			}
			if acc.donePrimes() {
				continue
			}
			acc.primes = append(acc.primes, n)
			if acc.donePrimes() {
				acc.last = n
				acc.next = n + 1
				return nil
			}
		}
		acc.last = hi
		acc.next = hi + 1
	}
	if acc.wantPrimes > 0 && !acc.donePrimes() {
		return fmt.Errorf("%w: %d of %d primes below %d", contract.ErrInsufficientRange, len(acc.primes), acc.wantPrimes, limit)
	}
	return nil
}

// ensureBase 确保基素数覆盖 sqrt(limit)。
func (a *accumulator) ensureBase(limit int64) {
	r := isqrt(limit)
	if r <= a.baseLimit {
		return
	}
	a.base = simpleSieve(r)
	a.baseLimit = r
}

// simpleSieve 返回 <= n 的全部素数（n 为 sqrt 级别，直接整段筛）。
func simpleSieve(n int64) []int64 {
	if n < 2 {
		return nil
	}
	comp := make([]bool, n+1)
	out := make([]int64, 0, n/4+1)
	for i := int64(2); i <= n; i++ {
		if comp[i] {
			continue
		}
		out = append(out, i)
		for j := i * i; j <= n; j += i {
			comp[j] = true
		}
	}
	return out
}

func isqrt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	r := int64(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
