// Package primecount 提供精确素数计数、第 j 个非素数定位与大数估计。
//
// - Pi：Lucy–Hedgehog 组合算法，O(x^{3/4}) 时间、O(sqrt x) 空间；
// - NthComposite：以 Pi 反复逼近后局部筛补齐；
// - NextPrime：big.Int 上的最小可能素数 >= n；
// - PiEstimate / NthCompositeEstimate：对数积分渐近展开，适用于任意量级。
package primecount

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"primelayer/pkg/contract"
)

// MaxExact: Pi 支持的最大 x（两张 sqrt(x) 表约 16 MiB）。
const MaxExact int64 = 1_000_000_000_000

// Pi 返回 <= x 的素数个数。
func Pi(ctx context.Context, x int64) (int64, error) {
	if x < 2 {
		return 0, nil
	}
	if x > MaxExact {
		return 0, fmt.Errorf("%w: x=%d exceeds exact counting limit", contract.ErrInvalidInput, x)
	}
	r := isqrt(x)
	// small[v] = S(v)，large[i] = S(x/i)；初始为 [2..v] 的整数个数
	small := make([]int64, r+1)
	large := make([]int64, r+1)
	for v := int64(1); v <= r; v++ {
		small[v] = v - 1
		large[v] = x/v - 1
	}
	for p := int64(2); p <= r; p++ {
		if small[p] == small[p-1] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		sp := small[p-1]
		p2 := p * p
		for i := int64(1); i <= r && x/i >= p2; i++ {
			d := i * p
			var t int64
			if d <= r {
				t = large[d]
			} else {
				t = small[x/d]
			}
			large[i] -= t - sp
		}
		for v := r; v >= p2; v-- {
			small[v] -= small[v/p] - sp
		}
	}
	return large[1], nil
}

// CompositesUpTo 返回 <= x 的合数（>= 4 的非素数）个数。
func CompositesUpTo(ctx context.Context, x int64) (int64, error) {
	if x < 4 {
		return 0, nil
	}
	pi, err := Pi(ctx, x)
	if err != nil {
		return 0, err
	}
	return x - 1 - pi, nil
}

// NthComposite 返回第 j 个合数（1 起）。
// 先以计数函数迭代逼近到目标下方，再对剩余区间做局部筛计数。
func NthComposite(ctx context.Context, j int64) (int64, error) {
	if j < 1 {
		return 0, fmt.Errorf("%w: composite index %d", contract.ErrUndefinedIndex, j)
	}
	const window = 1 << 15
	// 合数密度约 1-1/ln x，初值取 j + j/ln j
	x := j + 3
	if j > 16 {
		x = j + int64(float64(j)/math.Log(float64(j)))
	}
	var have int64
	for iter := 0; ; iter++ {
		if x > MaxExact {
			return 0, fmt.Errorf("%w: composite index %d beyond exact range", contract.ErrInvalidInput, j)
		}
		c, err := CompositesUpTo(ctx, x)
		if err != nil {
			return 0, err
		}
		// 需 c < j：第 j 个合数严格位于 x 之后
		d := j - c
		if d >= 1 && d <= window {
			have = c
			break
		}
		if iter >= 64 {
			return 0, fmt.Errorf("%w: composite search did not converge for j=%d", contract.ErrInvariantViolation, j)
		}
		if d < 1 {
			d -= window / 2
		}
		x += d
		if x < 3 {
			x = 3
		}
	}
	// 局部筛：从 x+1 起补齐剩余 j-have 个合数
	need := j - have
	lo := x + 1
	for {
		hi := lo + window
		comp := sieveWindow(lo, hi)
		for i, isComp := range comp {
			n := lo + int64(i)
			if n >= 4 && isComp {
				need--
				if need == 0 {
					return n, nil
				}
			}
		}
		lo = hi + 1
	}
}

// sieveWindow 标记 [lo,hi] 内的非素数（n>=2 且有真因子；0/1 标记为 false）。
func sieveWindow(lo, hi int64) []bool {
	comp := make([]bool, hi-lo+1)
	r := isqrt(hi)
	for _, p := range smallPrimes(r) {
		start := p * p
		if start < lo {
			start = (lo + p - 1) / p * p
		}
		for m := start; m <= hi; m += p {
			comp[m-lo] = true
		}
	}
	return comp
}

func smallPrimes(n int64) []int64 {
	if n < 2 {
		return nil
	}
	sieve := make([]bool, n+1)
	var out []int64
	for i := int64(2); i <= n; i++ {
		if sieve[i] {
			continue
		}
		out = append(out, i)
		for j := i * i; j <= n; j += i {
			sieve[j] = true
		}
	}
	return out
}

// NextPrime 返回 >= n 的最小可能素数（Baillie-PSW + 20 轮 Miller-Rabin）。
func NextPrime(ctx context.Context, n *big.Int) (*big.Int, error) {
	two := big.NewInt(2)
	if n.Cmp(two) <= 0 {
		return two, nil
	}
	c := new(big.Int).Set(n)
	if c.Bit(0) == 0 {
		c.Add(c, big.NewInt(1))
	}
	for i := 0; ; i++ {
		if i&63 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if c.ProbablyPrime(20) {
			return c, nil
		}
		c.Add(c, two)
	}
}

// Pow10 返回 10^m。
func Pow10(m int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(m)), nil)
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
