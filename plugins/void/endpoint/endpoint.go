package endpoint

import (
	"context"
	"fmt"

	"primelayer/pkg/contract"
)

// Options: 层构造的可选配置。
type Options struct {
	// BaseLayer: 基础层素数个数，其 Void 依次取 1..BaseLayer。<=0 采用默认 3。
	BaseLayer int `json:"base_layer"`
}

// Rule 实现“端点”层构造：
//   - 基础层：前 BaseLayer 个素数的 Void 依次为 1, 2, ..., BaseLayer；
//   - 其后每个素数 Pk 的 Void 为尚未成为端点的最小正整数；
//   - 每一步结束后 Vk 与 Pk 均成为端点。
//
// 端点集合单调增长，因此最小空位指针只前进不回退，整体 O(P_N)。
type Rule struct {
	base int
}

// New 创建端点规则。
func New(opts *Options) *Rule {
	b := 3
	if opts != nil && opts.BaseLayer > 0 {
		b = opts.BaseLayer
	}
	return &Rule{base: b}
}

var _ contract.VoidRule = (*Rule)(nil)

func (r *Rule) Name() string { return "endpoint" }

// Voids 为每个素数计算 Void；primes 须严格递增。
func (r *Rule) Voids(ctx context.Context, primes []int64) ([]int64, error) {
	n := len(primes)
	if n == 0 {
		return nil, nil
	}
	for i := 1; i < n; i++ {
		if primes[i] <= primes[i-1] {
			return nil, fmt.Errorf("%w: primes not strictly increasing at k=%d", contract.ErrInvalidInput, i+1)
		}
	}
	if primes[0] < 2 {
		return nil, fmt.Errorf("%w: first prime %d", contract.ErrInvalidInput, primes[0])
	}
	top := primes[n-1]
	if int64(r.base) > top {
		top = int64(r.base)
	}
	endpoints := newBitset(top + 1)
	out := make([]int64, n)
	var hole int64 = 1
	for i, p := range primes {
		if i&0xffff == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var v int64
		if i < r.base {
			v = int64(i + 1)
		} else {
			for hole <= top && endpoints.has(hole) {
				hole++
			}
			v = hole
		}
		if v >= p {
			return nil, fmt.Errorf("%w: void %d not below prime %d at k=%d", contract.ErrInvariantViolation, v, p, i+1)
		}
		endpoints.set(v)
		endpoints.set(p)
		out[i] = v
	}
	return out, nil
}

// bitset: 固定容量位图。
type bitset []uint64

func newBitset(n int64) bitset { return make(bitset, (n+63)/64) }

func (b bitset) set(i int64)      { b[i>>6] |= 1 << (uint(i) & 63) }
func (b bitset) has(i int64) bool { return b[i>>6]&(1<<(uint(i)&63)) != 0 }
