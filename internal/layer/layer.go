// Package layer 在生成好的素数/合数序列上构建只读分解表，并提供双射校验。
//
// - Build：以 VoidRule 计算每个素数的 Void，一次性物化全部 LayerRecord；
// - Decompose：O(1) 查表；
// - Verify：比较 V(Pk) 与 C(k-3)，k-3 < 1 的索引跳过且不计入分母。
package layer

import (
	"context"
	"fmt"

	"primelayer/pkg/contract"
)

// DefaultMaxMismatches: 校验结果保留的失配样本上限。
const DefaultMaxMismatches = 20

// Table 为只读分解表；构建后并发读取安全。
type Table struct {
	rule       string
	records    []contract.LayerRecord
	composites []int64
}

// Build 依据序列与层构造规则构建分解表。
// 规则只接收素数序列；合数序列仅留作校验对照。
func Build(ctx context.Context, seq contract.Sequences, rule contract.VoidRule) (*Table, error) {
	if rule == nil {
		return nil, fmt.Errorf("%w: nil void rule", contract.ErrInvalidInput)
	}
	voids, err := rule.Voids(ctx, seq.Primes)
	if err != nil {
		return nil, fmt.Errorf("voids: %w", err)
	}
	if len(voids) != len(seq.Primes) {
		return nil, fmt.Errorf("%w: %d voids for %d primes", contract.ErrInvariantViolation, len(voids), len(seq.Primes))
	}
	recs := make([]contract.LayerRecord, len(voids))
	for i, v := range voids {
		p := seq.Primes[i]
		s := p - v
		if v < 0 || s <= 0 {
			return nil, fmt.Errorf("%w: k=%d void %d not in [0,%d)", contract.ErrInvariantViolation, i+1, v, p)
		}
		recs[i] = contract.LayerRecord{K: i + 1, P: p, V: v, S: s, Ratio: float64(p) / float64(s)}
	}
	comp := make([]int64, len(seq.Composites))
	copy(comp, seq.Composites)
	return &Table{rule: rule.Name(), records: recs, composites: comp}, nil
}

// Len 返回已分解的素数个数 N。
func (t *Table) Len() int { return len(t.records) }

// Rule 返回构建所用规则名。
func (t *Table) Rule() string { return t.rule }

// Decompose 返回第 k 个素数的分解（1 <= k <= N）。
func (t *Table) Decompose(k int) (contract.LayerRecord, error) {
	if k < 1 || k > len(t.records) {
		return contract.LayerRecord{}, fmt.Errorf("%w: k=%d outside [1,%d]", contract.ErrUndefinedIndex, k, len(t.records))
	}
	return t.records[k-1], nil
}

// Records 返回全部记录的副本。
func (t *Table) Records() []contract.LayerRecord {
	out := make([]contract.LayerRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Composites 返回与 Records 对齐的 C(k-3)；k<4 或合数不足处为 0。
func (t *Table) Composites() []int64 {
	out := make([]int64, len(t.records))
	for i := range out {
		if j := i + 1 - 3; j >= 1 && j <= len(t.composites) {
			out[i] = t.composites[j-1]
		}
	}
	return out
}

// Verify 校验 [from, to] 内的双射 V(Pk) = C(k-3)。
// to 超出表长返回 ErrInsufficientRange（由上层扩展生成后重试）。
func (t *Table) Verify(ctx context.Context, from, to, maxMismatches int) (contract.VerificationResult, error) {
	if from < 1 || from > to {
		return contract.VerificationResult{}, fmt.Errorf("%w: verify range [%d,%d]", contract.ErrInvalidInput, from, to)
	}
	if to > len(t.records) {
		return contract.VerificationResult{}, fmt.Errorf("%w: verify up to k=%d with %d primes", contract.ErrInsufficientRange, to, len(t.records))
	}
	if maxMismatches < 0 {
		maxMismatches = DefaultMaxMismatches
	}
	res := contract.VerificationResult{From: from, To: to}
	for k := from; k <= to; k++ {
		if k&0xffff == 0 {
			if err := ctx.Err(); err != nil {
				return contract.VerificationResult{}, err
			}
		}
		j := k - 3
		if j < 1 {
			res.Skipped++
			continue
		}
		if j > len(t.composites) {
			return contract.VerificationResult{}, fmt.Errorf("%w: composite C(%d) not generated", contract.ErrInsufficientRange, j)
		}
		res.Total++
		v := t.records[k-1].V
		c := t.composites[j-1]
		if v == c {
			res.Matches++
			continue
		}
		res.MismatchTotal++
		if len(res.Mismatches) < maxMismatches {
			res.Mismatches = append(res.Mismatches, contract.Mismatch{K: k, Void: v, Composite: c})
		}
	}
	if res.Total > 0 {
		res.Accuracy = 100 * float64(res.Matches) / float64(res.Total)
	}
	return res, nil
}
