package report

import (
	"context"
	"fmt"
	"math/big"

	"primelayer/pkg/contract"
)

type assembler struct{}

// New 创建报告装配器；装配无可调参数。
func New() contract.Assembler { return &assembler{} }

// Assemble 校验各部分的次序不变量后深拷贝为只读报告；
// 不做任何计算，FinalConstant 取最大数量级的收敛点，无收敛点时退回记录均值。
func (a *assembler) Assemble(ctx context.Context, parts contract.ReportParts) (contract.AnalysisReport, error) {
	select {
	case <-ctx.Done():
		return contract.AnalysisReport{}, ctx.Err()
	default:
	}
	if err := contract.ValidateRecords(parts.Records); err != nil {
		return contract.AnalysisReport{}, fmt.Errorf("records: %w", err)
	}
	if err := contract.ValidateRecords(parts.Samples); err != nil {
		return contract.AnalysisReport{}, fmt.Errorf("samples: %w", err)
	}
	if err := contract.ValidateWindows(parts.Windows); err != nil {
		return contract.AnalysisReport{}, fmt.Errorf("windows: %w", err)
	}
	if err := contract.ValidatePoints(parts.Convergence); err != nil {
		return contract.AnalysisReport{}, fmt.Errorf("convergence: %w", err)
	}
	if len(parts.Composites) != 0 && len(parts.Composites) != len(parts.Records) {
		return contract.AnalysisReport{}, fmt.Errorf("%w: %d composites for %d records", contract.ErrInvariantViolation, len(parts.Composites), len(parts.Records))
	}

	rep := contract.AnalysisReport{
		Primes:         parts.Primes,
		Verification:   parts.Verification,
		Records:        append([]contract.LayerRecord(nil), parts.Records...),
		Samples:        append([]contract.LayerRecord(nil), parts.Samples...),
		Windows:        append([]contract.WindowStat(nil), parts.Windows...),
		Constant:       parts.Constant,
		Convergence:    copyPoints(parts.Convergence),
		FinalMagnitude: -1,
		Target:         contract.Target,
		Skipped: contract.SkipCounts{
			Bijection:   parts.Verification.Skipped,
			Convergence: parts.ConvergenceSkipped,
			Precision:   parts.PrecisionSkipped,
		},
		Composites: append([]int64(nil), parts.Composites...),
	}
	rep.Verification.Mismatches = append([]contract.Mismatch(nil), parts.Verification.Mismatches...)
	if n := len(rep.Convergence); n > 0 {
		last := rep.Convergence[n-1]
		rep.FinalConstant = last.C
		rep.FinalMagnitude = last.Magnitude
	} else if rep.Constant.Samples > 0 {
		rep.FinalConstant = rep.Constant.Mean
	}
	return rep, nil
}

func copyPoints(in []contract.ConvergencePoint) []contract.ConvergencePoint {
	if in == nil {
		return nil
	}
	out := make([]contract.ConvergencePoint, len(in))
	for i, p := range in {
		p.K = copyInt(p.K)
		p.P = copyInt(p.P)
		p.V = copyInt(p.V)
		p.S = copyInt(p.S)
		out[i] = p
	}
	return out
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

var _ contract.Assembler = (*assembler)(nil)
