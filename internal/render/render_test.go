package render

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"primelayer/pkg/contract"
)

func sampleReport() contract.AnalysisReport {
	return contract.AnalysisReport{
		Primes: 10000,
		Verification: contract.VerificationResult{
			From: 1, To: 10000, Total: 9997, Matches: 9997, Skipped: 3, Accuracy: 100,
		},
		Samples: []contract.LayerRecord{
			{K: 10, P: 29, V: 14, S: 15, Ratio: 29.0 / 15.0},
			{K: 10000, P: 104729, V: 11371, S: 93358, Ratio: 104729.0 / 93358.0},
		},
		Windows: []contract.WindowStat{
			{Top: 10000, From: 9000, To: 10000, Count: 1001, AvgPrime: 98940.33, Constant: 3.4475, RelError: 0.94},
		},
		Constant: contract.ConstantStats{MinPrime: 1000, Samples: 9832, Mean: 3.4616, StdDev: 0.0279, RelError: 1.36},
		Convergence: []contract.ConvergencePoint{
			{Magnitude: 2, P: big.NewInt(101), V: big.NewInt(35), C: 3.742920733184364, RelError: 9.6, Derivation: contract.DerivationLayer, Backend: "float64"},
			{Magnitude: 30, P: new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil), V: big.NewInt(7), C: 3.41, RelError: 0.1, Derivation: contract.DerivationAsymptotic, Backend: "bigfloat", LowConfidence: true},
		},
		FinalConstant:  3.41,
		FinalMagnitude: 30,
		Target:         contract.Target,
		Skipped:        contract.SkipCounts{Bijection: 3, Convergence: 1},
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf).Report(sampleReport()))
	out := buf.String()
	for _, want := range []string{
		"N = 10,000",
		"104,729",
		"9,997/9,997 匹配（100.00%）",
		"样本 9,832",
		"9,000–10,000",
		"10^2",
		"3.742921",
		"3.410000*",
		"100000000000…（31 位）",
		"跳过：无定义 1，精度不足 0",
		"低置信",
		"10^30 处 c = 3.4100000000",
	} {
		require.Contains(t, out, want)
	}
	// 非 TTY 输出不含 ANSI 转义
	require.NotContains(t, out, "\x1b[")
}

func TestVerificationMismatches(t *testing.T) {
	var buf bytes.Buffer
	res := contract.VerificationResult{
		From: 1, To: 100, Total: 97, Skipped: 3, MismatchTotal: 97,
		Mismatches: []contract.Mismatch{{K: 4, Void: 5, Composite: 4}},
	}
	require.NoError(t, New(&buf).Verification(res))
	out := buf.String()
	require.Contains(t, out, "0/97 匹配")
	require.Contains(t, out, "C(k-3)")
	require.Contains(t, out, "另有 96 处失配")
}

func TestEmptySections(t *testing.T) {
	var buf bytes.Buffer
	rep := contract.AnalysisReport{Primes: 3, FinalMagnitude: -1, Target: contract.Target}
	require.NoError(t, New(&buf).Report(rep))
	out := buf.String()
	require.Contains(t, out, "无样本")
	require.NotContains(t, out, "收敛")
	require.False(t, strings.Contains(out, "处 c ="))

	buf.Reset()
	require.NoError(t, New(&buf).Convergence(nil, 1, 2))
	require.Contains(t, buf.String(), "无定义 1，精度不足 2")
}

// 常数视图同时给出均值统计与收敛表
func TestConstantView(t *testing.T) {
	rep := sampleReport()
	var buf bytes.Buffer
	require.NoError(t, New(&buf).Constant(rep.Constant, rep.Convergence, 1, 0))
	out := buf.String()
	require.Contains(t, out, "常数均值（P > 1,000）")
	require.Contains(t, out, "样本 9,832 | 均值 3.461600 | 标准差 0.027900")
	require.Contains(t, out, "10^2")
	require.Contains(t, out, "无定义 1，精度不足 0")
	require.NotContains(t, out, "双射校验")
}

func TestBigDisplay(t *testing.T) {
	require.Equal(t, "", bigDisplay(nil))
	require.Equal(t, "1,000,003", bigDisplay(big.NewInt(1000003)))
	huge := new(big.Int).Exp(big.NewInt(10), big.NewInt(1000), nil)
	require.Equal(t, "100000000000…（1001 位）", bigDisplay(huge))
}
