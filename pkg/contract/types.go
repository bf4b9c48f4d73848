package contract

import (
	"math"
	"math/big"
)

// 常量：白银比 δs = 1+√2；目标常数 2+√2 = √2·δs。
var (
	SilverRatio = 1 + math.Sqrt2
	Target      = 2 + math.Sqrt2
)

// GenerateRequest: 生成请求。Count 与 Bound 至多一个为正；均为 0 时返回空序列。
type GenerateRequest struct {
	// Count: 需要的素数个数 N。
	Count int
	// Bound: 整数上界 M（含）。
	Bound int64
}

// Sequences: 同一整数区间上的素数序列与合数序列（1 起索引，切片内 0 起存放）。
// 约束：
// - Primes 严格递增且无缺口；
// - Composites 为 >= 4 的非素数，严格递增且连续；
// - 生成后只读。
type Sequences struct {
	Primes     []int64
	Composites []int64
	// Limit: 实际筛选覆盖的整数上界。
	Limit int64
}

// Prime 返回第 k 个素数（1 起）；越界返回 false。
func (s Sequences) Prime(k int) (int64, bool) {
	if k < 1 || k > len(s.Primes) {
		return 0, false
	}
	return s.Primes[k-1], true
}

// Composite 返回第 j 个合数（1 起）；越界返回 false。
func (s Sequences) Composite(j int) (int64, bool) {
	if j < 1 || j > len(s.Composites) {
		return 0, false
	}
	return s.Composites[j-1], true
}

// LayerRecord: 单个素数的分解 P = V + S。
type LayerRecord struct {
	K     int
	P     int64
	V     int64
	S     int64
	Ratio float64 // P/S
}

// Mismatch: 双射校验失败条目。
type Mismatch struct {
	K         int
	Void      int64
	Composite int64
}

// VerificationResult: 双射 V(Pk) = C(k-3) 的校验结果。
type VerificationResult struct {
	From, To int
	// Total: 参与比较的索引数（不含跳过项）。
	Total   int
	Matches int
	// Skipped: k-3 < 1 被排除的索引数。
	Skipped  int
	Accuracy float64 // 百分比
	// Mismatches: 失配样本（按上限截断）；MismatchTotal 为全部失配数。
	Mismatches    []Mismatch
	MismatchTotal int
}

// Derivation: 收敛点中 V 的来源。
type Derivation string

const (
	// DerivationLayer: 直接运行层构造规则得到。
	DerivationLayer Derivation = "layer"
	// DerivationCounted: 精确素数计数得到索引，按层构造的填充次序定位 V。
	DerivationCounted Derivation = "counted"
	// DerivationAsymptotic: 对数积分估计索引与 V（低置信）。
	DerivationAsymptotic Derivation = "asymptotic"
)

// ConvergencePoint: 单个数量级 10^m 上的经验常数。
type ConvergencePoint struct {
	Magnitude int
	K         *big.Int
	P         *big.Int
	V         *big.Int
	S         *big.Int
	C         float64
	// AbsError = |c - (2+√2)|；RelError 为百分比。
	AbsError      float64
	RelError      float64
	Derivation    Derivation
	Backend       string
	LowConfidence bool
}

// WindowStat: k 窗口 [0.9w, w] 上的平均比值统计。
type WindowStat struct {
	Top      int
	From, To int
	Count    int
	AvgPrime float64
	Constant float64
	RelError float64
}

// ConstantStats: P > MinPrime 全体记录上的常数均值与总体标准差。
type ConstantStats struct {
	MinPrime int64
	Samples  int
	Mean     float64
	StdDev   float64
	AbsError float64
	RelError float64
}

// SkipCounts: 被排除的条目计数（部分失败可见，而非静默丢弃）。
type SkipCounts struct {
	Bijection   int
	Convergence int
	Precision   int
}

// ReportParts: 装配器输入。
type ReportParts struct {
	Primes       int
	Verification VerificationResult
	Records      []LayerRecord
	Samples      []LayerRecord
	Windows      []WindowStat
	Constant     ConstantStats
	Convergence  []ConvergencePoint
	// ConvergenceSkipped/PrecisionSkipped 来自常数分析阶段。
	ConvergenceSkipped int
	PrecisionSkipped   int
	// Composites: 与 Records 对齐的 C(k-3)（k<4 为 0），仅用于导出行。
	Composites []int64
}

// AnalysisReport: 只读分析结果；呈现层（CLI/导出/绘图）的唯一输入。
type AnalysisReport struct {
	Primes        int
	Verification  VerificationResult
	Records       []LayerRecord
	Samples       []LayerRecord
	Windows       []WindowStat
	Constant      ConstantStats
	Convergence   []ConvergencePoint
	FinalConstant float64
	// FinalMagnitude: FinalConstant 对应的数量级；无有效点时为 -1。
	FinalMagnitude int
	Target         float64
	Skipped        SkipCounts
	// Composites: 与 Records 对齐的 C(k-3)，k<4 处为 0。
	Composites []int64
}
