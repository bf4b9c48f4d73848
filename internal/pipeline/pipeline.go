package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"

	"primelayer/internal/constant"
	"primelayer/internal/diag"
	"primelayer/internal/layer"
	"primelayer/pkg/contract"
	"primelayer/pkg/registry"
)

// - 单线程：各组件均为同步实现，Session 不做内部并发。
// - 生成缓存：同一 Session 内序列只增不减；校验区间超出已生成范围时先扩展生成。
// - 首错返回：任一阶段出错立即返回，记录分类码与指标。
// - 报告只读：呈现层（CLI/导出）仅消费 Assembler 输出的 AnalysisReport。

// Components 聚合运行所需的原子组件。
type Components struct {
	Generator contract.Generator
	VoidRule  contract.VoidRule
	Numeric   contract.Numeric
	Sampler   contract.Sampler
	Assembler contract.Assembler
	// Encoders: 按编码器名（csv/json/yaml）索引；导出时按扩展名选择。
	Encoders map[string]contract.Encoder
	// NewWriter: 以导出目录构造 Writer（目录随导出路径变化）。
	NewWriter func(dir string) (contract.Writer, error)
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	// Primes: 分析的素数个数 N；0 得到空报告。
	Primes int
	// VerifyFrom/VerifyTo: 双射校验区间；为 0 时取 [1, N]。
	VerifyFrom    int
	VerifyTo      int
	MaxMismatches int
	// Magnitudes: 收敛采样数量级；空则不做收敛分析。
	Magnitudes []int
	SampleKs   []int
	Constant   constant.Settings
	// Export: 导出路径；空则不导出。
	Export string
}

// Session 持有一次运行的组件、配置与已生成的分解表。
type Session struct {
	comp   Components
	set    Settings
	logger *diag.Logger
	table  *layer.Table
}

// NewSession 校验组件后创建会话；logger 为 nil 时不记录日志。
func NewSession(comp Components, set Settings, logger *diag.Logger) (*Session, error) {
	if err := sanity(comp, set); err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	if logger == nil {
		logger = diag.Nop()
	}
	// 均值统计与收敛分析共用同一份生效参数
	set.Constant = set.Constant.WithDefaults()
	return &Session{comp: comp, set: set, logger: logger}, nil
}

// Settings 返回会话的生效配置（常数参数已补默认值）。
func (s *Session) Settings() Settings { return s.set }

// Generate 确保至少已分解 n 个素数；已缓存足够时直接返回。n = 0 得到空表。
func (s *Session) Generate(ctx context.Context, n int) (*layer.Table, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: prime count %d", contract.ErrInvalidInput, n)
	}
	if s.table != nil && s.table.Len() >= n {
		return s.table, nil
	}
	if n == 0 {
		tab, err := layer.Build(ctx, contract.Sequences{}, s.comp.VoidRule)
		if err != nil {
			return nil, err
		}
		s.table = tab
		return tab, nil
	}
	kv := map[string]string{"count": strconv.Itoa(n)}
	st := s.begin("sieve", "generate", int64(n), kv)
	seq, err := s.comp.Generator.Generate(ctx, contract.GenerateRequest{Count: n})
	if err != nil {
		return nil, st.fail(err, "generate failed")
	}
	st.done("generate", int64(len(seq.Primes)))

	st = s.begin("layer", "build", int64(n), map[string]string{"rule": s.comp.VoidRule.Name()})
	tab, err := layer.Build(ctx, seq, s.comp.VoidRule)
	if err != nil {
		return nil, st.fail(err, "build failed")
	}
	st.done("build", int64(tab.Len()))
	s.table = tab
	return tab, nil
}

// Decompose 返回第 k 个素数的分解；k 超出已生成范围返回 ErrUndefinedIndex。
func (s *Session) Decompose(ctx context.Context, k int) (contract.LayerRecord, error) {
	tab, err := s.Generate(ctx, s.set.Primes)
	if err != nil {
		return contract.LayerRecord{}, err
	}
	return tab.Decompose(k)
}

// Verify 校验 [from, to] 内的双射；to 超出已生成范围时先扩展生成。
func (s *Session) Verify(ctx context.Context, from, to int) (contract.VerificationResult, error) {
	if from < 1 || from > to {
		return contract.VerificationResult{}, fmt.Errorf("%w: verify range [%d,%d]", contract.ErrInvalidInput, from, to)
	}
	tab, err := s.Generate(ctx, max(to, s.set.Primes))
	if err != nil {
		return contract.VerificationResult{}, err
	}
	st := s.begin("verify", "bijection", int64(to-from+1), map[string]string{
		"from": strconv.Itoa(from),
		"to":   strconv.Itoa(to),
	})
	res, err := tab.Verify(ctx, from, to, s.set.MaxMismatches)
	if err != nil {
		return contract.VerificationResult{}, st.fail(err, "verify failed")
	}
	if res.MismatchTotal > 0 {
		s.logger.Warn("verify", string(diag.CodeInvariant), "bijection mismatches", map[string]string{
			"mismatches": strconv.Itoa(res.MismatchTotal),
		})
	}
	st.done("bijection", int64(res.Total))
	return res, nil
}

// VerifyConfigured 按配置区间校验；未设置的端点取 [1, N]，N = 0 且未指定上界时返回空结果。
func (s *Session) VerifyConfigured(ctx context.Context) (contract.VerificationResult, error) {
	from, to := s.set.VerifyFrom, s.set.VerifyTo
	if from <= 0 {
		from = 1
	}
	if to <= 0 {
		to = s.set.Primes
	}
	if to == 0 {
		return contract.VerificationResult{}, nil
	}
	return s.Verify(ctx, from, to)
}

// MeanConstant 统计前 N 个素数中 P > min_prime 的常数均值与标准差。
func (s *Session) MeanConstant(ctx context.Context) (contract.ConstantStats, error) {
	tab, err := s.Generate(ctx, s.set.Primes)
	if err != nil {
		return contract.ConstantStats{}, err
	}
	recs := tab.Records()[:s.set.Primes]
	st := s.begin("constant", "stats", int64(len(recs)), nil)
	stats := constant.Stats(recs, s.set.Constant.MinPrime)
	st.done("stats", int64(stats.Samples))
	return stats, nil
}

// AnalyzeConstant 计算各数量级的收敛点；无定义与精度不足的数量级计入跳过数。
func (s *Session) AnalyzeConstant(ctx context.Context, ms []int) (constant.Result, error) {
	st := s.begin("constant", "magnitudes", int64(len(ms)), map[string]string{"backend": s.comp.Numeric.Name()})
	a := constant.New(s.comp.Generator, s.comp.VoidRule, s.comp.Numeric, s.set.Constant)
	res, err := a.Magnitudes(ctx, ms)
	if err != nil {
		return constant.Result{}, st.fail(err, "magnitudes failed")
	}
	if res.PrecisionSkipped > 0 {
		s.logger.Warn("constant", string(diag.CodePrecision), "magnitudes skipped", map[string]string{
			"count": strconv.Itoa(res.PrecisionSkipped),
		})
		diag.IncOp("constant", "magnitudes", "skip")
	}
	st.done("magnitudes", int64(len(res.Points)))
	return res, nil
}

// Analyze 执行完整分析并由 Assembler 装配报告。
// N = 0 时跳过生成、校验与收敛分析，装配空报告。
func (s *Session) Analyze(ctx context.Context) (contract.AnalysisReport, error) {
	n := s.set.Primes
	if n == 0 {
		return s.assemble(ctx, contract.ReportParts{
			Constant: constant.Stats(nil, s.set.Constant.MinPrime),
		})
	}
	tab, err := s.Generate(ctx, n)
	if err != nil {
		return contract.AnalysisReport{}, err
	}
	recs := tab.Records()[:n]
	comps := tab.Composites()[:n]

	ver, err := s.VerifyConfigured(ctx)
	if err != nil {
		return contract.AnalysisReport{}, err
	}

	stats, err := s.MeanConstant(ctx)
	if err != nil {
		return contract.AnalysisReport{}, err
	}
	st := s.begin("constant", "windows", int64(len(recs)), nil)
	wins, err := constant.Windows(ctx, s.comp.Sampler, recs)
	if err != nil {
		return contract.AnalysisReport{}, st.fail(err, "windows failed")
	}
	st.done("windows", int64(len(wins)))

	var conv constant.Result
	if len(s.set.Magnitudes) > 0 {
		if conv, err = s.AnalyzeConstant(ctx, s.set.Magnitudes); err != nil {
			return contract.AnalysisReport{}, err
		}
	}

	return s.assemble(ctx, contract.ReportParts{
		Primes:             n,
		Verification:       ver,
		Records:            recs,
		Samples:            constant.Samples(recs, s.set.SampleKs),
		Windows:            wins,
		Constant:           stats,
		Convergence:        conv.Points,
		ConvergenceSkipped: conv.Skipped,
		PrecisionSkipped:   conv.PrecisionSkipped,
		Composites:         comps,
	})
}

func (s *Session) assemble(ctx context.Context, parts contract.ReportParts) (contract.AnalysisReport, error) {
	st := s.begin("assembler", "assemble", int64(len(parts.Records)), nil)
	rep, err := s.comp.Assembler.Assemble(ctx, parts)
	if err != nil {
		return contract.AnalysisReport{}, st.fail(err, "assemble failed")
	}
	st.done("assemble", int64(len(rep.Records)))
	return rep, nil
}

// Export 按导出路径的扩展名选择编码器，并将全部工件写到路径所在目录。
// 返回写出的工件路径（目录 + 基名 + 后缀）。
func (s *Session) Export(ctx context.Context, rep contract.AnalysisReport, exportPath string) ([]string, error) {
	dir, base, ext := contract.SplitExport(exportPath)
	if base == "" || base == "." || base == "/" || base == ".." {
		return nil, fmt.Errorf("%w: export path %q", contract.ErrPathInvalid, exportPath)
	}
	name := registry.EncoderForExt(ext)
	enc := s.comp.Encoders[name]
	if enc == nil {
		return nil, fmt.Errorf("%w: encoder %q not configured", contract.ErrInvalidInput, name)
	}

	st := s.begin("encoder", "encode", 1, map[string]string{"encoder": name})
	arts, err := enc.Encode(ctx, rep)
	if err != nil {
		return nil, st.fail(err, "encode failed")
	}
	st.done("encode", int64(len(arts)))

	w, err := s.comp.NewWriter(dir)
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}
	st = s.begin("writer", "write", int64(len(arts)), map[string]string{"dir": dir})
	written := make([]string, 0, len(arts))
	for _, a := range arts {
		id := contract.ArtifactID(base + a.Suffix)
		if err := w.Write(ctx, id, a.Body); err != nil {
			return nil, st.fail(err, "write failed")
		}
		written = append(written, path.Join(dir, string(id)))
	}
	st.done("write", int64(len(written)))
	return written, nil
}

// Run 执行完整分析；配置了导出路径时随后导出，返回报告与写出的工件路径。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (contract.AnalysisReport, []string, error) {
	s, err := NewSession(comp, set, logger)
	if err != nil {
		return contract.AnalysisReport{}, nil, err
	}
	t0 := time.Now()
	ok := false
	if t := diag.GetTerminal(); t != nil {
		t.RunStart(set.Primes, comp.Numeric.Name())
		defer func() { t.RunFinish(ok, time.Since(t0)) }()
	}
	rep, err := s.Analyze(ctx)
	if err != nil {
		return contract.AnalysisReport{}, nil, err
	}
	var written []string
	if set.Export != "" {
		if written, err = s.Export(ctx, rep, set.Export); err != nil {
			return contract.AnalysisReport{}, nil, err
		}
	}
	ok = true
	return rep, written, nil
}

func sanity(c Components, s Settings) error {
	if c.Generator == nil || c.VoidRule == nil || c.Numeric == nil || c.Sampler == nil || c.Assembler == nil {
		return errors.New("pipeline: missing components")
	}
	if s.Export != "" && (c.NewWriter == nil || len(c.Encoders) == 0) {
		return errors.New("pipeline: export requires encoders and writer")
	}
	if s.Primes < 0 {
		return fmt.Errorf("%w: primes must be >= 0", contract.ErrInvalidInput)
	}
	return nil
}

// stage 将一个阶段的日志、指标与终端提示绑在一起。
type stage struct {
	comp  string
	op    string
	timer *diag.Timer
	t0    time.Time
	log   *diag.Logger
}

func (s *Session) begin(comp, op string, total int64, kv map[string]string) *stage {
	if t := diag.GetTerminal(); t != nil {
		t.StageStart(comp+"/"+op, total)
	}
	return &stage{comp: comp, op: op, timer: s.logger.StartKV(comp, op, kv), t0: time.Now(), log: s.logger}
}

func (st *stage) done(msg string, count int64) {
	st.timer.Finish(msg, count)
	dur := time.Since(st.t0)
	diag.IncOp(st.comp, st.op, "success")
	diag.ObserveDuration(st.comp, st.op, dur.Milliseconds())
	if t := diag.GetTerminal(); t != nil {
		t.StageFinish(true, count, dur)
	}
}

func (st *stage) fail(err error, msg string) error {
	code := diag.Classify(err)
	st.log.Error(st.comp, string(code), msg, st.timer.Since())
	diag.IncOp(st.comp, st.op, "error")
	if code != diag.CodeUnknown {
		diag.IncError(st.comp, string(code))
	}
	if t := diag.GetTerminal(); t != nil {
		t.StageFinish(false, 0, time.Since(st.t0))
	}
	return fmt.Errorf("%s %s: %w", st.comp, st.op, err)
}
