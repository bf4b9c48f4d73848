package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cfgpkg "primelayer/internal/config"
	"primelayer/internal/diag"
	"primelayer/internal/pipeline"
	"primelayer/internal/render"
	"primelayer/pkg/contract"
)

// 退出码：0 成功；1 运行期失败；3 配置/用法错误。
const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 3
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErr(err error) error   { return &exitError{code: exitUsage, err: err} }
func runtimeErr(err error) error { return &exitError{code: exitRuntime, err: err} }

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// cobra 的参数/旗标解析错误
	return exitUsage
}

// app 持有一次 CLI 调用的旗标与诊断状态。
type app struct {
	stdout io.Writer
	stderr io.Writer
	corrID string
	start  time.Time
	logger *diag.Logger

	configPath    string
	primes        int
	magnitudes    []int
	numeric       string
	logLevel      string
	from, to      int
	maxMismatches int
	status        bool
	metrics       bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV）
	_ = loadDotEnv(".env")
	a := &app{
		stdout: stdout,
		stderr: stderr,
		corrID: uuid.NewString(),
		start:  time.Now(),
		logger: diag.Nop(),
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	diag.SetTerminal(nil)

	code := exitCode(err)
	if err != nil {
		cls := string(diag.Classify(err))
		a.logger.Error("cli", cls, "first error", &a.start)
		diag.IncOp("cli", "run", "error")
		if cls != string(diag.CodeUnknown) {
			diag.IncError("cli", cls)
		}
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(stderr, "错误: %v\n", err)
		}
	} else {
		diag.IncOp("cli", "run", "success")
		diag.ObserveDuration("cli", "run", time.Since(a.start).Milliseconds())
	}
	if a.metrics {
		_ = diag.WriteMetrics(stderr)
	}
	_ = a.logger.Close()
	return code
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "primelayer",
		Short: "素数层分解、双射校验与常数收敛分析",
		Long: `primelayer 将第 k 个素数 Pk 分解为 Void Vk 与 Sum Sk = Pk - Vk，
校验 V(Pk) = C(k-3)，并考察 c = (P/S - 1)·ln P·ln ln P 相对 2+√2 的偏差。
不带子命令时执行完整分析。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          a.runAnalyze,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "配置文件（.json/.yaml）；缺省读取 PRIMELAYER_CONFIG_FILE 或 ./config.json")
	pf.IntVarP(&a.primes, "primes", "n", 0, "分析的素数个数 N（覆盖配置）")
	pf.IntSliceVar(&a.magnitudes, "magnitudes", nil, "收敛采样数量级，逗号分隔（覆盖配置）")
	pf.StringVar(&a.numeric, "numeric", "", "数值后端 float64|bigfloat|auto（覆盖配置）")
	pf.StringVar(&a.logLevel, "log-level", "", "日志级别 debug|info|warn|error（覆盖配置）")
	pf.IntVar(&a.from, "from", 0, "校验区间起点 k（覆盖配置）")
	pf.IntVar(&a.to, "to", 0, "校验区间终点 k（覆盖配置）")
	pf.IntVar(&a.maxMismatches, "max-mismatches", 0, "保留的失配样本上限（覆盖配置）")
	pf.BoolVar(&a.status, "status", true, "终端状态提示（stderr）")
	pf.BoolVar(&a.metrics, "metrics", false, "退出时以 Prometheus 文本格式输出指标到 stderr")

	root.AddCommand(
		&cobra.Command{
			Use:   "analyze",
			Short: "完整分析：分解、校验、常数统计与收敛",
			Args:  cobra.NoArgs,
			RunE:  a.runAnalyze,
		},
		&cobra.Command{
			Use:   "verify",
			Short: "仅校验双射 V(Pk) = C(k-3)；存在失配时以 1 退出",
			Args:  cobra.NoArgs,
			RunE:  a.runVerify,
		},
		&cobra.Command{
			Use:   "constant [magnitude...]",
			Short: "常数分析：前 N 个素数上的均值统计与各数量级 10^m 处的 c",
			RunE:  a.runConstant,
		},
		&cobra.Command{
			Use:   "export PATH",
			Short: "完整分析并导出；扩展名决定格式（.csv/.json/.yaml）",
			Args:  cobra.ExactArgs(1),
			RunE:  a.runExport,
		},
		&cobra.Command{
			Use:   "init-config [DIR]",
			Short: "在目录下生成默认 config.json 与 .env 模板（已存在则跳过）",
			Args:  cobra.MaximumNArgs(1),
			RunE:  a.runInitConfig,
		},
	)
	return root
}

// loadConfig 合并 默认值 < 配置文件 < ENV < CLI，并校验。
func (a *app) loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()
	path := a.configPath
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if path == "" {
		for _, p := range []string{"config.json", "config.yaml", "config.yml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		base, err := cfgpkg.LoadFile(path)
		if err != nil {
			return cfg, usageErr(fmt.Errorf("配置解析失败: %w", err))
		}
		cfg = cfgpkg.Merge(cfg, base)
	}
	env, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, usageErr(fmt.Errorf("环境变量解析失败: %w", err))
	}
	cfg = cfgpkg.Merge(cfg, env)

	var over cfgpkg.Config
	fl := cmd.Flags()
	if fl.Changed("primes") {
		if a.primes < 0 {
			return cfg, usageErr(fmt.Errorf("%w: --primes must be >= 0", contract.ErrInvalidInput))
		}
		over.Primes = cfgpkg.IntPtr(a.primes)
	}
	if fl.Changed("magnitudes") {
		over.Magnitudes = a.magnitudes
	}
	if fl.Changed("numeric") {
		over.Components.Numeric = a.numeric
	}
	if fl.Changed("log-level") {
		over.Logging.Level = a.logLevel
	}
	if fl.Changed("from") {
		over.Verify.From = a.from
	}
	if fl.Changed("to") {
		over.Verify.To = a.to
	}
	if fl.Changed("max-mismatches") {
		over.Verify.MaxMismatches = a.maxMismatches
	}
	cfg = cfgpkg.Merge(cfg, over)
	if err := cfgpkg.Validate(cfg); err != nil {
		return cfg, usageErr(fmt.Errorf("配置校验失败: %w", err))
	}
	return cfg, nil
}

// assemble 加载配置、重建日志器并装配组件。
func (a *app) assemble(cmd *cobra.Command, mutate func(*cfgpkg.Config)) (pipeline.Components, pipeline.Settings, cfgpkg.Config, error) {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, cfg, err
	}
	if mutate != nil {
		mutate(&cfg)
	}
	if cfg.Export != "" {
		if err := preflightExportDir(cfg.Export); err != nil {
			return pipeline.Components{}, pipeline.Settings{}, cfg, usageErr(fmt.Errorf("导出目录不可写或无法创建: %w", err))
		}
	}
	a.logger = diag.NewLogger(a.corrID, cfg.Logging.Level)
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, cfg, usageErr(fmt.Errorf("装配失败: %w", err))
	}
	a.logger.Debug("config", "effective", map[string]string{
		"primes":     strconv.Itoa(cfg.PrimeCount()),
		"magnitudes": joinInts(cfg.Magnitudes),
		"numeric":    comp.Numeric.Name(),
		"void_rule":  comp.VoidRule.Name(),
		"export":     cfg.Export,
	})
	diag.SetTerminal(diag.NewTerminal(a.stderr, a.status))
	return comp, set, cfg, nil
}

// session 装配后创建单步操作使用的会话。
func (a *app) session(cmd *cobra.Command) (*pipeline.Session, cfgpkg.Config, error) {
	comp, set, cfg, err := a.assemble(cmd, nil)
	if err != nil {
		return nil, cfg, err
	}
	s, err := pipeline.NewSession(comp, set, a.logger)
	if err != nil {
		return nil, cfg, usageErr(err)
	}
	return s, cfg, nil
}

func (a *app) runAnalyze(cmd *cobra.Command, _ []string) error {
	rep, err := a.run(cmd, nil)
	if err != nil {
		return err
	}
	if err := render.New(a.stdout).Report(rep); err != nil {
		return runtimeErr(err)
	}
	return nil
}

func (a *app) runExport(cmd *cobra.Command, args []string) error {
	_, err := a.run(cmd, func(c *cfgpkg.Config) { c.Export = strings.TrimSpace(args[0]) })
	return err
}

// run 执行完整分析；配置了导出路径时随后导出并列出工件。
func (a *app) run(cmd *cobra.Command, mutate func(*cfgpkg.Config)) (contract.AnalysisReport, error) {
	comp, set, _, err := a.assemble(cmd, mutate)
	if err != nil {
		return contract.AnalysisReport{}, err
	}
	rep, written, err := pipeline.Run(cmd.Context(), comp, set, a.logger)
	if err != nil {
		if errors.Is(err, contract.ErrInvalidInput) || errors.Is(err, contract.ErrPathInvalid) {
			return rep, usageErr(err)
		}
		return rep, runtimeErr(err)
	}
	for _, p := range written {
		fmt.Fprintf(a.stderr, "已导出 %s\n", p)
	}
	return rep, nil
}

func (a *app) runVerify(cmd *cobra.Command, _ []string) error {
	s, _, err := a.session(cmd)
	if err != nil {
		return err
	}
	res, err := s.VerifyConfigured(cmd.Context())
	if err != nil {
		if errors.Is(err, contract.ErrInvalidInput) {
			return usageErr(err)
		}
		return runtimeErr(err)
	}
	if err := render.New(a.stdout).Verification(res); err != nil {
		return runtimeErr(err)
	}
	if res.MismatchTotal > 0 {
		return runtimeErr(fmt.Errorf("%w: %d bijection mismatches", contract.ErrInvariantViolation, res.MismatchTotal))
	}
	return nil
}

func (a *app) runConstant(cmd *cobra.Command, args []string) error {
	ms, err := parseMagnitudes(args)
	if err != nil {
		return usageErr(err)
	}
	s, cfg, err := a.session(cmd)
	if err != nil {
		return err
	}
	if len(ms) == 0 {
		ms = cfg.Magnitudes
	}
	stats, err := s.MeanConstant(cmd.Context())
	if err != nil {
		return runtimeErr(err)
	}
	res, err := s.AnalyzeConstant(cmd.Context(), ms)
	if err != nil {
		return runtimeErr(err)
	}
	if err := render.New(a.stdout).Constant(stats, res.Points, res.Skipped, res.PrecisionSkipped); err != nil {
		return runtimeErr(err)
	}
	return nil
}

func (a *app) runInitConfig(_ *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		dir = strings.TrimSpace(args[0])
	}
	created, err := cfgpkg.WriteTemplate(dir)
	if err != nil {
		return usageErr(fmt.Errorf("生成默认配置失败: %w", err))
	}
	if len(created) == 0 {
		fmt.Fprintln(a.stdout, "配置模板已存在，跳过")
	}
	for _, p := range created {
		fmt.Fprintf(a.stdout, "已生成 %s\n", p)
	}
	return nil
}

func parseMagnitudes(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, s := range args {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			m, err := strconv.Atoi(part)
			if err != nil || m < 0 {
				return nil, fmt.Errorf("%w: magnitude %q", contract.ErrInvalidInput, part)
			}
			out = append(out, m)
		}
	}
	return out, nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}
