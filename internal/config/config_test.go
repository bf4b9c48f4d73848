package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

// 解析 JSON 配置
func TestLoadFileJSON(t *testing.T) {
	p := writeFile(t, "config.json", `{
  "primes": 500,
  "verify": {"from": 4, "to": 400},
  "magnitudes": [1, 2],
  "components": {"numeric": "float64"},
  "options": {"encoders": {"csv": {"comma": ";"}}}
}`)
	cfg, err := LoadFile(p)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.PrimeCount() != 500 || cfg.Verify.From != 4 || cfg.Verify.To != 400 {
		t.Fatalf("字段映射错误: %+v", cfg)
	}
	if cfg.Components.Numeric != "float64" || string(cfg.Options.Encoders["csv"]) != `{"comma": ";"}` {
		t.Fatalf("组件/选项错误: %+v", cfg)
	}
	if err := Validate(Merge(Defaults(), cfg)); err != nil {
		t.Fatalf("校验失败: %v", err)
	}
}

// YAML 与 JSON 走同一严格解码
func TestLoadFileYAML(t *testing.T) {
	p := writeFile(t, "config.yaml", `
primes: 2000
magnitudes: [3, 4]
constant:
  sieve_limit: 2e7
  exact_limit: 10000000000
options:
  sampler:
    tops: [100, 1000]
    fraction: 0.5
`)
	cfg, err := LoadFile(p)
	require.NoError(t, err)
	require.Equal(t, 2000, cfg.PrimeCount())
	require.Equal(t, []int{3, 4}, cfg.Magnitudes)
	require.EqualValues(t, 20_000_000, cfg.Constant.SieveLimit)
	require.EqualValues(t, 10_000_000_000, cfg.Constant.ExactLimit)
	var smp struct {
		Tops     []int   `json:"tops"`
		Fraction float64 `json:"fraction"`
	}
	require.NoError(t, json.Unmarshal(cfg.Options.Sampler, &smp))
	require.Equal(t, []int{100, 1000}, smp.Tops)
	require.Equal(t, 0.5, smp.Fraction)

	_, err = LoadFile(writeFile(t, "bad.yml", "primes: 1\nunknown: 2\n"))
	require.Error(t, err)
	empty, err := LoadYAML(nil)
	require.NoError(t, err)
	require.Nil(t, empty.Primes)

	// 显式 0 与未设置不同，合并后保留
	zero, err := LoadFile(writeFile(t, "zero.yaml", "primes: 0\n"))
	require.NoError(t, err)
	merged := Merge(Defaults(), zero)
	require.Equal(t, 0, merged.PrimeCount())
	require.NoError(t, Validate(merged))
}

// 含非法字段
func TestLoadJSONUnknown(t *testing.T) {
	if _, err := LoadJSON("", []byte(`{"unknown":1}`)); err == nil {
		t.Fatalf("应当返回错误")
	}
	if _, err := LoadJSON("", nil); err == nil {
		t.Fatalf("无来源应当返回错误")
	}
}

// ENV 覆盖部分字段
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"PRIMELAYER_PRIMES=300",
		"PRIMELAYER_MAGNITUDES=1, 2,,5",
		"PRIMELAYER_SIEVE_LIMIT=1e6",
		"PRIMELAYER_COMPONENTS_NUMERIC=bigfloat",
		"PRIMELAYER_OPTIONS_NUMERIC_JSON={\"prec\":512}",
		"PRIMELAYER_OPTIONS_ENCODER__JSON_JSON={\"indent\":4}",
		"PRIMELAYER_EXPORT=",
		"OTHER_PRIMES=1",
	}
	over, err := EnvOverlay(env)
	if err != nil {
		t.Fatalf("EnvOverlay 错误: %v", err)
	}
	if over.PrimeCount() != 300 || len(over.Magnitudes) != 3 || over.Magnitudes[2] != 5 {
		t.Fatalf("覆盖结果不正确: %+v", over)
	}
	if over.Constant.SieveLimit != 1_000_000 || over.Components.Numeric != "bigfloat" {
		t.Fatalf("覆盖结果不正确: %+v", over)
	}
	if string(over.Options.Numeric) != `{"prec":512}` || string(over.Options.Encoders["json"]) != `{"indent":4}` {
		t.Fatalf("选项覆盖错误: %+v", over.Options)
	}
	if over.Export != "" {
		t.Fatalf("空值不应覆盖: %q", over.Export)
	}
	zero, err := EnvOverlay([]string{"PRIMELAYER_PRIMES=0"})
	if err != nil || zero.Primes == nil || *zero.Primes != 0 {
		t.Fatalf("PRIMES=0 应显式覆盖: %+v %v", zero.Primes, err)
	}
	if _, err := EnvOverlay([]string{"PRIMELAYER_PRIMES=abc"}); err == nil {
		t.Fatalf("非数值应失败")
	}
	if _, err := EnvOverlay([]string{"PRIMELAYER_MIN_PRIME=1.5"}); err == nil {
		t.Fatalf("非整数应失败")
	}
}

// 合并优先级：后者覆盖前者，空值不覆盖
func TestMerge(t *testing.T) {
	base := Defaults()
	base.Options.Encoders = map[string]json.RawMessage{"csv": json.RawMessage(`{}`)}
	over := Config{
		Primes:     IntPtr(42),
		Magnitudes: []int{7},
		Export:     " out/x.csv ",
		Components: Components{Numeric: "float64"},
		Options:    Options{Encoders: map[string]json.RawMessage{"json": json.RawMessage(`{"indent":1}`)}},
	}
	got := Merge(base, over)
	require.Equal(t, 42, got.PrimeCount())
	require.Equal(t, DefaultPrimes, Merge(base, Config{}).PrimeCount())
	require.Equal(t, []int{7}, got.Magnitudes)
	require.Equal(t, "out/x.csv", got.Export)
	require.Equal(t, "float64", got.Components.Numeric)
	require.Equal(t, "endpoint", got.Components.VoidRule)
	require.Len(t, got.Options.Encoders, 2)
	require.Equal(t, 20, got.Verify.MaxMismatches)
	// 原配置不受影响
	require.Len(t, base.Options.Encoders, 1)
}

func TestValidateErrors(t *testing.T) {
	cases := map[string]func(*Config){
		"primes":     func(c *Config) { c.Primes = IntPtr(-1) },
		"range":      func(c *Config) { c.Verify.From, c.Verify.To = 10, 5 },
		"negative":   func(c *Config) { c.Verify.From = -1 },
		"mismatches": func(c *Config) { c.Verify.MaxMismatches = -1 },
		"magnitude":  func(c *Config) { c.Magnitudes = []int{-1} },
		"sample":     func(c *Config) { c.SampleKs = []int{0} },
		"limits":     func(c *Config) { c.Constant.ExactLimit = -1 },
		"level":      func(c *Config) { c.Logging.Level = "trace" },
		"numeric":    func(c *Config) { c.Components.Numeric = "float32" },
		"writer":     func(c *Config) { c.Components.Writer = "s3" },
		"encoder":    func(c *Config) { c.Options.Encoders = map[string]json.RawMessage{"xml": nil} },
	}
	for name, mut := range cases {
		cfg := Defaults()
		mut(&cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("%s: 应校验失败", name)
		}
	}
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("默认配置应通过: %v", err)
	}
}

func TestAssemble(t *testing.T) {
	cfg := Defaults()
	cfg.Primes = IntPtr(50)
	cfg.Magnitudes = []int{1}
	cfg.Components.Numeric = "float64"
	comp, set, err := Assemble(cfg)
	require.NoError(t, err)
	require.Equal(t, "float64", comp.Numeric.Name())
	require.Equal(t, "endpoint", comp.VoidRule.Name())
	require.Len(t, comp.Encoders, 3)
	require.Equal(t, 50, set.Primes)
	require.Equal(t, []int{1}, set.Magnitudes)

	// writer 目录随导出路径注入
	dir := t.TempDir()
	w, err := comp.NewWriter(dir)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), "a.txt", strings.NewReader("x")))
	b, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "x", string(b))

	bad := Defaults()
	bad.Options.Generator = json.RawMessage(`{"nope":1}`)
	_, _, err = Assemble(bad)
	require.Error(t, err)
}

// 默认模板可直接解析、通过校验与装配
func TestTemplateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	created, err := WriteTemplate(dir)
	require.NoError(t, err)
	require.Len(t, created, 2)

	cfg, err := LoadFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	_, _, err = Assemble(Merge(Defaults(), cfg))
	require.NoError(t, err)

	env, err := os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	require.Contains(t, string(env), "PRIMELAYER_PRIMES=")

	// 再次生成不覆盖
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{}"), 0o644))
	created, err = WriteTemplate(dir)
	require.NoError(t, err)
	require.Empty(t, created)
	b, _ := os.ReadFile(filepath.Join(dir, "config.json"))
	require.Equal(t, "{}", string(b))
}

func TestWithOutputDir(t *testing.T) {
	raw, err := withOutputDir(json.RawMessage(`{"atomic":false,"output_dir":"old"}`), "new")
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	require.Equal(t, "new", m["output_dir"])
	require.Equal(t, false, m["atomic"])
	_, err = withOutputDir(json.RawMessage(`[1]`), "x")
	require.Error(t, err)
}
