package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"primelayer/internal/diag"
	"primelayer/pkg/contract"
)

// invoke 在临时工作目录中执行 CLI，返回退出码与输出。
func invoke(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errb bytes.Buffer
	code := run(args, &out, &errb)
	return code, out.String(), errb.String()
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestRunInitConfig(t *testing.T) {
	dir := chdirTemp(t)
	outDir := filepath.Join(dir, "cfg")
	code, out, _ := invoke(t, "init-config", outDir)
	if code != exitOK {
		t.Fatalf("run return %d", code)
	}
	for _, name := range []string{"config.json", ".env"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("%s not generated: %v", name, err)
		}
	}
	if !strings.Contains(out, "已生成") {
		t.Fatalf("stdout: %q", out)
	}
	code, out, _ = invoke(t, "init-config", outDir)
	if code != exitOK || !strings.Contains(out, "跳过") {
		t.Fatalf("二次生成应跳过: %d %q", code, out)
	}
	// 生成的模板可被默认发现并运行
	t.Chdir(outDir)
	code, out, errOut := invoke(t, "verify", "-n", "30", "--status=false")
	if code != exitOK {
		t.Fatalf("模板配置运行失败: %d %s", code, errOut)
	}
	if !strings.Contains(out, "27/27 匹配") {
		t.Fatalf("stdout: %q", out)
	}
}

func TestRunAnalyze(t *testing.T) {
	dir := chdirTemp(t)
	code, out, errOut := invoke(t, "-n", "100", "--magnitudes", "1,2", "--numeric", "float64", "--status=false")
	if code != exitOK {
		t.Fatalf("run return %d: %s", code, errOut)
	}
	for _, want := range []string{"N = 100", "97/97 匹配", "10^2", "3.742921"} {
		if !strings.Contains(out, want) {
			t.Fatalf("缺少 %q: %s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "logs", "primelayer-current.log")); err != nil {
		t.Fatalf("日志文件不存在: %v", err)
	}
}

func TestRunAnalyzeStatus(t *testing.T) {
	chdirTemp(t)
	code, _, errOut := invoke(t, "analyze", "-n", "20", "--magnitudes", "1")
	if code != exitOK {
		t.Fatalf("run return %d: %s", code, errOut)
	}
	if !strings.Contains(errOut, "[run] 素数=20") || !strings.Contains(errOut, "[ok] 全部完成") {
		t.Fatalf("终端提示缺失: %q", errOut)
	}
}

func TestRunVerify(t *testing.T) {
	chdirTemp(t)
	code, out, _ := invoke(t, "verify", "-n", "50", "--to", "200", "--status=false")
	if code != exitOK {
		t.Fatalf("run return %d", code)
	}
	if !strings.Contains(out, "197/197 匹配") {
		t.Fatalf("stdout: %q", out)
	}
	code, _, errOut := invoke(t, "verify", "--from", "10", "--to", "5", "--status=false")
	if code != exitUsage {
		t.Fatalf("非法区间应返回 3, got %d: %s", code, errOut)
	}
}

func TestRunConstant(t *testing.T) {
	chdirTemp(t)
	code, out, errOut := invoke(t, "constant", "1", "2,3", "--numeric", "float64", "--status=false")
	if code != exitOK {
		t.Fatalf("run return %d: %s", code, errOut)
	}
	for _, want := range []string{"常数均值（P > 1,000）", "样本 9,832", "10^1", "10^3", "3.742921", "1,009"} {
		if !strings.Contains(out, want) {
			t.Fatalf("缺少 %q: %s", want, out)
		}
	}
	if code, _, _ := invoke(t, "constant", "x"); code != exitUsage {
		t.Fatalf("非法数量级应返回 3, got %d", code)
	}
}

func TestRunExport(t *testing.T) {
	dir := chdirTemp(t)
	target := filepath.Join(dir, "out", "layers.csv")
	code, _, errOut := invoke(t, "export", target, "-n", "100", "--magnitudes", "1,2", "--status=false")
	if code != exitOK {
		t.Fatalf("run return %d: %s", code, errOut)
	}
	for _, name := range []string{"layers.csv", "layers.convergence.csv", "layers.windows.csv"} {
		if _, err := os.Stat(filepath.Join(dir, "out", name)); err != nil {
			t.Fatalf("%s 未导出: %v", name, err)
		}
	}
	if !strings.Contains(errOut, "已导出") {
		t.Fatalf("stderr: %q", errOut)
	}
	// 导出路径的父级是文件
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if code, _, _ := invoke(t, "export", filepath.Join(blocker, "x.json"), "-n", "10", "--status=false"); code != exitUsage {
		t.Fatalf("不可写导出目录应返回 3, got %d", code)
	}
}

func TestRunUsageErrors(t *testing.T) {
	chdirTemp(t)
	cases := [][]string{
		{"--unknown-flag"},
		{"--config", "missing.json"},
		{"-n", "-1"},
		{"--numeric", "float32"},
		{"export"},
		{"stray-arg"},
	}
	for _, args := range cases {
		if code, _, _ := invoke(t, args...); code != exitUsage {
			t.Fatalf("%v 应返回 3, got %d", args, code)
		}
	}
}

func TestRunEnvAndMetrics(t *testing.T) {
	dir := chdirTemp(t)
	diag.ResetMetrics()
	defer diag.ResetMetrics()
	t.Setenv("PRIMELAYER_PRIMES", "20")
	t.Setenv("PRIMELAYER_MAGNITUDES", "1")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("components:\n  numeric: float64\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, out, errOut := invoke(t, "--metrics", "--status=false")
	if code != exitOK {
		t.Fatalf("run return %d: %s", code, errOut)
	}
	if !strings.Contains(out, "N = 20") {
		t.Fatalf("ENV 覆盖未生效: %s", out)
	}
	if !strings.Contains(errOut, "primelayer_op_total") {
		t.Fatalf("缺少指标输出: %q", errOut)
	}
}

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		in       string
		key, val string
		ok       bool
	}{
		{"A=1", "A", "1", true},
		{"export B = two ", "B", "two", true},
		{`C="x\ny"`, "C", "x\ny", true},
		{`D='raw\n'`, "D", `raw\n`, true},
		{"# comment", "", "", false},
		{"=novalue", "", "", false},
		{"", "", "", false},
	}
	for _, c := range cases {
		k, v, ok := parseEnvLine(c.in)
		if k != c.key || v != c.val || ok != c.ok {
			t.Fatalf("parseEnvLine(%q)=(%q,%q,%v)", c.in, k, v, ok)
		}
	}
}

func TestLoadDotEnvNoOverride(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("PRIMELAYER_TEST_KEEP", "keep")
	body := "PRIMELAYER_TEST_KEEP=new\nPRIMELAYER_TEST_NEW=\"v\"\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRIMELAYER_TEST_NEW", "")
	os.Unsetenv("PRIMELAYER_TEST_NEW")
	if err := loadDotEnv(".env"); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	if os.Getenv("PRIMELAYER_TEST_KEEP") != "keep" || os.Getenv("PRIMELAYER_TEST_NEW") != "v" {
		t.Fatalf("env: %q %q", os.Getenv("PRIMELAYER_TEST_KEEP"), os.Getenv("PRIMELAYER_TEST_NEW"))
	}
	if err := loadDotEnv("missing.env"); err != nil {
		t.Fatalf("缺失文件应忽略: %v", err)
	}
}

func TestParseMagnitudes(t *testing.T) {
	got, err := parseMagnitudes([]string{"1,2", " 5 ", ""})
	if err != nil || len(got) != 3 || got[2] != 5 {
		t.Fatalf("parseMagnitudes: %v %v", got, err)
	}
	if _, err := parseMagnitudes([]string{"-1"}); err == nil {
		t.Fatalf("负数应失败")
	}
}

// 模板配置下切换到 float64 后端仍可运行
func TestRunTemplateWithFloat64(t *testing.T) {
	chdirTemp(t)
	if code, _, _ := invoke(t, "init-config"); code != exitOK {
		t.Fatalf("init-config 失败")
	}
	code, out, errOut := invoke(t, "constant", "2", "--numeric", "float64", "--status=false")
	if code != exitOK {
		t.Fatalf("run return %d: %s", code, errOut)
	}
	if !strings.Contains(out, "float64") {
		t.Fatalf("stdout: %q", out)
	}
}

// 素数个数为 0 时输出空报告并正常退出
func TestRunZeroPrimes(t *testing.T) {
	dir := chdirTemp(t)
	code, out, errOut := invoke(t, "-n", "0", "--status=false")
	if code != exitOK {
		t.Fatalf("run return %d: %s", code, errOut)
	}
	for _, want := range []string{"N = 0", "0/0 匹配", "无样本"} {
		if !strings.Contains(out, want) {
			t.Fatalf("缺少 %q: %s", want, out)
		}
	}
	if code, out, _ := invoke(t, "verify", "-n", "0", "--status=false"); code != exitOK || !strings.Contains(out, "0/0 匹配") {
		t.Fatalf("verify N=0: %d %q", code, out)
	}

	// 配置文件中的显式 0 不被默认值覆盖
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("primes: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, errOut = invoke(t, "export", filepath.Join(dir, "empty.json"), "--status=false")
	if code != exitOK {
		t.Fatalf("export N=0: %d %s", code, errOut)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "empty.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc contract.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Primes != 0 || len(doc.Convergence) != 0 || doc.Verification.Total != 0 {
		t.Fatalf("导出内容: %s", raw)
	}
}
