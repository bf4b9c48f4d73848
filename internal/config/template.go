package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 组件名采用仓库内置实现；
// - 选项包含全部键，值为安全中性默认值。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Export = ""
	cfg.Options.Generator = json.RawMessage(`{
  "segment_size": 65536,
  "growth": 1.5
}`)
	cfg.Options.VoidRule = json.RawMessage(`{
  "base_layer": 3
}`)
	cfg.Options.Numeric = json.RawMessage(`{
  "prec": 256
}`)
	cfg.Options.Sampler = json.RawMessage(`{
  "tops": [100, 500, 1000, 5000, 10000, 50000, 100000],
  "fraction": 0.9
}`)
	cfg.Options.Assembler = json.RawMessage(`{}`)
	cfg.Options.Writer = json.RawMessage(`{
  "atomic": true,
  "no_clobber": false,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	cfg.Options.Encoders = map[string]json.RawMessage{
		"csv":  json.RawMessage(`{"tables": ["layers", "convergence", "windows"], "comma": ","}`),
		"json": json.RawMessage(`{"indent": 2, "include_records": false}`),
		"yaml": json.RawMessage(`{"indent": 2, "include_records": false}`),
	}
	return cfg
}

// WriteTemplate 在 dir 下生成 config.json 与 .env 模板；已存在的文件跳过，不覆盖。
// 返回实际新建的文件路径。
func WriteTemplate(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var created []string
	b, err := json.MarshalIndent(DefaultTemplateConfig(), "", "  ")
	if err != nil {
		return nil, err
	}
	cfgPath := filepath.Join(dir, "config.json")
	ok, err := createExclusive(cfgPath, append(b, '\n'))
	if err != nil {
		return nil, fmt.Errorf("config.json: %w", err)
	}
	if ok {
		created = append(created, cfgPath)
	}
	envPath := filepath.Join(dir, ".env")
	ok, err = createExclusive(envPath, []byte(dotEnvTemplate()))
	if err != nil {
		return created, fmt.Errorf(".env: %w", err)
	}
	if ok {
		created = append(created, envPath)
	}
	return created, nil
}

// createExclusive 仅在文件不存在时创建；已存在返回 (false, nil)。
func createExclusive(path string, body []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	if _, err := f.Write(body); err != nil {
		return false, err
	}
	return true, nil
}

func dotEnvTemplate() string {
	var b strings.Builder
	b.WriteString("# primelayer .env 模板（由 init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件 > 默认值\n")
	b.WriteString("# 空值表示未设置。\n\n")

	b.WriteString("# 配置来源\n")
	b.WriteString(EnvPrefix + "CONFIG_FILE=\n\n")

	b.WriteString("# 运行参数覆盖\n")
	for _, k := range []string{"PRIMES", "VERIFY_FROM", "VERIFY_TO", "MAX_MISMATCHES", "MAGNITUDES", "SAMPLE_KS", "SIEVE_LIMIT", "EXACT_LIMIT", "MIN_PRIME", "EXPORT", "LOG_LEVEL"} {
		b.WriteString(EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 组件选择\n")
	for _, k := range []string{"GENERATOR", "VOID_RULE", "NUMERIC", "SAMPLER", "ASSEMBLER", "WRITER"} {
		b.WriteString(EnvPrefix + "COMPONENTS_" + k + "=\n")
	}
	b.WriteString("\n# 组件选项（原样 JSON）\n")
	for _, k := range []string{"GENERATOR", "VOID_RULE", "NUMERIC", "SAMPLER", "WRITER"} {
		b.WriteString(EnvPrefix + "OPTIONS_" + k + "_JSON=\n")
	}
	for _, k := range []string{"csv", "json", "yaml"} {
		b.WriteString(EnvPrefix + "OPTIONS_ENCODER__" + k + "_JSON=\n")
	}
	return b.String()
}
