package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"primelayer/internal/constant"
	"primelayer/internal/layer"
)

// EnvPrefix: 环境变量前缀。
const EnvPrefix = "PRIMELAYER_"

// DefaultPrimes: 未配置时分析的素数个数。
const DefaultPrimes = 10000

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Primes:     IntPtr(DefaultPrimes),
		Verify:     Verify{MaxMismatches: layer.DefaultMaxMismatches},
		Magnitudes: append([]int(nil), constant.DefaultMagnitudes...),
		SampleKs:   append([]int(nil), constant.DefaultSampleKs...),
		Constant: Constant{
			SieveLimit: constant.DefaultSieveLimit,
			ExactLimit: constant.DefaultExactLimit,
			MinPrime:   constant.DefaultMinPrime,
		},
		Logging: Logging{Level: "info"},
		Components: Components{
			Generator: "segmented",
			VoidRule:  "endpoint",
			Numeric:   "auto",
			Sampler:   "sliding",
			Assembler: "report",
			Writer:    "fs",
		},
	}
}

// LoadFile 按扩展名解析配置文件：.yaml/.yml 走 YAML，其余按 JSON。
func LoadFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(b)
	default:
		return LoadJSON("", b)
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadYAML 将 YAML 文档转为 JSON 后走同一严格解码，
// 使 options 子树保持原样 JSON 语义。
func LoadYAML(raw []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	if doc == nil {
		return Config{}, nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	return LoadJSON("", b)
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if over.Primes != nil {
		out.Primes = IntPtr(*over.Primes)
	}
	if over.Verify.From != 0 {
		out.Verify.From = over.Verify.From
	}
	if over.Verify.To != 0 {
		out.Verify.To = over.Verify.To
	}
	if over.Verify.MaxMismatches != 0 {
		out.Verify.MaxMismatches = over.Verify.MaxMismatches
	}
	// 列表整体替换
	if len(over.Magnitudes) > 0 {
		out.Magnitudes = append([]int(nil), over.Magnitudes...)
	}
	if len(over.SampleKs) > 0 {
		out.SampleKs = append([]int(nil), over.SampleKs...)
	}
	if over.Constant.SieveLimit != 0 {
		out.Constant.SieveLimit = over.Constant.SieveLimit
	}
	if over.Constant.ExactLimit != 0 {
		out.Constant.ExactLimit = over.Constant.ExactLimit
	}
	if over.Constant.MinPrime != 0 {
		out.Constant.MinPrime = over.Constant.MinPrime
	}
	if strings.TrimSpace(over.Export) != "" {
		out.Export = strings.TrimSpace(over.Export)
	}
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}

	// 组件名（空不覆盖）
	if over.Components.Generator != "" {
		out.Components.Generator = over.Components.Generator
	}
	if over.Components.VoidRule != "" {
		out.Components.VoidRule = over.Components.VoidRule
	}
	if over.Components.Numeric != "" {
		out.Components.Numeric = over.Components.Numeric
	}
	if over.Components.Sampler != "" {
		out.Components.Sampler = over.Components.Sampler
	}
	if over.Components.Assembler != "" {
		out.Components.Assembler = over.Components.Assembler
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	// Options（完整替换对应键）
	if len(over.Options.Generator) > 0 {
		out.Options.Generator = cloneRaw(over.Options.Generator)
	}
	if len(over.Options.VoidRule) > 0 {
		out.Options.VoidRule = cloneRaw(over.Options.VoidRule)
	}
	if len(over.Options.Numeric) > 0 {
		out.Options.Numeric = cloneRaw(over.Options.Numeric)
	}
	if len(over.Options.Sampler) > 0 {
		out.Options.Sampler = cloneRaw(over.Options.Sampler)
	}
	if len(over.Options.Assembler) > 0 {
		out.Options.Assembler = cloneRaw(over.Options.Assembler)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	if len(over.Options.Encoders) > 0 {
		enc := make(map[string]json.RawMessage, len(out.Options.Encoders)+len(over.Options.Encoders))
		for k, v := range out.Options.Encoders {
			enc[k] = v
		}
		for k, v := range over.Options.Encoders {
			enc[k] = cloneRaw(v)
		}
		out.Options.Encoders = enc
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 PRIMELAYER_；数值解析失败返回错误，集合之外的键忽略。
// 支持：PRIMES, VERIFY_FROM, VERIFY_TO, MAX_MISMATCHES, MAGNITUDES, SAMPLE_KS,
// SIEVE_LIMIT, EXACT_LIMIT, MIN_PRIME, EXPORT, LOG_LEVEL, COMPONENTS_*,
// 以及 OPTIONS_<COMPONENT>_JSON / OPTIONS_ENCODER__<name>_JSON。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[len(EnvPrefix):eq]
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			// 空值视为未设置，避免清空文件配置
			continue
		}
		var err error
		switch key {
		case "PRIMES":
			var n int
			if n, err = atoi(val); err == nil {
				over.Primes = IntPtr(n)
			}
		case "VERIFY_FROM":
			over.Verify.From, err = atoi(val)
		case "VERIFY_TO":
			over.Verify.To, err = atoi(val)
		case "MAX_MISMATCHES":
			over.Verify.MaxMismatches, err = atoi(val)
		case "MAGNITUDES":
			over.Magnitudes, err = splitInts(val)
		case "SAMPLE_KS":
			over.SampleKs, err = splitInts(val)
		case "SIEVE_LIMIT":
			over.Constant.SieveLimit, err = atoi64(val)
		case "EXACT_LIMIT":
			over.Constant.ExactLimit, err = atoi64(val)
		case "MIN_PRIME":
			over.Constant.MinPrime, err = atoi64(val)
		case "EXPORT":
			over.Export = val
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "COMPONENTS_GENERATOR":
			over.Components.Generator = val
		case "COMPONENTS_VOID_RULE":
			over.Components.VoidRule = val
		case "COMPONENTS_NUMERIC":
			over.Components.Numeric = val
		case "COMPONENTS_SAMPLER":
			over.Components.Sampler = val
		case "COMPONENTS_ASSEMBLER":
			over.Components.Assembler = val
		case "COMPONENTS_WRITER":
			over.Components.Writer = val
		case "OPTIONS_GENERATOR_JSON":
			over.Options.Generator = json.RawMessage(val)
		case "OPTIONS_VOID_RULE_JSON":
			over.Options.VoidRule = json.RawMessage(val)
		case "OPTIONS_NUMERIC_JSON":
			over.Options.Numeric = json.RawMessage(val)
		case "OPTIONS_SAMPLER_JSON":
			over.Options.Sampler = json.RawMessage(val)
		case "OPTIONS_ASSEMBLER_JSON":
			over.Options.Assembler = json.RawMessage(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer = json.RawMessage(val)
		default:
			// OPTIONS_ENCODER__csv_JSON
			if strings.HasPrefix(key, "OPTIONS_ENCODER__") && strings.HasSuffix(key, "_JSON") {
				name := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(key, "OPTIONS_ENCODER__"), "_JSON"))
				if name != "" {
					if over.Options.Encoders == nil {
						over.Options.Encoders = map[string]json.RawMessage{}
					}
					over.Options.Encoders[name] = json.RawMessage(val)
				}
			}
		}
		if err != nil {
			return Config{}, fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
	}
	return over, nil
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

// splitInts 解析逗号分隔的整数列表（空项忽略）。
func splitInts(s string) ([]int, error) {
	var out []int
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// atoi64 同时接受科学计数写法（如 2e7），须为精确整数。
func atoi64(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int64(f), nil
}
