package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"primelayer/internal/constant"
	"primelayer/internal/pipeline"
	"primelayer/pkg/contract"
	"primelayer/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if cfg.PrimeCount() < 0 {
		return errors.New("config: primes must be >= 0")
	}
	if cfg.Verify.From < 0 || cfg.Verify.To < 0 {
		return errors.New("config: verify range must be >= 0")
	}
	if cfg.Verify.From > 0 && cfg.Verify.To > 0 && cfg.Verify.From > cfg.Verify.To {
		return fmt.Errorf("config: verify.from(%d) > verify.to(%d)", cfg.Verify.From, cfg.Verify.To)
	}
	if cfg.Verify.MaxMismatches < 0 {
		return errors.New("config: verify.max_mismatches must be >= 0")
	}
	for _, m := range cfg.Magnitudes {
		if m < 0 {
			return fmt.Errorf("config: magnitude %d must be >= 0", m)
		}
	}
	for _, k := range cfg.SampleKs {
		if k < 1 {
			return fmt.Errorf("config: sample k %d must be >= 1", k)
		}
	}
	if cfg.Constant.SieveLimit < 0 || cfg.Constant.ExactLimit < 0 || cfg.Constant.MinPrime < 0 {
		return errors.New("config: constant limits must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q", cfg.Logging.Level)
	}
	d := Defaults().Components
	if name := effName(cfg.Components.Generator, d.Generator); registry.Generator[name] == nil {
		return fmt.Errorf("config: generator %q not registered", name)
	}
	if name := effName(cfg.Components.VoidRule, d.VoidRule); registry.VoidRule[name] == nil {
		return fmt.Errorf("config: void_rule %q not registered", name)
	}
	if name := effName(cfg.Components.Numeric, d.Numeric); registry.Numeric[name] == nil {
		return fmt.Errorf("config: numeric %q not registered", name)
	}
	if name := effName(cfg.Components.Sampler, d.Sampler); registry.Sampler[name] == nil {
		return fmt.Errorf("config: sampler %q not registered", name)
	}
	if name := effName(cfg.Components.Assembler, d.Assembler); registry.Assembler[name] == nil {
		return fmt.Errorf("config: assembler %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, d.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	for name := range cfg.Options.Encoders {
		if registry.Encoder[name] == nil {
			return fmt.Errorf("config: encoder %q not registered", name)
		}
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry （工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults().Components

	gen, err := registry.Generator[effName(cfg.Components.Generator, d.Generator)](cfg.Options.Generator)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("generator options: %w", err)
	}
	rule, err := registry.VoidRule[effName(cfg.Components.VoidRule, d.VoidRule)](cfg.Options.VoidRule)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("void_rule options: %w", err)
	}
	num, err := registry.Numeric[effName(cfg.Components.Numeric, d.Numeric)](cfg.Options.Numeric)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("numeric options: %w", err)
	}
	smp, err := registry.Sampler[effName(cfg.Components.Sampler, d.Sampler)](cfg.Options.Sampler)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("sampler options: %w", err)
	}
	asm, err := registry.Assembler[effName(cfg.Components.Assembler, d.Assembler)](cfg.Options.Assembler)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("assembler options: %w", err)
	}

	// 全部已注册编码器均可用，导出时按扩展名挑选
	names := make([]string, 0, len(registry.Encoder))
	for name := range registry.Encoder {
		names = append(names, name)
	}
	sort.Strings(names)
	encs := make(map[string]contract.Encoder, len(names))
	for _, name := range names {
		enc, err := registry.Encoder[name](cfg.Options.Encoders[name])
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("encoder %s options: %w", name, err)
		}
		encs[name] = enc
	}

	newWriter := registry.Writer[effName(cfg.Components.Writer, d.Writer)]
	writerRaw := cloneRaw(cfg.Options.Writer)
	comp := pipeline.Components{
		Generator: gen,
		VoidRule:  rule,
		Numeric:   num,
		Sampler:   smp,
		Assembler: asm,
		Encoders:  encs,
		NewWriter: func(dir string) (contract.Writer, error) {
			raw, err := withOutputDir(writerRaw, dir)
			if err != nil {
				return nil, fmt.Errorf("writer options: %w", err)
			}
			return newWriter(raw)
		},
	}

	set := pipeline.Settings{
		Primes:        cfg.PrimeCount(),
		VerifyFrom:    cfg.Verify.From,
		VerifyTo:      cfg.Verify.To,
		MaxMismatches: cfg.Verify.MaxMismatches,
		Magnitudes:    append([]int(nil), cfg.Magnitudes...),
		SampleKs:      append([]int(nil), cfg.SampleKs...),
		Constant: constant.Settings{
			SieveLimit: cfg.Constant.SieveLimit,
			ExactLimit: cfg.Constant.ExactLimit,
			MinPrime:   cfg.Constant.MinPrime,
		},
		Export: cfg.Export,
	}
	return comp, set, nil
}

// withOutputDir 在 writer 选项上设置 output_dir（导出目录随导出路径变化）。
func withOutputDir(raw json.RawMessage, dir string) (json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
	}
	d, err := json.Marshal(dir)
	if err != nil {
		return nil, err
	}
	m["output_dir"] = d
	return json.Marshal(m)
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
