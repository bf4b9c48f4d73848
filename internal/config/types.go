package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// Primes: 分析的素数个数 N；nil 表示未设置，显式 0 得到空报告。
	Primes *int `json:"primes"`
	// Verify: 双射校验区间；0 表示取 [1, N]。
	Verify Verify `json:"verify"`
	// Magnitudes: 收敛采样的数量级 m（P 为 ≥10^m 的最小素数）。
	Magnitudes []int `json:"magnitudes"`
	// SampleKs: 报告中展示的样例分解索引。
	SampleKs []int    `json:"sample_ks"`
	Constant Constant `json:"constant"`
	// Export: 导出路径；扩展名决定编码器（csv/json/yaml）。
	Export  string  `json:"export"`
	Logging Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Verify: 校验区间与失配样本上限（0 使用默认 20）。
type Verify struct {
	From          int `json:"from"`
	To            int `json:"to"`
	MaxMismatches int `json:"max_mismatches"`
}

// Constant: 常数分析的推导链边界。
type Constant struct {
	SieveLimit int64 `json:"sieve_limit"`
	ExactLimit int64 `json:"exact_limit"`
	MinPrime   int64 `json:"min_prime"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Generator string `json:"generator"`
	VoidRule  string `json:"void_rule"`
	Numeric   string `json:"numeric"`
	Sampler   string `json:"sampler"`
	Assembler string `json:"assembler"`
	Writer    string `json:"writer"`
}

// Options: 各组件的原样 JSON Options；编码器按名索引。
type Options struct {
	Generator json.RawMessage            `json:"generator,omitempty"`
	VoidRule  json.RawMessage            `json:"void_rule,omitempty"`
	Numeric   json.RawMessage            `json:"numeric,omitempty"`
	Sampler   json.RawMessage            `json:"sampler,omitempty"`
	Assembler json.RawMessage            `json:"assembler,omitempty"`
	Writer    json.RawMessage            `json:"writer,omitempty"`
	Encoders  map[string]json.RawMessage `json:"encoders,omitempty"`
}

// PrimeCount 返回 N；未设置时取 DefaultPrimes。
func (c Config) PrimeCount() int {
	if c.Primes == nil {
		return DefaultPrimes
	}
	return *c.Primes
}

// IntPtr 返回 v 的指针，便于构造覆盖层。
func IntPtr(v int) *int { return &v }
