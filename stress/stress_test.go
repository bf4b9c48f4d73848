package stress

import (
	"context"
	"fmt"
	"math"
	"sort"
	"testing"
	"time"

	cfgpkg "primelayer/internal/config"
	"primelayer/internal/pipeline"
)

// baseConfig 构造仅做分析、不导出的配置。
func baseConfig(primes int, numeric string) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Primes = cfgpkg.IntPtr(primes)
	cfg.Magnitudes = []int{1, 2, 3, 4, 5, 6}
	cfg.Components.Numeric = numeric
	cfg.Options.Numeric = nil
	cfg.Logging.Level = "error"
	return cfg
}

// TestStressVerify 在 10^5 个素数上校验双射全部成立。
func TestStressVerify(t *testing.T) {
	if testing.Short() {
		t.Skip("short 模式跳过压力测试")
	}
	comp, set, err := cfgpkg.Assemble(baseConfig(100000, "auto"))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	rep, _, err := pipeline.Run(context.Background(), comp, set, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	v := rep.Verification
	if v.Total != 99997 || v.Matches != 99997 || v.MismatchTotal != 0 {
		t.Fatalf("verification: %+v", v)
	}
	if len(rep.Records) != 100000 || rep.Records[99999].P != 1299709 {
		t.Fatalf("records: n=%d", len(rep.Records))
	}
	if rep.FinalMagnitude != 6 {
		t.Fatalf("final magnitude=%d", rep.FinalMagnitude)
	}
}

// TestStressBackends 在各数值后端下重复运行并记录延迟统计。
func TestStressBackends(t *testing.T) {
	if testing.Short() {
		t.Skip("short 模式跳过压力测试")
	}
	for _, numeric := range []string{"float64", "bigfloat", "auto"} {
		for _, n := range []int{10000, 50000} {
			t.Run(fmt.Sprintf("%s_%d", numeric, n), func(t *testing.T) {
				const runs = 3
				latencies := make([]time.Duration, 0, runs)
				var last float64
				for i := 0; i < runs; i++ {
					comp, set, err := cfgpkg.Assemble(baseConfig(n, numeric))
					if err != nil {
						t.Fatalf("assemble: %v", err)
					}
					start := time.Now()
					rep, _, err := pipeline.Run(context.Background(), comp, set, nil)
					if err != nil {
						t.Fatalf("run %d: %v", i, err)
					}
					latencies = append(latencies, time.Since(start))
					// 相同输入的结果必须逐次一致
					if i > 0 && rep.FinalConstant != last {
						t.Fatalf("run %d: c=%v, 上次 %v", i, rep.FinalConstant, last)
					}
					last = rep.FinalConstant
				}
				sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
				var total time.Duration
				for _, d := range latencies {
					total += d
				}
				avg := total / time.Duration(len(latencies))
				idx := int(math.Ceil(float64(len(latencies))*0.95)) - 1
				if idx < 0 {
					idx = 0
				}
				t.Logf("%s N=%d 平均%v 95%%延迟%v c=%.10f", numeric, n, avg, latencies[idx], last)
			})
		}
	}
}
