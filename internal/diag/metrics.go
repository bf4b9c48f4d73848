package diag

import (
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// 进程内指标（私有注册表，无 HTTP 端点）：
// - primelayer_op_total{comp,stage,result}
// - primelayer_error_total{comp,code}
// - primelayer_op_duration_ms{comp,stage}
type metricSet struct {
	reg      *prometheus.Registry
	ops      *prometheus.CounterVec
	errs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	metricsMu sync.RWMutex
	metrics   = newMetricSet()
)

func newMetricSet() *metricSet {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &metricSet{
		reg: reg,
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "primelayer",
			Name:      "op_total",
			Help:      "Pipeline operations by component, stage and result.",
		}, []string{"comp", "stage", "result"}),
		errs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "primelayer",
			Name:      "error_total",
			Help:      "Errors by component and classified code.",
		}, []string{"comp", "code"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "primelayer",
			Name:      "op_duration_ms",
			Help:      "Stage duration in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10), // 1ms .. ~4min
		}, []string{"comp", "stage"}),
	}
}

func current() *metricSet {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return metrics
}

// IncOp 累加操作计数（result=success|error|skip）。
func IncOp(comp, stage, result string) {
	current().ops.WithLabelValues(comp, stage, result).Inc()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	current().errs.WithLabelValues(comp, code).Inc()
}

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	current().duration.WithLabelValues(comp, stage).Observe(float64(durMS))
}

// ResetMetrics 丢弃已有指标（测试与多次运行隔离）。
func ResetMetrics() {
	metricsMu.Lock()
	metrics = newMetricSet()
	metricsMu.Unlock()
}

// GatherMetrics 返回当前指标快照。
func GatherMetrics() ([]*dto.MetricFamily, error) {
	return current().reg.Gather()
}

// WriteMetrics 以 Prometheus 文本格式写出全部指标。
func WriteMetrics(w io.Writer) error {
	mfs, err := GatherMetrics()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// CounterValue 返回计数器在给定标签下的值（未记录为 0）。
func CounterValue(name string, labels map[string]string) float64 {
	mfs, err := GatherMetrics()
	if err != nil {
		return 0
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m.GetLabel(), labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	n := 0
	for _, lp := range got {
		if v, ok := want[lp.GetName()]; ok {
			if v != lp.GetValue() {
				return false
			}
			n++
		}
	}
	return n == len(want)
}
