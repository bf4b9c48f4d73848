package contract

import (
	"math/big"
	"strconv"
)

// 导出表头（行式序列化用）。
var (
	LayerHeader       = []string{"k", "prime", "void", "sum", "ratio", "composite", "bijection_match"}
	ConvergenceHeader = []string{"magnitude", "prime", "index", "void", "sum", "constant", "abs_error", "error_pct", "derivation", "backend", "low_confidence"}
	WindowHeader      = []string{"top", "from", "to", "count", "avg_prime", "constant", "error_pct"}
)

// Match 返回双射匹配标记：k<4 为 N/A。
func Match(k int, v, composite int64) string {
	if k < 4 {
		return "N/A"
	}
	if v == composite {
		return "YES"
	}
	return "NO"
}

// Fields 将记录展开为一行；composite 为 C(k-3)，k<4 时输出空串。
func (r LayerRecord) Fields(composite int64) []string {
	c := ""
	if r.K >= 4 {
		c = strconv.FormatInt(composite, 10)
	}
	return []string{
		strconv.Itoa(r.K),
		strconv.FormatInt(r.P, 10),
		strconv.FormatInt(r.V, 10),
		strconv.FormatInt(r.S, 10),
		strconv.FormatFloat(r.Ratio, 'f', 6, 64),
		c,
		Match(r.K, r.V, composite),
	}
}

// Fields 将收敛点展开为一行。
func (p ConvergencePoint) Fields() []string {
	return []string{
		strconv.Itoa(p.Magnitude),
		bigString(p.P),
		bigString(p.K),
		bigString(p.V),
		bigString(p.S),
		strconv.FormatFloat(p.C, 'f', 8, 64),
		strconv.FormatFloat(p.AbsError, 'g', 8, 64),
		strconv.FormatFloat(p.RelError, 'f', 6, 64),
		string(p.Derivation),
		p.Backend,
		strconv.FormatBool(p.LowConfidence),
	}
}

// Fields 将窗口统计展开为一行。
func (w WindowStat) Fields() []string {
	return []string{
		strconv.Itoa(w.Top),
		strconv.Itoa(w.From),
		strconv.Itoa(w.To),
		strconv.Itoa(w.Count),
		strconv.FormatFloat(w.AvgPrime, 'f', 2, 64),
		strconv.FormatFloat(w.Constant, 'f', 6, 64),
		strconv.FormatFloat(w.RelError, 'f', 4, 64),
	}
}

// LayerRows 返回全部分解记录的行视图（与 Records 同序）。
func (r AnalysisReport) LayerRows() [][]string {
	rows := make([][]string, 0, len(r.Records))
	for i, rec := range r.Records {
		var c int64
		if i < len(r.Composites) {
			c = r.Composites[i]
		}
		rows = append(rows, rec.Fields(c))
	}
	return rows
}

// ConvergenceRows 返回收敛点的行视图。
func (r AnalysisReport) ConvergenceRows() [][]string {
	rows := make([][]string, 0, len(r.Convergence))
	for _, p := range r.Convergence {
		rows = append(rows, p.Fields())
	}
	return rows
}

// WindowRows 返回窗口统计的行视图。
func (r AnalysisReport) WindowRows() [][]string {
	rows := make([][]string, 0, len(r.Windows))
	for _, w := range r.Windows {
		rows = append(rows, w.Fields())
	}
	return rows
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
