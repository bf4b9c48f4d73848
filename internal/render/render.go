// Package render 将 AnalysisReport 渲染为终端文本（表格 + 摘要）。
// 仅消费报告，不做任何计算。
package render

import (
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"primelayer/pkg/contract"
)

// maxDigits: 大整数超过该位数时截断显示。
const maxDigits = 24

// Printer 持有按输出端探测颜色能力的样式。
type Printer struct {
	w      io.Writer
	title  lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	muted  lipgloss.Style
	good   lipgloss.Style
	bad    lipgloss.Style
}

// New 创建渲染器；非 TTY 输出端自动退化为纯文本。
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:      w,
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3")),
		header: r.NewStyle().Bold(true).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
		muted:  r.NewStyle().Foreground(lipgloss.Color("#808080")),
		good:   r.NewStyle().Foreground(lipgloss.Color("#8BC34A")),
		bad:    r.NewStyle().Foreground(lipgloss.Color("#e53935")),
	}
}

// Report 渲染完整分析报告。
func (p *Printer) Report(rep contract.AnalysisReport) error {
	var sb strings.Builder
	sb.WriteString(p.title.Render(fmt.Sprintf("素数层分析（N = %s）", humanize.Comma(int64(rep.Primes)))))
	sb.WriteString("\n\n")
	if len(rep.Samples) > 0 {
		p.section(&sb, "样例分解", []string{"k", "P", "V", "S", "P/S"}, sampleRows(rep.Samples))
	}
	p.verification(&sb, rep.Verification)
	p.stats(&sb, rep.Constant)
	if len(rep.Windows) > 0 {
		p.section(&sb, "窗口比值", []string{"窗口", "平均 P", "c", "误差%"}, windowRows(rep.Windows))
	}
	p.convergence(&sb, rep.Convergence, rep.Skipped.Convergence, rep.Skipped.Precision)
	p.final(&sb, rep)
	_, err := io.WriteString(p.w, sb.String())
	return err
}

// Verification 仅渲染双射校验结果。
func (p *Printer) Verification(res contract.VerificationResult) error {
	var sb strings.Builder
	p.verification(&sb, res)
	_, err := io.WriteString(p.w, sb.String())
	return err
}

// Constant 渲染常数均值统计与收敛点表。
func (p *Printer) Constant(st contract.ConstantStats, pts []contract.ConvergencePoint, skipped, precision int) error {
	var sb strings.Builder
	p.stats(&sb, st)
	p.convergence(&sb, pts, skipped, precision)
	_, err := io.WriteString(p.w, sb.String())
	return err
}

// Convergence 仅渲染收敛点表。
func (p *Printer) Convergence(pts []contract.ConvergencePoint, skipped, precision int) error {
	var sb strings.Builder
	p.convergence(&sb, pts, skipped, precision)
	_, err := io.WriteString(p.w, sb.String())
	return err
}

func (p *Printer) verification(sb *strings.Builder, v contract.VerificationResult) {
	sb.WriteString(p.title.Render("双射校验 V(Pk) = C(k-3)"))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  区间 k ∈ [%s, %s]，跳过 %d\n", humanize.Comma(int64(v.From)), humanize.Comma(int64(v.To)), v.Skipped)
	acc := fmt.Sprintf("%s/%s 匹配（%.2f%%）", humanize.Comma(int64(v.Matches)), humanize.Comma(int64(v.Total)), v.Accuracy)
	if v.Total > 0 && v.Matches == v.Total {
		acc = p.good.Render(acc)
	} else if v.MismatchTotal > 0 {
		acc = p.bad.Render(acc)
	}
	sb.WriteString("  " + acc + "\n")
	if len(v.Mismatches) > 0 {
		rows := make([][]string, 0, len(v.Mismatches))
		for _, m := range v.Mismatches {
			rows = append(rows, []string{strconv.Itoa(m.K), humanize.Comma(m.Void), humanize.Comma(m.Composite)})
		}
		p.table(sb, []string{"k", "V", "C(k-3)"}, rows)
		if v.MismatchTotal > len(v.Mismatches) {
			sb.WriteString(p.muted.Render(fmt.Sprintf("  … 另有 %d 处失配", v.MismatchTotal-len(v.Mismatches))))
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
}

func (p *Printer) stats(sb *strings.Builder, st contract.ConstantStats) {
	sb.WriteString(p.title.Render(fmt.Sprintf("常数均值（P > %s）", humanize.Comma(st.MinPrime))))
	sb.WriteString("\n")
	if st.Samples == 0 {
		sb.WriteString(p.muted.Render("  无样本"))
		sb.WriteString("\n\n")
		return
	}
	fmt.Fprintf(sb, "  样本 %s | 均值 %.6f | 标准差 %.6f | 误差 %.4f%%\n\n",
		humanize.Comma(int64(st.Samples)), st.Mean, st.StdDev, st.RelError)
}

func (p *Printer) convergence(sb *strings.Builder, pts []contract.ConvergencePoint, skipped, precision int) {
	if len(pts) == 0 && skipped == 0 && precision == 0 {
		return
	}
	rows := make([][]string, 0, len(pts))
	for _, pt := range pts {
		flag := ""
		if pt.LowConfidence {
			flag = "*"
		}
		rows = append(rows, []string{
			"10^" + strconv.Itoa(pt.Magnitude),
			bigDisplay(pt.P),
			bigDisplay(pt.V),
			strconv.FormatFloat(pt.C, 'f', 6, 64) + flag,
			strconv.FormatFloat(pt.RelError, 'f', 4, 64),
			string(pt.Derivation),
			pt.Backend,
		})
	}
	p.section(sb, "收敛 c → 2+√2", []string{"量级", "P", "V", "c", "误差%", "推导", "后端"}, rows)
	if skipped > 0 || precision > 0 {
		sb.WriteString(p.muted.Render(fmt.Sprintf("  跳过：无定义 %d，精度不足 %d", skipped, precision)))
		sb.WriteString("\n")
	}
	for _, pt := range pts {
		if pt.LowConfidence {
			sb.WriteString(p.muted.Render("  * 渐近估计，低置信"))
			sb.WriteString("\n")
			break
		}
	}
	sb.WriteString("\n")
}

func (p *Printer) final(sb *strings.Builder, rep contract.AnalysisReport) {
	line := fmt.Sprintf("目标 2+√2 = %.10f", rep.Target)
	switch {
	case rep.FinalMagnitude >= 0:
		line += fmt.Sprintf(" | 10^%d 处 c = %.10f（误差 %.4f%%）", rep.FinalMagnitude, rep.FinalConstant, relErr(rep.FinalConstant, rep.Target))
	case rep.Constant.Samples > 0:
		line += fmt.Sprintf(" | 均值 c = %.10f（误差 %.4f%%）", rep.FinalConstant, relErr(rep.FinalConstant, rep.Target))
	}
	sb.WriteString(p.title.Render(line))
	sb.WriteString("\n")
}

func (p *Printer) section(sb *strings.Builder, title string, headers []string, rows [][]string) {
	sb.WriteString(p.title.Render(title))
	sb.WriteString("\n")
	p.table(sb, headers, rows)
	sb.WriteString("\n")
}

// table 以列宽对齐渲染表格；数值列右对齐。
func (p *Printer) table(sb *strings.Builder, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range r {
			if i < len(widths) && lipgloss.Width(c) > widths[i] {
				widths[i] = lipgloss.Width(c)
			}
		}
	}
	sep := p.muted.Render("│")
	for i, h := range headers {
		sb.WriteString(p.header.Width(widths[i] + 2).Render(h))
		if i < len(headers)-1 {
			sb.WriteString(sep)
		}
	}
	sb.WriteString("\n")
	for i, w := range widths {
		sb.WriteString(p.muted.Render(strings.Repeat("─", w+2)))
		if i < len(widths)-1 {
			sb.WriteString(p.muted.Render("┼"))
		}
	}
	sb.WriteString("\n")
	for _, r := range rows {
		for i, c := range r {
			if i >= len(widths) {
				break
			}
			sb.WriteString(p.cell.Width(widths[i] + 2).Align(lipgloss.Right).Render(c))
			if i < len(widths)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
	}
}

func sampleRows(recs []contract.LayerRecord) [][]string {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			humanize.Comma(int64(r.K)),
			humanize.Comma(r.P),
			humanize.Comma(r.V),
			humanize.Comma(r.S),
			strconv.FormatFloat(r.Ratio, 'f', 6, 64),
		})
	}
	return rows
}

func windowRows(ws []contract.WindowStat) [][]string {
	rows := make([][]string, 0, len(ws))
	for _, w := range ws {
		rows = append(rows, []string{
			fmt.Sprintf("%s–%s", humanize.Comma(int64(w.From)), humanize.Comma(int64(w.To))),
			humanize.CommafWithDigits(w.AvgPrime, 1),
			strconv.FormatFloat(w.Constant, 'f', 6, 64),
			strconv.FormatFloat(w.RelError, 'f', 4, 64),
		})
	}
	return rows
}

// bigDisplay 千分位显示大整数；过长时保留首位数字并标注总位数。
func bigDisplay(x *big.Int) string {
	if x == nil {
		return ""
	}
	s := x.String()
	if len(s) <= maxDigits {
		return humanize.BigComma(x)
	}
	return fmt.Sprintf("%s…（%d 位）", s[:12], len(s))
}

func relErr(c, target float64) float64 {
	if target == 0 {
		return 0
	}
	d := c - target
	if d < 0 {
		d = -d
	}
	return 100 * d / target
}
