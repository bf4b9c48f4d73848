// Package csv 将报告编码为行式 CSV 工件：分解记录、收敛点、窗口统计各一张表。
package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"unicode/utf8"

	"primelayer/pkg/contract"
)

// 表名与工件后缀。
const (
	TableLayers      = "layers"
	TableConvergence = "convergence"
	TableWindows     = "windows"
)

var suffixes = map[string]string{
	TableLayers:      ".csv",
	TableConvergence: ".convergence.csv",
	TableWindows:     ".windows.csv",
}

// Options: CSV 编码选项。
type Options struct {
	// Tables: 需要导出的表；为空时导出全部。分解表总是带表头输出，
	// 其余表无数据时不产出工件。
	Tables []string `json:"tables"`
	// Comma: 字段分隔符（单个字符）；为空采用 ','。
	Comma string `json:"comma"`
}

type Encoder struct {
	tables []string
	comma  rune
}

// New 创建 CSV 编码器；未知表名或非法分隔符返回 ErrInvalidInput。
func New(opts *Options) (*Encoder, error) {
	e := &Encoder{tables: []string{TableLayers, TableConvergence, TableWindows}, comma: ','}
	if opts == nil {
		return e, nil
	}
	if len(opts.Tables) > 0 {
		e.tables = nil
		seen := map[string]bool{}
		for _, t := range opts.Tables {
			if _, ok := suffixes[t]; !ok {
				return nil, fmt.Errorf("%w: unknown csv table %q", contract.ErrInvalidInput, t)
			}
			if !seen[t] {
				seen[t] = true
				e.tables = append(e.tables, t)
			}
		}
	}
	if opts.Comma != "" {
		r, n := utf8.DecodeRuneInString(opts.Comma)
		if n != len(opts.Comma) || r == '"' || r == '\n' || r == '\r' {
			return nil, fmt.Errorf("%w: csv comma %q", contract.ErrInvalidInput, opts.Comma)
		}
		e.comma = r
	}
	return e, nil
}

var _ contract.Encoder = (*Encoder)(nil)

// Encode 按配置的表顺序产出工件。
func (e *Encoder) Encode(ctx context.Context, rep contract.AnalysisReport) ([]contract.Artifact, error) {
	var arts []contract.Artifact
	for _, t := range e.tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var header []string
		var rows [][]string
		switch t {
		case TableLayers:
			header, rows = contract.LayerHeader, rep.LayerRows()
		case TableConvergence:
			header, rows = contract.ConvergenceHeader, rep.ConvergenceRows()
		case TableWindows:
			header, rows = contract.WindowHeader, rep.WindowRows()
		}
		if len(rows) == 0 && t != TableLayers {
			continue
		}
		body, err := e.table(header, rows)
		if err != nil {
			return nil, fmt.Errorf("csv %s: %w", t, err)
		}
		arts = append(arts, contract.Artifact{Suffix: suffixes[t], Body: body})
	}
	return arts, nil
}

func (e *Encoder) table(header []string, rows [][]string) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = e.comma
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return &buf, nil
}
