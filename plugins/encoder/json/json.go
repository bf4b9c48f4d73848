// Package json 将报告编码为单个 JSON 文档。
package json

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"primelayer/pkg/contract"
)

// Options: JSON 编码选项。
type Options struct {
	// Indent: 缩进空格数；<=0 输出紧凑 JSON。
	Indent int `json:"indent"`
	// IncludeRecords: 是否附带全量分解记录（N 较大时体积可观）。
	IncludeRecords bool `json:"include_records"`
}

type Encoder struct {
	indent  int
	records bool
}

func New(opts *Options) *Encoder {
	e := &Encoder{}
	if opts != nil {
		e.indent = opts.Indent
		e.records = opts.IncludeRecords
	}
	return e
}

var _ contract.Encoder = (*Encoder)(nil)

func (e *Encoder) Encode(ctx context.Context, rep contract.AnalysisReport) ([]contract.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if e.indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", e.indent))
	}
	if err := enc.Encode(rep.Document(e.records)); err != nil {
		return nil, err
	}
	return []contract.Artifact{{Suffix: ".json", Body: &buf}}, nil
}
