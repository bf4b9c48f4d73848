// Package yaml 将报告编码为 YAML 文档。
package yaml

import (
	"bytes"
	"context"

	"gopkg.in/yaml.v3"

	"primelayer/pkg/contract"
)

// Options: YAML 编码选项。
type Options struct {
	// Indent: 缩进空格数；<=0 采用 2。
	Indent int `json:"indent"`
	// IncludeRecords: 是否附带全量分解记录。
	IncludeRecords bool `json:"include_records"`
}

type Encoder struct {
	indent  int
	records bool
}

func New(opts *Options) *Encoder {
	e := &Encoder{indent: 2}
	if opts != nil {
		if opts.Indent > 0 {
			e.indent = opts.Indent
		}
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
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(e.indent)
	if err := enc.Encode(rep.Document(e.records)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return []contract.Artifact{{Suffix: ".yaml", Body: &buf}}, nil
}
