package contract

import (
	"context"
	"io"
)

// Artifact: 编码产物。Suffix 追加到导出基名之后（如 ".csv"、".convergence.csv"）。
type Artifact struct {
	Suffix string
	Body   io.Reader
}

// Encoder: 将报告编码为一个或多个工件。
type Encoder interface {
	Encode(ctx context.Context, rep AnalysisReport) ([]Artifact, error)
}
