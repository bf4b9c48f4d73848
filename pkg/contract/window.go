package contract

import "context"

// Window: k 区间（闭区间，1 起）。
type Window struct {
	Top  int
	From int
	To   int
}

// Sampler: 为比值分析挑选 k 窗口。
// 约束：
//  1. 仅返回完全落在 [1, n] 内的窗口；
//  2. 按 Top 严格升序，不重复；
//  3. 不读取记录内容。
type Sampler interface {
	Windows(ctx context.Context, n int) ([]Window, error)
}
