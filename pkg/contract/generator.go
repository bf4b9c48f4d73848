package contract

import "context"

// Generator: 按数量或上界生成素数/合数序列。
// 约束：
//  1. 结果确定（同一请求得到相同序列）；
//  2. Count 模式下结果恰含 Count 个素数；区间不足时由实现内部扩展，不向外返回 ErrInsufficientRange；
//  3. ctx 取消需尽快返回。
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Sequences, error)
}
