package contract

import "context"

// VoidRule: 层构造的“原点”函数，为每个素数给出 Void 值。
// 约束：
//  1. 纯函数：仅依赖素数序列，不得读取合数序列（否则双射校验失去意义）；
//  2. 返回切片与 primes 等长且对齐，0 <= V < P；
//  3. 确定性。
type VoidRule interface {
	Name() string
	Voids(ctx context.Context, primes []int64) ([]int64, error)
}
