package auto

import (
	"math/big"

	"primelayer/pkg/contract"
	"primelayer/plugins/numeric/arbitrary"
	"primelayer/plugins/numeric/fixed"
)

// Backend 按 P 的位宽自动切换：不超过 2^53 用双精度，否则用任意精度。
type Backend struct {
	small *fixed.Backend
	large *arbitrary.Backend
}

// New 创建自动切换后端；opts 传给任意精度部分。
func New(opts *arbitrary.Options) *Backend {
	return &Backend{small: fixed.New(), large: arbitrary.New(opts)}
}

var _ contract.Numeric = (*Backend)(nil)

func (b *Backend) Name() string { return "auto" }

func (b *Backend) Constant(p, s *big.Int) (contract.Estimate, error) {
	if p != nil && p.BitLen() <= fixed.SafeBits {
		return b.small.Constant(p, s)
	}
	return b.large.Constant(p, s)
}
