package sliding

import (
	"context"
	"errors"
	"math"
	"sort"

	"primelayer/pkg/contract"
)

// DefaultTops: 默认窗口上端。
var DefaultTops = []int{100, 500, 1000, 5000, 10000, 50000, 100000}

// Options 为 k 窗口采样器的可选配置（最小必要）。
type Options struct {
	// Tops: 窗口上端 w 列表；为空采用 DefaultTops。重复值与非正值被忽略。
	Tops []int `json:"tops"`
	// Fraction: 窗口下端比例，窗口为 [ceil(Fraction·w), w]。
	// 取值 (0,1]；越界采用默认 0.9。
	Fraction float64 `json:"fraction"`
}

// Sampler 生成以 w 结尾、向左覆盖 (1-Fraction)·w 的 k 窗口。
type Sampler struct {
	tops     []int
	fraction float64
}

// New 创建窗口采样器。
func New(opts *Options) *Sampler {
	tops := DefaultTops
	frac := 0.9
	if opts != nil {
		if len(opts.Tops) > 0 {
			tops = opts.Tops
		}
		if opts.Fraction > 0 && opts.Fraction <= 1 {
			frac = opts.Fraction
		}
	}
	return &Sampler{tops: normalize(tops), fraction: frac}
}

// Windows 返回完全落在 [1, n] 内的窗口，按 Top 升序。
func (s *Sampler) Windows(ctx context.Context, n int) ([]contract.Window, error) {
	if n < 0 {
		return nil, errors.New("sampler: n must be >= 0")
	}
	var out []contract.Window
	for _, w := range s.tops {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}
		if w > n {
			break
		}
		// 容差吸收 Fraction·w 的浮点舍入
		from := int(math.Ceil(s.fraction*float64(w) - 1e-9))
		if from < 1 {
			from = 1
		}
		out = append(out, contract.Window{Top: w, From: from, To: w})
	}
	return out, nil
}

// normalize: 去除非正值与重复值并升序。
func normalize(in []int) []int {
	out := make([]int, 0, len(in))
	for _, w := range in {
		if w > 0 {
			out = append(out, w)
		}
	}
	sort.Ints(out)
	uniq := out[:0]
	for i, w := range out {
		if i == 0 || w != out[i-1] {
			uniq = append(uniq, w)
		}
	}
	return uniq
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// 静态依赖，确保本包被引用时不会被 Go 工具链误删（如通过 registry 引用）。
var _ contract.Sampler = (*Sampler)(nil)
