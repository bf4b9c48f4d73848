package arbitrary

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"primelayer/pkg/contract"
	"primelayer/plugins/numeric/fixed"
)

func pow10(n int64) *big.Int { return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil) }

// TestAgreesWithFixed 双精度范围内两后端一致
func TestAgreesWithFixed(t *testing.T) {
	b := New(nil)
	cases := [][2]int64{{7919, 6725}, {104729, 93358}, {1299709, 1189225}, {11, 5}}
	for _, c := range cases {
		want, err := fixed.Constant64(c[0], c[1])
		require.NoError(t, err)
		got, err := b.Constant(big.NewInt(c[0]), big.NewInt(c[1]))
		require.NoError(t, err)
		require.Equal(t, "bigfloat", got.Backend)
		require.InDelta(t, want, got.Value, 1e-12)
	}
}

// TestBeyondFloatRange 超出 float64 范围的 P
func TestBeyondFloatRange(t *testing.T) {
	b := New(&Options{Prec: 192})
	cases := map[int64]float64{400: 6.292807858608399, 1000: 17.84396897591242}
	for exp, want := range cases {
		p := pow10(exp)
		v := pow10(exp - 3)
		s := new(big.Int).Sub(p, v)
		got, err := b.Constant(p, s)
		require.NoError(t, err)
		require.False(t, math.IsInf(got.Value, 0))
		require.InDelta(t, want, got.Value, 1e-9, "10^%d", exp)
	}
}

func TestUndefined(t *testing.T) {
	b := New(nil)
	_, err := b.Constant(big.NewInt(2), big.NewInt(1))
	require.True(t, errors.Is(err, contract.ErrUndefinedIndex))
	_, err = b.Constant(big.NewInt(5), big.NewInt(0))
	require.True(t, errors.Is(err, contract.ErrInvalidInput))
}
