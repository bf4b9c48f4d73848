package layer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"primelayer/pkg/contract"
	"primelayer/plugins/sieve/segmented"
	"primelayer/plugins/void/endpoint"
)

func build(t *testing.T, n int) *Table {
	t.Helper()
	seq, err := segmented.New(nil).Generate(context.Background(), contract.GenerateRequest{Count: n})
	require.NoError(t, err)
	tab, err := Build(context.Background(), seq, endpoint.New(nil))
	require.NoError(t, err)
	return tab
}

func TestDecomposeKnown(t *testing.T) {
	tab := build(t, 10000)
	require.Equal(t, 10000, tab.Len())
	require.Equal(t, "endpoint", tab.Rule())

	cases := []contract.LayerRecord{
		{K: 1, P: 2, V: 1, S: 1},
		{K: 2, P: 3, V: 2, S: 1},
		{K: 3, P: 5, V: 3, S: 2},
		{K: 4, P: 7, V: 4, S: 3},
		{K: 10, P: 29, V: 14, S: 15},
		{K: 100, P: 541, V: 129, S: 412},
		{K: 1000, P: 7919, V: 1194, S: 6725},
		{K: 10000, P: 104729, V: 11371, S: 93358},
	}
	for _, want := range cases {
		got, err := tab.Decompose(want.K)
		require.NoError(t, err)
		require.Equal(t, want.P, got.P, "k=%d", want.K)
		require.Equal(t, want.V, got.V, "k=%d", want.K)
		require.Equal(t, want.S, got.S, "k=%d", want.K)
		require.InDelta(t, float64(want.P)/float64(want.S), got.Ratio, 1e-12)
	}
}

func TestDecomposeOutOfRange(t *testing.T) {
	tab := build(t, 10)
	for _, k := range []int{0, -1, 11} {
		_, err := tab.Decompose(k)
		require.True(t, errors.Is(err, contract.ErrUndefinedIndex), "k=%d: %v", k, err)
	}
}

// TestRecordsInvariant 每条记录 V+S=P 且 K 连续
func TestRecordsInvariant(t *testing.T) {
	tab := build(t, 5000)
	recs := tab.Records()
	require.NoError(t, contract.ValidateRecords(recs))
	for i, r := range recs {
		require.Equal(t, i+1, r.K)
	}
	// 副本不影响表
	recs[0].V = 99
	r1, _ := tab.Decompose(1)
	require.EqualValues(t, 1, r1.V)
}

func TestVerifyFull(t *testing.T) {
	tab := build(t, 10000)
	res, err := tab.Verify(context.Background(), 1, 10000, DefaultMaxMismatches)
	require.NoError(t, err)
	require.Equal(t, 3, res.Skipped)
	require.Equal(t, 9997, res.Total)
	require.Equal(t, 9997, res.Matches)
	require.Equal(t, 100.0, res.Accuracy)
	require.Empty(t, res.Mismatches)
}

func TestVerifyOnlyBaseLayer(t *testing.T) {
	tab := build(t, 10)
	res, err := tab.Verify(context.Background(), 1, 3, DefaultMaxMismatches)
	require.NoError(t, err)
	require.Equal(t, 0, res.Total)
	require.Equal(t, 3, res.Skipped)
	require.Equal(t, 0.0, res.Accuracy)
}

func TestVerifyErrors(t *testing.T) {
	tab := build(t, 10)
	_, err := tab.Verify(context.Background(), 5, 4, 0)
	require.True(t, errors.Is(err, contract.ErrInvalidInput))
	_, err = tab.Verify(context.Background(), 0, 4, 0)
	require.True(t, errors.Is(err, contract.ErrInvalidInput))
	_, err = tab.Verify(context.Background(), 1, 11, 0)
	require.True(t, errors.Is(err, contract.ErrInsufficientRange))
}

// shiftRule 在基础层之后把 Void 整体 +1，用于制造失配
type shiftRule struct{ inner contract.VoidRule }

func (s shiftRule) Name() string { return "shift" }

func (s shiftRule) Voids(ctx context.Context, primes []int64) ([]int64, error) {
	vs, err := s.inner.Voids(ctx, primes)
	if err != nil {
		return nil, err
	}
	for i := 3; i < len(vs); i++ {
		vs[i]++
	}
	return vs, nil
}

func TestVerifyMismatchCap(t *testing.T) {
	seq, err := segmented.New(nil).Generate(context.Background(), contract.GenerateRequest{Count: 100})
	require.NoError(t, err)
	tab, err := Build(context.Background(), seq, shiftRule{inner: endpoint.New(nil)})
	require.NoError(t, err)
	res, err := tab.Verify(context.Background(), 1, 100, 5)
	require.NoError(t, err)
	require.Equal(t, 97, res.Total)
	require.Equal(t, 0, res.Matches)
	require.Equal(t, 97, res.MismatchTotal)
	require.Len(t, res.Mismatches, 5)
	require.Equal(t, contract.Mismatch{K: 4, Void: 5, Composite: 4}, res.Mismatches[0])
}

// badRule 返回 V >= P
type badRule struct{}

func (badRule) Name() string { return "bad" }
func (badRule) Voids(_ context.Context, primes []int64) ([]int64, error) {
	return append([]int64(nil), primes...), nil
}

func TestBuildRejectsBadRule(t *testing.T) {
	seq := contract.Sequences{Primes: []int64{2, 3}}
	_, err := Build(context.Background(), seq, badRule{})
	require.True(t, errors.Is(err, contract.ErrInvariantViolation))
	_, err = Build(context.Background(), seq, nil)
	require.True(t, errors.Is(err, contract.ErrInvalidInput))
}

func TestCompositesAligned(t *testing.T) {
	tab := build(t, 10)
	require.Equal(t, []int64{0, 0, 0, 4, 6, 8, 9, 10, 12, 14}, tab.Composites())
}
