package yaml

import (
	"context"
	"io"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"primelayer/pkg/contract"
)

func TestEncode(t *testing.T) {
	rep := contract.AnalysisReport{
		Primes:         4,
		FinalConstant:  2.5,
		FinalMagnitude: 1,
		Samples:        []contract.LayerRecord{{K: 4, P: 7, V: 4, S: 3, Ratio: 7.0 / 3}},
		Convergence: []contract.ConvergencePoint{{
			Magnitude: 1, K: big.NewInt(5), P: big.NewInt(11), V: big.NewInt(6), S: big.NewInt(5),
			C: 2.5, Derivation: contract.DerivationLayer, Backend: "float64",
		}},
		Skipped: contract.SkipCounts{Bijection: 3},
	}
	arts, err := New(nil).Encode(context.Background(), rep)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	require.Equal(t, ".yaml", arts[0].Suffix)
	raw, err := io.ReadAll(arts[0].Body)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), "primes: 4\n"), string(raw))
	require.Contains(t, string(raw), "final_magnitude: 1")

	var doc contract.Document
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	require.Equal(t, "11", doc.Convergence[0].Prime)
	require.Equal(t, 3, doc.Skipped.Bijection)
	require.Equal(t, int64(4), doc.Samples[0].Void)
	require.Nil(t, doc.Records)
}

func TestEncodeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&Options{Indent: 4}).Encode(ctx, contract.AnalysisReport{})
	require.ErrorIs(t, err, context.Canceled)
}
