package perf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	m := &Metrics{
		Impressions: 1000,
		Clicks:      50,
		Spend:       25.0,
		Conversions: 5,
	}
	m.Derive()

	require.InDelta(t, 5.0, m.CTR, 1e-9)  // 50/1000 * 100
	require.InDelta(t, 0.5, m.CPC, 1e-9)  // 25/50
	require.InDelta(t, 5.0, m.CPA, 1e-9)  // 25/5
	// 5*0.3 + (100 - 0.5*10)*0.3 + 5*0.4
	require.InDelta(t, 1.5+28.5+2.0, m.Score, 1e-9)
}

func TestDeriveZeroDenominators(t *testing.T) {
	m := &Metrics{Spend: 10}
	m.Derive()

	require.Zero(t, m.CTR)
	require.Zero(t, m.CPC)
	require.Zero(t, m.CPA)
	// Score collapses to the cost-efficiency term with CPC=0.
	require.InDelta(t, 30.0, m.Score, 1e-9)
}

func TestDeriveCapsCPCInScore(t *testing.T) {
	m := &Metrics{
		Impressions: 100,
		Clicks:      1,
		Spend:       50, // CPC 50, capped at 10 in the score
	}
	m.Derive()

	require.InDelta(t, 50.0, m.CPC, 1e-9)
	// ctr=1 -> 0.3; (100 - 10*10)*0.3 = 0
	require.InDelta(t, 0.3, m.Score, 1e-9)
}
