package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformSamples(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestBaselineInsufficientSamples(t *testing.T) {
	_, err := Baseline(uniformSamples(MinSamplesForBaseline-1, 150))
	require.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestBaselineUniformSamplesHaveZeroStddev(t *testing.T) {
	stats, err := Baseline(uniformSamples(MinSamplesForBaseline, 150))
	require.NoError(t, err)
	assert.InDelta(t, 150, stats.Mean, 1e-9)
	assert.InDelta(t, 0, stats.Stddev, 1e-9)
	assert.InDelta(t, 150, stats.P50, 1e-9)
	assert.InDelta(t, 150, stats.P95, 1e-9)
	assert.InDelta(t, 150, stats.P99, 1e-9)
}

func TestBaselinePercentilesKnownFixture(t *testing.T) {
	// 0..99 is a clean fixture for the linear-interpolation convention:
	// rank = p*(n-1).
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = float64(i)
	}
	stats, err := Baseline(samples)
	require.NoError(t, err)
	assert.InDelta(t, 49.5, stats.Mean, 1e-9)
	assert.InDelta(t, 49.5, stats.P50, 1e-9)
	assert.InDelta(t, 94.05, stats.P95, 1e-9)
	assert.InDelta(t, 98.01, stats.P99, 1e-9)
}

func TestSampleStddevBesselCorrection(t *testing.T) {
	// {2, 4, 4, 4, 5, 5, 7, 9} has a well-known sample stddev of 2.13809...
	base := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	samples := make([]float64, 0, MinSamplesForBaseline)
	for len(samples) < MinSamplesForBaseline {
		samples = append(samples, base...)
	}
	samples = samples[:MinSamplesForBaseline]
	stats, err := Baseline(samples)
	require.NoError(t, err)
	// The padded fixture is 12 copies of base plus {2, 4, 4, 4}: mean 4.94,
	// sum of squared deviations 395.64, so the n-1 divisor gives
	// sqrt(395.64/99) ≈ 1.99909 (the n divisor would give ≈ 1.98907).
	assert.InDelta(t, 4.94, stats.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(395.64/99), stats.Stddev, 1e-9)
	assert.Greater(t, stats.Stddev, 0.0)
}

func TestZScoreZeroStddevNeverAnomalous(t *testing.T) {
	assert.Equal(t, 0.0, ZScore(999, 150, 0))
}

func TestZScoreBasic(t *testing.T) {
	assert.InDelta(t, 2.0, ZScore(170, 150, 10), 1e-9)
	assert.InDelta(t, -1.0, ZScore(140, 150, 10), 1e-9)
}

func TestIsAnomaly(t *testing.T) {
	assert.True(t, IsAnomaly(3.1, DriftZScoreThreshold))
	assert.False(t, IsAnomaly(3.0, DriftZScoreThreshold))
	assert.True(t, IsAnomaly(-3.1, DriftZScoreThreshold))
}

func TestDetectDriftRuleAConsecutiveSevere(t *testing.T) {
	zs := make([]float64, 0, 10)
	for i := 0; i < 5; i++ {
		zs = append(zs, 3.5)
	}
	zs = append(zs, 0.1, 0.2, 0.1)
	drift, meta := DetectDrift(zs)
	require.True(t, drift)
	assert.Equal(t, RuleConsecutiveSevere, meta.Rule)
	assert.Equal(t, 5, meta.ConsecutiveCount)
}

func TestDetectDriftRuleATiesBreakOverRuleB(t *testing.T) {
	// Construct a window that could also satisfy Rule B, to assert A wins.
	zs := make([]float64, 20)
	for i := 0; i < 5; i++ {
		zs[i] = 3.5
	}
	for i := 5; i < 15; i++ {
		zs[i] = 2.8
	}
	drift, meta := DetectDrift(zs)
	require.True(t, drift)
	assert.Equal(t, RuleConsecutiveSevere, meta.Rule)
}

func TestDetectDriftRuleBModerateInWindow(t *testing.T) {
	zs := make([]float64, 20)
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			zs[i] = 2.8
		} else {
			zs[i] = 0.1
		}
	}
	drift, meta := DetectDrift(zs)
	require.True(t, drift)
	assert.Equal(t, RuleModerateInWindow, meta.Rule)
	assert.Equal(t, 10, meta.ModerateCount)
}

func TestDetectDriftNoDriftBelowThresholds(t *testing.T) {
	zs := make([]float64, 20)
	for i := range zs {
		zs[i] = 0.5
	}
	drift, meta := DetectDrift(zs)
	assert.False(t, drift)
	assert.Equal(t, RuleNone, meta.Rule)
}

func TestDetectDriftRuleBRequiresFullWindow(t *testing.T) {
	zs := make([]float64, 19)
	for i := range zs {
		zs[i] = 2.8
	}
	drift, _ := DetectDrift(zs)
	assert.False(t, drift, "fewer than DriftModerateWindow samples must never trigger rule B")
}

func TestIsRecoveredRequiresFullRun(t *testing.T) {
	zs := make([]float64, RecoveryConsecutiveNormal-1)
	assert.False(t, IsRecovered(zs, 0))
}

func TestIsRecoveredAllNormal(t *testing.T) {
	zs := make([]float64, RecoveryConsecutiveNormal)
	for i := range zs {
		zs[i] = 1.5
	}
	assert.True(t, IsRecovered(zs, 0))
}

func TestIsRecoveredOneOutlierBreaksRun(t *testing.T) {
	zs := make([]float64, RecoveryConsecutiveNormal)
	for i := range zs {
		zs[i] = 1.5
	}
	zs[10] = 2.1
	assert.False(t, IsRecovered(zs, 0))
}
