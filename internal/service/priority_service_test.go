package service

import (
	"context"
	"testing"

	"smartinfra-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorePothole_WithRoadInfo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// confidence 0.8 * importance 1.2 * factor 1.0 * speedWeight(60)=1.6 => 1.536
	p := env.seedPothole(t, 0.8)
	env.seedRoadInfo(t, p.PotholeID, 1.2, 1.0, int32Ptr(60))

	res, err := env.priority.ScorePothole(ctx, p.PotholeID)
	require.NoError(t, err)
	assert.InDelta(t, 1.536, res.Score, 1e-9)
	assert.Equal(t, domain.PriorityCritical, res.Level)

	// 评分已落库
	stored, err := env.potholes.GetPothole(ctx, p.PotholeID)
	require.NoError(t, err)
	require.True(t, stored.Scored())
	assert.InDelta(t, 1.536, stored.PriorityScore.Float64, 1e-9)
	assert.Equal(t, string(domain.PriorityCritical), stored.PriorityLevel.String)
}

func TestScorePothole_DefaultsWithoutRoadInfo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 无道路信息: importance=2.0, factor=2.0, speedWeight=1.0
	p := env.seedPothole(t, 0.5)

	res, err := env.priority.ScorePothole(ctx, p.PotholeID)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Score, 1e-9) // 0.5*2*2*1

	b, err := env.priority.Explain(ctx, p.PotholeID)
	require.NoError(t, err)
	assert.True(t, b.UsedRoadDefaults)
	assert.InDelta(t, 2.0, b.TrafficImportance, 1e-9)
	assert.InDelta(t, 2.0, b.PriorityFactor, 1e-9)
	assert.InDelta(t, 1.0, b.SpeedWeight, 1e-9)
}

func TestScorePothole_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.seedPothole(t, 0.7)
	env.seedRoadInfo(t, p.PotholeID, 1.5, 1.1, nil)

	first, err := env.priority.ScorePothole(ctx, p.PotholeID)
	require.NoError(t, err)
	second, err := env.priority.ScorePothole(ctx, p.PotholeID)
	require.NoError(t, err)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Level, second.Level)
}

func TestScorePothole_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.priority.ScorePothole(context.Background(), "no-such-pothole")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScorePothole_Buckets(t *testing.T) {
	// 切点 0.3/0.6/0.9；通过置信度控制落档（无道路信息时 score = confidence*4）
	cases := []struct {
		name       string
		confidence float64
		want       domain.PriorityLevel
	}{
		{"low", 0.05, domain.PriorityLow},           // 0.2
		{"medium", 0.1, domain.PriorityMedium},      // 0.4
		{"high", 0.2, domain.PriorityHigh},          // 0.8
		{"critical", 0.3, domain.PriorityCritical},  // 1.2
		{"boundary_medium", 0.075, domain.PriorityMedium}, // 0.3 落 MEDIUM
		{"zero", 0, domain.PriorityLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			p := env.seedPothole(t, tc.confidence)
			res, err := env.priority.ScorePothole(context.Background(), p.PotholeID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Level, "score=%v", res.Score)
		})
	}
}

func TestExplain_DoesNotPersist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.seedPothole(t, 0.9)
	_, err := env.priority.Explain(ctx, p.PotholeID)
	require.NoError(t, err)

	stored, err := env.potholes.GetPothole(ctx, p.PotholeID)
	require.NoError(t, err)
	assert.False(t, stored.Scored())
}
