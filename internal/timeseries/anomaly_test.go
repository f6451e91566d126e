package timeseries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bounds(x int64, lower, upper *float64) AnomalyBucket {
	return AnomalyBucket{X: x, Lower: lower, Upper: upper}
}

func score(x int64, s float64) AnomalyBucket {
	return AnomalyBucket{X: x, AnomalyScore: float64Ptr(s)}
}

func TestAnomalySeriesNotExecuted(t *testing.T) {
	assert.Nil(t, AnomalySeries(nil, []int64{0, 1}, 1000, 900000))
}

func TestAnomalyScorePoints(t *testing.T) {
	dates := []int64{1000, 2000, 3000}
	buckets := []AnomalyBucket{
		score(0, 90),    // 范围之前
		score(1000, 76), // 命中
		score(2000, 75), // 等于阈值不命中
		{X: 2500},       // 无分数
		score(3000, 80), // 命中（含 lastDate）
		score(4000, 99), // 范围之后
	}

	points := AnomalyScorePoints(buckets, dates, 500)

	require.Len(t, points, 2)
	assert.Equal(t, int64(1000), *points[0].X0)
	assert.Equal(t, int64(1500), points[0].X)
	assert.Equal(t, int64(3000), *points[1].X0)
	assert.Equal(t, int64(3500), points[1].X)
}

func TestAnomalyScoreWidthUsesLargerBucket(t *testing.T) {
	got := AnomalySeries([]AnomalyBucket{score(0, 100)}, []int64{0, 1000}, 1000, 900000)
	require.NotNil(t, got)
	require.Len(t, got.AnomalyScoreSeries.Data, 1)
	assert.Equal(t, int64(900000), got.AnomalyScoreSeries.Data[0].X)
	assert.Equal(t, "areaMaxHeight", got.AnomalyScoreSeries.Type)
	assert.True(t, got.AnomalyScoreSeries.HideLegend)
}

func TestAnomalyBoundaryEdgeRepair(t *testing.T) {
	dates := []int64{0, 1, 2}
	buckets := []AnomalyBucket{
		bounds(-1, float64Ptr(3), float64Ptr(7)),
		bounds(0, nil, nil),
		bounds(1, float64Ptr(4), float64Ptr(8)),
		bounds(2, nil, nil),
	}

	points := AnomalyBoundaryPoints(buckets, dates)

	require.Len(t, points, 2)
	assert.Equal(t, int64(0), points[0].X)
	assert.Equal(t, 3.0, *points[0].Y0)
	assert.Equal(t, 7.0, *points[0].Y)
	assert.Equal(t, int64(1), points[1].X)
	assert.Equal(t, 4.0, *points[1].Y0)
	assert.Equal(t, 8.0, *points[1].Y)

	// 入参未被修改
	assert.Nil(t, buckets[1].Lower)
}

func TestAnomalyBoundaryRepairsLastFromFollowing(t *testing.T) {
	dates := []int64{0, 1}
	buckets := []AnomalyBucket{
		bounds(0, float64Ptr(1), float64Ptr(2)),
		bounds(1, nil, nil),
		bounds(2, nil, nil),
		bounds(3, float64Ptr(5), float64Ptr(6)),
	}

	points := AnomalyBoundaryPoints(buckets, dates)

	require.Len(t, points, 2)
	assert.Equal(t, int64(1), points[1].X)
	assert.Equal(t, 5.0, *points[1].Y0)
	assert.Equal(t, 6.0, *points[1].Y)
}

func TestAnomalyBoundaryDropsNullMiddle(t *testing.T) {
	dates := []int64{0, 1, 2}
	buckets := []AnomalyBucket{
		bounds(0, float64Ptr(1), float64Ptr(2)),
		bounds(1, nil, float64Ptr(2)),
		bounds(2, float64Ptr(1), float64Ptr(2)),
	}
	points := AnomalyBoundaryPoints(buckets, dates)
	require.Len(t, points, 2)
	assert.Equal(t, int64(0), points[0].X)
	assert.Equal(t, int64(2), points[1].X)
}

func TestReplaceFirstAndLastBucketEmpty(t *testing.T) {
	assert.Empty(t, ReplaceFirstAndLastBucket([]AnomalyBucket{bounds(5, nil, nil)}, []int64{0, 1}))
	assert.Empty(t, ReplaceFirstAndLastBucket([]AnomalyBucket{bounds(0, nil, nil)}, nil))
}
