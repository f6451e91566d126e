package timeseries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformEmptyBuckets(t *testing.T) {
	dates := DateAxis(0, 5000, 1000)
	ts := Transform(RawTimeseries{
		TransactionResults: []ResultBucket{{Key: "HTTP 2xx"}},
	}, dates, 1000)

	require.Len(t, ts.ResponseTimes.Avg, len(dates))
	for _, series := range [][]Coordinate{ts.ResponseTimes.Avg, ts.ResponseTimes.P95, ts.ResponseTimes.P99, ts.TpmBuckets[0].DataPoints} {
		for i, c := range series {
			assert.Equal(t, dates[i], c.X)
			assert.Nil(t, c.Y)
		}
	}
}

func TestTransformAlignsOnAxis(t *testing.T) {
	dates := []int64{0, 1000, 2000}
	raw := RawTimeseries{
		TotalHits: 10,
		ResponseTimes: []LatencyBucket{
			{Key: 0, Avg: float64Ptr(100), P95: float64Ptr(150), P99: float64Ptr(190)},
			// 1000 缺失
			{Key: 2000, Avg: float64Ptr(150)},
			// 日期轴之外的桶被忽略
			{Key: 3000, Avg: float64Ptr(999)},
		},
		TransactionResults: []ResultBucket{
			{Key: "HTTP 5xx", Timeseries: []CountBucket{{Key: 0, DocCount: 1}}},
			{Key: "custom", Timeseries: []CountBucket{{Key: 1000, DocCount: 3}}},
			{Key: "HTTP 2xx", Timeseries: []CountBucket{{Key: 0, DocCount: 2}, {Key: 2000, DocCount: 0}}},
			{Key: "", Timeseries: nil},
		},
	}

	ts := Transform(raw, dates, 1000)

	assert.Equal(t, int64(10), ts.TotalHits)
	assert.Equal(t, dates, ts.Dates)
	assert.Equal(t, 100.0, *ts.ResponseTimes.Avg[0].Y)
	assert.Nil(t, ts.ResponseTimes.Avg[1].Y)
	assert.Equal(t, 150.0, *ts.ResponseTimes.Avg[2].Y)
	assert.Equal(t, 190.0, *ts.ResponseTimes.P99[0].Y)
	assert.Nil(t, ts.ResponseTimes.P95[2].Y)

	keys := make([]string, len(ts.TpmBuckets))
	for i, b := range ts.TpmBuckets {
		keys[i] = b.Key
	}
	assert.Equal(t, []string{"HTTP 2xx", "HTTP 5xx", "N/A", "custom"}, keys)

	// 每秒桶：每分钟吞吐量 = 计数 * 60
	http2xx := ts.TpmBuckets[0].DataPoints
	assert.Equal(t, 120.0, *http2xx[0].Y)
	assert.Nil(t, http2xx[1].Y)
	assert.Equal(t, 0.0, *http2xx[2].Y)
}

func TestPerMinute(t *testing.T) {
	assert.Equal(t, 1.0, perMinute(1, 60000))
	assert.Equal(t, 0.3, perMinute(1, 180000))
	assert.Equal(t, 0.0, perMinute(5, 0))
}

func TestColorsByKey(t *testing.T) {
	keys := []string{"HTTP 2xx", "HTTP 3xx", "HTTP 4xx", "HTTP 5xx", "a", "b"}
	colors := ColorsByKey(keys)

	assert.Equal(t, map[string]string{
		"HTTP 2xx": ColorGreen,
		"HTTP 3xx": ColorYellow,
		"HTTP 4xx": ColorOrange,
		"HTTP 5xx": ColorRed,
		"a":        "#6092C0",
		"b":        "#9170B8",
	}, colors)

	// 相同输入结果稳定
	assert.Equal(t, colors, ColorsByKey(keys))
}

func TestColorsByKeyWrapsAround(t *testing.T) {
	keys := []string{"k0", "k1", "k2", "k3", "k4", "k5", "k6", "k7"}
	colors := ColorsByKey(keys)
	assert.Equal(t, fallbackPalette[0], colors["k6"])
	assert.Equal(t, fallbackPalette[1], colors["k7"])
}
