package timeseries

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketSize(t *testing.T) {
	tests := []struct {
		name        string
		start, end  int64
		targetCount int
		want        int64
	}{
		{"整除", 0, 3600000, 15, 240000},
		{"向下取整", 0, 100, 3, 33},
		{"范围小于目标数", 0, 10, 15, 0},
		{"空范围", 1000, 1000, 15, 0},
		{"反向范围向下取整", 100, 0, 3, -34},
		{"非法目标数", 0, 1000, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BucketSize(tt.start, tt.end, tt.targetCount))
		})
	}
}

func TestDateAxis(t *testing.T) {
	assert.Equal(t, []int64{0, 1000, 2000}, DateAxis(0, 2000, 1000))
	// 起点向下对齐到桶边界
	assert.Equal(t, []int64{1000, 2000, 3000}, DateAxis(1500, 3200, 1000))
	assert.Empty(t, DateAxis(0, 2000, 0))
	assert.Empty(t, DateAxis(2000, 0, 1000))
}

func TestDateAxisNearInt64Limit(t *testing.T) {
	end := int64(math.MaxInt64)
	start := end - 1000

	dates := DateAxis(start, end, 66)
	require.NotEmpty(t, dates)
	assert.LessOrEqual(t, dates[0], start)
	for i := 1; i < len(dates); i++ {
		assert.Equal(t, int64(66), dates[i]-dates[i-1])
	}
	last := dates[len(dates)-1]
	assert.LessOrEqual(t, last, end)
	assert.Less(t, end-last, int64(66))
}
