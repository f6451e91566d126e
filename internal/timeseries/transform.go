package timeseries

import (
	"math"
	"regexp"
	"sort"
)

const (
	// TransactionResultMissing transaction.result 缺失时 terms 聚合使用的占位 key
	TransactionResultMissing = "transaction_result_missing"
	// NotAvailableLabel 空 key 的展示文本
	NotAvailableLabel = "N/A"
)

var httpClassPattern = regexp.MustCompile(`^HTTP (\d)xx$`)

// Transform 将原始聚合桶对齐到日期轴，生成延迟与吞吐量序列
// 缺失的值保留为 nil，不做插值
func Transform(raw RawTimeseries, dates []int64, bucketSize int64) Timeseries {
	avg := make(map[int64]*float64, len(raw.ResponseTimes))
	p95 := make(map[int64]*float64, len(raw.ResponseTimes))
	p99 := make(map[int64]*float64, len(raw.ResponseTimes))
	for _, b := range raw.ResponseTimes {
		avg[b.Key] = b.Avg
		p95[b.Key] = b.P95
		p99[b.Key] = b.P99
	}

	return Timeseries{
		TotalHits: raw.TotalHits,
		Dates:     dates,
		ResponseTimes: ResponseTimes{
			Avg: alignOnAxis(dates, avg),
			P95: alignOnAxis(dates, p95),
			P99: alignOnAxis(dates, p99),
		},
		TpmBuckets:         tpmBuckets(raw.TransactionResults, dates, bucketSize),
		OverallAvgDuration: raw.OverallAvgDuration,
	}
}

func alignOnAxis(dates []int64, values map[int64]*float64) []Coordinate {
	coords := make([]Coordinate, len(dates))
	for i, x := range dates {
		coords[i] = Coordinate{X: x, Y: values[x]}
	}
	return coords
}

func tpmBuckets(results []ResultBucket, dates []int64, bucketSize int64) []TpmBucket {
	buckets := make([]TpmBucket, 0, len(results))
	for _, result := range results {
		values := make(map[int64]*float64, len(result.Timeseries))
		for _, b := range result.Timeseries {
			values[b.Key] = float64Ptr(perMinute(b.DocCount, bucketSize))
		}
		key := result.Key
		if key == "" {
			key = NotAvailableLabel
		}
		buckets = append(buckets, TpmBucket{
			Key:        key,
			DataPoints: alignOnAxis(dates, values),
		})
	}

	// HTTP 状态分类排在最前面
	sort.SliceStable(buckets, func(i, j int) bool {
		return tpmSortKey(buckets[i].Key) < tpmSortKey(buckets[j].Key)
	})
	return buckets
}

func tpmSortKey(key string) string {
	return httpClassPattern.ReplaceAllString(key, "00$1")
}

func perMinute(count int64, bucketSize int64) float64 {
	if bucketSize <= 0 {
		return 0
	}
	v := float64(count) * 60000 / float64(bucketSize)
	return math.Round(v*10) / 10
}
