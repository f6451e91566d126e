package timeseries

// AnomalyThreshold 异常分数高亮阈值
const AnomalyThreshold = 75

const (
	anomalyScoreAreaColor    = "rgba(231,102,76,0.1)"
	anomalyBoundaryAreaColor = "rgba(96,146,192,0.1)"
)

// AnomalySeries 生成异常叠加层
// buckets 为 nil 表示未执行异常查询（服务未配置异常检测任务），返回 nil
func AnomalySeries(buckets []AnomalyBucket, dates []int64, bucketSize, mlBucketSize int64) *AnomalyTimeSeries {
	if buckets == nil {
		return nil
	}
	width := max(bucketSize, mlBucketSize)

	return &AnomalyTimeSeries{
		AnomalyScoreSeries: Series{
			Title:            "Anomaly score",
			HideLegend:       true,
			HideTooltipValue: true,
			Data:             AnomalyScorePoints(buckets, dates, width),
			Type:             "areaMaxHeight",
			Color:            "none",
			AreaColor:        anomalyScoreAreaColor,
		},
		AnomalyBoundariesSeries: Series{
			Title:            "Anomaly Boundaries",
			HideLegend:       true,
			HideTooltipValue: true,
			Data:             AnomalyBoundaryPoints(buckets, dates),
			Type:             "area",
			Color:            "none",
			AreaColor:        anomalyBoundaryAreaColor,
		},
	}
}

// AnomalyScorePoints 分数超过阈值且位于日期轴范围内的桶，输出为 [x, x+width) 区间
func AnomalyScorePoints(buckets []AnomalyBucket, dates []int64, width int64) []Coordinate {
	points := []Coordinate{}
	if len(dates) == 0 {
		return points
	}
	firstDate, lastDate := dates[0], dates[len(dates)-1]
	for _, b := range buckets {
		if b.AnomalyScore == nil || *b.AnomalyScore <= AnomalyThreshold {
			continue
		}
		if b.X < firstDate || b.X > lastDate {
			continue
		}
		points = append(points, Coordinate{
			X0: int64Ptr(b.X),
			X:  b.X + width,
		})
	}
	return points
}

// AnomalyBoundaryPoints 修复首尾空边界后输出上下界，仍为空的桶被丢弃
func AnomalyBoundaryPoints(buckets []AnomalyBucket, dates []int64) []Coordinate {
	points := []Coordinate{}
	for _, b := range ReplaceFirstAndLastBucket(buckets, dates) {
		if !hasBounds(b) {
			continue
		}
		points = append(points, Coordinate{
			X:  b.X,
			Y0: b.Lower,
			Y:  b.Upper,
		})
	}
	return points
}

// ReplaceFirstAndLastBucket 裁剪到日期轴范围，并修复首尾桶的空边界
// 首桶取 firstDate 之前（含）最近的有值桶，尾桶取其后最近的有值桶；不修改入参
func ReplaceFirstAndLastBucket(buckets []AnomalyBucket, dates []int64) []AnomalyBucket {
	if len(dates) == 0 {
		return []AnomalyBucket{}
	}
	firstDate, lastDate := dates[0], dates[len(dates)-1]

	var (
		inRange   []AnomalyBucket
		preValue  *AnomalyBucket
		lastIndex = -1
	)
	for i := range buckets {
		b := buckets[i]
		if b.X <= firstDate && hasBounds(b) {
			preValue = &buckets[i]
		}
		if b.X >= firstDate && b.X <= lastDate {
			inRange = append(inRange, b)
			lastIndex = i
		}
	}
	if len(inRange) == 0 {
		return []AnomalyBucket{}
	}

	first := &inRange[0]
	if preValue != nil && !hasBounds(*first) {
		first.Lower, first.Upper = preValue.Lower, preValue.Upper
	}

	last := &inRange[len(inRange)-1]
	if !hasBounds(*last) {
		for _, b := range buckets[lastIndex+1:] {
			if hasBounds(b) {
				last.Lower, last.Upper = b.Lower, b.Upper
				break
			}
		}
	}
	return inRange
}

func hasBounds(b AnomalyBucket) bool {
	return b.Lower != nil && b.Upper != nil
}
