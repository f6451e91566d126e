package timeseries

// BucketSize 计算均匀桶宽（毫秒）: floor((end - start) / targetCount)
// 结果 <= 0 时调用方应视为无数据
func BucketSize(start, end int64, targetCount int) int64 {
	if targetCount <= 0 {
		return 0
	}
	return floorDiv(end-start, int64(targetCount))
}

// DateAxis 生成 [start, end] 范围内等间隔的日期轴
// 起点按桶宽向下对齐，与 date_histogram 的桶 key 一致
func DateAxis(start, end, bucketSize int64) []int64 {
	if bucketSize <= 0 || end < start {
		return []int64{}
	}
	first := floorDiv(start, bucketSize) * bucketSize
	dates := make([]int64, 0, (end-first)/bucketSize+1)
	for x := first; ; x += bucketSize {
		dates = append(dates, x)
		// 先比较剩余跨度再累加，end 接近 int64 上限时 x 不会回绕
		if end-x < bucketSize {
			break
		}
	}
	return dates
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
