package timeseries

import (
	"github.com/dustin/go-humanize"
)

// placeholderIntervals 空数据占位序列的等分段数
const placeholderIntervals = 10

// ChartsView 最终图表视图模型
type ChartsView struct {
	NoHits             bool     `json:"noHits"`
	ResponseTimeSeries []Series `json:"responseTimeSeries"`
	TpmSeries          []Series `json:"tpmSeries"`
}

// SelectCharts 组装图表属性
// 无匹配文档时直接使用平直占位序列，跳过转换结果
func SelectCharts(ts Timeseries, anomaly *AnomalyTimeSeries, start, end int64, transactionType string) ChartsView {
	if ts.TotalHits == 0 {
		return ChartsView{
			NoHits:             true,
			ResponseTimeSeries: EmptySeries(start, end),
			TpmSeries:          EmptySeries(start, end),
		}
	}
	return ChartsView{
		ResponseTimeSeries: ResponseTimeSeries(ts, anomaly),
		TpmSeries:          TpmSeries(ts, transactionType),
	}
}

// ResponseTimeSeries 延迟序列，异常叠加层插入在 Avg. 之后
func ResponseTimeSeries(ts Timeseries, anomaly *AnomalyTimeSeries) []Series {
	series := make([]Series, 0, 5)
	series = append(series, Series{
		Title:       "Avg.",
		Data:        ts.ResponseTimes.Avg,
		LegendValue: AsMillis(ts.OverallAvgDuration),
		Type:        "linemark",
		Color:       ColorBlue,
	})
	if anomaly != nil {
		series = append(series, anomaly.AnomalyScoreSeries, anomaly.AnomalyBoundariesSeries)
	}
	series = append(series,
		Series{
			Title:      "95th percentile",
			TitleShort: "95th",
			Data:       ts.ResponseTimes.P95,
			Type:       "linemark",
			Color:      ColorYellow,
		},
		Series{
			Title:      "99th percentile",
			TitleShort: "99th",
			Data:       ts.ResponseTimes.P99,
			Type:       "linemark",
			Color:      ColorOrange,
		},
	)
	return series
}

// TpmSeries 每个结果分类一条吞吐量序列
func TpmSeries(ts Timeseries, transactionType string) []Series {
	keys := make([]string, len(ts.TpmBuckets))
	for i, b := range ts.TpmBuckets {
		keys[i] = b.Key
	}
	colors := ColorsByKey(keys)
	unit := TpmUnit(transactionType)

	series := make([]Series, 0, len(ts.TpmBuckets))
	for _, b := range ts.TpmBuckets {
		title := b.Key
		if b.Key == TransactionResultMissing {
			title = ""
		}
		series = append(series, Series{
			Title:       title,
			Data:        b.DataPoints,
			LegendValue: AsDecimal(mean(b.DataPoints)) + " " + unit,
			Type:        "linemark",
			Color:       colors[b.Key],
		})
	}
	return series
}

// EmptySeries 覆盖 [start, end] 的平直占位序列，y 恒为 1
func EmptySeries(start, end int64) []Series {
	var data []Coordinate
	if end <= start {
		data = []Coordinate{{X: start, Y: float64Ptr(1)}}
	} else {
		// 拆成商和余数计算 (end-start)*i/placeholderIntervals，避免乘法溢出
		span := end - start
		step, rem := span/placeholderIntervals, span%placeholderIntervals
		data = make([]Coordinate, 0, placeholderIntervals+1)
		for i := int64(0); i <= placeholderIntervals; i++ {
			x := start + step*i + rem*i/placeholderIntervals
			data = append(data, Coordinate{X: x, Y: float64Ptr(1)})
		}
	}
	return []Series{{
		Title: "",
		Data:  data,
		Type:  "line",
		Color: ColorBlue,
	}}
}

// TpmUnit request 类型按 rpm 展示，其余为 tpm
func TpmUnit(transactionType string) string {
	if transactionType == "request" {
		return "rpm"
	}
	return "tpm"
}

// AsMillis 将微秒格式化为毫秒文本
func AsMillis(us *float64) string {
	if us == nil {
		return NotAvailableLabel
	}
	return humanize.CommafWithDigits(*us/1000, 1) + " ms"
}

// AsDecimal 保留一位小数的数值文本
func AsDecimal(v *float64) string {
	if v == nil {
		return NotAvailableLabel
	}
	return humanize.CommafWithDigits(*v, 1)
}

func mean(points []Coordinate) *float64 {
	var sum float64
	var n int
	for _, p := range points {
		if p.Y == nil {
			continue
		}
		sum += *p.Y
		n++
	}
	if n == 0 {
		return nil
	}
	return float64Ptr(sum / float64(n))
}
