package timeseries

// Coordinate 图表坐标点，Y 为 nil 时序列化为 null，前端按断点渲染
type Coordinate struct {
	X  int64    `json:"x"`
	X0 *int64   `json:"x0,omitempty"` // 区间起点（异常分数高亮使用）
	Y  *float64 `json:"y"`
	Y0 *float64 `json:"y0,omitempty"` // 区间下界（异常边界使用）
}

// Series 图表序列
type Series struct {
	Title            string       `json:"title"`
	TitleShort       string       `json:"titleShort,omitempty"`
	HideLegend       bool         `json:"hideLegend,omitempty"`
	HideTooltipValue bool         `json:"hideTooltipValue,omitempty"`
	Data             []Coordinate `json:"data"`
	LegendValue      string       `json:"legendValue,omitempty"`
	Type             string       `json:"type"`
	Color            string       `json:"color"`
	AreaColor        string       `json:"areaColor,omitempty"`
}

// LatencyBucket 响应时间直方图桶（单位：微秒）
type LatencyBucket struct {
	Key      int64
	DocCount int64
	Avg      *float64
	P95      *float64
	P99      *float64
}

// CountBucket 计数直方图桶
type CountBucket struct {
	Key      int64
	DocCount int64
}

// ResultBucket 按 transaction.result 分组的吞吐量桶
type ResultBucket struct {
	Key        string
	DocCount   int64
	Timeseries []CountBucket
}

// RawTimeseries 文档存储返回的原始聚合结果
type RawTimeseries struct {
	TotalHits          int64
	OverallAvgDuration *float64
	ResponseTimes      []LatencyBucket
	TransactionResults []ResultBucket
}

// ResponseTimes 三条延迟序列
type ResponseTimes struct {
	Avg []Coordinate `json:"avg"`
	P95 []Coordinate `json:"p95"`
	P99 []Coordinate `json:"p99"`
}

// TpmBucket 单个结果分类的吞吐量（每分钟）
type TpmBucket struct {
	Key        string       `json:"key"`
	DataPoints []Coordinate `json:"dataPoints"`
}

// Timeseries 转换后的时间序列
type Timeseries struct {
	TotalHits          int64         `json:"totalHits"`
	Dates              []int64       `json:"dates"`
	ResponseTimes      ResponseTimes `json:"responseTimes"`
	TpmBuckets         []TpmBucket   `json:"tpmBuckets"`
	OverallAvgDuration *float64      `json:"overallAvgDuration"`
}

// AnomalyBucket 异常检测聚合桶
type AnomalyBucket struct {
	X            int64
	AnomalyScore *float64
	Lower        *float64
	Upper        *float64
}

// AnomalyTimeSeries 异常叠加层
type AnomalyTimeSeries struct {
	AnomalyScoreSeries      Series `json:"anomalyScoreSeries"`
	AnomalyBoundariesSeries Series `json:"anomalyBoundariesSeries"`
}

func float64Ptr(v float64) *float64 {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}
