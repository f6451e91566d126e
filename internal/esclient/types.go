package esclient

import (
	"context"
	"encoding/json"
	"time"
)

// SearchRequest 一次聚合查询
type SearchRequest struct {
	OperationName string   // 用于调试日志
	Index         []string // 索引模式
	Body          any      // 查询 DSL，序列化为 JSON
}

// SearchResponse _search 响应外壳，聚合部分由调用方按需解析
type SearchResponse struct {
	Took         int             `json:"took"`
	TimedOut     bool            `json:"timed_out"`
	Hits         Hits            `json:"hits"`
	Aggregations json.RawMessage `json:"aggregations"`
}

// Hits 命中信息
type Hits struct {
	Total TotalHits `json:"total"`
	Hits  []Hit     `json:"hits"`
}

// Hit 单条文档
type Hit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

// TotalHits 兼容 6.x 的数字格式与 7.x 之后的 {value, relation} 格式
type TotalHits struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation"`
}

func (t *TotalHits) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		t.Value = n
		t.Relation = "eq"
		return nil
	}
	type alias TotalHits
	var v alias
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = TotalHits(v)
	return nil
}

// DecodeAggregations 将聚合结果解析到 dst
func (r *SearchResponse) DecodeAggregations(dst any) error {
	if len(r.Aggregations) == 0 {
		return nil
	}
	return json.Unmarshal(r.Aggregations, dst)
}

// MLJob 异常检测任务
type MLJob struct {
	JobID      string        `json:"jobId"`
	Groups     []string      `json:"groups"`
	BucketSpan time.Duration `json:"bucketSpan"`
}

// Searcher 文档存储查询接口
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// JobLister 异常检测任务查询接口
type JobLister interface {
	MLJobs(ctx context.Context, group string) ([]MLJob, error)
}

// ValueAgg 单值指标聚合 {value}
type ValueAgg struct {
	Value *float64 `json:"value"`
}

// PercentilesAgg 百分位聚合 {values: {"95.0": v}}
type PercentilesAgg struct {
	Values map[string]*float64 `json:"values"`
}

// Get 取指定百分位
func (p PercentilesAgg) Get(key string) *float64 {
	if p.Values == nil {
		return nil
	}
	return p.Values[key]
}
