package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/esclient"
	"github.com/dushixiang/apmview/internal/protocol"
	"github.com/dushixiang/apmview/internal/timeseries"
)

// TransactionResultMissing transaction.result 缺失时的分组键
const TransactionResultMissing = timeseries.TransactionResultMissing

// TimeseriesQuery 事务时间序列查询条件
type TimeseriesQuery struct {
	ServiceName     string
	TransactionType string
	TransactionName string
	Environment     string
	Start           int64
	End             int64
}

// TransactionGroupStat 按 transaction.name 聚合的统计
type TransactionGroupStat struct {
	Name            string
	TransactionType string
	Count           int64
	Avg             *float64
	P95             *float64
	Sum             float64
	Sample          json.RawMessage
}

type TransactionRepo struct {
	searcher esclient.Searcher
	conf     *config.Holder
}

func NewTransactionRepo(searcher esclient.Searcher, conf *config.Holder) *TransactionRepo {
	return &TransactionRepo{
		searcher: searcher,
		conf:     conf,
	}
}

func (q TimeseriesQuery) filters() []M {
	filters := []M{
		termFilter(protocol.ProcessorEvent, protocol.EventTransaction),
		termFilter(protocol.ServiceName, q.ServiceName),
		rangeFilter(q.Start, q.End),
	}
	if q.TransactionType != "" {
		filters = append(filters, termFilter(protocol.TransactionType, q.TransactionType))
	}
	if q.TransactionName != "" {
		filters = append(filters, termFilter(protocol.TransactionName, q.TransactionName))
	}
	if f, ok := environmentFilter(q.Environment); ok {
		filters = append(filters, f)
	}
	return filters
}

type countBucketJSON struct {
	Key      int64 `json:"key"`
	DocCount int64 `json:"doc_count"`
}

type timeseriesAggs struct {
	ResponseTimes struct {
		Buckets []struct {
			Key      int64                   `json:"key"`
			DocCount int64                   `json:"doc_count"`
			Avg      esclient.ValueAgg       `json:"avg"`
			Pct      esclient.PercentilesAgg `json:"pct"`
		} `json:"buckets"`
	} `json:"response_times"`
	OverallAvgDuration esclient.ValueAgg `json:"overall_avg_duration"`
	TransactionResults struct {
		Buckets []struct {
			Key        string `json:"key"`
			DocCount   int64  `json:"doc_count"`
			Timeseries struct {
				Buckets []countBucketJSON `json:"buckets"`
			} `json:"timeseries"`
		} `json:"buckets"`
	} `json:"transaction_results"`
}

// Timeseries 查询响应时间直方图与按结果分组的吞吐量
func (r *TransactionRepo) Timeseries(ctx context.Context, q TimeseriesQuery, bucketSize int64) (*timeseries.RawTimeseries, error) {
	histogram := dateHistogram(protocol.Timestamp, bucketSize, q.Start, q.End)
	body := M{
		"size":  0,
		"query": boolFilter(q.filters()...),
		"aggs": M{
			"response_times": M{
				"date_histogram": histogram,
				"aggs": M{
					"avg": M{"avg": M{"field": protocol.TransactionDuration}},
					"pct": M{"percentiles": M{
						"field":    protocol.TransactionDuration,
						"percents": []float64{95, 99},
					}},
				},
			},
			"overall_avg_duration": M{"avg": M{"field": protocol.TransactionDuration}},
			"transaction_results": M{
				"terms": M{
					"field":   protocol.TransactionResult,
					"missing": TransactionResultMissing,
				},
				"aggs": M{
					"timeseries": M{"date_histogram": histogram},
				},
			},
		},
	}

	resp, err := r.searcher.Search(ctx, esclient.SearchRequest{
		OperationName: "transaction_timeseries",
		Index:         []string{r.conf.Get().Indices.Transaction},
		Body:          body,
	})
	if err != nil {
		return nil, err
	}

	var aggs timeseriesAggs
	if err := resp.DecodeAggregations(&aggs); err != nil {
		return nil, fmt.Errorf("解析时间序列聚合失败: %w", err)
	}

	raw := &timeseries.RawTimeseries{
		TotalHits:          resp.Hits.Total.Value,
		OverallAvgDuration: aggs.OverallAvgDuration.Value,
	}
	for _, b := range aggs.ResponseTimes.Buckets {
		raw.ResponseTimes = append(raw.ResponseTimes, timeseries.LatencyBucket{
			Key:      b.Key,
			DocCount: b.DocCount,
			Avg:      b.Avg.Value,
			P95:      b.Pct.Get("95.0"),
			P99:      b.Pct.Get("99.0"),
		})
	}
	for _, b := range aggs.TransactionResults.Buckets {
		result := timeseries.ResultBucket{Key: b.Key, DocCount: b.DocCount}
		for _, tb := range b.Timeseries.Buckets {
			result.Timeseries = append(result.Timeseries, timeseries.CountBucket{Key: tb.Key, DocCount: tb.DocCount})
		}
		raw.TransactionResults = append(raw.TransactionResults, result)
	}
	return raw, nil
}

type transactionGroupAggs struct {
	Transactions struct {
		Buckets []struct {
			Key      string                  `json:"key"`
			DocCount int64                   `json:"doc_count"`
			Avg      esclient.ValueAgg       `json:"avg"`
			P95      esclient.PercentilesAgg `json:"p95"`
			Sum      esclient.ValueAgg       `json:"sum"`
			Sample   struct {
				Hits struct {
					Hits []esclient.Hit `json:"hits"`
				} `json:"hits"`
			} `json:"sample"`
		} `json:"buckets"`
	} `json:"transactions"`
}

type sampleSource struct {
	Transaction struct {
		Type string `json:"type"`
	} `json:"transaction"`
}

// TopTransactions 按 transaction.name 分组，按文档数倒序
func (r *TransactionRepo) TopTransactions(ctx context.Context, q TimeseriesQuery, size int) ([]TransactionGroupStat, error) {
	body := M{
		"size":  0,
		"query": boolFilter(q.filters()...),
		"aggs": M{
			"transactions": M{
				"terms": M{
					"field": protocol.TransactionName,
					"order": M{"_count": "desc"},
					"size":  size,
				},
				"aggs": M{
					"sample": M{"top_hits": M{
						"size": 1,
						"sort": []M{
							{protocol.TransactionSampled: M{"order": "desc"}},
							{protocol.Timestamp: M{"order": "desc"}},
						},
					}},
					"avg": M{"avg": M{"field": protocol.TransactionDuration}},
					"p95": M{"percentiles": M{
						"field":    protocol.TransactionDuration,
						"percents": []float64{95},
					}},
					"sum": M{"sum": M{"field": protocol.TransactionDuration}},
				},
			},
		},
	}

	resp, err := r.searcher.Search(ctx, esclient.SearchRequest{
		OperationName: "top_transactions",
		Index:         []string{r.conf.Get().Indices.Transaction},
		Body:          body,
	})
	if err != nil {
		return nil, err
	}

	var aggs transactionGroupAggs
	if err := resp.DecodeAggregations(&aggs); err != nil {
		return nil, fmt.Errorf("解析事务分组聚合失败: %w", err)
	}

	items := make([]TransactionGroupStat, 0, len(aggs.Transactions.Buckets))
	for _, b := range aggs.Transactions.Buckets {
		item := TransactionGroupStat{
			Name:  b.Key,
			Count: b.DocCount,
			Avg:   b.Avg.Value,
			P95:   b.P95.Get("95.0"),
		}
		if b.Sum.Value != nil {
			item.Sum = *b.Sum.Value
		}
		if len(b.Sample.Hits.Hits) > 0 {
			item.Sample = b.Sample.Hits.Hits[0].Source
			var src sampleSource
			if err := json.Unmarshal(item.Sample, &src); err == nil {
				item.TransactionType = src.Transaction.Type
			}
		}
		if item.TransactionType == "" {
			item.TransactionType = q.TransactionType
		}
		items = append(items, item)
	}
	return items, nil
}
