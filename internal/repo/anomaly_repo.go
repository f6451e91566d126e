package repo

import (
	"context"
	"fmt"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/esclient"
	"github.com/dushixiang/apmview/internal/protocol"
	"github.com/dushixiang/apmview/internal/timeseries"
)

// AnomalyRepo 异常检测结果查询
type AnomalyRepo struct {
	searcher esclient.Searcher
	conf     *config.Holder
}

func NewAnomalyRepo(searcher esclient.Searcher, conf *config.Holder) *AnomalyRepo {
	return &AnomalyRepo{
		searcher: searcher,
		conf:     conf,
	}
}

type anomalyAggs struct {
	MLAvgResponseTimes struct {
		Buckets []struct {
			Key          int64             `json:"key"`
			AnomalyScore esclient.ValueAgg `json:"anomaly_score"`
			Lower        esclient.ValueAgg `json:"lower"`
			Upper        esclient.ValueAgg `json:"upper"`
		} `json:"buckets"`
	} `json:"ml_avg_response_times"`
}

// Buckets 按图表桶聚合异常分数与模型上下界
// 查询范围向两侧各扩展一个桶，便于修补首尾缺失的边界
func (r *AnomalyRepo) Buckets(ctx context.Context, jobID string, start, end, bucketSize int64) ([]timeseries.AnomalyBucket, error) {
	if bucketSize <= 0 {
		return nil, nil
	}
	newStart := start - bucketSize
	newEnd := end + bucketSize

	body := M{
		"size": 0,
		"query": boolFilter(
			termFilter(protocol.MLJobID, jobID),
			M{"terms": M{protocol.MLResultType: []string{protocol.MLResultRecord, protocol.MLModelPlot}}},
			M{"range": M{protocol.MLTimestamp: M{
				"gte":    newStart,
				"lte":    newEnd,
				"format": "epoch_millis",
			}}},
		),
		"aggs": M{
			"ml_avg_response_times": M{
				"date_histogram": dateHistogram(protocol.MLTimestamp, bucketSize, newStart, newEnd),
				"aggs": M{
					"anomaly_score": M{"max": M{"field": protocol.MLRecordScore}},
					"lower":         M{"min": M{"field": protocol.MLModelLower}},
					"upper":         M{"max": M{"field": protocol.MLModelUpper}},
				},
			},
		},
	}

	resp, err := r.searcher.Search(ctx, esclient.SearchRequest{
		OperationName: "anomaly_series",
		Index:         []string{r.conf.Get().Indices.AnomalyResults},
		Body:          body,
	})
	if err != nil {
		return nil, err
	}

	var aggs anomalyAggs
	if err := resp.DecodeAggregations(&aggs); err != nil {
		return nil, fmt.Errorf("解析异常检测聚合失败: %w", err)
	}

	buckets := make([]timeseries.AnomalyBucket, 0, len(aggs.MLAvgResponseTimes.Buckets))
	for _, b := range aggs.MLAvgResponseTimes.Buckets {
		buckets = append(buckets, timeseries.AnomalyBucket{
			X:            b.Key,
			AnomalyScore: b.AnomalyScore.Value,
			Lower:        b.Lower.Value,
			Upper:        b.Upper.Value,
		})
	}
	return buckets, nil
}
