package repo

import (
	"context"
	"fmt"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/esclient"
	"github.com/dushixiang/apmview/internal/protocol"
)

type ErrorRepo struct {
	searcher esclient.Searcher
	conf     *config.Holder
}

func NewErrorRepo(searcher esclient.Searcher, conf *config.Holder) *ErrorRepo {
	return &ErrorRepo{
		searcher: searcher,
		conf:     conf,
	}
}

// histogram 的 key 是浮点数
type distributionAggs struct {
	Distribution struct {
		Buckets []struct {
			Key      float64 `json:"key"`
			DocCount int64   `json:"doc_count"`
		} `json:"buckets"`
	} `json:"distribution"`
}

// Distribution 错误数量直方图，groupID 为空时统计服务的全部错误
func (r *ErrorRepo) Distribution(ctx context.Context, serviceName, groupID string, start, end, bucketSize int64) (int64, []protocol.ErrorDistributionBucket, error) {
	filters := []M{
		termFilter(protocol.ProcessorEvent, protocol.EventError),
		termFilter(protocol.ServiceName, serviceName),
		rangeFilter(start, end),
	}
	if groupID != "" {
		filters = append(filters, termFilter(protocol.ErrorGroupID, groupID))
	}

	body := M{
		"size":  0,
		"query": boolFilter(filters...),
		"aggs": M{
			"distribution": M{
				"histogram": M{
					"field":           protocol.Timestamp,
					"interval":        bucketSize,
					"min_doc_count":   0,
					"extended_bounds": M{"min": start, "max": end},
				},
			},
		},
	}

	resp, err := r.searcher.Search(ctx, esclient.SearchRequest{
		OperationName: "error_distribution",
		Index:         []string{r.conf.Get().Indices.Error},
		Body:          body,
	})
	if err != nil {
		return 0, nil, err
	}

	var aggs distributionAggs
	if err := resp.DecodeAggregations(&aggs); err != nil {
		return 0, nil, fmt.Errorf("解析错误分布聚合失败: %w", err)
	}

	buckets := make([]protocol.ErrorDistributionBucket, 0, len(aggs.Distribution.Buckets))
	for _, b := range aggs.Distribution.Buckets {
		buckets = append(buckets, protocol.ErrorDistributionBucket{Key: int64(b.Key), Count: b.DocCount})
	}
	return resp.Hits.Total.Value, buckets, nil
}
