package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/esclient"
	"github.com/dushixiang/apmview/internal/protocol"
)

// ServiceTransactionStat 服务维度的事务统计
type ServiceTransactionStat struct {
	ServiceName string
	Count       int64
	AvgDuration *float64
}

// ServiceMetadata 服务的探针类型与环境
type ServiceMetadata struct {
	ServiceName  string
	AgentName    string
	Environments []string
}

// ServiceRepo 服务清单相关查询
type ServiceRepo struct {
	searcher esclient.Searcher
	conf     *config.Holder
}

func NewServiceRepo(searcher esclient.Searcher, conf *config.Holder) *ServiceRepo {
	return &ServiceRepo{
		searcher: searcher,
		conf:     conf,
	}
}

func (r *ServiceRepo) allIndices() []string {
	indices := r.conf.Get().Indices
	return []string{indices.Transaction, indices.Error, indices.Metric}
}

type termsBucket struct {
	Key      string `json:"key"`
	DocCount int64  `json:"doc_count"`
}

// TransactionStats 按服务统计事务数与平均耗时
func (r *ServiceRepo) TransactionStats(ctx context.Context, start, end int64, size int) ([]ServiceTransactionStat, error) {
	body := M{
		"size": 0,
		"query": boolFilter(
			termFilter(protocol.ProcessorEvent, protocol.EventTransaction),
			rangeFilter(start, end),
		),
		"aggs": M{
			"services": M{
				"terms": M{"field": protocol.ServiceName, "size": size},
				"aggs": M{
					"avg": M{"avg": M{"field": protocol.TransactionDuration}},
				},
			},
		},
	}

	resp, err := r.searcher.Search(ctx, esclient.SearchRequest{
		OperationName: "service_transaction_stats",
		Index:         []string{r.conf.Get().Indices.Transaction},
		Body:          body,
	})
	if err != nil {
		return nil, err
	}

	var aggs struct {
		Services struct {
			Buckets []struct {
				termsBucket
				Avg esclient.ValueAgg `json:"avg"`
			} `json:"buckets"`
		} `json:"services"`
	}
	if err := resp.DecodeAggregations(&aggs); err != nil {
		return nil, fmt.Errorf("解析服务事务统计失败: %w", err)
	}

	stats := make([]ServiceTransactionStat, 0, len(aggs.Services.Buckets))
	for _, b := range aggs.Services.Buckets {
		stats = append(stats, ServiceTransactionStat{
			ServiceName: b.Key,
			Count:       b.DocCount,
			AvgDuration: b.Avg.Value,
		})
	}
	return stats, nil
}

// ErrorCounts 按服务统计错误数
func (r *ServiceRepo) ErrorCounts(ctx context.Context, start, end int64, size int) (map[string]int64, error) {
	body := M{
		"size": 0,
		"query": boolFilter(
			termFilter(protocol.ProcessorEvent, protocol.EventError),
			rangeFilter(start, end),
		),
		"aggs": M{
			"services": M{"terms": M{"field": protocol.ServiceName, "size": size}},
		},
	}

	resp, err := r.searcher.Search(ctx, esclient.SearchRequest{
		OperationName: "service_error_counts",
		Index:         []string{r.conf.Get().Indices.Error},
		Body:          body,
	})
	if err != nil {
		return nil, err
	}

	var aggs struct {
		Services struct {
			Buckets []termsBucket `json:"buckets"`
		} `json:"services"`
	}
	if err := resp.DecodeAggregations(&aggs); err != nil {
		return nil, fmt.Errorf("解析服务错误统计失败: %w", err)
	}

	counts := make(map[string]int64, len(aggs.Services.Buckets))
	for _, b := range aggs.Services.Buckets {
		counts[b.Key] = b.DocCount
	}
	return counts, nil
}

// Metadata 按服务查询探针类型与环境列表，覆盖事务、错误、指标三类文档
func (r *ServiceRepo) Metadata(ctx context.Context, start, end int64, size int) ([]ServiceMetadata, error) {
	body := M{
		"size":  0,
		"query": boolFilter(rangeFilter(start, end)),
		"aggs": M{
			"services": M{
				"terms": M{"field": protocol.ServiceName, "size": size},
				"aggs": M{
					"agents":       M{"terms": M{"field": protocol.AgentName, "size": 1}},
					"environments": M{"terms": M{"field": protocol.ServiceEnvironment}},
				},
			},
		},
	}

	resp, err := r.searcher.Search(ctx, esclient.SearchRequest{
		OperationName: "service_metadata",
		Index:         r.allIndices(),
		Body:          body,
	})
	if err != nil {
		return nil, err
	}

	var aggs struct {
		Services struct {
			Buckets []struct {
				termsBucket
				Agents struct {
					Buckets []termsBucket `json:"buckets"`
				} `json:"agents"`
				Environments struct {
					Buckets []termsBucket `json:"buckets"`
				} `json:"environments"`
			} `json:"buckets"`
		} `json:"services"`
	}
	if err := resp.DecodeAggregations(&aggs); err != nil {
		return nil, fmt.Errorf("解析服务元数据失败: %w", err)
	}

	items := make([]ServiceMetadata, 0, len(aggs.Services.Buckets))
	for _, b := range aggs.Services.Buckets {
		item := ServiceMetadata{ServiceName: b.Key, Environments: []string{}}
		if len(b.Agents.Buckets) > 0 {
			item.AgentName = b.Agents.Buckets[0].Key
		}
		for _, env := range b.Environments.Buckets {
			item.Environments = append(item.Environments, env.Key)
		}
		items = append(items, item)
	}
	return items, nil
}

// ServiceNames 所有出现过的服务名
func (r *ServiceRepo) ServiceNames(ctx context.Context, size int) ([]string, error) {
	body := M{
		"size": 0,
		"query": boolFilter(M{"terms": M{protocol.ProcessorEvent: []string{
			protocol.EventTransaction, protocol.EventError, protocol.EventMetric,
		}}}),
		"aggs": M{
			"services": M{"terms": M{"field": protocol.ServiceName, "size": size}},
		},
	}
	keys, err := r.termsKeys(ctx, "agent_config_services", body)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Environments 服务出现过的环境，未设置环境的文档归入 ENVIRONMENT_NOT_DEFINED
func (r *ServiceRepo) Environments(ctx context.Context, serviceName string, size int) ([]string, error) {
	filters := []M{{"terms": M{protocol.ProcessorEvent: []string{
		protocol.EventTransaction, protocol.EventError, protocol.EventMetric,
	}}}}
	if serviceName != "" {
		filters = append(filters, termFilter(protocol.ServiceName, serviceName))
	}
	body := M{
		"size":  0,
		"query": boolFilter(filters...),
		"aggs": M{
			"services": M{"terms": M{
				"field":   protocol.ServiceEnvironment,
				"size":    size,
				"missing": protocol.EnvironmentNotDefined,
			}},
		},
	}
	return r.termsKeys(ctx, "agent_config_environments", body)
}

// AgentName 服务最近上报数据的探针类型
func (r *ServiceRepo) AgentName(ctx context.Context, serviceName string) (string, error) {
	resp, err := r.searcher.Search(ctx, esclient.SearchRequest{
		OperationName: "agent_name",
		Index:         r.allIndices(),
		Body: M{
			"size":    1,
			"_source": []string{protocol.AgentName},
			"sort":    []M{{protocol.Timestamp: M{"order": "desc"}}},
			"query": boolFilter(
				termFilter(protocol.ServiceName, serviceName),
				M{"exists": M{"field": protocol.AgentName}},
			),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Hits.Hits) == 0 {
		return "", nil
	}

	var src struct {
		Agent struct {
			Name string `json:"name"`
		} `json:"agent"`
	}
	if err := json.Unmarshal(resp.Hits.Hits[0].Source, &src); err != nil {
		return "", fmt.Errorf("解析探针类型失败: %w", err)
	}
	return src.Agent.Name, nil
}

func (r *ServiceRepo) termsKeys(ctx context.Context, operation string, body M) ([]string, error) {
	resp, err := r.searcher.Search(ctx, esclient.SearchRequest{
		OperationName: operation,
		Index:         r.allIndices(),
		Body:          body,
	})
	if err != nil {
		return nil, err
	}

	var aggs struct {
		Services struct {
			Buckets []termsBucket `json:"buckets"`
		} `json:"services"`
	}
	if err := resp.DecodeAggregations(&aggs); err != nil {
		return nil, fmt.Errorf("解析 %s 聚合失败: %w", operation, err)
	}

	keys := make([]string, 0, len(aggs.Services.Buckets))
	for _, b := range aggs.Services.Buckets {
		keys = append(keys, b.Key)
	}
	return keys, nil
}
