package repo

import (
	"fmt"

	"github.com/dushixiang/apmview/internal/protocol"
)

// M 查询 DSL 节点
type M = map[string]any

func termFilter(field string, value any) M {
	return M{"term": M{field: value}}
}

// rangeFilter @timestamp 的毫秒时间范围
func rangeFilter(start, end int64) M {
	return M{"range": M{protocol.Timestamp: M{
		"gte":    start,
		"lte":    end,
		"format": "epoch_millis",
	}}}
}

// environmentFilter 环境过滤，未定义环境时匹配缺失该字段的文档
func environmentFilter(environment string) (M, bool) {
	switch environment {
	case "":
		return nil, false
	case protocol.EnvironmentNotDefined:
		return M{"bool": M{"must_not": []M{{"exists": M{"field": protocol.ServiceEnvironment}}}}}, true
	default:
		return termFilter(protocol.ServiceEnvironment, environment), true
	}
}

func boolFilter(filters ...M) M {
	return M{"bool": M{"filter": filters}}
}

func fixedInterval(bucketSize int64) string {
	return fmt.Sprintf("%dms", bucketSize)
}

// dateHistogram 固定间隔直方图，空桶也返回，保证与日期轴对齐
func dateHistogram(field string, bucketSize, min, max int64) M {
	return M{
		"field":           field,
		"fixed_interval":  fixedInterval(bucketSize),
		"min_doc_count":   0,
		"extended_bounds": M{"min": min, "max": max},
	}
}

