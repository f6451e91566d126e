package protocol

import "encoding/json"

// TimeRange 查询时间范围（毫秒时间戳）
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// ServiceListItem 服务列表项
type ServiceListItem struct {
	ServiceName           string   `json:"serviceName"`
	AgentName             string   `json:"agentName"`
	TransactionsPerMinute float64  `json:"transactionsPerMinute"`
	ErrorsPerMinute       float64  `json:"errorsPerMinute"`
	AvgResponseTime       *float64 `json:"avgResponseTime"` // 微秒
	Environments          []string `json:"environments"`
}

// TransactionGroup 事务分组
type TransactionGroup struct {
	Name                  string          `json:"name"`
	TransactionType       string          `json:"transactionType"`
	AverageResponseTime   *float64        `json:"averageResponseTime"`
	P95                   *float64        `json:"p95"`
	TransactionsPerMinute float64         `json:"transactionsPerMinute"`
	Impact                float64         `json:"impact"`
	Sample                json.RawMessage `json:"sample,omitempty"`
}

// ErrorDistributionBucket 错误分布桶
type ErrorDistributionBucket struct {
	Key   int64 `json:"key"`
	Count int64 `json:"count"`
}

// ErrorDistribution 错误分布
type ErrorDistribution struct {
	TotalHits  int64                     `json:"totalHits"`
	Buckets    []ErrorDistributionBucket `json:"buckets"`
	BucketSize int64                     `json:"bucketSize"`
}

// ServiceEnvironment 服务环境及是否已有探针配置
type ServiceEnvironment struct {
	Name              string `json:"name"`
	AlreadyConfigured bool   `json:"alreadyConfigured"`
}

// AgentConfigService 探针配置作用的服务
type AgentConfigService struct {
	Name        string `json:"name" validate:"required"`
	Environment string `json:"environment,omitempty"`
}

// AgentConfigSettings 探针配置项
type AgentConfigSettings struct {
	TransactionSampleRate *float64 `json:"transaction_sample_rate,omitempty" validate:"omitempty,min=0,max=1,precision3"`
	CaptureBody           string   `json:"capture_body" validate:"required,oneof=off errors transactions all"`
	TransactionMaxSpans   *int     `json:"transaction_max_spans,omitempty" validate:"omitempty,min=0,max=32000"`
}

// AgentConfigurationPayload 探针配置请求体
type AgentConfigurationPayload struct {
	Service  AgentConfigService  `json:"service"`
	Settings AgentConfigSettings `json:"settings"`
}

// AgentConfigSearchRequest APM Server 查询探针配置
type AgentConfigSearchRequest struct {
	Service AgentConfigService `json:"service"`
	Etag    string             `json:"etag"`
}
