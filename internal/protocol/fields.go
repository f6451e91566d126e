package protocol

// APM 文档字段名
const (
	Timestamp      = "@timestamp"
	ProcessorEvent = "processor.event"

	ServiceName        = "service.name"
	ServiceEnvironment = "service.environment"
	AgentName          = "agent.name"

	TransactionType     = "transaction.type"
	TransactionName     = "transaction.name"
	TransactionResult   = "transaction.result"
	TransactionDuration = "transaction.duration.us"
	TransactionSampled  = "transaction.sampled"

	ErrorGroupID = "error.grouping_key"

	// 异常检测结果字段
	MLJobID        = "job_id"
	MLTimestamp    = "timestamp"
	MLResultType   = "result_type"
	MLRecordScore  = "record_score"
	MLModelLower   = "model_lower"
	MLModelUpper   = "model_upper"
	MLBucketSpan   = "bucket_span"
	MLResultRecord = "record"
	MLModelPlot    = "model_plot"
)

// processor.event 取值
const (
	EventTransaction = "transaction"
	EventError       = "error"
	EventMetric      = "metric"
)

// EnvironmentNotDefined 未设置环境时使用的占位值
const EnvironmentNotDefined = "ENVIRONMENT_NOT_DEFINED"
