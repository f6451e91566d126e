package config

import "time"

// AppConfig 应用配置
type AppConfig struct {
	Server        ServerConfig   `yaml:"Server"`
	Log           LogConfig      `yaml:"Log"`
	Database      DatabaseConfig `yaml:"Database"`
	Elasticsearch ESConfig       `yaml:"Elasticsearch"`
	Indices       IndicesConfig  `yaml:"Indices"`
	APM           APMConfig      `yaml:"APM"`
	ML            MLConfig       `yaml:"ML"`
	UI            UISettings     `yaml:"UI"`
	JWT           JWTConfig      `yaml:"JWT"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr string `yaml:"Addr"` // 监听地址
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"Level"`
	File       string `yaml:"File"`       // 为空时输出到标准输出
	MaxSize    int    `yaml:"MaxSize"`    // MB
	MaxBackups int    `yaml:"MaxBackups"` // 保留的旧日志文件数
	MaxAge     int    `yaml:"MaxAge"`     // 天数
	Compress   bool   `yaml:"Compress"`
}

// DatabaseConfig 数据库配置（保存探针配置）
type DatabaseConfig struct {
	Type string `yaml:"Type"` // sqlite 或 postgres
	DSN  string `yaml:"DSN"`
}

// ESConfig Elasticsearch 配置
type ESConfig struct {
	Addresses    []string `yaml:"Addresses"`
	Username     string   `yaml:"Username"`
	Password     string   `yaml:"Password"`
	APIKey       string   `yaml:"APIKey"`
	Debug        bool     `yaml:"Debug"`        // 输出每次查询的耗时与查询体
	WaitAttempts int      `yaml:"WaitAttempts"` // 启动时 ping 的最大次数
}

// IndicesConfig APM 数据索引
type IndicesConfig struct {
	Transaction    string `yaml:"Transaction"`
	Error          string `yaml:"Error"`
	Metric         string `yaml:"Metric"`
	AnomalyResults string `yaml:"AnomalyResults"`
}

// APMConfig 图表与查询参数
type APMConfig struct {
	BucketTargetCount      int `yaml:"BucketTargetCount"`      // 错误分布目标桶数
	ChartBucketTargetCount int `yaml:"ChartBucketTargetCount"` // 时间序列图表目标桶数
	MaxTransactionGroups   int `yaml:"MaxTransactionGroups"`
	MaxServices            int `yaml:"MaxServices"`
	ChartCacheSeconds      int `yaml:"ChartCacheSeconds"`
}

// MLConfig 异常检测任务配置
type MLConfig struct {
	Enabled       bool   `yaml:"Enabled"`
	JobGroup      string `yaml:"JobGroup"`      // 任务分组
	JobIDTemplate string `yaml:"JobIDTemplate"` // 例如 {service}-{transactionType}-high_mean_response_time
	RefreshSpec   string `yaml:"RefreshSpec"`   // cron 表达式
}

// UISettings 前端开关
type UISettings struct {
	EnableServiceOverview bool `yaml:"EnableServiceOverview" json:"enableServiceOverview"`
	InspectESQueries      bool `yaml:"InspectESQueries" json:"inspectESQueries"`
}

// JWTConfig JWT配置，Secret 为空时不启用认证
type JWTConfig struct {
	Secret string `yaml:"Secret"`
}

// ChartCacheTTL 图表缓存时长
func (c APMConfig) ChartCacheTTL() time.Duration {
	return time.Duration(c.ChartCacheSeconds) * time.Second
}

// Default 默认配置
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{Addr: ":8080"},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     30,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "data/apmview.db",
		},
		Elasticsearch: ESConfig{
			Addresses:    []string{"http://localhost:9200"},
			WaitAttempts: 10,
		},
		Indices: IndicesConfig{
			Transaction:    "apm-*-transaction*",
			Error:          "apm-*-error*",
			Metric:         "apm-*-metric*",
			AnomalyResults: ".ml-anomalies-*",
		},
		APM: APMConfig{
			BucketTargetCount:      15,
			ChartBucketTargetCount: 40,
			MaxTransactionGroups:   100,
			MaxServices:            500,
			ChartCacheSeconds:      30,
		},
		ML: MLConfig{
			Enabled:       true,
			JobGroup:      "apm",
			JobIDTemplate: "{service}-{transactionType}-high_mean_response_time",
			RefreshSpec:   "@every 5m",
		},
		UI: UISettings{
			EnableServiceOverview: true,
		},
	}
}
