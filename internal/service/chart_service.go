package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/esclient"
	"github.com/dushixiang/apmview/internal/repo"
	"github.com/dushixiang/apmview/internal/timeseries"

	"github.com/go-orz/cache"
	"go.uber.org/zap"
)

// TimeseriesResponse 时间序列接口响应
type TimeseriesResponse struct {
	timeseries.Timeseries
	AnomalyTimeSeries *timeseries.AnomalyTimeSeries `json:"anomalyTimeSeries,omitempty"`
}

// ChartsResponse 图表视图与原始序列
type ChartsResponse struct {
	timeseries.ChartsView
	BucketSize int64 `json:"bucketSize"`
}

// TimeseriesFetcher 原始聚合查询
type TimeseriesFetcher interface {
	Timeseries(ctx context.Context, q repo.TimeseriesQuery, bucketSize int64) (*timeseries.RawTimeseries, error)
}

// AnomalyFetcher 异常检测结果查询
type AnomalyFetcher interface {
	Buckets(ctx context.Context, jobID string, start, end, bucketSize int64) ([]timeseries.AnomalyBucket, error)
}

// JobRegistry 异常检测任务注册表
type JobRegistry interface {
	Lookup(serviceName, transactionType string) (esclient.MLJob, bool)
	Generation() uint64
}

type ChartService struct {
	logger       *zap.Logger
	conf         *config.Holder
	transactions TimeseriesFetcher
	anomalies    AnomalyFetcher
	jobs         JobRegistry

	// 图表缓存：key 包含查询参数与任务注册表版本
	cache cache.Cache[string, *TimeseriesResponse]
}

func NewChartService(logger *zap.Logger, conf *config.Holder, transactions TimeseriesFetcher, anomalies AnomalyFetcher, jobs JobRegistry) *ChartService {
	return &ChartService{
		logger:       logger,
		conf:         conf,
		transactions: transactions,
		anomalies:    anomalies,
		jobs:         jobs,
		cache:        cache.New[string, *TimeseriesResponse](time.Minute),
	}
}

func (s *ChartService) bucketSize(q repo.TimeseriesQuery) int64 {
	return timeseries.BucketSize(q.Start, q.End, s.conf.Get().APM.ChartBucketTargetCount)
}

func (s *ChartService) cacheKey(q repo.TimeseriesQuery) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d|%d",
		q.ServiceName, q.TransactionType, q.TransactionName, q.Environment,
		q.Start, q.End, s.jobs.Generation())
}

// GetTimeseries 查询并转换时间序列
// 异常叠加层在主序列转换完成后再查询，依赖主序列的日期轴
func (s *ChartService) GetTimeseries(ctx context.Context, q repo.TimeseriesQuery) (*TimeseriesResponse, error) {
	bucketSize := s.bucketSize(q)
	if bucketSize <= 0 {
		return &TimeseriesResponse{
			Timeseries: timeseries.Transform(timeseries.RawTimeseries{}, []int64{}, bucketSize),
		}, nil
	}

	ttl := s.conf.Get().APM.ChartCacheTTL()
	useCache := ttl > 0 && !esclient.Inspecting(ctx)
	key := s.cacheKey(q)
	if useCache {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
	}

	raw, err := s.transactions.Timeseries(ctx, q, bucketSize)
	if err != nil {
		s.logger.Error("查询时间序列失败", zap.String("serviceName", q.ServiceName), zap.Error(err))
		return nil, err
	}
	dates := timeseries.DateAxis(q.Start, q.End, bucketSize)
	resp := &TimeseriesResponse{
		Timeseries: timeseries.Transform(*raw, dates, bucketSize),
	}

	job, ok := s.jobs.Lookup(q.ServiceName, q.TransactionType)
	if ok {
		buckets, err := s.anomalies.Buckets(ctx, job.JobID, q.Start, q.End, bucketSize)
		if err != nil {
			s.logger.Error("查询异常检测结果失败", zap.String("jobId", job.JobID), zap.Error(err))
			return nil, err
		}
		resp.AnomalyTimeSeries = timeseries.AnomalySeries(buckets, resp.Dates, bucketSize, job.BucketSpan.Milliseconds())
	}

	if useCache {
		s.cache.Set(key, resp, ttl)
	}
	return resp, nil
}

// GetCharts 查询时间序列并组装图表视图
func (s *ChartService) GetCharts(ctx context.Context, q repo.TimeseriesQuery) (*ChartsResponse, error) {
	ts, err := s.GetTimeseries(ctx, q)
	if err != nil {
		return nil, err
	}
	view := timeseries.SelectCharts(ts.Timeseries, ts.AnomalyTimeSeries, q.Start, q.End, q.TransactionType)
	return &ChartsResponse{
		ChartsView: view,
		BucketSize: s.bucketSize(q),
	}, nil
}
