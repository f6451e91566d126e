package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/esclient"
	"github.com/dushixiang/apmview/internal/fetcher"

	"github.com/valyala/fasttemplate"
	"go.uber.org/zap"
)

// AnomalyJobService 异常检测任务注册表
// 定时从集群拉取任务列表，按任务ID索引；任务集合变化时递增 generation，图表缓存随之失效
type AnomalyJobService struct {
	logger  *zap.Logger
	conf    *config.Holder
	fetcher *fetcher.Fetcher[[]esclient.MLJob]

	mu         sync.RWMutex
	jobs       map[string]esclient.MLJob
	generation atomic.Uint64
}

func NewAnomalyJobService(logger *zap.Logger, conf *config.Holder, lister esclient.JobLister) *AnomalyJobService {
	s := &AnomalyJobService{
		logger: logger,
		conf:   conf,
		jobs:   make(map[string]esclient.MLJob),
	}
	s.fetcher = fetcher.New(func(ctx context.Context) ([]esclient.MLJob, error) {
		return lister.MLJobs(ctx, s.conf.Get().ML.JobGroup)
	})
	return s
}

// Refresh 重新拉取任务列表，未启用异常检测时清空注册表
func (s *AnomalyJobService) Refresh(ctx context.Context) error {
	if !s.conf.Get().ML.Enabled {
		s.replace(nil)
		return nil
	}

	jobs, err := s.fetcher.Fetch(ctx)
	if errors.Is(err, fetcher.ErrSuperseded) {
		return nil
	}
	if err != nil {
		s.logger.Error("拉取异常检测任务失败", zap.Error(err))
		return err
	}
	s.replace(jobs)
	s.logger.Debug("异常检测任务已刷新", zap.Int("count", len(jobs)))
	return nil
}

func (s *AnomalyJobService) replace(jobs []esclient.MLJob) {
	next := make(map[string]esclient.MLJob, len(jobs))
	for _, job := range jobs {
		next[job.JobID] = job
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sameJobs(s.jobs, next) {
		return
	}
	s.jobs = next
	s.generation.Add(1)
}

func sameJobs(a, b map[string]esclient.MLJob) bool {
	if len(a) != len(b) {
		return false
	}
	for id, job := range a {
		other, ok := b[id]
		if !ok || other.BucketSpan != job.BucketSpan || !slices.Equal(other.Groups, job.Groups) {
			return false
		}
	}
	return true
}

// Generation 注册表版本号
func (s *AnomalyJobService) Generation() uint64 {
	return s.generation.Load()
}

// State 最近一次拉取的状态
func (s *AnomalyJobService) State() fetcher.State[[]esclient.MLJob] {
	return s.fetcher.State()
}

// JobID 按模板生成服务与事务类型对应的任务ID
func (s *AnomalyJobService) JobID(serviceName, transactionType string) string {
	id := fasttemplate.ExecuteString(s.conf.Get().ML.JobIDTemplate, "{", "}", map[string]interface{}{
		"service":         serviceName,
		"transactionType": transactionType,
	})
	return strings.ToLower(id)
}

// Lookup 查找服务对应的任务，不存在时不执行异常查询
func (s *AnomalyJobService) Lookup(serviceName, transactionType string) (esclient.MLJob, bool) {
	if !s.conf.Get().ML.Enabled || transactionType == "" {
		return esclient.MLJob{}, false
	}
	id := s.JobID(serviceName, transactionType)

	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Close 取消正在进行的拉取
func (s *AnomalyJobService) Close() {
	s.fetcher.Close()
}
