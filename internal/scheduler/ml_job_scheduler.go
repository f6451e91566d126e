package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobRefresher 可刷新的异常检测任务注册表
type JobRefresher interface {
	Refresh(ctx context.Context) error
}

// MLJobScheduler 按 cron 表达式定时刷新异常检测任务
type MLJobScheduler struct {
	mu        sync.Mutex
	cron      *cron.Cron
	entryID   cron.EntryID
	spec      string
	refresher JobRefresher
	timeout   time.Duration
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewMLJobScheduler 创建调度器
func NewMLJobScheduler(refresher JobRefresher, logger *zap.Logger) *MLJobScheduler {
	return &MLJobScheduler{
		cron:      cron.New(cron.WithSeconds()), // 支持秒级调度
		refresher: refresher,
		timeout:   30 * time.Second,
		logger:    logger,
	}
}

// Start 启动调度器，立即执行一次刷新
func (s *MLJobScheduler) Start(ctx context.Context, spec string) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.logger.Info("启动异常检测任务调度器", zap.String("spec", spec))

	if err := s.Reschedule(spec); err != nil {
		return err
	}
	go s.execute()

	s.cron.Start()
	return nil
}

// Stop 停止调度器
func (s *MLJobScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.logger.Info("异常检测任务调度器已停止")
}

// Reschedule 替换刷新周期，配置热更新时调用
func (s *MLJobScheduler) Reschedule(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if spec == s.spec && s.entryID != 0 {
		return nil
	}

	entryID, err := s.cron.AddFunc(spec, s.execute)
	if err != nil {
		return fmt.Errorf("添加 cron 任务失败: %w", err)
	}
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}
	s.entryID = entryID
	s.spec = spec

	s.logger.Info("更新异常检测任务刷新周期", zap.String("spec", spec))
	return nil
}

// Spec 当前刷新周期
func (s *MLJobScheduler) Spec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// execute 执行一次刷新
func (s *MLJobScheduler) execute() {
	parent := s.ctx
	if parent == nil {
		parent = context.Background()
	}
	if parent.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Warn("刷新异常检测任务失败", zap.Error(err))
	}
}
