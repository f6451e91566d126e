package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/esclient"
	"github.com/dushixiang/apmview/internal/protocol"
	"github.com/dushixiang/apmview/internal/repo"

	"github.com/go-orz/cache"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// ServiceStatsSource 服务清单所需的三类聚合
type ServiceStatsSource interface {
	TransactionStats(ctx context.Context, start, end int64, size int) ([]repo.ServiceTransactionStat, error)
	ErrorCounts(ctx context.Context, start, end int64, size int) (map[string]int64, error)
	Metadata(ctx context.Context, start, end int64, size int) ([]repo.ServiceMetadata, error)
}

// ServiceInventory 服务清单
type ServiceInventory struct {
	logger *zap.Logger
	conf   *config.Holder
	source ServiceStatsSource

	listCache cache.Cache[string, []protocol.ServiceListItem]
}

func NewServiceInventory(logger *zap.Logger, conf *config.Holder, source ServiceStatsSource) *ServiceInventory {
	return &ServiceInventory{
		logger:    logger,
		conf:      conf,
		source:    source,
		listCache: cache.New[string, []protocol.ServiceListItem](time.Minute),
	}
}

// List 服务列表，事务、错误、元数据三个查询并发执行
func (s *ServiceInventory) List(ctx context.Context, start, end int64) ([]protocol.ServiceListItem, error) {
	if end <= start {
		return []protocol.ServiceListItem{}, nil
	}
	cfg := s.conf.Get().APM
	key := fmt.Sprintf("%d|%d", start, end)
	// 收集查询时必须真正执行查询
	useCache := cfg.ChartCacheTTL() > 0 && !esclient.Inspecting(ctx)
	if useCache {
		if cached, ok := s.listCache.Get(key); ok {
			return cached, nil
		}
	}

	var (
		transactions []repo.ServiceTransactionStat
		errorCounts  map[string]int64
		metadata     []repo.ServiceMetadata
	)
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		var err error
		transactions, err = s.source.TransactionStats(ctx, start, end, cfg.MaxServices)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		errorCounts, err = s.source.ErrorCounts(ctx, start, end, cfg.MaxServices)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		metadata, err = s.source.Metadata(ctx, start, end, cfg.MaxServices)
		return err
	})
	if err := p.Wait(); err != nil {
		s.logger.Error("查询服务列表失败", zap.Error(err))
		return nil, err
	}

	items := MergeServiceStats(transactions, errorCounts, metadata, start, end)
	if useCache {
		s.listCache.Set(key, items, cfg.ChartCacheTTL())
	}
	return items, nil
}

// MergeServiceStats 合并三类聚合结果，按服务名排序
func MergeServiceStats(transactions []repo.ServiceTransactionStat, errorCounts map[string]int64, metadata []repo.ServiceMetadata, start, end int64) []protocol.ServiceListItem {
	minutes := float64(end-start) / 1000 / 60
	perMinute := func(n int64) float64 {
		if minutes <= 0 {
			return 0
		}
		return float64(n) / minutes
	}

	byName := make(map[string]*protocol.ServiceListItem)
	get := func(name string) *protocol.ServiceListItem {
		item, ok := byName[name]
		if !ok {
			item = &protocol.ServiceListItem{ServiceName: name, Environments: []string{}}
			byName[name] = item
		}
		return item
	}

	for _, m := range metadata {
		item := get(m.ServiceName)
		item.AgentName = m.AgentName
		item.Environments = append(item.Environments, m.Environments...)
	}
	for _, t := range transactions {
		item := get(t.ServiceName)
		item.TransactionsPerMinute = perMinute(t.Count)
		item.AvgResponseTime = t.AvgDuration
	}
	for name, count := range errorCounts {
		get(name).ErrorsPerMinute = perMinute(count)
	}

	items := make([]protocol.ServiceListItem, 0, len(byName))
	for _, item := range byName {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ServiceName < items[j].ServiceName
	})
	return items
}
