package service

import (
	"context"
	"math"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/protocol"
	"github.com/dushixiang/apmview/internal/repo"

	"go.uber.org/zap"
)

type TransactionService struct {
	logger          *zap.Logger
	conf            *config.Holder
	transactionRepo *repo.TransactionRepo
}

func NewTransactionService(logger *zap.Logger, conf *config.Holder, transactionRepo *repo.TransactionRepo) *TransactionService {
	return &TransactionService{
		logger:          logger,
		conf:            conf,
		transactionRepo: transactionRepo,
	}
}

// GetTopTransactions 服务下的事务分组，附带每分钟事务数与相对影响
func (s *TransactionService) GetTopTransactions(ctx context.Context, q repo.TimeseriesQuery) ([]protocol.TransactionGroup, error) {
	if q.End <= q.Start {
		return []protocol.TransactionGroup{}, nil
	}
	stats, err := s.transactionRepo.TopTransactions(ctx, q, s.conf.Get().APM.MaxTransactionGroups)
	if err != nil {
		s.logger.Error("查询事务分组失败", zap.String("serviceName", q.ServiceName), zap.Error(err))
		return nil, err
	}
	return TransactionGroups(stats, q.Start, q.End), nil
}

// TransactionGroups 计算每分钟事务数与影响
// 影响为分组总耗时在 [min, max] 区间内的线性缩放，取值 0 到 100
func TransactionGroups(stats []repo.TransactionGroupStat, start, end int64) []protocol.TransactionGroup {
	groups := make([]protocol.TransactionGroup, 0, len(stats))
	if len(stats) == 0 {
		return groups
	}

	minSum, maxSum := math.Inf(1), math.Inf(-1)
	for _, st := range stats {
		minSum = math.Min(minSum, st.Sum)
		maxSum = math.Max(maxSum, st.Sum)
	}

	duration := float64(end-start) / 1000 / 60
	for _, st := range stats {
		var impact float64
		if maxSum > minSum {
			impact = (st.Sum - minSum) / (maxSum - minSum) * 100
		}
		var tpm float64
		if duration > 0 {
			tpm = float64(st.Count) / duration
		}
		groups = append(groups, protocol.TransactionGroup{
			Name:                  st.Name,
			TransactionType:       st.TransactionType,
			AverageResponseTime:   st.Avg,
			P95:                   st.P95,
			TransactionsPerMinute: tpm,
			Impact:                impact,
			Sample:                st.Sample,
		})
	}
	return groups
}
