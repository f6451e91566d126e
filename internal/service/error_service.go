package service

import (
	"context"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/protocol"
	"github.com/dushixiang/apmview/internal/repo"
	"github.com/dushixiang/apmview/internal/timeseries"

	"go.uber.org/zap"
)

type ErrorService struct {
	logger    *zap.Logger
	conf      *config.Holder
	errorRepo *repo.ErrorRepo
}

func NewErrorService(logger *zap.Logger, conf *config.Holder, errorRepo *repo.ErrorRepo) *ErrorService {
	return &ErrorService{
		logger:    logger,
		conf:      conf,
		errorRepo: errorRepo,
	}
}

// GetDistribution 错误数量分布
func (s *ErrorService) GetDistribution(ctx context.Context, serviceName, groupID string, start, end int64) (*protocol.ErrorDistribution, error) {
	bucketSize := timeseries.BucketSize(start, end, s.conf.Get().APM.BucketTargetCount)
	if bucketSize <= 0 {
		return &protocol.ErrorDistribution{
			Buckets:    []protocol.ErrorDistributionBucket{},
			BucketSize: bucketSize,
		}, nil
	}

	totalHits, buckets, err := s.errorRepo.Distribution(ctx, serviceName, groupID, start, end, bucketSize)
	if err != nil {
		s.logger.Error("查询错误分布失败", zap.String("serviceName", serviceName), zap.Error(err))
		return nil, err
	}
	return &protocol.ErrorDistribution{
		TotalHits:  totalHits,
		Buckets:    buckets,
		BucketSize: bucketSize,
	}, nil
}
