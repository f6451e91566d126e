package service

import (
	"context"
	"errors"
	"slices"
	"sort"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/models"
	"github.com/dushixiang/apmview/internal/protocol"
	"github.com/dushixiang/apmview/internal/repo"
	"github.com/dushixiang/apmview/internal/validation"

	"github.com/go-orz/orz"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrAgentConfigNotFound = errors.New("agent configuration not found")
	ErrAgentConfigExists   = errors.New("agent configuration already exists for this service and environment")
)

// InvalidPayloadError 请求体存在无效字段
type InvalidPayloadError struct {
	Result *validation.Result
}

func (e *InvalidPayloadError) Error() string {
	return "invalid agent configuration payload"
}

// ServiceCatalog 从文档存储查询服务信息
type ServiceCatalog interface {
	AgentName(ctx context.Context, serviceName string) (string, error)
	ServiceNames(ctx context.Context, size int) ([]string, error)
	Environments(ctx context.Context, serviceName string, size int) ([]string, error)
}

// AgentConfigService 探针中心化配置
type AgentConfigService struct {
	logger *zap.Logger
	*orz.Service
	conf      *config.Holder
	repo      *repo.AgentConfigRepo
	catalog   ServiceCatalog
	validator *validation.AgentConfigValidator
}

func NewAgentConfigService(logger *zap.Logger, db *gorm.DB, conf *config.Holder, catalog ServiceCatalog, validator *validation.AgentConfigValidator) *AgentConfigService {
	return &AgentConfigService{
		logger:    logger,
		Service:   orz.NewService(db),
		conf:      conf,
		repo:      repo.NewAgentConfigRepo(db),
		catalog:   catalog,
		validator: validator,
	}
}

// Validate 逐字段校验请求体
func (s *AgentConfigService) Validate(raw []byte) *validation.Result {
	return s.validator.Decode(raw)
}

func (s *AgentConfigService) List(ctx context.Context) ([]models.AgentConfiguration, error) {
	return s.repo.List(ctx)
}

// Create 创建配置，探针类型从该服务最近上报的数据中获取
func (s *AgentConfigService) Create(ctx context.Context, raw []byte) (*models.AgentConfiguration, error) {
	result := s.validator.Decode(raw)
	if !result.Valid() {
		return nil, &InvalidPayloadError{Result: result}
	}
	payload := result.Payload

	item := &models.AgentConfiguration{
		ID:                 uuid.NewString(),
		ServiceName:        payload.Service.Name,
		ServiceEnvironment: payload.Service.Environment,
		AgentName:          s.agentName(ctx, payload.Service.Name),
		Settings:           datatypes.NewJSONType(payload.Settings),
	}
	item.Etag = item.ComputeEtag()

	// 重复检查与写入在同一事务内
	err := s.Transaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByService(ctx, payload.Service.Name, payload.Service.Environment)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAgentConfigExists
		}
		return s.repo.Create(ctx, item)
	})
	if err != nil {
		if !errors.Is(err, ErrAgentConfigExists) {
			s.logger.Error("创建探针配置失败", zap.String("serviceName", item.ServiceName), zap.Error(err))
		}
		return nil, err
	}
	s.logger.Info("创建探针配置",
		zap.String("id", item.ID),
		zap.String("serviceName", item.ServiceName),
		zap.String("environment", item.ServiceEnvironment))
	return item, nil
}

func (s *AgentConfigService) agentName(ctx context.Context, serviceName string) string {
	name, err := s.catalog.AgentName(ctx, serviceName)
	if err != nil {
		s.logger.Warn("获取探针类型失败", zap.String("serviceName", serviceName), zap.Error(err))
		return ""
	}
	return name
}

// Update 更新配置，内容变化后需要探针重新应用
func (s *AgentConfigService) Update(ctx context.Context, id string, raw []byte) (*models.AgentConfiguration, error) {
	result := s.validator.Decode(raw)
	if !result.Valid() {
		return nil, &InvalidPayloadError{Result: result}
	}
	payload := result.Payload

	var item *models.AgentConfiguration
	err := s.Transaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrAgentConfigNotFound
		}

		if item.ServiceName != payload.Service.Name || item.ServiceEnvironment != payload.Service.Environment {
			other, err := s.repo.FindByService(ctx, payload.Service.Name, payload.Service.Environment)
			if err != nil {
				return err
			}
			if other != nil && other.ID != id {
				return ErrAgentConfigExists
			}
			if item.ServiceName != payload.Service.Name {
				item.AgentName = s.agentName(ctx, payload.Service.Name)
			}
		}

		item.ServiceName = payload.Service.Name
		item.ServiceEnvironment = payload.Service.Environment
		item.Settings = datatypes.NewJSONType(payload.Settings)
		if etag := item.ComputeEtag(); etag != item.Etag {
			item.Etag = etag
			item.AppliedByAgent = false
		}
		return s.repo.Update(ctx, item)
	})
	if err != nil {
		if !errors.Is(err, ErrAgentConfigNotFound) && !errors.Is(err, ErrAgentConfigExists) {
			s.logger.Error("更新探针配置失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	return item, nil
}

func (s *AgentConfigService) Delete(ctx context.Context, id string) error {
	affected, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		s.logger.Error("删除探针配置失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if affected == 0 {
		return ErrAgentConfigNotFound
	}
	s.logger.Info("删除探针配置", zap.String("id", id))
	return nil
}

// Search 为探针挑选最匹配的配置
// 服务名相同得 2 分，环境相同得 1 分；调用方携带的 etag 与配置一致时标记为已应用
func (s *AgentConfigService) Search(ctx context.Context, req protocol.AgentConfigSearchRequest) (*models.AgentConfiguration, error) {
	candidates, err := s.repo.Candidates(ctx, req.Service.Name, req.Service.Environment)
	if err != nil {
		return nil, err
	}
	best := BestMatch(candidates, req.Service.Name, req.Service.Environment)
	if best == nil {
		return nil, ErrAgentConfigNotFound
	}

	if req.Etag != "" && req.Etag == best.Etag && !best.AppliedByAgent {
		if err := s.repo.MarkApplied(ctx, best.ID, best.Etag); err != nil {
			s.logger.Error("标记探针配置已应用失败", zap.String("id", best.ID), zap.Error(err))
			return nil, err
		}
		best.AppliedByAgent = true
	}
	return best, nil
}

// BestMatch 在候选配置中挑选得分最高的一项，同分时取 ID 较小者
func BestMatch(candidates []models.AgentConfiguration, serviceName, environment string) *models.AgentConfiguration {
	score := func(c models.AgentConfiguration) int {
		n := -1
		switch c.ServiceName {
		case serviceName:
			n = 2
		case "":
			n = 0
		default:
			return -1
		}
		switch c.ServiceEnvironment {
		case environment:
			n++
		case "":
		default:
			return -1
		}
		return n
	}

	var best *models.AgentConfiguration
	bestScore := -1
	for i := range candidates {
		c := candidates[i]
		sc := score(c)
		if sc < 0 {
			continue
		}
		if sc > bestScore || (sc == bestScore && best != nil && c.ID < best.ID) {
			best = &c
			bestScore = sc
		}
	}
	return best
}

// ServiceNames 可配置的服务名
func (s *AgentConfigService) ServiceNames(ctx context.Context) ([]string, error) {
	names, err := s.catalog.ServiceNames(ctx, s.conf.Get().APM.MaxServices)
	if err != nil {
		s.logger.Error("查询服务名失败", zap.Error(err))
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Environments 服务的环境列表，并标记是否已有配置
func (s *AgentConfigService) Environments(ctx context.Context, serviceName string) ([]protocol.ServiceEnvironment, error) {
	envs, err := s.catalog.Environments(ctx, serviceName, s.conf.Get().APM.MaxServices)
	if err != nil {
		s.logger.Error("查询服务环境失败", zap.String("serviceName", serviceName), zap.Error(err))
		return nil, err
	}
	configured, err := s.repo.ConfiguredEnvironments(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	items := make([]protocol.ServiceEnvironment, 0, len(envs))
	for _, env := range envs {
		items = append(items, protocol.ServiceEnvironment{
			Name:              env,
			AlreadyConfigured: slices.Contains(configured, env),
		})
	}
	return items, nil
}
