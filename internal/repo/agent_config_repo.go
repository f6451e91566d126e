package repo

import (
	"context"
	"errors"

	"github.com/dushixiang/apmview/internal/models"

	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

// AgentConfigRepo 探针配置数据访问层
// 在 orz.Service 事务内调用时使用上下文中的事务连接
type AgentConfigRepo struct {
	orz.Repository[models.AgentConfiguration, string]
}

// NewAgentConfigRepo 创建仓库
func NewAgentConfigRepo(db *gorm.DB) *AgentConfigRepo {
	return &AgentConfigRepo{
		Repository: orz.NewRepository[models.AgentConfiguration, string](db),
	}
}

func (r *AgentConfigRepo) db(ctx context.Context) *gorm.DB {
	return r.GetDB(ctx).WithContext(ctx)
}

// List 全部配置，按服务名、环境排序
func (r *AgentConfigRepo) List(ctx context.Context) ([]models.AgentConfiguration, error) {
	var items []models.AgentConfiguration
	err := r.db(ctx).
		Order("service_name ASC").
		Order("service_environment ASC").
		Find(&items).Error
	return items, err
}

// FindByID 根据ID获取配置，不存在时返回 nil
func (r *AgentConfigRepo) FindByID(ctx context.Context, id string) (*models.AgentConfiguration, error) {
	var item models.AgentConfiguration
	err := r.db(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByService 精确匹配服务名与环境
func (r *AgentConfigRepo) FindByService(ctx context.Context, serviceName, environment string) (*models.AgentConfiguration, error) {
	var item models.AgentConfiguration
	err := r.db(ctx).
		Where("service_name = ? AND service_environment = ?", serviceName, environment).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Candidates 服务名、环境相等或未设置的配置，供探针查询时挑选最佳匹配
func (r *AgentConfigRepo) Candidates(ctx context.Context, serviceName, environment string) ([]models.AgentConfiguration, error) {
	var items []models.AgentConfiguration
	err := r.db(ctx).
		Where("service_name = ? OR service_name = ''", serviceName).
		Where("service_environment = ? OR service_environment = ''", environment).
		Find(&items).Error
	return items, err
}

// Create 创建配置
func (r *AgentConfigRepo) Create(ctx context.Context, item *models.AgentConfiguration) error {
	return r.db(ctx).Create(item).Error
}

// Update 覆盖保存配置
func (r *AgentConfigRepo) Update(ctx context.Context, item *models.AgentConfiguration) error {
	return r.db(ctx).Save(item).Error
}

// DeleteByID 删除配置
func (r *AgentConfigRepo) DeleteByID(ctx context.Context, id string) (int64, error) {
	tx := r.db(ctx).Where("id = ?", id).Delete(&models.AgentConfiguration{})
	return tx.RowsAffected, tx.Error
}

// MarkApplied 标记探针已应用指定版本
func (r *AgentConfigRepo) MarkApplied(ctx context.Context, id, etag string) error {
	return r.db(ctx).Model(&models.AgentConfiguration{}).
		Where("id = ? AND etag = ?", id, etag).
		Update("applied_by_agent", true).Error
}

// ConfiguredEnvironments 某服务已有配置的环境
func (r *AgentConfigRepo) ConfiguredEnvironments(ctx context.Context, serviceName string) ([]string, error) {
	var envs []string
	err := r.db(ctx).Model(&models.AgentConfiguration{}).
		Where("service_name = ?", serviceName).
		Distinct().
		Pluck("service_environment", &envs).Error
	return envs, err
}
