package v0_1_1

import (
	"github.com/dushixiang/apmview/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate 为缺少 etag 的探针配置补算 etag，并重置应用状态
func Migrate(logger *zap.Logger, db *gorm.DB) error {
	logger.Info("开始执行 v0.1.1 版本数据迁移")

	migrator := db.Migrator()
	if migrator == nil {
		logger.Warn("无法获取数据库 migrator，跳过迁移")
		return nil
	}

	if !migrator.HasTable(&models.AgentConfiguration{}) {
		logger.Info("未检测到 agent_configurations 表，跳过迁移")
		return nil
	}

	var items []models.AgentConfiguration
	if err := db.Where("etag = ? OR etag IS NULL", "").
		Order("service_name ASC").
		Find(&items).Error; err != nil {
		logger.Error("查询探针配置失败", zap.Error(err))
		return err
	}

	if len(items) == 0 {
		logger.Info("没有需要补算 etag 的探针配置，跳过迁移")
		return nil
	}

	logger.Info("找到需要补算 etag 的探针配置", zap.Int("count", len(items)))

	for _, item := range items {
		etag := item.ComputeEtag()
		if err := db.Model(&models.AgentConfiguration{}).
			Where("id = ?", item.ID).
			Updates(map[string]interface{}{
				"etag":             etag,
				"applied_by_agent": false,
			}).Error; err != nil {
			logger.Error("更新探针配置 etag 失败",
				zap.String("id", item.ID),
				zap.String("serviceName", item.ServiceName),
				zap.Error(err))
			return err
		}
		logger.Debug("已补算探针配置 etag",
			zap.String("id", item.ID),
			zap.String("serviceName", item.ServiceName),
			zap.String("etag", etag))
	}

	logger.Info("v0.1.1 版本数据迁移完成", zap.Int("updated", len(items)))
	return nil
}
