package migrate

import (
	"github.com/dushixiang/apmview/internal/migrate/v0_1_1"
	"github.com/dushixiang/apmview/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Run 同步表结构并按版本顺序执行数据迁移
func Run(logger *zap.Logger, db *gorm.DB) error {
	if err := db.AutoMigrate(&models.AgentConfiguration{}); err != nil {
		logger.Error("同步表结构失败", zap.Error(err))
		return err
	}

	steps := []func(*zap.Logger, *gorm.DB) error{
		v0_1_1.Migrate,
	}
	for _, step := range steps {
		if err := step(logger, db); err != nil {
			return err
		}
	}
	return nil
}
