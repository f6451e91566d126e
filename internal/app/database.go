package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dushixiang/apmview/internal/config"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDatabase 按配置打开 sqlite 或 postgres
func NewDatabase(logger *zap.Logger, conf *config.Holder) (*gorm.DB, func(), error) {
	dbConf := conf.Get().Database

	var dialector gorm.Dialector
	switch dbConf.Type {
	case "postgres":
		dialector = postgres.Open(dbConf.DSN)
	case "sqlite":
		if dir := filepath.Dir(dbConf.DSN); dir != "" && dbConf.DSN != ":memory:" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, nil, fmt.Errorf("创建数据目录失败: %w", err)
			}
		}
		dialector = sqlite.Open(dbConf.DSN)
	default:
		return nil, nil, fmt.Errorf("不支持的数据库类型: %s", dbConf.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	if dbConf.Type == "postgres" {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	logger.Info("数据库连接成功", zap.String("type", dbConf.Type))
	cleanup := func() {
		if err := sqlDB.Close(); err != nil {
			logger.Warn("关闭数据库失败", zap.Error(err))
		}
	}
	return db, cleanup, nil
}
