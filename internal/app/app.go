package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/esclient"
	"github.com/dushixiang/apmview/internal/handler"
	"github.com/dushixiang/apmview/internal/logger"
	"github.com/dushixiang/apmview/internal/migrate"
	"github.com/dushixiang/apmview/internal/scheduler"
	"github.com/dushixiang/apmview/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// shutdownTimeout 优雅关闭等待时长
const shutdownTimeout = 10 * time.Second

// App 服务端进程
type App struct {
	logger    *zap.Logger
	conf      *config.Holder
	db        *gorm.DB
	es        *esclient.Client
	jobs      *service.AnomalyJobService
	scheduler *scheduler.MLJobScheduler
	echo      *echo.Echo
}

// NewLogger 根据日志配置创建 logger
func NewLogger(conf *config.Holder) *zap.Logger {
	return logger.New(conf.Get().Log)
}

// NewEcho 创建 HTTP 服务并注册路由
func NewEcho(logger *zap.Logger, conf *config.Holder, handlers *handler.Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("请求失败", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Debug("请求完成", fields...)
			return nil
		},
	}))
	handler.Register(e, conf, handlers)
	return e
}

// NewApp 组装进程
func NewApp(logger *zap.Logger, conf *config.Holder, db *gorm.DB, es *esclient.Client, jobs *service.AnomalyJobService,
	mlScheduler *scheduler.MLJobScheduler, e *echo.Echo) *App {
	return &App{
		logger:    logger,
		conf:      conf,
		db:        db,
		es:        es,
		jobs:      jobs,
		scheduler: mlScheduler,
		echo:      e,
	}
}

// Migrate 仅执行数据库迁移
func (a *App) Migrate() error {
	return migrate.Run(a.logger, a.db)
}

// Run 启动服务，ctx 取消后优雅退出
func (a *App) Run(ctx context.Context) error {
	cfg := a.conf.Get()

	if err := migrate.Run(a.logger, a.db); err != nil {
		return err
	}
	if err := a.es.WaitReady(ctx, cfg.Elasticsearch.WaitAttempts); err != nil {
		return err
	}

	if err := a.scheduler.Start(ctx, cfg.ML.RefreshSpec); err != nil {
		return err
	}
	defer a.scheduler.Stop()
	defer a.jobs.Close()

	a.conf.OnReload(a.onReload(ctx))
	watcher, err := a.conf.Watch(a.logger)
	if err != nil {
		a.logger.Warn("监听配置文件失败，热更新不可用", zap.Error(err))
	}
	if watcher != nil {
		defer watcher.Close()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP 服务启动", zap.String("addr", cfg.Server.Addr))
		if err := a.echo.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("正在关闭 HTTP 服务")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("关闭 HTTP 服务失败", zap.Error(err))
	}
	return nil
}

// onReload 刷新周期变化时重新调度，并立即刷新任务注册表
func (a *App) onReload(ctx context.Context) func(cfg *config.AppConfig) {
	return func(cfg *config.AppConfig) {
		if cfg.ML.RefreshSpec != a.scheduler.Spec() {
			if err := a.scheduler.Reschedule(cfg.ML.RefreshSpec); err != nil {
				a.logger.Warn("重新调度异常检测任务失败", zap.String("spec", cfg.ML.RefreshSpec), zap.Error(err))
			}
		}
		go func() {
			if err := a.jobs.Refresh(ctx); err != nil {
				a.logger.Warn("热更新后刷新异常检测任务失败", zap.Error(err))
			}
		}()
	}
}
