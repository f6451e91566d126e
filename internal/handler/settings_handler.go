package handler

import (
	"net/http"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SettingsHandler 异常检测任务与前端开关
type SettingsHandler struct {
	logger *zap.Logger
	conf   *config.Holder
	jobs   *service.AnomalyJobService
}

func NewSettingsHandler(logger *zap.Logger, conf *config.Holder, jobs *service.AnomalyJobService) *SettingsHandler {
	return &SettingsHandler{
		logger: logger,
		conf:   conf,
		jobs:   jobs,
	}
}

// MLJobs 任务注册表的拉取状态
// GET /api/apm/settings/anomaly-detection/jobs
func (h *SettingsHandler) MLJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"enabled":    h.conf.Get().ML.Enabled,
		"generation": h.jobs.Generation(),
		"state":      h.jobs.State(),
	})
}

// RefreshMLJobs 立即刷新任务注册表
// POST /api/apm/settings/anomaly-detection/jobs/refresh
func (h *SettingsHandler) RefreshMLJobs(c echo.Context) error {
	if err := h.jobs.Refresh(c.Request().Context()); err != nil {
		h.logger.Error("刷新异常检测任务失败", zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "刷新异常检测任务失败",
		})
	}
	return h.MLJobs(c)
}

// UISettings 前端开关
// GET /api/apm/settings/ui
func (h *SettingsHandler) UISettings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.conf.Get().UI)
}
