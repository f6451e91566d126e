package handler

import (
	"github.com/dushixiang/apmview/internal/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// agentConfigBodyLimit 探针配置请求体上限
const agentConfigBodyLimit = "64K"

// Handlers 全部 HTTP 处理器
type Handlers struct {
	APM         *APMHandler
	AgentConfig *AgentConfigHandler
	Settings    *SettingsHandler
}

// Register 注册路由
func Register(e *echo.Echo, conf *config.Holder, h *Handlers) {
	api := e.Group("/api/apm", JWTAuth(conf))

	services := api.Group("/services")
	services.GET("", h.APM.Services)
	services.GET("/:serviceName/transaction_groups", h.APM.TransactionGroups)
	services.GET("/:serviceName/transaction_groups/charts", h.APM.TransactionCharts)
	services.GET("/:serviceName/transaction_groups/charts/view", h.APM.TransactionChartsView)
	services.GET("/:serviceName/errors/distribution", h.APM.ErrorDistribution)

	agentConfig := api.Group("/settings/agent-configuration", middleware.BodyLimit(agentConfigBodyLimit))
	agentConfig.GET("", h.AgentConfig.List)
	agentConfig.POST("/new", h.AgentConfig.Create)
	agentConfig.POST("/validate", h.AgentConfig.Validate)
	agentConfig.POST("/search", h.AgentConfig.Search)
	agentConfig.GET("/services", h.AgentConfig.Services)
	agentConfig.GET("/services/:serviceName/environments", h.AgentConfig.Environments)
	agentConfig.PUT("/:configurationId", h.AgentConfig.Update)
	agentConfig.DELETE("/:configurationId", h.AgentConfig.Delete)

	settings := api.Group("/settings")
	settings.GET("/anomaly-detection/jobs", h.Settings.MLJobs)
	settings.POST("/anomaly-detection/jobs/refresh", h.Settings.RefreshMLJobs)
	settings.GET("/ui", h.Settings.UISettings)
}
