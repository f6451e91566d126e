package handler

import (
	"net/http"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// APMHandler 服务、事务、错误相关的查询接口
type APMHandler struct {
	logger       *zap.Logger
	inspector    inspector
	charts       *service.ChartService
	errors       *service.ErrorService
	transactions *service.TransactionService
	inventory    *service.ServiceInventory
}

// NewAPMHandler 创建处理器
func NewAPMHandler(logger *zap.Logger, conf *config.Holder, charts *service.ChartService, errors *service.ErrorService,
	transactions *service.TransactionService, inventory *service.ServiceInventory) *APMHandler {
	return &APMHandler{
		logger:       logger,
		inspector:    inspector{conf: conf},
		charts:       charts,
		errors:       errors,
		transactions: transactions,
		inventory:    inventory,
	}
}

// Services 服务列表
// GET /api/apm/services
func (h *APMHandler) Services(c echo.Context) error {
	start, end, err := parseTimeRange(c)
	if err != nil {
		return badRequest(c, err)
	}

	ctx, in := h.inspector.context(c)
	items, err := h.inventory.List(ctx, start, end)
	if err != nil {
		h.logger.Error("获取服务列表失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "获取服务列表失败",
		})
	}
	return h.inspector.respond(c, in, items)
}

// TransactionGroups 事务分组
// GET /api/apm/services/:serviceName/transaction_groups
func (h *APMHandler) TransactionGroups(c echo.Context) error {
	q, err := timeseriesQuery(c)
	if err != nil {
		return badRequest(c, err)
	}

	ctx, in := h.inspector.context(c)
	items, err := h.transactions.GetTopTransactions(ctx, q)
	if err != nil {
		h.logger.Error("获取事务分组失败", zap.String("serviceName", q.ServiceName), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "获取事务分组失败",
		})
	}
	return h.inspector.respond(c, in, items)
}

// TransactionCharts 原始时间序列与异常叠加层
// GET /api/apm/services/:serviceName/transaction_groups/charts
func (h *APMHandler) TransactionCharts(c echo.Context) error {
	q, err := timeseriesQuery(c)
	if err != nil {
		return badRequest(c, err)
	}

	ctx, in := h.inspector.context(c)
	resp, err := h.charts.GetTimeseries(ctx, q)
	if err != nil {
		h.logger.Error("获取事务图表失败", zap.String("serviceName", q.ServiceName), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "获取事务图表失败",
		})
	}
	return h.inspector.respond(c, in, resp)
}

// TransactionChartsView 组装好的图表视图
// GET /api/apm/services/:serviceName/transaction_groups/charts/view
func (h *APMHandler) TransactionChartsView(c echo.Context) error {
	q, err := timeseriesQuery(c)
	if err != nil {
		return badRequest(c, err)
	}

	ctx, in := h.inspector.context(c)
	resp, err := h.charts.GetCharts(ctx, q)
	if err != nil {
		h.logger.Error("获取事务图表失败", zap.String("serviceName", q.ServiceName), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "获取事务图表失败",
		})
	}
	return h.inspector.respond(c, in, resp)
}

// ErrorDistribution 错误分布
// GET /api/apm/services/:serviceName/errors/distribution
func (h *APMHandler) ErrorDistribution(c echo.Context) error {
	start, end, err := parseTimeRange(c)
	if err != nil {
		return badRequest(c, err)
	}
	serviceName := c.Param("serviceName")

	ctx, in := h.inspector.context(c)
	resp, err := h.errors.GetDistribution(ctx, serviceName, c.QueryParam("groupId"), start, end)
	if err != nil {
		h.logger.Error("获取错误分布失败", zap.String("serviceName", serviceName), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "获取错误分布失败",
		})
	}
	return h.inspector.respond(c, in, resp)
}
