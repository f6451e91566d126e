package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/dushixiang/apmview/internal/protocol"
	"github.com/dushixiang/apmview/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AgentConfigHandler 探针中心化配置
type AgentConfigHandler struct {
	logger  *zap.Logger
	service *service.AgentConfigService
}

// NewAgentConfigHandler 创建处理器
func NewAgentConfigHandler(logger *zap.Logger, service *service.AgentConfigService) *AgentConfigHandler {
	return &AgentConfigHandler{
		logger:  logger,
		service: service,
	}
}

// readBody 读取请求体，超出 BodyLimit 时返回 413 错误交给 echo 处理
func readBody(c echo.Context) ([]byte, error) {
	return io.ReadAll(c.Request().Body)
}

func bodyError(c echo.Context, err error) error {
	if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
		return err
	}
	return badRequest(c, err)
}

// writeError 将业务错误映射为 HTTP 状态码
func (h *AgentConfigHandler) writeError(c echo.Context, action string, err error) error {
	var invalid *service.InvalidPayloadError
	switch {
	case errors.As(err, &invalid):
		return c.JSON(http.StatusBadRequest, invalid.Result)
	case errors.Is(err, service.ErrAgentConfigNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "配置不存在",
		})
	case errors.Is(err, service.ErrAgentConfigExists):
		return c.JSON(http.StatusConflict, map[string]string{
			"error": "该服务与环境已存在配置",
		})
	default:
		h.logger.Error(action+"失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": action + "失败",
		})
	}
}

// List 配置列表
// GET /api/apm/settings/agent-configuration
func (h *AgentConfigHandler) List(c echo.Context) error {
	items, err := h.service.List(c.Request().Context())
	if err != nil {
		return h.writeError(c, "获取探针配置列表", err)
	}
	return c.JSON(http.StatusOK, items)
}

// Create 创建配置
// POST /api/apm/settings/agent-configuration/new
func (h *AgentConfigHandler) Create(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return bodyError(c, err)
	}
	item, err := h.service.Create(c.Request().Context(), body)
	if err != nil {
		return h.writeError(c, "创建探针配置", err)
	}
	return c.JSON(http.StatusOK, item)
}

// Update 更新配置
// PUT /api/apm/settings/agent-configuration/:configurationId
func (h *AgentConfigHandler) Update(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return bodyError(c, err)
	}
	item, err := h.service.Update(c.Request().Context(), c.Param("configurationId"), body)
	if err != nil {
		return h.writeError(c, "更新探针配置", err)
	}
	return c.JSON(http.StatusOK, item)
}

// Delete 删除配置
// DELETE /api/apm/settings/agent-configuration/:configurationId
func (h *AgentConfigHandler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("configurationId")); err != nil {
		return h.writeError(c, "删除探针配置", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Validate 仅校验，返回逐字段的有效性
// POST /api/apm/settings/agent-configuration/validate
func (h *AgentConfigHandler) Validate(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return bodyError(c, err)
	}
	return c.JSON(http.StatusOK, h.service.Validate(body))
}

// Services 可配置的服务
// GET /api/apm/settings/agent-configuration/services
func (h *AgentConfigHandler) Services(c echo.Context) error {
	names, err := h.service.ServiceNames(c.Request().Context())
	if err != nil {
		return h.writeError(c, "获取服务列表", err)
	}
	return c.JSON(http.StatusOK, names)
}

// Environments 服务的环境
// GET /api/apm/settings/agent-configuration/services/:serviceName/environments
func (h *AgentConfigHandler) Environments(c echo.Context) error {
	envs, err := h.service.Environments(c.Request().Context(), c.Param("serviceName"))
	if err != nil {
		return h.writeError(c, "获取服务环境", err)
	}
	return c.JSON(http.StatusOK, envs)
}

// Search 探针拉取配置
// POST /api/apm/settings/agent-configuration/search
func (h *AgentConfigHandler) Search(c echo.Context) error {
	var req protocol.AgentConfigSearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "请求参数错误",
		})
	}
	if req.Service.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "服务名不能为空",
		})
	}

	item, err := h.service.Search(c.Request().Context(), req)
	if err != nil {
		return h.writeError(c, "查询探针配置", err)
	}
	return c.JSON(http.StatusOK, item)
}
