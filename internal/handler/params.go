package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/esclient"
	"github.com/dushixiang/apmview/internal/repo"

	"github.com/labstack/echo/v4"
)

var errInvalidRange = errors.New("start 不能晚于 end")

// 毫秒时间戳的取值范围：公元 0 年至 9999 年
var (
	minTimestamp = time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	maxTimestamp = time.Date(9999, 12, 31, 23, 59, 59, 999e6, time.UTC).UnixMilli()
)

// parseTime 支持 RFC3339 与毫秒时间戳
func parseTime(name, value string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("缺少参数 %s", name)
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return 0, fmt.Errorf("参数 %s 格式错误", name)
		}
		ms = t.UnixMilli()
	}
	if ms < minTimestamp || ms > maxTimestamp {
		return 0, fmt.Errorf("参数 %s 超出时间范围", name)
	}
	return ms, nil
}

// parseTimeRange 解析 start/end 查询参数
func parseTimeRange(c echo.Context) (int64, int64, error) {
	start, err := parseTime("start", c.QueryParam("start"))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTime("end", c.QueryParam("end"))
	if err != nil {
		return 0, 0, err
	}
	if start > end {
		return 0, 0, errInvalidRange
	}
	return start, end, nil
}

// timeseriesQuery 从路径与查询参数组装时间序列查询
func timeseriesQuery(c echo.Context) (repo.TimeseriesQuery, error) {
	start, end, err := parseTimeRange(c)
	if err != nil {
		return repo.TimeseriesQuery{}, err
	}
	return repo.TimeseriesQuery{
		ServiceName:     c.Param("serviceName"),
		TransactionType: c.QueryParam("transactionType"),
		TransactionName: c.QueryParam("transactionName"),
		Environment:     c.QueryParam("environment"),
		Start:           start,
		End:             end,
	}, nil
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, map[string]string{
		"error": err.Error(),
	})
}

// inspector 根据 _inspect 参数在请求上挂载查询收集器
type inspector struct {
	conf *config.Holder
}

func (i inspector) context(c echo.Context) (context.Context, *esclient.Inspector) {
	ctx := esclient.WithDebugTitle(c.Request().Context(), c.Request().Method+" "+c.Path())
	if c.QueryParam("_inspect") != "true" || !i.conf.Get().UI.InspectESQueries {
		return ctx, nil
	}
	return esclient.WithInspector(ctx)
}

// respond 输出 JSON，收集了查询时附加 _inspect 字段
func (i inspector) respond(c echo.Context, in *esclient.Inspector, body any) error {
	if in == nil {
		return c.JSON(http.StatusOK, body)
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil || obj == nil {
		obj = map[string]any{"items": json.RawMessage(b)}
	}
	obj["_inspect"] = in.Entries()
	return c.JSON(http.StatusOK, obj)
}
