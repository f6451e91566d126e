package esclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dushixiang/apmview/internal/config"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	goerrors "github.com/go-errors/errors"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// Client Elasticsearch 客户端封装
type Client struct {
	logger *zap.Logger
	es     *elasticsearch.Client
	conf   *config.Holder
}

// NewClient 创建客户端
func NewClient(logger *zap.Logger, conf *config.Holder) (*Client, error) {
	esConf := conf.Get().Elasticsearch
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: esConf.Addresses,
		Username:  esConf.Username,
		Password:  esConf.Password,
		APIKey:    esConf.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Elasticsearch 客户端失败: %w", err)
	}
	return &Client{
		logger: logger,
		es:     es,
		conf:   conf,
	}, nil
}

// Search 执行 _search 查询
// 查询失败直接返回，不做重试
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	body, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("序列化查询失败: %w", err)
	}

	ignoreUnavailable := true
	start := time.Now()
	raw, err := c.do(ctx, req.OperationName, esapi.SearchRequest{
		Index:             req.Index,
		Body:              bytes.NewReader(body),
		IgnoreUnavailable: &ignoreUnavailable,
		TrackTotalHits:    true,
	})
	duration := time.Since(start).Milliseconds()

	var resp *SearchResponse
	if err == nil {
		resp = &SearchResponse{}
		if decodeErr := json.Unmarshal(raw, resp); decodeErr != nil {
			err = goerrors.Errorf("解析 %s 响应失败: %v", req.OperationName, decodeErr)
			resp = nil
		}
	}

	c.debug(ctx, req, body, raw, duration, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// MLJobs 获取异常检测任务（group 可为任务 ID、分组名或通配符）
func (c *Client) MLJobs(ctx context.Context, group string) ([]MLJob, error) {
	allowNoMatch := true
	raw, err := c.do(ctx, "get_ml_jobs", esapi.MLGetJobsRequest{
		JobID:        group,
		AllowNoMatch: &allowNoMatch,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Jobs []struct {
			JobID          string   `json:"job_id"`
			Groups         []string `json:"groups"`
			AnalysisConfig struct {
				BucketSpan string `json:"bucket_span"`
			} `json:"analysis_config"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, goerrors.Errorf("解析异常检测任务失败: %v", err)
	}

	jobs := make([]MLJob, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		span, err := ParseTimeUnit(j.AnalysisConfig.BucketSpan)
		if err != nil {
			c.logger.Warn("无法解析异常检测任务的 bucket_span",
				zap.String("jobId", j.JobID),
				zap.String("bucketSpan", j.AnalysisConfig.BucketSpan),
				zap.Error(err))
			continue
		}
		jobs = append(jobs, MLJob{
			JobID:      j.JobID,
			Groups:     j.Groups,
			BucketSpan: span,
		})
	}
	return jobs, nil
}

// WaitReady 启动时等待集群可用，按指数退避重试 ping
func (c *Client) WaitReady(ctx context.Context, maxAttempts int) error {
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	for {
		_, err := c.do(ctx, "ping", esapi.PingRequest{})
		if err == nil {
			c.logger.Info("Elasticsearch 连接成功", zap.Strings("addresses", c.conf.Get().Elasticsearch.Addresses))
			return nil
		}
		if int(b.Attempt())+1 >= maxAttempts {
			return fmt.Errorf("等待 Elasticsearch 可用失败: %w", err)
		}
		d := b.Duration()
		c.logger.Warn("Elasticsearch 暂不可用，稍后重试",
			zap.Duration("wait", d),
			zap.Error(err))
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type request interface {
	Do(ctx context.Context, transport esapi.Transport) (*esapi.Response, error)
}

func (c *Client) do(ctx context.Context, operation string, req request) ([]byte, error) {
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return nil, goerrors.Wrap(err, 1)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, goerrors.Wrap(err, 1)
	}
	if res.IsError() {
		return raw, goerrors.Errorf("elasticsearch %s 失败: [%d] %s", operation, res.StatusCode, truncate(string(raw), 512))
	}
	return raw, nil
}

func (c *Client) debug(ctx context.Context, req SearchRequest, body, raw []byte, duration int64, err error) {
	if in := inspectorFrom(ctx); in != nil {
		entry := InspectEntry{
			OperationName: req.OperationName,
			Params:        map[string]any{"index": req.Index, "body": json.RawMessage(body)},
			Duration:      duration,
		}
		if err != nil {
			entry.EsError = err.Error()
		} else {
			entry.Response = raw
		}
		in.add(entry)
	}

	if !c.conf.Get().Elasticsearch.Debug {
		return
	}
	title := fmt.Sprintf("=== Debug: %s (%dms) ===", debugTitle(ctx, req.OperationName), duration)
	query := fmt.Sprintf("GET %s/_search\n%s", strings.Join(req.Index, ","), prettyJSON(body))
	if err != nil {
		fields := []zap.Field{zap.String("query", query), zap.Error(err)}
		var stackErr *goerrors.Error
		if errors.As(err, &stackErr) {
			fields = append(fields, zap.String("stack", stackErr.ErrorStack()))
		}
		c.logger.Error(title, fields...)
		return
	}
	c.logger.Info(title, zap.String("query", query))
}

func prettyJSON(b []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "", "  "); err != nil {
		return string(b)
	}
	return buf.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ParseTimeUnit 解析 Elasticsearch 时间单位（d/h/m/s/ms/micros/nanos）
func ParseTimeUnit(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	units := []struct {
		suffix string
		unit   time.Duration
	}{
		{"nanos", time.Nanosecond},
		{"micros", time.Microsecond},
		{"ms", time.Millisecond},
		{"d", 24 * time.Hour},
		{"h", time.Hour},
		{"m", time.Minute},
		{"s", time.Second},
	}
	for _, u := range units {
		if !strings.HasSuffix(s, u.suffix) {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSuffix(s, u.suffix), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("无效的时间单位 %q: %w", s, err)
		}
		return time.Duration(n) * u.unit, nil
	}
	return 0, fmt.Errorf("无效的时间单位 %q", s)
}
