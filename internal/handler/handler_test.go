package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/esclient"
	"github.com/dushixiang/apmview/internal/models"
	"github.com/dushixiang/apmview/internal/repo"
	"github.com/dushixiang/apmview/internal/service"
	"github.com/dushixiang/apmview/internal/validation"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubSearcher struct {
	responses map[string]string
}

func (s *stubSearcher) Search(ctx context.Context, req esclient.SearchRequest) (*esclient.SearchResponse, error) {
	body, ok := s.responses[req.OperationName]
	if !ok {
		body = `{"hits": {"total": {"value": 0}}}`
	}
	var resp esclient.SearchResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type stubLister struct{}

func (stubLister) MLJobs(ctx context.Context, group string) ([]esclient.MLJob, error) {
	return []esclient.MLJob{{JobID: "opbeans-request-high_mean_response_time", BucketSpan: 15 * time.Minute}}, nil
}

func newTestServer(t *testing.T, cfg config.AppConfig, searcher *stubSearcher) *echo.Echo {
	logger := zap.NewNop()
	conf := config.Static(cfg)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "apmview.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AgentConfiguration{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	validator, err := validation.NewAgentConfigValidator()
	require.NoError(t, err)

	transactionRepo := repo.NewTransactionRepo(searcher, conf)
	serviceRepo := repo.NewServiceRepo(searcher, conf)
	jobs := service.NewAnomalyJobService(logger, conf, stubLister{})
	charts := service.NewChartService(logger, conf, transactionRepo, repo.NewAnomalyRepo(searcher, conf), jobs)

	e := echo.New()
	Register(e, conf, &Handlers{
		APM: NewAPMHandler(logger, conf, charts,
			service.NewErrorService(logger, conf, repo.NewErrorRepo(searcher, conf)),
			service.NewTransactionService(logger, conf, transactionRepo),
			service.NewServiceInventory(logger, conf, serviceRepo)),
		AgentConfig: NewAgentConfigHandler(logger, service.NewAgentConfigService(logger, db, conf, serviceRepo, validator)),
		Settings:    NewSettingsHandler(logger, conf, jobs),
	})
	return e
}

func do(e *echo.Echo, method, target, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestParseTime(t *testing.T) {
	ms, err := parseTime("start", "1577836800000")
	require.NoError(t, err)
	assert.EqualValues(t, 1577836800000, ms)

	ms, err = parseTime("start", "2020-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.EqualValues(t, 1577836800000, ms)

	_, err = parseTime("start", "")
	assert.Error(t, err)
	_, err = parseTime("start", "yesterday")
	assert.Error(t, err)

	ms, err = parseTime("end", "253402300799999")
	require.NoError(t, err)
	assert.EqualValues(t, 253402300799999, ms)
	_, err = parseTime("end", "253402300800000")
	assert.Error(t, err)
	_, err = parseTime("start", "-62167219200001")
	assert.Error(t, err)
}

func TestChartsViewNoHits(t *testing.T) {
	e := newTestServer(t, config.Default(), &stubSearcher{})

	rec := do(e, http.MethodGet, "/api/apm/services/opbeans/transaction_groups/charts/view?start=0&end=600000&transactionType=request", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["noHits"])
	series := body["responseTimeSeries"].([]any)
	require.Len(t, series, 1)
	assert.Len(t, series[0].(map[string]any)["data"], 11)
}

func TestChartsInvalidRange(t *testing.T) {
	e := newTestServer(t, config.Default(), &stubSearcher{})

	rec := do(e, http.MethodGet, "/api/apm/services/opbeans/transaction_groups/charts?start=2000&end=1000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/apm/services/opbeans/transaction_groups/charts?end=1000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/apm/services/opbeans/transaction_groups/charts?start=9223372036854774807&end=9223372036854775807", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChartsWithData(t *testing.T) {
	searcher := &stubSearcher{responses: map[string]string{
		"transaction_timeseries": `{
			"hits": {"total": {"value": 2}},
			"aggregations": {
				"response_times": {"buckets": [{"key": 0, "doc_count": 2, "avg": {"value": 200}, "pct": {"values": {"95.0": 300, "99.0": 400}}}]},
				"overall_avg_duration": {"value": 200},
				"transaction_results": {"buckets": [{"key": "HTTP 2xx", "doc_count": 2, "timeseries": {"buckets": [{"key": 0, "doc_count": 2}]}}]}
			}
		}`,
	}}
	e := newTestServer(t, config.Default(), searcher)

	rec := do(e, http.MethodGet, "/api/apm/services/opbeans/transaction_groups/charts/view?start=0&end=400000&transactionType=request", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	series := body["responseTimeSeries"].([]any)
	first := series[0].(map[string]any)
	assert.Equal(t, "Avg.", first["title"])
	assert.Equal(t, "0.2 ms", first["legendValue"])
	tpm := body["tpmSeries"].([]any)[0].(map[string]any)
	assert.Equal(t, "HTTP 2xx", tpm["title"])
}

func TestInspect(t *testing.T) {
	cfg := config.Default()
	cfg.UI.InspectESQueries = true
	e := newTestServer(t, cfg, &stubSearcher{})

	rec := do(e, http.MethodGet, "/api/apm/services/opbeans/errors/distribution?start=0&end=150000&_inspect=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body, "_inspect")
	assert.EqualValues(t, 10000, body["bucketSize"])

	rec = do(e, http.MethodGet, "/api/apm/services?start=0&end=150000&_inspect=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Contains(t, body, "_inspect")
	assert.Contains(t, body, "items")

	rec = do(e, http.MethodGet, "/api/apm/services?start=0&end=150000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestAgentConfigurationRoutes(t *testing.T) {
	e := newTestServer(t, config.Default(), &stubSearcher{})

	rec := do(e, http.MethodPost, "/api/apm/settings/agent-configuration/new",
		`{"service":{"name":"opbeans"},"settings":{"capture_body":"sometimes","transaction_sample_rate":2}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	validity := body["validity"].(map[string]any)["settings"].(map[string]any)
	assert.Equal(t, false, validity["capture_body"])
	assert.Equal(t, false, validity["transaction_sample_rate"])

	rec = do(e, http.MethodPost, "/api/apm/settings/agent-configuration/new",
		`{"service":{"name":"opbeans"},"settings":{"capture_body":"all"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode(t, rec)
	id := created["id"].(string)
	etag := created["etag"].(string)

	rec = do(e, http.MethodPost, "/api/apm/settings/agent-configuration/new",
		`{"service":{"name":"opbeans"},"settings":{"capture_body":"off"}}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(e, http.MethodPost, "/api/apm/settings/agent-configuration/search",
		`{"service":{"name":"opbeans","environment":"production"},"etag":"`+etag+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["appliedByAgent"])

	rec = do(e, http.MethodPost, "/api/apm/settings/agent-configuration/search", `{"service":{"name":"unknown"}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodPut, "/api/apm/settings/agent-configuration/"+id,
		`{"service":{"name":"opbeans"},"settings":{"capture_body":"errors"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["appliedByAgent"])

	rec = do(e, http.MethodPost, "/api/apm/settings/agent-configuration/validate", `{"service":{"name":"x"},"settings":{"capture_body":"off"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["errors"])

	rec = do(e, http.MethodDelete, "/api/apm/settings/agent-configuration/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(e, http.MethodDelete, "/api/apm/settings/agent-configuration/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentConfigurationBodyLimit(t *testing.T) {
	e := newTestServer(t, config.Default(), &stubSearcher{})
	huge := `{"service":{"name":"` + strings.Repeat("a", 70<<10) + `"},"settings":{"capture_body":"off"}}`

	rec := do(e, http.MethodPost, "/api/apm/settings/agent-configuration/validate", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = do(e, http.MethodPost, "/api/apm/settings/agent-configuration/new", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = do(e, http.MethodGet, "/api/apm/settings/agent-configuration", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestSettingsRoutes(t *testing.T) {
	e := newTestServer(t, config.Default(), &stubSearcher{})

	rec := do(e, http.MethodGet, "/api/apm/settings/ui", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["enableServiceOverview"])

	rec = do(e, http.MethodPost, "/api/apm/settings/anomaly-detection/jobs/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["generation"])
	state := body["state"].(map[string]any)
	assert.Equal(t, "success", state["status"])
}

func TestJWTAuth(t *testing.T) {
	cfg := config.Default()
	cfg.JWT.Secret = "s3cret"
	e := newTestServer(t, cfg, &stubSearcher{})

	rec := do(e, http.MethodGet, "/api/apm/settings/ui", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodGet, "/api/apm/settings/ui", "", echo.HeaderAuthorization, "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	rec = do(e, http.MethodGet, "/api/apm/settings/ui", "", echo.HeaderAuthorization, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}
