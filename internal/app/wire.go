//go:build wireinject
// +build wireinject

package app

import (
	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/esclient"
	"github.com/dushixiang/apmview/internal/handler"
	"github.com/dushixiang/apmview/internal/repo"
	"github.com/dushixiang/apmview/internal/scheduler"
	"github.com/dushixiang/apmview/internal/service"
	"github.com/dushixiang/apmview/internal/validation"

	"github.com/google/wire"
)

var esSet = wire.NewSet(
	esclient.NewClient,
	wire.Bind(new(esclient.Searcher), new(*esclient.Client)),
	wire.Bind(new(esclient.JobLister), new(*esclient.Client)),
)

var repoSet = wire.NewSet(
	repo.NewTransactionRepo,
	repo.NewAnomalyRepo,
	repo.NewErrorRepo,
	repo.NewServiceRepo,
	wire.Bind(new(service.TimeseriesFetcher), new(*repo.TransactionRepo)),
	wire.Bind(new(service.AnomalyFetcher), new(*repo.AnomalyRepo)),
	wire.Bind(new(service.ServiceStatsSource), new(*repo.ServiceRepo)),
	wire.Bind(new(service.ServiceCatalog), new(*repo.ServiceRepo)),
)

var serviceSet = wire.NewSet(
	validation.NewAgentConfigValidator,
	service.NewAnomalyJobService,
	service.NewChartService,
	service.NewErrorService,
	service.NewTransactionService,
	service.NewServiceInventory,
	service.NewAgentConfigService,
	wire.Bind(new(service.JobRegistry), new(*service.AnomalyJobService)),
	wire.Bind(new(scheduler.JobRefresher), new(*service.AnomalyJobService)),
	scheduler.NewMLJobScheduler,
)

var handlerSet = wire.NewSet(
	handler.NewAPMHandler,
	handler.NewAgentConfigHandler,
	handler.NewSettingsHandler,
	wire.Struct(new(handler.Handlers), "*"),
)

// InitializeApp 组装服务端进程
func InitializeApp(conf *config.Holder) (*App, func(), error) {
	wire.Build(
		NewLogger,
		NewDatabase,
		esSet,
		repoSet,
		serviceSet,
		handlerSet,
		NewEcho,
		NewApp,
	)
	return nil, nil, nil
}
