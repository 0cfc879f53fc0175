package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"factory-scheduler/internal/config"
	"factory-scheduler/internal/engine"
	"factory-scheduler/internal/event"
	"factory-scheduler/internal/handlers"
	"factory-scheduler/internal/masterdata"
	"factory-scheduler/internal/order"
	"factory-scheduler/internal/persistence"
	"factory-scheduler/internal/web"
)

const shutdownTimeout = 5 * time.Second

// App 持有排程服务的全部组件
type App struct {
	Config     *config.Config
	Service    *order.Service
	Dispatcher *order.Dispatcher
	Hub        *web.Hub
	Board      *web.Board
	Handler    http.Handler

	scheduleLog *persistence.ScheduleLog
	orders      *persistence.OrderStore
	logger      *slog.Logger
}

// New 按配置组装所有组件，不启动任何 goroutine
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	baseCalendar, err := cfg.CalendarOverrides(loc)
	if err != nil {
		return nil, err
	}
	catalog, err := persistence.LoadCatalog(cfg.CatalogPath, loc)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	scheduleLog, err := persistence.NewScheduleLog(cfg.ScheduleLogPath)
	if err != nil {
		return nil, fmt.Errorf("open schedule log: %w", err)
	}
	orders := persistence.NewOrderStore()
	if cfg.OrderLogPath != "" {
		if orders, err = persistence.OpenOrderStore(cfg.OrderLogPath); err != nil {
			_ = scheduleLog.Close()
			return nil, fmt.Errorf("open order log: %w", err)
		}
	}

	// 1. 事件总线、看板和事件处理器
	bus := event.NewBus()
	hub := web.NewHub(logger)
	board := web.NewBoard(hub)
	board.Seed(scheduleLog.AllEntries())
	handlers.RegisterEventHandlers(bus, board, logger)

	// 2. 排程引擎和订单服务
	var names engine.EquipmentNameLookup = catalog
	if cfg.MasterData.Endpoint != "" {
		names = masterdata.NewRemoteDirectory(cfg.MasterData.Endpoint, cfg.MasterDataTimeout(), logger)
	}
	svc := order.NewService(order.Deps{
		Scheduler:    engine.NewOrderScheduler(catalog, scheduleLog, bus, logger),
		Presenter:    engine.NewPresenter(catalog, names, loc, logger),
		Steps:        catalog,
		Orders:       orders,
		Calendars:    catalog,
		Periods:      scheduleLog,
		Bus:          bus,
		Logger:       logger,
		BaseCalendar: baseCalendar,
		Lookahead:    cfg.Lookahead(),
		Location:     loc,
	})
	dispatcher := order.NewDispatcher(svc, cfg.MaxWorkers, scheduleLog, bus, logger)

	api := &web.API{
		Orders:        svc,
		Queue:         dispatcher,
		Board:         board,
		Hub:           hub,
		DefaultTenant: cfg.DefaultTenant,
		Logger:        logger.With("component", "api"),
	}

	return &App{
		Config:      cfg,
		Service:     svc,
		Dispatcher:  dispatcher,
		Hub:         hub,
		Board:       board,
		Handler:     api.Handler(),
		scheduleLog: scheduleLog,
		orders:      orders,
		logger:      logger,
	}, nil
}

// Run 恢复未处理的确定请求，启动调度和 HTTP 服务，直到 ctx 被取消后优雅停机
func (a *App) Run(ctx context.Context) error {
	if n := a.Dispatcher.RecoverPending(); n > 0 {
		a.logger.Info("已恢复未处理的确定请求", "count", n)
	}

	go a.Hub.Run(ctx)
	go a.Dispatcher.Start(ctx)

	srv := &http.Server{Addr: a.Config.HTTPAddr, Handler: a.Handler}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("API 服务器启动", "addr", a.Config.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API 服务器启动失败: %w", err)
		}
	case <-ctx.Done():
	}

	a.logger.Info("接收到停机信号，正在优雅关闭...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("关闭 HTTP 服务器失败", "error", err)
	}
	a.Dispatcher.WaitForCompletion()
	a.logger.Info("排程服务已安全退出")
	return nil
}

// Close 关闭日志文件
func (a *App) Close() error {
	return errors.Join(a.scheduleLog.Close(), a.orders.Close())
}
