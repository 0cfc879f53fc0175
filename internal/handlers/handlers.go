package handlers

import (
	"log/slog"

	"factory-scheduler/internal/event"
	"factory-scheduler/internal/metrics"
	"factory-scheduler/internal/web"
)

// RegisterEventHandlers 将所有事件处理器注册到事件总线
// 监控、看板、审计日志各自订阅，互不依赖
func RegisterEventHandlers(bus *event.Bus, board *web.Board, logger *slog.Logger) {
	logger = logger.With("component", "audit")

	// --- 指标处理器 ---
	bus.Subscribe(event.ScheduleComputed, func(e event.Event) {
		if e.DryRun {
			metrics.SimulationsTotal.WithLabelValues("success").Inc()
		}
		metrics.ScheduleDuration.WithLabelValues(metrics.Mode(e.DryRun)).Observe(e.Duration.Seconds())
	})
	bus.Subscribe(event.ScheduleFailed, func(e event.Event) {
		if e.DryRun {
			metrics.SimulationsTotal.WithLabelValues("failed").Inc()
		}
	})
	bus.Subscribe(event.EntryCommitted, func(event.Event) {
		metrics.EntriesCommittedTotal.Inc()
	})
	bus.Subscribe(event.OrderConfirmed, func(event.Event) {
		metrics.OrdersConfirmedTotal.Inc()
	})

	// --- 看板处理器 ---
	if board != nil {
		bus.Subscribe(event.EntryCommitted, func(e event.Event) {
			if e.Entry != nil {
				board.AddEntry(*e.Entry)
			}
		})
		bus.Subscribe(event.OrderConfirmed, func(event.Event) {
			board.OrderConfirmed()
		})
	}

	// --- 日志处理器 ---
	bus.Subscribe(event.ScheduleFailed, func(e event.Event) {
		if !e.DryRun {
			logger.Error("确定排程失败，可能已部分写入", "order_id", orderID(e), "product_id", e.ProductID, "trace_id", e.TraceID, "error", e.Error)
		}
	})
	bus.Subscribe(event.OrderConfirmed, func(e event.Event) {
		logger.Info("订单确定", "order_id", orderID(e), "trace_id", e.TraceID, "entries", len(e.Entries))
	})
	bus.Subscribe(event.ConfirmQueued, func(e event.Event) {
		logger.Info("确定请求入队", "order_id", orderID(e))
	})
}

func orderID(e event.Event) any {
	if e.OrderID == nil {
		return nil
	}
	return *e.OrderID
}
