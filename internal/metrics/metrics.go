package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 定义 Prometheus 监控指标
var (
	// SimulationsTotal 计数器：模拟排程次数
	// 按结果 (success/failed) 分类
	SimulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_simulations_total",
		Help: "The total number of dry-run schedule computations",
	}, []string{"result"})

	// OrdersConfirmedTotal 计数器：已确定的订单数
	OrdersConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_orders_confirmed_total",
		Help: "The total number of confirmed orders",
	})

	// EntriesCommittedTotal 计数器：写入设备负荷的排程记录数
	EntriesCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_entries_committed_total",
		Help: "The total number of committed schedule entries",
	})

	// ScheduleDuration 直方图：一次排程计算的耗时
	// 按模式 (dry_run/commit) 分类
	ScheduleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_schedule_duration_seconds",
		Help:    "Time spent computing one order schedule",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// ConfirmQueueDepth 仪表盘：批量确定队列中等待的请求数
	ConfirmQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_confirm_queue_depth",
		Help: "The number of confirm requests waiting in the priority queue",
	})
)

// Mode 返回 ScheduleDuration 的 mode 标签
func Mode(dryRun bool) string {
	if dryRun {
		return "dry_run"
	}
	return "commit"
}
