package order

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"

	"factory-scheduler/internal/event"
	"factory-scheduler/internal/metrics"
	"factory-scheduler/internal/types"
	"factory-scheduler/internal/util"
)

// ErrAlreadyQueued 表示订单已在批量确定队列中
var ErrAlreadyQueued = errors.New("order already queued")

// ConfirmLog 持久化批量确定请求，进程重启后可恢复未处理的请求
type ConfirmLog interface {
	AppendConfirm(req types.ConfirmRequest) error
	CompleteConfirm(orderID int64) error
	PendingConfirms() []types.ConfirmRequest
}

// Confirmer 执行单个订单的确定
type Confirmer interface {
	Confirm(ctx context.Context, tenantID string, orderID int64) (*ConfirmResult, error)
}

// Dispatcher 负责批量确定请求的排队和分发
// 它维护一个优先级队列，并控制并发执行的 worker 数量
type Dispatcher struct {
	pq         PriorityQueue
	queued     map[int64]struct{} // 排队中或执行中的订单
	confirmer  Confirmer
	mu         sync.Mutex
	cond       *sync.Cond // 条件变量，用于通知 worker 有新请求
	maxWorkers int
	wg         sync.WaitGroup // 等待组，用于优雅停机
	log        ConfirmLog     // 可为 nil
	eventBus   *event.Bus
	logger     *slog.Logger
}

// NewDispatcher 创建一个新的 Dispatcher 实例
func NewDispatcher(confirmer Confirmer, maxWorkers int, log ConfirmLog, bus *event.Bus, logger *slog.Logger) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	d := &Dispatcher{
		pq:         make(PriorityQueue, 0),
		queued:     make(map[int64]struct{}),
		confirmer:  confirmer,
		maxWorkers: maxWorkers,
		log:        log,
		eventBus:   bus,
		logger:     logger.With("component", "dispatcher"),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// RecoverPending 从日志中恢复未处理的确定请求
// 在系统启动时调用
func (d *Dispatcher) RecoverPending() int {
	if d.log == nil {
		return 0
	}
	reqs := d.log.PendingConfirms()
	for _, req := range reqs {
		d.logger.Info("重新加载未处理的确定请求", "order_id", req.OrderID, "tenant_id", req.TenantID)
		d.enqueue(req) // 内部提交，不重复写日志
	}
	return len(reqs)
}

// SubmitConfirm 提交一条确定请求
// 先写入日志持久化，再放入内存队列
func (d *Dispatcher) SubmitConfirm(req types.ConfirmRequest) error {
	d.mu.Lock()
	_, dup := d.queued[req.OrderID]
	d.mu.Unlock()
	if dup {
		return ErrAlreadyQueued
	}

	if d.log != nil {
		if err := d.log.AppendConfirm(req); err != nil {
			d.logger.Error("写入确定请求日志失败", "error", err, "order_id", req.OrderID)
			return err
		}
	}
	if !d.enqueue(req) {
		return ErrAlreadyQueued
	}
	d.eventBus.Publish(event.Event{Type: event.ConfirmQueued, OrderID: &req.OrderID})
	return nil
}

// enqueue 将请求放入优先级队列并唤醒 worker
func (d *Dispatcher) enqueue(req types.ConfirmRequest) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.queued[req.OrderID]; dup {
		return false
	}
	d.queued[req.OrderID] = struct{}{}
	heap.Push(&d.pq, &Item{Request: req})
	metrics.ConfirmQueueDepth.Inc()
	d.logger.Info("确定请求入队", "order_id", req.OrderID, "deadline", req.Deadline)
	d.cond.Signal()
	return true
}

// Len 返回队列中等待的请求数
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pq.Len()
}

// Start 启动调度循环，直到 ctx 被取消
func (d *Dispatcher) Start(ctx context.Context) {
	workerPool := make(chan struct{}, d.maxWorkers)

	// 监听上下文取消信号，用于优雅停机
	go func() {
		<-ctx.Done()
		d.mu.Lock()
		d.cond.Broadcast() // 唤醒调度循环以便退出
		d.mu.Unlock()
	}()

	for {
		d.mu.Lock()
		for d.pq.Len() == 0 {
			if ctx.Err() != nil {
				d.mu.Unlock()
				return
			}
			d.cond.Wait()
		}
		if ctx.Err() != nil {
			d.mu.Unlock()
			return
		}

		item := heap.Pop(&d.pq).(*Item)
		metrics.ConfirmQueueDepth.Dec()
		d.mu.Unlock()

		// 获取 worker 凭证（控制并发数）
		select {
		case workerPool <- struct{}{}:
		case <-ctx.Done():
			d.requeue(item.Request)
			return
		}
		d.wg.Add(1)

		go func(req types.ConfirmRequest) {
			defer d.wg.Done()
			defer func() { <-workerPool }()
			d.process(ctx, req)
		}(item.Request)
	}
}

// requeue 把已出队但未执行的请求放回队列，日志中仍为未处理状态
func (d *Dispatcher) requeue(req types.ConfirmRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	heap.Push(&d.pq, &Item{Request: req})
	metrics.ConfirmQueueDepth.Inc()
}

func (d *Dispatcher) process(ctx context.Context, req types.ConfirmRequest) {
	// 生成 Trace ID 并注入 Context，用于全链路追踪
	// 停机时已开始的确定继续执行到结束
	traceID := util.NewTraceID()
	taskCtx := util.ContextWithTraceID(context.WithoutCancel(ctx), traceID)
	logger := d.logger.With("order_id", req.OrderID, "trace_id", traceID)

	result, err := d.confirmer.Confirm(taskCtx, req.TenantID, req.OrderID)
	if err != nil {
		// 失败的确定可能已部分写入，不自动重试
		logger.Error("批量确定失败", "error", err)
	} else {
		logger.Info("批量确定完成", "entries", len(result.Schedules))
	}

	if d.log != nil {
		if err := d.log.CompleteConfirm(req.OrderID); err != nil {
			logger.Error("标记确定请求完成失败", "error", err)
		}
	}
	d.mu.Lock()
	delete(d.queued, req.OrderID)
	d.mu.Unlock()
}

// WaitForCompletion 等待所有正在执行的确定完成
// 用于优雅停机
func (d *Dispatcher) WaitForCompletion() {
	d.wg.Wait()
}
