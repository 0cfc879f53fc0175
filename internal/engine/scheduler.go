package engine

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"factory-scheduler/internal/calendar"
	"factory-scheduler/internal/event"
	"factory-scheduler/internal/types"
	"factory-scheduler/internal/util"
)

// Request 是一次订单排程的输入
type Request struct {
	OrderID   *int64 // 新订单模拟时为 nil
	ProductID int64
	Quantity  int
	TenantID  string
	Start     time.Time // 零值表示当前时刻
	DryRun    bool      // true 时只计算，不写入设备负荷
	Calendar  calendar.Config
}

// OrderScheduler 按工序顺序逐个排程，并在非 dry-run 时提交结果
type OrderScheduler struct {
	steps     StepRepository
	schedules ScheduleRepository
	stepper   *StepScheduler
	eventBus  *event.Bus
	logger    *slog.Logger
	now       func() time.Time

	// commitMu 串行化同一进程内的提交，避免两个确定请求读到相同的空闲时刻
	commitMu sync.Mutex
}

// NewOrderScheduler 创建一个新的 OrderScheduler 实例
func NewOrderScheduler(steps StepRepository, schedules ScheduleRepository, bus *event.Bus, logger *slog.Logger) *OrderScheduler {
	logger = logger.With("component", "order_scheduler")
	return &OrderScheduler{
		steps:     steps,
		schedules: schedules,
		stepper:   NewStepScheduler(NewAvailabilityResolver(steps, schedules), logger),
		eventBus:  bus,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock 替换获取当前时刻的函数，仅用于测试和命令行回放
func (s *OrderScheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Schedule 为订单计算完整排程
// 工序严格串行：后一工序在前一工序全部完成之后才开始，即使使用不同的设备。
// 非 dry-run 模式下逐条写入排程记录，中途失败不回滚，已写入的记录保留。
func (s *OrderScheduler) Schedule(ctx context.Context, req Request) ([]types.ScheduleEntry, error) {
	began := time.Now()
	logger := s.logger.With("product_id", req.ProductID, "quantity", req.Quantity, "dry_run", req.DryRun)
	if req.OrderID != nil {
		logger = logger.With("order_id", *req.OrderID)
	}
	traceID, _ := util.TraceIDFromContext(ctx)
	if traceID != "" {
		logger = logger.With("trace_id", traceID)
	}

	if !req.DryRun {
		s.commitMu.Lock()
		defer s.commitMu.Unlock()
	}

	entries, err := s.schedule(ctx, req, logger)
	if err != nil {
		logger.Warn("排程失败", "error", err)
		s.eventBus.Publish(event.Event{Type: event.ScheduleFailed, TraceID: traceID, OrderID: req.OrderID, ProductID: req.ProductID, DryRun: req.DryRun, Error: err})
		return nil, err
	}

	elapsed := time.Since(began)
	s.eventBus.Publish(event.Event{Type: event.ScheduleComputed, TraceID: traceID, OrderID: req.OrderID, ProductID: req.ProductID, DryRun: req.DryRun, Entries: entries, Duration: elapsed})
	logger.Info("排程完成", "entries", len(entries), "elapsed_ms", elapsed.Milliseconds())
	return entries, nil
}

func (s *OrderScheduler) schedule(ctx context.Context, req Request, logger *slog.Logger) ([]types.ScheduleEntry, error) {
	steps, err := s.steps.ListStepsForProduct(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("list steps of product %d: %w", req.ProductID, err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("product %d: %w", req.ProductID, ErrNoStepsFound)
	}
	steps = slices.Clone(steps)
	slices.SortStableFunc(steps, func(a, b types.Step) int { return cmp.Compare(a.SequenceOrder, b.SequenceOrder) })

	cursor := req.Start
	if cursor.IsZero() {
		cursor = s.now()
	}
	ruleOrder := RuleOrder{ProductID: req.ProductID, Quantity: req.Quantity}

	var entries []types.ScheduleEntry
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run, err := shouldRun(step, ruleOrder)
		if err != nil {
			return nil, err
		}
		if !run {
			logger.Info("跳过工序", "step_id", step.ID, "rule", step.Rule)
			continue
		}

		result, err := s.stepper.ScheduleStep(ctx, StepInput{
			Step:          step,
			OrderID:       req.OrderID,
			Quantity:      req.Quantity,
			EarliestStart: cursor,
			Calendar:      req.Calendar,
		})
		if err != nil {
			return nil, err
		}
		if !req.DryRun {
			if err := s.persist(ctx, req, result.Entries); err != nil {
				return nil, err
			}
		}
		entries = append(entries, result.Entries...)
		cursor = result.End
	}
	return entries, nil
}

// persist 逐条写入排程记录
// 工序结束后立即写入，下一工序读取空闲时刻时就能看到本工序的占用
func (s *OrderScheduler) persist(ctx context.Context, req Request, entries []types.ScheduleEntry) error {
	for i := range entries {
		if err := s.schedules.Create(ctx, entries[i]); err != nil {
			return fmt.Errorf("persist entry %d of step %d: %w", i+1, entries[i].StepID, err)
		}
		committed := entries[i]
		s.eventBus.Publish(event.Event{Type: event.EntryCommitted, OrderID: req.OrderID, ProductID: req.ProductID, Entry: &committed})
	}
	return nil
}
