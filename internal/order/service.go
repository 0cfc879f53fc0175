package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"factory-scheduler/internal/calendar"
	"factory-scheduler/internal/engine"
	"factory-scheduler/internal/event"
	"factory-scheduler/internal/fsm"
	"factory-scheduler/internal/types"
	"factory-scheduler/internal/util"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrInvalidTransition = fsm.ErrInvalidTransition
)

// OrderRepository 订单仓库，Get 在订单不存在时返回 nil
type OrderRepository interface {
	Create(ctx context.Context, o types.Order) (types.Order, error)
	Get(ctx context.Context, tenantID string, id int64) (*types.Order, error)
	UpdateStatus(ctx context.Context, tenantID string, id int64, status types.OrderStatus, isScheduled bool) error
}

// CalendarRepository 返回 [from, to] 内对该租户生效的日历例外
type CalendarRepository interface {
	CalendarDays(ctx context.Context, tenantID string, from, to time.Time) ([]types.CalendarDay, error)
}

// PeriodReader 按期间读取已提交的排程记录
type PeriodReader interface {
	EntriesInPeriod(ctx context.Context, from, to time.Time, equipmentIDs []int64) ([]types.ScheduleEntry, error)
}

// SimulateRequest 是不依赖订单的模拟请求
type SimulateRequest struct {
	ProductID    int64
	Quantity     int
	TenantID     string
	Start        *time.Time // nil 表示当前时刻
	DeadlineDate string     // 希望交期，可为空
}

// ConfirmResult 是确定订单的结果
type ConfirmResult struct {
	Status    types.OrderStatus     `json:"status"`
	Schedules []types.ScheduleEntry `json:"schedules"`
}

// Deps 汇总 Service 的依赖
type Deps struct {
	Scheduler *engine.OrderScheduler
	Presenter *engine.Presenter
	Steps     engine.StepRepository
	Orders    OrderRepository
	Calendars CalendarRepository // 可为 nil
	Periods   PeriodReader
	Bus       *event.Bus
	Logger    *slog.Logger

	BaseCalendar calendar.Config // 配置文件中的全局例外
	Lookahead    time.Duration   // 读取日历例外的跨度
	Location     *time.Location
}

// Service 是订单侧的入口：模拟、确定以及查询
type Service struct {
	Deps
	now func() time.Time

	// confirmMu 保证同一订单不会被重复确定
	confirmMu sync.Mutex
}

// NewService 创建一个新的 Service 实例
func NewService(deps Deps) *Service {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Lookahead <= 0 {
		deps.Lookahead = 90 * 24 * time.Hour
	}
	deps.Logger = deps.Logger.With("component", "order_service")
	return &Service{Deps: deps, now: time.Now}
}

// SetClock 替换当前时刻，同时作用于排程器
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.Scheduler.SetClock(now)
}

// calendarFor 合并全局例外与主数据中的例外，覆盖从 start 所在日起 Lookahead 的范围
func (s *Service) calendarFor(ctx context.Context, tenantID string, start time.Time) (calendar.Config, error) {
	if s.Calendars == nil {
		return s.BaseCalendar, nil
	}
	local := start.In(s.Location)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.Location)
	days, err := s.Calendars.CalendarDays(ctx, tenantID, from, from.Add(s.Lookahead))
	if err != nil {
		return calendar.Config{}, fmt.Errorf("load calendar of tenant %q: %w", tenantID, err)
	}
	return s.BaseCalendar.Merge(calendar.FromDays(days)), nil
}

func (s *Service) request(ctx context.Context, orderID *int64, productID int64, quantity int, tenantID string, start *time.Time, dryRun bool) (engine.Request, error) {
	if quantity <= 0 {
		return engine.Request{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	begin := s.now()
	if start != nil {
		begin = start.In(s.Location)
	}
	cal, err := s.calendarFor(ctx, tenantID, begin)
	if err != nil {
		return engine.Request{}, err
	}
	return engine.Request{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		TenantID:  tenantID,
		Start:     begin,
		DryRun:    dryRun,
		Calendar:  cal,
	}, nil
}

// Simulate 模拟新订单的排程，不写入任何数据
func (s *Service) Simulate(ctx context.Context, req SimulateRequest) (*types.SimulationResult, error) {
	engineReq, err := s.request(ctx, nil, req.ProductID, req.Quantity, req.TenantID, req.Start, true)
	if err != nil {
		return nil, err
	}
	entries, err := s.Scheduler.Schedule(ctx, engineReq)
	if err != nil {
		return nil, err
	}
	return s.Presenter.Build(ctx, entries, req.DeadlineDate)
}

// SimulateOrder 以已有订单的数量和希望交期进行模拟
func (s *Service) SimulateOrder(ctx context.Context, tenantID string, orderID int64) (*types.SimulationResult, error) {
	o, err := s.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	engineReq, err := s.request(ctx, &o.ID, o.ProductID, o.Quantity, tenantID, nil, true)
	if err != nil {
		return nil, err
	}
	entries, err := s.Scheduler.Schedule(ctx, engineReq)
	if err != nil {
		return nil, err
	}
	return s.Presenter.Build(ctx, entries, o.DesiredDeadline)
}

// Confirm 提交订单排程并把订单置为已确定
// 排程写入失败时订单保持草稿状态，但已写入的记录不会回滚
// 同一服务上的确定串行执行
func (s *Service) Confirm(ctx context.Context, tenantID string, orderID int64) (*ConfirmResult, error) {
	s.confirmMu.Lock()
	defer s.confirmMu.Unlock()

	o, err := s.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	machine := fsm.NewOrderFSM(o.ID, o.Status)
	if !machine.Can(fsm.EventConfirm) {
		return nil, fmt.Errorf("order %d is %s: %w", o.ID, o.Status, ErrInvalidTransition)
	}

	engineReq, err := s.request(ctx, &o.ID, o.ProductID, o.Quantity, tenantID, nil, false)
	if err != nil {
		return nil, err
	}
	entries, err := s.Scheduler.Schedule(ctx, engineReq)
	if err != nil {
		return nil, err
	}

	if err := machine.Fire(fsm.EventConfirm); err != nil {
		return nil, err
	}
	if err := s.Orders.UpdateStatus(ctx, tenantID, o.ID, machine.Current, true); err != nil {
		return nil, fmt.Errorf("update order %d: %w", o.ID, err)
	}

	traceID, _ := util.TraceIDFromContext(ctx)
	s.Bus.Publish(event.Event{Type: event.OrderConfirmed, TraceID: traceID, OrderID: &o.ID, ProductID: o.ProductID, Entries: entries})
	s.Logger.Info("订单已确定", "order_id", o.ID, "trace_id", traceID, "entries", len(entries))
	return &ConfirmResult{Status: machine.Current, Schedules: entries}, nil
}

// CreateOrder 创建草稿订单
func (s *Service) CreateOrder(ctx context.Context, o types.Order) (types.Order, error) {
	if o.Quantity <= 0 {
		return types.Order{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, o.Quantity)
	}
	o.ID = 0
	o.Status = types.OrderDraft
	o.IsScheduled = false
	return s.Orders.Create(ctx, o)
}

func (s *Service) GetOrder(ctx context.Context, tenantID string, orderID int64) (*types.Order, error) {
	o, err := s.Orders.Get(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}
	return o, nil
}

// ConfirmRequestFor 为批量确定构造队列请求，只接受草稿订单
func (s *Service) ConfirmRequestFor(ctx context.Context, tenantID string, orderID int64) (types.ConfirmRequest, error) {
	o, err := s.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return types.ConfirmRequest{}, err
	}
	if !fsm.NewOrderFSM(o.ID, o.Status).Can(fsm.EventConfirm) {
		return types.ConfirmRequest{}, fmt.Errorf("order %d is %s: %w", o.ID, o.Status, ErrInvalidTransition)
	}
	req := types.ConfirmRequest{OrderID: o.ID, TenantID: tenantID, QueuedAt: s.now()}
	if o.DesiredDeadline != "" {
		if deadline, err := engine.ParseDeadline(o.DesiredDeadline, s.Location); err == nil {
			req.Deadline = deadline
		}
	}
	return req, nil
}

// SchedulesInPeriod 返回与 [startDate 00:00, endDate 24:00) 重叠的已提交排程
// groupID 非 nil 时只返回该设备组成员的记录
func (s *Service) SchedulesInPeriod(ctx context.Context, startDate, endDate string, groupID *int64) ([]types.ScheduleView, error) {
	from, err := time.ParseInLocation(time.DateOnly, startDate, s.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: start_date %q", ErrInvalidPeriod, startDate)
	}
	to, err := time.ParseInLocation(time.DateOnly, endDate, s.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: end_date %q", ErrInvalidPeriod, endDate)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidPeriod, endDate, startDate)
	}
	to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)

	var members []int64
	if groupID != nil {
		members, err = s.Steps.ResolveGroupMembers(ctx, *groupID)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return []types.ScheduleView{}, nil
		}
	}

	entries, err := s.Periods.EntriesInPeriod(ctx, from, to, members)
	if err != nil {
		return nil, err
	}
	decorated := s.Presenter.Decorate(ctx, entries)
	views := make([]types.ScheduleView, len(entries))
	for i := range entries {
		views[i] = types.ScheduleView{
			ScheduleEntry: entries[i],
			ProcessName:   decorated[i].ProcessName,
			EquipmentName: decorated[i].EquipmentName,
		}
	}
	return views, nil
}
