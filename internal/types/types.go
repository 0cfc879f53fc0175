package types

import "time"

// OrderStatus 定义订单状态
// 状态迁移由 fsm 包管理，本引擎只读取
type OrderStatus string

const (
	OrderDraft     OrderStatus = "draft"     // 草稿：可以反复模拟排程
	OrderConfirmed OrderStatus = "confirmed" // 已确认：排程已写入设备负荷
)

// Step 表示产品工艺路线中的一个工序
// 每个工序绑定一个设备组，并带有固定的准备时间和单件加工时间
type Step struct {
	ID               int64         `json:"id"`
	ProductID        int64         `json:"product_id"`
	SequenceOrder    int           `json:"sequence_order"`     // 同一产品内严格递增
	EquipmentGroupID int64         `json:"equipment_group_id"` // 可用设备组
	ProcessName      string        `json:"process_name"`
	Setup            time.Duration `json:"setup"`          // 准备时间
	PerUnit          time.Duration `json:"per_unit"`       // 单件加工时间
	Rule             string        `json:"rule,omitempty"` // 执行条件 (expr 语法)，为空则总是执行
}

// ScheduleEntry 是排程的最小提交单元：某订单的某工序在某设备上的一个时间段
// 跨天的工序会拆成多条记录，共享 order/step/equipment
type ScheduleEntry struct {
	OrderID     *int64    `json:"order_id"` // 模拟新订单时为 nil
	StepID      int64     `json:"process_routing_id"`
	EquipmentID int64     `json:"equipment_id"`
	Start       time.Time `json:"start_datetime"`
	End         time.Time `json:"end_datetime"`
}

// ProcessSchedule 是带有名称的排程条目，用于前端展示
type ProcessSchedule struct {
	ProcessName   string    `json:"process_name"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	EquipmentName *string   `json:"equipment_name"`
}

// SimulationResult 是模拟排程的结果，不会被持久化
type SimulationResult struct {
	CalculatedDeadline time.Time         `json:"calculated_deadline"`
	IsFeasible         bool              `json:"is_feasible"`
	ProcessSchedules   []ProcessSchedule `json:"process_schedules"`
}

// Order 表示一个生产订单
type Order struct {
	ID              int64       `json:"id"`
	TenantID        string      `json:"tenant_id"`
	ProductID       int64       `json:"product_id"`
	Quantity        int         `json:"quantity"`
	DesiredDeadline string      `json:"desired_deadline,omitempty"` // 原样保存，解析失败时视为可行
	Status          OrderStatus `json:"status"`
	IsScheduled     bool        `json:"is_scheduled"`
}

// CalendarDay 是工作日历中的一条例外记录
// IsHoliday=true 表示休息日，false 表示加班工作日
type CalendarDay struct {
	Date      time.Time `json:"date"`
	IsHoliday bool      `json:"is_holiday"`
	Note      string    `json:"note,omitempty"`
}

// ConfirmRequest 是进入批量确定队列的一条请求
type ConfirmRequest struct {
	OrderID  int64     `json:"order_id"`
	TenantID string    `json:"tenant_id"`
	Deadline time.Time `json:"deadline,omitempty"` // 解析后的希望交期，零值排在最后
	QueuedAt time.Time `json:"queued_at"`
}

// ScheduleView 是带名称的已提交排程记录，用于按期间查询
type ScheduleView struct {
	ScheduleEntry
	ProcessName   string  `json:"process_name"`
	EquipmentName *string `json:"equipment_name"`
}
