package event

import (
	"sync"
	"time"

	"factory-scheduler/internal/types"
)

// EventType 定义事件的类型
type EventType string

// 定义所有业务事件类型
const (
	ScheduleComputed EventType = "ScheduleComputed" // 一次排程计算完成 (模拟或确定)
	EntryCommitted   EventType = "EntryCommitted"   // 一条排程记录已写入设备负荷
	OrderConfirmed   EventType = "OrderConfirmed"   // 订单已确定
	ScheduleFailed   EventType = "ScheduleFailed"   // 排程失败
	ConfirmQueued    EventType = "ConfirmQueued"    // 确定请求进入批量队列
)

// Event 结构体定义了事件的数据负载
type Event struct {
	Type      EventType
	TraceID   string
	OrderID   *int64
	ProductID int64
	DryRun    bool
	Entries   []types.ScheduleEntry // ScheduleComputed / OrderConfirmed 携带完整排程
	Entry     *types.ScheduleEntry  // 仅 EntryCommitted
	Duration  time.Duration         // 排程计算耗时
	Error     error                 // 仅失败事件
}

// Handler 是事件处理函数的签名
type Handler func(e Event)

// Bus 是一个简单的内存事件总线
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus 创建一个新的事件总线实例
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe 订阅一个特定类型的事件
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish 发布一个事件，所有订阅了该事件类型的处理器都将被异步调用
// nil 总线上发布是空操作，便于在测试中省略总线
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, handler := range b.handlers[e.Type] {
		go handler(e)
	}
}
