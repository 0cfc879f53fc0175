package fsm

import (
	"errors"
	"fmt"
	"sync"

	"factory-scheduler/internal/types"
)

// State 定义状态类型，与订单状态一一对应
type State = types.OrderStatus

// Event 定义事件类型
type Event string

const (
	StateDraft     State = types.OrderDraft
	StateConfirmed State = types.OrderConfirmed
)

const (
	// EventConfirm 与一次非 dry-run 排程一起触发
	EventConfirm Event = "CONFIRM"
)

// ErrInvalidTransition 表示当前状态不接受该事件
var ErrInvalidTransition = errors.New("invalid transition")

// FSM 订单有限状态机
type FSM struct {
	Current State
	mu      sync.Mutex
	// transitions 定义状态转移表: CurrentState -> Event -> NextState
	transitions map[State]map[Event]State
	OrderID     int64
}

// NewOrderFSM 以订单当前状态创建状态机，空状态视为草稿
func NewOrderFSM(orderID int64, current State) *FSM {
	if current == "" {
		current = StateDraft
	}
	f := &FSM{
		Current:     current,
		OrderID:     orderID,
		transitions: make(map[State]map[Event]State),
	}
	f.addTransition(StateDraft, EventConfirm, StateConfirmed)
	return f
}

func (f *FSM) addTransition(from State, event Event, to State) {
	if _, ok := f.transitions[from]; !ok {
		f.transitions[from] = make(map[Event]State)
	}
	f.transitions[from][event] = to
}

// Can 判断当前状态能否接受该事件
func (f *FSM) Can(event Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.transitions[f.Current][event]
	return ok
}

// Fire 触发事件
func (f *FSM) Fire(event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	nextState, ok := f.transitions[f.Current][event]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, event, f.Current)
	}
	f.Current = nextState
	return nil
}
