package web

import (
	"maps"
	"slices"
	"sync"
	"time"

	"factory-scheduler/internal/types"
)

// EquipmentLoad 是一台设备已提交的负荷
type EquipmentLoad struct {
	EquipmentID int64                 `json:"equipment_id"`
	LastEnd     time.Time             `json:"last_end"`
	Entries     []types.ScheduleEntry `json:"entries"`
}

// BoardState 代表整个车间设备负荷的快照
type BoardState struct {
	Equipment       map[int64]EquipmentLoad `json:"equipment"`
	ConfirmedOrders int                     `json:"confirmed_orders"`
}

// Board 追踪各设备已提交的排程，并通知前端更新
type Board struct {
	mu    sync.RWMutex
	state BoardState
	hub   *Hub
}

// NewBoard 创建一个新的 Board 实例，hub 可为 nil
func NewBoard(hub *Hub) *Board {
	return &Board{
		state: BoardState{Equipment: make(map[int64]EquipmentLoad)},
		hub:   hub,
	}
}

// Seed 载入启动时已有的排程，不广播
func (b *Board) Seed(entries []types.ScheduleEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range entries {
		b.add(e)
	}
}

func (b *Board) add(e types.ScheduleEntry) {
	load := b.state.Equipment[e.EquipmentID]
	load.EquipmentID = e.EquipmentID
	load.Entries = append(load.Entries, e)
	if e.End.After(load.LastEnd) {
		load.LastEnd = e.End
	}
	b.state.Equipment[e.EquipmentID] = load
}

// AddEntry 记录一条新提交的排程，并向所有客户端广播最新快照
func (b *Board) AddEntry(e types.ScheduleEntry) {
	b.mu.Lock()
	b.add(e)
	snapshot := b.snapshotLocked()
	b.mu.Unlock()
	b.hub.BroadcastState(snapshot)
}

// OrderConfirmed 累计已确定订单数并广播
func (b *Board) OrderConfirmed() {
	b.mu.Lock()
	b.state.ConfirmedOrders++
	snapshot := b.snapshotLocked()
	b.mu.Unlock()
	b.hub.BroadcastState(snapshot)
}

// Snapshot 返回当前状态的深拷贝
func (b *Board) Snapshot() BoardState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked()
}

func (b *Board) snapshotLocked() BoardState {
	out := BoardState{
		Equipment:       maps.Clone(b.state.Equipment),
		ConfirmedOrders: b.state.ConfirmedOrders,
	}
	for id, load := range out.Equipment {
		load.Entries = slices.Clone(load.Entries)
		out.Equipment[id] = load
	}
	return out
}
