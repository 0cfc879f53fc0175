package persistence

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"factory-scheduler/internal/types"
)

// 日志记录类型
const (
	recordEntry         = "ENTRY"          // 一条已提交的排程记录
	recordConfirmQueued = "CONFIRM_QUEUED" // 批量确定请求入队
	recordConfirmDone   = "CONFIRM_DONE"   // 批量确定请求已处理 (无论成功与否)
)

// logRecord 代表日志文件中的一行
type logRecord struct {
	Type    string                `json:"type"`
	Entry   *types.ScheduleEntry  `json:"entry,omitempty"`
	Confirm *types.ConfirmRequest `json:"confirm,omitempty"`
	OrderID int64                 `json:"order_id,omitempty"`
}

// ScheduleLog 是设备负荷的预写日志 (JSONL)
// 每次写入都追加一行并 fsync，内存中维护每台设备的最后结束时刻
type ScheduleLog struct {
	file *os.File
	mu   sync.RWMutex

	entries []types.ScheduleEntry
	lastEnd map[int64]time.Time
	pending map[int64]types.ConfirmRequest
}

// NewScheduleLog 创建或打开日志文件，并回放已有记录
func NewScheduleLog(path string) (*ScheduleLog, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	l := &ScheduleLog{file: file}
	if err := l.Replay(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("replay %s: %w", path, err)
	}
	return l, nil
}

// Replay 从文件开头重建内存索引
// 损坏的行被忽略
func (l *ScheduleLog) Replay() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	l.entries = nil
	l.lastEnd = make(map[int64]time.Time)
	l.pending = make(map[int64]types.ConfirmRequest)

	scanner := bufio.NewScanner(l.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec logRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		switch rec.Type {
		case recordEntry:
			if rec.Entry != nil {
				l.index(*rec.Entry)
			}
		case recordConfirmQueued:
			if rec.Confirm != nil {
				l.pending[rec.Confirm.OrderID] = *rec.Confirm
			}
		case recordConfirmDone:
			delete(l.pending, rec.OrderID)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	_, err := l.file.Seek(0, io.SeekEnd)
	return err
}

func (l *ScheduleLog) index(entry types.ScheduleEntry) {
	l.entries = append(l.entries, entry)
	if entry.End.After(l.lastEnd[entry.EquipmentID]) {
		l.lastEnd[entry.EquipmentID] = entry.End
	}
}

// write 追加一行并刷盘，调用方必须持有写锁
func (l *ScheduleLog) write(rec logRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return err
	}
	return l.file.Sync()
}

// Create 提交一条排程记录
// 只有写盘成功后记录才进入索引
func (l *ScheduleLog) Create(ctx context.Context, entry types.ScheduleEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.write(logRecord{Type: recordEntry, Entry: &entry}); err != nil {
		return fmt.Errorf("append schedule entry: %w", err)
	}
	l.index(entry)
	return nil
}

// LastEndTime 返回设备最后一条排程的结束时刻，没有排程时返回 nil
func (l *ScheduleLog) LastEndTime(_ context.Context, equipmentID int64) (*time.Time, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	end, ok := l.lastEnd[equipmentID]
	if !ok {
		return nil, nil
	}
	return &end, nil
}

// EntriesInPeriod 返回与 [from, to] 有重叠的排程记录，按开始时刻排序
// equipmentIDs 为空时不过滤设备
func (l *ScheduleLog) EntriesInPeriod(_ context.Context, from, to time.Time, equipmentIDs []int64) ([]types.ScheduleEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []types.ScheduleEntry
	for _, e := range l.entries {
		if e.Start.After(to) || e.End.Before(from) {
			continue
		}
		if len(equipmentIDs) > 0 && !slices.Contains(equipmentIDs, e.EquipmentID) {
			continue
		}
		result = append(result, e)
	}
	slices.SortStableFunc(result, func(a, b types.ScheduleEntry) int { return a.Start.Compare(b.Start) })
	return result, nil
}

// AllEntries 返回全部已提交的排程记录
func (l *ScheduleLog) AllEntries() []types.ScheduleEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// AppendConfirm 记录一条批量确定请求
func (l *ScheduleLog) AppendConfirm(req types.ConfirmRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.write(logRecord{Type: recordConfirmQueued, Confirm: &req}); err != nil {
		return err
	}
	l.pending[req.OrderID] = req
	return nil
}

// CompleteConfirm 标记批量确定请求已处理
func (l *ScheduleLog) CompleteConfirm(orderID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.write(logRecord{Type: recordConfirmDone, OrderID: orderID}); err != nil {
		return err
	}
	delete(l.pending, orderID)
	return nil
}

// PendingConfirms 返回已入队但尚未处理的请求，按入队时刻排序
func (l *ScheduleLog) PendingConfirms() []types.ConfirmRequest {
	l.mu.RLock()
	defer l.mu.RUnlock()
	reqs := make([]types.ConfirmRequest, 0, len(l.pending))
	for _, r := range l.pending {
		reqs = append(reqs, r)
	}
	slices.SortFunc(reqs, func(a, b types.ConfirmRequest) int {
		if c := a.QueuedAt.Compare(b.QueuedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.OrderID, b.OrderID)
	})
	return reqs
}

// Close 关闭日志文件
func (l *ScheduleLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
