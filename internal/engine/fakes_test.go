package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"factory-scheduler/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// 2025-01-06 是周一
func monday(hour, minute int) time.Time {
	return time.Date(2025, 1, 6, hour, minute, 0, 0, time.UTC)
}

type fakeSteps struct {
	steps      map[int64][]types.Step
	groups     map[int64][]int64
	names      map[int64]string
	membersErr error
}

func (f *fakeSteps) ListStepsForProduct(_ context.Context, productID int64) ([]types.Step, error) {
	return f.steps[productID], nil
}

func (f *fakeSteps) ResolveGroupMembers(_ context.Context, groupID int64) ([]int64, error) {
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	return f.groups[groupID], nil
}

func (f *fakeSteps) ProcessName(_ context.Context, stepID int64) string {
	if name, ok := f.names[stepID]; ok {
		return name
	}
	return UnknownName
}

type fakeSchedules struct {
	mu       sync.Mutex
	lastEnd  map[int64]time.Time
	created  []types.ScheduleEntry
	failAt   int // 第 failAt 次 Create 调用失败 (从 1 开始)，0 表示不失败
	calls    int
	readsFor []int64
}

func newFakeSchedules() *fakeSchedules {
	return &fakeSchedules{lastEnd: map[int64]time.Time{}}
}

func (f *fakeSchedules) LastEndTime(_ context.Context, equipmentID int64) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readsFor = append(f.readsFor, equipmentID)
	if t, ok := f.lastEnd[equipmentID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (f *fakeSchedules) Create(_ context.Context, entry types.ScheduleEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAt != 0 && f.calls == f.failAt {
		return errors.New("database unavailable")
	}
	f.created = append(f.created, entry)
	if entry.End.After(f.lastEnd[entry.EquipmentID]) {
		f.lastEnd[entry.EquipmentID] = entry.End
	}
	return nil
}

type fakeNames struct {
	names map[int64]string
	err   error
}

func (f *fakeNames) EquipmentName(_ context.Context, id int64) (*string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if name, ok := f.names[id]; ok {
		return &name, nil
	}
	return nil, nil
}

func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }
