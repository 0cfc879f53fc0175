package order

import (
	"container/heap"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factory-scheduler/internal/persistence"
	"factory-scheduler/internal/types"
	"factory-scheduler/internal/util"
)

type recordingConfirmer struct {
	mu       sync.Mutex
	calls    []int64
	traceIDs []string
	fail     map[int64]bool
	done     chan int64
}

func newRecordingConfirmer() *recordingConfirmer {
	return &recordingConfirmer{fail: map[int64]bool{}, done: make(chan int64, 16)}
}

func (c *recordingConfirmer) Confirm(ctx context.Context, _ string, orderID int64) (*ConfirmResult, error) {
	c.mu.Lock()
	c.calls = append(c.calls, orderID)
	traceID, _ := util.TraceIDFromContext(ctx)
	c.traceIDs = append(c.traceIDs, traceID)
	fail := c.fail[orderID]
	c.mu.Unlock()
	defer func() { c.done <- orderID }()
	if fail {
		return nil, errors.New("equipment unavailable")
	}
	return &ConfirmResult{Status: types.OrderConfirmed}, nil
}

func (c *recordingConfirmer) waitFor(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.done:
		case <-time.After(2 * time.Second):
			require.FailNow(t, "确定请求未在规定时间内处理")
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestPriorityQueue_EarliestDeadlineFirst(t *testing.T) {
	pq := make(PriorityQueue, 0)
	heap.Push(&pq, &Item{Request: types.ConfirmRequest{OrderID: 1}})
	heap.Push(&pq, &Item{Request: types.ConfirmRequest{OrderID: 2, Deadline: jan(10, 0, 0)}})
	heap.Push(&pq, &Item{Request: types.ConfirmRequest{OrderID: 4, Deadline: jan(8, 0, 0)}})
	heap.Push(&pq, &Item{Request: types.ConfirmRequest{OrderID: 3, Deadline: jan(8, 0, 0)}})

	var got []int64
	for pq.Len() > 0 {
		got = append(got, heap.Pop(&pq).(*Item).Request.OrderID)
	}
	assert.Equal(t, []int64{3, 4, 2, 1}, got)
}

func TestDispatcher_ProcessesByPriority(t *testing.T) {
	confirmer := newRecordingConfirmer()
	d := NewDispatcher(confirmer, 1, nil, nil, discardLogger())

	require.NoError(t, d.SubmitConfirm(types.ConfirmRequest{OrderID: 1, TenantID: "t1"}))
	require.NoError(t, d.SubmitConfirm(types.ConfirmRequest{OrderID: 2, TenantID: "t1", Deadline: jan(9, 0, 0)}))
	require.NoError(t, d.SubmitConfirm(types.ConfirmRequest{OrderID: 3, TenantID: "t1", Deadline: jan(7, 0, 0)}))
	assert.ErrorIs(t, d.SubmitConfirm(types.ConfirmRequest{OrderID: 3, TenantID: "t1"}), ErrAlreadyQueued)
	assert.Equal(t, 3, d.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	confirmer.waitFor(t, 3)
	d.WaitForCompletion()

	confirmer.mu.Lock()
	defer confirmer.mu.Unlock()
	assert.Equal(t, []int64{3, 2, 1}, confirmer.calls)
	for _, id := range confirmer.traceIDs {
		assert.NotEmpty(t, id, "每个确定请求都带有 Trace ID")
	}
}

func TestDispatcher_RecoverPendingFromLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.log")
	schedLog, err := persistence.NewScheduleLog(path)
	require.NoError(t, err)

	// 第一次运行：入队后未处理就退出
	first := NewDispatcher(newRecordingConfirmer(), 2, schedLog, nil, discardLogger())
	require.NoError(t, first.SubmitConfirm(types.ConfirmRequest{OrderID: 7, TenantID: "t1", QueuedAt: jan(6, 8, 0)}))
	require.NoError(t, first.SubmitConfirm(types.ConfirmRequest{OrderID: 8, TenantID: "t1", QueuedAt: jan(6, 8, 1)}))
	require.NoError(t, schedLog.Close())

	reopened, err := persistence.NewScheduleLog(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.Len(t, reopened.PendingConfirms(), 2)

	confirmer := newRecordingConfirmer()
	confirmer.fail[8] = true
	d := NewDispatcher(confirmer, 2, reopened, nil, discardLogger())
	assert.Equal(t, 2, d.RecoverPending())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)
	confirmer.waitFor(t, 2)
	d.WaitForCompletion()

	assert.Eventually(t, func() bool { return len(reopened.PendingConfirms()) == 0 }, 2*time.Second, 10*time.Millisecond,
		"失败的请求同样标记为已处理")
}

func TestDispatcher_StopsOnCancel(t *testing.T) {
	d := NewDispatcher(newRecordingConfirmer(), 1, nil, nil, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(stopped)
	}()
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "调度循环未退出")
	}
}
