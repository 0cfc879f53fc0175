package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factory-scheduler/internal/types"
)

func sampleEntries() []types.ScheduleEntry {
	return []types.ScheduleEntry{
		{StepID: 1, EquipmentID: 10, Start: monday(9, 0), End: monday(10, 20)},
		{StepID: 2, EquipmentID: 20, Start: monday(10, 20), End: monday(13, 15)},
		{StepID: 3, EquipmentID: 0, Start: monday(13, 15), End: monday(13, 50)},
	}
}

func newTestPresenter(names EquipmentNameLookup) *Presenter {
	steps := &fakeSteps{names: map[int64]string{1: "切削", 2: "研磨"}}
	return NewPresenter(steps, names, time.UTC, discardLogger())
}

func TestPresenter_Build(t *testing.T) {
	p := newTestPresenter(&fakeNames{names: map[int64]string{10: "NC-01"}})
	result, err := p.Build(context.Background(), sampleEntries(), "")
	require.NoError(t, err)

	assert.Equal(t, monday(13, 50), result.CalculatedDeadline)
	assert.True(t, result.IsFeasible)
	require.Len(t, result.ProcessSchedules, 3)

	first := result.ProcessSchedules[0]
	assert.Equal(t, "切削", first.ProcessName)
	require.NotNil(t, first.EquipmentName)
	assert.Equal(t, "NC-01", *first.EquipmentName)

	assert.Nil(t, result.ProcessSchedules[1].EquipmentName, "未知设备返回 nil")
	assert.Equal(t, UnknownName, result.ProcessSchedules[2].ProcessName)
	assert.Nil(t, result.ProcessSchedules[2].EquipmentName, "没有设备 ID 时返回 nil")
}

func TestPresenter_BuildEmpty(t *testing.T) {
	p := newTestPresenter(&fakeNames{})
	_, err := p.Build(context.Background(), nil, "")
	require.ErrorIs(t, err, ErrEmptySchedule)
}

func TestPresenter_LookupFailureDegradesToSentinel(t *testing.T) {
	p := newTestPresenter(&fakeNames{err: errors.New("timeout")})
	result, err := p.Build(context.Background(), sampleEntries()[:1], "")
	require.NoError(t, err)
	require.NotNil(t, result.ProcessSchedules[0].EquipmentName)
	assert.Equal(t, UnknownName, *result.ProcessSchedules[0].EquipmentName)
}

func TestPresenter_IsFeasible(t *testing.T) {
	p := newTestPresenter(&fakeNames{})
	computed := monday(13, 50)

	tests := []struct {
		name    string
		desired string
		want    bool
	}{
		{"未指定", "", true},
		{"早于计算交期", "2025-01-06T13:49:00", false},
		{"等于计算交期", "2025-01-06T13:50:00", true},
		{"等于计算交期 (RFC3339)", "2025-01-06T13:50:00Z", true},
		{"带时区偏移", "2025-01-06T22:49:00+09:00", false},
		{"只有日期", "2025-01-07", true},
		{"只有日期且更早", "2025-01-06", false},
		{"无法解析", "next tuesday", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsFeasible(tt.desired, computed))
		})
	}
}

func TestParseDeadline(t *testing.T) {
	loc := time.FixedZone("JST", 9*3600)
	got, err := ParseDeadline("2025-01-10 17:00:00", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 17, 0, 0, 0, loc), got)

	_, err = ParseDeadline("10/01/2025", loc)
	assert.Error(t, err)
}
