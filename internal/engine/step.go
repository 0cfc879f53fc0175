package engine

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"factory-scheduler/internal/calendar"
	"factory-scheduler/internal/types"
)

// StepInput 是单个工序排程的输入
type StepInput struct {
	Step          types.Step
	OrderID       *int64
	Quantity      int
	EarliestStart time.Time // 订单开始时刻或前一工序的结束时刻
	Calendar      calendar.Config
}

// StepResult 是单个工序的排程结果
type StepResult struct {
	EquipmentID int64
	Entries     []types.ScheduleEntry
	End         time.Time // 下一工序的最早开始时刻
}

// StepScheduler 为一个工序选择最早空闲的设备，并按日历拆分加工时长
type StepScheduler struct {
	resolver *AvailabilityResolver
	logger   *slog.Logger
}

// NewStepScheduler 创建一个新的 StepScheduler 实例
func NewStepScheduler(resolver *AvailabilityResolver, logger *slog.Logger) *StepScheduler {
	return &StepScheduler{resolver: resolver, logger: logger}
}

// TotalDuration 计算工序总工时：准备时间 + 数量 × 单件时间
func TotalDuration(step types.Step, quantity int) time.Duration {
	return step.Setup + time.Duration(quantity)*step.PerUnit
}

type freeCandidate struct {
	equipmentID int64
	freeAt      time.Time
}

// ScheduleStep 对一个工序排程，不产生任何持久化副作用
func (s *StepScheduler) ScheduleStep(ctx context.Context, in StepInput) (StepResult, error) {
	candidates, err := s.resolver.Resolve(ctx, in.Step.EquipmentGroupID)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %d: %w", in.Step.ID, err)
	}

	free := make([]freeCandidate, 0, len(candidates))
	for _, c := range candidates {
		freeAt := in.EarliestStart
		// 日历计算依赖时区，仓储返回的时刻统一换算到工厂时区
		if c.LastEnd != nil && c.LastEnd.After(freeAt) {
			freeAt = c.LastEnd.In(in.EarliestStart.Location())
		}
		free = append(free, freeCandidate{equipmentID: c.EquipmentID, freeAt: freeAt})
	}
	// 先按空闲时刻，再按设备 ID 排序，保证结果可复现
	slices.SortStableFunc(free, func(a, b freeCandidate) int {
		if c := a.freeAt.Compare(b.freeAt); c != 0 {
			return c
		}
		return cmp.Compare(a.equipmentID, b.equipmentID)
	})
	chosen := free[0]

	start := in.Calendar.NextAvailableStart(chosen.freeAt)
	total := TotalDuration(in.Step, in.Quantity)
	intervals, err := in.Calendar.SplitAcrossDays(start, total)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %d on equipment %d: %w", in.Step.ID, chosen.equipmentID, err)
	}

	entries := make([]types.ScheduleEntry, 0, len(intervals))
	for _, iv := range intervals {
		entries = append(entries, types.ScheduleEntry{
			OrderID:     in.OrderID,
			StepID:      in.Step.ID,
			EquipmentID: chosen.equipmentID,
			Start:       iv.Start,
			End:         iv.End,
		})
	}

	s.logger.Debug("工序排程完成",
		"step_id", in.Step.ID,
		"equipment_id", chosen.equipmentID,
		"candidates", len(candidates),
		"start", start,
		"duration", total.String(),
		"segments", len(entries),
	)

	return StepResult{
		EquipmentID: chosen.equipmentID,
		Entries:     entries,
		End:         entries[len(entries)-1].End,
	}, nil
}
