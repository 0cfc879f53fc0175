package engine

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Candidate 是设备组中的一台候选设备及其最后一条排程的结束时刻
type Candidate struct {
	EquipmentID int64
	LastEnd     *time.Time // nil 表示当前空闲
}

// AvailabilityResolver 根据已提交的排程求出设备组内每台设备的空闲时刻
type AvailabilityResolver struct {
	steps     StepRepository
	schedules ScheduleRepository
}

// NewAvailabilityResolver 创建一个新的 AvailabilityResolver 实例
func NewAvailabilityResolver(steps StepRepository, schedules ScheduleRepository) *AvailabilityResolver {
	return &AvailabilityResolver{steps: steps, schedules: schedules}
}

// Resolve 列出设备组成员 (按设备 ID 升序) 及其最后结束时刻
// 每个工序都要重新调用，因为前一工序可能刚刚占用了同一台设备
func (r *AvailabilityResolver) Resolve(ctx context.Context, groupID int64) ([]Candidate, error) {
	members, err := r.steps.ResolveGroupMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("resolve members of group %d: %w", groupID, err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("group %d: %w", groupID, ErrNoEquipmentInGroup)
	}

	ids := slices.Clone(members)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		lastEnd, err := r.schedules.LastEndTime(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("last end time of equipment %d: %w", id, err)
		}
		candidates = append(candidates, Candidate{EquipmentID: id, LastEnd: lastEnd})
	}
	return candidates, nil
}
