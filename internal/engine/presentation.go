package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"factory-scheduler/internal/types"
)

// naiveLayouts 是不带时区的希望交期格式，按工厂时区解析
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	time.DateTime,
	time.DateOnly,
}

// ParseDeadline 解析希望交期，支持 RFC3339 和不带时区的 ISO 格式
func ParseDeadline(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized deadline %q", s)
}

// Presenter 负责交期判定以及为排程条目补充工序名和设备名
type Presenter struct {
	steps    StepRepository
	names    EquipmentNameLookup
	location *time.Location
	logger   *slog.Logger
}

// NewPresenter 创建一个新的 Presenter 实例
func NewPresenter(steps StepRepository, names EquipmentNameLookup, loc *time.Location, logger *slog.Logger) *Presenter {
	if loc == nil {
		loc = time.Local
	}
	return &Presenter{steps: steps, names: names, location: loc, logger: logger.With("component", "presenter")}
}

// IsFeasible 判定计算交期是否满足希望交期
// 未指定或无法解析的希望交期一律视为可行
func (p *Presenter) IsFeasible(desired string, computed time.Time) bool {
	if strings.TrimSpace(desired) == "" {
		return true
	}
	deadline, err := ParseDeadline(desired, p.location)
	if err != nil {
		p.logger.Warn("希望交期无法解析，视为可行", "desired_deadline", desired, "error", err)
		return true
	}
	return !computed.After(deadline)
}

// Build 生成模拟结果：计算交期取最后一条记录的结束时刻
func (p *Presenter) Build(ctx context.Context, entries []types.ScheduleEntry, desiredDeadline string) (*types.SimulationResult, error) {
	if len(entries) == 0 {
		return nil, ErrEmptySchedule
	}
	computed := entries[len(entries)-1].End
	return &types.SimulationResult{
		CalculatedDeadline: computed,
		IsFeasible:         p.IsFeasible(desiredDeadline, computed),
		ProcessSchedules:   p.Decorate(ctx, entries),
	}, nil
}

// Decorate 为每条排程记录补充名称
// 名称查询失败不会中止请求：工序名退化为 UnknownName，设备名退化为 UnknownName 或 nil
func (p *Presenter) Decorate(ctx context.Context, entries []types.ScheduleEntry) []types.ProcessSchedule {
	processNames := make(map[int64]string)
	equipmentNames := make(map[int64]*string)

	out := make([]types.ProcessSchedule, 0, len(entries))
	for _, e := range entries {
		processName := UnknownName
		if e.StepID != 0 {
			name, ok := processNames[e.StepID]
			if !ok {
				name = p.steps.ProcessName(ctx, e.StepID)
				processNames[e.StepID] = name
			}
			processName = name
		}

		var equipmentName *string
		if e.EquipmentID != 0 {
			name, ok := equipmentNames[e.EquipmentID]
			if !ok {
				name = p.equipmentName(ctx, e.EquipmentID)
				equipmentNames[e.EquipmentID] = name
			}
			equipmentName = name
		}

		out = append(out, types.ProcessSchedule{
			ProcessName:   processName,
			StartTime:     e.Start,
			EndTime:       e.End,
			EquipmentName: equipmentName,
		})
	}
	return out
}

func (p *Presenter) equipmentName(ctx context.Context, id int64) *string {
	name, err := p.names.EquipmentName(ctx, id)
	if err != nil {
		p.logger.Warn("查询设备名称失败", "equipment_id", id, "error", err)
		unknown := UnknownName
		return &unknown
	}
	return name
}
