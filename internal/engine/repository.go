package engine

import (
	"context"
	"time"

	"factory-scheduler/internal/types"
)

// UnknownName 是名称查询失败时返回的占位名称
const UnknownName = "不明"

// StepRepository 提供工艺路线和设备组主数据 (只读)
type StepRepository interface {
	// ListStepsForProduct 按 SequenceOrder 升序返回产品的全部工序
	ListStepsForProduct(ctx context.Context, productID int64) ([]types.Step, error)
	// ResolveGroupMembers 返回设备组的成员设备 ID
	ResolveGroupMembers(ctx context.Context, groupID int64) ([]int64, error)
	// ProcessName 返回工序名称，失败时返回 UnknownName，永不报错
	ProcessName(ctx context.Context, stepID int64) string
}

// EquipmentNameLookup 查询设备名称，设备不存在时返回 nil
type EquipmentNameLookup interface {
	EquipmentName(ctx context.Context, equipmentID int64) (*string, error)
}

// ScheduleRepository 读写已提交的设备负荷
type ScheduleRepository interface {
	// LastEndTime 返回设备最后一条排程的结束时刻，没有排程时返回 nil
	LastEndTime(ctx context.Context, equipmentID int64) (*time.Time, error)
	Create(ctx context.Context, entry types.ScheduleEntry) error
}
