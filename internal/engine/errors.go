package engine

import "errors"

// 排程领域错误，任何一个都会中止整次排程，不返回部分结果
var (
	ErrNoStepsFound       = errors.New("no routing steps found for product")
	ErrNoEquipmentInGroup = errors.New("equipment group has no members")
	ErrEmptySchedule      = errors.New("schedule is empty")
	ErrInvalidRule        = errors.New("invalid step rule")
)
