// Package calendar 实现工厂稼动日历：工作日判定、工作窗口 (09:00-17:00)、
// 午休 (12:00-13:00) 扣除，以及把一段加工时长拆分到多个工作日。
//
// 所有时刻均视为同一时区的工厂本地时间，不处理夏令时。
package calendar

import (
	"errors"
	"fmt"
	"time"

	"factory-scheduler/internal/types"
)

const (
	WorkStartHour  = 9
	WorkEndHour    = 17
	BreakStartHour = 12
	BreakEndHour   = 13

	// BreakDuration 午休时长，从可用工时中扣除
	BreakDuration = (BreakEndHour - BreakStartHour) * time.Hour
)

// ErrInvalidInput 表示传入了非正时长或未规整的开始时刻
var ErrInvalidInput = errors.New("invalid calendar input")

// Date 是不带时刻的日期，用作例外日集合的 key
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf 取时刻所在的日期
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Config 是一次排程所使用的日历配置，构造后不可变
// 零值即默认日历：周一至周五工作，周六日休息
type Config struct {
	holidays map[Date]struct{}
	workdays map[Date]struct{}
}

// NewConfig 以休息日和加班工作日两组例外创建配置
func NewConfig(holidays, workdays []time.Time) Config {
	c := Config{
		holidays: make(map[Date]struct{}, len(holidays)),
		workdays: make(map[Date]struct{}, len(workdays)),
	}
	for _, h := range holidays {
		c.holidays[DateOf(h)] = struct{}{}
	}
	for _, w := range workdays {
		c.workdays[DateOf(w)] = struct{}{}
	}
	return c
}

// FromDays 由工作日历例外记录构建配置
// IsHoliday=true 归入休息日，false 归入工作日
func FromDays(days []types.CalendarDay) Config {
	var holidays, workdays []time.Time
	for _, d := range days {
		if d.IsHoliday {
			holidays = append(holidays, d.Date)
		} else {
			workdays = append(workdays, d.Date)
		}
	}
	return NewConfig(holidays, workdays)
}

// Merge 返回合并了另一份配置例外日的新配置
func (c Config) Merge(other Config) Config {
	merged := Config{
		holidays: make(map[Date]struct{}, len(c.holidays)+len(other.holidays)),
		workdays: make(map[Date]struct{}, len(c.workdays)+len(other.workdays)),
	}
	for _, src := range []Config{c, other} {
		for d := range src.holidays {
			merged.holidays[d] = struct{}{}
		}
		for d := range src.workdays {
			merged.workdays[d] = struct{}{}
		}
	}
	return merged
}

// IsWorkday 判定是否为工作日
// 同一天同时出现在两组例外中时，按工作日处理
func (c Config) IsWorkday(t time.Time) bool {
	d := DateOf(t)
	if _, ok := c.workdays[d]; ok {
		return true
	}
	if _, ok := c.holidays[d]; ok {
		return false
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// at 返回 t 当天 hour 点整
func at(t time.Time, hour int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, t.Location())
}

// NextWorkStart 返回下一个工作日的 09:00
// 若 t 是工作日且早于当天 09:00，则返回当天 09:00
func (c Config) NextWorkStart(t time.Time) time.Time {
	if c.IsWorkday(t) && t.Before(at(t, WorkStartHour)) {
		return at(t, WorkStartHour)
	}
	next := at(t, WorkStartHour).AddDate(0, 0, 1)
	for !c.IsWorkday(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// AdjustForBreak 落在午休中的时刻顺延到 13:00
func AdjustForBreak(t time.Time) time.Time {
	if !t.Before(at(t, BreakStartHour)) && t.Before(at(t, BreakEndHour)) {
		return at(t, BreakEndHour)
	}
	return t
}

// NextAvailableStart 把任意时刻规整到最早可开工的时刻，幂等
func (c Config) NextAvailableStart(t time.Time) time.Time {
	var start time.Time
	switch {
	case !c.IsWorkday(t) || !t.Before(at(t, WorkEndHour)):
		start = c.NextWorkStart(t)
	case t.Before(at(t, WorkStartHour)):
		start = at(t, WorkStartHour)
	default:
		start = t
	}
	return AdjustForBreak(start)
}

// validateStart 要求开始时刻位于工作日的工作窗口内且不在午休中
func (c Config) validateStart(start time.Time) error {
	if !c.IsWorkday(start) {
		return fmt.Errorf("%w: %s is not a workday", ErrInvalidInput, DateOf(start))
	}
	if start.Before(at(start, WorkStartHour)) || !start.Before(at(start, WorkEndHour)) {
		return fmt.Errorf("%w: %s is outside %02d:00-%02d:00", ErrInvalidInput, start.Format(time.DateTime), WorkStartHour, WorkEndHour)
	}
	if !AdjustForBreak(start).Equal(start) {
		return fmt.Errorf("%w: %s falls in the break", ErrInvalidInput, start.Format(time.DateTime))
	}
	return nil
}

// Remaining 计算从 start 到当天 17:00 的可用工时
// start 早于 12:00 时扣除午休
func (c Config) Remaining(start time.Time) (time.Duration, error) {
	if err := c.validateStart(start); err != nil {
		return 0, err
	}
	remaining := at(start, WorkEndHour).Sub(start)
	if start.Before(at(start, BreakStartHour)) {
		remaining -= BreakDuration
	}
	return remaining, nil
}

// EndTime 计算在当天内完成 d 工时的结束时刻
// 跨越午休时顺延一小时；超出当天 17:00 则返回错误
func (c Config) EndTime(start time.Time, d time.Duration) (time.Time, error) {
	if err := c.validateStart(start); err != nil {
		return time.Time{}, err
	}
	if d <= 0 {
		return time.Time{}, fmt.Errorf("%w: duration %s must be positive", ErrInvalidInput, d)
	}
	breakStart := at(start, BreakStartHour)
	end := start.Add(d)
	if start.Before(breakStart) && end.After(breakStart) {
		end = end.Add(BreakDuration)
	}
	if limit := at(start, WorkEndHour); end.After(limit) {
		return time.Time{}, fmt.Errorf("%w: %s + %s ends at %s, after %s", ErrInvalidInput,
			start.Format(time.DateTime), d, end.Format(time.DateTime), limit.Format(time.DateTime))
	}
	return end, nil
}

// Interval 是一个工作日内的连续加工区间
type Interval struct {
	Start time.Time
	End   time.Time
}

// SplitAcrossDays 把 d 工时从 start 开始拆分到若干工作日
// start 必须已经过 NextAvailableStart 规整
func (c Config) SplitAcrossDays(start time.Time, d time.Duration) ([]Interval, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: duration %s must be positive", ErrInvalidInput, d)
	}
	if normalized := c.NextAvailableStart(start); !normalized.Equal(start) {
		return nil, fmt.Errorf("%w: start %s is not normalized (expected %s)", ErrInvalidInput,
			start.Format(time.DateTime), normalized.Format(time.DateTime))
	}

	var intervals []Interval
	cursor, remaining := start, d
	for {
		today, err := c.Remaining(cursor)
		if err != nil {
			return nil, err
		}
		if remaining <= today {
			end, err := c.EndTime(cursor, remaining)
			if err != nil {
				return nil, err
			}
			return append(intervals, Interval{Start: cursor, End: end}), nil
		}
		endOfDay := at(cursor, WorkEndHour)
		intervals = append(intervals, Interval{Start: cursor, End: endOfDay})
		remaining -= today
		cursor = c.NextWorkStart(endOfDay)
	}
}

// WorkingTime 计算区间内实际占用的工时（扣除午休）
func WorkingTime(iv Interval) time.Duration {
	d := iv.End.Sub(iv.Start)
	breakStart, breakEnd := at(iv.Start, BreakStartHour), at(iv.Start, BreakEndHour)
	if iv.Start.Before(breakStart) && iv.End.After(breakEnd) {
		d -= BreakDuration
	}
	return d
}
