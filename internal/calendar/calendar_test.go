package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factory-scheduler/internal/types"
)

// 2025-01-06 是周一
func dt(day, hour, minute int) time.Time {
	return time.Date(2025, 1, day, hour, minute, 0, 0, time.UTC)
}

func TestIsWorkday_Defaults(t *testing.T) {
	var cfg Config
	assert.True(t, cfg.IsWorkday(dt(6, 10, 0)), "周一应为工作日")
	assert.True(t, cfg.IsWorkday(dt(10, 10, 0)), "周五应为工作日")
	assert.False(t, cfg.IsWorkday(dt(11, 10, 0)), "周六应为休息日")
	assert.False(t, cfg.IsWorkday(dt(12, 10, 0)), "周日应为休息日")
}

func TestIsWorkday_Overrides(t *testing.T) {
	cfg := NewConfig([]time.Time{dt(6, 0, 0)}, []time.Time{dt(11, 0, 0)})
	assert.False(t, cfg.IsWorkday(dt(6, 10, 0)), "设置为休息日的周一")
	assert.True(t, cfg.IsWorkday(dt(11, 10, 0)), "设置为加班日的周六")
	assert.True(t, cfg.IsWorkday(dt(7, 10, 0)))
}

func TestIsWorkday_WorkdayOverrideWinsOverHoliday(t *testing.T) {
	cfg := NewConfig([]time.Time{dt(11, 0, 0)}, []time.Time{dt(11, 0, 0)})
	assert.True(t, cfg.IsWorkday(dt(11, 15, 0)))
}

func TestFromDays(t *testing.T) {
	cfg := FromDays([]types.CalendarDay{
		{Date: dt(8, 0, 0), IsHoliday: true, Note: "设备检修"},
		{Date: dt(11, 0, 0), IsHoliday: false, Note: "加班"},
	})
	assert.False(t, cfg.IsWorkday(dt(8, 9, 0)))
	assert.True(t, cfg.IsWorkday(dt(11, 9, 0)))
}

func TestMerge(t *testing.T) {
	a := NewConfig([]time.Time{dt(8, 0, 0)}, nil)
	b := NewConfig(nil, []time.Time{dt(12, 0, 0)})
	merged := a.Merge(b)
	assert.False(t, merged.IsWorkday(dt(8, 9, 0)))
	assert.True(t, merged.IsWorkday(dt(12, 9, 0)))
	assert.False(t, a.IsWorkday(dt(12, 9, 0)), "合并不应修改原配置")
}

func TestNextWorkStart(t *testing.T) {
	var cfg Config
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"工作日早上", dt(6, 7, 30), dt(6, 9, 0)},
		{"工作日上班中", dt(6, 10, 0), dt(7, 9, 0)},
		{"工作日下班后", dt(6, 18, 0), dt(7, 9, 0)},
		{"周五下班后", dt(10, 17, 0), dt(13, 9, 0)},
		{"周六", dt(11, 8, 0), dt(13, 9, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.NextWorkStart(tt.in))
		})
	}
}

func TestNextWorkStart_SkipsHolidays(t *testing.T) {
	// 周一 2025-01-13 设为休息日
	cfg := NewConfig([]time.Time{dt(13, 0, 0)}, nil)
	assert.Equal(t, dt(14, 9, 0), cfg.NextWorkStart(dt(10, 18, 0)))
	assert.Equal(t, dt(14, 9, 0), cfg.NextWorkStart(dt(11, 10, 0)))
}

func TestAdjustForBreak(t *testing.T) {
	assert.Equal(t, dt(6, 13, 0), AdjustForBreak(dt(6, 12, 0)))
	assert.Equal(t, dt(6, 13, 0), AdjustForBreak(dt(6, 12, 59)))
	assert.Equal(t, dt(6, 13, 0), AdjustForBreak(dt(6, 13, 0)))
	assert.Equal(t, dt(6, 11, 59), AdjustForBreak(dt(6, 11, 59)))
}

func TestNextAvailableStart(t *testing.T) {
	var cfg Config
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"上班前", dt(6, 8, 0), dt(6, 9, 0)},
		{"上班中", dt(6, 10, 15), dt(6, 10, 15)},
		{"午休中", dt(6, 12, 30), dt(6, 13, 0)},
		{"下班时刻", dt(6, 17, 0), dt(7, 9, 0)},
		{"周末", dt(12, 11, 0), dt(13, 9, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.NextAvailableStart(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, cfg.NextAvailableStart(got), "应为幂等")
		})
	}
}

func TestNextAvailableStart_Idempotent(t *testing.T) {
	cfg := NewConfig([]time.Time{dt(7, 0, 0)}, []time.Time{dt(11, 0, 0)})
	for minute := 0; minute < 9*24*60; minute += 7 {
		in := dt(5, 0, 0).Add(time.Duration(minute) * time.Minute)
		once := cfg.NextAvailableStart(in)
		require.Equal(t, once, cfg.NextAvailableStart(once), "输入 %s", in)
		require.False(t, once.Before(in))
	}
}

func TestRemaining(t *testing.T) {
	var cfg Config
	got, err := cfg.Remaining(dt(6, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, 7*time.Hour, got)

	got, err = cfg.Remaining(dt(6, 13, 0))
	require.NoError(t, err)
	assert.Equal(t, 4*time.Hour, got)

	_, err = cfg.Remaining(dt(6, 8, 0))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = cfg.Remaining(dt(6, 17, 0))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = cfg.Remaining(dt(11, 10, 0))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEndTime(t *testing.T) {
	var cfg Config
	end, err := cfg.EndTime(dt(6, 9, 0), 60*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, dt(6, 10, 0), end)

	// 恰好到 12:00 不算跨越午休
	end, err = cfg.EndTime(dt(6, 11, 0), 60*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, dt(6, 12, 0), end)

	end, err = cfg.EndTime(dt(6, 11, 0), 90*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, dt(6, 13, 30), end)

	end, err = cfg.EndTime(dt(6, 9, 0), 420*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, dt(6, 17, 0), end)

	_, err = cfg.EndTime(dt(6, 9, 0), 421*time.Minute)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = cfg.EndTime(dt(6, 12, 30), 10*time.Minute)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = cfg.EndTime(dt(6, 9, 0), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSplitAcrossDays_FullDay(t *testing.T) {
	var cfg Config
	intervals, err := cfg.SplitAcrossDays(dt(6, 9, 0), 420*time.Minute)
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.Equal(t, Interval{Start: dt(6, 9, 0), End: dt(6, 17, 0)}, intervals[0])
}

func TestSplitAcrossDays_MultiDay(t *testing.T) {
	var cfg Config
	intervals, err := cfg.SplitAcrossDays(dt(6, 9, 0), 500*time.Minute)
	require.NoError(t, err)
	require.Len(t, intervals, 2)
	assert.Equal(t, Interval{Start: dt(6, 9, 0), End: dt(6, 17, 0)}, intervals[0])
	assert.Equal(t, Interval{Start: dt(7, 9, 0), End: dt(7, 10, 20)}, intervals[1])
	assert.False(t, intervals[1].Start.Before(intervals[0].End))
}

func TestSplitAcrossDays_OverWeekendAndHoliday(t *testing.T) {
	// 周一 2025-01-13 休息
	cfg := NewConfig([]time.Time{dt(13, 0, 0)}, nil)
	intervals, err := cfg.SplitAcrossDays(dt(10, 15, 0), 3*time.Hour)
	require.NoError(t, err)
	require.Len(t, intervals, 2)
	assert.Equal(t, Interval{Start: dt(10, 15, 0), End: dt(10, 17, 0)}, intervals[0])
	assert.Equal(t, Interval{Start: dt(14, 9, 0), End: dt(14, 10, 0)}, intervals[1])
}

func TestSplitAcrossDays_MatchesEndTimeWhenFits(t *testing.T) {
	var cfg Config
	starts := []time.Time{dt(6, 9, 0), dt(6, 10, 45), dt(6, 11, 59), dt(6, 13, 0), dt(6, 16, 30)}
	for _, start := range starts {
		remaining, err := cfg.Remaining(start)
		require.NoError(t, err)
		for d := time.Minute; d <= remaining; d += 13 * time.Minute {
			end, err := cfg.EndTime(start, d)
			require.NoError(t, err)
			intervals, err := cfg.SplitAcrossDays(start, d)
			require.NoError(t, err)
			require.Len(t, intervals, 1)
			require.Equal(t, end, intervals[0].End, "start=%s d=%s", start, d)
		}
	}
}

func TestSplitAcrossDays_CoversExactDuration(t *testing.T) {
	cfg := NewConfig([]time.Time{dt(8, 0, 0)}, []time.Time{dt(18, 0, 0)})
	starts := []time.Time{dt(6, 9, 0), dt(6, 11, 30), dt(6, 13, 0), dt(6, 16, 59), dt(10, 14, 0)}
	durations := []time.Duration{time.Minute, 95 * time.Minute, 7 * time.Hour, 7*time.Hour + time.Second, 33 * time.Hour, 200 * time.Hour}
	for _, start := range starts {
		for _, d := range durations {
			intervals, err := cfg.SplitAcrossDays(start, d)
			require.NoError(t, err)
			require.NotEmpty(t, intervals)
			require.Equal(t, start, intervals[0].Start)

			var total time.Duration
			for i, iv := range intervals {
				require.True(t, cfg.IsWorkday(iv.Start), "区间 %d 不在工作日", i)
				require.Equal(t, DateOf(iv.Start), DateOf(iv.End), "区间 %d 跨天", i)
				require.False(t, iv.End.After(at(iv.Start, WorkEndHour)), "区间 %d 超过 17:00", i)
				require.False(t, iv.Start.Before(at(iv.Start, WorkStartHour)), "区间 %d 早于 09:00", i)
				if i > 0 {
					require.True(t, iv.Start.After(intervals[i-1].End), "区间应按时间顺序排列")
					require.Equal(t, cfg.NextWorkStart(intervals[i-1].End), iv.Start, "中间不应有空闲工作时间")
					require.Equal(t, at(intervals[i-1].Start, WorkEndHour), intervals[i-1].End)
				}
				total += WorkingTime(iv)
			}
			require.Equal(t, d, total, "start=%s d=%s", start, d)
		}
	}
}

func TestSplitAcrossDays_RejectsInvalidInput(t *testing.T) {
	var cfg Config
	_, err := cfg.SplitAcrossDays(dt(6, 9, 0), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = cfg.SplitAcrossDays(dt(6, 9, 0), -time.Minute)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = cfg.SplitAcrossDays(dt(6, 12, 15), time.Hour)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = cfg.SplitAcrossDays(dt(11, 10, 0), time.Hour)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = cfg.SplitAcrossDays(dt(6, 7, 0), time.Hour)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
