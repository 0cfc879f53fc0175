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

func TestAvailabilityResolver_SortsAndDeduplicates(t *testing.T) {
	steps := &fakeSteps{groups: map[int64][]int64{1: {5, 2, 5, 9}}}
	schedules := newFakeSchedules()
	schedules.lastEnd[9] = monday(15, 0)

	candidates, err := NewAvailabilityResolver(steps, schedules).Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, int64(2), candidates[0].EquipmentID)
	assert.Nil(t, candidates[0].LastEnd)
	assert.Equal(t, int64(9), candidates[2].EquipmentID)
	require.NotNil(t, candidates[2].LastEnd)
	assert.Equal(t, monday(15, 0), *candidates[2].LastEnd)
}

func TestAvailabilityResolver_Errors(t *testing.T) {
	_, err := NewAvailabilityResolver(&fakeSteps{}, newFakeSchedules()).Resolve(context.Background(), 1)
	require.ErrorIs(t, err, ErrNoEquipmentInGroup)

	boom := errors.New("boom")
	_, err = NewAvailabilityResolver(&fakeSteps{membersErr: boom}, newFakeSchedules()).Resolve(context.Background(), 1)
	require.ErrorIs(t, err, boom)
}

func TestTotalDuration(t *testing.T) {
	step := types.Step{Setup: minutes(30), PerUnit: 90 * time.Second}
	assert.Equal(t, minutes(30)+minutes(15), TotalDuration(step, 10))
}
