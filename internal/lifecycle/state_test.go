package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/luisjglz/evaluat/pkg/logger"
	"github.com/luisjglz/evaluat/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func marchPeriod() time.Time {
	return time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
}

func TestIsPeriodComplete(t *testing.T) {
	ctx := context.Background()
	period := marchPeriod()

	t.Run("unconfigured laboratory is never complete", func(t *testing.T) {
		store := &mockStore{}
		store.On("CountConfiguredTests", mock.Anything, "lab-1").Return(0, nil)

		complete, err := IsPeriodComplete(ctx, store, "lab-1", period)
		require.NoError(t, err)
		assert.False(t, complete)
		store.AssertNotCalled(t, "CountCapturedForPeriod", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("incomplete when captures are missing", func(t *testing.T) {
		store := &mockStore{}
		store.On("CountConfiguredTests", mock.Anything, "lab-1").Return(3, nil)
		store.On("CountCapturedForPeriod", mock.Anything, "lab-1", period).Return(2, nil)

		complete, err := IsPeriodComplete(ctx, store, "lab-1", period)
		require.NoError(t, err)
		assert.False(t, complete)
	})

	t.Run("complete when every configured test has a value", func(t *testing.T) {
		store := &mockStore{}
		store.On("CountConfiguredTests", mock.Anything, "lab-1").Return(3, nil)
		store.On("CountCapturedForPeriod", mock.Anything, "lab-1", period).Return(3, nil)

		complete, err := IsPeriodComplete(ctx, store, "lab-1", period)
		require.NoError(t, err)
		assert.True(t, complete)
	})
}

func TestAdvance(t *testing.T) {
	ctx := context.Background()
	log := logger.New("debug")
	period := marchPeriod()

	t.Run("configuring to capturing when edit window closes", func(t *testing.T) {
		store := &mockStore{}
		lab := &types.Laboratory{ID: "lab-1", State: types.StateConfiguring, EditDeadlineDay: 15, CaptureCutoffDay: 25}

		store.On("UpdateLaboratoryState", mock.Anything, "lab-1", types.StateCapturing).Return(nil)

		lab, err := Advance(ctx, store, log, lab, day(16), period)
		require.NoError(t, err)
		assert.Equal(t, types.StateCapturing, lab.State)
		store.AssertExpectations(t)
	})

	t.Run("edit override suppresses the first transition", func(t *testing.T) {
		store := &mockStore{}
		lab := &types.Laboratory{
			ID:                 "lab-1",
			State:              types.StateConfiguring,
			EditDeadlineDay:    15,
			CaptureCutoffDay:   25,
			EditOverrideActive: true,
		}

		lab, err := Advance(ctx, store, log, lab, day(28), period)
		require.NoError(t, err)
		assert.Equal(t, types.StateConfiguring, lab.State)
		store.AssertNotCalled(t, "UpdateLaboratoryState", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("capturing holds while period is incomplete", func(t *testing.T) {
		store := &mockStore{}
		lab := &types.Laboratory{ID: "lab-1", State: types.StateCapturing, EditDeadlineDay: 15, CaptureCutoffDay: 25}

		store.On("CountConfiguredTests", mock.Anything, "lab-1").Return(2, nil)
		store.On("CountCapturedForPeriod", mock.Anything, "lab-1", period).Return(1, nil)

		lab, err := Advance(ctx, store, log, lab, day(26), period)
		require.NoError(t, err)
		assert.Equal(t, types.StateCapturing, lab.State)
		store.AssertNotCalled(t, "UpdateLaboratoryState", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("complete period alone does not close an open window", func(t *testing.T) {
		store := &mockStore{}
		lab := &types.Laboratory{ID: "lab-1", State: types.StateCapturing, EditDeadlineDay: 15, CaptureCutoffDay: 25}

		lab, err := Advance(ctx, store, log, lab, day(20), period)
		require.NoError(t, err)
		assert.Equal(t, types.StateCapturing, lab.State)
		store.AssertNotCalled(t, "CountConfiguredTests", mock.Anything, mock.Anything)
	})

	t.Run("capture override holds a complete laboratory in capturing", func(t *testing.T) {
		store := &mockStore{}
		lab := &types.Laboratory{
			ID:                    "lab-1",
			State:                 types.StateCapturing,
			EditDeadlineDay:       15,
			CaptureCutoffDay:      25,
			CaptureOverrideActive: true,
		}

		lab, err := Advance(ctx, store, log, lab, day(28), period)
		require.NoError(t, err)
		assert.Equal(t, types.StateCapturing, lab.State)
		store.AssertNotCalled(t, "UpdateLaboratoryState", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("both transitions cascade in one call", func(t *testing.T) {
		store := &mockStore{}
		lab := &types.Laboratory{ID: "lab-1", State: types.StateConfiguring, EditDeadlineDay: 15, CaptureCutoffDay: 25}

		store.On("UpdateLaboratoryState", mock.Anything, "lab-1", types.StateCapturing).Return(nil)
		store.On("CountConfiguredTests", mock.Anything, "lab-1").Return(2, nil)
		store.On("CountCapturedForPeriod", mock.Anything, "lab-1", period).Return(2, nil)
		store.On("UpdateLaboratoryState", mock.Anything, "lab-1", types.StateReviewing).Return(nil)

		lab, err := Advance(ctx, store, log, lab, day(28), period)
		require.NoError(t, err)
		assert.Equal(t, types.StateReviewing, lab.State)
		store.AssertExpectations(t)
	})

	t.Run("reviewing is terminal for automation", func(t *testing.T) {
		store := &mockStore{}
		lab := &types.Laboratory{ID: "lab-1", State: types.StateReviewing, EditDeadlineDay: 15, CaptureCutoffDay: 25}

		lab, err := Advance(ctx, store, log, lab, day(28), period)
		require.NoError(t, err)
		assert.Equal(t, types.StateReviewing, lab.State)
		store.AssertNotCalled(t, "UpdateLaboratoryState", mock.Anything, mock.Anything, mock.Anything)
	})
}
