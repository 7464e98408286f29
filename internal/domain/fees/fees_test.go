package fees

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/pkg/errs"
)

type MockScheduleSource struct {
	mock.Mock
}

func (m *MockScheduleSource) Current(ctx context.Context) (Schedule, error) {
	args := m.Called(ctx)
	return args.Get(0).(Schedule), args.Error(1)
}

func percentSchedule(bps int64) Schedule {
	return Schedule{
		Currency:    "THB",
		PlatformFee: Rule{Kind: KindPercent, BasisPoints: bps},
		DeliveryFee: money.Units(150, "THB"),
	}
}

func TestEstimateFees(t *testing.T) {
	subtotal := money.Units(1000, "THB")

	t.Run("self pickup never pays delivery", func(t *testing.T) {
		schedules := []Schedule{
			percentSchedule(500),
			{Currency: "THB", PlatformFee: Rule{Kind: KindFlat, Flat: money.Units(40, "THB")}, DeliveryFee: money.Units(9999, "THB")},
			{Currency: "THB", PlatformFee: Rule{Kind: KindPercent}},
		}
		for _, s := range schedules {
			est, err := EstimateFees(subtotal, PickupSelf, s)
			require.NoError(t, err)
			assert.True(t, est.DeliveryFee.IsZero())
			assert.Equal(t, est.PlatformFeeRenter, est.TotalEstimatedFees)
		}
	})

	t.Run("delivery adds the scheduled delivery fee", func(t *testing.T) {
		est, err := EstimateFees(subtotal, PickupDelivery, percentSchedule(500))
		require.NoError(t, err)

		assert.True(t, est.Known)
		assert.Equal(t, money.Units(50, "THB"), est.PlatformFeeRenter)
		assert.Equal(t, money.Units(150, "THB"), est.DeliveryFee)
		assert.Equal(t, money.Units(200, "THB"), est.TotalEstimatedFees)
	})

	t.Run("percent rounds half up in minor units", func(t *testing.T) {
		est, err := EstimateFees(money.Must(1050, "THB"), PickupSelf, percentSchedule(500))
		require.NoError(t, err)
		assert.Equal(t, int64(53), est.PlatformFeeRenter.Amount)
	})

	t.Run("flat platform fee", func(t *testing.T) {
		s := Schedule{Currency: "THB", PlatformFee: Rule{Kind: KindFlat, Flat: money.Units(25, "THB")}}
		est, err := EstimateFees(subtotal, PickupSelf, s)
		require.NoError(t, err)
		assert.Equal(t, money.Units(25, "THB"), est.PlatformFeeRenter)
	})

	t.Run("currency mismatch is rejected", func(t *testing.T) {
		_, err := EstimateFees(money.Units(10, "USD"), PickupSelf, percentSchedule(500))
		assert.ErrorIs(t, err, ErrInvalidSchedule)
	})

	t.Run("unknown pickup method", func(t *testing.T) {
		_, err := EstimateFees(subtotal, PickupMethod("drone"), percentSchedule(500))
		assert.ErrorIs(t, err, ErrInvalidPickup)
	})

	t.Run("identical inputs give identical outputs", func(t *testing.T) {
		a, err := EstimateFees(subtotal, PickupDelivery, percentSchedule(725))
		require.NoError(t, err)
		b, err := EstimateFees(subtotal, PickupDelivery, percentSchedule(725))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestEstimateFrom(t *testing.T) {
	ctx := context.Background()
	subtotal := money.Units(1000, "THB")

	t.Run("source down yields the unknown marker", func(t *testing.T) {
		src := new(MockScheduleSource)
		src.On("Current", ctx).Return(Schedule{}, errors.New("connection refused")).Once()

		est, err := EstimateFrom(ctx, src, subtotal, PickupDelivery)

		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.ErrUpstreamUnavailable))
		assert.False(t, est.Known)
		assert.Equal(t, Unknown(), est)
		src.AssertExpectations(t)
	})

	t.Run("source up", func(t *testing.T) {
		src := new(MockScheduleSource)
		src.On("Current", ctx).Return(percentSchedule(300), nil).Once()

		est, err := EstimateFrom(ctx, src, subtotal, PickupSelf)

		require.NoError(t, err)
		assert.True(t, est.Known)
		assert.Equal(t, money.Units(30, "THB"), est.TotalEstimatedFees)
		src.AssertExpectations(t)
	})

	t.Run("missing source", func(t *testing.T) {
		est, err := EstimateFrom(ctx, nil, subtotal, PickupSelf)
		assert.ErrorIs(t, err, ErrScheduleUnavailable)
		assert.False(t, est.Known)
	})
}
