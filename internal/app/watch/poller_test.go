package watch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStopsWhenSettled(t *testing.T) {
	n := 0
	var seen []int
	var failures int
	p := Poller[int]{
		Interval: time.Millisecond,
		Fetch: func(context.Context) (int, error) {
			n++
			if n == 2 {
				return 0, errors.New("flaky")
			}
			return n, nil
		},
		Settled:  func(v int) bool { return v >= 4 },
		OnUpdate: func(v int) { seen = append(seen, v) },
		OnError:  func(error) { failures++ },
	}

	got, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, got)
	assert.Equal(t, []int{1, 3, 4}, seen)
	assert.Equal(t, 1, failures)
}

func TestRunReturnsLastValueOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p := Poller[string]{
		Interval: time.Millisecond,
		Fetch:    func(context.Context) (string, error) { return "pending", nil },
		Settled:  func(string) bool { return false },
	}

	got, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "pending", got)
}

func TestRunNeedsFetch(t *testing.T) {
	_, err := (&Poller[int]{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrFetchRequired)
}
