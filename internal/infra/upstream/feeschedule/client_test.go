package feeschedule

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/domain/fees"
	"rentalcore/internal/infra/upstream"
	"rentalcore/internal/pkg/errs"
)

func serve(t *testing.T, status int, body string) *Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fee-schedule", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return NewClient(upstream.NewRequester("fees", ts.URL, time.Second, nil, nil))
}

func TestCurrent(t *testing.T) {
	c := serve(t, http.StatusOK, `{"currency":"THB","platform_fee":{"kind":"percent","basis_points":500},"delivery_fee":{"amount":5000,"currency":"THB"}}`)

	s, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fees.KindPercent, s.PlatformFee.Kind)
	assert.Equal(t, int64(500), s.PlatformFee.BasisPoints)
	assert.Equal(t, int64(5000), s.DeliveryFee.Amount)
}

func TestCurrentFailures(t *testing.T) {
	cases := map[string]*Client{
		"server error":     serve(t, http.StatusInternalServerError, "boom"),
		"invalid schedule": serve(t, http.StatusOK, `{"currency":"THB","platform_fee":{"kind":"mystery"}}`),
		"not json":         serve(t, http.StatusOK, `<html>`),
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Current(context.Background())
			assert.ErrorIs(t, err, fees.ErrScheduleUnavailable)
			assert.True(t, errs.Is(err, errs.ErrUpstreamUnavailable))
		})
	}
}

func TestStatic(t *testing.T) {
	want := fees.Schedule{Currency: "THB", PlatformFee: fees.Rule{Kind: fees.KindPercent, BasisPoints: 300}}
	got, err := Static{Schedule: want}.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
