package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/pkg/errs"
)

func TestPublishSendsKeyAndHeaders(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "rental.events.v1", msg.Topic)
		key, _ := msg.Key.Encode()
		assert.Equal(t, "rental-1", string(key))
		value, _ := msg.Value.Encode()
		assert.JSONEq(t, `{"id":"e1"}`, string(value))
		require.Len(t, msg.Headers, 1)
		assert.Equal(t, "ce_id", string(msg.Headers[0].Key))
		return nil
	})
	p := NewProducerFrom(sp)
	defer p.Close()

	err := p.Publish(context.Background(), "rental.events.v1", "rental-1", []byte(`{"id":"e1"}`), map[string]string{"ce_id": "e1"})
	require.NoError(t, err)
}

func TestPublishFailureIsUpstream(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	p := NewProducerFrom(sp)
	defer p.Close()

	err := p.Publish(context.Background(), "rental.events.v1", "k", []byte(`{}`), nil)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.True(t, errs.Is(err, errs.ErrUpstreamUnavailable))
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	p := NewProducerFrom(sp)
	defer p.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Publish(ctx, "t", "k", nil, nil), context.Canceled)
}

type stubHandler struct {
	err   error
	calls int
}

func (s *stubHandler) Consume(context.Context, string, string, []byte) error {
	s.calls++
	return s.err
}

func TestCloudEventHandler(t *testing.T) {
	ctx := context.Background()
	valid := &sarama.ConsumerMessage{Topic: "payment.events.v1", Value: []byte(`{"specversion":"1.0","id":"e1","type":"payment.proof_submitted.v1","data":{}}`)}

	ok := &stubHandler{}
	require.NoError(t, CloudEventHandler{Handler: ok}.Handle(ctx, valid))
	assert.Equal(t, 1, ok.calls)

	failing := &stubHandler{err: errors.New("retry me")}
	assert.Error(t, CloudEventHandler{Handler: failing}.Handle(ctx, valid))

	dropped := &stubHandler{}
	assert.NoError(t, CloudEventHandler{Handler: dropped}.Handle(ctx, &sarama.ConsumerMessage{Value: []byte("{")}))
	assert.Zero(t, dropped.calls)
}
