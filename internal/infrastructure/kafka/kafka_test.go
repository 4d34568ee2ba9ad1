package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/feedcanon/backend/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader serves queued messages and then blocks until cancelled
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type fakeWriter struct {
	mu    sync.Mutex
	msgs  []kafka.Message
	err   error
	calls int
	// failures makes the first writes fail
	failures int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	if w.calls <= w.failures {
		return errors.New("leader not available")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

func (w *fakeWriter) Close() error { return nil }

type fakeNormalizer struct{}

func (fakeNormalizer) NormalizeRow(_ context.Context, merchant string, row domain.Row) (*domain.NormalizedOffer, error) {
	sku, ok := row.Value("SKU")
	if !ok {
		return nil, fmt.Errorf("%w: column SKU", domain.ErrMalformedInput)
	}
	return &domain.NormalizedOffer{Merchant: merchant, OfferID: merchant + "." + sku, Fingerprint: "fp"}, nil
}

func TestParseRowMessage(t *testing.T) {
	msg, err := ParseRowMessage([]byte(`{"merchant":"reebok","row":{"Product ID":"GY1234-001","qty":12}}`))
	require.NoError(t, err)
	assert.Equal(t, "reebok", msg.Merchant)

	qty, ok := msg.Row.Value("qty")
	assert.True(t, ok)
	assert.Equal(t, "12", qty)

	_, err = ParseRowMessage([]byte(`{"row":{}}`))
	assert.Error(t, err)

	_, err = ParseRowMessage([]byte(`{"merchant":"reebok"}`))
	assert.Error(t, err)

	_, err = ParseRowMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestResultMessage(t *testing.T) {
	offer := &domain.NormalizedOffer{Merchant: "size", OfferID: "size.abc", Materials: map[string]string{"upper": "leather"}}

	ok := NewResultMessage("size", offer, nil)
	assert.Equal(t, "size.abc", ok.Key())
	assert.Equal(t, "leather", ok.Materials["upper"])
	assert.Empty(t, ok.Error)

	failed := NewResultMessage("size", nil, errors.New("boom"))
	assert.Equal(t, "size", failed.Key())
	assert.Equal(t, "boom", failed.Error)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConsumerConfig().Validate())
	assert.NoError(t, DefaultProducerConfig().Validate())

	c := DefaultConsumerConfig()
	c.GroupID = ""
	assert.Error(t, c.Validate())

	p := DefaultProducerConfig()
	p.Brokers = nil
	assert.Error(t, p.Validate())

	_, err := NewConsumer(ConsumerConfig{}, nil)
	assert.Error(t, err)
	_, err = NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.Error(t, err)
}

func TestProducer_Publish(t *testing.T) {
	writer := &fakeWriter{}
	p := newProducer(writer, DefaultProducerConfig(), nil)

	err := p.Publish(context.Background(), NewResultMessage("nike", &domain.NormalizedOffer{OfferID: "nike.x"}, nil))
	require.NoError(t, err)
	require.Len(t, writer.msgs, 1)
	assert.Equal(t, "nike.x", string(writer.msgs[0].Key))

	var decoded ResultMessage
	require.NoError(t, json.Unmarshal(writer.msgs[0].Value, &decoded))
	assert.Equal(t, "nike", decoded.Merchant)

	writer.err = errors.New("broker down")
	assert.Error(t, p.Publish(context.Background(), NewResultMessage("nike", nil, nil)))
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: []byte(`{"merchant":"reebok","row":{"SKU":"A1"}}`)},
		{Offset: 2, Value: []byte(`garbage`)},
		{Offset: 3, Value: []byte(`{"merchant":"reebok","row":{"other":"x"}}`)},
	}}
	writer := &fakeWriter{}
	producer := newProducer(writer, DefaultProducerConfig(), nil)
	consumer := newConsumer(reader, DefaultConsumerConfig(), nil)

	handler := NewRowHandler(fakeNormalizer{}, producer, nil)
	require.NoError(t, consumer.Start(context.Background(), handler))
	assert.Error(t, consumer.Start(context.Background(), handler))

	assert.Eventually(t, func() bool { return reader.commitCount() == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, consumer.Stop())
	require.NoError(t, consumer.Stop())
	assert.True(t, reader.closed)

	writer.mu.Lock()
	defer writer.mu.Unlock()
	require.Len(t, writer.msgs, 2)

	var first, second ResultMessage
	require.NoError(t, json.Unmarshal(writer.msgs[0].Value, &first))
	require.NoError(t, json.Unmarshal(writer.msgs[1].Value, &second))
	assert.Equal(t, "reebok.A1", first.OfferID)
	assert.Empty(t, first.Error)
	assert.Empty(t, second.OfferID)
	assert.Contains(t, second.Error, "malformed input")
}

func TestConsumer_RetriesFailedPublish(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 7, Value: []byte(`{"merchant":"reebok","row":{"SKU":"A1"}}`)},
	}}
	writer := &fakeWriter{failures: 2}
	config := DefaultConsumerConfig()
	config.HandlerAttempts = 3
	config.RetryBackoff = time.Millisecond
	consumer := newConsumer(reader, config, nil)

	require.NoError(t, consumer.Start(context.Background(), NewRowHandler(fakeNormalizer{}, newProducer(writer, DefaultProducerConfig(), nil), nil)))
	assert.Eventually(t, func() bool { return reader.commitCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, consumer.Stop())

	assert.Equal(t, 3, writer.callCount())
	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.Len(t, writer.msgs, 1)
}

func TestConsumer_DropsAfterLastAttempt(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: []byte(`{"merchant":"reebok","row":{"SKU":"A1"}}`)},
		{Offset: 2, Value: []byte(`{"merchant":"reebok","row":{"SKU":"A2"}}`)},
	}}
	writer := &fakeWriter{err: errors.New("message too large")}
	config := DefaultConsumerConfig()
	config.HandlerAttempts = 2
	config.RetryBackoff = time.Millisecond
	consumer := newConsumer(reader, config, nil)

	require.NoError(t, consumer.Start(context.Background(), NewRowHandler(fakeNormalizer{}, newProducer(writer, DefaultProducerConfig(), nil), nil)))
	assert.Eventually(t, func() bool { return reader.commitCount() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, consumer.Stop())

	assert.Equal(t, 4, writer.callCount())
}

func TestConsumer_StopDuringRetryLeavesMessageUncommitted(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: []byte(`{"merchant":"reebok","row":{"SKU":"A1"}}`)},
	}}
	writer := &fakeWriter{err: errors.New("leader not available")}
	config := DefaultConsumerConfig()
	config.RetryBackoff = time.Hour
	consumer := newConsumer(reader, config, nil)

	require.NoError(t, consumer.Start(context.Background(), NewRowHandler(fakeNormalizer{}, newProducer(writer, DefaultProducerConfig(), nil), nil)))
	assert.Eventually(t, func() bool { return writer.callCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, consumer.Stop())

	assert.Equal(t, 0, reader.commitCount())
}
