package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Pasture/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type countingHandler struct {
	topic string
	calls int
	fail  int
	seen  []string
}

func (h *countingHandler) Topic() string { return h.topic }

func (h *countingHandler) Handle(ctx context.Context, data []byte) error {
	h.calls++
	h.seen = append(h.seen, TraceID(ctx))
	if h.calls <= h.fail {
		return errors.New("boom")
	}
	return nil
}

func newTestConsumer(t *testing.T) *Consumer {
	t.Helper()
	c, err := NewConsumer(logger.Nop(),
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestProducerPublishBatch(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w)
	err := p.PublishBatch(context.Background(), "records", []Message{
		{Key: []byte("acc-1"), Value: map[string]int{"n": 1}},
		{Key: []byte("acc-2"), Value: "raw"},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "records", w.msgs[0].Topic)
	assert.JSONEq(t, `{"n":1}`, string(w.msgs[0].Value))
	assert.Equal(t, "raw", string(w.msgs[1].Value))

	w.err = errors.New("down")
	assert.Error(t, p.Publish(context.Background(), "records", nil, 1))
	assert.NoError(t, p.PublishBatch(context.Background(), "records", nil))
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func TestConsumerProcessRetries(t *testing.T) {
	c := newTestConsumer(t)
	h := &countingHandler{topic: "ingest", fail: 2}
	msg := kafka.Message{Topic: "ingest", Value: []byte("{}"), Headers: []kafka.Header{{Key: "trace_id", Value: []byte("t-1")}}}

	require.NoError(t, c.process(h, msg))
	assert.Equal(t, 3, h.calls)
	assert.Equal(t, []string{"t-1", "t-1", "t-1"}, h.seen)
}

func TestConsumerProcessSendsToDLQ(t *testing.T) {
	c := newTestConsumer(t)
	dlq := &fakeWriter{}
	c.dlq = dlq
	c.cfg.DLQTopic = "ingest.dlq"

	var errs int
	c.WithHook(HookFuncs{Err: func(context.Context, string, kafka.Message, []byte, error) { errs++ }})

	h := &countingHandler{topic: "ingest", fail: 10}
	err := c.process(h, kafka.Message{Topic: "ingest", Key: []byte("k"), Value: []byte("payload")})
	require.Error(t, err)
	assert.Equal(t, 3, h.calls)
	// once per retried attempt plus the final failure
	assert.Equal(t, 3, errs)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "ingest.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, "payload", string(dlq.msgs[0].Value))
	assert.Equal(t, "ingest", string(dlq.msgs[0].Headers[0].Value))
}

func TestConsumerProcessRecoversPanic(t *testing.T) {
	c := newTestConsumer(t)
	err := c.process(panicHandler{}, kafka.Message{Topic: "ingest"})
	assert.Error(t, err)
}

type panicHandler struct{}

func (panicHandler) Topic() string                        { return "ingest" }
func (panicHandler) Handle(context.Context, []byte) error { panic("bad") }

func TestHookChain(t *testing.T) {
	var order []string
	mk := func(name string) ConsumerHook {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "before:"+name)
				return ctx, km, append(data, name...), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, "after:"+name)
			},
		}
	}
	chain := NewHookChain(mk("a"), nil, mk("b"))
	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(">"))
	require.NoError(t, err)
	assert.Equal(t, ">ab", string(data))
	chain.AfterHandle(context.Background(), "t", kafka.Message{}, data, nil)
	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, order)
}

func TestHookChainPanic(t *testing.T) {
	chain := NewHookChain(HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("hook")
		},
	})
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "ERR_PANIC", he.Code)
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
	d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, 1)
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	assert.LessOrEqual(t, d, 10*time.Millisecond)
}
