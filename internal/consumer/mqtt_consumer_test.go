package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smartchair/internal/config"
	"smartchair/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	mqttcommon "smartchair/internal/mqtt"
)

type fakeSubscriber struct {
	mu           sync.Mutex
	handlers     map[string]mqttcommon.MessageHandler
	unsubscribed []string
	err          error
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.handlers == nil {
		f.handlers = make(map[string]mqttcommon.MessageHandler)
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topics...)
	return nil
}

func (f *fakeSubscriber) handler(topic string) mqttcommon.MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[topic]
}

type fakeIngestor struct {
	mu      sync.Mutex
	raws    []map[string]any
	alerts  int
	ingErr  error
	alertEr error
}

func (f *fakeIngestor) Ingest(ctx context.Context, raw map[string]any) (models.TelemetryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raws = append(f.raws, raw)
	return models.TelemetryEntry{Posture: "Good", Timestamp: models.NewTimestamp(time.Now())}, f.ingErr
}

func (f *fakeIngestor) RaiseAlert(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts++
	return f.alertEr
}

func testConfig() *config.MQTTConfig {
	return &config.MQTTConfig{
		QoS:        1,
		DataTopic:  "smartchair/+/data",
		AlertTopic: "smartchair/+/alert",
	}
}

func TestHandleData_IngestsReading(t *testing.T) {
	ing := &fakeIngestor{}
	c := NewMQTTConsumer(testConfig(), &fakeSubscriber{}, ing, 1024, zap.NewNop())

	require.NoError(t, c.handleData("smartchair/chair-1/data", []byte(`{"posture":"Bad","distance":42}`)))
	require.Len(t, ing.raws, 1)
	assert.Equal(t, "Bad", ing.raws[0]["posture"])
}

func TestHandleData_DropsUnreadablePayload(t *testing.T) {
	ing := &fakeIngestor{}
	c := NewMQTTConsumer(testConfig(), &fakeSubscriber{}, ing, 1024, zap.NewNop())

	require.NoError(t, c.handleData("smartchair/chair-1/data", []byte(`{broken`)))
	require.NoError(t, c.handleData("smartchair/chair-1/data", []byte(`[1]`)))
	assert.Empty(t, ing.raws)
}

func TestHandleData_InvalidTopic(t *testing.T) {
	c := NewMQTTConsumer(testConfig(), &fakeSubscriber{}, &fakeIngestor{}, 1024, zap.NewNop())

	assert.Error(t, c.handleData("smartchair", []byte(`{}`)))
	assert.Error(t, c.handleData("smartchair//data", []byte(`{}`)))
}

func TestHandleData_IngestErrorPropagates(t *testing.T) {
	ing := &fakeIngestor{ingErr: errors.New("persist timed out")}
	c := NewMQTTConsumer(testConfig(), &fakeSubscriber{}, ing, 1024, zap.NewNop())

	err := c.handleData("smartchair/chair-1/data", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chair-1")
}

func TestHandleAlert_RaisesSignal(t *testing.T) {
	ing := &fakeIngestor{}
	c := NewMQTTConsumer(testConfig(), &fakeSubscriber{}, ing, 1024, zap.NewNop())

	require.NoError(t, c.handleAlert("smartchair/chair-1/alert", []byte("anything")))
	require.NoError(t, c.handleAlert("smartchair/chair-1/alert", nil))
	assert.Equal(t, 2, ing.alerts)
}

func TestStartStop(t *testing.T) {
	sub := &fakeSubscriber{}
	ing := &fakeIngestor{}
	c := NewMQTTConsumer(testConfig(), sub, ing, 1024, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		return sub.handler("smartchair/+/alert") != nil
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, sub.handler("smartchair/+/data")("smartchair/c/data", []byte(`{"sitting_time":3}`)))
	require.NoError(t, sub.handler("smartchair/+/alert")("smartchair/c/alert", nil))
	assert.Len(t, ing.raws, 1)
	assert.Equal(t, 1, ing.alerts)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, c.Stop(context.Background()))
	assert.ElementsMatch(t, []string{"smartchair/+/data", "smartchair/+/alert"}, sub.unsubscribed)
}

func TestStart_SubscribeError(t *testing.T) {
	c := NewMQTTConsumer(testConfig(), &fakeSubscriber{err: errors.New("not authorized")}, &fakeIngestor{}, 1024, zap.NewNop())

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized")
}
