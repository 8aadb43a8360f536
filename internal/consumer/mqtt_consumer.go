package consumer

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"smartchair/internal/config"
	"smartchair/internal/models"
	"smartchair/internal/validator"

	"go.uber.org/zap"
	mqttcommon "smartchair/internal/mqtt"
)

// Subscriber MQTT 订阅能力（*mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Ingestor 接入管道（*service.IngestService 实现）
type Ingestor interface {
	Ingest(ctx context.Context, raw map[string]any) (models.TelemetryEntry, error)
	RaiseAlert(ctx context.Context) error
}

// MQTTConsumer 设备经 MQTT 上报的读数与告警，与 HTTP 走同一条接入管道
type MQTTConsumer struct {
	config       *config.MQTTConfig
	subscriber   Subscriber
	ingestor     Ingestor
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.MQTTConfig,
	subscriber Subscriber,
	ingestor Ingestor,
	maxBodyBytes int64,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:       cfg,
		subscriber:   subscriber,
		ingestor:     ingestor,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// Start 订阅主题并阻塞到 ctx 取消
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.subscriber.Subscribe(c.config.DataTopic, c.config.QoS, c.handleData); err != nil {
		return fmt.Errorf("failed to subscribe to data topic: %w", err)
	}
	if err := c.subscriber.Subscribe(c.config.AlertTopic, c.config.QoS, c.handleAlert); err != nil {
		return fmt.Errorf("failed to subscribe to alert topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("data_topic", c.config.DataTopic),
		zap.String("alert_topic", c.config.AlertTopic),
	)

	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.subscriber.Unsubscribe(c.config.DataTopic, c.config.AlertTopic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleData 处理读数消息，主题格式: smartchair/{device}/data
func (c *MQTTConsumer) handleData(topic string, payload []byte) error {
	device, err := deviceFromTopic(topic)
	if err != nil {
		return err
	}

	raw, err := validator.DecodeBody(bytes.NewReader(payload), c.maxBodyBytes)
	if err != nil {
		c.logger.Warn("Dropped unreadable MQTT reading",
			zap.String("topic", topic),
			zap.Int("payload_size", len(payload)),
			zap.Error(err),
		)
		return nil
	}

	entry, err := c.ingestor.Ingest(context.Background(), raw)
	if err != nil {
		return fmt.Errorf("failed to ingest reading from %s: %w", device, err)
	}

	c.logger.Debug("Ingested MQTT reading",
		zap.String("device", device),
		zap.String("posture", entry.Posture),
	)
	return nil
}

// handleAlert 处理告警消息，负载被忽略
func (c *MQTTConsumer) handleAlert(topic string, payload []byte) error {
	device, err := deviceFromTopic(topic)
	if err != nil {
		return err
	}
	if err := c.ingestor.RaiseAlert(context.Background()); err != nil {
		return fmt.Errorf("failed to raise alert from %s: %w", device, err)
	}
	c.logger.Info("Alert raised via MQTT", zap.String("device", device))
	return nil
}

func deviceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[1] == "" {
		return "", fmt.Errorf("invalid topic format: %s", topic)
	}
	return parts[1], nil
}
