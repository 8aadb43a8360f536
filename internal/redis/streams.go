package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"smartchair/internal/models"

	"github.com/go-redis/redis/v8"
)

// StreamAdder XADD 能力（*redis.Client 实现；测试中可替换）
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// PublishToStream 发布消息到 Redis Streams
func PublishToStream(ctx context.Context, client StreamAdder, stream string, maxLen int64, values map[string]interface{}) (string, error) {
	streamValues, err := toStreamValues(values)
	if err != nil {
		return "", err
	}

	// 使用 XADD 命令添加消息；MaxLen>0 时近似裁剪
	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: maxLen > 0,
		Values: streamValues,
	}).Result()
}

// PublishJSONToStream 发布 JSON 消息到 Redis Streams
func PublishJSONToStream(ctx context.Context, client StreamAdder, stream string, maxLen int64, data interface{}) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return PublishToStream(ctx, client, stream, maxLen, map[string]interface{}{
		"data":      string(jsonBytes),
		"timestamp": time.Now().Unix(),
	})
}

// toStreamValues 将值转换为字符串（Redis Streams 字段均为字符串）
func toStreamValues(values map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		var strValue string
		switch val := v.(type) {
		case string:
			strValue = val
		case []byte:
			strValue = string(val)
		case int:
			strValue = strconv.Itoa(val)
		case int64:
			strValue = strconv.FormatInt(val, 10)
		case float64:
			strValue = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			strValue = strconv.FormatBool(val)
		default:
			jsonBytes, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to encode stream field %s: %w", k, err)
			}
			strValue = string(jsonBytes)
		}
		out[k] = strValue
	}
	return out, nil
}

// TelemetryPublisher 将每条入库记录发布到遥测流，供下游服务消费
type TelemetryPublisher struct {
	client StreamAdder
	stream string
	maxLen int64
}

// NewTelemetryPublisher maxLen<=0 表示不裁剪
func NewTelemetryPublisher(client StreamAdder, stream string, maxLen int64) *TelemetryPublisher {
	return &TelemetryPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish 发布一条记录
func (p *TelemetryPublisher) Publish(ctx context.Context, entry models.TelemetryEntry) error {
	if _, err := PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, entry); err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}
	return nil
}
