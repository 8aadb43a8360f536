package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout 固定宽度的 UTC 时间格式（毫秒精度），字典序即时间序
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// UnknownPosture 缺省姿态标签
const UnknownPosture = "Unknown"

// Timestamp 服务端分配的时间戳，JSON 编码为 TimestampLayout 字符串
type Timestamp time.Time

// NewTimestamp 截断到毫秒并转换为 UTC，保证编码后再解码得到相同的值
func NewTimestamp(t time.Time) *Timestamp {
	ts := Timestamp(t.UTC().Truncate(time.Millisecond))
	return &ts
}

func (t Timestamp) Time() time.Time { return time.Time(t) }

func (t Timestamp) String() string { return time.Time(t).UTC().Format(TimestampLayout) }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	*t = *NewTimestamp(parsed)
	return nil
}

// TelemetryEntry 一条带时间戳的遥测记录（创建后不可变）
type TelemetryEntry struct {
	Posture     string     `json:"posture"`
	Distance    float64    `json:"distance"`     // 厘米
	SittingTime float64    `json:"sitting_time"` // 单位由设备端决定
	Timestamp   *Timestamp `json:"timestamp"`
}

// EmptyEntry 尚无数据时 /data 返回的哨兵值
func EmptyEntry() TelemetryEntry {
	return TelemetryEntry{Posture: UnknownPosture}
}

// IsEmpty 是否为哨兵值
func (e TelemetryEntry) IsEmpty() bool {
	return e.Timestamp == nil
}

// Equal 逐字段比较（时间戳按毫秒）
func (e TelemetryEntry) Equal(o TelemetryEntry) bool {
	if e.Posture != o.Posture || e.Distance != o.Distance || e.SittingTime != o.SittingTime {
		return false
	}
	if e.Timestamp == nil || o.Timestamp == nil {
		return e.Timestamp == nil && o.Timestamp == nil
	}
	return e.Timestamp.Time().Equal(o.Timestamp.Time())
}
