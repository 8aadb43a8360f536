package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"smartchair/internal/models"

	"go.uber.org/zap"
)

// ErrInvalidBody 请求体无法读取或解析（唯一的硬错误）
var ErrInvalidBody = errors.New("invalid request body")

// Coercion 一次字段回退记录
type Coercion struct {
	Field  string
	Reason string
}

// Validator 将原始上报数据规范化为 TelemetryEntry
// 格式错误的字段不会导致拒绝，只会回退到默认值并记录
type Validator struct {
	now       func() time.Time
	logger    *zap.Logger
	coercions atomic.Uint64
}

// NewValidator 创建校验器；now 为 nil 时使用 time.Now
func NewValidator(now func() time.Time, logger *zap.Logger) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now, logger: logger}
}

// DecodeBody 读取 JSON 请求体（空请求体视为空对象）
func DecodeBody(r io.Reader, maxBytes int64) (map[string]any, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidBody, maxBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrInvalidBody)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidBody)
	}
	return obj, nil
}

// Normalize 规范化一条读数；客户端提供的 timestamp 被忽略
func (v *Validator) Normalize(raw map[string]any) (models.TelemetryEntry, []Coercion) {
	var coercions []Coercion

	posture, reason := coercePosture(raw["posture"], hasKey(raw, "posture"))
	if reason != "" {
		coercions = append(coercions, Coercion{Field: "posture", Reason: reason})
	}
	distance, reason := coerceNumber(raw["distance"], hasKey(raw, "distance"))
	if reason != "" {
		coercions = append(coercions, Coercion{Field: "distance", Reason: reason})
	}
	sitting, reason := coerceNumber(raw["sitting_time"], hasKey(raw, "sitting_time"))
	if reason != "" {
		coercions = append(coercions, Coercion{Field: "sitting_time", Reason: reason})
	}

	entry := models.TelemetryEntry{
		Posture:     posture,
		Distance:    distance,
		SittingTime: sitting,
		Timestamp:   models.NewTimestamp(v.now()),
	}

	if len(coercions) > 0 {
		v.coercions.Add(uint64(len(coercions)))
		fields := make([]zap.Field, 0, len(coercions))
		for _, c := range coercions {
			fields = append(fields, zap.String(c.Field, c.Reason))
		}
		v.logger.Warn("Reading fields coerced to defaults", fields...)
	}

	return entry, coercions
}

// Coercions 累计回退次数
func (v *Validator) Coercions() uint64 {
	return v.coercions.Load()
}

func hasKey(raw map[string]any, key string) bool {
	_, ok := raw[key]
	return ok
}

// coercePosture 字符串原样保留（去首尾空白），数字/布尔转文本，其余回退为 Unknown
func coercePosture(val any, present bool) (string, string) {
	switch p := val.(type) {
	case string:
		if s := strings.TrimSpace(p); s != "" {
			return s, ""
		}
		return models.UnknownPosture, "empty"
	case json.Number:
		return p.String(), ""
	case float64:
		return strconv.FormatFloat(p, 'f', -1, 64), ""
	case bool:
		return strconv.FormatBool(p), ""
	case nil:
		if present {
			return models.UnknownPosture, "null"
		}
		// 缺失字段属于正常情况，不计为回退
		return models.UnknownPosture, ""
	default:
		return models.UnknownPosture, fmt.Sprintf("unsupported type %T", val)
	}
}

// coerceNumber 数字或数字字符串转 float64；非有限值及其他类型回退为 0
func coerceNumber(val any, present bool) (float64, string) {
	var (
		f   float64
		err error
	)
	switch n := val.(type) {
	case json.Number:
		f, err = strconv.ParseFloat(n.String(), 64)
	case float64:
		f = n
	case int:
		f = float64(n)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, "empty"
		}
		f, err = strconv.ParseFloat(s, 64)
	case nil:
		if present {
			return 0, "null"
		}
		return 0, ""
	default:
		return 0, fmt.Sprintf("unsupported type %T", val)
	}
	if err != nil {
		return 0, "not a number"
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "not finite"
	}
	return f, ""
}
