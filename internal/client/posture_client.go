package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"smartchair/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Reading 设备上报的一条读数
type Reading struct {
	Posture     string  `json:"posture"`
	Distance    float64 `json:"distance"`
	SittingTime float64 `json:"sitting_time"`
}

// PostureClient smartchair-posture HTTP 接口客户端（设备模拟器、运维脚本使用）
type PostureClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewPostureClient 创建客户端；只有 GET 请求会重试，避免重复追加读数
func NewPostureClient(baseURL string, timeout time.Duration, logger *zap.Logger) *PostureClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json")

	return &PostureClient{
		httpClient: client,
		logger:     logger,
	}
}

// PostReading POST /update，返回服务端实际存入的记录
func (c *PostureClient) PostReading(ctx context.Context, reading Reading) (models.TelemetryEntry, error) {
	var result models.UpdateResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reading).
		SetResult(&result).
		SetError(&models.ErrorResponse{}).
		Post("/update")
	if err := checkResponse(resp, err, "update"); err != nil {
		c.logger.Warn("Failed to post reading", zap.Error(err))
		return models.TelemetryEntry{}, err
	}
	return result.Received, nil
}

// Latest GET /data
func (c *PostureClient) Latest(ctx context.Context) (models.TelemetryEntry, error) {
	var entry models.TelemetryEntry
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&entry).
		SetError(&models.ErrorResponse{}).
		Get("/data")
	if err := checkResponse(resp, err, "data"); err != nil {
		return models.TelemetryEntry{}, err
	}
	return entry, nil
}

// History GET /history
func (c *PostureClient) History(ctx context.Context) ([]models.TelemetryEntry, error) {
	var entries []models.TelemetryEntry
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&entries).
		SetError(&models.ErrorResponse{}).
		Get("/history")
	if err := checkResponse(resp, err, "history"); err != nil {
		return nil, err
	}
	return entries, nil
}

// RaiseAlert POST /alert
func (c *PostureClient) RaiseAlert(ctx context.Context) error {
	var result models.AlertRaiseResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&models.ErrorResponse{}).
		Post("/alert")
	if err := checkResponse(resp, err, "alert"); err != nil {
		return err
	}
	if !result.Received {
		return fmt.Errorf("alert not acknowledged by server")
	}
	return nil
}

// CheckAlert GET /alert
func (c *PostureClient) CheckAlert(ctx context.Context) (bool, error) {
	var status models.AlertStatus
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&status).
		SetError(&models.ErrorResponse{}).
		Get("/alert")
	if err := checkResponse(resp, err, "alert"); err != nil {
		return false, err
	}
	return status.Show, nil
}

// AcknowledgeAlert POST /alert/ack
func (c *PostureClient) AcknowledgeAlert(ctx context.Context) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetError(&models.ErrorResponse{}).
		Post("/alert/ack")
	return checkResponse(resp, err, "alert/ack")
}

func checkResponse(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", op, err)
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*models.ErrorResponse); ok && e.Error != "" {
			return fmt.Errorf("%s returned %d: %s", op, resp.StatusCode(), e.Error)
		}
		return fmt.Errorf("%s returned %d", op, resp.StatusCode())
	}
	return nil
}
