package models

// UpdateResponse POST /update 响应
type UpdateResponse struct {
	Status   string         `json:"status"`
	Received TelemetryEntry `json:"received"`
}

// AlertRaiseResponse POST /alert 响应
type AlertRaiseResponse struct {
	Status   string `json:"status"`
	Received bool   `json:"received"`
}

// AlertStatus GET /alert 响应；确认（ack）接口也返回 status
type AlertStatus struct {
	Status string `json:"status,omitempty"`
	Show   bool   `json:"show"`
}

// ErrorResponse 统一错误响应
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Stats GET /stats 响应（可观测性）
type Stats struct {
	Entries         int    `json:"entries"`
	PersistFailures uint64 `json:"persist_failures"`
	Coercions       uint64 `json:"coercions"`
	AlertPending    bool   `json:"alert_pending"`
	HistoryBackend  string `json:"history_backend"`
	// LatestMirrored Redis 镜像是否与最新记录一致；未启用镜像时省略
	LatestMirrored *bool `json:"latest_mirrored,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)
