package config

import (
	"fmt"
	"strconv"
	"time"
)

// SimulatorConfig posture-sim 设备模拟器配置
type SimulatorConfig struct {
	APIURL         string
	Interval       time.Duration
	RequestTimeout time.Duration
	AlertThreshold float64 // 坐姿时长（分钟）达到该值时触发告警
	MinutesPerTick float64
	Count          int // 0 表示一直运行
	Seed           uint64

	Log struct {
		Level  string
		Format string
	}
}

// LoadSimulator 从环境变量加载模拟器配置
func LoadSimulator() (*SimulatorConfig, error) {
	cfg := &SimulatorConfig{}

	cfg.APIURL = getEnv("SIM_API_URL", "http://localhost:3000")
	cfg.Interval = parseDuration(getEnv("SIM_INTERVAL", "2s"), 2*time.Second)
	cfg.RequestTimeout = parseDuration(getEnv("SIM_REQUEST_TIMEOUT", "5s"), 5*time.Second)
	cfg.AlertThreshold = parseFloat(getEnv("SIM_ALERT_THRESHOLD", "30"), 30)
	cfg.MinutesPerTick = parseFloat(getEnv("SIM_MINUTES_PER_TICK", "1"), 1)
	cfg.Count = parseInt(getEnv("SIM_COUNT", "0"), 0)
	cfg.Seed = uint64(parseInt(getEnv("SIM_SEED", "0"), 0))

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "console")

	if cfg.AlertThreshold <= 0 {
		return nil, fmt.Errorf("SIM_ALERT_THRESHOLD must be positive, got %v", cfg.AlertThreshold)
	}
	if cfg.Count < 0 {
		return nil, fmt.Errorf("SIM_COUNT must not be negative, got %d", cfg.Count)
	}
	return cfg, nil
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
