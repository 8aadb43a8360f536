package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig 数据库配置（postgres 历史后端）
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	Stream       string // 遥测数据流名称，空表示不发布
	StreamMaxLen int64
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Enabled    bool
	Broker     string
	ClientID   string
	Username   string
	Password   string
	QoS        byte
	DataTopic  string // 如 "smartchair/+/data"
	AlertTopic string // 如 "smartchair/+/alert"
}

// Config smartchair-posture 服务配置
type Config struct {
	HTTP struct {
		Addr         string
		MaxBodyBytes int64
	}

	History struct {
		Backend        string // "file" | "log" | "postgres"
		FilePath       string
		PersistTimeout time.Duration
	}

	Alert struct {
		Backend string // "memory" | "redis"
	}

	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	Log struct {
		Level  string
		Format string
	}
}

const (
	BackendFile     = "file"
	BackendLog      = "log"
	BackendPostgres = "postgres"

	AlertMemory = "memory"
	AlertRedis  = "redis"
)

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// HTTP_ADDR 优先；否则使用 PORT（默认 3000）
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":"+getEnv("PORT", "3000"))
	cfg.HTTP.MaxBodyBytes = int64(parseInt(getEnv("MAX_BODY_BYTES", "1048576"), 1<<20))

	cfg.History.Backend = strings.ToLower(getEnv("HISTORY_BACKEND", BackendFile))
	cfg.History.FilePath = getEnv("HISTORY_FILE", defaultHistoryFile(cfg.History.Backend))
	cfg.History.PersistTimeout = parseDuration(getEnv("PERSIST_TIMEOUT", "5s"), 5*time.Second)

	cfg.Alert.Backend = strings.ToLower(getEnv("ALERT_BACKEND", AlertMemory))

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "smartchair")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "5"), 5)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "2"), 2)

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)
	cfg.Redis.Stream = getEnv("REDIS_STREAM", "smartchair:telemetry")
	cfg.Redis.StreamMaxLen = int64(parseInt(getEnv("REDIS_STREAM_MAXLEN", "10000"), 10000))

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "smartchair-posture")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))
	cfg.MQTT.DataTopic = getEnv("MQTT_TOPIC_DATA", "smartchair/+/data")
	cfg.MQTT.AlertTopic = getEnv("MQTT_TOPIC_ALERT", "smartchair/+/alert")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查枚举类配置
func (c *Config) Validate() error {
	switch c.History.Backend {
	case BackendFile, BackendLog, BackendPostgres:
	default:
		return fmt.Errorf("unknown HISTORY_BACKEND %q", c.History.Backend)
	}
	switch c.Alert.Backend {
	case AlertMemory:
	case AlertRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("ALERT_BACKEND=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("unknown ALERT_BACKEND %q", c.Alert.Backend)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}

// defaultHistoryFile log 后端为 JSON Lines，其余为 JSON 数组
func defaultHistoryFile(backend string) string {
	if backend == BackendLog {
		return "data/history.jsonl"
	}
	return "data/history.json"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
