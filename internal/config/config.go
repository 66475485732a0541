package config

import (
	"os"
	"strconv"
	"time"

	commoncfg "patient-tile/common/config"
)

// Config patient-tile 服务配置
type Config struct {
	HTTP struct {
		Addr string
	}

	RedisEnabled bool
	Redis        commoncfg.RedisConfig

	DBEnabled bool
	Database  commoncfg.DatabaseConfig

	MQTT MQTTConfig

	Bridge BridgeConfig

	Session SessionConfig

	Events struct {
		Stream string // 状态变化事件流，如 "tile:events"
		MaxLen int64  // 近似裁剪长度，<=0 不裁剪
	}

	Log struct {
		Level  string
		Format string
	}
}

// MQTTConfig 病人变化通知（桥接端发布到 {TopicPrefix}/{session}/patient）
type MQTTConfig struct {
	commoncfg.MQTTConfig
	Enabled     bool
	TopicPrefix string
}

// BridgeConfig 桥接服务 HTTP 配置；BaseURL 为空时不拉取病人
type BridgeConfig struct {
	BaseURL string
	Timeout time.Duration
	Retries int
}

// SessionConfig 会话配置
type SessionConfig struct {
	CookieName    string
	TTL           time.Duration // 会话存储 TTL（每次写入刷新）
	IdleTimeout   time.Duration // 内存中会话空闲回收时间
	SweepInterval time.Duration
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// Redis 未启用时使用进程内存储（本地联调）
	cfg.RedisEnabled = getEnv("REDIS_ENABLED", "true") == "true"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.DBEnabled = getEnv("DB_ENABLED", "false") == "true"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "owlrd"
	cfg.Database.SSLMode = "disable"
	cfg.Database.LoadFromEnv("DB")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "patient-tile"
	cfg.MQTT.QoS = 1
	cfg.MQTT.ConnectTimeout = 10 * time.Second
	cfg.MQTT.MQTTConfig.LoadFromEnv("MQTT")
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "bridge")

	cfg.Bridge.BaseURL = getEnv("BRIDGE_BASE_URL", "")
	cfg.Bridge.Timeout = parseDuration(getEnv("BRIDGE_TIMEOUT", "5s"), 5*time.Second)
	cfg.Bridge.Retries = parseInt(getEnv("BRIDGE_RETRIES", "2"), 2)

	cfg.Session.CookieName = getEnv("SESSION_COOKIE", "tile_session")
	cfg.Session.TTL = parseDuration(getEnv("SESSION_TTL", "12h"), 12*time.Hour)
	cfg.Session.IdleTimeout = parseDuration(getEnv("SESSION_IDLE_TIMEOUT", "30m"), 30*time.Minute)
	cfg.Session.SweepInterval = parseDuration(getEnv("SESSION_SWEEP_INTERVAL", "1m"), time.Minute)

	cfg.Events.Stream = getEnv("TILE_EVENT_STREAM", "tile:events")
	cfg.Events.MaxLen = int64(parseInt(getEnv("TILE_EVENT_STREAM_MAXLEN", "10000"), 10000))

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
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
	if err != nil || d < 0 {
		return def
	}
	return d
}
