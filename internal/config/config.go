package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
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
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT 配置（用于接收 ML 管线推送的检测结果，默认禁用）
type MQTTConfig struct {
	Enabled  bool
	Broker   string // 如 "tcp://localhost:1883"
	ClientID string
	Username string
	Password string
	Topic    string // 检测结果主题
	QoS      byte
}

// OverpassConfig Overpass API（OpenStreetMap）配置
type OverpassConfig struct {
	Endpoint     string // Overpass interpreter 地址
	RadiusMeters int    // 坑洞周边道路检索半径（米）
	TimeoutSec   int
	CacheTTLSec  int // 道路元数据 Redis 缓存 TTL（秒）
}

// PriorityConfig 晋升阈值与评分常量。
// 上游 schema 未给出业务常量，这里全部做成配置、以下默认值与评分契约一致：
//   score = confidence * trafficImportance * priorityFactor * speedWeight
//   speedWeight(nil) = 1.0, speedWeight(v) = 1 + v/100
// 分档切点：score < Low → LOW, < Medium → MEDIUM, < High → HIGH, 其余 CRITICAL
type PriorityConfig struct {
	PromotionThreshold  float64 // Detection 晋升 Pothole 的最低置信度
	PromotionClass      string  // 晋升类别，默认 "pothole"
	AutoVerifyThreshold float64 // 高于此置信度时自动核实 Report
	BucketLow           float64
	BucketMedium        float64
	BucketHigh          float64
}

// Config smartinfra-data（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  DatabaseConfig
	Redis     RedisConfig
	MQTT      MQTTConfig
	Overpass  OverpassConfig
	Priority  PriorityConfig
	Ticket    struct {
		EventStream string // 工单状态事件流（Redis Streams）
	}
	Log struct {
		Level  string
		Format string
	}
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// 本地开发默认开 DB；连接失败时 main 会退回内存 repo
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "smartinfra")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "smartinfra-data-detections")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "smartinfra/detections")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.Overpass.Endpoint = getEnv("OVERPASS_ENDPOINT", "https://overpass-api.de/api/interpreter")
	cfg.Overpass.RadiusMeters = parseInt(getEnv("OVERPASS_RADIUS_METERS", "50"), 50)
	cfg.Overpass.TimeoutSec = parseInt(getEnv("OVERPASS_TIMEOUT_SEC", "15"), 15)
	cfg.Overpass.CacheTTLSec = parseInt(getEnv("OVERPASS_CACHE_TTL_SEC", "86400"), 86400)

	cfg.Priority.PromotionThreshold = parseFloat(getEnv("PRIORITY_PROMOTION_THRESHOLD", "0.6"), 0.6)
	cfg.Priority.PromotionClass = getEnv("PRIORITY_PROMOTION_CLASS", "pothole")
	cfg.Priority.AutoVerifyThreshold = parseFloat(getEnv("PRIORITY_AUTO_VERIFY_THRESHOLD", "0.85"), 0.85)
	cfg.Priority.BucketLow = parseFloat(getEnv("PRIORITY_BUCKET_LOW", "0.3"), 0.3)
	cfg.Priority.BucketMedium = parseFloat(getEnv("PRIORITY_BUCKET_MEDIUM", "0.6"), 0.6)
	cfg.Priority.BucketHigh = parseFloat(getEnv("PRIORITY_BUCKET_HIGH", "0.9"), 0.9)

	cfg.Ticket.EventStream = getEnv("TICKET_EVENT_STREAM", "smartinfra:ticket-events")

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

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
