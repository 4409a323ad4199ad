package config

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Config 保存应用配置
type Config struct {
	ServerAddr string
	WebAppDir  string // Web界面静态文件目录

	// 数据库配置
	DBDriver   string // mysql、postgres 或 sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string // sqlite 文件路径
	DBLogSQL   bool

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// 存储配置
	StorageBackend string // minio 或 local
	LocalAudioDir  string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// 上传配置
	MaxUploadMB       int
	UploadConcurrency int

	// 认证配置
	JWTSecret string
	TokenTTL  time.Duration

	// 日志配置
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// 播放器客户端配置
	PlayerAPIURL string
	PlayerToken  string
}

// getEnv 读取环境变量，未设置时返回默认值
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt 读取整数环境变量，未设置或无法解析时返回默认值
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load 从环境变量（含 .env 文件）加载配置，缺省项使用默认值
func Load() *Config {
	// godotenv.Load() 不会覆盖已存在的环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	dataDir := getEnv("DATA_DIR", "data")

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":3000"),
		WebAppDir:  getEnv("WEB_APP_DIR", filepath.Join("web", "ui")),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // 密码不设默认值
		DBName:     getEnv("DB_NAME", "dmplayer"),
		DBPath:     getEnv("DB_PATH", filepath.Join(dataDir, "dmplayer.db")),
		DBLogSQL:   getEnvBool("DB_LOG_SQL", false),

		RedisHost:     getEnv("REDIS_HOST", ""), // 为空时不启用缓存
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		LocalAudioDir:  getEnv("LOCAL_AUDIO_DIR", filepath.Join(dataDir, "audio")),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "dmplayer"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		MaxUploadMB:       getEnvInt("MAX_UPLOAD_MB", 200),
		UploadConcurrency: getEnvInt("UPLOAD_CONCURRENCY", 4),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),

		PlayerAPIURL: getEnv("PLAYER_API_URL", "http://127.0.0.1:3000"),
		PlayerToken:  getEnv("PLAYER_TOKEN", ""),
	}
}

// MySQLDSN 生成 go-sql-driver 使用的 MySQL DSN
func (c *Config) MySQLDSN() string {
	mc := mysql.NewConfig()
	mc.User = c.DBUser
	mc.Passwd = c.DBPassword
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.DBHost, c.DBPort)
	mc.DBName = c.DBName
	mc.ParseTime = true
	mc.ClientFoundRows = true // 无变化的 UPDATE 也计入影响行数
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// PostgresDSN 生成 key/value 格式的 Postgres DSN
func (c *Config) PostgresDSN() string {
	return "host=" + c.DBHost +
		" port=" + c.DBPort +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" sslmode=disable"
}

// RedisAddr 返回 Redis 的 host:port，未启用时返回空字符串
func (c *Config) RedisAddr() string {
	if c.RedisHost == "" {
		return ""
	}
	return net.JoinHostPort(c.RedisHost, c.RedisPort)
}
