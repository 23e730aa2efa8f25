package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Session struct {
		Store           string
		TTL             time.Duration
		CleanupInterval time.Duration
		CookieName      string
		SecureCookie    bool
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Backup struct {
		Bucket    string
		KeyPrefix string
		Interval  time.Duration
		Keep      int
	}
	Storage struct {
		Region   string
		Endpoint string
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level  string
		Format string
	}
}

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("MEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/memo.db")
	v.SetDefault("session.store", SessionStoreMemory)
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.cleanupinterval", "10m")
	v.SetDefault("session.cookiename", "memo_session")
	v.SetDefault("session.securecookie", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("backup.bucket", "")
	v.SetDefault("backup.keyprefix", "memo-backups")
	v.SetDefault("backup.interval", "6h")
	v.SetDefault("backup.keep", 7)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Session.Store = strings.ToLower(strings.TrimSpace(cfg.Session.Store))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot produce a working server.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database path is required")
	}
	switch c.Session.Store {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("redis address is required for the redis session store")
		}
	default:
		return fmt.Errorf("unknown session store %q", c.Session.Store)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return fmt.Errorf("session cookie name is required")
	}
	if c.Backup.Bucket != "" {
		if c.Backup.Interval <= 0 {
			return fmt.Errorf("backup interval must be positive")
		}
		if c.Backup.Keep < 1 {
			return fmt.Errorf("backup keep must be at least 1")
		}
	}
	return nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
