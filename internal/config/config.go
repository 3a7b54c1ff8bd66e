package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
	} `mapstructure:"app"`
	DB struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		UserTTL  time.Duration `mapstructure:"user_ttl"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Auth struct {
		JWTSecret     string        `mapstructure:"jwt_secret"`
		TokenLifespan time.Duration `mapstructure:"token_lifespan"`
	} `mapstructure:"auth"`
	Cloudinary struct {
		CloudName string        `mapstructure:"cloud_name"`
		ApiKey    string        `mapstructure:"api_key"`
		ApiSecret string        `mapstructure:"api_secret"`
		Timeout   time.Duration `mapstructure:"timeout"`
	} `mapstructure:"cloudinary"`
	Jaeger struct {
		OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	} `mapstructure:"jaeger"`
	Log struct {
		File       string `mapstructure:"file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
	} `mapstructure:"log"`
	HTTP struct {
		RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute"`
		AllowedOrigins     []string `mapstructure:"allowed_origins"`
	} `mapstructure:"http"`
	Worker struct {
		MetricsPort string `mapstructure:"metrics_port"`
	} `mapstructure:"worker"`
	Admin struct {
		// OperatorIDs are the user ids allowed on the admin routes.
		OperatorIDs []string `mapstructure:"operator_ids"`
	} `mapstructure:"admin"`
	Cleanup Cleanup `mapstructure:"cleanup"`
}

// Cleanup drives the expired-story reclamation job.
type Cleanup struct {
	Enabled     bool   `mapstructure:"enabled"`
	Strict      bool   `mapstructure:"strict"`
	Schedule    string `mapstructure:"schedule"`
	Timezone    string `mapstructure:"timezone"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	BaseMinutes int    `mapstructure:"retry_base_minutes"`
	MaxMinutes  int    `mapstructure:"retry_max_minutes"`
	RetryBatch  int    `mapstructure:"retry_batch"`
}

func (c Cleanup) RetryBase() time.Duration {
	return time.Duration(c.BaseMinutes) * time.Minute
}

func (c Cleanup) RetryMax() time.Duration {
	return time.Duration(c.MaxMinutes) * time.Minute
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("redis.user_ttl", 10*time.Minute)
	v.SetDefault("auth.token_lifespan", 24*time.Hour)
	v.SetDefault("cloudinary.timeout", 30*time.Second)
	v.SetDefault("http.rate_limit_per_minute", 100)
	v.SetDefault("worker.metrics_port", "9091")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)

	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.strict", false)
	v.SetDefault("cleanup.schedule", "*/5 * * * *")
	v.SetDefault("cleanup.timezone", "UTC")
	v.SetDefault("cleanup.max_attempts", 5)
	v.SetDefault("cleanup.retry_base_minutes", 5)
	v.SetDefault("cleanup.retry_max_minutes", 1440)
	v.SetDefault("cleanup.retry_batch", 200)
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("app.port", "APP_PORT")
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("db.dsn", "DB_DSN")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.user_ttl", "REDIS_USER_TTL")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.token_lifespan", "TOKEN_LIFESPAN")

	v.BindEnv("cloudinary.cloud_name", "CLOUDINARY_CLOUD_NAME")
	v.BindEnv("cloudinary.api_key", "CLOUDINARY_API_KEY")
	v.BindEnv("cloudinary.api_secret", "CLOUDINARY_API_SECRET")
	v.BindEnv("cloudinary.timeout", "CLOUDINARY_TIMEOUT")

	v.BindEnv("jaeger.otlp_endpoint", "JAEGER_OTLP_ENDPOINT")
	v.BindEnv("log.file", "LOG_FILE")
	v.BindEnv("http.rate_limit_per_minute", "RATE_LIMIT_PER_MINUTE")
	v.BindEnv("http.allowed_origins", "CORS_ALLOWED_ORIGINS")
	v.BindEnv("worker.metrics_port", "WORKER_METRICS_PORT")
	v.BindEnv("admin.operator_ids", "ADMIN_OPERATOR_IDS")

	v.BindEnv("cleanup.enabled", "STORY_CLEANUP_ENABLED")
	v.BindEnv("cleanup.strict", "STORY_CLEANUP_STRICT")
	v.BindEnv("cleanup.schedule", "STORY_CLEANUP_SCHEDULE")
	v.BindEnv("cleanup.timezone", "CRON_TZ")
	v.BindEnv("cleanup.max_attempts", "STORY_DELETION_ATTEMPTS")
	v.BindEnv("cleanup.retry_base_minutes", "STORY_RETRY_BASE_MINUTES")
	v.BindEnv("cleanup.retry_max_minutes", "STORY_RETRY_MAX_MINUTES")
}

func LoadConfig(paths ...string) (cfg Config, err error) {

	err = godotenv.Load()
	if err != nil {
		log.Println("warning: .env file not found, use default.")
	}

	v := viper.New()
	v.AddConfigPath(".")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err = v.ReadInConfig(); err != nil {
		log.Printf("note: config.yaml not found, read .env only. Error: %v", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	err = v.Unmarshal(&cfg)
	if err != nil {
		return
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.HTTP.AllowedOrigins = splitList(cfg.HTTP.AllowedOrigins)
	cfg.Admin.OperatorIDs = splitList(cfg.Admin.OperatorIDs)
	cfg.Cleanup.normalize()
	return
}

// normalize replaces out-of-range retry settings with the defaults.
func (c *Cleanup) normalize() {
	if c.MaxAttempts < 1 {
		log.Printf("warning: cleanup max_attempts %d is below 1, using 5", c.MaxAttempts)
		c.MaxAttempts = 5
	}
	if c.BaseMinutes <= 0 {
		log.Printf("warning: cleanup retry_base_minutes %d is not positive, using 5", c.BaseMinutes)
		c.BaseMinutes = 5
	}
	if c.MaxMinutes <= 0 {
		log.Printf("warning: cleanup retry_max_minutes %d is not positive, using 1440", c.MaxMinutes)
		c.MaxMinutes = 1440
	}
	if c.RetryBatch <= 0 {
		c.RetryBatch = 200
	}
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
