package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
		AutoMigrate        bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	} `envPrefix:"DATABASE_"`
	RabbitMQ struct {
		DSN               string `env:"DSN,required"`
		PublishTimeout    int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
		NotificationQueue string `env:"NOTIFICATION_QUEUE" envDefault:"notification_queue"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD"`
		DB                  int    `env:"DB" envDefault:"0"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"5"`
		ProfileCacheTTL     int    `env:"PROFILE_CACHE_TTL" envDefault:"3600"`  // 秒
		WebhookDedupTTL     int    `env:"WEBHOOK_DEDUP_TTL" envDefault:"86400"` // 秒
	} `envPrefix:"REDIS_"`
	Line struct {
		ChannelAccessToken string `env:"CHANNEL_ACCESS_TOKEN,required"`
		ChannelSecret      string `env:"CHANNEL_SECRET,required"`
		APIBaseURL         string `env:"API_BASE_URL" envDefault:"https://api.line.me"`
		BroadcastTarget    string `env:"BROADCAST_TARGET,required"` // 群组 ID，公告推送的目标
		RequestTimeout     int    `env:"REQUEST_TIMEOUT" envDefault:"10"`
	} `envPrefix:"LINE_"`
	Email struct {
		Enabled    bool     `env:"ENABLED" envDefault:"false"`
		Recipients []string `env:"RECIPIENTS" envSeparator:","`
		SMTP       struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	Allocation struct {
		PlaceholderDisplayName string `env:"PLACEHOLDER_DISPLAY_NAME" envDefault:"未知用户"`
		ResolveTimeout         int    `env:"RESOLVE_TIMEOUT" envDefault:"30"`
		DispatchTimeout        int    `env:"DISPATCH_TIMEOUT" envDefault:"10"`
		RandomSeed             uint64 `env:"RANDOM_SEED" envDefault:"0"` // 0 表示使用随机种子
	} `envPrefix:"ALLOCATION_"`
	Seed struct {
		ApplicantCount int `env:"APPLICANT_COUNT" envDefault:"8"`
	} `envPrefix:"SEED_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}
