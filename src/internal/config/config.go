package config

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Configuration struct {
	Logs         LogsSettings       `mapstructure:"logs"`
	App          Application        `mapstructure:"app"`
	Database     Database           `mapstructure:"database"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Redis        Redis              `mapstructure:"redis"`
	Security     SecuritySettings   `mapstructure:"security"`
	Server       ServerSettings     `mapstructure:"server"`
	Session      SessionConfig      `mapstructure:"session"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Payment      PaymentConfig      `mapstructure:"payment"`
	Cache        CacheConfig        `mapstructure:"cache"`
}

type LogsSettings struct {
	Level            string `mapstructure:"level"`
	Path             string `mapstructure:"log-path"`
	EnableJSONOutput bool   `mapstructure:"enable-json-output"`
}

type Application struct {
	Name     string `mapstructure:"name"`
	Timeout  int    `mapstructure:"timeout"`
	Version  string `mapstructure:"version"`
	HostLink string `mapstructure:"host-link"`
}

type Database struct {
	Url                   string `mapstructure:"url"`
	DbName                string `mapstructure:"dbname"`
	UserCollection        string `mapstructure:"user-collection"`
	SessionCollection     string `mapstructure:"session-collection"`
	TransactionCollection string `mapstructure:"transaction-collection"`
	AccessCodeCollection  string `mapstructure:"access-code-collection"`
	Timeout               int    `mapstructure:"timeout"`
}

type QueueConfig struct {
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type RabbitMQConfig struct {
	Url            string `mapstructure:"url"`
	Exchange       string `mapstructure:"exchange"`
	ExchangeType   string `mapstructure:"exchange-type"`
	EmailQueue     string `mapstructure:"email-queue"`
	RoutingKey     string `mapstructure:"routing-key"`
	PrefetchCount  int    `mapstructure:"prefetch-count"`
	ReconnectDelay int    `mapstructure:"reconnect-delay"`
	Timeout        int    `mapstructure:"timeout"`
	PrefetchSize   int    `mapstructure:"prefetch-size"`
	Global         bool   `mapstructure:"global"`
	Durable        bool   `mapstructure:"durable"`
	AutoDelete     bool   `mapstructure:"auto-delete"`
	Internal       bool   `mapstructure:"internal"`
	NoWait         bool   `mapstructure:"no-wait"`
	Exclusive      bool   `mapstructure:"exclusive"`
}

type Redis struct {
	Url      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	Db       int    `mapstructure:"db"`
}

type SecuritySettings struct {
	JwtKey          string `mapstructure:"jwt-key"`
	TokenExpiryDays int    `mapstructure:"token-expiry-days"`
	WebhookSecret   string `mapstructure:"webhook-secret"`
	BcryptCost      int    `mapstructure:"bcrypt-cost"`
}

type ServerSettings struct {
	Port         string `mapstructure:"port"`
	Mode         string `mapstructure:"mode"`
	ReadTimeout  int    `mapstructure:"read-timeout"`
	WriteTimeout int    `mapstructure:"write-timeout"`
	IdleTimeout  int    `mapstructure:"idle-timeout"`
}

type SessionConfig struct {
	TTLHours                 int `mapstructure:"ttl-hours"`
	SessionExpirationMinutes int `mapstructure:"session-expiration-minutes"`
}

type SubscriptionConfig struct {
	AccessCodeTTLMinutes int `mapstructure:"access-code-ttl-minutes"`
	WarningDays          int `mapstructure:"warning-days"`
	SweepIntervalMinutes int `mapstructure:"sweep-interval-minutes"`
	WarnIntervalMinutes  int `mapstructure:"warn-interval-minutes"`
}

type PaymentConfig struct {
	PayDunya       GatewayConfig  `mapstructure:"paydunya"`
	KkiaPay        GatewayConfig  `mapstructure:"kkiapay"`
	Plans          []Plan         `mapstructure:"plans"`
	Reconciliation Reconciliation `mapstructure:"reconciliation"`
}

type GatewayConfig struct {
	BaseURL   string `mapstructure:"base-url"`
	APIKey    string `mapstructure:"api-key"`
	APISecret string `mapstructure:"api-secret"`
	Timeout   int    `mapstructure:"timeout"`
}

type Plan struct {
	ID               string `mapstructure:"id"`
	Amount           int64  `mapstructure:"amount"`
	DurationInMonths int    `mapstructure:"duration-in-months"`
}

type Reconciliation struct {
	GraceMinutes        int `mapstructure:"grace-minutes"`
	RetrySeconds        int `mapstructure:"retry-seconds"`
	MaxAttempts         int `mapstructure:"max-attempts"`
	MaxAgeMinutes       int `mapstructure:"max-age-minutes"`
	PollIntervalMinutes int `mapstructure:"poll-interval-minutes"`
	RetentionHours      int `mapstructure:"retention-hours"`
}

type CacheConfig struct {
	ExpirationMinutes         int    `mapstructure:"expiration-minutes"`
	UserStatKey               string `mapstructure:"user-stat-key"`
	UserStatExpirationMinutes int    `mapstructure:"user-stat-expiration-minutes"`
}

func Load() *Configuration {
	cfg := read()
	logrus.Info("Configuration loaded")

	// Override with environment variables
	mongoUri := os.Getenv("MONGODB_URL")
	if mongoUri != "" {
		cfg.Database.Url = mongoUri
	}

	dbName := os.Getenv("DB_NAME")
	if dbName != "" {
		cfg.Database.DbName = dbName
	}

	redisUrl := os.Getenv("REDIS_URL")
	if redisUrl != "" {
		cfg.Redis.Url = redisUrl
	}

	redisDB := os.Getenv("REDIS_DB")
	if redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			cfg.Redis.Db = db
		}
	}

	rabbitmqUrl := os.Getenv("RABBITMQ_URL")
	if rabbitmqUrl != "" {
		cfg.Queue.RabbitMQ.Url = rabbitmqUrl
	}

	jwtKey := os.Getenv("JWT_KEY")
	if jwtKey != "" {
		cfg.Security.JwtKey = jwtKey
	}

	webhookSecret := os.Getenv("WEBHOOK_SECRET")
	if webhookSecret != "" {
		cfg.Security.WebhookSecret = webhookSecret
	}

	paydunyaKey := os.Getenv("PAYDUNYA_MASTER_KEY")
	if paydunyaKey != "" {
		cfg.Payment.PayDunya.APIKey = paydunyaKey
	}

	kkiapaySecret := os.Getenv("KKIAPAY_SECRET")
	if kkiapaySecret != "" {
		cfg.Payment.KkiaPay.APISecret = kkiapaySecret
	}

	return cfg
}

// PlanByID returns the configured plan or nil when the id is unknown.
func (c *Configuration) PlanByID(id string) *Plan {
	for i := range c.Payment.Plans {
		if c.Payment.Plans[i].ID == id {
			return &c.Payment.Plans[i]
		}
	}
	return nil
}

func read() *Configuration {
	viper.SetConfigFile("src/internal/config/cfg.yml")
	viper.AutomaticEnv()
	viper.SetConfigType("yml")

	var config Configuration

	err := viper.ReadInConfig()
	if err != nil {
		logrus.Panicf("Error reading config file, %s", err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		logrus.Panicf("Error unmarshalling config file, %s", err)
	}

	return &config
}
