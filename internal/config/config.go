package config

import (
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Broker   BrokerConfig
	Logging  LoggingConfig
	Rules    RulesConfig
	Dispatch DispatchConfig
	Search   SearchConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MongoDB       MongoDBConfig       `mapstructure:"mongodb"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers       []string    `mapstructure:"brokers"`
	GroupID       string      `mapstructure:"group_id"`
	InboundTopic  string      `mapstructure:"inbound_topic"`
	EnrichedTopic string      `mapstructure:"enriched_topic"`
	DLQTopic      string      `mapstructure:"dlq_topic"`
	Retry         RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RulesConfig struct {
	SeedDefaults bool            `mapstructure:"seed_defaults"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type DispatchConfig struct {
	AWSRegion      string               `mapstructure:"aws_region"`
	Email          EmailConfig          `mapstructure:"email"`
	SMS            SMSConfig            `mapstructure:"sms"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type EmailConfig struct {
	FromAddress string `mapstructure:"from_address"`
}

type SMSConfig struct {
	SenderID string `mapstructure:"sender_id"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type SearchConfig struct {
	MaxPageSize int `mapstructure:"max_page_size"`
}
