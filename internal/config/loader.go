package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.inbound_topic", "BROKER_KAFKA_INBOUND_TOPIC")
	viper.BindEnv("broker.kafka.enriched_topic", "BROKER_KAFKA_ENRICHED_TOPIC")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.elasticsearch.addresses", "DATABASE_ELASTICSEARCH_ADDRESSES")
	viper.BindEnv("database.elasticsearch.username", "DATABASE_ELASTICSEARCH_USERNAME")
	viper.BindEnv("database.elasticsearch.password", "DATABASE_ELASTICSEARCH_PASSWORD")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("dispatch.aws_region", "DISPATCH_AWS_REGION")
	viper.BindEnv("dispatch.email.from_address", "DISPATCH_EMAIL_FROM_ADDRESS")
	viper.BindEnv("dispatch.sms.sender_id", "DISPATCH_SMS_SENDER_ID")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if addressesEnv := viper.GetString("DATABASE_ELASTICSEARCH_ADDRESSES"); addressesEnv != "" {
		addresses := strings.Split(addressesEnv, ",")
		for i := range addresses {
			addresses[i] = strings.TrimSpace(addresses[i])
		}
		if len(addresses) > 0 && addresses[0] != "" {
			cfg.Database.Elasticsearch.Addresses = addresses
		}
	}

	return nil
}
