package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errs = append(errs, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errs = append(errs, err)
	}

	if err := validateDispatch(cfg.Dispatch); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type != "kafka" {
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unsupported broker type %q", cfg.Type),
		}
	}

	if len(cfg.Kafka.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one broker address is required",
		}
	}

	if cfg.Kafka.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "consumer group id is required",
		}
	}

	if cfg.Kafka.InboundTopic == cfg.Kafka.EnrichedTopic && cfg.Kafka.InboundTopic != "" {
		// Re-publishing routed-away events onto the inbound topic would
		// loop them straight back into the pipeline.
		return &ValidationError{
			Field:   "broker.kafka.enriched_topic",
			Message: "enriched topic must differ from the inbound topic",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Redis.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "redis host is required",
		}
	}

	if len(cfg.Elasticsearch.Addresses) == 0 {
		return &ValidationError{
			Field:   "database.elasticsearch.addresses",
			Message: "at least one elasticsearch address is required",
		}
	}

	return nil
}

func validateDispatch(cfg DispatchConfig) error {
	if cfg.Email.FromAddress == "" {
		return &ValidationError{
			Field:   "dispatch.email.from_address",
			Message: "sender address is required",
		}
	}

	return nil
}
