package models

type RedisConfig struct {
	URL string `json:"url,omitzero" yaml:"url"`
}

// CircuitBreakerConfig guards the upstream generation API. Durations are in milliseconds.
type CircuitBreakerConfig struct {
	FailureThreshold int `json:"failure_threshold,omitzero" yaml:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold,omitzero" yaml:"success_threshold"`
	TimeoutMs        int `json:"timeout_ms,omitzero" yaml:"timeout_ms"`
}

type EventsConfig struct {
	Kafka *KafkaConfig `json:"kafka,omitempty" yaml:"kafka,omitempty"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

type TelemetryConfig struct {
	ServiceName  string `json:"service_name,omitzero" yaml:"service_name"`
	OTLPEndpoint string `json:"otlp_endpoint,omitzero" yaml:"otlp_endpoint"`
	Insecure     bool   `json:"insecure,omitzero" yaml:"insecure"`
}
