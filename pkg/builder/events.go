package builder

import "github.com/pixora-ai/pixora-api/internal/models"

// WithKafka publishes ledger events to topic. Without it events are dropped.
func (b *Builder) WithKafka(topic string, brokers ...string) *Builder {
	b.cfg.Events.Kafka = &models.KafkaConfig{
		Brokers: brokers,
		Topic:   topic,
	}
	return b
}

func (b *Builder) WithTelemetry(serviceName, otlpEndpoint string, insecure bool) *Builder {
	b.cfg.Telemetry = &models.TelemetryConfig{
		ServiceName:  serviceName,
		OTLPEndpoint: otlpEndpoint,
		Insecure:     insecure,
	}
	return b
}
