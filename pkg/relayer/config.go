package relayer

import (
	"fmt"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/spf13/viper"
)

// Config holds the relayer settings, read from the environment
type Config struct {
	// SettlerAccount is the ledger account that funds settlements
	SettlerAccount string

	// PriceRatio is the counter-asset amount delivered per unit of input
	PriceRatio fpdecimal.Decimal

	// RateLimit caps settlement attempts per second
	RateLimit float64

	// Source selects where crossed reports come from: "engine" consumes the
	// in-process hook, "kafka" consumes the event topic
	Source string

	// KafkaBroker is the broker address the crossed-event consumer connects
	// to when Source is "kafka"
	KafkaBroker string

	// KafkaTopic is the topic carrying order lifecycle and crossed events
	KafkaTopic string

	// RetryOnConflict retries an order once more after an attempt loses to an
	// in-flight settlement or a trigger recheck
	RetryOnConflict bool
}

// Report sources
const (
	SourceEngine = "engine"
	SourceKafka  = "kafka"
)

// LoadConfig reads relayer configuration from environment variables with the
// RELAYER_ prefix.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RELAYER")
	v.AutomaticEnv()

	v.SetDefault("SETTLER_ACCOUNT", "relayer")
	v.SetDefault("PRICE_RATIO", "1.0")
	v.SetDefault("RATE_LIMIT", 10.0)
	v.SetDefault("SOURCE", SourceEngine)
	v.SetDefault("KAFKA_BROKER", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "order-events")
	v.SetDefault("RETRY_ON_CONFLICT", false)

	source := v.GetString("SOURCE")
	if source != SourceEngine && source != SourceKafka {
		return nil, fmt.Errorf("invalid RELAYER_SOURCE %q: want %q or %q", source, SourceEngine, SourceKafka)
	}

	ratio, err := fpdecimal.FromString(v.GetString("PRICE_RATIO"))
	if err != nil {
		return nil, fmt.Errorf("invalid RELAYER_PRICE_RATIO: %w", err)
	}
	if ratio.LessThanOrEqual(fpdecimal.Zero) {
		return nil, fmt.Errorf("RELAYER_PRICE_RATIO must be positive, got %s", ratio)
	}

	rateLimit := v.GetFloat64("RATE_LIMIT")
	if rateLimit <= 0 {
		return nil, fmt.Errorf("RELAYER_RATE_LIMIT must be positive, got %f", rateLimit)
	}

	return &Config{
		SettlerAccount:  v.GetString("SETTLER_ACCOUNT"),
		PriceRatio:      ratio,
		RateLimit:       rateLimit,
		Source:          source,
		KafkaBroker:     v.GetString("KAFKA_BROKER"),
		KafkaTopic:      v.GetString("KAFKA_TOPIC"),
		RetryOnConflict: v.GetBool("RETRY_ON_CONFLICT"),
	}, nil
}
