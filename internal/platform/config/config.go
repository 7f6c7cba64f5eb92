package config

import (
	"os"
	"strings"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	PebblePath   string
	KafkaBrokers []string

	// StorageBackend selects the request record store: memory, postgres or
	// pebble.
	StorageBackend string

	// ConsumerProgramID is the identity the consumer module registers on the
	// invocation transport.
	ConsumerProgramID string

	// OracleKeys are hex-encoded ed25519 public keys allowed to vote.
	OracleKeys []string

	EnableOutboxRelay bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "coolrouter"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	backend := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_BACKEND")))
	if backend == "" {
		backend = "memory"
	}

	pebblePath := os.Getenv("PEBBLE_PATH")
	if pebblePath == "" {
		pebblePath = "data/coolrouter.pebble"
	}

	consumerProgram := os.Getenv("CONSUMER_PROGRAM_ID")
	if consumerProgram == "" {
		consumerProgram = "llm-consumer"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	var oracleKeys []string
	for _, value := range strings.Split(os.Getenv("ORACLE_KEYS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			oracleKeys = append(oracleKeys, value)
		}
	}

	return Config{
		ServiceName:       service,
		HTTPPort:          port,
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		PebblePath:        pebblePath,
		KafkaBrokers:      brokers,
		StorageBackend:    backend,
		ConsumerProgramID: consumerProgram,
		OracleKeys:        oracleKeys,
		EnableOutboxRelay: envBool("ENABLE_OUTBOX_RELAY", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
