package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// RestaurantIDPlaceholder is the value shipped in the sample config.
// Validation refuses to start until it is replaced.
const RestaurantIDPlaceholder = "SEU_RESTAURANT_ID_AQUI"

// MinReceiptWidth is the narrowest supported receipt.
const MinReceiptWidth = 20

// Config is the top-level application configuration.
type Config struct {
	mu sync.Mutex `yaml:"-"`

	DatabasePath   string        `yaml:"database_path"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	ReceiptWidth   int           `yaml:"receipt_width"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	FailureCeiling int           `yaml:"failure_ceiling"`

	Backend   BackendConfig   `yaml:"backend"`
	Printer   PrinterConfig   `yaml:"printer"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
}

// BackendConfig defines the remote order store connection.
type BackendConfig struct {
	BaseURL      string        `yaml:"base_url"      json:"base_url"`
	APIKey       string        `yaml:"api_key"       json:"-"`
	RestaurantID string        `yaml:"restaurant_id" json:"restaurant_id"`
	Timeout      time.Duration `yaml:"timeout"       json:"timeout"`
}

// PrinterConfig defines the print sink.
type PrinterConfig struct {
	Target string `yaml:"target" json:"target"` // "console" or "network"
	Host   string `yaml:"host"   json:"host"`
	Port   int    `yaml:"port"   json:"port"`
}

// WebConfig defines the local web server settings.
type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

// MessagingConfig defines the optional status/heartbeat broker.
type MessagingConfig struct {
	Enabled             bool          `yaml:"enabled"`
	Backend             string        `yaml:"backend"` // "mqtt" or "kafka"
	MQTT                MQTTConfig    `yaml:"mqtt"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	ClientID            string        `yaml:"client_id"`
	StatusTopic         string        `yaml:"status_topic"`
	HeartbeatTopic      string        `yaml:"heartbeat_topic"`
	CommandTopic        string        `yaml:"command_topic"`
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
}

// MQTTConfig defines MQTT broker settings.
type MQTTConfig struct {
	Broker string `yaml:"broker"`
	Port   int    `yaml:"port"`
}

// KafkaConfig defines Kafka broker settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		DatabasePath:   "printedge.db",
		PollInterval:   5 * time.Second,
		ReceiptWidth:   42,
		MaxBackoff:     2 * time.Minute,
		FailureCeiling: 10,
		Backend: BackendConfig{
			RestaurantID: RestaurantIDPlaceholder,
			Timeout:      15 * time.Second,
		},
		Printer: PrinterConfig{
			Target: "console",
			Port:   9100,
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Messaging: MessagingConfig{
			Backend:             "mqtt",
			StatusTopic:         "printedge/status",
			HeartbeatTopic:      "printedge/heartbeat",
			CommandTopic:        "printedge/commands",
			HeartbeatInterval:   60 * time.Second,
			OutboxDrainInterval: 5 * time.Second,
			MQTT: MQTTConfig{
				Broker: "localhost",
				Port:   1883,
			},
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults
// are used. Load does not validate; call Validate before use.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to a YAML file.
func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the settings the agent cannot run without. It is
// called once at startup, before anything is constructed.
func (c *Config) Validate() error {
	if c.Backend.RestaurantID == "" || c.Backend.RestaurantID == RestaurantIDPlaceholder {
		return fmt.Errorf("config: backend.restaurant_id must be set")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("config: backend.base_url must be set")
	}
	if c.ReceiptWidth < MinReceiptWidth {
		return fmt.Errorf("config: receipt_width %d below minimum %d", c.ReceiptWidth, MinReceiptWidth)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be positive")
	}
	if c.Messaging.Enabled {
		switch c.Messaging.Backend {
		case "mqtt", "kafka":
		default:
			return fmt.Errorf("config: messaging.backend must be mqtt or kafka, got %q", c.Messaging.Backend)
		}
	}
	return nil
}

// Lock acquires the config mutex for multi-step mutations.
func (c *Config) Lock() { c.mu.Lock() }

// Unlock releases the config mutex.
func (c *Config) Unlock() { c.mu.Unlock() }
