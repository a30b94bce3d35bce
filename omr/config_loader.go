package omr

import (
	"fmt"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// DefaultHistory is the number of graded sheets the service keeps in memory.
const DefaultHistory = 50

// DefaultConfig returns the configuration used when no config file is given
func DefaultConfig() *Config {
	return &Config{
		Answers:    4,
		Thresholds: DefaultThresholds(),
		Pipeline: PipelineConfig{
			Threshold:      200,
			BlurRadius:     3,
			MinBoxArea:     500,
			MinCircularity: 0.7,
			MaxCircularity: 0.85,
			DedupOrder:     DedupRowMajor,
		},
		Overlay: OverlayConfig{
			CheckedColor:   "#00C000",
			CorrectedColor: "#0000FF",
			Thickness:      4,
		},
		MQTT: MQTTConfig{
			PublishPrefix: "bubblegrade",
			ClientID:      "bubblegrade",
		},
		History: DefaultHistory,
	}
}

// LoadConfig loads the configuration from a YAML file. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks the configuration and normalizes the dedup order.
func (c *Config) Validate() error {
	if c.Answers < 2 {
		return fmt.Errorf("answers must be at least 2, got %d", c.Answers)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}

	p := &c.Pipeline
	if p.BlurRadius < 0 {
		return fmt.Errorf("pipeline.blurRadius must not be negative")
	}
	if p.MinBoxArea < 0 {
		return fmt.Errorf("pipeline.minBoxArea must not be negative")
	}
	if p.MinCircularity >= p.MaxCircularity {
		return fmt.Errorf("pipeline.minCircularity %.2f must be below maxCircularity %.2f", p.MinCircularity, p.MaxCircularity)
	}
	order, err := ParseDedupOrder(string(p.DedupOrder))
	if err != nil {
		return fmt.Errorf("pipeline.dedupOrder: %w", err)
	}
	p.DedupOrder = order

	if _, err := colorful.Hex(c.Overlay.CheckedColor); err != nil {
		return fmt.Errorf("overlay.checkedColor: %w", err)
	}
	if _, err := colorful.Hex(c.Overlay.CorrectedColor); err != nil {
		return fmt.Errorf("overlay.correctedColor: %w", err)
	}
	if c.Overlay.Thickness < 1 {
		return fmt.Errorf("overlay.thickness must be at least 1")
	}

	if len(c.Stations) > 0 && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when stations are defined")
	}
	seen := make(map[string]bool)
	for i, s := range c.Stations {
		if s.ID == "" {
			return fmt.Errorf("station[%d].id is required", i)
		}
		if s.Topic == "" {
			return fmt.Errorf("station[%d].topic is required for %s", i, s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("station[%d]: duplicate id %s", i, s.ID)
		}
		seen[s.ID] = true
		if s.Answers != 0 && s.Answers < 2 {
			return fmt.Errorf("station[%d].answers must be at least 2 for %s", i, s.ID)
		}
	}

	if c.History <= 0 {
		c.History = DefaultHistory
	}
	return nil
}
