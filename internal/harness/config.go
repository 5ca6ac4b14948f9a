// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package harness

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultImage is the RocketMQ image used for both node types
	DefaultImage = "apache/rocketmq:4.9.4"

	// NameserverPort is the registry's well-known listen port
	NameserverPort = 9876

	// DefaultBrokerPort is the broker's main listen port. The fast and HA
	// channel ports are derived from it (listen-2 and listen+1, the
	// broker's own convention).
	DefaultBrokerPort = 10911
)

// Duration is a time.Duration that round-trips through YAML in its
// human-readable string form ("2m", "30s")
type Duration time.Duration

// UnmarshalYAML parses durations from strings like "2m"
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders durations in string form
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std converts to the standard library type
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config controls the container topology the harness boots
type Config struct {
	NameserverImage string `yaml:"nameserver_image"`
	BrokerImage     string `yaml:"broker_image"`

	ClusterName     string `yaml:"cluster_name"`
	BrokerName      string `yaml:"broker_name"`
	NameserverAlias string `yaml:"nameserver_alias"` // in-network DNS alias for the registry

	// AdvertiseAddress is the address the broker reports to the registry
	// for clients to connect to. It must be reachable from the host
	// process, not only from inside the container network.
	AdvertiseAddress string `yaml:"advertise_address"`

	// AutoCreateTopics enables broker-side topic auto-creation. Test/dev
	// convenience only; production clusters keep this off.
	AutoCreateTopics bool `yaml:"auto_create_topics"`

	// BrokerPort is the broker's main listen port, fixed-mapped 1:1 to
	// the host so the advertised route metadata stays host-valid
	BrokerPort int `yaml:"broker_port"`

	// Topics are pre-created (and their routes awaited) during Start
	Topics []string `yaml:"topics"`

	StartupTimeout Duration `yaml:"startup_timeout"`
	RouteTimeout   Duration `yaml:"route_timeout"`
	PollInterval   Duration `yaml:"poll_interval"`
	PollDelay      Duration `yaml:"poll_delay"`
}

// DefaultConfig returns a config suitable for local integration tests
func DefaultConfig() *Config {
	return &Config{
		NameserverImage:  DefaultImage,
		BrokerImage:      DefaultImage,
		ClusterName:      "DefaultCluster",
		BrokerName:       "broker-a",
		NameserverAlias:  "nameserver",
		AdvertiseAddress: "127.0.0.1",
		AutoCreateTopics: true,
		BrokerPort:       DefaultBrokerPort,
		StartupTimeout:   Duration(2 * time.Minute),
		RouteTimeout:     Duration(time.Minute),
		PollInterval:     Duration(2 * time.Second),
		PollDelay:        Duration(time.Second),
	}
}

// LoadConfig loads a harness configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.NameserverImage == "" {
		return fmt.Errorf("nameserver_image is required")
	}
	if c.BrokerImage == "" {
		return fmt.Errorf("broker_image is required")
	}
	if c.ClusterName == "" {
		return fmt.Errorf("cluster_name is required")
	}
	if c.BrokerName == "" {
		return fmt.Errorf("broker_name is required")
	}
	if c.NameserverAlias == "" {
		return fmt.Errorf("nameserver_alias is required")
	}
	if c.AdvertiseAddress == "" {
		return fmt.Errorf("advertise_address is required")
	}
	if c.BrokerPort < 1024 || c.BrokerPort > 65533 {
		return fmt.Errorf("broker_port must be in [1024, 65533]")
	}
	if c.StartupTimeout <= 0 {
		return fmt.Errorf("startup_timeout must be positive")
	}
	if c.RouteTimeout <= 0 {
		return fmt.Errorf("route_timeout must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	seen := make(map[string]bool)
	for i, topic := range c.Topics {
		if topic == "" {
			return fmt.Errorf("topics[%d] is empty", i)
		}
		if seen[topic] {
			return fmt.Errorf("duplicate topic: %s", topic)
		}
		seen[topic] = true
	}

	return nil
}

// Save saves the configuration to a YAML file
func (c *Config) Save(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// registryAddr is the registry address as seen from inside the fabric
// network. Containers must use this, never a host-mapped port.
func (c *Config) registryAddr() string {
	return fmt.Sprintf("%s:%d", c.NameserverAlias, NameserverPort)
}

// brokerFastPort and brokerHAPort follow the broker's derived-port
// convention relative to the main listen port.
func (c *Config) brokerFastPort() int { return c.BrokerPort - 2 }
func (c *Config) brokerHAPort() int   { return c.BrokerPort + 1 }
