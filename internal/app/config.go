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

package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config wires the demo service to a running cluster. The name server
// address is the single connection-string property clients need.
type Config struct {
	ListenAddr    string `yaml:"listen_addr"`
	NameServer    string `yaml:"name_server"`
	ProducerGroup string `yaml:"producer_group"`
	Topic         string `yaml:"topic"`
	ConsumerGroup string `yaml:"consumer_group"`
	TagSelector   string `yaml:"tag_selector"`
}

// DefaultConfig returns the demo defaults
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:    ":8080",
		NameServer:    "127.0.0.1:9876",
		ProducerGroup: "quarry-demo-producer",
		Topic:         "DEMO_TOPIC",
		ConsumerGroup: "quarry-demo-consumer",
		TagSelector:   "*",
	}
}

// LoadConfig loads the service configuration from a YAML file
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
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.NameServer == "" {
		return fmt.Errorf("name_server is required")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	return nil
}
