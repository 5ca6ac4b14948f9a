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

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"quarry/internal/harness"
)

var (
	upConfigPath string
	upTopics     []string
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start a local RocketMQ topology in containers",
	Long: `Starts an isolated network, a NameServer node and a Broker node,
waits for readiness and route convergence, prints the host-side endpoints,
and blocks until interrupted. Teardown always runs, including on SIGINT.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := harness.DefaultConfig()
		if upConfigPath != "" {
			loaded, err := harness.LoadConfig(upConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			cfg = loaded
		}
		if len(upTopics) > 0 {
			cfg.Topics = append(cfg.Topics, upTopics...)
		}

		ctx := context.Background()
		h := harness.New(cfg)

		if err := h.Start(ctx); err != nil {
			return fmt.Errorf("failed to start harness: %w", err)
		}
		defer h.Stop(ctx)

		endpoint, err := h.RegistryEndpoint(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve registry endpoint: %w", err)
		}

		fmt.Printf("NameServer: %s\n", endpoint)
		fmt.Printf("Broker:     %s\n", h.BrokerEndpoint())
		fmt.Println("Press Ctrl+C to tear down")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down harness")
		return nil
	},
}

func init() {
	upCmd.Flags().StringVarP(&upConfigPath, "config", "c", "", "harness config file (YAML)")
	upCmd.Flags().StringSliceVarP(&upTopics, "topic", "t", nil, "topics to pre-create")
}
