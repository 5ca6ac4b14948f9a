package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"quarry/internal/app"
	"quarry/internal/mq"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo HTTP service against a running cluster",
	Long: `Runs the demo application: a producer endpoint and a received-message
view over HTTP, wired to an existing NameServer (e.g. one started by 'quarry up').`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := app.DefaultConfig()
		if serveConfigPath != "" {
			loaded, err := app.LoadConfig(serveConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			cfg = loaded
		}

		producer, err := mq.NewProducer(cfg.NameServer, cfg.ProducerGroup)
		if err != nil {
			return fmt.Errorf("failed to create producer: %w", err)
		}
		if err := producer.Start(); err != nil {
			return fmt.Errorf("failed to start producer: %w", err)
		}
		defer func() {
			if err := producer.Shutdown(); err != nil {
				log.Warn().Err(err).Msg("Producer shutdown failed")
			}
		}()

		recorder, err := mq.NewRecorder(cfg.NameServer, cfg.Topic, cfg.ConsumerGroup, cfg.TagSelector)
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
		if err := recorder.Start(); err != nil {
			return fmt.Errorf("failed to start consumer: %w", err)
		}
		defer func() {
			if err := recorder.Shutdown(); err != nil {
				log.Warn().Err(err).Msg("Consumer shutdown failed")
			}
		}()

		server := app.NewServer(cfg, producer, recorder)

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-sigCh:
			log.Info().Msg("Shutting down demo service")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "service config file (YAML)")
}
