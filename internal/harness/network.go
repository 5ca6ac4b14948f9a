package harness

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
)

// createNetwork provisions the isolated fabric network the nodes attach
// to. Containers address each other by alias on this network, never by
// ephemeral IP or host-mapped port. A failure here means the container
// runtime itself is unavailable, which is fatal for the whole suite.
func createNetwork(ctx context.Context) (*testcontainers.DockerNetwork, error) {
	net, err := network.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create container network: %w", err)
	}
	return net, nil
}

// destroyNetwork is idempotent and best-effort. Teardown failures are
// logged, never returned, so cleanup cannot mask an earlier test failure.
func destroyNetwork(ctx context.Context, net *testcontainers.DockerNetwork, log zerolog.Logger) {
	if net == nil {
		return
	}
	if err := net.Remove(ctx); err != nil {
		log.Warn().
			Str("network", net.Name).
			Err(err).
			Msg("Failed to remove container network")
		return
	}
	log.Debug().Str("network", net.Name).Msg("Container network removed")
}
