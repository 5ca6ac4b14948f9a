package harness

import (
	"context"
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// nameserverPort is the registry listen port in nat form
var nameserverPort = nat.Port(fmt.Sprintf("%d/tcp", NameserverPort))

// startNameserver boots the registry node on the fabric network under a
// stable alias and blocks until it accepts connections. The host-side
// mapping of port 9876 is dynamic; clients read it via RegistryEndpoint.
func startNameserver(ctx context.Context, net *testcontainers.DockerNetwork, cfg *Config) (testcontainers.Container, error) {
	req := testcontainers.ContainerRequest{
		Image:        cfg.NameserverImage,
		ExposedPorts: []string{string(nameserverPort)},
		Cmd:          []string{"sh", "mqnamesrv"},
		Networks:     []string{net.Name},
		NetworkAliases: map[string][]string{
			net.Name: {cfg.NameserverAlias},
		},
		WaitingFor: wait.ForListeningPort(nameserverPort).
			WithStartupTimeout(cfg.StartupTimeout.Std()),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, &StartupTimeoutError{
			Node:    "nameserver",
			Timeout: cfg.StartupTimeout.Std(),
			Err:     err,
		}
	}

	return container, nil
}
