package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// brokerConfPath is where the generated config lands in the container
	brokerConfPath = "/home/rocketmq/broker.conf"

	// brokerReadyPattern matches the broker's startup-complete log line
	brokerReadyPattern = `The broker.*boot success`
)

// startBroker boots the data node. It must register with the registry via
// the in-network alias, and at the same time advertise an address the host
// process can reach: the broker bakes its advertised address into the route
// metadata the registry hands to clients, so a container-internal address
// here is the classic "no route info" failure for host-side sends.
//
// Broker ports use fixed 1:1 host mapping because the advertised port is
// read from broker.conf once at boot and cannot track a dynamic mapping.
func startBroker(ctx context.Context, net *testcontainers.DockerNetwork, cfg *Config) (testcontainers.Container, error) {
	conf := renderBrokerConf(cfg)

	req := testcontainers.ContainerRequest{
		Image: cfg.BrokerImage,
		ExposedPorts: []string{
			fixedPort(cfg.brokerFastPort()),
			fixedPort(cfg.BrokerPort),
			fixedPort(cfg.brokerHAPort()),
		},
		Env: map[string]string{
			"NAMESRV_ADDR": cfg.registryAddr(),
		},
		Cmd:      []string{"sh", "mqbroker", "-c", brokerConfPath},
		Networks: []string{net.Name},
		NetworkAliases: map[string][]string{
			net.Name: {"broker"},
		},
		Files: []testcontainers.ContainerFile{
			{
				Reader:            strings.NewReader(conf),
				ContainerFilePath: brokerConfPath,
				FileMode:          0o644,
			},
		},
		WaitingFor: wait.ForLog(brokerReadyPattern).
			AsRegexp().
			WithStartupTimeout(cfg.StartupTimeout.Std()),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, &StartupTimeoutError{
			Node:    "broker",
			Timeout: cfg.StartupTimeout.Std(),
			Err:     err,
		}
	}

	return container, nil
}

// renderBrokerConf generates the broker configuration payload at start
// time. brokerIP1 is the advertise address; namesrvAddr must stay the
// in-network alias so intra-network registration works.
func renderBrokerConf(cfg *Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "brokerClusterName=%s\n", cfg.ClusterName)
	fmt.Fprintf(&b, "brokerName=%s\n", cfg.BrokerName)
	fmt.Fprintf(&b, "brokerId=0\n")
	fmt.Fprintf(&b, "namesrvAddr=%s\n", cfg.registryAddr())
	fmt.Fprintf(&b, "brokerIP1=%s\n", cfg.AdvertiseAddress)
	fmt.Fprintf(&b, "listenPort=%d\n", cfg.BrokerPort)
	fmt.Fprintf(&b, "deleteWhen=04\n")
	fmt.Fprintf(&b, "fileReservedTime=48\n")
	fmt.Fprintf(&b, "brokerRole=ASYNC_MASTER\n")
	fmt.Fprintf(&b, "flushDiskType=ASYNC_FLUSH\n")
	fmt.Fprintf(&b, "autoCreateTopicEnable=%t\n", cfg.AutoCreateTopics)
	fmt.Fprintf(&b, "autoCreateSubscriptionGroup=%t\n", cfg.AutoCreateTopics)
	return b.String()
}

// fixedPort renders a 1:1 host:container TCP port mapping
func fixedPort(port int) string {
	return fmt.Sprintf("%d:%d/tcp", port, port)
}
