package harness

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"

	"quarry/internal/logger"
)

// Harness owns the container topology for one test suite: the fabric
// network, the registry (nameserver) node and the data (broker) node.
// Startup is sequential on the calling goroutine; the broker depends on
// the registry being fully ready, so there is nothing to parallelize.
// No other component may start or stop the handles the harness holds.
type Harness struct {
	cfg *Config

	network    *testcontainers.DockerNetwork
	nameserver testcontainers.Container
	broker     testcontainers.Container
	waiter     *RouteWaiter

	logger  zerolog.Logger
	mutex   sync.Mutex
	started bool
}

// New creates a harness from the given config, applying defaults for a
// nil config
func New(cfg *Config) *Harness {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Harness{
		cfg:    cfg,
		logger: logger.New(),
	}
}

// Start brings the topology up in dependency order: network, registry,
// data node, then route convergence for any pre-declared topics. On any
// failure the partially-started pieces are torn down before returning.
func (h *Harness) Start(ctx context.Context) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.started {
		return fmt.Errorf("harness already started")
	}

	h.logger.Info().
		Str("cluster", h.cfg.ClusterName).
		Str("nameserver_image", h.cfg.NameserverImage).
		Str("broker_image", h.cfg.BrokerImage).
		Msg("Starting RocketMQ harness")

	net, err := createNetwork(ctx)
	if err != nil {
		return err
	}
	h.network = net

	nameserver, err := startNameserver(ctx, net, h.cfg)
	if err != nil {
		h.teardown(ctx)
		return fmt.Errorf("failed to start nameserver: %w", err)
	}
	h.nameserver = nameserver

	h.logger.Info().
		Str("alias", h.cfg.NameserverAlias).
		Msg("Nameserver ready")

	broker, err := startBroker(ctx, net, h.cfg)
	if err != nil {
		h.teardown(ctx)
		return fmt.Errorf("failed to start broker: %w", err)
	}
	h.broker = broker
	h.waiter = NewRouteWaiter(&containerRunner{container: broker}, h.cfg)

	h.logger.Info().
		Str("broker", h.cfg.BrokerName).
		Str("advertise_address", h.cfg.AdvertiseAddress).
		Msg("Broker ready")

	for _, topic := range h.cfg.Topics {
		if err := h.waiter.AwaitTopicRoute(ctx, topic, h.cfg.RouteTimeout.Std()); err != nil {
			h.teardown(ctx)
			return fmt.Errorf("failed to prepare topic %q: %w", topic, err)
		}
	}

	h.started = true
	h.logger.Info().Msg("RocketMQ harness started")
	return nil
}

// Stop tears the topology down in reverse order. It is idempotent, safe
// on a partially-started harness, and never returns an error: individual
// teardown failures are logged so cleanup cannot mask a test failure.
func (h *Harness) Stop(ctx context.Context) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.teardown(ctx)
	h.started = false
	h.logger.Info().Msg("RocketMQ harness stopped")
}

// teardown does the reverse-order cleanup; callers hold the mutex
func (h *Harness) teardown(ctx context.Context) {
	if h.broker != nil {
		if err := h.broker.Terminate(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to terminate broker container")
		}
		h.broker = nil
		h.waiter = nil
	}

	if h.nameserver != nil {
		if err := h.nameserver.Terminate(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to terminate nameserver container")
		}
		h.nameserver = nil
	}

	if h.network != nil {
		destroyNetwork(ctx, h.network, h.logger)
		h.network = nil
	}
}

// Started reports whether Start has completed successfully
func (h *Harness) Started() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.started
}

// RegistryEndpoint returns the host-reachable address of the registry,
// reflecting the actual bound host port for the dynamic mapping.
func (h *Harness) RegistryEndpoint(ctx context.Context) (string, error) {
	h.mutex.Lock()
	nameserver := h.nameserver
	h.mutex.Unlock()

	if nameserver == nil {
		return "", fmt.Errorf("harness is not started")
	}

	host, err := nameserver.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve nameserver host: %w", err)
	}
	port, err := nameserver.MappedPort(ctx, nameserverPort)
	if err != nil {
		return "", fmt.Errorf("failed to resolve nameserver port: %w", err)
	}

	return fmt.Sprintf("%s:%s", host, port.Port()), nil
}

// BrokerEndpoint returns the host-reachable broker address. The broker
// uses fixed 1:1 port mapping, so this is the advertise address plus the
// listen port.
func (h *Harness) BrokerEndpoint() string {
	return fmt.Sprintf("%s:%d", h.cfg.AdvertiseAddress, h.cfg.BrokerPort)
}

// CreateTopic creates the topic and blocks until its route has converged
func (h *Harness) CreateTopic(ctx context.Context, name string) error {
	waiter, err := h.routeWaiter()
	if err != nil {
		return err
	}
	return waiter.AwaitTopicRoute(ctx, name, h.cfg.RouteTimeout.Std())
}

// DeleteTopic removes a topic from the cluster and registry
func (h *Harness) DeleteTopic(ctx context.Context, name string) error {
	waiter, err := h.routeWaiter()
	if err != nil {
		return err
	}
	return waiter.DeleteTopic(ctx, name)
}

// ClusterList returns the cluster summary as reported by the admin tool
func (h *Harness) ClusterList(ctx context.Context) (string, error) {
	waiter, err := h.routeWaiter()
	if err != nil {
		return "", err
	}
	return waiter.ClusterList(ctx)
}

func (h *Harness) routeWaiter() (*RouteWaiter, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.waiter == nil {
		return nil, fmt.Errorf("harness is not started")
	}
	return h.waiter, nil
}
