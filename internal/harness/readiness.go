package harness

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"

	"quarry/internal/logger"
)

// CommandRunner executes an admin command inside the data node's
// execution context and returns its exit code and combined output.
// Tests inject fakes; the real implementation wraps container exec.
type CommandRunner interface {
	Run(ctx context.Context, cmd []string) (int, string, error)
}

// containerRunner runs commands inside a live container
type containerRunner struct {
	container testcontainers.Container
}

func (r *containerRunner) Run(ctx context.Context, cmd []string) (int, string, error) {
	code, reader, err := r.container.Exec(ctx, cmd, tcexec.Multiplexed())
	if err != nil {
		return -1, "", fmt.Errorf("failed to exec command: %w", err)
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		return code, "", fmt.Errorf("failed to read command output: %w", err)
	}
	return code, string(out), nil
}

// PollState is the readiness loop's observable state
type PollState int

const (
	Polling PollState = iota
	Converged
	TimedOut
)

func (s PollState) String() string {
	switch s {
	case Polling:
		return "polling"
	case Converged:
		return "converged"
	case TimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// convergedCacheSize bounds the remembered set of converged topics
const convergedCacheSize = 128

// RouteWaiter drives topic route convergence: it re-issues admin commands
// against the data node until the registry-held route metadata reflects
// the topic's serving broker. A single create call returning success is
// not enough because broker-to-registry propagation is asynchronous, so
// every poll is two-phase: updateTopic must succeed AND a follow-up
// topicRoute query must show the broker-name marker.
//
// Not safe for concurrent calls on the same topic.
type RouteWaiter struct {
	runner       CommandRunner
	registryAddr string
	clusterName  string
	brokerName   string
	interval     time.Duration
	initialDelay time.Duration
	converged    *lru.Cache[string, time.Time]
	logger       zerolog.Logger
}

// NewRouteWaiter creates a waiter polling through the given runner
func NewRouteWaiter(runner CommandRunner, cfg *Config) *RouteWaiter {
	cache, _ := lru.New[string, time.Time](convergedCacheSize)
	return &RouteWaiter{
		runner:       runner,
		registryAddr: cfg.registryAddr(),
		clusterName:  cfg.ClusterName,
		brokerName:   cfg.BrokerName,
		interval:     cfg.PollInterval.Std(),
		initialDelay: cfg.PollDelay.Std(),
		converged:    cache,
		logger:       logger.New(),
	}
}

// AwaitTopicRoute blocks until the topic's route metadata has converged or
// the timeout elapses. Individual command failures are logged and retried;
// the overall bound produces a RouteTimeoutError. Re-invoking for an
// already-converged topic performs a single verification query only.
func (w *RouteWaiter) AwaitTopicRoute(ctx context.Context, topic string, timeout time.Duration) error {
	if _, ok := w.converged.Get(topic); ok {
		// One verification pass; no create call, no polling loop
		if err := w.queryRoute(ctx, topic); err == nil {
			return nil
		}
		// Route vanished since we last saw it; fall through and re-poll
		w.converged.Remove(topic)
	}

	deadline := time.Now().Add(timeout)
	state := Polling
	var lastErr error

	if w.initialDelay > 0 {
		select {
		case <-time.After(w.initialDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for state == Polling {
		if err := w.pollOnce(ctx, topic); err != nil {
			lastErr = err
			w.logger.Debug().
				Str("topic", topic).
				Str("state", state.String()).
				Err(err).
				Msg("Route not converged yet")
		} else {
			state = Converged
			break
		}

		if time.Now().After(deadline) {
			state = TimedOut
			break
		}

		select {
		case <-time.After(w.interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if state == TimedOut {
		return &RouteTimeoutError{Topic: topic, Timeout: timeout, LastErr: lastErr}
	}

	w.converged.Add(topic, time.Now())
	w.logger.Info().Str("topic", topic).Msg("Topic route converged")
	return nil
}

// pollOnce is one two-phase convergence check
func (w *RouteWaiter) pollOnce(ctx context.Context, topic string) error {
	if err := w.createTopic(ctx, topic); err != nil {
		return err
	}
	return w.queryRoute(ctx, topic)
}

// createTopic issues updateTopic and checks for the success marker
func (w *RouteWaiter) createTopic(ctx context.Context, topic string) error {
	cmd := []string{"sh", "mqadmin", "updateTopic",
		"-n", w.registryAddr,
		"-t", topic,
		"-c", w.clusterName,
	}
	return w.runChecked(ctx, cmd, "success")
}

// queryRoute issues topicRoute and checks that the route metadata names
// the serving broker, confirming propagation rather than mere acceptance
func (w *RouteWaiter) queryRoute(ctx context.Context, topic string) error {
	cmd := []string{"sh", "mqadmin", "topicRoute",
		"-n", w.registryAddr,
		"-t", topic,
	}
	return w.runChecked(ctx, cmd, w.brokerName)
}

// DeleteTopic removes the topic from the cluster and the registry, and
// drops it from the converged cache so a later await re-polls.
func (w *RouteWaiter) DeleteTopic(ctx context.Context, topic string) error {
	cmd := []string{"sh", "mqadmin", "deleteTopic",
		"-n", w.registryAddr,
		"-t", topic,
		"-c", w.clusterName,
	}
	if err := w.runChecked(ctx, cmd, "success"); err != nil {
		return err
	}
	w.converged.Remove(topic)
	return nil
}

// ClusterList returns the raw clusterList output, useful for diagnostics
func (w *RouteWaiter) ClusterList(ctx context.Context) (string, error) {
	cmd := []string{"sh", "mqadmin", "clusterList", "-n", w.registryAddr}
	code, out, err := w.runner.Run(ctx, cmd)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", &AdminCommandError{Command: strings.Join(cmd, " "), ExitCode: code, Output: out}
	}
	return out, nil
}

// runChecked runs a command and requires exit 0 plus a marker substring
func (w *RouteWaiter) runChecked(ctx context.Context, cmd []string, marker string) error {
	code, out, err := w.runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if code != 0 || !strings.Contains(out, marker) {
		return &AdminCommandError{
			Command:  strings.Join(cmd, " "),
			ExitCode: code,
			Output:   out,
		}
	}
	return nil
}
