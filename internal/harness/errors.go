package harness

import (
	"fmt"
	"time"
)

// StartupTimeoutError indicates a node never became ready within its
// startup bound. Fatal: a suite cannot run without the infrastructure.
type StartupTimeoutError struct {
	Node    string
	Timeout time.Duration
	Err     error
}

func (e *StartupTimeoutError) Error() string {
	return fmt.Sprintf("%s did not become ready within %s: %v", e.Node, e.Timeout, e.Err)
}

func (e *StartupTimeoutError) Unwrap() error {
	return e.Err
}

// RouteTimeoutError indicates the infrastructure is up but topic routing
// metadata never converged within the polling bound. Distinguished from
// StartupTimeoutError because the remediation differs: this one usually
// means a broker advertise-address or network misconfiguration.
type RouteTimeoutError struct {
	Topic   string
	Timeout time.Duration
	LastErr error
}

func (e *RouteTimeoutError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("route for topic %q did not converge within %s (last error: %v)", e.Topic, e.Timeout, e.LastErr)
	}
	return fmt.Sprintf("route for topic %q did not converge within %s", e.Topic, e.Timeout)
}

func (e *RouteTimeoutError) Unwrap() error {
	return e.LastErr
}

// AdminCommandError reports a single failed mqadmin invocation. Recovered
// locally by the readiness poll loop; surfaced only as the LastErr of a
// RouteTimeoutError or from one-shot admin operations.
type AdminCommandError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *AdminCommandError) Error() string {
	return fmt.Sprintf("admin command %q failed (exit %d): %s", e.Command, e.ExitCode, truncate(e.Output, 240))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
