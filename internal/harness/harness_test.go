package harness

import (
	"context"
	"strings"
	"testing"
)

func TestNewHarness(t *testing.T) {
	t.Run("nil config gets defaults", func(t *testing.T) {
		h := New(nil)
		if h.cfg == nil {
			t.Fatal("Expected default config")
		}
		if h.cfg.ClusterName != "DefaultCluster" {
			t.Errorf("Expected default cluster name, got %s", h.cfg.ClusterName)
		}
	})

	t.Run("not started until Start succeeds", func(t *testing.T) {
		h := New(nil)
		if h.Started() {
			t.Error("Expected new harness to report not started")
		}
	})
}

func TestStopOnPartialState(t *testing.T) {
	// Teardown must be safe on a harness that never started (or failed
	// mid-start): no panic, no error, nothing left behind.
	t.Run("stop on never-started harness", func(t *testing.T) {
		h := New(nil)
		h.Stop(context.Background())

		if h.Started() {
			t.Error("Expected harness to remain not-started")
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		h := New(nil)
		h.Stop(context.Background())
		h.Stop(context.Background())
	})
}

func TestAccessorsBeforeStart(t *testing.T) {
	h := New(nil)
	ctx := context.Background()

	if _, err := h.RegistryEndpoint(ctx); err == nil {
		t.Error("Expected RegistryEndpoint to fail before Start")
	}
	if err := h.CreateTopic(ctx, "T"); err == nil {
		t.Error("Expected CreateTopic to fail before Start")
	}
	if err := h.DeleteTopic(ctx, "T"); err == nil {
		t.Error("Expected DeleteTopic to fail before Start")
	}
	if _, err := h.ClusterList(ctx); err == nil {
		t.Error("Expected ClusterList to fail before Start")
	}
}

func TestBrokerEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdvertiseAddress = "10.0.0.5"
	h := New(cfg)

	if got := h.BrokerEndpoint(); got != "10.0.0.5:10911" {
		t.Errorf("Expected advertised endpoint 10.0.0.5:10911, got %s", got)
	}
}

func TestRenderBrokerConf(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdvertiseAddress = "192.168.7.7"
	cfg.AutoCreateTopics = true

	conf := renderBrokerConf(cfg)

	for _, want := range []string{
		"brokerClusterName=DefaultCluster",
		"brokerName=broker-a",
		"brokerId=0",
		"namesrvAddr=nameserver:9876",
		"brokerIP1=192.168.7.7",
		"listenPort=10911",
		"autoCreateTopicEnable=true",
	} {
		if !strings.Contains(conf, want) {
			t.Errorf("Expected broker.conf to contain %q, got:\n%s", want, conf)
		}
	}

	// The broker must register via the in-network alias, never a
	// host-mapped address.
	if strings.Contains(conf, "namesrvAddr=127.0.0.1") || strings.Contains(conf, "namesrvAddr=localhost") {
		t.Error("broker.conf must not point namesrvAddr at a host address")
	}
}

func TestFixedPort(t *testing.T) {
	if got := fixedPort(10911); got != "10911:10911/tcp" {
		t.Errorf("Expected 1:1 tcp mapping, got %s", got)
	}
}
