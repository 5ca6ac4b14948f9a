//go:build integration
// +build integration

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

// End-to-end tests against real containers. Requires a local container
// runtime:
//
//	go test -tags=integration -v ./test/e2e -count=1
package e2e_test

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarry/internal/harness"
	"quarry/internal/mq"
)

const (
	testTopic = "TEST_TOPIC"
	testTag   = "TEST_TAG"
)

var (
	suite         *harness.Harness
	nameServerURL string
)

// TestMain owns the suite-scoped harness: one topology for every test in
// this package, torn down on all exit paths.
func TestMain(m *testing.M) {
	cfg := harness.DefaultConfig()
	cfg.Topics = []string{testTopic}

	suite = harness.New(cfg)
	ctx := context.Background()

	if err := suite.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "harness start failed: %v\n", err)
		suite.Stop(ctx)
		os.Exit(1)
	}

	endpoint, err := suite.RegistryEndpoint(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "registry endpoint unavailable: %v\n", err)
		suite.Stop(ctx)
		os.Exit(1)
	}
	nameServerURL = endpoint

	code := m.Run()
	suite.Stop(ctx)
	os.Exit(code)
}

func newSuiteProducer(t *testing.T) *mq.Producer {
	t.Helper()
	producer, err := mq.NewProducer(nameServerURL, "")
	require.NoError(t, err)
	require.NoError(t, producer.Start())
	t.Cleanup(func() { _ = producer.Shutdown() })
	return producer
}

func newSuiteRecorder(t *testing.T) *mq.Recorder {
	t.Helper()
	recorder, err := mq.NewRecorder(nameServerURL, testTopic, "", mq.TagAll)
	require.NoError(t, err)
	require.NoError(t, recorder.Start())
	t.Cleanup(func() { _ = recorder.Shutdown() })
	return recorder
}

func TestRegistryEndpointAcceptsConnections(t *testing.T) {
	// The endpoint must accept a connection within 1 second of Start
	// having returned.
	conn, err := net.DialTimeout("tcp", nameServerURL, time.Second)
	require.NoError(t, err, "registry endpoint did not accept a connection")
	_ = conn.Close()

	require.True(t, suite.Started())
}

func TestClusterVisibleFromAdmin(t *testing.T) {
	out, err := suite.ClusterList(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "DefaultCluster")
	assert.Contains(t, out, "broker-a")
}

func TestCreateTopicIsIdempotent(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, suite.CreateTopic(ctx, testTopic))

	// Already converged at suite start: this must return quickly
	start := time.Now()
	require.NoError(t, suite.CreateTopic(ctx, testTopic))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestSendAndConsumeSingleMessage(t *testing.T) {
	recorder := newSuiteRecorder(t)
	producer := newSuiteProducer(t)

	latch := recorder.Expect(1)

	msgID, err := producer.SendSync(context.Background(), testTopic, testTag, "m1")
	require.NoError(t, err)
	require.NotEmpty(t, msgID)

	require.True(t, latch.Wait(5*time.Second), "message was not consumed within 5s")
	assert.Equal(t, []string{"m1"}, recorder.Messages())
}

func TestSequentialSendThroughput(t *testing.T) {
	producer := newSuiteProducer(t)
	ctx := context.Background()

	const count = 100
	start := time.Now()
	for i := 0; i < count; i++ {
		msgID, err := producer.SendSync(ctx, testTopic, testTag, fmt.Sprintf("perf #%d", i))
		require.NoError(t, err)
		require.NotEmpty(t, msgID)
	}
	elapsed := time.Since(start)

	avg := float64(elapsed.Milliseconds()) / float64(count)
	assert.Less(t, avg, 100.0, "average send latency regression: %.2f ms", avg)
}

func TestPacedBatchReusesRoute(t *testing.T) {
	// Route readiness was established once at suite start; paced sends
	// must keep succeeding without any re-polling.
	producer := newSuiteProducer(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		msgID, err := producer.SendSync(ctx, testTopic, testTag, fmt.Sprintf("batch #%d", i))
		require.NoError(t, err, "paced send %d failed", i)
		require.NotEmpty(t, msgID)
		time.Sleep(50 * time.Millisecond)
	}
}

func TestKeyedSend(t *testing.T) {
	producer := newSuiteProducer(t)

	msgID, err := producer.SendSyncWithKey(context.Background(),
		testTopic, testTag, fmt.Sprintf("ORDER_%d", time.Now().UnixMilli()), "order payload")
	require.NoError(t, err)
	require.NotEmpty(t, msgID)
}

func TestAsyncSendCompletes(t *testing.T) {
	producer := newSuiteProducer(t)

	done, err := producer.SendAsync(context.Background(), testTopic, testTag, "async m1")
	require.NoError(t, err)

	select {
	case outcome := <-done:
		require.NoError(t, outcome.Err)
		assert.NotEmpty(t, outcome.MsgID)
	case <-time.After(10 * time.Second):
		t.Fatal("async send completion signal never arrived")
	}
}

func TestUnreachableAdvertiseAddressFailsFast(t *testing.T) {
	// Regression guard for the dominant failure mode: a broker that
	// advertises an address the host cannot reach must make host-side
	// sends fail with a routing-class error inside the send timeout,
	// not hang. 203.0.113.0/24 is reserved and never routable.
	cfg := harness.DefaultConfig()
	cfg.AdvertiseAddress = "203.0.113.1"
	cfg.BrokerPort = 11911 // keep clear of the suite harness's fixed ports
	cfg.NameserverAlias = "nameserver-misconfigured"

	bad := harness.New(cfg)
	ctx := context.Background()
	require.NoError(t, bad.Start(ctx))
	defer bad.Stop(ctx)

	endpoint, err := bad.RegistryEndpoint(ctx)
	require.NoError(t, err)
	require.NoError(t, bad.CreateTopic(ctx, "UNREACHABLE_TOPIC"))

	producer, err := mq.NewProducer(endpoint, "")
	require.NoError(t, err)
	require.NoError(t, producer.Start())
	defer producer.Shutdown()

	start := time.Now()
	_, err = producer.SendSync(ctx, "UNREACHABLE_TOPIC", testTag, "m1")
	elapsed := time.Since(start)

	require.Error(t, err, "send must fail when the advertised address is unreachable")
	assert.Less(t, elapsed, 3*mq.DefaultSendTimeout, "send must fail within the declared timeout, not hang")
}

func TestStopAfterFailedSetup(t *testing.T) {
	// A nonexistent image makes startup fail after the network exists;
	// Stop on the partially-started harness must complete quietly.
	cfg := harness.DefaultConfig()
	cfg.NameserverImage = "apache/rocketmq:does-not-exist"
	cfg.StartupTimeout = harness.Duration(30 * time.Second)

	broken := harness.New(cfg)
	ctx := context.Background()

	err := broken.Start(ctx)
	require.Error(t, err)
	require.False(t, broken.Started())

	broken.Stop(ctx) // must not panic or error
}

func TestDeleteTopic(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, suite.CreateTopic(ctx, "EPHEMERAL_TOPIC"))
	require.NoError(t, suite.DeleteTopic(ctx, "EPHEMERAL_TOPIC"))
}
