package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRelayRedisResubscribesAfterOutage(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan string, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		relayRedis(ctx, client, "cbt.relay", testLogger(), 10*time.Millisecond, 50*time.Millisecond, func(payload []byte) {
			received <- string(payload)
		})
	}()

	deliver := func(payload string) bool {
		server.Publish("cbt.relay", payload)
		select {
		case got := <-received:
			return got == payload
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}

	require.Eventually(t, func() bool { return deliver("before") }, 2*time.Second, 20*time.Millisecond)

	server.Close()
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, server.Restart())

	require.Eventually(t, func() bool { return deliver("after") }, 3*time.Second, 20*time.Millisecond, "relay keeps running across a broken connection")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancellation")
	}
}
