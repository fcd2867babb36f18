package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	relayRetryInitial = 500 * time.Millisecond
	relayRetryMax     = 30 * time.Second
)

// relayRedis keeps a subscription to channel alive until ctx ends and hands every payload to
// handle. A broken subscription is logged and re-established with exponential backoff; the
// delay resets once a subscription is confirmed.
func relayRedis(ctx context.Context, client *redis.Client, channel string, logger zerolog.Logger, initial, maxDelay time.Duration, handle func([]byte)) {
	delay := initial
	for {
		err := relayOnce(ctx, client, channel, func() { delay = initial }, handle)
		if ctx.Err() != nil {
			return
		}
		logger.Warn().Err(err).Str("channel", channel).Dur("retry_in", delay).Msg("redis relay interrupted, resubscribing")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func relayOnce(ctx context.Context, client *redis.Client, channel string, subscribed func(), handle func([]byte)) error {
	pubsub := client.Subscribe(ctx, channel)
	defer func() { _ = pubsub.Close() }()

	// The first reply confirms the subscription or surfaces the connection error.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	subscribed()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		handle([]byte(msg.Payload))
	}
}
