// Package notify implements the optional wake-up side channel that lets a
// snoozing processor skip the rest of its snooze window when a job is
// submitted, without ever becoming the source of truth for scheduling
// decisions — the store poll stays authoritative; this only shortens the
// wait.
//
// Only a single-processor node's snooze waits on a Notifier; multi-processor
// nodes snooze on a plain timer. Nothing in this repository calls Publish:
// queue.Service.Submit, the submit-job command and the admin HTTP submit
// endpoint do not publish, so a Wait ends early only when some other client
// publishes on the channel.
package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clusterqueue/clusterqueue/internal/logger"
)

const channel = "clusterqueue:job-submitted"

// Notifier hands back a channel that closes either when a wake-up event
// arrives or when the requested duration elapses, whichever is first.
type Notifier interface {
	Publish(ctx context.Context) error
	Wait(ctx context.Context, d time.Duration) <-chan struct{}
	Close() error
}

// Noop never wakes early; every Wait runs the full duration. This is the
// default when notify.redis_addr is unset.
type Noop struct{}

func (Noop) Publish(context.Context) error { return nil }

func (Noop) Wait(_ context.Context, d time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		time.Sleep(d)
		close(done)
	}()
	return done
}

func (Noop) Close() error { return nil }

// Redis backs the wake-up channel with go-redis pub/sub. A missed or
// duplicated message is harmless: it only ever shortens or has no effect
// on a snooze, it never suppresses a poll.
type Redis struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedis(addr string, log *logger.Logger) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		log:    log.With("component", "notify.redis"),
	}
}

func (r *Redis) Publish(ctx context.Context) error {
	return r.client.Publish(ctx, channel, "1").Err()
}

func (r *Redis) Wait(ctx context.Context, d time.Duration) <-chan struct{} {
	done := make(chan struct{})
	sub := r.client.Subscribe(ctx, channel)
	go func() {
		defer close(done)
		defer sub.Close()
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-sub.Channel():
		case <-timer.C:
		case <-ctx.Done():
		}
	}()
	return done
}

func (r *Redis) Close() error {
	return r.client.Close()
}
