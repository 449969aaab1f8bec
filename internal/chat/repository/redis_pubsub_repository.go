package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"campus_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{
		client: client,
	}
}

// Publish serialize the frame and publish it to channel
func (r *RedisPubSub) Publish(ctx context.Context, channel string, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe listen on channel and call handler for every frame until ctx
// is cancelled
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func(f Frame)) error {
	sub := r.client.Subscribe(ctx, channel)
	go func() {
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var f Frame
				if err := json.Unmarshal([]byte(m.Payload), &f); err != nil {
					logger.Log.Errorf("pubsub frame decode failed:", err)
					continue
				}
				handler(f)

			case <-ctx.Done():
				logger.Log.Info(fmt.Sprintf("%s , sub close", channel))
				sub.Close()
				return
			}
		}
	}()
	return nil
}
