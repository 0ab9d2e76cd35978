// Package events emits outbound marketplace events for downstream
// consumers. The chat service subscribes to interest events to create or
// locate the conversation between a buyer and an interested seller; the
// core never waits for it.
package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// InterestChannel is the Redis pub/sub channel interest events go out on.
const InterestChannel = "marketplace:interest"

// Interest is published after a seller lands in a post's candidate set.
// The participant pair is everything the chat collaborator needs.
type Interest struct {
	PostID   string `json:"post_id"`
	BuyerID  string `json:"buyer_id"`
	SellerID string `json:"seller_id"`
}

// Publisher is the outbound event sink. Implementations must be safe
// for concurrent use.
type Publisher interface {
	PublishInterest(ctx context.Context, ev Interest) error
}

// RedisPublisher publishes events on a Redis pub/sub channel.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher returns a Publisher backed by the given client.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// PublishInterest sends the event; delivery is at-most-once and the
// caller is expected to treat failures as log-and-continue.
func (p *RedisPublisher) PublishInterest(ctx context.Context, ev Interest) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, InterestChannel, payload).Err()
}

// NopPublisher discards events; used when no Redis address is configured
// and in tests.
type NopPublisher struct{}

// PublishInterest implements Publisher.
func (NopPublisher) PublishInterest(ctx context.Context, ev Interest) error { return nil }
