package feed

import (
	"context"
	"fmt"
	"time"

	model "auction-bidding/internal/models"
	"auction-bidding/utils"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for Redis pub/sub
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisBroadcaster publishes accepted bids on "bid_events:<auctionID>" and
// relays the "bid_events:*" pattern into the local Hub.
type RedisBroadcaster struct {
	client *redis.Client
	hub    *Hub
	pubsub *redis.PubSub
}

// NewRedisBroadcaster connects to Redis and verifies the connection
func NewRedisBroadcaster(cfg RedisConfig, hub *Hub) (*RedisBroadcaster, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBroadcaster{client: rdb, hub: hub}, nil
}

// Publish sends bid to the auction's channel
func (b *RedisBroadcaster) Publish(ctx context.Context, bid model.Bid) error {
	data, err := encodeBid(bid)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, redisChannel(bid.AuctionID), data).Err(); err != nil {
		return fmt.Errorf("publish bid %s to Redis: %w", bid.BidID, err)
	}
	return nil
}

// Start pattern-subscribes to every auction channel and relays messages into
// the Hub until ctx ends. It returns once the subscription is confirmed.
func (b *RedisBroadcaster) Start(ctx context.Context) error {
	pattern := SubjectPrefix + ":*"
	pubsub := b.client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("psubscribe %s: %w", pattern, err)
	}
	b.pubsub = pubsub
	utils.Info("feed: relaying bids from Redis", map[string]any{"pattern": pattern})

	go b.listen(ctx, pubsub.Channel())
	return nil
}

func (b *RedisBroadcaster) listen(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			bid, err := decodeBid([]byte(msg.Payload))
			if err != nil {
				utils.Warn("feed: dropping malformed Redis message", map[string]any{
					"channel": msg.Channel,
					"error":   err.Error(),
				})
				continue
			}
			if id := auctionIDFromChannel(msg.Channel); id != bid.AuctionID {
				utils.Warn("feed: channel and payload disagree on auction", map[string]any{
					"channel":    msg.Channel,
					"auction_id": bid.AuctionID,
				})
				continue
			}
			_ = b.hub.Publish(ctx, bid)
		}
	}
}

// Close ends the subscription and the client
func (b *RedisBroadcaster) Close() error {
	if b.pubsub != nil {
		_ = b.pubsub.Close()
	}
	return b.client.Close()
}
