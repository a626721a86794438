package feed

import (
	"context"
	"fmt"
	"time"

	model "auction-bidding/internal/models"
	"auction-bidding/utils"

	"github.com/nats-io/nats.go"
)

// NATSConfig holds connection settings for the NATS bus
type NATSConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns settings for a local NATS server
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "auction-bidding",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSBroadcaster publishes accepted bids on "bid_events.<auctionID>" and
// relays every bid seen on the bus into the local Hub, so viewers connected to
// any instance are notified.
type NATSBroadcaster struct {
	nc  *nats.Conn
	hub *Hub
	sub *nats.Subscription
}

// NewNATSBroadcaster connects to NATS
func NewNATSBroadcaster(cfg NATSConfig, hub *Hub) (*NATSBroadcaster, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			utils.Warn("feed: NATS disconnected, viewers fall back to re-fetching", map[string]any{"error": fmt.Sprint(err)})
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			utils.Info("feed: NATS reconnected", map[string]any{"url": nc.ConnectedUrl()})
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			utils.Error("feed: NATS error", map[string]any{"error": err.Error()})
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSBroadcaster{nc: nc, hub: hub}, nil
}

// Publish sends bid to the bus
func (b *NATSBroadcaster) Publish(_ context.Context, bid model.Bid) error {
	data, err := encodeBid(bid)
	if err != nil {
		return err
	}
	if err := b.nc.Publish(natsSubject(bid.AuctionID), data); err != nil {
		return fmt.Errorf("publish bid %s to NATS: %w", bid.BidID, err)
	}
	return nil
}

// Start subscribes to all bid subjects and relays them into the Hub until ctx ends
func (b *NATSBroadcaster) Start(ctx context.Context) error {
	sub, err := b.nc.Subscribe(SubjectPrefix+".>", b.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe to %s.>: %w", SubjectPrefix, err)
	}
	b.sub = sub
	utils.Info("feed: relaying bids from NATS", map[string]any{"subject": SubjectPrefix + ".>"})

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
			utils.Warn("feed: NATS unsubscribe failed", map[string]any{"error": err.Error()})
		}
	}()
	return nil
}

func (b *NATSBroadcaster) handleMessage(msg *nats.Msg) {
	bid, err := decodeBid(msg.Data)
	if err != nil {
		utils.Warn("feed: dropping malformed NATS message", map[string]any{
			"subject": msg.Subject,
			"error":   err.Error(),
		})
		return
	}
	_ = b.hub.Publish(context.Background(), bid)
}

// Close drains the subscription and closes the connection
func (b *NATSBroadcaster) Close() error {
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
