// Package feed fans accepted bids out to everyone watching an auction.
//
// Delivery is best-effort: a subscriber whose buffer is full misses the
// notification and is expected to recover by re-fetching the bid history.
package feed

import (
	"context"
	"sync"

	model "auction-bidding/internal/models"
	"auction-bidding/utils"
)

// Publisher announces an accepted bid to every subscriber of its auction
type Publisher interface {
	Publish(ctx context.Context, bid model.Bid) error
}

const defaultSubscriberBuffer = 64

// Hub is an in-process publish/subscribe registry keyed by auction ID
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]map[*Subscription]struct{}
	bufferSize int
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithSubscriberBuffer sets how many undelivered bids a subscriber may queue
func WithSubscriberBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// NewHub creates an empty Hub
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:       make(map[string]map[*Subscription]struct{}),
		bufferSize: defaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscription is a live registration for one auction's bids
type Subscription struct {
	ID        string
	AuctionID string

	hub    *Hub
	queue  chan model.Bid
	done   chan struct{}
	once   sync.Once
	exited chan struct{}
}

// Subscribe registers onNewBid for bids on auctionID. Callbacks for one
// subscription run sequentially on a dedicated goroutine, in publish order.
func (h *Hub) Subscribe(auctionID string, onNewBid func(model.Bid)) *Subscription {
	sub := &Subscription{
		ID:        utils.GenerateID(),
		AuctionID: auctionID,
		hub:       h,
		queue:     make(chan model.Bid, h.bufferSize),
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[auctionID] == nil {
		h.subs[auctionID] = make(map[*Subscription]struct{})
	}
	h.subs[auctionID][sub] = struct{}{}
	h.mu.Unlock()

	go sub.deliver(onNewBid)

	utils.Debug("feed: subscription registered", map[string]any{
		"subscription_id": sub.ID,
		"auction_id":      auctionID,
	})
	return sub
}

// Publish hands bid to every current subscriber of its auction without blocking
func (h *Hub) Publish(_ context.Context, bid model.Bid) error {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs[bid.AuctionID]))
	for sub := range h.subs[bid.AuctionID] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		select {
		case <-sub.done:
		case sub.queue <- bid:
		default:
			utils.Warn("feed: subscriber buffer full, dropping notification", map[string]any{
				"subscription_id": sub.ID,
				"auction_id":      bid.AuctionID,
				"bid_id":          bid.BidID,
			})
		}
	}
	return nil
}

// SubscriberCount reports how many subscriptions an auction has
func (h *Hub) SubscriberCount(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[auctionID])
}

// Cancel stops delivery. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		if subs, ok := s.hub.subs[s.AuctionID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.hub.subs, s.AuctionID)
			}
		}
		s.hub.mu.Unlock()
		close(s.done)

		utils.Debug("feed: subscription cancelled", map[string]any{
			"subscription_id": s.ID,
			"auction_id":      s.AuctionID,
		})
	})
}

// Done is closed once the subscription's delivery goroutine has exited
func (s *Subscription) Done() <-chan struct{} {
	return s.exited
}

func (s *Subscription) deliver(onNewBid func(model.Bid)) {
	defer close(s.exited)
	for {
		select {
		case <-s.done:
			return
		case bid := <-s.queue:
			onNewBid(bid)
		}
	}
}
