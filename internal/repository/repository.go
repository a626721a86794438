package repository

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

import (
	"context"
	"fmt"
	"sync"

	"auction-bidding/internal/biddingerrors"
	model "auction-bidding/internal/models"
)

// DecideFunc inspects the locked auction and returns the bid to append, or an
// error to reject it. It runs inside the per-auction critical section, so
// anything it reads is current as of commit.
type DecideFunc func(auction model.Auction) (model.Bid, error)

// AuctionDB defines the auction and bid storage interface
type AuctionDB interface {
	CreateAuction(ctx context.Context, auction model.Auction) error
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	// AcceptBid serializes with every other AcceptBid on the same auction. When
	// decide succeeds the bid is appended and the auction's current maximum is
	// set to the bid amount before the lock is released.
	AcceptBid(ctx context.Context, auctionID string, decide DecideFunc) (model.Bid, error)
	// GetBidsByAuction returns the history newest first
	GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, auctionID string) (model.Bid, error)
	GetAuctionsByBidder(ctx context.Context, bidderID string) ([]model.Auction, error)
}

type auctionEntry struct {
	mu      sync.Mutex
	auction model.Auction
	bids    []model.Bid // oldest first
}

// accept runs decide and records its bid while holding the auction lock
func (e *auctionEntry) accept(decide DecideFunc) (model.Bid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bid, err := decide(e.auction)
	if err != nil {
		return model.Bid{}, err
	}
	e.bids = append(e.bids, bid)
	e.auction.CurrentMaximumBid = bid.Amount
	return bid, nil
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB.
// Bids on different auctions never contend: each auction has its own lock.
type MemoryRepo struct {
	mu       sync.RWMutex
	auctions map[string]*auctionEntry // key: auctionID

	bidderMu       sync.RWMutex
	bidderAuctions map[string][]string // key: bidderID -> auctionIDs in first-bid order
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:       make(map[string]*auctionEntry),
		bidderAuctions: make(map[string][]string),
	}
}

// CreateAuction stores a new auction
func (r *MemoryRepo) CreateAuction(_ context.Context, auction model.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[auction.AuctionID]; ok {
		return fmt.Errorf("create auction %s: %w", auction.AuctionID, biddingerrors.ErrAuctionExists)
	}
	r.auctions[auction.AuctionID] = &auctionEntry{auction: auction}
	return nil
}

// GetAuction returns a snapshot of an auction
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	entry, err := r.entry(auctionID)
	if err != nil {
		return model.Auction{}, fmt.Errorf("get auction: %w", err)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.auction, nil
}

// AcceptBid runs decide under the auction's lock and records its bid
func (r *MemoryRepo) AcceptBid(_ context.Context, auctionID string, decide DecideFunc) (model.Bid, error) {
	entry, err := r.entry(auctionID)
	if err != nil {
		return model.Bid{}, fmt.Errorf("accept bid: %w", err)
	}

	bid, err := entry.accept(decide)
	if err != nil {
		return model.Bid{}, err
	}

	r.trackBidder(bid.BidderID, auctionID)
	return bid, nil
}

// GetBidsByAuction returns all bids for an auction, newest first
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	entry, err := r.entry(auctionID)
	if err != nil {
		return nil, fmt.Errorf("get bids for auction: %w", err)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	bids := make([]model.Bid, 0, len(entry.bids))
	for i := len(entry.bids) - 1; i >= 0; i-- {
		bids = append(bids, entry.bids[i])
	}
	return bids, nil
}

// GetWinningBid returns the highest bid for an auction
func (r *MemoryRepo) GetWinningBid(_ context.Context, auctionID string) (model.Bid, error) {
	entry, err := r.entry(auctionID)
	if err != nil {
		return model.Bid{}, fmt.Errorf("get winning bid: %w", err)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if len(entry.bids) == 0 {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	// accepted amounts are strictly increasing, so the last bid is the highest
	return entry.bids[len(entry.bids)-1], nil
}

// GetAuctionsByBidder returns all auctions a bidder has bid on
func (r *MemoryRepo) GetAuctionsByBidder(ctx context.Context, bidderID string) ([]model.Auction, error) {
	r.bidderMu.RLock()
	ids := append([]string(nil), r.bidderAuctions[bidderID]...)
	r.bidderMu.RUnlock()

	if len(ids) == 0 {
		return nil, fmt.Errorf("get auctions for bidder %s: %w", bidderID, biddingerrors.ErrBidderNoBids)
	}

	auctions := make([]model.Auction, 0, len(ids))
	for _, id := range ids {
		auction, err := r.GetAuction(ctx, id)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}
	return auctions, nil
}

func (r *MemoryRepo) entry(auctionID string) (*auctionEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return entry, nil
}

func (r *MemoryRepo) trackBidder(bidderID, auctionID string) {
	r.bidderMu.Lock()
	defer r.bidderMu.Unlock()

	for _, id := range r.bidderAuctions[bidderID] {
		if id == auctionID {
			return
		}
	}
	r.bidderAuctions[bidderID] = append(r.bidderAuctions[bidderID], auctionID)
}
