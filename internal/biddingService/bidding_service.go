package bidding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"auction-bidding/internal/biddingerrors"
	"auction-bidding/internal/feed"
	"auction-bidding/internal/lifecycle"
	"auction-bidding/internal/models"
	"auction-bidding/internal/repository"
	"auction-bidding/utils"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

// BiddingService defines the business logic for auction bidding
type BiddingService struct {
	repo      repository.AuctionDB
	hub       *feed.Hub
	publisher feed.Publisher
	clock     clockwork.Clock
}

// Option configures a BiddingService
type Option func(*BiddingService)

// WithClock overrides the clock used for lifecycle checks and timestamps
func WithClock(clock clockwork.Clock) Option {
	return func(s *BiddingService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithFeed sets the hub viewers subscribe to and the publisher accepted bids
// are announced on. With a bus broadcaster the publisher differs from the hub;
// the broadcaster relays bus traffic back into the hub.
func WithFeed(hub *feed.Hub, publisher feed.Publisher) Option {
	return func(s *BiddingService) {
		if hub != nil {
			s.hub = hub
		}
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, opts ...Option) *BiddingService {
	hub := feed.NewHub()
	s := &BiddingService{
		repo:      repo,
		hub:       hub,
		publisher: hub,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAuctionInput describes a new auction-type listing
type CreateAuctionInput struct {
	SellerID         string
	Title            string
	Description      string
	StartingPrice    decimal.Decimal
	MinimumIncrement decimal.Decimal
	StartTime        time.Time
	EndTime          time.Time
}

// SubmitBidInput is a proposed bid. Bidder identity and display data come
// from the caller; the service never looks them up.
type SubmitBidInput struct {
	AuctionID string
	BidderID  string
	Amount    decimal.Decimal
	Bidder    models.BidderMeta
}

// Amounts carry at most MaxAmountScale decimal places and
// MaxAmountIntegerDigits digits before the point.
const (
	MaxAmountScale         = 4
	MaxAmountIntegerDigits = 18

	maxAmountTextLen = 64

	// timePrecision is the finest instant every store round-trips
	timePrecision = time.Microsecond
)

// ParseAmount converts client text into a bid amount. Anything that is not a
// finite decimal number within the amount bounds fails with ErrInvalidAmount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("service: %w - empty amount", biddingerrors.ErrInvalidAmount)
	}
	if len(s) > maxAmountTextLen {
		return decimal.Decimal{}, fmt.Errorf("service: %w - amount text longer than %d characters", biddingerrors.ErrInvalidAmount, maxAmountTextLen)
	}
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "nan", "inf", "infinity":
		return decimal.Decimal{}, fmt.Errorf("service: %w - %q is not finite", biddingerrors.ErrInvalidAmount, s)
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("service: %w - %q is not a number", biddingerrors.ErrInvalidAmount, s)
	}
	// bound the exponent before anything expands it into digits
	exp := amount.Exponent()
	if exp < -MaxAmountScale || exp > MaxAmountIntegerDigits {
		return decimal.Decimal{}, fmt.Errorf("service: %w - %q is out of range", biddingerrors.ErrInvalidAmount, s)
	}
	if amount.NumDigits()+int(exp) > MaxAmountIntegerDigits {
		return decimal.Decimal{}, fmt.Errorf("service: %w - %q has more than %d integer digits", biddingerrors.ErrInvalidAmount, s, MaxAmountIntegerDigits)
	}
	return amount, nil
}

// CreateAuction validates and stores a new auction whose current maximum
// starts at the starting price
func (s *BiddingService) CreateAuction(ctx context.Context, in CreateAuctionInput) (models.Auction, error) {
	in.StartTime = in.StartTime.UTC().Truncate(timePrecision)
	in.EndTime = in.EndTime.UTC().Truncate(timePrecision)
	if err := validateAuction(in); err != nil {
		return models.Auction{}, err
	}

	auction := models.Auction{
		AuctionID:         utils.GenerateID(),
		SellerID:          in.SellerID,
		Title:             in.Title,
		Description:       in.Description,
		StartingPrice:     in.StartingPrice,
		MinimumIncrement:  in.MinimumIncrement,
		CurrentMaximumBid: in.StartingPrice,
		StartTime:         in.StartTime,
		EndTime:           in.EndTime,
		CreatedAt:         s.clock.Now().UTC().Truncate(timePrecision),
	}

	if err := s.repo.CreateAuction(ctx, auction); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction %q: %w", in.Title, err)
	}
	return auction, nil
}

func validateAuction(in CreateAuctionInput) error {
	switch {
	case in.SellerID == "" || in.Title == "":
		return fmt.Errorf("service: %w - missing sellerID or title", biddingerrors.ErrInvalidAuction)
	case in.StartingPrice.IsNegative():
		return fmt.Errorf("service: %w - negative starting price", biddingerrors.ErrInvalidAuction)
	case !in.MinimumIncrement.IsPositive():
		return fmt.Errorf("service: %w - minimum increment must be positive", biddingerrors.ErrInvalidAuction)
	case in.StartTime.IsZero() || in.EndTime.IsZero():
		return fmt.Errorf("service: %w - missing start or end time", biddingerrors.ErrInvalidAuction)
	case !in.StartTime.Before(in.EndTime):
		return fmt.Errorf("service: %w - start time must be before end time", biddingerrors.ErrInvalidAuction)
	}
	return nil
}

// SubmitBid is the acceptance gate. The amount must be positive, the auction
// must be active at commit time by the server clock, and the amount must beat
// the current maximum. Rejections are returned, never retried.
func (s *BiddingService) SubmitBid(ctx context.Context, in SubmitBidInput) (models.Bid, error) {
	if in.AuctionID == "" || in.BidderID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if !in.Amount.IsPositive() {
		return models.Bid{}, fmt.Errorf("service: %w - non-positive bid amount %s", biddingerrors.ErrInvalidAmount, in.Amount)
	}

	bid, err := s.repo.AcceptBid(ctx, in.AuctionID, s.admit(in))
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: bid on auction %s by bidder %s rejected: %w", in.AuctionID, in.BidderID, err)
	}

	// Notification only shortens latency; viewers that miss it re-fetch.
	if err := s.publisher.Publish(ctx, bid); err != nil {
		utils.Warn("service: failed to publish accepted bid", map[string]any{
			"bid_id":     bid.BidID,
			"auction_id": bid.AuctionID,
			"error":      err.Error(),
		})
	}

	return bid, nil
}

// admit builds the decision that runs under the auction's lock
func (s *BiddingService) admit(in SubmitBidInput) repository.DecideFunc {
	return func(auction models.Auction) (models.Bid, error) {
		now := s.clock.Now().UTC()

		state := lifecycle.Classify(now, auction.StartTime, auction.EndTime)
		if state.Phase != lifecycle.PhaseActive {
			return models.Bid{}, fmt.Errorf("%w - auction %s is %s", biddingerrors.ErrAuctionNotActive, auction.AuctionID, state.Phase)
		}

		if !in.Amount.GreaterThan(auction.CurrentMaximumBid) {
			return models.Bid{}, &biddingerrors.BidTooLowError{
				CurrentMaximum:   auction.CurrentMaximumBid,
				MinimumIncrement: auction.MinimumIncrement,
			}
		}

		return models.Bid{
			BidID:             utils.GenerateID(),
			AuctionID:         auction.AuctionID,
			BidderID:          in.BidderID,
			BidderDisplayName: in.Bidder.DisplayName,
			BidderAvatarURL:   in.Bidder.AvatarURL,
			Amount:            in.Amount,
			SubmittedAt:       now.Truncate(timePrecision),
		}, nil
	}
}

// GetAuction returns a single auction
func (s *BiddingService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// FetchBidHistory returns all accepted bids for an auction, newest first.
// It is the recovery path for viewers that missed a notification.
func (s *BiddingService) FetchBidHistory(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// GetWinningBid returns the highest bid for an auction
func (s *BiddingService) GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error) {
	if auctionID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	winningBid, err := s.repo.GetWinningBid(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for auction %s: %w", auctionID, err)
	}
	return winningBid, nil
}

// GetAuctionsByBidder returns all auctions a bidder has placed bids on
func (s *BiddingService) GetAuctionsByBidder(ctx context.Context, bidderID string) ([]models.Auction, error) {
	if bidderID == "" {
		return nil, fmt.Errorf("service: %w - empty bidder ID", biddingerrors.ErrInvalidBid)
	}

	auctions, err := s.repo.GetAuctionsByBidder(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for bidder %s: %w", bidderID, err)
	}
	return auctions, nil
}

// SubscribeBids registers onNewBid for bids accepted on an existing auction.
// Cancel the returned subscription to stop receiving updates.
func (s *BiddingService) SubscribeBids(ctx context.Context, auctionID string, onNewBid func(models.Bid)) (*feed.Subscription, error) {
	if onNewBid == nil {
		return nil, errors.New("service: nil bid callback")
	}
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(auctionID, onNewBid), nil
}

// State classifies an auction by the service clock
func (s *BiddingService) State(auction models.Auction) lifecycle.State {
	return lifecycle.Classify(s.clock.Now(), auction.StartTime, auction.EndTime)
}

// Clock exposes the service clock so streaming transports tick in step with the gate
func (s *BiddingService) Clock() clockwork.Clock {
	return s.clock
}
