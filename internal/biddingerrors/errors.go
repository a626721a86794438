package biddingerrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrAuctionExists   = errors.New("auction already exists")
	ErrNoBids          = errors.New("no bids found for auction")
	ErrBidderNoBids    = errors.New("bidder has not placed any bids")
)

// business logic errors
var (
	ErrInvalidBid       = errors.New("invalid bid")
	ErrInvalidAmount    = errors.New("invalid bid amount")
	ErrInvalidAuction   = errors.New("invalid auction")
	ErrAuctionNotActive = errors.New("auction is not active")
	ErrBidTooLow        = errors.New("bid amount too low")
)

// BidTooLowError reports the maximum a rejected bid failed to exceed.
// It matches ErrBidTooLow with errors.Is.
type BidTooLowError struct {
	CurrentMaximum   decimal.Decimal
	MinimumIncrement decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: current maximum is %s", ErrBidTooLow, e.CurrentMaximum.String())
}

func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}

// SuggestedAmount is the smallest amount a corrected resubmission should offer.
func (e *BidTooLowError) SuggestedAmount() decimal.Decimal {
	return e.CurrentMaximum.Add(e.MinimumIncrement)
}

// AsBidTooLow extracts a *BidTooLowError from an error chain.
func AsBidTooLow(err error) (*BidTooLowError, bool) {
	var tooLow *BidTooLowError
	if errors.As(err, &tooLow) {
		return tooLow, true
	}
	return nil, false
}
