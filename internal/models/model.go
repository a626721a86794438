package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidderMeta is the display information shown next to a bid in the history
type BidderMeta struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// Auction is the bidding-relevant part of an auction-type product
type Auction struct {
	AuctionID         string          `json:"auction_id"`
	SellerID          string          `json:"seller_id"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	StartingPrice     decimal.Decimal `json:"starting_price"`
	MinimumIncrement  decimal.Decimal `json:"minimum_increment"`
	CurrentMaximumBid decimal.Decimal `json:"current_maximum_bid"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Bid is an accepted bid. Bids are append-only and never mutated.
type Bid struct {
	BidID             string          `json:"bid_id"`
	AuctionID         string          `json:"auction_id"`
	BidderID          string          `json:"bidder_id"`
	BidderDisplayName string          `json:"bidder_display_name"`
	BidderAvatarURL   string          `json:"bidder_avatar_url"`
	Amount            decimal.Decimal `json:"amount"`
	SubmittedAt       time.Time       `json:"submitted_at"`
}
