package helpers

import (
	"encoding/json"
	"strings"
	"time"

	"auction-bidding/internal/lifecycle"
	model "auction-bidding/internal/models"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs

// CreateAuctionRequest accepts prices as JSON numbers or numeric strings
type CreateAuctionRequest struct {
	SellerID         string          `json:"seller_id" binding:"required"`
	Title            string          `json:"title" binding:"required"`
	Description      string          `json:"description"`
	StartingPrice    json.RawMessage `json:"starting_price" binding:"required"`
	MinimumIncrement json.RawMessage `json:"minimum_increment" binding:"required"`
	StartTime        time.Time       `json:"start_time"`
	EndTime          time.Time       `json:"end_time"`
}

// PlaceBidRequest is the body of POST /auctions/:auction_id/bids. The amount
// is kept raw so non-numeric input surfaces as an invalid amount rather than a
// binding failure.
type PlaceBidRequest struct {
	BidderID    string          `json:"bidder_id" binding:"required"`
	Amount      json.RawMessage `json:"amount" binding:"required"`
	DisplayName string          `json:"display_name"`
	AvatarURL   string          `json:"avatar_url"`
}

type BidResponse struct {
	BidID             string          `json:"bid_id"`
	AuctionID         string          `json:"auction_id"`
	BidderID          string          `json:"bidder_id"`
	BidderDisplayName string          `json:"bidder_display_name,omitempty"`
	BidderAvatarURL   string          `json:"bidder_avatar_url,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	SubmittedAt       string          `json:"submitted_at"`
}

type AuctionResponse struct {
	AuctionID         string              `json:"auction_id"`
	SellerID          string              `json:"seller_id"`
	Title             string              `json:"title"`
	Description       string              `json:"description,omitempty"`
	StartingPrice     decimal.Decimal     `json:"starting_price"`
	MinimumIncrement  decimal.Decimal     `json:"minimum_increment"`
	CurrentMaximumBid decimal.Decimal     `json:"current_maximum_bid"`
	StartTime         string              `json:"start_time"`
	EndTime           string              `json:"end_time"`
	Status            lifecycle.Phase     `json:"status"`
	Remaining         lifecycle.Remaining `json:"remaining"`
}

// BidTooLowDetails tells a rejected bidder what to beat
type BidTooLowDetails struct {
	CurrentMaximum  decimal.Decimal `json:"current_maximum"`
	SuggestedAmount decimal.Decimal `json:"suggested_amount"`
}

// Stream event types sent over the websocket and SSE feeds
const (
	EventBid       = "bid"
	EventLifecycle = "lifecycle"
)

// StreamEvent is one message on an auction's live feed
type StreamEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// LifecycleEvent is the payload of a lifecycle stream event
type LifecycleEvent struct {
	AuctionID string              `json:"auction_id"`
	Status    lifecycle.Phase     `json:"status"`
	Remaining lifecycle.Remaining `json:"remaining"`
}

// AmountText unwraps a raw JSON amount. Strings lose their quotes; numbers
// and anything else are passed through for the amount parser to judge.
func AmountText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func NewBidResponse(bid model.Bid) BidResponse {
	return BidResponse{
		BidID:             bid.BidID,
		AuctionID:         bid.AuctionID,
		BidderID:          bid.BidderID,
		BidderDisplayName: bid.BidderDisplayName,
		BidderAvatarURL:   bid.BidderAvatarURL,
		Amount:            bid.Amount,
		SubmittedAt:       bid.SubmittedAt.UTC().Format(time.RFC3339Nano),
	}
}

func NewBidResponses(bids []model.Bid) []BidResponse {
	resp := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		resp = append(resp, NewBidResponse(bid))
	}
	return resp
}

func NewAuctionResponse(auction model.Auction, state lifecycle.State) AuctionResponse {
	return AuctionResponse{
		AuctionID:         auction.AuctionID,
		SellerID:          auction.SellerID,
		Title:             auction.Title,
		Description:       auction.Description,
		StartingPrice:     auction.StartingPrice,
		MinimumIncrement:  auction.MinimumIncrement,
		CurrentMaximumBid: auction.CurrentMaximumBid,
		StartTime:         auction.StartTime.UTC().Format(time.RFC3339),
		EndTime:           auction.EndTime.UTC().Format(time.RFC3339),
		Status:            state.Phase,
		Remaining:         state.Remaining,
	}
}
