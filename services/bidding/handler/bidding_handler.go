package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	bidding "auction-bidding/internal/biddingService"
	"auction-bidding/internal/biddingerrors"
	"auction-bidding/internal/feed"
	"auction-bidding/internal/lifecycle"
	model "auction-bidding/internal/models"
	"auction-bidding/services/bidding/helpers"
	"auction-bidding/utils"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

//go:generate mockgen -source=bidding_handler.go -destination=mock_service.go -package=handler

type BiddingServiceInterface interface {
	CreateAuction(ctx context.Context, in bidding.CreateAuctionInput) (model.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	SubmitBid(ctx context.Context, in bidding.SubmitBidInput) (model.Bid, error)
	FetchBidHistory(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, auctionID string) (model.Bid, error)
	GetAuctionsByBidder(ctx context.Context, bidderID string) ([]model.Auction, error)
	SubscribeBids(ctx context.Context, auctionID string, onNewBid func(model.Bid)) (*feed.Subscription, error)
	State(auction model.Auction) lifecycle.State
	Clock() clockwork.Clock
}

type BiddingHandler struct {
	service BiddingServiceInterface
	stream  StreamConfig
}

func NewBiddingHandler(service BiddingServiceInterface, opts ...HandlerOption) *BiddingHandler {
	h := &BiddingHandler{service: service, stream: DefaultStreamConfig()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlerOption configures a BiddingHandler
type HandlerOption func(*BiddingHandler)

// WithStreamConfig overrides the live feed settings
func WithStreamConfig(cfg StreamConfig) HandlerOption {
	return func(h *BiddingHandler) {
		h.stream = cfg
	}
}

// CreateAuctionHandler handles POST /auctions
func (h *BiddingHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	startingPrice, err := bidding.ParseAmount(helpers.AmountText(req.StartingPrice))
	if err != nil {
		helpers.RespondError(c, fmt.Errorf("%w - starting price: %v", biddingerrors.ErrInvalidAuction, err))
		return
	}
	increment, err := bidding.ParseAmount(helpers.AmountText(req.MinimumIncrement))
	if err != nil {
		helpers.RespondError(c, fmt.Errorf("%w - minimum increment: %v", biddingerrors.ErrInvalidAuction, err))
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), bidding.CreateAuctionInput{
		SellerID:         req.SellerID,
		Title:            req.Title,
		Description:      req.Description,
		StartingPrice:    startingPrice,
		MinimumIncrement: increment,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
	})
	if err != nil {
		status := helpers.RespondError(c, err)
		utils.Warn("CreateAuctionHandler: failed to create auction", map[string]any{
			"seller_id": req.SellerID,
			"status":    status,
			"error":     err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewAuctionResponse(auction, h.service.State(auction)), "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"seller_id":  auction.SellerID,
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *BiddingHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("GetAuctionHandler: error retrieving auction", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction, h.service.State(auction)), "auction retrieved successfully")
}

// SubmitBidHandler handles POST /auctions/:auction_id/bids
func (h *BiddingHandler) SubmitBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "SubmitBidHandler", err)
		return
	}

	amount, err := bidding.ParseAmount(helpers.AmountText(req.Amount))
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("SubmitBidHandler: unparseable amount", map[string]any{
			"auction_id": auctionID,
			"bidder_id":  req.BidderID,
			"error":      err.Error(),
		})
		return
	}

	bid, err := h.service.SubmitBid(c.Request.Context(), bidding.SubmitBidInput{
		AuctionID: auctionID,
		BidderID:  req.BidderID,
		Amount:    amount,
		Bidder: model.BidderMeta{
			DisplayName: req.DisplayName,
			AvatarURL:   req.AvatarURL,
		},
	})
	if err != nil {
		status := helpers.RespondError(c, err)
		log := utils.Info
		if status >= http.StatusInternalServerError {
			log = utils.Error
		}
		log("SubmitBidHandler: bid rejected", map[string]any{
			"handler":    "SubmitBidHandler",
			"auction_id": auctionID,
			"bidder_id":  req.BidderID,
			"amount":     amount.String(),
			"status":     status,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "bid recorded successfully")
	helpers.LogSuccess("SubmitBidHandler", "bid recorded successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount.String(),
	})
}

// GetBidHistoryHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) GetBidHistoryHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.FetchBidHistory(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("GetBidHistoryHandler: error retrieving bids", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetBidHistoryHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// GetWinningBidHandler handles GET /auctions/:auction_id/winning
func (h *BiddingHandler) GetWinningBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bid, err := h.service.GetWinningBid(c.Request.Context(), auctionID)
	if err != nil {
		if errors.Is(err, biddingerrors.ErrNoBids) {
			utils.JSONError(c, http.StatusNotFound, err, "no winning bid found")
			utils.Info("GetWinningBidHandler: no winning bid found", map[string]any{"auction_id": auctionID})
			return
		}
		helpers.RespondError(c, err)
		utils.Warn("GetWinningBidHandler: winning bid error", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "winning bid retrieved successfully")
	helpers.LogSuccess("GetWinningBidHandler", "winning bid retrieved successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount.String(),
	})
}

// GetAuctionsByBidderHandler handles GET /bidders/:bidder_id/auctions
func (h *BiddingHandler) GetAuctionsByBidderHandler(c *gin.Context) {
	bidderID := c.Param("bidder_id")
	auctions, err := h.service.GetAuctionsByBidder(c.Request.Context(), bidderID)
	if err != nil && !errors.Is(err, biddingerrors.ErrBidderNoBids) {
		helpers.RespondError(c, err)
		utils.Warn("GetAuctionsByBidderHandler: error retrieving auctions", map[string]any{"bidder_id": bidderID, "error": err.Error()})
		return
	}

	resp := make([]helpers.AuctionResponse, 0, len(auctions))
	for _, auction := range auctions {
		resp = append(resp, helpers.NewAuctionResponse(auction, h.service.State(auction)))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "auctions retrieved successfully")
	helpers.LogSuccess("GetAuctionsByBidderHandler", "auctions retrieved successfully", map[string]any{
		"bidder_id":      bidderID,
		"auctions_count": len(auctions),
	})
}
