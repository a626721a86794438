package helpers

import (
	"errors"
	"fmt"
	"net/http"

	"auction-bidding/internal/biddingerrors"
	"auction-bidding/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrAuctionExists):
		return http.StatusConflict, "auction already exists"
	case errors.Is(err, biddingerrors.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid bid amount"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrInvalidAuction):
		return http.StatusBadRequest, "invalid auction details"
	case errors.Is(err, biddingerrors.ErrAuctionNotActive):
		return http.StatusConflict, "bidding closed"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusNotFound, "no bids found for auction"
	case errors.Is(err, biddingerrors.ErrBidderNoBids):
		return http.StatusOK, "no auctions found for bidder"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondError writes err with its mapped status. A too-low bid also carries
// the current maximum and a suggested resubmission amount.
func RespondError(c *gin.Context, err error) int {
	status, message := MapErrorToHTTP(err)
	if tooLow, ok := biddingerrors.AsBidTooLow(err); ok {
		utils.JSONErrorWithDetails(c, status, err, message, BidTooLowDetails{
			CurrentMaximum:  tooLow.CurrentMaximum,
			SuggestedAmount: tooLow.SuggestedAmount(),
		})
		return status
	}
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
	return status
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
