package server

import (
	"net/http"

	handler "auction-bidding/services/bidding/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(biddingService handler.BiddingServiceInterface, opts ...handler.HandlerOption) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	biddingHandler := handler.NewBiddingHandler(biddingService, opts...)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auctions := router.Group("/auctions")
	{
		auctions.POST("", biddingHandler.CreateAuctionHandler)
		auctions.GET("/:auction_id", biddingHandler.GetAuctionHandler)
		auctions.POST("/:auction_id/bids", biddingHandler.SubmitBidHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidHistoryHandler)
		auctions.GET("/:auction_id/winning", biddingHandler.GetWinningBidHandler)
		auctions.GET("/:auction_id/ws", biddingHandler.WebSocketHandler)
		auctions.GET("/:auction_id/events", biddingHandler.EventStreamHandler)
	}

	bidders := router.Group("/bidders")
	{
		bidders.GET("/:bidder_id/auctions", biddingHandler.GetAuctionsByBidderHandler)
	}

	return router
}
