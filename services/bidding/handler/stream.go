package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"auction-bidding/internal/feed"
	"auction-bidding/internal/lifecycle"
	model "auction-bidding/internal/models"
	"auction-bidding/services/bidding/helpers"
	"auction-bidding/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// StreamConfig holds settings for live auction feeds
type StreamConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	// QueueSize bounds undelivered events per viewer; overflow is dropped
	QueueSize   int
	CheckOrigin func(r *http.Request) bool
}

// DefaultStreamConfig returns default live feed settings
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		QueueSize:       32,
		CheckOrigin: func(r *http.Request) bool {
			// cross-origin policy is enforced by the CORS layer in front of the router
			return true
		},
	}
}

// liveFeed merges an auction's bid notifications and countdown ticks into
// one bounded queue for a single viewer
type liveFeed struct {
	auctionID string
	ctx       context.Context
	cancel    context.CancelFunc
	events    chan helpers.StreamEvent
	sub       *feed.Subscription
}

// openStream subscribes before the countdown starts, so the first lifecycle
// event a viewer sees implies bid notifications are already flowing
func (h *BiddingHandler) openStream(c *gin.Context) (*liveFeed, error) {
	auctionID := c.Param("auction_id")
	ctx, cancel := context.WithCancel(c.Request.Context())

	auction, err := h.service.GetAuction(ctx, auctionID)
	if err != nil {
		cancel()
		return nil, err
	}

	f := &liveFeed{
		auctionID: auctionID,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan helpers.StreamEvent, h.stream.QueueSize),
	}

	f.sub, err = h.service.SubscribeBids(ctx, auctionID, func(bid model.Bid) {
		f.offer(helpers.StreamEvent{Type: helpers.EventBid, Data: helpers.NewBidResponse(bid)})
	})
	if err != nil {
		cancel()
		return nil, err
	}

	go lifecycle.Countdown(ctx, h.service.Clock(), auction.StartTime, auction.EndTime, func(state lifecycle.State) {
		f.offer(helpers.StreamEvent{Type: helpers.EventLifecycle, Data: helpers.LifecycleEvent{
			AuctionID: auctionID,
			Status:    state.Phase,
			Remaining: state.Remaining,
		}})
	})

	return f, nil
}

func (f *liveFeed) offer(ev helpers.StreamEvent) {
	select {
	case <-f.ctx.Done():
	case f.events <- ev:
	default:
		utils.Warn("stream: viewer queue full, dropping event", map[string]any{
			"auction_id": f.auctionID,
			"type":       ev.Type,
		})
	}
}

func (f *liveFeed) close() {
	f.cancel()
	f.sub.Cancel()
}

// WebSocketHandler handles GET /auctions/:auction_id/ws
func (h *BiddingHandler) WebSocketHandler(c *gin.Context) {
	f, err := h.openStream(c)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("WebSocketHandler: cannot open feed", map[string]any{"auction_id": c.Param("auction_id"), "error": err.Error()})
		return
	}
	defer f.close()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  h.stream.ReadBufferSize,
		WriteBufferSize: h.stream.WriteBufferSize,
		CheckOrigin:     h.stream.CheckOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already replied
		utils.Warn("WebSocketHandler: upgrade failed", map[string]any{"auction_id": f.auctionID, "error": err.Error()})
		return
	}

	helpers.LogSuccess("WebSocketHandler", "viewer connected", map[string]any{
		"auction_id":      f.auctionID,
		"subscription_id": f.sub.ID,
	})

	go h.readPump(conn, f)
	h.writePump(conn, f)
}

// writePump sends queued events and keepalive pings until the feed closes
func (h *BiddingHandler) writePump(conn *websocket.Conn, f *liveFeed) {
	ticker := time.NewTicker(h.stream.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-f.ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(h.stream.WriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case ev := <-f.events:
			_ = conn.SetWriteDeadline(time.Now().Add(h.stream.WriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				utils.Warn("WebSocketHandler: failed to write event", map[string]any{
					"auction_id": f.auctionID,
					"error":      err.Error(),
				})
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.stream.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				utils.Debug("WebSocketHandler: failed to send ping", map[string]any{
					"auction_id": f.auctionID,
					"error":      err.Error(),
				})
				return
			}
		}
	}
}

// readPump discards client messages and closes the feed when the viewer leaves
func (h *BiddingHandler) readPump(conn *websocket.Conn, f *liveFeed) {
	defer f.cancel()

	conn.SetReadLimit(h.stream.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.stream.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.stream.ReadTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				utils.Warn("WebSocketHandler: unexpected close", map[string]any{
					"auction_id": f.auctionID,
					"error":      err.Error(),
				})
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.stream.ReadTimeout))
	}
}

// EventStreamHandler handles GET /auctions/:auction_id/events as server-sent events
func (h *BiddingHandler) EventStreamHandler(c *gin.Context) {
	f, err := h.openStream(c)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("EventStreamHandler: cannot open feed", map[string]any{"auction_id": c.Param("auction_id"), "error": err.Error()})
		return
	}
	defer f.close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(io.Writer) bool {
		select {
		case <-f.ctx.Done():
			return false
		case ev := <-f.events:
			c.SSEvent(ev.Type, ev.Data)
			return true
		}
	})
}
