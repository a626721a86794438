package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	bidding "auction-bidding/internal/biddingService"
	"auction-bidding/internal/lifecycle"
	"auction-bidding/internal/repository"
	"auction-bidding/services/bidding/helpers"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type streamFixture struct {
	server    *httptest.Server
	service   *bidding.BiddingService
	clock     *clockwork.FakeClock
	auctionID string
}

func newStreamFixture(t *testing.T) *streamFixture {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	service := bidding.NewBiddingService(repository.NewMemoryRepo(), bidding.WithClock(clock))

	auction, err := service.CreateAuction(context.Background(), bidding.CreateAuctionInput{
		SellerID:         "seller1",
		Title:            "Modular synth",
		StartingPrice:    dec("100"),
		MinimumIncrement: dec("5"),
		StartTime:        now.Add(-time.Minute),
		EndTime:          now.Add(time.Hour),
	})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewBiddingHandler(service)
	router.GET("/auctions/:auction_id/ws", h.WebSocketHandler)
	router.GET("/auctions/:auction_id/events", h.EventStreamHandler)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &streamFixture{server: server, service: service, clock: clock, auctionID: auction.AuctionID}
}

func (f *streamFixture) bid(t *testing.T, bidderID, amount string) {
	t.Helper()
	_, err := f.service.SubmitBid(context.Background(), bidding.SubmitBidInput{
		AuctionID: f.auctionID,
		BidderID:  bidderID,
		Amount:    dec(amount),
	})
	require.NoError(t, err)
}

type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func TestWebSocketHandler_StreamsLifecycleAndBids(t *testing.T) {
	f := newStreamFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/auctions/" + f.auctionID + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	// subscription is live once the first lifecycle event arrives
	var first wireEvent
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, helpers.EventLifecycle, first.Type)

	var state helpers.LifecycleEvent
	require.NoError(t, json.Unmarshal(first.Data, &state))
	require.Equal(t, lifecycle.PhaseActive, state.Status)
	require.Equal(t, lifecycle.Remaining{Hours: 1}, state.Remaining)

	f.bid(t, "alice", "105")

	for {
		var ev wireEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type != helpers.EventBid {
			continue
		}
		var bid helpers.BidResponse
		require.NoError(t, json.Unmarshal(ev.Data, &bid))
		require.Equal(t, "alice", bid.BidderID)
		require.True(t, bid.Amount.Equal(dec("105")))
		break
	}
}

func TestWebSocketHandler_UnknownAuction(t *testing.T) {
	f := newStreamFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/auctions/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestEventStreamHandler_StreamsBids(t *testing.T) {
	f := newStreamFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/auctions/"+f.auctionID+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	scanner := bufio.NewScanner(resp.Body)
	nextEvent := func() (string, string) {
		var name, data string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				name = strings.TrimPrefix(line, "event:")
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimPrefix(line, "data:")
			case line == "" && name != "":
				return name, data
			}
		}
		t.Fatalf("stream ended: %v", scanner.Err())
		return "", ""
	}

	name, _ := nextEvent()
	require.Equal(t, helpers.EventLifecycle, name)

	f.bid(t, "bob", "120.50")

	for {
		name, data := nextEvent()
		if name != helpers.EventBid {
			continue
		}
		var bid helpers.BidResponse
		require.NoError(t, json.Unmarshal([]byte(data), &bid))
		require.Equal(t, "bob", bid.BidderID)
		require.True(t, bid.Amount.Equal(dec("120.5")))
		return
	}
}
