package integrationtests

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// SubmitBid Tests
func TestSubmitBid(t *testing.T) {
	tests := []struct {
		name        string
		amount      any
		wantStatus  int
		wantMessage string
	}{
		{name: "Valid_Bid", amount: 105, wantStatus: http.StatusCreated, wantMessage: "bid recorded successfully"},
		{name: "Valid_String_Amount", amount: "100.01", wantStatus: http.StatusCreated, wantMessage: "bid recorded successfully"},
		{name: "Equal_To_Starting_Price", amount: 100, wantStatus: http.StatusConflict, wantMessage: "bid amount too low"},
		{name: "Zero_Amount", amount: 0, wantStatus: http.StatusBadRequest, wantMessage: "invalid bid amount"},
		{name: "Negative_Amount", amount: -1, wantStatus: http.StatusBadRequest, wantMessage: "invalid bid amount"},
		{name: "Not_A_Number", amount: "abc", wantStatus: http.StatusBadRequest, wantMessage: "invalid bid amount"},
		{name: "Huge_Exponent", amount: "1e10000000", wantStatus: http.StatusBadRequest, wantMessage: "invalid bid amount"},
		{name: "Too_Many_Decimals", amount: "100.00001", wantStatus: http.StatusBadRequest, wantMessage: "invalid bid amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := SetupTestRouter()
			auctionID := CreateAuction(t, router, "100", "5", testNow.Add(-time.Hour), testNow.Add(time.Hour))

			resp, w := PlaceBid(t, router, auctionID, "user1", tt.amount)
			require.Equal(t, tt.wantStatus, w.Code)
			require.Equal(t, tt.wantMessage, resp["message"])

			if tt.wantStatus == http.StatusCreated {
				data := resp["data"].(map[string]any)
				require.Equal(t, auctionID, data["auction_id"])
				require.Equal(t, "user1", data["bidder_id"])
				require.Equal(t, "Bidder user1", data["bidder_display_name"])
				require.NotEmpty(t, data["bid_id"])

				submittedAt, err := time.Parse(time.RFC3339Nano, data["submitted_at"].(string))
				require.NoError(t, err)
				require.True(t, submittedAt.Equal(testNow))
			}
		})
	}
}

func TestSubmitBid_InvalidJSON(t *testing.T) {
	router, _ := SetupTestRouter()
	_, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/auctions/a1/bids", "{bidder_id: 'missing quotes', amount: 100}")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

// a bid too low tells the bidder what to beat
func TestSubmitBid_RaiseThenReject(t *testing.T) {
	router, _ := SetupTestRouter()
	auctionID := CreateAuction(t, router, "100", "5", testNow.Add(-time.Hour), testNow.Add(time.Hour))

	_, w := PlaceBid(t, router, auctionID, "alice", 105)
	require.Equal(t, http.StatusCreated, w.Code)

	resp, w := PlaceBid(t, router, auctionID, "bob", 102)
	require.Equal(t, http.StatusConflict, w.Code)
	details := resp["details"].(map[string]any)
	require.Equal(t, "105", details["current_maximum"])
	require.Equal(t, "110", details["suggested_amount"])

	resp, w = ExecuteRequestAndParse(t, router, http.MethodGet, "/auctions/"+auctionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "105", resp["data"].(map[string]any)["current_maximum_bid"])

	resp, w = ExecuteRequestAndParse(t, router, http.MethodGet, "/auctions/"+auctionID+"/winning", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "alice", resp["data"].(map[string]any)["bidder_id"])
}

// Lifecycle Tests
func TestAuctionLifecycle(t *testing.T) {
	router, clock := SetupTestRouter()
	auctionID := CreateAuction(t, router, "10", "1", testNow.Add(time.Hour), testNow.Add(2*time.Hour))

	resp, w := ExecuteRequestAndParse(t, router, http.MethodGet, "/auctions/"+auctionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	require.Equal(t, "upcoming", data["status"])
	require.Equal(t, map[string]any{"days": 0.0, "hours": 1.0, "minutes": 0.0, "seconds": 0.0}, data["remaining"])

	resp, w = PlaceBid(t, router, auctionID, "user1", 50)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "bidding closed", resp["message"])

	clock.Advance(time.Hour)
	_, w = PlaceBid(t, router, auctionID, "user1", 50)
	require.Equal(t, http.StatusCreated, w.Code, "start time is inclusive")

	clock.Advance(time.Hour)
	resp, w = PlaceBid(t, router, auctionID, "user2", 60)
	require.Equal(t, http.StatusConflict, w.Code, "end time is exclusive")
	require.Equal(t, "bidding closed", resp["message"])

	resp, _ = ExecuteRequestAndParse(t, router, http.MethodGet, "/auctions/"+auctionID, nil)
	require.Equal(t, "ended", resp["data"].(map[string]any)["status"])
}

// Bid history Tests
func TestGetBidHistory(t *testing.T) {
	tests := []struct {
		name       string
		auctionID  string
		bids       []int
		wantCount  int
		wantStatus int
	}{
		{name: "With_Bids", bids: []int{11, 15, 20}, wantCount: 3, wantStatus: http.StatusOK},
		{name: "No_Bids", wantCount: 0, wantStatus: http.StatusOK},
		{name: "Unknown_Auction", auctionID: "nonexistent", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, clock := SetupTestRouter()
			auctionID := tt.auctionID
			if auctionID == "" {
				auctionID = CreateAuction(t, router, "10", "1", testNow.Add(-time.Hour), testNow.Add(time.Hour))
			}
			for i, amount := range tt.bids {
				clock.Advance(time.Second)
				_, w := PlaceBid(t, router, auctionID, fmt.Sprintf("user%d", i), amount)
				require.Equal(t, http.StatusCreated, w.Code)
			}

			resp, w := ExecuteRequestAndParse(t, router, http.MethodGet, "/auctions/"+auctionID+"/bids", nil)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			data := resp["data"].([]any)
			require.Len(t, data, tt.wantCount)
			if tt.wantCount > 0 {
				require.Equal(t, "20", data[0].(map[string]any)["amount"], "newest first")
			}

			again, _ := ExecuteRequestAndParse(t, router, http.MethodGet, "/auctions/"+auctionID+"/bids", nil)
			require.Equal(t, resp["data"], again["data"])
		})
	}
}

// Winning bid Tests
func TestGetWinningBid_NoBids(t *testing.T) {
	router, _ := SetupTestRouter()
	auctionID := CreateAuction(t, router, "10", "1", testNow.Add(-time.Hour), testNow.Add(time.Hour))

	resp, w := ExecuteRequestAndParse(t, router, http.MethodGet, "/auctions/"+auctionID+"/winning", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "no winning bid found", resp["message"])
}

// Bidder auctions Tests
func TestGetAuctionsByBidder(t *testing.T) {
	router, _ := SetupTestRouter()
	first := CreateAuction(t, router, "10", "1", testNow.Add(-time.Hour), testNow.Add(time.Hour))
	second := CreateAuction(t, router, "20", "1", testNow.Add(-time.Hour), testNow.Add(time.Hour))

	for _, bid := range []struct {
		auctionID string
		amount    int
	}{{first, 30}, {second, 30}, {first, 40}} {
		_, w := PlaceBid(t, router, bid.auctionID, "user1", bid.amount)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	resp, w := ExecuteRequestAndParse(t, router, http.MethodGet, "/bidders/user1/auctions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"].([]any), 2)

	resp, w = ExecuteRequestAndParse(t, router, http.MethodGet, "/bidders/nobody/auctions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, resp["data"])
}

// Concurrency Tests
func TestConcurrentBids_MaximumIsMonotonic(t *testing.T) {
	router, _ := SetupTestRouter()
	auctionID := CreateAuction(t, router, "0", "1", testNow.Add(-time.Hour), testNow.Add(time.Hour))

	const bidders = 40
	var wg sync.WaitGroup
	for i := 1; i <= bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, w := PlaceBid(t, router, auctionID, fmt.Sprintf("user%d", i), i)
			if w.Code != http.StatusCreated && w.Code != http.StatusConflict {
				t.Errorf("unexpected status %d", w.Code)
			}
		}(i)
	}
	wg.Wait()

	resp, _ := ExecuteRequestAndParse(t, router, http.MethodGet, "/auctions/"+auctionID, nil)
	require.Equal(t, fmt.Sprint(bidders), resp["data"].(map[string]any)["current_maximum_bid"])
}

// Live feed Tests
func TestWebSocketFeed(t *testing.T) {
	router, _ := SetupTestRouter()
	auctionID := CreateAuction(t, router, "100", "5", testNow.Add(-time.Hour), testNow.Add(time.Hour))

	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/auctions/" + auctionID + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first map[string]any
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, "lifecycle", first["type"])

	_, w := PlaceBid(t, srv.Config.Handler, auctionID, "alice", "150")
	require.Equal(t, http.StatusCreated, w.Code)

	for {
		var ev map[string]any
		require.NoError(t, conn.ReadJSON(&ev))
		if ev["type"] != "bid" {
			continue
		}
		data := ev["data"].(map[string]any)
		require.Equal(t, "alice", data["bidder_id"])
		require.Equal(t, "150", data["amount"])
		return
	}
}
