package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	bidding "auction-bidding/internal/biddingService"
	"auction-bidding/internal/repository"
	"auction-bidding/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// testNow is the fake wall clock every integration test starts at
var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// SetupTestRouter initializes the router with in-memory repository and a fake clock for integration testing.
func SetupTestRouter() (*gin.Engine, *clockwork.FakeClock) {
	gin.SetMode(gin.TestMode)
	clock := clockwork.NewFakeClockAt(testNow)
	repo := repository.NewMemoryRepo()
	service := bidding.NewBiddingService(repo, bidding.WithClock(clock))
	router := server.SetupRouter(service)
	return router, clock
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response
func ExecuteRequestAndParse(t *testing.T, router http.Handler, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}

	return resp, w
}

// CreateAuction posts an auction opening at start and closing at end and returns its ID
func CreateAuction(t *testing.T, router http.Handler, startingPrice, increment string, start, end time.Time) string {
	t.Helper()

	resp, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/auctions", map[string]any{
		"seller_id":         "seller1",
		"title":             "Vintage cyberdeck",
		"starting_price":    startingPrice,
		"minimum_increment": increment,
		"start_time":        start.Format(time.RFC3339),
		"end_time":          end.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, "create auction: %v", resp)

	return resp["data"].(map[string]any)["auction_id"].(string)
}

// PlaceBid submits amount for bidderID and returns the parsed response
func PlaceBid(t *testing.T, router http.Handler, auctionID, bidderID string, amount any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	return ExecuteRequestAndParse(t, router, http.MethodPost, "/auctions/"+auctionID+"/bids", map[string]any{
		"bidder_id":    bidderID,
		"amount":       amount,
		"display_name": "Bidder " + bidderID,
	})
}
