package feed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubjectsAndChannels(t *testing.T) {
	t.Parallel()

	require.Equal(t, "bid_events.auction-1", natsSubject("auction-1"))
	require.Equal(t, "bid_events:auction-1", redisChannel("auction-1"))
	require.Equal(t, "auction-1", auctionIDFromChannel("bid_events:auction-1"))
}

func TestEncodeDecodeBid(t *testing.T) {
	t.Parallel()

	bid := testBid("auction-1", "bid-1", 105)
	bid.BidderDisplayName = "Rei"
	bid.BidderAvatarURL = "https://cdn.example.com/rei.png"

	data, err := encodeBid(bid)
	require.NoError(t, err)
	require.Contains(t, string(data), `"amount":"105"`)

	got, err := decodeBid(data)
	require.NoError(t, err)
	require.Equal(t, bid.BidID, got.BidID)
	require.Equal(t, bid.BidderDisplayName, got.BidderDisplayName)
	require.True(t, got.Amount.Equal(bid.Amount))
	require.True(t, got.SubmittedAt.Equal(bid.SubmittedAt))
}

func TestDecodeBidRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := decodeBid([]byte(`not json`))
	require.Error(t, err)

	_, err = decodeBid([]byte(`{"amount":"5"}`))
	require.Error(t, err)
}
