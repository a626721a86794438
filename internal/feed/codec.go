package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	model "auction-bidding/internal/models"
)

// SubjectPrefix is shared by the NATS subjects and Redis channels bids travel on
const SubjectPrefix = "bid_events"

// natsSubject is "bid_events.<auctionID>"
func natsSubject(auctionID string) string {
	return SubjectPrefix + "." + auctionID
}

// redisChannel is "bid_events:<auctionID>"
func redisChannel(auctionID string) string {
	return SubjectPrefix + ":" + auctionID
}

func auctionIDFromChannel(channel string) string {
	return strings.TrimPrefix(channel, SubjectPrefix+":")
}

func encodeBid(bid model.Bid) ([]byte, error) {
	data, err := json.Marshal(bid)
	if err != nil {
		return nil, fmt.Errorf("marshal bid %s: %w", bid.BidID, err)
	}
	return data, nil
}

func decodeBid(data []byte) (model.Bid, error) {
	var bid model.Bid
	if err := json.Unmarshal(data, &bid); err != nil {
		return model.Bid{}, fmt.Errorf("unmarshal bid: %w", err)
	}
	if bid.AuctionID == "" || bid.BidID == "" {
		return model.Bid{}, fmt.Errorf("unmarshal bid: missing auction or bid id")
	}
	return bid, nil
}
