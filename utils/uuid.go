package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier for auctions, bids and subscriptions
func GenerateID() string {
	return uuid.New().String()
}
