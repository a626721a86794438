package feed

import "context"

// Broadcaster carries bids between service instances over an external bus
type Broadcaster interface {
	Publisher
	Start(ctx context.Context) error
	Close() error
}

var (
	_ Broadcaster = (*NATSBroadcaster)(nil)
	_ Broadcaster = (*RedisBroadcaster)(nil)
	_ Publisher   = (*Hub)(nil)
)
