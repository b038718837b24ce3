package domain

import "time"

// Event types published on the signal bus.
const (
	EventAuctionCreated   = "auction_created"
	EventAuctionReviewed  = "auction_reviewed"
	EventAuctionUpdated   = "auction_updated"
	EventAuctionDeleted   = "auction_deleted"
	EventAuctionStarted   = "auction_started"
	EventAuctionEnded     = "auction_ended"
	EventBidPlaced        = "bid_placed"
	EventSettlementFailed = "settlement_failed"
)

// Event is the payload published for auction lifecycle and bid activity.
type Event struct {
	Type      string        `json:"type"`
	AuctionID string        `json:"auction_id"`
	Status    AuctionStatus `json:"status,omitempty"`
	Price     string        `json:"price,omitempty"`
	BidderID  string        `json:"bidder_id,omitempty"`
	At        time.Time     `json:"at"`
}

// EventChannel returns the signal bus channel for a single auction's events.
func EventChannel(auctionID string) string {
	return "auctions:" + auctionID
}

// EventChannelPattern matches every auction's event channel.
const EventChannelPattern = "auctions:*"
