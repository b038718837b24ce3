package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetKind identifies which catalog an auctioned asset belongs to.
type AssetKind string

const (
	AssetKindVehicle AssetKind = "vehicle"
	AssetKindBattery AssetKind = "battery"
)

// Valid reports whether k is a known asset kind.
func (k AssetKind) Valid() bool {
	return k == AssetKindVehicle || k == AssetKindBattery
}

// AuctionStatus represents the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionStatusPending  AuctionStatus = "pending"
	AuctionStatusPrepare  AuctionStatus = "prepare"
	AuctionStatusStarted  AuctionStatus = "started"
	AuctionStatusEnded    AuctionStatus = "ended"
	AuctionStatusRejected AuctionStatus = "rejected"
)

// Valid reports whether s is a known auction status.
func (s AuctionStatus) Valid() bool {
	switch s {
	case AuctionStatusPending, AuctionStatusPrepare, AuctionStatusStarted,
		AuctionStatusEnded, AuctionStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s allows no further lifecycle transitions.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionStatusEnded || s == AuctionStatusRejected
}

// transitions enumerates the allowed forward edges of the state machine.
// No transition skips a state.
var transitions = map[AuctionStatus][]AuctionStatus{
	AuctionStatusPending: {AuctionStatusPrepare, AuctionStatusRejected},
	// An edit to an approved auction sends it back through review.
	AuctionStatusPrepare: {AuctionStatusStarted, AuctionStatusPending},
	AuctionStatusStarted: {AuctionStatusEnded},
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition.
func (s AuctionStatus) CanTransition(next AuctionStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Auction is a time-boxed competitive-bidding process for a single asset.
// CurrentPrice starts at the seller's asking price and only ever increases;
// HighestBidderID is set by the first successful bid and never reverts to nil.
type Auction struct {
	ID              string          `json:"id"`
	AssetKind       AssetKind       `json:"asset_kind"`
	AssetID         string          `json:"asset_id"`
	Status          AuctionStatus   `json:"status"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	CreatorID       string          `json:"creator_id"`
	HighestBidderID *string         `json:"highest_bidder_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// HasWinner reports whether at least one successful bid was recorded.
func (a Auction) HasWinner() bool {
	return a.HighestBidderID != nil && *a.HighestBidderID != ""
}

// Winner returns the current highest bidder id, or "" when no bid landed.
func (a Auction) Winner() string {
	if a.HighestBidderID == nil {
		return ""
	}
	return *a.HighestBidderID
}

// InBidWindow reports whether now falls inside the half-open bidding
// interval [StartTime, EndTime).
func (a Auction) InBidWindow(now time.Time) bool {
	return !now.Before(a.StartTime) && now.Before(a.EndTime)
}
