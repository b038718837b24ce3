package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrAssetBusy      = errors.New("asset already in an active auction")
	ErrStatusConflict = errors.New("status conflict")
	ErrBidTooLow      = errors.New("bid does not exceed current price")
	ErrSelfBid        = errors.New("creator cannot bid on own auction")
	ErrAlreadyLeading = errors.New("bidder already holds the highest bid")
	ErrAuctionClosed  = errors.New("auction bidding window is closed")
	ErrForbidden      = errors.New("operation not permitted for requester")
	ErrRateLimited    = errors.New("rate limited")
	ErrLockHeld       = errors.New("lock already held")
	ErrDownstream     = errors.New("downstream collaborator unavailable")
)
