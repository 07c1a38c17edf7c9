package requests

// CreateListingRequest lists a token at a fixed price.
type CreateListingRequest struct {
	TokenID string `json:"token_id" binding:"required"`
	Price   string `json:"price" binding:"required"`
}

// UpdatePriceRequest changes the price of an active listing.
type UpdatePriceRequest struct {
	Price string `json:"price" binding:"required"`
}

// CreateAuctionRequest starts an auction for a token.
type CreateAuctionRequest struct {
	TokenID         string `json:"token_id" binding:"required"`
	StartingPrice   string `json:"starting_price" binding:"required"`
	DurationSeconds int64  `json:"duration_seconds" binding:"required"`
}

// PlaceBidRequest bids on a running auction.
type PlaceBidRequest struct {
	Bid string `json:"bid" binding:"required"`
}

// StartLotteryRequest raffles a token off.
type StartLotteryRequest struct {
	TokenID         string `json:"token_id" binding:"required"`
	TicketPrice     string `json:"ticket_price" binding:"required"`
	DurationSeconds int64  `json:"duration_seconds" binding:"required"`
}

// BuyAccessRequest purchases timed access to a token's content.
type BuyAccessRequest struct {
	Periods int64  `json:"periods" binding:"required"`
	Fee     string `json:"fee" binding:"required"`
}
