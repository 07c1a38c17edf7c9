package requests

// CreateNegotiationRequest opens a negotiation request for a token.
type CreateNegotiationRequest struct {
	TokenID  string `json:"token_id" binding:"required"`
	Title    string `json:"title"`
	Image    string `json:"image"`
	PriceWei string `json:"price_wei"`
	Category string `json:"category"`
}
