package requests

// SendMessageRequest appends one message to a chat room. Type defaults to
// "text" when omitted.
type SendMessageRequest struct {
	Content     string            `json:"content"`
	Type        string            `json:"type"`
	Offer       *OfferRequest     `json:"offer,omitempty"`
	Attachments []AttachmentInput `json:"attachments,omitempty"`
}

// OfferRequest carries a structured price offer inside a message.
type OfferRequest struct {
	TokenID  string `json:"token_id" binding:"required"`
	PriceWei string `json:"price_wei" binding:"required"`
	Status   string `json:"status"`
}

// AttachmentInput references already-pinned content.
type AttachmentInput struct {
	Name string `json:"name" binding:"required"`
	URL  string `json:"url" binding:"required"`
	Mime string `json:"mime"`
}
