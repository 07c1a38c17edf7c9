package requests

// CreateDealRequest asks the orchestrator to open the on-chain deal for a
// room. Price is a decimal IP token amount, not wei.
type CreateDealRequest struct {
	Price string `json:"price" binding:"required"`
}

// FundDealRequest transfers the buyer's payment into the deal. Amount must
// equal the deal price exactly.
type FundDealRequest struct {
	Amount string `json:"amount" binding:"required"`
}
