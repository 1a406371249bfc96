package model

// StartGameRequest represents the incoming JSON body for a new hand.
type StartGameRequest struct {
	Bet string `json:"bet" binding:"required"`
}

type GameResponse struct {
	ID               uint64   `json:"id"`
	Player           string   `json:"player"`
	State            string   `json:"state"`
	Bet              string   `json:"bet"`
	PlayerCards      []string `json:"player_cards"`
	DealerCards      []string `json:"dealer_cards"`
	PlayerTotal      int      `json:"player_total"`
	DealerTotal      int      `json:"dealer_total"`
	PendingRequestID string   `json:"pending_request_id,omitempty"`
	Outcome          string   `json:"outcome,omitempty"`
}

// ProposeRequest covers both mint and burn proposals.
type ProposeRequest struct {
	Account string `json:"account" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

type ProposalResponse struct {
	ID        uint64   `json:"id"`
	Submitter string   `json:"submitter"`
	Target    string   `json:"target"`
	Value     string   `json:"value"`
	Payload   string   `json:"payload"`
	Approvals []string `json:"approvals"`
	Executed  bool     `json:"executed"`
}

// OracleCallbackRequest is the inbound fulfillment from the oracle
// integration layer. Words are decimal or 0x-hex strings so arbitrary
// precision survives JSON.
type OracleCallbackRequest struct {
	RequestID string   `json:"request_id" binding:"required"`
	Words     []string `json:"words" binding:"required,min=1"`
}

type TransferRequest struct {
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

type TransferFromRequest struct {
	From   string `json:"from" binding:"required"`
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

type ApproveRequest struct {
	Spender string `json:"spender" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

type RoleRequest struct {
	Role    string `json:"role" binding:"required"`
	Account string `json:"account" binding:"required"`
}
