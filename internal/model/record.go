package model

import (
	"time"
)

// TreasuryEntry is the persisted audit trail of treasury ledger mutations:
// executed multisig proposals and applied random events.
type TreasuryEntry struct {
	ID         string                 `json:"id"`         // unique entry ID (UUID)
	Kind       string                 `json:"kind"`       // mint / burn / random_mint / random_burn
	ProposalID *uint64                `json:"proposal_id,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Account    string                 `json:"account"`
	Amount     string                 `json:"amount"`
	Context    map[string]interface{} `json:"context,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// GameRecord is the settled-game history row.
type GameRecord struct {
	ID          uint64    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Player      string    `json:"player" gorm:"index"`
	Bet         string    `json:"bet"`
	PlayerCards string    `json:"player_cards"` // comma-separated card numbers
	DealerCards string    `json:"dealer_cards"`
	PlayerTotal int       `json:"player_total"`
	DealerTotal int       `json:"dealer_total"`
	Outcome     string    `json:"outcome" gorm:"index"`
	Payout      string    `json:"payout"`
	CreatedAt   time.Time `json:"created_at"`
	SettledAt   time.Time `json:"settled_at"`
}

func (GameRecord) TableName() string {
	return "game_history"
}
