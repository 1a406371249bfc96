package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type GameState int

const (
	AwaitingInitialRandomness GameState = iota
	PlayerTurn
	AwaitingActionRandomness
	DealerTurn
	Settled
)

func (s GameState) String() string {
	switch s {
	case AwaitingInitialRandomness:
		return "awaiting_initial_randomness"
	case PlayerTurn:
		return "player_turn"
	case AwaitingActionRandomness:
		return "awaiting_action_randomness"
	case DealerTurn:
		return "dealer_turn"
	case Settled:
		return "settled"
	default:
		return "unknown"
	}
}

type Outcome string

const (
	OutcomeUndecided  Outcome = ""
	OutcomePlayerWin  Outcome = "player_win"
	OutcomeDealerWin  Outcome = "dealer_win"
	OutcomePush       Outcome = "push"
	OutcomePlayerBust Outcome = "player_bust"
	OutcomeDealerBust Outcome = "dealer_bust"
	OutcomeCancelled  Outcome = "cancelled"
)

// PendingDeal identifies which deal operation the in-flight randomness
// request belongs to, so the wrong deal call cannot consume it.
type PendingDeal string

const (
	DealNone       PendingDeal = ""
	DealInitial    PendingDeal = "initial"
	DealHit        PendingDeal = "hit"
	DealDoubleDown PendingDeal = "double_down"
	DealDealer     PendingDeal = "dealer"
)

// Card is 1..52: rank = (card-1) % 13, suit = (card-1) / 13.
type Card uint8

type Game struct {
	ID               uint64          `json:"id"`
	Player           common.Address  `json:"player"`
	State            GameState       `json:"-"`
	Bet              decimal.Decimal `json:"bet"`
	PlayerCards      []Card          `json:"player_cards"`
	DealerCards      []Card          `json:"dealer_cards"`
	PendingRequestID string          `json:"pending_request_id,omitempty"`
	PendingDeal      PendingDeal     `json:"pending_deal,omitempty"`
	// DrawCursor is the next index into the per-game hash chain; it only
	// ever increases so replays derive identical cards.
	DrawCursor uint64    `json:"-"`
	Outcome    Outcome   `json:"outcome,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	SettledAt  time.Time `json:"settled_at,omitzero"`
}
