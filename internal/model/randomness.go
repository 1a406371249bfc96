package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RandomnessRequest tracks one outstanding oracle request. The broker is the
// exclusive owner of these records; consumers only hold the correlating ID.
type RandomnessRequest struct {
	ID        string         `json:"id"`
	Requester common.Address `json:"requester"`
	Fulfilled bool           `json:"fulfilled"`
	// Value is valid only when Fulfilled.
	Value     *big.Int  `json:"value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
