package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Proposal is a multisig-gated action awaiting owner approvals.
type Proposal struct {
	ID        uint64          `json:"id"`
	Submitter common.Address  `json:"submitter"`
	Target    common.Address  `json:"target"`
	Value     decimal.Decimal `json:"value"`
	Payload   []byte          `json:"payload"`
	Approvals map[common.Address]struct{} `json:"-"`
	Executed  bool            `json:"executed"`
	CreatedAt time.Time       `json:"created_at"`
}

// ApprovalCount is the cardinality check used at execution time; approvals
// are unweighted and order-independent.
func (p *Proposal) ApprovalCount() int {
	return len(p.Approvals)
}

func (p *Proposal) ApprovedBy(owner common.Address) bool {
	_, ok := p.Approvals[owner]
	return ok
}

// Approvers returns the approval set as a slice for serialization.
func (p *Proposal) Approvers() []common.Address {
	out := make([]common.Address, 0, len(p.Approvals))
	for a := range p.Approvals {
		out = append(out, a)
	}
	return out
}
