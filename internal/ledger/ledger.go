package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Role tags for the capability table. Grant/revoke of any role is itself
// gated by RoleAdmin.
type Role string

const (
	RoleAdmin  Role = "DEFAULT_ADMIN_ROLE"
	RoleMinter Role = "MINTER_ROLE"
	RoleBurner Role = "BURNER_ROLE"
	RolePauser Role = "PAUSER_ROLE"
)

// ParseRole maps the wire name onto a known role tag.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleMinter, RoleBurner, RolePauser:
		return Role(s), true
	}
	return "", false
}

// Ledger is the token collaborator the treasury and dealer mutate balances
// through. Every mutating call is atomic: it either fully applies or
// returns an error with no observable change.
type Ledger interface {
	Mint(caller, to common.Address, amount decimal.Decimal) error
	Burn(caller, from common.Address, amount decimal.Decimal) error
	Transfer(caller, to common.Address, amount decimal.Decimal) error
	TransferFrom(caller, from, to common.Address, amount decimal.Decimal) error
	Approve(caller, spender common.Address, amount decimal.Decimal) error
	Allowance(owner, spender common.Address) decimal.Decimal
	BalanceOf(addr common.Address) decimal.Decimal
	TotalSupply() decimal.Decimal

	GrantRole(caller common.Address, role Role, account common.Address) error
	RevokeRole(caller common.Address, role Role, account common.Address) error
	HasRole(role Role, account common.Address) bool

	Pause(caller common.Address) error
	Unpause(caller common.Address) error
	Paused() bool
}
