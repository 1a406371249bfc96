package ledger

import (
	"sync"

	"github.com/biscalabs/biscagate/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// InMemory is the process-local token ledger. Balance bookkeeping follows
// the usual fungible-token rules: role-gated mint/burn, allowance-gated
// transferFrom, and a pause switch that blocks all balance mutations.
type InMemory struct {
	mu         sync.Mutex
	name       string
	symbol     string
	balances   map[common.Address]decimal.Decimal
	allowances map[common.Address]map[common.Address]decimal.Decimal
	roles      map[Role]map[common.Address]struct{}
	supply     decimal.Decimal
	paused     bool
}

// NewInMemory mints the initial supply to admin and grants it every role,
// mirroring a token constructor.
func NewInMemory(name, symbol string, admin common.Address, initialSupply decimal.Decimal) *InMemory {
	l := &InMemory{
		name:       name,
		symbol:     symbol,
		balances:   make(map[common.Address]decimal.Decimal),
		allowances: make(map[common.Address]map[common.Address]decimal.Decimal),
		roles:      make(map[Role]map[common.Address]struct{}),
		supply:     decimal.Zero,
	}
	for _, r := range []Role{RoleAdmin, RoleMinter, RoleBurner, RolePauser} {
		l.roles[r] = make(map[common.Address]struct{})
	}
	l.roles[RoleAdmin][admin] = struct{}{}
	if initialSupply.IsPositive() {
		l.balances[admin] = initialSupply
		l.supply = initialSupply
	}
	return l
}

func (l *InMemory) Name() string   { return l.name }
func (l *InMemory) Symbol() string { return l.symbol }

func (l *InMemory) Mint(caller, to common.Address, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkMutable(caller, RoleMinter); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.balances[to] = l.balanceOf(to).Add(amount)
	l.supply = l.supply.Add(amount)
	return nil
}

func (l *InMemory) Burn(caller, from common.Address, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkMutable(caller, RoleBurner); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal := l.balanceOf(from)
	if bal.LessThan(amount) {
		return apperrors.Newf(apperrors.ErrInsufficientFunds,
			"burn %s exceeds balance %s of %s", amount, bal, from.Hex())
	}
	l.balances[from] = bal.Sub(amount)
	l.supply = l.supply.Sub(amount)
	return nil
}

func (l *InMemory) Transfer(caller, to common.Address, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(caller, to, amount)
}

func (l *InMemory) TransferFrom(caller, from, to common.Address, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != from {
		allowed := l.allowance(from, caller)
		if allowed.LessThan(amount) {
			return apperrors.Newf(apperrors.ErrInsufficientFunds,
				"allowance %s of %s for %s below transfer %s", allowed, from.Hex(), caller.Hex(), amount)
		}
		// Spend the allowance only after the balance move succeeds.
		if err := l.transfer(from, to, amount); err != nil {
			return err
		}
		l.allowances[from][caller] = allowed.Sub(amount)
		return nil
	}
	return l.transfer(from, to, amount)
}

func (l *InMemory) Approve(caller, spender common.Address, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount.IsNegative() {
		return apperrors.NewInvalidRequest("allowance must not be negative")
	}
	if l.allowances[caller] == nil {
		l.allowances[caller] = make(map[common.Address]decimal.Decimal)
	}
	l.allowances[caller][spender] = amount
	return nil
}

func (l *InMemory) Allowance(owner, spender common.Address) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowance(owner, spender)
}

func (l *InMemory) BalanceOf(addr common.Address) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceOf(addr)
}

func (l *InMemory) TotalSupply() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply
}

func (l *InMemory) GrantRole(caller common.Address, role Role, account common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.hasRole(RoleAdmin, caller) {
		return missingRole(caller, RoleAdmin)
	}
	if _, ok := l.roles[role]; !ok {
		return apperrors.Newf(apperrors.ErrInvalidRequest, "unknown role %s", role)
	}
	l.roles[role][account] = struct{}{}
	return nil
}

func (l *InMemory) RevokeRole(caller common.Address, role Role, account common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.hasRole(RoleAdmin, caller) {
		return missingRole(caller, RoleAdmin)
	}
	if _, ok := l.roles[role]; !ok {
		return apperrors.Newf(apperrors.ErrInvalidRequest, "unknown role %s", role)
	}
	delete(l.roles[role], account)
	return nil
}

func (l *InMemory) HasRole(role Role, account common.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasRole(role, account)
}

func (l *InMemory) Pause(caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.hasRole(RolePauser, caller) && !l.hasRole(RoleAdmin, caller) {
		return missingRole(caller, RolePauser)
	}
	l.paused = true
	return nil
}

func (l *InMemory) Unpause(caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.hasRole(RolePauser, caller) && !l.hasRole(RoleAdmin, caller) {
		return missingRole(caller, RolePauser)
	}
	l.paused = false
	return nil
}

func (l *InMemory) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// internal helpers, caller holds l.mu

func (l *InMemory) transfer(from, to common.Address, amount decimal.Decimal) error {
	if l.paused {
		return apperrors.New(apperrors.ErrPaused, "token transfers are paused", nil)
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal := l.balanceOf(from)
	if bal.LessThan(amount) {
		return apperrors.Newf(apperrors.ErrInsufficientFunds,
			"transfer %s exceeds balance %s of %s", amount, bal, from.Hex())
	}
	l.balances[from] = bal.Sub(amount)
	l.balances[to] = l.balanceOf(to).Add(amount)
	return nil
}

func (l *InMemory) checkMutable(caller common.Address, role Role) error {
	if l.paused {
		return apperrors.New(apperrors.ErrPaused, "token ledger is paused", nil)
	}
	if !l.hasRole(role, caller) {
		return missingRole(caller, role)
	}
	return nil
}

func (l *InMemory) balanceOf(addr common.Address) decimal.Decimal {
	if b, ok := l.balances[addr]; ok {
		return b
	}
	return decimal.Zero
}

func (l *InMemory) allowance(owner, spender common.Address) decimal.Decimal {
	if m, ok := l.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return decimal.Zero
}

func (l *InMemory) hasRole(role Role, account common.Address) bool {
	_, ok := l.roles[role][account]
	return ok
}

func missingRole(account common.Address, role Role) error {
	return apperrors.Newf(apperrors.ErrMissingRole, "%s is missing role %s", account.Hex(), role)
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.NewInvalidRequest("amount must be positive")
	}
	return nil
}
