package treasury

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/biscalabs/biscagate/internal/events"
	"github.com/biscalabs/biscagate/internal/ledger"
	"github.com/biscalabs/biscagate/internal/model"
	"github.com/biscalabs/biscagate/internal/multisig"
	"github.com/biscalabs/biscagate/internal/oracle"
	"github.com/biscalabs/biscagate/internal/pkg/apperrors"
	"github.com/biscalabs/biscagate/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StateStore persists the treasury's singleton state: the random-event
// cooldown clock and the set of handled request ids. A restart must not
// reopen the cooldown window or allow a random event to apply twice.
type StateStore interface {
	LastRandomEvent(ctx context.Context) (time.Time, error)
	SetLastRandomEvent(ctx context.Context, t time.Time) error
	Handled(ctx context.Context, requestID string) (bool, error)
	MarkHandled(ctx context.Context, requestID string) error
}

// EntryRepo is the persisted audit trail of ledger mutations. Optional;
// nil disables it.
type EntryRepo interface {
	Insert(ctx context.Context, entry *model.TreasuryEntry) error
}

const (
	actionMint = "mint"
	actionBurn = "burn"
)

// action is the multisig payload: the encoded ledger call a proposal runs
// on execution.
type action struct {
	Action  string `json:"action"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// Treasury gates privileged mint/burn behind the multisig engine and runs
// the randomness-driven supply event.
type Treasury struct {
	engine  *multisig.Engine
	broker  *oracle.Broker
	tokens  ledger.Ledger
	store   StateStore
	entries EntryRepo
	bus     *events.Bus

	// self is the treasury's own ledger identity; it holds the MINTER and
	// BURNER capabilities and owns the broker requests.
	self        common.Address
	token       common.Address
	beneficiary common.Address
	eventAmount decimal.Decimal
	cooldown    time.Duration

	mu  sync.Mutex // serializes HandleRandomness and TriggerRandomEvent
	now func() time.Time
}

type Params struct {
	Owners             []common.Address
	RequiredSignatures int
	Self               common.Address
	Token              common.Address
	Beneficiary        common.Address
	RandomEventAmount  decimal.Decimal
	Cooldown           time.Duration
}

func New(p Params, broker *oracle.Broker, tokens ledger.Ledger, store StateStore, entries EntryRepo, bus *events.Bus) (*Treasury, error) {
	if !p.RandomEventAmount.IsPositive() {
		return nil, fmt.Errorf("treasury: random event amount must be positive")
	}
	t := &Treasury{
		broker:      broker,
		tokens:      tokens,
		store:       store,
		entries:     entries,
		bus:         bus,
		self:        p.Self,
		token:       p.Token,
		beneficiary: p.Beneficiary,
		eventAmount: p.RandomEventAmount,
		cooldown:    p.Cooldown,
		now:         time.Now,
	}
	engine, err := multisig.NewEngine(p.Owners, p.RequiredSignatures, t.execute, bus)
	if err != nil {
		return nil, err
	}
	t.engine = engine
	return t, nil
}

func (t *Treasury) Owners() []common.Address { return t.engine.Owners() }
func (t *Treasury) Required() int            { return t.engine.Required() }

// ProposeMint submits a pre-encoded mint action through the multisig.
func (t *Treasury) ProposeMint(caller, to common.Address, amount decimal.Decimal) (uint64, error) {
	return t.propose(caller, actionMint, to, amount)
}

// ProposeBurn submits a pre-encoded burn action through the multisig.
func (t *Treasury) ProposeBurn(caller, from common.Address, amount decimal.Decimal) (uint64, error) {
	return t.propose(caller, actionBurn, from, amount)
}

func (t *Treasury) propose(caller common.Address, kind string, account common.Address, amount decimal.Decimal) (uint64, error) {
	if !amount.IsPositive() {
		return 0, apperrors.NewInvalidRequest("amount must be positive")
	}
	payload, err := json.Marshal(action{Action: kind, Account: account.Hex(), Amount: amount.String()})
	if err != nil {
		return 0, apperrors.Wrap(err)
	}
	return t.engine.Submit(caller, t.token, decimal.Zero, payload)
}

func (t *Treasury) Approve(caller common.Address, id uint64) error {
	return t.engine.Approve(caller, id)
}

func (t *Treasury) Execute(caller common.Address, id uint64) error {
	return t.engine.Execute(caller, id)
}

func (t *Treasury) Proposal(id uint64) (model.Proposal, error) {
	return t.engine.Get(id)
}

// execute is the multisig executor: it decodes the action payload and
// applies it against the ledger. Ledger failure aborts the execution.
func (t *Treasury) execute(target common.Address, _ decimal.Decimal, payload []byte) error {
	var act action
	if err := json.Unmarshal(payload, &act); err != nil {
		return apperrors.New(apperrors.ErrInvalidRequest, "malformed proposal payload", err)
	}
	if !common.IsHexAddress(act.Account) {
		return apperrors.NewInvalidRequest("proposal payload has no valid account")
	}
	account := common.HexToAddress(act.Account)
	amount, err := decimal.NewFromString(act.Amount)
	if err != nil || !amount.IsPositive() {
		return apperrors.NewInvalidRequest("proposal payload has no valid amount")
	}

	switch act.Action {
	case actionMint:
		if err := t.tokens.Mint(t.self, account, amount); err != nil {
			return err
		}
	case actionBurn:
		if err := t.tokens.Burn(t.self, account, amount); err != nil {
			return err
		}
	default:
		return apperrors.Newf(apperrors.ErrInvalidRequest, "unknown proposal action %q", act.Action)
	}

	t.record(act.Action, "", account, amount)
	return nil
}

// TriggerRandomEvent issues a broker request once per cooldown window.
// Anyone may call; the cooldown alone gates it.
func (t *Treasury) TriggerRandomEvent(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, err := t.store.LastRandomEvent(ctx)
	if err != nil {
		return "", apperrors.Wrap(err)
	}
	now := t.now()
	if !last.IsZero() && now.Sub(last) < t.cooldown {
		return "", apperrors.Newf(apperrors.ErrTooSoon,
			"random event cooldown has %s remaining", (t.cooldown - now.Sub(last)).Round(time.Second))
	}

	id, err := t.broker.RequestRandomness(ctx, t.self, "treasury")
	if err != nil {
		return "", err
	}
	if err := t.store.SetLastRandomEvent(ctx, now); err != nil {
		return "", apperrors.Wrap(err)
	}

	t.bus.Publish(events.TypeRandomEventTriggered, map[string]interface{}{
		"request_id": id,
	})
	logger.Info("random event triggered", "request_id", id)
	return id, nil
}

// HandleRandomness applies the parity policy to a fulfilled request: even
// mints the configured amount to the beneficiary, odd burns it. Applies at
// most once per request id.
func (t *Treasury) HandleRandomness(ctx context.Context, requestID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	already, err := t.store.Handled(ctx, requestID)
	if err != nil {
		return apperrors.Wrap(err)
	}
	if already {
		return apperrors.Newf(apperrors.ErrAlreadyHandled, "request %s already applied", requestID)
	}

	value, err := t.broker.GetRandomness(t.self, requestID)
	if err != nil {
		return err
	}

	even := value.Bit(0) == 0
	kind := "random_burn"
	if even {
		kind = "random_mint"
	}

	// Ledger call first: a failed mint/burn leaves the request unhandled
	// and retryable.
	if even {
		err = t.tokens.Mint(t.self, t.beneficiary, t.eventAmount)
	} else {
		err = t.tokens.Burn(t.self, t.beneficiary, t.eventAmount)
	}
	if err != nil {
		return err
	}
	if err := t.store.MarkHandled(ctx, requestID); err != nil {
		// State store failure after the ledger applied: surface loudly, the
		// operator has to reconcile.
		logger.Error("failed to mark random event handled", "request_id", requestID, "error", err)
		return apperrors.Wrap(err)
	}

	// The value has been consumed; drop the broker record.
	if err := t.broker.ClearRandomRequest(t.self, requestID); err != nil {
		logger.Warn("failed to clear consumed randomness", "request_id", requestID, "error", err)
	}

	t.record(kind, requestID, t.beneficiary, t.eventAmount)
	logger.Info("random event applied", "request_id", requestID, "kind", kind,
		"parity_bit", value.Bit(0))
	return nil
}

func (t *Treasury) record(kind, requestID string, account common.Address, amount decimal.Decimal) {
	if t.entries == nil {
		return
	}
	entry := &model.TreasuryEntry{
		ID:        uuid.NewString(),
		Kind:      kind,
		RequestID: requestID,
		Account:   account.Hex(),
		Amount:    amount.String(),
		CreatedAt: time.Now().UTC(),
	}
	if err := t.entries.Insert(context.Background(), entry); err != nil {
		logger.Warn("treasury audit insert failed", "kind", kind, "error", err)
	}
}

// ParityOf exposes the parity policy for tooling and tests.
func ParityOf(v *big.Int) string {
	if v.Bit(0) == 0 {
		return "even"
	}
	return "odd"
}
