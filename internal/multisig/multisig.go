package multisig

import (
	"fmt"
	"sync"
	"time"

	"github.com/biscalabs/biscagate/internal/events"
	"github.com/biscalabs/biscagate/internal/model"
	"github.com/biscalabs/biscagate/internal/pkg/apperrors"
	"github.com/biscalabs/biscagate/internal/pkg/logger"
	"github.com/biscalabs/biscagate/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Executor runs an approved proposal's payload. A non-nil error aborts the
// execution and leaves the proposal retryable.
type Executor func(target common.Address, value decimal.Decimal, payload []byte) error

// Engine is the generic proposal/approval/execution machine. Owners and the
// threshold are fixed at construction.
type Engine struct {
	mu        sync.Mutex
	owners    []common.Address
	ownerSet  map[common.Address]struct{}
	required  int
	proposals map[uint64]*model.Proposal
	nextID    uint64
	exec      Executor
	bus       *events.Bus
}

func NewEngine(owners []common.Address, required int, exec Executor, bus *events.Bus) (*Engine, error) {
	if len(owners) == 0 {
		return nil, fmt.Errorf("multisig: owners must not be empty")
	}
	if required < 1 || required > len(owners) {
		return nil, fmt.Errorf("multisig: required signatures %d out of range [1,%d]", required, len(owners))
	}
	set := make(map[common.Address]struct{}, len(owners))
	for _, o := range owners {
		if _, dup := set[o]; dup {
			return nil, fmt.Errorf("multisig: duplicate owner %s", o.Hex())
		}
		set[o] = struct{}{}
	}
	return &Engine{
		owners:    append([]common.Address(nil), owners...),
		ownerSet:  set,
		required:  required,
		proposals: make(map[uint64]*model.Proposal),
		exec:      exec,
		bus:       bus,
	}, nil
}

func (e *Engine) Owners() []common.Address {
	return append([]common.Address(nil), e.owners...)
}

func (e *Engine) Required() int {
	return e.required
}

func (e *Engine) IsOwner(addr common.Address) bool {
	_, ok := e.ownerSet[addr]
	return ok
}

// Submit records a new proposal with the next sequence id.
func (e *Engine) Submit(caller, target common.Address, value decimal.Decimal, payload []byte) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.IsOwner(caller) {
		return 0, notOwner(caller)
	}

	id := e.nextID
	e.nextID++
	e.proposals[id] = &model.Proposal{
		ID:        id,
		Submitter: caller,
		Target:    target,
		Value:     value,
		Payload:   append([]byte(nil), payload...),
		Approvals: make(map[common.Address]struct{}),
		CreatedAt: time.Now().UTC(),
	}

	metrics.ProposalsTotal.WithLabelValues("submitted").Inc()
	e.bus.Publish(events.TypeTransactionSubmitted, map[string]interface{}{
		"proposal_id": id,
		"target":      target.Hex(),
		"value":       value.String(),
		"payload":     string(payload),
	})
	return id, nil
}

// Approve adds the caller to the approval set. A second approval from the
// same owner is rejected, not silently ignored.
func (e *Engine) Approve(caller common.Address, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.IsOwner(caller) {
		return notOwner(caller)
	}
	p, ok := e.proposals[id]
	if !ok {
		return unknownProposal(id)
	}
	if p.ApprovedBy(caller) {
		return apperrors.Newf(apperrors.ErrAlreadyApproved,
			"owner %s already approved proposal %d", caller.Hex(), id)
	}
	p.Approvals[caller] = struct{}{}

	metrics.ProposalsTotal.WithLabelValues("approved").Inc()
	e.bus.Publish(events.TypeTransactionApproved, map[string]interface{}{
		"proposal_id": id,
		"approver":    caller.Hex(),
	})
	return nil
}

// Execute runs the payload once the threshold is met. The engine lock is
// held across the executor call, so execution is a serialization point:
// concurrent Execute calls cannot both observe executed == false.
func (e *Engine) Execute(caller common.Address, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.IsOwner(caller) {
		return notOwner(caller)
	}
	p, ok := e.proposals[id]
	if !ok {
		return unknownProposal(id)
	}
	if p.Executed {
		return apperrors.Newf(apperrors.ErrAlreadyExecuted, "proposal %d already executed", id)
	}
	if p.ApprovalCount() < e.required {
		return apperrors.Newf(apperrors.ErrInsufficientApprovals,
			"proposal %d has %d of %d required approvals", id, p.ApprovalCount(), e.required)
	}

	p.Executed = true
	if err := e.exec(p.Target, p.Value, p.Payload); err != nil {
		// Roll back so the proposal stays retryable; approvals are intact.
		p.Executed = false
		metrics.ProposalsTotal.WithLabelValues("failed").Inc()
		logger.Warn("proposal execution failed", "proposal_id", id, "error", err)
		return apperrors.Wrap(err)
	}

	metrics.ProposalsTotal.WithLabelValues("executed").Inc()
	e.bus.Publish(events.TypeTransactionExecuted, map[string]interface{}{
		"proposal_id": id,
	})
	return nil
}

// Get returns a copy of the proposal for read-only use.
func (e *Engine) Get(id uint64) (model.Proposal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.proposals[id]
	if !ok {
		return model.Proposal{}, unknownProposal(id)
	}
	out := *p
	out.Payload = append([]byte(nil), p.Payload...)
	out.Approvals = make(map[common.Address]struct{}, len(p.Approvals))
	for a := range p.Approvals {
		out.Approvals[a] = struct{}{}
	}
	return out, nil
}

func notOwner(addr common.Address) error {
	return apperrors.Newf(apperrors.ErrNotOwner, "caller %s is not an owner", addr.Hex())
}

func unknownProposal(id uint64) error {
	return apperrors.Newf(apperrors.ErrUnknownProposal, "proposal %d does not exist", id)
}
