package multisig

import (
	"fmt"
	"testing"

	"github.com/biscalabs/biscagate/internal/events"
	"github.com/biscalabs/biscagate/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner1   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	owner2   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	owner3   = common.HexToAddress("0x0000000000000000000000000000000000000003")
	outsider = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	target   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func newEngine(t *testing.T, exec Executor) *Engine {
	t.Helper()
	e, err := NewEngine([]common.Address{owner1, owner2, owner3}, 2, exec, events.NewBus())
	require.NoError(t, err)
	return e
}

func TestNewEngine_Validation(t *testing.T) {
	bus := events.NewBus()
	noop := func(common.Address, decimal.Decimal, []byte) error { return nil }

	_, err := NewEngine(nil, 1, noop, bus)
	assert.Error(t, err)

	_, err = NewEngine([]common.Address{owner1}, 0, noop, bus)
	assert.Error(t, err)

	_, err = NewEngine([]common.Address{owner1}, 2, noop, bus)
	assert.Error(t, err)

	_, err = NewEngine([]common.Address{owner1, owner1}, 1, noop, bus)
	assert.Error(t, err)
}

func TestEngine_SubmitOwnerOnly(t *testing.T) {
	e := newEngine(t, func(common.Address, decimal.Decimal, []byte) error { return nil })

	_, err := e.Submit(outsider, target, decimal.Zero, []byte("x"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotOwner))

	id, err := e.Submit(owner1, target, decimal.Zero, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)

	id2, err := e.Submit(owner2, target, decimal.Zero, []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id2)
}

func TestEngine_ApproveIdempotenceRejected(t *testing.T) {
	e := newEngine(t, func(common.Address, decimal.Decimal, []byte) error { return nil })
	id, err := e.Submit(owner1, target, decimal.Zero, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, e.Approve(owner1, id))
	err = e.Approve(owner1, id)
	assert.True(t, apperrors.IsType(err, apperrors.ErrAlreadyApproved))

	err = e.Approve(outsider, id)
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotOwner))

	err = e.Approve(owner1, 99)
	assert.True(t, apperrors.IsType(err, apperrors.ErrUnknownProposal))
}

func TestEngine_ExecuteThreshold(t *testing.T) {
	executed := 0
	e := newEngine(t, func(tgt common.Address, _ decimal.Decimal, payload []byte) error {
		executed++
		assert.Equal(t, target, tgt)
		assert.Equal(t, "payload", string(payload))
		return nil
	})
	id, err := e.Submit(owner1, target, decimal.Zero, []byte("payload"))
	require.NoError(t, err)

	require.NoError(t, e.Approve(owner1, id))
	err = e.Execute(owner1, id)
	assert.True(t, apperrors.IsType(err, apperrors.ErrInsufficientApprovals))
	assert.Equal(t, 0, executed)

	require.NoError(t, e.Approve(owner2, id))
	require.NoError(t, e.Execute(owner1, id))
	assert.Equal(t, 1, executed)

	// Exactly once.
	err = e.Execute(owner2, id)
	assert.True(t, apperrors.IsType(err, apperrors.ErrAlreadyExecuted))
	assert.Equal(t, 1, executed)
}

func TestEngine_ExecuteFailureIsRetryable(t *testing.T) {
	fail := true
	e := newEngine(t, func(common.Address, decimal.Decimal, []byte) error {
		if fail {
			return fmt.Errorf("ledger unavailable")
		}
		return nil
	})
	id, err := e.Submit(owner1, target, decimal.Zero, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, e.Approve(owner1, id))
	require.NoError(t, e.Approve(owner2, id))

	err = e.Execute(owner1, id)
	require.Error(t, err)

	p, err := e.Get(id)
	require.NoError(t, err)
	assert.False(t, p.Executed)
	assert.Equal(t, 2, p.ApprovalCount())

	fail = false
	require.NoError(t, e.Execute(owner1, id))
}

func TestEngine_GetReturnsCopy(t *testing.T) {
	e := newEngine(t, func(common.Address, decimal.Decimal, []byte) error { return nil })
	id, err := e.Submit(owner1, target, decimal.Zero, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, e.Approve(owner1, id))

	p, err := e.Get(id)
	require.NoError(t, err)
	p.Approvals[owner2] = struct{}{}
	p.Payload[0] = 'z'

	fresh, err := e.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.ApprovalCount())
	assert.Equal(t, "x", string(fresh.Payload))
}
