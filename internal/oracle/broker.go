package oracle

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/biscalabs/biscagate/internal/events"
	"github.com/biscalabs/biscagate/internal/model"
	"github.com/biscalabs/biscagate/internal/pkg/apperrors"
	"github.com/biscalabs/biscagate/internal/pkg/logger"
	"github.com/biscalabs/biscagate/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
)

// Coordinator is the outbound half of the oracle integration: it relays a
// request and returns the oracle-assigned correlation id. Fulfillment
// arrives later through Broker.Fulfill.
type Coordinator interface {
	RequestRandomWords(ctx context.Context, numWords int) (string, error)
}

// Broker owns randomness request records. Consumers hold only the id; the
// fulfilled value is readable by the original requester alone.
//
// Single-flight: at most one unfulfilled request per requester. A second
// request fails AlreadyPending until the first is fulfilled or, when a TTL
// is configured, expired.
type Broker struct {
	mu       sync.Mutex
	coord    Coordinator
	identity common.Address // callback caller must match
	ttl      time.Duration
	requests map[string]*model.RandomnessRequest
	pending  map[common.Address]string
	bus      *events.Bus
	now      func() time.Time
}

func NewBroker(coord Coordinator, identity common.Address, ttl time.Duration, bus *events.Bus) *Broker {
	return &Broker{
		coord:    coord,
		identity: identity,
		ttl:      ttl,
		requests: make(map[string]*model.RandomnessRequest),
		pending:  make(map[common.Address]string),
		bus:      bus,
		now:      time.Now,
	}
}

// RequestRandomness relays to the coordinator and records the request
// against the requester. Consumer label is only for metrics.
func (b *Broker) RequestRandomness(ctx context.Context, requester common.Address, consumer string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prevID, ok := b.pending[requester]; ok {
		prev := b.requests[prevID]
		if prev != nil && !b.expired(prev) {
			return "", apperrors.Newf(apperrors.ErrAlreadyPending,
				"request %s for %s is still unfulfilled", prevID, requester.Hex())
		}
		// Expired request: release the slot and drop the stale record.
		delete(b.requests, prevID)
		delete(b.pending, requester)
	}

	id, err := b.coord.RequestRandomWords(ctx, 1)
	if err != nil {
		return "", apperrors.New(apperrors.ErrInternal, "oracle request failed", err)
	}

	b.requests[id] = &model.RandomnessRequest{
		ID:        id,
		Requester: requester,
		CreatedAt: b.now(),
	}
	b.pending[requester] = id

	metrics.RandomnessRequests.WithLabelValues(consumer).Inc()
	b.bus.Publish(events.TypeRandomnessRequested, map[string]interface{}{
		"request_id": id,
		"requester":  requester.Hex(),
	})
	logger.Debug("randomness requested", "request_id", id, "requester", requester.Hex())
	return id, nil
}

// Fulfill is the inbound oracle callback. Exactly-once per request: a
// second callback for the same id is rejected.
func (b *Broker) Fulfill(caller common.Address, requestID string, words []*big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if caller != b.identity {
		return apperrors.Newf(apperrors.ErrNotOracle,
			"fulfillment caller %s is not the configured oracle", caller.Hex())
	}
	req, ok := b.requests[requestID]
	if !ok {
		return apperrors.Newf(apperrors.ErrUnknownRequest, "request %s was never issued", requestID)
	}
	if req.Fulfilled {
		return apperrors.Newf(apperrors.ErrAlreadyFulfilled, "request %s already fulfilled", requestID)
	}
	if b.expired(req) {
		return apperrors.Newf(apperrors.ErrRequestExpired, "request %s expired before fulfillment", requestID)
	}
	if len(words) == 0 || words[0] == nil {
		return apperrors.NewInvalidRequest("fulfillment carries no random words")
	}

	req.Value = new(big.Int).Set(words[0])
	req.Fulfilled = true
	if b.pending[req.Requester] == requestID {
		delete(b.pending, req.Requester)
	}

	metrics.RandomnessFulfillments.Inc()
	b.bus.Publish(events.TypeRandomnessFulfilled, map[string]interface{}{
		"request_id": requestID,
	})
	logger.Debug("randomness fulfilled", "request_id", requestID)
	return nil
}

// GetRandomness returns the fulfilled value to the original requester. An
// erased or never-issued id reports NotRequester, indistinguishable from a
// foreign caller.
func (b *Broker) GetRandomness(caller common.Address, requestID string) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	req, ok := b.requests[requestID]
	if !ok || req.Requester != caller {
		return nil, apperrors.Newf(apperrors.ErrNotRequester,
			"caller %s is not the requester of %s", caller.Hex(), requestID)
	}
	if !req.Fulfilled {
		return nil, apperrors.Newf(apperrors.ErrNotFulfilled, "request %s not yet fulfilled", requestID)
	}
	return new(big.Int).Set(req.Value), nil
}

// ClearRandomRequest erases the record. Requester-only.
func (b *Broker) ClearRandomRequest(caller common.Address, requestID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	req, ok := b.requests[requestID]
	if !ok || req.Requester != caller {
		return apperrors.Newf(apperrors.ErrNotRequester,
			"caller %s is not the requester of %s", caller.Hex(), requestID)
	}
	delete(b.requests, requestID)
	if b.pending[req.Requester] == requestID {
		delete(b.pending, req.Requester)
	}
	return nil
}

// Expired reports whether an unfulfilled request has passed the configured
// TTL. Consumers use this to unblock awaiting state (refund paths).
func (b *Broker) Expired(requestID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	req, ok := b.requests[requestID]
	if !ok {
		return false
	}
	return !req.Fulfilled && b.expired(req)
}

// Snapshot returns a copy of the stored record for operator tooling.
func (b *Broker) Snapshot(requestID string) (model.RandomnessRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	req, ok := b.requests[requestID]
	if !ok {
		return model.RandomnessRequest{}, false
	}
	out := *req
	if req.Value != nil {
		out.Value = new(big.Int).Set(req.Value)
	}
	return out, true
}

func (b *Broker) expired(req *model.RandomnessRequest) bool {
	if b.ttl <= 0 {
		return false
	}
	return b.now().Sub(req.CreatedAt) >= b.ttl
}
