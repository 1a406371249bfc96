package oracle

import (
	"bytes"
	"context"
	cryptorand "crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/biscalabs/biscagate/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// HTTPCoordinator relays randomness requests to an external oracle service.
// The oracle answers asynchronously by POSTing the fulfillment back to the
// gateway's callback endpoint.
type HTTPCoordinator struct {
	endpoint string
	client   *http.Client
}

func NewHTTPCoordinator(endpoint string) *HTTPCoordinator {
	return &HTTPCoordinator{
		endpoint: endpoint,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: 10 * time.Second,
		},
	}
}

type requestWordsBody struct {
	RequestID string `json:"request_id"`
	NumWords  int    `json:"num_words"`
}

func (c *HTTPCoordinator) RequestRandomWords(ctx context.Context, numWords int) (string, error) {
	// The gateway assigns the correlation id; the oracle echoes it in the
	// callback.
	id := uuid.NewString()
	body, err := json.Marshal(requestWordsBody{RequestID: id, NumWords: numWords})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("oracle endpoint returned %s", resp.Status)
	}
	return id, nil
}

// Fulfiller is the callback half the local coordinator needs; the broker
// satisfies it.
type Fulfiller interface {
	Fulfill(caller common.Address, requestID string, words []*big.Int) error
}

// LocalCoordinator generates ids locally and auto-fulfills with crypto/rand
// 256-bit words after a short delay. Development and demo setups only; it
// keeps the two-phase protocol observable without a real oracle.
type LocalCoordinator struct {
	identity common.Address
	delay    time.Duration
	target   Fulfiller
}

func NewLocalCoordinator(identity common.Address, delay time.Duration) *LocalCoordinator {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &LocalCoordinator{identity: identity, delay: delay}
}

// Bind wires the coordinator back to the broker. Separate from the
// constructor because broker and coordinator reference each other.
func (c *LocalCoordinator) Bind(f Fulfiller) {
	c.target = f
}

func (c *LocalCoordinator) RequestRandomWords(ctx context.Context, numWords int) (string, error) {
	id := uuid.NewString()
	if c.target == nil {
		return "", fmt.Errorf("local coordinator not bound to a fulfiller")
	}

	go func() {
		time.Sleep(c.delay)
		words := make([]*big.Int, numWords)
		for i := range words {
			buf := make([]byte, 32)
			if _, err := cryptorand.Read(buf); err != nil {
				logger.Error("local oracle entropy failure", "error", err)
				return
			}
			words[i] = new(big.Int).SetBytes(buf)
		}
		if err := c.target.Fulfill(c.identity, id, words); err != nil {
			logger.Warn("local oracle fulfillment rejected", "request_id", id, "error", err)
		}
	}()
	return id, nil
}
