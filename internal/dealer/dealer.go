package dealer

import (
	"context"
	"encoding/binary"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/biscalabs/biscagate/internal/events"
	"github.com/biscalabs/biscagate/internal/ledger"
	"github.com/biscalabs/biscagate/internal/model"
	"github.com/biscalabs/biscagate/internal/oracle"
	"github.com/biscalabs/biscagate/internal/pkg/apperrors"
	"github.com/biscalabs/biscagate/internal/pkg/logger"
	"github.com/biscalabs/biscagate/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// dealerStandsAt is the standard dealer stand rule.
const dealerStandsAt = 17

// HistoryRepo persists settled hands. Optional; nil disables it.
type HistoryRepo interface {
	Append(ctx context.Context, rec *model.GameRecord) error
}

// Dealer runs blackjack hands. Each player-facing action that needs a card
// is split in two: the action issues a randomness request, and the matching
// deal call consumes the fulfilled word. Bets are escrowed with the house
// account until the hand settles.
type Dealer struct {
	mu      sync.Mutex
	games   map[uint64]*model.Game
	nextID  uint64
	broker  *oracle.Broker
	tokens  ledger.Ledger
	house   common.Address
	minBet  decimal.Decimal
	maxBet  decimal.Decimal
	bus     *events.Bus
	history HistoryRepo
}

type Params struct {
	House  common.Address
	MinBet decimal.Decimal
	MaxBet decimal.Decimal
}

func New(p Params, broker *oracle.Broker, tokens ledger.Ledger, history HistoryRepo, bus *events.Bus) *Dealer {
	return &Dealer{
		games:   make(map[uint64]*model.Game),
		broker:  broker,
		tokens:  tokens,
		house:   p.House,
		minBet:  p.MinBet,
		maxBet:  p.MaxBet,
		bus:     bus,
		history: history,
	}
}

// gameRequester derives the per-game broker identity. Requests of distinct
// games are independent: the broker's single-flight rule applies per game,
// not across the whole table.
func (d *Dealer) gameRequester(gameID uint64) common.Address {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], gameID)
	return common.BytesToAddress(crypto.Keccak256(d.house.Bytes(), idx[:])[12:])
}

// StartGame escrows the bet and opens a hand awaiting its first randomness.
// Escrow failure leaves no game behind.
func (d *Dealer) StartGame(ctx context.Context, player common.Address, bet decimal.Decimal) (*model.Game, error) {
	if bet.LessThan(d.minBet) || bet.GreaterThan(d.maxBet) {
		return nil, apperrors.Newf(apperrors.ErrBetOutOfRange,
			"bet %s outside table limits [%s, %s]", bet, d.minBet, d.maxBet)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID

	// Escrow first; the player must have approved the house as spender.
	if err := d.tokens.TransferFrom(d.house, player, d.house, bet); err != nil {
		return nil, err
	}

	reqID, err := d.broker.RequestRandomness(ctx, d.gameRequester(id), "dealer")
	if err != nil {
		// Nothing else happened yet: hand the escrow back.
		if refundErr := d.tokens.Transfer(d.house, player, bet); refundErr != nil {
			logger.Error("escrow refund failed after oracle error",
				"game_id", id, "player", player.Hex(), "error", refundErr)
		}
		return nil, err
	}

	d.nextID++
	game := &model.Game{
		ID:               id,
		Player:           player,
		State:            model.AwaitingInitialRandomness,
		Bet:              bet,
		PendingRequestID: reqID,
		PendingDeal:      model.DealInitial,
		CreatedAt:        time.Now().UTC(),
	}
	d.games[id] = game

	metrics.BetsVolume.Add(bet.InexactFloat64())
	d.bus.Publish(events.TypeGameCreated, map[string]interface{}{
		"game_id": id,
		"player":  player.Hex(),
		"bet":     bet.String(),
	})
	d.publishCardRequested(id, reqID)
	logger.Info("game created", "game_id", id, "player", player.Hex(), "bet", bet.String())
	return snapshot(game), nil
}

// DealInitialCards consumes the opening word into two player cards and the
// dealer up-card, in that fixed order.
func (d *Dealer) DealInitialCards(ctx context.Context, caller common.Address, gameID uint64) (*model.Game, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	game, err := d.playerGame(caller, gameID)
	if err != nil {
		return nil, err
	}
	if game.State != model.AwaitingInitialRandomness || game.PendingDeal != model.DealInitial {
		return nil, invalidState(game, "dealInitialCards")
	}

	word, err := d.broker.GetRandomness(d.gameRequester(gameID), game.PendingRequestID)
	if err != nil {
		return nil, err
	}

	cards := DeriveCards(word, game.DrawCursor, 3)
	game.DrawCursor += 3
	game.PlayerCards = append(game.PlayerCards, cards[0], cards[1])
	game.DealerCards = append(game.DealerCards, cards[2])
	d.clearPending(game)

	d.publishCardDealt(gameID, cards[0], "player")
	d.publishCardDealt(gameID, cards[1], "player")
	d.publishCardDealt(gameID, cards[2], "dealer")

	game.State = model.PlayerTurn
	return snapshot(game), nil
}

// Hit requests one more player card.
func (d *Dealer) Hit(ctx context.Context, caller common.Address, gameID uint64) (*model.Game, error) {
	return d.playerAction(ctx, caller, gameID, "hit", model.DealHit, nil)
}

// DoubleDown escrows a second bet equal to the first and requests the
// final player card.
func (d *Dealer) DoubleDown(ctx context.Context, caller common.Address, gameID uint64) (*model.Game, error) {
	return d.playerAction(ctx, caller, gameID, "doubleDown", model.DealDoubleDown, func(game *model.Game) error {
		return d.tokens.TransferFrom(d.house, game.Player, d.house, game.Bet)
	})
}

// Stand closes the player's hand and requests the dealer's next draw.
func (d *Dealer) Stand(ctx context.Context, caller common.Address, gameID uint64) (*model.Game, error) {
	return d.playerAction(ctx, caller, gameID, "stand", model.DealDealer, nil)
}

// playerAction is the shared PlayerTurn -> AwaitingActionRandomness edge.
// The optional escrow step runs before the oracle request so a failed
// transfer leaves the game untouched in PlayerTurn.
func (d *Dealer) playerAction(ctx context.Context, caller common.Address, gameID uint64, name string,
	deal model.PendingDeal, escrow func(*model.Game) error) (*model.Game, error) {

	d.mu.Lock()
	defer d.mu.Unlock()

	game, err := d.playerGame(caller, gameID)
	if err != nil {
		return nil, err
	}
	if game.State != model.PlayerTurn {
		return nil, invalidState(game, name)
	}

	if escrow != nil {
		if err := escrow(game); err != nil {
			return nil, err
		}
	}

	reqID, err := d.broker.RequestRandomness(ctx, d.gameRequester(gameID), "dealer")
	if err != nil {
		if escrow != nil {
			if refundErr := d.tokens.Transfer(d.house, game.Player, game.Bet); refundErr != nil {
				logger.Error("double-down refund failed after oracle error",
					"game_id", gameID, "error", refundErr)
			}
		}
		return nil, err
	}

	if deal == model.DealDoubleDown {
		metrics.BetsVolume.Add(game.Bet.InexactFloat64())
		game.Bet = game.Bet.Add(game.Bet)
	}
	game.State = model.AwaitingActionRandomness
	game.PendingRequestID = reqID
	game.PendingDeal = deal

	d.bus.Publish(events.TypePlayerAction, map[string]interface{}{
		"game_id": gameID,
		"action":  name,
	})
	d.publishCardRequested(gameID, reqID)
	return snapshot(game), nil
}

// DealHitCard appends the requested card to the player's hand. A bust
// settles the hand immediately as a loss.
func (d *Dealer) DealHitCard(ctx context.Context, caller common.Address, gameID uint64) (*model.Game, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	game, err := d.playerGame(caller, gameID)
	if err != nil {
		return nil, err
	}
	if game.State != model.AwaitingActionRandomness || game.PendingDeal != model.DealHit {
		return nil, invalidState(game, "dealHitCard")
	}

	card, err := d.consumeCard(game)
	if err != nil {
		return nil, err
	}
	game.PlayerCards = append(game.PlayerCards, card)
	d.publishCardDealt(gameID, card, "player")

	if HandValue(game.PlayerCards) > 21 {
		if err := d.settle(ctx, game, model.OutcomePlayerBust); err != nil {
			return nil, err
		}
	} else {
		game.State = model.PlayerTurn
	}
	return snapshot(game), nil
}

// DealDoubleDownCard deals exactly one card and hands the turn to the
// dealer regardless of the result, unless the player busts.
func (d *Dealer) DealDoubleDownCard(ctx context.Context, caller common.Address, gameID uint64) (*model.Game, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	game, err := d.playerGame(caller, gameID)
	if err != nil {
		return nil, err
	}
	if game.State != model.AwaitingActionRandomness || game.PendingDeal != model.DealDoubleDown {
		return nil, invalidState(game, "dealDoubleDownCard")
	}

	card, err := d.consumeCard(game)
	if err != nil {
		return nil, err
	}
	game.PlayerCards = append(game.PlayerCards, card)
	d.publishCardDealt(gameID, card, "player")

	if HandValue(game.PlayerCards) > 21 {
		if err := d.settle(ctx, game, model.OutcomePlayerBust); err != nil {
			return nil, err
		}
		return snapshot(game), nil
	}

	// The dealer draws next. The state moves first so that a failed oracle
	// request parks the hand in DealerTurn, where DealDealerCard re-issues
	// the draw and Cancel can refund.
	game.State = model.DealerTurn
	if err := d.requestDealerDraw(ctx, game); err != nil {
		return nil, err
	}
	return snapshot(game), nil
}

// DealDealerCard deals one dealer card, then either settles (stand rule or
// bust) or issues the next draw request and stays in the drawing phase.
func (d *Dealer) DealDealerCard(ctx context.Context, caller common.Address, gameID uint64) (*model.Game, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	game, err := d.playerGame(caller, gameID)
	if err != nil {
		return nil, err
	}
	inDealerPhase := game.State == model.DealerTurn ||
		(game.State == model.AwaitingActionRandomness && game.PendingDeal == model.DealDealer)
	if !inDealerPhase || game.PendingDeal != model.DealDealer {
		return nil, invalidState(game, "dealDealerCard")
	}

	if game.PendingRequestID == "" {
		// An earlier draw request never reached the oracle; re-issue it.
		if err := d.requestDealerDraw(ctx, game); err != nil {
			return nil, err
		}
		return snapshot(game), nil
	}

	card, err := d.consumeCard(game)
	if err != nil {
		return nil, err
	}
	game.DealerCards = append(game.DealerCards, card)
	d.publishCardDealt(gameID, card, "dealer")

	dealerTotal := HandValue(game.DealerCards)
	switch {
	case dealerTotal > 21:
		if err := d.settle(ctx, game, model.OutcomeDealerBust); err != nil {
			return nil, err
		}
	case dealerTotal >= dealerStandsAt:
		if err := d.settle(ctx, game, compareHands(game)); err != nil {
			return nil, err
		}
	default:
		game.State = model.DealerTurn
		if err := d.requestDealerDraw(ctx, game); err != nil {
			return nil, err
		}
	}
	return snapshot(game), nil
}

// Cancel refunds a hand stuck waiting on the oracle: either its request
// expired (requires a configured TTL), or a dealer draw request failed to
// reach the oracle and was never issued.
func (d *Dealer) Cancel(ctx context.Context, caller common.Address, gameID uint64) (*model.Game, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	game, err := d.playerGame(caller, gameID)
	if err != nil {
		return nil, err
	}
	awaiting := game.State == model.AwaitingInitialRandomness ||
		game.State == model.AwaitingActionRandomness || game.State == model.DealerTurn
	if !awaiting {
		return nil, invalidState(game, "cancel")
	}
	if game.PendingRequestID != "" && !d.broker.Expired(game.PendingRequestID) {
		return nil, apperrors.Newf(apperrors.ErrNotFulfilled,
			"request %s is still in flight", game.PendingRequestID)
	}

	if err := d.settle(ctx, game, model.OutcomeCancelled); err != nil {
		return nil, err
	}
	return snapshot(game), nil
}

// Game returns a copy of the hand.
func (d *Dealer) Game(gameID uint64) (*model.Game, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	game, ok := d.games[gameID]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownGame, "game %d does not exist", gameID)
	}
	return snapshot(game), nil
}

// consumeCard reads the fulfilled word for the game's pending request,
// derives the next card in the chain and releases the broker record.
func (d *Dealer) consumeCard(game *model.Game) (model.Card, error) {
	requester := d.gameRequester(game.ID)
	word, err := d.broker.GetRandomness(requester, game.PendingRequestID)
	if err != nil {
		return 0, err
	}
	card := DeriveCard(word, game.DrawCursor)
	game.DrawCursor++
	d.clearPending(game)
	return card, nil
}

func (d *Dealer) clearPending(game *model.Game) {
	requester := d.gameRequester(game.ID)
	if err := d.broker.ClearRandomRequest(requester, game.PendingRequestID); err != nil {
		logger.Warn("failed to clear consumed randomness",
			"game_id", game.ID, "request_id", game.PendingRequestID, "error", err)
	}
	game.PendingRequestID = ""
	game.PendingDeal = model.DealNone
}

// requestDealerDraw asks the broker for the dealer's next word. The deal
// marker is set before the request: on failure the hand keeps
// PendingDeal=dealer with no request id, which DealDealerCard treats as a
// draw to re-issue.
func (d *Dealer) requestDealerDraw(ctx context.Context, game *model.Game) error {
	game.PendingDeal = model.DealDealer
	reqID, err := d.broker.RequestRandomness(ctx, d.gameRequester(game.ID), "dealer")
	if err != nil {
		return err
	}
	game.PendingRequestID = reqID
	d.publishCardRequested(game.ID, reqID)
	return nil
}

// settle pays out and closes the hand. The ledger transfer runs before any
// state is committed: a failed payout leaves the game unsettled.
func (d *Dealer) settle(ctx context.Context, game *model.Game, outcome model.Outcome) error {
	payout := decimal.Zero
	switch outcome {
	case model.OutcomePlayerWin, model.OutcomeDealerBust:
		payout = game.Bet.Add(game.Bet)
	case model.OutcomePush, model.OutcomeCancelled:
		payout = game.Bet
	}

	if payout.IsPositive() {
		if err := d.tokens.Transfer(d.house, game.Player, payout); err != nil {
			return err
		}
	}

	game.Outcome = outcome
	game.State = model.Settled
	game.SettledAt = time.Now().UTC()
	if game.PendingRequestID != "" {
		d.clearPending(game)
	}

	metrics.GamesTotal.WithLabelValues(string(outcome)).Inc()
	d.bus.Publish(events.TypePlayerAction, map[string]interface{}{
		"game_id": game.ID,
		"action":  "settle",
		"outcome": string(outcome),
	})
	logger.Info("game settled", "game_id", game.ID, "outcome", string(outcome),
		"payout", payout.String())

	d.appendHistory(ctx, game, payout)
	return nil
}

func (d *Dealer) appendHistory(ctx context.Context, game *model.Game, payout decimal.Decimal) {
	if d.history == nil {
		return
	}
	rec := &model.GameRecord{
		ID:          game.ID,
		Player:      game.Player.Hex(),
		Bet:         game.Bet.String(),
		PlayerCards: joinCards(game.PlayerCards),
		DealerCards: joinCards(game.DealerCards),
		PlayerTotal: HandValue(game.PlayerCards),
		DealerTotal: HandValue(game.DealerCards),
		Outcome:     string(game.Outcome),
		Payout:      payout.String(),
		CreatedAt:   game.CreatedAt,
		SettledAt:   game.SettledAt,
	}
	if err := d.history.Append(ctx, rec); err != nil {
		logger.Warn("game history insert failed", "game_id", game.ID, "error", err)
	}
}

func invalidState(game *model.Game, action string) error {
	return apperrors.Newf(apperrors.ErrInvalidGameState,
		"game %d cannot %s in state %s", game.ID, action, game.State)
}

func (d *Dealer) playerGame(caller common.Address, gameID uint64) (*model.Game, error) {
	game, ok := d.games[gameID]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownGame, "game %d does not exist", gameID)
	}
	if game.Player != caller {
		return nil, apperrors.Newf(apperrors.ErrNotPlayer,
			"caller %s is not the player of game %d", caller.Hex(), gameID)
	}
	return game, nil
}

func (d *Dealer) publishCardRequested(gameID uint64, requestID string) {
	d.bus.Publish(events.TypeCardRequested, map[string]interface{}{
		"game_id":    gameID,
		"request_id": requestID,
	})
}

func (d *Dealer) publishCardDealt(gameID uint64, card model.Card, to string) {
	d.bus.Publish(events.TypeCardDealt, map[string]interface{}{
		"game_id": gameID,
		"card":    uint8(card),
		"name":    CardName(card),
		"to":      to,
	})
}

// compareHands applies the standard totals comparison once both sides
// stand. Busts are handled by the callers.
func compareHands(game *model.Game) model.Outcome {
	player := HandValue(game.PlayerCards)
	dealer := HandValue(game.DealerCards)
	switch {
	case player > dealer:
		return model.OutcomePlayerWin
	case player < dealer:
		return model.OutcomeDealerWin
	default:
		return model.OutcomePush
	}
}

func snapshot(game *model.Game) *model.Game {
	out := *game
	out.PlayerCards = append([]model.Card(nil), game.PlayerCards...)
	out.DealerCards = append([]model.Card(nil), game.DealerCards...)
	return &out
}

func joinCards(cards []model.Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = strconv.Itoa(int(c))
	}
	return strings.Join(parts, ",")
}
