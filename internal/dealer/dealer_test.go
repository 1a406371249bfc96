package dealer

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/biscalabs/biscagate/internal/events"
	"github.com/biscalabs/biscagate/internal/ledger"
	"github.com/biscalabs/biscagate/internal/model"
	"github.com/biscalabs/biscagate/internal/oracle"
	"github.com/biscalabs/biscagate/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	house    = common.HexToAddress("0x0000000000000000000000000000000000000d01")
	player   = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	intruder = common.HexToAddress("0x0000000000000000000000000000000000000b02")
	oracleID = common.HexToAddress("0x00000000000000000000000000000000000000f1")
)

type seqCoordinator struct {
	n    int
	fail bool
}

func (s *seqCoordinator) RequestRandomWords(ctx context.Context, numWords int) (string, error) {
	if s.fail {
		return "", fmt.Errorf("coordinator unavailable")
	}
	s.n++
	return fmt.Sprintf("req-%d", s.n), nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type table struct {
	dealer *Dealer
	broker *oracle.Broker
	tokens *ledger.InMemory
	coord  *seqCoordinator
	word   int64
}

func newTable(t *testing.T, ttl time.Duration) *table {
	t.Helper()
	bus := events.NewBus()
	coord := &seqCoordinator{}
	broker := oracle.NewBroker(coord, oracleID, ttl, bus)
	tokens := ledger.NewInMemory("Bisca Token", "BISCA", admin, dec("1000000"))
	require.NoError(t, tokens.Transfer(admin, player, dec("1000")))
	require.NoError(t, tokens.Transfer(admin, house, dec("100000")))
	require.NoError(t, tokens.Approve(player, house, dec("1000")))

	d := New(Params{House: house, MinBet: dec("1"), MaxBet: dec("500")}, broker, tokens, nil, bus)
	return &table{dealer: d, broker: broker, tokens: tokens, coord: coord, word: 1000}
}

// fulfill answers the game's outstanding request with the next word.
func (tb *table) fulfill(t *testing.T, game *model.Game) *big.Int {
	t.Helper()
	require.NotEmpty(t, game.PendingRequestID)
	tb.word++
	word := big.NewInt(tb.word)
	require.NoError(t, tb.broker.Fulfill(oracleID, game.PendingRequestID, []*big.Int{word}))
	return word
}

// runDealer drives the dealer drawing phase to settlement.
func (tb *table) runDealer(t *testing.T, game *model.Game) *model.Game {
	t.Helper()
	ctx := context.Background()
	for game.State != model.Settled {
		tb.fulfill(t, game)
		var err error
		game, err = tb.dealer.DealDealerCard(ctx, player, game.ID)
		require.NoError(t, err)
	}
	return game
}

func TestDealer_StartGameEscrowsBet(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	game, err := tb.dealer.StartGame(ctx, player, dec("100"))
	require.NoError(t, err)
	assert.Equal(t, model.AwaitingInitialRandomness, game.State)
	assert.Equal(t, model.DealInitial, game.PendingDeal)
	assert.NotEmpty(t, game.PendingRequestID)
	assert.True(t, tb.tokens.BalanceOf(player).Equal(dec("900")))
	assert.True(t, tb.tokens.BalanceOf(house).Equal(dec("100100")))
}

func TestDealer_StartGameBetLimits(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	_, err := tb.dealer.StartGame(ctx, player, dec("0.5"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrBetOutOfRange))

	_, err = tb.dealer.StartGame(ctx, player, dec("501"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrBetOutOfRange))
}

func TestDealer_StartGameEscrowFailureLeavesNoGame(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	// Revoke the house allowance: escrow must fail.
	require.NoError(t, tb.tokens.Approve(player, house, dec("0")))

	_, err := tb.dealer.StartGame(ctx, player, dec("100"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrInsufficientFunds))
	assert.True(t, tb.tokens.BalanceOf(player).Equal(dec("1000")))

	_, err = tb.dealer.Game(0)
	assert.True(t, apperrors.IsType(err, apperrors.ErrUnknownGame))
}

func TestDealer_InitialDealIsDeterministic(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	game, err := tb.dealer.StartGame(ctx, player, dec("100"))
	require.NoError(t, err)
	word := tb.fulfill(t, game)

	game, err = tb.dealer.DealInitialCards(ctx, player, game.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlayerTurn, game.State)
	assert.Empty(t, game.PendingRequestID)

	want := DeriveCards(word, 0, 3)
	assert.Equal(t, []model.Card{want[0], want[1]}, game.PlayerCards)
	assert.Equal(t, []model.Card{want[2]}, game.DealerCards)
	assert.Equal(t, uint64(3), game.DrawCursor)
}

func TestDealer_DealBeforeFulfillment(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	game, err := tb.dealer.StartGame(ctx, player, dec("100"))
	require.NoError(t, err)

	_, err = tb.dealer.DealInitialCards(ctx, player, game.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotFulfilled))
}

func TestDealer_PlayerOnly(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	game, err := tb.dealer.StartGame(ctx, player, dec("100"))
	require.NoError(t, err)
	tb.fulfill(t, game)

	_, err = tb.dealer.DealInitialCards(ctx, intruder, game.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotPlayer))

	_, err = tb.dealer.Hit(ctx, intruder, game.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotPlayer))

	_, err = tb.dealer.Hit(ctx, player, 99)
	assert.True(t, apperrors.IsType(err, apperrors.ErrUnknownGame))
}

func TestDealer_StandToSettlement(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	game, err := tb.dealer.StartGame(ctx, player, dec("100"))
	require.NoError(t, err)
	tb.fulfill(t, game)
	game, err = tb.dealer.DealInitialCards(ctx, player, game.ID)
	require.NoError(t, err)

	game, err = tb.dealer.Stand(ctx, player, game.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AwaitingActionRandomness, game.State)
	assert.Equal(t, model.DealDealer, game.PendingDeal)

	game = tb.runDealer(t, game)

	playerTotal := HandValue(game.PlayerCards)
	dealerTotal := HandValue(game.DealerCards)
	assert.GreaterOrEqual(t, dealerTotal, 17)

	// Outcome and payout must agree with the final hands.
	switch game.Outcome {
	case model.OutcomeDealerBust:
		assert.Greater(t, dealerTotal, 21)
		assert.True(t, tb.tokens.BalanceOf(player).Equal(dec("1100")))
	case model.OutcomePlayerWin:
		assert.Greater(t, playerTotal, dealerTotal)
		assert.True(t, tb.tokens.BalanceOf(player).Equal(dec("1100")))
	case model.OutcomePush:
		assert.Equal(t, playerTotal, dealerTotal)
		assert.True(t, tb.tokens.BalanceOf(player).Equal(dec("1000")))
	case model.OutcomeDealerWin:
		assert.Less(t, playerTotal, dealerTotal)
		assert.LessOrEqual(t, dealerTotal, 21)
		assert.True(t, tb.tokens.BalanceOf(player).Equal(dec("900")))
	default:
		t.Fatalf("unexpected outcome %s", game.Outcome)
	}

	// Settled hands accept no further actions.
	_, err = tb.dealer.Hit(ctx, player, game.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidGameState))
}

func TestDealer_HitFlow(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	game, err := tb.dealer.StartGame(ctx, player, dec("100"))
	require.NoError(t, err)
	tb.fulfill(t, game)
	game, err = tb.dealer.DealInitialCards(ctx, player, game.ID)
	require.NoError(t, err)

	game, err = tb.dealer.Hit(ctx, player, game.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AwaitingActionRandomness, game.State)
	assert.Equal(t, model.DealHit, game.PendingDeal)

	tb.fulfill(t, game)
	game, err = tb.dealer.DealHitCard(ctx, player, game.ID)
	require.NoError(t, err)
	require.Len(t, game.PlayerCards, 3)

	if HandValue(game.PlayerCards) > 21 {
		assert.Equal(t, model.Settled, game.State)
		assert.Equal(t, model.OutcomePlayerBust, game.Outcome)
		assert.True(t, tb.tokens.BalanceOf(player).Equal(dec("900")))
	} else {
		assert.Equal(t, model.PlayerTurn, game.State)
	}
}

func TestDealer_DoubleDownDoublesBet(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	game, err := tb.dealer.StartGame(ctx, player, dec("100"))
	require.NoError(t, err)
	tb.fulfill(t, game)
	game, err = tb.dealer.DealInitialCards(ctx, player, game.ID)
	require.NoError(t, err)

	game, err = tb.dealer.DoubleDown(ctx, player, game.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DealDoubleDown, game.PendingDeal)
	assert.True(t, game.Bet.Equal(dec("200")))
	assert.True(t, tb.tokens.BalanceOf(player).Equal(dec("800")))

	tb.fulfill(t, game)
	game, err = tb.dealer.DealDoubleDownCard(ctx, player, game.ID)
	require.NoError(t, err)
	require.Len(t, game.PlayerCards, 3)

	if HandValue(game.PlayerCards) > 21 {
		assert.Equal(t, model.Settled, game.State)
		assert.Equal(t, model.OutcomePlayerBust, game.Outcome)
		return
	}

	// One card only, then the dealer draws.
	assert.Equal(t, model.DealerTurn, game.State)
	game = tb.runDealer(t, game)

	balance := tb.tokens.BalanceOf(player)
	switch game.Outcome {
	case model.OutcomePlayerWin, model.OutcomeDealerBust:
		assert.True(t, balance.Equal(dec("1200")))
	case model.OutcomePush:
		assert.True(t, balance.Equal(dec("1000")))
	default:
		assert.True(t, balance.Equal(dec("800")))
	}
}

func TestDealer_DoubleDownEscrowFailure(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	// Allowance covers only the opening bet.
	require.NoError(t, tb.tokens.Approve(player, house, dec("100")))

	game, err := tb.dealer.StartGame(ctx, player, dec("100"))
	require.NoError(t, err)
	tb.fulfill(t, game)
	game, err = tb.dealer.DealInitialCards(ctx, player, game.ID)
	require.NoError(t, err)

	_, err = tb.dealer.DoubleDown(ctx, player, game.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrInsufficientFunds))

	// The hand is untouched and still playable.
	game, err = tb.dealer.Game(game.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlayerTurn, game.State)
	assert.True(t, game.Bet.Equal(dec("100")))
}

func TestDealer_ActionsRequirePlayerTurn(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	game, err := tb.dealer.StartGame(ctx, player, dec("100"))
	require.NoError(t, err)

	_, err = tb.dealer.Hit(ctx, player, game.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidGameState))
	_, err = tb.dealer.Stand(ctx, player, game.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidGameState))
	_, err = tb.dealer.DoubleDown(ctx, player, game.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidGameState))
	_, err = tb.dealer.DealDealerCard(ctx, player, game.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidGameState))
}

func TestDealer_CancelRefundsExpiredRequest(t *testing.T) {
	tb := newTable(t, 20*time.Millisecond)
	ctx := context.Background()

	game, err := tb.dealer.StartGame(ctx, player, dec("100"))
	require.NoError(t, err)

	// Still in flight.
	_, err = tb.dealer.Cancel(ctx, player, game.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotFulfilled))

	require.Eventually(t, func() bool {
		return tb.broker.Expired(game.PendingRequestID)
	}, time.Second, 5*time.Millisecond)

	game, err = tb.dealer.Cancel(ctx, player, game.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Settled, game.State)
	assert.Equal(t, model.OutcomeCancelled, game.Outcome)
	assert.True(t, tb.tokens.BalanceOf(player).Equal(dec("1000")))
}

func TestDealer_CancelUnavailableWithoutTTL(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	game, err := tb.dealer.StartGame(ctx, player, dec("100"))
	require.NoError(t, err)

	_, err = tb.dealer.Cancel(ctx, player, game.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotFulfilled))
}

// lowDealerWord finds a word whose derived card keeps the dealer under the
// stand threshold, forcing another draw request.
func lowDealerWord(upCard model.Card, cursor uint64) *big.Int {
	for i := int64(1); ; i++ {
		w := big.NewInt(i)
		if HandValue([]model.Card{upCard, DeriveCard(w, cursor)}) < dealerStandsAt {
			return w
		}
	}
}

// strandDealerDraw plays a hand into the dealer phase and knocks the
// coordinator out for the follow-up draw request, after the current word
// has already been consumed.
func (tb *table) strandDealerDraw(t *testing.T) *model.Game {
	t.Helper()
	ctx := context.Background()

	game, err := tb.dealer.StartGame(ctx, player, dec("100"))
	require.NoError(t, err)
	tb.fulfill(t, game)
	game, err = tb.dealer.DealInitialCards(ctx, player, game.ID)
	require.NoError(t, err)

	game, err = tb.dealer.Stand(ctx, player, game.ID)
	require.NoError(t, err)

	word := lowDealerWord(game.DealerCards[0], game.DrawCursor)
	require.NoError(t, tb.broker.Fulfill(oracleID, game.PendingRequestID, []*big.Int{word}))

	tb.coord.fail = true
	_, err = tb.dealer.DealDealerCard(ctx, player, game.ID)
	require.Error(t, err)
	tb.coord.fail = false

	game, err = tb.dealer.Game(game.ID)
	require.NoError(t, err)
	return game
}

func TestDealer_DealerDrawFailureIsRecoverable(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	game := tb.strandDealerDraw(t)
	assert.Equal(t, model.DealerTurn, game.State)
	assert.Equal(t, model.DealDealer, game.PendingDeal)
	assert.Empty(t, game.PendingRequestID)
	require.Len(t, game.DealerCards, 2)

	// The next deal call re-issues the lost request instead of dealing.
	game, err := tb.dealer.DealDealerCard(ctx, player, game.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, game.PendingRequestID)
	assert.Len(t, game.DealerCards, 2)

	game = tb.runDealer(t, game)
	assert.Equal(t, model.Settled, game.State)
}

func TestDealer_CancelAfterFailedDealerDraw(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	game := tb.strandDealerDraw(t)

	// The oracle stays down; cancel must still refund the escrowed bet.
	tb.coord.fail = true
	game, err := tb.dealer.Cancel(ctx, player, game.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Settled, game.State)
	assert.Equal(t, model.OutcomeCancelled, game.Outcome)
	assert.True(t, tb.tokens.BalanceOf(player).Equal(dec("1000")))
}

func TestDealer_ConcurrentGamesAreIndependent(t *testing.T) {
	tb := newTable(t, 0)
	ctx := context.Background()

	g1, err := tb.dealer.StartGame(ctx, player, dec("50"))
	require.NoError(t, err)
	// The per-game requester keeps the broker's single-flight rule from
	// coupling distinct hands.
	g2, err := tb.dealer.StartGame(ctx, player, dec("50"))
	require.NoError(t, err)
	assert.NotEqual(t, g1.PendingRequestID, g2.PendingRequestID)

	tb.fulfill(t, g2)
	g2, err = tb.dealer.DealInitialCards(ctx, player, g2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlayerTurn, g2.State)

	g1, err = tb.dealer.Game(g1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AwaitingInitialRandomness, g1.State)
}
