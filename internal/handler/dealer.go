package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/biscalabs/biscagate/internal/dealer"
	"github.com/biscalabs/biscagate/internal/middleware"
	"github.com/biscalabs/biscagate/internal/model"
	"github.com/biscalabs/biscagate/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type DealerHandler struct {
	svc *dealer.Dealer
}

func NewDealerHandler(svc *dealer.Dealer) *DealerHandler {
	return &DealerHandler{svc: svc}
}

func (h *DealerHandler) StartGame(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "caller address required"})
		return
	}

	var req model.StartGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bet, err := decimal.NewFromString(req.Bet)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed bet amount"})
		return
	}

	game, err := h.svc.StartGame(c.Request.Context(), caller, bet)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gameResponse(game))
}

// Deal advances whichever deal the game is waiting on. The split keeps the
// HTTP surface small while the service still validates the exact pending
// deal kind.
func (h *DealerHandler) Deal(c *gin.Context) {
	caller, gameID, ok := h.callerAndGame(c)
	if !ok {
		return
	}

	game, err := h.svc.Game(gameID)
	if err != nil {
		c.Error(err)
		return
	}

	var out *model.Game
	switch game.PendingDeal {
	case model.DealInitial:
		out, err = h.svc.DealInitialCards(c.Request.Context(), caller, gameID)
	case model.DealHit:
		out, err = h.svc.DealHitCard(c.Request.Context(), caller, gameID)
	case model.DealDoubleDown:
		out, err = h.svc.DealDoubleDownCard(c.Request.Context(), caller, gameID)
	case model.DealDealer:
		out, err = h.svc.DealDealerCard(c.Request.Context(), caller, gameID)
	default:
		err = apperrors.Newf(apperrors.ErrInvalidGameState,
			"game %d has no pending deal", gameID)
	}
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gameResponse(out))
}

func (h *DealerHandler) Hit(c *gin.Context) {
	h.action(c, h.svc.Hit)
}

func (h *DealerHandler) Stand(c *gin.Context) {
	h.action(c, h.svc.Stand)
}

func (h *DealerHandler) DoubleDown(c *gin.Context) {
	h.action(c, h.svc.DoubleDown)
}

func (h *DealerHandler) Cancel(c *gin.Context) {
	h.action(c, h.svc.Cancel)
}

func (h *DealerHandler) GetGame(c *gin.Context) {
	gameID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed game id"})
		return
	}
	game, err := h.svc.Game(gameID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gameResponse(game))
}

func (h *DealerHandler) action(c *gin.Context, fn func(ctx context.Context, caller common.Address, gameID uint64) (*model.Game, error)) {
	caller, gameID, ok := h.callerAndGame(c)
	if !ok {
		return
	}
	game, err := fn(c.Request.Context(), caller, gameID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gameResponse(game))
}

func (h *DealerHandler) callerAndGame(c *gin.Context) (common.Address, uint64, bool) {
	caller, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "caller address required"})
		return common.Address{}, 0, false
	}
	gameID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed game id"})
		return common.Address{}, 0, false
	}
	return caller, gameID, true
}

func gameResponse(g *model.Game) model.GameResponse {
	return model.GameResponse{
		ID:               g.ID,
		Player:           g.Player.Hex(),
		State:            g.State.String(),
		Bet:              g.Bet.String(),
		PlayerCards:      cardNames(g.PlayerCards),
		DealerCards:      cardNames(g.DealerCards),
		PlayerTotal:      dealer.HandValue(g.PlayerCards),
		DealerTotal:      dealer.HandValue(g.DealerCards),
		PendingRequestID: g.PendingRequestID,
		Outcome:          string(g.Outcome),
	}
}

func cardNames(cards []model.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = dealer.CardName(c)
	}
	return out
}
