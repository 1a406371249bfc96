package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/biscalabs/biscagate/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// HistoryStore is the read side of the settled game archive.
type HistoryStore interface {
	GetByID(ctx context.Context, id uint64) (*model.GameRecord, error)
	ListByPlayer(ctx context.Context, player string, limit int) ([]*model.GameRecord, error)
}

type HistoryHandler struct {
	store HistoryStore
}

func NewHistoryHandler(store HistoryStore) *HistoryHandler {
	return &HistoryHandler{store: store}
}

func (h *HistoryHandler) GetGame(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed game id"})
		return
	}
	rec, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *HistoryHandler) ListByPlayer(c *gin.Context) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed address"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	recs, err := h.store.ListByPlayer(c.Request.Context(), common.HexToAddress(raw).Hex(), limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": common.HexToAddress(raw).Hex(), "games": recs})
}
