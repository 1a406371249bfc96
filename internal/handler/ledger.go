package handler

import (
	"net/http"

	"github.com/biscalabs/biscagate/internal/ledger"
	"github.com/biscalabs/biscagate/internal/middleware"
	"github.com/biscalabs/biscagate/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type LedgerHandler struct {
	tokens ledger.Ledger
	name   string
	symbol string
}

func NewLedgerHandler(tokens ledger.Ledger, name, symbol string) *LedgerHandler {
	return &LedgerHandler{tokens: tokens, name: name, symbol: symbol}
}

func (h *LedgerHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":         h.name,
		"symbol":       h.symbol,
		"total_supply": h.tokens.TotalSupply().String(),
		"paused":       h.tokens.Paused(),
	})
}

func (h *LedgerHandler) Balance(c *gin.Context) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed address"})
		return
	}
	addr := common.HexToAddress(raw)
	c.JSON(http.StatusOK, gin.H{
		"address": addr.Hex(),
		"balance": h.tokens.BalanceOf(addr).String(),
	})
}

func (h *LedgerHandler) Allowance(c *gin.Context) {
	rawOwner, rawSpender := c.Param("owner"), c.Param("spender")
	if !common.IsHexAddress(rawOwner) || !common.IsHexAddress(rawSpender) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed address"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"owner":     common.HexToAddress(rawOwner).Hex(),
		"spender":   common.HexToAddress(rawSpender).Hex(),
		"allowance": h.tokens.Allowance(common.HexToAddress(rawOwner), common.HexToAddress(rawSpender)).String(),
	})
}

func (h *LedgerHandler) Transfer(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "caller address required"})
		return
	}
	var req model.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, amount, ok := parseAddrAmount(c, req.To, req.Amount)
	if !ok {
		return
	}
	if err := h.tokens.Transfer(caller, to, amount); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "transferred"})
}

func (h *LedgerHandler) TransferFrom(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "caller address required"})
		return
	}
	var req model.TransferFromRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !common.IsHexAddress(req.From) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed from address"})
		return
	}
	to, amount, ok := parseAddrAmount(c, req.To, req.Amount)
	if !ok {
		return
	}
	if err := h.tokens.TransferFrom(caller, common.HexToAddress(req.From), to, amount); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "transferred"})
}

func (h *LedgerHandler) Approve(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "caller address required"})
		return
	}
	var req model.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	spender, amount, ok := parseAddrAmount(c, req.Spender, req.Amount)
	if !ok {
		return
	}
	if err := h.tokens.Approve(caller, spender, amount); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

func (h *LedgerHandler) GrantRole(c *gin.Context) {
	h.roleChange(c, h.tokens.GrantRole, "granted")
}

func (h *LedgerHandler) RevokeRole(c *gin.Context) {
	h.roleChange(c, h.tokens.RevokeRole, "revoked")
}

func (h *LedgerHandler) roleChange(c *gin.Context, fn func(caller common.Address, role ledger.Role, account common.Address) error, status string) {
	caller, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "caller address required"})
		return
	}
	var req model.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, known := ledger.ParseRole(req.Role)
	if !known {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	if !common.IsHexAddress(req.Account) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed account address"})
		return
	}
	if err := fn(caller, role, common.HexToAddress(req.Account)); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *LedgerHandler) Pause(c *gin.Context) {
	h.pauseChange(c, h.tokens.Pause, "paused")
}

func (h *LedgerHandler) Unpause(c *gin.Context) {
	h.pauseChange(c, h.tokens.Unpause, "unpaused")
}

func (h *LedgerHandler) pauseChange(c *gin.Context, fn func(caller common.Address) error, status string) {
	caller, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "caller address required"})
		return
	}
	if err := fn(caller); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func parseAddrAmount(c *gin.Context, rawAddr, rawAmount string) (common.Address, decimal.Decimal, bool) {
	if !common.IsHexAddress(rawAddr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed address"})
		return common.Address{}, decimal.Zero, false
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed amount"})
		return common.Address{}, decimal.Zero, false
	}
	return common.HexToAddress(rawAddr), amount, true
}
