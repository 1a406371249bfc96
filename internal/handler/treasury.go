package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/biscalabs/biscagate/internal/middleware"
	"github.com/biscalabs/biscagate/internal/model"
	"github.com/biscalabs/biscagate/internal/treasury"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// EntryLister is the read side of the treasury settlement trail.
type EntryLister interface {
	List(ctx context.Context, kind string, limit int, from, to *time.Time) ([]*model.TreasuryEntry, error)
}

type TreasuryHandler struct {
	svc     *treasury.Treasury
	entries EntryLister
}

// NewTreasuryHandler builds the handler; entries may be nil when no
// database is configured.
func NewTreasuryHandler(svc *treasury.Treasury, entries EntryLister) *TreasuryHandler {
	return &TreasuryHandler{svc: svc, entries: entries}
}

func (h *TreasuryHandler) ProposeMint(c *gin.Context) {
	h.propose(c, h.svc.ProposeMint)
}

func (h *TreasuryHandler) ProposeBurn(c *gin.Context) {
	h.propose(c, h.svc.ProposeBurn)
}

func (h *TreasuryHandler) propose(c *gin.Context, fn func(caller, account common.Address, amount decimal.Decimal) (uint64, error)) {
	caller, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "caller address required"})
		return
	}

	var req model.ProposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !common.IsHexAddress(req.Account) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed account address"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed amount"})
		return
	}

	id, err := fn(caller, common.HexToAddress(req.Account), amount)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"proposal_id": id})
}

func (h *TreasuryHandler) Approve(c *gin.Context) {
	caller, id, ok := h.callerAndProposal(c)
	if !ok {
		return
	}
	if err := h.svc.Approve(caller, id); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal_id": id, "status": "approved"})
}

func (h *TreasuryHandler) Execute(c *gin.Context) {
	caller, id, ok := h.callerAndProposal(c)
	if !ok {
		return
	}
	if err := h.svc.Execute(caller, id); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal_id": id, "status": "executed"})
}

func (h *TreasuryHandler) GetProposal(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed proposal id"})
		return
	}
	p, err := h.svc.Proposal(id)
	if err != nil {
		c.Error(err)
		return
	}

	approvals := make([]string, 0, p.ApprovalCount())
	for _, a := range p.Approvers() {
		approvals = append(approvals, a.Hex())
	}
	c.JSON(http.StatusOK, model.ProposalResponse{
		ID:        p.ID,
		Submitter: p.Submitter.Hex(),
		Target:    p.Target.Hex(),
		Value:     p.Value.String(),
		Payload:   string(p.Payload),
		Approvals: approvals,
		Executed:  p.Executed,
	})
}

func (h *TreasuryHandler) TriggerRandomEvent(c *gin.Context) {
	id, err := h.svc.TriggerRandomEvent(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"request_id": id})
}

func (h *TreasuryHandler) HandleRandomness(c *gin.Context) {
	requestID := c.Param("requestId")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request id required"})
		return
	}
	if err := h.svc.HandleRandomness(c.Request.Context(), requestID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": requestID, "status": "handled"})
}

func (h *TreasuryHandler) Info(c *gin.Context) {
	owners := make([]string, 0)
	for _, o := range h.svc.Owners() {
		owners = append(owners, o.Hex())
	}
	c.JSON(http.StatusOK, gin.H{
		"owners":              owners,
		"required_signatures": h.svc.Required(),
	})
}

// ListEntries reads the recorded mint/burn settlement trail.
func (h *TreasuryHandler) ListEntries(c *gin.Context) {
	if h.entries == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "settlement trail is not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	recs, err := h.entries.List(c.Request.Context(), c.Query("kind"), limit, nil, nil)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": recs})
}

func (h *TreasuryHandler) callerAndProposal(c *gin.Context) (common.Address, uint64, bool) {
	caller, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "caller address required"})
		return common.Address{}, 0, false
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed proposal id"})
		return common.Address{}, 0, false
	}
	return caller, id, true
}
