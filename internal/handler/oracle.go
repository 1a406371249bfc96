package handler

import (
	"errors"
	"math/big"
	"net/http"
	"strings"

	"github.com/biscalabs/biscagate/internal/middleware"
	"github.com/biscalabs/biscagate/internal/model"
	"github.com/biscalabs/biscagate/internal/oracle"
	"github.com/gin-gonic/gin"
)

var errMalformedWord = errors.New("malformed random word")

type OracleHandler struct {
	broker *oracle.Broker
}

func NewOracleHandler(broker *oracle.Broker) *OracleHandler {
	return &OracleHandler{broker: broker}
}

// Callback receives fulfillments from the oracle integration layer.
// The caller must authenticate as the configured oracle identity.
func (h *OracleHandler) Callback(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "caller address required"})
		return
	}

	var req model.OracleCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	words := make([]*big.Int, 0, len(req.Words))
	for _, raw := range req.Words {
		w, err := parseWord(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed random word: " + raw})
			return
		}
		words = append(words, w)
	}

	if err := h.broker.Fulfill(caller, req.RequestID, words); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": req.RequestID, "status": "fulfilled"})
}

func (h *OracleHandler) GetRequest(c *gin.Context) {
	id := c.Param("id")
	req, ok := h.broker.Snapshot(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown request"})
		return
	}
	resp := gin.H{
		"request_id": req.ID,
		"requester":  req.Requester.Hex(),
		"fulfilled":  req.Fulfilled,
	}
	c.JSON(http.StatusOK, resp)
}

func parseWord(raw string) (*big.Int, error) {
	w := new(big.Int)
	var ok bool
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		_, ok = w.SetString(raw[2:], 16)
	} else {
		_, ok = w.SetString(raw, 10)
	}
	if !ok {
		return nil, errMalformedWord
	}
	return w, nil
}
