package middleware

import (
	"net/http"

	"github.com/biscalabs/biscagate/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const (
	// HeaderCallerAddress carries the caller identity. A production
	// deployment would put a signature-verifying gateway in front; the core
	// only needs a stable identity per caller.
	HeaderCallerAddress = "X-Bisca-Address"
	ContextCallerKey    = "caller"
)

// AuthMiddleware resolves the caller address and stores it in the request
// context for handlers.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderCallerAddress)
		if raw == "" {
			if cfg != nil && !cfg.Auth.RequireAddress {
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller address"})
			c.Abort()
			return
		}
		if !common.IsHexAddress(raw) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "malformed caller address"})
			c.Abort()
			return
		}

		c.Set(ContextCallerKey, common.HexToAddress(raw))
		c.Next()
	}
}

// Caller extracts the authenticated address set by AuthMiddleware.
func Caller(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(ContextCallerKey)
	if !ok {
		return common.Address{}, false
	}
	addr, ok := v.(common.Address)
	return addr, ok
}
