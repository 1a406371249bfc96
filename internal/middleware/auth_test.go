package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/biscalabs/biscagate/internal/config"
	"github.com/biscalabs/biscagate/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(cfg))
	r.GET("/whoami", func(c *gin.Context) {
		addr, ok := Caller(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"caller": ""})
			return
		}
		c.JSON(http.StatusOK, gin.H{"caller": addr.Hex()})
	})
	return r
}

func TestAuthMiddleware_ValidAddress(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.RequireAddress = true
	r := newAuthRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderCallerAddress, "0x00000000000000000000000000000000000000b1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), common.HexToAddress("0xb1").Hex()[:10])
}

func TestAuthMiddleware_MissingAddressRejected(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.RequireAddress = true
	r := newAuthRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_MalformedAddressRejected(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.RequireAddress = false
	r := newAuthRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderCallerAddress, "not-an-address")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_OptionalWhenNotRequired(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.RequireAddress = false
	r := newAuthRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"caller":""`)
}

func TestErrorHandler_MapsAppErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/conflict", func(c *gin.Context) {
		c.Error(apperrors.Newf(apperrors.ErrAlreadyPending, "still pending"))
	})
	r.GET("/boom", func(c *gin.Context) {
		c.Error(assert.AnError)
	})

	req := httptest.NewRequest(http.MethodGet, "/conflict", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_PENDING")

	req = httptest.NewRequest(http.MethodGet, "/boom", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
