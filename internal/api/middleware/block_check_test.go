package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forots/vigia/internal/guard"
)

func blockedRouter(store *guard.BlockStore) (*gin.Engine, *int) {
	handled := 0
	router := gin.New()
	router.Use(ClientIP())
	router.POST("/x", BlockCheck(store), func(c *gin.Context) {
		handled++
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return router, &handled
}

func TestBlockCheck_RejectsBlockedIP(t *testing.T) {
	store := guard.NewBlockStore(nil)
	store.Block(context.Background(), "1.2.3.4", time.Hour, "bruteforce:login:8")
	router, handled := blockedRouter(store)

	w := doPost(router, "1.2.3.4")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 0, *handled)

	var body struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "RATE_LIMIT", body.Code)
	assert.NotEmpty(t, body.Message)

	// The internal block reason must never leak to the client.
	assert.Empty(t, body.Reason)
	assert.NotContains(t, w.Body.String(), "bruteforce")
}

func TestBlockCheck_PassesUnblockedIP(t *testing.T) {
	store := guard.NewBlockStore(nil)
	store.Block(context.Background(), "9.9.9.9", time.Hour, "bruteforce:login:8")
	router, handled := blockedRouter(store)

	w := doPost(router, "1.2.3.4")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *handled)
}

func TestBlockCheck_ExpiredBlockPasses(t *testing.T) {
	store := guard.NewBlockStore(nil)
	store.Block(context.Background(), "1.2.3.4", time.Millisecond, "low_score:login:0.1")
	time.Sleep(5 * time.Millisecond)
	router, handled := blockedRouter(store)

	w := doPost(router, "1.2.3.4")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *handled)
}

func TestNormalizeIP(t *testing.T) {
	assert.Equal(t, "1.2.3.4", NormalizeIP("::ffff:1.2.3.4"))
	assert.Equal(t, "1.2.3.4", NormalizeIP("1.2.3.4"))
	assert.Equal(t, "2001:db8::1", NormalizeIP("2001:db8::1"))
}
