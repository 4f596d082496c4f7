package captcha

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forots/vigia/internal/api/middleware"
	"github.com/forots/vigia/internal/guard"
	"github.com/forots/vigia/internal/logger"
)

const resultKey = "captchaResult"

// maxBodyPeek bounds how much of the request body the token peek reads.
const maxBodyPeek = 1 << 20

type tokenEnvelope struct {
	Token string `json:"recaptchaToken"`
}

// Gate returns middleware enforcing the score gate for one expected action.
// Rejection rules, in order: missing token is a client error; a provider
// "not success" verdict rejects the token; a score below threshold rejects
// and feeds a low-score strike against the IP; an action mismatch rejects
// regardless of score, because a replayed token for a different action must
// not pass. A transport failure of the verification call rejects nothing
// into the guard — slowness is not evidence of abuse.
func Gate(verifier *Verifier, g *guard.Guard, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := peekToken(c)
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Falta el token de reCAPTCHA.",
			})
			return
		}

		result, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			logger.WithFields(map[string]interface{}{"error": err.Error()}).
				Warn("reCAPTCHA verification failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "Error verificando reCAPTCHA.",
			})
			return
		}

		if !result.Success {
			middleware.SetSecurityCode(c, "FORBIDDEN")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "reCAPTCHA inválido.",
			})
			return
		}

		ip := middleware.GetClientIP(c)

		if result.Score < verifier.cfg.Threshold {
			g.LowScoreStrike(c.Request.Context(), ip, action, c.Request.URL.Path, result.Score)
			middleware.SetSecurityCode(c, "FORBIDDEN")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "reCAPTCHA score demasiado bajo.",
				"score":   result.Score,
			})
			return
		}

		if action != "" && result.Action != "" && result.Action != action {
			middleware.SetSecurityCode(c, "FORBIDDEN")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Acción de reCAPTCHA no coincide.",
			})
			return
		}

		c.Set(resultKey, result)
		c.Next()
	}
}

// GetResult returns the verified score for downstream audit logging.
func GetResult(c *gin.Context) *Result {
	if v, ok := c.Get(resultKey); ok {
		if r, ok := v.(*Result); ok {
			return r
		}
	}
	return nil
}

// peekToken extracts recaptchaToken from the JSON body without consuming it,
// so the handler can still bind the full request.
func peekToken(c *gin.Context) (string, bool) {
	if c.Request.Body == nil {
		return "", false
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyPeek))
	if err != nil {
		return "", false
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	var env tokenEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", false
	}
	return env.Token, true
}
