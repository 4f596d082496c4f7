// Package captcha implements the score gate: it consumes an external
// bot-likelihood score for a client-supplied proof token and converts low
// scores into strikes against the client's IP.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/forots/vigia/internal/config"
)

// Result is the provider's verdict for one token. It is untrusted input:
// the reported action must match the expected one before the score counts.
type Result struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

// Verifier calls the reCAPTCHA siteverify endpoint with a bounded timeout.
type Verifier struct {
	cfg    config.CaptchaConfig
	client *http.Client
}

// NewVerifier builds a verifier over the configured endpoint and secret.
func NewVerifier(cfg config.CaptchaConfig) *Verifier {
	return &Verifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.VerifyWithin},
	}
}

// Verify submits the token and returns the provider's verdict. A transport
// or decode failure is an error of this call only — never evidence of abuse.
func (v *Verifier) Verify(ctx context.Context, token string) (*Result, error) {
	form := url.Values{}
	form.Set("secret", v.cfg.Secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.VerifyURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("siteverify call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("siteverify status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode siteverify response: %w", err)
	}
	return &result, nil
}
