package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentinel errors for human-verification failures.
var (
	ErrVerifierUnreachable = errors.New("verification service unreachable")
	ErrVerifierTimeout     = errors.New("verification service timeout")
	ErrVerificationFailed  = errors.New("verification failed")
)

// Verifier checks a human-verification token issued to a client.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// HCaptchaVerifier implements Verifier against the hCaptcha siteverify API.
type HCaptchaVerifier struct {
	secret    string
	verifyURL string
	client    *http.Client
}

// NewHCaptchaVerifier creates a verifier whose requests are bounded by timeout.
func NewHCaptchaVerifier(secret, verifyURL string, timeout time.Duration) *HCaptchaVerifier {
	return &HCaptchaVerifier{
		secret:    secret,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: timeout},
	}
}

func (v *HCaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return fmt.Errorf("%w: missing token", ErrVerificationFailed)
	}

	form := url.Values{
		"secret":   {v.secret},
		"response": {token},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrVerificationFailed, resp.StatusCode)
	}

	var body siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrVerificationFailed, err)
	}
	if !body.Success {
		return fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(body.ErrorCodes, ","))
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrVerifierTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrVerifierTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrVerifierUnreachable, err)
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Compile-time check that HCaptchaVerifier implements Verifier.
var _ Verifier = (*HCaptchaVerifier)(nil)
