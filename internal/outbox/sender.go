package outbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/civitas/internal/auth"
)

// IdempotencyKeyHeader carries the item id on delivery.
const IdempotencyKeyHeader = "Idempotency-Key"

// Sender delivers one item.
type Sender interface {
	Send(ctx context.Context, it Item) error
}

// DeliveryError is a failed delivery. Retryable failures keep the item
// queued; the rest drop it at once.
type DeliveryError struct {
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("delivery failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsRetryable reports whether err leaves the item worth retrying. Errors
// that are not a DeliveryError count as retryable.
func IsRetryable(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return true
}

var paths = map[Kind]string{
	KindSubmit:   "/api/civilian/submit",
	KindAllocate: "/api/allocate",
}

// HTTPSender posts items to the API as the item's actor.
type HTTPSender struct {
	baseURL string
	tokens  *auth.TokenService
	client  *http.Client
}

// NewHTTPSender creates an HTTPSender for the API at baseURL. A nil client
// uses one with a 10 second timeout.
func NewHTTPSender(baseURL string, tokens *auth.TokenService, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSender{baseURL: strings.TrimRight(baseURL, "/"), tokens: tokens, client: client}
}

// Send implements Sender.
func (s *HTTPSender) Send(ctx context.Context, it Item) error {
	path, ok := paths[it.Kind]
	if !ok {
		return &DeliveryError{Err: fmt.Errorf("%w: unknown kind %q", ErrInvalidItem, it.Kind)}
	}
	token, err := s.tokens.Issue(it.ActorID, it.ActorRole)
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("issue token: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(it.Payload))
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(IdempotencyKeyHeader, it.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return &DeliveryError{Retryable: true, Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &DeliveryError{
		StatusCode: resp.StatusCode,
		Retryable:  retryableStatus(resp.StatusCode),
		Err:        errors.New(strings.TrimSpace(string(body))),
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}
