package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/logging"
)

// HTTPTransport posts notifications to a gateway that accepts them
// asynchronously with 202.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type gatewayPayload struct {
	NotificationID string            `json:"notification_id"`
	UserID         string            `json:"user_id,omitempty"`
	Recipient      string            `json:"recipient,omitempty"`
	Channel        string            `json:"channel"`
	Event          string            `json:"event"`
	Data           map[string]string `json:"data,omitempty"`
}

func (c *HTTPTransport) Send(ctx context.Context, userID uuid.UUID, channel string, event Event) error {
	log := logging.FromContext(ctx)

	payload := gatewayPayload{
		NotificationID: uuid.NewString(),
		Recipient:      event.Recipient,
		Channel:        channel,
		Event:          string(event.Type),
		Data:           event.Data,
	}
	if userID != uuid.Nil {
		payload.UserID = userID.String()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("Send: marshal: %w", err)
	}

	url := c.baseURL + "/notifications"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("Send: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("Send: %w", err)
	}
	defer resp.Body.Close()

	log.Debug("notification gateway responded",
		"event", event.Type,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("Send: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
