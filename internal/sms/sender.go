// Package sms dispatches one-time codes through an external SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/loyaltix/server/internal/phone"
	"github.com/rs/zerolog"
)

// Sender delivers a message to a phone number. Implementations must not log
// the message body, it contains the plaintext code.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// LogSender is the development sender: it logs the delivery (masked phone,
// no body) instead of calling a gateway.
type LogSender struct {
	Log zerolog.Logger
}

func (s *LogSender) Send(ctx context.Context, to, message string) error {
	s.Log.Info().Str("phone", phone.Mask(to)).Msg("sms dispatched (dev mode, not sent)")
	return nil
}

// GatewaySender posts the message to an HTTP SMS gateway. No retries are
// performed; a failed dispatch surfaces to the caller.
type GatewaySender struct {
	URL    string
	APIKey string
	Client *http.Client
}

// NewGatewaySender creates a sender for the given gateway endpoint.
func NewGatewaySender(url, apiKey string) *GatewaySender {
	return &GatewaySender{
		URL:    url,
		APIKey: apiKey,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *GatewaySender) Send(ctx context.Context, to, message string) error {
	payload, err := json.Marshal(map[string]string{
		"to":   to,
		"body": message,
	})
	if err != nil {
		return fmt.Errorf("encode sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	return nil
}
