// Package notifier delivers new-load alerts to recipients through an
// HTTP messaging gateway.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cargo_ingest/internal/domain"
	"cargo_ingest/internal/retry"
)

const maxErrorBodySize = 64 << 10

// Config holds messaging gateway settings.
type Config struct {
	BaseURL   string
	Instance  string
	APIKey    string
	PortalURL string
	Timeout   time.Duration
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// WhatsApp sends text messages through the gateway's sendText endpoint.
type WhatsApp struct {
	httpClient *http.Client
	cfg        Config
	retry      *retry.Executor
	logger     *slog.Logger
}

func NewWhatsApp(cfg Config, exec *retry.Executor, logger *slog.Logger) *WhatsApp {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &WhatsApp{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		retry:      exec,
		logger:     logger.With("component", "notifier"),
	}
}

// Send delivers the alert for record to phone. Missing gateway settings fail
// this call only.
func (w *WhatsApp) Send(ctx context.Context, phone string, record *domain.LoadRecord) error {
	for _, s := range []struct{ name, value string }{
		{"messaging.base_url", w.cfg.BaseURL},
		{"messaging.instance", w.cfg.Instance},
		{"messaging.api_key", w.cfg.APIKey},
	} {
		if s.value == "" {
			return &domain.ConfigurationError{Setting: s.name}
		}
	}

	body, err := json.Marshal(sendTextRequest{
		Number: phone,
		Text:   FormatMessage(record, w.cfg.PortalURL),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/message/sendText/%s", w.cfg.BaseURL, url.PathEscape(w.cfg.Instance))

	_, err = retry.Do(ctx, w.retry, "notifier.send_text", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.post(ctx, endpoint, body)
	})
	if err != nil {
		return err
	}

	w.logger.Debug("notification sent", "trip_id", record.TripID, "phone", phone)
	return nil
}

func (w *WhatsApp) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", w.cfg.APIKey)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	deliveryErr := &domain.DeliveryError{Status: resp.StatusCode, Body: string(text)}
	if !retryable(resp.StatusCode) {
		return retry.Permanent(deliveryErr)
	}
	return deliveryErr
}

func retryable(status int) bool {
	return status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}
