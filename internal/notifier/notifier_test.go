package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargo_ingest/internal/domain"
	"cargo_ingest/internal/retry"
	"cargo_ingest/testdata/utils"
)

func testRecord() *domain.LoadRecord {
	return &domain.LoadRecord{
		TripID:           "2024-000123",
		TransportType:    utils.Ptr("Rodoviário"),
		Origin:           utils.Ptr("Campinas - SP"),
		Destination:      utils.Ptr("Curitiba - PR"),
		Product:          utils.Ptr("Bobinas de aço"),
		ExpectedPickupAt: utils.Ptr("15/03/2024 08:00"),
		FreightValue:     utils.Ptr("R$ 4.500,00"),
	}
}

func newTestWhatsApp(baseURL string, policy retry.Policy) *WhatsApp {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWhatsApp(Config{
		BaseURL:   baseURL,
		Instance:  "dispatch",
		APIKey:    "gateway-key",
		PortalURL: "https://portal.example.com",
		Timeout:   5 * time.Second,
	}, retry.New(policy, logger), logger)
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestSend_PostsSendText(t *testing.T) {
	var got sendTextRequest
	var path, apiKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		apiKey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	w := newTestWhatsApp(srv.URL+"/", fastRetry())

	err := w.Send(context.Background(), "5511999990000", testRecord())
	require.NoError(t, err)

	assert.Equal(t, "/message/sendText/dispatch", path)
	assert.Equal(t, "gateway-key", apiKey)
	assert.Equal(t, "5511999990000", got.Number)
	assert.Contains(t, got.Text, "*Viagem:* 2024-000123")
	assert.True(t, strings.HasSuffix(got.Text, "https://portal.example.com"))
}

func TestSend_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "gateway busy", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestWhatsApp(srv.URL, fastRetry()).Send(context.Background(), "5511999990000", testRecord())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSend_DeliveryError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{name: "client error is not retried", status: http.StatusBadRequest, wantCalls: 1},
		{name: "rate limit is retried", status: http.StatusTooManyRequests, wantCalls: 3},
		{name: "server error exhausts retries", status: http.StatusInternalServerError, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":"number not on whatsapp"}`)
			}))
			defer srv.Close()

			err := newTestWhatsApp(srv.URL, fastRetry()).Send(context.Background(), "5511999990000", testRecord())

			var deliveryErr *domain.DeliveryError
			require.True(t, errors.As(err, &deliveryErr))
			assert.Equal(t, tt.status, deliveryErr.Status)
			assert.Equal(t, `{"error":"number not on whatsapp"}`, deliveryErr.Body)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestSend_MissingConfiguration(t *testing.T) {
	w := newTestWhatsApp("http://gateway", fastRetry())
	w.cfg.APIKey = ""

	err := w.Send(context.Background(), "5511999990000", testRecord())

	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "messaging.api_key", cfgErr.Setting)
}

func TestFormatMessage(t *testing.T) {
	text := FormatMessage(&domain.LoadRecord{TripID: "2024-000124", Origin: utils.Ptr("Betim - MG")}, "")

	assert.Contains(t, text, "*Viagem:* 2024-000124")
	assert.Contains(t, text, "*Origem:* Betim - MG")
	assert.Contains(t, text, "*Destino:* N/A")
	assert.Contains(t, text, "*Valor do frete:* N/A")
	assert.True(t, strings.HasSuffix(text, "Acesse o portal: N/A"))

	full := FormatMessage(testRecord(), "https://portal.example.com")
	assert.Contains(t, full, "*Previsão de coleta:* 15/03/2024 08:00")
	assert.Contains(t, full, "*Equipamento:* N/A")
}

func TestDirectory_Lookup(t *testing.T) {
	d := NewDirectory(map[string]string{
		"dispatcher": "5511999990000",
		"manager":    "",
	}, []string{"dispatcher", "manager", "owner"})

	assert.Equal(t, []string{"dispatcher", "manager", "owner"}, d.Recipients())

	phone, err := d.Lookup("dispatcher")
	require.NoError(t, err)
	assert.Equal(t, "5511999990000", phone)

	for _, name := range []string{"manager", "owner"} {
		_, err := d.Lookup(name)
		var cfgErr *domain.ConfigurationError
		require.True(t, errors.As(err, &cfgErr), name)
		assert.Equal(t, "recipients."+name, cfgErr.Setting)
	}
}
