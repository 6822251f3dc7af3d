package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	// HMAC-SHA256 keyed by "1700000000\nsecret" over an empty message
	assert.Equal(t, "fiWS2+gh28DOydAv7hzONH/mDn9+b1Y4Y5ivXWXy8vA=", Sign(1700000000, "secret"))
	assert.NotEqual(t, Sign(1700000000, "secret"), Sign(1700000001, "secret"))
	assert.NotEqual(t, Sign(1700000000, "secret"), Sign(1700000000, "other"))
	assert.Len(t, Sign(1, "x"), 44) // base64 of 32 bytes
}

func captureServer(t *testing.T, response string, status int, captured *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			require.NoError(t, json.Unmarshal(body, captured))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestWebhookTransport_SendsSignedCard(t *testing.T) {
	var payload map[string]any
	server := captureServer(t, `{"code":0,"msg":"success"}`, http.StatusOK, &payload)

	transport := NewWebhookTransport(server.URL, "s3cret", time.Second)
	transport.now = func() time.Time { return time.Unix(1700000000, 0) }

	card := newCard("Collection summary", TemplateBlue).markdown("hello")
	require.NoError(t, transport.Send(context.Background(), Message{Kind: KindSummary, Card: card}))

	assert.Equal(t, "interactive", payload["msg_type"])
	assert.Equal(t, "1700000000", payload["timestamp"])
	assert.Equal(t, Sign(1700000000, "s3cret"), payload["sign"])

	cardJSON, ok := payload["card"].(map[string]any)
	require.True(t, ok)
	header := cardJSON["header"].(map[string]any)
	assert.Equal(t, "blue", header["template"])
}

func TestWebhookTransport_UnsignedText(t *testing.T) {
	var payload map[string]any
	server := captureServer(t, `{"code":0}`, http.StatusOK, &payload)

	transport := NewWebhookTransport(server.URL, "", time.Second)
	require.NoError(t, transport.Send(context.Background(), Message{Kind: KindText, Text: "hi"}))

	assert.Equal(t, "text", payload["msg_type"])
	assert.NotContains(t, payload, "sign")
	assert.NotContains(t, payload, "timestamp")
	assert.Equal(t, map[string]any{"text": "hi"}, payload["content"])
}

func TestWebhookTransport_NonZeroCode(t *testing.T) {
	server := captureServer(t, `{"code":19021,"msg":"sign match fail or timestamp is not within one hour from current time"}`, http.StatusOK, nil)

	transport := NewWebhookTransport(server.URL, "s3cret", time.Second)
	err := transport.Send(context.Background(), Message{Kind: KindText, Text: "hi"})
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 19021, te.Code)
	assert.Equal(t, http.StatusOK, te.StatusCode)
	assert.Contains(t, err.Error(), "sign match fail")
}

func TestWebhookTransport_HTTPError(t *testing.T) {
	server := captureServer(t, `oops`, http.StatusBadGateway, nil)

	transport := NewWebhookTransport(server.URL, "", time.Second)
	err := transport.Send(context.Background(), Message{Kind: KindText, Text: "hi"})
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
}

func TestWebhookTransport_InvalidResponse(t *testing.T) {
	server := captureServer(t, `not json`, http.StatusOK, nil)

	transport := NewWebhookTransport(server.URL, "", time.Second)
	err := transport.Send(context.Background(), Message{Kind: KindText, Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid webhook response")
}

func TestWebhookTransport_MissingURL(t *testing.T) {
	transport := NewWebhookTransport("", "", time.Second)
	err := transport.Send(context.Background(), Message{Kind: KindText, Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
