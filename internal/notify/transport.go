package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonathan/benchscope/internal/fetch"
)

// Kind labels what a message carries
type Kind string

// Message kinds sent by the Notifier
const (
	KindCandidate Kind = "candidate"
	KindDigest    Kind = "digest"
	KindSummary   Kind = "summary"
	KindText      Kind = "text"
)

// Message is one outbound notification
type Message struct {
	Kind Kind
	Card *Card
	Text string
}

// Transport delivers messages. Implementations return an error for every
// delivery that did not succeed.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// TransportError is returned when the webhook rejects a message
type TransportError struct {
	StatusCode int
	Code       int
	Message    string
	Cause      error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("webhook delivery failed (status %d): %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("webhook returned code %d: %s", e.Code, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// webhookPayload is the JSON body accepted by Feishu custom bots
type webhookPayload struct {
	Timestamp string       `json:"timestamp,omitempty"`
	Sign      string       `json:"sign,omitempty"`
	MsgType   string       `json:"msg_type"`
	Card      *Card        `json:"card,omitempty"`
	Content   *textContent `json:"content,omitempty"`
}

type textContent struct {
	Text string `json:"text"`
}

type webhookResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// WebhookTransport posts messages to a Feishu bot webhook
type WebhookTransport struct {
	url     string
	secret  string
	timeout time.Duration
	now     func() time.Time
}

// NewWebhookTransport creates a transport for url. When secret is non-empty
// every payload is signed.
func NewWebhookTransport(url, secret string, timeout time.Duration) *WebhookTransport {
	return &WebhookTransport{
		url:     url,
		secret:  secret,
		timeout: timeout,
		now:     time.Now,
	}
}

// Send posts msg and checks both the HTTP status and the bot response code.
func (t *WebhookTransport) Send(ctx context.Context, msg Message) error {
	if t.url == "" {
		return errors.New("webhook URL is not configured")
	}

	payload := webhookPayload{MsgType: "interactive", Card: msg.Card}
	if msg.Card == nil {
		payload = webhookPayload{MsgType: "text", Content: &textContent{Text: msg.Text}}
	}

	if t.secret != "" {
		ts := t.now().Unix()
		payload.Timestamp = strconv.FormatInt(ts, 10)
		payload.Sign = Sign(ts, t.secret)
	}

	result, err := fetch.PostJSON(ctx, t.url, payload, fetch.WithTimeout(t.timeout))
	if err != nil {
		status := 0
		if result != nil {
			status = result.StatusCode
		}
		return &TransportError{StatusCode: status, Cause: err}
	}

	var resp webhookResponse
	if err := json.Unmarshal(result.Body, &resp); err != nil {
		return &TransportError{StatusCode: result.StatusCode, Cause: fmt.Errorf("invalid webhook response: %w", err)}
	}
	if resp.Code != 0 {
		return &TransportError{StatusCode: result.StatusCode, Code: resp.Code, Message: resp.Msg}
	}
	return nil
}

// Sign computes the Feishu bot signature: HMAC-SHA256 keyed by
// "timestamp\nsecret" over an empty message, base64 encoded.
func Sign(timestamp int64, secret string) string {
	key := strconv.FormatInt(timestamp, 10) + "\n" + secret
	mac := hmac.New(sha256.New, []byte(key))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
