// Package gateway is the HTTP client for the Evolution API, the WhatsApp
// provider that hosts one instance per tenant.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"workshop_crm_backend/platform/apperr"
	"workshop_crm_backend/platform/config"
	"workshop_crm_backend/platform/logger"
	"workshop_crm_backend/platform/metrics"
	"workshop_crm_backend/platform/phone"
)

// Events the provider is asked to deliver to the webhook.
var webhookEvents = []string{"CONNECTION_UPDATE", "MESSAGES_UPSERT"}

const maxErrorBody = 512

// ErrInstanceExists means the provider already hosts an instance with the
// requested name.
var ErrInstanceExists = errors.New("instance already exists")

type providerError struct {
	status int
	body   string
}

func (e *providerError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.status, e.body)
}

func instanceExists(err error) bool {
	var pe *providerError
	if !errors.As(err, &pe) {
		return false
	}
	if pe.status != http.StatusForbidden && pe.status != http.StatusConflict {
		return false
	}
	return strings.Contains(strings.ToLower(pe.body), "already in use")
}

type Client struct {
	baseURL       string
	apiKey        string
	webhookURL    string
	webhookSecret string
	http          *http.Client
	log           *logger.Logger
}

// Instance is the provider's view of a tenant instance.
type Instance struct {
	InstanceName string `json:"instanceName"`
	InstanceID   string `json:"instanceId"`
	Status       string `json:"status"`
}

// QRCode is the pairing material for linking a phone.
type QRCode struct {
	Base64      string `json:"base64"`
	PairingCode string `json:"pairingCode"`
	Code        string `json:"code"`
	Count       int    `json:"count"`
}

// SendResult carries the provider-assigned id of an outbound message.
type SendResult struct {
	ID string
}

func NewClient(cfg config.EvolutionConfig, log *logger.Logger) *Client {
	timeout := cfg.GetEvolutionTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.GetEvolutionBaseURL(), "/"),
		apiKey:        cfg.GetEvolutionAPIKey(),
		webhookURL:    cfg.GetEvolutionWebhookURL(),
		webhookSecret: cfg.GetEvolutionWebhookSecret(),
		http:          &http.Client{Timeout: timeout},
		log:           log,
	}
}

type createInstanceRequest struct {
	InstanceName string         `json:"instanceName"`
	Integration  string         `json:"integration"`
	QRCode       bool           `json:"qrcode"`
	RejectCall   bool           `json:"rejectCall"`
	GroupsIgnore bool           `json:"groupsIgnore"`
	AlwaysOnline bool           `json:"alwaysOnline"`
	ReadMessages bool           `json:"readMessages"`
	ReadStatus   bool           `json:"readStatus"`
	Webhook      *webhookConfig `json:"webhook,omitempty"`
}

type webhookConfig struct {
	URL      string            `json:"url"`
	ByEvents bool              `json:"byEvents"`
	Base64   bool              `json:"base64"`
	Events   []string          `json:"events"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// CreateInstance registers a new instance and, when a webhook URL is
// configured, points its events at us.
func (c *Client) CreateInstance(ctx context.Context, instanceName string) (Instance, error) {
	body := createInstanceRequest{
		InstanceName: instanceName,
		Integration:  "WHATSAPP-BAILEYS",
		QRCode:       true,
		RejectCall:   true,
		GroupsIgnore: true,
	}
	if c.webhookURL != "" {
		body.Webhook = &webhookConfig{
			URL:    c.webhookURL,
			Events: webhookEvents,
		}
		if c.webhookSecret != "" {
			body.Webhook.Headers = map[string]string{"x-webhook-secret": c.webhookSecret}
		}
	}

	var resp struct {
		Instance Instance `json:"instance"`
	}
	if err := c.do(ctx, "create_instance", instanceName, http.MethodPost, "/instance/create", body, &resp); err != nil {
		if instanceExists(err) {
			return Instance{InstanceName: instanceName}, fmt.Errorf("create %s: %w", instanceName, ErrInstanceExists)
		}
		return Instance{}, err
	}
	if resp.Instance.InstanceName == "" {
		resp.Instance.InstanceName = instanceName
	}
	return resp.Instance, nil
}

func (c *Client) GetQRCode(ctx context.Context, instanceName string) (QRCode, error) {
	var qr QRCode
	err := c.do(ctx, "get_qr_code", instanceName, http.MethodGet, "/instance/connect/"+url.PathEscape(instanceName), nil, &qr)
	return qr, err
}

// GetConnectionState returns the provider state ("open", "close",
// "connecting"). A missing state reads as "close".
func (c *Client) GetConnectionState(ctx context.Context, instanceName string) (string, error) {
	var resp struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
		State string `json:"state"`
	}
	if err := c.do(ctx, "connection_state", instanceName, http.MethodGet, "/instance/connectionState/"+url.PathEscape(instanceName), nil, &resp); err != nil {
		return "", err
	}
	switch {
	case resp.Instance.State != "":
		return resp.Instance.State, nil
	case resp.State != "":
		return resp.State, nil
	default:
		return "close", nil
	}
}

func (c *Client) Disconnect(ctx context.Context, instanceName string) error {
	return c.do(ctx, "logout", instanceName, http.MethodDelete, "/instance/logout/"+url.PathEscape(instanceName), nil, nil)
}

// FetchMessages returns the raw provider message objects exchanged with the
// phone number. Both the bare array and the paginated shape are accepted.
func (c *Client) FetchMessages(ctx context.Context, instanceName, phoneNumber string) ([]json.RawMessage, error) {
	body := map[string]any{
		"where": map[string]any{
			"key": map[string]any{"remoteJid": phone.JIDFromDigits(phone.Digits(phoneNumber))},
		},
	}
	var raw json.RawMessage
	if err := c.do(ctx, "fetch_messages", instanceName, http.MethodPost, "/chat/findMessages/"+url.PathEscape(instanceName), body, &raw); err != nil {
		return nil, err
	}
	return decodeMessageList(raw)
}

func decodeMessageList(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, apperr.Transport("fetch_messages", err)
		}
		return list, nil
	}
	var page struct {
		Messages struct {
			Records []json.RawMessage `json:"records"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, apperr.Transport("fetch_messages", err)
	}
	return page.Messages.Records, nil
}

// SendText sends a text message and returns the provider message id.
func (c *Client) SendText(ctx context.Context, instanceName, phoneNumber, text string) (SendResult, error) {
	body := map[string]string{
		"number": phone.Digits(phoneNumber),
		"text":   text,
	}
	var resp struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
		ID string `json:"id"`
	}
	if err := c.do(ctx, "send_text", instanceName, http.MethodPost, "/message/sendText/"+url.PathEscape(instanceName), body, &resp); err != nil {
		return SendResult{}, err
	}
	id := resp.Key.ID
	if id == "" {
		id = resp.ID
	}
	return SendResult{ID: id}, nil
}

// do performs one provider call. Every failure comes back as a Transport error.
func (c *Client) do(ctx context.Context, op, instanceName, method, path string, in, out any) (err error) {
	started := time.Now()
	status := 0
	defer func() {
		metrics.RecordGatewayCall(op, started, err)
		if c.log != nil {
			c.log.WithContext(ctx).GatewayCall(op, instanceName, status, err)
		}
	}()

	var reader io.Reader
	if in != nil {
		payload, marshalErr := json.Marshal(in)
		if marshalErr != nil {
			return apperr.Transport(op, fmt.Errorf("marshal request: %w", marshalErr))
		}
		reader = bytes.NewReader(payload)
	}

	req, reqErr := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if reqErr != nil {
		return apperr.Transport(op, reqErr)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, doErr := c.http.Do(req)
	if doErr != nil {
		return apperr.Transport(op, doErr)
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperr.Transport(op, &providerError{status: resp.StatusCode, body: strings.TrimSpace(string(data))})
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil && decodeErr != io.EOF {
		return apperr.Transport(op, fmt.Errorf("decode response: %w", decodeErr))
	}
	return nil
}
