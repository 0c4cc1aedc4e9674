package service

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Event names after normalization.
const (
	EventConnectionUpdate = "connection.update"
	EventMessagesUpsert   = "messages.upsert"
)

// NormalizeEventName maps provider spellings such as CONNECTION_UPDATE onto
// the dotted lower-case form.
func NormalizeEventName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", ".")
}

type webhookEnvelope struct {
	Event    string          `json:"event"`
	Instance string          `json:"instance"`
	Data     json.RawMessage `json:"data"`
}

type connectionUpdate struct {
	State string `json:"state"`
	WUID  string `json:"wuid"`
}

type providerMessage struct {
	Key struct {
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
		ID        string `json:"id"`
	} `json:"key"`
	Message *struct {
		Conversation        *string `json:"conversation"`
		ExtendedTextMessage *struct {
			Text *string `json:"text"`
		} `json:"extendedTextMessage"`
	} `json:"message"`
	MessageTimestamp unixTimestamp `json:"messageTimestamp"`
}

// text returns the first non-empty text body.
func (m providerMessage) text() (string, bool) {
	if m.Message == nil {
		return "", false
	}
	if c := m.Message.Conversation; c != nil && strings.TrimSpace(*c) != "" {
		return *c, true
	}
	if ext := m.Message.ExtendedTextMessage; ext != nil && ext.Text != nil && strings.TrimSpace(*ext.Text) != "" {
		return *ext.Text, true
	}
	return "", false
}

// unixTimestamp accepts seconds as a JSON number or a numeric string.
// Anything else decodes to zero.
type unixTimestamp int64

func (t *unixTimestamp) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if raw == "" || raw == "null" {
		*t = 0
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*t = unixTimestamp(n)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*t = unixTimestamp(int64(f))
		return nil
	}
	*t = 0
	return nil
}

// decodeMessages accepts data as one message object or an array of them.
func decodeMessages(data json.RawMessage) ([]providerMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []providerMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var one providerMessage
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []providerMessage{one}, nil
}
