// Package transport holds the JSON shapes of the WhatsApp endpoints.
package transport

type SendMessageRequest struct {
	Text string `json:"text" validate:"required,notblank,max=4096"`
}

type ConnectionResponse struct {
	Status       string  `json:"status"`
	InstanceName string  `json:"instanceName"`
	PhoneNumber  *string `json:"phoneNumber,omitempty"`
	Connected    bool    `json:"connected"`
}

type QRCodeResponse struct {
	Image       string `json:"image,omitempty"`
	PairingCode string `json:"pairingCode,omitempty"`
}

type ConnectResponse struct {
	Connection ConnectionResponse `json:"connection"`
	QRCode     *QRCodeResponse    `json:"qrCode,omitempty"`
}

type MessageResponse struct {
	ID        string  `json:"id"`
	MessageID *string `json:"messageId,omitempty"`
	FromMe    bool    `json:"fromMe"`
	Text      string  `json:"text"`
	Timestamp int64   `json:"timestamp"`
}

type SyncResponse struct {
	Fetched int `json:"fetched"`
	Stored  int `json:"stored"`
	Updated int `json:"updated"`
	Dropped int `json:"dropped"`
}
