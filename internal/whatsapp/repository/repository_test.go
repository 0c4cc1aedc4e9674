package repository

import (
	"strings"
	"testing"
)

func TestUpsertMessageIsTenantGuarded(t *testing.T) {
	if !strings.Contains(upsertMessageQuery, "ON CONFLICT (external_message_id) DO UPDATE") {
		t.Fatal("message upsert must be keyed on external_message_id")
	}
	if !strings.Contains(upsertMessageQuery, "WHERE whatsapp_messages.tenant_id = EXCLUDED.tenant_id") {
		t.Fatal("message upsert must not overwrite another tenant's row")
	}
}

func TestConnectionStatusHelpers(t *testing.T) {
	if !(Connection{Status: StatusConnected}).IsConnected() {
		t.Fatal("expected Connected to report connected")
	}
	if (Connection{Status: StatusDisconnected}).IsConnected() {
		t.Fatal("expected Disconnected to report not connected")
	}
}
