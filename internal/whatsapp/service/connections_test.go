package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"workshop_crm_backend/internal/whatsapp/gateway"
	"workshop_crm_backend/internal/whatsapp/repository"
	"workshop_crm_backend/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectCreatesInstanceOnFirstUse(t *testing.T) {
	f := newFixture(t)
	delete(f.store.connections, f.tenant)
	f.gw.instance = gateway.Instance{InstanceID: "inst-42"}
	f.gw.qr = gateway.QRCode{Base64: "data:image/png;base64,AAAA", PairingCode: "WZYEH1YY"}

	res, err := f.svc.Connect(f.ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, InstanceName(f.tenant), res.Connection.InstanceName)
	require.NotNil(t, res.Connection.InstanceID)
	assert.Equal(t, "inst-42", *res.Connection.InstanceID)
	assert.Equal(t, repository.StatusDisconnected, res.Connection.Status)
	require.NotNil(t, res.QRCode)
	assert.Equal(t, "data:image/png;base64,AAAA", res.QRCode.Image)
	assert.Equal(t, "WZYEH1YY", res.QRCode.PairingCode)

	_, err = f.svc.Connect(f.ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, f.gw.count("create"))
	assert.Equal(t, 2, f.gw.count("qr"))
}

func TestConnectRendersQRCodeFromPairingPayload(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.SetConnectionStatus(f.ctx, f.tenant, repository.StatusDisconnected, nil)
	require.NoError(t, err)
	f.gw.qr = gateway.QRCode{Code: "2@abc,def,ghi"}

	res, err := f.svc.Connect(f.ctx, f.tenant)
	require.NoError(t, err)
	require.NotNil(t, res.QRCode)
	assert.True(t, strings.HasPrefix(res.QRCode.Image, "data:image/png;base64,"))
}

func TestConnectWhenAlreadyConnectedSkipsQRCode(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Connect(f.ctx, f.tenant)
	require.NoError(t, err)
	assert.Nil(t, res.QRCode)
	assert.Zero(t, f.gw.count("qr"))
	assert.Zero(t, f.gw.count("create"))
}

func TestConnectRereadsWhenAConcurrentInsertWins(t *testing.T) {
	f := newFixture(t)
	delete(f.store.connections, f.tenant)
	f.store.beforeCreate = func(s *memStore, p repository.CreateConnectionParams) {
		s.put(repository.Connection{TenantID: p.TenantID, Status: repository.StatusDisconnected, InstanceName: "tenant-winner"})
	}

	res, err := f.svc.Connect(f.ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, "tenant-winner", res.Connection.InstanceName)
	assert.Len(t, f.store.connections, 1)
}

func TestConnectAdoptsInstanceTheProviderAlreadyHosts(t *testing.T) {
	f := newFixture(t)
	delete(f.store.connections, f.tenant)
	f.gw.onCreate = func(name string) error {
		return fmt.Errorf("create %s: %w", name, gateway.ErrInstanceExists)
	}

	res, err := f.svc.Connect(f.ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, InstanceName(f.tenant), res.Connection.InstanceName)
	assert.Len(t, f.store.connections, 1)
	assert.Equal(t, 1, f.gw.count("qr"))
}

func TestConnectReturnsWinnerWhenProviderRejectsDuplicateName(t *testing.T) {
	f := newFixture(t)
	delete(f.store.connections, f.tenant)
	f.gw.onCreate = func(name string) error {
		f.store.mu.Lock()
		f.store.put(repository.Connection{TenantID: f.tenant, Status: repository.StatusDisconnected, InstanceName: name})
		f.store.mu.Unlock()
		return gateway.ErrInstanceExists
	}

	res, err := f.svc.Connect(f.ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, InstanceName(f.tenant), res.Connection.InstanceName)
	assert.Len(t, f.store.connections, 1)
}

func TestConnectConflictWhenWinnerVanishes(t *testing.T) {
	f := newFixture(t)
	delete(f.store.connections, f.tenant)
	f.store.beforeCreate = func(s *memStore, p repository.CreateConnectionParams) {
		s.put(repository.Connection{TenantID: p.TenantID, InstanceName: p.InstanceName})
	}
	f.store.afterCreate = func(s *memStore) {
		delete(s.connections, f.tenant)
	}

	_, err := f.svc.Connect(f.ctx, f.tenant)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCheckStatusMapsProviderState(t *testing.T) {
	f := newFixture(t)

	f.gw.state = "close"
	conn, err := f.svc.CheckStatus(f.ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusDisconnected, conn.Status)

	f.gw.state = "open"
	conn, err = f.svc.CheckStatus(f.ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusConnected, conn.Status)
}

func TestDisconnectClearsPhoneAndKeepsRow(t *testing.T) {
	f := newFixture(t)
	number := "5511988887777"
	_, err := f.store.SetConnectionStatus(f.ctx, f.tenant, repository.StatusConnected, &number)
	require.NoError(t, err)

	conn, err := f.svc.Disconnect(f.ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusDisconnected, conn.Status)
	assert.Nil(t, conn.PhoneNumber)
	assert.Equal(t, f.conn.InstanceName, conn.InstanceName)
	assert.Equal(t, 1, f.gw.count("logout"))
}

func TestConnectionOperationsSurfaceFailures(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CheckStatus(f.ctx, f.other)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = f.svc.Disconnect(f.ctx, f.other)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	f.gw.err = apperr.Transport("logout", errors.New("connection refused"))
	_, err = f.svc.Disconnect(f.ctx, f.tenant)
	assert.True(t, apperr.Is(err, apperr.KindTransport))
	conn, err := f.svc.GetConnection(f.ctx, f.tenant)
	require.NoError(t, err)
	assert.True(t, conn.IsConnected(), "failed logout must not clear the connection")

	unconfigured := New(f.store, nil, f.dir, f.svc.phones, f.svc.log)
	_, err = unconfigured.Connect(f.ctx, f.tenant)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
