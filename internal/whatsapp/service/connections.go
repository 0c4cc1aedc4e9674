package service

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"

	"workshop_crm_backend/internal/whatsapp/gateway"
	"workshop_crm_backend/internal/whatsapp/repository"
	"workshop_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const (
	providerStateOpen = "open"
	qrImageSize       = 256
)

// QRCode is what the settings page renders to pair a phone.
type QRCode struct {
	Image       string
	PairingCode string
}

type ConnectResult struct {
	Connection repository.Connection
	QRCode     *QRCode
}

func (s *Service) GetConnection(ctx context.Context, tenantID uuid.UUID) (repository.Connection, error) {
	conn, err := s.store.GetConnection(ctx, tenantID)
	if err != nil {
		return repository.Connection{}, connectionNotFound(err)
	}
	return conn, nil
}

// Connect provisions the tenant's provider instance on first use and returns
// a QR code to pair it. An already connected instance gets no QR code.
func (s *Service) Connect(ctx context.Context, tenantID uuid.UUID) (ConnectResult, error) {
	gw, err := s.gateway()
	if err != nil {
		return ConnectResult{}, err
	}

	conn, err := s.getOrInit(ctx, gw, tenantID)
	if err != nil {
		return ConnectResult{}, err
	}
	if conn.IsConnected() {
		return ConnectResult{Connection: conn}, nil
	}

	qr, err := gw.GetQRCode(ctx, conn.InstanceName)
	if err != nil {
		return ConnectResult{}, err
	}
	return ConnectResult{Connection: conn, QRCode: s.renderQRCode(ctx, qr.Base64, qr.Code, qr.PairingCode)}, nil
}

func (s *Service) getOrInit(ctx context.Context, gw Gateway, tenantID uuid.UUID) (repository.Connection, error) {
	conn, err := s.store.GetConnection(ctx, tenantID)
	if err == nil {
		return conn, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return repository.Connection{}, err
	}

	instance, err := gw.CreateInstance(ctx, InstanceName(tenantID))
	switch {
	case errors.Is(err, gateway.ErrInstanceExists):
		// Either a concurrent Connect got there first or an earlier insert
		// never landed. The name is deterministic, so adopt the instance.
		if conn, getErr := s.store.GetConnection(ctx, tenantID); getErr == nil {
			return conn, nil
		}
		instance = gateway.Instance{InstanceName: InstanceName(tenantID)}
	case err != nil:
		return repository.Connection{}, err
	}
	params := repository.CreateConnectionParams{
		TenantID:     tenantID,
		InstanceName: instance.InstanceName,
	}
	if params.InstanceName == "" {
		params.InstanceName = InstanceName(tenantID)
	}
	if instance.InstanceID != "" {
		id := instance.InstanceID
		params.InstanceID = &id
	}

	conn, err = s.store.CreateConnection(ctx, params)
	if errors.Is(err, repository.ErrConflict) {
		// A concurrent Connect won the insert.
		winner, getErr := s.store.GetConnection(ctx, tenantID)
		if getErr != nil {
			return repository.Connection{}, apperr.Conflict("whatsapp connection is being set up, try again")
		}
		return winner, nil
	}
	if err != nil {
		return repository.Connection{}, err
	}
	s.log.WithContext(ctx).Info("whatsapp instance created",
		slog.String("tenant_id", tenantID.String()),
		slog.String("instance", conn.InstanceName),
	)
	return conn, nil
}

// renderQRCode prefers the provider image and falls back to encoding the raw
// pairing payload.
func (s *Service) renderQRCode(ctx context.Context, image, code, pairingCode string) *QRCode {
	qr := &QRCode{Image: image, PairingCode: pairingCode}
	if qr.Image != "" || code == "" {
		return qr
	}
	png, err := qrcode.Encode(code, qrcode.Medium, qrImageSize)
	if err != nil {
		s.log.WithContext(ctx).Warn("qr code render failed", slog.String("error", err.Error()))
		return qr
	}
	qr.Image = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	return qr
}

// CheckStatus asks the provider for the live state and stores it.
func (s *Service) CheckStatus(ctx context.Context, tenantID uuid.UUID) (repository.Connection, error) {
	gw, err := s.gateway()
	if err != nil {
		return repository.Connection{}, err
	}
	conn, err := s.GetConnection(ctx, tenantID)
	if err != nil {
		return repository.Connection{}, err
	}
	state, err := gw.GetConnectionState(ctx, conn.InstanceName)
	if err != nil {
		return repository.Connection{}, err
	}
	updated, err := s.store.SetConnectionStatus(ctx, tenantID, statusFromState(state), nil)
	if err != nil {
		return repository.Connection{}, connectionNotFound(err)
	}
	return updated, nil
}

// Disconnect logs the instance out and forgets the paired phone. The
// connection row is kept so the next Connect reuses the instance.
func (s *Service) Disconnect(ctx context.Context, tenantID uuid.UUID) (repository.Connection, error) {
	gw, err := s.gateway()
	if err != nil {
		return repository.Connection{}, err
	}
	conn, err := s.GetConnection(ctx, tenantID)
	if err != nil {
		return repository.Connection{}, err
	}
	if err := gw.Disconnect(ctx, conn.InstanceName); err != nil {
		return repository.Connection{}, err
	}
	cleared, err := s.store.ClearConnection(ctx, tenantID)
	if err != nil {
		return repository.Connection{}, connectionNotFound(err)
	}
	return cleared, nil
}

func statusFromState(state string) string {
	if state == providerStateOpen {
		return repository.StatusConnected
	}
	return repository.StatusDisconnected
}
