package inapp

import (
	"context"
	"log/slog"

	"workshop_crm_backend/internal/notification/sse"
	"workshop_crm_backend/platform/apperr"
	"workshop_crm_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Publisher pushes live events to connected users.
type Publisher interface {
	Publish(userID uuid.UUID, event sse.Event)
}

type Service struct {
	repo Store
	push Publisher
	log  *logger.Logger
}

// NewService builds the in-app notification service. push may be nil.
func NewService(repo Store, push Publisher, log *logger.Logger) *Service {
	return &Service{repo: repo, push: push, log: log}
}

// SetPublisher replaces where live events go.
func (s *Service) SetPublisher(push Publisher) {
	s.push = push
}

type SendParams struct {
	TenantID     uuid.UUID
	UserID       uuid.UUID
	Title        string
	Content      string
	ResourceID   *uuid.UUID
	ResourceType string
	Category     string // info, success, warning, error
}

// Send persists the notification and pushes it to the user's open streams.
func (s *Service) Send(ctx context.Context, p SendParams) (Notification, error) {
	if s == nil || s.repo == nil {
		return Notification{}, apperr.Internal("in-app notification service not configured")
	}
	if p.Category == "" {
		p.Category = "info"
	}

	var resourceType *string
	if p.ResourceType != "" {
		resourceType = &p.ResourceType
	}

	notif, err := s.repo.Create(ctx, CreateParams{
		TenantID:     p.TenantID,
		UserID:       p.UserID,
		Title:        p.Title,
		Content:      p.Content,
		ResourceID:   p.ResourceID,
		ResourceType: resourceType,
		Category:     p.Category,
	})
	if err != nil {
		s.log.WithContext(ctx).Error("failed to persist in-app notification",
			slog.String("user_id", p.UserID.String()),
			slog.String("error", err.Error()),
		)
		return Notification{}, err
	}

	if s.push != nil {
		s.push.Publish(p.UserID, sse.Event{
			Type:    sse.EventInAppNotification,
			Message: notif.Title,
			Data:    notif,
		})
	}
	return notif, nil
}

// List clamps paging to sane bounds before reading.
func (s *Service) List(ctx context.Context, tenantID, userID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.repo.List(ctx, tenantID, userID, pageSize, (page-1)*pageSize)
}

func (s *Service) CountUnread(ctx context.Context, tenantID, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, tenantID, userID)
}

func (s *Service) MarkRead(ctx context.Context, tenantID, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, tenantID, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, tenantID, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, tenantID, userID)
}
