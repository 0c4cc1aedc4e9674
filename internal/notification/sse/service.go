// Package sse pushes real-time events to connected browsers.
package sse

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"workshop_crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type EventType string

const (
	EventInAppNotification EventType = "in_app_notification"
	EventBoardChanged      EventType = "board_changed"
)

const clientBuffer = 32

// Event is the payload written as one SSE frame.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
}

type client struct {
	userID   uuid.UUID
	tenantID uuid.UUID
	events   chan Event
}

// Service tracks open streams per user and per tenant.
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client
	tenants map[uuid.UUID]map[uuid.UUID]struct{}
	log     *logger.Logger
}

func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[uuid.UUID][]*client),
		tenants: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		log:     log,
	}
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c.userID] = append(s.clients[c.userID], c)
	if s.tenants[c.tenantID] == nil {
		s.tenants[c.tenantID] = make(map[uuid.UUID]struct{})
	}
	s.tenants[c.tenantID][c.userID] = struct{}{}
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.userID] = append(clients[:i], clients[i+1:]...)
			close(c.events)
			break
		}
	}
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
		if users := s.tenants[c.tenantID]; users != nil {
			delete(users, c.userID)
			if len(users) == 0 {
				delete(s.tenants, c.tenantID)
			}
		}
	}
}

// Publish sends an event to every open stream of a user. Slow clients drop events.
func (s *Service) Publish(userID uuid.UUID, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.clients[userID] {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse buffer full",
				slog.String("user_id", userID.String()),
				slog.String("event", string(event.Type)),
			)
		}
	}
}

// PublishToTenant broadcasts an event to every connected member of a tenant.
func (s *Service) PublishToTenant(tenantID uuid.UUID, event Event) {
	s.mu.RLock()
	users := make([]uuid.UUID, 0, len(s.tenants[tenantID]))
	for userID := range s.tenants[tenantID] {
		users = append(users, userID)
	}
	s.mu.RUnlock()

	for _, userID := range users {
		s.Publish(userID, event)
	}
}

// Connected reports how many streams a user has open.
func (s *Service) Connected(userID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}

// Handler streams events for the authenticated user until the request ends.
func (s *Service) Handler(identity func(*gin.Context) (userID, tenantID uuid.UUID, ok bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, tenantID, ok := identity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{userID: userID, tenantID: tenantID, events: make(chan Event, clientBuffer)}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"userId": userID})
		c.Writer.Flush()

		done := c.Request.Context().Done()
		for {
			select {
			case <-done:
				return
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close ends every open stream.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
	s.tenants = make(map[uuid.UUID]map[uuid.UUID]struct{})
}
