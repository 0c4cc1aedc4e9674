package service

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"workshop_crm_backend/internal/whatsapp/gateway"
	"workshop_crm_backend/internal/whatsapp/repository"
	"workshop_crm_backend/platform/apperr"
	"workshop_crm_backend/platform/logger"
	"workshop_crm_backend/platform/phone"

	"github.com/google/uuid"
)

type memStore struct {
	mu          sync.Mutex
	connections map[uuid.UUID]repository.Connection
	messages    map[uuid.UUID]repository.Message
	byExternal  map[string]uuid.UUID
	// beforeCreate runs inside CreateConnection to simulate a concurrent insert.
	beforeCreate func(s *memStore, p repository.CreateConnectionParams)
	// afterCreate runs once the insert outcome is decided.
	afterCreate func(s *memStore)
}

func newMemStore() *memStore {
	return &memStore{
		connections: make(map[uuid.UUID]repository.Connection),
		messages:    make(map[uuid.UUID]repository.Message),
		byExternal:  make(map[string]uuid.UUID),
	}
}

func (m *memStore) put(c repository.Connection) repository.Connection {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.connections[c.TenantID] = c
	return c
}

func (m *memStore) GetConnection(ctx context.Context, tenantID uuid.UUID) (repository.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.connections[tenantID]
	if !ok {
		return repository.Connection{}, repository.ErrNotFound
	}
	return c, nil
}

func (m *memStore) GetConnectionByInstanceName(ctx context.Context, instanceName string) (repository.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.connections {
		if c.InstanceName == instanceName {
			return c, nil
		}
	}
	return repository.Connection{}, repository.ErrNotFound
}

func (m *memStore) CreateConnection(ctx context.Context, p repository.CreateConnectionParams) (repository.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeCreate != nil {
		m.beforeCreate(m, p)
	}
	if m.afterCreate != nil {
		defer m.afterCreate(m)
	}
	if _, ok := m.connections[p.TenantID]; ok {
		return repository.Connection{}, repository.ErrConflict
	}
	return m.put(repository.Connection{
		TenantID:     p.TenantID,
		Status:       repository.StatusDisconnected,
		InstanceName: p.InstanceName,
		InstanceID:   p.InstanceID,
	}), nil
}

func (m *memStore) SetConnectionStatus(ctx context.Context, tenantID uuid.UUID, status string, phoneNumber *string) (repository.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.connections[tenantID]
	if !ok {
		return repository.Connection{}, repository.ErrNotFound
	}
	c.Status = status
	if phoneNumber != nil {
		c.PhoneNumber = phoneNumber
	}
	m.connections[tenantID] = c
	return c, nil
}

func (m *memStore) ClearConnection(ctx context.Context, tenantID uuid.UUID) (repository.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.connections[tenantID]
	if !ok {
		return repository.Connection{}, repository.ErrNotFound
	}
	c.Status = repository.StatusDisconnected
	c.PhoneNumber = nil
	m.connections[tenantID] = c
	return c, nil
}

func (m *memStore) UpsertMessage(ctx context.Context, p repository.UpsertMessageParams) (repository.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ExternalMessageID != nil {
		if id, ok := m.byExternal[*p.ExternalMessageID]; ok {
			existing := m.messages[id]
			if existing.TenantID != p.TenantID {
				return repository.Message{}, false, repository.ErrConflict
			}
			existing.ConnectionID = p.ConnectionID
			existing.LeadID = p.LeadID
			existing.RemoteJID = p.RemoteJID
			existing.FromMe = p.FromMe
			existing.Body = p.Body
			existing.MessageTimestamp = p.MessageTimestamp
			m.messages[id] = existing
			return existing, false, nil
		}
	}
	msg := repository.Message{
		ID:                uuid.New(),
		TenantID:          p.TenantID,
		ConnectionID:      p.ConnectionID,
		LeadID:            p.LeadID,
		RemoteJID:         p.RemoteJID,
		ExternalMessageID: p.ExternalMessageID,
		FromMe:            p.FromMe,
		Body:              p.Body,
		MessageTimestamp:  p.MessageTimestamp,
	}
	m.messages[msg.ID] = msg
	if p.ExternalMessageID != nil {
		m.byExternal[*p.ExternalMessageID] = msg.ID
	}
	return msg, true, nil
}

func (m *memStore) ListMessagesByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]repository.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.Message, 0)
	for _, msg := range m.messages {
		if msg.TenantID == tenantID && msg.LeadID == leadID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageTimestamp < out[j].MessageTimestamp })
	return out, nil
}

func (m *memStore) all() []repository.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.Message, 0, len(m.messages))
	for _, msg := range m.messages {
		out = append(out, msg)
	}
	return out
}

type fakeGateway struct {
	mu       sync.Mutex
	calls    []string
	instance gateway.Instance
	qr       gateway.QRCode
	state    string
	sendID   string
	fetched  []json.RawMessage
	err      error
	sent     []string
	// onCreate replaces the CreateInstance outcome when set.
	onCreate func(instanceName string) error
}

func (g *fakeGateway) record(op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, op)
	return g.err
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (g *fakeGateway) CreateInstance(ctx context.Context, instanceName string) (gateway.Instance, error) {
	if err := g.record("create"); err != nil {
		return gateway.Instance{}, err
	}
	if g.onCreate != nil {
		if err := g.onCreate(instanceName); err != nil {
			return gateway.Instance{InstanceName: instanceName}, err
		}
	}
	inst := g.instance
	if inst.InstanceName == "" {
		inst.InstanceName = instanceName
	}
	return inst, nil
}

func (g *fakeGateway) GetQRCode(ctx context.Context, instanceName string) (gateway.QRCode, error) {
	if err := g.record("qr"); err != nil {
		return gateway.QRCode{}, err
	}
	return g.qr, nil
}

func (g *fakeGateway) GetConnectionState(ctx context.Context, instanceName string) (string, error) {
	if err := g.record("state"); err != nil {
		return "", err
	}
	return g.state, nil
}

func (g *fakeGateway) Disconnect(ctx context.Context, instanceName string) error {
	return g.record("logout")
}

func (g *fakeGateway) FetchMessages(ctx context.Context, instanceName, phoneNumber string) ([]json.RawMessage, error) {
	if err := g.record("fetch"); err != nil {
		return nil, err
	}
	return g.fetched, nil
}

func (g *fakeGateway) SendText(ctx context.Context, instanceName, phoneNumber, text string) (gateway.SendResult, error) {
	if err := g.record("send"); err != nil {
		return gateway.SendResult{}, err
	}
	g.mu.Lock()
	g.sent = append(g.sent, phoneNumber)
	g.mu.Unlock()
	return gateway.SendResult{ID: g.sendID}, nil
}

type fakeDirectory struct {
	phones *phone.Normalizer
	leads  []Lead
	deals  map[uuid.UUID]DealLead
}

func (d *fakeDirectory) FindLeadByPhone(ctx context.Context, tenantID uuid.UUID, phoneNumber string) (Lead, error) {
	digits := d.phones.CanonicalDigits(phoneNumber)
	for _, l := range d.leads {
		if l.TenantID == tenantID && l.PhoneDigits != "" && l.PhoneDigits == digits {
			return l, nil
		}
	}
	return Lead{}, apperr.NotFound("lead not found")
}

func (d *fakeDirectory) DealLead(ctx context.Context, tenantID, dealID uuid.UUID) (DealLead, error) {
	dl, ok := d.deals[dealID]
	if !ok || dl.Lead.TenantID != tenantID {
		return DealLead{}, apperr.NotFound("deal not found")
	}
	return dl, nil
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *memStore
	gw      *fakeGateway
	dir     *fakeDirectory
	svc     *Service
	tenant  uuid.UUID
	other   uuid.UUID
	conn    repository.Connection
	lead    Lead
	deal    DealLead
	nowUnix int64
}

const leadPhone = "5511999998888"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	phones := phone.NewNormalizer("BR")
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		store:   newMemStore(),
		gw:      &fakeGateway{state: "open", sendID: "3EB0SENT"},
		tenant:  uuid.New(),
		other:   uuid.New(),
		nowUnix: 1760000000,
	}
	f.lead = Lead{ID: uuid.New(), TenantID: f.tenant, OwnerUserID: uuid.New(), Name: "Carla Dias", PhoneDigits: leadPhone}
	f.deal = DealLead{DealID: uuid.New(), OwnerUserID: f.lead.OwnerUserID, Lead: f.lead}
	f.dir = &fakeDirectory{
		phones: phones,
		leads:  []Lead{f.lead},
		deals:  map[uuid.UUID]DealLead{f.deal.DealID: f.deal},
	}
	f.svc = New(f.store, f.gw, f.dir, phones, logger.NewWithWriter("test", io.Discard))
	f.svc.now = func() time.Time { return time.Unix(f.nowUnix, 0) }
	f.conn = f.store.put(repository.Connection{
		TenantID:     f.tenant,
		Status:       repository.StatusConnected,
		InstanceName: InstanceName(f.tenant),
	})
	return f
}

func (f *fixture) webhook(body string) string {
	f.t.Helper()
	return f.svc.HandleWebhook(f.ctx, []byte(body))
}
