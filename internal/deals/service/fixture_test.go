package service

import (
	"context"
	"io"
	"sync"
	"testing"

	"workshop_crm_backend/internal/deals/domain"
	"workshop_crm_backend/internal/deals/repository"
	"workshop_crm_backend/internal/events"
	"workshop_crm_backend/platform/logger"
	"workshop_crm_backend/platform/phone"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type sentNotification struct {
	recipient repository.User
	kind      NotificationKind
	payload   NotificationPayload
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(ctx context.Context, recipient repository.User, kind NotificationKind, payload NotificationPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{recipient: recipient, kind: kind, payload: payload})
	return nil
}

func (n *recordingNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memStore
	notifier *recordingNotifier
	svc      *Service
	changes  *[]events.DealsChanged

	tenant       uuid.UUID
	otherTenant  uuid.UUID
	owner        repository.User
	coOwner      repository.User
	formerOwner  repository.User
	seller       repository.User
	otherSeller  repository.User
	foreignOwner repository.User
	stages       map[string]repository.Stage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	f := &fixture{
		t:           t,
		ctx:         context.Background(),
		store:       store,
		notifier:    &recordingNotifier{},
		tenant:      uuid.New(),
		otherTenant: uuid.New(),
		stages:      map[string]repository.Stage{},
	}

	names := []string{
		domain.StageNewLead, domain.StageContacted, domain.StageProposal,
		domain.StageNegotiation, domain.StageWon, domain.StageLost,
	}
	for i, name := range names {
		stage := repository.Stage{
			ID:         uuid.New(),
			Name:       name,
			SortOrder:  i,
			IsTerminal: name == domain.StageWon || name == domain.StageLost,
		}
		store.st.stages = append(store.st.stages, stage)
		f.stages[name] = stage
	}

	f.owner = f.addUser(f.tenant, "Ana Souza", repository.RoleBusinessOwner, true)
	f.coOwner = f.addUser(f.tenant, "Bruno Lima", repository.RoleBusinessOwner, true)
	f.formerOwner = f.addUser(f.tenant, "Caio Reis", repository.RoleBusinessOwner, false)
	f.seller = f.addUser(f.tenant, "Daniela Alves", repository.RoleSalesperson, true)
	f.otherSeller = f.addUser(f.tenant, "Eduardo Melo", repository.RoleSalesperson, true)
	f.foreignOwner = f.addUser(f.otherTenant, "Fabiana Costa", repository.RoleBusinessOwner, true)

	changes := make([]events.DealsChanged, 0)
	f.changes = &changes
	bus := events.NewInMemoryBus(nil)
	bus.Subscribe(events.DealsChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		*f.changes = append(*f.changes, event.(events.DealsChanged))
		return nil
	}))

	log := logger.NewWithWriter("test", io.Discard)
	f.svc = New(store, f.notifier, bus, nil, phone.NewNormalizer("BR"), log)
	return f
}

func (f *fixture) addUser(tenantID uuid.UUID, name, role string, active bool) repository.User {
	u := repository.User{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     name,
		Email:    uuid.NewString() + "@example.com",
		Role:     role,
		IsActive: active,
	}
	f.store.st.users[u.ID] = u
	return u
}

// newDeal creates a lead with one deal owned by seller.
func (f *fixture) newDeal(title string) repository.Deal {
	f.t.Helper()
	_, deal, err := f.svc.CreateLeadWithDeal(f.ctx, f.tenant, f.seller.ID,
		LeadInput{Name: "Lead " + title},
		DealInput{Title: title, Value: "1500"},
	)
	require.NoError(f.t, err)
	return deal
}

func (f *fixture) deal(id uuid.UUID) repository.Deal {
	f.t.Helper()
	d, err := f.store.GetDeal(f.ctx, f.tenant, id)
	require.NoError(f.t, err)
	return d
}

func (f *fixture) column(stageName string) []uuid.UUID {
	f.t.Helper()
	ids, err := f.store.ListStageDealIDs(f.ctx, f.tenant, f.stages[stageName].ID)
	require.NoError(f.t, err)
	return ids
}

// requireDense checks every column holds sort orders 0..n-1.
func (f *fixture) requireDense() {
	f.t.Helper()
	for name := range f.stages {
		for i, id := range f.column(name) {
			require.Equal(f.t, i, f.deal(id).SortOrder, "stage %s position %d", name, i)
		}
	}
}
