package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"workshop_crm_backend/internal/deals/repository"

	"github.com/google/uuid"
)

type memState struct {
	stages []repository.Stage
	users  map[uuid.UUID]repository.User
	leads  map[uuid.UUID]repository.Lead
	deals  map[uuid.UUID]repository.Deal
	notes  []repository.DealNote
}

func (s *memState) clone() *memState {
	out := &memState{
		stages: append([]repository.Stage(nil), s.stages...),
		users:  make(map[uuid.UUID]repository.User, len(s.users)),
		leads:  make(map[uuid.UUID]repository.Lead, len(s.leads)),
		deals:  make(map[uuid.UUID]repository.Deal, len(s.deals)),
		notes:  append([]repository.DealNote(nil), s.notes...),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.leads {
		out.leads[k] = v
	}
	for k, v := range s.deals {
		out.deals[k] = v
	}
	return out
}

// memView implements repository.Store over one state snapshot.
type memView struct {
	st         *memState
	failApply  error
	lockedKeys *[]uuid.UUID
	clock      func() time.Time
}

// memStore is an in-memory repository.TxStore. Transactions run serially on
// a copy of the state and are discarded when fn fails.
type memStore struct {
	mu sync.Mutex
	memView
	locked []uuid.UUID
}

func newMemStore() *memStore {
	s := &memStore{}
	s.st = &memState{
		users: map[uuid.UUID]repository.User{},
		leads: map[uuid.UUID]repository.Lead{},
		deals: map[uuid.UUID]repository.Deal{},
	}
	s.lockedKeys = &s.locked
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int64
	s.clock = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := &memView{st: s.st.clone(), failApply: s.failApply, lockedKeys: s.lockedKeys, clock: s.clock}
	if err := fn(view); err != nil {
		return err
	}
	s.st = view.st
	return nil
}

var _ repository.TxStore = (*memStore)(nil)

func (v *memView) ListStages(ctx context.Context) ([]repository.Stage, error) {
	out := append([]repository.Stage(nil), v.st.stages...)
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (v *memView) GetStage(ctx context.Context, id uuid.UUID) (repository.Stage, error) {
	for _, s := range v.st.stages {
		if s.ID == id {
			return s, nil
		}
	}
	return repository.Stage{}, repository.ErrNotFound
}

func (v *memView) GetStageByName(ctx context.Context, name string) (repository.Stage, error) {
	for _, s := range v.st.stages {
		if s.Name == name {
			return s, nil
		}
	}
	return repository.Stage{}, repository.ErrNotFound
}

func (v *memView) GetActiveUser(ctx context.Context, tenantID, userID uuid.UUID) (repository.User, error) {
	u, ok := v.st.users[userID]
	if !ok || u.TenantID != tenantID || !u.IsActive {
		return repository.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (v *memView) ListActiveUsersByRole(ctx context.Context, tenantID uuid.UUID, role string) ([]repository.User, error) {
	out := make([]repository.User, 0)
	for _, u := range v.st.users {
		if u.TenantID == tenantID && u.Role == role && u.IsActive {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *memView) GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (repository.Lead, error) {
	l, ok := v.st.leads[leadID]
	if !ok || l.TenantID != tenantID {
		return repository.Lead{}, repository.ErrNotFound
	}
	return l, nil
}

func (v *memView) CreateLead(ctx context.Context, p repository.CreateLeadParams) (repository.Lead, error) {
	now := v.clock()
	l := repository.Lead{
		ID:          uuid.New(),
		TenantID:    p.TenantID,
		OwnerUserID: p.OwnerUserID,
		Name:        p.Name,
		Email:       p.Email,
		Phone:       p.Phone,
		PhoneDigits: p.PhoneDigits,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	v.st.leads[l.ID] = l
	return l, nil
}

func (v *memView) UpdateLeadOwner(ctx context.Context, tenantID, leadID, ownerID uuid.UUID) error {
	l, err := v.GetLead(ctx, tenantID, leadID)
	if err != nil {
		return err
	}
	l.OwnerUserID = ownerID
	v.st.leads[leadID] = l
	return nil
}

func (v *memView) FindLeadByPhoneDigits(ctx context.Context, tenantID uuid.UUID, digits string) (repository.Lead, error) {
	var found *repository.Lead
	for _, l := range v.st.leads {
		if l.TenantID != tenantID || l.PhoneDigits == nil || *l.PhoneDigits != digits {
			continue
		}
		if found == nil || l.CreatedAt.Before(found.CreatedAt) {
			l := l
			found = &l
		}
	}
	if found == nil {
		return repository.Lead{}, repository.ErrNotFound
	}
	return *found, nil
}

func (v *memView) FindLeadByEmail(ctx context.Context, tenantID uuid.UUID, email string) (repository.Lead, error) {
	var found *repository.Lead
	for _, l := range v.st.leads {
		if l.TenantID != tenantID || l.Email == nil || *l.Email != email {
			continue
		}
		if found == nil || l.CreatedAt.Before(found.CreatedAt) {
			l := l
			found = &l
		}
	}
	if found == nil {
		return repository.Lead{}, repository.ErrNotFound
	}
	return *found, nil
}

func (v *memView) DashboardSummary(ctx context.Context, tenantID uuid.UUID, wonStage, lostStage string) (repository.DashboardSummary, error) {
	stages := map[uuid.UUID]repository.Stage{}
	for _, s := range v.st.stages {
		stages[s.ID] = s
	}
	var out repository.DashboardSummary
	for _, l := range v.st.leads {
		if l.TenantID == tenantID {
			out.TotalLeads++
		}
	}
	for _, d := range v.st.deals {
		if d.TenantID != tenantID {
			continue
		}
		stage := stages[d.StageID]
		switch {
		case stage.Name == wonStage:
			out.WonDealsCount++
			out.WonDealsValue += d.ValueCents
		case stage.Name == lostStage:
			out.LostDealsCount++
		}
		if !stage.IsTerminal {
			out.ActiveDeals++
		}
	}
	return out, nil
}

func (v *memView) GetDeal(ctx context.Context, tenantID, dealID uuid.UUID) (repository.Deal, error) {
	d, ok := v.st.deals[dealID]
	if !ok || d.TenantID != tenantID {
		return repository.Deal{}, repository.ErrNotFound
	}
	return d, nil
}

func (v *memView) ListDealsByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]repository.Deal, error) {
	out := make([]repository.Deal, 0)
	for _, d := range v.st.deals {
		if d.TenantID == tenantID && d.LeadID == leadID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (v *memView) ListBoard(ctx context.Context, tenantID uuid.UUID) ([]repository.BoardCard, error) {
	stageOrder := map[uuid.UUID]int{}
	for _, s := range v.st.stages {
		stageOrder[s.ID] = s.SortOrder
	}
	cards := make([]repository.BoardCard, 0)
	for _, d := range v.st.deals {
		if d.TenantID != tenantID {
			continue
		}
		cards = append(cards, repository.BoardCard{
			DealID:      d.ID,
			StageID:     d.StageID,
			SortOrder:   d.SortOrder,
			Title:       d.Title,
			ValueCents:  d.ValueCents,
			LeadID:      d.LeadID,
			LeadName:    v.st.leads[d.LeadID].Name,
			OwnerUserID: d.OwnerUserID,
			OwnerName:   v.st.users[d.OwnerUserID].Name,
		})
	}
	sort.Slice(cards, func(i, j int) bool {
		if stageOrder[cards[i].StageID] != stageOrder[cards[j].StageID] {
			return stageOrder[cards[i].StageID] < stageOrder[cards[j].StageID]
		}
		return cards[i].SortOrder < cards[j].SortOrder
	})
	return cards, nil
}

func (v *memView) CreateDeal(ctx context.Context, p repository.CreateDealParams) (repository.Deal, error) {
	if _, ok := v.st.leads[p.LeadID]; !ok {
		return repository.Deal{}, repository.ErrNotFound
	}
	now := v.clock()
	d := repository.Deal{
		ID:          uuid.New(),
		TenantID:    p.TenantID,
		LeadID:      p.LeadID,
		OwnerUserID: p.OwnerUserID,
		StageID:     p.StageID,
		Title:       p.Title,
		ValueCents:  p.ValueCents,
		SortOrder:   p.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	v.st.deals[d.ID] = d
	return d, nil
}

func (v *memView) UpdateDealDetails(ctx context.Context, tenantID, dealID uuid.UUID, title string, valueCents int64) error {
	d, err := v.GetDeal(ctx, tenantID, dealID)
	if err != nil {
		return err
	}
	d.Title, d.ValueCents = title, valueCents
	v.st.deals[dealID] = d
	return nil
}

func (v *memView) UpdateDealOwner(ctx context.Context, tenantID, dealID, ownerID uuid.UUID) error {
	d, err := v.GetDeal(ctx, tenantID, dealID)
	if err != nil {
		return err
	}
	d.OwnerUserID = ownerID
	v.st.deals[dealID] = d
	return nil
}

func (v *memView) UpdateDealOwnersByLead(ctx context.Context, tenantID, leadID, ownerID uuid.UUID) ([]uuid.UUID, error) {
	deals, _ := v.ListDealsByLead(ctx, tenantID, leadID)
	ids := make([]uuid.UUID, 0, len(deals))
	for _, d := range deals {
		d.OwnerUserID = ownerID
		v.st.deals[d.ID] = d
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (v *memView) SetDealStage(ctx context.Context, tenantID, dealID, stageID uuid.UUID, lossReason *string) error {
	d, err := v.GetDeal(ctx, tenantID, dealID)
	if err != nil {
		return err
	}
	d.StageID = stageID
	d.LossReason = lossReason
	d.UpdatedAt = v.clock()
	v.st.deals[dealID] = d
	return nil
}

func (v *memView) LockStages(ctx context.Context, tenantID uuid.UUID, stageIDs ...uuid.UUID) error {
	*v.lockedKeys = append(*v.lockedKeys, stageIDs...)
	return nil
}

func (v *memView) ListStageDealIDs(ctx context.Context, tenantID, stageID uuid.UUID) ([]uuid.UUID, error) {
	deals := make([]repository.Deal, 0)
	for _, d := range v.st.deals {
		if d.TenantID == tenantID && d.StageID == stageID {
			deals = append(deals, d)
		}
	}
	sort.Slice(deals, func(i, j int) bool {
		if deals[i].SortOrder != deals[j].SortOrder {
			return deals[i].SortOrder < deals[j].SortOrder
		}
		return deals[i].UpdatedAt.After(deals[j].UpdatedAt)
	})
	ids := make([]uuid.UUID, len(deals))
	for i, d := range deals {
		ids[i] = d.ID
	}
	return ids, nil
}

func (v *memView) ApplyStageOrder(ctx context.Context, tenantID, stageID uuid.UUID, ordered []uuid.UUID) error {
	if v.failApply != nil {
		return v.failApply
	}
	for i, id := range ordered {
		d, ok := v.st.deals[id]
		if !ok || d.TenantID != tenantID || d.StageID != stageID {
			continue
		}
		d.SortOrder = i
		v.st.deals[id] = d
	}
	return nil
}

func (v *memView) CreateNote(ctx context.Context, p repository.CreateNoteParams) (repository.DealNote, error) {
	author, ok := v.st.users[p.AuthorUserID]
	if !ok {
		return repository.DealNote{}, repository.ErrNotFound
	}
	n := repository.DealNote{
		ID:           uuid.New(),
		TenantID:     p.TenantID,
		DealID:       p.DealID,
		AuthorUserID: p.AuthorUserID,
		AuthorName:   author.Name,
		Body:         p.Body,
		CreatedAt:    v.clock(),
	}
	v.st.notes = append(v.st.notes, n)
	return n, nil
}

func (v *memView) ListNotes(ctx context.Context, tenantID, dealID uuid.UUID) ([]repository.DealNote, error) {
	out := make([]repository.DealNote, 0)
	for _, n := range v.st.notes {
		if n.TenantID == tenantID && n.DealID == dealID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

var errInjected = errors.New("injected failure")
