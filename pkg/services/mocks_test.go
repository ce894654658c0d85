package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pixloom-ai/pixloom-engine/pkg/aiprovider"
	"github.com/pixloom-ai/pixloom-engine/pkg/apperrors"
	"github.com/pixloom-ai/pixloom-engine/pkg/models"
	"github.com/pixloom-ai/pixloom-engine/pkg/repositories"
)

type mockProjectRepo struct {
	projects       map[string]*models.Project
	incrementCalls int
}

func newMockProjectRepo(projects ...*models.Project) *mockProjectRepo {
	m := &mockProjectRepo{projects: make(map[string]*models.Project)}
	for _, p := range projects {
		m.projects[p.Slug] = p
	}
	return m
}

func (m *mockProjectRepo) Create(ctx context.Context, p *models.Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.projects[p.Slug] = p
	return nil
}

func (m *mockProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	for _, p := range m.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockProjectRepo) GetBySlug(ctx context.Context, slug string) (*models.Project, error) {
	if p, ok := m.projects[slug]; ok {
		return p, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockProjectRepo) List(ctx context.Context, status string) ([]*models.Project, error) {
	var out []*models.Project
	for _, p := range m.projects {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProjectRepo) Update(ctx context.Context, p *models.Project) error {
	m.projects[p.Slug] = p
	return nil
}

func (m *mockProjectRepo) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	p, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	p.Status = status
	return nil
}

func (m *mockProjectRepo) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	m.incrementCalls++
	p, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	p.UsageCount++
	return nil
}

var _ repositories.ProjectRepository = (*mockProjectRepo)(nil)

type mockI18nRepo struct {
	entries map[uuid.UUID][]*models.ProjectI18n
}

func newMockI18nRepo() *mockI18nRepo {
	return &mockI18nRepo{entries: make(map[uuid.UUID][]*models.ProjectI18n)}
}

func (m *mockI18nRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectI18n, error) {
	return m.entries[projectID], nil
}

func (m *mockI18nRepo) Upsert(ctx context.Context, e *models.ProjectI18n) error {
	for _, existing := range m.entries[e.ProjectID] {
		if existing.Locale == e.Locale {
			*existing = *e
			return nil
		}
	}
	m.entries[e.ProjectID] = append(m.entries[e.ProjectID], e)
	return nil
}

func (m *mockI18nRepo) Delete(ctx context.Context, projectID uuid.UUID, locale string) error {
	kept := m.entries[projectID][:0]
	for _, e := range m.entries[projectID] {
		if e.Locale != locale {
			kept = append(kept, e)
		}
	}
	m.entries[projectID] = kept
	return nil
}

var _ repositories.ProjectI18nRepository = (*mockI18nRepo)(nil)

type mockGenerationRepo struct {
	generations      map[uuid.UUID]*models.Generation
	statuses         map[uuid.UUID][]string
	stats            repositories.GenerationStats
	lastStatsProject *uuid.UUID
}

func newMockGenerationRepo() *mockGenerationRepo {
	return &mockGenerationRepo{
		generations: make(map[uuid.UUID]*models.Generation),
		statuses:    make(map[uuid.UUID][]string),
	}
}

func (m *mockGenerationRepo) Create(ctx context.Context, g *models.Generation) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	clone := *g
	m.generations[g.ID] = &clone
	m.statuses[g.ID] = append(m.statuses[g.ID], g.Status)
	return nil
}

func (m *mockGenerationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Generation, error) {
	if g, ok := m.generations[id]; ok {
		clone := *g
		return &clone, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockGenerationRepo) Update(ctx context.Context, g *models.Generation) error {
	current, ok := m.generations[g.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if current.Status != g.Status && !current.CanTransitionTo(g.Status) {
		return apperrors.ErrInvalidStatusChange
	}
	clone := *g
	m.generations[g.ID] = &clone
	m.statuses[g.ID] = append(m.statuses[g.ID], g.Status)
	return nil
}

func (m *mockGenerationRepo) ListByUser(ctx context.Context, userDID string, projectID *uuid.UUID, limit, offset int) ([]*models.Generation, error) {
	var out []*models.Generation
	for _, g := range m.generations {
		if g.UserDID != userDID {
			continue
		}
		if projectID != nil && g.ProjectID != *projectID {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (m *mockGenerationRepo) StatsByUser(ctx context.Context, userDID string, projectID *uuid.UUID) (*repositories.GenerationStats, error) {
	m.lastStatsProject = projectID
	stats := m.stats
	return &stats, nil
}

func (m *mockGenerationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.generations[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.generations, id)
	return nil
}

var _ repositories.GenerationRepository = (*mockGenerationRepo)(nil)

type mockLedger struct {
	balance      decimal.Decimal
	balanceErr   error
	chargeErr    error
	chargeCalls  int
	refundCalls  int
	refundAmount decimal.Decimal
}

func (m *mockLedger) GetBalance(ctx context.Context, userDID string) (decimal.Decimal, error) {
	return m.balance, m.balanceErr
}

func (m *mockLedger) CreateMeterEvent(ctx context.Context, userDID string, amount decimal.Decimal, ref string) error {
	m.chargeCalls++
	return m.chargeErr
}

func (m *mockLedger) CreatePromotionGrant(ctx context.Context, userDID string, amount decimal.Decimal, reason string) error {
	m.refundCalls++
	m.refundAmount = amount
	return nil
}

func (m *mockLedger) EnsureMeterPrice(ctx context.Context) error { return nil }

type mockUploader struct {
	uploadFunc func(ctx context.Context, filename string, data []byte, contentType string) (string, error)
	calls      int
}

func (m *mockUploader) Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	m.calls++
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, filename, data, contentType)
	}
	return "stored-" + filename, nil
}

type mockFactory struct {
	provider  aiprovider.Provider
	createErr error
}

func (m *mockFactory) Create(modelType aiprovider.ModelType, model string) (aiprovider.Provider, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.provider, nil
}
