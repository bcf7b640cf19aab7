package service_test

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/repository"
	"rental-quote-backend/internal/source"
)

// MockSource
type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchProducts(ctx context.Context) ([]source.Row, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]source.Row), args.Error(1)
}
func (m *MockSource) FetchGenerators(ctx context.Context) ([]source.Row, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]source.Row), args.Error(1)
}
func (m *MockSource) FetchBranches(ctx context.Context) ([]source.Row, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]source.Row), args.Error(1)
}
func (m *MockSource) FetchStates(ctx context.Context) ([]source.Row, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]source.Row), args.Error(1)
}
func (m *MockSource) FetchConfig(ctx context.Context) (*source.ConfigBlock, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*source.ConfigBlock), args.Error(1)
}

// MockCatalogRepo
type MockCatalogRepo struct {
	mock.Mock
}

func (m *MockCatalogRepo) ReplaceCollection(ctx context.Context, collection domain.Collection, records []domain.CatalogRecord) (repository.ReplaceStats, error) {
	args := m.Called(ctx, collection, records)
	return args.Get(0).(repository.ReplaceStats), args.Error(1)
}
func (m *MockCatalogRepo) ListCollection(ctx context.Context, collection domain.Collection) ([]json.RawMessage, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]json.RawMessage), args.Error(1)
}
func (m *MockCatalogRepo) UpsertConfig(ctx context.Context, id string, patch map[string]any) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}
func (m *MockCatalogRepo) GetConfig(ctx context.Context, id string) (*domain.ConfigDocument, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConfigDocument), args.Error(1)
}

// MockSyncRunRepo
type MockSyncRunRepo struct {
	mock.Mock
}

func (m *MockSyncRunRepo) RecordSyncRun(ctx context.Context, run *domain.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}
func (m *MockSyncRunRepo) LastSuccessfulRun(ctx context.Context) (*domain.SyncRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncRun), args.Error(1)
}

// MockDistanceResolver
type MockDistanceResolver struct {
	mock.Mock
}

func (m *MockDistanceResolver) ResolveDistance(ctx context.Context, address string) (*domain.DistanceResult, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DistanceResult), args.Error(1)
}

// MockAlertService
type MockAlertService struct {
	mock.Mock
}

func (m *MockAlertService) SendSyncAlert(ctx context.Context, result *domain.SyncResult, errs []string) error {
	args := m.Called(ctx, result, errs)
	return args.Error(0)
}

// memCatalogRepo is an in-memory CatalogRepository with mirror semantics.
type memCatalogRepo struct {
	mu          sync.Mutex
	collections map[domain.Collection]map[string]json.RawMessage
	order       map[domain.Collection][]string
	config      map[string]any
}

func newMemCatalogRepo() *memCatalogRepo {
	return &memCatalogRepo{
		collections: map[domain.Collection]map[string]json.RawMessage{},
		order:       map[domain.Collection][]string{},
	}
}

func (r *memCatalogRepo) ReplaceCollection(_ context.Context, collection domain.Collection, records []domain.CatalogRecord) (repository.ReplaceStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]json.RawMessage, len(records))
	order := make([]string, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return repository.ReplaceStats{}, err
		}
		next[rec.RecordID()] = data
		order = append(order, rec.RecordID())
	}
	deleted := 0
	for id := range r.collections[collection] {
		if _, ok := next[id]; !ok {
			deleted++
		}
	}
	r.collections[collection] = next
	r.order[collection] = order
	return repository.ReplaceStats{Upserted: len(records), Deleted: deleted}, nil
}

func (r *memCatalogRepo) ListCollection(_ context.Context, collection domain.Collection) ([]json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]json.RawMessage, 0, len(r.order[collection]))
	for _, id := range r.order[collection] {
		out = append(out, r.collections[collection][id])
	}
	return out, nil
}

func (r *memCatalogRepo) UpsertConfig(_ context.Context, _ string, patch map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config == nil {
		r.config = map[string]any{}
	}
	for k, v := range patch {
		r.config[k] = v
	}
	r.config["updated_on"] = time.Now().UTC()
	return nil
}

func (r *memCatalogRepo) GetConfig(_ context.Context, id string) (*domain.ConfigDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config == nil {
		return nil, domain.ErrNotFound
	}
	data, err := json.Marshal(r.config)
	if err != nil {
		return nil, err
	}
	doc := &domain.ConfigDocument{ID: id}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *memCatalogRepo) ids(collection domain.Collection) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.collections[collection]))
	for id := range r.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// joined is a small helper for readable assertions on error lists.
func joined(errs []domain.SyncError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "\n")
}
