package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dawitel/optimetricsapi/internal/model"
	"github.com/dawitel/optimetricsapi/internal/store"
)

type mockStore struct {
	mock.Mock
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) GetDomain(ctx context.Context, id string) (*model.Domain, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Domain), args.Error(1)
}

func (m *mockStore) CreateDomain(ctx context.Context, d *model.Domain) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockStore) CreateTask(ctx context.Context, t *model.Task) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *mockStore) UpdateTaskStatus(ctx context.Context, id string, status model.TaskStatus, stage model.TaskStage, lastErr string) error {
	return m.Called(ctx, id, status, stage, lastErr).Error(0)
}

func (m *mockStore) RetryTask(ctx context.Context, id string) (*model.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *mockStore) ListTasks(ctx context.Context, filter store.TaskFilter) ([]model.Task, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *mockStore) CreateReport(ctx context.Context, r *model.Report) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockStore) CreateSeoReport(ctx context.Context, r *model.SeoReport) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockStore) UpsertKeyword(ctx context.Context, k *model.Keyword) error {
	return m.Called(ctx, k).Error(0)
}

func (m *mockStore) CreateKeywordRanking(ctx context.Context, kr *model.KeywordRanking) error {
	return m.Called(ctx, kr).Error(0)
}

func (m *mockStore) CreateReview(ctx context.Context, rv *model.Review) error {
	return m.Called(ctx, rv).Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
