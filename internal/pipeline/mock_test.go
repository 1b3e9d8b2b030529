package pipeline

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/dawitel/optimetricsapi/internal/model"
	"github.com/dawitel/optimetricsapi/internal/store"
	"github.com/dawitel/optimetricsapi/pkg/keywords"
)

// --- Store Mock ---

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

// --- Site Scraper Mock ---

type mockSiteScraper struct {
	mock.Mock
}

func (m *mockSiteScraper) HeadCheck(ctx context.Context, siteURL string) error {
	return m.Called(ctx, siteURL).Error(0)
}

func (m *mockSiteScraper) CheckSitemap(ctx context.Context, siteURL string) (bool, error) {
	args := m.Called(ctx, siteURL)
	return args.Bool(0), args.Error(1)
}

func (m *mockSiteScraper) CheckRobots(ctx context.Context, siteURL string) (bool, error) {
	args := m.Called(ctx, siteURL)
	return args.Bool(0), args.Error(1)
}

func (m *mockSiteScraper) Scrape(ctx context.Context, siteURL string) (*model.SeoMetrics, error) {
	args := m.Called(ctx, siteURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SeoMetrics), args.Error(1)
}

// --- Review Scraper Mock ---

type mockReviewScraper struct {
	mock.Mock
	source model.ReviewSource
}

func (m *mockReviewScraper) Source() model.ReviewSource {
	return m.source
}

func (m *mockReviewScraper) Scrape(ctx context.Context, siteURL string) ([]model.RawReview, error) {
	args := m.Called(ctx, siteURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RawReview), args.Error(1)
}

// --- Sentiment Mock ---

type mockSentiment struct {
	mock.Mock
}

func (m *mockSentiment) Classify(ctx context.Context, text string) (model.Sentiment, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(model.Sentiment), args.Error(1)
}

// --- Analyzer Mock ---

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req keywords.AnalyzeRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}
