package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dawitel/optimetricsapi/internal/api"
	"github.com/dawitel/optimetricsapi/internal/pipeline"
	"github.com/dawitel/optimetricsapi/internal/queue"
	"github.com/dawitel/optimetricsapi/internal/reviews"
	"github.com/dawitel/optimetricsapi/internal/scrape"
	"github.com/dawitel/optimetricsapi/internal/store"
	"github.com/dawitel/optimetricsapi/internal/worker"
	"github.com/dawitel/optimetricsapi/pkg/keywords"
	"github.com/dawitel/optimetricsapi/pkg/sentiment"
)

// env holds the initialized store, queue and wired services shared by the
// serve/work/analyze commands.
type env struct {
	Store     store.Store
	Queue     queue.Queue
	Service   *api.Service
	Processor *worker.Processor
}

// Close releases resources held by the environment.
func (e *env) Close() {
	if e.Queue != nil {
		_ = e.Queue.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, the queue and all pipeline clients. Callers
// should defer env.Close().
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	q, err := initQueue(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	siteScraper := scrape.New(
		scrape.WithTimeout(time.Duration(cfg.Scrape.TimeoutSecs)*time.Second),
		scrape.WithRateLimit(cfg.Scrape.RequestsPerSec),
		scrape.WithUserAgent(cfg.Scrape.UserAgent),
	)
	analyzer := keywords.NewClient(cfg.Analysis.Key, keywords.WithBaseURL(cfg.Analysis.BaseURL))
	classifier := sentiment.NewClient(cfg.Sentiment.Key,
		sentiment.WithBaseURL(cfg.Sentiment.BaseURL),
		sentiment.WithModel(cfg.Sentiment.Model),
	)
	if cfg.Sentiment.Key == "" {
		zap.L().Warn("sentiment api key not set, reviews will default to NEUTRAL")
	}

	seoDeps := pipeline.SeoDeps{Store: st, Scraper: siteScraper, Analyzer: analyzer}
	reviewDeps := pipeline.ReviewDeps{
		Store:      st,
		Trustpilot: reviews.NewTrustpilot(),
		Google:     reviews.NewGoogle(),
		Sentiment:  classifier,
	}

	var engineOpts []pipeline.Option
	if cfg.Worker.StageTimeoutSecs > 0 {
		engineOpts = append(engineOpts, pipeline.WithStageTimeout(time.Duration(cfg.Worker.StageTimeoutSecs)*time.Second))
	}

	var serviceOpts []api.ServiceOption
	if cfg.Worker.MaxRetries > 0 {
		serviceOpts = append(serviceOpts, api.WithMaxRetries(cfg.Worker.MaxRetries))
	}

	return &env{
		Store:     st,
		Queue:     q,
		Service:   api.NewService(st, q, serviceOpts...),
		Processor: worker.NewProcessor(st, seoDeps, reviewDeps, engineOpts...),
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "optimetrics.db"
		}
		return store.NewSQLite(dsn)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func initQueue(ctx context.Context) (queue.Queue, error) {
	switch cfg.Queue.Driver {
	case "redis":
		return queue.NewRedis(ctx, queue.RedisOptions{
			Addr:           cfg.Redis.Addr,
			Password:       cfg.Redis.Password,
			DB:             cfg.Redis.DB,
			ReceiveTimeout: time.Duration(cfg.Queue.ReceiveTimeoutSecs) * time.Second,
		})
	case "memory":
		return queue.NewMemory(), nil
	default:
		return nil, eris.Errorf("unknown queue driver %q", cfg.Queue.Driver)
	}
}
