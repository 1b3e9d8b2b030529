package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dawitel/optimetricsapi/internal/model"
	"github.com/dawitel/optimetricsapi/internal/reviews"
	"github.com/dawitel/optimetricsapi/internal/store"
	"github.com/dawitel/optimetricsapi/pkg/sentiment"
)

// ReviewDeps bundles the collaborators of the review pipeline.
type ReviewDeps struct {
	Store      store.Store
	Trustpilot reviews.Scraper
	Google     reviews.Scraper
	Sentiment  sentiment.Client
}

// NewReviewPipeline builds the six-stage review flow for one task.
func NewReviewPipeline(deps ReviewDeps, payload model.ReviewPayload, userID string) *Pipeline {
	if userID == "" {
		userID = "system"
	}

	return &Pipeline{
		Type: model.TaskTypeReviewScrape,
		Stages: []Stage{
			{Name: model.StageSourceIdentification, Run: func(_ context.Context, _ *Run) error {
				if len(payload.Sources) == 0 {
					return eris.New("no review sources specified")
				}
				return nil
			}},
			{Name: model.StageScrapingTrustpilot, Run: func(ctx context.Context, run *Run) error {
				scrapeSource(ctx, run, deps.Trustpilot, payload)
				return nil
			}},
			{Name: model.StageScrapingGoogle, Run: func(ctx context.Context, run *Run) error {
				scrapeSource(ctx, run, deps.Google, payload)
				return nil
			}},
			{Name: model.StageNormalization, Run: func(_ context.Context, run *Run) error {
				run.RawReviews = normalizeReviews(run.RawReviews)
				return nil
			}},
			{Name: model.StageAISentiment, Run: func(ctx context.Context, run *Run) error {
				classifyReviews(ctx, run, deps.Sentiment)
				return nil
			}},
			{Name: model.StageReviewReportGen, Run: func(ctx context.Context, run *Run) error {
				return generateReviewReport(ctx, deps.Store, run, payload.URL, userID)
			}},
		},
	}
}

// scrapeSource appends one source's reviews to the accumulator. Scraper
// failures degrade to zero reviews: review sites block bots routinely and
// one dead source must not sink the others.
func scrapeSource(ctx context.Context, run *Run, scraper reviews.Scraper, payload model.ReviewPayload) {
	source := scraper.Source()
	log := zap.L().With(
		zap.String("task_id", run.Task.ID),
		zap.String("source", string(source)),
	)
	if !payload.HasSource(source) {
		log.Debug("review: source not requested, skipping")
		return
	}

	found, err := scraper.Scrape(ctx, payload.URL)
	if err != nil {
		log.Warn("review: source scrape failed", zap.Error(err))
		return
	}
	log.Info("review: source scraped", zap.Int("reviews", len(found)))
	run.RawReviews = append(run.RawReviews, found...)
}

// classifyReviews labels each review independently. Any failure, including
// a missing credential, degrades that record to NEUTRAL.
func classifyReviews(ctx context.Context, run *Run, classifier sentiment.Client) {
	run.Sentiments = make([]model.Sentiment, len(run.RawReviews))
	for i, r := range run.RawReviews {
		label, err := classifier.Classify(ctx, r.Content)
		if err != nil {
			zap.L().Warn("review: sentiment failed, defaulting to neutral",
				zap.String("task_id", run.Task.ID),
				zap.String("review_id", r.ID),
				zap.Error(err),
			)
			label = model.SentimentNeutral
		}
		run.Sentiments[i] = label
	}
}

func generateReviewReport(ctx context.Context, st store.Store, run *Run, url, userID string) error {
	task := run.Task

	report := &model.Report{
		Type:     model.ReportTypeReview,
		Title:    "Review Report for " + url,
		DomainID: task.DomainID,
		UserID:   userID,
	}
	if err := st.CreateReport(ctx, report); err != nil {
		return eris.Wrap(err, "create report")
	}

	for i, r := range run.RawReviews {
		data := r.Data
		if data == nil {
			data = map[string]any{}
		}
		if i < len(run.Sentiments) {
			data["sentiment"] = string(run.Sentiments[i])
		}
		review := &model.Review{
			DomainID:   task.DomainID,
			ReportID:   report.ID,
			Source:     r.Source,
			ExternalID: r.ID,
			Rating:     r.Rating,
			Title:      r.Title,
			Content:    r.Content,
			AuthorName: r.Author,
			ReviewDate: r.Date,
			Data:       data,
		}
		if err := st.CreateReview(ctx, review); err != nil {
			return eris.Wrapf(err, "create review %s", r.ID)
		}
	}

	zap.L().Info("review: report generated",
		zap.String("task_id", task.ID),
		zap.String("report_id", report.ID),
		zap.Int("reviews", len(run.RawReviews)),
	)
	return nil
}
