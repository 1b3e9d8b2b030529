package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dawitel/optimetricsapi/internal/model"
	"github.com/dawitel/optimetricsapi/internal/scrape"
	"github.com/dawitel/optimetricsapi/internal/store"
	"github.com/dawitel/optimetricsapi/pkg/keywords"
)

// SeoDeps bundles the collaborators of the SEO pipeline.
type SeoDeps struct {
	Store    store.Store
	Scraper  scrape.SiteScraper
	Analyzer keywords.Client
}

// NewSeoPipeline builds the six-stage SEO flow for one task. userID falls
// back to "system" when the submitter is unknown.
func NewSeoPipeline(deps SeoDeps, payload model.SeoPayload, userID string) *Pipeline {
	if userID == "" {
		userID = "system"
	}

	return &Pipeline{
		Type: model.TaskTypeSeoScrape,
		Stages: []Stage{
			{Name: model.StageSiteFinding, Run: func(ctx context.Context, _ *Run) error {
				if err := deps.Scraper.HeadCheck(ctx, payload.URL); err != nil {
					return eris.Wrapf(err, "site unreachable: %s", payload.URL)
				}
				return nil
			}},
			{Name: model.StageTLSSSLChecks, Run: func(_ context.Context, _ *Run) error {
				if !strings.HasPrefix(strings.ToLower(payload.URL), "https://") {
					return eris.New("Site does not use HTTPS")
				}
				return nil
			}},
			{Name: model.StageConfigLoading, Run: func(ctx context.Context, _ *Run) error {
				// Missing sitemap or robots.txt is worth knowing about but
				// never blocks the run.
				log := zap.L().With(zap.String("url", payload.URL))
				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					ok, err := deps.Scraper.CheckSitemap(gctx, payload.URL)
					if err != nil {
						log.Warn("seo: sitemap probe failed", zap.Error(err))
					} else if !ok {
						log.Warn("seo: no sitemap.xml found")
					}
					return nil
				})
				g.Go(func() error {
					ok, err := deps.Scraper.CheckRobots(gctx, payload.URL)
					if err != nil {
						log.Warn("seo: robots.txt probe failed", zap.Error(err))
					} else if !ok {
						log.Warn("seo: no robots.txt found")
					}
					return nil
				})
				return g.Wait()
			}},
			{Name: model.StageScraping, Run: func(ctx context.Context, run *Run) error {
				metrics, err := deps.Scraper.Scrape(ctx, payload.URL)
				if err != nil {
					return eris.Wrapf(err, "scrape failed: %s", payload.URL)
				}
				run.Metrics = metrics
				return nil
			}},
			{Name: model.StageAIAnalysis, Run: func(ctx context.Context, run *Run) error {
				if run.Metrics == nil {
					return eris.New("seo: no scrape data to analyze")
				}
				terms := make([]string, 0, len(run.Metrics.Keywords))
				for _, k := range run.Metrics.Keywords {
					terms = append(terms, k.Term)
				}
				analysis, err := deps.Analyzer.Analyze(ctx, keywords.AnalyzeRequest{
					Keywords: terms,
					Content:  pageContent(run.Metrics),
				})
				if err != nil {
					return eris.Wrap(err, "keyword analysis failed")
				}
				run.Analysis = analysis
				run.Metrics.Raw.AIAnalysis = analysis
				return nil
			}},
			{Name: model.StageReportGen, Run: func(ctx context.Context, run *Run) error {
				return generateSeoReport(ctx, deps.Store, run, payload.URL, userID)
			}},
		},
	}
}

// pageContent flattens the scraped page into the text blob the analysis API
// expects.
func pageContent(m *model.SeoMetrics) string {
	var parts []string
	if title := m.Raw.MetaTags["title"]; title != "" {
		parts = append(parts, title)
	}
	if desc := m.Raw.MetaTags["description"]; desc != "" {
		parts = append(parts, desc)
	}
	for _, tag := range []string{"h1", "h2", "h3"} {
		parts = append(parts, m.Raw.Headings[tag]...)
	}
	return strings.Join(parts, "\n")
}

func generateSeoReport(ctx context.Context, st store.Store, run *Run, url, userID string) error {
	if run.Metrics == nil {
		return eris.New("seo: no metrics to report")
	}
	task := run.Task

	report := &model.Report{
		Type:     model.ReportTypeSeo,
		Title:    "SEO Report for " + url,
		DomainID: task.DomainID,
		UserID:   userID,
	}
	if err := st.CreateReport(ctx, report); err != nil {
		return eris.Wrap(err, "create report")
	}

	rawData, err := json.Marshal(run.Metrics.Raw)
	if err != nil {
		return eris.Wrap(err, "marshal page data")
	}
	seoReport := &model.SeoReport{
		ReportID:         report.ID,
		DomainID:         task.DomainID,
		UserID:           userID,
		OrganicTraffic:   run.Metrics.OrganicTraffic,
		OrganicKeywords:  run.Metrics.OrganicKeywords,
		SiteAuditScore:   run.Metrics.SiteAuditScore,
		SiteAuditIssues:  run.Metrics.SiteAuditIssues,
		Backlinks:        run.Metrics.Backlinks,
		ReferringDomains: run.Metrics.ReferringDomains,
		AuthorityScore:   run.Metrics.AuthorityScore,
		PageLoadTime:     run.Metrics.PageLoadTime,
		MobileFriendly:   run.Metrics.MobileFriendly,
		Data:             rawData,
	}
	if err := st.CreateSeoReport(ctx, seoReport); err != nil {
		return eris.Wrap(err, "create seo report")
	}

	pairs := 0
	for _, km := range run.Metrics.Keywords {
		kw := &model.Keyword{
			DomainID:     task.DomainID,
			Term:         km.Term,
			SearchVolume: km.SearchVolume,
			Efficiency:   km.Difficulty,
		}
		if err := st.UpsertKeyword(ctx, kw); err != nil {
			return eris.Wrapf(err, "upsert keyword %s", km.Term)
		}
		ranking := &model.KeywordRanking{
			KeywordID:   kw.ID,
			SeoReportID: seoReport.ID,
			Position:    km.Position,
			Region:      km.Region,
		}
		if err := st.CreateKeywordRanking(ctx, ranking); err != nil {
			return eris.Wrapf(err, "create ranking for %s", km.Term)
		}
		pairs++
	}

	zap.L().Info("seo: report generated",
		zap.String("task_id", task.ID),
		zap.String("report_id", report.ID),
		zap.Int("keyword_pairs", pairs),
	)
	return nil
}
