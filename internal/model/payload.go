package model

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ReviewSource identifies a supported review platform.
type ReviewSource string

const (
	SourceTrustpilot ReviewSource = "TRUSTPILOT"
	SourceGoogle     ReviewSource = "GOOGLE"
)

// DefaultReviewSources is the source list assigned to review tasks at
// submission time.
var DefaultReviewSources = []ReviewSource{SourceTrustpilot, SourceGoogle}

// SeoPayload is the typed payload of an SEO_SCRAPE task.
type SeoPayload struct {
	URL string `json:"url"`
}

// ReviewPayload is the typed payload of a REVIEW_SCRAPE task.
type ReviewPayload struct {
	URL     string         `json:"url"`
	Sources []ReviewSource `json:"sources"`
}

// HasSource reports whether the payload requests the given source.
func (p ReviewPayload) HasSource(s ReviewSource) bool {
	for _, src := range p.Sources {
		if src == s {
			return true
		}
	}
	return false
}

// ParseSeoPayload decodes and validates a stored SEO task payload.
func ParseSeoPayload(raw json.RawMessage) (SeoPayload, error) {
	var p SeoPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return SeoPayload{}, eris.Wrap(err, "model: decode seo payload")
	}
	if strings.TrimSpace(p.URL) == "" {
		return SeoPayload{}, eris.New("model: seo payload missing url")
	}
	return p, nil
}

// ParseReviewPayload decodes and validates a stored review task payload.
func ParseReviewPayload(raw json.RawMessage) (ReviewPayload, error) {
	var p ReviewPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ReviewPayload{}, eris.Wrap(err, "model: decode review payload")
	}
	if strings.TrimSpace(p.URL) == "" {
		return ReviewPayload{}, eris.New("model: review payload missing url")
	}
	if len(p.Sources) == 0 {
		return ReviewPayload{}, eris.New("model: review payload missing sources")
	}
	for _, s := range p.Sources {
		switch s {
		case SourceTrustpilot, SourceGoogle:
		default:
			return ReviewPayload{}, eris.Errorf("model: unknown review source %q", s)
		}
	}
	return p, nil
}

// ValidatePayload checks a stored payload against the discriminated shape
// for the task type. Used at the retry boundary: a corrupt payload is not a
// retryable state.
func ValidatePayload(t TaskType, raw json.RawMessage) error {
	switch t {
	case TaskTypeSeoScrape:
		_, err := ParseSeoPayload(raw)
		return err
	case TaskTypeReviewScrape:
		_, err := ParseReviewPayload(raw)
		return err
	default:
		return eris.Errorf("model: unknown task type %q", t)
	}
}
