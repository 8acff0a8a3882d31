// Package metrics derives marketing metrics from a content item's raw
// engagement counters. The derivation is a pure function: it never panics,
// never mutates its input, and a ratio whose preconditions fail is left
// unset rather than coerced to zero.
package metrics

import (
	"math"
	"time"

	"github.com/reelsight/reelsight-engine/pkg/models"
)

// DefaultReferenceAudience is the audience size used for the all-audience
// engagement rate when none is configured.
const DefaultReferenceAudience = 10000

// Composite score component weights when views are present.
const (
	weightEngagementVideo = 0.30
	weightEngagementAll   = 0.25
	weightViewToLike      = 0.05
	weightCommentsToLikes = 0.20
	weightRecency         = 0.20
)

// Engine computes derived marketing fields. The zero value is not usable;
// construct with New.
type Engine struct {
	referenceAudience int64
	now               func() time.Time
}

// Option customises Engine behaviour.
type Option func(*Engine)

// WithReferenceAudience overrides the default reference audience size.
func WithReferenceAudience(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.referenceAudience = n
		}
	}
}

// WithClock overrides the time source. Used by tests for determinism.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a metrics engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		referenceAudience: DefaultReferenceAudience,
		now:               time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Enrich returns a copy of the item with every derived field the raw
// counters allow. All derived fields are recomputed together; fields whose
// preconditions fail come back unset. Enrich never fails: a field it cannot
// compute is simply absent from the result.
func (e *Engine) Enrich(item models.ContentItem) models.ContentItem {
	item.EngagementRateVideo = nil
	item.EngagementRateAll = nil
	item.ViewToLikeRatio = nil
	item.CommentsToLikesRatio = nil
	item.DaysSincePublished = nil
	item.MarketingScore = nil

	views, likes, comments := item.Views, item.Likes, item.Comments

	if item.PublishedAt != nil && !item.PublishedAt.IsZero() {
		days := daysSince(e.now(), *item.PublishedAt)
		item.DaysSincePublished = &days
	}

	if views != nil && *views > 0 && (likes != nil || comments != nil) {
		rate := float64(nvl(likes)+nvl(comments)) / float64(*views) * 100
		item.EngagementRateVideo = &rate
	}

	if likes != nil || comments != nil {
		rate := float64(nvl(likes)+nvl(comments)) / float64(e.referenceAudience) * 100
		item.EngagementRateAll = &rate
	}

	if views != nil && likes != nil && *views > 0 && *likes > 0 {
		ratio := float64(*views) / float64(*likes)
		item.ViewToLikeRatio = &ratio
	}

	if comments != nil && likes != nil && *comments > 0 && *likes > 0 {
		ratio := float64(*comments) / float64(*likes)
		item.CommentsToLikesRatio = &ratio
	}

	item.MarketingScore = e.compositeScore(&item)

	return item
}

// compositeScore computes the weighted sum of the min-max-normalized
// components, scaled by 10. When views are absent or zero the view-based
// components drop out and the remaining weights are renormalized. A nil
// result means no component was computable.
func (e *Engine) compositeScore(item *models.ContentItem) *float64 {
	viewsKnown := item.Views != nil && *item.Views > 0

	type component struct {
		norm   float64
		weight float64
	}
	var parts []component

	if viewsKnown && item.EngagementRateVideo != nil {
		parts = append(parts, component{
			norm:   clamp(*item.EngagementRateVideo, 0, 10) / 10,
			weight: weightEngagementVideo,
		})
	}
	if item.EngagementRateAll != nil {
		parts = append(parts, component{
			norm:   clamp(*item.EngagementRateAll, 0, 5) / 5,
			weight: weightEngagementAll,
		})
	}
	if viewsKnown && item.ViewToLikeRatio != nil {
		// Lower view-to-like is better: inverse-normalize over [1, 100].
		parts = append(parts, component{
			norm:   1 - (clamp(*item.ViewToLikeRatio, 1, 100)-1)/99,
			weight: weightViewToLike,
		})
	}
	if item.CommentsToLikesRatio != nil {
		parts = append(parts, component{
			norm:   clamp(*item.CommentsToLikesRatio, 0, 0.2) / 0.2,
			weight: weightCommentsToLikes,
		})
	}
	if item.DaysSincePublished != nil {
		days := *item.DaysSincePublished
		recency := 1.0
		if days > 0 {
			recency = 1.0 / float64(days)
		}
		parts = append(parts, component{norm: recency, weight: weightRecency})
	}

	if len(parts) == 0 {
		return nil
	}

	var sum, totalWeight float64
	for _, p := range parts {
		sum += p.norm * p.weight
		totalWeight += p.weight
	}
	score := sum / totalWeight * 10
	return &score
}

// daysSince returns ceil(|now - published|) in whole days.
func daysSince(now, published time.Time) int64 {
	delta := now.Sub(published)
	if delta < 0 {
		delta = -delta
	}
	return int64(math.Ceil(delta.Hours() / 24))
}

func nvl(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
