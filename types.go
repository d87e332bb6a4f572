package trendengine

import (
	"context"
	"time"

	"github.com/eringen/trendengine/content"
)

// DefaultImage is the hero image of a trend that was saved without one.
const DefaultImage = "/images/placeholder.jpg"

// Trend is a published article about a trending search topic.
type Trend struct {
	Title          string          `json:"title"`
	Teaser         string          `json:"teaser"`
	Slug           string          `json:"slug"`
	Spike          string          `json:"spike"`
	Content        content.Content `json:"content"`
	Timestamp      string          `json:"timestamp"`
	Category       string          `json:"category"`
	IsHero         bool            `json:"isHero"`
	RelatedTopics  []string        `json:"relatedTopics"`
	RelatedQueries []string        `json:"relatedQueries"`
	Image          string          `json:"image"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Version        int64           `json:"version"`
}

// Patch lists the fields of an update. Nil fields are left untouched.
type Patch struct {
	Title          *string
	Teaser         *string
	Spike          *string
	Content        *content.Content
	Timestamp      *string
	Category       *string
	IsHero         *bool
	RelatedTopics  *[]string
	RelatedQueries *[]string
	Image          *string

	// ExpectedVersion, when set, must equal the stored version or the update
	// fails with ErrVersionConflict.
	ExpectedVersion *int64
}

// apply merges p into t.
func (p Patch) apply(t *Trend) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Teaser != nil {
		t.Teaser = *p.Teaser
	}
	if p.Spike != nil {
		t.Spike = *p.Spike
	}
	if p.Content != nil {
		t.Content = *p.Content
	}
	if p.Timestamp != nil {
		t.Timestamp = *p.Timestamp
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.IsHero != nil {
		t.IsHero = *p.IsHero
	}
	if p.RelatedTopics != nil {
		t.RelatedTopics = *p.RelatedTopics
	}
	if p.RelatedQueries != nil {
		t.RelatedQueries = *p.RelatedQueries
	}
	if p.Image != nil {
		t.Image = *p.Image
	}
}

// ListQuery selects one page of trends. Zero values select the defaults.
type ListQuery struct {
	Page     int
	Limit    int
	Category string
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

func (q ListQuery) normalized() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.Category == "undefined" {
		q.Category = ""
	}
	return q
}

// Page is one page of a listing.
type Page struct {
	Items      []Trend
	Total      int
	TotalPages int
	Page       int
	Limit      int
}

// Repository is the persistence contract for trends.
type Repository interface {
	Create(ctx context.Context, t Trend) (Trend, error)
	Get(ctx context.Context, slug string) (Trend, error)
	Exists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, q ListQuery) (Page, error)
	Hero(ctx context.Context) (Trend, error)
	Update(ctx context.Context, slug string, p Patch) (Trend, error)
	Delete(ctx context.Context, slug string) error
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
}
